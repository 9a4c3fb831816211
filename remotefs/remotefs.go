// Package remotefs writes flowdex batches onto remote filesystems over
// FTP, FTPS or SFTP. An op's ID is its file path relative to the
// configured base directory, the payload is the file body, and a delete
// removes the file. Versioned ops are rejected: plain file servers keep no
// document versions.
//
// A writer holds one session and replays a whole batch through it
// sequentially; a broken session fails the remaining ops transiently and
// is re-established on the next bulk request.
package remotefs

import (
	"fmt"
	"path"
	"strings"

	"github.com/kailas-cloud/flowdex/store"
)

// validateOp rejects ops a file server cannot express and resolves the
// remote path, before any session traffic.
func validateOp(baseDir string, op store.Op) (string, error) {
	if op.Version != 0 {
		return "", store.ErrVersionUnsupported
	}
	return remotePath(baseDir, op.ID)
}

// remotePath resolves an op ID against the base directory. IDs are slash
// separated and must stay inside the base.
func remotePath(baseDir, id string) (string, error) {
	cleaned := path.Clean("/" + id)
	if cleaned == "/" {
		return "", fmt.Errorf("id %q resolves to the base directory", id)
	}
	if baseDir == "" {
		return strings.TrimPrefix(cleaned, "/"), nil
	}
	return path.Join(baseDir, cleaned), nil
}

// parentDirs lists the directories above a remote path, shallowest first,
// so writers can create them before a store.
func parentDirs(rpath string) []string {
	var dirs []string
	for dir := path.Dir(rpath); dir != "." && dir != "/"; dir = path.Dir(dir) {
		dirs = append(dirs, dir)
	}
	for i, j := 0, len(dirs)-1; i < j; i, j = i+1, j-1 {
		dirs[i], dirs[j] = dirs[j], dirs[i]
	}
	return dirs
}
