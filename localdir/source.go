// Package localdir emits write messages for the files of a local
// directory tree: an optional scan of the current files followed by
// change events. Feeding the changes through a flow onto a remote
// filesystem keeps the remote side mirrored.
//
// Delivery is at-least-once: editors produce several write events per
// save and the scan replays files the remote may already hold, so
// consumers must tolerate repeated upserts for the same path.
package localdir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const defaultMaxFileSize = 8 << 20

// Change is one observed file mutation. Path is slash-separated and
// relative to the watched root; a nil Body reports a deletion.
type Change struct {
	Path string
	Body []byte
}

// Delete reports whether the change removes the file.
func (c Change) Delete() bool { return c.Body == nil }

// Config holds the watch parameters.
type Config struct {
	// Dir is the root of the watched tree.
	Dir string
	// ScanExisting replays the tree's current files before watching.
	ScanExisting bool
	// MaxFileSize skips files larger than this many bytes (default 8 MiB).
	MaxFileSize int64
}

// Source watches one directory tree.
type Source struct {
	cfg Config
	log *zap.Logger
}

// New validates cfg and returns a Source.
func New(cfg Config) (*Source, error) {
	if cfg.Dir == "" {
		return nil, errors.New("dir is required")
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	return &Source{cfg: cfg, log: zap.NewNop()}, nil
}

// WithLogger attaches a logger for watch diagnostics.
func (s *Source) WithLogger(l *zap.Logger) *Source {
	if l != nil {
		s.log = l
	}
	return s
}

// Run streams changes to fn until ctx is cancelled or fn returns false.
// Every directory of the tree is watched, including ones created while
// running.
func (s *Source) Run(ctx context.Context, fn func(Change) bool) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Register watches before the scan so saves racing the scan are not
	// lost, only duplicated.
	stopped, err := s.walkTree(watcher, fn)
	if err != nil {
		return fmt.Errorf("walk %s: %w", s.cfg.Dir, err)
	}
	if stopped {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if cont := s.handleEvent(watcher, ev, fn); !cont {
				return nil
			}
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("watch error", zap.Error(werr))
		}
	}
}

// walkTree watches every directory and, when configured, replays regular
// files through fn. The first return is true once fn asked to stop.
func (s *Source) walkTree(watcher *fsnotify.Watcher, fn func(Change) bool) (bool, error) {
	stopped := false
	err := filepath.WalkDir(s.cfg.Dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(p)
		}
		if !s.cfg.ScanExisting || !d.Type().IsRegular() {
			return nil
		}
		body, ok := s.loadFile(p)
		if !ok {
			return nil
		}
		if !fn(Change{Path: s.relPath(p), Body: body}) {
			stopped = true
			return fs.SkipAll
		}
		return nil
	})
	return stopped, err
}

// handleEvent turns one fsnotify event into at most one Change. It
// returns false once fn asked to stop.
func (s *Source) handleEvent(watcher *fsnotify.Watcher, ev fsnotify.Event, fn func(Change) bool) bool {
	switch {
	case ev.Op.Has(fsnotify.Create):
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := watcher.Add(ev.Name); err != nil {
				s.log.Warn("watch new directory", zap.String("dir", ev.Name), zap.Error(err))
			}
			return true
		}
		return s.emitUpsert(ev.Name, fn)
	case ev.Op.Has(fsnotify.Write):
		return s.emitUpsert(ev.Name, fn)
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		return fn(Change{Path: s.relPath(ev.Name)})
	default:
		return true
	}
}

func (s *Source) emitUpsert(p string, fn func(Change) bool) bool {
	body, ok := s.loadFile(p)
	if !ok {
		// Vanished or oversized; a Remove event follows in the first case.
		return true
	}
	return fn(Change{Path: s.relPath(p), Body: body})
}

func (s *Source) loadFile(p string) ([]byte, bool) {
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	if info.Size() > s.cfg.MaxFileSize {
		s.log.Warn("file exceeds size limit, skipped",
			zap.String("path", p),
			zap.Int64("size", info.Size()))
		return nil, false
	}
	body, err := os.ReadFile(p)
	if err != nil {
		return nil, false
	}
	if body == nil {
		body = []byte{}
	}
	return body, true
}

func (s *Source) relPath(p string) string {
	rel, err := filepath.Rel(s.cfg.Dir, p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
