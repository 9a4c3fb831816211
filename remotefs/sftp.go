package remotefs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/kailas-cloud/flowdex/store"
)

var _ store.BulkWriter = (*SFTPWriter)(nil)

// SFTPConfig holds connection parameters for an SFTP writer. Password and
// PrivateKey select the SSH auth method; set at least one.
type SFTPConfig struct {
	Addr       string // host:port
	User       string
	Password   string
	PrivateKey []byte // PEM-encoded
	BaseDir    string
	Timeout    time.Duration
	// HostKey verifies the server. Leaving it nil accepts any host key,
	// which is only acceptable for tests and closed networks.
	HostKey ssh.HostKeyCallback
}

// sftpConn is the slice of *sftp.Client the writer uses.
type sftpConn interface {
	MkdirAll(path string) error
	Remove(path string) error
	WriteFile(path string, body []byte) error
	Close() error
}

// SFTPWriter implements store.BulkWriter over a single SSH session.
type SFTPWriter struct {
	cfg SFTPConfig

	mu   sync.Mutex
	conn sftpConn
	dial func() (sftpConn, error)
}

// NewSFTP creates an SFTP writer. The session is established lazily on the
// first bulk request.
func NewSFTP(cfg SFTPConfig) (*SFTPWriter, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("addr is required")
	}
	if cfg.Password == "" && len(cfg.PrivateKey) == 0 {
		return nil, fmt.Errorf("password or private key is required")
	}
	w := &SFTPWriter{cfg: cfg}
	w.dial = w.dialServer
	return w, nil
}

func (w *SFTPWriter) dialServer() (sftpConn, error) {
	var auth []ssh.AuthMethod
	if len(w.cfg.PrivateKey) > 0 {
		signer, err := ssh.ParsePrivateKey(w.cfg.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if w.cfg.Password != "" {
		auth = append(auth, ssh.Password(w.cfg.Password))
	}

	hostKey := w.cfg.HostKey
	if hostKey == nil {
		hostKey = ssh.InsecureIgnoreHostKey() //nolint:gosec // documented opt-in
	}

	sshConn, err := ssh.Dial("tcp", w.cfg.Addr, &ssh.ClientConfig{
		User:            w.cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         w.cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		_ = sshConn.Close()
		return nil, err
	}
	return &sftpSession{ssh: sshConn, client: client}, nil
}

// WriteBulk replays the ops through one session in order. Server status
// errors are per-op outcomes; a lost session fails the remaining ops
// transiently so the pipeline can retry them over a fresh connection.
func (w *SFTPWriter) WriteBulk(ctx context.Context, ops []store.Op) ([]store.ItemResult, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		conn, err := w.dial()
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", w.cfg.Addr, err)
		}
		w.conn = conn
	}

	out := make([]store.ItemResult, len(ops))
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rpath, verr := validateOp(w.cfg.BaseDir, op)
		if verr != nil {
			out[i] = store.ItemResult{Err: fmt.Errorf("%s: %w", op.ID, verr)}
			continue
		}
		err := w.applyOp(rpath, op)
		if err == nil {
			continue
		}
		out[i] = store.ItemResult{Err: classifyStatus(op.ID, err)}
		if isTransportDown(err) {
			w.dropConn()
			for j := i + 1; j < len(ops); j++ {
				out[j] = store.ItemResult{Err: fmt.Errorf("%w: %s: session lost", store.ErrUnavailable, ops[j].ID)}
			}
			break
		}
	}
	return out, nil
}

// applyOp runs one already validated op over the live session; every
// error it returns came from the server or the connection.
func (w *SFTPWriter) applyOp(rpath string, op store.Op) error {
	if op.Delete() {
		err := w.conn.Remove(rpath)
		if err != nil && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	for _, dir := range parentDirs(rpath) {
		_ = w.conn.MkdirAll(dir)
	}
	return w.conn.WriteFile(rpath, op.Doc)
}

func (w *SFTPWriter) dropConn() {
	if w.conn != nil {
		_ = w.conn.Close()
		w.conn = nil
	}
}

// Close terminates the session if one is open.
func (w *SFTPWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

// classifyStatus maps an SFTP failure onto the store error taxonomy. A
// server status reply is a permanent per-op verdict; everything else
// means the transport broke mid-batch.
func classifyStatus(id string, err error) error {
	if isServerStatus(err) {
		return fmt.Errorf("%s: %w", id, err)
	}
	return fmt.Errorf("%w: %s: %w", store.ErrUnavailable, id, err)
}

// isServerStatus reports whether err is a reply from the server rather
// than a broken transport. The client maps some status replies onto os
// errors, so those count too.
func isServerStatus(err error) bool {
	var status *sftp.StatusError
	return errors.As(err, &status) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, os.ErrPermission)
}

func isTransportDown(err error) bool { return !isServerStatus(err) }

// sftpSession adapts *sftp.Client to the writer's needs and owns the
// underlying SSH connection.
type sftpSession struct {
	ssh    *ssh.Client
	client *sftp.Client
}

func (s *sftpSession) MkdirAll(path string) error { return s.client.MkdirAll(path) }
func (s *sftpSession) Remove(path string) error   { return s.client.Remove(path) }

func (s *sftpSession) WriteFile(path string, body []byte) error {
	f, err := s.client.Create(path)
	if err != nil {
		return err
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func (s *sftpSession) Close() error {
	err := s.client.Close()
	if cerr := s.ssh.Close(); err == nil {
		err = cerr
	}
	return err
}
