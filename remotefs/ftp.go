package remotefs

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/kailas-cloud/flowdex/store"
)

var _ store.BulkWriter = (*FTPWriter)(nil)

// FTPConfig holds connection parameters for an FTP or FTPS writer.
type FTPConfig struct {
	Addr     string // host:port
	User     string
	Password string
	BaseDir  string
	Timeout  time.Duration
	// TLS upgrades the session via explicit AUTH TLS (FTPS) when non-nil.
	TLS *tls.Config
}

// ftpConn is the slice of *ftp.ServerConn the writer uses.
type ftpConn interface {
	Stor(path string, r io.Reader) error
	Delete(path string) error
	MakeDir(path string) error
	Quit() error
}

// FTPWriter implements store.BulkWriter over a single FTP session.
type FTPWriter struct {
	cfg FTPConfig

	mu   sync.Mutex
	conn ftpConn
	dial func(ctx context.Context) (ftpConn, error)
}

// NewFTP creates an FTP writer. The session is established lazily on the
// first bulk request.
func NewFTP(cfg FTPConfig) (*FTPWriter, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("addr is required")
	}
	w := &FTPWriter{cfg: cfg}
	w.dial = w.dialServer
	return w, nil
}

func (w *FTPWriter) dialServer(ctx context.Context) (ftpConn, error) {
	opts := []ftp.DialOption{ftp.DialWithContext(ctx)}
	if w.cfg.Timeout > 0 {
		opts = append(opts, ftp.DialWithTimeout(w.cfg.Timeout))
	}
	if w.cfg.TLS != nil {
		opts = append(opts, ftp.DialWithExplicitTLS(w.cfg.TLS))
	}

	conn, err := ftp.Dial(w.cfg.Addr, opts...)
	if err != nil {
		return nil, err
	}
	if w.cfg.User != "" {
		if err := conn.Login(w.cfg.User, w.cfg.Password); err != nil {
			_ = conn.Quit()
			return nil, err
		}
	}
	return conn, nil
}

// WriteBulk replays the ops through one session in order. Server rejects
// are per-op outcomes; a lost session fails the remaining ops transiently
// so the pipeline can retry them over a fresh connection.
func (w *FTPWriter) WriteBulk(ctx context.Context, ops []store.Op) ([]store.ItemResult, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		conn, err := w.dial(ctx)
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
		out[i] = store.ItemResult{Err: classifyReply(op.ID, err)}
		if isSessionLost(err) {
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
func (w *FTPWriter) applyOp(rpath string, op store.Op) error {
	if op.Delete() {
		err := w.conn.Delete(rpath)
		if isNotFoundReply(err) {
			// Deletes are idempotent: a retried delete whose first attempt
			// landed must not fail the item.
			return nil
		}
		return err
	}

	for _, dir := range parentDirs(rpath) {
		_ = w.conn.MakeDir(dir) // exists errors are expected
	}
	return w.conn.Stor(rpath, bytes.NewReader(op.Doc))
}

func (w *FTPWriter) dropConn() {
	if w.conn != nil {
		_ = w.conn.Quit()
		w.conn = nil
	}
}

// Close terminates the session if one is open.
func (w *FTPWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Quit()
	w.conn = nil
	return err
}

func isNotFoundReply(err error) bool {
	var proto *textproto.Error
	return errors.As(err, &proto) && proto.Code == ftp.StatusFileUnavailable
}
