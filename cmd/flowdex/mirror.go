package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/flowdex"
	"github.com/kailas-cloud/flowdex/internal/config"
	chiTransport "github.com/kailas-cloud/flowdex/internal/transport/chi"
	"github.com/kailas-cloud/flowdex/localdir"
	"github.com/kailas-cloud/flowdex/remotefs"
	"github.com/kailas-cloud/flowdex/store"
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Mirror a local directory onto a remote filesystem",
	Long: `Watches mirror.dir and replays file writes and deletions onto the
configured FTP, FTPS or SFTP endpoint through the write pipeline. Changes
are grouped into batches of flow.batch_size before each upload; set it to
1 to push every change immediately. Runs until interrupted.`,
	RunE: runMirror,
}

func init() {
	rootCmd.AddCommand(mirrorCmd)
}

// remoteWriter is the slice of the remotefs writers the command uses.
type remoteWriter interface {
	store.BulkWriter
	Close() error
}

func runMirror(cmd *cobra.Command, _ []string) error {
	if cfg.Mirror.Dir == "" {
		return errors.New("mirror.dir is required")
	}
	if cfg.Mirror.Remote.Addr == "" {
		return errors.New("mirror.remote.addr is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writer, err := openRemote(cfg.Mirror.Remote)
	if err != nil {
		return err
	}
	defer func() { _ = writer.Close() }()

	src, err := localdir.New(localdir.Config{
		Dir:          cfg.Mirror.Dir,
		ScanExisting: cfg.Mirror.ScanExisting,
		MaxFileSize:  cfg.Mirror.MaxFileSize,
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", cfg.Mirror.Dir, err)
	}
	src.WithLogger(log)

	flow, err := flowdex.NewFlow[[]byte, string](writer, cfg.Flow.Pipeline())
	if err != nil {
		return err
	}
	flow.WithLogger(log).
		WithRateLimit(cfg.Flow.RateLimit).
		WithMarshaler(func(b *[]byte) ([]byte, error) { return *b, nil }).
		WithMetrics(prometheus.DefaultRegisterer, "mirror")

	if cfg.Metrics.Addr != "" {
		obs := chiTransport.NewServer(cfg.Metrics.Addr, log).
			WithAuth(cfg.Metrics.AuthKeys).
			WithCheck("watch_dir", func(context.Context) error {
				_, err := os.Stat(cfg.Mirror.Dir)
				return err
			})
		obs.Start()
		defer obs.Shutdown()
	}

	log.Info("mirror started",
		zap.String("dir", cfg.Mirror.Dir),
		zap.String("protocol", cfg.Mirror.Remote.Protocol),
		zap.String("remote", cfg.Mirror.Remote.Addr),
		zap.Int("batch_size", cfg.Flow.BatchSize),
		zap.Bool("scan_existing", cfg.Mirror.ScanExisting))

	in := make(chan flowdex.Message[[]byte, string])
	drained := make(chan error, 1)
	go func() {
		drained <- flow.Drain(ctx, in)
	}()

	watchErr := src.Run(ctx, func(c localdir.Change) bool {
		var msg flowdex.Message[[]byte, string]
		if c.Delete() {
			msg = flowdex.NewDelete[[]byte, string](c.Path, c.Path)
		} else {
			body := c.Body
			msg = flowdex.NewMessage(c.Path, &body, c.Path)
		}
		select {
		case in <- msg:
			return true
		case <-ctx.Done():
			return false
		}
	})
	close(in)
	<-drained

	if watchErr != nil && !errors.Is(watchErr, context.Canceled) {
		return fmt.Errorf("watch %s: %w", cfg.Mirror.Dir, watchErr)
	}
	log.Info("mirror stopped")
	return nil
}

// openRemote builds the bulk writer for the configured remote protocol.
func openRemote(rc config.RemoteConfig) (remoteWriter, error) {
	timeout := time.Duration(rc.TimeoutSec) * time.Second
	switch rc.Protocol {
	case "", "ftp":
		return remotefs.NewFTP(remotefs.FTPConfig{
			Addr:     rc.Addr,
			User:     rc.User,
			Password: rc.Password,
			BaseDir:  rc.BaseDir,
			Timeout:  timeout,
		})
	case "ftps":
		host, _, err := net.SplitHostPort(rc.Addr)
		if err != nil {
			host = rc.Addr
		}
		return remotefs.NewFTP(remotefs.FTPConfig{
			Addr:     rc.Addr,
			User:     rc.User,
			Password: rc.Password,
			BaseDir:  rc.BaseDir,
			Timeout:  timeout,
			TLS:      &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
		})
	case "sftp":
		var key []byte
		if rc.PrivateKeyFile != "" {
			var err error
			key, err = os.ReadFile(rc.PrivateKeyFile)
			if err != nil {
				return nil, fmt.Errorf("read private key: %w", err)
			}
		}
		return remotefs.NewSFTP(remotefs.SFTPConfig{
			Addr:       rc.Addr,
			User:       rc.User,
			Password:   rc.Password,
			PrivateKey: key,
			BaseDir:    rc.BaseDir,
			Timeout:    timeout,
		})
	default:
		return nil, fmt.Errorf("unknown remote protocol %q", rc.Protocol)
	}
}
