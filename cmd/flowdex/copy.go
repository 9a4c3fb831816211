package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/flowdex"
	"github.com/kailas-cloud/flowdex/redisearch"
)

var (
	copyFrom string
	copyTo   string
)

var copyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy one collection into another through the write pipeline",
	Long: `Scrolls every document of the source collection and writes it into
the target collection in bulk batches. Documents are written unversioned,
so re-running a copy overwrites earlier results.`,
	RunE: runCopy,
}

func init() {
	copyCmd.Flags().StringVar(&copyFrom, "from", "", "source collection")
	copyCmd.Flags().StringVar(&copyTo, "to", "", "target collection")
	_ = copyCmd.MarkFlagRequired("from")
	_ = copyCmd.MarkFlagRequired("to")
	rootCmd.AddCommand(copyCmd)
}

func runCopy(cmd *cobra.Command, _ []string) error {
	if len(cfg.Database.Addrs) == 0 {
		return errors.New("database.addrs is required for copy")
	}
	if copyFrom == copyTo {
		return fmt.Errorf("source and target collections are both %q", copyFrom)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, err := openStore(ctx, copyFrom)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := openStore(ctx, copyTo)
	if err != nil {
		return err
	}
	defer dst.Close()

	if err := dst.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("prepare target index: %w", err)
	}

	source, err := flowdex.NewSource[json.RawMessage](src, flowdex.SourceConfig{PageSize: cfg.Flow.PageSize})
	if err != nil {
		return err
	}
	source.WithLogger(log)

	flow, err := flowdex.NewFlow[json.RawMessage, string](dst, cfg.Flow.Pipeline())
	if err != nil {
		return err
	}
	flow.WithLogger(log).WithRateLimit(cfg.Flow.RateLimit)

	log.Info("copy started",
		zap.String("from", copyFrom),
		zap.String("to", copyTo),
		zap.Int("batch_size", cfg.Flow.BatchSize),
		zap.Int("page_size", cfg.Flow.PageSize))

	hits, wait := source.Stream(ctx)
	in := make(chan flowdex.Message[json.RawMessage, string])
	results := flow.Run(ctx, in)

	go func() {
		defer close(in)
		for h := range hits {
			doc := h.Doc
			select {
			case in <- flowdex.NewMessage(h.ID, &doc, h.ID):
			case <-ctx.Done():
				return
			}
		}
	}()

	var copied, failed int
	for group := range results {
		for _, r := range group {
			if r.Success() {
				copied++
				continue
			}
			failed++
			log.Warn("document not copied",
				zap.String("id", r.Message.ID),
				zap.Int("attempts", r.Attempts),
				zap.Error(r.Err))
		}
	}

	if err := wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("read %s: %w", copyFrom, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("copy interrupted: %w", err)
	}

	log.Info("copy finished", zap.Int("copied", copied), zap.Int("failed", failed))
	cmd.Printf("Copied %d documents (%d failed).\n", copied, failed)
	if failed > 0 {
		return fmt.Errorf("%d documents failed", failed)
	}
	return nil
}

// openStore connects to the configured database scoped to one collection.
func openStore(ctx context.Context, collection string) (*redisearch.Store, error) {
	st, err := redisearch.New(redisearch.Config{
		Addrs:      cfg.Database.Addrs,
		Username:   cfg.Database.Username,
		Password:   cfg.Database.Password,
		DB:         cfg.Database.DB,
		Collection: collection,
	})
	if err != nil {
		return nil, fmt.Errorf("open collection %s: %w", collection, err)
	}
	if err := st.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		st.Close()
		return nil, fmt.Errorf("collection %s: %w", collection, err)
	}
	return st, nil
}
