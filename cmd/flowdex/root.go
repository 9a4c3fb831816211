package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/flowdex/internal/config"
	logpkg "github.com/kailas-cloud/flowdex/internal/logger"
)

var (
	cfgFile string
	cfgEnv  string

	cfg config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "flowdex",
	Short: "Batched, retrying write pipelines for collections and file trees",
	Long: `flowdex moves documents and files through a batched write pipeline:
reads are paged, writes are grouped into bulk requests, transient
failures are retried, and every input resolves to exactly one outcome.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a config file (overrides --env lookup)")
	rootCmd.PersistentFlags().StringVar(&cfgEnv, "env", "", "environment name for config/<env>.yaml (default: ENV or local)")
}

// setup loads configuration and builds the logger before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}

	// Local overrides from .env, if present.
	_ = godotenv.Load()

	if cfgEnv == "" {
		cfgEnv = config.GetEnv()
	}

	var err error
	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load(cfgEnv)
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err = logpkg.NewLogger(cfgEnv, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	log = log.With(zap.String("run_id", uuid.NewString()))

	cmd.PersistentPostRun = func(*cobra.Command, []string) {
		_ = log.Sync()
	}
	return nil
}
