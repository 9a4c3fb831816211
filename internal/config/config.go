package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/flowdex"
)

// Config holds the flowdex CLI configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Flow     FlowConfig     `yaml:"flow"`
	Mirror   MirrorConfig   `yaml:"mirror"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// MetricsConfig holds the observability listener settings.
type MetricsConfig struct {
	Addr     string   `yaml:"addr"`      // serves /healthz and /metrics; empty disables the listener
	AuthKeys []string `yaml:"auth_keys"` // bearer tokens guarding /metrics; empty leaves it open
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// FlowConfig holds batching and retry settings for the write pipeline.
type FlowConfig struct {
	BatchSize           int     `yaml:"batch_size"`
	MaxRetries          int     `yaml:"max_retries"`
	RetryIntervalSec    int     `yaml:"retry_interval_sec"`
	RetryPartialFailure bool    `yaml:"retry_partial_failure"`
	RateLimit           float64 `yaml:"rate_limit"` // bulk calls per second, 0 = unlimited
	PageSize            int     `yaml:"page_size"`  // read-side page size
}

// Pipeline converts the section into pipeline settings.
func (f FlowConfig) Pipeline() flowdex.FlowConfig {
	cfg := flowdex.DefaultFlowConfig()
	cfg.BatchSize = f.BatchSize
	cfg.MaxRetries = f.MaxRetries
	cfg.RetryInterval = time.Duration(f.RetryIntervalSec) * time.Second
	cfg.RetryPartialFailure = f.RetryPartialFailure
	return cfg
}

// MirrorConfig holds the directory mirroring settings.
type MirrorConfig struct {
	Dir          string       `yaml:"dir"`
	ScanExisting bool         `yaml:"scan_existing"`
	MaxFileSize  int64        `yaml:"max_file_size"`
	Remote       RemoteConfig `yaml:"remote"`
}

// RemoteConfig holds the remote filesystem endpoint settings.
type RemoteConfig struct {
	Protocol       string `yaml:"protocol"` // ftp, ftps, sftp
	Addr           string `yaml:"addr"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	PrivateKeyFile string `yaml:"private_key_file"` // sftp only
	BaseDir        string `yaml:"base_dir"`
	TimeoutSec     int    `yaml:"timeout_sec"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit YAML file path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Flow.BatchSize <= 0 {
		c.Flow.BatchSize = flowdex.DefaultBatchSize
	}
	if c.Flow.MaxRetries < 0 {
		c.Flow.MaxRetries = flowdex.DefaultMaxRetries
	}
	if c.Flow.RetryIntervalSec <= 0 {
		c.Flow.RetryIntervalSec = int(flowdex.DefaultRetryInterval / time.Second)
	}
	if c.Flow.PageSize <= 0 {
		c.Flow.PageSize = 100
	}
	if c.Mirror.Remote.TimeoutSec <= 0 {
		c.Mirror.Remote.TimeoutSec = 30
	}
}

// Validate checks the configuration for correctness. Presence of the
// database or mirror sections is checked by the command that uses them.
func (c *Config) Validate() error {
	if c.Flow.RateLimit < 0 {
		return fmt.Errorf("flow.rate_limit must not be negative, got %v", c.Flow.RateLimit)
	}
	if c.Mirror.MaxFileSize < 0 {
		return fmt.Errorf("mirror.max_file_size must not be negative, got %d", c.Mirror.MaxFileSize)
	}
	switch c.Mirror.Remote.Protocol {
	case "", "ftp", "ftps", "sftp":
		// ok
	default:
		return fmt.Errorf(
			"mirror.remote.protocol must be \"ftp\", \"ftps\" or \"sftp\", got %q",
			c.Mirror.Remote.Protocol,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
