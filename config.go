package flowdex

import (
	"fmt"
	"time"
)

// Defaults applied by DefaultFlowConfig.
const (
	DefaultBatchSize     = 10
	DefaultMaxRetries    = 100
	DefaultRetryInterval = 5 * time.Second
)

// FlowConfig is the immutable tuning of a Flow. Build it with
// DefaultFlowConfig, adjust fields, and pass it to NewFlow; the flow keeps
// its own copy, so later mutation has no effect on a running pipeline.
type FlowConfig struct {
	// BatchSize caps how many messages one bulk request carries.
	BatchSize int
	// MaxRetries is the per-item retry budget after the first dispatch:
	// an item is dispatched at most MaxRetries+1 times. Zero disables
	// retries, making the first transient failure terminal.
	MaxRetries int
	// RetryInterval is the fixed delay between a transiently failed
	// attempt and the next dispatch of the batch remnant.
	RetryInterval time.Duration
	// RetryPartialFailure retries items that fail transiently inside an
	// otherwise delivered bulk response. When false such items are
	// terminal immediately; whole-request transport failures are retried
	// within the budget either way.
	RetryPartialFailure bool
}

// DefaultFlowConfig returns the standard flow tuning.
func DefaultFlowConfig() FlowConfig {
	return FlowConfig{
		BatchSize:     DefaultBatchSize,
		MaxRetries:    DefaultMaxRetries,
		RetryInterval: DefaultRetryInterval,
	}
}

// Validate checks the config at pipeline construction.
func (c FlowConfig) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	if c.MaxRetries > 0 && c.RetryInterval <= 0 {
		return fmt.Errorf("retry interval must be positive when retries are enabled, got %s", c.RetryInterval)
	}
	return nil
}

// SourceConfig tunes a Source.
type SourceConfig struct {
	// PageSize bounds how many hits one scroll request fetches.
	PageSize int
	// IncludeVersion surfaces the stored document version on each Hit.
	IncludeVersion bool
}

// DefaultSourceConfig returns the standard source tuning.
func DefaultSourceConfig() SourceConfig {
	return SourceConfig{PageSize: DefaultBatchSize}
}

// Validate checks the config at source construction.
func (c SourceConfig) Validate() error {
	if c.PageSize < 1 {
		return fmt.Errorf("page size must be at least 1, got %d", c.PageSize)
	}
	return nil
}
