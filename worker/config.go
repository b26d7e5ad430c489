package worker

import (
	"time"

	"github.com/escobera/brod/types"
)

// Default configuration values for partition workers.
const (
	// DefaultFetchBatchSize is the default number of messages to request per fetch.
	DefaultFetchBatchSize = 32

	// DefaultFetchTimeout is the default maximum duration to wait for messages.
	DefaultFetchTimeout = 5 * time.Second

	// DefaultMaxPendingAcks is the default bound on dispatched-but-unacked offsets.
	DefaultMaxPendingAcks = 64

	// DefaultMaxRetries is the default maximum number of callback retry attempts.
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the default base duration between retry attempts.
	DefaultRetryBackoff = 100 * time.Millisecond

	// maxFetchBackoff caps the jittered backoff applied after fetch failures.
	maxFetchBackoff = 5 * time.Second
)

// FactoryConfig tunes the default worker factory.
type FactoryConfig struct {
	// Logger for worker lifecycle and dispatch events. Defaults to a no-op
	// logger.
	Logger types.Logger

	// RetryRNGSeed seeds the backoff jitter source. Zero selects the
	// package-level PRNG; a non-zero seed makes retry timing deterministic
	// for tests.
	RetryRNGSeed int64
}

// normalizeConsumerConfig fills missing consumption tuning with defaults.
func normalizeConsumerConfig(cfg types.ConsumerConfig) types.ConsumerConfig {
	if cfg.FetchBatchSize <= 0 {
		cfg.FetchBatchSize = DefaultFetchBatchSize
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.MaxPendingAcks <= 0 {
		cfg.MaxPendingAcks = DefaultMaxPendingAcks
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = DefaultRetryBackoff
	}

	return cfg
}
