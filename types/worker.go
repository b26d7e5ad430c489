package types

import (
	"context"
	"time"
)

// Worker is a unit of concurrent execution consuming exactly one assigned
// partition. Workers are created and owned exclusively by the subscriber; at
// most one worker exists per TopicPartition at any time.
type Worker interface {
	// Ack signals that messages up to offset are fully processed, allowing
	// the worker to advance its flow-control window. Non-blocking.
	Ack(offset int64)

	// Stop terminates the worker's consume loop and blocks until it has
	// observably exited or ctx expires.
	Stop(ctx context.Context) error

	// CommittedOffset queries the callback-managed committed offset for the
	// partition. ok is false when the callback reports none.
	CommittedOffset() (offset int64, ok bool)
}

// ConsumerConfig is the optional per-worker consumption tuning passed through
// from SubscriberConfig. Zero values are replaced with package defaults by
// the worker implementation.
type ConsumerConfig struct {
	// FetchBatchSize is the maximum number of messages fetched per pull.
	FetchBatchSize int `yaml:"fetchBatchSize"`

	// FetchTimeout is the maximum duration a single fetch waits for messages.
	FetchTimeout time.Duration `yaml:"fetchTimeout"`

	// MaxPendingAcks bounds the number of dispatched-but-unacknowledged
	// messages. When the window is full the worker stops fetching until an
	// ack releases capacity.
	MaxPendingAcks int `yaml:"maxPendingAcks"`

	// MaxRetries is the number of retry attempts for transient fetch errors.
	MaxRetries int `yaml:"maxRetries"`

	// RetryBackoff is the base delay between retry attempts and the poll
	// interval when a fetch returns no messages.
	RetryBackoff time.Duration `yaml:"retryBackoff"`
}

// WorkerConfig carries everything a worker needs to consume one partition.
// It is assembled by the subscriber during assignment reconciliation.
type WorkerConfig struct {
	// GroupID is the consumer group identifier, forwarded to the callback.
	GroupID string

	// Topic and Partition identify the assigned partition.
	Topic     string
	Partition int32

	// BeginOffset is the first offset to consume.
	BeginOffset int64

	// MessageType selects single-message or batch callback dispatch.
	MessageType MessageType

	// Callback is the integrator's processing strategy.
	Callback MessageCallback

	// InitData is the opaque payload passed to Callback.Init.
	InitData any

	// Ack and Commit are bound to (Topic, Partition) and re-enter the owning
	// subscriber's ack/commit paths.
	Ack    AckFunc
	Commit CommitFunc

	// Consumer is the per-worker tuning passthrough.
	Consumer ConsumerConfig
}

// WorkerFactory starts workers for assigned partitions. The default factory
// is backed by a MessageSource; tests inject fakes.
type WorkerFactory interface {
	// StartWorker creates and starts a worker for the configured partition.
	// The returned worker is already consuming. A non-nil error is treated
	// as fatal by the subscriber.
	StartWorker(ctx context.Context, cfg WorkerConfig) (Worker, error)
}
