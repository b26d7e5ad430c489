package types

import "context"

// MessageSource provides ordered message fetches for topic partitions. The
// default worker implementation pulls from a MessageSource; the wire-level
// transport behind it is outside the subscription layer.
type MessageSource interface {
	// Fetch returns up to max messages of the partition starting at offset.
	// An empty set (no error) means no messages are currently available.
	// Implementations may block up to their configured fetch timeout.
	Fetch(ctx context.Context, topic string, partition int32, offset int64, max int) (MessageSet, error)

	// Close releases transport resources held by the source.
	Close() error
}
