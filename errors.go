package brod

import "github.com/escobera/brod/types"

// Sentinel errors returned by the Subscriber, re-exported from the types
// package so callers can match with errors.Is against either package.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = types.ErrInvalidConfig

	// ErrClientRequired is returned when the client connection handle is nil
	// and a default collaborator (coordinator or worker factory) needs it.
	ErrClientRequired = types.ErrClientRequired

	// ErrGroupIDRequired is returned when the group identifier is empty.
	ErrGroupIDRequired = types.ErrGroupIDRequired

	// ErrTopicsRequired is returned when the topic list is empty.
	ErrTopicsRequired = types.ErrTopicsRequired

	// ErrInvalidTopic is returned when a topic name is malformed.
	ErrInvalidTopic = types.ErrInvalidTopic

	// ErrCallbackRequired is returned when no message callback is configured.
	ErrCallbackRequired = types.ErrCallbackRequired

	// ErrAlreadyStarted is returned when Start is called on a running subscriber.
	ErrAlreadyStarted = types.ErrAlreadyStarted

	// ErrNotStarted is returned when operations require a started subscriber.
	ErrNotStarted = types.ErrNotStarted

	// ErrStopped is returned when operations are issued after termination.
	ErrStopped = types.ErrStopped

	// ErrNotImplemented is returned by AssignPartitions when no custom
	// partition assigner is installed.
	ErrNotImplemented = types.ErrNotImplemented

	// ErrUnknownTopicPartition indicates an ack/commit for a partition with
	// no live worker. It never surfaces to callers of Ack/Commit; it is
	// reported through logging and metrics.
	ErrUnknownTopicPartition = types.ErrUnknownTopicPartition
)
