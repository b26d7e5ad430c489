package types

import "errors"

// Sentinel errors for the brod library.
//
// These errors provide type-safe error checking using errors.Is() and
// errors.As(). Components use these sentinels for known error conditions and
// wrap external errors with context using fmt.Errorf("%s: %w", msg, err).

// Subscriber errors - Public API errors returned by the Subscriber.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClientRequired is returned when the client connection handle is nil.
	ErrClientRequired = errors.New("client connection is required")

	// ErrGroupIDRequired is returned when the group identifier is empty.
	ErrGroupIDRequired = errors.New("group id is required")

	// ErrTopicsRequired is returned when the topic list is empty.
	ErrTopicsRequired = errors.New("at least one topic is required")

	// ErrInvalidTopic is returned when a topic name is malformed.
	ErrInvalidTopic = errors.New("invalid topic name")

	// ErrCallbackRequired is returned when no message callback is configured.
	ErrCallbackRequired = errors.New("message callback is required")

	// ErrAlreadyStarted is returned when Start is called on a running subscriber.
	ErrAlreadyStarted = errors.New("subscriber already started")

	// ErrNotStarted is returned when operations require a started subscriber.
	ErrNotStarted = errors.New("subscriber not started")

	// ErrStopped is returned when operations are issued after termination.
	ErrStopped = errors.New("subscriber stopped")

	// ErrNotImplemented is returned by AssignPartitions when no custom
	// partition assigner is installed.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnknownTopicPartition indicates an ack/commit for a partition with
	// no live worker. Reported through logging on the fire-and-forget paths.
	ErrUnknownTopicPartition = errors.New("unknown topic or partition")
)

// Worker errors - returned by worker implementations.
var (
	// ErrWorkerStartFailed is returned when a worker cannot be started.
	// Fatal to the whole subscriber.
	ErrWorkerStartFailed = errors.New("worker start failed")

	// ErrWorkerStopped is returned when signaling a worker that has exited.
	ErrWorkerStopped = errors.New("worker stopped")
)

// Coordinator errors - returned by coordinator implementations.
var (
	// ErrCoordinatorNotStarted is returned when commit requests arrive
	// before the coordinator joined the group.
	ErrCoordinatorNotStarted = errors.New("coordinator not started")

	// ErrCommitQueueFull is returned when the coordinator's asynchronous
	// commit queue cannot accept more requests.
	ErrCommitQueueFull = errors.New("commit queue full")
)
