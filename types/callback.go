package types

// HandleResult is the disposition returned by a message callback. It drives
// what the worker does after the callback returns.
type HandleResult int

const (
	// ResultContinue means the message was taken but progress is not yet
	// acknowledged; the integrator will ack asynchronously later (manual
	// flow control).
	ResultContinue HandleResult = iota

	// ResultAck acknowledges progress up to the handled offset. This is a
	// local flow-control signal only; nothing is sent to the coordinator.
	ResultAck

	// ResultCommit acknowledges progress and additionally requests a durable
	// commit from the group coordinator, stamped with the current generation.
	ResultCommit
)

// String returns the string representation of the result.
func (r HandleResult) String() string {
	switch r {
	case ResultContinue:
		return "continue"
	case ResultAck:
		return "ack"
	case ResultCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// CommitFunc requests a durable commit of progress up to offset for the
// partition the function is bound to. It re-enters the owning subscriber's
// commit path and returns an error only when the subscriber is not running.
type CommitFunc func(offset int64) error

// AckFunc signals locally acknowledged progress up to offset for the
// partition the function is bound to.
type AckFunc func(offset int64) error

// InitInfo carries the per-partition context handed to a callback's Init.
type InitInfo struct {
	// GroupID is the consumer group identifier.
	GroupID string

	// Topic and Partition identify the partition this callback instance
	// serves.
	Topic     string
	Partition int32

	// Commit is bound to (Topic, Partition) and may be retained by the
	// callback to commit progress from outside HandleMessage.
	Commit CommitFunc
}

// MessageCallback is the pluggable per-partition processing strategy
// implemented by integrators.
//
// A fresh callback state is initialized for every worker start; state never
// survives a revocation. Implementations are invoked from a single worker
// goroutine and need no internal synchronization unless they share data
// across partitions.
type MessageCallback interface {
	// Init creates the initial per-partition state. initData is the opaque
	// payload from SubscriberConfig.InitData. A non-nil error aborts worker
	// startup, which is fatal to the whole subscriber.
	Init(info InitInfo, initData any) (state any, err error)

	// HandleMessage processes a single message and returns the disposition,
	// the updated state, and an error. A non-nil error stops the worker's
	// consumption of the partition.
	HandleMessage(msg Message, state any) (HandleResult, any, error)

	// CommittedOffset reports the callback-managed committed offset, used
	// only when offset tracking is delegated to the callback. Return
	// ok=false when no offset is defined; such partitions are omitted from
	// committed-offset query results.
	CommittedOffset(state any) (offset int64, ok bool)
}

// MessageSetCallback extends MessageCallback with batch-granularity handling.
// Required when SubscriberConfig.MessageType is MessageTypeMessageSet.
type MessageSetCallback interface {
	MessageCallback

	// HandleMessageSet processes a whole fetched batch. Ack/commit
	// dispositions apply to the last offset of the set.
	HandleMessageSet(set MessageSet, state any) (HandleResult, any, error)
}
