package types

// MetricsCollector defines methods for recording operational metrics.
//
// Implementations should be non-blocking and handle failures gracefully.
// All methods are called from the subscriber's actor goroutine and from
// worker goroutines, and must be thread-safe.
type MetricsCollector interface {
	SubscriberMetrics
	ProgressMetrics
}

// SubscriberMetrics defines metrics for subscriber lifecycle operations.
type SubscriberMetrics interface {
	// RecordStateTransition records a subscriber state transition event.
	RecordStateTransition(from, to State)

	// RecordAssignmentsReceived records an assignment event.
	//
	// Parameters:
	//   - generation: Generation issued with the event
	//   - partitions: Number of partitions in the event
	RecordAssignmentsReceived(generation int32, partitions int)

	// RecordRevocation records a full revocation.
	//
	// Parameters:
	//   - workers: Number of workers stopped
	RecordRevocation(workers int)

	// RecordWorkerStarted records a worker start for a partition.
	RecordWorkerStarted(tp TopicPartition)

	// RecordWorkerStopped records a worker stop for a partition.
	RecordWorkerStopped(tp TopicPartition)
}

// ProgressMetrics defines metrics for the ack/commit protocol.
type ProgressMetrics interface {
	// RecordAck records a processed local acknowledgment.
	RecordAck(tp TopicPartition, offset int64)

	// RecordCommit records a commit request sent to the coordinator.
	RecordCommit(tp TopicPartition, offset int64, generation int32)

	// RecordUnknownPartition records an ack/commit rejected because no live
	// worker exists for the partition.
	//
	// Parameters:
	//   - op: "ack" or "commit"
	RecordUnknownPartition(op string, tp TopicPartition)
}
