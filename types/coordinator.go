package types

import (
	"context"
	"time"
)

// GroupMember is the coordinator-facing surface of a subscriber. The group
// coordinator invokes these entry points to drive assignment lifecycle and to
// query progress; the subscriber implements them.
type GroupMember interface {
	// AssignmentsReceived delivers a new set of partition assignments
	// together with the member identity and the generation issued for it.
	// Must not block waiting on worker readiness.
	AssignmentsReceived(memberID string, generation int32, assignments []PartitionAssignment)

	// AssignmentsRevoked requests synchronous release of all owned
	// partitions. It returns only after every worker has observably stopped,
	// because the coordination protocol cannot rejoin while partitions are
	// still owned.
	AssignmentsRevoked(ctx context.Context) error

	// CommittedOffsets reports callback-managed committed offsets for the
	// requested partitions. Partitions without a live worker or without a
	// defined offset are omitted.
	CommittedOffsets(ctx context.Context, tps []TopicPartition) ([]OffsetCommit, error)

	// AssignPartitions produces an assignment plan under a custom assignment
	// strategy. Members without a configured strategy fail loudly with
	// ErrNotImplemented; the default coordination path never calls this.
	AssignPartitions(members []string, tps []TopicPartition) (map[string][]TopicPartition, error)
}

// GroupCoordinator is the external group-coordination collaborator. It issues
// assignment and revocation notifications carrying a monotonically increasing
// generation, and accepts asynchronous commit requests.
type GroupCoordinator interface {
	// Start joins the group and begins delivering coordination events to the
	// member.
	Start(ctx context.Context, member GroupMember) error

	// CommitOffset accepts a durable-progress request. Implementations must
	// not block the caller; persistence happens asynchronously and requests
	// carrying a stale generation are discarded by the coordinator.
	CommitOffset(req CommitRequest) error

	// Stop leaves the group, revoking the member's assignments first.
	Stop(ctx context.Context) error
}

// PartitionAssigner is the optional custom partition-assignment strategy
// extension point, installed on a subscriber via brod.WithPartitionAssigner.
type PartitionAssigner interface {
	// Assign distributes the given partitions across the given member IDs
	// and returns the plan. Every partition must appear in exactly one
	// member's list.
	Assign(members []string, tps []TopicPartition) (map[string][]TopicPartition, error)
}

// GroupConfig is the optional group-coordination tuning passed through from
// SubscriberConfig to the coordinator implementation.
type GroupConfig struct {
	// SessionTimeout is how long the coordinator waits before considering
	// this member dead.
	SessionTimeout time.Duration `yaml:"sessionTimeout"`

	// RebalanceTimeout bounds how long a revocation may take before the
	// member is evicted from the group.
	RebalanceTimeout time.Duration `yaml:"rebalanceTimeout"`

	// PartitionsPerTopic is the partition count assumed for each subscribed
	// topic by coordinator implementations that do not discover topology.
	// Defaults to 1.
	PartitionsPerTopic int32 `yaml:"partitionsPerTopic"`
}
