package testing

import (
	"context"
	"slices"
	"sync"

	"github.com/escobera/brod/types"
)

// RecordingCoordinator is an in-process fake group coordinator for tests.
//
// It records every commit request it receives and exposes drivers for
// delivering assignment and revocation events to the registered member, so
// tests control the coordination protocol deterministically.
type RecordingCoordinator struct {
	mu      sync.Mutex
	member  types.GroupMember
	commits []types.CommitRequest
	started bool

	// CommitErr, when non-nil, is returned by every CommitOffset call.
	CommitErr error
}

var _ types.GroupCoordinator = (*RecordingCoordinator)(nil)

// NewRecordingCoordinator creates an empty recording coordinator.
func NewRecordingCoordinator() *RecordingCoordinator {
	return &RecordingCoordinator{}
}

// Start implements types.GroupCoordinator. It registers the member and
// delivers nothing; tests drive assignments via DeliverAssignments.
func (c *RecordingCoordinator) Start(_ context.Context, member types.GroupMember) error {
	c.mu.Lock()
	c.member = member
	c.started = true
	c.mu.Unlock()

	return nil
}

// CommitOffset implements types.GroupCoordinator, recording the request.
func (c *RecordingCoordinator) CommitOffset(req types.CommitRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.CommitErr != nil {
		return c.CommitErr
	}
	c.commits = append(c.commits, req)

	return nil
}

// Stop implements types.GroupCoordinator. It revokes the member's
// assignments, mirroring a graceful group leave.
func (c *RecordingCoordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	member := c.member
	c.started = false
	c.mu.Unlock()

	if member == nil {
		return nil
	}

	return member.AssignmentsRevoked(ctx)
}

// DeliverAssignments pushes an assignment event to the registered member.
func (c *RecordingCoordinator) DeliverAssignments(memberID string, generation int32, assignments []types.PartitionAssignment) {
	c.mu.Lock()
	member := c.member
	c.mu.Unlock()

	if member != nil {
		member.AssignmentsReceived(memberID, generation, assignments)
	}
}

// Revoke pushes a revocation to the registered member and blocks until the
// member reports completion.
func (c *RecordingCoordinator) Revoke(ctx context.Context) error {
	c.mu.Lock()
	member := c.member
	c.mu.Unlock()

	if member == nil {
		return nil
	}

	return member.AssignmentsRevoked(ctx)
}

// QueryOffsets asks the registered member for its callback-managed offsets.
func (c *RecordingCoordinator) QueryOffsets(ctx context.Context, tps []types.TopicPartition) ([]types.OffsetCommit, error) {
	c.mu.Lock()
	member := c.member
	c.mu.Unlock()

	if member == nil {
		return nil, nil
	}

	return member.CommittedOffsets(ctx, tps)
}

// Commits returns a snapshot of every recorded commit request, in arrival
// order.
func (c *RecordingCoordinator) Commits() []types.CommitRequest {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.commits)
}

// LastCommit returns the most recent commit request, if any.
func (c *RecordingCoordinator) LastCommit() (types.CommitRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.commits) == 0 {
		return types.CommitRequest{}, false
	}

	return c.commits[len(c.commits)-1], true
}
