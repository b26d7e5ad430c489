package strategy

import (
	"slices"

	"github.com/escobera/brod/types"
)

// RoundRobin implements simple round-robin partition assignment.
type RoundRobin struct{}

var _ types.PartitionAssigner = (*RoundRobin)(nil)

// NewRoundRobin creates a new round-robin strategy.
//
// The strategy interleaves partitions evenly across members. Distribution is
// maximally even but a member-set change reshuffles most partitions.
//
// Returns:
//   - *RoundRobin: Initialized round-robin strategy
func NewRoundRobin() *RoundRobin {
	return &RoundRobin{}
}

// Assign calculates partition assignments using round-robin distribution.
//
// Members and partitions are sorted first, so the plan is deterministic for
// a given input regardless of ordering.
//
// Parameters:
//   - members: List of member IDs
//   - tps: List of partitions to assign
//
// Returns:
//   - map[string][]types.TopicPartition: Plan from member ID to partitions
//   - error: ErrNoMembers when the member list is empty
func (rr *RoundRobin) Assign(members []string, tps []types.TopicPartition) (map[string][]types.TopicPartition, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}

	sortedMembers := slices.Clone(members)
	slices.Sort(sortedMembers)
	sortedTPs := slices.Clone(tps)
	slices.SortFunc(sortedTPs, types.TopicPartition.Compare)

	plan := make(map[string][]types.TopicPartition, len(sortedMembers))
	for _, m := range sortedMembers {
		plan[m] = []types.TopicPartition{}
	}

	for i, tp := range sortedTPs {
		m := sortedMembers[i%len(sortedMembers)]
		plan[m] = append(plan[m], tp)
	}

	return plan, nil
}
