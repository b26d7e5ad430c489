package strategy

import (
	"slices"

	"github.com/escobera/brod/types"
)

// Range implements per-topic contiguous-block assignment.
type Range struct{}

var _ types.PartitionAssigner = (*Range)(nil)

// NewRange creates a new range strategy.
//
// For each topic, the partition list is split into contiguous blocks, one
// block per member in sorted member order. Members earlier in the order
// absorb the remainder when partitions do not divide evenly. Contiguous
// blocks keep a member's partitions of one topic adjacent, which helps
// callbacks that aggregate across neighboring partitions.
//
// Returns:
//   - *Range: Initialized range strategy
func NewRange() *Range {
	return &Range{}
}

// Assign calculates per-topic contiguous partition blocks.
//
// Parameters:
//   - members: List of member IDs
//   - tps: List of partitions to assign
//
// Returns:
//   - map[string][]types.TopicPartition: Plan from member ID to partitions
//   - error: ErrNoMembers when the member list is empty
func (r *Range) Assign(members []string, tps []types.TopicPartition) (map[string][]types.TopicPartition, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}

	sortedMembers := slices.Clone(members)
	slices.Sort(sortedMembers)

	// Group partitions per topic, each group sorted by partition number.
	byTopic := make(map[string][]types.TopicPartition)
	topics := make([]string, 0)
	for _, tp := range tps {
		if _, ok := byTopic[tp.Topic]; !ok {
			topics = append(topics, tp.Topic)
		}
		byTopic[tp.Topic] = append(byTopic[tp.Topic], tp)
	}
	slices.Sort(topics)

	plan := make(map[string][]types.TopicPartition, len(sortedMembers))
	for _, m := range sortedMembers {
		plan[m] = []types.TopicPartition{}
	}

	n := len(sortedMembers)
	for _, topic := range topics {
		parts := byTopic[topic]
		slices.SortFunc(parts, types.TopicPartition.Compare)

		per := len(parts) / n
		extra := len(parts) % n

		idx := 0
		for i, m := range sortedMembers {
			take := per
			if i < extra {
				take++
			}
			plan[m] = append(plan[m], parts[idx:idx+take]...)
			idx += take
		}
	}

	return plan, nil
}
