package strategy

import (
	"fmt"
	"slices"
	"sort"

	"github.com/zeebo/xxh3"

	"github.com/escobera/brod/types"
)

// ConsistentHash implements hash-ring assignment with virtual nodes.
type ConsistentHash struct {
	virtualNodes int
	hashSeed     uint64
}

var _ types.PartitionAssigner = (*ConsistentHash)(nil)

// ConsistentHashOption configures a ConsistentHash strategy.
type ConsistentHashOption func(*ConsistentHash)

// NewConsistentHash creates a new consistent hash strategy.
//
// Each member contributes virtualNodes points to a hash ring; a partition is
// assigned to the member owning the first ring point at or after the
// partition's hash. When the member set changes, only the partitions whose
// ring segment moved are reassigned, so most partitions stay with their
// previous owner.
//
// Parameters:
//   - opts: Optional configuration (WithVirtualNodes, WithHashSeed)
//
// Returns:
//   - *ConsistentHash: Initialized consistent hash strategy
//
// Example:
//
//	assigner := strategy.NewConsistentHash(strategy.WithVirtualNodes(300))
//	sub, err := brod.New(cfg, brod.WithPartitionAssigner(assigner))
func NewConsistentHash(opts ...ConsistentHashOption) *ConsistentHash {
	ch := &ConsistentHash{
		virtualNodes: 150,
		hashSeed:     0,
	}
	for _, opt := range opts {
		opt(ch)
	}

	return ch
}

// WithVirtualNodes sets the number of ring points per member.
//
// Higher values give a more even distribution at the cost of ring size.
// Recommended range: 100-300 (default: 150).
func WithVirtualNodes(nodes int) ConsistentHashOption {
	return func(ch *ConsistentHash) {
		if nodes > 0 {
			ch.virtualNodes = nodes
		}
	}
}

// WithHashSeed sets the seed mixed into every hash, letting two rings over
// the same members disagree on placement.
func WithHashSeed(seed uint64) ConsistentHashOption {
	return func(ch *ConsistentHash) {
		ch.hashSeed = seed
	}
}

// ringPoint is one virtual node on the hash ring.
type ringPoint struct {
	hash   uint64
	member string
}

// Assign calculates partition assignments by hash-ring placement.
//
// Parameters:
//   - members: List of member IDs
//   - tps: List of partitions to assign
//
// Returns:
//   - map[string][]types.TopicPartition: Plan from member ID to partitions
//   - error: ErrNoMembers when the member list is empty
func (ch *ConsistentHash) Assign(members []string, tps []types.TopicPartition) (map[string][]types.TopicPartition, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}

	ring := ch.buildRing(members)

	plan := make(map[string][]types.TopicPartition, len(members))
	for _, m := range members {
		plan[m] = []types.TopicPartition{}
	}

	sortedTPs := slices.Clone(tps)
	slices.SortFunc(sortedTPs, types.TopicPartition.Compare)

	for _, tp := range sortedTPs {
		h := xxh3.HashSeed([]byte(tp.String()), ch.hashSeed)
		idx := sort.Search(len(ring), func(i int) bool { return ring[i].hash >= h })
		if idx == len(ring) {
			idx = 0 // wrap around
		}
		m := ring[idx].member
		plan[m] = append(plan[m], tp)
	}

	return plan, nil
}

// buildRing places every member's virtual nodes on the ring, sorted by hash.
// Hash ties are broken by member ID so the ring is deterministic.
func (ch *ConsistentHash) buildRing(members []string) []ringPoint {
	ring := make([]ringPoint, 0, len(members)*ch.virtualNodes)
	for _, m := range members {
		for v := 0; v < ch.virtualNodes; v++ {
			key := fmt.Sprintf("%s#%d", m, v)
			ring = append(ring, ringPoint{
				hash:   xxh3.HashSeed([]byte(key), ch.hashSeed),
				member: m,
			})
		}
	}
	slices.SortFunc(ring, func(a, b ringPoint) int {
		if a.hash != b.hash {
			if a.hash < b.hash {
				return -1
			}

			return 1
		}
		if a.member < b.member {
			return -1
		}
		if a.member > b.member {
			return 1
		}

		return 0
	})

	return ring
}
