package strategy

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/escobera/brod/types"
)

func partitions(topic string, n int) []types.TopicPartition {
	tps := make([]types.TopicPartition, n)
	for i := range tps {
		tps[i] = types.TopicPartition{Topic: topic, Partition: int32(i)}
	}

	return tps
}

func planSize(plan map[string][]types.TopicPartition) int {
	total := 0
	for _, tps := range plan {
		total += len(tps)
	}

	return total
}

func TestStrategies_NoMembers(t *testing.T) {
	assigners := map[string]types.PartitionAssigner{
		"Range":          NewRange(),
		"RoundRobin":     NewRoundRobin(),
		"ConsistentHash": NewConsistentHash(),
	}

	for name, assigner := range assigners {
		t.Run(name, func(t *testing.T) {
			_, err := assigner.Assign(nil, partitions("orders", 4))
			require.ErrorIs(t, err, ErrNoMembers)
		})
	}
}

func TestStrategies_SingleMemberGetsEverything(t *testing.T) {
	assigners := map[string]types.PartitionAssigner{
		"Range":          NewRange(),
		"RoundRobin":     NewRoundRobin(),
		"ConsistentHash": NewConsistentHash(),
	}

	for name, assigner := range assigners {
		t.Run(name, func(t *testing.T) {
			plan, err := assigner.Assign([]string{"m1"}, partitions("orders", 5))
			require.NoError(t, err)
			require.Len(t, plan["m1"], 5)
		})
	}
}

func TestStrategies_EveryPartitionAssignedExactlyOnce(t *testing.T) {
	assigners := map[string]types.PartitionAssigner{
		"Range":          NewRange(),
		"RoundRobin":     NewRoundRobin(),
		"ConsistentHash": NewConsistentHash(),
	}
	members := []string{"m1", "m2", "m3"}
	tps := append(partitions("orders", 7), partitions("payments", 3)...)

	for name, assigner := range assigners {
		t.Run(name, func(t *testing.T) {
			plan, err := assigner.Assign(members, tps)
			require.NoError(t, err)
			require.Equal(t, len(tps), planSize(plan))

			seen := make(map[types.TopicPartition]bool)
			for _, assigned := range plan {
				for _, tp := range assigned {
					require.False(t, seen[tp], "partition %s assigned twice", tp)
					seen[tp] = true
				}
			}
		})
	}
}

func TestRoundRobin_EvenDistribution(t *testing.T) {
	plan, err := NewRoundRobin().Assign([]string{"m1", "m2"}, partitions("orders", 6))
	require.NoError(t, err)
	require.Len(t, plan["m1"], 3)
	require.Len(t, plan["m2"], 3)
}

func TestRoundRobin_DeterministicRegardlessOfOrder(t *testing.T) {
	tps := partitions("orders", 5)

	plan1, err := NewRoundRobin().Assign([]string{"m2", "m1"}, tps)
	require.NoError(t, err)
	plan2, err := NewRoundRobin().Assign([]string{"m1", "m2"}, []types.TopicPartition{tps[4], tps[2], tps[0], tps[3], tps[1]})
	require.NoError(t, err)

	require.Equal(t, plan1, plan2)
}

func TestRange_ContiguousBlocksPerTopic(t *testing.T) {
	plan, err := NewRange().Assign([]string{"m1", "m2"}, partitions("orders", 5))
	require.NoError(t, err)

	// The first member absorbs the remainder.
	require.Len(t, plan["m1"], 3)
	require.Len(t, plan["m2"], 2)

	// Blocks are contiguous.
	for _, assigned := range plan {
		for i := 1; i < len(assigned); i++ {
			require.Equal(t, assigned[i-1].Partition+1, assigned[i].Partition)
		}
	}
}

func TestRange_MultiTopic(t *testing.T) {
	tps := append(partitions("orders", 4), partitions("payments", 2)...)
	plan, err := NewRange().Assign([]string{"m1", "m2"}, tps)
	require.NoError(t, err)

	// Each topic is split independently: 2+2 orders, 1+1 payments.
	require.Len(t, plan["m1"], 3)
	require.Len(t, plan["m2"], 3)
}

func TestConsistentHash_StableAcrossMemberChanges(t *testing.T) {
	tps := partitions("orders", 64)
	members := []string{"m1", "m2", "m3", "m4"}

	before, err := NewConsistentHash().Assign(members, tps)
	require.NoError(t, err)
	after, err := NewConsistentHash().Assign(members[:3], tps)
	require.NoError(t, err)

	owner := func(plan map[string][]types.TopicPartition) map[types.TopicPartition]string {
		out := make(map[types.TopicPartition]string)
		for m, assigned := range plan {
			for _, tp := range assigned {
				out[tp] = m
			}
		}

		return out
	}

	beforeOwner := owner(before)
	afterOwner := owner(after)

	// Removing one of four members should move roughly a quarter of the
	// partitions; well over half must stay put.
	stayed := 0
	for tp, m := range beforeOwner {
		if afterOwner[tp] == m {
			stayed++
		}
	}
	require.Greater(t, stayed, len(tps)/2, "expected most partitions to keep their owner")
}

func TestConsistentHash_DeterministicForSeed(t *testing.T) {
	tps := partitions("orders", 16)
	members := []string{"m1", "m2"}

	plan1, err := NewConsistentHash(WithHashSeed(7)).Assign(members, tps)
	require.NoError(t, err)
	plan2, err := NewConsistentHash(WithHashSeed(7)).Assign(members, tps)
	require.NoError(t, err)
	require.Equal(t, plan1, plan2)
}

func TestConsistentHash_ManyMembersCoverage(t *testing.T) {
	tps := partitions("orders", 256)
	members := make([]string, 8)
	for i := range members {
		members[i] = fmt.Sprintf("member-%d", i)
	}

	plan, err := NewConsistentHash().Assign(members, tps)
	require.NoError(t, err)
	require.Equal(t, len(tps), planSize(plan))

	// With virtual nodes every member should own something.
	for _, m := range members {
		require.NotEmpty(t, plan[m], "member %s received no partitions", m)
	}
}
