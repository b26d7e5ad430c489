// Package strategy provides built-in partition assignment strategies for the
// AssignPartitions extension point.
//
// Three strategies are included:
//
//   - Range: contiguous per-topic blocks, one block per member (stable,
//     locality-friendly)
//   - RoundRobin: even interleaved distribution across members
//   - ConsistentHash: hash-ring placement with virtual nodes, minimizing
//     partition movement when the member set changes
//
// All strategies are deterministic: the same member list and partition list
// always produce the same plan. Custom strategies can be implemented by
// satisfying the types.PartitionAssigner interface.
package strategy
