package types

import "fmt"

// GenerationNone is the generation value used before the first assignment is
// received from the group coordinator. Every assignment event carries a valid
// (non-negative) generation issued by the coordination protocol.
const GenerationNone int32 = -1

// TopicPartition identifies a single partition of a topic. It is the key used
// to index workers and tracked offsets.
type TopicPartition struct {
	// Topic is the topic name.
	Topic string `json:"topic"`

	// Partition is the zero-based partition index within the topic.
	Partition int32 `json:"partition"`
}

// String returns the canonical "<topic>-<partition>" representation.
func (tp TopicPartition) String() string {
	return fmt.Sprintf("%s-%d", tp.Topic, tp.Partition)
}

// Compare performs a lexicographic comparison on (Topic, Partition).
//
// Returns:
//   - int: -1 if tp < other, 0 if equal, +1 if tp > other
func (tp TopicPartition) Compare(other TopicPartition) int {
	if tp.Topic != other.Topic {
		if tp.Topic < other.Topic {
			return -1
		}

		return 1
	}
	if tp.Partition == other.Partition {
		return 0
	}
	if tp.Partition < other.Partition {
		return -1
	}

	return 1
}

// PartitionAssignment is a single entry of an assignment event: a partition
// handed to this member together with the offset consumption should begin at.
type PartitionAssignment struct {
	TopicPartition

	// BeginOffset is the first offset the worker for this partition should
	// consume. Zero means the start of the partition.
	BeginOffset int64 `json:"begin_offset"`
}

// CommitRequest is the fire-and-forget durable-progress request sent to the
// group coordinator. The subscriber stamps Generation with the value current
// at the moment the commit is processed; the coordinator is responsible for
// detecting and discarding requests carrying a stale generation.
type CommitRequest struct {
	Topic      string `json:"topic"`
	Partition  int32  `json:"partition"`
	Offset     int64  `json:"offset"`
	Generation int32  `json:"generation"`
}

// Key returns the TopicPartition the request refers to.
func (r CommitRequest) Key() TopicPartition {
	return TopicPartition{Topic: r.Topic, Partition: r.Partition}
}

// OffsetCommit is one entry of a committed-offsets query result.
type OffsetCommit struct {
	TopicPartition

	// Offset is the committed offset reported by the partition's callback.
	Offset int64 `json:"offset"`
}
