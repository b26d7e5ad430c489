package types

import "time"

// Message is a single consumed record from a topic partition.
type Message struct {
	Topic     string    `json:"topic"`
	Partition int32     `json:"partition"`
	Offset    int64     `json:"offset"`
	Key       []byte    `json:"key,omitempty"`
	Value     []byte    `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// TP returns the TopicPartition the message belongs to.
func (m Message) TP() TopicPartition {
	return TopicPartition{Topic: m.Topic, Partition: m.Partition}
}

// MessageSet is a batch of messages fetched from a single partition.
//
// Messages are ordered by ascending offset. HighWaterMark is the offset of
// the next message the source would produce, allowing consumers to estimate
// lag.
type MessageSet struct {
	Topic         string    `json:"topic"`
	Partition     int32     `json:"partition"`
	HighWaterMark int64     `json:"high_water_mark"`
	Messages      []Message `json:"messages"`
}

// LastOffset returns the offset of the last message in the set, or
// (0, false) when the set is empty.
func (s MessageSet) LastOffset() (int64, bool) {
	if len(s.Messages) == 0 {
		return 0, false
	}

	return s.Messages[len(s.Messages)-1].Offset, true
}

// MessageType selects the granularity at which the message callback is
// invoked by a worker.
type MessageType int

const (
	// MessageTypeMessage delivers one Message per callback invocation.
	// This is the default.
	MessageTypeMessage MessageType = iota

	// MessageTypeMessageSet delivers a whole fetched batch per invocation.
	// Requires the callback to implement MessageSetCallback.
	MessageTypeMessageSet
)

// String returns the string representation of the message type.
func (mt MessageType) String() string {
	switch mt {
	case MessageTypeMessage:
		return "message"
	case MessageTypeMessageSet:
		return "message_set"
	default:
		return "unknown"
	}
}
