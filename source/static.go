package source

import (
	"context"
	"sync"
	"time"

	"github.com/escobera/brod/types"
)

// Static is an in-memory message source. Offsets are assigned sequentially
// per (topic, partition) starting at zero.
//
// Fetch blocks until at least one message at or past the requested offset
// exists, which makes Static convenient for driving workers in tests without
// polling.
type Static struct {
	mu     sync.Mutex
	logs   map[types.TopicPartition][]types.Message
	waitCh chan struct{}
	closed bool
}

// NewStatic creates an empty in-memory source.
func NewStatic() *Static {
	return &Static{
		logs:   make(map[types.TopicPartition][]types.Message),
		waitCh: make(chan struct{}),
	}
}

// Append adds a message to the partition's log and returns its offset.
func (s *Static) Append(topic string, partition int32, key, value []byte) int64 {
	tp := types.TopicPartition{Topic: topic, Partition: partition}

	s.mu.Lock()
	offset := int64(len(s.logs[tp]))
	s.logs[tp] = append(s.logs[tp], types.Message{
		Topic:     topic,
		Partition: partition,
		Offset:    offset,
		Key:       key,
		Value:     value,
		Timestamp: time.Now(),
	})
	// Wake all pending fetches.
	close(s.waitCh)
	s.waitCh = make(chan struct{})
	s.mu.Unlock()

	return offset
}

// AppendValues adds a batch of key-less messages and returns the offset of
// the last one.
func (s *Static) AppendValues(topic string, partition int32, values ...[]byte) int64 {
	var last int64
	for _, v := range values {
		last = s.Append(topic, partition, nil, v)
	}

	return last
}

// Fetch implements types.MessageSource. It blocks until data is available at
// or past offset, then returns up to max messages.
func (s *Static) Fetch(ctx context.Context, topic string, partition int32, offset int64, max int) (types.MessageSet, error) {
	tp := types.TopicPartition{Topic: topic, Partition: partition}

	for {
		s.mu.Lock()
		log := s.logs[tp]
		hwm := int64(len(log))
		wait := s.waitCh
		s.mu.Unlock()

		if offset < hwm {
			start := offset
			if start < 0 {
				start = 0
			}
			end := start + int64(max)
			if end > hwm {
				end = hwm
			}
			msgs := make([]types.Message, end-start)
			copy(msgs, log[start:end])

			return types.MessageSet{
				Topic:         topic,
				Partition:     partition,
				HighWaterMark: hwm,
				Messages:      msgs,
			}, nil
		}

		select {
		case <-wait:
		case <-ctx.Done():
			return types.MessageSet{}, ctx.Err()
		}
	}
}

// Close implements types.MessageSource.
func (s *Static) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.waitCh)
		s.waitCh = make(chan struct{})
	}

	return nil
}
