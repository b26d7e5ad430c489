package source

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/escobera/brod/internal/logging"
	"github.com/escobera/brod/types"
)

// Header carrying the message key on partitioned subjects.
const keyHeader = "Brod-Key"

// JetStreamConfig tunes the JetStream-backed message source.
type JetStreamConfig struct {
	// StreamName maps a topic to its backing stream. Defaults to the
	// identity mapping (stream named after the topic).
	StreamName func(topic string) string

	// FetchMaxWait bounds how long a single Fetch waits for messages.
	// Defaults to 5s.
	FetchMaxWait time.Duration

	// Logger for consumer lifecycle events. Defaults to a no-op logger.
	Logger types.Logger
}

// JetStream reads partitioned subjects ("<topic>.<partition>") from
// JetStream streams. Message offsets are stream sequence numbers, so offsets
// of a partition are monotonically increasing but not necessarily
// contiguous.
//
// A cursor (ordered consumer) is cached per (topic, partition) and recreated
// whenever a Fetch asks for an offset other than the cursor's next expected
// one.
type JetStream struct {
	js     jetstream.JetStream
	cfg    JetStreamConfig
	logger types.Logger

	mu      sync.Mutex
	cursors map[types.TopicPartition]*cursor
	closed  bool
}

type cursor struct {
	cons jetstream.Consumer
	next int64 // offset the next Fetch is expected to start at
}

// NewJetStream creates a JetStream message source on the given connection.
//
// Parameters:
//   - conn: NATS connection (must be non-nil)
//   - cfg: Source tuning; zero values select defaults
//
// Returns:
//   - *JetStream: Initialized source
//   - error: Connection or JetStream context error
func NewJetStream(conn *nats.Conn, cfg JetStreamConfig) (*JetStream, error) {
	if conn == nil {
		return nil, errors.New("NATS connection is required")
	}
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return NewJetStreamJS(js, cfg), nil
}

// NewJetStreamJS creates a JetStream message source from a pre-initialized
// JetStream context. Useful when the caller already owns one.
func NewJetStreamJS(js jetstream.JetStream, cfg JetStreamConfig) *JetStream {
	if cfg.StreamName == nil {
		cfg.StreamName = func(topic string) string { return topic }
	}
	if cfg.FetchMaxWait <= 0 {
		cfg.FetchMaxWait = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &JetStream{
		js:      js,
		cfg:     cfg,
		logger:  logger,
		cursors: make(map[types.TopicPartition]*cursor),
	}
}

// PartitionSubject returns the subject messages of a partition are published
// on.
func PartitionSubject(topic string, partition int32) string {
	return fmt.Sprintf("%s.%d", topic, partition)
}

// EnsureStream creates (or updates) the backing stream for a topic, covering
// all of its partition subjects.
//
// Parameters:
//   - ctx: Context for the JetStream API call
//   - topic: Topic whose stream to create
//
// Returns:
//   - error: JetStream API failure
func (s *JetStream) EnsureStream(ctx context.Context, topic string) error {
	_, err := s.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     s.cfg.StreamName(topic),
		Subjects: []string{topic + ".*"},
		Storage:  jetstream.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("failed to ensure stream for topic %s: %w", topic, err)
	}

	return nil
}

// Publish appends a message to a partition and returns its offset (the
// stream sequence assigned by the server).
func (s *JetStream) Publish(ctx context.Context, topic string, partition int32, key, value []byte) (int64, error) {
	msg := nats.NewMsg(PartitionSubject(topic, partition))
	msg.Data = value
	if len(key) > 0 {
		msg.Header.Set(keyHeader, string(key))
	}

	ack, err := s.js.PublishMsg(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("failed to publish to %s-%d: %w", topic, partition, err)
	}

	return int64(ack.Sequence), nil //nolint:gosec // stream sequences fit int64
}

// Fetch implements types.MessageSource. The batch wait is bounded by both
// FetchMaxWait and the context deadline, whichever comes first.
func (s *JetStream) Fetch(ctx context.Context, topic string, partition int32, offset int64, max int) (types.MessageSet, error) {
	if err := ctx.Err(); err != nil {
		return types.MessageSet{}, err
	}
	tp := types.TopicPartition{Topic: topic, Partition: partition}

	cur, err := s.cursorFor(ctx, tp, offset)
	if err != nil {
		return types.MessageSet{}, err
	}

	maxWait := s.cfg.FetchMaxWait
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < maxWait {
			maxWait = remaining
		}
	}
	if maxWait <= 0 {
		return types.MessageSet{}, context.DeadlineExceeded
	}

	batch, err := cur.cons.Fetch(max, jetstream.FetchMaxWait(maxWait))
	if err != nil {
		s.dropCursor(tp)

		return types.MessageSet{}, fmt.Errorf("fetch failed for %s: %w", tp, err)
	}

	set := types.MessageSet{Topic: topic, Partition: partition}
	for msg := range batch.Messages() {
		meta, err := msg.Metadata()
		if err != nil {
			s.dropCursor(tp)

			return types.MessageSet{}, fmt.Errorf("missing metadata on message from %s: %w", tp, err)
		}

		seq := int64(meta.Sequence.Stream) //nolint:gosec // stream sequences fit int64
		set.Messages = append(set.Messages, types.Message{
			Topic:     topic,
			Partition: partition,
			Offset:    seq,
			Key:       []byte(msg.Headers().Get(keyHeader)),
			Value:     msg.Data(),
			Timestamp: meta.Timestamp,
		})
		set.HighWaterMark = seq + int64(meta.NumPending) //nolint:gosec // pending counts fit int64
	}
	if err := batch.Error(); err != nil {
		s.dropCursor(tp)

		return types.MessageSet{}, fmt.Errorf("fetch failed for %s: %w", tp, err)
	}

	if last, ok := set.LastOffset(); ok {
		s.advanceCursor(tp, cur, last+1)
	}

	return set, nil
}

// cursorFor returns the cached cursor when it is positioned at offset,
// otherwise replaces it with a fresh ordered consumer starting there.
func (s *JetStream) cursorFor(ctx context.Context, tp types.TopicPartition, offset int64) (*cursor, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return nil, errors.New("source is closed")
	}
	if cur, ok := s.cursors[tp]; ok && cur.next == offset {
		s.mu.Unlock()

		return cur, nil
	}
	s.mu.Unlock()

	cfg := jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{PartitionSubject(tp.Topic, tp.Partition)},
	}
	if offset > 0 {
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = uint64(offset) //nolint:gosec // offsets are non-negative here
	} else {
		cfg.DeliverPolicy = jetstream.DeliverAllPolicy
	}

	cons, err := s.js.OrderedConsumer(ctx, s.cfg.StreamName(tp.Topic), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer for %s: %w", tp, err)
	}

	cur := &cursor{cons: cons, next: offset}
	s.mu.Lock()
	s.cursors[tp] = cur
	s.mu.Unlock()

	s.logger.Debug("cursor created",
		"topic", tp.Topic,
		"partition", tp.Partition,
		"offset", offset,
	)

	return cur, nil
}

func (s *JetStream) advanceCursor(tp types.TopicPartition, cur *cursor, next int64) {
	s.mu.Lock()
	if s.cursors[tp] == cur {
		cur.next = next
	}
	s.mu.Unlock()
}

func (s *JetStream) dropCursor(tp types.TopicPartition) {
	s.mu.Lock()
	delete(s.cursors, tp)
	s.mu.Unlock()
}

// Close implements types.MessageSource. Cached cursors are discarded; the
// underlying connection is owned by the caller and left open.
func (s *JetStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.cursors = make(map[types.TopicPartition]*cursor)
	s.mu.Unlock()

	return nil
}
