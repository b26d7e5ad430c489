package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/escobera/brod/internal/logging"
	"github.com/escobera/brod/types"
)

const (
	bucketPrefix     = "brod-group-"
	generationKey    = "generation"
	offsetKeyPrefix  = "offset"
	defaultQueueSize = 128
)

// Config configures the reference coordinator.
type Config struct {
	// GroupID is the consumer group identifier. Required.
	GroupID string

	// Topics is the non-empty list of subscribed topics. Required.
	Topics []string

	// Group carries partition-count and timing tuning.
	Group types.GroupConfig

	// CommitQueueSize bounds the asynchronous commit queue. Defaults to 128.
	CommitQueueSize int

	// Logger for coordination events. Defaults to a no-op logger.
	Logger types.Logger
}

// Coordinator is a single-member group coordinator persisting generation and
// committed offsets in a JetStream KV bucket. It implements
// types.GroupCoordinator.
type Coordinator struct {
	js     jetstream.JetStream
	cfg    Config
	logger types.Logger

	mu         sync.Mutex
	kv         jetstream.KeyValue
	member     types.GroupMember
	memberID   string
	generation int32
	started    bool

	commitCh chan types.CommitRequest
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a coordinator for the given group on the given connection.
//
// Parameters:
//   - conn: NATS connection (must be non-nil)
//   - cfg: Coordinator configuration (GroupID and Topics required)
//
// Returns:
//   - *Coordinator: Initialized coordinator (not yet started)
//   - error: Validation or JetStream context error
func New(conn *nats.Conn, cfg Config) (*Coordinator, error) {
	if conn == nil {
		return nil, errors.New("NATS connection is required")
	}
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return NewJS(js, cfg)
}

// NewJS creates a coordinator from a pre-initialized JetStream context.
func NewJS(js jetstream.JetStream, cfg Config) (*Coordinator, error) {
	if js == nil {
		return nil, errors.New("JetStream context is required")
	}
	if cfg.GroupID == "" {
		return nil, types.ErrGroupIDRequired
	}
	if len(cfg.Topics) == 0 {
		return nil, types.ErrTopicsRequired
	}
	if cfg.CommitQueueSize <= 0 {
		cfg.CommitQueueSize = defaultQueueSize
	}
	if cfg.Group.PartitionsPerTopic <= 0 {
		cfg.Group.PartitionsPerTopic = 1
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Coordinator{
		js:         js,
		cfg:        cfg,
		logger:     logger,
		generation: types.GenerationNone,
	}, nil
}

// Start joins the group: it opens the group's KV bucket, advances the
// persisted generation, and delivers the full assignment set to the member.
// Assignments resume after each partition's last committed offset.
//
// Parameters:
//   - ctx: Context bounding the join
//   - member: Member surface receiving assignments and revocations
//
// Returns:
//   - error: KV bucket or generation persistence failure
func (c *Coordinator) Start(ctx context.Context, member types.GroupMember) error {
	if member == nil {
		return errors.New("group member is required")
	}

	c.mu.Lock()
	if c.started {
		c.mu.Unlock()

		return types.ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	kv, err := c.ensureBucket(ctx)
	if err != nil {
		return err
	}

	generation, err := c.bumpGeneration(ctx, kv)
	if err != nil {
		return err
	}
	memberID := fmt.Sprintf("%s-member-%d", c.cfg.GroupID, time.Now().UnixNano())

	loopCtx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.kv = kv
	c.member = member
	c.memberID = memberID
	c.generation = generation
	c.commitCh = make(chan types.CommitRequest, c.cfg.CommitQueueSize)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.commitLoop(loopCtx)

	assignments, err := c.buildAssignments(ctx, kv)
	if err != nil {
		cancel()

		return err
	}

	c.logger.Info("group joined",
		"group", c.cfg.GroupID,
		"member_id", memberID,
		"generation", generation,
		"partitions", len(assignments),
	)
	member.AssignmentsReceived(memberID, generation, assignments)

	return nil
}

// Rejoin simulates a rebalance round-trip: the member's assignments are
// revoked, the generation advances, and a fresh assignment set (resuming
// after the latest committed offsets) is delivered.
//
// Parameters:
//   - ctx: Context bounding the revocation and redelivery
//
// Returns:
//   - error: ErrCoordinatorNotStarted, revocation, or persistence failure
func (c *Coordinator) Rejoin(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()

		return types.ErrCoordinatorNotStarted
	}
	member := c.member
	kv := c.kv
	c.mu.Unlock()

	if err := member.AssignmentsRevoked(ctx); err != nil {
		return fmt.Errorf("revocation failed during rejoin: %w", err)
	}

	generation, err := c.bumpGeneration(ctx, kv)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.generation = generation
	memberID := c.memberID
	c.mu.Unlock()

	assignments, err := c.buildAssignments(ctx, kv)
	if err != nil {
		return err
	}

	c.logger.Info("group rejoined",
		"group", c.cfg.GroupID,
		"generation", generation,
		"partitions", len(assignments),
	)
	member.AssignmentsReceived(memberID, generation, assignments)

	return nil
}

// CommitOffset enqueues a commit request for asynchronous persistence.
// Requests carrying a generation older than the coordinator's current one
// are discarded by the commit loop.
//
// Returns:
//   - error: ErrCoordinatorNotStarted or ErrCommitQueueFull; never blocks
func (c *Coordinator) CommitOffset(req types.CommitRequest) error {
	c.mu.Lock()
	started := c.started
	ch := c.commitCh
	c.mu.Unlock()
	if !started || ch == nil {
		return types.ErrCoordinatorNotStarted
	}

	select {
	case ch <- req:
		return nil
	default:
		return types.ErrCommitQueueFull
	}
}

// CommittedOffset reads the durably committed offset for a partition.
//
// Returns:
//   - int64: Committed offset (meaningful only when found)
//   - bool: Whether a commit exists for the partition
//   - error: KV read failure
func (c *Coordinator) CommittedOffset(ctx context.Context, tp types.TopicPartition) (int64, bool, error) {
	c.mu.Lock()
	kv := c.kv
	c.mu.Unlock()
	if kv == nil {
		return 0, false, types.ErrCoordinatorNotStarted
	}

	entry, err := kv.Get(ctx, offsetKey(tp))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("failed to read committed offset for %s: %w", tp, err)
	}

	offset, err := strconv.ParseInt(string(entry.Value()), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt committed offset for %s: %w", tp, err)
	}

	return offset, true, nil
}

// Generation returns the current group generation.
func (c *Coordinator) Generation() int32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.generation
}

// Stop leaves the group: the member's assignments are revoked, then the
// commit loop drains and exits.
//
// Parameters:
//   - ctx: Context bounding revocation and drain
//
// Returns:
//   - error: Revocation failure or ctx.Err()
func (c *Coordinator) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()

		return nil
	}
	c.started = false
	member := c.member
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	var revokeErr error
	if member != nil {
		revokeErr = member.AssignmentsRevoked(ctx)
	}

	if cancel != nil {
		cancel()
	}
	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return revokeErr
}

// commitLoop applies queued commit requests, discarding stale generations.
func (c *Coordinator) commitLoop(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-c.commitCh:
			c.applyCommit(ctx, req)
		}
	}
}

func (c *Coordinator) applyCommit(ctx context.Context, req types.CommitRequest) {
	c.mu.Lock()
	current := c.generation
	kv := c.kv
	c.mu.Unlock()

	if req.Generation != current {
		c.logger.Warn("discarding stale commit",
			"topic", req.Topic,
			"partition", req.Partition,
			"offset", req.Offset,
			"request_generation", req.Generation,
			"current_generation", current,
		)

		return
	}

	key := offsetKey(req.Key())
	if _, err := kv.Put(ctx, key, []byte(strconv.FormatInt(req.Offset, 10))); err != nil {
		c.logger.Error("failed to persist commit",
			"topic", req.Topic,
			"partition", req.Partition,
			"offset", req.Offset,
			"error", err,
		)

		return
	}

	c.logger.Debug("offset committed",
		"topic", req.Topic,
		"partition", req.Partition,
		"offset", req.Offset,
		"generation", req.Generation,
	)
}

// buildAssignments assembles the full assignment set, resuming each
// partition one past its committed offset (or at zero when none exists).
func (c *Coordinator) buildAssignments(ctx context.Context, kv jetstream.KeyValue) ([]types.PartitionAssignment, error) {
	assignments := make([]types.PartitionAssignment, 0, len(c.cfg.Topics)*int(c.cfg.Group.PartitionsPerTopic))
	for _, topic := range c.cfg.Topics {
		for partition := int32(0); partition < c.cfg.Group.PartitionsPerTopic; partition++ {
			tp := types.TopicPartition{Topic: topic, Partition: partition}

			begin := int64(0)
			offset, found, err := c.committedOffsetKV(ctx, kv, tp)
			if err != nil {
				return nil, err
			}
			if found {
				begin = offset + 1
			}

			assignments = append(assignments, types.PartitionAssignment{
				TopicPartition: tp,
				BeginOffset:    begin,
			})
		}
	}

	return assignments, nil
}

func (c *Coordinator) committedOffsetKV(ctx context.Context, kv jetstream.KeyValue, tp types.TopicPartition) (int64, bool, error) {
	entry, err := kv.Get(ctx, offsetKey(tp))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return 0, false, nil
		}

		return 0, false, fmt.Errorf("failed to read committed offset for %s: %w", tp, err)
	}

	offset, err := strconv.ParseInt(string(entry.Value()), 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt committed offset for %s: %w", tp, err)
	}

	return offset, true, nil
}

// bumpGeneration advances and persists the group generation counter.
func (c *Coordinator) bumpGeneration(ctx context.Context, kv jetstream.KeyValue) (int32, error) {
	current := int32(types.GenerationNone)
	entry, err := kv.Get(ctx, generationKey)
	if err == nil {
		v, perr := strconv.ParseInt(string(entry.Value()), 10, 32)
		if perr != nil {
			return 0, fmt.Errorf("corrupt generation counter: %w", perr)
		}
		current = int32(v)
	} else if !errors.Is(err, jetstream.ErrKeyNotFound) {
		return 0, fmt.Errorf("failed to read generation counter: %w", err)
	}

	next := current + 1
	if _, err := kv.Put(ctx, generationKey, []byte(strconv.FormatInt(int64(next), 10))); err != nil {
		return 0, fmt.Errorf("failed to persist generation counter: %w", err)
	}

	return next, nil
}

// ensureBucket creates or opens the group's KV bucket, tolerating the
// create/open race when several processes start at once.
func (c *Coordinator) ensureBucket(ctx context.Context) (jetstream.KeyValue, error) {
	bucket := bucketPrefix + sanitizeName(c.cfg.GroupID)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		kv, err := c.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
			Bucket:  bucket,
			History: 1,
		})
		if err == nil {
			return kv, nil
		}
		if errors.Is(err, jetstream.ErrBucketExists) {
			kv, err = c.js.KeyValue(ctx, bucket)
			if err == nil {
				return kv, nil
			}
			lastErr = fmt.Errorf("bucket exists but failed to open: %w", err)
		} else {
			lastErr = err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(1<<uint(attempt)) * 10 * time.Millisecond): //nolint:gosec // attempt bounded
		}
	}

	return nil, fmt.Errorf("failed to create/open KV bucket %s: %w", bucket, lastErr)
}

// offsetKey returns the KV key storing a partition's committed offset.
func offsetKey(tp types.TopicPartition) string {
	return fmt.Sprintf("%s.%s.%d", offsetKeyPrefix, sanitizeName(tp.Topic), tp.Partition)
}

// sanitizeName maps arbitrary identifiers into the KV-safe character set.
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '-'
		}
	}, name)
}
