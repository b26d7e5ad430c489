package brod

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/nats-io/nats.go"

	"github.com/escobera/brod/coordinator"
	"github.com/escobera/brod/internal/logging"
	"github.com/escobera/brod/internal/metrics"
	"github.com/escobera/brod/source"
	"github.com/escobera/brod/types"
	"github.com/escobera/brod/worker"
)

// Subscriber reconciles group assignment events into a live set of
// per-partition workers and turns ack/commit calls into worker signals and
// coordinator commit requests.
//
// Thread Safety:
//   - All public methods are safe for concurrent use
//   - The worker map, generation, and tracked offsets are owned by a single
//     actor goroutine; every mutation goes through the internal mailbox and
//     is processed strictly in arrival order
//
// Lifecycle:
//   - Create with New()
//   - Call Start() to join the group and begin receiving assignments
//   - Call Stop() for graceful shutdown; it blocks until full termination
//
// A worker startup failure during assignment reconciliation is fatal: the
// subscriber stops everything, transitions to StateFailed, and reports the
// cause via Err(). A partially-assigned subscriber would silently
// under-consume some partitions, so fail-fast beats partial degradation; an
// external supervisor is expected to restart the subscription from scratch.
type Subscriber struct {
	cfg SubscriberConfig

	// Optional dependencies
	logger   types.Logger
	metrics  types.MetricsCollector
	factory  types.WorkerFactory
	assigner types.PartitionAssigner

	coordFactory CoordinatorFactory
	coordinator  types.GroupCoordinator

	// Lifecycle management
	ctx     context.Context
	cancel  context.CancelFunc
	mailbox chan mailboxMsg
	done    chan struct{}

	state      atomic.Int32 // types.State
	generation atomic.Int32 // observability mirror of the actor's generation

	mu      sync.Mutex
	started bool
	err     error

	// Actor-owned state. Touched only from run() and its handlers.
	memberID string
	gen      int32
	workers  map[types.TopicPartition]types.Worker
	offsets  map[types.TopicPartition]trackedOffset
}

// trackedOffset is the last progress restatement seen for a partition.
// Committed distinguishes durable commits from local flow-control acks.
type trackedOffset struct {
	Offset    int64
	Committed bool
}

// msgKind discriminates mailbox messages.
type msgKind int

const (
	msgAssignments msgKind = iota
	msgRevoke
	msgAck
	msgCommit
	msgOffsets
	msgStop
)

// mailboxMsg is the single envelope type for the actor mailbox. Only the
// fields relevant to the kind are populated.
type mailboxMsg struct {
	kind        msgKind
	memberID    string
	generation  int32
	assignments []types.PartitionAssignment
	tp          types.TopicPartition
	offset      int64
	tps         []types.TopicPartition
	reply       chan mailboxReply
}

type mailboxReply struct {
	offsets []types.OffsetCommit
	err     error
}

// New creates a Subscriber from the given configuration.
//
// The configuration is validated eagerly: a malformed group id, topic list,
// or callback aborts construction, and the client handle must be non-nil
// unless both a custom worker factory and a custom coordinator factory are
// injected.
//
// Parameters:
//   - cfg: Immutable subscriber configuration
//   - opts: Optional dependencies (logger, metrics, factories, assigner)
//
// Returns:
//   - *Subscriber: Initialized subscriber (not yet started)
//   - error: Validation error if the configuration is invalid
//
// Example:
//
//	sub, err := brod.New(brod.SubscriberConfig{
//	    Client:   nc,
//	    GroupID:  "billing",
//	    Topics:   []string{"orders"},
//	    Callback: cb,
//	}, brod.WithLogger(logger))
func New(cfg SubscriberConfig, opts ...Option) (*Subscriber, error) {
	SetDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", types.ErrInvalidConfig, err)
	}

	options := &subscriberOptions{}
	for _, opt := range opts {
		opt(options)
	}

	logger := options.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	collector := options.metrics
	if collector == nil {
		collector = metrics.NewNop()
	}

	// The client handle is only required when a default collaborator needs
	// the connection.
	needsClient := options.workerFactory == nil && options.source == nil || options.coordFactory == nil
	if needsClient && cfg.Client == nil {
		return nil, types.ErrClientRequired
	}

	factory := options.workerFactory
	if factory == nil {
		src := options.source
		if src == nil {
			var err error
			src, err = source.NewJetStream(cfg.Client, source.JetStreamConfig{Logger: logger})
			if err != nil {
				return nil, fmt.Errorf("failed to create default message source: %w", err)
			}
		}
		factory = worker.NewFactory(src, worker.FactoryConfig{Logger: logger})
	}

	coordFactory := options.coordFactory
	if coordFactory == nil {
		coordFactory = defaultCoordinatorFactory(logger)
	}

	s := &Subscriber{
		cfg:          cfg,
		logger:       logger,
		metrics:      collector,
		factory:      factory,
		assigner:     options.assigner,
		coordFactory: coordFactory,
		mailbox:      make(chan mailboxMsg, cfg.MailboxSize),
		done:         make(chan struct{}),
		workers:      make(map[types.TopicPartition]types.Worker),
		offsets:      make(map[types.TopicPartition]trackedOffset),
		gen:          types.GenerationNone,
	}
	s.state.Store(int32(types.StateUnassigned))
	s.generation.Store(types.GenerationNone)

	return s, nil
}

// defaultCoordinatorFactory builds the reference JetStream KV coordinator.
func defaultCoordinatorFactory(logger types.Logger) CoordinatorFactory {
	return func(conn *nats.Conn, groupID string, topics []string, cfg types.GroupConfig) (types.GroupCoordinator, error) {
		return coordinator.New(conn, coordinator.Config{
			GroupID: groupID,
			Topics:  topics,
			Group:   cfg,
			Logger:  logger,
		})
	}
}

// Start joins the consumer group and begins processing coordination events.
//
// The subscriber registers itself as the coordinator's member callback
// target; assignments delivered by the coordinator (possibly during this
// call) are enqueued and processed by the actor goroutine.
//
// Parameters:
//   - ctx: Context bounding the join; its cancellation also terminates the
//     subscriber
//
// Returns:
//   - error: ErrAlreadyStarted, or the coordinator join failure
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()

		return types.ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	coord, err := s.coordFactory(s.cfg.Client, s.cfg.GroupID, s.cfg.Topics, s.cfg.Group)
	if err != nil {
		// The actor was never spawned; roll back so Stop does not wait
		// on a done channel nothing will ever close.
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()

		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	s.coordinator = coord

	s.ctx, s.cancel = context.WithCancel(context.Background())
	go s.run()

	if err := coord.Start(ctx, s); err != nil {
		s.cancel()
		<-s.done

		return fmt.Errorf("failed to join group %s: %w", s.cfg.GroupID, err)
	}

	s.logger.Info("subscriber started",
		"group", s.cfg.GroupID,
		"topics", s.cfg.Topics,
	)

	return nil
}

// Stop requests termination and blocks until the subscriber has fully
// terminated. All live workers are revoked first, then the actor exits.
//
// Safe to call multiple times; once the actor has exited, further calls
// return nil immediately. Calling Stop before Start returns ErrNotStarted.
//
// Parameters:
//   - ctx: Context bounding the wait for termination
//
// Returns:
//   - error: ctx.Err() if the wait is cut short, nil otherwise
func (s *Subscriber) Stop(ctx context.Context) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return types.ErrNotStarted
	}

	// Leave the group first: the coordinator revokes through the member
	// surface while the actor is still alive.
	if s.coordinator != nil {
		if err := s.coordinator.Stop(ctx); err != nil {
			s.logger.Warn("coordinator stop failed", "error", err)
		}
	}

	reply := make(chan mailboxReply, 1)
	select {
	case s.mailbox <- mailboxMsg{kind: msgStop, reply: reply}:
	case <-s.done:
		// Actor already exited (failure path or concurrent Stop).
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current subscriber state.
func (s *Subscriber) State() types.State {
	return types.State(s.state.Load())
}

// Generation returns the generation stamped on commits at this moment, or
// GenerationNone before the first assignment.
func (s *Subscriber) Generation() int32 {
	return s.generation.Load()
}

// Err returns the fatal error that terminated the subscriber, if any.
// Non-nil only after the subscriber reached StateFailed.
func (s *Subscriber) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.err
}

// Done returns a channel closed when the subscriber has fully terminated.
func (s *Subscriber) Done() <-chan struct{} {
	return s.done
}

// Ack signals that messages of (topic, partition) up to offset are fully
// processed. Local flow control only; no coordinator traffic.
//
// The call is fire-and-forget: it returns once the signal is enqueued. An
// ack for a partition with no live worker is logged and otherwise ignored.
//
// Returns:
//   - error: ErrNotStarted/ErrStopped when the subscriber is not running
func (s *Subscriber) Ack(topic string, partition int32, offset int64) error {
	return s.enqueue(mailboxMsg{
		kind:   msgAck,
		tp:     types.TopicPartition{Topic: topic, Partition: partition},
		offset: offset,
	})
}

// Commit signals the same local progress as Ack and additionally sends a
// CommitRequest to the group coordinator, stamped with the generation
// current at the moment the request is processed. The commit is not awaited;
// a coordinator that observes a stale generation discards it.
//
// Returns:
//   - error: ErrNotStarted/ErrStopped when the subscriber is not running
func (s *Subscriber) Commit(topic string, partition int32, offset int64) error {
	return s.enqueue(mailboxMsg{
		kind:   msgCommit,
		tp:     types.TopicPartition{Topic: topic, Partition: partition},
		offset: offset,
	})
}

// AssignmentsReceived implements types.GroupMember. It never blocks waiting
// on worker readiness; reconciliation happens on the actor goroutine.
func (s *Subscriber) AssignmentsReceived(memberID string, generation int32, assignments []types.PartitionAssignment) {
	err := s.enqueue(mailboxMsg{
		kind:        msgAssignments,
		memberID:    memberID,
		generation:  generation,
		assignments: assignments,
	})
	if err != nil {
		s.logger.Warn("dropping assignment event: subscriber not running",
			"generation", generation,
			"partitions", len(assignments),
		)
	}
}

// AssignmentsRevoked implements types.GroupMember. It blocks until every
// live worker has observably stopped and the worker map is empty, because
// the coordination protocol cannot rejoin while partitions are still owned.
func (s *Subscriber) AssignmentsRevoked(ctx context.Context) error {
	reply := make(chan mailboxReply, 1)
	if err := s.enqueue(mailboxMsg{kind: msgRevoke, reply: reply}); err != nil {
		return err
	}

	select {
	case r := <-reply:
		return r.err
	case <-s.done:
		return types.ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CommittedOffsets implements types.GroupMember. It returns exactly the
// subset of requested partitions that have a live worker whose callback
// reports a defined offset; all others are omitted.
func (s *Subscriber) CommittedOffsets(ctx context.Context, tps []types.TopicPartition) ([]types.OffsetCommit, error) {
	reply := make(chan mailboxReply, 1)
	if err := s.enqueue(mailboxMsg{kind: msgOffsets, tps: tps, reply: reply}); err != nil {
		return nil, err
	}

	select {
	case r := <-reply:
		return r.offsets, r.err
	case <-s.done:
		return nil, types.ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// AssignPartitions implements types.GroupMember. Without an installed
// PartitionAssigner it fails with ErrNotImplemented; the default coordination
// path never invokes it.
func (s *Subscriber) AssignPartitions(members []string, tps []types.TopicPartition) (map[string][]types.TopicPartition, error) {
	if s.assigner == nil {
		return nil, fmt.Errorf("custom assignment strategy not installed: %w", types.ErrNotImplemented)
	}

	return s.assigner.Assign(members, tps)
}

// enqueue delivers a message to the actor mailbox, failing fast when the
// subscriber is not running.
func (s *Subscriber) enqueue(m mailboxMsg) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return types.ErrNotStarted
	}

	// Fast path: once the actor exited, a buffered mailbox could still
	// accept the send, so the closed done channel must win.
	select {
	case <-s.done:
		return types.ErrStopped
	default:
	}

	select {
	case s.mailbox <- m:
		return nil
	case <-s.done:
		return types.ErrStopped
	}
}

// run is the actor loop. It is the only goroutine that touches the worker
// map, the generation, and the tracked offsets.
func (s *Subscriber) run() {
	defer close(s.done)

	for {
		select {
		case <-s.ctx.Done():
			s.shutdown(nil)
			return

		case m := <-s.mailbox:
			switch m.kind {
			case msgAssignments:
				if err := s.handleAssignments(m.memberID, m.generation, m.assignments); err != nil {
					s.shutdown(err)
					return
				}

			case msgRevoke:
				m.reply <- mailboxReply{err: s.handleRevoke()}

			case msgAck:
				s.handleAck(m.tp, m.offset)

			case msgCommit:
				s.handleCommit(m.tp, m.offset)

			case msgOffsets:
				m.reply <- mailboxReply{offsets: s.handleCommittedOffsets(m.tps)}

			case msgStop:
				err := s.handleRevoke()
				if err != nil {
					s.logger.Warn("worker teardown reported errors during stop", "error", err)
				}
				s.transitionState(types.StateStopped)
				m.reply <- mailboxReply{err: err}
				return
			}
		}
	}
}

// handleAssignments reconciles an assignment event into worker lifecycle
// transitions. The stored generation is unconditionally updated first, so
// even partial reassignments update the stamp used by all subsequent
// commits.
func (s *Subscriber) handleAssignments(memberID string, generation int32, assignments []types.PartitionAssignment) error {
	s.memberID = memberID
	s.gen = generation
	s.generation.Store(generation)
	s.metrics.RecordAssignmentsReceived(generation, len(assignments))

	for _, assignment := range assignments {
		if err := s.ensureWorker(assignment); err != nil {
			return err
		}
	}

	if s.State() == types.StateUnassigned {
		s.transitionState(types.StateAssigned)
	}

	s.logger.Info("assignments received",
		"member_id", memberID,
		"generation", generation,
		"partitions", len(assignments),
		"workers", len(s.workers),
	)

	return nil
}

// ensureWorker starts a worker for the assigned partition unless one is
// already live. Re-assignment of an already-assigned partition is a no-op,
// never a restart. A start failure propagates and is fatal to the whole
// subscriber.
func (s *Subscriber) ensureWorker(assignment types.PartitionAssignment) error {
	tp := assignment.TopicPartition
	if _, exists := s.workers[tp]; exists {
		return nil
	}

	// Bind ack/commit closures to this partition; they re-enter the
	// subscriber through the public entry points.
	commit := func(offset int64) error {
		return s.Commit(tp.Topic, tp.Partition, offset)
	}
	ack := func(offset int64) error {
		return s.Ack(tp.Topic, tp.Partition, offset)
	}

	w, err := s.factory.StartWorker(s.ctx, types.WorkerConfig{
		GroupID:     s.cfg.GroupID,
		Topic:       tp.Topic,
		Partition:   tp.Partition,
		BeginOffset: assignment.BeginOffset,
		MessageType: s.cfg.MessageType,
		Callback:    s.cfg.Callback,
		InitData:    s.cfg.InitData,
		Ack:         ack,
		Commit:      commit,
		Consumer:    s.cfg.Consumer,
	})
	if err != nil {
		return fmt.Errorf("%w for %s: %w", types.ErrWorkerStartFailed, tp, err)
	}

	s.workers[tp] = w
	s.metrics.RecordWorkerStarted(tp)
	s.logger.Debug("worker started",
		"topic", tp.Topic,
		"partition", tp.Partition,
		"begin_offset", assignment.BeginOffset,
	)

	return nil
}

// handleRevoke synchronously stops every live worker and clears the worker
// map and tracked offsets. The generation is left untouched; only a
// subsequent assignment event updates it.
func (s *Subscriber) handleRevoke() error {
	if len(s.workers) == 0 {
		// Nothing to tear down, but the revocation still ends any
		// current assignment.
		s.offsets = make(map[types.TopicPartition]trackedOffset)
		s.transitionState(types.StateUnassigned)

		return nil
	}

	s.transitionState(types.StateRevoking)

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	var firstErr error
	for tp, w := range s.workers {
		if err := w.Stop(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to stop worker for %s: %w", tp, err)
		}
		s.metrics.RecordWorkerStopped(tp)
	}

	stopped := len(s.workers)
	s.workers = make(map[types.TopicPartition]types.Worker)
	s.offsets = make(map[types.TopicPartition]trackedOffset)
	s.metrics.RecordRevocation(stopped)
	s.transitionState(types.StateUnassigned)

	s.logger.Info("assignments revoked", "workers_stopped", stopped)

	return firstErr
}

// handleAck signals local progress to the partition's worker. Unknown
// partitions are reported through logging only; tracked state is untouched.
func (s *Subscriber) handleAck(tp types.TopicPartition, offset int64) {
	w, ok := s.workers[tp]
	if !ok {
		s.rejectUnknown("ack", tp, offset)
		return
	}

	w.Ack(offset)
	s.offsets[tp] = trackedOffset{Offset: offset, Committed: false}
	s.metrics.RecordAck(tp, offset)
}

// handleCommit performs the same local signal as handleAck and sends a
// CommitRequest stamped with the current generation. The request is not
// awaited.
func (s *Subscriber) handleCommit(tp types.TopicPartition, offset int64) {
	w, ok := s.workers[tp]
	if !ok {
		s.rejectUnknown("commit", tp, offset)
		return
	}

	w.Ack(offset)
	s.offsets[tp] = trackedOffset{Offset: offset, Committed: true}

	req := types.CommitRequest{
		Topic:      tp.Topic,
		Partition:  tp.Partition,
		Offset:     offset,
		Generation: s.gen,
	}
	if err := s.coordinator.CommitOffset(req); err != nil {
		s.logger.Error("commit request rejected by coordinator",
			"topic", tp.Topic,
			"partition", tp.Partition,
			"offset", offset,
			"generation", s.gen,
			"error", err,
		)

		return
	}
	s.metrics.RecordCommit(tp, offset, s.gen)
}

// handleCommittedOffsets queries callback-managed offsets for partitions
// with live workers. Partitions with no worker or no defined offset are
// silently excluded.
func (s *Subscriber) handleCommittedOffsets(tps []types.TopicPartition) []types.OffsetCommit {
	out := make([]types.OffsetCommit, 0, len(tps))
	for _, tp := range tps {
		w, ok := s.workers[tp]
		if !ok {
			continue
		}
		offset, ok := w.CommittedOffset()
		if !ok {
			continue
		}
		out = append(out, types.OffsetCommit{TopicPartition: tp, Offset: offset})
	}

	return out
}

// rejectUnknown reports an ack/commit for a partition with no live worker.
// The fire-and-forget caller gets no direct failure signal.
func (s *Subscriber) rejectUnknown(op string, tp types.TopicPartition, offset int64) {
	s.logger.Warn("unknown topic or partition",
		"op", op,
		"topic", tp.Topic,
		"partition", tp.Partition,
		"offset", offset,
	)
	s.metrics.RecordUnknownPartition(op, tp)
}

// shutdown tears everything down from inside the actor. A non-nil cause
// marks the subscriber failed (fatal worker startup); nil means a regular
// stop through context cancellation.
func (s *Subscriber) shutdown(cause error) {
	if err := s.handleRevoke(); err != nil {
		s.logger.Warn("worker teardown reported errors during shutdown", "error", err)
	}

	if cause != nil {
		s.mu.Lock()
		s.err = cause
		s.mu.Unlock()
		s.transitionState(types.StateFailed)
		s.logger.Error("subscriber failed", "error", cause)

		return
	}

	s.transitionState(types.StateStopped)
}

// transitionState transitions to a new state and records it.
func (s *Subscriber) transitionState(to types.State) {
	from := types.State(s.state.Swap(int32(to)))
	if from == to {
		return
	}

	s.logger.Debug("state transition",
		"from", from.String(),
		"to", to.String(),
	)
	s.metrics.RecordStateTransition(from, to)
}
