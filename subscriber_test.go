package brod

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"

	"github.com/escobera/brod/strategy"
	brodtest "github.com/escobera/brod/testing"
	"github.com/escobera/brod/types"
)

// fakeWorker records ack and stop calls for assertions.
type fakeWorker struct {
	mu        sync.Mutex
	acks      []int64
	stopped   bool
	committed int64
	hasOffset bool
}

func (w *fakeWorker) Ack(offset int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.acks = append(w.acks, offset)
}

func (w *fakeWorker) Stop(_ context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true

	return nil
}

func (w *fakeWorker) CommittedOffset() (int64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.committed, w.hasOffset
}

func (w *fakeWorker) setCommitted(offset int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.committed = offset
	w.hasOffset = true
}

func (w *fakeWorker) isStopped() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.stopped
}

func (w *fakeWorker) ackCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return len(w.acks)
}

// fakeFactory tracks started workers and can fail selected partitions.
type fakeFactory struct {
	mu      sync.Mutex
	workers map[types.TopicPartition]*fakeWorker
	configs []types.WorkerConfig
	failOn  map[types.TopicPartition]error
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{
		workers: make(map[types.TopicPartition]*fakeWorker),
		failOn:  make(map[types.TopicPartition]error),
	}
}

func (f *fakeFactory) StartWorker(_ context.Context, cfg types.WorkerConfig) (types.Worker, error) {
	tp := types.TopicPartition{Topic: cfg.Topic, Partition: cfg.Partition}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[tp]; ok {
		return nil, err
	}
	w := &fakeWorker{}
	f.workers[tp] = w
	f.configs = append(f.configs, cfg)

	return w, nil
}

func (f *fakeFactory) worker(topic string, partition int32) *fakeWorker {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.workers[types.TopicPartition{Topic: topic, Partition: partition}]
}

func (f *fakeFactory) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.configs)
}

// nopCallback satisfies types.MessageCallback with no behavior.
type nopCallback struct{}

func (nopCallback) Init(types.InitInfo, any) (any, error) { return nil, nil }

func (nopCallback) HandleMessage(types.Message, any) (types.HandleResult, any, error) {
	return types.ResultContinue, nil, nil
}

func (nopCallback) CommittedOffset(any) (int64, bool) { return 0, false }

func assignment(topic string, partition int32, begin int64) types.PartitionAssignment {
	return types.PartitionAssignment{
		TopicPartition: types.TopicPartition{Topic: topic, Partition: partition},
		BeginOffset:    begin,
	}
}

func newTestSubscriber(t *testing.T, coord types.GroupCoordinator, factory types.WorkerFactory, opts ...Option) *Subscriber {
	t.Helper()

	cfg := TestConfig()
	cfg.GroupID = "g1"
	cfg.Topics = []string{"orders"}
	cfg.Callback = nopCallback{}

	opts = append(opts,
		WithWorkerFactory(factory),
		WithCoordinatorFactory(func(_ *nats.Conn, _ string, _ []string, _ types.GroupConfig) (types.GroupCoordinator, error) {
			return coord, nil
		}),
	)

	sub, err := New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, sub.Start(t.Context()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sub.Stop(ctx)
	})

	return sub
}

func TestSubscriber_AssignmentStartsWorkers(t *testing.T) {
	coord := brodtest.NewRecordingCoordinator()
	factory := newFakeFactory()
	sub := newTestSubscriber(t, coord, factory)

	coord.DeliverAssignments("m1", 1, []types.PartitionAssignment{
		assignment("orders", 0, 0),
		assignment("orders", 1, 100),
	})

	require.Eventually(t, func() bool {
		return factory.startCount() == 2
	}, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, types.StateAssigned, sub.State())
	require.Equal(t, int32(1), sub.Generation())

	// BeginOffset flows through to the worker config.
	var begins []int64
	factory.mu.Lock()
	for _, cfg := range factory.configs {
		begins = append(begins, cfg.BeginOffset)
	}
	factory.mu.Unlock()
	require.ElementsMatch(t, []int64{0, 100}, begins)
}

func TestSubscriber_ReassignmentIsIdempotent(t *testing.T) {
	coord := brodtest.NewRecordingCoordinator()
	factory := newFakeFactory()
	sub := newTestSubscriber(t, coord, factory)

	assignments := []types.PartitionAssignment{assignment("orders", 0, 0)}
	coord.DeliverAssignments("m1", 1, assignments)
	require.Eventually(t, func() bool { return factory.startCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	first := factory.worker("orders", 0)

	// Same partition again under a new generation: no restart, but the
	// generation still advances.
	coord.DeliverAssignments("m1", 2, assignments)
	require.Eventually(t, func() bool { return sub.Generation() == 2 }, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, 1, factory.startCount())
	require.False(t, first.isStopped())
}

func TestSubscriber_CommitStampsCurrentGeneration(t *testing.T) {
	coord := brodtest.NewRecordingCoordinator()
	factory := newFakeFactory()
	sub := newTestSubscriber(t, coord, factory)

	coord.DeliverAssignments("m1", 7, []types.PartitionAssignment{assignment("orders", 0, 0)})
	require.Eventually(t, func() bool { return factory.startCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, sub.Commit("orders", 0, 42))
	require.Eventually(t, func() bool {
		last, ok := coord.LastCommit()
		return ok && last == types.CommitRequest{Topic: "orders", Partition: 0, Offset: 42, Generation: 7}
	}, 2*time.Second, 5*time.Millisecond)

	// A later assignment bumps the stamp for subsequent commits.
	coord.DeliverAssignments("m1", 8, []types.PartitionAssignment{assignment("orders", 0, 0)})
	require.Eventually(t, func() bool { return sub.Generation() == 8 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, sub.Commit("orders", 0, 43))
	require.Eventually(t, func() bool {
		last, ok := coord.LastCommit()
		return ok && last.Offset == 43 && last.Generation == 8
	}, 2*time.Second, 5*time.Millisecond)

	// The worker saw both progress signals.
	require.Eventually(t, func() bool {
		return factory.worker("orders", 0).ackCount() == 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSubscriber_AckDoesNotReachCoordinator(t *testing.T) {
	coord := brodtest.NewRecordingCoordinator()
	factory := newFakeFactory()
	sub := newTestSubscriber(t, coord, factory)

	coord.DeliverAssignments("m1", 1, []types.PartitionAssignment{assignment("orders", 0, 0)})
	require.Eventually(t, func() bool { return factory.startCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, sub.Ack("orders", 0, 10))
	require.Eventually(t, func() bool {
		return factory.worker("orders", 0).ackCount() == 1
	}, 2*time.Second, 5*time.Millisecond)

	require.Empty(t, coord.Commits())
}

func TestSubscriber_UnknownPartitionIsIgnored(t *testing.T) {
	coord := brodtest.NewRecordingCoordinator()
	factory := newFakeFactory()
	sub := newTestSubscriber(t, coord, factory)

	coord.DeliverAssignments("m1", 1, []types.PartitionAssignment{assignment("orders", 0, 0)})
	require.Eventually(t, func() bool { return factory.startCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	// Neither call errors; neither mutates tracked state or reaches the
	// coordinator.
	require.NoError(t, sub.Ack("payments", 3, 5))
	require.NoError(t, sub.Commit("orders", 9, 5))

	require.NoError(t, sub.Commit("orders", 0, 1))
	require.Eventually(t, func() bool { return len(coord.Commits()) == 1 }, 2*time.Second, 5*time.Millisecond)

	commits := coord.Commits()
	require.Len(t, commits, 1)
	require.Equal(t, int32(0), commits[0].Partition)
	require.Equal(t, 1, factory.worker("orders", 0).ackCount())
}

func TestSubscriber_RevocationStopsAllWorkers(t *testing.T) {
	coord := brodtest.NewRecordingCoordinator()
	factory := newFakeFactory()
	sub := newTestSubscriber(t, coord, factory)

	coord.DeliverAssignments("m1", 1, []types.PartitionAssignment{
		assignment("orders", 0, 0),
		assignment("orders", 1, 0),
	})
	require.Eventually(t, func() bool { return factory.startCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	// Revoke blocks until every worker is stopped.
	require.NoError(t, coord.Revoke(t.Context()))
	require.True(t, factory.worker("orders", 0).isStopped())
	require.True(t, factory.worker("orders", 1).isStopped())
	require.Equal(t, types.StateUnassigned, sub.State())

	// The generation survives revocation.
	require.Equal(t, int32(1), sub.Generation())

	// A commit to a revoked partition is now unknown.
	require.NoError(t, sub.Commit("orders", 0, 5))
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, coord.Commits())
}

func TestSubscriber_ReassignedPartitionGetsFreshWorker(t *testing.T) {
	coord := brodtest.NewRecordingCoordinator()
	factory := newFakeFactory()
	sub := newTestSubscriber(t, coord, factory)

	coord.DeliverAssignments("m1", 1, []types.PartitionAssignment{assignment("orders", 0, 0)})
	require.Eventually(t, func() bool { return factory.startCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	first := factory.worker("orders", 0)

	require.NoError(t, coord.Revoke(t.Context()))
	require.True(t, first.isStopped())

	// The same partition coming back under the next generation starts a
	// brand-new worker at the newly advertised begin offset.
	coord.DeliverAssignments("m1", 2, []types.PartitionAssignment{assignment("orders", 0, 50)})
	require.Eventually(t, func() bool { return factory.startCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	require.Equal(t, types.StateAssigned, sub.State())
	require.Equal(t, int32(2), sub.Generation())

	factory.mu.Lock()
	secondCfg := factory.configs[1]
	factory.mu.Unlock()
	require.Equal(t, int64(50), secondCfg.BeginOffset)

	second := factory.worker("orders", 0)
	require.NotSame(t, first, second)
	require.True(t, first.isStopped())
	require.False(t, second.isStopped())
}

func TestSubscriber_EmptyAssignmentRevocationResetsState(t *testing.T) {
	coord := brodtest.NewRecordingCoordinator()
	factory := newFakeFactory()
	sub := newTestSubscriber(t, coord, factory)

	// An assignment event with no partitions still marks the member
	// assigned; revocation must undo that even with no workers to stop.
	coord.DeliverAssignments("m1", 1, nil)
	require.Eventually(t, func() bool { return sub.State() == types.StateAssigned }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, coord.Revoke(t.Context()))
	require.Equal(t, types.StateUnassigned, sub.State())
	require.Zero(t, factory.startCount())
}

func TestSubscriber_CommittedOffsetsReturnsKnownSubset(t *testing.T) {
	coord := brodtest.NewRecordingCoordinator()
	factory := newFakeFactory()
	newTestSubscriber(t, coord, factory)

	coord.DeliverAssignments("m1", 1, []types.PartitionAssignment{
		assignment("orders", 0, 0),
		assignment("orders", 1, 0),
	})
	require.Eventually(t, func() bool { return factory.startCount() == 2 }, 2*time.Second, 5*time.Millisecond)

	factory.worker("orders", 0).setCommitted(41)

	offsets, err := coord.QueryOffsets(t.Context(), []types.TopicPartition{
		{Topic: "orders", Partition: 0},
		{Topic: "orders", Partition: 1}, // worker reports no offset
		{Topic: "orders", Partition: 9}, // no worker at all
	})
	require.NoError(t, err)
	require.Equal(t, []types.OffsetCommit{
		{TopicPartition: types.TopicPartition{Topic: "orders", Partition: 0}, Offset: 41},
	}, offsets)
}

func TestSubscriber_WorkerStartFailureIsFatal(t *testing.T) {
	coord := brodtest.NewRecordingCoordinator()
	factory := newFakeFactory()
	boom := errors.New("stream missing")
	factory.failOn[types.TopicPartition{Topic: "orders", Partition: 1}] = boom

	sub := newTestSubscriber(t, coord, factory)

	coord.DeliverAssignments("m1", 1, []types.PartitionAssignment{
		assignment("orders", 0, 0),
		assignment("orders", 1, 0),
	})

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not terminate after worker start failure")
	}

	require.Equal(t, types.StateFailed, sub.State())
	require.ErrorIs(t, sub.Err(), types.ErrWorkerStartFailed)
	require.ErrorIs(t, sub.Err(), boom)

	// The worker that did start was torn down.
	require.True(t, factory.worker("orders", 0).isStopped())

	// Post-failure operations report the stop.
	require.ErrorIs(t, sub.Commit("orders", 0, 1), ErrStopped)
}

func TestSubscriber_StopTerminatesCleanly(t *testing.T) {
	coord := brodtest.NewRecordingCoordinator()
	factory := newFakeFactory()
	sub := newTestSubscriber(t, coord, factory)

	coord.DeliverAssignments("m1", 1, []types.PartitionAssignment{assignment("orders", 0, 0)})
	require.Eventually(t, func() bool { return factory.startCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, sub.Stop(t.Context()))

	require.Equal(t, types.StateStopped, sub.State())
	require.True(t, factory.worker("orders", 0).isStopped())
	select {
	case <-sub.Done():
	default:
		t.Fatal("done channel not closed after stop")
	}

	require.ErrorIs(t, sub.Ack("orders", 0, 1), ErrStopped)

	// Stop after termination is a no-op.
	require.NoError(t, sub.Stop(t.Context()))
}

func TestSubscriber_StopAfterFailedStartReturnsNotStarted(t *testing.T) {
	cfg := TestConfig()
	cfg.GroupID = "g1"
	cfg.Topics = []string{"orders"}
	cfg.Callback = nopCallback{}

	boom := errors.New("kv bucket unavailable")
	sub, err := New(cfg,
		WithWorkerFactory(newFakeFactory()),
		WithCoordinatorFactory(func(_ *nats.Conn, _ string, _ []string, _ types.GroupConfig) (types.GroupCoordinator, error) {
			return nil, boom
		}),
	)
	require.NoError(t, err)

	require.ErrorIs(t, sub.Start(t.Context()), boom)

	// The actor never launched; Stop must not wait for it.
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.ErrorIs(t, sub.Stop(ctx), ErrNotStarted)
	require.NoError(t, ctx.Err())
}

func TestSubscriber_AssignPartitionsWithoutAssigner(t *testing.T) {
	coord := brodtest.NewRecordingCoordinator()
	sub := newTestSubscriber(t, coord, newFakeFactory())

	_, err := sub.AssignPartitions([]string{"m1"}, []types.TopicPartition{{Topic: "orders", Partition: 0}})
	require.ErrorIs(t, err, ErrNotImplemented)
}

func TestSubscriber_AssignPartitionsWithStrategy(t *testing.T) {
	coord := brodtest.NewRecordingCoordinator()
	sub := newTestSubscriber(t, coord, newFakeFactory(), WithPartitionAssigner(strategy.NewRoundRobin()))

	plan, err := sub.AssignPartitions([]string{"m1", "m2"}, []types.TopicPartition{
		{Topic: "orders", Partition: 0},
		{Topic: "orders", Partition: 1},
	})
	require.NoError(t, err)
	require.Len(t, plan["m1"], 1)
	require.Len(t, plan["m2"], 1)
}

func TestSubscriber_StartTwiceFails(t *testing.T) {
	coord := brodtest.NewRecordingCoordinator()
	sub := newTestSubscriber(t, coord, newFakeFactory())

	require.ErrorIs(t, sub.Start(t.Context()), ErrAlreadyStarted)
}
