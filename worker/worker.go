package worker

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/escobera/brod/internal/logging"
	"github.com/escobera/brod/types"
)

// Factory builds pull-loop workers on top of a MessageSource. It implements
// types.WorkerFactory.
type Factory struct {
	src    types.MessageSource
	logger types.Logger
	seed   int64
}

// NewFactory creates a worker factory backed by the given message source.
//
// Parameters:
//   - src: Message source shared by all workers of this factory
//   - cfg: Optional factory tuning (logger, jitter seed)
//
// Returns:
//   - *Factory: Initialized factory with defaults applied
func NewFactory(src types.MessageSource, cfg FactoryConfig) *Factory {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	return &Factory{
		src:    src,
		logger: logger,
		seed:   cfg.RetryRNGSeed,
	}
}

// StartWorker starts a worker for one (topic, partition) pair.
//
// The callback's Init runs synchronously before the pull loop is spawned, so
// an initialization failure surfaces here and no goroutine leaks. Fetching
// begins at cfg.BeginOffset.
//
// Parameters:
//   - ctx: Context bounding the worker's lifetime
//   - cfg: Per-partition worker configuration
//
// Returns:
//   - types.Worker: Running worker
//   - error: Validation or callback initialization error
func (f *Factory) StartWorker(ctx context.Context, cfg types.WorkerConfig) (types.Worker, error) {
	if f.src == nil {
		return nil, errors.New("message source is required")
	}
	if cfg.Callback == nil {
		return nil, types.ErrCallbackRequired
	}
	if cfg.MessageType == types.MessageTypeMessageSet {
		if _, ok := cfg.Callback.(types.MessageSetCallback); !ok {
			return nil, fmt.Errorf("%w: message_set mode requires a MessageSetCallback", types.ErrInvalidConfig)
		}
	}
	cfg.Consumer = normalizeConsumerConfig(cfg.Consumer)

	state, err := cfg.Callback.Init(types.InitInfo{
		GroupID:   cfg.GroupID,
		Topic:     cfg.Topic,
		Partition: cfg.Partition,
		Commit:    cfg.Commit,
	}, cfg.InitData)
	if err != nil {
		return nil, fmt.Errorf("callback init failed for %s-%d: %w", cfg.Topic, cfg.Partition, err)
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &Worker{
		cfg:    cfg,
		src:    f.src,
		logger: f.logger,
		rng:    newRetryRNG(f.seed),
		ctx:    wctx,
		cancel: cancel,
		done:   make(chan struct{}),
		ackCh:  make(chan struct{}, 1),
		state:  state,
	}

	go w.run()

	return w, nil
}

// Worker is a single-partition pull worker. It implements types.Worker.
//
// The pull loop is the sole writer of the callback state; Ack and
// CommittedOffset may be called from any goroutine.
type Worker struct {
	cfg    types.WorkerConfig
	src    types.MessageSource
	logger types.Logger
	rng    *rand.Rand

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// ackCh is signaled whenever window capacity is released.
	ackCh chan struct{}

	mu      sync.Mutex
	state   any     // callback-managed, swapped after each dispatch
	pending []int64 // dispatched-but-unacked offsets, ascending
}

// Ack marks all offsets up to and including offset as processed, releasing
// window capacity. Safe for concurrent use; never blocks.
func (w *Worker) Ack(offset int64) {
	w.mu.Lock()
	n := 0
	for n < len(w.pending) && w.pending[n] <= offset {
		n++
	}
	if n > 0 {
		w.pending = w.pending[n:]
	}
	w.mu.Unlock()

	if n == 0 {
		return
	}
	select {
	case w.ackCh <- struct{}{}:
	default:
	}
}

// CommittedOffset reports the callback-managed committed offset, if defined.
func (w *Worker) CommittedOffset() (int64, bool) {
	w.mu.Lock()
	state := w.state
	w.mu.Unlock()

	return w.cfg.Callback.CommittedOffset(state)
}

// Stop terminates the pull loop and waits for it to exit.
//
// Returns:
//   - error: ctx.Err() if the wait is cut short, nil otherwise
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the pull loop: wait for window capacity, fetch a batch, dispatch it,
// advance the cursor.
func (w *Worker) run() {
	defer close(w.done)

	offset := w.cfg.BeginOffset
	var fetchDelay time.Duration

	for {
		if err := w.waitWindow(); err != nil {
			return
		}

		fetchCtx, cancel := context.WithTimeout(w.ctx, w.cfg.Consumer.FetchTimeout)
		set, err := w.src.Fetch(fetchCtx, w.cfg.Topic, w.cfg.Partition, offset, w.cfg.Consumer.FetchBatchSize)
		cancel()
		if err != nil {
			if w.ctx.Err() != nil {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				// Fetch window elapsed with nothing to consume; poll again.
				fetchDelay = 0
				continue
			}
			fetchDelay = jitterBackoff(fetchDelay, w.cfg.Consumer.RetryBackoff, 2.0, maxFetchBackoff, w.rng)
			w.logger.Warn("fetch failed",
				"topic", w.cfg.Topic,
				"partition", w.cfg.Partition,
				"offset", offset,
				"retry_in", fetchDelay,
				"error", err,
			)
			if !w.sleep(fetchDelay) {
				return
			}

			continue
		}
		fetchDelay = 0

		last, ok := set.LastOffset()
		if !ok {
			continue
		}

		if err := w.dispatch(set); err != nil {
			w.logger.Error("dispatch failed, worker exiting",
				"topic", w.cfg.Topic,
				"partition", w.cfg.Partition,
				"error", err,
			)

			return
		}

		offset = last + 1
	}
}

// waitWindow blocks until the pending-ack window has capacity.
func (w *Worker) waitWindow() error {
	for {
		w.mu.Lock()
		n := len(w.pending)
		w.mu.Unlock()
		if n < w.cfg.Consumer.MaxPendingAcks {
			return nil
		}

		select {
		case <-w.ackCh:
		case <-w.ctx.Done():
			return w.ctx.Err()
		}
	}
}

// dispatch routes a fetched batch to the callback in the configured mode.
func (w *Worker) dispatch(set types.MessageSet) error {
	if w.cfg.MessageType == types.MessageTypeMessageSet {
		return w.dispatchSet(set)
	}

	for _, msg := range set.Messages {
		if err := w.waitWindow(); err != nil {
			return err
		}
		if err := w.dispatchMessage(msg); err != nil {
			return err
		}
	}

	return nil
}

// dispatchMessage invokes HandleMessage with bounded retries, then applies
// the returned disposition.
func (w *Worker) dispatchMessage(msg types.Message) error {
	var (
		res      types.HandleResult
		newState any
		err      error
	)
	var retryDelay time.Duration
	for attempt := 0; ; attempt++ {
		res, newState, err = w.cfg.Callback.HandleMessage(msg, w.snapshotState())
		if err == nil {
			break
		}
		if attempt >= w.cfg.Consumer.MaxRetries {
			return fmt.Errorf("handle message at offset %d failed after %d attempts: %w",
				msg.Offset, attempt+1, err)
		}
		retryDelay = jitterBackoff(retryDelay, w.cfg.Consumer.RetryBackoff, 2.0, maxFetchBackoff, w.rng)
		w.logger.Warn("message callback failed, retrying",
			"topic", w.cfg.Topic,
			"partition", w.cfg.Partition,
			"offset", msg.Offset,
			"attempt", attempt+1,
			"error", err,
		)
		if !w.sleep(retryDelay) {
			return w.ctx.Err()
		}
	}

	w.swapState(newState)
	w.applyResult(res, msg.Offset)

	return nil
}

// dispatchSet invokes HandleMessageSet once for the whole batch; the
// disposition applies to the batch's last offset.
func (w *Worker) dispatchSet(set types.MessageSet) error {
	cb := w.cfg.Callback.(types.MessageSetCallback)
	last, _ := set.LastOffset()

	var retryDelay time.Duration
	for attempt := 0; ; attempt++ {
		res, newState, err := cb.HandleMessageSet(set, w.snapshotState())
		if err == nil {
			w.swapState(newState)
			w.applyResult(res, last)

			return nil
		}
		if attempt >= w.cfg.Consumer.MaxRetries {
			return fmt.Errorf("handle message set ending at offset %d failed after %d attempts: %w",
				last, attempt+1, err)
		}
		retryDelay = jitterBackoff(retryDelay, w.cfg.Consumer.RetryBackoff, 2.0, maxFetchBackoff, w.rng)
		w.logger.Warn("message set callback failed, retrying",
			"topic", w.cfg.Topic,
			"partition", w.cfg.Partition,
			"last_offset", last,
			"attempt", attempt+1,
			"error", err,
		)
		if !w.sleep(retryDelay) {
			return w.ctx.Err()
		}
	}
}

// applyResult records the offset as pending and, for the ack/commit
// dispositions, requests acknowledgement through the bound closures. The
// acknowledgement flows back asynchronously via Ack.
func (w *Worker) applyResult(res types.HandleResult, offset int64) {
	w.mu.Lock()
	w.pending = append(w.pending, offset)
	w.mu.Unlock()

	switch res {
	case types.ResultAck:
		if err := w.cfg.Ack(offset); err != nil {
			w.logger.Warn("ack request failed",
				"topic", w.cfg.Topic,
				"partition", w.cfg.Partition,
				"offset", offset,
				"error", err,
			)
		}
	case types.ResultCommit:
		if err := w.cfg.Commit(offset); err != nil {
			w.logger.Warn("commit request failed",
				"topic", w.cfg.Topic,
				"partition", w.cfg.Partition,
				"offset", offset,
				"error", err,
			)
		}
	case types.ResultContinue:
		// Integrator acks externally.
	}
}

func (w *Worker) snapshotState() any {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.state
}

func (w *Worker) swapState(state any) {
	w.mu.Lock()
	w.state = state
	w.mu.Unlock()
}

// sleep waits for d or until the worker is stopped. Reports whether the full
// duration elapsed.
func (w *Worker) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return true
	case <-w.ctx.Done():
		return false
	}
}
