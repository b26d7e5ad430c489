package brod_test

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"

	"github.com/escobera/brod"
	"github.com/escobera/brod/source"
	brodtest "github.com/escobera/brod/testing"
)

// collectingCallback commits every message and records its value.
type collectingCallback struct {
	mu     sync.Mutex
	values []string
}

func (c *collectingCallback) Init(brod.InitInfo, any) (any, error) { return nil, nil }

func (c *collectingCallback) HandleMessage(msg brod.Message, _ any) (brod.HandleResult, any, error) {
	c.mu.Lock()
	c.values = append(c.values, string(msg.Value))
	c.mu.Unlock()

	return brod.ResultCommit, nil, nil
}

func (c *collectingCallback) CommittedOffset(any) (int64, bool) { return 0, false }

func (c *collectingCallback) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]string(nil), c.values...)
}

func TestSubscriber_EndToEndResumesAfterCommit(t *testing.T) {
	_, nc := brodtest.StartEmbeddedNATS(t)
	brodtest.CreateStream(t, nc, "orders")

	pub, err := source.NewJetStream(nc, source.JetStreamConfig{})
	require.NoError(t, err)

	publish := func(value string) int64 {
		seq, err := pub.Publish(t.Context(), "orders", 0, nil, []byte(value))
		require.NoError(t, err)

		return seq
	}

	newConfig := func(cb brod.MessageCallback) brod.SubscriberConfig {
		cfg := brod.TestConfig()
		cfg.Client = nc
		cfg.GroupID = "e2e"
		cfg.Topics = []string{"orders"}
		cfg.Callback = cb

		return cfg
	}

	var lastSeq int64
	for i := 1; i <= 3; i++ {
		lastSeq = publish(fmt.Sprintf("msg-%d", i))
	}

	// First run consumes everything from the start.
	cb1 := &collectingCallback{}
	sub1, err := brod.New(newConfig(cb1), brod.WithLogger(brodtest.NewTestLogger(t)))
	require.NoError(t, err)
	require.NoError(t, sub1.Start(t.Context()))

	require.Eventually(t, func() bool {
		return len(cb1.snapshot()) == 3
	}, 10*time.Second, 20*time.Millisecond)
	require.Equal(t, []string{"msg-1", "msg-2", "msg-3"}, cb1.snapshot())

	// Wait for the last commit to reach the coordinator's KV bucket before
	// shutting down.
	js, err := jetstream.New(nc)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		kv, kerr := js.KeyValue(context.Background(), "brod-group-e2e")
		if kerr != nil {
			return false
		}
		entry, gerr := kv.Get(context.Background(), "offset.orders.0")
		if gerr != nil {
			return false
		}
		committed, perr := strconv.ParseInt(string(entry.Value()), 10, 64)

		return perr == nil && committed == lastSeq
	}, 10*time.Second, 20*time.Millisecond)

	require.NoError(t, sub1.Stop(t.Context()))

	// Second run of the same group must resume after the committed offset.
	publish("msg-4")
	publish("msg-5")

	cb2 := &collectingCallback{}
	sub2, err := brod.New(newConfig(cb2), brod.WithLogger(brodtest.NewTestLogger(t)))
	require.NoError(t, err)
	require.NoError(t, sub2.Start(t.Context()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sub2.Stop(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(cb2.snapshot()) == 2
	}, 10*time.Second, 20*time.Millisecond)
	require.Equal(t, []string{"msg-4", "msg-5"}, cb2.snapshot())
}

func TestSubscriber_EndToEndWithInjectedStaticSource(t *testing.T) {
	_, nc := brodtest.StartEmbeddedNATS(t)

	src := source.NewStatic()
	src.AppendValues("orders", 0, []byte("a"), []byte("b"))

	cb := &collectingCallback{}
	cfg := brod.TestConfig()
	cfg.Client = nc
	cfg.GroupID = "static-e2e"
	cfg.Topics = []string{"orders"}
	cfg.Callback = cb

	sub, err := brod.New(cfg,
		brod.WithMessageSource(src),
		brod.WithLogger(brodtest.NewTestLogger(t)),
	)
	require.NoError(t, err)
	require.NoError(t, sub.Start(t.Context()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sub.Stop(ctx)
	}()

	require.Eventually(t, func() bool {
		return len(cb.snapshot()) == 2
	}, 10*time.Second, 20*time.Millisecond)
	require.Equal(t, []string{"a", "b"}, cb.snapshot())
}
