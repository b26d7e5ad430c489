package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestStatic_FetchReturnsAppendedMessages(t *testing.T) {
	src := NewStatic()
	src.Append("orders", 0, []byte("k1"), []byte("v1"))
	src.Append("orders", 0, nil, []byte("v2"))
	src.Append("orders", 1, nil, []byte("other-partition"))

	set, err := src.Fetch(t.Context(), "orders", 0, 0, 10)
	require.NoError(t, err)
	require.Equal(t, "orders", set.Topic)
	require.Equal(t, int32(0), set.Partition)
	require.Equal(t, int64(2), set.HighWaterMark)
	require.Len(t, set.Messages, 2)
	require.Equal(t, int64(0), set.Messages[0].Offset)
	require.Equal(t, "k1", string(set.Messages[0].Key))
	require.Equal(t, "v2", string(set.Messages[1].Value))
}

func TestStatic_FetchHonorsOffsetAndMax(t *testing.T) {
	src := NewStatic()
	last := src.AppendValues("orders", 0, []byte("a"), []byte("b"), []byte("c"), []byte("d"))
	require.Equal(t, int64(3), last)

	set, err := src.Fetch(t.Context(), "orders", 0, 1, 2)
	require.NoError(t, err)
	require.Len(t, set.Messages, 2)
	require.Equal(t, int64(1), set.Messages[0].Offset)
	require.Equal(t, int64(2), set.Messages[1].Offset)

	lastOffset, ok := set.LastOffset()
	require.True(t, ok)
	require.Equal(t, int64(2), lastOffset)
}

func TestStatic_FetchBlocksUntilAppend(t *testing.T) {
	src := NewStatic()

	done := make(chan struct{})
	go func() {
		defer close(done)
		set, err := src.Fetch(context.Background(), "orders", 0, 0, 10)
		if err == nil && len(set.Messages) == 1 {
			return
		}
		panic("unexpected fetch result")
	}()

	// The fetch must still be waiting.
	select {
	case <-done:
		t.Fatal("fetch returned before any message existed")
	case <-time.After(50 * time.Millisecond):
	}

	src.Append("orders", 0, nil, []byte("late"))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not observe the append")
	}
}

func TestStatic_FetchRespectsContext(t *testing.T) {
	src := NewStatic()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := src.Fetch(ctx, "orders", 0, 0, 10)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
