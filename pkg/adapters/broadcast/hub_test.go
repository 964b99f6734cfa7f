package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/inkwell/pkg/core"
)

func update(text string) core.SyncMessage {
	return core.SyncMessage{Type: core.MessageTypeUpdate, Content: text, Source: core.TargetScratch}
}

func receive(t *testing.T, ch <-chan core.SyncMessage) core.SyncMessage {
	t.Helper()
	select {
	case m := <-ch:
		return m
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
		return core.SyncMessage{}
	}
}

func assertSilent(t *testing.T, ch <-chan core.SyncMessage) {
	t.Helper()
	select {
	case m := <-ch:
		t.Fatalf("unexpected message: %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub(t *testing.T) {
	t.Run("Delivers To Peers Only", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := NewHub(0)
		a, b := hub.Join("notes"), hub.Join("notes")
		inA, err := a.Subscribe(ctx)
		require.NoError(t, err)
		inB, err := b.Subscribe(ctx)
		require.NoError(t, err)

		require.NoError(t, a.Publish(ctx, update("hello")))
		assert.Equal(t, "hello", receive(t, inB).Content)
		assertSilent(t, inA)
	})

	t.Run("Channels Are Isolated", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := NewHub(0)
		a, other := hub.Join("notes"), hub.Join("other")
		in, err := other.Subscribe(ctx)
		require.NoError(t, err)

		require.NoError(t, a.Publish(ctx, update("x")))
		assertSilent(t, in)
		assert.Equal(t, "other", other.Name())
	})

	t.Run("Full Queue Drops", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		hub := NewHub(1)
		a, b := hub.Join("notes"), hub.Join("notes")
		in, err := b.Subscribe(ctx)
		require.NoError(t, err)

		require.NoError(t, a.Publish(ctx, update("1")))
		require.NoError(t, a.Publish(ctx, update("2")))
		assert.Equal(t, uint64(1), hub.Dropped())
		assert.Equal(t, "1", receive(t, in).Content)
	})

	t.Run("Cancel Closes Subscription", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		hub := NewHub(0)
		a := hub.Join("notes")
		in, err := a.Subscribe(ctx)
		require.NoError(t, err)

		cancel()
		require.Eventually(t, func() bool {
			_, ok := <-in
			return !ok
		}, time.Second, 10*time.Millisecond)

		// Publishing after the peer left is still fine.
		assert.NoError(t, hub.Join("notes").Publish(context.Background(), update("late")))
	})

	t.Run("Cancelled Context Refused", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewHub(0).Join("notes").Subscribe(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
