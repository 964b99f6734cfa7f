package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/inkwell/pkg/core"
)

func startRelay(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	relay := NewServer(ServerConfig{})
	ts := httptest.NewServer(relay.Handler())
	t.Cleanup(ts.Close)
	return relay, ts
}

func dialAndSubscribe(t *testing.T, ctx context.Context, base, channel string) (*Client, <-chan core.SyncMessage) {
	t.Helper()
	c, err := Dial(ctx, ClientConfig{URL: base, Channel: channel})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	in, err := c.Subscribe(ctx)
	require.NoError(t, err)
	return c, in
}

func TestChannelURL(t *testing.T) {
	got, err := ChannelURL("http://localhost:8787/", "my notes")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8787/channels/my%20notes", got)

	got, err = ChannelURL("wss://relay.example", "notes")
	require.NoError(t, err)
	assert.Equal(t, "wss://relay.example/channels/notes", got)

	_, err = ChannelURL("ftp://nope", "notes")
	assert.Error(t, err)
}

func TestRelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay, ts := startRelay(t)

	a, inA := dialAndSubscribe(t, ctx, ts.URL, "notes")
	_, inB := dialAndSubscribe(t, ctx, ts.URL, "notes")
	_, inOther := dialAndSubscribe(t, ctx, ts.URL, "other")

	require.Eventually(t, func() bool { return relay.Peers("notes") == 2 }, 2*time.Second, 10*time.Millisecond)

	t.Run("Forwards To Peers", func(t *testing.T) {
		sent := core.SyncMessage{Type: core.MessageTypeUpdate, Content: "hello", Source: core.TargetFile, Instance: "a", Digest: 42}
		require.NoError(t, a.Publish(ctx, sent))

		select {
		case got := <-inB:
			assert.Equal(t, sent, got)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for relayed message")
		}
	})

	t.Run("Does Not Echo Or Cross Channels", func(t *testing.T) {
		select {
		case m := <-inA:
			t.Fatalf("sender received its own frame: %+v", m)
		case m := <-inOther:
			t.Fatalf("other channel received frame: %+v", m)
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("Second Subscribe Refused", func(t *testing.T) {
		_, err := a.Subscribe(ctx)
		assert.ErrorIs(t, err, ErrAlreadySubscribed)
	})
}

func TestClientClosesOnCancel(t *testing.T) {
	relay, ts := startRelay(t)

	ctx, cancel := context.WithCancel(context.Background())
	c, in := dialAndSubscribe(t, ctx, ts.URL, "notes")
	require.Eventually(t, func() bool { return relay.Peers("notes") == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		_, ok := <-in
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	assert.False(t, c.Connected())
	assert.ErrorIs(t, c.Publish(context.Background(), core.SyncMessage{Type: core.MessageTypeUpdate}), ErrDisconnected)
	require.Eventually(t, func() bool { return relay.Peers("notes") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHealthz(t *testing.T) {
	_, ts := startRelay(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	relay := NewServer(ServerConfig{Addr: "127.0.0.1:0"})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- relay.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * shutdownMax):
		t.Fatal("relay did not stop")
	}
}
