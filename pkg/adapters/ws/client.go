package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"

	"github.com/aretw0/inkwell/pkg/core"
)

var (
	// ErrDisconnected is returned by Publish while the client is reconnecting.
	ErrDisconnected = errors.New("relay disconnected")
	// ErrAlreadySubscribed is returned by a second Subscribe call.
	ErrAlreadySubscribed = errors.New("already subscribed")
)

// ClientConfig holds relay client settings.
type ClientConfig struct {
	// URL is the relay base, e.g. ws://localhost:8787.
	URL     string
	Channel string
	Logger  *slog.Logger
	// MaxElapsed caps a single reconnect attempt sequence; zero retries
	// until the subscription context ends.
	MaxElapsed time.Duration
}

// Client is a core.Notifier backed by one relay connection. It reconnects
// with exponential backoff when the connection drops.
type Client struct {
	endpoint   string
	logger     *slog.Logger
	maxElapsed time.Duration

	mu         sync.Mutex
	conn       *websocket.Conn
	subscribed bool
	reconnects int
}

// ChannelURL joins the relay base URL and a channel name.
func ChannelURL(base, channel string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid relay url %q: %w", base, err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported relay scheme %q", u.Scheme)
	}
	u.Path += "/channels/" + url.PathEscape(channel)
	return u.String(), nil
}

// Dial connects to the relay channel.
func Dial(ctx context.Context, config ClientConfig) (*Client, error) {
	if config.Channel == "" {
		config.Channel = "inkwell"
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	endpoint, err := ChannelURL(config.URL, config.Channel)
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint:   endpoint,
		logger:     config.Logger.With("relay", endpoint),
		maxElapsed: config.MaxElapsed,
	}
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay: %w", err)
	}
	conn.SetReadLimit(MaxMessageSize)
	return conn, nil
}

// Publish writes msg to the relay.
func (c *Client) Publish(ctx context.Context, msg core.SyncMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrDisconnected
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	} else {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("failed to publish: %w", err)
	}
	return nil
}

// Subscribe starts the read loop. Only one subscription per client is allowed.
func (c *Client) Subscribe(ctx context.Context) (<-chan core.SyncMessage, error) {
	c.mu.Lock()
	if c.subscribed {
		c.mu.Unlock()
		return nil, ErrAlreadySubscribed
	}
	c.subscribed = true
	c.mu.Unlock()

	out := make(chan core.SyncMessage, 16)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		stop := context.AfterFunc(ctx, func() { c.closeConn() })
		defer stop()

		for {
			if err := c.readUntilError(ctx, out); err != nil && ctx.Err() == nil {
				c.logger.Warn("relay connection lost", "error", err)
			}
			if ctx.Err() != nil {
				return nil
			}
			if err := c.reconnect(ctx); err != nil {
				c.logger.Error("giving up on relay", "error", err)
				return nil
			}
			if ctx.Err() != nil {
				c.closeConn()
				return nil
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		c.logger.Error("relay reader panic", "error", err)
	}))
	return out, nil
}

func (c *Client) readUntilError(ctx context.Context, out chan<- core.SyncMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrDisconnected
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.conn == conn {
				c.conn = nil
			}
			c.mu.Unlock()
			_ = conn.Close()
			return err
		}
		var msg core.SyncMessage
		if err := json.Unmarshal(frame, &msg); err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) reconnect(ctx context.Context) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = c.maxElapsed

	return backoff.Retry(func() error {
		conn, err := c.dial(ctx)
		if err != nil {
			c.logger.Debug("reconnect attempt failed", "error", err)
			return err
		}
		c.mu.Lock()
		c.conn = conn
		c.reconnects++
		c.mu.Unlock()
		c.logger.Info("relay reconnected")
		return nil
	}, backoff.WithContext(policy, ctx))
}

// Connected reports whether a relay connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Reconnects returns how many times the connection was re-established.
func (c *Client) Reconnects() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnects
}

func (c *Client) closeConn() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	_ = c.conn.Close()
	c.conn = nil
}

// Close disconnects from the relay.
func (c *Client) Close() error {
	c.closeConn()
	return nil
}

var _ core.Notifier = (*Client)(nil)
