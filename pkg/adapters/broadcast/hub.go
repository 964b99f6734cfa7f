// Package broadcast is an in-process, fire-and-forget channel bus connecting
// sessions that share a process.
package broadcast

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/aretw0/inkwell/pkg/core"
)

// DefaultBufferSize is the per-subscriber queue length. Messages that do not
// fit are dropped.
const DefaultBufferSize = 16

// Hub owns named channels.
type Hub struct {
	mu       sync.Mutex
	channels map[string]*channel
	buffer   int
	dropped  atomic.Uint64
}

// NewHub creates a hub. A non-positive buffer uses DefaultBufferSize.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	return &Hub{channels: make(map[string]*channel), buffer: buffer}
}

type channel struct {
	mu   sync.RWMutex
	subs map[*Endpoint]map[chan core.SyncMessage]struct{}
}

// Endpoint is one participant on a named channel. It never receives its own
// publications.
type Endpoint struct {
	hub  *Hub
	name string
	ch   *channel
}

// Join returns a new endpoint on the named channel, creating it if needed.
func (h *Hub) Join(name string) *Endpoint {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.channels[name]
	if !ok {
		ch = &channel{subs: make(map[*Endpoint]map[chan core.SyncMessage]struct{})}
		h.channels[name] = ch
	}
	return &Endpoint{hub: h, name: name, ch: ch}
}

// Dropped reports how many deliveries were skipped on full queues.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Publish delivers msg to every other endpoint's subscribers without blocking.
func (e *Endpoint) Publish(ctx context.Context, msg core.SyncMessage) error {
	e.ch.mu.RLock()
	defer e.ch.mu.RUnlock()

	for owner, queues := range e.ch.subs {
		if owner == e {
			continue
		}
		for q := range queues {
			select {
			case q <- msg:
			default:
				e.hub.dropped.Add(1)
			}
		}
	}
	return nil
}

// Subscribe registers a queue that is closed and removed when ctx ends.
func (e *Endpoint) Subscribe(ctx context.Context) (<-chan core.SyncMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := make(chan core.SyncMessage, e.hub.buffer)

	e.ch.mu.Lock()
	if e.ch.subs[e] == nil {
		e.ch.subs[e] = make(map[chan core.SyncMessage]struct{})
	}
	e.ch.subs[e][q] = struct{}{}
	e.ch.mu.Unlock()

	context.AfterFunc(ctx, func() {
		e.ch.mu.Lock()
		defer e.ch.mu.Unlock()
		delete(e.ch.subs[e], q)
		if len(e.ch.subs[e]) == 0 {
			delete(e.ch.subs, e)
		}
		close(q)
	})
	return q, nil
}

// Name returns the channel name.
func (e *Endpoint) Name() string {
	return e.name
}

var _ core.Notifier = (*Endpoint)(nil)
