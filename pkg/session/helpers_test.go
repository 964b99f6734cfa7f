package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aretw0/inkwell/pkg/core"
)

// manualClock fires timers and ticks only when advanced.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*manualTimer
	tickers []*manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{clock: c, ch: make(chan time.Time, 1), every: d, next: c.now.Add(d)}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves time forward and runs due timers synchronously, in order.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var due []*manualTimer
	pending := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.stopped:
		case !t.at.After(now):
			due = append(due, t)
		default:
			pending = append(pending, t)
		}
	}
	c.timers = pending

	for _, t := range c.tickers {
		if t.stopped {
			continue
		}
		for !t.next.After(now) {
			select {
			case t.ch <- now:
			default:
			}
			t.next = t.next.Add(t.every)
		}
	}
	c.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	f       func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := !t.stopped
	t.stopped = true
	return was
}

type manualTicker struct {
	clock   *manualClock
	ch      chan time.Time
	every   time.Duration
	next    time.Time
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }
func (t *manualTicker) Stop() {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	t.stopped = true
}

// memScratch is an in-memory scratch slot with failure and blocking hooks.
type memScratch struct {
	mu      sync.Mutex
	slots   map[string]string
	saves   []string
	failErr error
	gate    chan struct{} // when set, Save blocks until it is closed
	entered chan struct{}
}

func newMemScratch() *memScratch {
	return &memScratch{slots: make(map[string]string)}
}

func (m *memScratch) Load(ctx context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	text, ok := m.slots[key]
	if !ok {
		return "", core.ErrNotFound
	}
	return text, nil
}

func (m *memScratch) Save(ctx context.Context, key, content string) error {
	m.mu.Lock()
	gate, entered := m.gate, m.entered
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.slots[key] = content
	m.saves = append(m.saves, content)
	return nil
}

func (m *memScratch) Saves() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.saves...)
}

// memFiles is an in-memory file store whose mod times advance one second per write.
type memFiles struct {
	mu       sync.Mutex
	files    map[string]memFile
	clock    time.Time
	modErr   error
	modCalls int
	writes   int
}

type memFile struct {
	content string
	mod     time.Time
}

func newMemFiles() *memFiles {
	return &memFiles{
		files: make(map[string]memFile),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memFiles) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memFiles) Read(ctx context.Context, path string) (string, time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[path]
	if !ok {
		return "", time.Time{}, core.ErrHandleRevoked
	}
	return f.content, f.mod, nil
}

func (m *memFiles) Write(ctx context.Context, path, content string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	f := memFile{content: content, mod: m.tick()}
	m.files[path] = f
	return f.mod, nil
}

func (m *memFiles) ModTime(ctx context.Context, path string) (time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modCalls++
	if m.modErr != nil {
		return time.Time{}, m.modErr
	}
	f, ok := m.files[path]
	if !ok {
		return time.Time{}, core.ErrHandleRevoked
	}
	return f.mod, nil
}

// Touch simulates another program writing the file.
func (m *memFiles) Touch(path, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[path] = memFile{content: content, mod: m.tick()}
}

func (m *memFiles) Content(path string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.files[path].content
}

func (m *memFiles) ModCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modCalls
}

// recordingNotifier captures published messages and replays injected ones.
type recordingNotifier struct {
	mu        sync.Mutex
	published []core.SyncMessage
	incoming  chan core.SyncMessage
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{incoming: make(chan core.SyncMessage, 8)}
}

func (n *recordingNotifier) Publish(ctx context.Context, msg core.SyncMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, msg)
	return nil
}

func (n *recordingNotifier) Subscribe(ctx context.Context) (<-chan core.SyncMessage, error) {
	return n.incoming, nil
}

func (n *recordingNotifier) Published() []core.SyncMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]core.SyncMessage(nil), n.published...)
}

type stubPicker struct {
	path string
	err  error
}

func (p stubPicker) Pick(ctx context.Context, mode core.PickMode) (string, error) {
	return p.path, p.err
}
