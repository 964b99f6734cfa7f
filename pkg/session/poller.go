package session

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"

	"github.com/aretw0/inkwell/pkg/core"
)

// Poll checks whether the bound file changed outside this session.
//
// Without a bound file, or while a save is in flight, the tick is skipped.
// A strictly newer mod time reloads a clean document silently and raises a
// conflict on a dirty one. Errors are returned for logging only; they never
// raise a conflict.
func (s *Session) Poll(ctx context.Context) error {
	s.mu.Lock()
	target := s.state.Target
	if !target.IsFile() || s.state.Saving {
		s.mu.Unlock()
		return nil
	}
	last := s.state.LastKnownModTime
	s.mu.Unlock()

	mod, err := s.store.ModTime(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to poll %s: %w", target, err)
	}
	if !mod.After(last) {
		return nil
	}

	s.mu.Lock()
	// The state may have moved while the timestamp was being read.
	if s.state.Target != target || s.state.Saving || !s.state.LastKnownModTime.Equal(last) {
		s.mu.Unlock()
		return nil
	}
	if s.state.Dirty {
		s.raiseConflictLocked(core.CauseExternalFile)
		s.mu.Unlock()
		return nil
	}
	gen := s.gen
	s.mu.Unlock()

	text, loadedMod, err := s.store.Load(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to reload %s: %w", target, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Target != target || s.state.Saving {
		return nil
	}
	if s.gen != gen || s.state.Dirty {
		s.raiseConflictLocked(core.CauseExternalFile)
		return nil
	}
	s.state.LastKnownModTime = loadedMod
	s.replaceTextLocked(text)
	s.setStatusLocked(core.StatusReloaded)
	s.emitLocked(core.NewEvent(core.EventReload, target))
	s.logger.Debug("reloaded external change", "target", target, "mod_time", loadedMod)
	return nil
}

// pollWorker drives Session.Poll on a fixed interval. When the file store can
// watch paths, filesystem events on the bound file trigger an early poll.
type pollWorker struct {
	*worker.BaseWorker
	session  *Session
	interval time.Duration
	cancel   context.CancelFunc

	ticks    atomic.Int64
	failures atomic.Int64
	watching atomic.Bool
}

func newPollWorker(s *Session, interval time.Duration) *pollWorker {
	return &pollWorker{
		BaseWorker: worker.NewBaseWorker("file-poller"),
		session:    s,
		interval:   interval,
	}
}

func (w *pollWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("poller already started (status: %s)", status)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *pollWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

func (w *pollWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
			"interval":          w.interval.String(),
			"ticks":             fmt.Sprintf("%d", w.ticks.Load()),
			"failures":          fmt.Sprintf("%d", w.failures.Load()),
			"watching":          fmt.Sprintf("%t", w.watching.Load()),
		}
	})
}

// tick runs one poll and logs failures; the next tick retries independently.
func (w *pollWorker) tick(ctx context.Context, reason string) {
	w.ticks.Add(1)
	if err := w.session.Poll(ctx); err != nil {
		w.failures.Add(1)
		w.session.logger.Warn("poll failed", "reason", reason, "error", err)
	}
}

// watch (re)subscribes to filesystem events for the currently bound file.
func (w *pollWorker) watch(ctx context.Context, current string, stop context.CancelFunc) (<-chan struct{}, string, context.CancelFunc) {
	watcher, ok := w.session.config.Files.(core.Watcher)
	if !ok {
		return nil, "", stop
	}

	target := w.session.Snapshot().Target
	if target.IsFile() && target.Path == current {
		return nil, current, stop
	}
	if stop != nil {
		stop()
	}
	w.watching.Store(false)
	if !target.IsFile() {
		return nil, "", nil
	}

	watchCtx, cancel := context.WithCancel(ctx)
	nudges, err := watcher.Watch(watchCtx, target.Path)
	if err != nil {
		cancel()
		w.session.logger.Debug("file watch unavailable, relying on interval", "path", target.Path, "error", err)
		return nil, "", nil
	}
	w.watching.Store(true)
	return nudges, target.Path, cancel
}

func (w *pollWorker) run(ctx context.Context) (err error) {
	logger := w.session.logger
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("poller panic: %v", recovered)
			if logger.Enabled(ctx, slog.LevelDebug) {
				logger.Error("poller panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				logger.Error("poller panic", "error", panicErr)
			}
			err = panicErr
		}
	}()

	ticker := w.session.clock.NewTicker(w.interval)
	defer ticker.Stop()

	var (
		nudges    <-chan struct{}
		watched   string
		stopWatch context.CancelFunc
	)
	defer func() {
		if stopWatch != nil {
			stopWatch()
		}
	}()

	rewatch := func() {
		var fresh <-chan struct{}
		fresh, watched, stopWatch = w.watch(ctx, watched, stopWatch)
		if fresh != nil || watched == "" {
			nudges = fresh
		}
	}
	rewatch()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.session.retarget:
			rewatch()

		case <-ticker.C():
			if nudges == nil {
				rewatch()
			}
			w.tick(ctx, "interval")

		case _, ok := <-nudges:
			if !ok {
				nudges, watched = nil, ""
				w.watching.Store(false)
				continue
			}
			w.tick(ctx, "fs-event")
		}
	}
}
