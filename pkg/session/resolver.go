package session

import (
	"context"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/aretw0/inkwell/pkg/core"
)

// Receive handles a sync message from another instance.
//
// A dirty document is never overwritten: the message raises a conflict
// instead. A clean document adopts the broadcast content as-is.
func (s *Session) Receive(msg core.SyncMessage) {
	if msg.Type != core.MessageTypeUpdate {
		s.logger.Debug("ignoring sync message", "type", msg.Type)
		return
	}
	if msg.Instance != "" && msg.Instance == s.id {
		return
	}
	if msg.Digest != 0 && msg.Digest != xxhash.Sum64String(msg.Content) {
		s.logger.Warn("dropping corrupted sync message", "source", msg.Source, "from", msg.Instance)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Dirty {
		s.raiseConflictLocked(core.CauseBroadcast)
		return
	}
	if msg.Content == s.state.Text {
		return
	}

	s.state.Text = msg.Content
	s.state.Preview = s.render(msg.Content)
	s.setStatusLocked(core.StatusRemoteUpdated)
	s.emitLocked(core.NewEvent(core.EventRemoteUpdate, s.state.Target))
	s.logger.Debug("adopted broadcast content", "source", msg.Source, "from", msg.Instance)
}

// Reload discards local edits, reloads the active target and clears the
// conflict. On failure the conflict is kept.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	target := s.state.Target
	s.mu.Unlock()

	text, mod, err := s.store.LoadOrEmpty(ctx, target)
	if err != nil {
		s.logger.Error("reload failed", "target", target, "error", err)
		return err
	}

	s.saves.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Target != target {
		return fmt.Errorf("target changed to %s during reload", s.state.Target)
	}
	if target.IsFile() {
		s.state.LastKnownModTime = mod
	}
	s.replaceTextLocked(text)
	s.clearConflictLocked()
	s.setStatusLocked(core.StatusReloaded)
	s.emitLocked(core.NewEvent(core.EventReload, target))
	return nil
}

// Dismiss keeps local edits and clears the conflict. With a bound file the
// known mod time advances to the file's current one, so the poller does not
// flag the same external change again. Nothing is written here; if the text
// is dirty the held save is scheduled again.
func (s *Session) Dismiss(ctx context.Context) error {
	s.mu.Lock()
	if s.state.Conflict != core.ConflictWarning {
		s.mu.Unlock()
		return nil
	}
	target := s.state.Target
	s.mu.Unlock()

	var (
		mod     time.Time
		advance bool
	)
	if target.IsFile() {
		m, err := s.store.ModTime(ctx, target)
		if err != nil {
			s.logger.Warn("could not refresh file timestamp on dismiss", "target", target, "error", err)
		} else {
			mod, advance = m, true
		}
	}

	s.mu.Lock()
	if advance && s.state.Target == target && mod.After(s.state.LastKnownModTime) {
		s.state.LastKnownModTime = mod
	}
	s.clearConflictLocked()
	dirty := s.state.Dirty
	s.mu.Unlock()

	if dirty {
		s.RequestSave()
	}
	return nil
}

func (s *Session) raiseConflictLocked(cause core.ConflictCause) {
	if s.state.Conflict == core.ConflictWarning {
		return
	}
	s.state.Conflict = core.ConflictWarning
	s.state.Cause = cause
	s.setStatusLocked(core.StatusConflict)

	e := core.NewEvent(core.EventConflict, s.state.Target)
	e.Cause = cause
	s.emitLocked(e)
	s.logger.Warn("conflict detected", "cause", cause, "target", s.state.Target)
}

func (s *Session) clearConflictLocked() {
	if s.state.Conflict == core.ConflictClear {
		return
	}
	s.state.Conflict = core.ConflictClear
	s.state.Cause = core.CauseNone
	s.emitLocked(core.NewEvent(core.EventConflictCleared, s.state.Target))
}
