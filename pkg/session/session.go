// Package session implements the persistence and synchronization state
// machine of a single-document editor.
//
// A Session owns the document text and decides, on every edit, timer tick and
// incoming broadcast, whether content is written to the scratch slot, written
// to the bound file, announced to other instances, or flagged as conflicting.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/cenkalti/backoff"
	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/aretw0/inkwell/pkg/core"
)

const (
	DefaultScratchKey    = "online-notes-data"
	DefaultDebounceDelay = 1000 * time.Millisecond
	DefaultPollInterval  = 2000 * time.Millisecond
	DefaultEventBuffer   = 100

	// MaxSaveRetryInterval caps the delay between retries of a failed save.
	MaxSaveRetryInterval = time.Minute
)

// errSaveHeld is returned by a scheduled save while a conflict is unresolved.
var errSaveHeld = errors.New("save held until the conflict is resolved")

// Config holds the collaborators and timing of a Session.
type Config struct {
	ScratchKey    string
	DebounceDelay time.Duration
	PollInterval  time.Duration

	Scratch  core.ScratchStore // required
	Files    core.FileStore
	Notifier core.Notifier
	Renderer core.Renderer
	Picker   core.Picker

	Clock       Clock
	Logger      *slog.Logger
	InstanceID  string
	EventBuffer int

	// File, if set, is opened and bound at Start instead of loading the scratch slot.
	File string
}

// State is the session state. Session.Snapshot returns a copy.
type State struct {
	Text             string             `json:"-"`
	Preview          string             `json:"-"`
	Dirty            bool               `json:"dirty"`
	LastKnownModTime time.Time          `json:"last_known_mod_time,omitempty"`
	Target           core.Target        `json:"target"`
	Saving           bool               `json:"saving"`
	Conflict         core.ConflictState `json:"conflict"`
	Cause            core.ConflictCause `json:"cause,omitempty"`
	Status           core.Status        `json:"status"`
}

// Session is the application root of one editing instance.
type Session struct {
	mu    sync.Mutex
	state State
	gen   uint64 // bumped on every edit and every load that replaces the text

	config Config
	id     string
	clock  Clock
	logger *slog.Logger
	store  *store
	saves  *debouncer
	retry  *backoff.ExponentialBackOff // guarded by mu
	poller *pollWorker

	events    chan core.Event
	retarget  chan struct{}
	baseCtx   context.Context
	cancel    context.CancelFunc
	listening sync.WaitGroup
	started   bool
	closed    bool
}

// New creates a Session. It does not touch storage until Start.
func New(config Config) (*Session, error) {
	if config.Scratch == nil {
		return nil, errors.New("session requires a scratch store")
	}
	if config.ScratchKey == "" {
		config.ScratchKey = DefaultScratchKey
	}
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = DefaultDebounceDelay
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.EventBuffer <= 0 {
		config.EventBuffer = DefaultEventBuffer
	}
	if config.Clock == nil {
		config.Clock = RealClock()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}

	s := &Session{
		config: config,
		id:     config.InstanceID,
		clock:  config.Clock,
		logger: config.Logger.With("instance", config.InstanceID),
		store: &store{
			scratch:    config.Scratch,
			files:      config.Files,
			scratchKey: config.ScratchKey,
		},
		events:   make(chan core.Event, config.EventBuffer),
		retarget: make(chan struct{}, 1),
		baseCtx:  context.Background(),
		state: State{
			Target: core.ScratchTarget(),
		},
	}
	s.saves = newDebouncer(s.clock, config.DebounceDelay, s.flushScheduled)

	s.retry = backoff.NewExponentialBackOff()
	s.retry.InitialInterval = config.DebounceDelay
	s.retry.MaxInterval = MaxSaveRetryInterval
	s.retry.RandomizationFactor = 0
	s.retry.MaxElapsedTime = 0
	s.retry.Clock = s.clock
	s.retry.Reset()
	return s, nil
}

// Start loads the initial document and starts the poller and the sync listener.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("session already started")
	}
	s.started = true
	s.baseCtx = context.WithoutCancel(ctx)
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	if s.config.File != "" {
		if err := s.Open(ctx, s.config.File); err != nil {
			cancel()
			return err
		}
	} else {
		text, _, err := s.store.LoadOrEmpty(ctx, core.ScratchTarget())
		if err != nil {
			cancel()
			return fmt.Errorf("failed to load scratch slot: %w", err)
		}
		s.mu.Lock()
		s.replaceTextLocked(text)
		s.mu.Unlock()
	}

	s.poller = newPollWorker(s, s.config.PollInterval)
	if err := s.poller.Start(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to start poller: %w", err)
	}

	if err := s.listen(runCtx); err != nil {
		cancel()
		return err
	}

	s.logger.Debug("session started", "target", s.Snapshot().Target)
	return nil
}

// Stop flushes unsaved text, then stops the poller and the listener.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	if !s.saves.stopAndWait(5 * time.Second) {
		s.logger.Warn("timed out waiting for scheduled save")
	}
	s.flushOnStop(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	cancel := s.cancel
	close(s.events)
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	var err error
	if s.poller != nil {
		err = s.poller.Stop(ctx)
	}
	s.listening.Wait()
	return err
}

// ID returns the instance identifier carried in broadcasts.
func (s *Session) ID() string {
	return s.id
}

// Events streams observable state changes. It is closed by Stop.
func (s *Session) Events() <-chan core.Event {
	return s.events
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Text returns the current document text.
func (s *Session) Text() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Text
}

// Preview returns the rendered document.
func (s *Session) Preview() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Preview
}

// Edit replaces the document text, marks it dirty and schedules a save.
func (s *Session) Edit(text string) {
	s.mu.Lock()
	s.state.Text = text
	s.state.Dirty = true
	s.gen++
	s.state.Preview = s.render(text)
	s.setStatusLocked(core.StatusSaving)
	s.mu.Unlock()

	s.RequestSave()
}

// RequestSave schedules a save once no further request arrives for the
// debounce window.
func (s *Session) RequestSave() {
	s.saves.trigger()
}

// Save cancels any scheduled save and persists immediately.
func (s *Session) Save(ctx context.Context) error {
	s.saves.cancel()
	return s.PerformSave(ctx)
}

func (s *Session) flushScheduled() {
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	err := s.save(ctx, true)
	if errors.Is(err, errSaveHeld) {
		s.logger.Debug("scheduled save held by conflict")
		return
	}
	if err != nil {
		s.logger.Debug("scheduled save failed", "error", err)
	}
}

// flushOnStop persists dirty text before shutdown. With a conflict raised on a
// bound file, the local text goes to the scratch slot and the file keeps the
// external change.
func (s *Session) flushOnStop(ctx context.Context) {
	s.mu.Lock()
	dirty := s.state.Dirty
	conflict := s.state.Conflict == core.ConflictWarning
	target := s.state.Target
	text := s.state.Text
	s.mu.Unlock()

	switch {
	case !dirty:
	case !conflict:
		if err := s.PerformSave(ctx); err != nil {
			s.logger.Error("final save failed", "error", err)
		}
	case target.IsFile():
		if _, err := s.store.Save(ctx, core.ScratchTarget(), text); err != nil {
			s.logger.Error("failed to keep local edits in scratch", "error", err)
			return
		}
		s.logger.Warn("stopped with unresolved conflict, local edits kept in scratch", "target", target)
	default:
		s.logger.Warn("stopped with unresolved conflict, local edits not saved", "target", target)
	}
}

// PerformSave writes the current text to the active target and broadcasts it.
//
// It is a no-op while another save is in flight. The dirty flag is only
// cleared if no edit happened while the write was pending; otherwise another
// save is scheduled so the later edit is captured. A failed save is retried
// with exponential backoff while the text stays dirty.
func (s *Session) PerformSave(ctx context.Context) error {
	return s.save(ctx, false)
}

// save backs PerformSave and the scheduler. A scheduled save never overwrites while a conflict
// warning is up; the user resolves it first.
func (s *Session) save(ctx context.Context, scheduled bool) error {
	s.mu.Lock()
	if s.state.Saving {
		s.mu.Unlock()
		s.logger.Debug("save already in flight, skipping")
		return nil
	}
	if scheduled && s.state.Conflict == core.ConflictWarning {
		s.mu.Unlock()
		return errSaveHeld
	}
	s.state.Saving = true
	target := s.state.Target
	text := s.state.Text
	gen := s.gen
	s.setStatusLocked(core.StatusSaving)
	s.mu.Unlock()

	mod, err := s.store.Save(ctx, target, text)

	s.mu.Lock()
	s.state.Saving = false
	if err != nil {
		s.setStatusLocked(core.StatusSaveFailed)
		next := s.retry.NextBackOff()
		s.mu.Unlock()
		s.logger.Error("save failed", "target", target, "error", err, "retry_in", next)
		if next != backoff.Stop {
			s.saves.triggerAfter(next)
		}
		return err
	}
	s.retry.Reset()
	if s.state.Target == target {
		if target.IsFile() {
			s.state.LastKnownModTime = mod
		}
		if s.gen == gen {
			s.state.Dirty = false
			s.setStatusLocked(core.SavedStatus(target))
		}
	}
	stillDirty := s.state.Dirty
	s.mu.Unlock()

	s.logger.Debug("saved", "target", target, "bytes", len(text))
	s.broadcast(ctx, text, target.Kind)

	if stillDirty {
		s.RequestSave()
	}
	return nil
}

// Open reads path, binds it as the active target and copies its content into
// the scratch slot.
func (s *Session) Open(ctx context.Context, path string) error {
	target := core.FileTarget(path)
	text, mod, err := s.store.Load(ctx, target)
	if err != nil {
		s.logger.Error("open failed", "path", path, "error", err)
		return err
	}

	s.saves.cancel()
	s.mu.Lock()
	s.state.Target = target
	s.state.LastKnownModTime = mod
	s.replaceTextLocked(text)
	s.setStatusLocked(core.StatusOpened)
	s.emitLocked(core.NewEvent(core.EventTargetChanged, target))
	s.mu.Unlock()
	s.signalRetarget()

	if _, err := s.store.Save(ctx, core.ScratchTarget(), text); err != nil {
		s.logger.Warn("failed to copy opened file into scratch slot", "error", err)
	}
	return nil
}

// OpenWithPicker asks the picker for a file to open. Cancelling is a no-op.
func (s *Session) OpenWithPicker(ctx context.Context) error {
	path, err := s.pick(ctx, core.PickOpen)
	if err != nil || path == "" {
		return err
	}
	return s.Open(ctx, path)
}

// SaveAs writes the current text to path and binds it as the active target.
func (s *Session) SaveAs(ctx context.Context, path string) error {
	s.mu.Lock()
	if s.state.Saving {
		s.mu.Unlock()
		return errors.New("a save is already in flight")
	}
	s.state.Saving = true
	text := s.state.Text
	gen := s.gen
	s.setStatusLocked(core.StatusSaving)
	s.mu.Unlock()

	target := core.FileTarget(path)
	mod, err := s.store.Save(ctx, target, text)

	s.mu.Lock()
	s.state.Saving = false
	if err != nil {
		s.setStatusLocked(core.StatusSaveFailed)
		s.mu.Unlock()
		s.logger.Error("save as failed", "path", path, "error", err)
		return err
	}
	s.state.Target = target
	s.state.LastKnownModTime = mod
	if s.gen == gen {
		s.state.Dirty = false
	}
	stillDirty := s.state.Dirty
	s.setStatusLocked(core.StatusSavedFile)
	s.emitLocked(core.NewEvent(core.EventTargetChanged, target))
	s.mu.Unlock()
	s.signalRetarget()

	s.broadcast(ctx, text, target.Kind)
	if stillDirty {
		s.RequestSave()
	}
	return nil
}

// SaveAsWithPicker asks the picker for a destination. Cancelling is a no-op.
func (s *Session) SaveAsWithPicker(ctx context.Context) error {
	path, err := s.pick(ctx, core.PickSave)
	if err != nil || path == "" {
		return err
	}
	return s.SaveAs(ctx, path)
}

func (s *Session) pick(ctx context.Context, mode core.PickMode) (string, error) {
	if s.config.Picker == nil {
		return "", errors.New("no file picker configured")
	}
	path, err := s.config.Picker.Pick(ctx, mode)
	if errors.Is(err, core.ErrCancelled) {
		s.logger.Debug("file picker dismissed")
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to pick file: %w", err)
	}
	return path, nil
}

func (s *Session) broadcast(ctx context.Context, text string, source core.TargetKind) {
	if s.config.Notifier == nil {
		return
	}
	msg := core.SyncMessage{
		Type:     core.MessageTypeUpdate,
		Content:  text,
		Source:   source,
		Instance: s.id,
		Digest:   xxhash.Sum64String(text),
	}
	if err := s.config.Notifier.Publish(ctx, msg); err != nil {
		s.logger.Warn("broadcast failed", "error", err)
	}
}

func (s *Session) listen(ctx context.Context) error {
	if s.config.Notifier == nil {
		return nil
	}
	msgs, err := s.config.Notifier.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to sync channel: %w", err)
	}

	s.listening.Add(1)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer s.listening.Done()
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-msgs:
				if !ok {
					if ctx.Err() == nil {
						s.logger.Warn("sync channel closed")
					}
					return nil
				}
				s.Receive(msg)
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("sync listener panic", "error", err)
	}))
	return nil
}

// replaceTextLocked installs loaded text as the clean document.
func (s *Session) replaceTextLocked(text string) {
	s.state.Text = text
	s.state.Preview = s.render(text)
	s.state.Dirty = false
	s.gen++
}

func (s *Session) render(text string) string {
	if s.config.Renderer == nil {
		return text
	}
	html, err := s.config.Renderer.Render(text)
	if err != nil {
		s.logger.Warn("render failed, showing raw text", "error", err)
		return text
	}
	return html
}

func (s *Session) setStatusLocked(status core.Status) {
	if s.state.Status == status {
		return
	}
	s.state.Status = status
	e := core.NewEvent(core.EventStatus, s.state.Target)
	e.Status = status
	s.emitLocked(e)
}

func (s *Session) emitLocked(e core.Event) {
	if s.closed {
		return
	}
	select {
	case s.events <- e:
	default:
		s.logger.Debug("event buffer full, dropping event", "event", e.String())
	}
}

func (s *Session) signalRetarget() {
	select {
	case s.retarget <- struct{}{}:
	default:
	}
}
