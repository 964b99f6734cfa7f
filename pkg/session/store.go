package session

import (
	"context"
	"errors"
	"time"

	"github.com/aretw0/inkwell/pkg/core"
)

// store is the Content Store: one load/save contract over both targets.
type store struct {
	scratch    core.ScratchStore
	files      core.FileStore
	scratchKey string
}

// Load returns the target's content. The mod time is zero for Scratch.
func (s *store) Load(ctx context.Context, t core.Target) (string, time.Time, error) {
	if t.IsFile() {
		if s.files == nil {
			return "", time.Time{}, &core.StorageError{Op: "load", Target: t, Err: core.ErrNoFile}
		}
		text, mod, err := s.files.Read(ctx, t.Path)
		if err != nil {
			return "", time.Time{}, &core.StorageError{Op: "load", Target: t, Err: err}
		}
		return text, mod, nil
	}

	text, err := s.scratch.Load(ctx, s.scratchKey)
	if err != nil {
		return "", time.Time{}, &core.StorageError{Op: "load", Target: t, Err: err}
	}
	return text, time.Time{}, nil
}

// LoadOrEmpty is Load with an empty Scratch slot treated as empty text.
func (s *store) LoadOrEmpty(ctx context.Context, t core.Target) (string, time.Time, error) {
	text, mod, err := s.Load(ctx, t)
	if err != nil && !t.IsFile() && errors.Is(err, core.ErrNotFound) {
		return "", time.Time{}, nil
	}
	return text, mod, err
}

// Save writes the full text and returns the new external mod time
// (zero for Scratch).
func (s *store) Save(ctx context.Context, t core.Target, text string) (time.Time, error) {
	if t.IsFile() {
		if s.files == nil {
			return time.Time{}, &core.StorageError{Op: "save", Target: t, Err: core.ErrNoFile}
		}
		mod, err := s.files.Write(ctx, t.Path, text)
		if err != nil {
			return time.Time{}, &core.StorageError{Op: "save", Target: t, Err: err}
		}
		return mod, nil
	}

	if err := s.scratch.Save(ctx, s.scratchKey, text); err != nil {
		return time.Time{}, &core.StorageError{Op: "save", Target: t, Err: err}
	}
	return time.Time{}, nil
}

// ModTime returns the current mod time of a File target.
func (s *store) ModTime(ctx context.Context, t core.Target) (time.Time, error) {
	if !t.IsFile() || s.files == nil {
		return time.Time{}, core.ErrNoFile
	}
	return s.files.ModTime(ctx, t.Path)
}
