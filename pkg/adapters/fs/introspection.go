package fs

import (
	"time"

	"github.com/aretw0/introspection"
)

// FileStoreState exposes internal state for observability.
type FileStoreState struct {
	Perm      string     `json:"perm"`
	Watchers  int        `json:"watchers"`
	LastWrite *time.Time `json:"last_write,omitempty"`
}

// State implements introspection.Introspectable.
func (s *FileStore) State() any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return FileStoreState{
		Perm:      s.config.Perm.String(),
		Watchers:  s.watchers,
		LastWrite: s.lastWrite,
	}
}

// ComponentType implements introspection.Component.
func (s *FileStore) ComponentType() string {
	return "filestore"
}

// ScratchState describes the slot file.
type ScratchState struct {
	Path  string `json:"path"`
	Slots int    `json:"slots"`
	Quota int    `json:"quota"`
	Saves int    `json:"saves"`
}

// State implements introspection.Introspectable.
func (s *ScratchStore) State() any {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := ScratchState{Path: s.Path, Quota: s.Quota, Saves: s.saves}
	if s.data != nil {
		st.Slots = len(s.data.Slots)
	}
	return st
}

// ComponentType implements introspection.Component.
func (s *ScratchStore) ComponentType() string {
	return "scratch"
}

var (
	_ introspection.Introspectable = (*FileStore)(nil)
	_ introspection.Component      = (*FileStore)(nil)
	_ introspection.Introspectable = (*ScratchStore)(nil)
	_ introspection.Component      = (*ScratchStore)(nil)
)
