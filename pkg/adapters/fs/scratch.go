package fs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/inkwell/pkg/core"
)

const (
	// ScratchFileName is the name of the slot file inside the state directory.
	ScratchFileName = "scratch.json"
	// DefaultScratchQuota bounds the total bytes kept across all slots.
	DefaultScratchQuota = 5 << 20
)

// slot is a single keyed scratch value.
type slot struct {
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// slotFile is the on-disk layout of scratch.json.
type slotFile struct {
	Version int              `json:"version"`
	Slots   map[string]*slot `json:"slots"`
}

// ScratchStore keeps scratch slots in a single JSON file, rewritten
// atomically on every save.
type ScratchStore struct {
	Path   string
	Quota  int
	logger *slog.Logger

	mu     sync.Mutex
	data   *slotFile
	loaded bool
	saves  int
}

// NewScratchStore creates a slot store under dir. A quota of zero uses
// DefaultScratchQuota; a negative quota disables the check.
func NewScratchStore(dir string, quota int, logger *slog.Logger) *ScratchStore {
	if quota == 0 {
		quota = DefaultScratchQuota
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ScratchStore{
		Path:   filepath.Join(dir, ScratchFileName),
		Quota:  quota,
		logger: logger,
	}
}

// Load returns the slot content, or core.ErrNotFound when the key was never saved.
func (s *ScratchStore) Load(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return "", err
	}
	entry, ok := s.data.Slots[key]
	if !ok {
		return "", core.ErrNotFound
	}
	return entry.Content, nil
}

// Save replaces the slot content and persists the whole file.
func (s *ScratchStore) Save(ctx context.Context, key, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureLoaded(); err != nil {
		return err
	}

	if s.Quota > 0 {
		total := len(key) + len(content)
		for k, v := range s.data.Slots {
			if k != key {
				total += len(k) + len(v.Content)
			}
		}
		if total > s.Quota {
			return fmt.Errorf("%w: %d bytes over limit %d", core.ErrQuotaExceeded, total, s.Quota)
		}
	}

	prev, had := s.data.Slots[key]
	s.data.Slots[key] = &slot{Content: content, UpdatedAt: time.Now().UTC()}

	if err := s.persist(); err != nil {
		// Keep memory in line with disk.
		if had {
			s.data.Slots[key] = prev
		} else {
			delete(s.data.Slots, key)
		}
		return err
	}
	s.saves++
	return nil
}

// Keys returns the number of stored slots.
func (s *ScratchStore) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return 0
	}
	return len(s.data.Slots)
}

// ensureLoaded reads the slot file once. A missing file starts empty; a
// corrupted one is logged and replaced on the next save.
func (s *ScratchStore) ensureLoaded() error {
	if s.loaded {
		return nil
	}
	s.data = &slotFile{Version: 1, Slots: make(map[string]*slot)}

	raw, err := os.ReadFile(s.Path)
	if errors.Is(err, iofs.ErrNotExist) {
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read scratch: %w", err)
	}

	var parsed slotFile
	if err := json.Unmarshal(raw, &parsed); err != nil {
		s.logger.Warn("scratch file corrupted, starting empty", "path", s.Path, "error", err)
		s.loaded = true
		return nil
	}
	if parsed.Slots != nil {
		s.data.Slots = parsed.Slots
	}
	s.loaded = true
	return nil
}

func (s *ScratchStore) persist() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	return writeFileAtomic(s.Path, raw, 0644)
}

var _ core.ScratchStore = (*ScratchStore)(nil)
