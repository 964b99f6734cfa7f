// Package fs implements the filesystem side of a session: external files,
// the JSON scratch slot, change watching and the path picker.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	iofs "io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aretw0/inkwell/pkg/core"
)

// Config holds the configuration for the file store.
type Config struct {
	Logger *slog.Logger
	Perm   os.FileMode // mode for newly created files, default 0644
}

// FileStore implements core.FileStore and core.Watcher on the local filesystem.
type FileStore struct {
	config Config

	mu        sync.RWMutex
	watchers  int
	lastWrite *time.Time
}

// NewFileStore creates a file store.
func NewFileStore(config Config) *FileStore {
	if config.Perm == 0 {
		config.Perm = 0644
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &FileStore{config: config}
}

// Read returns the full content of path and its modification time, both taken
// from the same open file.
func (s *FileStore) Read(ctx context.Context, path string) (string, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", time.Time{}, mapNotExist(path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return "", time.Time{}, fmt.Errorf("%s is a directory", path)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return string(data), info.ModTime(), nil
}

// Write replaces the content of path atomically and returns its new mod time.
// Missing parent directories are created.
func (s *FileStore) Write(ctx context.Context, path, content string) (time.Time, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return time.Time{}, fmt.Errorf("failed to create directories: %w", err)
	}

	perm := filePerm(path, s.config.Perm)
	if err := writeFileAtomic(path, []byte(content), perm); err != nil {
		return time.Time{}, fmt.Errorf("failed to write file: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, mapNotExist(path, err)
	}

	mod := info.ModTime()
	s.mu.Lock()
	s.lastWrite = &mod
	s.mu.Unlock()

	s.config.Logger.Debug("wrote file", "path", path, "bytes", len(content))
	return mod, nil
}

// ModTime returns the modification time of path.
func (s *FileStore) ModTime(ctx context.Context, path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, mapNotExist(path, err)
	}
	return info.ModTime(), nil
}

func mapNotExist(path string, err error) error {
	if errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("%w: %s", core.ErrHandleRevoked, path)
	}
	return err
}

var (
	_ core.FileStore = (*FileStore)(nil)
	_ core.Watcher   = (*FileStore)(nil)
)
