package fs

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"
)

// Watch emits whenever path may have changed on disk.
//
// The parent directory is watched rather than the file itself: atomic saves
// (ours and most editors') replace the inode, which would orphan a direct
// watch. Bursts coalesce into a single pending signal.
func (s *FileStore) Watch(ctx context.Context, path string) (<-chan struct{}, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	out := make(chan struct{}, 1)
	s.addWatcher(1)

	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer s.addWatcher(-1)
		defer close(out)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if !relevant(event, abs) {
					continue
				}
				s.config.Logger.Debug("file event", "name", event.Name, "op", event.Op.String())
				select {
				case out <- struct{}{}:
				default:
				}

			case wErr, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				s.config.Logger.Error("fsnotify error", "path", abs, "error", wErr)
			}
		}
	}, lifecycle.WithErrorHandler(func(err error) {
		s.config.Logger.Error("watcher panic", "path", abs, "error", err)
	}))

	return out, nil
}

func relevant(event fsnotify.Event, abs string) bool {
	if strings.HasPrefix(filepath.Base(event.Name), TempFilePrefix) {
		return false
	}
	if filepath.Clean(event.Name) != abs {
		return false
	}
	// Permission changes do not alter content.
	return !(event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create))
}

func (s *FileStore) addWatcher(delta int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers += delta
}
