package core

import (
	"context"
	"time"
)

// ScratchStore is the local cache slot backend.
// Adhering to this interface keeps the session independent of where the
// scratch copy lives (JSON file, SQLite, Postgres, Redis).
type ScratchStore interface {
	// Load returns the content stored under key, or ErrNotFound.
	Load(ctx context.Context, key string) (string, error)

	// Save replaces the content stored under key.
	Save(ctx context.Context, key, content string) error
}

// FileStore reads and writes user-chosen external files.
type FileStore interface {
	// Read returns the full content and modification time of the file.
	Read(ctx context.Context, path string) (string, time.Time, error)

	// Write replaces the full content of the file. Readers never observe a
	// partially written file. It returns the new modification time.
	Write(ctx context.Context, path, content string) (time.Time, error)

	// ModTime returns the current modification time of the file.
	ModTime(ctx context.Context, path string) (time.Time, error)
}

// Watcher is implemented by file stores that can signal changes to a path
// without waiting for the next poll tick.
type Watcher interface {
	// Watch emits on the returned channel whenever path may have changed.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context, path string) (<-chan struct{}, error)
}

// Notifier broadcasts sync messages to other instances on a shared channel.
// Delivery is fire-and-forget: no acknowledgement, no ordering, and messages
// published while a subscriber is not listening are lost.
type Notifier interface {
	Publish(ctx context.Context, msg SyncMessage) error

	// Subscribe returns a stream of messages. The stream is closed when ctx
	// is done or the transport fails.
	Subscribe(ctx context.Context) (<-chan SyncMessage, error)
}

// PickMode tells a picker whether the user is choosing an existing file.
type PickMode int

const (
	PickOpen PickMode = iota
	PickSave
)

// Picker asks the user for a file. It returns ErrCancelled when the user
// dismisses the prompt.
type Picker interface {
	Pick(ctx context.Context, mode PickMode) (string, error)
}

// Renderer converts document text into preview HTML.
type Renderer interface {
	Render(text string) (string, error)
}
