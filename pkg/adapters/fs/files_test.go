package fs

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/inkwell/pkg/core"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Write Then Read", func(t *testing.T) {
		store := NewFileStore(Config{})
		path := filepath.Join(t.TempDir(), "notes", "todo.md")

		mod, err := store.Write(ctx, path, "- [ ] milk")
		require.NoError(t, err)

		text, readMod, err := store.Read(ctx, path)
		require.NoError(t, err)
		assert.Equal(t, "- [ ] milk", text)
		assert.True(t, mod.Equal(readMod))

		modOnly, err := store.ModTime(ctx, path)
		require.NoError(t, err)
		assert.True(t, mod.Equal(modOnly))
	})

	t.Run("Missing File Is Revoked", func(t *testing.T) {
		store := NewFileStore(Config{})
		path := filepath.Join(t.TempDir(), "gone.md")

		_, _, err := store.Read(ctx, path)
		assert.ErrorIs(t, err, core.ErrHandleRevoked)

		_, err = store.ModTime(ctx, path)
		assert.ErrorIs(t, err, core.ErrHandleRevoked)
	})

	t.Run("Directory Is Not Readable", func(t *testing.T) {
		store := NewFileStore(Config{})
		_, _, err := store.Read(ctx, t.TempDir())
		assert.Error(t, err)
	})

	t.Run("Preserves Existing Mode", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("unix permissions")
		}
		store := NewFileStore(Config{})
		path := filepath.Join(t.TempDir(), "secret.md")
		require.NoError(t, os.WriteFile(path, []byte("a"), 0600))

		_, err := store.Write(ctx, path, "b")
		require.NoError(t, err)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("Reports Last Write", func(t *testing.T) {
		store := NewFileStore(Config{})
		state := store.State().(FileStoreState)
		assert.Nil(t, state.LastWrite)

		_, err := store.Write(ctx, filepath.Join(t.TempDir(), "a.md"), "a")
		require.NoError(t, err)

		state = store.State().(FileStoreState)
		assert.NotNil(t, state.LastWrite)
		assert.Equal(t, "filestore", store.ComponentType())
	})
}

func TestFileStoreWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	path := filepath.Join(dir, "todo.md")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0644))

	store := NewFileStore(Config{})
	nudges, err := store.Watch(ctx, path)
	require.NoError(t, err)

	t.Run("Ignores Sibling Files", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "other.md"), []byte("x"), 0644))
		select {
		case <-nudges:
			t.Fatal("unexpected nudge for sibling file")
		case <-time.After(150 * time.Millisecond):
		}
	})

	t.Run("Signals External Write", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("v2"), 0644))
		select {
		case _, ok := <-nudges:
			assert.True(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for file event")
		}
	})

	t.Run("Signals Atomic Replace", func(t *testing.T) {
		drain(nudges)
		_, err := store.Write(ctx, path, "v3")
		require.NoError(t, err)
		select {
		case <-nudges:
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for rename event")
		}
	})

	t.Run("Closes On Cancel", func(t *testing.T) {
		cancel()
		deadline := time.After(2 * time.Second)
		for {
			select {
			case _, ok := <-nudges:
				if !ok {
					require.Eventually(t, func() bool {
						return store.State().(FileStoreState).Watchers == 0
					}, time.Second, 10*time.Millisecond)
					return
				}
			case <-deadline:
				t.Fatal("watch channel never closed")
			}
		}
	})
}

func drain(ch <-chan struct{}) {
	for {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			return
		}
	}
}
