package fs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/inkwell/pkg/core"
)

func TestScratchStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Missing Slot Is Not Found", func(t *testing.T) {
		store := NewScratchStore(t.TempDir(), 0, nil)
		_, err := store.Load(ctx, "online-notes-data")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("Persists Across Instances", func(t *testing.T) {
		dir := t.TempDir()
		first := NewScratchStore(dir, 0, nil)
		require.NoError(t, first.Save(ctx, "online-notes-data", "hello"))
		require.NoError(t, first.Save(ctx, "other", "world"))

		second := NewScratchStore(dir, 0, nil)
		got, err := second.Load(ctx, "online-notes-data")
		require.NoError(t, err)
		assert.Equal(t, "hello", got)
		assert.Equal(t, 2, second.Keys())
	})

	t.Run("Empty Content Is A Value", func(t *testing.T) {
		store := NewScratchStore(t.TempDir(), 0, nil)
		require.NoError(t, store.Save(ctx, "k", ""))
		got, err := store.Load(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "", got)
	})

	t.Run("Self Heals Corruption", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, ScratchFileName), []byte("{invalid json"), 0644))

		store := NewScratchStore(dir, 0, nil)
		_, err := store.Load(ctx, "k")
		assert.ErrorIs(t, err, core.ErrNotFound)

		require.NoError(t, store.Save(ctx, "k", "fresh"))
		raw, err := os.ReadFile(filepath.Join(dir, ScratchFileName))
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"fresh"`)
	})

	t.Run("Quota Exceeded Keeps Previous Value", func(t *testing.T) {
		store := NewScratchStore(t.TempDir(), 16, nil)
		require.NoError(t, store.Save(ctx, "k", "small"))

		err := store.Save(ctx, "k", strings.Repeat("x", 64))
		assert.ErrorIs(t, err, core.ErrQuotaExceeded)

		got, err := store.Load(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "small", got)
	})

	t.Run("Negative Quota Disables Check", func(t *testing.T) {
		store := NewScratchStore(t.TempDir(), -1, nil)
		assert.NoError(t, store.Save(ctx, "k", strings.Repeat("x", DefaultScratchQuota+1)))
	})

	t.Run("State", func(t *testing.T) {
		store := NewScratchStore(t.TempDir(), 0, nil)
		require.NoError(t, store.Save(ctx, "k", "v"))

		state := store.State().(ScratchState)
		assert.Equal(t, 1, state.Slots)
		assert.Equal(t, 1, state.Saves)
		assert.Equal(t, DefaultScratchQuota, state.Quota)
		assert.Equal(t, "scratch", store.ComponentType())
	})
}
