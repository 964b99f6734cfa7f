package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/inkwell/pkg/core"
)

func TestStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scratch.sqlite3")

	store, err := Open(ctx, path, nil)
	require.NoError(t, err)
	defer store.Close()

	t.Run("Missing Key", func(t *testing.T) {
		_, err := store.Load(ctx, "online-notes-data")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("Upsert", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "online-notes-data", "one"))
		require.NoError(t, store.Save(ctx, "online-notes-data", "two"))

		got, err := store.Load(ctx, "online-notes-data")
		require.NoError(t, err)
		assert.Equal(t, "two", got)
	})

	t.Run("Survives Reopen", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, "k", "kept"))

		again, err := Open(ctx, path, nil)
		require.NoError(t, err)
		defer again.Close()

		got, err := again.Load(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "kept", got)
	})
}
