package bolt

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
	path := filepath.Join(t.TempDir(), "scratch.db")

	store, err := Open(path)
	require.NoError(t, err)

	_, err = store.Load(ctx, "online-notes-data")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, store.Save(ctx, "online-notes-data", ""))
	got, err := store.Load(ctx, "online-notes-data")
	require.NoError(t, err)
	assert.Equal(t, "", got, "empty content is stored, not missing")

	require.NoError(t, store.Save(ctx, "online-notes-data", "draft"))
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err = reopened.Load(ctx, "online-notes-data")
	require.NoError(t, err)
	assert.Equal(t, "draft", got)
}
