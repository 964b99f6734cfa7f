package platform

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/inkwell/pkg/adapters/broadcast"
	"github.com/aretw0/inkwell/pkg/core"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("Default File Backend", func(t *testing.T) {
		stateDir := t.TempDir()
		rt, err := New(ctx, WithStateDir(stateDir), WithNotifierBackend(NotifierNone))
		require.NoError(t, err)
		defer rt.Close()

		assert.Equal(t, stateDir, rt.StateDir)
		require.NoError(t, rt.Session.Start(ctx))
		rt.Session.Edit("persist me")
		require.NoError(t, rt.Session.Save(ctx))
		require.NoError(t, rt.Session.Stop(ctx))

		_, err = os.Stat(filepath.Join(stateDir, "scratch.json"))
		assert.NoError(t, err)
	})

	t.Run("SQLite And Bolt Backends", func(t *testing.T) {
		for _, backend := range []string{ScratchSQLite, ScratchBolt} {
			stateDir := t.TempDir()
			rt, err := New(ctx, WithStateDir(stateDir), WithScratchBackend(backend), WithNotifierBackend(NotifierNone))
			require.NoError(t, err, backend)

			require.NoError(t, rt.Session.Start(ctx))
			rt.Session.Edit("from " + backend)
			require.NoError(t, rt.Session.Save(ctx))
			require.NoError(t, rt.Session.Stop(ctx))
			require.NoError(t, rt.Close())

			again, err := New(ctx, WithStateDir(stateDir), WithScratchBackend(backend), WithNotifierBackend(NotifierNone))
			require.NoError(t, err, backend)
			require.NoError(t, again.Session.Start(ctx))
			assert.Equal(t, "from "+backend, again.Session.Text())
			require.NoError(t, again.Session.Stop(ctx))
			require.NoError(t, again.Close())
		}
	})

	t.Run("Unknown Backends", func(t *testing.T) {
		_, err := New(ctx, WithStateDir(t.TempDir()), WithScratchBackend("floppy"))
		assert.Error(t, err)

		_, err = New(ctx, WithStateDir(t.TempDir()), WithNotifierBackend("carrier-pigeon"))
		assert.Error(t, err)
	})

	t.Run("Postgres Requires DSN", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "")
		_, err := New(ctx, WithStateDir(t.TempDir()), WithScratchBackend(ScratchPostgres))
		assert.Error(t, err)
	})

	t.Run("Bound File At Start", func(t *testing.T) {
		dir := t.TempDir()
		note := filepath.Join(dir, "todo.md")
		require.NoError(t, os.WriteFile(note, []byte("- [ ] ship"), 0644))

		rt, err := New(ctx, WithStateDir(dir), WithFile(note), WithPreview(true), WithNotifierBackend(NotifierNone))
		require.NoError(t, err)
		defer rt.Close()

		require.NoError(t, rt.Session.Start(ctx))
		defer rt.Session.Stop(ctx)

		snap := rt.Session.Snapshot()
		assert.True(t, snap.Target.IsFile())
		assert.Equal(t, "- [ ] ship", snap.Text)
		assert.Contains(t, rt.Session.Preview(), "checkbox")
	})
}

func TestSessionsShareHub(t *testing.T) {
	ctx := context.Background()
	hub := broadcast.NewHub(0)

	build := func(id string) *Runtime {
		rt, err := New(ctx,
			WithStateDir(t.TempDir()),
			WithHub(hub),
			WithInstanceID(id),
			WithDebounce(time.Hour),
		)
		require.NoError(t, err)
		require.NoError(t, rt.Session.Start(ctx))
		t.Cleanup(func() {
			_ = rt.Session.Stop(ctx)
			_ = rt.Close()
		})
		return rt
	}

	a, b := build("a"), build("b")

	a.Session.Edit("shared text")
	require.NoError(t, a.Session.Save(ctx))

	require.Eventually(t, func() bool {
		return b.Session.Text() == "shared text"
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, core.StatusRemoteUpdated, b.Session.Snapshot().Status)

	t.Run("Dirty Peer Gets Conflict", func(t *testing.T) {
		b.Session.Edit("local unsaved")
		// a's next save reaches b while b is dirty.
		a.Session.Edit("second push")
		require.NoError(t, a.Session.Save(ctx))

		require.Eventually(t, func() bool {
			return b.Session.Snapshot().Conflict == core.ConflictWarning
		}, 2*time.Second, 10*time.Millisecond)
		assert.Equal(t, "local unsaved", b.Session.Text())
	})
}
