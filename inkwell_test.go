package inkwell_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/inkwell"
)

func TestVersion(t *testing.T) {
	assert.NotEmpty(t, strings.TrimSpace(inkwell.Version))
}

func TestNewFacade(t *testing.T) {
	ctx := context.Background()
	rt, err := inkwell.New(ctx,
		inkwell.WithStateDir(t.TempDir()),
		inkwell.WithNotifierBackend("none"),
	)
	require.NoError(t, err)
	defer rt.Close()

	require.NoError(t, rt.Session.Start(ctx))
	rt.Session.Edit("hello")
	require.NoError(t, rt.Session.Save(ctx))
	require.NoError(t, rt.Session.Stop(ctx))

	assert.Equal(t, "hello", rt.Session.Text())
	assert.False(t, rt.Session.Snapshot().Dirty)
}
