//go:build !js

package persistent_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/adrg/xdg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydroperx/wwwfs"
	"github.com/hydroperx/wwwfs/persistent"
)

func TestAppDir(t *testing.T) {
	dataHome := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dataHome)
	xdg.Reload()

	ctx := context.Background()
	root, err := persistent.AppDir(ctx, "wwwfs-apptest")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dataHome, "wwwfs-apptest"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// The returned handle is a working backend root.
	f, err := root.GetFileHandle(ctx, "state.bin", &wwwfs.GetFileHandleOptions{Create: true})
	require.NoError(t, err)
	w, err := f.CreateWritable(ctx, nil)
	require.NoError(t, err)
	_, err = w.Write(ctx, []byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	got, err := os.ReadFile(filepath.Join(dataHome, "wwwfs-apptest", "state.bin"))
	require.NoError(t, err)
	assert.Equal(t, "persisted", string(got))
}

func TestAppDirRejectsBadScope(t *testing.T) {
	ctx := context.Background()
	for _, app := range []string{"", ".", "..", "a/b"} {
		_, err := persistent.AppDir(ctx, app)
		assert.ErrorIs(t, err, wwwfs.ErrInvalidName, "app %q", app)
	}
}
