package osfs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydroperx/wwwfs"
	"github.com/hydroperx/wwwfs/fstest"
	"github.com/hydroperx/wwwfs/osfs"
)

func newTempRoot(t *testing.T) wwwfs.Directory {
	t.Helper()
	root, err := osfs.New(t.TempDir())
	require.NoError(t, err)
	return root
}

func TestConformance(t *testing.T) {
	fstest.TestSuite(t, newTempRoot)
}

func TestConformanceOverBillyMemfs(t *testing.T) {
	fstest.TestSuite(t, func(_ *testing.T) wwwfs.Directory {
		return osfs.NewFromBilly(memfs.New())
	})
}

func TestMatchesReference(t *testing.T) {
	fstest.TestMatchesReference(t, newTempRoot)
}

func TestNewCreatesRoot(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	rootPath := filepath.Join(base, "nested", "data")

	root, err := osfs.New(rootPath)
	require.NoError(t, err)

	info, err := os.Stat(rootPath)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	f, err := root.GetFileHandle(ctx, "probe.txt", &wwwfs.GetFileHandleOptions{Create: true})
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(rootPath, "probe.txt"))
	assert.NoError(t, err, "created file must land under the root")
	_ = f
}

func TestHandlesStayInsideRoot(t *testing.T) {
	ctx := context.Background()
	root := newTempRoot(t)

	_, err := root.GetFileHandle(ctx, "../escape.txt", &wwwfs.GetFileHandleOptions{Create: true})
	assert.ErrorIs(t, err, wwwfs.ErrInvalidName)
}

func TestCommitIsAtomicOnDisk(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	root, err := osfs.New(base)
	require.NoError(t, err)

	f, err := root.GetFileHandle(ctx, "atomic.txt", &wwwfs.GetFileHandleOptions{Create: true})
	require.NoError(t, err)

	write := func(data string) {
		w, werr := f.CreateWritable(ctx, nil)
		require.NoError(t, werr)
		_, werr = w.Write(ctx, []byte(data))
		require.NoError(t, werr)
		require.NoError(t, w.Close(ctx))
	}
	write("first version")
	write("second")

	got, err := os.ReadFile(filepath.Join(base, "atomic.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))

	// Neither commit nor abort may leave temporary files behind.
	w, err := f.CreateWritable(ctx, nil)
	require.NoError(t, err)
	_, err = w.Write(ctx, []byte("discarded"))
	require.NoError(t, err)
	require.NoError(t, w.Abort(ctx))

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "atomic.txt", entries[0].Name())
}

func TestAbortLeavesDiskUntouched(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	root, err := osfs.New(base)
	require.NoError(t, err)

	f, err := root.GetFileHandle(ctx, "keep.txt", &wwwfs.GetFileHandleOptions{Create: true})
	require.NoError(t, err)

	w, err := f.CreateWritable(ctx, nil)
	require.NoError(t, err)
	_, err = w.Write(ctx, []byte("payload"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	w2, err := f.CreateWritable(ctx, &wwwfs.CreateWritableOptions{KeepExistingData: true})
	require.NoError(t, err)
	require.NoError(t, w2.Truncate(ctx, 0))
	_, err = w2.Write(ctx, []byte("replacement"))
	require.NoError(t, err)
	require.NoError(t, w2.Abort(ctx))

	got, err := os.ReadFile(filepath.Join(base, "keep.txt"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestRecursiveRemoveOnDisk(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	root, err := osfs.New(base)
	require.NoError(t, err)

	sub, err := root.GetDirectoryHandle(ctx, "tree", &wwwfs.GetDirectoryHandleOptions{Create: true})
	require.NoError(t, err)
	deep, err := sub.GetDirectoryHandle(ctx, "deep", &wwwfs.GetDirectoryHandleOptions{Create: true})
	require.NoError(t, err)
	f, err := deep.GetFileHandle(ctx, "leaf.txt", &wwwfs.GetFileHandleOptions{Create: true})
	require.NoError(t, err)
	_ = f

	require.NoError(t, root.RemoveEntry(ctx, "tree", &wwwfs.RemoveOptions{Recursive: true}))
	_, err = os.Stat(filepath.Join(base, "tree"))
	assert.True(t, os.IsNotExist(err), "subtree must be gone from disk")
}
