package memfs_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hydroperx/wwwfs"
	"github.com/hydroperx/wwwfs/fstest"
	"github.com/hydroperx/wwwfs/memfs"
)

func TestConformance(t *testing.T) {
	fstest.TestSuite(t, func(_ *testing.T) wwwfs.Directory {
		return memfs.New()
	})
}

func TestSharedNode(t *testing.T) {
	ctx := context.Background()
	root := memfs.New()

	// Two handles obtained by name reference the same node.
	a, err := root.GetFileHandle(ctx, "shared.txt", &wwwfs.GetFileHandleOptions{Create: true})
	require.NoError(t, err)
	b, err := root.GetFileHandle(ctx, "shared.txt", nil)
	require.NoError(t, err)

	w, err := a.CreateWritable(ctx, nil)
	require.NoError(t, err)
	_, err = w.Write(ctx, []byte("via a"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	got, err := b.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("via a"), got)
}

func TestReadIsSnapshot(t *testing.T) {
	ctx := context.Background()
	root := memfs.New()

	f, err := root.GetFileHandle(ctx, "snap.txt", &wwwfs.GetFileHandleOptions{Create: true})
	require.NoError(t, err)

	w, err := f.CreateWritable(ctx, nil)
	require.NoError(t, err)
	_, err = w.Write(ctx, []byte("before"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	data, err := f.Read(ctx)
	require.NoError(t, err)

	w2, err := f.CreateWritable(ctx, nil)
	require.NoError(t, err)
	_, err = w2.Write(ctx, []byte("after"))
	require.NoError(t, err)
	require.NoError(t, w2.Close(ctx))

	// The earlier read is not a live view.
	assert.Equal(t, []byte("before"), data)
}

func TestStagingInvisibleUntilClose(t *testing.T) {
	ctx := context.Background()
	root := memfs.New()

	f, err := root.GetFileHandle(ctx, "staged.txt", &wwwfs.GetFileHandleOptions{Create: true})
	require.NoError(t, err)

	w, err := f.CreateWritable(ctx, nil)
	require.NoError(t, err)
	_, err = w.Write(ctx, []byte("staged"))
	require.NoError(t, err)

	got, err := f.Read(ctx)
	require.NoError(t, err)
	assert.Empty(t, got, "staged bytes must not be visible before close")

	require.NoError(t, w.Close(ctx))
	got, err = f.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("staged"), got)
}

func TestStatTracksCommit(t *testing.T) {
	ctx := context.Background()
	root := memfs.New()

	f, err := root.GetFileHandle(ctx, "meta.txt", &wwwfs.GetFileHandleOptions{Create: true})
	require.NoError(t, err)

	before, err := f.Stat(ctx)
	require.NoError(t, err)
	assert.Zero(t, before.Size)

	w, err := f.CreateWritable(ctx, nil)
	require.NoError(t, err)
	_, err = w.Write(ctx, []byte("0123456789"))
	require.NoError(t, err)
	require.NoError(t, w.Close(ctx))

	after, err := f.Stat(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), after.Size)
	assert.False(t, after.ModTime.Before(before.ModTime))
}

func TestRemovedNodeKeepsDetachedHandle(t *testing.T) {
	ctx := context.Background()
	root := memfs.New()

	f, err := root.GetFileHandle(ctx, "detach.txt", &wwwfs.GetFileHandleOptions{Create: true})
	require.NoError(t, err)
	require.NoError(t, root.RemoveEntry(ctx, "detach.txt", nil))

	// The handle still reads its node; the name is free for reuse.
	_, err = f.Read(ctx)
	assert.NoError(t, err)

	_, err = root.GetDirectoryHandle(ctx, "detach.txt", &wwwfs.GetDirectoryHandleOptions{Create: true})
	assert.NoError(t, err)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	root := memfs.New()

	// Many goroutines hammering distinct files plus shared enumeration must
	// not race; each file ends with its own committed content.
	g, gctx := errgroup.WithContext(ctx)
	const workers = 16
	for i := 0; i < workers; i++ {
		i := i
		g.Go(func() error {
			name := fmt.Sprintf("worker-%02d.bin", i)
			f, err := root.GetFileHandle(gctx, name, &wwwfs.GetFileHandleOptions{Create: true})
			if err != nil {
				return err
			}
			w, err := f.CreateWritable(gctx, nil)
			if err != nil {
				return err
			}
			if _, err := w.Write(gctx, []byte(name)); err != nil {
				return err
			}
			return w.Close(gctx)
		})
		g.Go(func() error {
			it, err := root.Entries(gctx)
			if err != nil {
				return err
			}
			for {
				_, err := it.Next(gctx)
				if err != nil {
					return nil // io.EOF ends the scan
				}
			}
		})
	}
	require.NoError(t, g.Wait())

	for i := 0; i < workers; i++ {
		name := fmt.Sprintf("worker-%02d.bin", i)
		f, err := root.GetFileHandle(ctx, name, nil)
		require.NoError(t, err)
		got, err := f.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, []byte(name), got)
	}
}
