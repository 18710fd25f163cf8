package miniofs

import (
	"context"
	"errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"

	"github.com/hydroperx/wwwfs"
)

func TestJoinKey(t *testing.T) {
	assert.Equal(t, "a", joinKey("", "a"))
	assert.Equal(t, "a/b", joinKey("a", "b"))
	assert.Equal(t, "pre/fix/c", joinKey("pre/fix", "c"))
}

func TestNewTrimsPrefix(t *testing.T) {
	root := New(nil, "bucket", "/scoped/prefix/")
	assert.Equal(t, "scoped/prefix", root.key)
	assert.Equal(t, "/", root.Name())
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want error
	}{
		{"nil", nil, nil},
		{"no such key", minio.ErrorResponse{Code: "NoSuchKey"}, wwwfs.ErrNotFound},
		{"no such bucket", minio.ErrorResponse{Code: "NoSuchBucket"}, wwwfs.ErrNotFound},
		{"access denied", minio.ErrorResponse{Code: "AccessDenied"}, wwwfs.ErrPermission},
		{"bucket exists", minio.ErrorResponse{Code: "BucketAlreadyOwnedByYou"}, wwwfs.ErrExists},
		{"opaque", errors.New("connection reset"), wwwfs.ErrIO},
		{"cancelled", context.Canceled, context.Canceled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateError(tt.in)
			if tt.want == nil {
				assert.NoError(t, got)
				return
			}
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestStreamStagingWithoutServer(t *testing.T) {
	// The staging layer never touches the client until Close, so its write
	// semantics are testable offline.
	ctx := context.Background()
	s := &Stream{fs: &FS{writing: map[string]bool{"k": true}}, key: "k", name: "k"}

	_, err := s.Write(ctx, []byte("abcdef"))
	assert.NoError(t, err)
	_, err = s.WriteAt(ctx, []byte("XY"), 1)
	assert.NoError(t, err)
	assert.NoError(t, s.Seek(ctx, 2))
	_, err = s.Write(ctx, []byte("z"))
	assert.NoError(t, err)
	assert.NoError(t, s.Truncate(ctx, 4))
	assert.Equal(t, []byte("aXzd"), s.buf)

	assert.ErrorIs(t, s.Seek(ctx, 9), wwwfs.ErrInvalidState)

	assert.NoError(t, s.Abort(ctx))
	_, err = s.Write(ctx, []byte("late"))
	assert.ErrorIs(t, err, wwwfs.ErrInvalidState)
	assert.False(t, s.fs.writing["k"], "abort must release the write lock")
}
