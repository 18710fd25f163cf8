// Package miniofs is a wwwfs backend over S3-compatible object storage via
// the MinIO client. Files are objects; a directory is its key prefix plus an
// explicit zero-byte marker object ending in "/", so empty directories
// survive listing round-trips.
//
// Object stores have no rename or partial update, so writable streams stage
// content in memory and commit with a single PutObject, which gives the
// atomic close-commit contract directly.
package miniofs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"golang.org/x/sync/errgroup"

	"github.com/hydroperx/wwwfs"
)

// removeConcurrency bounds parallel object deletes during recursive removal.
const removeConcurrency = 8

// FS holds the client, bucket, and write-lock registry shared by every
// handle derived from the same root.
type FS struct {
	client *minio.Client
	bucket string

	mu      sync.Mutex
	writing map[string]bool
}

// New returns a root directory handle over bucket, scoped to prefix
// (may be empty for the bucket root). The bucket must already exist;
// this package does not negotiate bucket lifecycle.
func New(client *minio.Client, bucket, prefix string) *Directory {
	return &Directory{
		fs:   &FS{client: client, bucket: bucket, writing: make(map[string]bool)},
		key:  strings.Trim(prefix, "/"),
		name: "/",
	}
}

// Directory is a handle carrying the key prefix of a directory ("" for the
// root).
type Directory struct {
	fs   *FS
	key  string
	name string
}

// Name returns the directory's name within its parent ("/" for the root).
func (d *Directory) Name() string { return d.name }

func (d *Directory) childKey(name string) string {
	return joinKey(d.key, name)
}

func joinKey(base, name string) string {
	if base == "" {
		return name
	}
	return base + "/" + name
}

// fileExists reports whether key is bound to an object (a file).
func (f *FS) fileExists(ctx context.Context, key string) (bool, error) {
	_, err := f.client.StatObject(ctx, f.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if isNoSuchKey(err) {
		return false, nil
	}
	return false, translateError(err)
}

// dirExists reports whether key is bound to a directory: either its marker
// object exists or some object lives under its prefix.
func (f *FS) dirExists(ctx context.Context, key string) (bool, error) {
	ok, err := f.fileExists(ctx, key+"/")
	if err != nil || ok {
		return ok, err
	}
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	for obj := range f.client.ListObjects(listCtx, f.bucket, minio.ListObjectsOptions{
		Prefix:  key + "/",
		MaxKeys: 1,
	}) {
		if obj.Err != nil {
			return false, translateError(obj.Err)
		}
		return true, nil
	}
	return false, nil
}

// GetFileHandle implements wwwfs.Directory.
func (d *Directory) GetFileHandle(ctx context.Context, name string, opts *wwwfs.GetFileHandleOptions) (wwwfs.File, error) {
	if opts == nil {
		opts = &wwwfs.GetFileHandleOptions{}
	}
	if err := wwwfs.ValidateName(name); err != nil {
		return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: wwwfs.ErrInvalidName}
	}
	key := d.childKey(name)

	isDir, err := d.fs.dirExists(ctx, key)
	if err != nil {
		return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: err}
	}
	if isDir {
		return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: wwwfs.ErrNotFile}
	}

	isFile, err := d.fs.fileExists(ctx, key)
	if err != nil {
		return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: err}
	}
	if !isFile {
		if !opts.Create {
			return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: wwwfs.ErrNotFound}
		}
		if err := d.fs.put(ctx, key, nil); err != nil {
			return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: err}
		}
	}
	return &File{fs: d.fs, key: key, name: name}, nil
}

// GetDirectoryHandle implements wwwfs.Directory.
func (d *Directory) GetDirectoryHandle(ctx context.Context, name string, opts *wwwfs.GetDirectoryHandleOptions) (wwwfs.Directory, error) {
	if opts == nil {
		opts = &wwwfs.GetDirectoryHandleOptions{}
	}
	if err := wwwfs.ValidateName(name); err != nil {
		return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: wwwfs.ErrInvalidName}
	}
	key := d.childKey(name)

	isFile, err := d.fs.fileExists(ctx, key)
	if err != nil {
		return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: err}
	}
	if isFile {
		return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: wwwfs.ErrNotDirectory}
	}

	isDir, err := d.fs.dirExists(ctx, key)
	if err != nil {
		return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: err}
	}
	if !isDir {
		if !opts.Create {
			return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: wwwfs.ErrNotFound}
		}
		if err := d.fs.put(ctx, key+"/", nil); err != nil {
			return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: err}
		}
	}
	return &Directory{fs: d.fs, key: key, name: name}, nil
}

// RemoveEntry implements wwwfs.Directory. Recursive removal deletes the
// subtree's objects concurrently, continues past individual failures, and
// reports them joined into one aggregate error.
func (d *Directory) RemoveEntry(ctx context.Context, name string, opts *wwwfs.RemoveOptions) error {
	if opts == nil {
		opts = &wwwfs.RemoveOptions{}
	}
	if err := wwwfs.ValidateName(name); err != nil {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: wwwfs.ErrInvalidName}
	}
	key := d.childKey(name)

	isFile, err := d.fs.fileExists(ctx, key)
	if err != nil {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: err}
	}
	if isFile {
		if err := d.fs.client.RemoveObject(ctx, d.fs.bucket, key, minio.RemoveObjectOptions{}); err != nil {
			return &wwwfs.OpError{Op: "remove", Name: name, Err: translateError(err)}
		}
		return nil
	}

	isDir, err := d.fs.dirExists(ctx, key)
	if err != nil {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: err}
	}
	if !isDir {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: wwwfs.ErrNotFound}
	}

	empty, err := d.fs.dirEmpty(ctx, key)
	if err != nil {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: err}
	}
	if !empty && !opts.Recursive {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: wwwfs.ErrInvalidState}
	}
	if err := d.fs.removeTree(ctx, key); err != nil {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: err}
	}
	return nil
}

// dirEmpty reports whether the directory at key has any entry besides its
// own marker.
func (f *FS) dirEmpty(ctx context.Context, key string) (bool, error) {
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	for obj := range f.client.ListObjects(listCtx, f.bucket, minio.ListObjectsOptions{
		Prefix: key + "/",
	}) {
		if obj.Err != nil {
			return false, translateError(obj.Err)
		}
		if obj.Key == key+"/" {
			continue
		}
		return false, nil
	}
	return true, nil
}

// removeTree deletes every object under key's prefix plus the marker,
// best-effort with bounded concurrency.
func (f *FS) removeTree(ctx context.Context, key string) error {
	g, listCtx := errgroup.WithContext(ctx)
	g.SetLimit(removeConcurrency)

	var (
		errMu sync.Mutex
		errs  []error
	)
	record := func(err error) {
		errMu.Lock()
		errs = append(errs, err)
		errMu.Unlock()
	}

	for obj := range f.client.ListObjects(listCtx, f.bucket, minio.ListObjectsOptions{
		Prefix:    key + "/",
		Recursive: true,
	}) {
		if obj.Err != nil {
			record(translateError(obj.Err))
			break
		}
		obj := obj
		g.Go(func() error {
			if err := f.client.RemoveObject(ctx, f.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
				record(translateError(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Entries implements wwwfs.Directory. The listing streams lazily from the
// object store; the returned iterator is single-pass and bound to ctx.
func (d *Directory) Entries(ctx context.Context) (wwwfs.DirIterator, error) {
	base := ""
	if d.key != "" {
		base = d.key + "/"
	}
	ch := d.fs.client.ListObjects(ctx, d.fs.bucket, minio.ListObjectsOptions{
		Prefix: base,
	})
	return &dirIterator{fs: d.fs, base: base, ch: ch}, nil
}

type dirIterator struct {
	fs   *FS
	base string
	ch   <-chan minio.ObjectInfo
}

func (it *dirIterator) Next(ctx context.Context) (wwwfs.DirEntry, error) {
	for {
		select {
		case <-ctx.Done():
			return wwwfs.DirEntry{}, ctx.Err()
		case obj, ok := <-it.ch:
			if !ok {
				return wwwfs.DirEntry{}, io.EOF
			}
			if obj.Err != nil {
				return wwwfs.DirEntry{}, &wwwfs.OpError{Op: "entries", Name: it.base, Err: translateError(obj.Err)}
			}
			name := strings.TrimPrefix(obj.Key, it.base)
			if name == "" {
				// The directory's own marker.
				continue
			}
			if strings.HasSuffix(name, "/") {
				name = strings.TrimSuffix(name, "/")
				return wwwfs.DirEntry{
					Name:      name,
					Kind:      wwwfs.KindDirectory,
					Directory: &Directory{fs: it.fs, key: joinKey(strings.TrimSuffix(it.base, "/"), name), name: name},
				}, nil
			}
			return wwwfs.DirEntry{
				Name: name,
				Kind: wwwfs.KindFile,
				File: &File{fs: it.fs, key: joinKey(strings.TrimSuffix(it.base, "/"), name), name: name},
			}, nil
		}
	}
}

// File is a handle carrying the object key of a file.
type File struct {
	fs   *FS
	key  string
	name string
}

// Name returns the file's name within its parent.
func (f *File) Name() string { return f.name }

// Read implements wwwfs.File by downloading the whole object.
func (f *File) Read(ctx context.Context) ([]byte, error) {
	obj, err := f.fs.client.GetObject(ctx, f.fs.bucket, f.key, minio.GetObjectOptions{})
	if err != nil {
		return nil, &wwwfs.OpError{Op: "read", Name: f.name, Err: translateError(err)}
	}
	defer func() { _ = obj.Close() }()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, &wwwfs.OpError{Op: "read", Name: f.name, Err: translateError(err)}
	}
	return data, nil
}

// Stat implements wwwfs.File.
func (f *File) Stat(ctx context.Context) (wwwfs.FileInfo, error) {
	info, err := f.fs.client.StatObject(ctx, f.fs.bucket, f.key, minio.StatObjectOptions{})
	if err != nil {
		return wwwfs.FileInfo{}, &wwwfs.OpError{Op: "stat", Name: f.name, Err: translateError(err)}
	}
	return wwwfs.FileInfo{Size: info.Size, ModTime: info.LastModified}, nil
}

// CreateWritable implements wwwfs.File.
func (f *File) CreateWritable(ctx context.Context, opts *wwwfs.CreateWritableOptions) (wwwfs.WritableFileStream, error) {
	if opts == nil {
		opts = &wwwfs.CreateWritableOptions{}
	}

	f.fs.mu.Lock()
	if f.fs.writing[f.key] {
		f.fs.mu.Unlock()
		return nil, &wwwfs.OpError{Op: "create writable", Name: f.name, Err: wwwfs.ErrInvalidState}
	}
	f.fs.writing[f.key] = true
	f.fs.mu.Unlock()

	var buf []byte
	if opts.KeepExistingData {
		data, err := f.Read(ctx)
		if err != nil {
			if !errors.Is(err, wwwfs.ErrNotFound) {
				f.fs.release(f.key)
				return nil, err
			}
			// Handle may predate a concurrent removal; start empty.
		} else {
			buf = data
		}
	}
	return &Stream{fs: f.fs, key: f.key, name: f.name, buf: buf}, nil
}

func (f *FS) release(key string) {
	f.mu.Lock()
	delete(f.writing, key)
	f.mu.Unlock()
}

func (f *FS) put(ctx context.Context, key string, data []byte) error {
	_, err := f.client.PutObject(ctx, f.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return translateError(err)
	}
	return nil
}

// Stream states.
const (
	streamOpen = iota
	streamClosed
	streamAborted
)

// Stream is an open write session against an object. It must be finished
// with exactly one of Close or Abort.
type Stream struct {
	fs   *FS
	key  string
	name string

	mu     sync.Mutex
	state  int
	buf    []byte
	cursor int64
}

func (s *Stream) fail(op string, kind error) error {
	return &wwwfs.OpError{Op: op, Name: s.name, Err: kind}
}

// Write implements wwwfs.WritableFileStream.
func (s *Stream) Write(_ context.Context, p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != streamOpen {
		return 0, s.fail("write", wwwfs.ErrInvalidState)
	}
	s.buf = overwrite(s.buf, s.cursor, p)
	s.cursor += int64(len(p))
	return len(p), nil
}

// WriteAt implements wwwfs.WritableFileStream.
func (s *Stream) WriteAt(_ context.Context, p []byte, off int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != streamOpen {
		return 0, s.fail("write at", wwwfs.ErrInvalidState)
	}
	if off < 0 {
		return 0, s.fail("write at", wwwfs.ErrInvalidState)
	}
	s.buf = overwrite(s.buf, off, p)
	return len(p), nil
}

// Seek implements wwwfs.WritableFileStream.
func (s *Stream) Seek(_ context.Context, off int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != streamOpen {
		return s.fail("seek", wwwfs.ErrInvalidState)
	}
	if off < 0 || off > int64(len(s.buf)) {
		return s.fail("seek", wwwfs.ErrInvalidState)
	}
	s.cursor = off
	return nil
}

// Truncate implements wwwfs.WritableFileStream.
func (s *Stream) Truncate(_ context.Context, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != streamOpen {
		return s.fail("truncate", wwwfs.ErrInvalidState)
	}
	if size < 0 {
		return s.fail("truncate", wwwfs.ErrInvalidState)
	}
	switch {
	case size < int64(len(s.buf)):
		s.buf = s.buf[:size]
	case size > int64(len(s.buf)):
		s.buf = append(s.buf, make([]byte, size-int64(len(s.buf)))...)
	}
	if s.cursor > size {
		s.cursor = size
	}
	return nil
}

// Close implements wwwfs.WritableFileStream: a single PutObject uploads the
// staged content, so readers see either the old object or the new one.
func (s *Stream) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != streamOpen {
		return s.fail("close", wwwfs.ErrInvalidState)
	}
	s.state = streamClosed
	defer s.fs.release(s.key)

	if err := s.fs.put(ctx, s.key, s.buf); err != nil {
		return s.fail("close", err)
	}
	s.buf = nil
	return nil
}

// Abort implements wwwfs.WritableFileStream.
func (s *Stream) Abort(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != streamOpen {
		return s.fail("abort", wwwfs.ErrInvalidState)
	}
	s.state = streamAborted
	s.buf = nil
	s.fs.release(s.key)
	return nil
}

// overwrite copies p into buf at off, growing buf as needed and zero-filling
// any gap between the old end and off.
func overwrite(buf []byte, off int64, p []byte) []byte {
	end := off + int64(len(p))
	if int64(len(buf)) < end {
		grown := make([]byte, end)
		copy(grown, buf)
		buf = grown
	}
	copy(buf[off:end], p)
	return buf
}

func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey"
}

// translateError funnels MinIO errors into the wwwfs taxonomy.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket":
		return wwwfs.ErrNotFound
	case "AccessDenied":
		return wwwfs.ErrPermission
	case "QuotaExceeded":
		return wwwfs.ErrPermission
	case "BucketAlreadyExists", "BucketAlreadyOwnedByYou":
		return wwwfs.ErrExists
	default:
		return errors.Join(wwwfs.ErrIO, err)
	}
}

// Compile-time interface checks.
var (
	_ wwwfs.Directory          = (*Directory)(nil)
	_ wwwfs.File               = (*File)(nil)
	_ wwwfs.WritableFileStream = (*Stream)(nil)
)
