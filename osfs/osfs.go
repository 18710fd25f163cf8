// Package osfs is the native wwwfs backend. It delegates storage to a
// go-billy filesystem chrooted at a root directory, so handles never escape
// the root, and layers the wwwfs write-session semantics (staged writes,
// atomic commit, one writer per file) on top.
package osfs

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"sync"

	"github.com/go-git/go-billy/v5"
	billyosfs "github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/hydroperx/wwwfs"
)

// FS holds the billy delegate and the write-lock registry shared by every
// handle derived from the same root.
type FS struct {
	fsys billy.Filesystem

	mu      sync.Mutex
	writing map[string]bool
}

// New returns a root directory handle backed by the native filesystem,
// chrooted at root. The root directory is created if absent.
func New(root string) (*Directory, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, &wwwfs.OpError{Op: "open root", Name: root, Err: translateError(err)}
	}
	return NewFromBilly(billyosfs.New(root)), nil
}

// NewFromBilly returns a root directory handle over an arbitrary
// billy.Filesystem. Useful for tests that want osfs semantics without
// touching the disk.
func NewFromBilly(fsys billy.Filesystem) *Directory {
	return &Directory{
		fs:   &FS{fsys: fsys, writing: make(map[string]bool)},
		path: "/",
		name: "/",
	}
}

// Directory is a handle carrying the slash path of a directory relative to
// the chroot root ("/" for the root itself).
type Directory struct {
	fs   *FS
	path string
	name string
}

// Name returns the directory's name within its parent ("/" for the root).
func (d *Directory) Name() string { return d.name }

func (d *Directory) child(name string) string {
	return path.Join(d.path, name)
}

// GetFileHandle implements wwwfs.Directory.
func (d *Directory) GetFileHandle(_ context.Context, name string, opts *wwwfs.GetFileHandleOptions) (wwwfs.File, error) {
	if opts == nil {
		opts = &wwwfs.GetFileHandleOptions{}
	}
	if err := wwwfs.ValidateName(name); err != nil {
		return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: wwwfs.ErrInvalidName}
	}
	p := d.child(name)

	info, err := d.fs.fsys.Stat(p)
	switch {
	case err == nil:
		if info.IsDir() {
			return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: wwwfs.ErrNotFile}
		}
	case os.IsNotExist(err):
		if !opts.Create {
			return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: wwwfs.ErrNotFound}
		}
		f, cerr := d.fs.fsys.Create(p)
		if cerr != nil {
			return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: translateError(cerr)}
		}
		if cerr := f.Close(); cerr != nil {
			return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: translateError(cerr)}
		}
	default:
		return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: translateError(err)}
	}
	return &File{fs: d.fs, path: p, name: name}, nil
}

// GetDirectoryHandle implements wwwfs.Directory.
func (d *Directory) GetDirectoryHandle(_ context.Context, name string, opts *wwwfs.GetDirectoryHandleOptions) (wwwfs.Directory, error) {
	if opts == nil {
		opts = &wwwfs.GetDirectoryHandleOptions{}
	}
	if err := wwwfs.ValidateName(name); err != nil {
		return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: wwwfs.ErrInvalidName}
	}
	p := d.child(name)

	info, err := d.fs.fsys.Stat(p)
	switch {
	case err == nil:
		if !info.IsDir() {
			return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: wwwfs.ErrNotDirectory}
		}
	case os.IsNotExist(err):
		if !opts.Create {
			return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: wwwfs.ErrNotFound}
		}
		if cerr := d.fs.fsys.MkdirAll(p, 0o755); cerr != nil {
			return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: translateError(cerr)}
		}
	default:
		return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: translateError(err)}
	}
	return &Directory{fs: d.fs, path: p, name: name}, nil
}

// RemoveEntry implements wwwfs.Directory. Recursive removal walks the
// subtree depth-first best-effort; failures are aggregated and the entry
// itself is left in place when any descendant survives.
func (d *Directory) RemoveEntry(ctx context.Context, name string, opts *wwwfs.RemoveOptions) error {
	if opts == nil {
		opts = &wwwfs.RemoveOptions{}
	}
	if err := wwwfs.ValidateName(name); err != nil {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: wwwfs.ErrInvalidName}
	}
	p := d.child(name)

	info, err := d.fs.fsys.Stat(p)
	if err != nil {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: translateError(err)}
	}

	if info.IsDir() {
		list, lerr := d.fs.fsys.ReadDir(p)
		if lerr != nil {
			return &wwwfs.OpError{Op: "remove", Name: name, Err: translateError(lerr)}
		}
		if len(list) > 0 {
			if !opts.Recursive {
				return &wwwfs.OpError{Op: "remove", Name: name, Err: wwwfs.ErrInvalidState}
			}
			if rerr := d.fs.removeTree(ctx, p); rerr != nil {
				return &wwwfs.OpError{Op: "remove", Name: name, Err: rerr}
			}
			return nil
		}
	}
	if err := d.fs.fsys.Remove(p); err != nil {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: translateError(err)}
	}
	return nil
}

// removeTree deletes p and everything below it, continuing past individual
// failures and joining them into one aggregate error.
func (f *FS) removeTree(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	list, err := f.fsys.ReadDir(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return translateError(err)
	}

	var errs []error
	for _, info := range list {
		child := path.Join(p, info.Name())
		if info.IsDir() {
			if err := f.removeTree(ctx, child); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err := f.fsys.Remove(child); err != nil {
			errs = append(errs, translateError(err))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if err := f.fsys.Remove(p); err != nil {
		return translateError(err)
	}
	return nil
}

// Entries implements wwwfs.Directory. The listing is read once at call
// time and yielded in sorted order.
func (d *Directory) Entries(_ context.Context) (wwwfs.DirIterator, error) {
	list, err := d.fs.fsys.ReadDir(d.path)
	if err != nil {
		return nil, &wwwfs.OpError{Op: "entries", Name: d.name, Err: translateError(err)}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name() < list[j].Name() })

	entries := make([]wwwfs.DirEntry, 0, len(list))
	for _, info := range list {
		name := info.Name()
		e := wwwfs.DirEntry{Name: name}
		if info.IsDir() {
			e.Kind = wwwfs.KindDirectory
			e.Directory = &Directory{fs: d.fs, path: d.child(name), name: name}
		} else {
			e.Kind = wwwfs.KindFile
			e.File = &File{fs: d.fs, path: d.child(name), name: name}
		}
		entries = append(entries, e)
	}
	return &dirIterator{entries: entries}, nil
}

type dirIterator struct {
	entries []wwwfs.DirEntry
	pos     int
}

func (it *dirIterator) Next(_ context.Context) (wwwfs.DirEntry, error) {
	if it.pos >= len(it.entries) {
		return wwwfs.DirEntry{}, io.EOF
	}
	e := it.entries[it.pos]
	it.pos++
	return e, nil
}

// File is a handle carrying the slash path of a file relative to the root.
type File struct {
	fs   *FS
	path string
	name string
}

// Name returns the file's name within its parent.
func (f *File) Name() string { return f.name }

// Read implements wwwfs.File.
func (f *File) Read(_ context.Context) ([]byte, error) {
	data, err := util.ReadFile(f.fs.fsys, f.path)
	if err != nil {
		return nil, &wwwfs.OpError{Op: "read", Name: f.name, Err: translateError(err)}
	}
	return data, nil
}

// Stat implements wwwfs.File.
func (f *File) Stat(_ context.Context) (wwwfs.FileInfo, error) {
	info, err := f.fs.fsys.Stat(f.path)
	if err != nil {
		return wwwfs.FileInfo{}, &wwwfs.OpError{Op: "stat", Name: f.name, Err: translateError(err)}
	}
	return wwwfs.FileInfo{Size: info.Size(), ModTime: info.ModTime()}, nil
}

// CreateWritable implements wwwfs.File. Writes stage in memory; Close
// writes the staged content to a temporary file next to the target and
// renames it into place, so readers see either the old content or all of
// the new content, never a partial write.
func (f *File) CreateWritable(_ context.Context, opts *wwwfs.CreateWritableOptions) (wwwfs.WritableFileStream, error) {
	if opts == nil {
		opts = &wwwfs.CreateWritableOptions{}
	}

	f.fs.mu.Lock()
	if f.fs.writing[f.path] {
		f.fs.mu.Unlock()
		return nil, &wwwfs.OpError{Op: "create writable", Name: f.name, Err: wwwfs.ErrInvalidState}
	}
	f.fs.writing[f.path] = true
	f.fs.mu.Unlock()

	var buf []byte
	if opts.KeepExistingData {
		data, err := util.ReadFile(f.fs.fsys, f.path)
		switch {
		case err == nil:
			buf = data
		case os.IsNotExist(err):
			// Handle may predate a concurrent removal; start empty.
		default:
			f.fs.release(f.path)
			return nil, &wwwfs.OpError{Op: "create writable", Name: f.name, Err: translateError(err)}
		}
	}
	return &Stream{fs: f.fs, path: f.path, name: f.name, buf: buf}, nil
}

func (f *FS) release(p string) {
	f.mu.Lock()
	delete(f.writing, p)
	f.mu.Unlock()
}

// Stream states.
const (
	streamOpen = iota
	streamClosed
	streamAborted
)

// Stream is an open write session against a native file. It must be
// finished with exactly one of Close or Abort.
type Stream struct {
	fs   *FS
	path string
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

// Close implements wwwfs.WritableFileStream.
func (s *Stream) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != streamOpen {
		return s.fail("close", wwwfs.ErrInvalidState)
	}
	s.state = streamClosed
	defer s.fs.release(s.path)

	if err := s.commit(); err != nil {
		return s.fail("close", err)
	}
	s.buf = nil
	return nil
}

func (s *Stream) commit() error {
	dir := path.Dir(s.path)
	tmp, err := util.TempFile(s.fs.fsys, dir, "."+s.name+".tmp")
	if err != nil {
		return translateError(err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(s.buf); err != nil {
		_ = tmp.Close()
		_ = s.fs.fsys.Remove(tmpName)
		return translateError(err)
	}
	if err := tmp.Close(); err != nil {
		_ = s.fs.fsys.Remove(tmpName)
		return translateError(err)
	}
	if err := s.fs.fsys.Rename(tmpName, s.path); err != nil {
		_ = s.fs.fsys.Remove(tmpName)
		return translateError(err)
	}
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
	s.fs.release(s.path)
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

// translateError funnels billy and os errors into the wwwfs taxonomy.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case os.IsNotExist(err):
		return wwwfs.ErrNotFound
	case os.IsExist(err):
		return wwwfs.ErrExists
	case os.IsPermission(err):
		return wwwfs.ErrPermission
	case errors.Is(err, fs.ErrInvalid):
		return wwwfs.ErrInvalidState
	case errors.Is(err, billy.ErrCrossedBoundary):
		return wwwfs.ErrInvalidName
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
