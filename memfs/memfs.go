// Package memfs is the in-memory wwwfs backend: a mutable node tree with no
// external I/O. It is the behavioral reference the other backends are
// conformance-tested against, and a drop-in choice for deployments that opt
// out of persistence.
//
// The constructor is synchronous and the backend never blocks, so contexts
// are accepted for interface compatibility but not consulted.
package memfs

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/hydroperx/wwwfs"
)

// FS owns the node tree and the write-lock registry shared by every handle
// derived from the same root. Safe for concurrent use.
type FS struct {
	mu      sync.RWMutex
	writing map[*node]bool
}

type node struct {
	kind     wwwfs.EntryKind
	children map[string]*node // kind == KindDirectory
	data     []byte           // kind == KindFile
	modTime  time.Time
}

func newDirNode() *node {
	return &node{kind: wwwfs.KindDirectory, children: make(map[string]*node)}
}

func newFileNode() *node {
	return &node{kind: wwwfs.KindFile, modTime: time.Now()}
}

// New returns an empty root directory. No I/O is performed.
func New() *Directory {
	fs := &FS{writing: make(map[*node]bool)}
	return &Directory{fs: fs, node: newDirNode(), name: "/"}
}

// Directory is a handle to a directory node. Handles are lightweight; two
// handles may reference the same node.
type Directory struct {
	fs   *FS
	node *node
	name string
}

// Name returns the directory's name within its parent ("/" for the root).
func (d *Directory) Name() string { return d.name }

// GetFileHandle implements wwwfs.Directory.
func (d *Directory) GetFileHandle(_ context.Context, name string, opts *wwwfs.GetFileHandleOptions) (wwwfs.File, error) {
	if opts == nil {
		opts = &wwwfs.GetFileHandleOptions{}
	}
	if err := wwwfs.ValidateName(name); err != nil {
		return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: wwwfs.ErrInvalidName}
	}

	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()

	child, ok := d.node.children[name]
	if !ok {
		if !opts.Create {
			return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: wwwfs.ErrNotFound}
		}
		child = newFileNode()
		d.node.children[name] = child
	}
	if child.kind != wwwfs.KindFile {
		return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: wwwfs.ErrNotFile}
	}
	return &File{fs: d.fs, node: child, name: name}, nil
}

// GetDirectoryHandle implements wwwfs.Directory.
func (d *Directory) GetDirectoryHandle(_ context.Context, name string, opts *wwwfs.GetDirectoryHandleOptions) (wwwfs.Directory, error) {
	if opts == nil {
		opts = &wwwfs.GetDirectoryHandleOptions{}
	}
	if err := wwwfs.ValidateName(name); err != nil {
		return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: wwwfs.ErrInvalidName}
	}

	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()

	child, ok := d.node.children[name]
	if !ok {
		if !opts.Create {
			return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: wwwfs.ErrNotFound}
		}
		child = newDirNode()
		d.node.children[name] = child
	}
	if child.kind != wwwfs.KindDirectory {
		return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: wwwfs.ErrNotDirectory}
	}
	return &Directory{fs: d.fs, node: child, name: name}, nil
}

// RemoveEntry implements wwwfs.Directory. Removal of an in-memory subtree
// cannot be interrupted partway, so recursive removal never reports a
// partial failure here.
func (d *Directory) RemoveEntry(_ context.Context, name string, opts *wwwfs.RemoveOptions) error {
	if opts == nil {
		opts = &wwwfs.RemoveOptions{}
	}
	if err := wwwfs.ValidateName(name); err != nil {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: wwwfs.ErrInvalidName}
	}

	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()

	child, ok := d.node.children[name]
	if !ok {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: wwwfs.ErrNotFound}
	}
	if child.kind == wwwfs.KindDirectory && len(child.children) > 0 && !opts.Recursive {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: wwwfs.ErrInvalidState}
	}
	delete(d.node.children, name)
	return nil
}

// Entries implements wwwfs.Directory. The listing is a consistent snapshot
// of child names taken at call time, yielded in sorted order.
func (d *Directory) Entries(_ context.Context) (wwwfs.DirIterator, error) {
	d.fs.mu.RLock()
	defer d.fs.mu.RUnlock()

	names := make([]string, 0, len(d.node.children))
	for name := range d.node.children {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]wwwfs.DirEntry, 0, len(names))
	for _, name := range names {
		child := d.node.children[name]
		e := wwwfs.DirEntry{Name: name, Kind: child.kind}
		if child.kind == wwwfs.KindDirectory {
			e.Directory = &Directory{fs: d.fs, node: child, name: name}
		} else {
			e.File = &File{fs: d.fs, node: child, name: name}
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

// File is a handle to a file node.
type File struct {
	fs   *FS
	node *node
	name string
}

// Name returns the file's name within its parent.
func (f *File) Name() string { return f.name }

// Read implements wwwfs.File. The returned slice is a copy; readers never
// observe later mutations.
func (f *File) Read(_ context.Context) ([]byte, error) {
	f.fs.mu.RLock()
	defer f.fs.mu.RUnlock()

	data := make([]byte, len(f.node.data))
	copy(data, f.node.data)
	return data, nil
}

// Stat implements wwwfs.File.
func (f *File) Stat(_ context.Context) (wwwfs.FileInfo, error) {
	f.fs.mu.RLock()
	defer f.fs.mu.RUnlock()

	return wwwfs.FileInfo{Size: int64(len(f.node.data)), ModTime: f.node.modTime}, nil
}

// CreateWritable implements wwwfs.File. The stream stages writes privately
// and merges them into the node only on Close; a second concurrent stream
// on the same node fails ErrInvalidState.
func (f *File) CreateWritable(_ context.Context, opts *wwwfs.CreateWritableOptions) (wwwfs.WritableFileStream, error) {
	if opts == nil {
		opts = &wwwfs.CreateWritableOptions{}
	}

	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()

	if f.fs.writing[f.node] {
		return nil, &wwwfs.OpError{Op: "create writable", Name: f.name, Err: wwwfs.ErrInvalidState}
	}
	f.fs.writing[f.node] = true

	var buf []byte
	if opts.KeepExistingData {
		buf = make([]byte, len(f.node.data))
		copy(buf, f.node.data)
	}
	return &Stream{fs: f.fs, node: f.node, name: f.name, buf: buf}, nil
}

// Stream states.
const (
	streamOpen = iota
	streamClosed
	streamAborted
)

// Stream is an open write session against a file node. It must be finished
// with exactly one of Close or Abort; a stream dropped without Close commits
// nothing, but only Close or Abort releases the file's write lock.
type Stream struct {
	fs   *FS
	node *node
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

// Close implements wwwfs.WritableFileStream: the staged content replaces the
// node's content in one step and the write lock is released.
func (s *Stream) Close(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != streamOpen {
		return s.fail("close", wwwfs.ErrInvalidState)
	}
	s.state = streamClosed

	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()
	s.node.data = s.buf
	s.node.modTime = time.Now()
	s.buf = nil
	delete(s.fs.writing, s.node)
	return nil
}

// Abort implements wwwfs.WritableFileStream: the staged content is discarded
// and the write lock is released.
func (s *Stream) Abort(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != streamOpen {
		return s.fail("abort", wwwfs.ErrInvalidState)
	}
	s.state = streamAborted
	s.buf = nil

	s.fs.mu.Lock()
	defer s.fs.mu.Unlock()
	delete(s.fs.writing, s.node)
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

// Compile-time interface checks.
var (
	_ wwwfs.Directory          = (*Directory)(nil)
	_ wwwfs.File               = (*File)(nil)
	_ wwwfs.WritableFileStream = (*Stream)(nil)
)
