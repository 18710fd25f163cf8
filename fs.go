package wwwfs

import (
	"context"
	"strings"
	"time"
)

// EntryKind discriminates the two node kinds a directory can contain.
type EntryKind uint8

const (
	// KindFile marks a leaf entry holding a byte sequence.
	KindFile EntryKind = iota
	// KindDirectory marks an entry that can contain child entries.
	KindDirectory
)

// String returns "file" or "directory".
func (k EntryKind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}

// DirEntry is one name+kind pair produced by Directory.Entries, carrying the
// handle for the named node. Exactly one of Directory or File is non-nil,
// matching Kind.
type DirEntry struct {
	Name      string
	Kind      EntryKind
	Directory Directory
	File      File
}

// FileInfo is the metadata a File reports. ModTime precision is
// backend-dependent.
type FileInfo struct {
	Size    int64
	ModTime time.Time
}

// GetFileHandleOptions controls Directory.GetFileHandle.
type GetFileHandleOptions struct {
	// Create makes the file if it does not exist instead of failing with
	// ErrNotFound. Creating is idempotent.
	Create bool
}

// GetDirectoryHandleOptions controls Directory.GetDirectoryHandle.
type GetDirectoryHandleOptions struct {
	// Create makes the directory if it does not exist instead of failing
	// with ErrNotFound. Creating is idempotent.
	Create bool
}

// CreateWritableOptions controls File.CreateWritable.
type CreateWritableOptions struct {
	// KeepExistingData seeds the stream with the file's current content so
	// positioned writes patch it. When false the stream starts empty and a
	// committed close truncates away any prior content.
	KeepExistingData bool
}

// RemoveOptions controls Directory.RemoveEntry.
type RemoveOptions struct {
	// Recursive permits removing a non-empty directory, deleting its
	// contents best-effort first.
	Recursive bool
}

// Directory is a capability for a named node that can contain child entries.
// Handles are lightweight references: two handles may reference the same
// underlying node, whose lifetime is the storage's, not the handle's.
//
// A nil options pointer means the documented zero-value defaults.
type Directory interface {
	// Name returns the entry's name within its parent.
	Name() string

	// GetFileHandle opens the named child file, creating it when
	// opts.Create is set. A child of the wrong kind fails ErrNotFile.
	GetFileHandle(ctx context.Context, name string, opts *GetFileHandleOptions) (File, error)

	// GetDirectoryHandle opens the named child directory, creating it when
	// opts.Create is set. A child of the wrong kind fails ErrNotDirectory.
	GetDirectoryHandle(ctx context.Context, name string, opts *GetDirectoryHandleOptions) (Directory, error)

	// RemoveEntry deletes the named child. A non-empty directory fails
	// ErrInvalidState unless opts.Recursive is set; an interrupted
	// recursive removal reports an aggregate error and may leave a
	// partially deleted subtree.
	RemoveEntry(ctx context.Context, name string, opts *RemoveOptions) error

	// Entries starts a single-pass enumeration of the directory's children
	// as of the call. The iterator is not restartable; call Entries again
	// to re-scan.
	Entries(ctx context.Context) (DirIterator, error)
}

// File is a capability for a named leaf node holding bytes. Content is only
// mutable through a WritableFileStream; readers observe content as of their
// Read call, never a live view.
type File interface {
	// Name returns the entry's name within its parent.
	Name() string

	// Read returns the file's entire content as of the call. Interrupted
	// reads fail ErrIO rather than returning partial data.
	Read(ctx context.Context) ([]byte, error)

	// Stat reports the file's size and last-modified time.
	Stat(ctx context.Context) (FileInfo, error)

	// CreateWritable opens a write session against the file. At most one
	// stream may be open per file per backend instance; a concurrent
	// second opener fails ErrInvalidState.
	CreateWritable(ctx context.Context, opts *CreateWritableOptions) (WritableFileStream, error)
}

// WritableFileStream is an open, exclusive write session. Writes stage
// privately until Close commits them atomically; Abort (or dropping the
// stream without Close) discards them. Any call after Close or Abort fails
// ErrInvalidState.
type WritableFileStream interface {
	// Write writes p at the cursor and advances the cursor by len(p).
	Write(ctx context.Context, p []byte) (int, error)

	// WriteAt writes p at off without moving the cursor. A gap past the
	// staged end is zero-filled.
	WriteAt(ctx context.Context, p []byte, off int64) (int, error)

	// Seek repositions the cursor. Offsets outside the staged content
	// fail ErrInvalidState.
	Seek(ctx context.Context, off int64) error

	// Truncate sets the staged length, discarding bytes beyond size or
	// zero-filling up to it. The cursor is clamped to the new end.
	Truncate(ctx context.Context, size int64) error

	// Close commits the staged content atomically and releases the
	// file's write lock.
	Close(ctx context.Context) error

	// Abort discards the staged content and releases the file's write
	// lock.
	Abort(ctx context.Context) error
}

// DirIterator yields directory entries one at a time. Next returns io.EOF
// once the sequence is exhausted.
type DirIterator interface {
	Next(ctx context.Context) (DirEntry, error)
}

// ValidateName reports whether name is usable as a single path component.
// Empty names, ".", "..", and names containing a separator or NUL fail
// ErrInvalidName. Backends call this before touching storage so the check
// behaves identically everywhere.
func ValidateName(name string) error {
	switch name {
	case "", ".", "..":
		return &OpError{Op: "validate", Name: name, Err: ErrInvalidName}
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return &OpError{Op: "validate", Name: name, Err: ErrInvalidName}
	}
	return nil
}
