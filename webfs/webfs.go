//go:build js && wasm

// Package webfs is the browser wwwfs backend. It wraps the Origin Private
// File System handles (FileSystemDirectoryHandle, FileSystemFileHandle,
// FileSystemWritableFileStream) exposed by the page's runtime, translating
// DOMException names into the wwwfs taxonomy.
//
// The underlying primitive already stages writable-stream content in a swap
// file and commits it on close, and already rejects operations on closed
// streams, so this package is a thin capability adapter rather than a
// re-implementation.
package webfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"syscall/js"
	"time"

	"github.com/hydroperx/wwwfs"
)

// Root returns the origin-private storage root directory,
// navigator.storage.getDirectory().
func Root(ctx context.Context) (*Directory, error) {
	storage := js.Global().Get("navigator").Get("storage")
	if storage.IsUndefined() {
		return nil, &wwwfs.OpError{Op: "open root", Name: "/", Err: wwwfs.ErrPermission}
	}
	p, err := call(storage, "getDirectory")
	if err != nil {
		return nil, &wwwfs.OpError{Op: "open root", Name: "/", Err: translateJS(err, wwwfs.ErrPermission)}
	}
	v, err := await(ctx, p)
	if err != nil {
		return nil, &wwwfs.OpError{Op: "open root", Name: "/", Err: translateJS(err, wwwfs.ErrPermission)}
	}
	return &Directory{v: v, name: "/"}, nil
}

// Directory wraps a FileSystemDirectoryHandle.
type Directory struct {
	v    js.Value
	name string
}

// Name returns the handle's name within its parent ("/" for the root).
func (d *Directory) Name() string { return d.name }

// GetFileHandle implements wwwfs.Directory.
func (d *Directory) GetFileHandle(ctx context.Context, name string, opts *wwwfs.GetFileHandleOptions) (wwwfs.File, error) {
	if opts == nil {
		opts = &wwwfs.GetFileHandleOptions{}
	}
	if err := wwwfs.ValidateName(name); err != nil {
		return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: wwwfs.ErrInvalidName}
	}
	v, err := d.getHandle(ctx, "getFileHandle", name, opts.Create)
	if err != nil {
		return nil, &wwwfs.OpError{Op: "open file", Name: name, Err: translateJS(err, wwwfs.ErrNotFile)}
	}
	return &File{v: v, name: name}, nil
}

// GetDirectoryHandle implements wwwfs.Directory.
func (d *Directory) GetDirectoryHandle(ctx context.Context, name string, opts *wwwfs.GetDirectoryHandleOptions) (wwwfs.Directory, error) {
	if opts == nil {
		opts = &wwwfs.GetDirectoryHandleOptions{}
	}
	if err := wwwfs.ValidateName(name); err != nil {
		return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: wwwfs.ErrInvalidName}
	}
	v, err := d.getHandle(ctx, "getDirectoryHandle", name, opts.Create)
	if err != nil {
		return nil, &wwwfs.OpError{Op: "open directory", Name: name, Err: translateJS(err, wwwfs.ErrNotDirectory)}
	}
	return &Directory{v: v, name: name}, nil
}

func (d *Directory) getHandle(ctx context.Context, method, name string, create bool) (js.Value, error) {
	p, err := call(d.v, method, name, map[string]interface{}{"create": create})
	if err != nil {
		return js.Value{}, err
	}
	return await(ctx, p)
}

// RemoveEntry implements wwwfs.Directory.
func (d *Directory) RemoveEntry(ctx context.Context, name string, opts *wwwfs.RemoveOptions) error {
	if opts == nil {
		opts = &wwwfs.RemoveOptions{}
	}
	if err := wwwfs.ValidateName(name); err != nil {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: wwwfs.ErrInvalidName}
	}
	p, err := call(d.v, "removeEntry", name, map[string]interface{}{"recursive": opts.Recursive})
	if err != nil {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: translateJS(err, wwwfs.ErrIO)}
	}
	if _, err := await(ctx, p); err != nil {
		return &wwwfs.OpError{Op: "remove", Name: name, Err: translateJS(err, wwwfs.ErrIO)}
	}
	return nil
}

// Entries implements wwwfs.Directory, wrapping the handle's async iterator.
func (d *Directory) Entries(_ context.Context) (wwwfs.DirIterator, error) {
	it, err := call(d.v, "entries")
	if err != nil {
		return nil, &wwwfs.OpError{Op: "entries", Name: d.name, Err: translateJS(err, wwwfs.ErrIO)}
	}
	return &dirIterator{it: it, dir: d.name}, nil
}

type dirIterator struct {
	it  js.Value
	dir string
}

func (it *dirIterator) Next(ctx context.Context) (wwwfs.DirEntry, error) {
	p, err := call(it.it, "next")
	if err != nil {
		return wwwfs.DirEntry{}, &wwwfs.OpError{Op: "entries", Name: it.dir, Err: translateJS(err, wwwfs.ErrIO)}
	}
	res, err := await(ctx, p)
	if err != nil {
		return wwwfs.DirEntry{}, &wwwfs.OpError{Op: "entries", Name: it.dir, Err: translateJS(err, wwwfs.ErrInvalidState)}
	}
	if res.Get("done").Bool() {
		return wwwfs.DirEntry{}, io.EOF
	}
	pair := res.Get("value")
	name := pair.Index(0).String()
	handle := pair.Index(1)

	if handle.Get("kind").String() == "directory" {
		return wwwfs.DirEntry{
			Name:      name,
			Kind:      wwwfs.KindDirectory,
			Directory: &Directory{v: handle, name: name},
		}, nil
	}
	return wwwfs.DirEntry{
		Name: name,
		Kind: wwwfs.KindFile,
		File: &File{v: handle, name: name},
	}, nil
}

// File wraps a FileSystemFileHandle.
type File struct {
	v    js.Value
	name string
}

// Name returns the handle's name within its parent.
func (f *File) Name() string { return f.name }

// getFile resolves the handle's current snapshot blob.
func (f *File) getFile(ctx context.Context) (js.Value, error) {
	p, err := call(f.v, "getFile")
	if err != nil {
		return js.Value{}, err
	}
	return await(ctx, p)
}

// Read implements wwwfs.File via getFile().arrayBuffer().
func (f *File) Read(ctx context.Context) ([]byte, error) {
	blob, err := f.getFile(ctx)
	if err != nil {
		return nil, &wwwfs.OpError{Op: "read", Name: f.name, Err: translateJS(err, wwwfs.ErrIO)}
	}
	p, err := call(blob, "arrayBuffer")
	if err != nil {
		return nil, &wwwfs.OpError{Op: "read", Name: f.name, Err: translateJS(err, wwwfs.ErrIO)}
	}
	buf, err := await(ctx, p)
	if err != nil {
		return nil, &wwwfs.OpError{Op: "read", Name: f.name, Err: translateJS(err, wwwfs.ErrIO)}
	}
	view := js.Global().Get("Uint8Array").New(buf)
	data := make([]byte, view.Get("length").Int())
	js.CopyBytesToGo(data, view)
	return data, nil
}

// Stat implements wwwfs.File. Size and lastModified come from the snapshot
// blob; precision is whatever the runtime reports (milliseconds).
func (f *File) Stat(ctx context.Context) (wwwfs.FileInfo, error) {
	blob, err := f.getFile(ctx)
	if err != nil {
		return wwwfs.FileInfo{}, &wwwfs.OpError{Op: "stat", Name: f.name, Err: translateJS(err, wwwfs.ErrIO)}
	}
	return wwwfs.FileInfo{
		Size:    int64(blob.Get("size").Float()),
		ModTime: time.UnixMilli(int64(blob.Get("lastModified").Float())),
	}, nil
}

// CreateWritable implements wwwfs.File. One-writer exclusivity and the
// commit-on-close contract are inherited from the underlying primitive.
func (f *File) CreateWritable(ctx context.Context, opts *wwwfs.CreateWritableOptions) (wwwfs.WritableFileStream, error) {
	if opts == nil {
		opts = &wwwfs.CreateWritableOptions{}
	}
	p, err := call(f.v, "createWritable", map[string]interface{}{"keepExistingData": opts.KeepExistingData})
	if err != nil {
		return nil, &wwwfs.OpError{Op: "create writable", Name: f.name, Err: translateJS(err, wwwfs.ErrInvalidState)}
	}
	v, err := await(ctx, p)
	if err != nil {
		return nil, &wwwfs.OpError{Op: "create writable", Name: f.name, Err: translateJS(err, wwwfs.ErrInvalidState)}
	}
	return &Stream{v: v, name: f.name}, nil
}

// Stream wraps a FileSystemWritableFileStream.
type Stream struct {
	v    js.Value
	name string
}

func (s *Stream) fail(op string, err error, fallback error) error {
	return &wwwfs.OpError{Op: op, Name: s.name, Err: translateJS(err, fallback)}
}

func (s *Stream) run(ctx context.Context, op string, fallback error, method string, args ...interface{}) error {
	p, err := call(s.v, method, args...)
	if err != nil {
		return s.fail(op, err, fallback)
	}
	if _, err := await(ctx, p); err != nil {
		return s.fail(op, err, fallback)
	}
	return nil
}

func toUint8Array(p []byte) js.Value {
	dst := js.Global().Get("Uint8Array").New(len(p))
	js.CopyBytesToJS(dst, p)
	return dst
}

// Write implements wwwfs.WritableFileStream.
func (s *Stream) Write(ctx context.Context, p []byte) (int, error) {
	if err := s.run(ctx, "write", wwwfs.ErrIO, "write", toUint8Array(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteAt implements wwwfs.WritableFileStream via the command form of
// write, which does not move the cursor.
func (s *Stream) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, &wwwfs.OpError{Op: "write at", Name: s.name, Err: wwwfs.ErrInvalidState}
	}
	cmd := map[string]interface{}{
		"type":     "write",
		"position": off,
		"data":     toUint8Array(p),
	}
	if err := s.run(ctx, "write at", wwwfs.ErrIO, "write", cmd); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Seek implements wwwfs.WritableFileStream.
func (s *Stream) Seek(ctx context.Context, off int64) error {
	if off < 0 {
		return &wwwfs.OpError{Op: "seek", Name: s.name, Err: wwwfs.ErrInvalidState}
	}
	return s.run(ctx, "seek", wwwfs.ErrInvalidState, "seek", off)
}

// Truncate implements wwwfs.WritableFileStream.
func (s *Stream) Truncate(ctx context.Context, size int64) error {
	if size < 0 {
		return &wwwfs.OpError{Op: "truncate", Name: s.name, Err: wwwfs.ErrInvalidState}
	}
	return s.run(ctx, "truncate", wwwfs.ErrIO, "truncate", size)
}

// Close implements wwwfs.WritableFileStream; the primitive commits its swap
// file atomically.
func (s *Stream) Close(ctx context.Context) error {
	return s.run(ctx, "close", wwwfs.ErrInvalidState, "close")
}

// Abort implements wwwfs.WritableFileStream; the swap file is discarded.
func (s *Stream) Abort(ctx context.Context) error {
	return s.run(ctx, "abort", wwwfs.ErrInvalidState, "abort")
}

// call invokes method on v, converting a synchronous JS throw into an error
// instead of a panic.
func call(v js.Value, method string, args ...interface{}) (res js.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if jsErr, ok := r.(js.Error); ok {
				err = jsErr
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	return v.Call(method, args...), nil
}

// await resolves a JS promise, honoring ctx cancellation. A rejected promise
// surfaces as js.Error wrapping the rejection value.
func await(ctx context.Context, promise js.Value) (js.Value, error) {
	type result struct {
		v   js.Value
		err error
	}
	done := make(chan result, 1)

	var then, catch js.Func
	then = js.FuncOf(func(_ js.Value, args []js.Value) interface{} {
		var v js.Value
		if len(args) > 0 {
			v = args[0]
		}
		done <- result{v: v}
		return nil
	})
	catch = js.FuncOf(func(_ js.Value, args []js.Value) interface{} {
		var v js.Value
		if len(args) > 0 {
			v = args[0]
		}
		done <- result{err: js.Error{Value: v}}
		return nil
	})
	promise.Call("then", then).Call("catch", catch)

	select {
	case <-ctx.Done():
		then.Release()
		catch.Release()
		return js.Value{}, ctx.Err()
	case r := <-done:
		then.Release()
		catch.Release()
		return r.v, r.err
	}
}

// translateJS funnels DOMException names into the wwwfs taxonomy. mismatch
// is the kind used for TypeMismatchError, which depends on whether a file
// or a directory capability was requested.
func translateJS(err error, mismatch error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	jsErr, ok := err.(js.Error)
	if !ok {
		return errors.Join(wwwfs.ErrIO, err)
	}
	switch jsErr.Value.Get("name").String() {
	case "NotFoundError":
		return wwwfs.ErrNotFound
	case "TypeMismatchError":
		return mismatch
	case "InvalidModificationError":
		return wwwfs.ErrInvalidState
	case "InvalidStateError", "NoModificationAllowedError":
		return wwwfs.ErrInvalidState
	case "NotAllowedError", "SecurityError", "QuotaExceededError":
		return wwwfs.ErrPermission
	case "TypeError", "SyntaxError":
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
