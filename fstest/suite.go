// Package fstest provides a conformance test suite for validating wwwfs
// backend implementations against the capability contracts.
//
// Backend packages import the suite and run it against a fresh root per
// test:
//
//	func TestConformance(t *testing.T) {
//	    fstest.TestSuite(t, func(t *testing.T) wwwfs.Directory {
//	        root, err := osfs.New(t.TempDir())
//	        if err != nil {
//	            t.Fatal(err)
//	        }
//	        return root
//	    })
//	}
//
// The suite validates contract behavior only, never backend-specific detail:
// every test asserts the error taxonomy via errors.Is and observes content
// through the capability methods themselves.
package fstest

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/hydroperx/wwwfs"
)

// NewRootFunc returns a fresh, empty root directory. The suite mutates the
// tree, so every invocation must start clean.
type NewRootFunc func(t *testing.T) wwwfs.Directory

// TestSuite runs all conformance tests against a backend.
func TestSuite(t *testing.T, newRoot NewRootFunc) {
	TestSuiteWithSkip(t, newRoot, nil)
}

// TestSuiteWithSkip runs the conformance tests, skipping the named ones.
// Useful for backends with documented behavioral gaps.
func TestSuiteWithSkip(t *testing.T, newRoot NewRootFunc, skipTests []string) {
	shouldSkip := func(name string) bool {
		for _, skip := range skipTests {
			if skip == name {
				return true
			}
		}
		return false
	}

	tests := []struct {
		name string
		fn   func(t *testing.T, root wwwfs.Directory)
	}{
		{"RoundTrip", testRoundTrip},
		{"CreateIdempotent", testCreateIdempotent},
		{"NotFound", testNotFound},
		{"TypeMismatch", testTypeMismatch},
		{"InvalidName", testInvalidName},
		{"Entries", testEntries},
		{"SeekAndWrite", testSeekAndWrite},
		{"WriteAtOffset", testWriteAtOffset},
		{"Truncate", testTruncate},
		{"TruncateOnOpen", testTruncateOnOpen},
		{"KeepExistingData", testKeepExistingData},
		{"AbortDiscards", testAbortDiscards},
		{"Exclusivity", testExclusivity},
		{"ClosedStream", testClosedStream},
		{"Remove", testRemove},
		{"RemoveNonEmpty", testRemoveNonEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if shouldSkip(tt.name) {
				t.Skip("skipped by backend configuration")
				return
			}
			tt.fn(t, newRoot(t))
		})
	}
}

func mustFile(t *testing.T, ctx context.Context, dir wwwfs.Directory, name string) wwwfs.File {
	t.Helper()
	f, err := dir.GetFileHandle(ctx, name, &wwwfs.GetFileHandleOptions{Create: true})
	if err != nil {
		t.Fatalf("GetFileHandle(%q, create): got error %v, want nil", name, err)
	}
	return f
}

func mustWrite(t *testing.T, ctx context.Context, f wwwfs.File, data []byte) {
	t.Helper()
	w, err := f.CreateWritable(ctx, nil)
	if err != nil {
		t.Fatalf("CreateWritable(%q): got error %v, want nil", f.Name(), err)
	}
	if _, err := w.Write(ctx, data); err != nil {
		t.Fatalf("Write(%q): got error %v, want nil", f.Name(), err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close(%q): got error %v, want nil", f.Name(), err)
	}
}

func mustRead(t *testing.T, ctx context.Context, f wwwfs.File) []byte {
	t.Helper()
	data, err := f.Read(ctx)
	if err != nil {
		t.Fatalf("Read(%q): got error %v, want nil", f.Name(), err)
	}
	return data
}

// testRoundTrip: bytes written through a stream and committed come back
// verbatim from Read, and Stat agrees on the size.
func testRoundTrip(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()
	data := []byte("hello, wwwfs")

	f := mustFile(t, ctx, root, "round.bin")
	mustWrite(t, ctx, f, data)

	if got := mustRead(t, ctx, f); !bytes.Equal(got, data) {
		t.Errorf("Read: got %q, want %q", got, data)
	}
	info, err := f.Stat(ctx)
	if err != nil {
		t.Fatalf("Stat: got error %v, want nil", err)
	}
	if info.Size != int64(len(data)) {
		t.Errorf("Stat.Size = %d, want %d", info.Size, len(data))
	}
}

// testCreateIdempotent: get-with-create twice yields the same node, no
// error and no duplicate.
func testCreateIdempotent(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	f := mustFile(t, ctx, root, "idem.txt")
	mustWrite(t, ctx, f, []byte("x"))

	again := mustFile(t, ctx, root, "idem.txt")
	if got := mustRead(t, ctx, again); string(got) != "x" {
		t.Errorf("second create-open lost content: got %q, want %q", got, "x")
	}

	if _, err := root.GetDirectoryHandle(ctx, "sub", &wwwfs.GetDirectoryHandleOptions{Create: true}); err != nil {
		t.Fatalf("GetDirectoryHandle(create): got error %v, want nil", err)
	}
	if _, err := root.GetDirectoryHandle(ctx, "sub", &wwwfs.GetDirectoryHandleOptions{Create: true}); err != nil {
		t.Errorf("second GetDirectoryHandle(create): got error %v, want nil", err)
	}

	names := names(t, ctx, root)
	if len(names) != 2 {
		t.Errorf("entries after idempotent creates = %v, want 2 names", names)
	}
}

// testNotFound: opening without create fails ErrNotFound.
func testNotFound(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	if _, err := root.GetFileHandle(ctx, "missing.txt", nil); !errors.Is(err, wwwfs.ErrNotFound) {
		t.Errorf("GetFileHandle(missing): got %v, want ErrNotFound", err)
	}
	if _, err := root.GetDirectoryHandle(ctx, "missing", nil); !errors.Is(err, wwwfs.ErrNotFound) {
		t.Errorf("GetDirectoryHandle(missing): got %v, want ErrNotFound", err)
	}
	if err := root.RemoveEntry(ctx, "missing", nil); !errors.Is(err, wwwfs.ErrNotFound) {
		t.Errorf("RemoveEntry(missing): got %v, want ErrNotFound", err)
	}
}

// testTypeMismatch: a name bound to the other kind fails ErrNotFile or
// ErrNotDirectory, with or without create.
func testTypeMismatch(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	mustFile(t, ctx, root, "leaf")
	if _, err := root.GetDirectoryHandle(ctx, "leaf", nil); !errors.Is(err, wwwfs.ErrNotDirectory) {
		t.Errorf("GetDirectoryHandle(file name): got %v, want ErrNotDirectory", err)
	}
	if _, err := root.GetDirectoryHandle(ctx, "leaf", &wwwfs.GetDirectoryHandleOptions{Create: true}); !errors.Is(err, wwwfs.ErrNotDirectory) {
		t.Errorf("GetDirectoryHandle(file name, create): got %v, want ErrNotDirectory", err)
	}

	if _, err := root.GetDirectoryHandle(ctx, "branch", &wwwfs.GetDirectoryHandleOptions{Create: true}); err != nil {
		t.Fatalf("GetDirectoryHandle(create): got error %v, want nil", err)
	}
	if _, err := root.GetFileHandle(ctx, "branch", nil); !errors.Is(err, wwwfs.ErrNotFile) {
		t.Errorf("GetFileHandle(dir name): got %v, want ErrNotFile", err)
	}
	if _, err := root.GetFileHandle(ctx, "branch", &wwwfs.GetFileHandleOptions{Create: true}); !errors.Is(err, wwwfs.ErrNotFile) {
		t.Errorf("GetFileHandle(dir name, create): got %v, want ErrNotFile", err)
	}
}

// testInvalidName: separators and reserved components fail ErrInvalidName.
func testInvalidName(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	for _, name := range []string{"", ".", "..", "a/b", "a\\b", "nul\x00"} {
		if _, err := root.GetFileHandle(ctx, name, &wwwfs.GetFileHandleOptions{Create: true}); !errors.Is(err, wwwfs.ErrInvalidName) {
			t.Errorf("GetFileHandle(%q): got %v, want ErrInvalidName", name, err)
		}
		if _, err := root.GetDirectoryHandle(ctx, name, &wwwfs.GetDirectoryHandleOptions{Create: true}); !errors.Is(err, wwwfs.ErrInvalidName) {
			t.Errorf("GetDirectoryHandle(%q): got %v, want ErrInvalidName", name, err)
		}
		if err := root.RemoveEntry(ctx, name, nil); !errors.Is(err, wwwfs.ErrInvalidName) {
			t.Errorf("RemoveEntry(%q): got %v, want ErrInvalidName", name, err)
		}
	}
}

// names drains a fresh enumeration into a sorted-by-backend name list.
func names(t *testing.T, ctx context.Context, dir wwwfs.Directory) []string {
	t.Helper()
	it, err := dir.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: got error %v, want nil", err)
	}
	var out []string
	for {
		e, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next: got error %v, want nil", err)
		}
		out = append(out, e.Name)
	}
}

// testEntries: enumeration yields each child once with the right kind and a
// usable handle, and is single-pass.
func testEntries(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	if got := names(t, ctx, root); len(got) != 0 {
		t.Fatalf("entries of empty root = %v, want none", got)
	}

	f := mustFile(t, ctx, root, "file.txt")
	mustWrite(t, ctx, f, []byte("payload"))
	if _, err := root.GetDirectoryHandle(ctx, "subdir", &wwwfs.GetDirectoryHandleOptions{Create: true}); err != nil {
		t.Fatalf("GetDirectoryHandle(create): got error %v, want nil", err)
	}

	it, err := root.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: got error %v, want nil", err)
	}
	seen := map[string]wwwfs.EntryKind{}
	for {
		e, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next: got error %v, want nil", err)
		}
		seen[e.Name] = e.Kind
		switch e.Kind {
		case wwwfs.KindFile:
			if e.File == nil {
				t.Errorf("entry %q: file handle missing", e.Name)
			} else if got := mustRead(t, ctx, e.File); string(got) != "payload" {
				t.Errorf("entry %q content = %q, want %q", e.Name, got, "payload")
			}
		case wwwfs.KindDirectory:
			if e.Directory == nil {
				t.Errorf("entry %q: directory handle missing", e.Name)
			}
		}
	}
	if len(seen) != 2 || seen["file.txt"] != wwwfs.KindFile || seen["subdir"] != wwwfs.KindDirectory {
		t.Errorf("entries = %v, want file.txt(file) and subdir(directory)", seen)
	}

	// Exhausted iterators stay exhausted.
	if _, err := it.Next(ctx); !errors.Is(err, io.EOF) {
		t.Errorf("Next after EOF: got %v, want io.EOF", err)
	}
}

// testSeekAndWrite: cursor writes overwrite in place without truncating the
// tail.
func testSeekAndWrite(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	f := mustFile(t, ctx, root, "seek.txt")
	w, err := f.CreateWritable(ctx, nil)
	if err != nil {
		t.Fatalf("CreateWritable: got error %v, want nil", err)
	}
	if _, err := w.Write(ctx, []byte("Hello")); err != nil {
		t.Fatalf("Write: got error %v, want nil", err)
	}
	if err := w.Seek(ctx, 0); err != nil {
		t.Fatalf("Seek(0): got error %v, want nil", err)
	}
	if _, err := w.Write(ctx, []byte("Hi")); err != nil {
		t.Fatalf("Write after seek: got error %v, want nil", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: got error %v, want nil", err)
	}

	if got := mustRead(t, ctx, f); string(got) != "Hillo" {
		t.Errorf("Read = %q, want %q", got, "Hillo")
	}

	// Seeking outside the staged content fails.
	w2, err := f.CreateWritable(ctx, nil)
	if err != nil {
		t.Fatalf("CreateWritable: got error %v, want nil", err)
	}
	defer func() { _ = w2.Abort(ctx) }()
	if err := w2.Seek(ctx, 10); !errors.Is(err, wwwfs.ErrInvalidState) {
		t.Errorf("Seek past end: got %v, want ErrInvalidState", err)
	}
}

// testWriteAtOffset: positioned writes patch without moving the cursor and
// zero-fill gaps.
func testWriteAtOffset(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	f := mustFile(t, ctx, root, "writeat.bin")
	w, err := f.CreateWritable(ctx, nil)
	if err != nil {
		t.Fatalf("CreateWritable: got error %v, want nil", err)
	}
	if _, err := w.Write(ctx, []byte("abcdef")); err != nil {
		t.Fatalf("Write: got error %v, want nil", err)
	}
	if _, err := w.WriteAt(ctx, []byte("XY"), 1); err != nil {
		t.Fatalf("WriteAt(1): got error %v, want nil", err)
	}
	// Cursor unmoved: this append continues at offset 6.
	if _, err := w.Write(ctx, []byte("g")); err != nil {
		t.Fatalf("Write after WriteAt: got error %v, want nil", err)
	}
	if _, err := w.WriteAt(ctx, []byte("Z"), 9); err != nil {
		t.Fatalf("WriteAt past end: got error %v, want nil", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: got error %v, want nil", err)
	}

	want := []byte("aXYdefg\x00\x00Z")
	if got := mustRead(t, ctx, f); !bytes.Equal(got, want) {
		t.Errorf("Read = %q, want %q", got, want)
	}
}

// testTruncate: the truncate operation shrinks and zero-fill grows.
func testTruncate(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	f := mustFile(t, ctx, root, "trunc.bin")
	w, err := f.CreateWritable(ctx, nil)
	if err != nil {
		t.Fatalf("CreateWritable: got error %v, want nil", err)
	}
	if _, err := w.Write(ctx, []byte("0123456789")); err != nil {
		t.Fatalf("Write: got error %v, want nil", err)
	}
	if err := w.Truncate(ctx, 4); err != nil {
		t.Fatalf("Truncate(4): got error %v, want nil", err)
	}
	if err := w.Truncate(ctx, 6); err != nil {
		t.Fatalf("Truncate(6): got error %v, want nil", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: got error %v, want nil", err)
	}

	want := []byte("0123\x00\x00")
	if got := mustRead(t, ctx, f); !bytes.Equal(got, want) {
		t.Errorf("Read = %q, want %q", got, want)
	}
}

// testTruncateOnOpen: keep_existing_data=false discards prior content even
// when the new write is shorter.
func testTruncateOnOpen(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	f := mustFile(t, ctx, root, "replace.txt")
	mustWrite(t, ctx, f, []byte("a much longer original payload"))

	w, err := f.CreateWritable(ctx, &wwwfs.CreateWritableOptions{KeepExistingData: false})
	if err != nil {
		t.Fatalf("CreateWritable: got error %v, want nil", err)
	}
	if _, err := w.Write(ctx, []byte("tiny")); err != nil {
		t.Fatalf("Write: got error %v, want nil", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: got error %v, want nil", err)
	}

	if got := mustRead(t, ctx, f); string(got) != "tiny" {
		t.Errorf("Read = %q, want %q", got, "tiny")
	}
}

// testKeepExistingData: keep_existing_data=true seeds the stream so
// positioned writes patch the old content.
func testKeepExistingData(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	f := mustFile(t, ctx, root, "patch.txt")
	mustWrite(t, ctx, f, []byte("Hello World"))

	w, err := f.CreateWritable(ctx, &wwwfs.CreateWritableOptions{KeepExistingData: true})
	if err != nil {
		t.Fatalf("CreateWritable(keep): got error %v, want nil", err)
	}
	if _, err := w.WriteAt(ctx, []byte("WWWFS"), 6); err != nil {
		t.Fatalf("WriteAt: got error %v, want nil", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: got error %v, want nil", err)
	}

	if got := mustRead(t, ctx, f); string(got) != "Hello WWWFS" {
		t.Errorf("Read = %q, want %q", got, "Hello WWWFS")
	}
}

// testAbortDiscards: an aborted stream leaves prior content untouched.
func testAbortDiscards(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	f := mustFile(t, ctx, root, "abort.txt")
	mustWrite(t, ctx, f, []byte("original"))

	w, err := f.CreateWritable(ctx, nil)
	if err != nil {
		t.Fatalf("CreateWritable: got error %v, want nil", err)
	}
	if _, err := w.Write(ctx, []byte("doomed staged bytes")); err != nil {
		t.Fatalf("Write: got error %v, want nil", err)
	}
	if err := w.Abort(ctx); err != nil {
		t.Fatalf("Abort: got error %v, want nil", err)
	}

	if got := mustRead(t, ctx, f); string(got) != "original" {
		t.Errorf("Read after abort = %q, want %q", got, "original")
	}
}

// testExclusivity: a second concurrent writable opener fails
// ErrInvalidState; closing releases the lock.
func testExclusivity(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	f := mustFile(t, ctx, root, "locked.txt")
	w, err := f.CreateWritable(ctx, nil)
	if err != nil {
		t.Fatalf("CreateWritable: got error %v, want nil", err)
	}
	if _, err := f.CreateWritable(ctx, nil); !errors.Is(err, wwwfs.ErrInvalidState) {
		t.Errorf("second CreateWritable: got %v, want ErrInvalidState", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: got error %v, want nil", err)
	}

	w2, err := f.CreateWritable(ctx, nil)
	if err != nil {
		t.Fatalf("CreateWritable after close: got error %v, want nil", err)
	}
	if err := w2.Abort(ctx); err != nil {
		t.Fatalf("Abort: got error %v, want nil", err)
	}
}

// testClosedStream: every operation on a terminal stream fails
// ErrInvalidState, including a second close or abort.
func testClosedStream(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	f := mustFile(t, ctx, root, "done.txt")
	w, err := f.CreateWritable(ctx, nil)
	if err != nil {
		t.Fatalf("CreateWritable: got error %v, want nil", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: got error %v, want nil", err)
	}

	if _, err := w.Write(ctx, []byte("late")); !errors.Is(err, wwwfs.ErrInvalidState) {
		t.Errorf("Write after close: got %v, want ErrInvalidState", err)
	}
	if _, err := w.WriteAt(ctx, []byte("late"), 0); !errors.Is(err, wwwfs.ErrInvalidState) {
		t.Errorf("WriteAt after close: got %v, want ErrInvalidState", err)
	}
	if err := w.Seek(ctx, 0); !errors.Is(err, wwwfs.ErrInvalidState) {
		t.Errorf("Seek after close: got %v, want ErrInvalidState", err)
	}
	if err := w.Truncate(ctx, 0); !errors.Is(err, wwwfs.ErrInvalidState) {
		t.Errorf("Truncate after close: got %v, want ErrInvalidState", err)
	}
	if err := w.Close(ctx); !errors.Is(err, wwwfs.ErrInvalidState) {
		t.Errorf("second Close: got %v, want ErrInvalidState", err)
	}
	if err := w.Abort(ctx); !errors.Is(err, wwwfs.ErrInvalidState) {
		t.Errorf("Abort after close: got %v, want ErrInvalidState", err)
	}
}

// testRemove: removed entries disappear from subsequent opens and listings.
func testRemove(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	f := mustFile(t, ctx, root, "gone.txt")
	mustWrite(t, ctx, f, []byte("x"))

	if err := root.RemoveEntry(ctx, "gone.txt", nil); err != nil {
		t.Fatalf("RemoveEntry: got error %v, want nil", err)
	}
	if _, err := root.GetFileHandle(ctx, "gone.txt", nil); !errors.Is(err, wwwfs.ErrNotFound) {
		t.Errorf("GetFileHandle after remove: got %v, want ErrNotFound", err)
	}
	if got := names(t, ctx, root); len(got) != 0 {
		t.Errorf("entries after remove = %v, want none", got)
	}
}

// testRemoveNonEmpty: a populated directory only goes away with the
// recursive flag.
func testRemoveNonEmpty(t *testing.T, root wwwfs.Directory) {
	ctx := context.Background()

	sub, err := root.GetDirectoryHandle(ctx, "sub", &wwwfs.GetDirectoryHandleOptions{Create: true})
	if err != nil {
		t.Fatalf("GetDirectoryHandle(create): got error %v, want nil", err)
	}
	inner := mustFile(t, ctx, sub, "inner.txt")
	mustWrite(t, ctx, inner, []byte("kept"))

	if err := root.RemoveEntry(ctx, "sub", nil); !errors.Is(err, wwwfs.ErrInvalidState) {
		t.Errorf("RemoveEntry(non-empty): got %v, want ErrInvalidState", err)
	}
	if err := root.RemoveEntry(ctx, "sub", &wwwfs.RemoveOptions{Recursive: true}); err != nil {
		t.Fatalf("RemoveEntry(recursive): got error %v, want nil", err)
	}
	if got := names(t, ctx, root); len(got) != 0 {
		t.Errorf("entries after recursive remove = %v, want none", got)
	}
}
