package fstest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"reflect"
	"sort"
	"testing"

	"github.com/hydroperx/wwwfs"
	"github.com/hydroperx/wwwfs/memfs"
)

// Snapshot walks dir and returns its observable tree as sorted
// "path kind" lines, with file lines carrying content length. Two backends
// that have processed the same operation sequence must produce equal
// snapshots.
func Snapshot(ctx context.Context, dir wwwfs.Directory) ([]string, error) {
	var lines []string
	if err := snapshotInto(ctx, dir, "", &lines); err != nil {
		return nil, err
	}
	sort.Strings(lines)
	return lines, nil
}

func snapshotInto(ctx context.Context, dir wwwfs.Directory, prefix string, lines *[]string) error {
	it, err := dir.Entries(ctx)
	if err != nil {
		return err
	}
	for {
		e, err := it.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		p := path.Join(prefix, e.Name)
		switch e.Kind {
		case wwwfs.KindDirectory:
			*lines = append(*lines, p+" directory")
			if err := snapshotInto(ctx, e.Directory, p, lines); err != nil {
				return err
			}
		case wwwfs.KindFile:
			data, err := e.File.Read(ctx)
			if err != nil {
				return err
			}
			*lines = append(*lines, fmt.Sprintf("%s file %d", p, len(data)))
		}
	}
}

// scriptStep is one operation applied identically to the candidate backend
// and the in-memory reference.
type scriptStep struct {
	name string
	op   func(ctx context.Context, root wwwfs.Directory) error
}

// TestMatchesReference drives a fixed operation script against the
// candidate backend and a fresh memfs reference, comparing tree snapshots
// after every step. This is the cross-backend conformance property: for
// identical operation sequences, the observable directory tree must match.
func TestMatchesReference(t *testing.T, newRoot NewRootFunc) {
	ctx := context.Background()
	candidate := newRoot(t)
	reference := memfs.New()

	writeFile := func(dirName, fileName string, data []byte) scriptStep {
		return scriptStep{
			name: fmt.Sprintf("write %s/%s", dirName, fileName),
			op: func(ctx context.Context, root wwwfs.Directory) error {
				dir := root
				if dirName != "" {
					d, err := root.GetDirectoryHandle(ctx, dirName, &wwwfs.GetDirectoryHandleOptions{Create: true})
					if err != nil {
						return err
					}
					dir = d
				}
				f, err := dir.GetFileHandle(ctx, fileName, &wwwfs.GetFileHandleOptions{Create: true})
				if err != nil {
					return err
				}
				w, err := f.CreateWritable(ctx, nil)
				if err != nil {
					return err
				}
				if _, err := w.Write(ctx, data); err != nil {
					_ = w.Abort(ctx)
					return err
				}
				return w.Close(ctx)
			},
		}
	}

	script := []scriptStep{
		{"mkdir a", func(ctx context.Context, root wwwfs.Directory) error {
			_, err := root.GetDirectoryHandle(ctx, "a", &wwwfs.GetDirectoryHandleOptions{Create: true})
			return err
		}},
		writeFile("", "top.txt", []byte("top")),
		writeFile("a", "one.bin", []byte("11111")),
		writeFile("a", "two.bin", []byte("2")),
		{"mkdir a then b", func(ctx context.Context, root wwwfs.Directory) error {
			a, err := root.GetDirectoryHandle(ctx, "a", nil)
			if err != nil {
				return err
			}
			_, err = a.GetDirectoryHandle(ctx, "b", &wwwfs.GetDirectoryHandleOptions{Create: true})
			return err
		}},
		writeFile("a", "one.bin", []byte("rewritten longer content")),
		{"remove a/two.bin", func(ctx context.Context, root wwwfs.Directory) error {
			a, err := root.GetDirectoryHandle(ctx, "a", nil)
			if err != nil {
				return err
			}
			return a.RemoveEntry(ctx, "two.bin", nil)
		}},
		{"remove a recursively", func(ctx context.Context, root wwwfs.Directory) error {
			return root.RemoveEntry(ctx, "a", &wwwfs.RemoveOptions{Recursive: true})
		}},
	}

	for _, step := range script {
		if err := step.op(ctx, candidate); err != nil {
			t.Fatalf("step %q on candidate: got error %v, want nil", step.name, err)
		}
		if err := step.op(ctx, reference); err != nil {
			t.Fatalf("step %q on reference: got error %v, want nil", step.name, err)
		}
		got, err := Snapshot(ctx, candidate)
		if err != nil {
			t.Fatalf("step %q: candidate snapshot: %v", step.name, err)
		}
		want, err := Snapshot(ctx, reference)
		if err != nil {
			t.Fatalf("step %q: reference snapshot: %v", step.name, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("step %q: tree diverged\ncandidate: %v\nreference: %v", step.name, got, want)
		}
	}
}
