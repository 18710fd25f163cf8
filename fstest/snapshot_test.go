package fstest

import (
	"context"
	"testing"

	"github.com/hydroperx/wwwfs"
	"github.com/hydroperx/wwwfs/memfs"
)

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	root := memfs.New()

	sub, err := root.GetDirectoryHandle(ctx, "a", &wwwfs.GetDirectoryHandleOptions{Create: true})
	if err != nil {
		t.Fatalf("GetDirectoryHandle: got error %v, want nil", err)
	}
	f, err := sub.GetFileHandle(ctx, "f.bin", &wwwfs.GetFileHandleOptions{Create: true})
	if err != nil {
		t.Fatalf("GetFileHandle: got error %v, want nil", err)
	}
	w, err := f.CreateWritable(ctx, nil)
	if err != nil {
		t.Fatalf("CreateWritable: got error %v, want nil", err)
	}
	if _, err := w.Write(ctx, []byte("123")); err != nil {
		t.Fatalf("Write: got error %v, want nil", err)
	}
	if err := w.Close(ctx); err != nil {
		t.Fatalf("Close: got error %v, want nil", err)
	}

	got, err := Snapshot(ctx, root)
	if err != nil {
		t.Fatalf("Snapshot: got error %v, want nil", err)
	}
	want := []string{"a directory", "a/f.bin file 3"}
	if len(got) != len(want) {
		t.Fatalf("Snapshot = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Snapshot[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// The reference must agree with itself, which pins the snapshot format and
// the script helpers.
func TestMatchesReferenceSelf(t *testing.T) {
	TestMatchesReference(t, func(_ *testing.T) wwwfs.Directory {
		return memfs.New()
	})
}
