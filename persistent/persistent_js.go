//go:build js && wasm

package persistent

import (
	"context"

	"github.com/hydroperx/wwwfs"
	"github.com/hydroperx/wwwfs/webfs"
)

// Concrete backend types for this build target.
type (
	Directory = webfs.Directory
	File      = webfs.File
	Stream    = webfs.Stream
)

// AppDir returns the root directory for app's private data, creating it if
// absent. On js/wasm this is a subdirectory of the origin-private storage
// root, which is already scoped to the page's origin.
func AppDir(ctx context.Context, app string) (*Directory, error) {
	if err := wwwfs.ValidateName(app); err != nil {
		return nil, err
	}
	root, err := webfs.Root(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := root.GetDirectoryHandle(ctx, app, &wwwfs.GetDirectoryHandleOptions{Create: true})
	if err != nil {
		return nil, err
	}
	return dir.(*webfs.Directory), nil
}
