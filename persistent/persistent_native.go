//go:build !js

package persistent

import (
	"context"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/hydroperx/wwwfs"
	"github.com/hydroperx/wwwfs/osfs"
)

// Concrete backend types for this build target.
type (
	Directory = osfs.Directory
	File      = osfs.File
	Stream    = osfs.Stream
)

// AppDir returns the root directory for app's private data, creating it if
// absent. On native platforms this is the XDG data directory
// (e.g. ~/.local/share/<app> on Linux).
func AppDir(ctx context.Context, app string) (*Directory, error) {
	if err := wwwfs.ValidateName(app); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return osfs.New(filepath.Join(xdg.DataHome, app))
}
