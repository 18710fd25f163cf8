// Package persistent resolves the persistent wwwfs backend for the build
// target: osfs on native platforms, webfs on js/wasm. The choice is made at
// compile time through build constraints, so application code imports this
// package once and never branches on platform.
//
// AppDir is the root-acquisition entry point: it opens (creating if needed)
// the application's private storage root and returns its Directory handle.
package persistent
