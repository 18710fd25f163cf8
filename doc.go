// Package wwwfs defines a portable virtual-filesystem contract that lets a
// single code path perform hierarchical file and directory operations
// identically across an in-memory tree, the native filesystem, the browser's
// origin-private storage, and object storage.
//
// The package itself contains only the capability contracts (Directory,
// File, WritableFileStream), their option structs, and the shared error
// taxonomy. Concrete backends live in subpackages:
//
//   - memfs: in-memory tree, no I/O; the conformance reference used by tests
//   - osfs: native filesystem, delegating to go-billy's chroot OS filesystem
//   - webfs: Origin Private File System (js/wasm builds only)
//   - miniofs: MinIO/S3 object storage
//
// Application code is written once against the contracts. The persistent
// subpackage selects osfs or webfs at build time and provides AppDir, the
// platform root-acquisition entry point, so callers never name a backend.
//
// Every operation that can touch storage takes a context.Context and returns
// an explicit error. All failures surface as the package's error taxonomy
// (ErrNotFound, ErrExists, ...) wrapped with operation context; backend
// native errors never escape. See the errors documentation in this package.
package wwwfs
