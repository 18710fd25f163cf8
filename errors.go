package wwwfs

import (
	"errors"
	"fmt"
)

// The closed error taxonomy shared by every backend. Capability methods fail
// with exactly one of these kinds, matched via errors.Is; backend-native
// error values never escape a backend package.
var (
	// ErrNotFound is returned when an entry does not exist and create was
	// not requested.
	ErrNotFound = errors.New("entry not found")

	// ErrExists is returned when exclusive creation is requested but the
	// entry already exists.
	ErrExists = errors.New("entry already exists")

	// ErrNotDirectory is returned when a directory capability is requested
	// for a name bound to a file.
	ErrNotDirectory = errors.New("not a directory")

	// ErrNotFile is returned when a file capability is requested for a
	// name bound to a directory.
	ErrNotFile = errors.New("not a file")

	// ErrInvalidName is returned for names violating path-separator or
	// reserved-component constraints.
	ErrInvalidName = errors.New("invalid name")

	// ErrPermission is returned when the underlying storage refused the
	// operation (sandbox, quota, OS permission).
	ErrPermission = errors.New("permission denied")

	// ErrIO is returned for otherwise unclassified lower-level failures.
	ErrIO = errors.New("i/o failure")

	// ErrInvalidState is returned for operations on a closed or aborted
	// stream, a second concurrent writable opener, or a non-empty
	// directory removal without the recursive flag.
	ErrInvalidState = errors.New("invalid state")
)

// OpError records a failed operation, the entry name it targeted, and the
// taxonomy kind (plus any backend detail) underneath it.
//
// The taxonomy sentinel is reachable through errors.Is:
//
//	if errors.Is(err, wwwfs.ErrNotFound) { ... }
type OpError struct {
	// Op names the capability operation, e.g. "open", "remove", "write".
	Op string
	// Name is the entry name or path the operation targeted.
	Name string
	// Err is the underlying error; its chain contains a taxonomy sentinel.
	Err error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("wwwfs: %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
