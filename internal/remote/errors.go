package remote

import (
	"errors"

	"github.com/containerd/errdefs"
)

// kindError is a classified failure. It unwraps to the errdefs class so callers
// outside this module can still rely on errdefs.IsNotFound and friends.
type kindError struct {
	kind  string
	msg   string
	class error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.class }

// Error taxonomy shared by the remote boundary, the resource operations and the cache.
var (
	ErrInvalidArgument    error = &kindError{kind: "InvalidArgument", msg: "invalid argument", class: errdefs.ErrInvalidArgument}
	ErrIdentityConflict   error = &kindError{kind: "IdentityConflict", msg: "identity already exists", class: errdefs.ErrAlreadyExists}
	ErrInvalidCredentials error = &kindError{kind: "InvalidCredentials", msg: "invalid credentials", class: errdefs.ErrUnauthenticated}
	ErrNoSession          error = &kindError{kind: "NoSession", msg: "no active session", class: errdefs.ErrUnauthenticated}
	ErrUpload             error = &kindError{kind: "UploadError", msg: "upload failed", class: errdefs.ErrUnavailable}
	ErrPersistence        error = &kindError{kind: "PersistenceError", msg: "persistence failed", class: errdefs.ErrInternal}
	ErrNotFound           error = &kindError{kind: "NotFound", msg: "not found", class: errdefs.ErrNotFound}
	ErrNetwork            error = &kindError{kind: "NetworkError", msg: "network error", class: errdefs.ErrUnavailable}
)

var taxonomy = []error{
	ErrInvalidArgument,
	ErrIdentityConflict,
	ErrInvalidCredentials,
	ErrNoSession,
	ErrUpload,
	ErrPersistence,
	ErrNotFound,
	ErrNetwork,
}

// KindOf returns the taxonomy name of err ("NotFound", "UploadError", ...).
// Unclassified errors report "Unknown"; nil reports "".
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range taxonomy {
		if errors.Is(err, k) {
			return k.(*kindError).kind
		}
	}
	return "Unknown"
}

// IsClassified reports whether err carries one of the taxonomy kinds.
func IsClassified(err error) bool {
	k := KindOf(err)
	return k != "" && k != "Unknown"
}
