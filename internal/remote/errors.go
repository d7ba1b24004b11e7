package remote

import (
	"errors"
	"fmt"

	"github.com/roach88/shopstate/internal/metrics"
	"github.com/roach88/shopstate/internal/model"
)

// Operation names used in errors and metrics.
const (
	OpList   = "list"
	OpInsert = "insert"
	OpDelete = "delete"
)

// ErrNoIdentity is returned when an operation is attempted without an
// identity. Remote data is only reachable once signed in.
var ErrNoIdentity = errors.New("no identity")

// Error is a failed remote operation: transport, authorisation or storage.
type Error struct {
	// Op is one of OpList, OpInsert, OpDelete.
	Op string

	// Identity is the account the operation was scoped to.
	Identity model.Identity

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Identity.Present() {
		return fmt.Sprintf("remote %s (identity=%s): %v", e.Op, e.Identity, e.Err)
	}
	return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsError returns true if err is or wraps a remote *Error.
func IsError(err error) bool {
	var re *Error
	return errors.As(err, &re)
}

// fail records the failure and wraps it.
func fail(op string, id model.Identity, err error) error {
	metrics.RecordRemoteFailure(op)
	return &Error{Op: op, Identity: id, Err: err}
}
