package migration

import (
	"errors"
	"fmt"

	"github.com/roach88/shopstate/internal/model"
)

// Error is a migration that did not complete.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Aggregate is the coordinator name, e.g. "cart".
	Aggregate string

	// Identity is the account being migrated into.
	Identity model.Identity

	// Session is the session token of the attempt.
	Session string

	// Attempt counts attempts within the session, starting at 1.
	Attempt int

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes migration errors.
type ErrorCode string

const (
	// ErrCodeMergeFailed indicates the target rejected or failed the merge.
	// Local data was kept and the flag was not set.
	ErrCodeMergeFailed ErrorCode = "MERGE_FAILED"

	// ErrCodeLocalRead indicates the local collection could not be read.
	// Nothing was merged and the flag was not set.
	ErrCodeLocalRead ErrorCode = "LOCAL_READ_FAILED"

	// ErrCodeNotIdentified indicates Retry was called without an identity.
	ErrCodeNotIdentified ErrorCode = "NOT_IDENTIFIED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Session != "" {
		return fmt.Sprintf("%s: %s migration (identity=%s, session=%s, attempt=%d): %v",
			e.Code, e.Aggregate, e.Identity, e.Session, e.Attempt, e.Err)
	}
	return fmt.Sprintf("%s: %s migration: %v", e.Code, e.Aggregate, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsMergeError returns true if err is a failed merge.
// Uses errors.As to handle wrapped errors.
func IsMergeError(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == ErrCodeMergeFailed
	}
	return false
}

// IsNotIdentifiedError returns true if err is a retry without identity.
func IsNotIdentifiedError(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == ErrCodeNotIdentified
	}
	return false
}

// IsLocalReadError returns true if err is a migration that could not read
// the local collection.
func IsLocalReadError(err error) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Code == ErrCodeLocalRead
	}
	return false
}
