package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by lookups that match no record.
var ErrNotFound = errors.New("store: not found")

// ErrNoCredential is returned when a new account has neither a password hash
// nor an external id. The SQL schema enforces the same rule with a CHECK.
var ErrNoCredential = errors.New("store: account needs a password hash or external id")

// Unique fields reported by ConflictError.
const (
	FieldEmail      = "email"
	FieldUsername   = "username"
	FieldExternalID = "external_id"
)

// ConflictError reports a uniqueness violation on Field.
type ConflictError struct {
	Field string
	Err   error
}

func (e *ConflictError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("store: duplicate %s: %v", e.Field, e.Err)
	}
	return "store: duplicate " + e.Field
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

// ConflictField returns the violated field when err is a ConflictError.
func ConflictField(err error) (string, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict.Field, true
	}
	return "", false
}
