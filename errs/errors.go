// Package errs declares the sentinel and structured errors shared across
// docdb.
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrAbsent is returned by a data-getter when the requested item does
	// not exist. Plain value reads return the zero value instead; only
	// operations that require data surface this error.
	ErrAbsent = errors.New("docdb: item is absent")

	// ErrInvalidArgument marks a malformed argument, such as a negative
	// limit passed to a descriptor builder (a limit of zero is valid).
	// Filter operators are not checked: a filter whose Op is not one of
	// the defined operators is accepted and matches no record.
	ErrInvalidArgument = errors.New("docdb: invalid argument")

	// ErrClosed identifies a closed State, Database or provider. No
	// operation in this module returns it: calls on a closed value are
	// silent no-ops.
	ErrClosed = errors.New("docdb: closed")

	// ErrNoLastView identifies a query listener that has never
	// evaluated. No operation in this module returns it: the memory
	// provider evaluates a query when its first listener registers.
	ErrNoLastView = errors.New("docdb: no cached view")
)

// DescriptorError describes a malformed query descriptor, naming the
// field and operator that caused the rejection.
type DescriptorError struct {
	Op    string
	Field string
	Msg   string
}

// Error implements the error interface.
func (e *DescriptorError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("docdb: invalid filter %s(%s): %s", e.Op, e.Field, e.Msg)
	}
	return fmt.Sprintf("docdb: invalid %s: %s", e.Op, e.Msg)
}

// Is reports whether target is ErrInvalidArgument, so callers can match
// with errors.Is without depending on the concrete type.
func (e *DescriptorError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// Unwrap returns the underlying sentinel error.
func (e *DescriptorError) Unwrap() error {
	return ErrInvalidArgument
}

// NewDescriptorError creates a DescriptorError for the given operator.
func NewDescriptorError(op, field, msg string) *DescriptorError {
	return &DescriptorError{Op: op, Field: field, Msg: msg}
}
