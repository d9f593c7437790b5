// Package eloquent provides the error taxonomy shared by the query
// construction and execution layer.
package eloquent

import (
	"errors"
	"fmt"
)

// Machine-readable error codes carried by ValidationError.
const (
	CodeInvalidIdentifier    = "INVALID_IDENTIFIER"
	CodeInvalidSortDirection = "INVALID_SORT_DIRECTION"
	CodeInvalidLimit         = "INVALID_LIMIT"
	CodeInvalidOffset        = "INVALID_OFFSET"
	CodeInvalidOperator      = "INVALID_OPERATOR"
	CodeInvalidClause        = "INVALID_CLAUSE"
)

// Standard sentinel errors for common failures.
var (
	// ErrInvalidIdentifier is returned when an identifier fails sanitization.
	ErrInvalidIdentifier = errors.New("eloquent: invalid identifier")

	// ErrInvalidSortDirection is returned for sort directions other than ASC/DESC.
	ErrInvalidSortDirection = errors.New("eloquent: invalid sort direction")

	// ErrInvalidLimit is returned for negative or out-of-range LIMIT values.
	ErrInvalidLimit = errors.New("eloquent: invalid limit")

	// ErrInvalidOffset is returned for negative or out-of-range OFFSET values.
	ErrInvalidOffset = errors.New("eloquent: invalid offset")

	// ErrInvalidOperator is returned for comparison operators outside the
	// whitelist.
	ErrInvalidOperator = errors.New("eloquent: invalid operator")

	// ErrInvalidClause is returned for a malformed where clause, such as a
	// between clause without exactly two values.
	ErrInvalidClause = errors.New("eloquent: invalid clause")

	// ErrUnknownEntityType is returned when an entity type name is not
	// registered.
	ErrUnknownEntityType = errors.New("eloquent: unknown entity type")

	// ErrUnknownConnection is returned when a connection name is not registered.
	ErrUnknownConnection = errors.New("eloquent: unknown connection")

	// ErrUnknownRelation is returned when a relation name is not registered
	// on the parent entity type.
	ErrUnknownRelation = errors.New("eloquent: unknown relation")

	// ErrPoolDrained is returned to pending acquirers when the pool is drained.
	ErrPoolDrained = errors.New("eloquent: pool drained")
)

// ValidationError reports a caller defect detected before any SQL is emitted.
// It is never retried.
type ValidationError struct {
	Code       string // one of the Code* constants
	Identifier string // the offending identifier or direction, if any
	Value      int    // the offending limit/offset value, if any
	Max        int    // the bound that was exceeded, if any
	Reason     string // human-readable detail, not for control flow
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	switch e.Code {
	case CodeInvalidLimit, CodeInvalidOffset:
		return fmt.Sprintf("eloquent: %s: %d (%s)", e.Code, e.Value, e.Reason)
	default:
		return fmt.Sprintf("eloquent: %s: %q (%s)", e.Code, e.Identifier, e.Reason)
	}
}

// Is maps the error code back to its sentinel so callers can use errors.Is.
func (e *ValidationError) Is(err error) bool {
	switch e.Code {
	case CodeInvalidIdentifier:
		return err == ErrInvalidIdentifier
	case CodeInvalidSortDirection:
		return err == ErrInvalidSortDirection
	case CodeInvalidLimit:
		return err == ErrInvalidLimit
	case CodeInvalidOffset:
		return err == ErrInvalidOffset
	case CodeInvalidOperator:
		return err == ErrInvalidOperator
	case CodeInvalidClause:
		return err == ErrInvalidClause
	}
	return false
}

// IsValidation returns true if the error is a ValidationError.
func IsValidation(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// EntityTypeError reports an entity type name that is not registered.
type EntityTypeError struct {
	Name string
}

// Error returns the error string.
func (e *EntityTypeError) Error() string {
	return fmt.Sprintf("eloquent: entity type %q is not registered", e.Name)
}

// Is reports whether the target matches ErrUnknownEntityType.
func (e *EntityTypeError) Is(err error) bool {
	return err == ErrUnknownEntityType
}

// ConnectionError reports a failure to resolve a named connection.
type ConnectionError struct {
	Name string
}

// Error returns the error string.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("eloquent: unknown connection %q", e.Name)
}

// Is reports whether the target matches ErrUnknownConnection.
func (e *ConnectionError) Is(err error) bool {
	return err == ErrUnknownConnection
}

// RelationError reports a relation name that is not registered on the
// parent entity type. It is fatal to the eager-load operation that raised it.
type RelationError struct {
	EntityType string
	Relation   string
}

// Error returns the error string.
func (e *RelationError) Error() string {
	return fmt.Sprintf("eloquent: relation %q is not defined on %s", e.Relation, e.EntityType)
}

// Is reports whether the target matches ErrUnknownRelation.
func (e *RelationError) Is(err error) bool {
	return err == ErrUnknownRelation
}
