package types

import "fmt"

// UserError means a coordinate, dimension or measure referenced by user
// input does not exist. Load and dice surface it to the caller; the
// session continues (§7).
type UserError struct {
	Msg string
}

func (e *UserError) Error() string { return e.Msg }

func NewUserError(format string, args ...interface{}) *UserError {
	return &UserError{Msg: fmt.Sprintf(format, args...)}
}

// UnknownCoordinateError is the specific UserError raised by write
// operations that require an existing coordinate (§4.1 Failure semantics).
type UnknownCoordinateError struct {
	Dimension string
	Coord     Coordinate
}

func (e *UnknownCoordinateError) Error() string {
	return fmt.Sprintf("%q on dimension %q is unknown", formatCoord(e.Coord), e.Dimension)
}

func formatCoord(c Coordinate) string {
	s := ""
	for i, a := range c {
		if i > 0 {
			s += "/"
		}
		s += a.String()
	}
	return s
}

// SchemaError means a metaclass-time / schema-construction violation: more
// than one Version dimension per space, an unsupported scalar type, or a
// select item of unknown kind. Fatal for the session that built it (§7).
type SchemaError struct {
	Msg string
}

func (e *SchemaError) Error() string { return e.Msg }

func NewSchemaError(format string, args ...interface{}) *SchemaError {
	return &SchemaError{Msg: fmt.Sprintf(format, args...)}
}

// BackendError wraps a storage-layer failure (constraint violation, I/O).
// Aborts the current operation; the session-level catcher rolls back (§7).
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string { return fmt.Sprintf("backend: %s: %v", e.Op, e.Err) }
func (e *BackendError) Unwrap() error { return e.Err }

func NewBackendError(op string, err error) *BackendError {
	return &BackendError{Op: op, Err: err}
}

// InvariantError signals an internal inconsistency (e.g. a broken closure
// table) detected by the store itself. Fatal; triggers rollback (§7, §8).
type InvariantError struct {
	Msg string
}

func (e *InvariantError) Error() string { return "invariant violated: " + e.Msg }

func NewInvariantError(format string, args ...interface{}) *InvariantError {
	return &InvariantError{Msg: fmt.Sprintf(format, args...)}
}
