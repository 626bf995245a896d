package msread

import (
	"errors"
	"fmt"
)

// SchemaError signals that metadata required to interpret a multiscale
// hierarchy was absent, malformed, or internally inconsistent.  It is a
// permanent failure for that hierarchy/group combination.
type SchemaError struct {
	msg string
}

func (e *SchemaError) Error() string {
	return e.msg
}

// SchemaErrorf formats its arguments analogous to fmt.Sprintf and returns
// a *SchemaError.
func SchemaErrorf(format string, args ...interface{}) error {
	return &SchemaError{msg: fmt.Sprintf(format, args...)}
}

// ValueError signals invalid numeric input, e.g., a non-positive extent
// passed to the coordinate builder.
type ValueError struct {
	msg string
}

func (e *ValueError) Error() string {
	return e.msg
}

// ValueErrorf formats its arguments analogous to fmt.Sprintf and returns
// a *ValueError.
func ValueErrorf(format string, args ...interface{}) error {
	return &ValueError{msg: fmt.Sprintf(format, args...)}
}

// IsSchemaError returns true if err is or wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsValueError returns true if err is or wraps a *ValueError.
func IsValueError(err error) bool {
	var ve *ValueError
	return errors.As(err, &ve)
}
