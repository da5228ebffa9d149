package action

import (
	"errors"
	"fmt"
)

// DecodeError reports an envelope whose payload does not match the declared
// field shape of its kind.
type DecodeError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("decode %s: %s", e.Kind, e.Message)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// SchemaError reports an action naming a property the container does not
// declare, or one of the wrong kind.
type SchemaError struct {
	Property string
	Message  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("property %s: %s", e.Property, e.Message)
}

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsSchemaError reports whether err is or wraps a *SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
