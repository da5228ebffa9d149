package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/starcore/internal/action"
	"github.com/roach88/starcore/internal/container"
	"github.com/roach88/starcore/internal/netprop"
)

// ReplicationError reports an inbound action that could not be applied.
//
// It is fatal to that one action only and the engine keeps accepting
// actions. The container is left as it was, except for a Partial Post.
type ReplicationError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Container is the container type the action targeted.
	Container string

	// Property is the target property, if any.
	Property string

	// Kind is the action kind, if known.
	Kind action.Kind

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause.
	Err error

	// Partial is set when a Post was applied apart from its skipped entries.
	Partial bool
}

// ErrorCode categorizes replication errors.
type ErrorCode string

const (
	// ErrCodeSchema covers unknown property names and type or kind mismatches.
	ErrCodeSchema ErrorCode = "SCHEMA_ERROR"

	// ErrCodeIndex covers out-of-range collection indices.
	ErrCodeIndex ErrorCode = "INDEX_ERROR"

	// ErrCodeDecode covers envelope payloads that do not fit their kind's shape.
	ErrCodeDecode ErrorCode = "DECODE_ERROR"
)

// Error implements the error interface.
func (e *ReplicationError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("%s: %s (container=%s, kind=%s, property=%s)", e.Code, e.Message, e.Container, e.Kind, e.Property)
	}
	return fmt.Sprintf("%s: %s (container=%s, kind=%s)", e.Code, e.Message, e.Container, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *ReplicationError) Unwrap() error { return e.Err }

// IsSchemaError returns true if err is a SCHEMA_ERROR ReplicationError.
func IsSchemaError(err error) bool { return hasCode(err, ErrCodeSchema) }

// IsIndexError returns true if err is an INDEX_ERROR ReplicationError.
func IsIndexError(err error) bool { return hasCode(err, ErrCodeIndex) }

// IsDecodeError returns true if err is a DECODE_ERROR ReplicationError.
func IsDecodeError(err error) bool { return hasCode(err, ErrCodeDecode) }

// IsPartial returns true if err reports a Post that was applied apart from
// some skipped entries. The container changed, so peers need a resync.
func IsPartial(err error) bool {
	var re *ReplicationError
	return errors.As(err, &re) && re.Partial
}

func hasCode(err error, code ErrorCode) bool {
	var re *ReplicationError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// CodeOf returns the code of a ReplicationError in err's chain, or the code
// a lower-layer error would be reported under.
func CodeOf(err error) ErrorCode {
	var re *ReplicationError
	if errors.As(err, &re) {
		return re.Code
	}
	return classify(err)
}

// classify maps a lower-layer error onto a replication error code.
func classify(err error) ErrorCode {
	var (
		idxErr   *netprop.IndexError
		typeErr  *netprop.TypeError
		schErr   *action.SchemaError
		decErr   *action.DecodeError
		entryErr *container.EntryError
	)
	switch {
	case errors.As(err, &idxErr):
		return ErrCodeIndex
	case errors.As(err, &typeErr), errors.As(err, &schErr):
		return ErrCodeSchema
	case errors.As(err, &decErr), errors.As(err, &entryErr):
		return ErrCodeDecode
	default:
		return ErrCodeDecode
	}
}

func (e *Engine) newError(code ErrorCode, kind action.Kind, property, msg string, cause error) *ReplicationError {
	return &ReplicationError{
		Code:      code,
		Container: e.container.Type(),
		Property:  property,
		Kind:      kind,
		Message:   msg,
		Err:       cause,
	}
}

func (e *Engine) wrapError(kind action.Kind, property string, cause error) *ReplicationError {
	return e.newError(classify(cause), kind, property, cause.Error(), cause)
}
