package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/schema"
)

// Validation error codes (E100-E199)
const (
	ErrGeneric        = "E100" // unclassified problem
	ErrContainerType  = "E101" // missing or already registered container type
	ErrNoProperties   = "E102" // at least one property required
	ErrPropertyName   = "E103" // property name missing
	ErrInvalidKind    = "E104" // kind is not value or collection
	ErrDuplicateName  = "E105" // duplicate property name
	ErrUnknownElement = "E106" // element id missing or not registered
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks s against reg: the structural rules of ir.ContainerSchema,
// every element id resolvable in reg, and a container type reg does not
// already hold. A nil reg means schema.Builtin(). Returns all errors found.
func Validate(s *ir.ContainerSchema, reg *schema.Registry) []ValidationError {
	if reg == nil {
		reg = schema.Builtin()
	}

	var errs []ValidationError
	for _, e := range s.Validate() {
		errs = append(errs, ValidationError{
			Field:   e.Field,
			Message: e.Message,
			Code:    codeForField(e.Field, e.Message),
		})
	}

	if s.Type != "" {
		if _, exists := reg.Lookup(s.Type); exists {
			errs = append(errs, ValidationError{
				Field:   "type",
				Message: fmt.Sprintf("container type %q already registered", s.Type),
				Code:    ErrContainerType,
			})
		}
	}

	for i, p := range s.Properties {
		if p.Element == "" {
			continue
		}
		if _, ok := reg.Element(p.Element); !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("properties[%d].element", i),
				Message: fmt.Sprintf("unknown element type %q", p.Element),
				Code:    ErrUnknownElement,
			})
		}
	}

	return errs
}

// Register validates each schema and adds it to reg, stopping at the first
// invalid one.
func Register(reg *schema.Registry, schemas []ir.ContainerSchema) error {
	for i := range schemas {
		s := &schemas[i]
		if errs := Validate(s, reg); len(errs) > 0 {
			return fmt.Errorf("container %s: %w", s.Type, errs[0])
		}
		if err := reg.Register(*s); err != nil {
			return err
		}
	}
	return nil
}

// codeForField maps a field path from ir or CompileError to an error code.
func codeForField(field, message string) string {
	switch {
	case field == "type":
		return ErrContainerType
	case field == "properties":
		return ErrNoProperties
	case strings.HasSuffix(field, ".name"):
		if strings.HasPrefix(message, "duplicate") {
			return ErrDuplicateName
		}
		return ErrPropertyName
	case strings.HasSuffix(field, ".kind"):
		return ErrInvalidKind
	case strings.HasSuffix(field, ".element"):
		return ErrUnknownElement
	default:
		return ErrGeneric
	}
}
