package ir

import "fmt"

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a ContainerSchema against the schema rules.
// Returns all errors (not fail-fast).
func (s *ContainerSchema) Validate() []ValidationError {
	var errs []ValidationError

	if s.Type == "" {
		errs = append(errs, ValidationError{
			Field:   "type",
			Message: "container type is required",
		})
	}

	if len(s.Properties) == 0 {
		errs = append(errs, ValidationError{
			Field:   "properties",
			Message: "at least one property is required",
		})
	}

	seen := make(map[string]bool, len(s.Properties))
	for i, p := range s.Properties {
		if p.Name == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("properties[%d].name", i),
				Message: "property name is required",
			})
		} else if seen[p.Name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("properties[%d].name", i),
				Message: fmt.Sprintf("duplicate property name: %q", p.Name),
			})
		}
		seen[p.Name] = true

		if !ValidKinds[p.Kind] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("properties[%d].kind", i),
				Message: fmt.Sprintf("invalid kind %q, must be one of: value, collection", p.Kind),
			})
		}

		if p.Element == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("properties[%d].element", i),
				Message: "element type is required",
			})
		}
	}

	return errs
}
