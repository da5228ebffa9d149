// Package compiler turns CUE container declarations into ir.ContainerSchema
// values that a schema.Registry can bind.
//
// A declaration lives under the top-level container struct:
//
//	container: Scoreboard: {
//		properties: [
//			{name: "Title", kind: "value", element: "string"},
//			{name: "Scores", kind: "collection", element: "int"},
//		]
//	}
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/starcore/internal/ir"
)

// CompileContainer parses one container struct into a ContainerSchema.
//
// The value should be the struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`container: Scoreboard: { ... }`)
//	s, err := CompileContainer(v.LookupPath(cue.ParsePath("container.Scoreboard")))
//
// Kinds and element ids are not checked here; see Validate.
func CompileContainer(v cue.Value) (*ir.ContainerSchema, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	s := &ir.ContainerSchema{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		s.Type = labels[len(labels)-1].String()
	}

	propsVal := v.LookupPath(cue.ParsePath("properties"))
	if !propsVal.Exists() {
		return nil, &CompileError{
			Field:   "properties",
			Message: "properties is required",
			Pos:     v.Pos(),
		}
	}
	if propsVal.Kind() != cue.ListKind {
		return nil, &CompileError{
			Field:   "properties",
			Message: "properties must be a list",
			Pos:     propsVal.Pos(),
		}
	}

	iter, err := propsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		p, err := parseProperty(iter.Value(), i)
		if err != nil {
			return nil, err
		}
		s.Properties = append(s.Properties, p)
	}

	return s, nil
}

func parseProperty(v cue.Value, i int) (ir.PropertySchema, error) {
	var p ir.PropertySchema

	name, err := requiredString(v, "name", i)
	if err != nil {
		return p, err
	}
	kind, err := requiredString(v, "kind", i)
	if err != nil {
		return p, err
	}
	element, err := requiredString(v, "element", i)
	if err != nil {
		return p, err
	}

	p.Name = name
	p.Kind = ir.PropertyKind(kind)
	p.Element = element
	return p, nil
}

func requiredString(v cue.Value, field string, i int) (string, error) {
	path := fmt.Sprintf("properties[%d].%s", i, field)
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   path,
			Message: field + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", &CompileError{
			Field:   path,
			Message: field + " must be a string",
			Pos:     fv.Pos(),
		}
	}
	return s, nil
}

// CompileError is a compile failure with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
