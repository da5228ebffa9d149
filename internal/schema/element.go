// Package schema holds the statically declared element types and container
// schemas that the container, action and engine packages resolve against.
package schema

import (
	"fmt"

	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/netprop"
)

// ElementType converts one Go element type to and from the wire literal tree
// and builds typed property wrappers for it.
type ElementType interface {
	ID() string
	Encode(v any) (ir.IRValue, error)
	Decode(v ir.IRValue) (any, error)
	NewValue() netprop.Value
	NewCollection() netprop.Collection
}

// ElementError reports a wire value that does not fit an element type.
type ElementError struct {
	Element string
	Message string
}

func (e *ElementError) Error() string {
	return fmt.Sprintf("element %s: %s", e.Element, e.Message)
}

type element[T any] struct {
	id     string
	encode func(T) ir.IRValue
	decode func(ir.IRValue) (T, error)
}

// Element declares an element type from a typed codec pair.
func Element[T any](id string, encode func(T) ir.IRValue, decode func(ir.IRValue) (T, error)) ElementType {
	return &element[T]{id: id, encode: encode, decode: decode}
}

func (e *element[T]) ID() string { return e.id }

func (e *element[T]) Encode(v any) (ir.IRValue, error) {
	typed, ok := v.(T)
	if !ok {
		var zero T
		return nil, &ElementError{Element: e.id, Message: fmt.Sprintf("cannot encode %T as %T", v, zero)}
	}
	return e.encode(typed), nil
}

func (e *element[T]) Decode(v ir.IRValue) (any, error) {
	typed, err := e.decode(v)
	if err != nil {
		return nil, err
	}
	return typed, nil
}

func (e *element[T]) NewValue() netprop.Value {
	var zero T
	return netprop.NewValue(zero)
}

func (e *element[T]) NewCollection() netprop.Collection {
	return netprop.NewCollection[T]()
}

func mismatch(id, want string, got ir.IRValue) *ElementError {
	return &ElementError{Element: id, Message: fmt.Sprintf("expected %s, got %s", want, ir.TypeName(got))}
}

// String is the built-in "string" element type.
var String = Element("string",
	func(s string) ir.IRValue { return ir.IRString(s) },
	func(v ir.IRValue) (string, error) {
		s, ok := v.(ir.IRString)
		if !ok {
			return "", mismatch("string", "string", v)
		}
		return string(s), nil
	})

// Int is the built-in "int" element type, carried as int64.
var Int = Element("int",
	func(n int64) ir.IRValue { return ir.IRInt(n) },
	func(v ir.IRValue) (int64, error) {
		n, ok := v.(ir.IRInt)
		if !ok {
			return 0, mismatch("int", "int", v)
		}
		return int64(n), nil
	})

// Bool is the built-in "bool" element type.
var Bool = Element("bool",
	func(b bool) ir.IRValue { return ir.IRBool(b) },
	func(v ir.IRValue) (bool, error) {
		b, ok := v.(ir.IRBool)
		if !ok {
			return false, mismatch("bool", "bool", v)
		}
		return bool(b), nil
	})

// Instance is the built-in "instance" element type (ir.InstanceData).
var Instance = Element("instance", encodeInstance, decodeInstance)

// Module is the built-in "module" element type (ir.ModuleData).
var Module = Element("module", encodeModule, decodeModule)

func encodeInstance(d ir.InstanceData) ir.IRValue {
	return ir.IRObject{
		"module":           ir.IRString(d.Module),
		"instance_id":      ir.IRString(d.InstanceID),
		"title":            ir.IRString(d.Title),
		"can_client_close": ir.IRBool(d.CanClientClose),
	}
}

func decodeInstance(v ir.IRValue) (ir.InstanceData, error) {
	obj, ok := v.(ir.IRObject)
	if !ok {
		return ir.InstanceData{}, mismatch("instance", "object", v)
	}
	f := fields{id: "instance", obj: obj}
	d := ir.InstanceData{
		Module:         f.str("module"),
		InstanceID:     f.str("instance_id"),
		Title:          f.str("title"),
		CanClientClose: f.boolean("can_client_close"),
	}
	return d, f.err
}

func encodeModule(d ir.ModuleData) ir.IRValue {
	return ir.IRObject{
		"module":          ir.IRString(d.Module),
		"module_type":     ir.IRString(d.ModuleType),
		"name":            ir.IRString(d.Name),
		"description":     ir.IRString(d.Description),
		"show_on_client":  ir.IRBool(d.ShowOnClient),
		"can_client_open": ir.IRBool(d.CanClientOpen),
		"notify_on_open":  ir.IRBool(d.NotifyOnOpen),
	}
}

func decodeModule(v ir.IRValue) (ir.ModuleData, error) {
	obj, ok := v.(ir.IRObject)
	if !ok {
		return ir.ModuleData{}, mismatch("module", "object", v)
	}
	f := fields{id: "module", obj: obj}
	d := ir.ModuleData{
		Module:        f.str("module"),
		ModuleType:    ir.ModuleType(f.str("module_type")),
		Name:          f.str("name"),
		Description:   f.str("description"),
		ShowOnClient:  f.boolean("show_on_client"),
		CanClientOpen: f.boolean("can_client_open"),
		NotifyOnOpen:  f.boolean("notify_on_open"),
	}
	return d, f.err
}

// fields reads typed members out of an object, keeping the first error.
type fields struct {
	id  string
	obj ir.IRObject
	err error
}

func (f *fields) str(key string) string {
	v, ok := f.obj[key]
	if !ok {
		f.fail(key, "missing")
		return ""
	}
	s, ok := v.(ir.IRString)
	if !ok {
		f.fail(key, "expected string, got "+ir.TypeName(v))
		return ""
	}
	return string(s)
}

func (f *fields) boolean(key string) bool {
	v, ok := f.obj[key]
	if !ok {
		f.fail(key, "missing")
		return false
	}
	b, ok := v.(ir.IRBool)
	if !ok {
		f.fail(key, "expected bool, got "+ir.TypeName(v))
		return false
	}
	return bool(b)
}

func (f *fields) fail(key, msg string) {
	if f.err == nil {
		f.err = &ElementError{Element: f.id, Message: fmt.Sprintf("field %q: %s", key, msg)}
	}
}
