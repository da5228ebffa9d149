package netprop

import "fmt"

// IndexError reports a collection mutation addressed outside the sequence.
// Len is the collection length at the time of the call. Insert accepts
// index == Len; every other operation requires index < Len.
type IndexError struct {
	Op    string
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	if e.Op == "insert" {
		return fmt.Sprintf("%s: index %d out of range [0,%d]", e.Op, e.Index, e.Len)
	}
	return fmt.Sprintf("%s: index %d out of range [0,%d)", e.Op, e.Index, e.Len)
}

// TypeError reports a value whose dynamic type does not match the
// property's declared element type.
type TypeError struct {
	Want string
	Got  string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type mismatch: want %s, got %s", e.Want, e.Got)
}

func typeErrorFor[T any](got any) *TypeError {
	var zero T
	return &TypeError{Want: fmt.Sprintf("%T", zero), Got: fmt.Sprintf("%T", got)}
}
