// Package instance maintains the module and open-instance feed that is
// replicated to every participant through the shared container.
//
// The registry never keeps a private copy of the lists: it mutates the
// shared container's Modules and OpenInstances collections directly, which
// the shared engine observes and replicates.
package instance

import (
	"strings"
	"unicode"

	"github.com/roach88/starcore/internal/ir"
)

// ModuleOption adjusts a module declaration.
type ModuleOption func(*ir.ModuleData)

// WithName overrides the display name derived from the module id.
func WithName(name string) ModuleOption {
	return func(m *ir.ModuleData) { m.Name = name }
}

// WithDescription sets the module description.
func WithDescription(desc string) ModuleOption {
	return func(m *ir.ModuleData) { m.Description = desc }
}

// HiddenOnClient keeps the module out of participants' module lists.
func HiddenOnClient() ModuleOption {
	return func(m *ir.ModuleData) { m.ShowOnClient = false }
}

// ServerOpenOnly refuses open commands from participants.
func ServerOpenOnly() ModuleOption {
	return func(m *ir.ModuleData) { m.CanClientOpen = false }
}

// Quiet disables the notification broadcast when an instance opens.
func Quiet() ModuleOption {
	return func(m *ir.ModuleData) { m.NotifyOnOpen = false }
}

// Declare builds module metadata. The name defaults to the id split at
// upper-case letters ("TestProtocol" -> "Test Protocol"); show-on-client,
// can-client-open and notify-on-open default to true.
func Declare(module string, typ ir.ModuleType, opts ...ModuleOption) ir.ModuleData {
	m := ir.ModuleData{
		Module:        module,
		ModuleType:    typ,
		Name:          SplitWords(module),
		ShowOnClient:  true,
		CanClientOpen: true,
		NotifyOnOpen:  true,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// SplitWords inserts a space before every upper-case letter except the
// first rune.
func SplitWords(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}
