// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/roach88/starcore/internal/container"
	"github.com/roach88/starcore/internal/schema"
)

// Layout returns the built-in layout of containerType, failing the test if
// there is none.
func Layout(t testing.TB, containerType string) *schema.Layout {
	t.Helper()
	layout, ok := schema.Builtin().Lookup(containerType)
	if !ok {
		t.Fatalf("no built-in container %q", containerType)
	}
	return layout
}

// Shared returns an empty ReplicatedContainer.
func Shared(t testing.TB) *container.Container {
	t.Helper()
	return container.New(Layout(t, schema.ReplicatedContainer))
}

// Private returns an empty ClientContainer.
func Private(t testing.TB) *container.Container {
	t.Helper()
	return container.New(Layout(t, schema.ClientContainer))
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
