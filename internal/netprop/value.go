package netprop

import "github.com/roach88/starcore/internal/ir"

// Property is the kind-tagged capability shared by all wrappers.
type Property interface {
	Kind() ir.PropertyKind
	// Suppress silences notifications until the returned release is called.
	Suppress() (release func())
	Suppressed() bool
}

// Value is the untyped view of a NetworkValue used by containers and engines.
type Value interface {
	Property
	Load() any
	// Store assigns v through the notifying setter. Returns *TypeError when v
	// is not of the declared element type.
	Store(v any) error
	Watch(fn func(v any)) (cancel func())
}

// NetworkValue is a replicated scalar.
type NetworkValue[T any] struct {
	value    T
	watchers listeners[func(T)]
	guard    guard
}

// NewValue creates a NetworkValue holding initial. No notification fires.
func NewValue[T any](initial T) *NetworkValue[T] {
	return &NetworkValue[T]{value: initial}
}

// Get returns the current value.
func (v *NetworkValue[T]) Get() T {
	return v.value
}

// Set stores x and then notifies every subscriber with x, unconditionally.
func (v *NetworkValue[T]) Set(x T) {
	v.value = x
	if v.guard.active {
		return
	}
	for _, fn := range v.watchers.snapshot() {
		fn(x)
	}
}

// Subscribe registers fn for change notifications.
func (v *NetworkValue[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	return v.watchers.add(fn)
}

// Kind implements Property.
func (v *NetworkValue[T]) Kind() ir.PropertyKind { return ir.KindValue }

// Suppress implements Property.
func (v *NetworkValue[T]) Suppress() func() { return v.guard.acquire() }

// Suppressed implements Property.
func (v *NetworkValue[T]) Suppressed() bool { return v.guard.active }

// Load implements Value.
func (v *NetworkValue[T]) Load() any { return v.value }

// Store implements Value.
func (v *NetworkValue[T]) Store(x any) error {
	typed, ok := x.(T)
	if !ok {
		return typeErrorFor[T](x)
	}
	v.Set(typed)
	return nil
}

// Watch implements Value.
func (v *NetworkValue[T]) Watch(fn func(any)) func() {
	return v.watchers.add(func(x T) { fn(x) })
}

// Subscribers reports how many listeners are attached.
func (v *NetworkValue[T]) Subscribers() int {
	return v.watchers.len()
}
