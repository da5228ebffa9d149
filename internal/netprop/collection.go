package netprop

import "github.com/roach88/starcore/internal/ir"

// ChangeKind names the structural operation a Change describes.
type ChangeKind string

const (
	ChangeAdd     ChangeKind = "add"
	ChangeRemove  ChangeKind = "remove"
	ChangeReplace ChangeKind = "replace"
	ChangeMove    ChangeKind = "move"
	ChangeReset   ChangeKind = "reset"
)

// Change is the notification a NetworkCollection emits for one operation.
//
//	add:     NewIndex, NewItems (in insertion order)
//	remove:  OldIndex, OldItems
//	replace: OldIndex == NewIndex, OldItems, NewItems
//	move:    OldIndex, NewIndex, NewItems holds the moved item
//	reset:   OldItems holds the cleared contents
type Change[T any] struct {
	Kind     ChangeKind
	OldIndex int
	NewIndex int
	OldItems []T
	NewItems []T
}

// Collection is the untyped view of a NetworkCollection.
type Collection interface {
	Property
	Len() int
	Elements() []any
	InsertAt(index int, items []any) error
	RemoveAt(index int) error
	ReplaceAt(index int, item any) error
	Move(oldIndex, newIndex int) error
	Clear()
	// Restore replaces the whole contents without emitting a notification.
	// It is the snapshot-application path; local edits go through the
	// notifying operations.
	Restore(items []any) error
	Watch(fn func(Change[any])) (cancel func())
}

// NetworkCollection is a replicated ordered sequence.
type NetworkCollection[T any] struct {
	items    []T
	watchers listeners[func(Change[T])]
	guard    guard
}

// NewCollection builds a collection from items without emitting
// notifications.
func NewCollection[T any](items ...T) *NetworkCollection[T] {
	c := &NetworkCollection[T]{}
	c.items = append(c.items, items...)
	return c
}

// Len returns the number of items.
func (c *NetworkCollection[T]) Len() int { return len(c.items) }

// At returns the item at index.
func (c *NetworkCollection[T]) At(index int) (T, bool) {
	if index < 0 || index >= len(c.items) {
		var zero T
		return zero, false
	}
	return c.items[index], true
}

// Items returns a copy of the contents.
func (c *NetworkCollection[T]) Items() []T {
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// IndexOf returns the first index where match holds, or -1.
func (c *NetworkCollection[T]) IndexOf(match func(T) bool) int {
	for i, it := range c.items {
		if match(it) {
			return i
		}
	}
	return -1
}

// Insert places items at index, preserving their order, so that afterwards
// items[k] sits at index+k. index may equal Len. Inserting nothing is a no-op.
func (c *NetworkCollection[T]) Insert(index int, items ...T) error {
	if index < 0 || index > len(c.items) {
		return &IndexError{Op: "insert", Index: index, Len: len(c.items)}
	}
	if len(items) == 0 {
		return nil
	}
	added := make([]T, len(items))
	copy(added, items)

	grown := make([]T, 0, len(c.items)+len(added))
	grown = append(grown, c.items[:index]...)
	grown = append(grown, added...)
	grown = append(grown, c.items[index:]...)
	c.items = grown

	c.emit(Change[T]{Kind: ChangeAdd, OldIndex: -1, NewIndex: index, NewItems: added})
	return nil
}

// Append inserts items at the end.
func (c *NetworkCollection[T]) Append(items ...T) error {
	return c.Insert(len(c.items), items...)
}

// RemoveAt deletes the item at index.
func (c *NetworkCollection[T]) RemoveAt(index int) error {
	if err := c.checkIndex("remove", index); err != nil {
		return err
	}
	old := c.items[index]
	c.items = append(c.items[:index:index], c.items[index+1:]...)
	c.emit(Change[T]{Kind: ChangeRemove, OldIndex: index, NewIndex: -1, OldItems: []T{old}})
	return nil
}

// Replace overwrites the item at index.
func (c *NetworkCollection[T]) Replace(index int, item T) error {
	if err := c.checkIndex("replace", index); err != nil {
		return err
	}
	old := c.items[index]
	c.items[index] = item
	c.emit(Change[T]{
		Kind:     ChangeReplace,
		OldIndex: index,
		NewIndex: index,
		OldItems: []T{old},
		NewItems: []T{item},
	})
	return nil
}

// Move relocates the item at oldIndex so that it ends at newIndex. Both
// indices address the current sequence. Moving to the same index leaves the
// contents unchanged but still notifies.
func (c *NetworkCollection[T]) Move(oldIndex, newIndex int) error {
	if err := c.checkIndex("move", oldIndex); err != nil {
		return err
	}
	if err := c.checkIndex("move", newIndex); err != nil {
		return err
	}
	item := c.items[oldIndex]
	if oldIndex != newIndex {
		rest := append(c.items[:oldIndex:oldIndex], c.items[oldIndex+1:]...)
		moved := make([]T, 0, len(c.items))
		moved = append(moved, rest[:newIndex]...)
		moved = append(moved, item)
		moved = append(moved, rest[newIndex:]...)
		c.items = moved
	}
	c.emit(Change[T]{Kind: ChangeMove, OldIndex: oldIndex, NewIndex: newIndex, NewItems: []T{item}})
	return nil
}

// Clear removes every item and emits a single reset notification.
func (c *NetworkCollection[T]) Clear() {
	old := c.items
	c.items = nil
	c.emit(Change[T]{Kind: ChangeReset, OldIndex: -1, NewIndex: -1, OldItems: old})
}

// Subscribe registers fn for change notifications.
func (c *NetworkCollection[T]) Subscribe(fn func(Change[T])) (unsubscribe func()) {
	return c.watchers.add(fn)
}

// Subscribers reports how many listeners are attached.
func (c *NetworkCollection[T]) Subscribers() int {
	return c.watchers.len()
}

func (c *NetworkCollection[T]) checkIndex(op string, index int) error {
	if index < 0 || index >= len(c.items) {
		return &IndexError{Op: op, Index: index, Len: len(c.items)}
	}
	return nil
}

func (c *NetworkCollection[T]) emit(ch Change[T]) {
	if c.guard.active {
		return
	}
	for _, fn := range c.watchers.snapshot() {
		fn(ch)
	}
}

// Kind implements Property.
func (c *NetworkCollection[T]) Kind() ir.PropertyKind { return ir.KindCollection }

// Suppress implements Property.
func (c *NetworkCollection[T]) Suppress() func() { return c.guard.acquire() }

// Suppressed implements Property.
func (c *NetworkCollection[T]) Suppressed() bool { return c.guard.active }

// Elements implements Collection.
func (c *NetworkCollection[T]) Elements() []any {
	out := make([]any, len(c.items))
	for i, it := range c.items {
		out[i] = it
	}
	return out
}

// InsertAt implements Collection.
func (c *NetworkCollection[T]) InsertAt(index int, items []any) error {
	typed, err := castAll[T](items)
	if err != nil {
		return err
	}
	return c.Insert(index, typed...)
}

// ReplaceAt implements Collection.
func (c *NetworkCollection[T]) ReplaceAt(index int, item any) error {
	typed, ok := item.(T)
	if !ok {
		return typeErrorFor[T](item)
	}
	return c.Replace(index, typed)
}

// Restore implements Collection.
func (c *NetworkCollection[T]) Restore(items []any) error {
	typed, err := castAll[T](items)
	if err != nil {
		return err
	}
	c.items = typed
	return nil
}

// Watch implements Collection.
func (c *NetworkCollection[T]) Watch(fn func(Change[any])) func() {
	return c.watchers.add(func(ch Change[T]) {
		fn(Change[any]{
			Kind:     ch.Kind,
			OldIndex: ch.OldIndex,
			NewIndex: ch.NewIndex,
			OldItems: widen(ch.OldItems),
			NewItems: widen(ch.NewItems),
		})
	})
}

func castAll[T any](items []any) ([]T, error) {
	out := make([]T, len(items))
	for i, it := range items {
		typed, ok := it.(T)
		if !ok {
			return nil, typeErrorFor[T](it)
		}
		out[i] = typed
	}
	return out, nil
}

func widen[T any](items []T) []any {
	if items == nil {
		return nil
	}
	out := make([]any, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}
