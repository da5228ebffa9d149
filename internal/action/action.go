// Package action defines the replicated change taxonomy and its wire
// envelope.
//
// Each Kind has a fixed positional payload:
//
//	fetch    []
//	post     [[[name, value], ...]]
//	set      [name, element]
//	add      [name, index, [element, ...]]
//	move     [name, oldIndex, newIndex]
//	remove   [name, index]
//	replace  [name, index, element]
//	reset    [name]
//
// Elements of set, add and replace are decoded with the element type the
// container schema declares for the named property.
package action

import (
	"fmt"

	"github.com/roach88/starcore/internal/container"
)

// Kind is the wire tag of an action.
type Kind string

const (
	KindFetch   Kind = "fetch"
	KindPost    Kind = "post"
	KindSet     Kind = "set"
	KindAdd     Kind = "add"
	KindMove    Kind = "move"
	KindRemove  Kind = "remove"
	KindReplace Kind = "replace"
	KindReset   Kind = "reset"
)

// Action is one discrete replicated state change or sync-control message.
type Action interface {
	Kind() Kind
}

// PropertyUpdate is an action that targets one named property.
type PropertyUpdate interface {
	Action
	Property() string
}

// Fetch requests a full snapshot from the peer.
type Fetch struct{}

// Post delivers a full snapshot.
type Post struct {
	Snapshot container.Snapshot
	// Skipped joins the *container.EntryError of every malformed pair
	// dropped while decoding. It is never encoded.
	Skipped error
}

// Set replaces a value property.
type Set struct {
	Name  string
	Value any
}

// Add inserts Items so that Items[k] ends at Index+k.
type Add struct {
	Name  string
	Index int
	Items []any
}

// Move relocates one item from OldIndex to NewIndex.
type Move struct {
	Name     string
	OldIndex int
	NewIndex int
}

// Remove deletes the item at Index.
type Remove struct {
	Name  string
	Index int
}

// Replace overwrites the item at Index.
type Replace struct {
	Name  string
	Index int
	Value any
}

// Reset clears a collection.
type Reset struct {
	Name string
}

func (Fetch) Kind() Kind   { return KindFetch }
func (Post) Kind() Kind    { return KindPost }
func (Set) Kind() Kind     { return KindSet }
func (Add) Kind() Kind     { return KindAdd }
func (Move) Kind() Kind    { return KindMove }
func (Remove) Kind() Kind  { return KindRemove }
func (Replace) Kind() Kind { return KindReplace }
func (Reset) Kind() Kind   { return KindReset }

func (a Set) Property() string     { return a.Name }
func (a Add) Property() string     { return a.Name }
func (a Move) Property() string    { return a.Name }
func (a Remove) Property() string  { return a.Name }
func (a Replace) Property() string { return a.Name }
func (a Reset) Property() string   { return a.Name }

// Describe renders a short form for logs and traces.
func Describe(a Action) string {
	switch act := a.(type) {
	case Fetch:
		return "fetch"
	case Post:
		return fmt.Sprintf("post(%d entries)", len(act.Snapshot))
	case Set:
		return fmt.Sprintf("set %s", act.Name)
	case Add:
		return fmt.Sprintf("add %s[%d] +%d", act.Name, act.Index, len(act.Items))
	case Move:
		return fmt.Sprintf("move %s[%d->%d]", act.Name, act.OldIndex, act.NewIndex)
	case Remove:
		return fmt.Sprintf("remove %s[%d]", act.Name, act.Index)
	case Replace:
		return fmt.Sprintf("replace %s[%d]", act.Name, act.Index)
	case Reset:
		return fmt.Sprintf("reset %s", act.Name)
	default:
		return fmt.Sprintf("%T", a)
	}
}
