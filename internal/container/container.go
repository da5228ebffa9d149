// Package container implements the replication unit: a schema-fixed set of
// named NetworkValue and NetworkCollection properties.
package container

import (
	"errors"
	"fmt"

	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/netprop"
	"github.com/roach88/starcore/internal/schema"
)

// Container holds one property wrapper per declared property. The property
// set is fixed at construction.
type Container struct {
	layout *schema.Layout
	props  map[string]netprop.Property
}

// New builds a container with zero-valued properties for every property in
// layout.
func New(layout *schema.Layout) *Container {
	c := &Container{
		layout: layout,
		props:  make(map[string]netprop.Property),
	}
	for _, p := range layout.Properties() {
		_, et, _ := layout.Property(p.Name)
		switch p.Kind {
		case ir.KindCollection:
			c.props[p.Name] = et.NewCollection()
		default:
			c.props[p.Name] = et.NewValue()
		}
	}
	return c
}

// Type returns the container-type id.
func (c *Container) Type() string { return c.layout.Type() }

// Layout returns the bound schema.
func (c *Container) Layout() *schema.Layout { return c.layout }

// Property resolves a property wrapper by name.
func (c *Container) Property(name string) (netprop.Property, bool) {
	p, ok := c.props[name]
	return p, ok
}

// Each calls fn for every property in declaration order.
func (c *Container) Each(fn func(ps ir.PropertySchema, p netprop.Property)) {
	for _, ps := range c.layout.Properties() {
		fn(ps, c.props[ps.Name])
	}
}

// Value returns the typed value wrapper for name.
func Value[T any](c *Container, name string) (*netprop.NetworkValue[T], error) {
	p, ok := c.props[name]
	if !ok {
		return nil, fmt.Errorf("%s: no property %q", c.Type(), name)
	}
	v, ok := p.(*netprop.NetworkValue[T])
	if !ok {
		var zero T
		return nil, fmt.Errorf("%s.%s: not a value of %T", c.Type(), name, zero)
	}
	return v, nil
}

// Collection returns the typed collection wrapper for name.
func Collection[T any](c *Container, name string) (*netprop.NetworkCollection[T], error) {
	p, ok := c.props[name]
	if !ok {
		return nil, fmt.Errorf("%s: no property %q", c.Type(), name)
	}
	coll, ok := p.(*netprop.NetworkCollection[T])
	if !ok {
		var zero T
		return nil, fmt.Errorf("%s.%s: not a collection of %T", c.Type(), name, zero)
	}
	return coll, nil
}

// MustValue is Value for properties known to exist, such as those of the
// built-in containers.
func MustValue[T any](c *Container, name string) *netprop.NetworkValue[T] {
	v, err := Value[T](c, name)
	if err != nil {
		panic(err)
	}
	return v
}

// MustCollection is Collection for properties known to exist.
func MustCollection[T any](c *Container, name string) *netprop.NetworkCollection[T] {
	coll, err := Collection[T](c, name)
	if err != nil {
		panic(err)
	}
	return coll
}

// ToSnapshot encodes every property, in declaration order. Collections are
// encoded as arrays of their elements.
func (c *Container) ToSnapshot() (Snapshot, error) {
	snap := make(Snapshot, 0, len(c.props))
	for _, ps := range c.layout.Properties() {
		_, et, _ := c.layout.Property(ps.Name)
		v, err := encodeProperty(et, c.props[ps.Name])
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", c.Type(), ps.Name, err)
		}
		snap = append(snap, Entry{Name: ps.Name, Value: v})
	}
	return snap, nil
}

func encodeProperty(et schema.ElementType, p netprop.Property) (ir.IRValue, error) {
	switch prop := p.(type) {
	case netprop.Collection:
		elems := prop.Elements()
		arr := make(ir.IRArray, len(elems))
		for i, e := range elems {
			v, err := et.Encode(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = v
		}
		return arr, nil
	case netprop.Value:
		return et.Encode(prop.Load())
	default:
		return nil, fmt.Errorf("unsupported property %T", p)
	}
}

// EntryError reports one snapshot entry that could not be applied.
type EntryError struct {
	Name string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("snapshot entry %s: %v", e.Name, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// ApplySnapshot assigns each entry to the property of the same name with its
// notifications suppressed. Unknown names are ignored. An entry that fails to
// decode is skipped and reported; the remaining entries are still applied.
// The returned error joins one *EntryError per failed entry.
func (c *Container) ApplySnapshot(snap Snapshot) error {
	var errs []error
	for _, entry := range snap {
		p, ok := c.props[entry.Name]
		if !ok {
			continue
		}
		_, et, _ := c.layout.Property(entry.Name)
		if err := applyEntry(et, p, entry.Value); err != nil {
			errs = append(errs, &EntryError{Name: entry.Name, Err: err})
		}
	}
	return errors.Join(errs...)
}

func applyEntry(et schema.ElementType, p netprop.Property, v ir.IRValue) error {
	release := p.Suppress()
	defer release()

	switch prop := p.(type) {
	case netprop.Collection:
		arr, ok := v.(ir.IRArray)
		if !ok {
			return fmt.Errorf("collection expects array, got %s", ir.TypeName(v))
		}
		items := make([]any, len(arr))
		for i, raw := range arr {
			item, err := et.Decode(raw)
			if err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = item
		}
		return prop.Restore(items)
	case netprop.Value:
		item, err := et.Decode(v)
		if err != nil {
			return err
		}
		return prop.Store(item)
	default:
		return fmt.Errorf("unsupported property %T", p)
	}
}

// Digest hashes the current snapshot. Equal digests mean observably equal
// containers.
func (c *Container) Digest() (string, error) {
	snap, err := c.ToSnapshot()
	if err != nil {
		return "", err
	}
	return ir.SnapshotDigest(c.Type(), snap.IR())
}
