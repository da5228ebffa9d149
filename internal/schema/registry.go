package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/starcore/internal/ir"
)

// Well-known container types.
const (
	ReplicatedContainer = "ReplicatedContainer"
	ClientContainer     = "ClientContainer"
)

// Well-known property names of the built-in containers.
const (
	PropModules          = "Modules"
	PropOpenInstances    = "OpenInstances"
	PropReplicatedString = "ReplicatedString"
	PropFocusedInstance  = "FocusedInstance"
)

// BuiltinContainers returns the container schemas every server and client
// agree on.
func BuiltinContainers() []ir.ContainerSchema {
	return []ir.ContainerSchema{
		{
			Type: ReplicatedContainer,
			Properties: []ir.PropertySchema{
				{Name: PropModules, Kind: ir.KindCollection, Element: Module.ID()},
				{Name: PropOpenInstances, Kind: ir.KindCollection, Element: Instance.ID()},
				{Name: PropReplicatedString, Kind: ir.KindValue, Element: String.ID()},
			},
		},
		{
			Type: ClientContainer,
			Properties: []ir.PropertySchema{
				{Name: PropFocusedInstance, Kind: ir.KindValue, Element: String.ID()},
			},
		},
	}
}

// Registry maps container-type ids to schemas and element-type ids to codecs.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	elements   map[string]ElementType
	containers map[string]*Layout
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		elements:   make(map[string]ElementType),
		containers: make(map[string]*Layout),
	}
}

// Builtin returns a registry holding the built-in element types and
// container schemas.
func Builtin() *Registry {
	r := NewRegistry()
	for _, et := range []ElementType{String, Int, Bool, Instance, Module} {
		if err := r.RegisterElement(et); err != nil {
			panic(err)
		}
	}
	for _, s := range BuiltinContainers() {
		if err := r.Register(s); err != nil {
			panic(err)
		}
	}
	return r
}

// RegisterElement adds an element type. Ids are unique.
func (r *Registry) RegisterElement(et ElementType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.elements[et.ID()]; exists {
		return fmt.Errorf("element type %q already registered", et.ID())
	}
	r.elements[et.ID()] = et
	return nil
}

// Element returns the element type registered under id.
func (r *Registry) Element(id string) (ElementType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.elements[id]
	return et, ok
}

// Register validates s and adds it. Every property element must already be
// registered; container types are unique.
func (r *Registry) Register(s ir.ContainerSchema) error {
	if errs := s.Validate(); len(errs) > 0 {
		return validationErrors(s.Type, errs)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.containers[s.Type]; exists {
		return fmt.Errorf("container type %q already registered", s.Type)
	}

	layout := &Layout{
		schema:   cloneSchema(s),
		elements: make(map[string]ElementType, len(s.Properties)),
	}
	for _, p := range s.Properties {
		et, ok := r.elements[p.Element]
		if !ok {
			return fmt.Errorf("container %s: property %s: unknown element type %q", s.Type, p.Name, p.Element)
		}
		layout.elements[p.Name] = et
	}

	r.containers[s.Type] = layout
	return nil
}

// Lookup returns the bound layout for containerType.
func (r *Registry) Lookup(containerType string) (*Layout, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.containers[containerType]
	return l, ok
}

// Types returns the registered container types, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.containers))
	for t := range r.containers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Layout is a container schema bound to its element types. It is immutable.
type Layout struct {
	schema   ir.ContainerSchema
	elements map[string]ElementType
}

// Type returns the container-type id.
func (l *Layout) Type() string { return l.schema.Type }

// Schema returns a copy of the declared schema.
func (l *Layout) Schema() ir.ContainerSchema { return cloneSchema(l.schema) }

// Properties returns the properties in declaration order.
func (l *Layout) Properties() []ir.PropertySchema {
	out := make([]ir.PropertySchema, len(l.schema.Properties))
	copy(out, l.schema.Properties)
	return out
}

// Property resolves a property by name along with its element type.
func (l *Layout) Property(name string) (ir.PropertySchema, ElementType, bool) {
	p, ok := l.schema.Property(name)
	if !ok {
		return ir.PropertySchema{}, nil, false
	}
	return p, l.elements[name], true
}

func cloneSchema(s ir.ContainerSchema) ir.ContainerSchema {
	props := make([]ir.PropertySchema, len(s.Properties))
	copy(props, s.Properties)
	return ir.ContainerSchema{Type: s.Type, Properties: props}
}

func validationErrors(containerType string, errs []ir.ValidationError) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	if containerType == "" {
		containerType = "<unnamed>"
	}
	return fmt.Errorf("container %s: %w", containerType, errors.New(strings.Join(msgs, "; ")))
}
