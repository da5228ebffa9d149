package instance

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/starcore/internal/container"
	"github.com/roach88/starcore/internal/ids"
	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/netprop"
	"github.com/roach88/starcore/internal/schema"
)

var (
	// ErrUnknownModule is returned for a module id that was never declared.
	ErrUnknownModule = errors.New("unknown module")
	// ErrUnknownInstance is returned for an instance id that is not open.
	ErrUnknownInstance = errors.New("unknown instance")
	// ErrNotPermitted is returned when a participant may not open or close.
	ErrNotPermitted = errors.New("not permitted")
	// ErrSystemInstance is returned when closing a system instance.
	ErrSystemInstance = errors.New("system instances cannot be closed")
	// ErrAlreadyOpen is returned when opening a system module twice.
	ErrAlreadyOpen = errors.New("system module already open")
)

// Origin tells the registry who requested an operation.
type Origin int

const (
	// FromServer is an operation started by the authoritative side.
	FromServer Origin = iota
	// FromClient is an operation requested by a participant command.
	FromClient
)

// EventKind names a registry event.
type EventKind string

const (
	EventOpened EventKind = "opened"
	EventClosed EventKind = "closed"
)

// Event is raised after an instance opened or closed.
type Event struct {
	Kind     EventKind
	Instance ir.InstanceData
	Module   ir.ModuleData
}

// Registry is the module and open-instance feed.
//
// Thread-safety: Registry is not safe for concurrent use. It shares the
// shared container's dispatch path (the hub's event loop).
type Registry struct {
	modules   *netprop.NetworkCollection[ir.ModuleData]
	instances *netprop.NetworkCollection[ir.InstanceData]
	ids       ids.Generator
	logger    *slog.Logger
	listeners []func(Event)
}

// Option configures a Registry.
type Option func(*Registry)

// WithIDs sets the instance id generator. Defaults to UUIDv7.
func WithIDs(g ids.Generator) Option {
	return func(r *Registry) { r.ids = g }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New binds a registry to the Modules and OpenInstances collections of a
// ReplicatedContainer.
func New(shared *container.Container, opts ...Option) (*Registry, error) {
	modules, err := container.Collection[ir.ModuleData](shared, schema.PropModules)
	if err != nil {
		return nil, fmt.Errorf("instance registry: %w", err)
	}
	instances, err := container.Collection[ir.InstanceData](shared, schema.PropOpenInstances)
	if err != nil {
		return nil, fmt.Errorf("instance registry: %w", err)
	}

	r := &Registry{
		modules:   modules,
		instances: instances,
		ids:       ids.UUIDv7Generator{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// OnEvent registers fn for opened and closed events.
func (r *Registry) OnEvent(fn func(Event)) {
	r.listeners = append(r.listeners, fn)
}

// Declare publishes module metadata. Module ids are unique.
func (r *Registry) Declare(m ir.ModuleData) error {
	if m.Module == "" {
		return fmt.Errorf("declare: module id is required")
	}
	if m.ModuleType != ir.ModuleSystem && m.ModuleType != ir.ModuleProtocol {
		return fmt.Errorf("declare %s: invalid module type %q", m.Module, m.ModuleType)
	}
	if _, ok := r.Module(m.Module); ok {
		return fmt.Errorf("declare %s: already declared", m.Module)
	}
	if err := r.modules.Append(m); err != nil {
		return fmt.Errorf("declare %s: %w", m.Module, err)
	}
	r.logger.Debug("module declared", "module", m.Module, "type", m.ModuleType)
	return nil
}

// Start opens one instance of every declared system module.
func (r *Registry) Start() error {
	for _, m := range r.modules.Items() {
		if m.ModuleType != ir.ModuleSystem {
			continue
		}
		if _, err := r.Open(m.Module, FromServer); err != nil {
			return err
		}
	}
	return nil
}

// Module returns the metadata of a declared module.
func (r *Registry) Module(id string) (ir.ModuleData, bool) {
	i := r.modules.IndexOf(func(m ir.ModuleData) bool { return m.Module == id })
	if i < 0 {
		return ir.ModuleData{}, false
	}
	m, _ := r.modules.At(i)
	return m, true
}

// Modules returns the declared modules in declaration order.
func (r *Registry) Modules() []ir.ModuleData { return r.modules.Items() }

// Instances returns the open instances in open order.
func (r *Registry) Instances() []ir.InstanceData { return r.instances.Items() }

// Instance returns an open instance by id.
func (r *Registry) Instance(id string) (ir.InstanceData, bool) {
	i := r.indexOf(id)
	if i < 0 {
		return ir.InstanceData{}, false
	}
	inst, _ := r.instances.At(i)
	return inst, true
}

// Open creates an instance of module titled with the module name. A system
// module may have one instance; participants may only open modules that
// allow it.
func (r *Registry) Open(module string, origin Origin) (ir.InstanceData, error) {
	m, ok := r.Module(module)
	if !ok {
		return ir.InstanceData{}, fmt.Errorf("open %s: %w", module, ErrUnknownModule)
	}
	if origin == FromClient && !m.CanClientOpen {
		return ir.InstanceData{}, fmt.Errorf("open %s: %w", module, ErrNotPermitted)
	}
	if m.ModuleType == ir.ModuleSystem && r.instances.IndexOf(func(i ir.InstanceData) bool { return i.Module == module }) >= 0 {
		return ir.InstanceData{}, fmt.Errorf("open %s: %w", module, ErrAlreadyOpen)
	}

	inst := ir.InstanceData{
		Module:         module,
		InstanceID:     r.ids.Generate(),
		Title:          m.Name,
		CanClientClose: m.ModuleType == ir.ModuleProtocol,
	}
	if err := r.instances.Append(inst); err != nil {
		return ir.InstanceData{}, fmt.Errorf("open %s: %w", module, err)
	}

	r.logger.Info("instance opened", "module", module, "instance_id", inst.InstanceID)
	r.raise(Event{Kind: EventOpened, Instance: inst, Module: m})
	return inst, nil
}

// Close removes an open instance. System instances never close.
func (r *Registry) Close(instanceID string, origin Origin) error {
	i := r.indexOf(instanceID)
	if i < 0 {
		return fmt.Errorf("close %s: %w", instanceID, ErrUnknownInstance)
	}
	inst, _ := r.instances.At(i)
	m, _ := r.Module(inst.Module)

	if m.ModuleType == ir.ModuleSystem {
		r.logger.Warn("attempted to close a system instance", "module", inst.Module, "instance_id", instanceID)
		return fmt.Errorf("close %s: %w", instanceID, ErrSystemInstance)
	}
	if origin == FromClient && !inst.CanClientClose {
		return fmt.Errorf("close %s: %w", instanceID, ErrNotPermitted)
	}
	if err := r.instances.RemoveAt(i); err != nil {
		return fmt.Errorf("close %s: %w", instanceID, err)
	}

	r.logger.Info("instance closed", "module", inst.Module, "instance_id", instanceID)
	r.raise(Event{Kind: EventClosed, Instance: inst, Module: m})
	return nil
}

// Rename changes the title of an open instance.
func (r *Registry) Rename(instanceID, title string) error {
	i := r.indexOf(instanceID)
	if i < 0 {
		return fmt.Errorf("rename %s: %w", instanceID, ErrUnknownInstance)
	}
	inst, _ := r.instances.At(i)
	inst.Title = title
	return r.instances.Replace(i, inst)
}

func (r *Registry) indexOf(instanceID string) int {
	return r.instances.IndexOf(func(i ir.InstanceData) bool { return i.InstanceID == instanceID })
}

func (r *Registry) raise(ev Event) {
	for _, fn := range r.listeners {
		fn(ev)
	}
}
