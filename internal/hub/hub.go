package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/starcore/internal/action"
	"github.com/roach88/starcore/internal/container"
	"github.com/roach88/starcore/internal/engine"
	"github.com/roach88/starcore/internal/ids"
	"github.com/roach88/starcore/internal/instance"
	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/metrics"
	"github.com/roach88/starcore/internal/schema"
	"github.com/roach88/starcore/internal/store"
	"github.com/roach88/starcore/internal/wire"
)

// ErrClosed is returned by Do once the Run loop has stopped.
var ErrClosed = errors.New("hub closed")

// processScoped names the shared properties rebuilt by every process rather
// than restored from a checkpoint.
var processScoped = []string{schema.PropModules, schema.PropOpenInstances}

// Hub is the server side of the replication transport.
//
// It owns one engine per shared container type and one private
// ClientContainer engine per connection. Inbound frames, joins, leaves and
// server-side calls are all serialised through a single event queue drained
// by Run, so every container has one dispatch path.
type Hub struct {
	schemas *schema.Registry
	shared  map[string]*engine.Engine
	modules *instance.Registry
	store   *store.Store
	logger  *slog.Logger
	ids     ids.Generator

	checkpointEvery time.Duration
	declared        []ir.ModuleData

	queue    *eventQueue
	upgrader websocket.Upgrader
	stopped  chan struct{}

	// Run loop only.
	conns  map[string]*conn
	origin *conn
}

// Option configures a Hub.
type Option func(*Hub)

// WithSchemas sets the container schemas served. It must include the
// built-in containers. Defaults to schema.Builtin().
func WithSchemas(r *schema.Registry) Option {
	return func(h *Hub) {
		h.schemas = r
	}
}

// WithStore enables checkpoints: shared containers are restored from s when
// Run starts, written every interval (if positive), and written at shutdown.
func WithStore(s *store.Store, interval time.Duration) Option {
	return func(h *Hub) {
		h.store = s
		h.checkpointEvery = interval
	}
}

// WithModules declares module metadata before the system modules open.
func WithModules(mods ...ir.ModuleData) Option {
	return func(h *Hub) {
		h.declared = append(h.declared, mods...)
	}
}

// WithIDs sets the connection id generator. Defaults to UUIDv7.
func WithIDs(g ids.Generator) Option {
	return func(h *Hub) {
		h.ids = g
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		h.logger = l
	}
}

// New builds a hub. It does not accept connections until Run is started.
func New(opts ...Option) (*Hub, error) {
	h := &Hub{
		shared:  make(map[string]*engine.Engine),
		logger:  slog.Default(),
		ids:     ids.UUIDv7Generator{},
		queue:   newEventQueue(),
		stopped: make(chan struct{}),
		conns:   make(map[string]*conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.schemas == nil {
		h.schemas = schema.Builtin()
	}
	if _, ok := h.schemas.Lookup(schema.ClientContainer); !ok {
		return nil, fmt.Errorf("hub: schema registry lacks %s", schema.ClientContainer)
	}

	for _, typ := range h.schemas.Types() {
		if typ == schema.ClientContainer {
			continue
		}
		layout, _ := h.schemas.Lookup(typ)
		eng := engine.New(container.New(layout), engine.WithLogger(h.logger))
		eng.OnAction(h.sharedOutbound(eng))
		h.shared[typ] = eng
	}

	replicated, ok := h.shared[schema.ReplicatedContainer]
	if !ok {
		return nil, fmt.Errorf("hub: schema registry lacks %s", schema.ReplicatedContainer)
	}
	modules, err := instance.New(replicated.Container(), instance.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("hub: %w", err)
	}
	modules.OnEvent(h.instanceEvent)
	h.modules = modules

	return h, nil
}

// Modules returns the module registry. Outside of Run it may only be used
// before Run starts or inside Do.
func (h *Hub) Modules() *instance.Registry { return h.modules }

// Shared returns the engine of a shared container type. The same access
// rule as Modules applies.
func (h *Hub) Shared(containerType string) (*engine.Engine, bool) {
	eng, ok := h.shared[containerType]
	return eng, ok
}

// Do runs fn on the Run loop and waits for its result.
func (h *Hub) Do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	if !h.queue.Enqueue(event{Type: eventCall, Call: fn, Done: done}) {
		return ErrClosed
	}
	select {
	case err := <-done:
		return err
	case <-h.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run restores checkpoints, opens the system modules and processes events
// until ctx is cancelled. A final checkpoint is written on the way out.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.stopped)

	if err := h.start(ctx); err != nil {
		h.queue.Close()
		return err
	}
	defer h.shutdown(context.WithoutCancel(ctx))

	var tick <-chan time.Time
	if h.store != nil && h.checkpointEvery > 0 {
		ticker := time.NewTicker(h.checkpointEvery)
		defer ticker.Stop()
		tick = ticker.C
	}

	h.logger.Info("hub running", "shared", len(h.shared))
	for {
		ev, ok := h.queue.TryDequeue()
		if ok {
			if err := h.process(ev); err != nil {
				h.logger.Warn("event failed", "event", ev.Type.String(), "error", err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			h.logger.Info("hub stopping: context cancelled")
			h.queue.Close()
			return ctx.Err()

		case <-tick:
			h.checkpoint(ctx)

		case <-h.queue.Wait():
		}
	}
}

func (h *Hub) start(ctx context.Context) error {
	if h.store != nil {
		for _, typ := range h.sharedTypes() {
			eng := h.shared[typ]
			var skip []string
			if typ == schema.ReplicatedContainer {
				skip = processScoped
			}
			cp, ok, err := h.store.Restore(ctx, eng.Container(), skip...)
			if !ok && err != nil {
				return fmt.Errorf("restore %s: %w", typ, err)
			}
			if err != nil {
				h.logger.Warn("checkpoint partially restored", "container", typ, "error", err)
			}
			if ok {
				eng.Clock().AdvanceTo(cp.Seq)
				h.logger.Info("checkpoint restored", "container", typ, "seq", cp.Seq, "digest", cp.Digest)
			}
		}
	}

	for _, m := range h.declared {
		if err := h.modules.Declare(m); err != nil {
			return err
		}
	}
	return h.modules.Start()
}

func (h *Hub) shutdown(ctx context.Context) {
	h.checkpoint(ctx)
	for id, c := range h.conns {
		c.private.Close()
		c.close()
		delete(h.conns, id)
	}
	metrics.Participants.Set(0)
}

func (h *Hub) checkpoint(ctx context.Context) {
	if h.store == nil {
		return
	}
	for _, typ := range h.sharedTypes() {
		eng := h.shared[typ]
		cp, err := h.store.WriteCheckpoint(ctx, eng.Container(), eng.Clock().Current())
		if err != nil {
			h.logger.Error("checkpoint failed", "container", typ, "error", err)
			continue
		}
		h.logger.Debug("checkpoint written", "container", typ, "seq", cp.Seq, "digest", cp.Digest)
	}
}

func (h *Hub) sharedTypes() []string {
	types := make([]string, 0, len(h.shared))
	for typ := range h.shared {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// process routes one event. Called only from Run.
func (h *Hub) process(ev event) error {
	switch ev.Type {
	case eventJoin:
		return h.join(ev.Conn)
	case eventLeave:
		h.leave(ev.Conn)
		return nil
	case eventFrame:
		return h.handleFrame(ev.Conn, ev.Frame)
	case eventCall:
		err := ev.Call()
		ev.Done <- err
		return err
	default:
		return fmt.Errorf("unknown event type: %d", ev.Type)
	}
}

func (h *Hub) join(c *conn) error {
	layout, _ := h.schemas.Lookup(schema.ClientContainer)
	c.private = engine.New(container.New(layout), engine.WithLogger(c.logger))
	c.private.OnAction(func(o engine.Outbound) {
		metrics.ActionsEmitted.WithLabelValues(o.Container, string(o.Action.Kind())).Inc()
		if msg, err := h.frame(c.private, o); err == nil {
			h.send(c, msg)
		}
	})
	h.conns[c.id] = c
	c.logger.Debug("connection joined")
	return nil
}

func (h *Hub) leave(c *conn) {
	if _, ok := h.conns[c.id]; !ok {
		return
	}
	delete(h.conns, c.id)
	c.private.Close()
	c.close()
	metrics.Participants.Set(float64(h.participants()))
	c.logger.Info("participant left", "client_type", c.clientType)
}

func (h *Hub) participants() int {
	n := 0
	for _, c := range h.conns {
		if c.connected {
			n++
		}
	}
	return n
}

func (h *Hub) handleFrame(c *conn, m wire.Message) error {
	if _, ok := h.conns[c.id]; !ok {
		return fmt.Errorf("frame from unknown connection %s", c.id)
	}
	switch m.Type {
	case wire.TypeCommand:
		return h.handleCommand(c, *m.Command)
	case wire.TypeAction:
		if !c.connected {
			return fmt.Errorf("connection %s: action before connect", c.id)
		}
		return h.handleAction(c, m)
	default:
		return fmt.Errorf("unknown frame type %q", m.Type)
	}
}

// handleAction applies one inbound envelope. Shared containers relay every
// applied update to the other participants; Post answers to a Fetch go to
// the requester only.
func (h *Hub) handleAction(c *conn, m wire.Message) error {
	eng, shared := h.shared[m.Container]
	if m.Container == schema.ClientContainer {
		eng = c.private
	} else if !shared {
		return fmt.Errorf("connection %s: unknown container %q", c.id, m.Container)
	}

	h.origin = c
	err := eng.HandleEnvelope(*m.Envelope)
	h.origin = nil

	if err != nil {
		metrics.ActionErrors.WithLabelValues(m.Container, string(engine.CodeOf(err))).Inc()
		if shared && engine.IsPartial(err) {
			h.resync(eng, m.Container)
		}
		return err
	}
	metrics.ActionsApplied.WithLabelValues(m.Container, string(m.Envelope.Kind)).Inc()

	if shared && m.Envelope.Kind != action.KindFetch {
		h.broadcast(wire.ActionMessage(m.Container, eng.Clock().Next(), *m.Envelope), c)
	}
	return nil
}

// resync sends the shared container's snapshot to every participant, the
// sender included, after a Post changed it only in part.
func (h *Hub) resync(eng *engine.Engine, containerType string) {
	env, err := eng.SnapshotEnvelope()
	if err != nil {
		h.logger.Error("encode resync snapshot", "container", containerType, "error", err)
		return
	}
	h.broadcast(wire.ActionMessage(containerType, eng.Clock().Next(), env), nil)
}

func (h *Hub) handleCommand(c *conn, cmd wire.Command) error {
	if cmd.Name != wire.CmdConnect && cmd.Name != wire.CmdPing && !c.connected {
		return fmt.Errorf("connection %s: %s before connect", c.id, cmd.Name)
	}

	switch cmd.Name {
	case wire.CmdConnect:
		c.clientType = cmd.ClientType
		c.connected = true
		metrics.Participants.Set(float64(h.participants()))
		c.logger.Info("participant connected", "client_type", c.clientType)
		return nil

	case wire.CmdOpen:
		inst, err := h.modules.Open(cmd.Module, instance.FromClient)
		if err != nil {
			return err
		}
		container.MustValue[string](c.private.Container(), schema.PropFocusedInstance).Set(inst.InstanceID)
		return nil

	case wire.CmdClose:
		return h.modules.Close(cmd.InstanceID, instance.FromClient)

	case wire.CmdPing:
		h.send(c, wire.CommandMessage(wire.Command{Name: wire.CmdPong, Message: cmd.Message}))
		return nil

	default:
		return fmt.Errorf("connection %s: %s is a server command", c.id, cmd.Name)
	}
}

func (h *Hub) instanceEvent(ev instance.Event) {
	if ev.Kind != instance.EventOpened || !ev.Module.NotifyOnOpen {
		return
	}
	h.broadcast(wire.CommandMessage(wire.Command{
		Name:  wire.CmdNotification,
		Title: ev.Module.Name,
		Body:  fmt.Sprintf("%s opened", ev.Instance.Title),
	}), nil)
}

// sharedOutbound forwards a shared engine's outbound actions. A Post is
// the answer to the Fetch being dispatched and goes to its origin only;
// anything else is a server-side mutation every participant must see.
func (h *Hub) sharedOutbound(eng *engine.Engine) func(engine.Outbound) {
	return func(o engine.Outbound) {
		metrics.ActionsEmitted.WithLabelValues(o.Container, string(o.Action.Kind())).Inc()
		msg, err := h.frame(eng, o)
		if err != nil {
			return
		}
		if _, ok := o.Action.(action.Post); ok {
			if h.origin != nil {
				h.send(h.origin, msg)
			}
			return
		}
		h.broadcast(msg, nil)
	}
}

func (h *Hub) frame(eng *engine.Engine, o engine.Outbound) (wire.Message, error) {
	env, err := eng.Encode(o.Action)
	if err != nil {
		h.logger.Error("encode outbound action",
			"container", o.Container,
			"action", action.Describe(o.Action),
			"error", err,
		)
		return wire.Message{}, err
	}
	return wire.ActionMessage(o.Container, o.Seq, env), nil
}

// broadcast sends m to every connected participant except skip.
func (h *Hub) broadcast(m wire.Message, skip *conn) {
	for _, c := range h.conns {
		if c == skip || !c.connected {
			continue
		}
		h.send(c, m)
	}
}

func (h *Hub) send(c *conn, m wire.Message) {
	data, err := wire.Encode(m)
	if err != nil {
		h.logger.Error("encode frame", "conn", c.id, "error", err)
		return
	}
	if !c.deliver(data) {
		c.logger.Warn("frame not delivered, dropping connection", "type", m.Type)
		c.close()
		return
	}
	metrics.Frames.WithLabelValues("out", string(m.Type)).Inc()
}
