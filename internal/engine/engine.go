package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/starcore/internal/action"
	"github.com/roach88/starcore/internal/container"
	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/netprop"
)

// State is the engine's replication mode.
type State int

const (
	// StateSubscribed is the normal mode: local changes become outbound actions.
	StateSubscribed State = iota
	// StateApplyingRemote is held only while one inbound action is applied.
	StateApplyingRemote
)

func (s State) String() string {
	if s == StateApplyingRemote {
		return "applying_remote"
	}
	return "subscribed"
}

// Outbound is one action raised for the transport.
type Outbound struct {
	Container string
	Seq       int64
	Action    action.Action
}

// Updated is the local signal raised after an inbound action was applied.
type Updated struct {
	Container string
	Action    action.Action
}

// Engine replicates one container.
//
// Local mutations of the container's properties are observed and raised as
// Outbound actions. Inbound actions are applied through HandleAction with the
// target property's notifications suppressed, so they are never echoed.
//
// Thread-safety model:
//   - Engine is not safe for concurrent use.
//   - Local mutation and HandleAction on the same container must share one
//     dispatch path, or be serialized by the caller.
//   - No method blocks; outbound listeners are invoked synchronously.
type Engine struct {
	container *container.Container
	clock     *Clock
	logger    *slog.Logger
	state     State

	outbound []hook[func(Outbound)]
	updated  []hook[func(Updated)]
	nextHook int

	// detach holds the per-property change subscriptions.
	detach map[string]func()
}

type hook[F any] struct {
	id int
	fn F
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used to stamp outbound actions.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New binds an engine to c and attaches one change listener per declared
// property.
func New(c *container.Container, opts ...Option) *Engine {
	e := &Engine{
		container: c,
		clock:     NewClock(),
		logger:    slog.Default(),
		detach:    make(map[string]func()),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("container", c.Type())

	e.subscribeAll()
	return e
}

// Container returns the replicated container.
func (e *Engine) Container() *container.Container { return e.container }

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock { return e.clock }

// State reports the current replication mode.
func (e *Engine) State() State { return e.state }

// OnAction registers fn to receive every outbound action.
func (e *Engine) OnAction(fn func(Outbound)) (cancel func()) {
	e.nextHook++
	id := e.nextHook
	e.outbound = append(e.outbound, hook[func(Outbound)]{id: id, fn: fn})
	return func() { e.outbound = removeHook(e.outbound, id) }
}

// OnUpdated registers fn to receive the container-updated signal.
func (e *Engine) OnUpdated(fn func(Updated)) (cancel func()) {
	e.nextHook++
	id := e.nextHook
	e.updated = append(e.updated, hook[func(Updated)]{id: id, fn: fn})
	return func() { e.updated = removeHook(e.updated, id) }
}

func removeHook[F any](hooks []hook[F], id int) []hook[F] {
	for i, h := range hooks {
		if h.id == id {
			return append(hooks[:i:i], hooks[i+1:]...)
		}
	}
	return hooks
}

// Fetch raises an outbound Fetch asking the peer for a full snapshot.
func (e *Engine) Fetch() {
	e.emit(action.Fetch{})
}

// Digest hashes the container's current snapshot.
func (e *Engine) Digest() (string, error) {
	return e.container.Digest()
}

// Close detaches every property listener. The engine raises nothing after
// Close.
func (e *Engine) Close() {
	for name, cancel := range e.detach {
		cancel()
		delete(e.detach, name)
	}
	e.outbound = nil
	e.updated = nil
}

// HandleAction applies one inbound action.
//
//   - Fetch raises an outbound Post carrying the current snapshot.
//   - Post replaces the container contents from the snapshot, re-attaches
//     collection listeners and raises Updated.
//   - Property updates are applied to the named property with its
//     notifications suppressed, then Updated is raised.
//
// A failure is returned as a *ReplicationError and logged; it affects this
// action only.
func (e *Engine) HandleAction(a action.Action) error {
	var err error
	switch act := a.(type) {
	case action.Fetch:
		err = e.answerFetch()
	case action.Post:
		err = e.applyPost(act)
	case action.PropertyUpdate:
		err = e.applyUpdate(act)
	default:
		err = e.newError(ErrCodeDecode, "", "", fmt.Sprintf("unsupported action %T", a), nil)
	}

	if err != nil {
		e.logger.Warn("inbound action rejected",
			"action", action.Describe(a),
			"error", err,
		)
	}
	return err
}

// HandleEnvelope decodes env against the container's schema and applies it.
func (e *Engine) HandleEnvelope(env action.Envelope) error {
	a, err := action.Decode(env, e.container.Layout())
	if err != nil {
		rerr := e.wrapError(env.Kind, envelopeProperty(env), err)
		e.logger.Warn("inbound envelope rejected",
			"kind", env.Kind,
			"error", rerr,
		)
		return rerr
	}
	return e.HandleAction(a)
}

// SnapshotEnvelope encodes the current snapshot as a Post envelope without
// raising it as an outbound action.
func (e *Engine) SnapshotEnvelope() (action.Envelope, error) {
	snap, err := e.container.ToSnapshot()
	if err != nil {
		return action.Envelope{}, err
	}
	return e.Encode(action.Post{Snapshot: snap})
}

// Encode builds the wire envelope for an action of this engine's container.
func (e *Engine) Encode(a action.Action) (action.Envelope, error) {
	return action.Encode(a, e.container.Layout())
}

func envelopeProperty(env action.Envelope) string {
	if env.Kind == action.KindFetch || env.Kind == action.KindPost || len(env.Payload) == 0 {
		return ""
	}
	if name, ok := env.Payload[0].(ir.IRString); ok {
		return string(name)
	}
	return ""
}

func (e *Engine) answerFetch() error {
	snap, err := e.container.ToSnapshot()
	if err != nil {
		return e.newError(ErrCodeSchema, action.KindFetch, "", "snapshot failed", err)
	}
	e.emit(action.Post{Snapshot: snap})
	return nil
}

func (e *Engine) applyPost(post action.Post) error {
	applyErr := e.applySnapshot(post.Snapshot)

	e.resubscribeCollections()
	e.raiseUpdated(post)

	skipped := append(flatten(post.Skipped), flatten(applyErr)...)
	if len(skipped) == 0 {
		return nil
	}
	for _, entryErr := range skipped {
		e.logger.Warn("snapshot entry skipped", "error", entryErr)
	}
	rerr := e.newError(ErrCodeDecode, action.KindPost, "",
		fmt.Sprintf("%d snapshot entries skipped", len(skipped)), errors.Join(skipped...))
	rerr.Partial = true
	return rerr
}

// applySnapshot runs ApplySnapshot inside the ApplyingRemote scope. The
// scope is left on every exit path.
func (e *Engine) applySnapshot(snap container.Snapshot) error {
	e.state = StateApplyingRemote
	defer func() { e.state = StateSubscribed }()
	return e.container.ApplySnapshot(snap)
}

// flatten unwraps joined errors into their leaves.
func flatten(err error) []error {
	if err == nil {
		return nil
	}
	joined, ok := err.(interface{ Unwrap() []error })
	if !ok {
		return []error{err}
	}
	var out []error
	for _, e := range joined.Unwrap() {
		out = append(out, flatten(e)...)
	}
	return out
}

func (e *Engine) applyUpdate(u action.PropertyUpdate) error {
	name := u.Property()
	p, ok := e.container.Property(name)
	if !ok {
		return e.newError(ErrCodeSchema, u.Kind(), name,
			fmt.Sprintf("no property %q in %s", name, e.container.Type()), nil)
	}

	if err := e.applyTo(p, u); err != nil {
		var re *ReplicationError
		if errors.As(err, &re) {
			return re
		}
		return e.wrapError(u.Kind(), name, err)
	}

	e.raiseUpdated(u)
	return nil
}

// applyTo runs one mutation inside the ApplyingRemote scope. The scope is
// left on every exit path.
func (e *Engine) applyTo(p netprop.Property, u action.PropertyUpdate) error {
	release := p.Suppress()
	e.state = StateApplyingRemote
	defer func() {
		e.state = StateSubscribed
		release()
	}()

	if set, ok := u.(action.Set); ok {
		v, ok := p.(netprop.Value)
		if !ok {
			return e.newError(ErrCodeSchema, action.KindSet, set.Name, "set targets a collection property", nil)
		}
		return v.Store(set.Value)
	}

	coll, ok := p.(netprop.Collection)
	if !ok {
		return e.newError(ErrCodeSchema, u.Kind(), u.Property(),
			fmt.Sprintf("%s targets a value property", u.Kind()), nil)
	}

	switch act := u.(type) {
	case action.Add:
		return coll.InsertAt(act.Index, act.Items)
	case action.Move:
		return coll.Move(act.OldIndex, act.NewIndex)
	case action.Remove:
		return coll.RemoveAt(act.Index)
	case action.Replace:
		return coll.ReplaceAt(act.Index, act.Value)
	case action.Reset:
		coll.Clear()
		return nil
	default:
		return e.newError(ErrCodeDecode, u.Kind(), u.Property(), fmt.Sprintf("unsupported update %T", u), nil)
	}
}

func (e *Engine) emit(a action.Action) {
	out := Outbound{
		Container: e.container.Type(),
		Seq:       e.clock.Next(),
		Action:    a,
	}
	e.logger.Debug("outbound action",
		"action", action.Describe(a),
		"seq", out.Seq,
	)
	for _, h := range append([]hook[func(Outbound)](nil), e.outbound...) {
		h.fn(out)
	}
}

func (e *Engine) raiseUpdated(a action.Action) {
	ev := Updated{Container: e.container.Type(), Action: a}
	for _, h := range append([]hook[func(Updated)](nil), e.updated...) {
		h.fn(ev)
	}
}
