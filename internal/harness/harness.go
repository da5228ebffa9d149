package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/starcore/internal/action"
	"github.com/roach88/starcore/internal/compiler"
	"github.com/roach88/starcore/internal/container"
	"github.com/roach88/starcore/internal/engine"
	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/netprop"
	"github.com/roach88/starcore/internal/schema"
)

// Harness runs one scenario. Every peer owns an engine bound to its own
// container; all of them share a loopback network.
type Harness struct {
	layout *schema.Layout
	net    *network
	logger *slog.Logger
}

// Option configures a Harness run.
type Option func(*Harness)

// WithLogger sets the logger used for engines and the network. Defaults to
// a discarding logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Register the scenario's CUE schemas in a fresh registry
//  2. Build one engine per peer for the scenario's container type
//  3. Run each flow step, then drain the network
//  4. Record peer digests and evaluate assertions
//
// An error is returned only when the scenario cannot be set up; step and
// assertion failures are reported in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	reg := schema.Builtin()
	for _, path := range scenario.Schemas {
		schemas, err := compiler.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load schema %s: %w", path, err)
		}
		if err := compiler.Register(reg, schemas); err != nil {
			return nil, fmt.Errorf("register schema %s: %w", path, err)
		}
	}

	containerType := scenario.Container
	if containerType == "" {
		containerType = schema.ReplicatedContainer
	}
	layout, ok := reg.Lookup(containerType)
	if !ok {
		return nil, fmt.Errorf("unknown container type %q", containerType)
	}
	h.layout = layout

	result := NewResult()
	h.net = newNetwork(result, h.logger)
	for _, name := range scenario.Peers {
		eng := engine.New(container.New(layout), engine.WithLogger(h.logger.With("peer", name)))
		h.net.join(name, eng)
	}

	for i, step := range scenario.Flow {
		h.runStep(i, step, result)
	}

	for _, p := range h.net.peers {
		digest, err := p.engine.Digest()
		if err != nil {
			result.AddError(fmt.Sprintf("peer %s: digest: %v", p.name, err))
			continue
		}
		result.Digests[p.name] = digest
	}

	actx := &AssertionContext{Harness: h}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// runStep applies one step, drains the network and checks the expected
// failure code.
func (h *Harness) runStep(i int, step FlowStep, result *Result) {
	h.net.beginStep(i)
	p := h.net.byName[step.Peer]

	if err := h.apply(p, step); err != nil {
		h.net.observe(string(engine.CodeOf(err)))
		h.logger.Debug("step failed locally", "step", i, "op", step.Op, "error", err)
	}
	h.net.drain()

	got := h.net.firstError
	switch {
	case step.ExpectError == "" && got != "":
		result.AddError(fmt.Sprintf("flow[%d] %s on %s: unexpected %s", i, step.Op, step.Peer, got))
	case step.ExpectError != "" && got != step.ExpectError:
		if got == "" {
			got = "no error"
		}
		result.AddError(fmt.Sprintf("flow[%d] %s on %s: expected %s, got %s", i, step.Op, step.Peer, step.ExpectError, got))
	}
}

// apply performs the step's operation on p.
func (h *Harness) apply(p *peer, step FlowStep) error {
	switch step.Op {
	case OpFetch:
		p.engine.Fetch()
		return nil

	case OpSend:
		payload, err := ir.FromGo(step.Envelope.Payload)
		if err != nil {
			return &action.DecodeError{Kind: action.Kind(step.Envelope.Kind), Message: "payload", Err: err}
		}
		arr, _ := payload.(ir.IRArray)
		from := step.From
		if from == "" {
			from = "harness"
		}
		h.net.send(from, p.name, action.Envelope{Kind: action.Kind(step.Envelope.Kind), Payload: arr})
		return nil
	}

	prop, et, ok := h.layout.Property(step.Property)
	if !ok {
		return &action.SchemaError{Property: step.Property, Message: "not declared by " + h.layout.Type()}
	}
	target, _ := p.engine.Container().Property(step.Property)

	if step.Op == OpSet {
		v, ok := target.(netprop.Value)
		if !ok {
			return &action.SchemaError{Property: step.Property, Message: "set targets a collection property"}
		}
		val, err := decodeElement(et, step.Value)
		if err != nil {
			return err
		}
		return v.Store(val)
	}

	coll, ok := target.(netprop.Collection)
	if !ok {
		return &action.SchemaError{Property: prop.Name, Message: step.Op + " targets a value property"}
	}

	switch step.Op {
	case OpAdd:
		items := make([]any, len(step.Items))
		for i, raw := range step.Items {
			val, err := decodeElement(et, raw)
			if err != nil {
				return err
			}
			items[i] = val
		}
		return coll.InsertAt(step.Index, items)
	case OpMove:
		return coll.Move(step.Index, step.To)
	case OpRemove:
		return coll.RemoveAt(step.Index)
	case OpReplace:
		val, err := decodeElement(et, step.Value)
		if err != nil {
			return err
		}
		return coll.ReplaceAt(step.Index, val)
	case OpReset:
		coll.Clear()
		return nil
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

// decodeElement converts a YAML-parsed value into the element's Go type.
func decodeElement(et schema.ElementType, raw any) (any, error) {
	v, err := ir.FromGo(raw)
	if err != nil {
		return nil, fmt.Errorf("element %s: %w", et.ID(), err)
	}
	return et.Decode(v)
}
