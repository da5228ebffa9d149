package action

import (
	"fmt"

	"github.com/roach88/starcore/internal/container"
	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/schema"
)

// Envelope is the wire form of an action: a kind tag and a positional
// payload of literal values.
type Envelope struct {
	Kind    Kind       `json:"kind"`
	Payload ir.IRArray `json:"payload"`
}

// Digest hashes the envelope in canonical form.
func (e Envelope) Digest() (string, error) {
	return ir.EnvelopeDigest(string(e.Kind), e.Payload)
}

// Encode builds the envelope for a. Element values are encoded with the
// element type layout declares for the target property.
func Encode(a Action, layout *schema.Layout) (Envelope, error) {
	switch act := a.(type) {
	case Fetch:
		return Envelope{Kind: KindFetch, Payload: ir.IRArray{}}, nil

	case Post:
		return Envelope{Kind: KindPost, Payload: ir.IRArray{act.Snapshot.IR()}}, nil

	case Set:
		et, err := element(layout, act.Name, ir.KindValue)
		if err != nil {
			return Envelope{}, err
		}
		v, err := et.Encode(act.Value)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode set %s: %w", act.Name, err)
		}
		return Envelope{Kind: KindSet, Payload: ir.IRArray{ir.IRString(act.Name), v}}, nil

	case Add:
		et, err := element(layout, act.Name, ir.KindCollection)
		if err != nil {
			return Envelope{}, err
		}
		items := make(ir.IRArray, len(act.Items))
		for i, it := range act.Items {
			if items[i], err = et.Encode(it); err != nil {
				return Envelope{}, fmt.Errorf("encode add %s[%d]: %w", act.Name, i, err)
			}
		}
		return Envelope{Kind: KindAdd, Payload: ir.IRArray{
			ir.IRString(act.Name), ir.IRInt(act.Index), items,
		}}, nil

	case Move:
		return Envelope{Kind: KindMove, Payload: ir.IRArray{
			ir.IRString(act.Name), ir.IRInt(act.OldIndex), ir.IRInt(act.NewIndex),
		}}, nil

	case Remove:
		return Envelope{Kind: KindRemove, Payload: ir.IRArray{
			ir.IRString(act.Name), ir.IRInt(act.Index),
		}}, nil

	case Replace:
		et, err := element(layout, act.Name, ir.KindCollection)
		if err != nil {
			return Envelope{}, err
		}
		v, err := et.Encode(act.Value)
		if err != nil {
			return Envelope{}, fmt.Errorf("encode replace %s[%d]: %w", act.Name, act.Index, err)
		}
		return Envelope{Kind: KindReplace, Payload: ir.IRArray{
			ir.IRString(act.Name), ir.IRInt(act.Index), v,
		}}, nil

	case Reset:
		return Envelope{Kind: KindReset, Payload: ir.IRArray{ir.IRString(act.Name)}}, nil

	default:
		return Envelope{}, fmt.Errorf("encode: unsupported action %T", a)
	}
}

// decodeFunc rebuilds one action kind from its positional payload.
type decodeFunc func(p ir.IRArray, layout *schema.Layout) (Action, error)

// decoders is the per-kind dispatch table used by Decode.
var decoders = map[Kind]decodeFunc{
	KindFetch:   decodeFetch,
	KindPost:    decodePost,
	KindSet:     decodeSet,
	KindAdd:     decodeAdd,
	KindMove:    decodeMove,
	KindRemove:  decodeRemove,
	KindReplace: decodeReplace,
	KindReset:   decodeReset,
}

// arity is the payload length each kind declares.
var arity = map[Kind]int{
	KindFetch:   0,
	KindPost:    1,
	KindSet:     2,
	KindAdd:     3,
	KindMove:    3,
	KindRemove:  2,
	KindReplace: 3,
	KindReset:   1,
}

// Decode rebuilds the action carried by env. Shape problems yield a
// *DecodeError; a set, add or replace naming an undeclared property, or one
// of the wrong kind, yields a *SchemaError.
func Decode(env Envelope, layout *schema.Layout) (Action, error) {
	decode, ok := decoders[env.Kind]
	if !ok {
		return nil, &DecodeError{Kind: env.Kind, Message: "unknown action kind"}
	}
	if want := arity[env.Kind]; len(env.Payload) != want {
		return nil, &DecodeError{
			Kind:    env.Kind,
			Message: fmt.Sprintf("payload has %d fields, want %d", len(env.Payload), want),
		}
	}
	return decode(env.Payload, layout)
}

func decodeFetch(ir.IRArray, *schema.Layout) (Action, error) {
	return Fetch{}, nil
}

func decodePost(p ir.IRArray, _ *schema.Layout) (Action, error) {
	snap, err := container.ParseSnapshot(p[0])
	if snap == nil && err != nil {
		return nil, &DecodeError{Kind: KindPost, Message: "entries", Err: err}
	}
	return Post{Snapshot: snap, Skipped: err}, nil
}

func decodeSet(p ir.IRArray, layout *schema.Layout) (Action, error) {
	name, err := nameField(KindSet, p)
	if err != nil {
		return nil, err
	}
	et, err := element(layout, name, ir.KindValue)
	if err != nil {
		return nil, err
	}
	v, err := et.Decode(p[1])
	if err != nil {
		return nil, &DecodeError{Kind: KindSet, Message: "value", Err: err}
	}
	return Set{Name: name, Value: v}, nil
}

func decodeAdd(p ir.IRArray, layout *schema.Layout) (Action, error) {
	name, err := nameField(KindAdd, p)
	if err != nil {
		return nil, err
	}
	index, err := intField(KindAdd, p, 1, "index")
	if err != nil {
		return nil, err
	}
	raw, ok := p[2].(ir.IRArray)
	if !ok {
		return nil, &DecodeError{Kind: KindAdd, Message: "items must be array, got " + ir.TypeName(p[2])}
	}
	et, err := element(layout, name, ir.KindCollection)
	if err != nil {
		return nil, err
	}
	items := make([]any, len(raw))
	for i, r := range raw {
		if items[i], err = et.Decode(r); err != nil {
			return nil, &DecodeError{Kind: KindAdd, Message: fmt.Sprintf("items[%d]", i), Err: err}
		}
	}
	return Add{Name: name, Index: index, Items: items}, nil
}

func decodeMove(p ir.IRArray, _ *schema.Layout) (Action, error) {
	name, err := nameField(KindMove, p)
	if err != nil {
		return nil, err
	}
	from, err := intField(KindMove, p, 1, "oldIndex")
	if err != nil {
		return nil, err
	}
	to, err := intField(KindMove, p, 2, "newIndex")
	if err != nil {
		return nil, err
	}
	return Move{Name: name, OldIndex: from, NewIndex: to}, nil
}

func decodeRemove(p ir.IRArray, _ *schema.Layout) (Action, error) {
	name, err := nameField(KindRemove, p)
	if err != nil {
		return nil, err
	}
	index, err := intField(KindRemove, p, 1, "index")
	if err != nil {
		return nil, err
	}
	return Remove{Name: name, Index: index}, nil
}

func decodeReplace(p ir.IRArray, layout *schema.Layout) (Action, error) {
	name, err := nameField(KindReplace, p)
	if err != nil {
		return nil, err
	}
	index, err := intField(KindReplace, p, 1, "index")
	if err != nil {
		return nil, err
	}
	et, err := element(layout, name, ir.KindCollection)
	if err != nil {
		return nil, err
	}
	v, err := et.Decode(p[2])
	if err != nil {
		return nil, &DecodeError{Kind: KindReplace, Message: "value", Err: err}
	}
	return Replace{Name: name, Index: index, Value: v}, nil
}

func decodeReset(p ir.IRArray, _ *schema.Layout) (Action, error) {
	name, err := nameField(KindReset, p)
	if err != nil {
		return nil, err
	}
	return Reset{Name: name}, nil
}

func nameField(kind Kind, p ir.IRArray) (string, error) {
	s, ok := p[0].(ir.IRString)
	if !ok {
		return "", &DecodeError{Kind: kind, Message: "property name must be string, got " + ir.TypeName(p[0])}
	}
	return string(s), nil
}

func intField(kind Kind, p ir.IRArray, i int, field string) (int, error) {
	n, ok := p[i].(ir.IRInt)
	if !ok {
		return 0, &DecodeError{Kind: kind, Message: field + " must be int, got " + ir.TypeName(p[i])}
	}
	return int(n), nil
}

// element resolves the element type of a property and checks its kind.
func element(layout *schema.Layout, name string, want ir.PropertyKind) (schema.ElementType, error) {
	ps, et, ok := layout.Property(name)
	if !ok {
		return nil, &SchemaError{Property: name, Message: fmt.Sprintf("not declared by %s", layout.Type())}
	}
	if ps.Kind != want {
		return nil, &SchemaError{Property: name, Message: fmt.Sprintf("is a %s, not a %s", ps.Kind, want)}
	}
	return et, nil
}
