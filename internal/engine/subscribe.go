package engine

import (
	"github.com/roach88/starcore/internal/action"
	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/netprop"
)

// subscribeAll attaches one listener per declared property.
func (e *Engine) subscribeAll() {
	e.container.Each(func(ps ir.PropertySchema, p netprop.Property) {
		e.subscribe(ps.Name, p)
	})
}

// resubscribeCollections detaches and re-attaches every collection listener.
// Value listeners stay attached across a snapshot because values are
// assigned in place.
func (e *Engine) resubscribeCollections() {
	e.container.Each(func(ps ir.PropertySchema, p netprop.Property) {
		if ps.Kind != ir.KindCollection {
			return
		}
		if cancel, ok := e.detach[ps.Name]; ok {
			cancel()
		}
		e.subscribe(ps.Name, p)
	})
}

func (e *Engine) subscribe(name string, p netprop.Property) {
	switch prop := p.(type) {
	case netprop.Collection:
		e.detach[name] = prop.Watch(func(ch netprop.Change[any]) {
			e.emit(changeAction(name, ch))
		})
	case netprop.Value:
		e.detach[name] = prop.Watch(func(v any) {
			e.emit(action.Set{Name: name, Value: v})
		})
	}
}

// changeAction translates a collection notification into the action that
// replays it on a peer.
func changeAction(name string, ch netprop.Change[any]) action.Action {
	switch ch.Kind {
	case netprop.ChangeAdd:
		return action.Add{Name: name, Index: ch.NewIndex, Items: ch.NewItems}
	case netprop.ChangeRemove:
		return action.Remove{Name: name, Index: ch.OldIndex}
	case netprop.ChangeReplace:
		return action.Replace{Name: name, Index: ch.OldIndex, Value: ch.NewItems[0]}
	case netprop.ChangeMove:
		return action.Move{Name: name, OldIndex: ch.OldIndex, NewIndex: ch.NewIndex}
	default:
		return action.Reset{Name: name}
	}
}
