package netprop

// listeners is an ordered set of callbacks with stable unsubscribe handles.
type listeners[F any] struct {
	next  int
	items []listener[F]
}

type listener[F any] struct {
	id int
	fn F
}

func (l *listeners[F]) add(fn F) func() {
	l.next++
	id := l.next
	l.items = append(l.items, listener[F]{id: id, fn: fn})
	return func() { l.remove(id) }
}

func (l *listeners[F]) remove(id int) {
	for i, it := range l.items {
		if it.id == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return
		}
	}
}

// snapshot returns the callbacks registered right now, so a callback may
// unsubscribe itself during dispatch.
func (l *listeners[F]) snapshot() []F {
	out := make([]F, len(l.items))
	for i, it := range l.items {
		out[i] = it.fn
	}
	return out
}

func (l *listeners[F]) len() int {
	return len(l.items)
}

// guard is the suppression flag behind Suppress.
type guard struct {
	active bool
}

// acquire enters the suppressed scope. The returned release is idempotent and
// is a no-op when the guard was already held by an outer scope.
func (g *guard) acquire() func() {
	if g.active {
		return func() {}
	}
	g.active = true
	released := false
	return func() {
		if released {
			return
		}
		released = true
		g.active = false
	}
}
