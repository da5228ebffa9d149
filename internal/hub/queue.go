package hub

import (
	"sync"

	"github.com/roach88/starcore/internal/wire"
)

// eventType distinguishes hub events.
type eventType int

const (
	// eventJoin registers an upgraded connection.
	eventJoin eventType = iota + 1
	// eventLeave drops a connection after its read pump exits.
	eventLeave
	// eventFrame carries one decoded inbound frame.
	eventFrame
	// eventCall runs a server-side function on the loop.
	eventCall
)

func (t eventType) String() string {
	switch t {
	case eventJoin:
		return "join"
	case eventLeave:
		return "leave"
	case eventFrame:
		return "frame"
	case eventCall:
		return "call"
	default:
		return "unknown"
	}
}

// event is one unit of work for the Run loop.
type event struct {
	Type  eventType
	Conn  *conn
	Frame wire.Message
	Call  func() error
	Done  chan error
}

// eventQueue is an unbounded FIFO of hub events.
//
// Pumps and HTTP handlers enqueue from any goroutine; only Run dequeues.
// signal is buffered with size 1 so bursts of Enqueue coalesce into one
// wake-up, and is closed by Close to release the waiter.
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends e. It returns false once the queue is closed.
func (q *eventQueue) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event{}, false
	}

	e := q.events[0]
	// Clear the slot so the connection and frame can be collected.
	q.events[0] = event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns the channel signalled when events may be available.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close rejects further events and wakes the waiter.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
