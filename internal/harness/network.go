package harness

import (
	"encoding/json"
	"log/slog"

	"github.com/roach88/starcore/internal/action"
	"github.com/roach88/starcore/internal/engine"
)

type peer struct {
	name   string
	engine *engine.Engine
}

// frame is one encoded envelope waiting for delivery.
type frame struct {
	from string
	to   string
	data []byte
}

// network is an in-memory star: the first peer is the authority and routes
// the way the hub does. Frames are JSON-encoded on send and decoded on
// delivery, and are delivered in FIFO order.
type network struct {
	peers     []*peer
	byName    map[string]*peer
	authority *peer
	queue     []frame
	result    *Result
	logger    *slog.Logger

	step       int
	origin     string
	firstError string
}

func newNetwork(result *Result, logger *slog.Logger) *network {
	return &network{
		byName: make(map[string]*peer),
		result: result,
		logger: logger,
	}
}

func (n *network) join(name string, eng *engine.Engine) {
	p := &peer{name: name, engine: eng}
	if n.authority == nil {
		n.authority = p
	}
	n.peers = append(n.peers, p)
	n.byName[name] = p
	eng.OnAction(n.outbound(p))
}

func (n *network) beginStep(i int) {
	n.step = i
	n.firstError = ""
}

// observe records a failure code for the current step; the first one wins.
func (n *network) observe(code string) {
	if n.firstError == "" {
		n.firstError = code
	}
}

// outbound routes p's actions: peers talk only to the authority; the
// authority answers a fetch to its origin and broadcasts everything else.
func (n *network) outbound(p *peer) func(engine.Outbound) {
	return func(o engine.Outbound) {
		env, err := p.engine.Encode(o.Action)
		if err != nil {
			n.logger.Error("encode outbound action", "peer", p.name, "error", err)
			n.observe(string(engine.CodeOf(err)))
			return
		}

		if p != n.authority {
			n.send(p.name, n.authority.name, env)
			return
		}
		if env.Kind == action.KindPost {
			if _, ok := n.byName[n.origin]; ok {
				n.send(p.name, n.origin, env)
			}
			return
		}
		n.broadcast(env, "")
	}
}

// broadcast sends env from the authority to every other peer except skip.
func (n *network) broadcast(env action.Envelope, skip string) {
	for _, q := range n.peers {
		if q == n.authority || q.name == skip {
			continue
		}
		n.send(n.authority.name, q.name, env)
	}
}

// send queues env for to. from need not be a peer.
func (n *network) send(from, to string, env action.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		n.logger.Error("marshal envelope", "from", from, "error", err)
		n.observe(string(engine.ErrCodeDecode))
		return
	}
	n.queue = append(n.queue, frame{from: from, to: to, data: data})
}

// drain delivers queued frames, including those raised while delivering,
// until the queue is empty.
func (n *network) drain() {
	for len(n.queue) > 0 {
		f := n.queue[0]
		n.queue = n.queue[1:]
		n.deliver(f)
	}
}

func (n *network) deliver(f frame) {
	recv := n.byName[f.to]

	var env action.Envelope
	if err := json.Unmarshal(f.data, &env); err != nil {
		n.logger.Warn("undecodable frame dropped", "from", f.from, "to", f.to, "error", err)
		n.observe(string(engine.ErrCodeDecode))
		n.result.addTrace(TraceEvent{Step: n.step, From: f.from, To: f.to, Error: string(engine.ErrCodeDecode)})
		return
	}

	if recv == n.authority {
		n.origin = f.from
	}
	err := recv.engine.HandleEnvelope(env)
	n.origin = ""

	ev := TraceEvent{
		Step:    n.step,
		From:    f.from,
		To:      f.to,
		Kind:    string(env.Kind),
		Payload: env.Payload,
	}
	if err != nil {
		ev.Error = string(engine.CodeOf(err))
		n.observe(ev.Error)
	}
	n.result.addTrace(ev)

	if recv != n.authority {
		return
	}
	switch {
	case err == nil && env.Kind != action.KindFetch:
		n.broadcast(env, f.from)
	case engine.IsPartial(err):
		// The authority kept only part of the Post; everyone takes its view.
		snap, serr := recv.engine.SnapshotEnvelope()
		if serr != nil {
			n.logger.Error("encode resync snapshot", "error", serr)
			n.observe(string(engine.CodeOf(serr)))
			return
		}
		n.broadcast(snap, "")
	}
}
