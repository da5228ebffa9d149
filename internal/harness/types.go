package harness

import "github.com/roach88/starcore/internal/ir"

// TraceEvent is one envelope delivered over the loopback network.
type TraceEvent struct {
	Seq     int64      `json:"seq"`
	Step    int        `json:"step"`
	From    string     `json:"from"`
	To      string     `json:"to"`
	Kind    string     `json:"kind"`
	Payload ir.IRArray `json:"payload"`
	// Error is the rejection code when the receiver refused the envelope.
	Error string `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step and assertion held.
	Pass bool `json:"pass"`

	// Trace holds every delivered envelope in delivery order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains step and assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Digests maps each peer to the digest of its final container state.
	Digests map[string]string `json:"digests,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Digests: make(map[string]string),
	}
}

// AddError adds a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) addTrace(ev TraceEvent) {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
}
