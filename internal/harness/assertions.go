package harness

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/starcore/internal/ir"
	"github.com/roach88/starcore/internal/netprop"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			payload, _ := ir.MarshalCanonical(ev.Payload)
			fmt.Fprintf(&buf, "  [%d] %s -> %s %s %s", ev.Seq, ev.From, ev.To, ev.Kind, payload)
			if ev.Error != "" {
				fmt.Fprintf(&buf, " (%s)", ev.Error)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// AssertionContext gives state assertions access to the peers of a run.
type AssertionContext struct {
	Harness *Harness
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertConverged:
			err = assertConverged(result, a)
		case AssertValue, AssertItems:
			err = assertProperty(actx, a)
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertConverged checks that the listed peers (default all) share one
// container digest.
func assertConverged(result *Result, a Assertion) error {
	peers := a.Peers
	if len(peers) == 0 {
		for name := range result.Digests {
			peers = append(peers, name)
		}
		sort.Strings(peers)
	}
	if len(peers) == 0 {
		return &AssertionError{Type: AssertConverged, Expected: "peer digests", Actual: "none recorded"}
	}

	want, ok := result.Digests[peers[0]]
	if !ok {
		return &AssertionError{Type: AssertConverged, Expected: "digest for " + peers[0], Actual: "none recorded"}
	}
	for _, p := range peers[1:] {
		if got := result.Digests[p]; got != want {
			return &AssertionError{
				Type:     AssertConverged,
				Expected: fmt.Sprintf("%s digest %s", p, short(want)),
				Actual:   short(got),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

func short(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

// assertProperty compares a property's encoded state with the expected
// YAML value. Both sides go through the element codec, so equal values
// compare equal regardless of how YAML typed them.
func assertProperty(actx *AssertionContext, a Assertion) error {
	if actx == nil || actx.Harness == nil {
		return fmt.Errorf("%s assertion requires a harness", a.Type)
	}
	h := actx.Harness
	p, ok := h.net.byName[a.Peer]
	if !ok {
		return fmt.Errorf("unknown peer %q", a.Peer)
	}
	_, et, ok := h.layout.Property(a.Property)
	if !ok {
		return fmt.Errorf("no property %q in %s", a.Property, h.layout.Type())
	}
	prop, _ := p.engine.Container().Property(a.Property)

	var actual, expected ir.IRValue
	switch a.Type {
	case AssertValue:
		v, ok := prop.(netprop.Value)
		if !ok {
			return fmt.Errorf("%s is not a value property", a.Property)
		}
		enc, err := et.Encode(v.Load())
		if err != nil {
			return err
		}
		actual = enc

		want, err := decodeElement(et, a.Equals)
		if err != nil {
			return fmt.Errorf("equals: %w", err)
		}
		if expected, err = et.Encode(want); err != nil {
			return err
		}

	case AssertItems:
		coll, ok := prop.(netprop.Collection)
		if !ok {
			return fmt.Errorf("%s is not a collection property", a.Property)
		}
		got := ir.IRArray{}
		for _, item := range coll.Elements() {
			enc, err := et.Encode(item)
			if err != nil {
				return err
			}
			got = append(got, enc)
		}
		actual = got

		raw, ok := a.Equals.([]any)
		if !ok && a.Equals != nil {
			return fmt.Errorf("equals must be a list for items")
		}
		want := ir.IRArray{}
		for i, r := range raw {
			dec, err := decodeElement(et, r)
			if err != nil {
				return fmt.Errorf("equals[%d]: %w", i, err)
			}
			enc, err := et.Encode(dec)
			if err != nil {
				return err
			}
			want = append(want, enc)
		}
		expected = want
	}

	if !irEqual(actual, expected) {
		got, _ := ir.MarshalCanonical(actual)
		want, _ := ir.MarshalCanonical(expected)
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s.%s = %s", a.Peer, a.Property, want),
			Actual:   string(got),
		}
	}
	return nil
}

// assertTraceContains checks that some delivered envelope matches the
// assertion's kind, endpoints and payload.
func assertTraceContains(trace []TraceEvent, a Assertion) error {
	var want ir.IRValue
	if a.Payload != nil {
		var err error
		if want, err = ir.FromGo(a.Payload); err != nil {
			return fmt.Errorf("payload: %w", err)
		}
	}

	for _, ev := range trace {
		if !matchEvent(ev, a) {
			continue
		}
		if want == nil || irEqual(ev.Payload, want) {
			return nil
		}
	}

	expected := fmt.Sprintf("%s envelope%s", a.Kind, endpoints(a))
	if want != nil {
		payload, _ := ir.MarshalCanonical(want)
		expected += " with payload " + string(payload)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceCount checks that exactly Count delivered envelopes match.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if matchEvent(ev, a) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d %s envelope(s)%s", a.Count, a.Kind, endpoints(a)),
			Actual:   fmt.Sprintf("%d", count),
			Trace:    trace,
		}
	}
	return nil
}

func matchEvent(ev TraceEvent, a Assertion) bool {
	if ev.Kind != a.Kind {
		return false
	}
	if a.From != "" && ev.From != a.From {
		return false
	}
	if a.To != "" && ev.To != a.To {
		return false
	}
	return true
}

func endpoints(a Assertion) string {
	var s string
	if a.From != "" {
		s += " from " + a.From
	}
	if a.To != "" {
		s += " to " + a.To
	}
	return s
}

// irEqual compares two literal trees by their canonical encoding.
func irEqual(a, b ir.IRValue) bool {
	ja, errA := ir.MarshalCanonical(a)
	jb, errB := ir.MarshalCanonical(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}
