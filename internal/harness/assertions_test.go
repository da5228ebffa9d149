package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/starcore/internal/ir"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Seq: 1, From: "a", To: "hub", Kind: "set", Payload: ir.IRArray{ir.IRString("Title"), ir.IRString("x")}},
		{Seq: 2, From: "hub", To: "b", Kind: "set", Payload: ir.IRArray{ir.IRString("Title"), ir.IRString("x")}},
		{Seq: 3, From: "m", To: "hub", Kind: "remove", Payload: ir.IRArray{ir.IRString("Scores"), ir.IRInt(4)}, Error: "INDEX_ERROR"},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceContains(trace, Assertion{Kind: "set"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Kind: "set", From: "hub", To: "b"}))
	assert.NoError(t, assertTraceContains(trace, Assertion{Kind: "remove", Payload: []any{"Scores", 4}}))

	err := assertTraceContains(trace, Assertion{Kind: "set", Payload: []any{"Title", "y"}})
	var aerr *AssertionError
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, AssertTraceContains, aerr.Type)
	assert.Contains(t, aerr.Expected, `["Title","y"]`)
	assert.Len(t, aerr.Trace, 3)
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: "set", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: "set", To: "hub", Count: 1}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Kind: "add", Count: 0}))

	err := assertTraceCount(trace, Assertion{Kind: "set", From: "a", Count: 3})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 set envelope(s) from a")
	assert.Contains(t, err.Error(), "Actual: 1")
}

func TestAssertConverged(t *testing.T) {
	result := NewResult()
	result.Digests = map[string]string{"hub": "abc", "a": "abc", "b": "def"}

	assert.NoError(t, assertConverged(result, Assertion{Peers: []string{"hub", "a"}}))
	assert.Error(t, assertConverged(result, Assertion{}))
	assert.Error(t, assertConverged(result, Assertion{Peers: []string{"nope", "a"}}))
	assert.Error(t, assertConverged(NewResult(), Assertion{}))
}

func TestAssertionErrorFormat(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1 set envelope(s)",
		Actual:   "2",
		Trace:    sampleTrace()[2:],
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, `[3] m -> hub remove ["Scores",4] (INDEX_ERROR)`)
}

func TestEvaluateAssertions_PrefixesIndex(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()

	errs := EvaluateAssertions(result, []Assertion{
		{Type: AssertTraceCount, Kind: "set", Count: 2},
		{Type: AssertTraceCount, Kind: "set", Count: 5},
		{Type: "bogus"},
	}, nil)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0], "assertions[1]:")
	assert.Contains(t, errs[1], `assertions[2]: unknown assertion type "bogus"`)
}

func TestAssertProperty_RequiresHarness(t *testing.T) {
	err := assertProperty(nil, Assertion{Type: AssertValue, Peer: "a", Property: "X"})
	assert.ErrorContains(t, err, "requires a harness")
}

func TestResultAddError(t *testing.T) {
	r := NewResult()
	assert.True(t, r.Pass)
	r.AddError("boom")
	assert.False(t, r.Pass)
	assert.Equal(t, []string{"boom"}, r.Errors)
}
