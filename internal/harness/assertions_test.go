package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formula/internal/engine"
	"github.com/roach88/formula/internal/search"
)

func sampleResult() *Result {
	r := NewResult()
	r.Trace = []engine.TraceEvent{
		{Seq: 1, Kind: search.KindPush, Command: `push [Edge+1] "a"`, Depth: 1},
		{Seq: 2, Kind: search.KindPush, Command: `push [Path+2] "b"`, Depth: 2},
		{Seq: 3, Kind: search.KindPop, Command: "pop", Depth: 1},
		{Seq: 4, Kind: search.KindHalt, Command: "halt", Depth: 1},
	}
	return r
}

func TestEvaluateAssertionsPass(t *testing.T) {
	errs := EvaluateAssertions(sampleResult(), []Assertion{
		{Type: AssertTraceContains, Command: "Path+2"},
		{Type: AssertTraceOrder, Kinds: []search.Kind{search.KindPush, search.KindPop, search.KindHalt}},
		{Type: AssertTraceOrder, Kinds: []search.Kind{search.KindPush, search.KindPush}},
		{Type: AssertTraceCount, Kind: search.KindPush, Count: 2},
		{Type: AssertTraceCount, Kind: search.KindPop, Count: 1},
		{Type: AssertMaxDepth, Depth: 2},
	})
	assert.NotNil(t, errs)
	assert.Empty(t, errs)
}

func TestEvaluateAssertionsFail(t *testing.T) {
	tests := []struct {
		name      string
		assertion Assertion
		msg       string
	}{
		{"contains", Assertion{Type: AssertTraceContains, Command: "Node+1"}, "not found in trace"},
		{"order", Assertion{Type: AssertTraceOrder, Kinds: []search.Kind{search.KindHalt, search.KindPop}}, "stuck at pop"},
		{"count", Assertion{Type: AssertTraceCount, Kind: search.KindHalt, Count: 2}, "halt appears 1 time(s)"},
		{"depth", Assertion{Type: AssertMaxDepth, Depth: 3}, "max depth 2"},
		{"unknown", Assertion{Type: "nope"}, "unknown assertion type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions(sampleResult(), []Assertion{tt.assertion})
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.msg)
		})
	}
}

func TestAssertionErrorIncludesTrace(t *testing.T) {
	err := assertTraceCount(sampleResult().Trace, Assertion{Kind: search.KindPop, Count: 0})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[3] pop (depth 1)")
}
