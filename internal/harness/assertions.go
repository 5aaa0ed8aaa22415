package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/formula/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string              // Assertion type for categorization
	Expected string              // Human-readable expected outcome
	Actual   string              // Human-readable actual outcome
	Trace    []engine.TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s (depth %d)\n", ev.Seq, ev.Command, ev.Depth)
	}
	return buf.String()
}

// assertTraceContains checks that some event's command text contains the
// assertion's Command.
func assertTraceContains(trace []engine.TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if strings.Contains(ev.Command, a.Command) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("command containing %q", a.Command),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the kinds appear in the specified order.
// Kinds don't need to be consecutive (intervening commands are allowed).
func assertTraceOrder(trace []engine.TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Kinds) && ev.Kind == a.Kinds[next] {
			next++
		}
	}
	if next == len(a.Kinds) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("kinds in order: %v", a.Kinds),
		Actual:   fmt.Sprintf("matched %d of %d, stuck at %s", next, len(a.Kinds), a.Kinds[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that the kind appears exactly Count times.
func assertTraceCount(trace []engine.TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Kind == a.Kind {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%s appears %d time(s)", a.Kind, a.Count),
		Actual:   fmt.Sprintf("%s appears %d time(s)", a.Kind, count),
		Trace:    trace,
	}
}

func assertMaxDepth(result *Result, a Assertion) error {
	if got := result.MaxDepth(); got != a.Depth {
		return &AssertionError{
			Type:     AssertMaxDepth,
			Expected: fmt.Sprintf("max depth %d", a.Depth),
			Actual:   fmt.Sprintf("max depth %d", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// EvaluateAssertions runs all assertions and returns error messages.
// Returns an empty slice if all assertions pass.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	errs := []string{}
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertMaxDepth:
			err = assertMaxDepth(result, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
