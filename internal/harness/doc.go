// Package harness runs search command scenarios end to end.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: backtrack
//	description: "What this scenario validates"
//	run_id: run-backtrack          # optional, fixed for golden traces
//	max_steps: 100                 # optional, engine default otherwise
//	symbols:
//	  - {name: Edge, kind: constructor, arity: 2}
//	commands:
//	  - push:
//	      message: seed
//	      increments:
//	        - {symbol: Edge, count: 2}
//	  - pop: "undo seed"
//	  - halt: done
//	expect:
//	  status: halted               # halted | exhausted | failed
//	  steps: 3
//	  depth: 0
//	  error: STACK_UNDERFLOW       # runtime error code, failed runs only
//	  budget: {Edge: 2}            # exact final budget by symbol name
//	assertions:
//	  - type: trace_order
//	    kinds: [push, pop, halt]
//
// A scenario may instead expect one of its commands to be rejected by the
// command factory with `expect.build_error`; it is then never executed.
//
// # Assertion Types
//
//   - trace_contains: some trace event's command text contains Command
//   - trace_order: the listed kinds occur in this order (gaps allowed)
//   - trace_count: Kind occurs exactly Count times
//   - max_depth: the deepest checkpoint stack reached equals Depth
//
// # Deterministic Testing
//
// Every scenario runs in a fresh in-memory store with a deterministic
// clock (testutil.DeterministicClock) and a fixed run ID. Each recorded
// run is then replayed from the store and must reproduce its outcome.
// This ensures identical traces across runs for golden file comparison.
package harness
