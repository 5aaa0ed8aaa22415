// Package engine implements the reference executor for search command streams.
//
// The executor interprets Halt, Pop and Push against a checkpoint stack of
// symbol budgets:
//
//	Push  checkpoint the current budget, then add the increments
//	Pop   restore the most recent checkpoint (STACK_UNDERFLOW if none)
//	Halt  terminate; any later command fails with TERMINATED
//
// ARCHITECTURE:
//
// Engine.Run drives one executor per run in a single goroutine. Every
// consumed command is stamped with a seq from a logical Clock, checked
// against a per-run step quota, optionally recorded in the store and
// reported to an observer as a TraceEvent.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Trace events are ordered by seq, never by wall-clock time.
//
// Deterministic Replay:
// A recorded run is re-executed from its stored command stream and the
// outcome (status, steps, depth, configuration hash) must match exactly.
// See Replay.
package engine
