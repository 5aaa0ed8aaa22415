// Package ir provides the persisted record types for formula runs and checks,
// plus the canonical JSON encoding used to give them content-addressed IDs.
//
// This package imports nothing internal. The engine, store, harness and cli
// packages convert their own values to and from these records.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
