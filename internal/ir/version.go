package ir

// Version constants for the record schema and engine.
const (
	// RecordVersion is the record schema version.
	RecordVersion = "1"

	// EngineVersion is the formula engine version.
	EngineVersion = "0.1.0"
)
