package ir

// RunStatus is the lifecycle state of a recorded run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunHalted    RunStatus = "halted"    // stream ended with Halt
	RunExhausted RunStatus = "exhausted" // stream ended without Halt
	RunFailed    RunStatus = "failed"    // executor returned a runtime error
)

// IncrementRecord is one symbol budget entry. It is used both for Push
// increments and for configuration snapshots.
type IncrementRecord struct {
	Symbol  string `json:"symbol"`
	Kind    string `json:"kind"`
	Arity   int    `json:"arity"`
	AutoGen bool   `json:"auto_gen,omitempty"`
	Count   int    `json:"count"`
}

// CommandRecord is a search command as persisted in a run.
type CommandRecord struct {
	ID         string            `json:"id"` // content-addressed, see CommandID
	RunID      string            `json:"run_id"`
	Seq        int64             `json:"seq"` // position in the stream, from 1
	Kind       string            `json:"kind"`
	Message    string            `json:"message"`
	Increments []IncrementRecord `json:"increments,omitempty"`
}

// RunRecord describes a recorded run.
type RunRecord struct {
	ID            string    `json:"id"`
	Scenario      string    `json:"scenario"`
	MaxSteps      int       `json:"max_steps"`
	Status        RunStatus `json:"status"`
	EngineVersion string    `json:"engine_version"`
}

// OutcomeRecord is the final state of a run.
type OutcomeRecord struct {
	RunID        string    `json:"run_id"`
	Status       RunStatus `json:"status"`
	Steps        int64     `json:"steps"`
	Depth        int       `json:"depth"`
	ConfigHash   string    `json:"config_hash"`
	ErrorCode    string    `json:"error_code,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
}

// DiagnosticRecord is one finding of a static check.
type DiagnosticRecord struct {
	ID      string `json:"id"` // content-addressed, see DiagnosticID
	Module  string `json:"module"`
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}
