package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/formula/internal/ir"
	"github.com/roach88/formula/internal/search"
	"github.com/roach88/formula/internal/symbols"
)

// Scenario defines one command stream and what its run must produce.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// RunID is the fixed run ID. Defaults to testutil.DefaultRunID.
	RunID string `yaml:"run_id,omitempty"`

	// MaxSteps overrides the engine step quota when positive.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Symbols declares every symbol the commands may reference.
	Symbols []symbols.UserSymbol `yaml:"symbols"`

	// Commands is the stream, in order.
	Commands []CommandStep `yaml:"commands"`

	Expect Expect `yaml:"expect"`

	// Assertions validate the trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// CommandStep holds exactly one of push, pop or halt.
type CommandStep struct {
	Push *PushStep `yaml:"push,omitempty"`
	Pop  *string   `yaml:"pop,omitempty"`  // message
	Halt *string   `yaml:"halt,omitempty"` // message
}

// PushStep is an unaggregated Push. Increments may repeat symbols and
// appear in any order.
type PushStep struct {
	Message    string          `yaml:"message"`
	Increments []IncrementStep `yaml:"increments"`
}

// IncrementStep references a declared symbol by name.
type IncrementStep struct {
	Symbol string `yaml:"symbol"`
	Count  int    `yaml:"count"`
}

// Expect describes the required outcome. Unset optional fields are not checked.
type Expect struct {
	Status     ir.RunStatus   `yaml:"status,omitempty"`
	Steps      *int64         `yaml:"steps,omitempty"`
	Depth      *int           `yaml:"depth,omitempty"`
	Error      string         `yaml:"error,omitempty"`
	Budget     map[string]int `yaml:"budget,omitempty"`
	BuildError string         `yaml:"build_error,omitempty"` // substring of the factory error
}

// Assertion validates the trace.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": Command appears in some event's command text
	// - "trace_order": Kinds appear in order
	// - "trace_count": Kind appears exactly Count times
	// - "max_depth": the deepest checkpoint stack equals Depth
	Type string `yaml:"type"`

	Command string        `yaml:"command,omitempty"`
	Kind    search.Kind   `yaml:"kind,omitempty"`
	Kinds   []search.Kind `yaml:"kinds,omitempty"`
	Count   int           `yaml:"count,omitempty"`
	Depth   int           `yaml:"depth,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertMaxDepth      = "max_depth"
)

// ErrInvalidScenario is wrapped by every scenario validation failure.
var ErrInvalidScenario = errors.New("invalid scenario")

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScenario, err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must not be negative")
	}

	for i, sym := range s.Symbols {
		if sym.Name == "" {
			return fmt.Errorf("symbols[%d]: name is required", i)
		}
		if !symbols.ValidKinds[sym.Kind] {
			return fmt.Errorf("symbols[%d]: unknown kind %q", i, sym.Kind)
		}
	}

	for i, step := range s.Commands {
		set := 0
		for _, present := range []bool{step.Push != nil, step.Pop != nil, step.Halt != nil} {
			if present {
				set++
			}
		}
		if set != 1 {
			return fmt.Errorf("commands[%d]: exactly one of push, pop or halt is required", i)
		}
	}

	switch s.Expect.Status {
	case "":
		if s.Expect.BuildError == "" {
			return fmt.Errorf("expect.status or expect.build_error is required")
		}
	case ir.RunHalted, ir.RunExhausted, ir.RunFailed:
		if s.Expect.BuildError != "" {
			return fmt.Errorf("expect.status and expect.build_error are exclusive")
		}
	default:
		return fmt.Errorf("expect.status: unknown status %q", s.Expect.Status)
	}
	if s.Expect.Error != "" && s.Expect.Status != ir.RunFailed {
		return fmt.Errorf("expect.error requires status %q", ir.RunFailed)
	}

	for i, a := range s.Assertions {
		switch a.Type {
		case AssertTraceContains:
			if a.Command == "" {
				return fmt.Errorf("assertions[%d]: command is required", i)
			}
		case AssertTraceOrder:
			if len(a.Kinds) == 0 {
				return fmt.Errorf("assertions[%d]: kinds is required", i)
			}
		case AssertTraceCount:
			if a.Kind == "" {
				return fmt.Errorf("assertions[%d]: kind is required", i)
			}
		case AssertMaxDepth:
		default:
			return fmt.Errorf("assertions[%d]: unknown type %q", i, a.Type)
		}
	}
	return nil
}

// SymbolTable builds the scenario's declared symbols into a table.
func (s *Scenario) SymbolTable() (*symbols.Table, error) {
	return symbols.NewTable(s.Symbols...)
}

// BuildCommands turns the steps into commands through factory, resolving
// symbol names against table. The first rejected step stops the build.
func (s *Scenario) BuildCommands(factory *search.Factory, table symbols.SymbolTable) ([]search.Command, error) {
	cmds := make([]search.Command, 0, len(s.Commands))
	for i, step := range s.Commands {
		switch {
		case step.Halt != nil:
			cmds = append(cmds, factory.NewHalt(*step.Halt))
		case step.Pop != nil:
			cmds = append(cmds, factory.NewPop(*step.Pop))
		case step.Push != nil:
			incs := make([]search.Increment, 0, len(step.Push.Increments))
			for _, is := range step.Push.Increments {
				sym, ok := table.TryGetSymbol(is.Symbol)
				if !ok {
					return nil, fmt.Errorf("commands[%d].push: %w: %s", i, search.ErrUndeclaredSymbol, is.Symbol)
				}
				incs = append(incs, search.Increment{Symbol: sym, Count: is.Count})
			}
			p, err := factory.NewPush(step.Push.Message, incs...)
			if err != nil {
				return nil, fmt.Errorf("commands[%d].push: %w", i, err)
			}
			cmds = append(cmds, p)
		}
	}
	return cmds, nil
}
