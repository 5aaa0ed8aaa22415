// Package search defines the control commands that steer an incremental,
// checkpointable search over symbol instantiations.
//
// A command stream is a sequence of Push, Pop and Halt values:
//
//   - Push records a checkpoint of the current search configuration and then
//     grants each named symbol additional instantiation budget.
//   - Pop restores the configuration captured by the most recent unmatched
//     Push. A Pop with no outstanding Push is a fatal control error that the
//     executor must detect; commands themselves are stateless.
//   - Halt ends exploration. Nothing after a Halt is processed.
//
// Commands are built only through a Factory, which validates Push increments.
// Once built, commands are immutable and safe to share between goroutines.
package search

import (
	"fmt"
	"strings"

	"github.com/roach88/formula/internal/symbols"
)

// Kind names a command variant.
type Kind string

const (
	KindHalt Kind = "halt"
	KindPop  Kind = "pop"
	KindPush Kind = "push"
)

// Command is a search control primitive.
//
// This is a sealed interface - only Halt, Pop and Push implement it.
type Command interface {
	Kind() Kind
	Message() string
	fmt.Stringer
	command()
}

// Increment grants Count additional instances of Symbol.
type Increment struct {
	Symbol symbols.UserSymbol `json:"symbol" yaml:"symbol"`
	Count  int                `json:"count" yaml:"count"`
}

func (i Increment) String() string {
	return fmt.Sprintf("%s+%d", i.Symbol.Name, i.Count)
}

// Halt stops exploration.
type Halt struct {
	message string
}

func (Halt) command()          {}
func (Halt) Kind() Kind        { return KindHalt }
func (h Halt) Message() string { return h.message }

func (h Halt) String() string {
	return formatCommand(KindHalt, h.message, "")
}

// Pop restores the most recent checkpoint.
type Pop struct {
	message string
}

func (Pop) command()          {}
func (Pop) Kind() Kind        { return KindPop }
func (p Pop) Message() string { return p.message }

func (p Pop) String() string {
	return formatCommand(KindPop, p.message, "")
}

// Push checkpoints the configuration and extends symbol budgets.
type Push struct {
	message    string
	increments []Increment // aggregated, Compare order, counts > 0
}

func (Push) command()          {}
func (Push) Kind() Kind        { return KindPush }
func (p Push) Message() string { return p.message }

// Increments returns the aggregated increments ordered by symbols.Compare.
// Every count is positive. The returned slice is a copy.
func (p Push) Increments() []Increment {
	out := make([]Increment, len(p.increments))
	copy(out, p.increments)
	return out
}

// Count returns the aggregated increment for sym, or 0 if none.
func (p Push) Count(sym symbols.UserSymbol) int {
	sym = symbols.Normalize(sym)
	for _, inc := range p.increments {
		if symbols.Compare(inc.Symbol, sym) == 0 {
			return inc.Count
		}
	}
	return 0
}

// Len returns the number of distinct symbols granted budget.
func (p Push) Len() int {
	return len(p.increments)
}

func (p Push) String() string {
	parts := make([]string, len(p.increments))
	for i, inc := range p.increments {
		parts[i] = inc.String()
	}
	return formatCommand(KindPush, p.message, strings.Join(parts, " "))
}

func formatCommand(kind Kind, message, detail string) string {
	var b strings.Builder
	b.WriteString(string(kind))
	if detail != "" {
		b.WriteString(" [")
		b.WriteString(detail)
		b.WriteString("]")
	}
	if message != "" {
		fmt.Fprintf(&b, " %q", message)
	}
	return b.String()
}
