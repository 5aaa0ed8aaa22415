package engine

import (
	"fmt"
	"slices"

	"github.com/roach88/formula/internal/ir"
	"github.com/roach88/formula/internal/search"
	"github.com/roach88/formula/internal/symbols"
)

func sortIncrements(incs []search.Increment) {
	slices.SortFunc(incs, func(a, b search.Increment) int {
		return symbols.Compare(a.Symbol, b.Symbol)
	})
}

// IncrementRecords converts increments to their persisted form, keeping order.
func IncrementRecords(incs []search.Increment) []ir.IncrementRecord {
	if len(incs) == 0 {
		return nil
	}
	out := make([]ir.IncrementRecord, len(incs))
	for i, inc := range incs {
		out[i] = ir.IncrementRecord{
			Symbol:  inc.Symbol.Name,
			Kind:    string(inc.Symbol.Kind),
			Arity:   inc.Symbol.Arity,
			AutoGen: inc.Symbol.IsAutoGen,
			Count:   inc.Count,
		}
	}
	return out
}

// CommandToRecord converts the command at position seq of a run into a
// record with its content-addressed ID.
func CommandToRecord(runID string, seq int64, cmd search.Command) (ir.CommandRecord, error) {
	rec := ir.CommandRecord{
		RunID:   runID,
		Seq:     seq,
		Kind:    string(cmd.Kind()),
		Message: cmd.Message(),
	}
	if p, ok := cmd.(search.Push); ok {
		rec.Increments = IncrementRecords(p.Increments())
	}

	id, err := ir.CommandID(rec)
	if err != nil {
		return ir.CommandRecord{}, fmt.Errorf("command %d: %w", seq, err)
	}
	rec.ID = id
	return rec, nil
}

// CommandFromRecord rebuilds a command through factory, so a stored Push is
// revalidated exactly as a fresh one would be.
func CommandFromRecord(factory *search.Factory, rec ir.CommandRecord) (search.Command, error) {
	switch search.Kind(rec.Kind) {
	case search.KindHalt:
		return factory.NewHalt(rec.Message), nil
	case search.KindPop:
		return factory.NewPop(rec.Message), nil
	case search.KindPush:
		incs := make([]search.Increment, len(rec.Increments))
		for i, r := range rec.Increments {
			incs[i] = search.Increment{
				Symbol: symbols.UserSymbol{
					Name:      r.Symbol,
					Kind:      symbols.SymbolKind(r.Kind),
					Arity:     r.Arity,
					IsAutoGen: r.AutoGen,
				},
				Count: r.Count,
			}
		}
		p, err := factory.NewPush(rec.Message, incs...)
		if err != nil {
			return nil, fmt.Errorf("command %d: %w", rec.Seq, err)
		}
		return p, nil
	default:
		return nil, &RuntimeError{
			Code:    ErrCodeInvalidCommand,
			Message: fmt.Sprintf("unknown command kind %q", rec.Kind),
			RunID:   rec.RunID,
			Seq:     rec.Seq,
		}
	}
}
