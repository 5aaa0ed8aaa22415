package search

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"slices"

	"github.com/roach88/formula/internal/symbols"
)

var (
	// ErrInvalidIncrementTarget is matched by every InvalidIncrementTargetError.
	ErrInvalidIncrementTarget = errors.New("invalid increment target")

	// ErrNegativeIncrement is returned for an increment with a negative count.
	ErrNegativeIncrement = errors.New("negative increment")

	// ErrUndeclaredSymbol is returned when a Factory built WithSymbols sees a
	// symbol that its table does not declare, or declares differently.
	ErrUndeclaredSymbol = errors.New("undeclared symbol")

	// ErrIncrementOverflow is returned when the counts for one symbol sum
	// past math.MaxInt.
	ErrIncrementOverflow = errors.New("increment overflow")
)

// InvalidIncrementTargetError reports a Push increment on a symbol the search
// executor cannot instantiate. It signals a caller bug, not a search outcome.
type InvalidIncrementTargetError struct {
	Symbol symbols.UserSymbol
}

func (e *InvalidIncrementTargetError) Error() string {
	return fmt.Sprintf("invalid increment target %s: kind %s is not a constructor or map",
		e.Symbol.Name, e.Symbol.Kind)
}

// Is makes errors.Is(err, ErrInvalidIncrementTarget) hold.
func (e *InvalidIncrementTargetError) Is(target error) bool {
	return target == ErrInvalidIncrementTarget
}

// Factory is the single entry point for building commands.
type Factory struct {
	table  symbols.SymbolTable
	logger *slog.Logger
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithSymbols makes NewPush reject symbols that table does not declare.
func WithSymbols(table symbols.SymbolTable) FactoryOption {
	return func(f *Factory) {
		f.table = table
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// NewFactory creates a Factory.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewHalt builds a Halt.
func (f *Factory) NewHalt(message string) Halt {
	return Halt{message: message}
}

// NewPop builds a Pop. The executor checks that a Push is outstanding.
func (f *Factory) NewPop(message string) Pop {
	return Pop{message: message}
}

// NewPush builds a Push from an unordered list of increments.
//
// Increments for the same symbol are summed, symbols whose total is zero are
// dropped, and the result is ordered by symbols.Compare. Every symbol must be a
// constructor or map symbol; otherwise NewPush returns an
// *InvalidIncrementTargetError and no command.
func (f *Factory) NewPush(message string, incs ...Increment) (Push, error) {
	staged := make([]Increment, 0, len(incs))
	for _, inc := range incs {
		sym := symbols.Normalize(inc.Symbol)
		if !sym.Instantiable() {
			return Push{}, &InvalidIncrementTargetError{Symbol: sym}
		}
		if inc.Count < 0 {
			return Push{}, fmt.Errorf("%w: %s%d", ErrNegativeIncrement, sym.Name, inc.Count)
		}
		if f.table != nil {
			declared, ok := f.table.TryGetSymbol(sym.Name)
			if !ok || symbols.Compare(symbols.Normalize(declared), sym) != 0 {
				return Push{}, fmt.Errorf("%w: %s", ErrUndeclaredSymbol, sym)
			}
		}
		staged = append(staged, Increment{Symbol: sym, Count: inc.Count})
	}

	increments, err := aggregate(staged)
	if err != nil {
		return Push{}, err
	}
	p := Push{message: message, increments: increments}
	f.logger.Debug("push built",
		"message", message,
		"inputs", len(incs),
		"symbols", len(p.increments),
	)
	return p, nil
}

// MustPush is NewPush for fixed inputs. It panics on error.
func (f *Factory) MustPush(message string, incs ...Increment) Push {
	p, err := f.NewPush(message, incs...)
	if err != nil {
		panic(err)
	}
	return p
}

// aggregate sums runs of equal symbols and drops zero totals. Counts must
// already be non-negative.
func aggregate(incs []Increment) ([]Increment, error) {
	slices.SortStableFunc(incs, func(a, b Increment) int {
		return symbols.Compare(a.Symbol, b.Symbol)
	})

	out := make([]Increment, 0, len(incs))
	for i := 0; i < len(incs); {
		total := Increment{Symbol: incs[i].Symbol}
		for ; i < len(incs) && symbols.Compare(incs[i].Symbol, total.Symbol) == 0; i++ {
			if total.Count > math.MaxInt-incs[i].Count {
				return nil, fmt.Errorf("%w: %s", ErrIncrementOverflow, total.Symbol.Name)
			}
			total.Count += incs[i].Count
		}
		if total.Count > 0 {
			out = append(out, total)
		}
	}
	return out, nil
}
