package search

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formula/internal/symbols"
)

var (
	symA    = symbols.UserSymbol{Name: "A", Kind: symbols.ConSymb, Arity: 1}
	symB    = symbols.UserSymbol{Name: "B", Kind: symbols.MapSymb, Arity: 2}
	symC    = symbols.UserSymbol{Name: "C", Kind: symbols.ConSymb}
	symUnn  = symbols.UserSymbol{Name: "U", Kind: symbols.UnnSymb}
	symBase = symbols.UserSymbol{Name: "Integer", Kind: symbols.BaseSymb}
)

func TestNewPushAggregates(t *testing.T) {
	f := NewFactory()

	p, err := f.NewPush("widen", Increment{symA, 2}, Increment{symB, 0}, Increment{symA, 3})
	require.NoError(t, err)

	assert.Equal(t, []Increment{{Symbol: symA, Count: 5}}, p.Increments())
	assert.Equal(t, 5, p.Count(symA))
	assert.Equal(t, 0, p.Count(symB), "zero totals are dropped")
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, "widen", p.Message())
	assert.Equal(t, KindPush, p.Kind())
}

func TestNewPushOrdersBySymbol(t *testing.T) {
	f := NewFactory()

	p, err := f.NewPush("", Increment{symC, 1}, Increment{symB, 4}, Increment{symA, 1}, Increment{symC, 2})
	require.NoError(t, err)

	assert.Equal(t, []Increment{
		{Symbol: symA, Count: 1},
		{Symbol: symB, Count: 4},
		{Symbol: symC, Count: 3},
	}, p.Increments())
}

func TestNewPushOrderIndependent(t *testing.T) {
	f := NewFactory()
	incs := []Increment{{symC, 1}, {symB, 4}, {symA, 1}, {symC, 2}, {symA, 0}}

	first := f.MustPush("", incs...)
	reversed := make([]Increment, len(incs))
	for i, inc := range incs {
		reversed[len(incs)-1-i] = inc
	}
	assert.Equal(t, first.Increments(), f.MustPush("", reversed...).Increments())
}

func TestNewPushSameNameDifferentKindsStayApart(t *testing.T) {
	f := NewFactory()
	asMap := symbols.UserSymbol{Name: "A", Kind: symbols.MapSymb, Arity: 1}

	p := f.MustPush("", Increment{asMap, 1}, Increment{symA, 1})
	require.Equal(t, 2, p.Len())
	assert.Equal(t, symbols.ConSymb, p.Increments()[0].Symbol.Kind)
}

func TestNewPushNormalizesNames(t *testing.T) {
	f := NewFactory()
	composed := symbols.UserSymbol{Name: "caf\u00e9", Kind: symbols.ConSymb}
	decomposed := symbols.UserSymbol{Name: "cafe\u0301", Kind: symbols.ConSymb}

	p := f.MustPush("", Increment{composed, 1}, Increment{decomposed, 2})
	require.Equal(t, 1, p.Len())
	assert.Equal(t, 3, p.Count(decomposed))
}

func TestNewPushRejectsIneligibleKinds(t *testing.T) {
	f := NewFactory()

	for _, sym := range []symbols.UserSymbol{symUnn, symBase, {Name: "K", Kind: symbols.ConstSymb}} {
		t.Run(string(sym.Kind), func(t *testing.T) {
			p, err := f.NewPush("bad", Increment{symA, 1}, Increment{sym, 1})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidIncrementTarget))

			var target *InvalidIncrementTargetError
			require.ErrorAs(t, err, &target)
			assert.Equal(t, sym.Name, target.Symbol.Name)
			assert.Equal(t, Push{}, p, "no command on failure")
		})
	}
}

func TestNewPushRejectsIneligibleKindWithZeroCount(t *testing.T) {
	_, err := NewFactory().NewPush("", Increment{symUnn, 0})
	assert.ErrorIs(t, err, ErrInvalidIncrementTarget)
}

func TestNewPushRejectsNegativeCounts(t *testing.T) {
	_, err := NewFactory().NewPush("", Increment{symA, 3}, Increment{symA, -1})
	assert.ErrorIs(t, err, ErrNegativeIncrement)
	assert.False(t, errors.Is(err, ErrInvalidIncrementTarget))
}

func TestNewPushRejectsOverflow(t *testing.T) {
	f := NewFactory()

	_, err := f.NewPush("big", Increment{symA, math.MaxInt}, Increment{symA, 1})
	assert.ErrorIs(t, err, ErrIncrementOverflow)

	_, err = f.NewPush("big", Increment{symB, math.MaxInt}, Increment{symB, math.MaxInt}, Increment{symB, 2})
	assert.ErrorIs(t, err, ErrIncrementOverflow)

	p, err := f.NewPush("edge", Increment{symA, math.MaxInt - 1}, Increment{symA, 1}, Increment{symB, 0})
	require.NoError(t, err)
	assert.Equal(t, math.MaxInt, p.Count(symA))
}

func TestNewPushWithSymbols(t *testing.T) {
	table := symbols.MustTable(symA, symB)
	f := NewFactory(WithSymbols(table))

	_, err := f.NewPush("", Increment{symA, 1}, Increment{symB, 1})
	require.NoError(t, err)

	_, err = f.NewPush("", Increment{symC, 1})
	assert.ErrorIs(t, err, ErrUndeclaredSymbol)

	wrongArity := symA
	wrongArity.Arity = 3
	_, err = f.NewPush("", Increment{wrongArity, 1})
	assert.ErrorIs(t, err, ErrUndeclaredSymbol)
}

func TestNewPushEmpty(t *testing.T) {
	p, err := NewFactory().NewPush("checkpoint only")
	require.NoError(t, err)
	assert.Empty(t, p.Increments())
	assert.NotNil(t, p.Increments())
}

func TestPushIncrementsIsACopy(t *testing.T) {
	p := NewFactory().MustPush("", Increment{symA, 1})
	incs := p.Increments()
	incs[0].Count = 99

	assert.Equal(t, 1, p.Count(symA))
}

func TestMustPushPanics(t *testing.T) {
	assert.Panics(t, func() { NewFactory().MustPush("", Increment{symUnn, 1}) })
}

func TestFactoryLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	f := NewFactory(WithLogger(logger))

	f.MustPush("grow", Increment{symA, 1}, Increment{symA, 1})
	assert.Contains(t, buf.String(), "push built")
	assert.Contains(t, buf.String(), "symbols=1")
}

func TestHaltAndPop(t *testing.T) {
	f := NewFactory()

	h := f.NewHalt("done")
	assert.Equal(t, KindHalt, h.Kind())
	assert.Equal(t, "done", h.Message())

	p := f.NewPop("")
	assert.Equal(t, KindPop, p.Kind())
	assert.Empty(t, p.Message())

	var cmds []Command = []Command{h, p, f.MustPush("", Increment{symA, 2})}
	assert.Len(t, cmds, 3)
}

func TestCommandStrings(t *testing.T) {
	f := NewFactory()

	assert.Equal(t, `halt "done"`, f.NewHalt("done").String())
	assert.Equal(t, "pop", f.NewPop("").String())
	assert.Equal(t, `push [A+2 B+1] "grow"`,
		f.MustPush("grow", Increment{symB, 1}, Increment{symA, 2}).String())
}
