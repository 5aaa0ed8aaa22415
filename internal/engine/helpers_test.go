package engine

import (
	"io"
	"log/slog"

	"github.com/roach88/formula/internal/search"
	"github.com/roach88/formula/internal/symbols"
)

var (
	edge  = symbols.UserSymbol{Name: "Edge", Kind: symbols.ConSymb, Arity: 2}
	path  = symbols.UserSymbol{Name: "Path", Kind: symbols.ConSymb, Arity: 2}
	reach = symbols.UserSymbol{Name: "reach", Kind: symbols.MapSymb, Arity: 1}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine(opts ...Option) *Engine {
	base := []Option{WithLogger(discardLogger()), WithRunIDGenerator(NewFixedGenerator("run-1", "run-2", "run-3"))}
	return New(append(base, opts...)...)
}

func push(msg string, incs ...search.Increment) search.Push {
	return search.NewFactory().MustPush(msg, incs...)
}

func inc(sym symbols.UserSymbol, n int) search.Increment {
	return search.Increment{Symbol: sym, Count: n}
}
