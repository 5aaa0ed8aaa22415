package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/formula/internal/search"
	"github.com/roach88/formula/internal/symbols"
)

func TestCommandRecordRoundTrip(t *testing.T) {
	f := search.NewFactory()
	aux := symbols.UserSymbol{Name: "Edge.Aux", Kind: symbols.ConSymb, Arity: 1, IsAutoGen: true}
	cmds := []search.Command{
		push("grow", inc(edge, 2), inc(aux, 1)),
		f.NewPop("undo"),
		f.NewHalt("stop"),
	}

	for i, cmd := range cmds {
		rec, err := CommandToRecord("run-1", int64(i+1), cmd)
		require.NoError(t, err)
		assert.Len(t, rec.ID, 64)
		assert.Equal(t, string(cmd.Kind()), rec.Kind)

		back, err := CommandFromRecord(f, rec)
		require.NoError(t, err)
		assert.Equal(t, cmd, back)
	}
}

func TestCommandFromRecordRevalidates(t *testing.T) {
	f := search.NewFactory()
	rec, err := CommandToRecord("run-1", 1, push("a", inc(edge, 1)))
	require.NoError(t, err)

	rec.Increments[0].Kind = string(symbols.UnnSymb)
	_, err = CommandFromRecord(f, rec)
	assert.ErrorIs(t, err, search.ErrInvalidIncrementTarget)

	rec.Kind = "jump"
	_, err = CommandFromRecord(f, rec)
	assert.Equal(t, ErrCodeInvalidCommand, ErrorCode(err))
}

func TestIncrementRecordsEmpty(t *testing.T) {
	assert.Nil(t, IncrementRecords(nil))
}
