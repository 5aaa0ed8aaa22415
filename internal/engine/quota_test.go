package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaEnforcer_WithinLimit(t *testing.T) {
	q := NewQuotaEnforcer(10)
	for i := 0; i < 10; i++ {
		assert.NoError(t, q.Check("run-1"), "step %d should be allowed", i+1)
	}
	assert.Equal(t, 10, q.Current())
	assert.Equal(t, 10, q.MaxSteps())
}

func TestQuotaEnforcer_ExceedsLimit(t *testing.T) {
	q := NewQuotaEnforcer(5)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Check("run-1"))
	}

	err := q.Check("run-1")
	require.Error(t, err)

	var stepsErr *StepsExceededError
	require.ErrorAs(t, err, &stepsErr)
	assert.Equal(t, "run-1", stepsErr.RunID)
	assert.Equal(t, 6, stepsErr.Steps)
	assert.Equal(t, 5, stepsErr.Limit)
	assert.True(t, IsStepsExceededError(fmt.Errorf("wrapped: %w", err)))
	assert.True(t, IsQuotaError(err))
}

func TestQuotaEnforcer_Reset(t *testing.T) {
	q := NewQuotaEnforcer(1)
	require.NoError(t, q.Check("run-1"))
	q.Reset()
	assert.Equal(t, 0, q.Current())
	assert.NoError(t, q.Check("run-1"))
}

func TestRuntimeErrorFormat(t *testing.T) {
	tests := []struct {
		err  *RuntimeError
		want string
	}{
		{&RuntimeError{Code: ErrCodeTerminated, Message: "pop after halt"}, "TERMINATED: pop after halt"},
		{&RuntimeError{Code: ErrCodeTerminated, Message: "m", RunID: "r"}, "TERMINATED: m (run=r)"},
		{&RuntimeError{Code: ErrCodeStackUnderflow, Message: "m", RunID: "r", Seq: 4}, "STACK_UNDERFLOW: m (run=r, seq=4)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.err.Error())
	}

	q := NewQuotaError("r", 3, 2)
	assert.Equal(t, "3", q.Details["steps"])
	assert.True(t, IsQuotaError(fmt.Errorf("wrap: %w", q)))
	assert.False(t, IsStackUnderflow(q))
	assert.Equal(t, RuntimeErrorCode(""), ErrorCode(fmt.Errorf("plain")))
}
