package olc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatch_ReturnsErrorForOptimisticFailure(t *testing.T) {
	v, err := Catch(func() int {
		Fail()
		return 0
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, OptimisticError{})
	assert.Equal(t, 0, v)
}

func TestCatch_PassesThroughSuccessfulResult(t *testing.T) {
	v, err := Catch(func() int { return 7 })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestCatch_DoesNotSwallowProgrammingErrors(t *testing.T) {
	assert.Panics(t, func() {
		_, _ = Catch(func() int {
			programmingErrorf("boom")
			return 0
		})
	})
}

func TestRepeat_RetriesUntilSuccess(t *testing.T) {
	attempts := 0
	v := Repeat(func() int {
		attempts++
		if attempts < 3 {
			Fail()
		}
		return attempts
	})
	assert.Equal(t, 3, v)
}

func TestRepeatOrPanic_SucceedsOnFirstCleanAttempt(t *testing.T) {
	v := RepeatOrPanic(func() int { return 5 })
	assert.Equal(t, 5, v)
}

func TestRepeatOrPanic_PanicsInsteadOfRetrying(t *testing.T) {
	assert.Panics(t, func() {
		RepeatOrPanic(func() int {
			Fail()
			return 0
		})
	})
}

func TestIsUnwinding(t *testing.T) {
	assert.True(t, IsUnwinding(OptimisticError{}))
	assert.False(t, IsUnwinding(ProgrammingError{Msg: "x"}))
	assert.False(t, IsUnwinding(nil))
}
