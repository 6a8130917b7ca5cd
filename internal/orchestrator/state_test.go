package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_AdvanceForwardOnly(t *testing.T) {
	st := newState("t1", "s1", "msg", nil)
	require.Equal(t, StepStart, st.Step)

	for _, step := range []Step{StepGuarded, StepConsented, StepRouted, StepExecuted, StepCompleted} {
		require.NoError(t, st.Advance(step))
		assert.Equal(t, step, st.Step)
	}
}

func TestState_BackwardTransitionRejected(t *testing.T) {
	st := newState("t1", "s1", "msg", nil)
	require.NoError(t, st.Advance(StepRouted))

	assert.Error(t, st.Advance(StepGuarded))
	assert.Error(t, st.Advance(StepRouted))
	assert.Equal(t, StepRouted, st.Step)
}

func TestState_SkippingForwardAllowed(t *testing.T) {
	// The failure paths jump straight to terminal; forward skips are legal.
	st := newState("t1", "s1", "msg", nil)
	assert.NoError(t, st.Advance(StepRouted))
}

func TestState_FailFromAnywhere(t *testing.T) {
	for _, from := range []Step{StepStart, StepGuarded, StepRouted, StepExecuted} {
		st := newState("t1", "s1", "msg", nil)
		st.Step = from
		st.Fail("stage", "boom")
		assert.Equal(t, StepFailed, st.Step)
		require.Len(t, st.ErrorTrail, 1)
		assert.Equal(t, "boom", st.ErrorTrail[0].Message)
		assert.True(t, st.Terminal())
	}
}

func TestState_NoAdvanceFromTerminal(t *testing.T) {
	st := newState("t1", "s1", "msg", nil)
	st.Fail("guard", "blocked")
	assert.Error(t, st.Advance(StepGuarded))
}

func TestState_ResetForRetry(t *testing.T) {
	st := newState("t1", "s1", "msg", nil)
	require.NoError(t, st.Advance(StepRouted))
	require.Equal(t, 1, st.Attempt)

	st.ResetForRetry()
	assert.Equal(t, StepRouted, st.Step)
	assert.Equal(t, 2, st.Attempt)

	// The retry path re-runs execution from routed.
	assert.NoError(t, st.Advance(StepExecuted))
}
