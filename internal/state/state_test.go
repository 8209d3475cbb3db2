package state

import (
	"testing"

	"github.com/drongunkam-dotcom/arb-bot/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartStop(t *testing.T) {
	s := New(true)
	assert.Equal(t, types.StatusStopped, s.Status())

	require.NoError(t, s.Start())
	assert.Equal(t, types.StatusRunning, s.Status())
	assert.ErrorIs(t, s.Start(), ErrAlreadyRunning)

	s.Stop()
	assert.Equal(t, types.StatusStopped, s.Status())
	s.Stop() // idempotent
	assert.Equal(t, types.StatusStopped, s.Status())
}

func TestStopDoesNotClearError(t *testing.T) {
	s := New(false)
	require.NoError(t, s.Start())
	s.Halt()
	s.Stop()
	assert.Equal(t, types.StatusError, s.Status(), "stop must not mask a halt")
}

func TestStartFromErrorResetsFailures(t *testing.T) {
	s := New(false)
	require.NoError(t, s.Start())
	for i := 0; i < 3; i++ {
		s.RecordFailure()
	}
	s.Halt()

	require.NoError(t, s.Start())
	assert.Equal(t, types.StatusRunning, s.Status())
	assert.Equal(t, 0, s.ConsecutiveFailures())
}

func TestFailureCounter(t *testing.T) {
	s := New(false)
	assert.Equal(t, 1, s.RecordFailure())
	assert.Equal(t, 2, s.RecordFailure())
	s.RecordSuccess()
	assert.Equal(t, 0, s.ConsecutiveFailures())
	assert.Equal(t, 1, s.RecordFailure())
}

func TestSnapshot(t *testing.T) {
	s := New(true)
	require.NoError(t, s.Start())
	s.RecordFailure()

	snap := s.Snapshot()
	assert.Equal(t, types.StatusRunning, snap.Status)
	assert.True(t, snap.SimulationMode)
	assert.Equal(t, 1, snap.ConsecutiveFailures)
}
