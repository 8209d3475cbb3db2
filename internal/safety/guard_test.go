package safety

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drongunkam-dotcom/arb-bot/internal/state"
	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

type fakeBalance struct {
	bal float64
	err error
}

func (f fakeBalance) Balance(context.Context) (float64, error) { return f.bal, f.err }

func limits() Limits {
	return Limits{MaxConsecutiveFailures: 5, MinWalletBalance: 0.05}
}

func TestCheckRejectsWhenNotRunning(t *testing.T) {
	st := state.New(false)
	g := NewGuard(limits(), st, fakeBalance{bal: 1}, zap.NewNop())
	assert.ErrorIs(t, g.Check(context.Background()), ErrNotRunning)
}

func TestCheckHaltsOnFailureStreak(t *testing.T) {
	st := state.New(false)
	require.NoError(t, st.Start())
	for i := 0; i < 5; i++ {
		st.RecordFailure()
	}

	g := NewGuard(limits(), st, fakeBalance{bal: 1}, zap.NewNop())
	assert.ErrorIs(t, g.Check(context.Background()), ErrSafetyHalt)
	assert.Equal(t, types.StatusError, st.Status(), "halt must flip the bot to error")

	// and it stays rejected until an operator start
	assert.ErrorIs(t, g.Check(context.Background()), ErrNotRunning)
	require.NoError(t, st.Start())
	assert.NoError(t, g.Check(context.Background()))
}

func TestCheckBelowStreakPasses(t *testing.T) {
	st := state.New(false)
	require.NoError(t, st.Start())
	for i := 0; i < 4; i++ {
		st.RecordFailure()
	}
	g := NewGuard(limits(), st, fakeBalance{bal: 1}, zap.NewNop())
	assert.NoError(t, g.Check(context.Background()))
}

func TestCheckInsufficientBalance(t *testing.T) {
	st := state.New(false)
	require.NoError(t, st.Start())
	g := NewGuard(limits(), st, fakeBalance{bal: 0.01}, zap.NewNop())
	assert.ErrorIs(t, g.Check(context.Background()), ErrInsufficientBalance)
}

func TestCheckBalanceReadError(t *testing.T) {
	st := state.New(false)
	require.NoError(t, st.Start())
	g := NewGuard(limits(), st, fakeBalance{err: assert.AnError}, zap.NewNop())
	assert.ErrorIs(t, g.Check(context.Background()), assert.AnError)
}

func TestSimulationSkipsBalance(t *testing.T) {
	st := state.New(true)
	require.NoError(t, st.Start())
	// nil wallet: simulation must never touch it
	g := NewGuard(limits(), st, nil, zap.NewNop())
	assert.NoError(t, g.Check(context.Background()))
}
