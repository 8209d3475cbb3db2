// Package safety gates every execution attempt: run state, failure
// streak, and wallet balance are checked in a fixed order before any
// swap is built.
package safety

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	imetrics "github.com/drongunkam-dotcom/arb-bot/internal/metrics"
	"github.com/drongunkam-dotcom/arb-bot/internal/state"
	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

var (
	// ErrNotRunning rejects execution while the bot is stopped or halted.
	ErrNotRunning = errors.New("bot is not running")
	// ErrSafetyHalt fires when the consecutive-failure limit is reached.
	ErrSafetyHalt = errors.New("consecutive failure limit reached")
	// ErrInsufficientBalance rejects live execution on a thin wallet.
	ErrInsufficientBalance = errors.New("wallet balance below minimum")
)

// BalanceReader reports the wallet's native balance in whole units.
type BalanceReader interface {
	Balance(ctx context.Context) (float64, error)
}

type Limits struct {
	MaxConsecutiveFailures int
	MinWalletBalance       float64 // native units
}

type Guard struct {
	limits Limits
	state  *state.State
	wallet BalanceReader // nil in simulation mode
	log    *zap.Logger
}

func NewGuard(limits Limits, st *state.State, wallet BalanceReader, log *zap.Logger) *Guard {
	return &Guard{limits: limits, state: st, wallet: wallet, log: log}
}

// Check runs the gate. The failure-streak check halts the bot as a side
// effect: once tripped, only an operator start clears it. Simulation mode
// skips the balance read, execution there never touches funds.
func (g *Guard) Check(ctx context.Context) error {
	if g.state.Status() != types.StatusRunning {
		imetrics.GuardRejections.WithLabelValues("not_running").Inc()
		return ErrNotRunning
	}

	if n := g.state.ConsecutiveFailures(); n >= g.limits.MaxConsecutiveFailures {
		g.state.Halt()
		imetrics.GuardRejections.WithLabelValues("safety_halt").Inc()
		g.log.Error("safety halt: consecutive failure limit reached",
			zap.Int("failures", n),
			zap.Int("limit", g.limits.MaxConsecutiveFailures))
		return ErrSafetyHalt
	}

	if g.state.SimulationMode() {
		return nil
	}

	bal, err := g.wallet.Balance(ctx)
	if err != nil {
		imetrics.GuardRejections.WithLabelValues("balance_read").Inc()
		return fmt.Errorf("balance check: %w", err)
	}
	if bal < g.limits.MinWalletBalance {
		imetrics.GuardRejections.WithLabelValues("insufficient_balance").Inc()
		g.log.Warn("execution blocked on wallet balance",
			zap.Float64("balance", bal),
			zap.Float64("minimum", g.limits.MinWalletBalance))
		return ErrInsufficientBalance
	}
	return nil
}
