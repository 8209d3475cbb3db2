// Package execution runs the two-leg trade state machine. The executor is
// a single goroutine, so at most one opportunity is in flight and everyone
// behind it waits for a terminal record.
package execution

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/drongunkam-dotcom/arb-bot/internal/detector"
	"github.com/drongunkam-dotcom/arb-bot/internal/dex/core"
	"github.com/drongunkam-dotcom/arb-bot/internal/feed"
	"github.com/drongunkam-dotcom/arb-bot/internal/ledger"
	imetrics "github.com/drongunkam-dotcom/arb-bot/internal/metrics"
	"github.com/drongunkam-dotcom/arb-bot/internal/safety"
	"github.com/drongunkam-dotcom/arb-bot/internal/state"
	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

// ErrStaleOpportunity is recorded when revalidation no longer clears the
// profit threshold.
var ErrStaleOpportunity = errors.New("opportunity no longer profitable")

// interLegDelay gives the buy leg time to propagate before the sell is
// broadcast.
const interLegDelay = 500 * time.Millisecond

type Config struct {
	Params       detector.Params
	VenueTimeout time.Duration
	TxTimeout    time.Duration
}

type Executor struct {
	cfg      Config
	registry *core.Registry
	guard    *safety.Guard
	state    *state.State
	ledger   *ledger.Ledger
	bus      *feed.Bus
	log      *zap.Logger

	// test seam; nil means time.Sleep
	sleep func(time.Duration)
}

func NewExecutor(cfg Config, registry *core.Registry, guard *safety.Guard, st *state.State,
	led *ledger.Ledger, bus *feed.Bus, log *zap.Logger) *Executor {
	return &Executor{
		cfg:      cfg,
		registry: registry,
		guard:    guard,
		state:    st,
		ledger:   led,
		bus:      bus,
		log:      log,
		sleep:    time.Sleep,
	}
}

// Run consumes opportunities until ctx is done. An execution already past
// validation finishes on a detached context: a shutdown mid-trade must not
// orphan a one-sided position it could still close.
func (e *Executor) Run(ctx context.Context, in <-chan types.Opportunity) {
	for {
		select {
		case <-ctx.Done():
			return
		case opp := <-in:
			e.Execute(context.WithoutCancel(ctx), opp)
		}
	}
}

// Execute drives one opportunity to a terminal state. Guard rejections
// produce no record: nothing was attempted. Every path past the guard
// appends exactly one TradeRecord.
func (e *Executor) Execute(ctx context.Context, opp types.Opportunity) {
	if err := e.guard.Check(ctx); err != nil {
		e.log.Info("execution blocked",
			zap.String("pair", opp.Pair.String()),
			zap.Error(err))
		return
	}

	buyVenue := e.registry.Get(opp.FromVenue)
	sellVenue := e.registry.Get(opp.ToVenue)
	if buyVenue == nil || sellVenue == nil {
		e.finish(ctx, e.failed(opp, "", "", fmt.Sprintf("venue missing from registry: %s/%s", opp.FromVenue, opp.ToVenue)))
		return
	}

	// validating: refetch both venues and reprice before committing
	fresh, err := e.revalidate(ctx, opp, buyVenue, sellVenue)
	if err != nil {
		e.finish(ctx, e.failed(opp, "", "", err.Error()))
		return
	}
	opp = fresh

	if e.state.SimulationMode() {
		e.simulate(ctx, opp, buyVenue, sellVenue)
		return
	}
	e.submit(ctx, opp, buyVenue, sellVenue)
}

// revalidate refetches both legs and reprices the opportunity with current
// numbers. It fails with ErrStaleOpportunity when the edge is gone.
func (e *Executor) revalidate(ctx context.Context, opp types.Opportunity, buy, sell core.Adapter) (types.Opportunity, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.cfg.VenueTimeout)
	defer cancel()

	buyQ, err := buy.FetchPrice(callCtx, opp.Pair)
	if err != nil {
		return opp, fmt.Errorf("revalidate buy venue %s: %w", buy.Venue(), err)
	}
	sellQ, err := sell.FetchPrice(callCtx, opp.Pair)
	if err != nil {
		return opp, fmt.Errorf("revalidate sell venue %s: %w", sell.Venue(), err)
	}

	snaps := []types.PriceSnapshot{
		{Venue: buy.Venue(), Pair: opp.Pair, Price: buyQ.Price, BaseDepth: buyQ.BaseDepth,
			FeeBps: buy.FeeBps(), GasQuote: buyQ.GasQuote, ObservedAt: buyQ.ObservedAt},
		{Venue: sell.Venue(), Pair: opp.Pair, Price: sellQ.Price, BaseDepth: sellQ.BaseDepth,
			FeeBps: sell.FeeBps(), GasQuote: sellQ.GasQuote, ObservedAt: sellQ.ObservedAt},
	}
	for _, fresh := range detector.Rank(snaps, e.cfg.Params) {
		if fresh.FromVenue == opp.FromVenue && fresh.ToVenue == opp.ToVenue {
			return fresh, nil
		}
	}
	return opp, ErrStaleOpportunity
}

func (e *Executor) simulate(ctx context.Context, opp types.Opportunity, buy, sell core.Adapter) {
	// build both legs so the simulated path exercises the same packing the
	// live one would
	if _, err := buy.BuildSwap(ctx, opp.Pair, types.BuyBase, opp.TradeAmount, e.maxIn(opp)); err != nil {
		e.finish(ctx, e.failed(opp, "", "", fmt.Sprintf("build buy leg: %v", err)))
		return
	}
	if _, err := sell.BuildSwap(ctx, opp.Pair, types.SellBase, opp.TradeAmount, e.minOut(opp)); err != nil {
		e.finish(ctx, e.failed(opp, "", "", fmt.Sprintf("build sell leg: %v", err)))
		return
	}

	tr := e.terminal(opp, types.TradeSimulated)
	tr.SimRef = simRef(tr.ID)
	e.finish(ctx, tr)
}

func (e *Executor) submit(ctx context.Context, opp types.Opportunity, buy, sell core.Adapter) {
	buyAct, err := buy.BuildSwap(ctx, opp.Pair, types.BuyBase, opp.TradeAmount, e.maxIn(opp))
	if err != nil {
		e.finish(ctx, e.failed(opp, "", "", fmt.Sprintf("build buy leg: %v", err)))
		return
	}

	buyCtx, cancelBuy := context.WithTimeout(ctx, e.cfg.TxTimeout)
	txBuy, err := buy.Submit(buyCtx, buyAct)
	cancelBuy()
	if err != nil {
		// nothing spent yet; abort cleanly
		e.finish(ctx, e.failed(opp, "", "", fmt.Sprintf("buy leg on %s: %v", buy.Venue(), err)))
		return
	}

	e.sleep(interLegDelay)

	sellAct, err := sell.BuildSwap(ctx, opp.Pair, types.SellBase, opp.TradeAmount, e.minOut(opp))
	if err != nil {
		e.oneSided(ctx, opp, txBuy, fmt.Sprintf("build sell leg: %v", err))
		return
	}

	sellCtx, cancelSell := context.WithTimeout(ctx, e.cfg.TxTimeout)
	txSell, err := sell.Submit(sellCtx, sellAct)
	cancelSell()
	if err != nil {
		e.oneSided(ctx, opp, txBuy, fmt.Sprintf("sell leg on %s: %v", sell.Venue(), err))
		return
	}

	tr := e.terminal(opp, types.TradeSuccess)
	tr.TxBuy = txBuy
	tr.TxSell = txSell
	e.finish(ctx, tr)
}

// oneSided records a failure after the buy leg landed. The position is
// left for the operator: no automatic unwind, the sell could fail for the
// same reason twice and double the damage.
func (e *Executor) oneSided(ctx context.Context, opp types.Opportunity, txBuy, reason string) {
	e.log.Error("sell leg failed after buy leg landed; position is one-sided",
		zap.String("pair", opp.Pair.String()),
		zap.String("tx_buy", txBuy),
		zap.String("reason", reason))
	e.finish(ctx, e.failed(opp, txBuy, "", reason))
}

// maxIn bounds quote spent on the buy leg.
func (e *Executor) maxIn(opp types.Opportunity) float64 {
	return opp.TradeAmount * opp.BuyPrice * (1 + e.cfg.Params.SlippageTolerancePercent/100)
}

// minOut bounds quote received on the sell leg.
func (e *Executor) minOut(opp types.Opportunity) float64 {
	return opp.TradeAmount * opp.SellPrice * (1 - e.cfg.Params.SlippageTolerancePercent/100)
}

func (e *Executor) terminal(opp types.Opportunity, status types.TradeStatus) types.TradeRecord {
	profitBase := opp.TradeAmount * opp.NetProfitPercent / 100
	return types.TradeRecord{
		ID:            uuid.New(),
		Pair:          opp.Pair,
		FromVenue:     opp.FromVenue,
		ToVenue:       opp.ToVenue,
		BuyPrice:      opp.BuyPrice,
		SellPrice:     opp.SellPrice,
		Amount:        opp.TradeAmount,
		ProfitPercent: opp.NetProfitPercent,
		ProfitBase:    decimal.NewFromFloat(profitBase),
		ProfitQuote:   decimal.NewFromFloat(profitBase * opp.SellPrice),
		Status:        status,
		ExecutedAt:    time.Now(),
	}
}

func (e *Executor) failed(opp types.Opportunity, txBuy, txSell, reason string) types.TradeRecord {
	tr := e.terminal(opp, types.TradeFailed)
	tr.ProfitPercent = 0
	tr.ProfitBase = decimal.Zero
	tr.ProfitQuote = decimal.Zero
	tr.Reason = reason
	tr.TxBuy = txBuy
	tr.TxSell = txSell
	return tr
}

// finish is the single exit: append the record, update the failure streak,
// publish, count.
func (e *Executor) finish(ctx context.Context, tr types.TradeRecord) {
	e.ledger.Record(tr)

	if tr.Status == types.TradeFailed {
		n := e.state.RecordFailure()
		imetrics.ConsecutiveFailures.Set(float64(n))
		e.log.Warn("trade failed",
			zap.String("trade", tr.ID.String()),
			zap.String("reason", tr.Reason),
			zap.Int("consecutive_failures", n))
	} else {
		e.state.RecordSuccess()
		imetrics.ConsecutiveFailures.Set(0)
		e.log.Info("trade recorded",
			zap.String("trade", tr.ID.String()),
			zap.String("status", string(tr.Status)),
			zap.Float64("profit_pct", tr.ProfitPercent))
	}

	imetrics.TradesTotal.WithLabelValues(string(tr.Status)).Inc()
	e.bus.Publish(ctx, feed.EventTrade, tr)
}

// simRef marks a record as a simulated execution without occupying the
// tx-reference fields, which stay empty unless a real tx was broadcast.
func simRef(id uuid.UUID) string {
	return fmt.Sprintf("sim-%s", id.String()[:8])
}
