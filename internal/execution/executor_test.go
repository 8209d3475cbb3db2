package execution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drongunkam-dotcom/arb-bot/internal/detector"
	"github.com/drongunkam-dotcom/arb-bot/internal/dex/core"
	"github.com/drongunkam-dotcom/arb-bot/internal/feed"
	"github.com/drongunkam-dotcom/arb-bot/internal/ledger"
	"github.com/drongunkam-dotcom/arb-bot/internal/safety"
	"github.com/drongunkam-dotcom/arb-bot/internal/state"
	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

var wethUSDC = types.Pair{Base: "WETH", Quote: "USDC"}

type fakeVenue struct {
	id        types.VenueID
	price     float64
	fetchErr  error
	buildErr  error
	submitErr error

	submitted []string  // tx hashes handed out
	limits    []float64 // limit passed to BuildSwap, in call order
}

func (f *fakeVenue) Venue() types.VenueID { return f.id }
func (f *fakeVenue) FeeBps() uint32       { return 30 }

func (f *fakeVenue) FetchPrice(context.Context, types.Pair) (core.Quote, error) {
	if f.fetchErr != nil {
		return core.Quote{}, f.fetchErr
	}
	return core.Quote{Price: f.price, BaseDepth: 1000, ObservedAt: time.Now()}, nil
}

func (f *fakeVenue) BuildSwap(_ context.Context, pair types.Pair, dir types.Direction, amount, limit float64) (*core.SwapAction, error) {
	if f.buildErr != nil {
		return nil, f.buildErr
	}
	f.limits = append(f.limits, limit)
	return &core.SwapAction{Venue: f.id, Pair: pair, Direction: dir}, nil
}

func (f *fakeVenue) Submit(context.Context, *core.SwapAction) (string, error) {
	if f.submitErr != nil {
		return "", f.submitErr
	}
	h := "0xtx-" + string(f.id)
	f.submitted = append(f.submitted, h)
	return h, nil
}

type fixture struct {
	exec   *Executor
	ledger *ledger.Ledger
	state  *state.State
	buy    *fakeVenue
	sell   *fakeVenue
}

func newFixture(t *testing.T, simulation bool) *fixture {
	t.Helper()
	buy := &fakeVenue{id: "cheap", price: 100}
	sell := &fakeVenue{id: "rich", price: 105}

	reg := core.NewRegistry()
	reg.Register(buy)
	reg.Register(sell)

	st := state.New(simulation)
	require.NoError(t, st.Start())

	led := ledger.New(100, nil, zap.NewNop())
	guard := safety.NewGuard(safety.Limits{MaxConsecutiveFailures: 5, MinWalletBalance: 0}, st, balanceOK{}, zap.NewNop())

	e := NewExecutor(Config{
		Params: detector.Params{
			MinProfitPercent:         0.5,
			MaxTradeAmount:           10,
			SlippageTolerancePercent: 0.2,
		},
		VenueTimeout: time.Second,
		TxTimeout:    time.Second,
	}, reg, guard, st, led, feed.NewBus(zap.NewNop()), zap.NewNop())
	e.sleep = func(time.Duration) {}

	return &fixture{exec: e, ledger: led, state: st, buy: buy, sell: sell}
}

type balanceOK struct{}

func (balanceOK) Balance(context.Context) (float64, error) { return 1.0, nil }

func opportunity() types.Opportunity {
	return types.Opportunity{
		Pair:             wethUSDC,
		FromVenue:        "cheap",
		ToVenue:          "rich",
		BuyPrice:         100,
		SellPrice:        105,
		TradeAmount:      2,
		NetProfitPercent: 4.0,
		DetectedAt:       time.Now(),
	}
}

func lastRecord(t *testing.T, led *ledger.Ledger) types.TradeRecord {
	t.Helper()
	recs, _ := led.History(ledger.Filter{Limit: 1})
	require.NotEmpty(t, recs)
	return recs[0]
}

func TestSimulatedExecution(t *testing.T) {
	f := newFixture(t, true)
	f.exec.Execute(context.Background(), opportunity())

	tr := lastRecord(t, f.ledger)
	assert.Equal(t, types.TradeSimulated, tr.Status)
	assert.Contains(t, tr.SimRef, "sim-")
	assert.Empty(t, tr.TxBuy, "simulated records carry no tx reference")
	assert.Empty(t, tr.TxSell)
	assert.Empty(t, f.buy.submitted, "simulation must not broadcast")
	assert.Empty(t, f.sell.submitted)
	assert.Equal(t, 0, f.state.ConsecutiveFailures())
	assert.Greater(t, tr.ProfitPercent, 0.0)
}

func TestLiveExecutionSuccess(t *testing.T) {
	f := newFixture(t, false)
	f.exec.Execute(context.Background(), opportunity())

	tr := lastRecord(t, f.ledger)
	assert.Equal(t, types.TradeSuccess, tr.Status)
	assert.Equal(t, "0xtx-cheap", tr.TxBuy)
	assert.Equal(t, "0xtx-rich", tr.TxSell)
	assert.Equal(t, 0, f.state.ConsecutiveFailures())

	// slippage bounds: maxIn above notional on the buy, minOut below on the sell
	require.Len(t, f.buy.limits, 1)
	assert.InDelta(t, 2*100*1.002, f.buy.limits[0], 1e-9)
	require.Len(t, f.sell.limits, 1)
	assert.InDelta(t, 2*105*0.998, f.sell.limits[0], 1e-9)
}

func TestStaleOpportunityFails(t *testing.T) {
	f := newFixture(t, true)
	f.sell.price = 100.5 // spread collapsed since detection

	f.exec.Execute(context.Background(), opportunity())

	tr := lastRecord(t, f.ledger)
	assert.Equal(t, types.TradeFailed, tr.Status)
	assert.Contains(t, tr.Reason, "no longer profitable")
	assert.Equal(t, 1, f.state.ConsecutiveFailures())
}

func TestRevalidateUsesFreshPrices(t *testing.T) {
	f := newFixture(t, true)
	f.buy.price = 99 // edge widened since detection

	f.exec.Execute(context.Background(), opportunity())

	tr := lastRecord(t, f.ledger)
	assert.Equal(t, types.TradeSimulated, tr.Status)
	assert.Equal(t, 99.0, tr.BuyPrice, "record reflects revalidated prices")
}

func TestVenueFetchFailureFails(t *testing.T) {
	f := newFixture(t, true)
	f.sell.fetchErr = assert.AnError

	f.exec.Execute(context.Background(), opportunity())

	tr := lastRecord(t, f.ledger)
	assert.Equal(t, types.TradeFailed, tr.Status)
	assert.Contains(t, tr.Reason, "revalidate sell venue")
	assert.Equal(t, 1, f.state.ConsecutiveFailures())
}

func TestBuyLegFailureAborts(t *testing.T) {
	f := newFixture(t, false)
	f.buy.submitErr = assert.AnError

	f.exec.Execute(context.Background(), opportunity())

	tr := lastRecord(t, f.ledger)
	assert.Equal(t, types.TradeFailed, tr.Status)
	assert.Contains(t, tr.Reason, "buy leg")
	assert.Empty(t, tr.TxBuy)
	assert.Empty(t, f.sell.submitted, "sell leg must not run after a failed buy")
}

func TestSellLegFailureKeepsBuyRef(t *testing.T) {
	f := newFixture(t, false)
	f.sell.submitErr = assert.AnError

	f.exec.Execute(context.Background(), opportunity())

	tr := lastRecord(t, f.ledger)
	assert.Equal(t, types.TradeFailed, tr.Status)
	assert.Equal(t, "0xtx-cheap", tr.TxBuy, "buy tx preserved for the operator")
	assert.Empty(t, tr.TxSell)
	assert.Contains(t, tr.Reason, "sell leg")
}

func TestHaltAfterFailureLimit(t *testing.T) {
	f := newFixture(t, false)
	f.buy.submitErr = assert.AnError

	for i := 0; i < 5; i++ {
		f.exec.Execute(context.Background(), opportunity())
	}
	assert.Equal(t, 5, f.state.ConsecutiveFailures())
	assert.Equal(t, types.StatusRunning, f.state.Status(), "limit trips on the next attempt")

	// sixth attempt hits the guard: halted, no new record
	f.exec.Execute(context.Background(), opportunity())
	assert.Equal(t, types.StatusError, f.state.Status())
	assert.Equal(t, uint64(5), f.ledger.Metrics().TotalTrades)
}

func TestGuardRejectionLeavesNoRecord(t *testing.T) {
	f := newFixture(t, true)
	f.state.Stop()

	f.exec.Execute(context.Background(), opportunity())
	assert.Equal(t, uint64(0), f.ledger.Metrics().TotalTrades)
}

func TestSuccessResetsFailureStreak(t *testing.T) {
	f := newFixture(t, false)
	f.buy.submitErr = assert.AnError
	f.exec.Execute(context.Background(), opportunity())
	f.exec.Execute(context.Background(), opportunity())
	assert.Equal(t, 2, f.state.ConsecutiveFailures())

	f.buy.submitErr = nil
	f.exec.Execute(context.Background(), opportunity())
	assert.Equal(t, 0, f.state.ConsecutiveFailures())
}

func TestRunDrainsChannel(t *testing.T) {
	f := newFixture(t, true)
	in := make(chan types.Opportunity, 2)
	in <- opportunity()
	in <- opportunity()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.exec.Run(ctx, in)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return f.ledger.Metrics().TotalTrades == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
