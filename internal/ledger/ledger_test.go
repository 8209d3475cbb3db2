package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

var wethUSDC = types.Pair{Base: "WETH", Quote: "USDC"}

func record(status types.TradeStatus, profitPct float64, venue types.VenueID) types.TradeRecord {
	amount := 2.0
	return types.TradeRecord{
		ID:            uuid.New(),
		Pair:          wethUSDC,
		FromVenue:     venue,
		ToVenue:       "other",
		BuyPrice:      100,
		SellPrice:     100 * (1 + profitPct/100),
		Amount:        amount,
		ProfitPercent: profitPct,
		ProfitBase:    decimal.NewFromFloat(amount * profitPct / 100),
		ProfitQuote:   decimal.NewFromFloat(amount * profitPct),
		Status:        status,
		ExecutedAt:    time.Now(),
	}
}

func TestRecordAggregates(t *testing.T) {
	l := New(100, nil, zap.NewNop())
	l.Record(record(types.TradeSuccess, 4.0, "a"))
	l.Record(record(types.TradeSimulated, 2.0, "a"))
	l.Record(record(types.TradeFailed, 0, "b"))

	m := l.Metrics()
	assert.Equal(t, uint64(3), m.TotalTrades)
	assert.Equal(t, uint64(1), m.SuccessfulTrades)
	assert.Equal(t, uint64(1), m.FailedTrades)
	assert.Equal(t, uint64(1), m.SimulatedTrades)
	assert.InDelta(t, 3.0, m.AverageProfitPercent, 1e-9)
	assert.True(t, m.TotalProfitBase.Equal(decimal.NewFromFloat(0.12)),
		"got %s", m.TotalProfitBase)
	require.NotNil(t, m.LastTradeAt)
}

func TestRecomputeMatchesMetrics(t *testing.T) {
	l := New(100, nil, zap.NewNop())
	for i, st := range []types.TradeStatus{
		types.TradeSuccess, types.TradeFailed, types.TradeSimulated,
		types.TradeSuccess, types.TradeFailed,
	} {
		l.Record(record(st, float64(i), "a"))
	}

	live := l.Metrics()
	rebuilt := l.Recompute()

	assert.Equal(t, live.TotalTrades, rebuilt.TotalTrades)
	assert.Equal(t, live.SuccessfulTrades, rebuilt.SuccessfulTrades)
	assert.Equal(t, live.FailedTrades, rebuilt.FailedTrades)
	assert.Equal(t, live.SimulatedTrades, rebuilt.SimulatedTrades)
	assert.True(t, live.TotalProfitBase.Equal(rebuilt.TotalProfitBase))
	assert.True(t, live.TotalProfitQuote.Equal(rebuilt.TotalProfitQuote))
	assert.InDelta(t, live.AverageProfitPercent, rebuilt.AverageProfitPercent, 1e-12)
}

func TestHistoryFilterAndPagination(t *testing.T) {
	l := New(100, nil, zap.NewNop())
	l.Record(record(types.TradeSuccess, 1, "a"))
	l.Record(record(types.TradeFailed, 0, "b"))
	l.Record(record(types.TradeSuccess, 2, "a"))
	l.Record(record(types.TradeSuccess, 3, "b"))

	all, total := l.History(Filter{})
	assert.Equal(t, 4, total)
	require.Len(t, all, 4)
	// newest first
	assert.Equal(t, 3.0, all[0].ProfitPercent)

	succ, total := l.History(Filter{Status: types.TradeSuccess})
	assert.Equal(t, 3, total)
	assert.Len(t, succ, 3)

	venueA, total := l.History(Filter{FromVenue: "a"})
	assert.Equal(t, 2, total)
	assert.Len(t, venueA, 2)

	page, total := l.History(Filter{Limit: 2, Offset: 1})
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, 2.0, page[0].ProfitPercent)

	none, total := l.History(Filter{Offset: 10})
	assert.Equal(t, 4, total)
	assert.Empty(t, none)
}

func TestHistoryCap(t *testing.T) {
	l := New(3, nil, zap.NewNop())
	for i := 0; i < 5; i++ {
		l.Record(record(types.TradeSuccess, float64(i), "a"))
	}
	all, total := l.History(Filter{})
	assert.Equal(t, 3, total, "retained history is capped")
	require.Len(t, all, 3)
	assert.Equal(t, 4.0, all[0].ProfitPercent, "newest records survive")

	// aggregates still count everything ever recorded
	assert.Equal(t, uint64(5), l.Metrics().TotalTrades)
}

func TestRecomputeSurvivesCap(t *testing.T) {
	l := New(2, nil, zap.NewNop())
	for i := 0; i < 3; i++ {
		l.Record(record(types.TradeSuccess, 1.0, "a"))
	}

	live := l.Metrics()
	rebuilt := l.Recompute()

	assert.Equal(t, uint64(3), live.TotalTrades)
	assert.Equal(t, live.TotalTrades, rebuilt.TotalTrades)
	assert.Equal(t, live.SuccessfulTrades, rebuilt.SuccessfulTrades)
	assert.True(t, live.TotalProfitBase.Equal(rebuilt.TotalProfitBase),
		"live=%s rebuilt=%s", live.TotalProfitBase, rebuilt.TotalProfitBase)
	assert.True(t, live.TotalProfitQuote.Equal(rebuilt.TotalProfitQuote))
	assert.InDelta(t, live.AverageProfitPercent, rebuilt.AverageProfitPercent, 1e-12)

	// the window itself stays capped
	_, total := l.History(Filter{})
	assert.Equal(t, 2, total)
}

type blockingSink struct {
	mu     sync.Mutex
	trades []types.TradeRecord
	done   chan struct{}
}

func (b *blockingSink) InsertTrade(_ context.Context, tr types.TradeRecord) error {
	b.mu.Lock()
	b.trades = append(b.trades, tr)
	b.mu.Unlock()
	select {
	case b.done <- struct{}{}:
	default:
	}
	return nil
}

func TestSinkReceivesRecords(t *testing.T) {
	sink := &blockingSink{done: make(chan struct{}, 1)}
	l := New(100, sink, zap.NewNop())
	l.Record(record(types.TradeSuccess, 1, "a"))

	select {
	case <-sink.done:
	case <-time.After(2 * time.Second):
		t.Fatal("sink never received the record")
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	require.Len(t, sink.trades, 1)
}

func TestConcurrentRecordAndRead(t *testing.T) {
	l := New(1000, nil, zap.NewNop())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Record(record(types.TradeSuccess, 1, "a"))
				l.Metrics()
				l.History(Filter{Limit: 5})
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(400), l.Metrics().TotalTrades)
}
