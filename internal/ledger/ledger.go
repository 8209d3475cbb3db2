// Package ledger keeps the append-only trade history and the aggregate
// metrics derived from it. Records are immutable once appended.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

// Sink receives every appended record, typically a database. Writes are
// fire-and-forget: persistence lag never blocks trading.
type Sink interface {
	InsertTrade(ctx context.Context, tr types.TradeRecord) error
}

// Filter narrows History reads. Zero values mean "no constraint".
type Filter struct {
	Status    types.TradeStatus
	FromVenue types.VenueID
	Limit     int
	Offset    int
}

// aggregate is one set of running totals. The ledger keeps two: live,
// covering every record ever applied, and evicted, covering only the
// records trimmed out of the capped history. Folding the retained history
// on top of evicted must always reproduce live.
type aggregate struct {
	total, success, failed, simulated uint64
	profitBase, profitQuote           decimal.Decimal
	sumProfitPct                      float64
	lastTradeAt                       *time.Time
}

func newAggregate() aggregate {
	return aggregate{profitBase: decimal.Zero, profitQuote: decimal.Zero}
}

func (a *aggregate) apply(tr types.TradeRecord) {
	a.total++
	switch tr.Status {
	case types.TradeSuccess:
		a.success++
	case types.TradeFailed:
		a.failed++
	case types.TradeSimulated:
		a.simulated++
	}
	if tr.Status != types.TradeFailed {
		a.profitBase = a.profitBase.Add(tr.ProfitBase)
		a.profitQuote = a.profitQuote.Add(tr.ProfitQuote)
		a.sumProfitPct += tr.ProfitPercent
	}
	at := tr.ExecutedAt
	a.lastTradeAt = &at
}

func (a *aggregate) metrics() types.Metrics {
	m := types.Metrics{
		TotalTrades:      a.total,
		SuccessfulTrades: a.success,
		FailedTrades:     a.failed,
		SimulatedTrades:  a.simulated,
		TotalProfitBase:  a.profitBase,
		TotalProfitQuote: a.profitQuote,
	}
	if n := a.success + a.simulated; n > 0 {
		m.AverageProfitPercent = a.sumProfitPct / float64(n)
	}
	if a.lastTradeAt != nil {
		at := *a.lastTradeAt
		m.LastTradeAt = &at
	}
	return m
}

type Ledger struct {
	mu      sync.RWMutex
	history []types.TradeRecord // append order, oldest first
	max     int

	live    aggregate
	evicted aggregate

	sink Sink
	log  *zap.Logger
}

func New(maxRecords int, sink Sink, log *zap.Logger) *Ledger {
	if maxRecords <= 0 {
		maxRecords = 10_000
	}
	return &Ledger{
		max:     maxRecords,
		live:    newAggregate(),
		evicted: newAggregate(),
		sink:    sink,
		log:     log,
	}
}

// Record appends one trade and folds it into the aggregates. Records
// trimmed by the cap move into the evicted baseline so the recompute
// property survives trimming. The sink write happens on a detached
// goroutine with its own deadline.
func (l *Ledger) Record(tr types.TradeRecord) {
	l.mu.Lock()
	l.history = append(l.history, tr)
	if over := len(l.history) - l.max; over > 0 {
		for _, old := range l.history[:over] {
			l.evicted.apply(old)
		}
		l.history = l.history[over:]
	}
	l.live.apply(tr)
	l.mu.Unlock()

	if l.sink != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := l.sink.InsertTrade(ctx, tr); err != nil {
				l.log.Warn("trade sink write failed",
					zap.String("trade", tr.ID.String()),
					zap.Error(err))
			}
		}()
	}
}

// Metrics returns the current aggregates.
func (l *Ledger) Metrics() types.Metrics {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.live.metrics()
}

// History returns records newest first after filtering, plus the total
// matching count before pagination. Only the capped window is searchable;
// older records live in the sink.
func (l *Ledger) History(f Filter) ([]types.TradeRecord, int) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var matched []types.TradeRecord
	for i := len(l.history) - 1; i >= 0; i-- {
		tr := l.history[i]
		if f.Status != "" && tr.Status != f.Status {
			continue
		}
		if f.FromVenue != "" && tr.FromVenue != f.FromVenue {
			continue
		}
		matched = append(matched, tr)
	}

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= total {
			return nil, total
		}
		matched = matched[f.Offset:]
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total
}

// Recompute rebuilds the aggregates from the evicted baseline plus the
// retained history. The result must match Metrics exactly at any point;
// it exists as a consistency check and for tests.
func (l *Ledger) Recompute() types.Metrics {
	l.mu.RLock()
	defer l.mu.RUnlock()

	fresh := l.evicted
	for _, tr := range l.history {
		fresh.apply(tr)
	}
	return fresh.metrics()
}
