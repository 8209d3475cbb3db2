package marketdata

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
	"github.com/drongunkam-dotcom/arb-bot/internal/state"
	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

var wethUSDC = types.Pair{Base: "WETH", Quote: "USDC"}

// fakeAdapter serves a constant quote, or an error.
type fakeAdapter struct {
	venue types.VenueID
	price float64
	err   error
}

func (f *fakeAdapter) Venue() types.VenueID { return f.venue }
func (f *fakeAdapter) FeeBps() uint32       { return 30 }

func (f *fakeAdapter) FetchPrice(context.Context, types.Pair) (core.Quote, error) {
	if f.err != nil {
		return core.Quote{}, f.err
	}
	return core.Quote{Price: f.price, BaseDepth: 1000, ObservedAt: time.Now()}, nil
}

func (f *fakeAdapter) BuildSwap(context.Context, types.Pair, types.Direction, float64, float64) (*core.SwapAction, error) {
	return &core.SwapAction{Venue: f.venue}, nil
}

func (f *fakeAdapter) Submit(context.Context, *core.SwapAction) (string, error) {
	return "0xfake", nil
}

func newTestRunner(t *testing.T, adapters []core.Adapter, out chan types.Opportunity) (*Runner, *Store, *detector.Book) {
	t.Helper()
	reg := core.NewRegistry()
	for _, a := range adapters {
		reg.Register(a)
	}
	store := NewStore()
	book := detector.NewBook()
	st := state.New(true)
	require.NoError(t, st.Start())

	r := NewRunner(RunnerConfig{
		Pairs:        []types.Pair{wethUSDC},
		PollInterval: 10 * time.Millisecond,
		VenueTimeout: time.Second,
		Staleness:    2 * time.Second,
		RPCRateLimit: 1000,
		Params: detector.Params{
			MinProfitPercent:         0.5,
			MaxTradeAmount:           10,
			SlippageTolerancePercent: 0.2,
		},
	}, reg, store, book, st, feed.NewBus(zap.NewNop()), out, zap.NewNop())
	return r, store, book
}

func TestCycleStoresSnapshotsAndDetects(t *testing.T) {
	out := make(chan types.Opportunity, 1)
	r, store, book := newTestRunner(t, []core.Adapter{
		&fakeAdapter{venue: "cheap", price: 100},
		&fakeAdapter{venue: "rich", price: 105},
	}, out)

	r.cycle(context.Background())

	snaps := store.Fresh(wethUSDC, time.Now(), 2*time.Second)
	require.Len(t, snaps, 2)

	opps := book.List(0, 0)
	require.NotEmpty(t, opps)
	assert.Equal(t, types.VenueID("cheap"), opps[0].FromVenue)
	assert.Equal(t, types.VenueID("rich"), opps[0].ToVenue)

	select {
	case best := <-out:
		assert.Equal(t, types.VenueID("cheap"), best.FromVenue)
	default:
		t.Fatal("expected the best opportunity on the executor channel")
	}
}

func TestCycleSurvivesVenueFailure(t *testing.T) {
	out := make(chan types.Opportunity, 1)
	r, store, _ := newTestRunner(t, []core.Adapter{
		&fakeAdapter{venue: "good", price: 100},
		&fakeAdapter{venue: "broken", err: assert.AnError},
	}, out)

	r.cycle(context.Background())

	snaps := store.Fresh(wethUSDC, time.Now(), 2*time.Second)
	require.Len(t, snaps, 1, "healthy venue still lands in the store")
	assert.Equal(t, types.VenueID("good"), snaps[0].Venue)
}

func TestCycleDropsWhenExecutorBusy(t *testing.T) {
	out := make(chan types.Opportunity, 1)
	out <- types.Opportunity{} // occupy the buffer

	r, _, book := newTestRunner(t, []core.Adapter{
		&fakeAdapter{venue: "cheap", price: 100},
		&fakeAdapter{venue: "rich", price: 105},
	}, out)

	r.cycle(context.Background()) // must not block

	assert.NotEmpty(t, book.List(0, 0), "book still updated even when the channel is full")
}

func TestStoreMonotonicUpdate(t *testing.T) {
	store := NewStore()
	now := time.Now()

	newer := types.PriceSnapshot{Venue: "a", Pair: wethUSDC, Price: 101, ObservedAt: now}
	older := types.PriceSnapshot{Venue: "a", Pair: wethUSDC, Price: 99, ObservedAt: now.Add(-time.Second)}

	assert.True(t, store.Update(newer))
	assert.False(t, store.Update(older), "regression must be dropped")

	snaps := store.Fresh(wethUSDC, now, time.Minute)
	require.Len(t, snaps, 1)
	assert.Equal(t, 101.0, snaps[0].Price)
}

func TestStoreFreshFiltersByAgeAndPair(t *testing.T) {
	store := NewStore()
	now := time.Now()
	other := types.Pair{Base: "WBTC", Quote: "USDC"}

	store.Update(types.PriceSnapshot{Venue: "a", Pair: wethUSDC, ObservedAt: now})
	store.Update(types.PriceSnapshot{Venue: "b", Pair: wethUSDC, ObservedAt: now.Add(-5 * time.Second)})
	store.Update(types.PriceSnapshot{Venue: "a", Pair: other, ObservedAt: now})

	fresh := store.Fresh(wethUSDC, now, 2*time.Second)
	require.Len(t, fresh, 1)
	assert.Equal(t, types.VenueID("a"), fresh[0].Venue)
	assert.Len(t, store.All(), 3)
}

func TestRunSkipsWhenStopped(t *testing.T) {
	out := make(chan types.Opportunity, 1)
	r, store, _ := newTestRunner(t, []core.Adapter{
		&fakeAdapter{venue: "a", price: 100},
		&fakeAdapter{venue: "b", price: 105},
	}, out)
	r.state.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	assert.Empty(t, store.All(), "no polling while stopped")
}
