package marketdata

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"go.uber.org/zap"

	"github.com/drongunkam-dotcom/arb-bot/internal/detector"
	"github.com/drongunkam-dotcom/arb-bot/internal/dex/core"
	"github.com/drongunkam-dotcom/arb-bot/internal/feed"
	imetrics "github.com/drongunkam-dotcom/arb-bot/internal/metrics"
	"github.com/drongunkam-dotcom/arb-bot/internal/state"
	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

// Runner drives the polling loop: fan out price fetches to every venue,
// fold results into the store, then rank opportunities for the cycle.
type Runner struct {
	pairs        []types.Pair
	registry     *core.Registry
	store        *Store
	book         *detector.Book
	state        *state.State
	bus          *feed.Bus
	limiter      *rate.Limiter
	params       detector.Params
	pollInterval time.Duration
	venueTimeout time.Duration
	staleness    time.Duration
	out          chan<- types.Opportunity
	log          *zap.Logger
}

type RunnerConfig struct {
	Pairs        []types.Pair
	PollInterval time.Duration
	VenueTimeout time.Duration
	Staleness    time.Duration
	RPCRateLimit float64 // calls per second across all venues
	Params       detector.Params
}

func NewRunner(cfg RunnerConfig, registry *core.Registry, store *Store, book *detector.Book,
	st *state.State, bus *feed.Bus, out chan<- types.Opportunity, log *zap.Logger) *Runner {
	burst := int(cfg.RPCRateLimit)
	if burst < 1 {
		burst = 1
	}
	return &Runner{
		pairs:        cfg.Pairs,
		registry:     registry,
		store:        store,
		book:         book,
		state:        st,
		bus:          bus,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RPCRateLimit), burst),
		params:       cfg.Params,
		pollInterval: cfg.PollInterval,
		venueTimeout: cfg.VenueTimeout,
		staleness:    cfg.Staleness,
		out:          out,
		log:          log,
	}
}

// Run blocks until ctx is done. Cycles are skipped while the bot is not
// running; stop/start from the API takes effect at the next tick.
func (r *Runner) Run(ctx context.Context) {
	t := time.NewTicker(r.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if r.state.Status() != types.StatusRunning {
				continue
			}
			r.cycle(ctx)
		}
	}
}

func (r *Runner) cycle(ctx context.Context) {
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for _, adapter := range r.registry.All() {
		for _, pair := range r.pairs {
			adapter, pair := adapter, pair
			g.Go(func() error {
				if err := r.limiter.Wait(gctx); err != nil {
					return nil
				}
				callCtx, cancel := context.WithTimeout(gctx, r.venueTimeout)
				defer cancel()

				q, err := adapter.FetchPrice(callCtx, pair)
				if err != nil {
					// a venue missing one cycle only makes its snapshot
					// stale; the cycle itself goes on
					imetrics.VenueErrors.WithLabelValues(string(adapter.Venue())).Inc()
					r.log.Warn("price fetch failed",
						zap.String("venue", string(adapter.Venue())),
						zap.String("pair", pair.String()),
						zap.Error(err))
					return nil
				}

				snap := types.PriceSnapshot{
					Venue:      adapter.Venue(),
					Pair:       pair,
					Price:      q.Price,
					BaseDepth:  q.BaseDepth,
					FeeBps:     adapter.FeeBps(),
					GasQuote:   q.GasQuote,
					ObservedAt: q.ObservedAt,
				}
				if r.store.Update(snap) {
					imetrics.VenuePrice.WithLabelValues(string(snap.Venue), pair.String()).Set(q.Price)
				}
				return nil
			})
		}
	}
	_ = g.Wait()

	now := time.Now()
	for _, pair := range r.pairs {
		snaps := r.store.Fresh(pair, now, r.staleness)
		for _, s := range snaps {
			imetrics.SnapshotAge.WithLabelValues(string(s.Venue), pair.String()).
				Set(now.Sub(s.ObservedAt).Seconds())
		}

		opps := detector.Rank(snaps, r.params)
		r.book.Set(pair, opps)
		if len(opps) == 0 {
			continue
		}

		imetrics.OpportunitiesFound.Add(float64(len(opps)))
		r.bus.Publish(ctx, feed.EventOpportunity, opps)

		best := opps[0]
		r.log.Info("opportunity detected",
			zap.String("pair", pair.String()),
			zap.String("buy", string(best.FromVenue)),
			zap.String("sell", string(best.ToVenue)),
			zap.Float64("net_pct", best.NetProfitPercent))

		select {
		case r.out <- best:
		default:
			// executor busy with an earlier trade; this cycle's candidate
			// would be stale by the time it frees up
			r.log.Debug("executor busy; dropping opportunity",
				zap.String("pair", pair.String()))
		}
	}

	imetrics.PollCycle.Observe(time.Since(started).Seconds())
}
