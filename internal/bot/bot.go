// Package bot wires the pipeline together: chain client, venue adapters,
// polling runner, executor, feeds and the operator API.
package bot

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/drongunkam-dotcom/arb-bot/internal/config"
	"github.com/drongunkam-dotcom/arb-bot/internal/detector"
	"github.com/drongunkam-dotcom/arb-bot/internal/dex/ammv2"
	"github.com/drongunkam-dotcom/arb-bot/internal/dex/ammv3"
	"github.com/drongunkam-dotcom/arb-bot/internal/dex/core"
	"github.com/drongunkam-dotcom/arb-bot/internal/execution"
	"github.com/drongunkam-dotcom/arb-bot/internal/feed"
	"github.com/drongunkam-dotcom/arb-bot/internal/ledger"
	"github.com/drongunkam-dotcom/arb-bot/internal/marketdata"
	"github.com/drongunkam-dotcom/arb-bot/internal/metrics"
	"github.com/drongunkam-dotcom/arb-bot/internal/multicall"
	"github.com/drongunkam-dotcom/arb-bot/internal/safety"
	"github.com/drongunkam-dotcom/arb-bot/internal/state"
	"github.com/drongunkam-dotcom/arb-bot/internal/types"
	"github.com/drongunkam-dotcom/arb-bot/internal/wallet"
	"github.com/drongunkam-dotcom/arb-bot/internal/web"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Bot owns the component lifecycle. Everything is built in Run so that a
// failed dependency (RPC, postgres, redis) surfaces as a startup error
// instead of a half-wired process.
type Bot struct {
	cfg *config.Config
	log *zap.Logger
}

func New(cfg *config.Config, log *zap.Logger) *Bot {
	return &Bot{cfg: cfg, log: log}
}

// poolVerifier is implemented by adapters that can check their configured
// pools against the token table before the first poll.
type poolVerifier interface {
	VerifyPools(ctx context.Context) error
}

func (b *Bot) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sim := b.cfg.SimulationMode()
	if sim {
		b.log.Warn("SIMULATION mode: trades are recorded, nothing is broadcast")
	} else {
		b.log.Warn("LIVE mode: transactions will be signed and broadcast")
	}

	ec, err := ethclient.DialContext(ctx, b.cfg.Chain.RPCHTTP)
	if err != nil {
		return fmt.Errorf("dial rpc %s: %w", b.cfg.Chain.RPCHTTP, err)
	}
	defer ec.Close()

	chainID, err := ec.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	b.log.Info("connected to chain",
		zap.String("chain_id", chainID.String()),
		zap.String("read_consistency", b.cfg.Chain.ReadConsistency),
	)

	var w *wallet.Wallet
	if !sim {
		w, err = wallet.FromEnv(b.cfg.Chain.WalletPKEnv, chainID, ec)
		if err != nil {
			return fmt.Errorf("load wallet: %w", err)
		}
		b.log.Info("wallet loaded", zap.String("address", w.Address().Hex()))
	}

	blockTag := core.BlockTag(b.cfg.Chain.ReadConsistency)
	mc, err := multicall.New(ec, common.HexToAddress(b.cfg.Chain.Multicall), blockTag)
	if err != nil {
		return fmt.Errorf("init multicall: %w", err)
	}

	registry, err := BuildRegistry(b.cfg, ec, mc, w, chainID, blockTag)
	if err != nil {
		return err
	}
	for _, a := range registry.All() {
		v, ok := a.(poolVerifier)
		if !ok {
			continue
		}
		if err := v.VerifyPools(ctx); err != nil {
			return fmt.Errorf("verify pools on %s: %w", a.Venue(), err)
		}
	}
	b.log.Info("venues ready", zap.Int("count", registry.Len()))

	pairs, err := b.cfg.ParsedPairs()
	if err != nil {
		return err
	}

	st := state.New(sim)
	store := marketdata.NewStore()
	book := detector.NewBook()
	bus := feed.NewBus(b.log)

	var sink ledger.Sink
	if dsn := b.cfg.History.PostgresDSN; dsn != "" {
		pg, err := ledger.NewPGStore(ctx, dsn)
		if err != nil {
			return fmt.Errorf("init trade store: %w", err)
		}
		defer pg.Close()
		sink = pg
		b.log.Info("trade history persisted to postgres")
	}
	led := ledger.New(b.cfg.History.MaxRecords, sink, b.log)

	if b.cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     b.cfg.Redis.Addr,
			Username: b.cfg.Redis.Username,
			Password: b.cfg.Redis.Password,
			DB:       b.cfg.Redis.DB,
		})
		defer rdb.Close()
		bus.Attach(feed.NewRedisSink(rdb))
		b.log.Info("redis feed attached", zap.String("addr", b.cfg.Redis.Addr))
	}

	hub := web.NewHub(b.log)
	bus.Attach(hub)

	var balance safety.BalanceReader
	if w != nil {
		balance = w
	}
	guard := safety.NewGuard(safety.Limits{
		MaxConsecutiveFailures: b.cfg.Safety.MaxConsecutiveFailures,
		MinWalletBalance:       b.cfg.Safety.MinWalletBalance,
	}, st, balance, b.log)

	params := detector.Params{
		MinProfitPercent:         b.cfg.Safety.MinProfitPercent,
		MaxTradeAmount:           b.cfg.Safety.MaxTradeAmount,
		SlippageTolerancePercent: b.cfg.Safety.SlippageTolerancePercent,
	}

	// buffered by one: the runner drops the best opportunity of a cycle
	// when the executor is still busy with the previous one
	oppCh := make(chan types.Opportunity, 1)

	runner := marketdata.NewRunner(marketdata.RunnerConfig{
		Pairs:        pairs,
		PollInterval: b.cfg.PollInterval(),
		VenueTimeout: b.cfg.VenueTimeout(),
		Staleness:    b.cfg.Staleness(),
		RPCRateLimit: b.cfg.RPC.MaxCallsPerSec,
		Params:       params,
	}, registry, store, book, st, bus, oppCh, b.log)

	exec := execution.NewExecutor(execution.Config{
		Params:       params,
		VenueTimeout: b.cfg.VenueTimeout(),
		TxTimeout:    b.cfg.TxTimeout(),
	}, registry, guard, st, led, bus, b.log)

	srv := web.NewServer(web.Config{
		ListenAddr:  b.cfg.Web.ListenAddr,
		APIKey:      b.cfg.Web.APIKey,
		CORSOrigins: b.cfg.Web.CORSOrigins,
	}, &web.Handlers{
		State:   st,
		Wallet:  balance,
		Book:    book,
		Ledger:  led,
		Bus:     bus,
		Config:           b.cfg.Redacted(),
		NativeQuotePrice: b.cfg.Chain.NativeQuotePrice,
		Version:          Version,
		Log:              b.log,
	}, hub, b.log)

	metrics.Serve(ctx, b.cfg.Metrics.ListenAddr, nil, b.log)

	if err := st.Start(); err != nil {
		return err
	}
	bus.Publish(ctx, feed.EventStatus, st.Snapshot())

	var wg sync.WaitGroup
	wg.Add(4)
	go func() { defer wg.Done(); hub.Run(ctx) }()
	go func() { defer wg.Done(); runner.Run(ctx) }()
	go func() { defer wg.Done(); exec.Run(ctx, oppCh) }()
	go func() { defer wg.Done(); b.pushLoop(ctx, st, led, bus) }()

	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Start() }()

	select {
	case <-ctx.Done():
	case err = <-srvErr:
		cancel()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil {
		b.log.Warn("api server shutdown error", zap.Error(serr))
	}

	wg.Wait()
	b.log.Info("arb-bot finished")
	return err
}

// pushLoop publishes status and ledger metrics on a fixed interval so
// feed consumers see progress even between trades.
func (b *Bot) pushLoop(ctx context.Context, st *state.State, led *ledger.Ledger, bus *feed.Bus) {
	tick := time.NewTicker(b.cfg.PushInterval())
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			bus.Publish(ctx, feed.EventStatus, st.Snapshot())
			bus.Publish(ctx, feed.EventMetrics, led.Metrics())
		}
	}
}

// BuildRegistry turns the yaml venue list into live adapters. The wallet
// may be nil in simulation mode; adapters only need it on the submit path.
func BuildRegistry(cfg *config.Config, ec core.EthBackend, mc multicall.IClient,
	w *wallet.Wallet, chainID *big.Int, blockTag *big.Int) (*core.Registry, error) {

	tokens := make(core.TokenTable, len(cfg.Tokens))
	for sym, t := range cfg.Tokens {
		tokens[sym] = core.TokenInfo{
			Addr:     common.HexToAddress(t.Address),
			Decimals: t.Decimals,
		}
	}

	var signer core.Signer
	if w != nil {
		signer = w
	}

	registry := core.NewRegistry()
	for _, v := range cfg.Venues {
		pools, err := parsePools(v.Pools)
		if err != nil {
			return nil, fmt.Errorf("venue %s: %w", v.ID, err)
		}
		switch v.Kind {
		case "amm_v2":
			a, err := ammv2.New(ec, mc, ammv2.Config{
				Venue:            v.ID,
				Router:           common.HexToAddress(v.Router),
				FeeBps:           v.FeeBps,
				Pools:            pools,
				GasLimit:         cfg.Chain.GasLimitSwap,
				BlockTag:         blockTag,
				NativeQuotePrice: cfg.Chain.NativeQuotePrice,
			}, tokens, signer, chainID)
			if err != nil {
				return nil, fmt.Errorf("venue %s: %w", v.ID, err)
			}
			registry.Register(a)
		case "amm_v3":
			a, err := ammv3.New(ec, mc, ammv3.Config{
				Venue:            v.ID,
				Router:           common.HexToAddress(v.Router),
				FeeBps:           v.FeeBps,
				FeeTier:          v.FeeTier,
				Pools:            pools,
				GasLimit:         cfg.Chain.GasLimitSwap,
				BlockTag:         blockTag,
				NativeQuotePrice: cfg.Chain.NativeQuotePrice,
			}, tokens, signer, chainID)
			if err != nil {
				return nil, fmt.Errorf("venue %s: %w", v.ID, err)
			}
			registry.Register(a)
		default:
			return nil, fmt.Errorf("venue %s: unknown kind %q", v.ID, v.Kind)
		}
	}
	return registry, nil
}

func parsePools(raw map[string]string) (map[types.Pair]common.Address, error) {
	pools := make(map[types.Pair]common.Address, len(raw))
	for key, addr := range raw {
		pair, err := types.ParsePair(key)
		if err != nil {
			return nil, err
		}
		if !common.IsHexAddress(addr) {
			return nil, fmt.Errorf("pool %s: bad address %q", key, addr)
		}
		pools[pair] = common.HexToAddress(addr)
	}
	return pools, nil
}

func NewLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	cfg.Encoding = "json"
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.LevelKey = "level"
	cfg.EncoderConfig.MessageKey = "msg"
	cfg.EncoderConfig.CallerKey = "caller"
	cfg.EncoderConfig.StacktraceKey = "stacktrace"
	cfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(time.RFC3339)
	return cfg.Build()
}
