// poolcheck is a one-shot diagnostic: it verifies every configured pool
// against the token table and prints a live price per venue and pair.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/drongunkam-dotcom/arb-bot/internal/bot"
	"github.com/drongunkam-dotcom/arb-bot/internal/config"
	"github.com/drongunkam-dotcom/arb-bot/internal/dex/core"
	"github.com/drongunkam-dotcom/arb-bot/internal/multicall"
)

func main() {
	cfgPath := flag.String("config", "./config.yaml", "path to config file")
	timeout := flag.Duration("timeout", 10*time.Second, "total deadline")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fail("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	ec, err := ethclient.DialContext(ctx, cfg.Chain.RPCHTTP)
	if err != nil {
		fail("dial rpc: %v", err)
	}
	defer ec.Close()

	chainID, err := ec.ChainID(ctx)
	if err != nil {
		fail("chain id: %v", err)
	}

	blockTag := core.BlockTag(cfg.Chain.ReadConsistency)
	mc, err := multicall.New(ec, common.HexToAddress(cfg.Chain.Multicall), blockTag)
	if err != nil {
		fail("multicall: %v", err)
	}

	registry, err := bot.BuildRegistry(cfg, ec, mc, nil, chainID, blockTag)
	if err != nil {
		fail("venues: %v", err)
	}

	pairs, err := cfg.ParsedPairs()
	if err != nil {
		fail("pairs: %v", err)
	}

	fmt.Printf("RPC:   %s (chain %s)\n", cfg.Chain.RPCHTTP, chainID)
	fmt.Printf("Pairs: %v\n\n", cfg.Pairs)

	for _, a := range registry.All() {
		if v, ok := a.(interface{ VerifyPools(context.Context) error }); ok {
			if err := v.VerifyPools(ctx); err != nil {
				fmt.Printf("%-14s pool verification FAILED: %v\n", a.Venue(), err)
				continue
			}
		}
		for _, pair := range pairs {
			q, err := a.FetchPrice(ctx, pair)
			switch {
			case errors.Is(err, core.ErrPairNotSupported):
				fmt.Printf("%-14s %-12s no pool configured\n", a.Venue(), pair)
			case err != nil:
				fmt.Printf("%-14s %-12s error: %v\n", a.Venue(), pair, err)
			default:
				fmt.Printf("%-14s %-12s price=%.6f depth=%.4f fee=%dbps gas=%.4f\n",
					a.Venue(), pair, q.Price, q.BaseDepth, a.FeeBps(), q.GasQuote)
			}
		}
	}
}

func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
