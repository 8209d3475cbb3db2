// Package ammv2 integrates constant-product (Uniswap v2 style) venues:
// spot price and depth from getReserves, swaps through the v2 router.
package ammv2

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/drongunkam-dotcom/arb-bot/internal/dex/core"
	"github.com/drongunkam-dotcom/arb-bot/internal/multicall"
	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

const routerABI = `[
 {"inputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapExactTokensForTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"},
 {"inputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"},{"internalType":"uint256","name":"amountInMax","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapTokensForExactTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"nonpayable","type":"function"}
]`

const pairABI = `[
 {"inputs":[],"name":"getReserves","outputs":[{"internalType":"uint112","name":"reserve0","type":"uint112"},{"internalType":"uint112","name":"reserve1","type":"uint112"},{"internalType":"uint32","name":"blockTimestampLast","type":"uint32"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"token1","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

// Config carries everything one v2 venue needs, resolved from yaml.
type Config struct {
	Venue            types.VenueID
	Router           common.Address
	FeeBps           uint32
	Pools            map[types.Pair]common.Address
	GasLimit         uint64
	BlockTag         *big.Int
	NativeQuotePrice float64
}

type pool struct {
	addr         common.Address
	baseIsToken0 bool
	baseDec      uint8
	quoteDec     uint8
}

type Adapter struct {
	ec        core.EthBackend
	mc        multicall.IClient
	cfg       Config
	tokens    core.TokenTable
	signer    core.Signer
	chainID   *big.Int
	routerABI abi.ABI
	pairABI   abi.ABI
	pools     map[types.Pair]pool
}

func New(ec core.EthBackend, mc multicall.IClient, cfg Config, tokens core.TokenTable, signer core.Signer, chainID *big.Int) (*Adapter, error) {
	rABI, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, err
	}
	pABI, err := abi.JSON(strings.NewReader(pairABI))
	if err != nil {
		return nil, err
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 400_000
	}
	return &Adapter{
		ec:        ec,
		mc:        mc,
		cfg:       cfg,
		tokens:    tokens,
		signer:    signer,
		chainID:   chainID,
		routerABI: rABI,
		pairABI:   pABI,
		pools:     make(map[types.Pair]pool, len(cfg.Pools)),
	}, nil
}

func (a *Adapter) Venue() types.VenueID { return a.cfg.Venue }
func (a *Adapter) FeeBps() uint32      { return a.cfg.FeeBps }

// VerifyPools reads token0/token1 for every configured pool in one
// multicall round trip and pins the base/quote orientation. Startup fails
// on any mismatch between the pool and the token table.
func (a *Adapter) VerifyPools(ctx context.Context) error {
	pairs := make([]types.Pair, 0, len(a.cfg.Pools))
	calls := make([]multicall.Call, 0, 2*len(a.cfg.Pools))
	t0Data, _ := a.pairABI.Pack("token0")
	t1Data, _ := a.pairABI.Pack("token1")
	for p, addr := range a.cfg.Pools {
		pairs = append(pairs, p)
		calls = append(calls,
			multicall.Call{Target: addr, CallData: t0Data},
			multicall.Call{Target: addr, CallData: t1Data},
		)
	}

	results, err := a.mc.Aggregate(ctx, calls)
	if err != nil {
		return fmt.Errorf("venue %s: verify pools: %w", a.cfg.Venue, err)
	}

	for i, p := range pairs {
		base, ok := a.tokens[p.Base]
		if !ok {
			return fmt.Errorf("venue %s: token %s not in table", a.cfg.Venue, p.Base)
		}
		quote, ok := a.tokens[p.Quote]
		if !ok {
			return fmt.Errorf("venue %s: token %s not in table", a.cfg.Venue, p.Quote)
		}

		t0, err := unpackAddress(a.pairABI, "token0", results[2*i])
		if err != nil {
			return fmt.Errorf("venue %s pool %s: %w", a.cfg.Venue, p, err)
		}
		t1, err := unpackAddress(a.pairABI, "token1", results[2*i+1])
		if err != nil {
			return fmt.Errorf("venue %s pool %s: %w", a.cfg.Venue, p, err)
		}

		pl := pool{addr: a.cfg.Pools[p], baseDec: base.Decimals, quoteDec: quote.Decimals}
		switch {
		case t0 == base.Addr && t1 == quote.Addr:
			pl.baseIsToken0 = true
		case t0 == quote.Addr && t1 == base.Addr:
			pl.baseIsToken0 = false
		default:
			return fmt.Errorf("venue %s pool %s: tokens %s/%s do not match %s",
				a.cfg.Venue, pl.addr.Hex(), t0.Hex(), t1.Hex(), p)
		}
		a.pools[p] = pl
	}
	return nil
}

func (a *Adapter) FetchPrice(ctx context.Context, pair types.Pair) (core.Quote, error) {
	pl, ok := a.pools[pair]
	if !ok {
		return core.Quote{}, core.ErrPairNotSupported
	}

	data, _ := a.pairABI.Pack("getReserves")
	raw, err := a.ec.CallContract(ctx, ethereum.CallMsg{To: &pl.addr, Data: data}, a.cfg.BlockTag)
	if err != nil {
		return core.Quote{}, fmt.Errorf("getReserves: %w", err)
	}
	outs, err := a.pairABI.Methods["getReserves"].Outputs.Unpack(raw)
	if err != nil || len(outs) < 2 {
		return core.Quote{}, errors.New("decode getReserves")
	}
	r0 := outs[0].(*big.Int)
	r1 := outs[1].(*big.Int)

	baseRaw, quoteRaw := r0, r1
	if !pl.baseIsToken0 {
		baseRaw, quoteRaw = r1, r0
	}
	baseRes := core.ToFloat(baseRaw, pl.baseDec)
	quoteRes := core.ToFloat(quoteRaw, pl.quoteDec)
	if baseRes <= 0 || quoteRes <= 0 {
		return core.Quote{}, fmt.Errorf("pool %s has empty reserves", pl.addr.Hex())
	}

	return core.Quote{
		Price:      quoteRes / baseRes,
		BaseDepth:  baseRes,
		GasQuote:   core.GasQuoteEstimate(ctx, a.ec, a.cfg.GasLimit, a.cfg.NativeQuotePrice),
		ObservedAt: time.Now(),
	}, nil
}

func (a *Adapter) BuildSwap(ctx context.Context, pair types.Pair, dir types.Direction, amountBase, limit float64) (*core.SwapAction, error) {
	pl, ok := a.pools[pair]
	if !ok {
		return nil, core.ErrPairNotSupported
	}
	base := a.tokens[pair.Base]
	quote := a.tokens[pair.Quote]

	recipient := common.Address{}
	if a.signer != nil {
		recipient = a.signer.Address()
	}
	deadline := big.NewInt(time.Now().Add(5 * time.Minute).Unix())

	amountRaw := core.ToRaw(amountBase, pl.baseDec)
	limitRaw := core.ToRaw(limit, pl.quoteDec)

	var (
		data []byte
		err  error
	)
	switch dir {
	case types.BuyBase:
		// exact base out, bounded quote in
		path := []common.Address{quote.Addr, base.Addr}
		data, err = a.routerABI.Pack("swapTokensForExactTokens", amountRaw, limitRaw, path, recipient, deadline)
	case types.SellBase:
		// exact base in, bounded quote out
		path := []common.Address{base.Addr, quote.Addr}
		data, err = a.routerABI.Pack("swapExactTokensForTokens", amountRaw, limitRaw, path, recipient, deadline)
	default:
		return nil, fmt.Errorf("unknown direction %v", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("pack swap: %w", err)
	}

	return &core.SwapAction{
		Venue:     a.cfg.Venue,
		Pair:      pair,
		Direction: dir,
		Amount:    amountRaw,
		Limit:     limitRaw,
		To:        a.cfg.Router,
		Calldata:  data,
	}, nil
}

func (a *Adapter) Submit(ctx context.Context, act *core.SwapAction) (string, error) {
	return core.SubmitSwap(ctx, a.ec, a.signer, a.chainID, act.To, a.cfg.GasLimit, act.Calldata)
}

func unpackAddress(parsed abi.ABI, method string, res multicall.Result) (common.Address, error) {
	if !res.Success {
		return common.Address{}, fmt.Errorf("%s call failed", method)
	}
	outs, err := parsed.Methods[method].Outputs.Unpack(res.Data)
	if err != nil || len(outs) == 0 {
		return common.Address{}, fmt.Errorf("decode %s", method)
	}
	return outs[0].(common.Address), nil
}
