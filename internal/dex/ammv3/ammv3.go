// Package ammv3 integrates concentrated-liquidity (Uniswap v3 style)
// venues: spot price from slot0, in-range virtual reserves from liquidity,
// swaps through the v3 router.
package ammv3

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/drongunkam-dotcom/arb-bot/internal/dex/core"
	"github.com/drongunkam-dotcom/arb-bot/internal/multicall"
	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

const poolABI = `[
 {"inputs":[],"name":"slot0","outputs":[{"internalType":"uint160","name":"sqrtPriceX96","type":"uint160"},{"internalType":"int24","name":"tick","type":"int24"},{"internalType":"uint16","name":"observationIndex","type":"uint16"},{"internalType":"uint16","name":"observationCardinality","type":"uint16"},{"internalType":"uint16","name":"observationCardinalityNext","type":"uint16"},{"internalType":"uint8","name":"feeProtocol","type":"uint8"},{"internalType":"bool","name":"unlocked","type":"bool"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"liquidity","outputs":[{"internalType":"uint128","name":"","type":"uint128"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"token0","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"},
 {"inputs":[],"name":"token1","outputs":[{"internalType":"address","name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const routerABI = `[
 {"inputs":[{"components":[{"internalType":"address","name":"tokenIn","type":"address"},{"internalType":"address","name":"tokenOut","type":"address"},{"internalType":"uint24","name":"fee","type":"uint24"},{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMinimum","type":"uint256"},{"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],"internalType":"struct ISwapRouter.ExactInputSingleParams","name":"params","type":"tuple"}],"name":"exactInputSingle","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],"stateMutability":"payable","type":"function"},
 {"inputs":[{"components":[{"internalType":"address","name":"tokenIn","type":"address"},{"internalType":"address","name":"tokenOut","type":"address"},{"internalType":"uint24","name":"fee","type":"uint24"},{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"},{"internalType":"uint256","name":"amountOut","type":"uint256"},{"internalType":"uint256","name":"amountInMaximum","type":"uint256"},{"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],"internalType":"struct ISwapRouter.ExactOutputSingleParams","name":"params","type":"tuple"}],"name":"exactOutputSingle","outputs":[{"internalType":"uint256","name":"amountIn","type":"uint256"}],"stateMutability":"payable","type":"function"}
]`

type Config struct {
	Venue            types.VenueID
	Router           common.Address
	FeeBps           uint32
	FeeTier          uint32 // pool fee in hundredths of a bps: 500, 3000, 10000
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
	poolABI   abi.ABI
	pools     map[types.Pair]pool
}

func New(ec core.EthBackend, mc multicall.IClient, cfg Config, tokens core.TokenTable, signer core.Signer, chainID *big.Int) (*Adapter, error) {
	rABI, err := abi.JSON(strings.NewReader(routerABI))
	if err != nil {
		return nil, err
	}
	pABI, err := abi.JSON(strings.NewReader(poolABI))
	if err != nil {
		return nil, err
	}
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 400_000
	}
	if cfg.FeeTier == 0 {
		cfg.FeeTier = 3000
	}
	return &Adapter{
		ec:        ec,
		mc:        mc,
		cfg:       cfg,
		tokens:    tokens,
		signer:    signer,
		chainID:   chainID,
		routerABI: rABI,
		poolABI:   pABI,
		pools:     make(map[types.Pair]pool, len(cfg.Pools)),
	}, nil
}

func (a *Adapter) Venue() types.VenueID { return a.cfg.Venue }
func (a *Adapter) FeeBps() uint32      { return a.cfg.FeeBps }

// VerifyPools pins base/quote orientation from token0/token1, failing
// startup on any mismatch with the token table.
func (a *Adapter) VerifyPools(ctx context.Context) error {
	pairs := make([]types.Pair, 0, len(a.cfg.Pools))
	calls := make([]multicall.Call, 0, 2*len(a.cfg.Pools))
	t0Data, _ := a.poolABI.Pack("token0")
	t1Data, _ := a.poolABI.Pack("token1")
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

		t0, err := a.unpackAddress("token0", results[2*i])
		if err != nil {
			return fmt.Errorf("venue %s pool %s: %w", a.cfg.Venue, p, err)
		}
		t1, err := a.unpackAddress("token1", results[2*i+1])
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

// FetchPrice reads slot0 and liquidity in one batch. Depth is the in-range
// virtual reserve on the base side, the standard v3 approximation for how
// much size the current tick range can absorb.
func (a *Adapter) FetchPrice(ctx context.Context, pair types.Pair) (core.Quote, error) {
	pl, ok := a.pools[pair]
	if !ok {
		return core.Quote{}, core.ErrPairNotSupported
	}

	slot0Data, _ := a.poolABI.Pack("slot0")
	liqData, _ := a.poolABI.Pack("liquidity")
	results, err := a.mc.Aggregate(ctx, []multicall.Call{
		{Target: pl.addr, CallData: slot0Data},
		{Target: pl.addr, CallData: liqData},
	})
	if err != nil {
		return core.Quote{}, fmt.Errorf("slot0/liquidity: %w", err)
	}

	slotOuts, err := a.poolABI.Methods["slot0"].Outputs.Unpack(results[0].Data)
	if err != nil || len(slotOuts) == 0 {
		return core.Quote{}, errors.New("decode slot0")
	}
	sqrtPriceX96 := slotOuts[0].(*big.Int)
	if sqrtPriceX96.Sign() <= 0 {
		return core.Quote{}, fmt.Errorf("pool %s not initialized", pl.addr.Hex())
	}

	liqOuts, err := a.poolABI.Methods["liquidity"].Outputs.Unpack(results[1].Data)
	if err != nil || len(liqOuts) == 0 {
		return core.Quote{}, errors.New("decode liquidity")
	}
	liquidity := liqOuts[0].(*big.Int)

	price, depth := priceAndDepth(sqrtPriceX96, liquidity, pl.baseIsToken0, pl.baseDec, pl.quoteDec)
	if price <= 0 {
		return core.Quote{}, fmt.Errorf("pool %s produced non-positive price", pl.addr.Hex())
	}

	return core.Quote{
		Price:      price,
		BaseDepth:  depth,
		GasQuote:   core.GasQuoteEstimate(ctx, a.ec, a.cfg.GasLimit, a.cfg.NativeQuotePrice),
		ObservedAt: time.Now(),
	}, nil
}

// priceAndDepth converts sqrtPriceX96 and in-range liquidity to a
// quote-per-base price and a base-side virtual reserve:
//
//	reserve0 = L / sqrtP, reserve1 = L * sqrtP (raw units)
func priceAndDepth(sqrtPriceX96, liquidity *big.Int, baseIsToken0 bool, baseDec, quoteDec uint8) (float64, float64) {
	q96 := new(big.Float).SetFloat64(math.Pow(2, 96))
	sqrtP := new(big.Float).Quo(new(big.Float).SetInt(sqrtPriceX96), q96)

	// token1 per token0, raw units
	rawPrice := new(big.Float).Mul(sqrtP, sqrtP)
	liqF := new(big.Float).SetInt(liquidity)

	var price, depthRaw *big.Float
	if baseIsToken0 {
		price = new(big.Float).Mul(rawPrice, decScale(int(baseDec)-int(quoteDec)))
		depthRaw = new(big.Float).Quo(liqF, sqrtP)
	} else {
		inv := new(big.Float).Quo(new(big.Float).SetFloat64(1), rawPrice)
		price = new(big.Float).Mul(inv, decScale(int(quoteDec)-int(baseDec)))
		depthRaw = new(big.Float).Mul(liqF, sqrtP)
	}

	p, _ := price.Float64()
	d, _ := new(big.Float).Quo(depthRaw, decScale(int(baseDec))).Float64()
	return p, d
}

func decScale(exp int) *big.Float {
	return new(big.Float).SetFloat64(math.Pow10(exp))
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
	fee := big.NewInt(int64(a.cfg.FeeTier))

	amountRaw := core.ToRaw(amountBase, pl.baseDec)
	limitRaw := core.ToRaw(limit, pl.quoteDec)

	var (
		data []byte
		err  error
	)
	switch dir {
	case types.BuyBase:
		// exact base out, bounded quote in
		data, err = a.routerABI.Pack("exactOutputSingle", struct {
			TokenIn           common.Address
			TokenOut          common.Address
			Fee               *big.Int
			Recipient         common.Address
			Deadline          *big.Int
			AmountOut         *big.Int
			AmountInMaximum   *big.Int
			SqrtPriceLimitX96 *big.Int
		}{quote.Addr, base.Addr, fee, recipient, deadline, amountRaw, limitRaw, big.NewInt(0)})
	case types.SellBase:
		// exact base in, bounded quote out
		data, err = a.routerABI.Pack("exactInputSingle", struct {
			TokenIn           common.Address
			TokenOut          common.Address
			Fee               *big.Int
			Recipient         common.Address
			Deadline          *big.Int
			AmountIn          *big.Int
			AmountOutMinimum  *big.Int
			SqrtPriceLimitX96 *big.Int
		}{base.Addr, quote.Addr, fee, recipient, deadline, amountRaw, limitRaw, big.NewInt(0)})
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

func (a *Adapter) unpackAddress(method string, res multicall.Result) (common.Address, error) {
	if !res.Success {
		return common.Address{}, fmt.Errorf("%s call failed", method)
	}
	outs, err := a.poolABI.Methods[method].Outputs.Unpack(res.Data)
	if err != nil || len(outs) == 0 {
		return common.Address{}, fmt.Errorf("decode %s", method)
	}
	return outs[0].(common.Address), nil
}
