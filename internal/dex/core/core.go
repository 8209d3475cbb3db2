// Package core defines the venue adapter contract shared by all AMM
// integrations, plus the small slice of the Ethereum client they need.
package core

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

// ErrPairNotSupported is returned by adapters for pairs they have no pool for.
var ErrPairNotSupported = errors.New("pair not supported by venue")

// Quote is one venue's answer to "what does this pair trade at right now".
type Quote struct {
	Price      float64 // quote per base
	BaseDepth  float64 // pool depth on the base side, base units
	GasQuote   float64 // est. network cost of one swap, quote units
	ObservedAt time.Time
}

// SwapAction is a fully built, not yet submitted swap.
type SwapAction struct {
	Venue     types.VenueID
	Pair      types.Pair
	Direction types.Direction
	// Amount is the exact side of the swap: base out for BuyBase,
	// base in for SellBase. Raw token units.
	Amount *big.Int
	// Limit is the slippage bound: max quote in for BuyBase,
	// min quote out for SellBase. Raw token units.
	Limit    *big.Int
	To       common.Address // router
	Calldata []byte
}

// Adapter integrates one venue: price reads and swap construction/submission.
type Adapter interface {
	Venue() types.VenueID
	FeeBps() uint32
	// FetchPrice reads the pool state for pair at the configured
	// read-consistency block tag.
	FetchPrice(ctx context.Context, pair types.Pair) (Quote, error)
	// BuildSwap packs router calldata for one leg. amountBase is in base
	// units; limit is the quote-side slippage bound, quote units.
	BuildSwap(ctx context.Context, pair types.Pair, dir types.Direction, amountBase, limit float64) (*SwapAction, error)
	// Submit signs and broadcasts the swap, returning the tx hash. It does
	// not wait for inclusion.
	Submit(ctx context.Context, a *SwapAction) (string, error)
}

// EthBackend is the part of *ethclient.Client the adapters use.
type EthBackend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*coretypes.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *coretypes.Transaction) error
	ChainID(ctx context.Context) (*big.Int, error)
}

// Signer signs swap transactions. Satisfied by *wallet.Wallet; nil in
// simulation mode.
type Signer interface {
	Address() common.Address
	SignTx(tx *coretypes.Transaction) (*coretypes.Transaction, error)
}

// BlockTag maps a read-consistency name onto the block number argument of
// eth_call. "latest" is nil; "safe" and "finalized" use the negative rpc
// sentinel values.
func BlockTag(consistency string) *big.Int {
	switch consistency {
	case "safe":
		return big.NewInt(int64(rpc.SafeBlockNumber))
	case "finalized":
		return big.NewInt(int64(rpc.FinalizedBlockNumber))
	default:
		return nil
	}
}
