package core

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

// FeeCaps derives EIP-1559 tip and fee caps from the node, with static
// fallbacks when the node refuses to suggest.
func FeeCaps(ctx context.Context, ec EthBackend) (tip, feeCap *big.Int) {
	tip, _ = ec.SuggestGasTipCap(ctx)
	if tip == nil {
		tip = big.NewInt(2_000_000_000)
	}
	var baseFee *big.Int
	if h, _ := ec.HeaderByNumber(ctx, nil); h != nil && h.BaseFee != nil {
		baseFee = new(big.Int).Set(h.BaseFee)
	} else if sp, _ := ec.SuggestGasPrice(ctx); sp != nil {
		baseFee = sp
	} else {
		baseFee = big.NewInt(5_000_000_000)
	}
	feeCap = new(big.Int).Add(new(big.Int).Mul(baseFee, big.NewInt(2)), tip)
	return tip, feeCap
}

// GasQuoteEstimate prices one swap's network cost in quote units using the
// operator's native-token price estimate. Zero nativeQuotePrice disables
// the term.
func GasQuoteEstimate(ctx context.Context, ec EthBackend, gasLimit uint64, nativeQuotePrice float64) float64 {
	if nativeQuotePrice <= 0 {
		return 0
	}
	_, feeCap := FeeCaps(ctx, ec)
	totalWei := new(big.Int).Mul(feeCap, new(big.Int).SetUint64(gasLimit))
	native, _ := new(big.Float).Quo(new(big.Float).SetInt(totalWei), big.NewFloat(1e18)).Float64()
	return native * nativeQuotePrice
}

// SubmitSwap signs and broadcasts router calldata as a dynamic-fee tx.
func SubmitSwap(ctx context.Context, ec EthBackend, signer Signer, chainID *big.Int, to common.Address, gasLimit uint64, data []byte) (string, error) {
	if signer == nil {
		return "", errors.New("no signer configured")
	}
	tip, feeCap := FeeCaps(ctx, ec)

	nonce, err := ec.PendingNonceAt(ctx, signer.Address())
	if err != nil {
		return "", err
	}

	tx := coretypes.NewTx(&coretypes.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		To:        &to,
		Gas:       gasLimit,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Data:      data,
		Value:     big.NewInt(0),
	})
	signed, err := signer.SignTx(tx)
	if err != nil {
		return "", err
	}
	if err := ec.SendTransaction(ctx, signed); err != nil {
		return "", err
	}
	return signed.Hash().Hex(), nil
}
