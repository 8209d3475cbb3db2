package core

import (
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenInfo is an ERC-20 the configured pairs trade in.
type TokenInfo struct {
	Addr     common.Address
	Decimals uint8
}

// TokenTable maps token symbols from config to chain addresses.
type TokenTable map[string]TokenInfo

// ToFloat converts raw token units to a decimal amount.
func ToFloat(x *big.Int, decimals uint8) float64 {
	if x == nil {
		return 0
	}
	f := new(big.Float).SetInt(x)
	f.Quo(f, big.NewFloat(math.Pow10(int(decimals))))
	val, _ := f.Float64()
	return val
}

// ToRaw converts a decimal amount to raw token units, truncating dust.
func ToRaw(v float64, decimals uint8) *big.Int {
	f := new(big.Float).Mul(big.NewFloat(v), big.NewFloat(math.Pow10(int(decimals))))
	out := new(big.Int)
	f.Int(out)
	return out
}
