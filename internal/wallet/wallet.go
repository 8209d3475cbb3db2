// Package wallet loads the signer key and exposes balance reads and
// transaction signing for the live execution path.
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
)

type balanceBackend interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Wallet struct {
	key     *ecdsa.PrivateKey
	addr    common.Address
	chainID *big.Int
	backend balanceBackend
}

// FromEnv loads a hex-encoded private key from the named environment
// variable. In simulation mode the variable may be absent; callers pass
// nil wallet in that case.
func FromEnv(envVar string, chainID *big.Int, backend balanceBackend) (*Wallet, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(os.Getenv(envVar)), "0x")
	if raw == "" {
		return nil, fmt.Errorf("wallet key env %s is empty", envVar)
	}
	key, err := crypto.HexToECDSA(raw)
	if err != nil {
		return nil, fmt.Errorf("parse wallet key: %w", err)
	}
	return &Wallet{
		key:     key,
		addr:    crypto.PubkeyToAddress(key.PublicKey),
		chainID: chainID,
		backend: backend,
	}, nil
}

func (w *Wallet) Address() common.Address { return w.addr }

// Balance returns the native balance in whole units (1e18 wei).
func (w *Wallet) Balance(ctx context.Context) (float64, error) {
	wei, err := w.backend.BalanceAt(ctx, w.addr, nil)
	if err != nil {
		return 0, fmt.Errorf("balance read: %w", err)
	}
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(wei),
		new(big.Float).SetInt64(params.Ether),
	).Float64()
	return f, nil
}

// SignTx signs a transaction with the wallet key for the configured chain.
func (w *Wallet) SignTx(tx *coretypes.Transaction) (*coretypes.Transaction, error) {
	return coretypes.SignTx(tx, coretypes.LatestSignerForChainID(w.chainID), w.key)
}
