// Package multicall batches eth_call reads through the Multicall aggregate
// contract so one RPC round trip covers every pool of a venue.
package multicall

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/drongunkam-dotcom/arb-bot/internal/dex/core"
)

const multicallABI = `[
{
    "constant": false,
    "inputs": [
        {
            "components": [
                {
                    "name": "target",
                    "type": "address"
                },
                {
                    "name": "callData",
                    "type": "bytes"
                }
            ],
            "name": "calls",
            "type": "tuple[]"
        }
    ],
    "name": "aggregate",
    "outputs": [
        {
            "name": "blockNumber",
            "type": "uint256"
        },
        {
            "name": "returnData",
            "type": "bytes[]"
        }
    ],
    "payable": false,
    "stateMutability": "nonpayable",
    "type": "function"
}
]`

type IClient interface {
	Aggregate(ctx context.Context, calls []Call) ([]Result, error)
}

type Call struct {
	Target   common.Address
	CallData []byte
}

type Result struct {
	Success bool
	Data    []byte
}

type Client struct {
	ec       core.EthBackend
	addr     common.Address
	abi      abi.ABI
	blockTag *big.Int
}

// New builds the batching client. A zero multicall address degrades to
// sequential eth_call, so venues work on chains without the contract.
func New(ec core.EthBackend, multicallAddr common.Address, blockTag *big.Int) (IClient, error) {
	parsedABI, err := abi.JSON(strings.NewReader(multicallABI))
	if err != nil {
		return nil, fmt.Errorf("bad abi: %w", err)
	}
	return &Client{ec: ec, addr: multicallAddr, abi: parsedABI, blockTag: blockTag}, nil
}

func (c *Client) Aggregate(ctx context.Context, calls []Call) ([]Result, error) {
	if c.addr == (common.Address{}) {
		return c.sequential(ctx, calls)
	}

	payload, err := c.abi.Pack("aggregate", calls)
	if err != nil {
		return nil, fmt.Errorf("pack aggregate: %w", err)
	}

	res, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &c.addr, Data: payload}, c.blockTag)
	if err != nil {
		return nil, fmt.Errorf("call aggregate: %w", err)
	}

	type aggregateResult struct {
		BlockNumber *big.Int
		ReturnData  [][]byte
	}
	var aggRes aggregateResult
	if err := c.abi.UnpackIntoInterface(&aggRes, "aggregate", res); err != nil {
		return nil, fmt.Errorf("unpack aggregate: %w", err)
	}
	if len(aggRes.ReturnData) != len(calls) {
		return nil, fmt.Errorf("aggregate returned %d results for %d calls", len(aggRes.ReturnData), len(calls))
	}

	out := make([]Result, len(calls))
	for i, r := range aggRes.ReturnData {
		out[i] = Result{Success: len(r) > 0, Data: r}
	}
	return out, nil
}

func (c *Client) sequential(ctx context.Context, calls []Call) ([]Result, error) {
	out := make([]Result, len(calls))
	for i, call := range calls {
		target := call.Target
		raw, err := c.ec.CallContract(ctx, ethereum.CallMsg{To: &target, Data: call.CallData}, c.blockTag)
		if err != nil {
			return nil, fmt.Errorf("call %s: %w", target.Hex(), err)
		}
		out[i] = Result{Success: len(raw) > 0, Data: raw}
	}
	return out, nil
}
