// Package detector turns a set of same-cycle price snapshots into ranked
// cross-venue opportunities. It is pure: no I/O, no clocks beyond the
// snapshot timestamps.
package detector

import (
	"sort"

	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

// Params are the safety thresholds the ranking applies.
type Params struct {
	MinProfitPercent         float64
	MaxTradeAmount           float64 // base units
	SlippageTolerancePercent float64
}

// depthFraction caps trade size at this share of the thinner pool's
// base-side depth.
const depthFraction = 0.10

// Rank evaluates every ordered venue pair over the snapshots of one
// trading pair and returns the candidates clearing the net-profit
// threshold, best first. Ordering is deterministic for equal profit.
func Rank(snaps []types.PriceSnapshot, params Params) []types.Opportunity {
	var out []types.Opportunity
	for i := range snaps {
		for j := range snaps {
			if i == j {
				continue
			}
			if opp, ok := evaluate(snaps[i], snaps[j], params); ok {
				out = append(out, opp)
			}
		}
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].NetProfitPercent != out[b].NetProfitPercent {
			return out[a].NetProfitPercent > out[b].NetProfitPercent
		}
		// equal profit: the bigger trade captures more in absolute terms
		if out[a].TradeAmount != out[b].TradeAmount {
			return out[a].TradeAmount > out[b].TradeAmount
		}
		if out[a].FromVenue != out[b].FromVenue {
			return out[a].FromVenue < out[b].FromVenue
		}
		return out[a].ToVenue < out[b].ToVenue
	})
	return out
}

// evaluate prices the buy-on-from / sell-on-to round trip between two
// snapshots of the same pair.
func evaluate(from, to types.PriceSnapshot, params Params) (types.Opportunity, bool) {
	if from.Price <= 0 || to.Price <= from.Price {
		return types.Opportunity{}, false
	}

	amount := tradeAmount(from, to, params.MaxTradeAmount)
	if amount <= 0 {
		return types.Opportunity{}, false
	}

	gross := (to.Price - from.Price) / from.Price * 100

	// fees as percent of notional: both venue fees, slippage allowance on
	// each leg, and the network cost of two swaps
	feePct := float64(from.FeeBps)/100 + float64(to.FeeBps)/100 + 2*params.SlippageTolerancePercent
	notional := amount * from.Price
	if notional > 0 {
		feePct += (from.GasQuote + to.GasQuote) / notional * 100
	}

	net := gross - feePct
	if net < params.MinProfitPercent {
		return types.Opportunity{}, false
	}

	observed := from.ObservedAt
	if to.ObservedAt.After(observed) {
		observed = to.ObservedAt
	}

	return types.Opportunity{
		Pair:               from.Pair,
		FromVenue:          from.Venue,
		ToVenue:            to.Venue,
		BuyPrice:           from.Price,
		SellPrice:          to.Price,
		TradeAmount:        amount,
		GrossProfitPercent: gross,
		NetProfitPercent:   net,
		EstimatedFees:      feePct,
		DetectedAt:         observed,
	}, true
}

// tradeAmount sizes the trade at the configured cap or a tenth of the
// thinner pool, whichever is smaller.
func tradeAmount(from, to types.PriceSnapshot, maxTrade float64) float64 {
	depth := from.BaseDepth
	if to.BaseDepth < depth {
		depth = to.BaseDepth
	}
	amount := depthFraction * depth
	if maxTrade < amount {
		amount = maxTrade
	}
	return amount
}
