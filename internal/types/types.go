package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// VenueID identifies a configured trading venue ("uniswap_v3", "sushi_v2", ...).
type VenueID string

// Pair is a base/quote trading pair. Prices are always quote per one base.
type Pair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

// ParsePair parses "WETH/USDC" style notation.
func ParsePair(s string) (Pair, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("bad pair %q, want BASE/QUOTE", s)
	}
	return Pair{Base: strings.ToUpper(parts[0]), Quote: strings.ToUpper(parts[1])}, nil
}

func (p Pair) String() string { return p.Base + "/" + p.Quote }

func (p Pair) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Pair) UnmarshalText(b []byte) error {
	pp, err := ParsePair(string(b))
	if err != nil {
		return err
	}
	*p = pp
	return nil
}

// Direction of a single swap leg relative to the base asset.
type Direction int

const (
	// BuyBase spends quote to receive base.
	BuyBase Direction = iota
	// SellBase spends base to receive quote.
	SellBase
)

func (d Direction) String() string {
	if d == BuyBase {
		return "buy_base"
	}
	return "sell_base"
}

// PriceSnapshot is one venue's view of a pair at a point in time.
type PriceSnapshot struct {
	Venue      VenueID   `json:"venue"`
	Pair       Pair      `json:"pair"`
	Price      float64   `json:"price"`      // quote per base
	BaseDepth  float64   `json:"base_depth"` // pool depth on the base side, base units
	FeeBps     uint32    `json:"fee_bps"`    // venue swap fee at capture time
	GasQuote   float64   `json:"gas_quote"`  // est. network cost of one swap, quote units
	ObservedAt time.Time `json:"observed_at"`
}

// Opportunity is a ranked buy-low/sell-high candidate between two venues.
type Opportunity struct {
	Pair               Pair      `json:"pair"`
	FromVenue          VenueID   `json:"from_venue"` // buy here
	ToVenue            VenueID   `json:"to_venue"`   // sell here
	BuyPrice           float64   `json:"buy_price"`
	SellPrice          float64   `json:"sell_price"`
	TradeAmount        float64   `json:"trade_amount"` // base units
	GrossProfitPercent float64   `json:"gross_profit_percent"`
	NetProfitPercent   float64   `json:"net_profit_percent"`
	EstimatedFees      float64   `json:"estimated_fees"` // percent of notional eaten by fees+slippage
	DetectedAt         time.Time `json:"detected_at"`
}

// TradeStatus is the terminal outcome of an execution attempt.
type TradeStatus string

const (
	TradeSuccess   TradeStatus = "success"
	TradeFailed    TradeStatus = "failed"
	TradeSimulated TradeStatus = "simulated"
)

// TradeRecord is the immutable ledger entry for one execution attempt.
type TradeRecord struct {
	ID            uuid.UUID       `json:"id"`
	Pair          Pair            `json:"pair"`
	FromVenue     VenueID         `json:"from_venue"`
	ToVenue       VenueID         `json:"to_venue"`
	BuyPrice      float64         `json:"buy_price"`
	SellPrice     float64         `json:"sell_price"`
	Amount        float64         `json:"amount"` // base units
	ProfitPercent float64         `json:"profit_percent"`
	ProfitBase    decimal.Decimal `json:"profit_base"`
	ProfitQuote   decimal.Decimal `json:"profit_quote"`
	Status        TradeStatus     `json:"status"`
	Reason        string          `json:"reason,omitempty"` // failure reason, empty on success
	TxBuy         string          `json:"tx_buy,omitempty"`
	TxSell        string          `json:"tx_sell,omitempty"`
	// SimRef identifies a simulated execution; tx refs stay empty on
	// simulated records.
	SimRef string `json:"sim_ref,omitempty"`
	ExecutedAt    time.Time       `json:"executed_at"`
}

// Metrics are aggregates over the full trade history.
type Metrics struct {
	TotalTrades          uint64          `json:"total_trades"`
	SuccessfulTrades     uint64          `json:"successful_trades"`
	FailedTrades         uint64          `json:"failed_trades"`
	SimulatedTrades      uint64          `json:"simulated_trades"`
	TotalProfitBase      decimal.Decimal `json:"total_profit_base"`
	TotalProfitQuote     decimal.Decimal `json:"total_profit_quote"`
	AverageProfitPercent float64         `json:"average_profit_percent"`
	LastTradeAt          *time.Time      `json:"last_trade_at,omitempty"`
}

// BotStatus is the coarse run state exposed over the API.
type BotStatus string

const (
	StatusRunning BotStatus = "running"
	StatusStopped BotStatus = "stopped"
	StatusError   BotStatus = "error"
)
