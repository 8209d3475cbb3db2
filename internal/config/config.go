package config

import (
	"fmt"
	"os"
	"time"

	"github.com/drongunkam-dotcom/arb-bot/internal/types"
	"gopkg.in/yaml.v3"
)

// Token describes one ERC-20 used by configured pairs.
type Token struct {
	Address  string `yaml:"address" json:"address"`
	Decimals uint8  `yaml:"decimals" json:"decimals"`
}

// Venue is one DEX the bot polls and trades on.
type Venue struct {
	ID     types.VenueID `yaml:"id" json:"id"`
	Kind   string        `yaml:"kind" json:"kind"` // amm_v2 | amm_v3
	Router string        `yaml:"router" json:"router"`
	FeeBps uint32        `yaml:"fee_bps" json:"fee_bps"`
	// FeeTier is the v3 pool fee in hundredths of a bps (500, 3000, 10000).
	// Ignored for amm_v2 venues.
	FeeTier uint32 `yaml:"fee_tier" json:"fee_tier,omitempty"`
	// Pools maps "BASE/QUOTE" to the pool contract for that pair.
	Pools map[string]string `yaml:"pools" json:"pools"`
}

type Config struct {
	Pairs []string `yaml:"pairs"`

	Chain struct {
		RPCHTTP string `yaml:"rpc_http"`
		// ReadConsistency picks the block tag for price reads:
		// latest | safe | finalized.
		ReadConsistency    string  `yaml:"read_consistency"`
		WalletPKEnv        string  `yaml:"wallet_pk_env"`
		MaxPriorityFeeGwei float64 `yaml:"max_priority_fee_gwei"`
		GasLimitSwap       uint64  `yaml:"gas_limit_swap"`
		Multicall          string  `yaml:"multicall"`
		// NativeQuotePrice is the operator's estimate of the native token
		// price in quote units, used to express gas cost per swap. Zero
		// disables the network-fee term.
		NativeQuotePrice float64 `yaml:"native_quote_price"`
	} `yaml:"chain"`

	Tokens map[string]Token `yaml:"tokens"`
	Venues []Venue          `yaml:"venues"`

	Safety struct {
		MinProfitPercent         float64 `yaml:"min_profit_percent"`
		MaxTradeAmount           float64 `yaml:"max_trade_amount"` // base units
		SlippageTolerancePercent float64 `yaml:"slippage_tolerance_percent"`
		MaxConsecutiveFailures   int     `yaml:"max_consecutive_failures"`
		MinWalletBalance         float64 `yaml:"min_wallet_balance"` // native units
		SimulationMode           *bool   `yaml:"simulation_mode"`
	} `yaml:"safety"`

	Timings struct {
		PollIntervalMs  int `yaml:"poll_interval_ms"`
		VenueTimeoutMs  int `yaml:"venue_timeout_ms"`
		TxTimeoutSec    int `yaml:"tx_timeout_sec"`
		PushIntervalSec int `yaml:"push_interval_sec"`
		StalenessMs     int `yaml:"staleness_ms"`
	} `yaml:"timings"`

	RPC struct {
		MaxCallsPerSec float64 `yaml:"max_calls_per_sec"`
	} `yaml:"rpc"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	History struct {
		PostgresDSN string `yaml:"postgres_dsn"`
		MaxRecords  int    `yaml:"max_records"`
	} `yaml:"history"`

	Web struct {
		ListenAddr  string   `yaml:"listen_addr"`
		APIKey      string   `yaml:"api_key"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"web"`

	Metrics struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"metrics"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Config) applyDefaults() {
	if c.Chain.ReadConsistency == "" {
		c.Chain.ReadConsistency = "latest"
	}
	if c.Chain.WalletPKEnv == "" {
		c.Chain.WalletPKEnv = "ARB_WALLET_PK"
	}
	if c.Chain.GasLimitSwap == 0 {
		c.Chain.GasLimitSwap = 400_000
	}
	if c.Chain.MaxPriorityFeeGwei == 0 {
		c.Chain.MaxPriorityFeeGwei = 0.05
	}
	if c.Safety.MinProfitPercent == 0 {
		c.Safety.MinProfitPercent = 0.5
	}
	if c.Safety.MaxTradeAmount == 0 {
		c.Safety.MaxTradeAmount = 1.0
	}
	if c.Safety.SlippageTolerancePercent == 0 {
		c.Safety.SlippageTolerancePercent = 0.2
	}
	if c.Safety.MaxConsecutiveFailures == 0 {
		c.Safety.MaxConsecutiveFailures = 5
	}
	if c.Safety.SimulationMode == nil {
		on := true
		c.Safety.SimulationMode = &on
	}
	if c.Timings.PollIntervalMs == 0 {
		c.Timings.PollIntervalMs = 1000
	}
	if c.Timings.VenueTimeoutMs == 0 {
		c.Timings.VenueTimeoutMs = 700
	}
	if c.Timings.TxTimeoutSec == 0 {
		c.Timings.TxTimeoutSec = 30
	}
	if c.Timings.PushIntervalSec == 0 {
		c.Timings.PushIntervalSec = 5
	}
	if c.Timings.StalenessMs == 0 {
		// snapshots older than two polling cycles never pair up
		c.Timings.StalenessMs = 2 * c.Timings.PollIntervalMs
	}
	if c.RPC.MaxCallsPerSec == 0 {
		c.RPC.MaxCallsPerSec = 8
	}
	if c.History.MaxRecords == 0 {
		c.History.MaxRecords = 10_000
	}
	if c.Web.ListenAddr == "" {
		c.Web.ListenAddr = ":8080"
	}
	if c.Web.APIKey == "" {
		c.Web.APIKey = os.Getenv("ARB_WEB_API_KEY")
	}
	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9090"
	}
}

// Validate rejects configs the bot cannot start with. Venue/pool wiring
// against the chain is verified later, when adapters connect.
func (c *Config) Validate() error {
	if c.Chain.RPCHTTP == "" {
		return fmt.Errorf("chain.rpc_http is required")
	}
	switch c.Chain.ReadConsistency {
	case "latest", "safe", "finalized":
	default:
		return fmt.Errorf("chain.read_consistency %q: want latest, safe or finalized", c.Chain.ReadConsistency)
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("at least one pair is required")
	}
	pairs, err := c.ParsedPairs()
	if err != nil {
		return err
	}
	for _, p := range pairs {
		for _, sym := range []string{p.Base, p.Quote} {
			tok, ok := c.Tokens[sym]
			if !ok {
				return fmt.Errorf("pair %s: token %s is not configured", p, sym)
			}
			if tok.Address == "" || tok.Decimals == 0 {
				return fmt.Errorf("token %s: address and decimals are required", sym)
			}
		}
	}
	if len(c.Venues) < 2 {
		return fmt.Errorf("need at least two venues, got %d", len(c.Venues))
	}
	seen := make(map[types.VenueID]bool, len(c.Venues))
	for _, v := range c.Venues {
		if v.ID == "" {
			return fmt.Errorf("venue with empty id")
		}
		if seen[v.ID] {
			return fmt.Errorf("duplicate venue id %q", v.ID)
		}
		seen[v.ID] = true
		if v.Kind != "amm_v2" && v.Kind != "amm_v3" {
			return fmt.Errorf("venue %s: kind %q, want amm_v2 or amm_v3", v.ID, v.Kind)
		}
		if v.Router == "" {
			return fmt.Errorf("venue %s: router is required", v.ID)
		}
		for _, p := range pairs {
			if v.Pools[p.String()] == "" {
				return fmt.Errorf("venue %s: no pool configured for %s", v.ID, p)
			}
		}
	}
	if c.Safety.MinProfitPercent < 0 || c.Safety.SlippageTolerancePercent < 0 {
		return fmt.Errorf("safety thresholds must be non-negative")
	}
	if c.Safety.MaxTradeAmount <= 0 {
		return fmt.Errorf("safety.max_trade_amount must be positive")
	}
	return nil
}

// ParsedPairs returns the configured pairs in declaration order.
func (c *Config) ParsedPairs() ([]types.Pair, error) {
	out := make([]types.Pair, 0, len(c.Pairs))
	for _, s := range c.Pairs {
		p, err := types.ParsePair(s)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// SimulationMode reports whether execution is routed to the simulated path.
func (c *Config) SimulationMode() bool {
	return c.Safety.SimulationMode == nil || *c.Safety.SimulationMode
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Timings.PollIntervalMs) * time.Millisecond
}
func (c *Config) VenueTimeout() time.Duration {
	return time.Duration(c.Timings.VenueTimeoutMs) * time.Millisecond
}
func (c *Config) TxTimeout() time.Duration {
	return time.Duration(c.Timings.TxTimeoutSec) * time.Second
}
func (c *Config) PushInterval() time.Duration {
	return time.Duration(c.Timings.PushIntervalSec) * time.Second
}
func (c *Config) Staleness() time.Duration {
	return time.Duration(c.Timings.StalenessMs) * time.Millisecond
}

// Public is the redacted projection served by GET /api/config.
type Public struct {
	Pairs           []string         `json:"pairs"`
	ReadConsistency string           `json:"read_consistency"`
	Venues          []Venue          `json:"venues"`
	Tokens          map[string]Token `json:"tokens"`

	MinProfitPercent         float64 `json:"min_profit_percent"`
	MaxTradeAmount           float64 `json:"max_trade_amount"`
	SlippageTolerancePercent float64 `json:"slippage_tolerance_percent"`
	MaxConsecutiveFailures   int     `json:"max_consecutive_failures"`
	MinWalletBalance         float64 `json:"min_wallet_balance"`
	SimulationMode           bool    `json:"simulation_mode"`

	PollIntervalMs int `json:"poll_interval_ms"`
	TxTimeoutSec   int `json:"tx_timeout_sec"`
}

// Redacted strips secrets (RPC endpoint, key material, DSNs) for the API.
func (c *Config) Redacted() Public {
	return Public{
		Pairs:           c.Pairs,
		ReadConsistency: c.Chain.ReadConsistency,
		Venues:          c.Venues,
		Tokens:          c.Tokens,

		MinProfitPercent:         c.Safety.MinProfitPercent,
		MaxTradeAmount:           c.Safety.MaxTradeAmount,
		SlippageTolerancePercent: c.Safety.SlippageTolerancePercent,
		MaxConsecutiveFailures:   c.Safety.MaxConsecutiveFailures,
		MinWalletBalance:         c.Safety.MinWalletBalance,
		SimulationMode:           c.SimulationMode(),

		PollIntervalMs: c.Timings.PollIntervalMs,
		TxTimeoutSec:   c.Timings.TxTimeoutSec,
	}
}
