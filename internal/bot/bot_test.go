package bot

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/drongunkam-dotcom/arb-bot/internal/config"
	"github.com/drongunkam-dotcom/arb-bot/internal/multicall"
	"github.com/drongunkam-dotcom/arb-bot/internal/types"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Tokens = map[string]config.Token{
		"WETH": {Address: "0x00000000000000000000000000000000000000aa", Decimals: 18},
		"USDC": {Address: "0x00000000000000000000000000000000000000bb", Decimals: 6},
	}
	cfg.Venues = []config.Venue{
		{
			ID:     "quickswap",
			Kind:   "amm_v2",
			Router: "0x0000000000000000000000000000000000000001",
			FeeBps: 30,
			Pools:  map[string]string{"WETH/USDC": "0x0000000000000000000000000000000000000011"},
		},
		{
			ID:      "uniswap_v3",
			Kind:    "amm_v3",
			Router:  "0x0000000000000000000000000000000000000002",
			FeeBps:  30,
			FeeTier: 500,
			Pools:   map[string]string{"WETH/USDC": "0x0000000000000000000000000000000000000022"},
		},
	}
	return cfg
}

func TestBuildRegistry(t *testing.T) {
	cfg := testConfig()
	mc, err := multicall.New(nil, common.Address{}, nil)
	require.NoError(t, err)

	registry, err := BuildRegistry(cfg, nil, mc, nil, big.NewInt(137), nil)
	require.NoError(t, err)

	require.Equal(t, 2, registry.Len())
	a := registry.Get("quickswap")
	require.NotNil(t, a)
	assert.Equal(t, uint32(30), a.FeeBps())
	assert.NotNil(t, registry.Get("uniswap_v3"))
}

func TestBuildRegistryRejectsUnknownKind(t *testing.T) {
	cfg := testConfig()
	cfg.Venues[0].Kind = "orderbook"
	mc, err := multicall.New(nil, common.Address{}, nil)
	require.NoError(t, err)

	_, err = BuildRegistry(cfg, nil, mc, nil, big.NewInt(137), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestParsePools(t *testing.T) {
	pools, err := parsePools(map[string]string{
		"WETH/USDC": "0x0000000000000000000000000000000000000011",
	})
	require.NoError(t, err)
	pair := types.Pair{Base: "WETH", Quote: "USDC"}
	assert.Equal(t, "0x0000000000000000000000000000000000000011", pools[pair].Hex())

	_, err = parsePools(map[string]string{"WETHUSDC": "0x0000000000000000000000000000000000000011"})
	assert.Error(t, err)

	_, err = parsePools(map[string]string{"WETH/USDC": "not-an-address"})
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	log, err := NewLogger()
	require.NoError(t, err)
	defer log.Sync()
	assert.NotNil(t, log)
}

func TestNewBot(t *testing.T) {
	cfg := testConfig()
	b := New(cfg, zap.NewNop())
	assert.Same(t, cfg, b.cfg)
}
