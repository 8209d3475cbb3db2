package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePair(t *testing.T) {
	p, err := ParsePair("weth/usdc")
	require.NoError(t, err)
	assert.Equal(t, Pair{Base: "WETH", Quote: "USDC"}, p)
	assert.Equal(t, "WETH/USDC", p.String())

	for _, bad := range []string{"", "WETH", "WETH/", "/USDC", "A/B/C"} {
		_, err := ParsePair(bad)
		assert.Error(t, err, bad)
	}
}

func TestPairJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		Pair Pair `json:"pair"`
	}
	b, err := json.Marshal(wrapper{Pair: Pair{Base: "WETH", Quote: "USDC"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pair":"WETH/USDC"}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"pair":"wbtc/usdt"}`), &w))
	assert.Equal(t, Pair{Base: "WBTC", Quote: "USDT"}, w.Pair)
}
