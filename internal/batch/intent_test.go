package batch

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeficit(t *testing.T) {
	tests := []struct {
		name    string
		target  int64
		current *big.Int
		want    int64
	}{
		{"nothing held", 1000, big.NewInt(0), 1000},
		{"partial", 1000, big.NewInt(250), 750},
		{"exact", 1000, big.NewInt(1000), 0},
		{"over target", 1000, big.NewInt(5000), 0},
		{"unknown current", 1000, nil, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := deficit(big.NewInt(tt.target), tt.current)
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestBridgeERC20Intent_Defaults(t *testing.T) {
	i := bridgeIntent()

	rule := i.completion()
	assert.Equal(t, modeTestnet, rule.chainID)
	assert.Equal(t, usdcL2, rule.token)
	assert.Equal(t, account, rule.account)
	assert.Equal(t, int64(1), rule.threshold.Int64())

	i.To = recipient
	i.DestinationTarget = big.NewInt(500)
	rule = i.completion()
	assert.Equal(t, recipient, rule.account)
	assert.Equal(t, int64(500), rule.threshold.Int64())

	r := i.route()
	assert.Equal(t, sepolia, r.chainID)
	assert.Equal(t, usdcL1, r.token)
	assert.Equal(t, account, r.owner)
	assert.Equal(t, l1Bridge, r.target)
}

func TestTopUpIntent_Completion(t *testing.T) {
	i := TopUpIntent{
		L1ChainID:     sepolia,
		L2ChainID:     modeTestnet,
		From:          account,
		TargetBalance: big.NewInt(1000),
	}
	assert.Equal(t, int64(1000), i.completion().threshold.Int64())
	assert.Equal(t, NativeToken, i.route().token)

	i.MinBalance = big.NewInt(10)
	assert.Equal(t, int64(11), i.completion().threshold.Int64())
	assert.Equal(t, int64(990), i.required(CompletionCheck{CurrentBalance: big.NewInt(10)}).Int64())

	i.MinBalance = big.NewInt(0)
	assert.Equal(t, int64(1), i.completion().threshold.Int64())

	i.MinBalance = big.NewInt(1000)
	assert.Equal(t, int64(1000), i.completion().threshold.Int64())
}

func TestSwapIntent_NoTarget(t *testing.T) {
	i := SwapIntent{ChainID: modeTestnet, TokenIn: usdcL2, TokenOut: weth, AmountIn: big.NewInt(1), From: account}
	assert.Nil(t, i.completion().threshold)
	assert.Equal(t, account, i.completion().account)

	i.Recipient = recipient
	assert.Equal(t, recipient, i.completion().account)
}

func TestStep_Immutable(t *testing.T) {
	value := big.NewInt(5)
	data := []byte{0x01, 0x02}
	s := NewStep(l1Bridge, value, data)

	value.SetInt64(99)
	data[0] = 0xff
	assert.Equal(t, int64(5), s.Value().Int64())
	assert.Equal(t, []byte{0x01, 0x02}, s.Data())

	s.Value().SetInt64(7)
	s.Data()[0] = 0xee
	assert.Equal(t, int64(5), s.Value().Int64())
	assert.Equal(t, byte(0x01), s.Data()[0])
}

func TestStep_JSON(t *testing.T) {
	s := NewStep(common.HexToAddress("0x00000000000000000000000000000000000000aa"), big.NewInt(16), []byte{0xbe, 0xef})

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.JSONEq(t, `{"to":"0x00000000000000000000000000000000000000aa","value":"0x10","data":"0xbeef"}`, string(out))

	var back Step
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, s.To(), back.To())
	assert.Equal(t, s.Data(), back.Data())
	assert.Equal(t, 0, s.Value().Cmp(back.Value()))
}

func TestPlan_Empty(t *testing.T) {
	var p *Plan
	assert.True(t, p.Empty())
	assert.True(t, (&Plan{}).Empty())
	assert.False(t, (&Plan{Steps: []Step{NewStep(l1Bridge, nil, nil)}}).Empty())
}
