package aa

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var entryPoint = common.HexToAddress("0x0000000071727De22E5E9d8BAf0edAc6f37da032")

func sampleOp() *UserOperation {
	return &UserOperation{
		Sender:               common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc454e4438f44e"),
		Nonce:                big.NewInt(3),
		CallData:             []byte{0xb6, 0x1d, 0x27, 0xf6},
		CallGasLimit:         big.NewInt(100_000),
		VerificationGasLimit: big.NewInt(200_000),
		PreVerificationGas:   big.NewInt(50_000),
		MaxFeePerGas:         big.NewInt(2_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(1_000_000_000),
	}
}

func TestUserOperation_SignAndRecover(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	op := sampleOp()
	hash, err := op.Sign(key, entryPoint, 919)
	require.NoError(t, err)
	require.Len(t, op.Signature, 65)
	assert.True(t, op.Signature[64] == 27 || op.Signature[64] == 28)

	again, err := op.Hash(entryPoint, 919)
	require.NoError(t, err)
	assert.Equal(t, hash, again, "signature must not affect the hash")

	signer, err := op.RecoverSigner(entryPoint, 919)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer)
}

func TestUserOperation_HashBindsDomain(t *testing.T) {
	op := sampleOp()
	base, err := op.Hash(entryPoint, 919)
	require.NoError(t, err)

	otherChain, err := op.Hash(entryPoint, 34443)
	require.NoError(t, err)
	assert.NotEqual(t, base, otherChain)

	otherEntryPoint, err := op.Hash(common.HexToAddress("0x01"), 919)
	require.NoError(t, err)
	assert.NotEqual(t, base, otherEntryPoint)

	op.Nonce = big.NewInt(4)
	bumped, err := op.Hash(entryPoint, 919)
	require.NoError(t, err)
	assert.NotEqual(t, base, bumped)
}

func TestUserOperation_PackedFields(t *testing.T) {
	op := sampleOp()
	assert.Empty(t, op.InitCode())

	pad, err := op.PaymasterAndData()
	require.NoError(t, err)
	assert.Empty(t, pad)

	factory := common.HexToAddress("0xe7A78BA9be87103C317a66EF78e6085BD74Dd538")
	op.Factory = &factory
	op.FactoryData = []byte{0x5f, 0xbf, 0xb9, 0xcf}
	assert.Equal(t, append(factory.Bytes(), 0x5f, 0xbf, 0xb9, 0xcf), op.InitCode())

	paymaster := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	op.Paymaster = &paymaster
	op.PaymasterVerificationGasLimit = big.NewInt(1)
	op.PaymasterPostOpGasLimit = big.NewInt(2)
	op.PaymasterData = []byte{0xff}

	pad, err = op.PaymasterAndData()
	require.NoError(t, err)
	require.Len(t, pad, 20+16+16+1)
	assert.Equal(t, paymaster.Bytes(), pad[:20])
	assert.Equal(t, byte(1), pad[35])
	assert.Equal(t, byte(2), pad[51])
	assert.Equal(t, byte(0xff), pad[52])
}

func TestUserOperation_GasOverflow(t *testing.T) {
	op := sampleOp()
	op.CallGasLimit = new(big.Int).Lsh(big.NewInt(1), 128)

	_, err := op.Hash(entryPoint, 1)
	assert.Error(t, err)
}

func TestUserOperation_MarshalJSON(t *testing.T) {
	op := sampleOp()
	op.Signature = DummySignature

	out, err := json.Marshal(op)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(out, &fields))
	assert.Equal(t, "0x3", fields["nonce"])
	assert.Equal(t, "0x186a0", fields["callGasLimit"])
	assert.Equal(t, "0xb61d27f6", fields["callData"])
	assert.NotContains(t, fields, "factory")
	assert.NotContains(t, fields, "paymaster")

	paymaster := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	op.Paymaster = &paymaster
	out, err = json.Marshal(op)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(out, &fields))
	assert.Equal(t, paymaster, common.HexToAddress(fields["paymaster"].(string)))
	assert.Equal(t, "0x0", fields["paymasterPostOpGasLimit"])
}

func TestDummySignature(t *testing.T) {
	require.Len(t, DummySignature, crypto.SignatureLength)
	assert.Equal(t, byte(0x1c), DummySignature[crypto.SignatureLength-1])
}
