// Package aa submits batch plans as ERC-4337 (EntryPoint v0.7) user
// operations from a SimpleAccount owned by an ECDSA key.
package aa

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// DummySignature is a well-formed signature used while estimating gas.
var DummySignature = hexutil.MustDecode("0xfffffffffffffffffffffffffffffff0000000000000000000000000000000007aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa1c")

// UserOperation is an unpacked v0.7 user operation as bundlers accept it.
type UserOperation struct {
	Sender               common.Address
	Nonce                *big.Int
	Factory              *common.Address
	FactoryData          []byte
	CallData             []byte
	CallGasLimit         *big.Int
	VerificationGasLimit *big.Int
	PreVerificationGas   *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int

	Paymaster                     *common.Address
	PaymasterVerificationGasLimit *big.Int
	PaymasterPostOpGasLimit       *big.Int
	PaymasterData                 []byte

	Signature []byte
}

type userOpJSON struct {
	Sender                        common.Address  `json:"sender"`
	Nonce                         *hexutil.Big    `json:"nonce"`
	Factory                       *common.Address `json:"factory,omitempty"`
	FactoryData                   hexutil.Bytes   `json:"factoryData,omitempty"`
	CallData                      hexutil.Bytes   `json:"callData"`
	CallGasLimit                  *hexutil.Big    `json:"callGasLimit"`
	VerificationGasLimit          *hexutil.Big    `json:"verificationGasLimit"`
	PreVerificationGas            *hexutil.Big    `json:"preVerificationGas"`
	MaxFeePerGas                  *hexutil.Big    `json:"maxFeePerGas"`
	MaxPriorityFeePerGas          *hexutil.Big    `json:"maxPriorityFeePerGas"`
	Paymaster                     *common.Address `json:"paymaster,omitempty"`
	PaymasterVerificationGasLimit *hexutil.Big    `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       *hexutil.Big    `json:"paymasterPostOpGasLimit,omitempty"`
	PaymasterData                 hexutil.Bytes   `json:"paymasterData,omitempty"`
	Signature                     hexutil.Bytes   `json:"signature"`
}

// MarshalJSON encodes the operation in the bundler RPC format.
func (op *UserOperation) MarshalJSON() ([]byte, error) {
	out := userOpJSON{
		Sender:               op.Sender,
		Nonce:                hexBig(op.Nonce),
		Factory:              op.Factory,
		CallData:             bytesOrEmpty(op.CallData),
		CallGasLimit:         hexBig(op.CallGasLimit),
		VerificationGasLimit: hexBig(op.VerificationGasLimit),
		PreVerificationGas:   hexBig(op.PreVerificationGas),
		MaxFeePerGas:         hexBig(op.MaxFeePerGas),
		MaxPriorityFeePerGas: hexBig(op.MaxPriorityFeePerGas),
		Signature:            bytesOrEmpty(op.Signature),
	}
	if op.Factory != nil {
		out.FactoryData = bytesOrEmpty(op.FactoryData)
	}
	if op.Paymaster != nil {
		out.Paymaster = op.Paymaster
		out.PaymasterVerificationGasLimit = hexBig(op.PaymasterVerificationGasLimit)
		out.PaymasterPostOpGasLimit = hexBig(op.PaymasterPostOpGasLimit)
		out.PaymasterData = bytesOrEmpty(op.PaymasterData)
	}
	return json.Marshal(out)
}

// InitCode is factory followed by factoryData, or empty for a deployed account.
func (op *UserOperation) InitCode() []byte {
	if op.Factory == nil {
		return []byte{}
	}
	return append(op.Factory.Bytes(), op.FactoryData...)
}

// PaymasterAndData packs the paymaster fields the way EntryPoint v0.7
// hashes them.
func (op *UserOperation) PaymasterAndData() ([]byte, error) {
	if op.Paymaster == nil {
		return []byte{}, nil
	}
	verification, err := uint128(op.PaymasterVerificationGasLimit)
	if err != nil {
		return nil, fmt.Errorf("paymasterVerificationGasLimit: %w", err)
	}
	postOp, err := uint128(op.PaymasterPostOpGasLimit)
	if err != nil {
		return nil, fmt.Errorf("paymasterPostOpGasLimit: %w", err)
	}
	out := append(op.Paymaster.Bytes(), verification...)
	out = append(out, postOp...)
	return append(out, op.PaymasterData...), nil
}

var (
	addressT, _ = abi.NewType("address", "", nil)
	uint256T, _ = abi.NewType("uint256", "", nil)
	bytes32T, _ = abi.NewType("bytes32", "", nil)

	packedArgs = abi.Arguments{
		{Type: addressT}, {Type: uint256T}, {Type: bytes32T}, {Type: bytes32T},
		{Type: bytes32T}, {Type: uint256T}, {Type: bytes32T}, {Type: bytes32T},
	}
	hashArgs = abi.Arguments{{Type: bytes32T}, {Type: addressT}, {Type: uint256T}}
)

// Hash returns the user operation hash EntryPoint v0.7 computes for
// entryPoint on chainID. The signature is not part of it.
func (op *UserOperation) Hash(entryPoint common.Address, chainID uint64) (common.Hash, error) {
	accountGasLimits, err := packUint128Pair(op.VerificationGasLimit, op.CallGasLimit)
	if err != nil {
		return common.Hash{}, fmt.Errorf("account gas limits: %w", err)
	}
	gasFees, err := packUint128Pair(op.MaxPriorityFeePerGas, op.MaxFeePerGas)
	if err != nil {
		return common.Hash{}, fmt.Errorf("gas fees: %w", err)
	}
	paymasterAndData, err := op.PaymasterAndData()
	if err != nil {
		return common.Hash{}, err
	}

	packed, err := packedArgs.Pack(
		op.Sender,
		valueOrZero(op.Nonce),
		crypto.Keccak256Hash(op.InitCode()),
		crypto.Keccak256Hash(op.CallData),
		accountGasLimits,
		valueOrZero(op.PreVerificationGas),
		gasFees,
		crypto.Keccak256Hash(paymasterAndData),
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack user operation: %w", err)
	}

	enc, err := hashArgs.Pack(crypto.Keccak256Hash(packed), entryPoint, new(big.Int).SetUint64(chainID))
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack user operation hash: %w", err)
	}
	return crypto.Keccak256Hash(enc), nil
}

// Sign sets the owner's EIP-191 signature over the operation hash, which is
// what SimpleAccount verifies.
func (op *UserOperation) Sign(key *ecdsa.PrivateKey, entryPoint common.Address, chainID uint64) (common.Hash, error) {
	hash, err := op.Hash(entryPoint, chainID)
	if err != nil {
		return common.Hash{}, err
	}
	sig, err := crypto.Sign(accounts.TextHash(hash.Bytes()), key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign user operation: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	op.Signature = sig
	return hash, nil
}

// RecoverSigner returns the address that produced op.Signature.
func (op *UserOperation) RecoverSigner(entryPoint common.Address, chainID uint64) (common.Address, error) {
	if len(op.Signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature length %d", len(op.Signature))
	}
	hash, err := op.Hash(entryPoint, chainID)
	if err != nil {
		return common.Address{}, err
	}
	sig := append([]byte(nil), op.Signature...)
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	pub, err := crypto.SigToPub(accounts.TextHash(hash.Bytes()), sig)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}

func packUint128Pair(hi, lo *big.Int) ([32]byte, error) {
	var out [32]byte
	h, err := uint128(hi)
	if err != nil {
		return out, err
	}
	l, err := uint128(lo)
	if err != nil {
		return out, err
	}
	copy(out[:16], h)
	copy(out[16:], l)
	return out, nil
}

func uint128(v *big.Int) ([]byte, error) {
	v = valueOrZero(v)
	if v.Sign() < 0 || v.BitLen() > 128 {
		return nil, fmt.Errorf("%s does not fit in uint128", v)
	}
	return common.LeftPadBytes(v.Bytes(), 16), nil
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func hexBig(v *big.Int) *hexutil.Big {
	return (*hexutil.Big)(valueOrZero(v))
}

func bytesOrEmpty(b []byte) hexutil.Bytes {
	if b == nil {
		return hexutil.Bytes{}
	}
	return b
}
