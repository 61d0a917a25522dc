package contracts

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrUnknownSelector is returned by Decode when no known ABI has a method
// with the call's 4-byte selector.
var ErrUnknownSelector = errors.New("contracts: unknown function selector")

// DecodedCall is a call data blob resolved against the known ABIs.
type DecodedCall struct {
	Contract  string                 `json:"contract"`
	Method    string                 `json:"method"`
	Signature string                 `json:"signature"`
	Selector  string                 `json:"selector"`
	Args      map[string]interface{} `json:"args"`
}

// Decode resolves call data to a method and its named arguments.
func Decode(data []byte) (*DecodedCall, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("decode: call data too short (%d bytes)", len(data))
	}
	for _, k := range known {
		method, err := k.abi.MethodById(data[:4])
		if err != nil {
			continue
		}
		args := make(map[string]interface{})
		if err := method.Inputs.UnpackIntoMap(args, data[4:]); err != nil {
			return nil, fmt.Errorf("decode %s: %w", method.Name, err)
		}
		return &DecodedCall{
			Contract:  k.name,
			Method:    method.Name,
			Signature: method.Sig,
			Selector:  hexutil.Encode(method.ID),
			Args:      args,
		}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownSelector, hexutil.Encode(data[:4]))
}

// UnpackUint256 decodes the single uint256 returned by a view method.
func UnpackUint256(contract abi.ABI, method string, ret []byte) (*big.Int, error) {
	var out *big.Int
	if err := contract.UnpackIntoInterface(&out, method, ret); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}

// UnpackAddress decodes the single address returned by a view method.
func UnpackAddress(contract abi.ABI, method string, ret []byte) (common.Address, error) {
	var out common.Address
	if err := contract.UnpackIntoInterface(&out, method, ret); err != nil {
		return common.Address{}, fmt.Errorf("unpack %s: %w", method, err)
	}
	return out, nil
}
