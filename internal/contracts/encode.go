package contracts

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ExactInputSingleParams mirrors ISwapRouter.ExactInputSingleParams.
// Note: abi tags must match the Solidity struct field names exactly (camelCase).
type ExactInputSingleParams struct {
	TokenIn          common.Address `abi:"tokenIn"`
	TokenOut         common.Address `abi:"tokenOut"`
	Recipient        common.Address `abi:"recipient"`
	Deadline         *big.Int       `abi:"deadline"`
	AmountIn         *big.Int       `abi:"amountIn"`
	AmountOutMinimum *big.Int       `abi:"amountOutMinimum"`
	LimitSqrtPrice   *big.Int       `abi:"limitSqrtPrice"`
}

// ExactOutputSingleParams mirrors ISwapRouter.ExactOutputSingleParams.
// Fee is ignored by Algebra pools but is still part of the struct.
type ExactOutputSingleParams struct {
	TokenIn         common.Address `abi:"tokenIn"`
	TokenOut        common.Address `abi:"tokenOut"`
	Fee             *big.Int       `abi:"fee"`
	Recipient       common.Address `abi:"recipient"`
	Deadline        *big.Int       `abi:"deadline"`
	AmountOut       *big.Int       `abi:"amountOut"`
	AmountInMaximum *big.Int       `abi:"amountInMaximum"`
	LimitSqrtPrice  *big.Int       `abi:"limitSqrtPrice"`
}

// Call is one entry of an executeBatch call.
type Call struct {
	To    common.Address
	Value *big.Int
	Data  []byte
}

// BalanceOf packs IERC20.balanceOf(account).
func BalanceOf(account common.Address) ([]byte, error) {
	data, err := ERC20ABI.Pack("balanceOf", account)
	return pack("balanceOf", data, err)
}

// Allowance packs IERC20.allowance(owner, spender).
func Allowance(owner, spender common.Address) ([]byte, error) {
	data, err := ERC20ABI.Pack("allowance", owner, spender)
	return pack("allowance", data, err)
}

// Approve packs IERC20.approve(spender, amount).
func Approve(spender common.Address, amount *big.Int) ([]byte, error) {
	if amount == nil {
		return nil, fmt.Errorf("pack approve: nil amount")
	}
	data, err := ERC20ABI.Pack("approve", spender, amount)
	return pack("approve", data, err)
}

// BridgeERC20To packs L1StandardBridge.bridgeERC20To.
func BridgeERC20To(localToken, remoteToken, to common.Address, amount *big.Int, minGasLimit uint32, extraData []byte) ([]byte, error) {
	if amount == nil {
		return nil, fmt.Errorf("pack bridgeERC20To: nil amount")
	}
	if extraData == nil {
		extraData = []byte{}
	}
	data, err := L1StandardBridgeABI.Pack("bridgeERC20To",
		localToken, remoteToken, to, amount, minGasLimit, extraData)
	return pack("bridgeERC20To", data, err)
}

// DepositETHTo packs L1StandardBridge.depositETHTo. The deposited amount is
// the call value, not an argument.
func DepositETHTo(to common.Address, minGasLimit uint32, extraData []byte) ([]byte, error) {
	if extraData == nil {
		extraData = []byte{}
	}
	data, err := L1StandardBridgeABI.Pack("depositETHTo", to, minGasLimit, extraData)
	return pack("depositETHTo", data, err)
}

// ExactInputSingle packs SwapRouter.exactInputSingle.
func ExactInputSingle(p ExactInputSingleParams) ([]byte, error) {
	if p.Deadline == nil || p.AmountIn == nil || p.AmountOutMinimum == nil {
		return nil, fmt.Errorf("pack exactInputSingle: missing amount or deadline")
	}
	if p.LimitSqrtPrice == nil {
		p.LimitSqrtPrice = new(big.Int)
	}
	data, err := SwapRouterABI.Pack("exactInputSingle", p)
	return pack("exactInputSingle", data, err)
}

// ExactOutputSingle packs SwapRouter.exactOutputSingle.
func ExactOutputSingle(p ExactOutputSingleParams) ([]byte, error) {
	if p.Deadline == nil || p.AmountOut == nil || p.AmountInMaximum == nil {
		return nil, fmt.Errorf("pack exactOutputSingle: missing amount or deadline")
	}
	if p.Fee == nil {
		p.Fee = new(big.Int)
	}
	if p.LimitSqrtPrice == nil {
		p.LimitSqrtPrice = new(big.Int)
	}
	data, err := SwapRouterABI.Pack("exactOutputSingle", p)
	return pack("exactOutputSingle", data, err)
}

// Execute packs SimpleAccount.execute for a single call.
func Execute(c Call) ([]byte, error) {
	data, err := SimpleAccountABI.Pack("execute", c.To, valueOrZero(c.Value), bytesOrEmpty(c.Data))
	return pack("execute", data, err)
}

// ExecuteBatch packs SimpleAccount.executeBatch. All calls run in one
// user operation, so either all of them apply or none do.
func ExecuteBatch(calls []Call) ([]byte, error) {
	if len(calls) == 0 {
		return nil, fmt.Errorf("pack executeBatch: no calls")
	}
	dest := make([]common.Address, len(calls))
	values := make([]*big.Int, len(calls))
	funcs := make([][]byte, len(calls))
	for i, c := range calls {
		dest[i] = c.To
		values[i] = valueOrZero(c.Value)
		funcs[i] = bytesOrEmpty(c.Data)
	}
	data, err := SimpleAccountABI.Pack("executeBatch", dest, values, funcs)
	return pack("executeBatch", data, err)
}

// CreateAccount packs SimpleAccountFactory.createAccount(owner, salt).
func CreateAccount(owner common.Address, salt *big.Int) ([]byte, error) {
	data, err := SimpleAccountFactoryABI.Pack("createAccount", owner, valueOrZero(salt))
	return pack("createAccount", data, err)
}

// GetAddress packs SimpleAccountFactory.getAddress(owner, salt).
func GetAddress(owner common.Address, salt *big.Int) ([]byte, error) {
	data, err := SimpleAccountFactoryABI.Pack("getAddress", owner, valueOrZero(salt))
	return pack("getAddress", data, err)
}

// GetNonce packs EntryPoint.getNonce(sender, key).
func GetNonce(sender common.Address, key *big.Int) ([]byte, error) {
	data, err := EntryPointABI.Pack("getNonce", sender, valueOrZero(key))
	return pack("getNonce", data, err)
}

func pack(method string, data []byte, err error) ([]byte, error) {
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	return data, nil
}

func valueOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func bytesOrEmpty(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
