package batch

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/popbatch/internal/contracts"
)

// Fixed cross-domain message gas limits, passed to the bridge unmodified.
const (
	BridgeMinGasLimit  uint32 = 20_000
	DepositMinGasLimit uint32 = 200_000
)

// Intent is a desired on-chain effect. The variants are BridgeERC20Intent,
// TopUpIntent, SwapIntent and RebalanceIntent; each one knows how to encode
// its own primary call.
type Intent interface {
	Kind() Kind

	route() route
	completion() completionRule
	check() error
	// required is the amount the primary step pulls from the owner, given
	// a fresh completion read.
	required(c CompletionCheck) *big.Int
	primaryStep(c CompletionCheck, deadline *big.Int) (Step, error)
}

// route is where an intent's funds come from and which contract pulls them.
type route struct {
	chainID uint64
	token   common.Address
	owner   common.Address
	// target is called by the primary step and is the approval spender.
	target common.Address
}

// completionRule: the intent is done once balanceOf(account, token) on
// chainID reaches threshold. A nil threshold means no completion condition.
type completionRule struct {
	chainID   uint64
	token     common.Address
	account   common.Address
	threshold *big.Int
}

// BridgeERC20Intent moves Amount of an ERC-20 from L1 to L2 through the OP
// Stack L1StandardBridge. It is complete once the recipient's L2 balance is
// at least DestinationTarget (default 1, i.e. any balance at all).
type BridgeERC20Intent struct {
	L1ChainID         uint64         `json:"l1_chain_id" validate:"required"`
	L2ChainID         uint64         `json:"l2_chain_id" validate:"required,nefield=L1ChainID"`
	L1Token           common.Address `json:"l1_token" validate:"required"`
	L2Token           common.Address `json:"l2_token" validate:"required"`
	From              common.Address `json:"from" validate:"required"`
	To                common.Address `json:"to,omitempty"`
	Amount            *big.Int       `json:"amount" validate:"required"`
	L1StandardBridge  common.Address `json:"l1_standard_bridge"`
	DestinationTarget *big.Int       `json:"destination_target,omitempty"`
}

func (BridgeERC20Intent) Kind() Kind { return KindBridgeERC20 }

func (i BridgeERC20Intent) recipient() common.Address {
	if i.To == (common.Address{}) {
		return i.From
	}
	return i.To
}

func (i BridgeERC20Intent) route() route {
	return route{chainID: i.L1ChainID, token: i.L1Token, owner: i.From, target: i.L1StandardBridge}
}

func (i BridgeERC20Intent) completion() completionRule {
	threshold := i.DestinationTarget
	if threshold == nil {
		threshold = big.NewInt(1)
	}
	return completionRule{chainID: i.L2ChainID, token: i.L2Token, account: i.recipient(), threshold: threshold}
}

func (i BridgeERC20Intent) check() error {
	if i.DestinationTarget != nil {
		if err := positive("destination_target", i.DestinationTarget); err != nil {
			return err
		}
	}
	return positive("amount", i.Amount)
}

func (i BridgeERC20Intent) required(CompletionCheck) *big.Int { return i.Amount }

func (i BridgeERC20Intent) primaryStep(_ CompletionCheck, _ *big.Int) (Step, error) {
	data, err := contracts.BridgeERC20To(i.L1Token, i.L2Token, i.recipient(), i.Amount, BridgeMinGasLimit, nil)
	if err != nil {
		return Step{}, err
	}
	return NewStep(i.L1StandardBridge, nil, data), nil
}

// TopUpIntent deposits native ETH from L1 so the L2 balance of To reaches
// TargetBalance. A deposit is made only while that balance is at most
// MinBalance and below TargetBalance; MinBalance 0 means "only when empty".
// Without MinBalance the deposit is made whenever the balance is below
// TargetBalance.
type TopUpIntent struct {
	L1ChainID        uint64         `json:"l1_chain_id" validate:"required"`
	L2ChainID        uint64         `json:"l2_chain_id" validate:"required,nefield=L1ChainID"`
	From             common.Address `json:"from" validate:"required"`
	To               common.Address `json:"to,omitempty"`
	MinBalance       *big.Int       `json:"min_balance,omitempty"`
	TargetBalance    *big.Int       `json:"target_balance" validate:"required"`
	L1StandardBridge common.Address `json:"l1_standard_bridge"`
}

func (TopUpIntent) Kind() Kind { return KindTopUp }

func (i TopUpIntent) recipient() common.Address {
	if i.To == (common.Address{}) {
		return i.From
	}
	return i.To
}

func (i TopUpIntent) route() route {
	return route{chainID: i.L1ChainID, token: NativeToken, owner: i.From, target: i.L1StandardBridge}
}

func (i TopUpIntent) completion() completionRule {
	// balance > MinBalance or balance >= TargetBalance, as one >= bound.
	threshold := i.TargetBalance
	if i.MinBalance != nil {
		above := new(big.Int).Add(i.MinBalance, big.NewInt(1))
		if above.Cmp(threshold) < 0 {
			threshold = above
		}
	}
	return completionRule{chainID: i.L2ChainID, token: NativeToken, account: i.recipient(), threshold: threshold}
}

func (i TopUpIntent) check() error {
	if err := positive("target_balance", i.TargetBalance); err != nil {
		return err
	}
	if i.MinBalance == nil {
		return nil
	}
	if i.MinBalance.Sign() < 0 {
		return fmt.Errorf("min_balance must not be negative")
	}
	if i.MinBalance.Cmp(i.TargetBalance) > 0 {
		return fmt.Errorf("min_balance %s exceeds target_balance %s", i.MinBalance, i.TargetBalance)
	}
	return nil
}

func (i TopUpIntent) required(c CompletionCheck) *big.Int {
	return deficit(i.TargetBalance, c.CurrentBalance)
}

func (i TopUpIntent) primaryStep(c CompletionCheck, _ *big.Int) (Step, error) {
	data, err := contracts.DepositETHTo(i.recipient(), DepositMinGasLimit, nil)
	if err != nil {
		return Step{}, err
	}
	return NewStep(i.L1StandardBridge, i.required(c), data), nil
}

// SwapIntent sells exactly AmountIn of TokenIn through an Algebra router.
// When TargetOut is set the swap is skipped once the recipient already holds
// that much TokenOut.
type SwapIntent struct {
	ChainID          uint64         `json:"chain_id" validate:"required"`
	TokenIn          common.Address `json:"token_in" validate:"required"`
	TokenOut         common.Address `json:"token_out" validate:"required"`
	AmountIn         *big.Int       `json:"amount_in" validate:"required"`
	AmountOutMinimum *big.Int       `json:"amount_out_minimum,omitempty"`
	From             common.Address `json:"from" validate:"required"`
	Recipient        common.Address `json:"recipient,omitempty"`
	Router           common.Address `json:"router"`
	TargetOut        *big.Int       `json:"target_out,omitempty"`
}

func (SwapIntent) Kind() Kind { return KindSwap }

func (i SwapIntent) recipient() common.Address {
	if i.Recipient == (common.Address{}) {
		return i.From
	}
	return i.Recipient
}

func (i SwapIntent) route() route {
	return route{chainID: i.ChainID, token: i.TokenIn, owner: i.From, target: i.Router}
}

func (i SwapIntent) completion() completionRule {
	return completionRule{chainID: i.ChainID, token: i.TokenOut, account: i.recipient(), threshold: i.TargetOut}
}

func (i SwapIntent) check() error {
	if i.TokenIn == i.TokenOut {
		return fmt.Errorf("token_in and token_out must differ")
	}
	if err := positive("amount_in", i.AmountIn); err != nil {
		return err
	}
	if i.AmountOutMinimum != nil && i.AmountOutMinimum.Sign() < 0 {
		return fmt.Errorf("amount_out_minimum must not be negative")
	}
	if i.TargetOut != nil {
		return positive("target_out", i.TargetOut)
	}
	return nil
}

func (i SwapIntent) required(CompletionCheck) *big.Int { return i.AmountIn }

func (i SwapIntent) primaryStep(_ CompletionCheck, deadline *big.Int) (Step, error) {
	minOut := i.AmountOutMinimum
	if minOut == nil {
		minOut = new(big.Int)
	}
	data, err := contracts.ExactInputSingle(contracts.ExactInputSingleParams{
		TokenIn:          i.TokenIn,
		TokenOut:         i.TokenOut,
		Recipient:        i.recipient(),
		Deadline:         deadline,
		AmountIn:         i.AmountIn,
		AmountOutMinimum: minOut,
	})
	if err != nil {
		return Step{}, err
	}
	return NewStep(i.Router, nil, data), nil
}

// RebalanceIntent buys TokenOut with TokenIn until Account holds TargetOut.
// Only the deficit is bought, spending at most MaxIn.
type RebalanceIntent struct {
	ChainID   uint64         `json:"chain_id" validate:"required"`
	TokenIn   common.Address `json:"token_in" validate:"required"`
	TokenOut  common.Address `json:"token_out" validate:"required"`
	Account   common.Address `json:"account" validate:"required"`
	TargetOut *big.Int       `json:"target_out" validate:"required"`
	MaxIn     *big.Int       `json:"max_in" validate:"required"`
	Router    common.Address `json:"router"`
}

func (RebalanceIntent) Kind() Kind { return KindRebalance }

func (i RebalanceIntent) route() route {
	return route{chainID: i.ChainID, token: i.TokenIn, owner: i.Account, target: i.Router}
}

func (i RebalanceIntent) completion() completionRule {
	return completionRule{chainID: i.ChainID, token: i.TokenOut, account: i.Account, threshold: i.TargetOut}
}

func (i RebalanceIntent) check() error {
	if i.TokenIn == i.TokenOut {
		return fmt.Errorf("token_in and token_out must differ")
	}
	if err := positive("target_out", i.TargetOut); err != nil {
		return err
	}
	return positive("max_in", i.MaxIn)
}

func (i RebalanceIntent) required(CompletionCheck) *big.Int { return i.MaxIn }

func (i RebalanceIntent) primaryStep(c CompletionCheck, deadline *big.Int) (Step, error) {
	data, err := contracts.ExactOutputSingle(contracts.ExactOutputSingleParams{
		TokenIn:         i.TokenIn,
		TokenOut:        i.TokenOut,
		Recipient:       i.Account,
		Deadline:        deadline,
		AmountOut:       deficit(i.TargetOut, c.CurrentBalance),
		AmountInMaximum: i.MaxIn,
	})
	if err != nil {
		return Step{}, err
	}
	return NewStep(i.Router, nil, data), nil
}

func positive(field string, v *big.Int) error {
	if v == nil || v.Sign() <= 0 {
		return fmt.Errorf("%s must be greater than zero", field)
	}
	return nil
}

// deficit returns target - current, floored at zero.
func deficit(target, current *big.Int) *big.Int {
	if current == nil {
		return new(big.Int).Set(target)
	}
	d := new(big.Int).Sub(target, current)
	if d.Sign() < 0 {
		return new(big.Int)
	}
	return d
}
