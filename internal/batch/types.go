// Package batch builds the minimal, ordered list of calls needed to carry
// out a bridge, swap or rebalance intent from a smart account.
//
// A Builder only reads ledger state. It inserts an ERC-20 approval only when
// the current allowance is below what the primary call will pull, and
// returns an empty plan when the intent's completion condition already
// holds, so re-running the same intent after success submits nothing.
package batch

import (
	"context"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Kind identifies an intent variant.
type Kind string

// Intent kinds.
const (
	KindBridgeERC20 Kind = "bridge_erc20"
	KindTopUp       Kind = "topup"
	KindSwap        Kind = "swap"
	KindRebalance   Kind = "rebalance"
)

// NativeToken is the token address used for the chain's native asset.
var NativeToken = common.Address{}

// Step is one on-chain call. It is immutable once constructed: accessors
// return copies.
type Step struct {
	to    common.Address
	value *big.Int
	data  []byte
}

// NewStep creates a Step, copying value and data.
func NewStep(to common.Address, value *big.Int, data []byte) Step {
	v := new(big.Int)
	if value != nil {
		v.Set(value)
	}
	return Step{
		to:    to,
		value: v,
		data:  append([]byte(nil), data...),
	}
}

// To returns the call target.
func (s Step) To() common.Address { return s.to }

// Value returns a copy of the native value sent with the call.
func (s Step) Value() *big.Int {
	if s.value == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(s.value)
}

// Data returns a copy of the call data.
func (s Step) Data() []byte { return append([]byte(nil), s.data...) }

type stepJSON struct {
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value"`
	Data  hexutil.Bytes  `json:"data"`
}

// MarshalJSON implements json.Marshaler.
func (s Step) MarshalJSON() ([]byte, error) {
	return json.Marshal(stepJSON{
		To:    s.to,
		Value: (*hexutil.Big)(s.Value()),
		Data:  s.Data(),
	})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Step) UnmarshalJSON(b []byte) error {
	var raw stepJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = NewStep(raw.To, (*big.Int)(raw.Value), raw.Data)
	return nil
}

// AllowanceCheck is the outcome of comparing an allowance to a requirement.
type AllowanceCheck struct {
	Current       *big.Int `json:"current"`
	Required      *big.Int `json:"required"`
	NeedsApproval bool     `json:"needs_approval"`
}

// CompletionCheck reports whether an intent's target state already holds.
// CurrentBalance is nil when the intent has no completion condition.
type CompletionCheck struct {
	AlreadySatisfied bool     `json:"already_satisfied"`
	CurrentBalance   *big.Int `json:"current_balance,omitempty"`
}

// Plan is the ordered list of calls for one intent. It has no identity
// beyond a single execution attempt.
type Plan struct {
	Kind       Kind            `json:"kind"`
	ChainID    uint64          `json:"chain_id"`
	Account    common.Address  `json:"account"`
	Steps      []Step          `json:"steps"`
	Completion CompletionCheck `json:"completion"`
	Allowance  *AllowanceCheck `json:"allowance,omitempty"`
}

// Empty reports whether there is nothing to submit.
func (p *Plan) Empty() bool { return p == nil || len(p.Steps) == 0 }

// Ledger is the read side of a chain. Implementations must read the latest
// state on every call.
type Ledger interface {
	// BalanceOf returns the balance of account; token NativeToken means the
	// chain's native asset.
	BalanceOf(ctx context.Context, chainID uint64, token, account common.Address) (*big.Int, error)
	Allowance(ctx context.Context, chainID uint64, token, owner, spender common.Address) (*big.Int, error)
	HasCode(ctx context.Context, chainID uint64, addr common.Address) (bool, error)
}

// Submitter executes a plan as a single operation from its account and
// returns the operation identifier. Atomicity of multi-step plans is the
// submitter's guarantee.
type Submitter interface {
	Submit(ctx context.Context, plan *Plan) (common.Hash, error)
}
