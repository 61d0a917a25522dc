package config

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/Bidon15/popbatch/internal/batch"
	"github.com/Bidon15/popbatch/internal/chains"
)

// ErrInvalidIntentFile is returned for intent files that cannot be resolved.
var ErrInvalidIntentFile = errors.New("popbatch: invalid intent file")

// IntentSpec is the YAML form of an intent. Tokens may be symbols (usdc,
// weth) resolved against the environment's deployment, or addresses.
// Amounts are base-unit integers.
type IntentSpec struct {
	Kind        batch.Kind `yaml:"kind" validate:"required,oneof=bridge_erc20 topup swap rebalance"`
	Environment string     `yaml:"environment,omitempty" validate:"omitempty,oneof=testnet mainnet"`

	Token    string `yaml:"token,omitempty"`
	L2Token  string `yaml:"l2_token,omitempty" validate:"omitempty,eth_addr"`
	TokenIn  string `yaml:"token_in,omitempty"`
	TokenOut string `yaml:"token_out,omitempty"`

	Amount           string `yaml:"amount,omitempty" validate:"omitempty,numeric"`
	AmountOutMinimum string `yaml:"amount_out_minimum,omitempty" validate:"omitempty,numeric"`
	MinBalance       string `yaml:"min_balance,omitempty" validate:"omitempty,numeric"`
	TargetBalance    string `yaml:"target_balance,omitempty" validate:"omitempty,numeric"`
	TargetOut        string `yaml:"target_out,omitempty" validate:"omitempty,numeric"`
	MaxIn            string `yaml:"max_in,omitempty" validate:"omitempty,numeric"`

	To        string `yaml:"to,omitempty" validate:"omitempty,eth_addr"`
	Recipient string `yaml:"recipient,omitempty" validate:"omitempty,eth_addr"`
}

// LoadIntentFile reads and validates an intent file.
func LoadIntentFile(path string) (*IntentSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read intent file: %w", err)
	}
	return ParseIntent(data)
}

// ParseIntent decodes and validates a YAML intent. Unknown fields are
// rejected.
func ParseIntent(data []byte) (*IntentSpec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var spec IntentSpec
	if err := dec.Decode(&spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIntentFile, err)
	}
	if err := validator.New().Struct(&spec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIntentFile, err)
	}
	return &spec, nil
}

// Resolve turns the spec into a batch intent executed by account on d.
func (s *IntentSpec) Resolve(d chains.Deployment, account common.Address) (batch.Intent, error) {
	switch s.Kind {
	case batch.KindBridgeERC20:
		return s.resolveBridge(d, account)
	case batch.KindTopUp:
		return s.resolveTopUp(d, account)
	case batch.KindSwap:
		return s.resolveSwap(d, account)
	case batch.KindRebalance:
		return s.resolveRebalance(d, account)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidIntentFile, s.Kind)
	}
}

func (s *IntentSpec) resolveBridge(d chains.Deployment, account common.Address) (batch.Intent, error) {
	symbol := s.Token
	if symbol == "" {
		symbol = "usdc"
	}
	l1Token, err := resolveToken(d, symbol, true)
	if err != nil {
		return nil, err
	}
	l2Symbol := symbol
	if s.L2Token != "" {
		l2Symbol = s.L2Token
	}
	l2Token, err := resolveToken(d, l2Symbol, false)
	if err != nil {
		return nil, err
	}
	amount, err := requiredAmount("amount", s.Amount)
	if err != nil {
		return nil, err
	}
	return batch.BridgeERC20Intent{
		L1ChainID:         d.L1.ChainID,
		L2ChainID:         d.L2.ChainID,
		L1Token:           l1Token,
		L2Token:           l2Token,
		From:              account,
		To:                optionalAddress(s.To),
		Amount:            amount,
		L1StandardBridge:  d.L1StandardBridge,
		DestinationTarget: optionalAmount(s.TargetBalance),
	}, nil
}

func (s *IntentSpec) resolveTopUp(d chains.Deployment, account common.Address) (batch.Intent, error) {
	target, err := requiredAmount("target_balance", s.TargetBalance)
	if err != nil {
		return nil, err
	}
	return batch.TopUpIntent{
		L1ChainID:        d.L1.ChainID,
		L2ChainID:        d.L2.ChainID,
		From:             account,
		To:               optionalAddress(s.To),
		MinBalance:       optionalAmount(s.MinBalance),
		TargetBalance:    target,
		L1StandardBridge: d.L1StandardBridge,
	}, nil
}

func (s *IntentSpec) resolveSwap(d chains.Deployment, account common.Address) (batch.Intent, error) {
	tokenIn, tokenOut, err := s.swapTokens(d)
	if err != nil {
		return nil, err
	}
	amount, err := requiredAmount("amount", s.Amount)
	if err != nil {
		return nil, err
	}
	return batch.SwapIntent{
		ChainID:          d.L2.ChainID,
		TokenIn:          tokenIn,
		TokenOut:         tokenOut,
		AmountIn:         amount,
		AmountOutMinimum: optionalAmount(s.AmountOutMinimum),
		From:             account,
		Recipient:        optionalAddress(s.Recipient),
		Router:           d.SwapRouter,
		TargetOut:        optionalAmount(s.TargetOut),
	}, nil
}

func (s *IntentSpec) resolveRebalance(d chains.Deployment, account common.Address) (batch.Intent, error) {
	tokenIn, tokenOut, err := s.swapTokens(d)
	if err != nil {
		return nil, err
	}
	target, err := requiredAmount("target_out", s.TargetOut)
	if err != nil {
		return nil, err
	}
	maxIn, err := requiredAmount("max_in", s.MaxIn)
	if err != nil {
		return nil, err
	}
	return batch.RebalanceIntent{
		ChainID:   d.L2.ChainID,
		TokenIn:   tokenIn,
		TokenOut:  tokenOut,
		Account:   account,
		TargetOut: target,
		MaxIn:     maxIn,
		Router:    d.SwapRouter,
	}, nil
}

func (s *IntentSpec) swapTokens(d chains.Deployment) (common.Address, common.Address, error) {
	in, out := s.TokenIn, s.TokenOut
	if in == "" {
		in = "weth"
	}
	if out == "" {
		out = "usdc"
	}
	tokenIn, err := resolveToken(d, in, false)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	tokenOut, err := resolveToken(d, out, false)
	if err != nil {
		return common.Address{}, common.Address{}, err
	}
	return tokenIn, tokenOut, nil
}

// resolveToken maps a symbol or address to a token on L1 or L2.
func resolveToken(d chains.Deployment, token string, l1 bool) (common.Address, error) {
	switch strings.ToLower(token) {
	case "usdc":
		if l1 {
			return d.USDCL1, nil
		}
		return d.USDCL2, nil
	case "weth":
		if l1 {
			return common.Address{}, fmt.Errorf("%w: weth is only known on L2", ErrInvalidIntentFile)
		}
		return d.WETHL2, nil
	}
	if !common.IsHexAddress(token) {
		return common.Address{}, fmt.Errorf("%w: unknown token %q", ErrInvalidIntentFile, token)
	}
	return common.HexToAddress(token), nil
}

func requiredAmount(field, raw string) (*big.Int, error) {
	v := optionalAmount(raw)
	if v == nil {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidIntentFile, field)
	}
	return v, nil
}

func optionalAmount(raw string) *big.Int {
	if raw == "" {
		return nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil
	}
	return v
}

func optionalAddress(raw string) common.Address {
	if raw == "" {
		return common.Address{}
	}
	return common.HexToAddress(raw)
}
