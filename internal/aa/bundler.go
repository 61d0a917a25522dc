package aa

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// GasPrice is one fee tier.
type GasPrice struct {
	MaxFeePerGas         *hexutil.Big `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big `json:"maxPriorityFeePerGas"`
}

// GasPrices is the response of pimlico_getUserOperationGasPrice.
type GasPrices struct {
	Slow     GasPrice `json:"slow"`
	Standard GasPrice `json:"standard"`
	Fast     GasPrice `json:"fast"`
}

// GasEstimate is the response of eth_estimateUserOperationGas.
type GasEstimate struct {
	PreVerificationGas            *hexutil.Big `json:"preVerificationGas"`
	VerificationGasLimit          *hexutil.Big `json:"verificationGasLimit"`
	CallGasLimit                  *hexutil.Big `json:"callGasLimit"`
	PaymasterVerificationGasLimit *hexutil.Big `json:"paymasterVerificationGasLimit,omitempty"`
	PaymasterPostOpGasLimit       *hexutil.Big `json:"paymasterPostOpGasLimit,omitempty"`
}

// Sponsorship is the response of pm_sponsorUserOperation.
type Sponsorship struct {
	Paymaster                     common.Address `json:"paymaster"`
	PaymasterData                 hexutil.Bytes  `json:"paymasterData"`
	PaymasterVerificationGasLimit *hexutil.Big   `json:"paymasterVerificationGasLimit"`
	PaymasterPostOpGasLimit       *hexutil.Big   `json:"paymasterPostOpGasLimit"`
	PreVerificationGas            *hexutil.Big   `json:"preVerificationGas"`
	VerificationGasLimit          *hexutil.Big   `json:"verificationGasLimit"`
	CallGasLimit                  *hexutil.Big   `json:"callGasLimit"`
}

// Receipt is the response of eth_getUserOperationReceipt.
type Receipt struct {
	UserOpHash    common.Hash    `json:"userOpHash"`
	Sender        common.Address `json:"sender"`
	Nonce         *hexutil.Big   `json:"nonce"`
	Success       bool           `json:"success"`
	Reason        string         `json:"reason,omitempty"`
	ActualGasCost *hexutil.Big   `json:"actualGasCost"`
	ActualGasUsed *hexutil.Big   `json:"actualGasUsed"`
	Receipt       struct {
		TransactionHash common.Hash  `json:"transactionHash"`
		BlockNumber     *hexutil.Big `json:"blockNumber"`
	} `json:"receipt"`
}

// TxHash returns the hash of the bundle transaction that included the
// operation.
func (r *Receipt) TxHash() common.Hash { return r.Receipt.TransactionHash }

// BundlerClient talks to an ERC-4337 bundler that also serves the Pimlico
// gas price and paymaster methods.
type BundlerClient struct {
	rpc *rpc.Client
}

// DialBundler connects to a bundler endpoint.
func DialBundler(ctx context.Context, url string) (*BundlerClient, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial bundler: %w", err)
	}
	return NewBundlerClient(c), nil
}

// NewBundlerClient wraps an existing RPC client.
func NewBundlerClient(c *rpc.Client) *BundlerClient {
	return &BundlerClient{rpc: c}
}

// Close closes the underlying connection.
func (b *BundlerClient) Close() { b.rpc.Close() }

// SupportedEntryPoints lists the entry points the bundler serves.
func (b *BundlerClient) SupportedEntryPoints(ctx context.Context) ([]common.Address, error) {
	var out []common.Address
	if err := b.rpc.CallContext(ctx, &out, "eth_supportedEntryPoints"); err != nil {
		return nil, fmt.Errorf("eth_supportedEntryPoints: %w", err)
	}
	return out, nil
}

// ErrEntryPointUnsupported is returned when the bundler does not serve the
// configured entry point.
var ErrEntryPointUnsupported = errors.New("popbatch: bundler does not support entry point")

// RequireEntryPoint fails unless the bundler serves entryPoint.
func (b *BundlerClient) RequireEntryPoint(ctx context.Context, entryPoint common.Address) error {
	eps, err := b.SupportedEntryPoints(ctx)
	if err != nil {
		return err
	}
	for _, ep := range eps {
		if ep == entryPoint {
			return nil
		}
	}
	return fmt.Errorf("%w: %s (serves %v)", ErrEntryPointUnsupported, entryPoint.Hex(), eps)
}

// GasPrice returns the bundler's suggested fees.
func (b *BundlerClient) GasPrice(ctx context.Context) (*GasPrices, error) {
	var out GasPrices
	if err := b.rpc.CallContext(ctx, &out, "pimlico_getUserOperationGasPrice"); err != nil {
		return nil, fmt.Errorf("pimlico_getUserOperationGasPrice: %w", err)
	}
	if out.Fast.MaxFeePerGas == nil || out.Fast.MaxPriorityFeePerGas == nil {
		return nil, fmt.Errorf("pimlico_getUserOperationGasPrice: missing fast tier")
	}
	return &out, nil
}

// EstimateGas estimates gas limits for op.
func (b *BundlerClient) EstimateGas(ctx context.Context, op *UserOperation, entryPoint common.Address) (*GasEstimate, error) {
	var out GasEstimate
	if err := b.rpc.CallContext(ctx, &out, "eth_estimateUserOperationGas", op, entryPoint); err != nil {
		return nil, fmt.Errorf("eth_estimateUserOperationGas: %w", err)
	}
	return &out, nil
}

// Sponsor asks the paymaster to pay for op.
func (b *BundlerClient) Sponsor(ctx context.Context, op *UserOperation, entryPoint common.Address) (*Sponsorship, error) {
	var out Sponsorship
	if err := b.rpc.CallContext(ctx, &out, "pm_sponsorUserOperation", op, entryPoint); err != nil {
		return nil, fmt.Errorf("pm_sponsorUserOperation: %w", err)
	}
	return &out, nil
}

// Send submits a signed op and returns its hash.
func (b *BundlerClient) Send(ctx context.Context, op *UserOperation, entryPoint common.Address) (common.Hash, error) {
	var out common.Hash
	if err := b.rpc.CallContext(ctx, &out, "eth_sendUserOperation", op, entryPoint); err != nil {
		return common.Hash{}, fmt.Errorf("eth_sendUserOperation: %w", err)
	}
	return out, nil
}

// Receipt returns the receipt of an included operation, or nil while it is
// still pending.
func (b *BundlerClient) Receipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	var out *Receipt
	if err := b.rpc.CallContext(ctx, &out, "eth_getUserOperationReceipt", hash); err != nil {
		return nil, fmt.Errorf("eth_getUserOperationReceipt: %w", err)
	}
	return out, nil
}

func bigOf(v *hexutil.Big) *big.Int {
	if v == nil {
		return nil
	}
	return v.ToInt()
}
