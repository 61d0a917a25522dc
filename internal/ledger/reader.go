// Package ledger reads balances, allowances and code from one RPC endpoint
// per chain. Every read targets the latest block.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/popbatch/internal/batch"
	"github.com/Bidon15/popbatch/internal/contracts"
)

// DefaultTimeout is the default timeout for a single read.
const DefaultTimeout = 10 * time.Second

var (
	// ErrUnknownChain is returned for reads on a chain with no client.
	ErrUnknownChain = batch.ErrChainNotConfigured
	// ErrChainMismatch is returned when an endpoint reports another chain ID.
	ErrChainMismatch = errors.New("popbatch: chain id mismatch")
)

// Reader implements batch.Ledger over one Client per chain ID.
type Reader struct {
	mu      sync.RWMutex
	clients map[uint64]Client
	factory ClientFactory
	timeout time.Duration
	logger  *slog.Logger
}

// NewReader creates a Reader that dials through factory.
func NewReader(factory ClientFactory, logger *slog.Logger) *Reader {
	if factory == nil {
		factory = NewEthClientFactory()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		clients: make(map[uint64]Client),
		factory: factory,
		timeout: DefaultTimeout,
		logger:  logger,
	}
}

// WithTimeout sets a custom timeout for each read.
func (r *Reader) WithTimeout(timeout time.Duration) *Reader {
	r.timeout = timeout
	return r
}

// Dial connects to rpcURL and registers it for chainID after checking that
// the endpoint really serves that chain.
func (r *Reader) Dial(ctx context.Context, chainID uint64, rpcURL string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	client, err := r.factory.Dial(ctx, rpcURL)
	if err != nil {
		return fmt.Errorf("dial chain %d: %w", chainID, err)
	}

	actual, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("chain id of %d endpoint: %w", chainID, err)
	}
	if actual.Cmp(new(big.Int).SetUint64(chainID)) != 0 {
		client.Close()
		return fmt.Errorf("%w: expected %d, got %s", ErrChainMismatch, chainID, actual)
	}

	r.Add(chainID, client)
	r.logger.Debug("connected to chain", slog.Uint64("chain_id", chainID))
	return nil
}

// Add registers an already connected client, replacing any previous one.
func (r *Reader) Add(chainID uint64, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.clients[chainID]; ok && old != client {
		old.Close()
	}
	r.clients[chainID] = client
}

// Client returns the client registered for chainID.
func (r *Reader) Client(chainID uint64) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[chainID]
	if !ok {
		return nil, fmt.Errorf("%w %d", ErrUnknownChain, chainID)
	}
	return c, nil
}

// Close closes every client.
func (r *Reader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}

// BalanceOf returns the token balance of account. The zero token address
// reads the native balance.
func (r *Reader) BalanceOf(ctx context.Context, chainID uint64, token, account common.Address) (*big.Int, error) {
	client, err := r.Client(chainID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if token == (common.Address{}) {
		balance, err := client.BalanceAt(ctx, account, nil)
		if err != nil {
			return nil, fmt.Errorf("native balance of %s: %w", account.Hex(), err)
		}
		return balance, nil
	}

	data, err := contracts.BalanceOf(account)
	if err != nil {
		return nil, err
	}
	return r.callUint256(ctx, client, token, "balanceOf", data)
}

// Allowance returns how much of token spender may pull from owner.
func (r *Reader) Allowance(ctx context.Context, chainID uint64, token, owner, spender common.Address) (*big.Int, error) {
	client, err := r.Client(chainID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	data, err := contracts.Allowance(owner, spender)
	if err != nil {
		return nil, err
	}
	return r.callUint256(ctx, client, token, "allowance", data)
}

// HasCode reports whether a contract is deployed at addr.
func (r *Reader) HasCode(ctx context.Context, chainID uint64, addr common.Address) (bool, error) {
	client, err := r.Client(chainID)
	if err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	code, err := client.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("code at %s: %w", addr.Hex(), err)
	}
	return len(code) > 0, nil
}

func (r *Reader) callUint256(ctx context.Context, client Client, token common.Address, method string, data []byte) (*big.Int, error) {
	ret, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", method, token.Hex(), err)
	}
	v, err := contracts.UnpackUint256(contracts.ERC20ABI, method, ret)
	if err != nil {
		return nil, fmt.Errorf("%s on %s: %w", method, token.Hex(), err)
	}
	return v, nil
}
