package aa

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Bidon15/popbatch/internal/contracts"
)

// ChainReader is the chain access a SimpleAccount needs.
type ChainReader interface {
	ethereum.ContractCaller
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

// Account is a counterfactual SimpleAccount with salt 0.
type Account struct {
	key        *ecdsa.PrivateKey
	owner      common.Address
	factory    common.Address
	entryPoint common.Address
	chain      ChainReader

	mu      sync.Mutex
	address common.Address
}

// NewAccount creates an Account owned by key.
func NewAccount(key *ecdsa.PrivateKey, factory, entryPoint common.Address, chain ChainReader) *Account {
	return &Account{
		key:        key,
		owner:      crypto.PubkeyToAddress(key.PublicKey),
		factory:    factory,
		entryPoint: entryPoint,
		chain:      chain,
	}
}

// Owner returns the EOA that signs for the account.
func (a *Account) Owner() common.Address { return a.owner }

// Address returns the account address, deployed or not.
func (a *Account) Address(ctx context.Context) (common.Address, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.address != (common.Address{}) {
		return a.address, nil
	}

	data, err := contracts.GetAddress(a.owner, big.NewInt(0))
	if err != nil {
		return common.Address{}, err
	}
	ret, err := a.chain.CallContract(ctx, ethereum.CallMsg{To: &a.factory, Data: data}, nil)
	if err != nil {
		return common.Address{}, fmt.Errorf("factory getAddress: %w", err)
	}
	addr, err := contracts.UnpackAddress(contracts.SimpleAccountFactoryABI, "getAddress", ret)
	if err != nil {
		return common.Address{}, err
	}
	if addr == (common.Address{}) {
		return common.Address{}, fmt.Errorf("factory %s returned the zero address", a.factory.Hex())
	}
	a.address = addr
	return addr, nil
}

// Deployed reports whether the account contract exists yet.
func (a *Account) Deployed(ctx context.Context) (bool, error) {
	addr, err := a.Address(ctx)
	if err != nil {
		return false, err
	}
	code, err := a.chain.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, fmt.Errorf("code at %s: %w", addr.Hex(), err)
	}
	return len(code) > 0, nil
}

// InitCode returns the factory call that deploys the account.
func (a *Account) InitCode() (common.Address, []byte, error) {
	data, err := contracts.CreateAccount(a.owner, big.NewInt(0))
	if err != nil {
		return common.Address{}, nil, err
	}
	return a.factory, data, nil
}

// Nonce returns the next EntryPoint nonce for key 0.
func (a *Account) Nonce(ctx context.Context) (*big.Int, error) {
	addr, err := a.Address(ctx)
	if err != nil {
		return nil, err
	}
	data, err := contracts.GetNonce(addr, big.NewInt(0))
	if err != nil {
		return nil, err
	}
	ret, err := a.chain.CallContract(ctx, ethereum.CallMsg{To: &a.entryPoint, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("entry point getNonce: %w", err)
	}
	return contracts.UnpackUint256(contracts.EntryPointABI, "getNonce", ret)
}
