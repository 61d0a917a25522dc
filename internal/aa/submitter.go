package aa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/popbatch/internal/batch"
	"github.com/Bidon15/popbatch/internal/contracts"
)

// DefaultPollInterval is how often WaitForReceipt asks the bundler.
const DefaultPollInterval = 2 * time.Second

// ErrAccountMismatch is returned when a plan was built for another account.
var ErrAccountMismatch = errors.New("popbatch: plan account is not the smart account")

// Bundler is the bundler and paymaster API the Submitter uses.
type Bundler interface {
	GasPrice(ctx context.Context) (*GasPrices, error)
	EstimateGas(ctx context.Context, op *UserOperation, entryPoint common.Address) (*GasEstimate, error)
	Sponsor(ctx context.Context, op *UserOperation, entryPoint common.Address) (*Sponsorship, error)
	Send(ctx context.Context, op *UserOperation, entryPoint common.Address) (common.Hash, error)
	Receipt(ctx context.Context, hash common.Hash) (*Receipt, error)
}

// SubmitterConfig contains configuration for the Submitter.
type SubmitterConfig struct {
	ChainID    uint64
	EntryPoint common.Address
	// Sponsored routes every operation through pm_sponsorUserOperation.
	Sponsored    bool
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Submitter sends plans as single user operations, so a multi-step plan
// executes atomically through executeBatch.
type Submitter struct {
	account *Account
	bundler Bundler
	config  SubmitterConfig
	logger  *slog.Logger
}

// NewSubmitter creates a Submitter for account.
func NewSubmitter(account *Account, bundler Bundler, cfg SubmitterConfig) *Submitter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Submitter{
		account: account,
		bundler: bundler,
		config:  cfg,
		logger:  logger,
	}
}

// Account returns the smart account the submitter sends from.
func (s *Submitter) Account() *Account { return s.account }

// Submit sends plan from the smart account and returns the user operation
// hash. Empty plans are rejected with batch.ErrEmptyPlan.
func (s *Submitter) Submit(ctx context.Context, plan *batch.Plan) (common.Hash, error) {
	if plan.Empty() {
		return common.Hash{}, batch.ErrEmptyPlan
	}
	if plan.ChainID != s.config.ChainID {
		return common.Hash{}, fmt.Errorf("plan is for chain %d, submitter serves %d", plan.ChainID, s.config.ChainID)
	}

	sender, err := s.account.Address(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	if plan.Account != sender {
		return common.Hash{}, fmt.Errorf("%w: %s != %s", ErrAccountMismatch, plan.Account.Hex(), sender.Hex())
	}

	calls := make([]contracts.Call, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		calls = append(calls, contracts.Call{To: step.To(), Value: step.Value(), Data: step.Data()})
	}
	return s.SendCalls(ctx, calls)
}

// SendCalls sends calls as one user operation.
func (s *Submitter) SendCalls(ctx context.Context, calls []contracts.Call) (common.Hash, error) {
	if len(calls) == 0 {
		return common.Hash{}, batch.ErrEmptyPlan
	}

	op, err := s.buildUserOp(ctx, calls)
	if err != nil {
		return common.Hash{}, err
	}

	if _, err := op.Sign(s.account.key, s.config.EntryPoint, s.config.ChainID); err != nil {
		return common.Hash{}, err
	}

	hash, err := s.bundler.Send(ctx, op, s.config.EntryPoint)
	if err != nil {
		return common.Hash{}, err
	}

	s.logger.Info("user operation sent",
		slog.String("user_op_hash", hash.Hex()),
		slog.String("sender", op.Sender.Hex()),
		slog.Int("calls", len(calls)),
		slog.Bool("sponsored", op.Paymaster != nil),
		slog.String("max_cost_wei", Fee(op).String()),
	)
	return hash, nil
}

func (s *Submitter) buildUserOp(ctx context.Context, calls []contracts.Call) (*UserOperation, error) {
	var (
		callData []byte
		err      error
	)
	if len(calls) == 1 {
		callData, err = contracts.Execute(calls[0])
	} else {
		callData, err = contracts.ExecuteBatch(calls)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", batch.ErrEncoding, err)
	}

	sender, err := s.account.Address(ctx)
	if err != nil {
		return nil, err
	}
	nonce, err := s.account.Nonce(ctx)
	if err != nil {
		return nil, err
	}

	op := &UserOperation{
		Sender:    sender,
		Nonce:     nonce,
		CallData:  callData,
		Signature: DummySignature,
	}

	deployed, err := s.account.Deployed(ctx)
	if err != nil {
		return nil, err
	}
	if !deployed {
		factory, factoryData, err := s.account.InitCode()
		if err != nil {
			return nil, err
		}
		op.Factory = &factory
		op.FactoryData = factoryData
		s.logger.Debug("account not deployed, adding init code", slog.String("sender", sender.Hex()))
	}

	prices, err := s.bundler.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	op.MaxFeePerGas = prices.Fast.MaxFeePerGas.ToInt()
	op.MaxPriorityFeePerGas = prices.Fast.MaxPriorityFeePerGas.ToInt()

	if s.config.Sponsored {
		sp, err := s.bundler.Sponsor(ctx, op, s.config.EntryPoint)
		if err != nil {
			return nil, err
		}
		paymaster := sp.Paymaster
		op.Paymaster = &paymaster
		op.PaymasterData = sp.PaymasterData
		op.PaymasterVerificationGasLimit = bigOf(sp.PaymasterVerificationGasLimit)
		op.PaymasterPostOpGasLimit = bigOf(sp.PaymasterPostOpGasLimit)
		op.PreVerificationGas = bigOf(sp.PreVerificationGas)
		op.VerificationGasLimit = bigOf(sp.VerificationGasLimit)
		op.CallGasLimit = bigOf(sp.CallGasLimit)
		return op, nil
	}

	est, err := s.bundler.EstimateGas(ctx, op, s.config.EntryPoint)
	if err != nil {
		return nil, err
	}
	op.PreVerificationGas = bigOf(est.PreVerificationGas)
	op.VerificationGasLimit = bigOf(est.VerificationGasLimit)
	op.CallGasLimit = bigOf(est.CallGasLimit)
	return op, nil
}

// WaitForReceipt polls until the operation is included. An operation that
// was included but reverted returns its receipt together with
// batch.ErrReverted.
func (s *Submitter) WaitForReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.bundler.Receipt(ctx, hash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			if !receipt.Success {
				return receipt, fmt.Errorf("%w: %s %s", batch.ErrReverted, hash.Hex(), receipt.Reason)
			}
			s.logger.Info("user operation included",
				slog.String("user_op_hash", hash.Hex()),
				slog.String("tx_hash", receipt.TxHash().Hex()),
			)
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Fee returns the most the operation can cost at its gas limits and fee cap.
func Fee(op *UserOperation) *big.Int {
	gas := new(big.Int).Add(valueOrZero(op.PreVerificationGas), valueOrZero(op.VerificationGasLimit))
	gas.Add(gas, valueOrZero(op.CallGasLimit))
	gas.Add(gas, valueOrZero(op.PaymasterVerificationGasLimit))
	gas.Add(gas, valueOrZero(op.PaymasterPostOpGasLimit))
	return gas.Mul(gas, valueOrZero(op.MaxFeePerGas))
}
