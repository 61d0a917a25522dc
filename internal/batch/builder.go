package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"

	"github.com/Bidon15/popbatch/internal/contracts"
)

// DefaultSwapDeadline is how long a swap stays valid after planning.
const DefaultSwapDeadline = 10 * time.Minute

// Builder turns intents into plans. It holds no state between calls; every
// Plan call reads the ledger afresh.
type Builder struct {
	ledger       Ledger
	logger       *slog.Logger
	validate     *validator.Validate
	now          func() time.Time
	swapDeadline time.Duration
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithClock overrides the time source used for swap deadlines.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithSwapDeadline sets how long router calls stay valid.
func WithSwapDeadline(d time.Duration) Option {
	return func(b *Builder) {
		if d > 0 {
			b.swapDeadline = d
		}
	}
}

// NewBuilder creates a Builder reading from ledger.
func NewBuilder(ledger Ledger, opts ...Option) *Builder {
	b := &Builder{
		ledger:       ledger,
		logger:       slog.Default(),
		validate:     validator.New(),
		now:          time.Now,
		swapDeadline: DefaultSwapDeadline,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// CheckCompletion reads the state the intent is trying to reach. Intents
// without a completion condition are never satisfied and cost no read.
func (b *Builder) CheckCompletion(ctx context.Context, intent Intent) (CompletionCheck, error) {
	rule := intent.completion()
	if rule.threshold == nil {
		return CompletionCheck{}, nil
	}

	balance, err := b.ledger.BalanceOf(ctx, rule.chainID, rule.token, rule.account)
	if err != nil {
		return CompletionCheck{}, readError(err, "completion balance of %s on chain %d", rule.account.Hex(), rule.chainID)
	}

	return CompletionCheck{
		AlreadySatisfied: balance.Cmp(rule.threshold) >= 0,
		CurrentBalance:   balance,
	}, nil
}

// CheckAllowance reads the allowance owner has granted spender on token.
func (b *Builder) CheckAllowance(ctx context.Context, chainID uint64, owner, spender, token common.Address, required *big.Int) (AllowanceCheck, error) {
	current, err := b.ledger.Allowance(ctx, chainID, token, owner, spender)
	if err != nil {
		return AllowanceCheck{}, readError(err, "allowance of %s for %s on chain %d", owner.Hex(), spender.Hex(), chainID)
	}

	return AllowanceCheck{
		Current:       current,
		Required:      new(big.Int).Set(required),
		NeedsApproval: current.Cmp(required) < 0,
	}, nil
}

// BuildApprovalStep approves spender for exactly amount of token.
func (b *Builder) BuildApprovalStep(spender, token common.Address, amount *big.Int) (Step, error) {
	data, err := contracts.Approve(spender, amount)
	if err != nil {
		return Step{}, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return NewStep(token, nil, data), nil
}

// BuildPrimaryStep encodes the bridge, swap or deposit call itself.
// completion must come from CheckCompletion for the same intent.
func (b *Builder) BuildPrimaryStep(intent Intent, completion CompletionCheck) (Step, error) {
	deadline := big.NewInt(b.now().Add(b.swapDeadline).Unix())
	step, err := intent.primaryStep(completion, deadline)
	if err != nil {
		return Step{}, fmt.Errorf("%w: %s: %v", ErrEncoding, intent.Kind(), err)
	}
	return step, nil
}

// Plan computes the calls needed to carry out intent. The result has no
// steps when the intent is already complete, one step when the allowance
// suffices (or the asset is native) and two steps, approval first,
// otherwise. The completion condition is read before the route is checked,
// so a finished intent yields an empty plan even if its route has since
// gone away. Plan never submits anything and never returns a partial plan.
func (b *Builder) Plan(ctx context.Context, intent Intent) (*Plan, error) {
	if err := b.validateIntent(intent); err != nil {
		return nil, err
	}

	r := intent.route()
	logger := b.logger.With(
		slog.String("kind", string(intent.Kind())),
		slog.Uint64("chain_id", r.chainID),
		slog.String("account", r.owner.Hex()),
	)

	completion, err := b.CheckCompletion(ctx, intent)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Kind:       intent.Kind(),
		ChainID:    r.chainID,
		Account:    r.owner,
		Steps:      []Step{},
		Completion: completion,
	}

	if completion.AlreadySatisfied {
		logger.Info("intent already satisfied, nothing to do",
			slog.String("current_balance", completion.CurrentBalance.String()),
		)
		return plan, nil
	}

	if err := b.checkRoute(ctx, r); err != nil {
		return nil, err
	}

	required := intent.required(completion)

	balance, err := b.ledger.BalanceOf(ctx, r.chainID, r.token, r.owner)
	if err != nil {
		return nil, readError(err, "source balance of %s on chain %d", r.owner.Hex(), r.chainID)
	}

	logger.Debug("checked source balance",
		slog.String("token", r.token.Hex()),
		slog.String("balance", balance.String()),
		slog.String("required", required.String()),
	)

	if balance.Cmp(required) < 0 {
		return nil, fmt.Errorf("%w: %s holds %s of %s on chain %d, needs %s",
			ErrInsufficientBalance, r.owner.Hex(), balance, r.token.Hex(), r.chainID, required)
	}

	if r.token != NativeToken {
		allowance, err := b.CheckAllowance(ctx, r.chainID, r.owner, r.target, r.token, required)
		if err != nil {
			return nil, err
		}
		plan.Allowance = &allowance

		if allowance.NeedsApproval {
			approval, err := b.BuildApprovalStep(r.target, r.token, required)
			if err != nil {
				return nil, err
			}
			plan.Steps = append(plan.Steps, approval)
		}
	}

	primary, err := b.BuildPrimaryStep(intent, completion)
	if err != nil {
		return nil, err
	}
	plan.Steps = append(plan.Steps, primary)

	logger.Info("plan built",
		slog.Int("steps", len(plan.Steps)),
		slog.Bool("approval", plan.Allowance != nil && plan.Allowance.NeedsApproval),
	)

	return plan, nil
}

func (b *Builder) validateIntent(intent Intent) error {
	if intent == nil {
		return fmt.Errorf("%w: nil intent", ErrInvalidIntent)
	}
	if err := b.validate.Struct(intent); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidIntent, intent.Kind(), err)
	}
	if err := intent.check(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidIntent, intent.Kind(), err)
	}
	return nil
}

// readError wraps a ledger failure. A chain the ledger has no endpoint for
// is an unsupported route, anything else is a read failure.
func readError(err error, format string, args ...any) error {
	what := fmt.Sprintf(format, args...)
	if errors.Is(err, ErrChainNotConfigured) {
		return fmt.Errorf("%w: %s: %v", ErrUnsupportedRoute, what, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrReadFailure, what, err)
}

// checkRoute rejects mechanisms that are not configured or not deployed on
// the source chain.
func (b *Builder) checkRoute(ctx context.Context, r route) error {
	if r.target == (common.Address{}) {
		return fmt.Errorf("%w: no contract configured on chain %d", ErrUnsupportedRoute, r.chainID)
	}

	deployed, err := b.ledger.HasCode(ctx, r.chainID, r.target)
	if err != nil {
		return readError(err, "code at %s on chain %d", r.target.Hex(), r.chainID)
	}
	if !deployed {
		return fmt.Errorf("%w: %s is not deployed on chain %d", ErrUnsupportedRoute, r.target.Hex(), r.chainID)
	}
	return nil
}
