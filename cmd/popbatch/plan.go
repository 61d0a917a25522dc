package main

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Bidon15/popbatch/internal/batch"
	"github.com/Bidon15/popbatch/internal/chains"
	"github.com/Bidon15/popbatch/internal/config"
)

// DefaultWaitTimeout bounds how long --submit waits for inclusion.
const DefaultWaitTimeout = 3 * time.Minute

// Intent command flags
var (
	submit      bool
	waitTimeout time.Duration
	intentFile  string
	intentFlags config.IntentSpec
)

func resetCommandFlags() {
	submit = false
	waitTimeout = DefaultWaitTimeout
	intentFile = ""
	intentFlags = config.IntentSpec{}
	mintFlags = mintOptions{}
	gaslessChain = chains.HedwigID
	gaslessTo = defaultGaslessTo
	gaslessData = "0x1234"
	configForce = false
}

// submission is the --json output of a submitted plan.
type submission struct {
	Plan       *batch.Plan `json:"plan"`
	UserOpHash common.Hash `json:"user_op_hash,omitempty"`
	TxHash     common.Hash `json:"tx_hash,omitempty"`
	Explorer   string      `json:"explorer,omitempty"`
}

func addSubmitFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&submit, "submit", false, "submit the plan as one user operation")
	cmd.Flags().DurationVar(&waitTimeout, "wait", DefaultWaitTimeout, "how long to wait for inclusion after --submit")
}

func newBridgeCmd() *cobra.Command {
	bridgeCmd := &cobra.Command{
		Use:   "bridge",
		Short: "Bridge assets from L1 to L2",
		Long: `Bridge assets through the OP Stack L1StandardBridge.

Examples:
  popbatch bridge erc20 --amount 1000000
  popbatch bridge erc20 --amount 1000000 --to 0x... --submit
  popbatch bridge eth --target-balance 10000000000000000 --min-balance 1000000000000000`,
	}

	erc20Cmd := &cobra.Command{
		Use:   "erc20",
		Short: "Bridge an ERC-20 token, approving the bridge only if needed",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := intentFlags
			spec.Kind = batch.KindBridgeERC20
			return runIntent(cmd, &spec)
		},
	}
	erc20Cmd.Flags().StringVar(&intentFlags.Token, "token", "usdc", "L1 token symbol or address")
	erc20Cmd.Flags().StringVar(&intentFlags.L2Token, "l2-token", "", "L2 token address when --token is an address")
	erc20Cmd.Flags().StringVar(&intentFlags.Amount, "amount", "", "amount in base units")
	erc20Cmd.Flags().StringVar(&intentFlags.To, "to", "", "L2 recipient (default: the smart account)")
	erc20Cmd.Flags().StringVar(&intentFlags.TargetBalance, "target-balance", "", "skip once the recipient holds this much on L2")
	_ = erc20Cmd.MarkFlagRequired("amount")
	addSubmitFlags(erc20Cmd)

	ethCmd := &cobra.Command{
		Use:   "eth",
		Short: "Top up the L2 ETH balance with a deposit from L1",
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := intentFlags
			spec.Kind = batch.KindTopUp
			return runIntent(cmd, &spec)
		},
	}
	ethCmd.Flags().StringVar(&intentFlags.TargetBalance, "target-balance", "", "L2 balance to reach, in wei")
	ethCmd.Flags().StringVar(&intentFlags.MinBalance, "min-balance", "", "only deposit when the L2 balance is at most this (0: only when empty)")
	ethCmd.Flags().StringVar(&intentFlags.To, "to", "", "L2 recipient (default: the smart account)")
	_ = ethCmd.MarkFlagRequired("target-balance")
	addSubmitFlags(ethCmd)

	bridgeCmd.AddCommand(erc20Cmd, ethCmd)
	return bridgeCmd
}

func newSwapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Swap an exact input amount on L2",
		Long: `Swap an exact amount of one token for another through the L2 router,
approving the router only if needed.

Examples:
  popbatch swap --amount 1000000000000000 --min-out 1
  popbatch swap --token-in usdc --token-out weth --amount 1000000 --target-out 5000000000000000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := intentFlags
			spec.Kind = batch.KindSwap
			return runIntent(cmd, &spec)
		},
	}
	cmd.Flags().StringVar(&intentFlags.TokenIn, "token-in", "weth", "token to sell (symbol or address)")
	cmd.Flags().StringVar(&intentFlags.TokenOut, "token-out", "usdc", "token to buy (symbol or address)")
	cmd.Flags().StringVar(&intentFlags.Amount, "amount", "", "amount of token-in in base units")
	cmd.Flags().StringVar(&intentFlags.AmountOutMinimum, "min-out", "", "minimum token-out to accept")
	cmd.Flags().StringVar(&intentFlags.Recipient, "recipient", "", "receiver of token-out (default: the smart account)")
	cmd.Flags().StringVar(&intentFlags.TargetOut, "target-out", "", "skip once the recipient holds this much token-out")
	_ = cmd.MarkFlagRequired("amount")
	addSubmitFlags(cmd)
	return cmd
}

func newRebalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Buy token-out until the account holds a target amount",
		Long: `Buy only the shortfall of token-out, spending at most --max-in of token-in.

Examples:
  popbatch rebalance --token-in usdc --token-out weth --target-out 10000000000000000 --max-in 50000000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := intentFlags
			spec.Kind = batch.KindRebalance
			return runIntent(cmd, &spec)
		},
	}
	cmd.Flags().StringVar(&intentFlags.TokenIn, "token-in", "weth", "token to sell (symbol or address)")
	cmd.Flags().StringVar(&intentFlags.TokenOut, "token-out", "usdc", "token to hold (symbol or address)")
	cmd.Flags().StringVar(&intentFlags.TargetOut, "target-out", "", "token-out balance to reach")
	cmd.Flags().StringVar(&intentFlags.MaxIn, "max-in", "", "most token-in to spend")
	_ = cmd.MarkFlagRequired("target-out")
	_ = cmd.MarkFlagRequired("max-in")
	addSubmitFlags(cmd)
	return cmd
}

func newPlanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Plan an intent described in a YAML file",
		Long: `Plan (and optionally submit) an intent from a YAML file.

Example intent file:
  kind: bridge_erc20
  token: usdc
  amount: "1000000"

Examples:
  popbatch plan --intent bridge.yaml
  popbatch plan --intent rebalance.yaml --submit`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := config.LoadIntentFile(intentFile)
			if err != nil {
				return err
			}
			return runIntent(cmd, spec)
		},
	}
	cmd.Flags().StringVarP(&intentFile, "intent", "f", "", "intent file")
	_ = cmd.MarkFlagRequired("intent")
	addSubmitFlags(cmd)
	return cmd
}

// runIntent plans spec for the owner's smart account, prints the plan and
// submits it when --submit is set.
func runIntent(cmd *cobra.Command, spec *config.IntentSpec) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	sess, err := openSession(cmd, sessionOptions{environment: spec.Environment, needKey: true})
	if err != nil {
		return err
	}
	defer sess.Close()

	account, err := sess.account(ctx, sess.deployment.L1.ChainID)
	if err != nil {
		return err
	}
	addr, err := account.Address(ctx)
	if err != nil {
		return err
	}

	intent, err := spec.Resolve(sess.deployment, addr)
	if err != nil {
		return err
	}

	plan, err := sess.builder().Plan(ctx, intent)
	if err != nil {
		return err
	}

	if !submit || plan.Empty() {
		if jsonOut {
			return printJSON(out, plan)
		}
		printPlan(out, plan)
		return nil
	}

	if !jsonOut {
		printPlan(out, plan)
	}
	result, err := submitPlan(ctx, sess, plan)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(out, result)
	}
	fmt.Fprintf(out, "%s User operation %s\n", colorGreen("✓"), result.UserOpHash.Hex())
	fmt.Fprintf(out, "  Transaction: %s\n", result.TxHash.Hex())
	if result.Explorer != "" {
		fmt.Fprintf(out, "  Explorer:    %s\n", result.Explorer)
	}
	return nil
}

// submitPlan sends plan and waits for its inclusion.
func submitPlan(ctx context.Context, sess *session, plan *batch.Plan) (*submission, error) {
	sub, closeBundler, err := sess.submitter(ctx, plan.ChainID, sess.settings.Sponsored)
	if err != nil {
		return nil, err
	}
	defer closeBundler()

	hash, err := sub.Submit(ctx, plan)
	if err != nil {
		return nil, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()
	receipt, err := sub.WaitForReceipt(waitCtx, hash)
	if err != nil {
		return nil, err
	}

	result := &submission{Plan: plan, UserOpHash: hash, TxHash: receipt.TxHash()}
	if network, err := chains.Lookup(plan.ChainID); err == nil {
		result.Explorer = network.TxURL(result.TxHash)
	}
	return result, nil
}
