package main

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/Bidon15/popbatch/internal/batch"
	"github.com/Bidon15/popbatch/internal/chains"
	"github.com/Bidon15/popbatch/internal/contracts"
)

// Gasless command flags
var (
	gaslessChain uint64
	gaslessTo    string
	gaslessData  string
)

// defaultGaslessTo is the recipient of the sample sponsored call (vitalik.eth).
const defaultGaslessTo = "0xd8da6bf26964af9d7eed9e03e53415d37aa96045"

// accountStatus is one chain's view of the smart account.
type accountStatus struct {
	Network  string         `json:"network"`
	ChainID  uint64         `json:"chain_id"`
	Address  common.Address `json:"address"`
	Deployed bool           `json:"deployed"`
	ETH      *big.Int       `json:"eth"`
	USDC     *big.Int       `json:"usdc"`
	Explorer string         `json:"explorer"`
}

func newAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Show the smart account and its balances",
		Long: `Show the owner key, the counterfactual smart account address and its ETH
and USDC balances on both chains of the environment.

A new owner key is generated and saved to the .env file when PRIVATE_KEY
is not set.`,
		RunE: runAccount,
	}
}

func runAccount(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	sess, err := openSession(cmd, sessionOptions{needKey: true, generateKey: true})
	if err != nil {
		return err
	}
	defer sess.Close()

	d := sess.deployment
	var (
		owner    common.Address
		statuses []accountStatus
	)
	for _, leg := range []struct {
		network chains.Network
		usdc    common.Address
	}{
		{d.L1, d.USDCL1},
		{d.L2, d.USDCL2},
	} {
		status, o, err := readAccount(ctx, sess, leg.network, leg.usdc)
		if err != nil {
			return err
		}
		owner = o
		statuses = append(statuses, status)
	}

	if jsonOut {
		return printJSON(out, map[string]interface{}{
			"owner":    owner,
			"accounts": statuses,
		})
	}

	fmt.Fprintf(out, "Owner:   %s\n", owner.Hex())
	for _, s := range statuses {
		deployed := colorYellow("not deployed")
		if s.Deployed {
			deployed = colorGreen("deployed")
		}
		fmt.Fprintf(out, "\n%s (%d)\n", colorBold(s.Network), s.ChainID)
		fmt.Fprintf(out, "  Account: %s (%s)\n", s.Address.Hex(), deployed)
		fmt.Fprintf(out, "  ETH:     %s\n", s.ETH)
		fmt.Fprintf(out, "  USDC:    %s\n", s.USDC)
		fmt.Fprintf(out, "  %s\n", s.Explorer)
	}
	return nil
}

func readAccount(ctx context.Context, sess *session, n chains.Network, usdc common.Address) (accountStatus, common.Address, error) {
	account, err := sess.account(ctx, n.ChainID)
	if err != nil {
		return accountStatus{}, common.Address{}, err
	}
	addr, err := account.Address(ctx)
	if err != nil {
		return accountStatus{}, common.Address{}, err
	}
	deployed, err := account.Deployed(ctx)
	if err != nil {
		return accountStatus{}, common.Address{}, err
	}
	eth, err := sess.reader.BalanceOf(ctx, n.ChainID, batch.NativeToken, addr)
	if err != nil {
		return accountStatus{}, common.Address{}, err
	}
	usdcBalance, err := sess.reader.BalanceOf(ctx, n.ChainID, usdc, addr)
	if err != nil {
		return accountStatus{}, common.Address{}, err
	}

	return accountStatus{
		Network:  n.Name,
		ChainID:  n.ChainID,
		Address:  addr,
		Deployed: deployed,
		ETH:      eth,
		USDC:     usdcBalance,
		Explorer: n.AddressURL(addr),
	}, account.Owner(), nil
}

func newGaslessCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gasless",
		Short: "Send a sponsored call from the smart account",
		Long: `Send one call from the smart account with gas paid by the paymaster.
The account is deployed in the same operation if needed.

Examples:
  popbatch gasless
  popbatch gasless --chain 150150 --to 0x... --data 0x1234`,
		RunE: runGasless,
	}
	cmd.Flags().Uint64Var(&gaslessChain, "chain", chains.HedwigID, "chain ID to send on")
	cmd.Flags().StringVar(&gaslessTo, "to", defaultGaslessTo, "call target")
	cmd.Flags().StringVar(&gaslessData, "data", "0x1234", "call data")
	cmd.Flags().DurationVar(&waitTimeout, "wait", DefaultWaitTimeout, "how long to wait for inclusion")
	return cmd
}

func runGasless(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !common.IsHexAddress(gaslessTo) {
		return fmt.Errorf("invalid --to address %q", gaslessTo)
	}
	data, err := hexutil.Decode(gaslessData)
	if err != nil {
		return fmt.Errorf("invalid --data: %w", err)
	}
	network, err := chains.Lookup(gaslessChain)
	if err != nil {
		return err
	}

	sess, err := openSession(cmd, sessionOptions{needKey: true, generateKey: true})
	if err != nil {
		return err
	}
	defer sess.Close()

	sub, closeBundler, err := sess.submitter(ctx, network.ChainID, true)
	if err != nil {
		return err
	}
	defer closeBundler()

	addr, err := sub.Account().Address(ctx)
	if err != nil {
		return err
	}
	if !jsonOut {
		fmt.Fprintf(out, "Smart account: %s\n", network.AddressURL(addr))
	}

	hash, err := sub.SendCalls(ctx, []contracts.Call{{To: common.HexToAddress(gaslessTo), Value: new(big.Int), Data: data}})
	if err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(ctx, waitTimeout)
	defer cancel()
	receipt, err := sub.WaitForReceipt(waitCtx, hash)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(out, submission{
			UserOpHash: hash,
			TxHash:     receipt.TxHash(),
			Explorer:   network.TxURL(receipt.TxHash()),
		})
	}
	fmt.Fprintf(out, "%s User operation included: %s\n", colorGreen("✓"), network.TxURL(receipt.TxHash()))
	return nil
}
