package main

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/Bidon15/popbatch/internal/contracts"
)

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <calldata>",
		Short: "Decode call data against the known ABIs",
		Long: `Decode hex call data for the ERC-20, bridge, router, account and entry
point methods popbatch encodes.

Examples:
  popbatch decode 0x095ea7b3...`,
		Args: cobra.ExactArgs(1),
		RunE: runDecode,
	}
}

func runDecode(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	data, err := hexutil.Decode(args[0])
	if err != nil {
		return fmt.Errorf("invalid call data: %w", err)
	}
	call, err := contracts.Decode(data)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(out, call)
	}

	fmt.Fprintf(out, "%s %s.%s\n", colorBold("Call:"), call.Contract, call.Method)
	fmt.Fprintf(out, "  Signature: %s\n", call.Signature)
	fmt.Fprintf(out, "  Selector:  %s\n", call.Selector)

	names := make([]string, 0, len(call.Args))
	for name := range call.Args {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %s: %v\n", name, call.Args[name])
	}
	return nil
}
