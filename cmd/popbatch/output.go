package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/Bidon15/popbatch/internal/batch"
	"github.com/Bidon15/popbatch/internal/chains"
	"github.com/Bidon15/popbatch/internal/contracts"
	"github.com/Bidon15/popbatch/internal/owl"
)

// printJSON outputs data as formatted JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printError prints an error message.
func printError(w io.Writer, err error) {
	var apiErr *owl.APIError
	if errors.As(err, &apiErr) {
		fmt.Fprintf(w, "%s %s\n", colorRed("Error:"), apiErr.Message)
		if apiErr.Code != "" {
			fmt.Fprintf(w, "  Code: %s\n", apiErr.Code)
		}
		return
	}
	fmt.Fprintf(w, "%s %s\n", colorRed("Error:"), err.Error())
}

// printPlan renders a plan with each step decoded.
func printPlan(w io.Writer, plan *batch.Plan) {
	network, err := chains.Lookup(plan.ChainID)
	name := fmt.Sprintf("chain %d", plan.ChainID)
	if err == nil {
		name = network.Name
	}

	fmt.Fprintf(w, "%s %s on %s\n", colorBold("Plan:"), plan.Kind, name)
	fmt.Fprintf(w, "  Account: %s\n", plan.Account.Hex())
	if plan.Completion.CurrentBalance != nil {
		fmt.Fprintf(w, "  Target balance now: %s\n", plan.Completion.CurrentBalance)
	}
	if plan.Allowance != nil {
		fmt.Fprintf(w, "  Allowance: %s (needs %s)\n", plan.Allowance.Current, plan.Allowance.Required)
	}

	if plan.Empty() {
		fmt.Fprintln(w, colorGreen("  Already satisfied, nothing to submit."))
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\n", colorBold("#"), colorBold("TO"), colorBold("VALUE"), colorBold("CALL"))
	for i, step := range plan.Steps {
		call := fmt.Sprintf("0x%x", truncate(step.Data(), 4))
		if decoded, err := contracts.Decode(step.Data()); err == nil {
			call = decoded.Contract + "." + decoded.Method
		}
		fmt.Fprintf(tw, "  %d\t%s\t%s\t%s\n", i+1, step.To().Hex(), step.Value(), call)
	}
	_ = tw.Flush()
}

func truncate(b []byte, maxLen int) []byte {
	if len(b) <= maxLen {
		return b
	}
	return b[:maxLen]
}

// maskAPIKey masks the API key for display.
func maskAPIKey(key string) string {
	if key == "" {
		return colorYellow("(not set)")
	}
	if len(key) <= 12 {
		return "****"
	}
	return key[:8] + "..." + key[len(key)-4:]
}

// Terminal colors

func colorRed(s string) string {
	if !isTTY() {
		return s
	}
	return "\033[31m" + s + "\033[0m"
}

func colorGreen(s string) string {
	if !isTTY() {
		return s
	}
	return "\033[32m" + s + "\033[0m"
}

func colorYellow(s string) string {
	if !isTTY() {
		return s
	}
	return "\033[33m" + s + "\033[0m"
}

func colorBold(s string) string {
	if !isTTY() {
		return s
	}
	return "\033[1m" + s + "\033[0m"
}

func isTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
