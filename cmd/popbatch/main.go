// Package main provides the popbatch CLI for planning and submitting
// bridge, swap and rebalance batches from an ERC-4337 smart account.
package main

import (
	"os"
)

func main() {
	if err := Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}
