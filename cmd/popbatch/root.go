package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Bidon15/popbatch/internal/config"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// Global flag variables
var (
	cfgFile     string
	envFile     string
	environment string
	jsonOut     bool
	verbose     bool
)

var rootCmd *cobra.Command

var versionCmd *cobra.Command

func init() {
	rootCmd = &cobra.Command{
		Use:   "popbatch",
		Short: "popbatch - conditional call batches from a smart account",
		Long: `popbatch plans the smallest batch of calls needed to bridge, swap or
rebalance ERC-20 balances, and optionally submits it as one user
operation from your ERC-4337 smart account.

Plans read chain state fresh every time: an approval is added only when
the allowance is short, and nothing is sent once the target balance is
already reached.

Configuration (in order of priority):
  1. Command-line flags (--environment, --env-file)
  2. Environment variables (POPBATCH_ENVIRONMENT, POPBATCH_API_URL, ...)
  3. Config file (~/.popbatch.yaml)

Secrets live in the .env file (API_KEY_SECRET, PRIVATE_KEY).

Get started:
  $ popbatch config init
  $ popbatch account
  $ popbatch bridge erc20 --amount 1000000 --submit`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Print the version, commit hash, and build date of popbatch",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "popbatch %s\n", Version)
			if verbose {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", Commit)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", BuildDate)
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.popbatch.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "secrets file (default .env, or POPBATCH_ENV_FILE)")
	rootCmd.PersistentFlags().StringVar(&environment, "environment", "", "testnet or mainnet (or POPBATCH_ENVIRONMENT)")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newAccountCmd())
	rootCmd.AddCommand(newGaslessCmd())
	rootCmd.AddCommand(newBridgeCmd())
	rootCmd.AddCommand(newSwapCmd())
	rootCmd.AddCommand(newRebalanceCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newDecodeCmd())
	rootCmd.AddCommand(newMintCmd())
	rootCmd.AddCommand(newServeCmd())
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteWithArgs runs the root command with the provided arguments (for testing)
func ExecuteWithArgs(args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// SetOutput sets the output writer for the root command (for testing)
func SetOutput(w io.Writer) {
	rootCmd.SetOut(w)
	rootCmd.SetErr(w)
}

// ResetFlags resets all global flags to their defaults (for testing)
func ResetFlags() {
	cfgFile = ""
	envFile = ""
	environment = ""
	jsonOut = false
	verbose = false
	resetCommandFlags()
}

// loadSettings resolves settings from the config file, POPBATCH_*
// variables and the global flags.
func loadSettings() (*config.Settings, *viper.Viper, error) {
	v := config.NewViper(cfgFile)
	if environment != "" {
		v.Set("environment", environment)
	}
	if envFile != "" {
		v.Set("env_file", envFile)
	}
	if verbose {
		v.Set("log_level", "debug")
	}

	s, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}
	return s, v, nil
}

// newLogger writes structured logs to the command's error stream.
func newLogger(cmd *cobra.Command, s *config.Settings) *slog.Logger {
	opts := &slog.HandlerOptions{Level: s.Level()}
	if jsonOut {
		return slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), opts))
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), opts))
}
