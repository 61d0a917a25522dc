package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Bidon15/popbatch/internal/config"
)

var configForce bool

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage CLI configuration",
		Long:  `Commands for managing the popbatch configuration and secrets files.`,
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration and secrets files",
		Long: `Create ~/.popbatch.yaml with default settings and a .env file with a
placeholder API_KEY_SECRET.`,
		RunE: runConfigInit,
	}
	initCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing config file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE:  runConfigShow,
	}

	configCmd.AddCommand(initCmd, showCmd)
	return configCmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	settings, _, err := loadSettings()
	if err != nil {
		return err
	}

	configPath := cfgFile
	if configPath == "" {
		configPath = config.FilePath()
	}

	if _, err := os.Stat(configPath); err == nil && !configForce {
		fmt.Fprintf(out, "%s Config file already exists at %s (use --force to overwrite)\n", colorYellow("⚠"), configPath)
	} else {
		content := fmt.Sprintf(`# popbatch configuration
environment: %s
api_url: %s
trpc_url: %s
env_file: %s
sponsored: %t
swap_deadline: %s
listen_addr: %s
log_level: %s
`, settings.Environment, settings.APIURL, settings.TRPCURL, settings.EnvFile,
			settings.Sponsored, settings.SwapDeadline, settings.ListenAddr, settings.LogLevel)

		if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
			return fmt.Errorf("failed to write config file: %w", err)
		}
		fmt.Fprintf(out, "%s Config file created at %s\n", colorGreen("✓"), configPath)
	}

	created, err := config.DotEnv{Path: settings.EnvFile}.Ensure()
	if err != nil {
		return err
	}
	if created {
		fmt.Fprintf(out, "%s Secrets file created at %s, set %s in it\n", colorGreen("✓"), settings.EnvFile, config.EnvAPIKey)
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	settings, v, err := loadSettings()
	if err != nil {
		return err
	}
	if err := (config.DotEnv{Path: settings.EnvFile}).Load(); err != nil {
		return err
	}
	key, _ := config.APIKey()

	if jsonOut {
		return printJSON(out, map[string]interface{}{
			"environment":   settings.Environment,
			"api_key":       maskAPIKey(key),
			"api_url":       settings.APIURL,
			"trpc_url":      settings.TRPCURL,
			"env_file":      settings.EnvFile,
			"sponsored":     settings.Sponsored,
			"swap_deadline": settings.SwapDeadline.String(),
			"listen_addr":   settings.ListenAddr,
			"log_level":     settings.LogLevel,
			"cors_origins":  settings.CORSOrigins,
			"redis_url":     settings.RedisURL,
			"rate_limit":    settings.RateLimit,
			"config_file":   v.ConfigFileUsed(),
		})
	}

	fmt.Fprintf(out, "Environment:   %s\n", settings.Environment)
	fmt.Fprintf(out, "API Key:       %s\n", maskAPIKey(key))
	fmt.Fprintf(out, "API URL:       %s\n", settings.APIURL)
	fmt.Fprintf(out, "tRPC URL:      %s\n", settings.TRPCURL)
	fmt.Fprintf(out, "Env File:      %s\n", settings.EnvFile)
	fmt.Fprintf(out, "Sponsored:     %t\n", settings.Sponsored)
	fmt.Fprintf(out, "Swap Deadline: %s\n", settings.SwapDeadline)
	fmt.Fprintf(out, "Listen Addr:   %s\n", settings.ListenAddr)
	fmt.Fprintf(out, "Log Level:     %s\n", settings.LogLevel)
	if settings.RedisURL != "" {
		fmt.Fprintf(out, "Rate Limit:    %d/s via %s\n", settings.RateLimit, settings.RedisURL)
	}
	if configFile := v.ConfigFileUsed(); configFile != "" {
		fmt.Fprintf(out, "Config File:   %s\n", configFile)
	}
	return nil
}
