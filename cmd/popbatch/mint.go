package main

import (
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/Bidon15/popbatch/internal/chains"
	"github.com/Bidon15/popbatch/internal/config"
	"github.com/Bidon15/popbatch/internal/owl"
)

type mintOptions struct {
	chainID     uint64
	collection  string
	name        string
	symbol      string
	email       string
	tokenName   string
	description string
	image       string
}

var mintFlags mintOptions

// minted is the --json output of the mint command.
type minted struct {
	Collection common.Address `json:"collection"`
	User       *owl.User      `json:"user"`
	Explorer   string         `json:"explorer,omitempty"`
}

func newMintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint an NFT to a user through the hosted API",
		Long: `Create (or look up) a project user by email and mint one ERC-721 token to
them. A collection is deployed first unless --collection is given.

Examples:
  popbatch mint --email alice@example.com
  popbatch mint --email alice@example.com --collection 0x... --token-name "Badge #1"`,
		RunE: runMint,
	}
	cmd.Flags().Uint64Var(&mintFlags.chainID, "chain", chains.HedwigID, "chain ID of the collection")
	cmd.Flags().StringVar(&mintFlags.collection, "collection", "", "existing collection address")
	cmd.Flags().StringVar(&mintFlags.name, "name", "My Collection", "collection name when deploying")
	cmd.Flags().StringVar(&mintFlags.symbol, "symbol", "MYC", "collection symbol when deploying")
	cmd.Flags().StringVar(&mintFlags.email, "email", "", "recipient email")
	cmd.Flags().StringVar(&mintFlags.tokenName, "token-name", "My NFT", "token metadata name")
	cmd.Flags().StringVar(&mintFlags.description, "description", "", "token metadata description")
	cmd.Flags().StringVar(&mintFlags.image, "image", "", "token metadata image URL")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func runMint(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if mintFlags.collection != "" && !common.IsHexAddress(mintFlags.collection) {
		return fmt.Errorf("invalid --collection address %q", mintFlags.collection)
	}
	network, err := chains.Lookup(mintFlags.chainID)
	if err != nil {
		return err
	}

	settings, _, err := loadSettings()
	if err != nil {
		return err
	}
	logger := newLogger(cmd, settings)
	if err := (config.DotEnv{Path: settings.EnvFile}).Load(); err != nil {
		return err
	}
	apiKey, err := config.APIKey()
	if err != nil {
		return err
	}
	client := owl.NewClient(apiKey,
		owl.WithBaseURL(settings.TRPCURL),
		owl.WithUserAgent("popbatch/"+Version),
	)

	user, err := client.CreateOrSetUser(ctx, &owl.CreateUserRequest{Email: mintFlags.email})
	if err != nil {
		return err
	}
	logger.Info("project user ready",
		slog.String("email", user.Email),
		slog.String("safe", user.SafeAddress.Hex()),
	)

	collection := common.HexToAddress(mintFlags.collection)
	if mintFlags.collection == "" {
		deployed, err := client.DeployCollection(ctx, &owl.DeployCollectionRequest{
			ChainID: network.ChainID,
			Name:    mintFlags.name,
			Symbol:  mintFlags.symbol,
		})
		if err != nil {
			return err
		}
		collection = deployed.ContractAddress
		logger.Info("collection deployed", slog.String("address", collection.Hex()))
	}

	err = client.MintBatch(ctx, &owl.MintBatchRequest{
		ChainID: network.ChainID,
		Address: collection,
		To:      []string{mintFlags.email},
		Metadata: &owl.Metadata{
			Name:        mintFlags.tokenName,
			Description: mintFlags.description,
			Image:       mintFlags.image,
		},
	})
	if err != nil {
		return err
	}

	result := minted{Collection: collection, User: user, Explorer: network.AddressURL(collection)}
	if jsonOut {
		return printJSON(out, result)
	}
	fmt.Fprintf(out, "%s Minted to %s (%s)\n", colorGreen("✓"), mintFlags.email, user.SafeAddress.Hex())
	fmt.Fprintf(out, "  Collection: %s\n", result.Explorer)
	return nil
}
