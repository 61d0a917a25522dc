package main

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Bidon15/popbatch/internal/aa"
	"github.com/Bidon15/popbatch/internal/batch"
	"github.com/Bidon15/popbatch/internal/chains"
	"github.com/Bidon15/popbatch/internal/config"
	"github.com/Bidon15/popbatch/internal/ledger"
)

// sessionOptions selects what openSession resolves.
type sessionOptions struct {
	// environment overrides the configured environment when set.
	environment string
	// needKey loads PRIVATE_KEY; generateKey creates one when missing.
	needKey     bool
	generateKey bool
}

// session holds everything resolved once per command: settings, secrets
// and one RPC client per chain of the deployment.
type session struct {
	settings   *config.Settings
	deployment chains.Deployment
	endpoints  chains.Endpoints
	key        *ecdsa.PrivateKey
	reader     *ledger.Reader
	logger     *slog.Logger
}

func openSession(cmd *cobra.Command, opts sessionOptions) (*session, error) {
	if opts.environment != "" && environment == "" {
		environment = opts.environment
		defer func() { environment = "" }()
	}

	settings, _, err := loadSettings()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cmd, settings)

	dotenv := config.DotEnv{Path: settings.EnvFile}
	if created, err := dotenv.Ensure(); err != nil {
		return nil, err
	} else if created {
		logger.Warn("created secrets file, add your API key to it", slog.String("path", settings.EnvFile))
	}
	if err := dotenv.Load(); err != nil {
		return nil, err
	}

	apiKey, err := config.APIKey()
	if err != nil {
		return nil, err
	}

	var key *ecdsa.PrivateKey
	if opts.needKey {
		var generated bool
		key, generated, err = dotenv.PrivateKey(opts.generateKey)
		if err != nil {
			return nil, err
		}
		if generated {
			logger.Info("generated new owner key", slog.String("path", settings.EnvFile))
		}
	}

	deployment, err := settings.Deployment()
	if err != nil {
		return nil, err
	}

	s := &session{
		settings:   settings,
		deployment: deployment,
		endpoints:  chains.Endpoints{BaseURL: settings.APIURL, APIKey: apiKey},
		key:        key,
		reader:     ledger.NewReader(ledger.NewEthClientFactory(), logger),
		logger:     logger,
	}

	for _, n := range []chains.Network{deployment.L1, deployment.L2} {
		if err := s.dial(cmd.Context(), n.ChainID); err != nil {
			s.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases the RPC clients.
func (s *session) Close() {
	s.reader.Close()
}

// dial connects chainID unless it is already connected.
func (s *session) dial(ctx context.Context, chainID uint64) error {
	if _, err := s.reader.Client(chainID); err == nil {
		return nil
	} else if !errors.Is(err, ledger.ErrUnknownChain) {
		return err
	}
	return s.reader.Dial(ctx, chainID, s.endpoints.RPC(chainID))
}

// account returns the smart account of the owner key on chainID.
func (s *session) account(ctx context.Context, chainID uint64) (*aa.Account, error) {
	if s.key == nil {
		return nil, fmt.Errorf("%w: %s is not loaded", config.ErrInvalidPrivateKey, config.EnvPrivateKey)
	}
	if err := s.dial(ctx, chainID); err != nil {
		return nil, err
	}
	client, err := s.reader.Client(chainID)
	if err != nil {
		return nil, err
	}
	return aa.NewAccount(s.key, s.deployment.AccountFactory, s.deployment.EntryPoint, client), nil
}

func (s *session) builder() *batch.Builder {
	return batch.NewBuilder(s.reader,
		batch.WithLogger(s.logger),
		batch.WithSwapDeadline(s.settings.SwapDeadline),
	)
}

// submitter connects to the bundler of chainID. The returned func closes
// the bundler connection.
func (s *session) submitter(ctx context.Context, chainID uint64, sponsored bool) (*aa.Submitter, func(), error) {
	account, err := s.account(ctx, chainID)
	if err != nil {
		return nil, nil, err
	}

	bundler, err := aa.DialBundler(ctx, s.endpoints.Bundler(chainID))
	if err != nil {
		return nil, nil, err
	}
	if err := bundler.RequireEntryPoint(ctx, s.deployment.EntryPoint); err != nil {
		bundler.Close()
		return nil, nil, err
	}

	sub := aa.NewSubmitter(account, bundler, aa.SubmitterConfig{
		ChainID:    chainID,
		EntryPoint: s.deployment.EntryPoint,
		Sponsored:  sponsored,
		Logger:     s.logger,
	})
	return sub, bundler.Close, nil
}
