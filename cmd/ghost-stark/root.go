package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/nando-os/ghost-stark/marketplace"
	"github.com/nando-os/ghost-stark/pkg/config"
	"github.com/nando-os/ghost-stark/stark"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	log     = logrus.New()
	envFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "ghost-stark",
	Short:         "Custodial Starknet signer for the rules marketplace.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initCommon()
	},
}

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	rootCmd.AddCommand(serveCmd, escapeCmd, balanceCmd)
}

func initCommon() error {
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}

		log.WithField("file", envFile).Debug("No dotenv file, using the environment only")
	}

	level, err := config.LogLevel()
	if err != nil {
		log.WithError(err).Warn("Invalid logging level, using info")
	}

	log.SetLevel(level)

	return nil
}

type configuration interface {
	RPCURL() string
	Network() marketplace.Network
	AccountAddress() string
	PreviousAccountAddress() string
	AccountVersion() string
	Signer() (*stark.KeySigner, error)
	MaxFeeOverhead() (int64, int64)
}

// newAccount dials the provider, checks it serves the configured network and binds the
// account to it.
func newAccount(ctx context.Context, cfg configuration) (*stark.RPCProvider, *stark.Account, error) {
	signer, err := cfg.Signer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load signer: %w", err)
	}

	provider, err := stark.NewRPCProvider(ctx, cfg.RPCURL(), log)
	if err != nil {
		return nil, nil, err
	}

	chainID, err := provider.ChainID(ctx)
	if err != nil {
		provider.Close()

		return nil, nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	network, err := marketplace.NetworkForChainID(chainID)
	if err != nil || network != cfg.Network() {
		provider.Close()

		return nil, nil, fmt.Errorf("provider chain id %s does not serve %s", chainID, cfg.Network())
	}

	num, den := cfg.MaxFeeOverhead()

	account, err := stark.NewAccount(provider, signer, stark.AccountOptions{
		Address:           cfg.AccountAddress(),
		PreviousAddress:   cfg.PreviousAccountAddress(),
		Version:           cfg.AccountVersion(),
		MaxFeeOverheadNum: num,
		MaxFeeOverheadDen: den,
	}, log)
	if err != nil {
		provider.Close()

		return nil, nil, err
	}

	log.WithFields(logrus.Fields{
		"network": network,
		"address": account.Address(),
		"signer":  signer.PublicKey(),
	}).Info("Account ready")

	return provider, account, nil
}
