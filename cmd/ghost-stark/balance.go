package main

import (
	"fmt"

	"github.com/nando-os/ghost-stark/pkg/config"
	"github.com/nando-os/ghost-stark/stark"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	balanceAddress  string
	balanceToken    string
	balanceDecimals int
	balancePrice    string
)

// formatBalance renders balance in ether, with a fixed number of decimals when decimals is
// positive, followed by its fiat value when price is set.
func formatBalance(balance stark.Amount, decimals int, price string) (string, error) {
	eth := balance.ToSignificant(6)
	if decimals > 0 {
		eth = balance.ToFixed(decimals)
	}

	out := fmt.Sprintf("%s ETH (%s wei)", eth, balance.String())

	if price == "" {
		return out, nil
	}

	rate, err := decimal.NewFromString(price)
	if err != nil {
		return "", fmt.Errorf("invalid ether price %q: %w", price, err)
	}

	return fmt.Sprintf("%s, %s in fiat", out, balance.ToFiat(rate)), nil
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Prints the ETH balance of the account.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.NewConfiguration()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		address := balanceAddress
		if address == "" {
			address = cfg.AccountAddress()
		}

		provider, err := stark.NewRPCProvider(ctx, cfg.RPCURL(), log)
		if err != nil {
			return err
		}
		defer provider.Close()

		balance, err := stark.BalanceOf(ctx, provider, balanceToken, address)
		if err != nil {
			return err
		}

		line, err := formatBalance(balance, balanceDecimals, balancePrice)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), line)

		return nil
	},
}

func init() {
	balanceCmd.Flags().StringVar(&balanceAddress, "address", "", "address to query (default is the account address)")
	balanceCmd.Flags().StringVar(&balanceToken, "token", stark.ETHTokenAddress, "ERC20 token contract")
	balanceCmd.Flags().IntVar(&balanceDecimals, "decimals", 0, "fixed number of ether decimals (default is 6 significant digits)")
	balanceCmd.Flags().StringVar(&balancePrice, "eth-price", "", "ether price used to print the fiat value")
}
