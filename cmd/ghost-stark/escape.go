package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nando-os/ghost-stark/pkg/config"
	"github.com/nando-os/ghost-stark/rules"
	"github.com/nando-os/ghost-stark/stark"
	"github.com/spf13/cobra"
)

var (
	escapeTriggeredAt string
	escapeReason      string
)

var escapeCmd = &cobra.Command{
	Use:   "escape",
	Short: "Shows the signer escape lock of the account.",
	Long: `Shows the signer escape lock of the account. The locking reason and trigger time
come from the rules API when RULES_API_URL is set, from the flags otherwise.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := config.NewConfiguration()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		address := cfg.AccountAddress()
		reason := stark.LockingReason(escapeReason)

		var triggeredAt *time.Time
		if escapeTriggeredAt != "" {
			t, err := time.Parse(time.RFC3339, escapeTriggeredAt)
			if err != nil {
				return fmt.Errorf("invalid --triggered-at: %w", err)
			}
			triggeredAt = &t
		}

		if url, token, err := cfg.RulesAPI(); err == nil {
			client, err := rules.NewClient(url, token, nil, log)
			if err != nil {
				return err
			}

			user, err := client.CurrentUser(ctx)
			if err != nil {
				return err
			}

			address = user.StarknetWallet.Address
			reason = user.StarknetWallet.LockingReason
			triggeredAt = user.StarknetWallet.SignerEscapeTriggeredAt
		}

		provider, err := stark.NewRPCProvider(ctx, cfg.RPCURL(), log)
		if err != nil {
			return err
		}
		defer provider.Close()

		monitor := stark.NewEscapeMonitor(provider, "", cfg.EscapeParams(), log)

		lock, err := monitor.Inspect(ctx, address, reason, triggeredAt)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(struct {
			Locked bool              `json:"locked"`
			Lock   *stark.WalletLock `json:"lock"`
		}{lock.Locked(), lock}, "", "  ")
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		return nil
	},
}

func init() {
	escapeCmd.Flags().StringVar(&escapeTriggeredAt, "triggered-at", "", "escape trigger time (RFC3339)")
	escapeCmd.Flags().StringVar(&escapeReason, "reason", string(stark.LockingReasonSignerEscape), "locking reason")
}
