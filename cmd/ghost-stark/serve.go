package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/nando-os/ghost-stark/bridge"
	"github.com/nando-os/ghost-stark/marketplace"
	"github.com/nando-os/ghost-stark/pkg/config"
	"github.com/nando-os/ghost-stark/rules"
	"github.com/nando-os/ghost-stark/stark"
	"github.com/nando-os/ghost-stark/txflow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the signing session bridge.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	cfg, err := config.NewConfiguration()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	rulesURL, rulesToken, err := cfg.RulesAPI()
	if err != nil {
		return err
	}

	provider, account, err := newAccount(ctx, cfg)
	if err != nil {
		return err
	}
	defer provider.Close()

	rulesClient, err := rules.NewClient(rulesURL, rulesToken, nil, log)
	if err != nil {
		return err
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress()})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddress(), err)
	}

	tracker := txflow.NewPendingTracker(redisClient, cfg.RedisPrefix(), txflow.DefaultPendingTTL, log)

	session, err := txflow.NewSession(txflow.SessionConfig{
		Account:  account,
		Server:   rulesClient,
		Store:    tracker,
		Provider: provider,
		Poll:     cfg.PollOptions(),
		OnConfirmed: func(hash string, status *stark.TransactionStatus, err error) {
			entry := log.WithField("hash", hash)
			if err != nil {
				entry.WithError(err).Warn("Transaction confirmation failed")

				return
			}

			entry.WithFields(logrus.Fields{
				"finality_status":  status.FinalityStatus,
				"execution_status": status.ExecutionStatus,
			}).Info("Transaction final")
		},
	}, log)
	if err != nil {
		return err
	}
	defer session.Shutdown()

	builder, err := marketplace.NewBuilder(cfg.Network())
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	srv, err := bridge.NewServer(bridge.Config{
		Session:  session,
		Account:  account,
		Users:    rulesClient,
		Monitor:  stark.NewEscapeMonitor(provider, builder.Addresses().ETH, cfg.EscapeParams(), log),
		Builder:  builder,
		Registry: registry,
	}, log)
	if err != nil {
		return err
	}

	if err := srv.Run(ctx, cfg.BridgeAddr()); err != nil {
		return err
	}

	log.Info("Bridge exited")

	return nil
}
