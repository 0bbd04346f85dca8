package main

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/nando-os/ghost-stark/marketplace"
	"github.com/nando-os/ghost-stark/pkg/config"
	"github.com/nando-os/ghost-stark/rules"
	"github.com/nando-os/ghost-stark/stark"
	"github.com/nando-os/ghost-stark/txflow"
	"github.com/sirupsen/logrus"
)

type confirmation struct {
	status *stark.TransactionStatus
	err    error
}

// usage: example <price in ETH> <token id>...
func main() {
	log := logrus.New()

	// --- Setup ---
	if err := godotenv.Load(".env"); err != nil {
		log.WithError(err).Warn("Error loading .env file")
	}

	if len(os.Args) < 3 {
		log.Fatal("usage: example <price in ETH> <token id>...")
	}

	price, err := stark.FromDecimalAmount(os.Args[1])
	if err != nil {
		log.WithError(err).Fatal("Invalid price")
	}
	tokenIDs := os.Args[2:]

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// --- Load Configuration ---
	cfg, err := config.NewConfiguration()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}

	rulesURL, rulesToken, err := cfg.RulesAPI()
	if err != nil {
		log.WithError(err).Fatal("Rules API is not configured")
	}

	signer, err := cfg.Signer()
	if err != nil {
		log.WithError(err).Fatal("Failed to load signer")
	}

	provider, err := stark.NewRPCProvider(ctx, cfg.RPCURL(), log)
	if err != nil {
		log.WithError(err).Fatal("Failed to dial provider")
	}
	defer provider.Close()

	num, den := cfg.MaxFeeOverhead()

	account, err := stark.NewAccount(provider, signer, stark.AccountOptions{
		Address:           cfg.AccountAddress(),
		PreviousAddress:   cfg.PreviousAccountAddress(),
		Version:           cfg.AccountVersion(),
		MaxFeeOverheadNum: num,
		MaxFeeOverheadDen: den,
	}, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create account")
	}

	rulesClient, err := rules.NewClient(rulesURL, rulesToken, nil, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create rules client")
	}

	// --- Open Session ---
	// no local pending store: the server is the only pending transaction guard here
	confirmed := make(chan confirmation, 1)

	session, err := txflow.NewSession(txflow.SessionConfig{
		Account:  account,
		Server:   rulesClient,
		Provider: provider,
		Poll:     cfg.PollOptions(),
		OnConfirmed: func(hash string, status *stark.TransactionStatus, err error) {
			confirmed <- confirmation{status: status, err: err}
		},
	}, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create session")
	}
	defer session.Shutdown()

	if verdict := session.Begin(ctx); verdict.Blocked {
		log.WithField("pending", verdict.Hash).Fatal("A transaction is already pending")
	}

	// --- Check Balance ---
	balance, err := stark.BalanceOf(ctx, provider, stark.ETHTokenAddress, account.SenderAddress())
	if err != nil {
		log.WithError(err).Fatal("Failed to get balance")
	}
	log.Infof("Balance: %s ETH", balance.ToSignificant(6))

	// --- Build Calls ---
	builder, err := marketplace.NewBuilder(cfg.Network())
	if err != nil {
		log.WithError(err).Fatal("Unsupported network")
	}

	calls, err := builder.AcceptOffers(price, tokenIDs...)
	if err != nil {
		log.WithError(err).Fatal("Failed to build calls")
	}

	record := rules.Record{Operation: rules.OperationOfferAcceptance, TokenIDs: tokenIDs, Price: price.String()}
	if _, err := session.Prepare(calls, price, record); err != nil {
		log.WithError(err).Fatal("Failed to prepare transaction")
	}

	// --- Estimate Fees ---
	if err := session.Estimate(ctx); err != nil {
		log.WithError(err).Fatal(stark.UserMessage(err))
	}

	view := session.View()
	if view.NetworkFee == nil || view.TotalCost == nil {
		log.WithField("state", view.State).Fatal("No fee estimate")
	}
	log.Infof("Fee: %s ETH, max cost: %s ETH", view.NetworkFee.Fee.ToSignificant(6), view.TotalCost.MaxCost.ToSignificant(6))

	if balance.LessThan(view.TotalCost.MaxCost) {
		log.Fatal("Insufficient balance")
	}

	// --- Send Transaction ---
	hash, err := session.Confirm(ctx, stark.Zero)
	if err != nil {
		log.WithError(err).Fatal(stark.UserMessage(err))
	}
	log.Infof("Transaction sent! Hash: %s", hash)
	log.Infof("Balance left at most: %s ETH", balance.Sub(view.TotalCost.MaxCost).ToSignificant(6))

	// --- Wait for Confirmation ---
	var res confirmation
	select {
	case res = <-confirmed:
	case <-ctx.Done():
		log.WithError(ctx.Err()).Fatal("Transaction not confirmed")
	}

	if res.err != nil {
		log.WithError(res.err).Fatal("Transaction not confirmed")
	}

	if res.status.Succeeded() {
		log.Info("Offer accepted")
	} else {
		log.Warnf("Transaction %s: %s", res.status.FinalityStatus, res.status.ExecutionStatus)
	}
}
