package txflow

import (
	"context"

	"github.com/sirupsen/logrus"
)

// RefreshMessage is shown when the pending transaction check itself fails.
const RefreshMessage = "An error has occurred, please refresh the page and try again."

// Verdict is the outcome of a pending transaction check.
type Verdict struct {
	Blocked bool   `json:"blocked"`
	Hash    string `json:"hash,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Guard blocks new submissions while a transaction is pending for the account.
// The server is authoritative; the local store only covers submissions the server
// has not learned about yet.
type Guard struct {
	server WaitingTransactionQuerier
	store  PendingStore
	log    logrus.FieldLogger
}

// NewGuard creates a guard. store may be nil.
func NewGuard(server WaitingTransactionQuerier, store PendingStore, log logrus.FieldLogger) *Guard {
	return &Guard{
		server: server,
		store:  store,
		log:    log.WithField("component", "pending_guard"),
	}
}

// Check returns whether a new transaction may be submitted from address. Any failure of
// the check blocks.
func (g *Guard) Check(ctx context.Context, address string) Verdict {
	log := g.log.WithField("address", address)

	waiting, err := g.server.WaitingTransaction(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to get waiting transaction")

		return Verdict{Blocked: true, Error: RefreshMessage}
	}

	if waiting != nil && waiting.Hash != "" {
		log.WithField("hash", waiting.Hash).Info("Transaction waiting on server")

		return Verdict{Blocked: true, Hash: waiting.Hash}
	}

	if g.store == nil {
		return Verdict{}
	}

	hash, found, err := g.store.Pending(ctx, address)
	if err != nil {
		log.WithError(err).Error("Failed to get local pending transaction")

		return Verdict{Blocked: true, Error: RefreshMessage}
	}

	if found {
		log.WithField("hash", hash).Info("Transaction pending locally")

		return Verdict{Blocked: true, Hash: hash}
	}

	return Verdict{}
}
