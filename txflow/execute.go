package txflow

import (
	"context"
	"errors"
	"sync"

	"github.com/nando-os/ghost-stark/stark"
	"github.com/sirupsen/logrus"
)

// ExecuteState is the observable state of the execution flow.
type ExecuteState struct {
	Loading         bool   `json:"loading"`
	Error           string `json:"error,omitempty"`
	TransactionHash string `json:"transactionHash,omitempty"`
	Generation      uint64 `json:"generation"`
}

// Executor submits the draft calls.
type Executor struct {
	draft   *Draft
	account InvokeAccount
	log     logrus.FieldLogger

	mu      sync.Mutex
	loading bool
	err     string
	hash    string
	hashGen uint64
}

// NewExecutor binds an executor to a draft. account may be nil until one is bound.
func NewExecutor(draft *Draft, account InvokeAccount, log logrus.FieldLogger) *Executor {
	return &Executor{
		draft:   draft,
		account: account,
		log:     log.WithField("component", "executor"),
	}
}

// Execute signs and submits the draft calls with maxFee. Without calls or account it is a
// no-op returning an empty hash. A user rejection leaves the state untouched and is not
// logged. If the draft was reset while submitting, the hash is returned with
// ErrStaleResult and not recorded in the state: the transaction exists on chain anyway.
func (x *Executor) Execute(ctx context.Context, maxFee stark.Amount) (string, error) {
	snap := x.draft.Snapshot()
	if snap.Empty() || x.account == nil {
		return "", nil
	}

	x.mu.Lock()
	if x.loading {
		x.mu.Unlock()

		return "", ErrBusy
	}
	x.loading = true
	x.err = ""
	x.mu.Unlock()

	x.draft.SetSigning(true)

	log := x.log.WithFields(logrus.Fields{"calls": len(snap.Calls), "generation": snap.Generation})
	log.Debug("Executing transaction")

	res, err := x.account.Execute(ctx, snap.Calls, maxFee)

	x.draft.SetSigning(false)

	x.mu.Lock()
	defer x.mu.Unlock()

	x.loading = false

	if err != nil {
		if errors.Is(err, stark.ErrSubmissionRejected) {
			return "", err
		}

		if !x.draft.Current(snap.Generation) {
			log.WithError(err).Error("Failed to execute transaction of a reset draft")

			return "", ErrStaleResult
		}

		x.err = stark.UserMessage(err)
		log.WithError(err).Error("Failed to execute transaction")

		return "", err
	}

	if !x.draft.Current(snap.Generation) {
		log.WithField("hash", res.TransactionHash).Warn("Draft reset while submitting, dropping result")

		return res.TransactionHash, ErrStaleResult
	}

	x.hash = res.TransactionHash
	x.hashGen = snap.Generation

	return res.TransactionHash, nil
}

// State returns the execution state for the current draft.
func (x *Executor) State() ExecuteState {
	generation := x.draft.Generation()

	x.mu.Lock()
	defer x.mu.Unlock()

	state := ExecuteState{
		Loading:    x.loading,
		Error:      x.err,
		Generation: generation,
	}

	if x.hash != "" && x.hashGen == generation {
		state.TransactionHash = x.hash
	}

	return state
}

// Clear forgets the last hash and error.
func (x *Executor) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.err = ""
	x.hash = ""
}
