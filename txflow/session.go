package txflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nando-os/ghost-stark/rules"
	"github.com/nando-os/ghost-stark/stark"
	"github.com/sirupsen/logrus"
)

// ErrNotStarted is returned when preparing a transaction before Begin.
var ErrNotStarted = errors.New("session not started")

const releaseTimeout = 5 * time.Second

// ViewState is the signer UI state of a session.
type ViewState string

const (
	ViewIdle                 ViewState = "idle"
	ViewBlocked              ViewState = "blocked"
	ViewEstimating           ViewState = "estimating"
	ViewAwaitingConfirmation ViewState = "awaiting_confirmation"
	ViewSubmitting           ViewState = "submitting"
	ViewSubmitted            ViewState = "submitted"
	ViewError                ViewState = "error"
)

// View is what the signer UI renders.
type View struct {
	State           ViewState         `json:"state"`
	Calls           []stark.Call      `json:"calls"`
	Value           stark.Amount      `json:"value"`
	NetworkFee      *stark.NetworkFee `json:"networkFee,omitempty"`
	TotalCost       *stark.TotalCost  `json:"totalCost,omitempty"`
	PendingHash     string            `json:"pendingHash,omitempty"`
	TransactionHash string            `json:"transactionHash,omitempty"`
	Error           string            `json:"error,omitempty"`
	Generation      uint64            `json:"generation"`
}

// ConfirmedFunc is called when the confirmation poller of a submission returns.
type ConfirmedFunc func(hash string, status *stark.TransactionStatus, err error)

// SessionConfig holds the collaborators of a session.
type SessionConfig struct {
	Account InvokeAccount
	Server  Server

	// Store is the local pending record, optional
	Store PendingStore

	// Provider enables background confirmation polling, optional
	Provider stark.Provider
	Poll     stark.PollOptions

	OnConfirmed ConfirmedFunc
}

// Session coordinates one signing UI: the pending guard at flow start, the draft, fee
// estimation, execution and the post-submission bookkeeping.
type Session struct {
	account     InvokeAccount
	server      Server
	store       PendingStore
	provider    stark.Provider
	poll        stark.PollOptions
	onConfirmed ConfirmedFunc
	log         logrus.FieldLogger

	draft     *Draft
	estimator *FeeEstimator
	executor  *Executor
	guard     *Guard

	// opMu serialises the writers of the draft
	opMu sync.Mutex

	mu      sync.Mutex
	verdict *Verdict
	record  rules.Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSession validates the collaborators and creates a session.
func NewSession(cfg SessionConfig, log logrus.FieldLogger) (*Session, error) {
	// -- validate session
	if cfg.Account == nil {
		return nil, fmt.Errorf("session: %w", stark.ErrNoAccount)
	}

	if cfg.Server == nil {
		return nil, fmt.Errorf("session server is nil")
	}

	log = log.WithField("component", "session")
	draft := NewDraft()
	ctx, cancel := context.WithCancel(context.Background())

	return &Session{
		account:     cfg.Account,
		server:      cfg.Server,
		store:       cfg.Store,
		provider:    cfg.Provider,
		poll:        cfg.Poll,
		onConfirmed: cfg.OnConfirmed,
		log:         log,
		draft:       draft,
		estimator:   NewFeeEstimator(draft, cfg.Account, log),
		executor:    NewExecutor(draft, cfg.Account, log),
		guard:       NewGuard(cfg.Server, cfg.Store, log),
		ctx:         ctx,
		cancel:      cancel,
	}, nil
}

// Begin starts a flow: the draft is cleared and the pending transaction check runs.
func (s *Session) Begin(ctx context.Context) Verdict {
	s.Close()

	verdict := s.guard.Check(ctx, s.account.SenderAddress())

	s.mu.Lock()
	s.verdict = &verdict
	s.mu.Unlock()

	return verdict
}

func (s *Session) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.verdict == nil {
		return ErrNotStarted
	}

	if s.verdict.Blocked {
		return ErrBlocked
	}

	return nil
}

// Prepare replaces the draft calls and value. record describes the operation for the
// server bookkeeping once a hash is produced; an empty operation skips it.
func (s *Session) Prepare(calls []stark.Call, value stark.Amount, record rules.Record) (uint64, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	generation, err := s.draft.SetCalls(calls, value)
	if err != nil {
		return generation, err
	}

	s.estimator.Clear()
	s.executor.Clear()

	s.mu.Lock()
	s.record = record
	s.mu.Unlock()

	return generation, nil
}

// Append adds calls and value to the draft.
func (s *Session) Append(calls []stark.Call, value stark.Amount) (uint64, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	generation, err := s.draft.PushCalls(calls, value)
	if err != nil {
		return generation, err
	}

	s.estimator.Clear()
	s.executor.Clear()

	return generation, nil
}

// IncreaseValue adds to the value spent by the draft. The fee estimate stays valid.
func (s *Session) IncreaseValue(value stark.Amount) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return err
	}

	if s.draft.Snapshot().Empty() {
		return fmt.Errorf("%w: no calls to add value to", stark.ErrInvalidAmount)
	}

	s.draft.IncreaseValue(value)

	return nil
}

// Estimate runs the fee estimation of the draft.
func (s *Session) Estimate(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	return s.estimator.Estimate(ctx)
}

// Confirm submits the draft with maxFee, or with the estimated max fee when maxFee is zero.
// It refuses while an estimation is in flight or when the estimate does not match the
// current calls. A produced hash consumes the draft: further calls return ErrBlocked
// until the next Begin.
func (s *Session) Confirm(ctx context.Context, maxFee stark.Amount) (string, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.checkOpen(); err != nil {
		return "", err
	}

	if s.estimator.Loading() {
		return "", ErrEstimationInFlight
	}

	estimate := s.estimator.State()
	if estimate.NetworkFee == nil {
		return "", ErrStaleEstimate
	}

	if maxFee.IsZero() {
		maxFee = estimate.NetworkFee.MaxFee
	}

	address := s.account.SenderAddress()

	token, err := s.reserve(ctx, address)
	if err != nil {
		return "", err
	}

	hash, err := s.executor.Execute(ctx, maxFee)
	if hash == "" {
		s.release(address, token)

		if err == nil {
			err = ErrStaleEstimate
		}

		return "", err
	}

	s.afterSubmit(ctx, address, token, hash, maxFee)

	// the draft is consumed, the next submission starts with Begin
	s.mu.Lock()
	s.verdict = &Verdict{Blocked: true, Hash: hash}
	s.mu.Unlock()

	return hash, err
}

func (s *Session) reserve(ctx context.Context, address string) (string, error) {
	if s.store == nil {
		return "", nil
	}

	token, err := s.store.Reserve(ctx, address)
	if errors.Is(err, ErrAlreadyPending) {
		verdict := s.guard.Check(ctx, address)
		if !verdict.Blocked {
			verdict = Verdict{Blocked: true}
		}

		s.mu.Lock()
		s.verdict = &verdict
		s.mu.Unlock()

		return "", ErrBlocked
	}

	if err != nil {
		s.log.WithError(err).WithField("address", address).Error("Failed to reserve pending slot")

		return "", err
	}

	return token, nil
}

func (s *Session) release(address, value string) {
	if s.store == nil || value == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	if err := s.store.Release(ctx, address, value); err != nil {
		s.log.WithError(err).WithField("address", address).Warn("Failed to release pending slot")
	}
}

// afterSubmit runs the best-effort bookkeeping of a produced hash and starts the
// confirmation poller.
func (s *Session) afterSubmit(ctx context.Context, address, token, hash string, maxFee stark.Amount) {
	ctx = context.WithoutCancel(ctx)
	log := s.log.WithFields(logrus.Fields{"address": address, "hash": hash})

	if s.store != nil && token != "" {
		if err := s.store.Attach(ctx, address, token, hash); err != nil {
			log.WithError(err).Warn("Failed to attach pending transaction")
		}
	}

	s.mu.Lock()
	record := s.record
	s.mu.Unlock()

	if record.Operation != "" {
		record.Hash = hash
		record.MaxFee = maxFee.String()

		if err := s.server.RecordTransaction(ctx, record); err != nil {
			log.WithError(fmt.Errorf("%w: %w", stark.ErrServerSync, err)).
				WithField("operation", record.Operation).
				Error("Failed to record transaction")
		}
	}

	if s.provider == nil {
		return
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		status, err := stark.WaitForTransaction(s.ctx, s.provider, hash, s.poll, s.log)
		if err != nil {
			log.WithError(err).Warn("Transaction not confirmed")
		}

		s.release(address, hash)

		if s.onConfirmed != nil {
			s.onConfirmed(hash, status, err)
		}
	}()
}

// Close discards the flow. Results of requests still in flight are dropped.
func (s *Session) Close() {
	s.draft.Reset()
	s.estimator.Clear()
	s.executor.Clear()

	s.mu.Lock()
	s.verdict = nil
	s.record = rules.Record{}
	s.mu.Unlock()
}

// Shutdown stops the confirmation pollers and waits for them.
func (s *Session) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

// Draft returns a snapshot of the draft.
func (s *Session) Draft() Snapshot {
	return s.draft.Snapshot()
}

// View summarises the session for the signer UI.
func (s *Session) View() View {
	snap := s.draft.Snapshot()
	estimate := s.estimator.State()
	execution := s.executor.State()

	s.mu.Lock()
	verdict := s.verdict
	s.mu.Unlock()

	view := View{
		State:           ViewIdle,
		Calls:           snap.Calls,
		Value:           snap.Value,
		NetworkFee:      estimate.NetworkFee,
		TotalCost:       estimate.TotalCost,
		TransactionHash: execution.TransactionHash,
		Generation:      snap.Generation,
	}

	switch {
	case execution.Loading:
		view.State = ViewSubmitting
	case execution.TransactionHash != "":
		view.State = ViewSubmitted
	case verdict != nil && verdict.Blocked:
		view.State = ViewBlocked
		view.PendingHash = verdict.Hash
		view.Error = verdict.Error
	case execution.Error != "":
		view.State = ViewError
		view.Error = execution.Error
	case estimate.Loading:
		view.State = ViewEstimating
	case estimate.Error != "":
		view.State = ViewError
		view.Error = estimate.Error
	case estimate.NetworkFee != nil:
		view.State = ViewAwaitingConfirmation
	}

	return view
}
