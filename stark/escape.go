package stark

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// EscapeState is the lock state of a wallet going through a signer escape.
type EscapeState string

const (
	EscapeLockedInsufficientDeposit EscapeState = "LOCKED_INSUFFICIENT_DEPOSIT"
	EscapeLockedWaitingPeriod       EscapeState = "LOCKED_WAITING_PERIOD"
	EscapeUnlocked                  EscapeState = "UNLOCKED"
)

// LockingReason is the server-reported reason a wallet is locked.
type LockingReason string

const (
	LockingReasonNone          LockingReason = ""
	LockingReasonSignerEscape  LockingReason = "SIGNER_ESCAPE"
	LockingReasonForcedUpgrade LockingReason = "FORCED_UPGRADE"
)

const (
	day = 24 * time.Hour

	// DefaultEscapeSecurityPeriod is the protocol time lock of a signer escape
	DefaultEscapeSecurityPeriod = 7 * day

	// defaultMinimumBalanceToEscapeSigner is 0.02 ETH in wei
	defaultMinimumBalanceToEscapeSigner = "20000000000000000"
)

// DefaultMinimumBalanceToEscapeSigner is the deposit required before an escape can be triggered.
var DefaultMinimumBalanceToEscapeSigner = MustRawAmount(defaultMinimumBalanceToEscapeSigner)

// EscapeParams are the protocol constants of the escape procedure.
type EscapeParams struct {
	MinimumBalance Amount
	SecurityPeriod time.Duration
}

// DefaultEscapeParams returns the mainnet protocol constants.
func DefaultEscapeParams() EscapeParams {
	return EscapeParams{
		MinimumBalance: DefaultMinimumBalanceToEscapeSigner,
		SecurityPeriod: DefaultEscapeSecurityPeriod,
	}
}

// EscapeStatus is the resolved escape state of a wallet.
type EscapeStatus struct {
	State          EscapeState `json:"state"`
	DaysRemaining  int         `json:"daysRemaining"`
	NeedsDeposit   bool        `json:"needsDeposit"`
	MinimumDeposit Amount      `json:"minimumDeposit"`
	MissingDeposit Amount      `json:"missingDeposit"`
	TriggeredAt    *time.Time  `json:"triggeredAt,omitempty"`
}

// Locked reports whether the wallet is still locked.
func (s EscapeStatus) Locked() bool {
	return s.State != EscapeUnlocked
}

func ceilDays(d time.Duration) int {
	return int((d + day - 1) / day)
}

// ResolveEscape computes the escape state from the balance at the account address, the
// server-recorded trigger time and the current time. A nil balance is treated as unknown
// and therefore below the threshold.
func ResolveEscape(balance *Amount, triggeredAt *time.Time, now time.Time, params EscapeParams) EscapeStatus {
	status := EscapeStatus{
		MinimumDeposit: params.MinimumBalance,
		TriggeredAt:    triggeredAt,
	}

	if triggeredAt == nil {
		// full security period if escape is not triggered yet
		status.DaysRemaining = ceilDays(params.SecurityPeriod)

		if balance == nil || balance.LessThan(params.MinimumBalance) {
			status.State = EscapeLockedInsufficientDeposit
			status.NeedsDeposit = true
			status.MissingDeposit = params.MinimumBalance

			if balance != nil {
				status.MissingDeposit = params.MinimumBalance.Sub(*balance)
			}
		} else {
			status.State = EscapeLockedWaitingPeriod
		}

		return status
	}

	elapsed := now.Sub(*triggeredAt)
	if elapsed < 0 {
		elapsed = 0
	}

	remaining := params.SecurityPeriod - elapsed
	if remaining <= 0 {
		status.State = EscapeUnlocked

		return status
	}

	status.State = EscapeLockedWaitingPeriod
	status.DaysRemaining = max(ceilDays(remaining), 1)

	return status
}

// WalletLock summarises why and how long a wallet is locked.
type WalletLock struct {
	Address       string        `json:"address"`
	Reason        LockingReason `json:"reason"`
	Deployed      bool          `json:"deployed"`
	Balance       Amount        `json:"balance"`
	ForcedUpgrade bool          `json:"forcedUpgrade"`
	Escape        *EscapeStatus `json:"escape,omitempty"`
}

// Locked reports whether the wallet cannot sign transactions.
func (l *WalletLock) Locked() bool {
	if l.ForcedUpgrade {
		return true
	}

	return l.Escape != nil && l.Escape.Locked()
}

// EscapeMonitor inspects the on-chain side of a wallet lock.
type EscapeMonitor struct {
	provider Provider
	token    string
	params   EscapeParams
	now      func() time.Time
	log      logrus.FieldLogger
}

// NewEscapeMonitor creates a monitor reading balances of token (the ETH token by default).
func NewEscapeMonitor(provider Provider, token string, params EscapeParams, log logrus.FieldLogger) *EscapeMonitor {
	if token == "" {
		token = ETHTokenAddress
	}

	return &EscapeMonitor{
		provider: provider,
		token:    token,
		params:   params,
		now:      time.Now,
		log:      log.WithField("component", "escape_monitor"),
	}
}

// Inspect reads balance and deployment status concurrently and resolves the lock.
func (m *EscapeMonitor) Inspect(ctx context.Context, address string, reason LockingReason, triggeredAt *time.Time) (*WalletLock, error) {
	var (
		balance  Amount
		deployed bool
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b, err := BalanceOf(gctx, m.provider, m.token, address)
		if err != nil {
			return err
		}
		balance = b

		return nil
	})

	g.Go(func() error {
		d, err := m.provider.IsDeployed(gctx, address)
		if err != nil {
			return fmt.Errorf("failed to get deployment status: %w", err)
		}
		deployed = d

		return nil
	})

	if err := g.Wait(); err != nil {
		m.log.WithError(err).WithField("address", address).Error("Failed to inspect wallet lock")

		return nil, err
	}

	lock := &WalletLock{
		Address:       address,
		Reason:        reason,
		Deployed:      deployed,
		Balance:       balance,
		ForcedUpgrade: reason == LockingReasonForcedUpgrade,
	}

	if reason == LockingReasonSignerEscape {
		status := ResolveEscape(&balance, triggeredAt, m.now(), m.params)
		lock.Escape = &status
	}

	m.log.WithFields(logrus.Fields{
		"address":  address,
		"reason":   reason,
		"deployed": deployed,
		"balance":  balance.String(),
	}).Debug("Inspected wallet lock")

	return lock, nil
}
