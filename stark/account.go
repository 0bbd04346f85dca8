package stark

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

const invokeType = "INVOKE"

// Default overhead applied to the overall fee to get the suggested max fee (x1.5).
const (
	DefaultMaxFeeOverheadNum = 3
	DefaultMaxFeeOverheadDen = 2
)

// ConfirmFunc asks the user to approve a submission. Returning false declines it.
type ConfirmFunc func(ctx context.Context, calls []Call, maxFee Amount) (bool, error)

// AccountOptions binds an account to its addresses.
type AccountOptions struct {
	Address         string
	PreviousAddress string
	Version         string

	// MaxFeeOverheadNum/Den scale the overall fee into the suggested max fee
	MaxFeeOverheadNum int64
	MaxFeeOverheadDen int64

	// Confirm is called before every submission, if set
	Confirm ConfirmFunc
}

// MigrationPhase is the phase of a wallet migration between a previous and a current address.
type MigrationPhase int

const (
	// PhaseNone means the account has a single address
	PhaseNone MigrationPhase = iota
	// PhaseEscapeLocked means the escape is not unlocked yet: the previous address stays active
	PhaseEscapeLocked
	// PhaseMigrated means the escape period elapsed: the current address is active
	PhaseMigrated
)

func (p MigrationPhase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseEscapeLocked:
		return "escape_locked"
	case PhaseMigrated:
		return "migrated"
	}

	return "unknown"
}

type addressLeg int

const (
	legCurrent addressLeg = iota
	legPrevious
)

type addressPolicy struct {
	sender      addressLeg
	acceptsLegs []addressLeg
}

// migrationPolicy is the effective address table. The signer is always the current one.
var migrationPolicy = map[MigrationPhase]addressPolicy{
	PhaseNone:         {sender: legCurrent, acceptsLegs: []addressLeg{legCurrent}},
	PhaseEscapeLocked: {sender: legPrevious, acceptsLegs: []addressLeg{legPrevious}},
	PhaseMigrated:     {sender: legCurrent, acceptsLegs: []addressLeg{legCurrent}},
}

// Account is the custodial account abstraction: it turns call batches into fee estimates
// and signed invoke transactions against a Provider.
type Account struct {
	provider Provider
	signer   Signer
	log      logrus.FieldLogger

	address         string
	previousAddress string
	version         string
	overheadNum     int64
	overheadDen     int64
	confirm         ConfirmFunc

	mu      sync.RWMutex
	chainID string
	escape  *EscapeStatus
}

// NewAccount validates the options and binds an account to a provider and signer.
func NewAccount(provider Provider, signer Signer, opts AccountOptions, log logrus.FieldLogger) (*Account, error) {
	// -- validate account
	if provider == nil {
		return nil, fmt.Errorf("account provider is nil")
	}

	if signer == nil {
		return nil, fmt.Errorf("account signer is nil")
	}

	if opts.Address == "" {
		return nil, fmt.Errorf("account address is not set")
	}

	address, err := NormalizeFelt(opts.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid account address: %w", err)
	}

	var previous string
	if opts.PreviousAddress != "" {
		previous, err = NormalizeFelt(opts.PreviousAddress)
		if err != nil {
			return nil, fmt.Errorf("invalid previous account address: %w", err)
		}
	}

	if opts.Version == "" {
		opts.Version = "1"
	}

	if opts.MaxFeeOverheadNum <= 0 || opts.MaxFeeOverheadDen <= 0 {
		opts.MaxFeeOverheadNum = DefaultMaxFeeOverheadNum
		opts.MaxFeeOverheadDen = DefaultMaxFeeOverheadDen
	}

	return &Account{
		provider:        provider,
		signer:          signer,
		log:             log.WithField("component", "stark_account"),
		address:         address,
		previousAddress: previous,
		version:         opts.Version,
		overheadNum:     opts.MaxFeeOverheadNum,
		overheadDen:     opts.MaxFeeOverheadDen,
		confirm:         opts.Confirm,
	}, nil
}

// Address returns the current address.
func (a *Account) Address() string {
	return a.address
}

// PreviousAddress returns the address being migrated away from, if any.
func (a *Account) PreviousAddress() string {
	return a.previousAddress
}

// Version returns the account contract version.
func (a *Account) Version() string {
	return a.version
}

// SetEscapeStatus records the latest resolved escape state, which drives the migration phase.
func (a *Account) SetEscapeStatus(status *EscapeStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.escape = status
}

// Phase returns the current migration phase.
func (a *Account) Phase() MigrationPhase {
	if a.previousAddress == "" {
		return PhaseNone
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.escape != nil && a.escape.State == EscapeUnlocked {
		return PhaseMigrated
	}

	return PhaseEscapeLocked
}

func (a *Account) addressOf(leg addressLeg) string {
	if leg == legPrevious {
		return a.previousAddress
	}

	return a.address
}

// SenderAddress returns the address transactions are sent from in the current phase.
func (a *Account) SenderAddress() string {
	return a.addressOf(migrationPolicy[a.Phase()].sender)
}

// SenderFor checks that an operation explicitly targeting address is valid in the current
// phase. An empty target resolves to SenderAddress.
func (a *Account) SenderFor(target string) (string, error) {
	phase := a.Phase()
	policy := migrationPolicy[phase]

	if target == "" {
		return a.addressOf(policy.sender), nil
	}

	normalized, err := NormalizeFelt(target)
	if err != nil {
		return "", fmt.Errorf("invalid target address: %w", err)
	}

	for _, leg := range policy.acceptsLegs {
		if a.addressOf(leg) == normalized {
			return normalized, nil
		}
	}

	return "", fmt.Errorf("%w: address %s is not active during %s", ErrAccountLocked, normalized, phase)
}

func (a *Account) chainIDOf(ctx context.Context) (string, error) {
	a.mu.RLock()
	cached := a.chainID
	a.mu.RUnlock()

	if cached != "" {
		return cached, nil
	}

	chainID, err := a.provider.ChainID(ctx)
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.chainID = chainID
	a.mu.Unlock()

	return chainID, nil
}

// buildInvoke fetches the nonce, encodes, hashes and signs an invoke transaction.
func (a *Account) buildInvoke(ctx context.Context, op, sender string, calls []Call, maxFee Amount) (*InvokeTransaction, error) {
	calldata, err := ExecuteCalldata(calls)
	if err != nil {
		return nil, fmt.Errorf("failed to encode calls: %w", err)
	}

	chainID, err := a.chainIDOf(ctx)
	if err != nil {
		return nil, ClassifyProviderError(op, err)
	}

	nonce, err := a.provider.Nonce(ctx, sender)
	if err != nil {
		return nil, ClassifyProviderError(op, err)
	}

	hash, err := InvokeHash(sender, calldata, maxFee, chainID, nonce)
	if err != nil {
		return nil, fmt.Errorf("failed to hash transaction: %w", err)
	}

	signature, err := a.signer.Sign(ctx, hash)
	if err != nil {
		return nil, ClassifyProviderError(op, err)
	}

	return &InvokeTransaction{
		Type:          invokeType,
		SenderAddress: sender,
		Calldata:      calldata,
		MaxFee:        maxFee.Hex(),
		Version:       TransactionVersion,
		Signature:     signature,
		Nonce:         nonce,
	}, nil
}

// EstimateInvokeFee dry-runs a call batch. A zero or missing fee is ErrEstimationFailed.
func (a *Account) EstimateInvokeFee(ctx context.Context, calls []Call) (*InvokeFeeEstimate, error) {
	if len(calls) == 0 {
		return nil, fmt.Errorf("no calls to estimate")
	}

	sender := a.SenderAddress()
	log := a.log.WithFields(logrus.Fields{"sender": sender, "calls": len(calls)})
	log.Debug("Estimating invoke fee")

	tx, err := a.buildInvoke(ctx, "estimate_fee", sender, calls, Zero)
	if err != nil {
		return nil, err
	}

	raw, err := a.provider.EstimateFee(ctx, tx)
	if err != nil {
		return nil, ClassifyProviderError("estimate_fee", err)
	}

	if raw == nil || raw.OverallFee == "" {
		return nil, fmt.Errorf("%w: missing overall fee", ErrEstimationFailed)
	}

	overall, err := FromRawAmount(raw.OverallFee)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEstimationFailed, err)
	}

	suggested := overall.MulRatio(a.overheadNum, a.overheadDen)
	if overall.IsZero() || suggested.IsZero() {
		return nil, fmt.Errorf("%w: provider returned a zero fee", ErrEstimationFailed)
	}

	log.WithFields(logrus.Fields{
		"overall_fee":       overall.String(),
		"suggested_max_fee": suggested.String(),
	}).Debug("Estimated invoke fee")

	return &InvokeFeeEstimate{
		SuggestedMaxFee: suggested,
		OverallFee:      overall,
		GasConsumed:     raw.GasConsumed,
		GasPrice:        raw.GasPrice,
	}, nil
}

// Execute signs and submits a call batch with maxFee as the fee cap.
func (a *Account) Execute(ctx context.Context, calls []Call, maxFee Amount) (*InvokeResponse, error) {
	if len(calls) == 0 {
		return nil, fmt.Errorf("no calls to execute")
	}

	if maxFee.IsZero() {
		return nil, fmt.Errorf("%w: max fee must be positive", ErrInvalidAmount)
	}

	if a.confirm != nil {
		ok, err := a.confirm(ctx, CloneCalls(calls), maxFee)
		if errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("execute: %w", ErrSubmissionRejected)
		}
		if err != nil {
			return nil, ClassifyProviderError("execute", err)
		}
		if !ok {
			return nil, fmt.Errorf("execute: %w", ErrSubmissionRejected)
		}
	}

	sender := a.SenderAddress()
	log := a.log.WithFields(logrus.Fields{"sender": sender, "max_fee": maxFee.String()})
	log.Info("Starting transaction signing process")

	tx, err := a.buildInvoke(ctx, "execute", sender, calls, maxFee)
	if err != nil {
		return nil, err
	}

	res, err := a.provider.AddInvokeTransaction(ctx, tx)
	if err != nil {
		return nil, ClassifyProviderError("execute", err)
	}

	if res == nil || res.TransactionHash == "" {
		return nil, &ProviderError{Op: "execute", Message: "Failed to push transaction on starknet"}
	}

	log.WithField("hash", res.TransactionHash).Info("Transaction submitted")

	return res, nil
}
