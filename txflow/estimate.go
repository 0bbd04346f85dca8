package txflow

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nando-os/ghost-stark/stark"
	"github.com/sirupsen/logrus"
)

// EstimateState is the observable state of the fee estimation flow.
type EstimateState struct {
	Loading    bool              `json:"loading"`
	Error      string            `json:"error,omitempty"`
	NetworkFee *stark.NetworkFee `json:"networkFee,omitempty"`
	TotalCost  *stark.TotalCost  `json:"totalCost,omitempty"`
	Generation uint64            `json:"generation"`
}

// FeeEstimator estimates the network fee of the draft calls.
type FeeEstimator struct {
	draft   *Draft
	account InvokeAccount
	log     logrus.FieldLogger

	mu      sync.Mutex
	loading bool
	err     string
	fee     *stark.NetworkFee
	feeGen  uint64
}

// NewFeeEstimator binds an estimator to a draft. account may be nil until one is bound.
func NewFeeEstimator(draft *Draft, account InvokeAccount, log logrus.FieldLogger) *FeeEstimator {
	return &FeeEstimator{
		draft:   draft,
		account: account,
		log:     log.WithField("component", "fee_estimator"),
	}
}

// Estimate dry-runs the draft calls. It is a no-op without calls or account, and while
// another estimation is in flight. When the calls change meanwhile the result is dropped
// and the current calls are estimated again; ErrStaleResult is returned once the draft
// is emptied or ctx is done.
func (e *FeeEstimator) Estimate(ctx context.Context) error {
	snap := e.draft.Snapshot()
	if snap.Empty() || e.account == nil {
		return nil
	}

	e.mu.Lock()
	if e.loading {
		e.mu.Unlock()

		return nil
	}
	e.loading = true
	e.err = ""
	e.fee = nil
	e.mu.Unlock()

	for {
		log := e.log.WithFields(logrus.Fields{"calls": len(snap.Calls), "generation": snap.Generation})
		log.Debug("Estimating fees")

		fee, err := e.estimate(ctx, snap.Calls)

		e.mu.Lock()

		if !e.draft.Current(snap.Generation) {
			next := e.draft.Snapshot()
			if next.Empty() || ctx.Err() != nil {
				e.loading = false
				e.mu.Unlock()
				log.Debug("Dropping fee estimation of stale calls")

				return ErrStaleResult
			}

			e.err = ""
			e.fee = nil
			e.mu.Unlock()
			log.WithField("next_generation", next.Generation).Debug("Calls changed, estimating again")

			snap = next

			continue
		}

		e.loading = false

		if err != nil {
			e.err = stark.UserMessage(err)
			e.mu.Unlock()
			log.WithError(err).Error("Failed to estimate fees")

			return err
		}

		e.fee = fee
		e.feeGen = snap.Generation
		e.mu.Unlock()

		log.WithFields(logrus.Fields{
			"max_fee": fee.MaxFee.String(),
			"fee":     fee.Fee.String(),
		}).Debug("Estimated fees")

		return nil
	}
}

func (e *FeeEstimator) estimate(ctx context.Context, calls []stark.Call) (*stark.NetworkFee, error) {
	res, err := e.account.EstimateInvokeFee(ctx, calls)
	if err != nil {
		return nil, err
	}

	fee := &stark.NetworkFee{MaxFee: res.SuggestedMaxFee, Fee: res.OverallFee}
	if !fee.Valid() {
		return nil, fmt.Errorf("%w: zero fee", stark.ErrEstimationFailed)
	}

	return fee, nil
}

// State returns the estimation state for the current draft. A fee computed for an older
// generation is reported as absent.
func (e *FeeEstimator) State() EstimateState {
	snap := e.draft.Snapshot()

	e.mu.Lock()
	defer e.mu.Unlock()

	state := EstimateState{
		Loading:    e.loading,
		Error:      e.err,
		Generation: snap.Generation,
	}

	if e.fee == nil || e.feeGen != snap.Generation {
		return state
	}

	fee := *e.fee
	state.NetworkFee = &fee

	if !snap.Value.IsZero() {
		state.TotalCost = &stark.TotalCost{
			Cost:    snap.Value.Add(fee.Fee),
			MaxCost: snap.Value.Add(fee.MaxFee),
		}
	}

	return state
}

// Loading reports whether an estimation is in flight.
func (e *FeeEstimator) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.loading
}

// Clear forgets the last result and error.
func (e *FeeEstimator) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.err = ""
	e.fee = nil
}

// IsEstimationFailure reports whether err is a degenerate fee estimation.
func IsEstimationFailure(err error) bool {
	return errors.Is(err, stark.ErrEstimationFailed)
}
