// Package txflow drives the signing lifecycle of a transaction: a draft call batch,
// fee estimation, execution and the pending transaction guard.
package txflow

import (
	"context"
	"errors"

	"github.com/nando-os/ghost-stark/rules"
	"github.com/nando-os/ghost-stark/stark"
)

var (
	// ErrStaleResult is returned when the draft changed while a request was in flight.
	ErrStaleResult = errors.New("draft changed while request was in flight")

	// ErrBlocked is returned while a transaction is pending for the account.
	ErrBlocked = errors.New("a transaction is already pending")

	// ErrEstimationInFlight is returned when confirming while fees are being estimated.
	ErrEstimationInFlight = errors.New("fee estimation in progress")

	// ErrStaleEstimate is returned when confirming without an estimate of the current calls.
	ErrStaleEstimate = errors.New("no fee estimate for the current calls")

	// ErrBusy is returned when a request of the same kind is already in flight.
	ErrBusy = errors.New("request already in flight")
)

// InvokeAccount is the account capability used by the flows. *stark.Account implements it.
type InvokeAccount interface {
	SenderAddress() string
	EstimateInvokeFee(ctx context.Context, calls []stark.Call) (*stark.InvokeFeeEstimate, error)
	Execute(ctx context.Context, calls []stark.Call, maxFee stark.Amount) (*stark.InvokeResponse, error)
}

// WaitingTransactionQuerier reports the server-tracked in-flight transaction of the current user.
type WaitingTransactionQuerier interface {
	WaitingTransaction(ctx context.Context) (*stark.PendingTransaction, error)
}

// Server is the server boundary of a session. *rules.Client implements it.
type Server interface {
	WaitingTransactionQuerier
	RecordTransaction(ctx context.Context, record rules.Record) error
}

// PendingStore keeps a local record of the in-flight transaction of each account.
type PendingStore interface {
	// Reserve claims the account slot and returns the reservation token
	Reserve(ctx context.Context, address string) (string, error)

	// Attach replaces a reservation with the transaction hash
	Attach(ctx context.Context, address, token, hash string) error

	// Pending returns the hash (empty while only reserved) and whether the slot is taken
	Pending(ctx context.Context, address string) (string, bool, error)

	// Release frees the slot if it still holds value
	Release(ctx context.Context, address, value string) error
}

// Ensure *stark.Account and *rules.Client fit the flows
var (
	_ InvokeAccount = (*stark.Account)(nil)
	_ Server        = (*rules.Client)(nil)
)
