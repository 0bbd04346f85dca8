package stark

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for the transaction lifecycle.
var (
	// ErrInvalidAmount indicates malformed user-entered numeric input.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrEstimationFailed indicates the provider returned a zero or missing fee.
	ErrEstimationFailed = errors.New("failed to estimate fees")

	// ErrSubmissionRejected indicates the user declined to sign.
	ErrSubmissionRejected = errors.New("submission rejected by signer")

	// ErrProvider indicates a network or RPC failure on the chain provider.
	ErrProvider = errors.New("provider error")

	// ErrServerSync indicates the post-submission bookkeeping mutation failed.
	ErrServerSync = errors.New("server sync failed")

	// ErrDecode indicates a server or provider response did not have the expected shape.
	ErrDecode = errors.New("decode error")

	// ErrAccountLocked indicates an operation against an address the escape policy does not allow yet.
	ErrAccountLocked = errors.New("account locked")

	// ErrNoAccount indicates no account is bound to the flow.
	ErrNoAccount = errors.New("no account bound")
)

// UserRejectionCode is the wallet error code for "user rejected the request".
const UserRejectionCode = 4001

const unknownErrorMessage = "Unknown error"

// codedError is implemented by go-ethereum rpc.Error and wallet prompt errors.
type codedError interface {
	ErrorCode() int
}

// ProviderError is a classified failure coming from the chain provider.
type ProviderError struct {
	Op      string
	Code    int
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: provider error %d: %s", e.Op, e.Code, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrProvider}
	}

	return []error{ErrProvider, e.Err}
}

// ClassifyProviderError maps a raw error from the provider or signer into one of the
// lifecycle error kinds. Rejection codes are checked before anything else.
func ClassifyProviderError(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrSubmissionRejected) ||
		errors.Is(err, ErrEstimationFailed) ||
		errors.Is(err, ErrAccountLocked) ||
		errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrProvider) {
		return err
	}

	var coded codedError
	if errors.As(err, &coded) {
		if coded.ErrorCode() == UserRejectionCode {
			return fmt.Errorf("%s: %w", op, ErrSubmissionRejected)
		}

		return &ProviderError{Op: op, Code: coded.ErrorCode(), Message: err.Error(), Err: err}
	}

	if errors.Is(err, context.Canceled) {
		return &ProviderError{Op: op, Message: "request canceled", Err: err}
	}

	return &ProviderError{Op: op, Message: err.Error(), Err: err}
}

// UserMessage returns the message shown to the user for a classified error.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrEstimationFailed) {
		return "Failed to estimate fees"
	}

	var perr *ProviderError
	if errors.As(err, &perr) && perr.Message != "" {
		return perr.Message
	}

	if msg := err.Error(); msg != "" {
		return msg
	}

	return unknownErrorMessage
}
