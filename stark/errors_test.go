package stark_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nando-os/ghost-stark/stark"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type codedErr struct {
	code int
	msg  string
}

func (e codedErr) Error() string  { return e.msg }
func (e codedErr) ErrorCode() int { return e.code }

func TestClassifyProviderError_UserRejection(t *testing.T) {
	err := stark.ClassifyProviderError("execute", fmt.Errorf("wallet: %w", codedErr{code: 4001, msg: "User abort"}))

	assert.ErrorIs(t, err, stark.ErrSubmissionRejected)
	assert.NotErrorIs(t, err, stark.ErrProvider)
}

func TestClassifyProviderError_CodedFailure(t *testing.T) {
	err := stark.ClassifyProviderError("estimate_fee", codedErr{code: 40, msg: "Contract error"})

	var perr *stark.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 40, perr.Code)
	assert.Equal(t, "estimate_fee", perr.Op)
	assert.Equal(t, "Contract error", perr.Message)
	assert.ErrorIs(t, err, stark.ErrProvider)
	assert.Equal(t, "Contract error", stark.UserMessage(err))
}

func TestClassifyProviderError_PlainFailure(t *testing.T) {
	cause := errors.New("connection refused")
	err := stark.ClassifyProviderError("execute", cause)

	assert.ErrorIs(t, err, stark.ErrProvider)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "execute: connection refused", err.Error())
}

func TestClassifyProviderError_Canceled(t *testing.T) {
	err := stark.ClassifyProviderError("execute", context.Canceled)

	assert.ErrorIs(t, err, stark.ErrProvider)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "request canceled", stark.UserMessage(err))
}

func TestClassifyProviderError_AlreadyClassified(t *testing.T) {
	for _, sentinel := range []error{
		stark.ErrSubmissionRejected,
		stark.ErrEstimationFailed,
		stark.ErrAccountLocked,
		stark.ErrDecode,
	} {
		wrapped := fmt.Errorf("op: %w", sentinel)
		assert.Same(t, wrapped, stark.ClassifyProviderError("op", wrapped))
	}

	assert.NoError(t, stark.ClassifyProviderError("op", nil))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", stark.UserMessage(nil))
	assert.Equal(t, "Failed to estimate fees", stark.UserMessage(fmt.Errorf("%w: zero fee", stark.ErrEstimationFailed)))
	assert.Equal(t, "Failed to push transaction on starknet",
		stark.UserMessage(&stark.ProviderError{Op: "execute", Message: "Failed to push transaction on starknet"}))
	assert.Equal(t, "Unknown error", stark.UserMessage(&stark.ProviderError{Op: "execute"}))
	assert.Equal(t, "boom", stark.UserMessage(errors.New("boom")))
}
