package stark_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nando-os/ghost-stark/internal/mocks"
	"github.com/nando-os/ghost-stark/stark"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testChainID  = "0x534e5f474f45524c49"
	testAddress  = "0x1234"
	testPrevious = "0x5678"
)

var testCalls = []stark.Call{
	{ContractAddress: "0x49d3", Entrypoint: "increaseAllowance", Calldata: []string{"0x99", "0x3e8", "0x0"}},
	{ContractAddress: "0x99", Entrypoint: "acceptOffer", Calldata: []string{"0x7"}},
}

func newTestAccount(t *testing.T, provider *mocks.Provider, opts stark.AccountOptions) *stark.Account {
	t.Helper()

	signer, err := stark.NewKeySignerFromHex(testPrivateKey)
	require.NoError(t, err)

	if opts.Address == "" {
		opts.Address = testAddress
	}

	account, err := stark.NewAccount(provider, signer, opts, logrus.New())
	require.NoError(t, err)

	return account
}

func TestNewAccount_Validation(t *testing.T) {
	signer, err := stark.NewKeySignerFromHex(testPrivateKey)
	require.NoError(t, err)
	provider := new(mocks.Provider)
	log := logrus.New()

	_, err = stark.NewAccount(nil, signer, stark.AccountOptions{Address: testAddress}, log)
	assert.EqualError(t, err, "account provider is nil")

	_, err = stark.NewAccount(provider, nil, stark.AccountOptions{Address: testAddress}, log)
	assert.EqualError(t, err, "account signer is nil")

	_, err = stark.NewAccount(provider, signer, stark.AccountOptions{}, log)
	assert.EqualError(t, err, "account address is not set")

	_, err = stark.NewAccount(provider, signer, stark.AccountOptions{Address: "0xnope"}, log)
	assert.ErrorIs(t, err, stark.ErrDecode)

	account, err := stark.NewAccount(provider, signer, stark.AccountOptions{Address: "0x0001234"}, log)
	require.NoError(t, err)
	assert.Equal(t, testAddress, account.Address())
	assert.Equal(t, "1", account.Version())
}

func TestAccount_EstimateInvokeFee(t *testing.T) {
	provider := new(mocks.Provider)
	account := newTestAccount(t, provider, stark.AccountOptions{})

	provider.On("ChainID", mock.Anything).Return(testChainID, nil).Once()
	provider.On("Nonce", mock.Anything, testAddress).Return("0x1", nil)
	provider.On("EstimateFee", mock.Anything, mock.MatchedBy(func(tx *stark.InvokeTransaction) bool {
		return tx.SenderAddress == testAddress &&
			tx.MaxFee == "0x0" &&
			tx.Nonce == "0x1" &&
			tx.Version == stark.TransactionVersion &&
			len(tx.Signature) == 2 &&
			tx.Calldata[0] == "0x2"
	})).Return(&stark.FeeEstimate{OverallFee: "0x3e8", GasConsumed: "0x10", GasPrice: "0x5"}, nil)

	estimate, err := account.EstimateInvokeFee(context.Background(), testCalls)
	require.NoError(t, err)

	assert.Equal(t, "1000", estimate.OverallFee.String())
	assert.Equal(t, "1500", estimate.SuggestedMaxFee.String())
	assert.Equal(t, "0x10", estimate.GasConsumed)

	// chain id is cached
	_, err = account.EstimateInvokeFee(context.Background(), testCalls)
	require.NoError(t, err)

	provider.AssertExpectations(t)
	provider.AssertNumberOfCalls(t, "ChainID", 1)
}

func TestAccount_EstimateInvokeFee_ZeroFee(t *testing.T) {
	for _, fee := range []string{"0x0", ""} {
		provider := new(mocks.Provider)
		account := newTestAccount(t, provider, stark.AccountOptions{})

		provider.On("ChainID", mock.Anything).Return(testChainID, nil)
		provider.On("Nonce", mock.Anything, testAddress).Return("0x1", nil)
		provider.On("EstimateFee", mock.Anything, mock.Anything).Return(&stark.FeeEstimate{OverallFee: fee}, nil)

		_, err := account.EstimateInvokeFee(context.Background(), testCalls)
		assert.ErrorIs(t, err, stark.ErrEstimationFailed, fee)
		assert.Equal(t, "Failed to estimate fees", stark.UserMessage(err))
	}
}

func TestAccount_EstimateInvokeFee_ProviderError(t *testing.T) {
	provider := new(mocks.Provider)
	account := newTestAccount(t, provider, stark.AccountOptions{})

	provider.On("ChainID", mock.Anything).Return(testChainID, nil)
	provider.On("Nonce", mock.Anything, testAddress).Return("0x1", nil)
	provider.On("EstimateFee", mock.Anything, mock.Anything).Return(nil, codedErr{code: 40, msg: "Contract error"})

	_, err := account.EstimateInvokeFee(context.Background(), testCalls)
	assert.ErrorIs(t, err, stark.ErrProvider)
	assert.Equal(t, "Contract error", stark.UserMessage(err))

	_, err = account.EstimateInvokeFee(context.Background(), nil)
	assert.Error(t, err)
}

func TestAccount_Execute(t *testing.T) {
	provider := new(mocks.Provider)

	var confirmed []stark.Call
	account := newTestAccount(t, provider, stark.AccountOptions{
		Confirm: func(ctx context.Context, calls []stark.Call, maxFee stark.Amount) (bool, error) {
			confirmed = calls
			return true, nil
		},
	})

	provider.On("ChainID", mock.Anything).Return(testChainID, nil)
	provider.On("Nonce", mock.Anything, testAddress).Return("0x2", nil)
	provider.On("AddInvokeTransaction", mock.Anything, mock.MatchedBy(func(tx *stark.InvokeTransaction) bool {
		return tx.Type == "INVOKE" && tx.MaxFee == "0x5dc" && tx.Nonce == "0x2"
	})).Return(&stark.InvokeResponse{TransactionHash: "0xabc"}, nil)

	res, err := account.Execute(context.Background(), testCalls, stark.MustRawAmount("1500"))
	require.NoError(t, err)
	assert.Equal(t, "0xabc", res.TransactionHash)
	assert.Equal(t, testCalls, confirmed)

	provider.AssertExpectations(t)
}

func TestAccount_Execute_Declined(t *testing.T) {
	provider := new(mocks.Provider)
	account := newTestAccount(t, provider, stark.AccountOptions{
		Confirm: func(ctx context.Context, calls []stark.Call, maxFee stark.Amount) (bool, error) {
			return false, nil
		},
	})

	_, err := account.Execute(context.Background(), testCalls, stark.MustRawAmount("1500"))
	assert.ErrorIs(t, err, stark.ErrSubmissionRejected)

	provider.AssertNotCalled(t, "AddInvokeTransaction", mock.Anything, mock.Anything)
}

func TestAccount_Execute_WalletRejection(t *testing.T) {
	provider := new(mocks.Provider)
	account := newTestAccount(t, provider, stark.AccountOptions{})

	provider.On("ChainID", mock.Anything).Return(testChainID, nil)
	provider.On("Nonce", mock.Anything, testAddress).Return("0x2", nil)
	provider.On("AddInvokeTransaction", mock.Anything, mock.Anything).Return(nil, codedErr{code: stark.UserRejectionCode, msg: "User abort"})

	_, err := account.Execute(context.Background(), testCalls, stark.MustRawAmount("1500"))
	assert.ErrorIs(t, err, stark.ErrSubmissionRejected)
}

func TestAccount_Execute_MissingHash(t *testing.T) {
	provider := new(mocks.Provider)
	account := newTestAccount(t, provider, stark.AccountOptions{})

	provider.On("ChainID", mock.Anything).Return(testChainID, nil)
	provider.On("Nonce", mock.Anything, testAddress).Return("0x2", nil)
	provider.On("AddInvokeTransaction", mock.Anything, mock.Anything).Return(&stark.InvokeResponse{}, nil)

	_, err := account.Execute(context.Background(), testCalls, stark.MustRawAmount("1500"))
	assert.ErrorIs(t, err, stark.ErrProvider)
	assert.Equal(t, "Failed to push transaction on starknet", stark.UserMessage(err))
}

func TestAccount_Execute_InvalidInput(t *testing.T) {
	provider := new(mocks.Provider)
	account := newTestAccount(t, provider, stark.AccountOptions{})

	_, err := account.Execute(context.Background(), testCalls, stark.Zero)
	assert.ErrorIs(t, err, stark.ErrInvalidAmount)

	_, err = account.Execute(context.Background(), nil, stark.MustRawAmount("1"))
	assert.Error(t, err)

	provider.AssertNotCalled(t, "ChainID", mock.Anything)
}

func TestAccount_Execute_ConfirmError(t *testing.T) {
	provider := new(mocks.Provider)
	account := newTestAccount(t, provider, stark.AccountOptions{
		Confirm: func(ctx context.Context, calls []stark.Call, maxFee stark.Amount) (bool, error) {
			return false, errors.New("prompt closed")
		},
	})

	_, err := account.Execute(context.Background(), testCalls, stark.MustRawAmount("1500"))
	assert.ErrorIs(t, err, stark.ErrProvider)
	assert.NotErrorIs(t, err, stark.ErrSubmissionRejected)
}

func TestAccount_Execute_PromptCanceled(t *testing.T) {
	provider := new(mocks.Provider)
	account := newTestAccount(t, provider, stark.AccountOptions{
		Confirm: func(ctx context.Context, calls []stark.Call, maxFee stark.Amount) (bool, error) {
			return false, fmt.Errorf("prompt: %w", context.Canceled)
		},
	})

	_, err := account.Execute(context.Background(), testCalls, stark.MustRawAmount("1500"))
	assert.ErrorIs(t, err, stark.ErrSubmissionRejected)
	assert.NotErrorIs(t, err, stark.ErrProvider)

	provider.AssertNotCalled(t, "ChainID", mock.Anything)
	provider.AssertNotCalled(t, "AddInvokeTransaction", mock.Anything, mock.Anything)
}

func TestAccount_MigrationPolicy(t *testing.T) {
	provider := new(mocks.Provider)

	single := newTestAccount(t, provider, stark.AccountOptions{})
	assert.Equal(t, stark.PhaseNone, single.Phase())
	assert.Equal(t, testAddress, single.SenderAddress())

	account := newTestAccount(t, provider, stark.AccountOptions{PreviousAddress: testPrevious})
	assert.Equal(t, testPrevious, account.PreviousAddress())

	// locked: the previous address is the only active one
	assert.Equal(t, stark.PhaseEscapeLocked, account.Phase())
	assert.Equal(t, testPrevious, account.SenderAddress())

	sender, err := account.SenderFor(testPrevious)
	require.NoError(t, err)
	assert.Equal(t, testPrevious, sender)

	_, err = account.SenderFor(testAddress)
	assert.ErrorIs(t, err, stark.ErrAccountLocked)

	account.SetEscapeStatus(&stark.EscapeStatus{State: stark.EscapeLockedWaitingPeriod, DaysRemaining: 2})
	assert.Equal(t, stark.PhaseEscapeLocked, account.Phase())

	// unlocked: the current address takes over
	account.SetEscapeStatus(&stark.EscapeStatus{State: stark.EscapeUnlocked})
	assert.Equal(t, stark.PhaseMigrated, account.Phase())
	assert.Equal(t, "migrated", account.Phase().String())
	assert.Equal(t, testAddress, account.SenderAddress())

	sender, err = account.SenderFor("")
	require.NoError(t, err)
	assert.Equal(t, testAddress, sender)

	_, err = account.SenderFor(testPrevious)
	assert.ErrorIs(t, err, stark.ErrAccountLocked)
}

func TestAccount_EstimateInvokeFee_PreviousAddress(t *testing.T) {
	provider := new(mocks.Provider)
	account := newTestAccount(t, provider, stark.AccountOptions{PreviousAddress: testPrevious})

	provider.On("ChainID", mock.Anything).Return(testChainID, nil)
	provider.On("Nonce", mock.Anything, testPrevious).Return("0x9", nil)
	provider.On("EstimateFee", mock.Anything, mock.MatchedBy(func(tx *stark.InvokeTransaction) bool {
		return tx.SenderAddress == testPrevious
	})).Return(&stark.FeeEstimate{OverallFee: "0x64"}, nil)

	estimate, err := account.EstimateInvokeFee(context.Background(), testCalls)
	require.NoError(t, err)
	assert.Equal(t, "150", estimate.SuggestedMaxFee.String())

	provider.AssertExpectations(t)
}
