package mocks

import (
	"context"

	"github.com/nando-os/ghost-stark/stark"
	"github.com/nando-os/ghost-stark/txflow"
	"github.com/stretchr/testify/mock"
)

// Account is a testify mock of txflow.InvokeAccount.
type Account struct {
	mock.Mock
}

var _ txflow.InvokeAccount = (*Account)(nil)

func (m *Account) SenderAddress() string {
	args := m.Called()
	return args.String(0)
}

func (m *Account) EstimateInvokeFee(ctx context.Context, calls []stark.Call) (*stark.InvokeFeeEstimate, error) {
	args := m.Called(ctx, calls)
	if v := args.Get(0); v != nil {
		return v.(*stark.InvokeFeeEstimate), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Account) Execute(ctx context.Context, calls []stark.Call, maxFee stark.Amount) (*stark.InvokeResponse, error) {
	args := m.Called(ctx, calls, maxFee)
	if v := args.Get(0); v != nil {
		return v.(*stark.InvokeResponse), args.Error(1)
	}
	return nil, args.Error(1)
}
