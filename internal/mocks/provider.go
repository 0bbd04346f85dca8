package mocks

import (
	"context"

	"github.com/nando-os/ghost-stark/stark"
	"github.com/stretchr/testify/mock"
)

// Provider is a testify mock of stark.Provider.
type Provider struct {
	mock.Mock
}

var _ stark.Provider = (*Provider)(nil)

func (m *Provider) ChainID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *Provider) Nonce(ctx context.Context, address string) (string, error) {
	args := m.Called(ctx, address)
	return args.String(0), args.Error(1)
}

func (m *Provider) EstimateFee(ctx context.Context, tx *stark.InvokeTransaction) (*stark.FeeEstimate, error) {
	args := m.Called(ctx, tx)
	if v := args.Get(0); v != nil {
		return v.(*stark.FeeEstimate), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Provider) AddInvokeTransaction(ctx context.Context, tx *stark.InvokeTransaction) (*stark.InvokeResponse, error) {
	args := m.Called(ctx, tx)
	if v := args.Get(0); v != nil {
		return v.(*stark.InvokeResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Provider) Call(ctx context.Context, call stark.Call) ([]string, error) {
	args := m.Called(ctx, call)
	if v := args.Get(0); v != nil {
		return v.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Provider) IsDeployed(ctx context.Context, address string) (bool, error) {
	args := m.Called(ctx, address)
	return args.Bool(0), args.Error(1)
}

func (m *Provider) TransactionStatus(ctx context.Context, hash string) (*stark.TransactionStatus, error) {
	args := m.Called(ctx, hash)
	if v := args.Get(0); v != nil {
		return v.(*stark.TransactionStatus), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Provider) Close() {
	m.Called()
}
