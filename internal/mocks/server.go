package mocks

import (
	"context"

	"github.com/nando-os/ghost-stark/rules"
	"github.com/nando-os/ghost-stark/stark"
	"github.com/nando-os/ghost-stark/txflow"
	"github.com/stretchr/testify/mock"
)

// Server is a testify mock of txflow.Server.
type Server struct {
	mock.Mock
}

var _ txflow.Server = (*Server)(nil)

func (m *Server) WaitingTransaction(ctx context.Context) (*stark.PendingTransaction, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.(*stark.PendingTransaction), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *Server) RecordTransaction(ctx context.Context, record rules.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}
