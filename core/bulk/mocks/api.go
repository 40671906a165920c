package mocks

import (
	"context"

	"inventory-sync/core/bulk"

	"github.com/stretchr/testify/mock"
)

// API is a mock implementation of bulk.API
type API struct {
	mock.Mock
}

func (m *API) Submit(ctx context.Context, spec bulk.Spec) (*bulk.Submission, error) {
	args := m.Called(ctx, spec)
	if sub, ok := args.Get(0).(*bulk.Submission); ok {
		return sub, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *API) Status(ctx context.Context, id string) (*bulk.Snapshot, error) {
	args := m.Called(ctx, id)
	if snap, ok := args.Get(0).(*bulk.Snapshot); ok {
		return snap, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *API) Cancel(ctx context.Context, id string) (*bulk.Snapshot, error) {
	args := m.Called(ctx, id)
	if snap, ok := args.Get(0).(*bulk.Snapshot); ok {
		return snap, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *API) Current(ctx context.Context, kind bulk.Kind) (*bulk.Snapshot, error) {
	args := m.Called(ctx, kind)
	if snap, ok := args.Get(0).(*bulk.Snapshot); ok {
		return snap, args.Error(1)
	}
	return nil, args.Error(1)
}
