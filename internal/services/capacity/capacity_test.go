package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CountInside(ctx context.Context, planID *int64) (int, error) {
	args := m.Called(ctx, planID)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) ReconcilePlanCapacity(ctx context.Context, planID int64) (int, error) {
	args := m.Called(ctx, planID)
	return args.Int(0), args.Error(1)
}

func (m *RepoMock) ListPlanIDsWithCapacity(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

func NewNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestCapacityService_CurrentOccupancy(t *testing.T) {
	repo := new(RepoMock)
	svc := NewCapacityService(repo, NewNoopLogger(), 200)

	repo.On("CountInside", mock.Anything, mock.MatchedBy(func(planID *int64) bool {
		return planID != nil && *planID == 3
	})).Return(17, nil).Once()

	got, err := svc.CurrentOccupancy(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 17, got)

	repo.AssertExpectations(t)
}

func TestCapacityService_FacilityOccupancy(t *testing.T) {
	repo := new(RepoMock)
	svc := NewCapacityService(repo, NewNoopLogger(), 200)

	repo.On("CountInside", mock.Anything, (*int64)(nil)).Return(83, nil).Once()

	got, err := svc.FacilityOccupancy(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 83, got.Inside)
	assert.Equal(t, 200, got.MaxCapacity)

	repo.AssertExpectations(t)
}

func TestCapacityService_ReconcileAll(t *testing.T) {
	t.Run("all plans reconciled", func(t *testing.T) {
		repo := new(RepoMock)
		svc := NewCapacityService(repo, NewNoopLogger(), 200)

		repo.On("ListPlanIDsWithCapacity", mock.Anything).Return([]int64{3, 5}, nil).Once()
		repo.On("ReconcilePlanCapacity", mock.Anything, int64(3)).Return(12, nil).Once()
		repo.On("ReconcilePlanCapacity", mock.Anything, int64(5)).Return(0, nil).Once()

		assert.NoError(t, svc.ReconcileAll(context.Background()))
		repo.AssertExpectations(t)
	})

	t.Run("failure on one plan does not stop the rest", func(t *testing.T) {
		repo := new(RepoMock)
		svc := NewCapacityService(repo, NewNoopLogger(), 200)

		repo.On("ListPlanIDsWithCapacity", mock.Anything).Return([]int64{3, 5, 7}, nil).Once()
		repo.On("ReconcilePlanCapacity", mock.Anything, int64(3)).
			Return(0, errors.New("deadlock")).Once()
		repo.On("ReconcilePlanCapacity", mock.Anything, int64(5)).Return(4, nil).Once()
		repo.On("ReconcilePlanCapacity", mock.Anything, int64(7)).Return(9, nil).Once()

		err := svc.ReconcileAll(context.Background())
		assert.Error(t, err)
		repo.AssertExpectations(t)
	})
}
