package handlers

import (
	"context"

	"github.com/iRail/occupancy-api/types"
	"github.com/stretchr/testify/mock"
)

// MockOccupancyStore implements store.OccupancyStore for handler tests.
type MockOccupancyStore struct {
	mock.Mock
}

func (m *MockOccupancyStore) SaveFeedback(ctx context.Context, feedback *types.OccupancyFeedback) error {
	args := m.Called(ctx, feedback)
	return args.Error(0)
}

// MockHealthChecker implements HealthChecker.
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) CheckHealth(ctx context.Context) types.HealthCheck {
	args := m.Called(ctx)
	return args.Get(0).(types.HealthCheck)
}
