package commands

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/cadetops/mailroom/internal/mailqueue/domain"
	mailqueueUsecase "github.com/cadetops/mailroom/internal/mailqueue/usecase"
)

// MockBatchDispatcher is a mock implementation of usecase.BatchDispatcher
type MockBatchDispatcher struct {
	mock.Mock
}

func (m *MockBatchDispatcher) ProcessBatch(ctx context.Context, batchSize int) (*mailqueueUsecase.BatchResult, error) {
	args := m.Called(ctx, batchSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mailqueueUsecase.BatchResult), args.Error(1)
}

func (m *MockBatchDispatcher) RunOnce(ctx context.Context) (*mailqueueUsecase.BatchResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mailqueueUsecase.BatchResult), args.Error(1)
}

func (m *MockBatchDispatcher) Run(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockStuckReclaimer is a mock implementation of usecase.StuckReclaimer
type MockStuckReclaimer struct {
	mock.Mock
}

func (m *MockStuckReclaimer) RetryStuck(ctx context.Context, maxAge time.Duration) ([]domain.RetryResult, error) {
	args := m.Called(ctx, maxAge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RetryResult), args.Error(1)
}

func (m *MockStuckReclaimer) Run(ctx context.Context, interval time.Duration) error {
	args := m.Called(ctx, interval)
	return args.Error(0)
}

// MockHealthChecker is a mock implementation of usecase.HealthChecker
type MockHealthChecker struct {
	mock.Mock
}

func (m *MockHealthChecker) CheckQueueHealth(ctx context.Context) (*mailqueueUsecase.HealthReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mailqueueUsecase.HealthReport), args.Error(1)
}

func (m *MockHealthChecker) Run(ctx context.Context, interval time.Duration) error {
	args := m.Called(ctx, interval)
	return args.Error(0)
}

// MockQueueService is a mock implementation of usecase.QueueService
type MockQueueService struct {
	mock.Mock
}

func (m *MockQueueService) Enqueue(ctx context.Context, input mailqueueUsecase.EnqueueInput) (*domain.EmailJob, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailJob), args.Error(1)
}

func (m *MockQueueService) GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailJob), args.Error(1)
}

func (m *MockQueueService) ListBySchool(ctx context.Context, schoolID uuid.UUID, offset, limit int) ([]*domain.EmailJob, error) {
	args := m.Called(ctx, schoolID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmailJob), args.Error(1)
}

func (m *MockQueueService) Cancel(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailJob), args.Error(1)
}

func (m *MockQueueService) Retry(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailJob), args.Error(1)
}

func (m *MockQueueService) RecentHealth(ctx context.Context, limit int) ([]*domain.HealthSnapshot, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.HealthSnapshot), args.Error(1)
}

func (m *MockQueueService) RecentLogs(ctx context.Context, limit int) ([]*domain.ProcessingLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ProcessingLog), args.Error(1)
}
