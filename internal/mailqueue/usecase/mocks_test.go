package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/cadetops/mailroom/internal/mailqueue/domain"
)

// MockTxManager is a mock implementation of database.TxManager
type MockTxManager struct {
	mock.Mock
}

func (m *MockTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if args.Get(0) != nil {
		return args.Error(0)
	}
	// Execute the function to test the logic inside
	return fn(ctx)
}

// MockEmailJobRepository is a mock implementation of EmailJobRepository
type MockEmailJobRepository struct {
	mock.Mock
}

func (m *MockEmailJobRepository) Create(ctx context.Context, job *domain.EmailJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockEmailJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmailJob), args.Error(1)
}

func (m *MockEmailJobRepository) ListBySchool(
	ctx context.Context,
	schoolID uuid.UUID,
	offset, limit int,
) ([]*domain.EmailJob, error) {
	args := m.Called(ctx, schoolID, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmailJob), args.Error(1)
}

func (m *MockEmailJobRepository) GetEligible(ctx context.Context, limit int) ([]*domain.EmailJob, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmailJob), args.Error(1)
}

func (m *MockEmailJobRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockEmailJobRepository) MarkSent(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockEmailJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) (bool, error) {
	args := m.Called(ctx, id, errorMessage)
	return args.Bool(0), args.Error(1)
}

func (m *MockEmailJobRepository) GetStuck(ctx context.Context, cutoff time.Time) ([]*domain.EmailJob, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.EmailJob), args.Error(1)
}

func (m *MockEmailJobRepository) ResetForRetry(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockEmailJobRepository) RetryFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockEmailJobRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockEmailJobRepository) CountsBySchool(
	ctx context.Context,
	stuckCutoff time.Time,
) ([]domain.QueueCounts, error) {
	args := m.Called(ctx, stuckCutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.QueueCounts), args.Error(1)
}

// MockHealthSnapshotRepository is a mock implementation of HealthSnapshotRepository
type MockHealthSnapshotRepository struct {
	mock.Mock
}

func (m *MockHealthSnapshotRepository) Create(ctx context.Context, snapshot *domain.HealthSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}

func (m *MockHealthSnapshotRepository) ListRecent(ctx context.Context, limit int) ([]*domain.HealthSnapshot, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.HealthSnapshot), args.Error(1)
}

// MockProcessingLogRepository is a mock implementation of ProcessingLogRepository
type MockProcessingLogRepository struct {
	mock.Mock
}

func (m *MockProcessingLogRepository) Create(ctx context.Context, log *domain.ProcessingLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockProcessingLogRepository) ListRecent(ctx context.Context, limit int) ([]*domain.ProcessingLog, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ProcessingLog), args.Error(1)
}

// MockTransport is a mock implementation of Transport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, to []string, subject, htmlBody string) (string, error) {
	args := m.Called(ctx, to, subject, htmlBody)
	return args.String(0), args.Error(1)
}
