package usecase

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	apperrors "github.com/cadetops/mailroom/internal/errors"
	"github.com/cadetops/mailroom/internal/mailqueue/domain"
)

func newQueueUseCase(
	jobRepo *MockEmailJobRepository,
	healthRepo *MockHealthSnapshotRepository,
	logRepo *MockProcessingLogRepository,
) *QueueUseCase {
	return NewQueueUseCase(domain.DefaultRetryPolicy(), jobRepo, healthRepo, logRepo, nil)
}

func TestQueueUseCase_Enqueue_Defaults(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	uc := newQueueUseCase(jobRepo, &MockHealthSnapshotRepository{}, &MockProcessingLogRepository{})

	ctx := context.Background()
	schoolID := uuid.Must(uuid.NewV7())
	before := time.Now().UTC()

	jobRepo.On("Create", ctx, mock.MatchedBy(func(j *domain.EmailJob) bool {
		return j.Status == domain.JobStatusPending &&
			j.SchoolID == schoolID &&
			j.MaxRetries == 3 &&
			j.RetryCount == 0 &&
			!j.ScheduledAt.Before(before)
	})).Return(nil)

	job, err := uc.Enqueue(ctx, EnqueueInput{
		RecipientEmail: "cadet@example.com",
		Subject:        "Welcome aboard",
		Body:           "<p>Welcome</p>",
		SchoolID:       schoolID,
	})

	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Nil(t, job.SentAt)
	jobRepo.AssertExpectations(t)
}

func TestQueueUseCase_Enqueue_CustomScheduleAndBudget(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	uc := newQueueUseCase(jobRepo, &MockHealthSnapshotRepository{}, &MockProcessingLogRepository{})

	ctx := context.Background()
	scheduledAt := time.Now().Add(2 * time.Hour)
	maxRetries := 5

	jobRepo.On("Create", ctx, mock.MatchedBy(func(j *domain.EmailJob) bool {
		return j.ScheduledAt.Equal(scheduledAt.UTC()) && j.MaxRetries == 5
	})).Return(nil)

	job, err := uc.Enqueue(ctx, EnqueueInput{
		RecipientEmail: "cadet@example.com",
		Subject:        "Inspection notice",
		Body:           "<p>Details</p>",
		SchoolID:       uuid.Must(uuid.NewV7()),
		ScheduledAt:    &scheduledAt,
		MaxRetries:     &maxRetries,
	})

	assert.NoError(t, err)
	assert.Equal(t, 5, job.MaxRetries)
	jobRepo.AssertExpectations(t)
}

func TestQueueUseCase_Enqueue_MissingRecipient(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	uc := newQueueUseCase(jobRepo, &MockHealthSnapshotRepository{}, &MockProcessingLogRepository{})

	_, err := uc.Enqueue(context.Background(), EnqueueInput{
		RecipientEmail: "   ",
		Subject:        "No recipient",
		SchoolID:       uuid.Must(uuid.NewV7()),
	})

	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
	jobRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestQueueUseCase_Enqueue_MissingSchool(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	uc := newQueueUseCase(jobRepo, &MockHealthSnapshotRepository{}, &MockProcessingLogRepository{})

	_, err := uc.Enqueue(context.Background(), EnqueueInput{
		RecipientEmail: "cadet@example.com",
		Subject:        "No tenant",
	})

	assert.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidInput))
}

func TestQueueUseCase_GetByID_NotFound(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	uc := newQueueUseCase(jobRepo, &MockHealthSnapshotRepository{}, &MockProcessingLogRepository{})

	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())
	jobRepo.On("GetByID", ctx, id).Return(nil, sql.ErrNoRows)

	job, err := uc.GetByID(ctx, id)

	assert.Nil(t, job)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestQueueUseCase_Cancel_Success(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	uc := newQueueUseCase(jobRepo, &MockHealthSnapshotRepository{}, &MockProcessingLogRepository{})

	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())
	cancelled := &domain.EmailJob{ID: id, Status: domain.JobStatusCancelled}

	jobRepo.On("Cancel", ctx, id).Return(true, nil)
	jobRepo.On("GetByID", ctx, id).Return(cancelled, nil)

	job, err := uc.Cancel(ctx, id)

	assert.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, job.Status)
	jobRepo.AssertExpectations(t)
}

func TestQueueUseCase_Cancel_NotPending(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	uc := newQueueUseCase(jobRepo, &MockHealthSnapshotRepository{}, &MockProcessingLogRepository{})

	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())
	claimed := &domain.EmailJob{ID: id, Status: domain.JobStatusProcessing}

	jobRepo.On("Cancel", ctx, id).Return(false, nil)
	jobRepo.On("GetByID", ctx, id).Return(claimed, nil)

	job, err := uc.Cancel(ctx, id)

	assert.Nil(t, job)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
}

func TestQueueUseCase_Cancel_NotFound(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	uc := newQueueUseCase(jobRepo, &MockHealthSnapshotRepository{}, &MockProcessingLogRepository{})

	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())

	jobRepo.On("Cancel", ctx, id).Return(false, nil)
	jobRepo.On("GetByID", ctx, id).Return(nil, sql.ErrNoRows)

	job, err := uc.Cancel(ctx, id)

	assert.Nil(t, job)
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))
}

func TestQueueUseCase_Retry_Success(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	uc := newQueueUseCase(jobRepo, &MockHealthSnapshotRepository{}, &MockProcessingLogRepository{})

	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())
	failed := &domain.EmailJob{ID: id, Status: domain.JobStatusFailed, RetryCount: 1, MaxRetries: 3}
	requeued := &domain.EmailJob{ID: id, Status: domain.JobStatusPending, RetryCount: 2, MaxRetries: 3}

	jobRepo.On("GetByID", ctx, id).Return(failed, nil).Once()
	jobRepo.On("RetryFailed", ctx, id).Return(true, nil)
	jobRepo.On("GetByID", ctx, id).Return(requeued, nil).Once()

	job, err := uc.Retry(ctx, id)

	assert.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, 2, job.RetryCount)
	jobRepo.AssertExpectations(t)
}

func TestQueueUseCase_Retry_WrongStatus(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	uc := newQueueUseCase(jobRepo, &MockHealthSnapshotRepository{}, &MockProcessingLogRepository{})

	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())
	sent := &domain.EmailJob{ID: id, Status: domain.JobStatusSent}

	jobRepo.On("GetByID", ctx, id).Return(sent, nil)

	job, err := uc.Retry(ctx, id)

	assert.Nil(t, job)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	jobRepo.AssertNotCalled(t, "RetryFailed", mock.Anything, mock.Anything)
}

func TestQueueUseCase_Retry_BudgetExhausted(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	uc := newQueueUseCase(jobRepo, &MockHealthSnapshotRepository{}, &MockProcessingLogRepository{})

	ctx := context.Background()
	id := uuid.Must(uuid.NewV7())
	exhausted := &domain.EmailJob{ID: id, Status: domain.JobStatusFailed, RetryCount: 3, MaxRetries: 3}

	jobRepo.On("GetByID", ctx, id).Return(exhausted, nil)

	job, err := uc.Retry(ctx, id)

	assert.Nil(t, job)
	assert.True(t, apperrors.Is(err, apperrors.ErrConflict))
	assert.Contains(t, err.Error(), "max retries exceeded")
	jobRepo.AssertNotCalled(t, "RetryFailed", mock.Anything, mock.Anything)
}

func TestQueueUseCase_ListBySchool(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	uc := newQueueUseCase(jobRepo, &MockHealthSnapshotRepository{}, &MockProcessingLogRepository{})

	ctx := context.Background()
	schoolID := uuid.Must(uuid.NewV7())
	jobs := []*domain.EmailJob{{ID: uuid.Must(uuid.NewV7()), SchoolID: schoolID}}

	jobRepo.On("ListBySchool", ctx, schoolID, 0, 50).Return(jobs, nil)

	got, err := uc.ListBySchool(ctx, schoolID, 0, 50)

	assert.NoError(t, err)
	assert.Len(t, got, 1)
	jobRepo.AssertExpectations(t)
}

func TestQueueUseCase_RecentHealth(t *testing.T) {
	healthRepo := &MockHealthSnapshotRepository{}
	uc := newQueueUseCase(&MockEmailJobRepository{}, healthRepo, &MockProcessingLogRepository{})

	ctx := context.Background()
	snapshots := []*domain.HealthSnapshot{{ID: uuid.Must(uuid.NewV7())}}
	healthRepo.On("ListRecent", ctx, 100).Return(snapshots, nil)

	got, err := uc.RecentHealth(ctx, 100)

	assert.NoError(t, err)
	assert.Len(t, got, 1)
	healthRepo.AssertExpectations(t)
}

func TestQueueUseCase_RecentLogs_Error(t *testing.T) {
	logRepo := &MockProcessingLogRepository{}
	uc := newQueueUseCase(&MockEmailJobRepository{}, &MockHealthSnapshotRepository{}, logRepo)

	ctx := context.Background()
	logRepo.On("ListRecent", ctx, 50).Return(nil, errors.New("database error"))

	got, err := uc.RecentLogs(ctx, 50)

	assert.Error(t, err)
	assert.Nil(t, got)
}
