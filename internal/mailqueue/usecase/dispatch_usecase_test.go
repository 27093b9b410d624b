package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"github.com/cadetops/mailroom/internal/mailqueue/domain"
	"github.com/cadetops/mailroom/internal/metrics"
)

func newDispatchConfig() DispatchConfig {
	return DispatchConfig{
		BatchSize: 10,
		Interval:  30 * time.Second,
	}
}

func pendingJob(recipient string) *domain.EmailJob {
	now := time.Now().UTC()
	return &domain.EmailJob{
		ID:             uuid.Must(uuid.NewV7()),
		RecipientEmail: recipient,
		Subject:        "Welcome to the program",
		Body:           "<p>Hello</p>",
		SchoolID:       uuid.Must(uuid.NewV7()),
		Status:         domain.JobStatusPending,
		ScheduledAt:    now,
		MaxRetries:     3,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func unlimitedLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Inf, 1)
}

func TestNewDispatchUseCase(t *testing.T) {
	config := newDispatchConfig()
	jobRepo := &MockEmailJobRepository{}
	logRepo := &MockProcessingLogRepository{}
	transport := &MockTransport{}

	uc := NewDispatchUseCase(
		config, jobRepo, logRepo, transport,
		unlimitedLimiter(), metrics.NewNoOpBusinessMetrics(), nil,
	)

	assert.NotNil(t, uc)
	assert.Equal(t, config.BatchSize, uc.config.BatchSize)
	assert.Equal(t, config.Interval, uc.config.Interval)
}

func TestDispatchUseCase_ProcessBatch_Success(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	logRepo := &MockProcessingLogRepository{}
	transport := &MockTransport{}

	uc := NewDispatchUseCase(
		newDispatchConfig(), jobRepo, logRepo, transport,
		unlimitedLimiter(), metrics.NewNoOpBusinessMetrics(), nil,
	)

	ctx := context.Background()
	jobs := []*domain.EmailJob{
		pendingJob("cadet1@example.com"),
		pendingJob("cadet2@example.com"),
		pendingJob("cadet3@example.com"),
	}

	jobRepo.On("GetEligible", ctx, 10).Return(jobs, nil)
	for _, job := range jobs {
		jobRepo.On("Claim", ctx, job.ID).Return(true, nil)
		transport.On("Send", ctx, []string{job.RecipientEmail}, job.Subject, job.Body).Return("msg-id", nil)
		jobRepo.On("MarkSent", ctx, job.ID).Return(true, nil)
	}

	result, err := uc.ProcessBatch(ctx, 0)

	assert.NoError(t, err)
	assert.Equal(t, 3, result.ProcessedCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Len(t, result.Details, 3)
	assert.Equal(t, domain.JobStatusSent, result.Details[0].Status)
	jobRepo.AssertExpectations(t)
	transport.AssertExpectations(t)
}

func TestDispatchUseCase_ProcessBatch_TransportFailure(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	logRepo := &MockProcessingLogRepository{}
	transport := &MockTransport{}

	uc := NewDispatchUseCase(
		newDispatchConfig(), jobRepo, logRepo, transport,
		unlimitedLimiter(), metrics.NewNoOpBusinessMetrics(), nil,
	)

	ctx := context.Background()
	good := pendingJob("cadet1@example.com")
	bad := pendingJob("bounce@example.com")
	last := pendingJob("cadet3@example.com")
	sendErr := errors.New("smtp: 550 mailbox unavailable")

	jobRepo.On("GetEligible", ctx, 10).Return([]*domain.EmailJob{good, bad, last}, nil)

	jobRepo.On("Claim", ctx, good.ID).Return(true, nil)
	transport.On("Send", ctx, []string{good.RecipientEmail}, good.Subject, good.Body).Return("msg-1", nil)
	jobRepo.On("MarkSent", ctx, good.ID).Return(true, nil)

	jobRepo.On("Claim", ctx, bad.ID).Return(true, nil)
	transport.On("Send", ctx, []string{bad.RecipientEmail}, bad.Subject, bad.Body).Return("", sendErr)
	jobRepo.On("MarkFailed", ctx, bad.ID, sendErr.Error()).Return(true, nil)

	jobRepo.On("Claim", ctx, last.ID).Return(true, nil)
	transport.On("Send", ctx, []string{last.RecipientEmail}, last.Subject, last.Body).Return("msg-3", nil)
	jobRepo.On("MarkSent", ctx, last.ID).Return(true, nil)

	result, err := uc.ProcessBatch(ctx, 0)

	assert.NoError(t, err)
	assert.Equal(t, 2, result.ProcessedCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Len(t, result.Details, 3)
	assert.Equal(t, domain.JobStatusFailed, result.Details[1].Status)
	assert.Equal(t, sendErr.Error(), result.Details[1].Error)
	jobRepo.AssertExpectations(t)
	transport.AssertExpectations(t)
}

func TestDispatchUseCase_ProcessBatch_ClaimLost(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	logRepo := &MockProcessingLogRepository{}
	transport := &MockTransport{}

	uc := NewDispatchUseCase(
		newDispatchConfig(), jobRepo, logRepo, transport,
		unlimitedLimiter(), metrics.NewNoOpBusinessMetrics(), nil,
	)

	ctx := context.Background()
	won := pendingJob("cadet1@example.com")
	lost := pendingJob("cadet2@example.com")

	jobRepo.On("GetEligible", ctx, 10).Return([]*domain.EmailJob{won, lost}, nil)
	jobRepo.On("Claim", ctx, won.ID).Return(true, nil)
	transport.On("Send", ctx, []string{won.RecipientEmail}, won.Subject, won.Body).Return("msg-1", nil)
	jobRepo.On("MarkSent", ctx, won.ID).Return(true, nil)
	jobRepo.On("Claim", ctx, lost.ID).Return(false, nil)

	result, err := uc.ProcessBatch(ctx, 0)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Len(t, result.Details, 1)
	transport.AssertNumberOfCalls(t, "Send", 1)
	jobRepo.AssertExpectations(t)
}

func TestDispatchUseCase_ProcessBatch_Empty(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	logRepo := &MockProcessingLogRepository{}
	transport := &MockTransport{}

	uc := NewDispatchUseCase(
		newDispatchConfig(), jobRepo, logRepo, transport,
		unlimitedLimiter(), metrics.NewNoOpBusinessMetrics(), nil,
	)

	ctx := context.Background()
	jobRepo.On("GetEligible", ctx, 10).Return([]*domain.EmailJob{}, nil)

	result, err := uc.ProcessBatch(ctx, 0)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.ProcessedCount)
	assert.Equal(t, 0, result.FailedCount)
	assert.Empty(t, result.Details)
	transport.AssertNotCalled(t, "Send")
	jobRepo.AssertExpectations(t)
}

func TestDispatchUseCase_ProcessBatch_GetEligibleError(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	logRepo := &MockProcessingLogRepository{}
	transport := &MockTransport{}

	uc := NewDispatchUseCase(
		newDispatchConfig(), jobRepo, logRepo, transport,
		unlimitedLimiter(), metrics.NewNoOpBusinessMetrics(), nil,
	)

	ctx := context.Background()
	jobRepo.On("GetEligible", ctx, 10).Return(nil, errors.New("database error"))

	result, err := uc.ProcessBatch(ctx, 0)

	assert.Error(t, err)
	assert.Nil(t, result)
	transport.AssertNotCalled(t, "Send")
	jobRepo.AssertExpectations(t)
}

func TestDispatchUseCase_ProcessBatch_SendSpacing(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	logRepo := &MockProcessingLogRepository{}
	transport := &MockTransport{}

	// One permit every 50ms, so three sends need at least 100ms.
	limiter := rate.NewLimiter(rate.Every(50*time.Millisecond), 1)

	uc := NewDispatchUseCase(
		newDispatchConfig(), jobRepo, logRepo, transport,
		limiter, metrics.NewNoOpBusinessMetrics(), nil,
	)

	ctx := context.Background()
	jobs := []*domain.EmailJob{
		pendingJob("cadet1@example.com"),
		pendingJob("cadet2@example.com"),
		pendingJob("cadet3@example.com"),
	}

	jobRepo.On("GetEligible", ctx, 10).Return(jobs, nil)
	for _, job := range jobs {
		jobRepo.On("Claim", ctx, job.ID).Return(true, nil)
		transport.On("Send", ctx, []string{job.RecipientEmail}, job.Subject, job.Body).Return("msg-id", nil)
		jobRepo.On("MarkSent", ctx, job.ID).Return(true, nil)
	}

	start := time.Now()
	result, err := uc.ProcessBatch(ctx, 0)
	elapsed := time.Since(start)

	assert.NoError(t, err)
	assert.Equal(t, 3, result.ProcessedCount)
	assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
}

func TestDispatchUseCase_RunOnce_WritesProcessingLog(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	logRepo := &MockProcessingLogRepository{}
	transport := &MockTransport{}

	uc := NewDispatchUseCase(
		newDispatchConfig(), jobRepo, logRepo, transport,
		unlimitedLimiter(), metrics.NewNoOpBusinessMetrics(), nil,
	)

	ctx := context.Background()
	job := pendingJob("cadet1@example.com")

	jobRepo.On("GetEligible", ctx, 10).Return([]*domain.EmailJob{job}, nil)
	jobRepo.On("Claim", ctx, job.ID).Return(true, nil)
	transport.On("Send", ctx, []string{job.RecipientEmail}, job.Subject, job.Body).Return("msg-1", nil)
	jobRepo.On("MarkSent", ctx, job.ID).Return(true, nil)
	logRepo.On("Create", ctx, mock.MatchedBy(func(l *domain.ProcessingLog) bool {
		return l.ProcessedCount == 1 && l.FailedCount == 0 && l.Status == "completed"
	})).Return(nil)

	result, err := uc.RunOnce(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 1, result.ProcessedCount)
	logRepo.AssertExpectations(t)
}

func TestDispatchUseCase_RunOnce_EmptyPassStillLogged(t *testing.T) {
	jobRepo := &MockEmailJobRepository{}
	logRepo := &MockProcessingLogRepository{}
	transport := &MockTransport{}

	uc := NewDispatchUseCase(
		newDispatchConfig(), jobRepo, logRepo, transport,
		unlimitedLimiter(), metrics.NewNoOpBusinessMetrics(), nil,
	)

	ctx := context.Background()
	jobRepo.On("GetEligible", ctx, 10).Return([]*domain.EmailJob{}, nil)
	logRepo.On("Create", ctx, mock.MatchedBy(func(l *domain.ProcessingLog) bool {
		return l.ProcessedCount == 0 && l.FailedCount == 0 && l.Status == "completed"
	})).Return(nil)

	result, err := uc.RunOnce(ctx)

	assert.NoError(t, err)
	assert.Equal(t, 0, result.ProcessedCount)
	logRepo.AssertExpectations(t)
}

func TestDispatchUseCase_Run_ContextCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	jobRepo := &MockEmailJobRepository{}
	logRepo := &MockProcessingLogRepository{}
	transport := &MockTransport{}

	uc := NewDispatchUseCase(
		newDispatchConfig(), jobRepo, logRepo, transport,
		unlimitedLimiter(), metrics.NewNoOpBusinessMetrics(), nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := uc.Run(ctx)
	assert.Equal(t, context.Canceled, err)
}
