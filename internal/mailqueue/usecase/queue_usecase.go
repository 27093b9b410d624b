package usecase

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/cadetops/mailroom/internal/errors"
	"github.com/cadetops/mailroom/internal/mailqueue/domain"
)

// EnqueueInput contains the parameters for queuing one message. Producers
// are the comment notifier, the welcome-email issuer and the business-rule
// engine; provenance fields record which one created the job.
type EnqueueInput struct {
	RecipientEmail string
	Subject        string
	Body           string
	SchoolID       uuid.UUID
	TemplateID     *uuid.UUID
	RuleID         *uuid.UUID
	SourceTable    *string
	RecordID       *uuid.UUID
	ScheduledAt    *time.Time
	MaxRetries     *int
}

// QueueUseCase implements the producer and operator queue surface: enqueue,
// cancel, manual retry, and the dashboard read paths.
type QueueUseCase struct {
	policy     domain.RetryPolicy
	jobRepo    EmailJobRepository
	healthRepo HealthSnapshotRepository
	logRepo    ProcessingLogRepository
	logger     *slog.Logger
}

// NewQueueUseCase creates a new QueueUseCase.
func NewQueueUseCase(
	policy domain.RetryPolicy,
	jobRepo EmailJobRepository,
	healthRepo HealthSnapshotRepository,
	logRepo ProcessingLogRepository,
	logger *slog.Logger,
) *QueueUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueUseCase{
		policy:     policy,
		jobRepo:    jobRepo,
		healthRepo: healthRepo,
		logRepo:    logRepo,
		logger:     logger,
	}
}

// Enqueue creates a new pending job. Scheduling defaults to immediate and
// the retry budget defaults to the configured policy.
func (uc *QueueUseCase) Enqueue(ctx context.Context, input EnqueueInput) (*domain.EmailJob, error) {
	if strings.TrimSpace(input.RecipientEmail) == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "recipient email is required")
	}
	if input.SchoolID == uuid.Nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "school id is required")
	}

	now := time.Now().UTC()

	scheduledAt := now
	if input.ScheduledAt != nil {
		scheduledAt = input.ScheduledAt.UTC()
	}

	maxRetries := uc.policy.MaxRetries
	if input.MaxRetries != nil {
		maxRetries = *input.MaxRetries
	}

	job := &domain.EmailJob{
		ID:             uuid.Must(uuid.NewV7()),
		RecipientEmail: input.RecipientEmail,
		Subject:        input.Subject,
		Body:           input.Body,
		TemplateID:     input.TemplateID,
		RuleID:         input.RuleID,
		SourceTable:    input.SourceTable,
		RecordID:       input.RecordID,
		SchoolID:       input.SchoolID,
		Status:         domain.JobStatusPending,
		ScheduledAt:    scheduledAt,
		MaxRetries:     maxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := uc.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	uc.logger.Info("email job queued",
		slog.String("job_id", job.ID.String()),
		slog.String("school_id", job.SchoolID.String()),
	)

	return job, nil
}

// GetByID retrieves one job.
func (uc *QueueUseCase) GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error) {
	job, err := uc.jobRepo.GetByID(ctx, id)
	if err != nil {
		if apperrors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListBySchool retrieves a tenant's jobs with pagination.
func (uc *QueueUseCase) ListBySchool(
	ctx context.Context,
	schoolID uuid.UUID,
	offset, limit int,
) ([]*domain.EmailJob, error) {
	return uc.jobRepo.ListBySchool(ctx, schoolID, offset, limit)
}

// Cancel moves a pending job to terminal cancelled. Jobs already claimed by
// a dispatcher are not cancellable until they resolve.
func (uc *QueueUseCase) Cancel(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error) {
	cancelled, err := uc.jobRepo.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}
	if !cancelled {
		job, err := uc.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, apperrors.Wrap(apperrors.ErrConflict, "job is "+string(job.Status)+", only pending jobs can be cancelled")
	}

	uc.logger.Info("email job cancelled", slog.String("job_id", id.String()))

	return uc.GetByID(ctx, id)
}

// Retry re-queues a failed job on operator request, consuming one unit of
// its retry budget. Jobs whose budget is spent stay failed.
func (uc *QueueUseCase) Retry(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error) {
	job, err := uc.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if job.Status != domain.JobStatusFailed {
		return nil, apperrors.Wrap(apperrors.ErrConflict, "only failed jobs can be retried")
	}
	if job.RetriesExhausted() {
		return nil, apperrors.Wrap(apperrors.ErrConflict, maxRetriesExceededMessage)
	}

	updated, err := uc.jobRepo.RetryFailed(ctx, id)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, apperrors.Wrap(apperrors.ErrConflict, "job is no longer failed")
	}

	uc.logger.Info("email job re-queued", slog.String("job_id", id.String()))

	return uc.GetByID(ctx, id)
}

// RecentHealth retrieves the newest health snapshots.
func (uc *QueueUseCase) RecentHealth(ctx context.Context, limit int) ([]*domain.HealthSnapshot, error) {
	return uc.healthRepo.ListRecent(ctx, limit)
}

// RecentLogs retrieves the newest dispatch summaries.
func (uc *QueueUseCase) RecentLogs(ctx context.Context, limit int) ([]*domain.ProcessingLog, error) {
	return uc.logRepo.ListRecent(ctx, limit)
}
