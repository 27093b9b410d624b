// Package usecase implements the email queue business logic: batch dispatch,
// stuck-job reclaim, health monitoring and the operator queue surface.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cadetops/mailroom/internal/mailqueue/domain"
)

// EmailJobRepository defines email job persistence operations. All state
// transitions are single-row conditional writes; the boolean result reports
// whether the condition matched.
type EmailJobRepository interface {
	Create(ctx context.Context, job *domain.EmailJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error)
	ListBySchool(ctx context.Context, schoolID uuid.UUID, offset, limit int) ([]*domain.EmailJob, error)
	GetEligible(ctx context.Context, limit int) ([]*domain.EmailJob, error)
	Claim(ctx context.Context, id uuid.UUID) (bool, error)
	MarkSent(ctx context.Context, id uuid.UUID) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) (bool, error)
	GetStuck(ctx context.Context, cutoff time.Time) ([]*domain.EmailJob, error)
	ResetForRetry(ctx context.Context, id uuid.UUID) (bool, error)
	RetryFailed(ctx context.Context, id uuid.UUID) (bool, error)
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
	CountsBySchool(ctx context.Context, stuckCutoff time.Time) ([]domain.QueueCounts, error)
}

// HealthSnapshotRepository defines queue health time series operations.
type HealthSnapshotRepository interface {
	Create(ctx context.Context, snapshot *domain.HealthSnapshot) error
	ListRecent(ctx context.Context, limit int) ([]*domain.HealthSnapshot, error)
}

// ProcessingLogRepository defines dispatch summary log operations.
type ProcessingLogRepository interface {
	Create(ctx context.Context, log *domain.ProcessingLog) error
	ListRecent(ctx context.Context, limit int) ([]*domain.ProcessingLog, error)
}

// Transport defines the outbound email collaborator. It is treated as
// unreliable and rate limited; error messages are surfaced verbatim into
// the job's error_message.
type Transport interface {
	Send(ctx context.Context, to []string, subject, htmlBody string) (string, error)
}
