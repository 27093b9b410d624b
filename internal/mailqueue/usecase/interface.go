package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cadetops/mailroom/internal/mailqueue/domain"
)

// QueueService defines the producer and operator queue operations consumed
// by handlers and CLI commands.
type QueueService interface {
	Enqueue(ctx context.Context, input EnqueueInput) (*domain.EmailJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error)
	ListBySchool(ctx context.Context, schoolID uuid.UUID, offset, limit int) ([]*domain.EmailJob, error)
	Cancel(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error)
	Retry(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error)
	RecentHealth(ctx context.Context, limit int) ([]*domain.HealthSnapshot, error)
	RecentLogs(ctx context.Context, limit int) ([]*domain.ProcessingLog, error)
}

// BatchDispatcher defines the dispatch operations shared by the worker loop
// and the manual flush endpoint.
type BatchDispatcher interface {
	ProcessBatch(ctx context.Context, batchSize int) (*BatchResult, error)
	RunOnce(ctx context.Context) (*BatchResult, error)
	Run(ctx context.Context) error
}

// StuckReclaimer defines the stuck-job recovery operations.
type StuckReclaimer interface {
	RetryStuck(ctx context.Context, maxAge time.Duration) ([]domain.RetryResult, error)
	Run(ctx context.Context, interval time.Duration) error
}

// HealthChecker defines the queue health monitoring operations.
type HealthChecker interface {
	CheckQueueHealth(ctx context.Context) (*HealthReport, error)
	Run(ctx context.Context, interval time.Duration) error
}
