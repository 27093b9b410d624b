package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/cadetops/mailroom/internal/mailqueue/domain"
	"github.com/cadetops/mailroom/internal/metrics"
)

// maxRetriesExceededMessage is the terminal error recorded when a reclaim
// would push a job past its retry budget.
const maxRetriesExceededMessage = "max retries exceeded"

// ReclaimUseCase recovers jobs stranded in processing by a crashed or
// timed-out dispatch pass. Stuck jobs are detected by age, not by an
// explicit error signal.
type ReclaimUseCase struct {
	policy  domain.RetryPolicy
	jobRepo EmailJobRepository
	metrics metrics.BusinessMetrics
	logger  *slog.Logger
}

// NewReclaimUseCase creates a new ReclaimUseCase.
func NewReclaimUseCase(
	policy domain.RetryPolicy,
	jobRepo EmailJobRepository,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *ReclaimUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReclaimUseCase{
		policy:  policy,
		jobRepo: jobRepo,
		metrics: businessMetrics,
		logger:  logger,
	}
}

// RetryStuck returns stuck jobs to pending, incrementing their retry count
// and clearing the previous error. Jobs whose retry budget is already spent
// transition to terminal failed instead. An empty result is a valid,
// non-error outcome.
func (uc *ReclaimUseCase) RetryStuck(ctx context.Context, maxAge time.Duration) ([]domain.RetryResult, error) {
	if maxAge <= 0 {
		maxAge = uc.policy.StuckThreshold
	}

	cutoff := time.Now().UTC().Add(-maxAge)

	jobs, err := uc.jobRepo.GetStuck(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	results := []domain.RetryResult{}

	for _, job := range jobs {
		if job.RetriesExhausted() {
			updated, err := uc.jobRepo.MarkFailed(ctx, job.ID, maxRetriesExceededMessage)
			if err != nil {
				return results, err
			}
			if !updated {
				continue
			}

			uc.logger.Warn("stuck job exhausted its retry budget",
				slog.String("job_id", job.ID.String()),
				slog.String("school_id", job.SchoolID.String()),
				slog.Int("retry_count", job.RetryCount),
			)

			results = append(results, domain.RetryResult{
				JobID:      job.ID,
				SchoolID:   job.SchoolID,
				RetryCount: job.RetryCount,
				Status:     domain.JobStatusFailed,
			})

			uc.metrics.RecordOperation(ctx, "mailqueue", "reclaim", "exhausted")
			continue
		}

		updated, err := uc.jobRepo.ResetForRetry(ctx, job.ID)
		if err != nil {
			return results, err
		}
		if !updated {
			// The job resolved between the scan and the reset.
			continue
		}

		uc.logger.Info("stuck job reclaimed",
			slog.String("job_id", job.ID.String()),
			slog.String("school_id", job.SchoolID.String()),
			slog.Int("retry_count", job.RetryCount+1),
		)

		results = append(results, domain.RetryResult{
			JobID:      job.ID,
			SchoolID:   job.SchoolID,
			RetryCount: job.RetryCount + 1,
			Status:     domain.JobStatusPending,
		})

		uc.metrics.RecordOperation(ctx, "mailqueue", "reclaim", "success")
	}

	return results, nil
}

// Run reclaims stuck jobs on a ticker until the context is cancelled.
func (uc *ReclaimUseCase) Run(ctx context.Context, interval time.Duration) error {
	uc.logger.Info("starting stuck-job reclaimer",
		slog.Duration("interval", interval),
		slog.Duration("stuck_threshold", uc.policy.StuckThreshold),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("stopping stuck-job reclaimer")
			return ctx.Err()
		case <-ticker.C:
			if _, err := uc.RetryStuck(ctx, uc.policy.StuckThreshold); err != nil {
				uc.logger.Error("stuck-job reclaim failed", slog.Any("error", err))
			}
		}
	}
}
