package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/cadetops/mailroom/internal/mailqueue/domain"
	"github.com/cadetops/mailroom/internal/metrics"
)

// DispatchConfig holds dispatch use case configuration.
type DispatchConfig struct {
	// BatchSize is the maximum number of jobs pulled per pass.
	BatchSize int
	// Interval is the delay between scheduled passes in Run.
	Interval time.Duration
}

// BatchResult summarizes one dispatch pass.
type BatchResult struct {
	ProcessedCount int                 `json:"processed_count"`
	FailedCount    int                 `json:"failed_count"`
	Details        []domain.JobOutcome `json:"details"`
}

// DispatchUseCase implements the batch dispatcher. It is the only component
// with external side effects: it sends email and transitions jobs out of
// pending.
//
// Sends are strictly sequential. The transport provider enforces one shared
// rate limit across every tenant, so the pacing budget is a single shared
// rate.Limiter rather than a per-worker or per-tenant one. Overlapping
// passes (a slow scheduled pass plus a manual flush) coordinate only
// through the repository's conditional claim: the losing pass matches zero
// rows and skips the job.
type DispatchUseCase struct {
	config    DispatchConfig
	jobRepo   EmailJobRepository
	logRepo   ProcessingLogRepository
	transport Transport
	limiter   *rate.Limiter
	metrics   metrics.BusinessMetrics
	logger    *slog.Logger
}

// NewDispatchUseCase creates a new DispatchUseCase. The limiter must be the
// process-wide send limiter shared by every dispatch path.
func NewDispatchUseCase(
	config DispatchConfig,
	jobRepo EmailJobRepository,
	logRepo ProcessingLogRepository,
	transport Transport,
	limiter *rate.Limiter,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *DispatchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &DispatchUseCase{
		config:    config,
		jobRepo:   jobRepo,
		logRepo:   logRepo,
		transport: transport,
		limiter:   limiter,
		metrics:   businessMetrics,
		logger:    logger,
	}
}

// ProcessBatch runs one dispatch pass: pull up to batchSize eligible jobs
// oldest first, claim each, pace the send against the shared limiter, and
// record the outcome. A transport failure for one job never aborts the rest
// of the batch; repository errors do, since they indicate the store itself
// is unhealthy.
func (uc *DispatchUseCase) ProcessBatch(ctx context.Context, batchSize int) (*BatchResult, error) {
	if batchSize <= 0 {
		batchSize = uc.config.BatchSize
	}

	result := &BatchResult{Details: []domain.JobOutcome{}}

	jobs, err := uc.jobRepo.GetEligible(ctx, batchSize)
	if err != nil {
		return nil, err
	}

	if len(jobs) == 0 {
		return result, nil
	}

	uc.logger.Info("dispatching email batch", slog.Int("count", len(jobs)))

	for _, job := range jobs {
		claimed, err := uc.jobRepo.Claim(ctx, job.ID)
		if err != nil {
			return result, err
		}
		if !claimed {
			// Another dispatch pass won the claim.
			uc.logger.Debug("claim lost, skipping job", slog.String("job_id", job.ID.String()))
			continue
		}

		if err := uc.limiter.Wait(ctx); err != nil {
			return result, err
		}

		if err := uc.sendJob(ctx, job, result); err != nil {
			return result, err
		}
	}

	return result, nil
}

// sendJob sends one claimed job and records its terminal status. Only
// repository failures are returned; transport failures become a failed job.
func (uc *DispatchUseCase) sendJob(ctx context.Context, job *domain.EmailJob, result *BatchResult) error {
	start := time.Now()

	messageID, sendErr := uc.transport.Send(ctx, job.Recipients(), job.Subject, job.Body)
	if sendErr != nil {
		uc.logger.Error("email send failed",
			slog.String("job_id", job.ID.String()),
			slog.String("school_id", job.SchoolID.String()),
			slog.Any("error", sendErr),
		)

		if _, err := uc.jobRepo.MarkFailed(ctx, job.ID, sendErr.Error()); err != nil {
			return err
		}

		result.FailedCount++
		result.Details = append(result.Details, domain.JobOutcome{
			JobID:     job.ID,
			Recipient: job.RecipientEmail,
			Subject:   job.Subject,
			Status:    domain.JobStatusFailed,
			Error:     sendErr.Error(),
		})

		uc.metrics.RecordOperation(ctx, "mailqueue", "dispatch", "error")
		uc.metrics.RecordDuration(ctx, "mailqueue", "dispatch", time.Since(start), "error")
		return nil
	}

	if _, err := uc.jobRepo.MarkSent(ctx, job.ID); err != nil {
		return err
	}

	uc.logger.Info("email sent",
		slog.String("job_id", job.ID.String()),
		slog.String("school_id", job.SchoolID.String()),
		slog.String("message_id", messageID),
	)

	result.ProcessedCount++
	result.Details = append(result.Details, domain.JobOutcome{
		JobID:     job.ID,
		Recipient: job.RecipientEmail,
		Subject:   job.Subject,
		Status:    domain.JobStatusSent,
	})

	uc.metrics.RecordOperation(ctx, "mailqueue", "dispatch", "success")
	uc.metrics.RecordDuration(ctx, "mailqueue", "dispatch", time.Since(start), "success")
	return nil
}

// RunOnce executes one dispatch pass and persists the summary log row. This
// single body backs both the scheduled worker tick and the manual flush
// endpoint, so the two paths cannot drift apart.
func (uc *DispatchUseCase) RunOnce(ctx context.Context) (*BatchResult, error) {
	result, err := uc.ProcessBatch(ctx, uc.config.BatchSize)
	if err != nil {
		return nil, err
	}

	log := &domain.ProcessingLog{
		ID:             uuid.Must(uuid.NewV7()),
		ProcessedCount: result.ProcessedCount,
		FailedCount:    result.FailedCount,
		Status:         "completed",
		ProcessedAt:    time.Now().UTC(),
	}

	if err := uc.logRepo.Create(ctx, log); err != nil {
		return nil, err
	}

	return result, nil
}

// Run executes dispatch passes on a ticker until the context is cancelled.
func (uc *DispatchUseCase) Run(ctx context.Context) error {
	uc.logger.Info("starting email dispatcher",
		slog.Duration("interval", uc.config.Interval),
		slog.Int("batch_size", uc.config.BatchSize),
	)

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("stopping email dispatcher")
			return ctx.Err()
		case <-ticker.C:
			if _, err := uc.RunOnce(ctx); err != nil {
				uc.logger.Error("dispatch pass failed", slog.Any("error", err))
			}
		}
	}
}
