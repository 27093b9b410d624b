package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cadetops/mailroom/internal/database"
	"github.com/cadetops/mailroom/internal/mailqueue/domain"
	"github.com/cadetops/mailroom/internal/metrics"
)

// HealthReport is what a health check returns to its caller: the persisted
// snapshots plus summary counts for alerting. Notification itself is an
// external collaborator's responsibility.
type HealthReport struct {
	Snapshots     []*domain.HealthSnapshot `json:"snapshots"`
	CriticalCount int                      `json:"critical_count"`
	WarningCount  int                      `json:"warning_count"`
}

// HealthUseCase computes per-tenant queue health and appends it to the
// health time series. The queue store stays authoritative; snapshots are
// for trends and alerting only.
type HealthUseCase struct {
	thresholds domain.HealthThresholds
	policy     domain.RetryPolicy
	txManager  database.TxManager
	jobRepo    EmailJobRepository
	healthRepo HealthSnapshotRepository
	metrics    metrics.BusinessMetrics
	logger     *slog.Logger
}

// NewHealthUseCase creates a new HealthUseCase.
func NewHealthUseCase(
	thresholds domain.HealthThresholds,
	policy domain.RetryPolicy,
	txManager database.TxManager,
	jobRepo EmailJobRepository,
	healthRepo HealthSnapshotRepository,
	businessMetrics metrics.BusinessMetrics,
	logger *slog.Logger,
) *HealthUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthUseCase{
		thresholds: thresholds,
		policy:     policy,
		txManager:  txManager,
		jobRepo:    jobRepo,
		healthRepo: healthRepo,
		metrics:    businessMetrics,
		logger:     logger,
	}
}

// CheckQueueHealth aggregates pending, stuck and failed counts per active
// tenant, derives a health status for each, and appends one snapshot row
// per tenant. The read and the inserts run in one transaction: a failure
// anywhere aborts the whole pass and persists nothing, so the time series
// never contains a partial check.
func (uc *HealthUseCase) CheckQueueHealth(ctx context.Context) (*HealthReport, error) {
	report := &HealthReport{Snapshots: []*domain.HealthSnapshot{}}
	checkedAt := time.Now().UTC()
	stuckCutoff := checkedAt.Add(-uc.policy.StuckThreshold)

	err := uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		counts, err := uc.jobRepo.CountsBySchool(ctx, stuckCutoff)
		if err != nil {
			return err
		}

		for _, c := range counts {
			snapshot := &domain.HealthSnapshot{
				ID:             uuid.Must(uuid.NewV7()),
				SchoolID:       c.SchoolID,
				CheckTimestamp: checkedAt,
				PendingCount:   c.PendingCount,
				StuckCount:     c.StuckCount,
				FailedCount:    c.FailedCount,
				HealthStatus:   uc.thresholds.Derive(c),
			}

			if err := uc.healthRepo.Create(ctx, snapshot); err != nil {
				return err
			}

			report.Snapshots = append(report.Snapshots, snapshot)

			switch snapshot.HealthStatus {
			case domain.HealthStatusCritical:
				report.CriticalCount++
			case domain.HealthStatusWarning:
				report.WarningCount++
			}
		}

		return nil
	})
	if err != nil {
		uc.metrics.RecordOperation(ctx, "mailqueue", "health_check", "error")
		return nil, err
	}

	if report.CriticalCount > 0 || report.WarningCount > 0 {
		uc.logger.Warn("queue health degraded",
			slog.Int("critical_tenants", report.CriticalCount),
			slog.Int("warning_tenants", report.WarningCount),
		)
	}

	uc.metrics.RecordOperation(ctx, "mailqueue", "health_check", "success")
	return report, nil
}

// Run performs health checks on a ticker until the context is cancelled.
func (uc *HealthUseCase) Run(ctx context.Context, interval time.Duration) error {
	uc.logger.Info("starting queue health monitor", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uc.logger.Info("stopping queue health monitor")
			return ctx.Err()
		case <-ticker.C:
			if _, err := uc.CheckQueueHealth(ctx); err != nil {
				uc.logger.Error("queue health check failed", slog.Any("error", err))
			}
		}
	}
}
