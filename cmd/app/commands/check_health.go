package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	mailqueueUsecase "github.com/cadetops/mailroom/internal/mailqueue/usecase"
)

// RunCheckHealth performs one queue health check across all tenants and
// appends the snapshots to the health time series.
//
// Requirements: Database must be migrated and accessible.
func RunCheckHealth(
	ctx context.Context,
	checker mailqueueUsecase.HealthChecker,
	logger *slog.Logger,
	w io.Writer,
	format string,
) error {
	logger.Info("checking email queue health")

	report, err := checker.CheckQueueHealth(ctx)
	if err != nil {
		return fmt.Errorf("failed to check queue health: %w", err)
	}

	// Output result based on format
	if format == "json" {
		outputCheckHealthJSON(w, report)
	} else {
		outputCheckHealthText(w, report)
	}

	logger.Info("queue health check completed",
		slog.Int("tenants", len(report.Snapshots)),
		slog.Int("critical", report.CriticalCount),
		slog.Int("warning", report.WarningCount),
	)

	return nil
}

// outputCheckHealthText outputs the report in human-readable text format.
func outputCheckHealthText(w io.Writer, report *mailqueueUsecase.HealthReport) {
	fmt.Fprintf(w, "Checked %d tenant(s): %d critical, %d warning\n",
		len(report.Snapshots), report.CriticalCount, report.WarningCount)
	for _, snapshot := range report.Snapshots {
		fmt.Fprintf(w, "  %s: %s (pending=%d stuck=%d failed=%d)\n",
			snapshot.SchoolID, snapshot.HealthStatus,
			snapshot.PendingCount, snapshot.StuckCount, snapshot.FailedCount)
	}
}

// outputCheckHealthJSON outputs the report in JSON format for machine consumption.
func outputCheckHealthJSON(w io.Writer, report *mailqueueUsecase.HealthReport) {
	jsonBytes, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Fprintln(w, string(jsonBytes))
}
