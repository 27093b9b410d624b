package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cadetops/mailroom/internal/mailqueue/domain"
	mailqueueUsecase "github.com/cadetops/mailroom/internal/mailqueue/usecase"
)

// RunRetryStuck reclaims jobs stranded in processing for longer than the
// given age. A zero age uses the configured stuck threshold.
//
// Requirements: Database must be migrated and accessible.
func RunRetryStuck(
	ctx context.Context,
	reclaimer mailqueueUsecase.StuckReclaimer,
	logger *slog.Logger,
	w io.Writer,
	maxAgeMinutes int,
	format string,
) error {
	// Validate max age parameter
	if maxAgeMinutes < 0 {
		return fmt.Errorf("max age must be a positive number, got: %d", maxAgeMinutes)
	}

	maxAge := time.Duration(maxAgeMinutes) * time.Minute

	logger.Info("reclaiming stuck email jobs", slog.Int("max_age_minutes", maxAgeMinutes))

	results, err := reclaimer.RetryStuck(ctx, maxAge)
	if err != nil {
		return fmt.Errorf("failed to retry stuck jobs: %w", err)
	}

	// Output result based on format
	if format == "json" {
		outputRetryStuckJSON(w, results)
	} else {
		outputRetryStuckText(w, results)
	}

	logger.Info("stuck-job reclaim completed", slog.Int("count", len(results)))

	return nil
}

// outputRetryStuckText outputs the result in human-readable text format.
func outputRetryStuckText(w io.Writer, results []domain.RetryResult) {
	fmt.Fprintf(w, "Reclaimed %d stuck job(s)\n", len(results))
	for _, result := range results {
		fmt.Fprintf(w, "  %s (school %s): %s, retry %d\n",
			result.JobID, result.SchoolID, result.Status, result.RetryCount)
	}
}

// outputRetryStuckJSON outputs the result in JSON format for machine consumption.
func outputRetryStuckJSON(w io.Writer, results []domain.RetryResult) {
	jsonBytes, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Fprintln(w, string(jsonBytes))
}
