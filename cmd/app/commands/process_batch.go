package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	mailqueueUsecase "github.com/cadetops/mailroom/internal/mailqueue/usecase"
)

// RunProcessBatch triggers one dispatch pass on demand. With a positive batch
// size it processes up to that many jobs without writing a processing log
// entry; with zero it runs a full logged pass, identical to one worker tick.
//
// Requirements: Database must be migrated and accessible.
func RunProcessBatch(
	ctx context.Context,
	dispatcher mailqueueUsecase.BatchDispatcher,
	logger *slog.Logger,
	w io.Writer,
	batchSize int,
	format string,
) error {
	// Validate batch size parameter
	if batchSize < 0 {
		return fmt.Errorf("batch size must be a positive number, got: %d", batchSize)
	}

	logger.Info("processing email queue batch", slog.Int("batch_size", batchSize))

	var result *mailqueueUsecase.BatchResult
	var err error
	if batchSize > 0 {
		result, err = dispatcher.ProcessBatch(ctx, batchSize)
	} else {
		result, err = dispatcher.RunOnce(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to process batch: %w", err)
	}

	// Output result based on format
	if format == "json" {
		outputProcessBatchJSON(w, result)
	} else {
		outputProcessBatchText(w, result)
	}

	logger.Info("batch processing completed",
		slog.Int("processed", result.ProcessedCount),
		slog.Int("failed", result.FailedCount),
	)

	return nil
}

// outputProcessBatchText outputs the result in human-readable text format.
func outputProcessBatchText(w io.Writer, result *mailqueueUsecase.BatchResult) {
	fmt.Fprintf(w, "Processed %d job(s), %d failed\n", result.ProcessedCount, result.FailedCount)
	for _, outcome := range result.Details {
		if outcome.Error != "" {
			fmt.Fprintf(w, "  %s -> %s (%s): %s\n", outcome.JobID, outcome.Recipient, outcome.Status, outcome.Error)
		} else {
			fmt.Fprintf(w, "  %s -> %s (%s)\n", outcome.JobID, outcome.Recipient, outcome.Status)
		}
	}
}

// outputProcessBatchJSON outputs the result in JSON format for machine consumption.
func outputProcessBatchJSON(w io.Writer, result *mailqueueUsecase.BatchResult) {
	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Fprintln(w, string(jsonBytes))
}
