package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	mailqueueUsecase "github.com/cadetops/mailroom/internal/mailqueue/usecase"
)

// RunEnqueue queues a single email job from the command line. Useful for
// smoke testing a deployment's SMTP configuration.
//
// Requirements: Database must be migrated and accessible.
func RunEnqueue(
	ctx context.Context,
	queue mailqueueUsecase.QueueService,
	logger *slog.Logger,
	w io.Writer,
	recipient, subject, body, schoolID string,
	format string,
) error {
	parsedSchoolID, err := uuid.Parse(schoolID)
	if err != nil {
		return fmt.Errorf("invalid school id: %w", err)
	}

	logger.Info("enqueueing email job",
		slog.String("recipient", recipient),
		slog.String("school_id", schoolID),
	)

	job, err := queue.Enqueue(ctx, mailqueueUsecase.EnqueueInput{
		RecipientEmail: recipient,
		Subject:        subject,
		Body:           body,
		SchoolID:       parsedSchoolID,
	})
	if err != nil {
		return fmt.Errorf("failed to enqueue email job: %w", err)
	}

	// Output result based on format
	if format == "json" {
		outputEnqueueJSON(w, job.ID.String(), string(job.Status))
	} else {
		fmt.Fprintf(w, "Enqueued job %s with status %s\n", job.ID, job.Status)
	}

	logger.Info("email job enqueued", slog.String("job_id", job.ID.String()))

	return nil
}

// outputEnqueueJSON outputs the result in JSON format for machine consumption.
func outputEnqueueJSON(w io.Writer, jobID, status string) {
	result := map[string]interface{}{
		"job_id": jobID,
		"status": status,
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "failed to marshal JSON: %v\n", err)
		return
	}

	fmt.Fprintln(w, string(jsonBytes))
}
