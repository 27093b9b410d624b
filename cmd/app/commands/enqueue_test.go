package commands

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cadetops/mailroom/internal/mailqueue/domain"
	mailqueueUsecase "github.com/cadetops/mailroom/internal/mailqueue/usecase"
)

func TestRunEnqueue(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()
	schoolID := uuid.Must(uuid.NewV7())

	t.Run("text-output", func(t *testing.T) {
		jobID := uuid.Must(uuid.NewV7())
		mockQueue := &MockQueueService{}
		mockQueue.On("Enqueue", ctx, mock.MatchedBy(func(input mailqueueUsecase.EnqueueInput) bool {
			return input.RecipientEmail == "cadet@example.com" &&
				input.Subject == "Welcome" &&
				input.SchoolID == schoolID
		})).Return(&domain.EmailJob{ID: jobID, Status: domain.JobStatusPending}, nil)

		var out bytes.Buffer
		err := RunEnqueue(ctx, mockQueue, logger, &out,
			"cadet@example.com", "Welcome", "<p>Hello</p>", schoolID.String(), "text")

		require.NoError(t, err)
		require.Contains(t, out.String(), "Enqueued job "+jobID.String())
		require.Contains(t, out.String(), "pending")
		mockQueue.AssertExpectations(t)
	})

	t.Run("json-output", func(t *testing.T) {
		jobID := uuid.Must(uuid.NewV7())
		mockQueue := &MockQueueService{}
		mockQueue.On("Enqueue", ctx, mock.Anything).
			Return(&domain.EmailJob{ID: jobID, Status: domain.JobStatusPending}, nil)

		var out bytes.Buffer
		err := RunEnqueue(ctx, mockQueue, logger, &out,
			"cadet@example.com", "Welcome", "<p>Hello</p>", schoolID.String(), "json")

		require.NoError(t, err)
		require.Contains(t, out.String(), jobID.String())
		require.Contains(t, out.String(), `"status": "pending"`)
		mockQueue.AssertExpectations(t)
	})

	t.Run("invalid-school-id", func(t *testing.T) {
		mockQueue := &MockQueueService{}
		err := RunEnqueue(ctx, mockQueue, logger, &bytes.Buffer{},
			"cadet@example.com", "Welcome", "<p>Hello</p>", "not-a-uuid", "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "invalid school id")
	})

	t.Run("enqueue-error", func(t *testing.T) {
		mockQueue := &MockQueueService{}
		mockQueue.On("Enqueue", ctx, mock.Anything).Return(nil, context.DeadlineExceeded)

		err := RunEnqueue(ctx, mockQueue, logger, &bytes.Buffer{},
			"cadet@example.com", "Welcome", "<p>Hello</p>", schoolID.String(), "text")

		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to enqueue email job")
		mockQueue.AssertExpectations(t)
	})
}
