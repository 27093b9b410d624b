// Package http provides HTTP handlers for the email queue API: job
// management, manual queue operations and health inspection.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cadetops/mailroom/internal/httputil"
	"github.com/cadetops/mailroom/internal/mailqueue/http/dto"
	"github.com/cadetops/mailroom/internal/mailqueue/usecase"
	customValidation "github.com/cadetops/mailroom/internal/validation"
)

// QueueHandler handles HTTP requests for the email queue.
type QueueHandler struct {
	queueUseCase    usecase.QueueService
	dispatchUseCase usecase.BatchDispatcher
	reclaimUseCase  usecase.StuckReclaimer
	healthUseCase   usecase.HealthChecker
	logger          *slog.Logger
}

// NewQueueHandler creates a new queue handler with required dependencies.
func NewQueueHandler(
	queueUseCase usecase.QueueService,
	dispatchUseCase usecase.BatchDispatcher,
	reclaimUseCase usecase.StuckReclaimer,
	healthUseCase usecase.HealthChecker,
	logger *slog.Logger,
) *QueueHandler {
	return &QueueHandler{
		queueUseCase:    queueUseCase,
		dispatchUseCase: dispatchUseCase,
		reclaimUseCase:  reclaimUseCase,
		healthUseCase:   healthUseCase,
		logger:          logger,
	}
}

// EnqueueHandler queues a new email job.
// POST /v1/emails
// Returns 201 Created with the pending job.
func (h *QueueHandler) EnqueueHandler(c *gin.Context) {
	var req dto.EnqueueEmailRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	input, err := req.ToInput()
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	job, err := h.queueUseCase.Enqueue(c.Request.Context(), input)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapJobToResponse(job))
}

// ListHandler retrieves a tenant's email jobs with pagination.
// GET /v1/emails?school_id=<uuid>&offset=0&limit=50
// Returns 200 OK with the job list, newest first.
func (h *QueueHandler) ListHandler(c *gin.Context) {
	schoolID, err := uuid.Parse(c.Query("school_id"))
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			customValidation.WrapValidationError(err),
			h.logger,
		)
		return
	}

	offset, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	jobs, err := h.queueUseCase.ListBySchool(c.Request.Context(), schoolID, offset, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobsToListResponse(jobs))
}

// GetHandler retrieves one email job by id.
// GET /v1/emails/:id
// Returns 200 OK with the job.
func (h *QueueHandler) GetHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	job, err := h.queueUseCase.GetByID(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobToResponse(job))
}

// CancelHandler cancels a pending email job.
// POST /v1/emails/:id/cancel
// Returns 200 OK with the cancelled job, 409 if the job is not pending.
func (h *QueueHandler) CancelHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	job, err := h.queueUseCase.Cancel(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobToResponse(job))
}

// RetryHandler re-queues a failed email job.
// POST /v1/emails/:id/retry
// Returns 200 OK with the re-queued job, 409 if the job is not retryable.
func (h *QueueHandler) RetryHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	job, err := h.queueUseCase.Retry(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapJobToResponse(job))
}

// ProcessHandler runs one dispatch pass on demand. The request body is
// optional; an empty or absent body uses the configured batch size.
// POST /v1/queue/process
// Returns 200 OK with the pass summary.
func (h *QueueHandler) ProcessHandler(c *gin.Context) {
	var req dto.ProcessQueueRequest

	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.HandleBadRequestGin(c, err, h.logger)
			return
		}
		if err := req.Validate(); err != nil {
			httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
			return
		}
	}

	var result *usecase.BatchResult
	var err error
	if req.BatchSize > 0 {
		result, err = h.dispatchUseCase.ProcessBatch(c.Request.Context(), req.BatchSize)
	} else {
		result, err = h.dispatchUseCase.RunOnce(c.Request.Context())
	}
	if err != nil {
		h.logger.Error("dispatch pass failed", slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "failed to process email queue",
			"processed": 0,
			"failed":    0,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "email queue processed",
		"processed": result.ProcessedCount,
		"failed":    result.FailedCount,
		"details":   result.Details,
	})
}

// RetryStuckHandler reclaims stuck jobs on demand. The request body is
// optional; an empty or absent body uses the configured stuck threshold.
// POST /v1/queue/retry-stuck
// Returns 200 OK with the per-job reclaim results.
func (h *QueueHandler) RetryStuckHandler(c *gin.Context) {
	var req dto.RetryStuckRequest

	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputil.HandleBadRequestGin(c, err, h.logger)
			return
		}
		if err := req.Validate(); err != nil {
			httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
			return
		}
	}

	maxAge := time.Duration(req.MaxAgeMinutes) * time.Minute

	results, err := h.reclaimUseCase.RetryStuck(c.Request.Context(), maxAge)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": results})
}

// HealthHandler runs a queue health check and returns the fresh report.
// GET /v1/queue/health
// Returns 200 OK with per-tenant snapshots and summary counts.
func (h *QueueHandler) HealthHandler(c *gin.Context) {
	report, err := h.healthUseCase.CheckQueueHealth(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshots":      dto.MapSnapshotsToListResponse(report.Snapshots).Data,
		"critical_count": report.CriticalCount,
		"warning_count":  report.WarningCount,
	})
}

// HealthHistoryHandler retrieves recent health snapshots.
// GET /v1/queue/health/history?limit=100
// Returns 200 OK with snapshots, newest first.
func (h *QueueHandler) HealthHistoryHandler(c *gin.Context) {
	limit, ok := h.parseLimit(c, 100)
	if !ok {
		return
	}

	snapshots, err := h.queueUseCase.RecentHealth(c.Request.Context(), limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSnapshotsToListResponse(snapshots))
}

// LogsHandler retrieves recent dispatch pass summaries.
// GET /v1/queue/logs?limit=50
// Returns 200 OK with summaries, newest first.
func (h *QueueHandler) LogsHandler(c *gin.Context) {
	limit, ok := h.parseLimit(c, 50)
	if !ok {
		return
	}

	logs, err := h.queueUseCase.RecentLogs(c.Request.Context(), limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapLogsToListResponse(logs))
}

// parseID extracts and validates the job id path parameter. It writes the
// error response itself when the id is malformed.
func (h *QueueHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(
			c,
			customValidation.WrapValidationError(err),
			h.logger,
		)
		return uuid.Nil, false
	}
	return id, true
}

// parseLimit parses the limit query parameter with a handler-specific
// default, capped at 500.
func (h *QueueHandler) parseLimit(c *gin.Context, defaultLimit int) (int, bool) {
	limit, err := httputil.ParseLimit(c, defaultLimit, 500)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return 0, false
	}
	return limit, true
}
