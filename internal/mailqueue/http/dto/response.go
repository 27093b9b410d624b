package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/cadetops/mailroom/internal/mailqueue/domain"
)

// EmailJobResponse represents an email job in API responses.
type EmailJobResponse struct {
	ID             string     `json:"id"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject"`
	SchoolID       string     `json:"school_id"`
	Status         string     `json:"status"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	LastAttemptAt  *time.Time `json:"last_attempt_at,omitempty"`
	NextRetryAt    *time.Time `json:"next_retry_at,omitempty"`
	RetryCount     int        `json:"retry_count"`
	MaxRetries     int        `json:"max_retries"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	TemplateID     *string    `json:"template_id,omitempty"`
	RuleID         *string    `json:"rule_id,omitempty"`
	SourceTable    *string    `json:"source_table,omitempty"`
	RecordID       *string    `json:"record_id,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// MapJobToResponse converts a domain email job to a response.
func MapJobToResponse(job *domain.EmailJob) EmailJobResponse {
	return EmailJobResponse{
		ID:             job.ID.String(),
		RecipientEmail: job.RecipientEmail,
		Subject:        job.Subject,
		SchoolID:       job.SchoolID.String(),
		Status:         string(job.Status),
		ScheduledAt:    job.ScheduledAt,
		SentAt:         job.SentAt,
		LastAttemptAt:  job.LastAttemptAt,
		NextRetryAt:    job.NextRetryAt,
		RetryCount:     job.RetryCount,
		MaxRetries:     job.MaxRetries,
		ErrorMessage:   job.ErrorMessage,
		TemplateID:     uuidToString(job.TemplateID),
		RuleID:         uuidToString(job.RuleID),
		SourceTable:    job.SourceTable,
		RecordID:       uuidToString(job.RecordID),
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
	}
}

func uuidToString(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

// ListEmailJobsResponse represents a paginated list of email jobs.
type ListEmailJobsResponse struct {
	Data []EmailJobResponse `json:"data"`
}

// MapJobsToListResponse converts a slice of domain email jobs to a list response.
func MapJobsToListResponse(jobs []*domain.EmailJob) ListEmailJobsResponse {
	data := make([]EmailJobResponse, 0, len(jobs))
	for _, job := range jobs {
		data = append(data, MapJobToResponse(job))
	}
	return ListEmailJobsResponse{Data: data}
}

// HealthSnapshotResponse represents a queue health snapshot in API responses.
type HealthSnapshotResponse struct {
	ID                  string    `json:"id"`
	SchoolID            string    `json:"school_id"`
	CheckTimestamp      time.Time `json:"check_timestamp"`
	PendingCount        int       `json:"pending_count"`
	StuckCount          int       `json:"stuck_count"`
	FailedCount         int       `json:"failed_count"`
	ProcessingTimeAvgMs *float64  `json:"processing_time_avg_ms,omitempty"`
	HealthStatus        string    `json:"health_status"`
}

// MapSnapshotToResponse converts a domain health snapshot to a response.
func MapSnapshotToResponse(snapshot *domain.HealthSnapshot) HealthSnapshotResponse {
	return HealthSnapshotResponse{
		ID:                  snapshot.ID.String(),
		SchoolID:            snapshot.SchoolID.String(),
		CheckTimestamp:      snapshot.CheckTimestamp,
		PendingCount:        snapshot.PendingCount,
		StuckCount:          snapshot.StuckCount,
		FailedCount:         snapshot.FailedCount,
		ProcessingTimeAvgMs: snapshot.ProcessingTimeAvgMs,
		HealthStatus:        string(snapshot.HealthStatus),
	}
}

// ListHealthSnapshotsResponse represents a list of health snapshots.
type ListHealthSnapshotsResponse struct {
	Data []HealthSnapshotResponse `json:"data"`
}

// MapSnapshotsToListResponse converts a slice of snapshots to a list response.
func MapSnapshotsToListResponse(snapshots []*domain.HealthSnapshot) ListHealthSnapshotsResponse {
	data := make([]HealthSnapshotResponse, 0, len(snapshots))
	for _, snapshot := range snapshots {
		data = append(data, MapSnapshotToResponse(snapshot))
	}
	return ListHealthSnapshotsResponse{Data: data}
}

// ProcessingLogResponse represents a dispatch pass summary in API responses.
type ProcessingLogResponse struct {
	ID             string    `json:"id"`
	ProcessedCount int       `json:"processed_count"`
	FailedCount    int       `json:"failed_count"`
	Status         string    `json:"status"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// MapLogToResponse converts a domain processing log to a response.
func MapLogToResponse(log *domain.ProcessingLog) ProcessingLogResponse {
	return ProcessingLogResponse{
		ID:             log.ID.String(),
		ProcessedCount: log.ProcessedCount,
		FailedCount:    log.FailedCount,
		Status:         log.Status,
		ProcessedAt:    log.ProcessedAt,
	}
}

// ListProcessingLogsResponse represents a list of dispatch pass summaries.
type ListProcessingLogsResponse struct {
	Data []ProcessingLogResponse `json:"data"`
}

// MapLogsToListResponse converts a slice of processing logs to a list response.
func MapLogsToListResponse(logs []*domain.ProcessingLog) ListProcessingLogsResponse {
	data := make([]ProcessingLogResponse, 0, len(logs))
	for _, log := range logs {
		data = append(data, MapLogToResponse(log))
	}
	return ListProcessingLogsResponse{Data: data}
}
