// Package domain defines the core email queue entities and types.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the lifecycle state of an email job.
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusSent        JobStatus = "sent"
	JobStatusFailed      JobStatus = "failed"
	JobStatusCancelled   JobStatus = "cancelled"
	JobStatusRateLimited JobStatus = "rate_limited"
)

// jobTransitions enumerates the allowed status transitions. Sent, cancelled
// and rate_limited are terminal except where an operator action re-queues.
var jobTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:     {JobStatusProcessing, JobStatusCancelled},
	JobStatusProcessing:  {JobStatusSent, JobStatusFailed, JobStatusRateLimited, JobStatusPending},
	JobStatusFailed:      {JobStatusPending},
	JobStatusSent:        {},
	JobStatusCancelled:   {},
	JobStatusRateLimited: {JobStatusPending},
}

// IsValid reports whether the status is one of the known lifecycle states.
func (s JobStatus) IsValid() bool {
	_, ok := jobTransitions[s]
	return ok
}

// CanTransitionTo reports whether moving from s to target is a legal
// lifecycle transition.
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// EmailJob represents one queued message.
//
// RecipientEmail may encode multiple comma-joined addresses; use Recipients
// to obtain the parsed list. The encoding is kept for round-trip fidelity
// with existing rows.
type EmailJob struct {
	ID             uuid.UUID
	RecipientEmail string
	Subject        string
	Body           string
	TemplateID     *uuid.UUID
	RuleID         *uuid.UUID
	SourceTable    *string
	RecordID       *uuid.UUID
	SchoolID       uuid.UUID
	Status         JobStatus
	ScheduledAt    time.Time
	SentAt         *time.Time
	LastAttemptAt  *time.Time
	NextRetryAt    *time.Time
	RetryCount     int
	MaxRetries     int
	ErrorMessage   *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Recipients parses the comma-joined recipient encoding: split on comma,
// trim whitespace, drop blanks.
func (j *EmailJob) Recipients() []string {
	parts := strings.Split(j.RecipientEmail, ",")
	recipients := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			recipients = append(recipients, trimmed)
		}
	}
	return recipients
}

// IsEligible reports whether the job can be picked up by a dispatch pass.
func (j *EmailJob) IsEligible(now time.Time) bool {
	return j.Status == JobStatusPending && !j.ScheduledAt.After(now)
}

// IsStuck reports whether the job has been claimed for longer than the
// stuck threshold without resolving.
func (j *EmailJob) IsStuck(now time.Time, threshold time.Duration) bool {
	if j.Status != JobStatusProcessing || j.LastAttemptAt == nil {
		return false
	}
	return j.LastAttemptAt.Before(now.Add(-threshold))
}

// RetriesExhausted reports whether another retry would exceed the job's
// retry budget.
func (j *EmailJob) RetriesExhausted() bool {
	return j.RetryCount >= j.MaxRetries
}

// RetryResult records the outcome of reclaiming one stuck job.
type RetryResult struct {
	JobID      uuid.UUID `json:"job_id"`
	SchoolID   uuid.UUID `json:"school_id"`
	RetryCount int       `json:"retry_count"`
	Status     JobStatus `json:"status"`
}

// JobOutcome records the per-job result of one dispatch pass, for operator
// visibility.
type JobOutcome struct {
	JobID     uuid.UUID `json:"job_id"`
	Recipient string    `json:"recipient"`
	Subject   string    `json:"subject"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
}
