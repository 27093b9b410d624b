// Package dto provides data transfer objects for HTTP request and response handling.
package dto

import (
	"time"

	"github.com/google/uuid"
	validation "github.com/jellydator/validation"

	apperrors "github.com/cadetops/mailroom/internal/errors"
	"github.com/cadetops/mailroom/internal/mailqueue/usecase"
	customValidation "github.com/cadetops/mailroom/internal/validation"
)

// EnqueueEmailRequest contains the parameters for queuing a new email job.
// The recipient field accepts a comma-separated list of addresses.
type EnqueueEmailRequest struct {
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject"`
	Body           string     `json:"body"`
	SchoolID       string     `json:"school_id"`
	TemplateID     *string    `json:"template_id,omitempty"`
	RuleID         *string    `json:"rule_id,omitempty"`
	SourceTable    *string    `json:"source_table,omitempty"`
	RecordID       *string    `json:"record_id,omitempty"`
	ScheduledAt    *time.Time `json:"scheduled_at,omitempty"`
	MaxRetries     *int       `json:"max_retries,omitempty"`
}

// Validate checks if the enqueue request is valid.
func (r *EnqueueEmailRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RecipientEmail, validation.Required, customValidation.EmailList),
		validation.Field(&r.Subject, validation.Required, customValidation.NotBlank),
		validation.Field(&r.SchoolID, validation.Required),
		validation.Field(&r.MaxRetries, validation.Min(0)),
	)
}

// ToInput converts the request into a use case input, parsing the UUID
// fields. Parse failures surface as invalid input.
func (r *EnqueueEmailRequest) ToInput() (usecase.EnqueueInput, error) {
	input := usecase.EnqueueInput{
		RecipientEmail: r.RecipientEmail,
		Subject:        r.Subject,
		Body:           r.Body,
		SourceTable:    r.SourceTable,
		ScheduledAt:    r.ScheduledAt,
		MaxRetries:     r.MaxRetries,
	}

	schoolID, err := uuid.Parse(r.SchoolID)
	if err != nil {
		return input, apperrors.Wrap(apperrors.ErrInvalidInput, "invalid school_id")
	}
	input.SchoolID = schoolID

	if input.TemplateID, err = parseOptionalUUID(r.TemplateID, "template_id"); err != nil {
		return input, err
	}
	if input.RuleID, err = parseOptionalUUID(r.RuleID, "rule_id"); err != nil {
		return input, err
	}
	if input.RecordID, err = parseOptionalUUID(r.RecordID, "record_id"); err != nil {
		return input, err
	}

	return input, nil
}

func parseOptionalUUID(value *string, field string) (*uuid.UUID, error) {
	if value == nil {
		return nil, nil
	}
	id, err := uuid.Parse(*value)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "invalid "+field)
	}
	return &id, nil
}

// ProcessQueueRequest contains the optional parameters for a manual queue
// flush. A zero batch size uses the configured default.
type ProcessQueueRequest struct {
	BatchSize int `json:"batch_size"`
}

// Validate checks if the process queue request is valid.
func (r *ProcessQueueRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.BatchSize, validation.Min(0), validation.Max(100)),
	)
}

// RetryStuckRequest contains the optional parameters for a manual stuck-job
// reclaim. A zero max age uses the configured stuck threshold.
type RetryStuckRequest struct {
	MaxAgeMinutes int `json:"max_age_minutes"`
}

// Validate checks if the retry stuck request is valid.
func (r *RetryStuckRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.MaxAgeMinutes, validation.Min(0)),
	)
}
