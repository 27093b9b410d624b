// Package repository provides data persistence implementations for email queue entities.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cadetops/mailroom/internal/database"
	"github.com/cadetops/mailroom/internal/mailqueue/domain"
)

const emailJobColumns = `id, recipient_email, subject, body, template_id, rule_id, source_table, record_id,
			  school_id, status, scheduled_at, sent_at, last_attempt_at, next_retry_at, retry_count,
			  max_retries, error_message, created_at, updated_at`

// PostgreSQLEmailJobRepository handles email job persistence for PostgreSQL.
//
// Every state transition is a single-row conditional write. Concurrent
// dispatch passes coordinate exclusively through these conditional updates:
// a losing writer matches zero rows and skips the job.
type PostgreSQLEmailJobRepository struct {
	db *sql.DB
}

// NewPostgreSQLEmailJobRepository creates a new PostgreSQLEmailJobRepository.
func NewPostgreSQLEmailJobRepository(db *sql.DB) *PostgreSQLEmailJobRepository {
	return &PostgreSQLEmailJobRepository{
		db: db,
	}
}

// Create inserts a new email job.
func (r *PostgreSQLEmailJobRepository) Create(ctx context.Context, job *domain.EmailJob) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO email_jobs (id, recipient_email, subject, body, template_id, rule_id, source_table,
			  record_id, school_id, status, scheduled_at, retry_count, max_retries, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query, job.ID, job.RecipientEmail, job.Subject, job.Body,
		job.TemplateID, job.RuleID, job.SourceTable, job.RecordID, job.SchoolID, job.Status,
		job.ScheduledAt, job.RetryCount, job.MaxRetries)

	return err
}

// GetByID retrieves one email job by id.
func (r *PostgreSQLEmailJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + emailJobColumns + ` FROM email_jobs WHERE id = $1`

	row := querier.QueryRowContext(ctx, query, id)
	return scanEmailJob(row)
}

// ListBySchool retrieves jobs for one tenant ordered by creation time descending.
func (r *PostgreSQLEmailJobRepository) ListBySchool(
	ctx context.Context,
	schoolID uuid.UUID,
	offset, limit int,
) ([]*domain.EmailJob, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + emailJobColumns + ` FROM email_jobs
			  WHERE school_id = $1
			  ORDER BY created_at DESC
			  OFFSET $2 LIMIT $3`

	rows, err := querier.QueryContext(ctx, query, schoolID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return collectEmailJobs(rows)
}

// GetEligible retrieves up to limit dispatchable jobs: pending and due,
// oldest created_at first.
func (r *PostgreSQLEmailJobRepository) GetEligible(ctx context.Context, limit int) ([]*domain.EmailJob, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + emailJobColumns + ` FROM email_jobs
			  WHERE status = $1 AND scheduled_at <= NOW()
			  ORDER BY created_at ASC
			  LIMIT $2`

	rows, err := querier.QueryContext(ctx, query, domain.JobStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return collectEmailJobs(rows)
}

// Claim atomically transitions a job from pending to processing, stamping
// last_attempt_at. Returns false when another dispatcher won the claim.
func (r *PostgreSQLEmailJobRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE email_jobs
			  SET status = $1, last_attempt_at = NOW(), updated_at = NOW()
			  WHERE id = $2 AND status = $3`

	result, err := querier.ExecContext(ctx, query, domain.JobStatusProcessing, id, domain.JobStatusPending)
	if err != nil {
		return false, err
	}

	return rowsAffected(result)
}

// MarkSent transitions a claimed job to sent, stamping sent_at and clearing
// any previous error.
func (r *PostgreSQLEmailJobRepository) MarkSent(ctx context.Context, id uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE email_jobs
			  SET status = $1, sent_at = NOW(), error_message = NULL, updated_at = NOW()
			  WHERE id = $2 AND status = $3`

	result, err := querier.ExecContext(ctx, query, domain.JobStatusSent, id, domain.JobStatusProcessing)
	if err != nil {
		return false, err
	}

	return rowsAffected(result)
}

// MarkFailed transitions a claimed job to failed with the transport error
// message recorded verbatim.
func (r *PostgreSQLEmailJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE email_jobs
			  SET status = $1, error_message = $2, updated_at = NOW()
			  WHERE id = $3 AND status = $4`

	result, err := querier.ExecContext(ctx, query, domain.JobStatusFailed, errorMessage, id, domain.JobStatusProcessing)
	if err != nil {
		return false, err
	}

	return rowsAffected(result)
}

// GetStuck retrieves jobs that were claimed before the cutoff and never
// resolved.
func (r *PostgreSQLEmailJobRepository) GetStuck(ctx context.Context, cutoff time.Time) ([]*domain.EmailJob, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + emailJobColumns + ` FROM email_jobs
			  WHERE status = $1 AND last_attempt_at < $2
			  ORDER BY last_attempt_at ASC`

	rows, err := querier.QueryContext(ctx, query, domain.JobStatusProcessing, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return collectEmailJobs(rows)
}

// ResetForRetry atomically returns a stuck job to pending, incrementing its
// retry count and clearing the previous error.
func (r *PostgreSQLEmailJobRepository) ResetForRetry(ctx context.Context, id uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE email_jobs
			  SET status = $1, retry_count = retry_count + 1, error_message = NULL, updated_at = NOW()
			  WHERE id = $2 AND status = $3`

	result, err := querier.ExecContext(ctx, query, domain.JobStatusPending, id, domain.JobStatusProcessing)
	if err != nil {
		return false, err
	}

	return rowsAffected(result)
}

// RetryFailed returns a failed job to pending on operator request,
// incrementing its retry count and clearing the previous error.
func (r *PostgreSQLEmailJobRepository) RetryFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE email_jobs
			  SET status = $1, retry_count = retry_count + 1, error_message = NULL, updated_at = NOW()
			  WHERE id = $2 AND status = $3`

	result, err := querier.ExecContext(ctx, query, domain.JobStatusPending, id, domain.JobStatusFailed)
	if err != nil {
		return false, err
	}

	return rowsAffected(result)
}

// Cancel atomically transitions a pending job to cancelled. Jobs already
// claimed are not cancellable.
func (r *PostgreSQLEmailJobRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE email_jobs
			  SET status = $1, updated_at = NOW()
			  WHERE id = $2 AND status = $3`

	result, err := querier.ExecContext(ctx, query, domain.JobStatusCancelled, id, domain.JobStatusPending)
	if err != nil {
		return false, err
	}

	return rowsAffected(result)
}

// CountsBySchool aggregates pending, stuck and failed counts per tenant.
// Jobs claimed before stuckCutoff count as stuck.
func (r *PostgreSQLEmailJobRepository) CountsBySchool(
	ctx context.Context,
	stuckCutoff time.Time,
) ([]domain.QueueCounts, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT school_id,
			  COUNT(*) FILTER (WHERE status = $1) AS pending_count,
			  COUNT(*) FILTER (WHERE status = $2 AND last_attempt_at < $3) AS stuck_count,
			  COUNT(*) FILTER (WHERE status = $4) AS failed_count
			  FROM email_jobs
			  WHERE status IN ($1, $2, $4)
			  GROUP BY school_id
			  ORDER BY school_id`

	rows, err := querier.QueryContext(ctx, query,
		domain.JobStatusPending, domain.JobStatusProcessing, stuckCutoff, domain.JobStatusFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var counts []domain.QueueCounts
	for rows.Next() {
		var c domain.QueueCounts
		if err := rows.Scan(&c.SchoolID, &c.PendingCount, &c.StuckCount, &c.FailedCount); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return counts, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanEmailJob scans one email job row in emailJobColumns order.
func scanEmailJob(scanner rowScanner) (*domain.EmailJob, error) {
	var job domain.EmailJob

	err := scanner.Scan(&job.ID, &job.RecipientEmail, &job.Subject, &job.Body, &job.TemplateID,
		&job.RuleID, &job.SourceTable, &job.RecordID, &job.SchoolID, &job.Status, &job.ScheduledAt,
		&job.SentAt, &job.LastAttemptAt, &job.NextRetryAt, &job.RetryCount, &job.MaxRetries,
		&job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &job, nil
}

// collectEmailJobs scans all rows in emailJobColumns order.
func collectEmailJobs(rows *sql.Rows) ([]*domain.EmailJob, error) {
	var jobs []*domain.EmailJob
	for rows.Next() {
		job, err := scanEmailJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return jobs, nil
}

// rowsAffected reports whether a conditional update matched a row.
func rowsAffected(result sql.Result) (bool, error) {
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}
