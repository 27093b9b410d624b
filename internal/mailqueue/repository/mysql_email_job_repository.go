package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/cadetops/mailroom/internal/database"
	"github.com/cadetops/mailroom/internal/mailqueue/domain"
)

// MySQLEmailJobRepository handles email job persistence for MySQL.
type MySQLEmailJobRepository struct {
	db *sql.DB
}

// NewMySQLEmailJobRepository creates a new MySQLEmailJobRepository.
func NewMySQLEmailJobRepository(db *sql.DB) *MySQLEmailJobRepository {
	return &MySQLEmailJobRepository{
		db: db,
	}
}

// uuidBytes converts a UUID to the 16-byte form stored in BINARY(16)
// columns. MarshalBinary on a UUID value cannot fail.
func uuidBytes(id uuid.UUID) []byte {
	b, _ := id.MarshalBinary()
	return b
}

// nullableUUIDBytes converts an optional UUID, mapping nil to a NULL column.
func nullableUUIDBytes(id *uuid.UUID) []byte {
	if id == nil {
		return nil
	}
	return uuidBytes(*id)
}

// Create inserts a new email job.
func (r *MySQLEmailJobRepository) Create(ctx context.Context, job *domain.EmailJob) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO email_jobs (id, recipient_email, subject, body, template_id, rule_id, source_table,
			  record_id, school_id, status, scheduled_at, retry_count, max_retries, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`

	_, err := querier.ExecContext(ctx, query, uuidBytes(job.ID), job.RecipientEmail, job.Subject,
		job.Body, nullableUUIDBytes(job.TemplateID), nullableUUIDBytes(job.RuleID), job.SourceTable,
		nullableUUIDBytes(job.RecordID), uuidBytes(job.SchoolID), job.Status,
		job.ScheduledAt, job.RetryCount, job.MaxRetries)

	return err
}

// GetByID retrieves one email job by id.
func (r *MySQLEmailJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.EmailJob, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + emailJobColumns + ` FROM email_jobs WHERE id = ?`

	row := querier.QueryRowContext(ctx, query, uuidBytes(id))
	return scanEmailJob(row)
}

// ListBySchool retrieves jobs for one tenant ordered by creation time descending.
func (r *MySQLEmailJobRepository) ListBySchool(
	ctx context.Context,
	schoolID uuid.UUID,
	offset, limit int,
) ([]*domain.EmailJob, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + emailJobColumns + ` FROM email_jobs
			  WHERE school_id = ?
			  ORDER BY created_at DESC
			  LIMIT ? OFFSET ?`

	rows, err := querier.QueryContext(ctx, query, uuidBytes(schoolID), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return collectEmailJobs(rows)
}

// GetEligible retrieves up to limit dispatchable jobs: pending and due,
// oldest created_at first.
func (r *MySQLEmailJobRepository) GetEligible(ctx context.Context, limit int) ([]*domain.EmailJob, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + emailJobColumns + ` FROM email_jobs
			  WHERE status = ? AND scheduled_at <= NOW()
			  ORDER BY created_at ASC
			  LIMIT ?`

	rows, err := querier.QueryContext(ctx, query, domain.JobStatusPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	return collectEmailJobs(rows)
}

// Claim atomically transitions a job from pending to processing, stamping
// last_attempt_at. Returns false when another dispatcher won the claim.
func (r *MySQLEmailJobRepository) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE email_jobs
			  SET status = ?, last_attempt_at = NOW(), updated_at = NOW()
			  WHERE id = ? AND status = ?`

	result, err := querier.ExecContext(ctx, query, domain.JobStatusProcessing, uuidBytes(id), domain.JobStatusPending)
	if err != nil {
		return false, err
	}

	return rowsAffected(result)
}

// MarkSent transitions a claimed job to sent, stamping sent_at and clearing
// any previous error.
func (r *MySQLEmailJobRepository) MarkSent(ctx context.Context, id uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE email_jobs
			  SET status = ?, sent_at = NOW(), error_message = NULL, updated_at = NOW()
			  WHERE id = ? AND status = ?`

	result, err := querier.ExecContext(ctx, query, domain.JobStatusSent, uuidBytes(id), domain.JobStatusProcessing)
	if err != nil {
		return false, err
	}

	return rowsAffected(result)
}

// MarkFailed transitions a claimed job to failed with the transport error
// message recorded verbatim.
func (r *MySQLEmailJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, errorMessage string) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE email_jobs
			  SET status = ?, error_message = ?, updated_at = NOW()
			  WHERE id = ? AND status = ?`

	result, err := querier.ExecContext(ctx, query, domain.JobStatusFailed, errorMessage, uuidBytes(id), domain.JobStatusProcessing)
	if err != nil {
		return false, err
	}

	return rowsAffected(result)
}

// GetStuck retrieves jobs that were claimed before the cutoff and never
// resolved.
func (r *MySQLEmailJobRepository) GetStuck(ctx context.Context, cutoff time.Time) ([]*domain.EmailJob, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT ` + emailJobColumns + ` FROM email_jobs
			  WHERE status = ? AND last_attempt_at < ?
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
func (r *MySQLEmailJobRepository) ResetForRetry(ctx context.Context, id uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE email_jobs
			  SET status = ?, retry_count = retry_count + 1, error_message = NULL, updated_at = NOW()
			  WHERE id = ? AND status = ?`

	result, err := querier.ExecContext(ctx, query, domain.JobStatusPending, uuidBytes(id), domain.JobStatusProcessing)
	if err != nil {
		return false, err
	}

	return rowsAffected(result)
}

// RetryFailed returns a failed job to pending on operator request,
// incrementing its retry count and clearing the previous error.
func (r *MySQLEmailJobRepository) RetryFailed(ctx context.Context, id uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE email_jobs
			  SET status = ?, retry_count = retry_count + 1, error_message = NULL, updated_at = NOW()
			  WHERE id = ? AND status = ?`

	result, err := querier.ExecContext(ctx, query, domain.JobStatusPending, uuidBytes(id), domain.JobStatusFailed)
	if err != nil {
		return false, err
	}

	return rowsAffected(result)
}

// Cancel atomically transitions a pending job to cancelled. Jobs already
// claimed are not cancellable.
func (r *MySQLEmailJobRepository) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE email_jobs
			  SET status = ?, updated_at = NOW()
			  WHERE id = ? AND status = ?`

	result, err := querier.ExecContext(ctx, query, domain.JobStatusCancelled, uuidBytes(id), domain.JobStatusPending)
	if err != nil {
		return false, err
	}

	return rowsAffected(result)
}

// CountsBySchool aggregates pending, stuck and failed counts per tenant.
// Jobs claimed before stuckCutoff count as stuck.
func (r *MySQLEmailJobRepository) CountsBySchool(
	ctx context.Context,
	stuckCutoff time.Time,
) ([]domain.QueueCounts, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT school_id,
			  SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS pending_count,
			  SUM(CASE WHEN status = ? AND last_attempt_at < ? THEN 1 ELSE 0 END) AS stuck_count,
			  SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS failed_count
			  FROM email_jobs
			  WHERE status IN (?, ?, ?)
			  GROUP BY school_id
			  ORDER BY school_id`

	rows, err := querier.QueryContext(ctx, query,
		domain.JobStatusPending, domain.JobStatusProcessing, stuckCutoff, domain.JobStatusFailed,
		domain.JobStatusPending, domain.JobStatusProcessing, domain.JobStatusFailed)
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
