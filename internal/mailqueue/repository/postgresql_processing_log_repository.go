package repository

import (
	"context"
	"database/sql"

	"github.com/cadetops/mailroom/internal/database"
	"github.com/cadetops/mailroom/internal/mailqueue/domain"
)

// PostgreSQLProcessingLogRepository persists dispatch pass summaries for PostgreSQL.
type PostgreSQLProcessingLogRepository struct {
	db *sql.DB
}

// NewPostgreSQLProcessingLogRepository creates a new PostgreSQLProcessingLogRepository.
func NewPostgreSQLProcessingLogRepository(db *sql.DB) *PostgreSQLProcessingLogRepository {
	return &PostgreSQLProcessingLogRepository{
		db: db,
	}
}

// Create inserts one dispatch pass summary row.
func (r *PostgreSQLProcessingLogRepository) Create(ctx context.Context, log *domain.ProcessingLog) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO email_processing_logs (id, processed_count, failed_count, status, processed_at)
			  VALUES ($1, $2, $3, $4, $5)`

	_, err := querier.ExecContext(ctx, query, log.ID, log.ProcessedCount, log.FailedCount,
		log.Status, log.ProcessedAt)

	return err
}

// ListRecent retrieves the most recent dispatch summaries, newest first.
func (r *PostgreSQLProcessingLogRepository) ListRecent(ctx context.Context, limit int) ([]*domain.ProcessingLog, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, processed_count, failed_count, status, processed_at
			  FROM email_processing_logs
			  ORDER BY processed_at DESC
			  LIMIT $1`

	rows, err := querier.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var logs []*domain.ProcessingLog
	for rows.Next() {
		var log domain.ProcessingLog

		err := rows.Scan(&log.ID, &log.ProcessedCount, &log.FailedCount, &log.Status, &log.ProcessedAt)
		if err != nil {
			return nil, err
		}

		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return logs, nil
}
