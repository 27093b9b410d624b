package repository

import (
	"context"
	"database/sql"

	"github.com/cadetops/mailroom/internal/database"
	"github.com/cadetops/mailroom/internal/mailqueue/domain"
)

// MySQLProcessingLogRepository persists dispatch pass summaries for MySQL.
type MySQLProcessingLogRepository struct {
	db *sql.DB
}

// NewMySQLProcessingLogRepository creates a new MySQLProcessingLogRepository.
func NewMySQLProcessingLogRepository(db *sql.DB) *MySQLProcessingLogRepository {
	return &MySQLProcessingLogRepository{
		db: db,
	}
}

// Create inserts one dispatch pass summary row.
func (r *MySQLProcessingLogRepository) Create(ctx context.Context, log *domain.ProcessingLog) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO email_processing_logs (id, processed_count, failed_count, status, processed_at)
			  VALUES (?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, query, uuidBytes(log.ID), log.ProcessedCount, log.FailedCount,
		log.Status, log.ProcessedAt)

	return err
}

// ListRecent retrieves the most recent dispatch summaries, newest first.
func (r *MySQLProcessingLogRepository) ListRecent(ctx context.Context, limit int) ([]*domain.ProcessingLog, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, processed_count, failed_count, status, processed_at
			  FROM email_processing_logs
			  ORDER BY processed_at DESC
			  LIMIT ?`

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
