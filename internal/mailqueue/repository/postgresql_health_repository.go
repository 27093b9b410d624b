package repository

import (
	"context"
	"database/sql"

	"github.com/cadetops/mailroom/internal/database"
	"github.com/cadetops/mailroom/internal/mailqueue/domain"
)

// PostgreSQLHealthSnapshotRepository persists the append-only queue health
// time series for PostgreSQL.
type PostgreSQLHealthSnapshotRepository struct {
	db *sql.DB
}

// NewPostgreSQLHealthSnapshotRepository creates a new PostgreSQLHealthSnapshotRepository.
func NewPostgreSQLHealthSnapshotRepository(db *sql.DB) *PostgreSQLHealthSnapshotRepository {
	return &PostgreSQLHealthSnapshotRepository{
		db: db,
	}
}

// Create appends one health snapshot row. Snapshots are never updated.
func (r *PostgreSQLHealthSnapshotRepository) Create(ctx context.Context, snapshot *domain.HealthSnapshot) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO email_queue_health (id, school_id, check_timestamp, pending_count, stuck_count,
			  failed_count, processing_time_avg_ms, health_status)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := querier.ExecContext(ctx, query, snapshot.ID, snapshot.SchoolID, snapshot.CheckTimestamp,
		snapshot.PendingCount, snapshot.StuckCount, snapshot.FailedCount,
		snapshot.ProcessingTimeAvgMs, snapshot.HealthStatus)

	return err
}

// ListRecent retrieves the most recent snapshots, newest first.
func (r *PostgreSQLHealthSnapshotRepository) ListRecent(
	ctx context.Context,
	limit int,
) ([]*domain.HealthSnapshot, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, school_id, check_timestamp, pending_count, stuck_count, failed_count,
			  processing_time_avg_ms, health_status
			  FROM email_queue_health
			  ORDER BY check_timestamp DESC
			  LIMIT $1`

	rows, err := querier.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	var snapshots []*domain.HealthSnapshot
	for rows.Next() {
		var snapshot domain.HealthSnapshot

		err := rows.Scan(&snapshot.ID, &snapshot.SchoolID, &snapshot.CheckTimestamp,
			&snapshot.PendingCount, &snapshot.StuckCount, &snapshot.FailedCount,
			&snapshot.ProcessingTimeAvgMs, &snapshot.HealthStatus)
		if err != nil {
			return nil, err
		}

		snapshots = append(snapshots, &snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return snapshots, nil
}
