package repository

import (
	"context"
	"database/sql"

	"github.com/cadetops/mailroom/internal/database"
	"github.com/cadetops/mailroom/internal/mailqueue/domain"
)

// MySQLHealthSnapshotRepository persists the append-only queue health time
// series for MySQL.
type MySQLHealthSnapshotRepository struct {
	db *sql.DB
}

// NewMySQLHealthSnapshotRepository creates a new MySQLHealthSnapshotRepository.
func NewMySQLHealthSnapshotRepository(db *sql.DB) *MySQLHealthSnapshotRepository {
	return &MySQLHealthSnapshotRepository{
		db: db,
	}
}

// Create appends one health snapshot row. Snapshots are never updated.
func (r *MySQLHealthSnapshotRepository) Create(ctx context.Context, snapshot *domain.HealthSnapshot) error {
	querier := database.GetTx(ctx, r.db)

	query := `INSERT INTO email_queue_health (id, school_id, check_timestamp, pending_count, stuck_count,
			  failed_count, processing_time_avg_ms, health_status)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := querier.ExecContext(ctx, query, uuidBytes(snapshot.ID), uuidBytes(snapshot.SchoolID), snapshot.CheckTimestamp,
		snapshot.PendingCount, snapshot.StuckCount, snapshot.FailedCount,
		snapshot.ProcessingTimeAvgMs, snapshot.HealthStatus)

	return err
}

// ListRecent retrieves the most recent snapshots, newest first.
func (r *MySQLHealthSnapshotRepository) ListRecent(
	ctx context.Context,
	limit int,
) ([]*domain.HealthSnapshot, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, school_id, check_timestamp, pending_count, stuck_count, failed_count,
			  processing_time_avg_ms, health_status
			  FROM email_queue_health
			  ORDER BY check_timestamp DESC
			  LIMIT ?`

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
