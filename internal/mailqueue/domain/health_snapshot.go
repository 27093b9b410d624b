package domain

import (
	"time"

	"github.com/google/uuid"
)

// HealthStatus classifies a tenant's queue health.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusWarning  HealthStatus = "warning"
	HealthStatusCritical HealthStatus = "critical"
)

// QueueCounts holds the per-tenant aggregate counts a health check reads
// from the queue store.
type QueueCounts struct {
	SchoolID     uuid.UUID
	PendingCount int
	StuckCount   int
	FailedCount  int
}

// HealthSnapshot is one row of the append-only queue health time series.
// The queue store stays authoritative; snapshots exist for trends and
// alerting only and are never mutated after insert.
type HealthSnapshot struct {
	ID                  uuid.UUID
	SchoolID            uuid.UUID
	CheckTimestamp      time.Time
	PendingCount        int
	StuckCount          int
	FailedCount         int
	ProcessingTimeAvgMs *float64
	HealthStatus        HealthStatus
}

// HealthThresholds holds the policy constants for deriving a tenant's
// health status from its queue counts.
type HealthThresholds struct {
	// FailedCritical is the failed-job count above which a tenant is critical.
	FailedCritical int
	// PendingWarning is the backlog size above which a tenant is in warning.
	PendingWarning int
}

// Derive classifies queue counts. Any stuck job is urgent, so a nonzero
// stuck count is always critical.
func (t HealthThresholds) Derive(counts QueueCounts) HealthStatus {
	if counts.StuckCount > 0 || counts.FailedCount > t.FailedCritical {
		return HealthStatusCritical
	}
	if counts.PendingCount > t.PendingWarning {
		return HealthStatusWarning
	}
	return HealthStatusHealthy
}
