package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingLog summarizes one completed dispatch pass.
type ProcessingLog struct {
	ID             uuid.UUID
	ProcessedCount int
	FailedCount    int
	Status         string
	ProcessedAt    time.Time
}

// RetryPolicy bundles the retry and pacing constants shared by the
// dispatcher and the stuck-job reclaimer, so policy changes never touch
// dispatch logic.
type RetryPolicy struct {
	// MaxRetries is the default retry budget for new jobs.
	MaxRetries int
	// StuckThreshold is how long a job may sit in processing before it is
	// considered stuck.
	StuckThreshold time.Duration
	// MinSendInterval is the global minimum spacing between consecutive
	// sends, set by the transport provider's shared rate limit.
	MinSendInterval time.Duration
}

// DefaultRetryPolicy mirrors the transport provider's rate limit and the
// operational defaults for the queue.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      3,
		StuckThreshold:  10 * time.Minute,
		MinSendInterval: 2 * time.Second,
	}
}
