// Package idempotency models the IdempotencyRecord used by the exactly-once
// mutation middleware.
package idempotency

import "time"

// Status is the record's processing lifecycle.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// TTL is how long a completed/failed record is retained before cleanup.
const TTL = 24 * time.Hour

// CachedResponse is the replayed response for a completed record.
type CachedResponse struct {
	StatusCode int
	Body       []byte
	Headers    map[string]string
}

// Record is one IdempotencyRecord row.
type Record struct {
	Key             string
	RequestHash     string
	Status          Status
	CachedResponse  *CachedResponse
	CreatedAt       time.Time
}

// Expired reports whether the record has outlived TTL as of now.
func (r Record) Expired(now time.Time) bool {
	return now.Sub(r.CreatedAt) > TTL
}
