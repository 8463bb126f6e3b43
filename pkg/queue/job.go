package queue

import (
	"context"
	"encoding/json"
	"time"
)

type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// Job is the envelope delivered to handlers. Payload carries the
// job-type-specific body.
type Job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Handler processes one job execution. Returning an error triggers the
// retry policy; the final failure is reported through the exhaustion hook.
type Handler func(ctx context.Context, job Job) error

// ExhaustedFunc runs after the last attempt of a job fails.
type ExhaustedFunc func(ctx context.Context, job Job, err error)

// JobRecord is a retention entry kept after a job finishes.
type JobRecord struct {
	ID         string
	Type       string
	Status     JobStatus
	Attempts   int
	Error      string
	FinishedAt time.Time
}

// ring is a fixed-capacity FIFO of finished job records.
type ring struct {
	records []JobRecord
	cap     int
}

func newRing(capacity int) *ring {
	return &ring{cap: capacity}
}

func (r *ring) add(record JobRecord) {
	r.records = append(r.records, record)
	if len(r.records) > r.cap {
		r.records = r.records[len(r.records)-r.cap:]
	}
}

func (r *ring) snapshot() []JobRecord {
	out := make([]JobRecord, len(r.records))
	copy(out, r.records)
	return out
}
