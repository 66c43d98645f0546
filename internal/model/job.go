package model

import "time"

// JobStatus is the lifecycle state of an audit job.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether s is completed or failed.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// AuditJob tracks one shared audit computation keyed by fingerprint.
type AuditJob struct {
	ID          string       `json:"id"`
	Fingerprint string       `json:"fingerprint"`
	Status      JobStatus    `json:"status"`
	Result      *AuditReport `json:"result,omitempty"`
	Error       string       `json:"error,omitempty"`
	ErrorKind   string       `json:"error_kind,omitempty"` // extraction_unavailable, invalid_input, timeout, internal
	CreatedAt   time.Time    `json:"created_at"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
}
