package jobs

import (
	"context"
	"errors"
	"time"
)

// ErrJobNotFound is returned by a JobStore for an unknown job ID.
var ErrJobNotFound = errors.New("job not found")

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeDetectSubscriptions runs a subscription scan over one feed source.
	JobTypeDetectSubscriptions JobType = "detect_subscriptions"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	// JobStatusRetrying means the last attempt failed and another is scheduled.
	JobStatusRetrying JobStatus = "retrying"
)

// Scan sources accepted by ScanJob.Source besides gs:// URIs.
const (
	SourceBigQuery = "bigquery"
	SourceDemo     = "demo"
)

// ScanJob asks a worker to fetch a transaction feed and detect subscriptions in it.
type ScanJob struct {
	JobID string `json:"job_id"`

	// Source is a gs:// URI, "bigquery" or "demo".
	Source string `json:"source"`

	// StartDate and EndDate bound the BigQuery query; other sources ignore them.
	StartDate *time.Time `json:"start_date,omitempty"`
	EndDate   *time.Time `json:"end_date,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`

	// Result is filled in when the scan completes.
	Result *ScanResult `json:"result,omitempty"`

	RetryCount int `json:"retry_count"`
	MaxRetries int `json:"max_retries"`
}

// ScanResult summarizes a completed scan.
type ScanResult struct {
	Transactions  int `json:"transactions"`
	Skipped       int `json:"skipped"`
	Subscriptions int `json:"subscriptions"`
}

// Job is a generic interface for all job types.
type Job interface {
	GetID() string
	GetType() JobType
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ScanJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ScanJob) GetType() JobType {
	return JobTypeDetectSubscriptions
}

// GetStatus implements the Job interface.
func (j *ScanJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs for asynchronous processing.
type Publisher interface {
	PublishScan(ctx context.Context, job *ScanJob) error
	Close() error
}

// Consumer runs a handler for every job taken off the queue.
type Consumer interface {
	// Start launches the workers and returns immediately.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a job. A returned error marks the attempt as failed
// and schedules a retry while retries remain.
type JobHandler func(ctx context.Context, job Job) error

// JobStore tracks job state for the API.
type JobStore interface {
	SaveJob(ctx context.Context, job *ScanJob) error
	GetJob(ctx context.Context, jobID string) (*ScanJob, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*ScanJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	Source string
	Status JobStatus
	Limit  int
	Offset int
}
