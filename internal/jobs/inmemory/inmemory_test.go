package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/jobs"
)

// waitForStatus polls the store until the job reaches status or the deadline passes.
func waitForStatus(t *testing.T, store *Store, jobID string, status jobs.JobStatus) *jobs.ScanJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == status {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := store.GetJob(context.Background(), jobID)
	t.Fatalf("job %s did not reach status %s, last state: %+v", jobID, status, job)
	return nil
}

func TestQueue_ProcessesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, store, Options{Workers: 2})
	defer q.Close()

	err := q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		scan := job.(*jobs.ScanJob)
		scan.Result = &jobs.ScanResult{Transactions: 56, Subscriptions: 4}
		return nil
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	job := &jobs.ScanJob{Source: jobs.SourceDemo}
	if err := q.PublishScan(ctx, job); err != nil {
		t.Fatalf("PublishScan() error = %v", err)
	}
	if job.JobID == "" {
		t.Fatal("Expected PublishScan to assign a job ID")
	}
	if job.MaxRetries != 3 {
		t.Errorf("Expected default max retries 3, got %d", job.MaxRetries)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Result == nil || done.Result.Subscriptions != 4 {
		t.Errorf("Expected scan result to be stored, got %+v", done.Result)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Error("Expected start and completion times")
	}
}

func TestQueue_RetriesFailedJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, store, Options{RetryDelay: time.Millisecond})
	defer q.Close()

	var attempts int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return errors.New("feed unavailable")
		}
		return nil
	})

	job := &jobs.ScanJob{Source: "gs://bucket/feed.json"}
	if err := q.PublishScan(ctx, job); err != nil {
		t.Fatalf("PublishScan() error = %v", err)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.RetryCount != 2 {
		t.Errorf("Expected 2 retries, got %d", done.RetryCount)
	}
	if done.Error != "" {
		t.Errorf("Expected error to be cleared on success, got %q", done.Error)
	}
}

func TestQueue_FailsAfterMaxRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := NewStore()
	q := NewQueue(10, store, Options{RetryDelay: time.Millisecond})
	defer q.Close()

	var attempts int32
	_ = q.Start(ctx, func(ctx context.Context, job jobs.Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("permanent failure")
	})

	job := &jobs.ScanJob{Source: jobs.SourceBigQuery, MaxRetries: 1}
	_ = q.PublishScan(ctx, job)

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.Error != "permanent failure" {
		t.Errorf("Expected error message to be kept, got %q", failed.Error)
	}
	if got := atomic.LoadInt32(&attempts); got != 2 {
		t.Errorf("Expected 2 attempts, got %d", got)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, nil, Options{})
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := q.PublishScan(context.Background(), &jobs.ScanJob{}); err == nil {
		t.Error("Expected error publishing to a closed queue")
	}
	if err := q.Start(context.Background(), nil); err == nil {
		t.Error("Expected error starting a closed queue")
	}
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC)

	_ = s.SaveJob(ctx, &jobs.ScanJob{JobID: "a", Source: "demo", Status: jobs.JobStatusCompleted, CreatedAt: base})
	_ = s.SaveJob(ctx, &jobs.ScanJob{JobID: "b", Source: "bigquery", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Hour)})
	_ = s.SaveJob(ctx, &jobs.ScanJob{JobID: "c", Source: "demo", Status: jobs.JobStatusPending, CreatedAt: base.Add(2 * time.Hour)})

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"c", "b", "a"}},
		{"by source", jobs.JobFilter{Source: "demo"}, []string{"c", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusFailed}, []string{"b"}},
		{"limit", jobs.JobFilter{Limit: 1}, []string{"c"}},
		{"offset", jobs.JobFilter{Offset: 2}, []string{"a"}},
		{"offset past end", jobs.JobFilter{Offset: 5}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Expected %d jobs, got %d", len(tt.want), len(got))
			}
			for i, id := range tt.want {
				if got[i].JobID != id {
					t.Errorf("ListJobs()[%d] = %s, want %s", i, got[i].JobID, id)
				}
			}
		})
	}
}

func TestStore_NotFound(t *testing.T) {
	s := NewStore()
	if _, err := s.GetJob(context.Background(), "missing"); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("GetJob() error = %v, want ErrJobNotFound", err)
	}
	if err := s.UpdateJobStatus(context.Background(), "missing", jobs.JobStatusFailed, ""); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("UpdateJobStatus() error = %v, want ErrJobNotFound", err)
	}
	if err := s.SaveJob(context.Background(), &jobs.ScanJob{}); err == nil {
		t.Error("Expected error saving a job without ID")
	}
}
