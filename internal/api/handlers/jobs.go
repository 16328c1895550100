// Package handlers implements the JSON HTTP endpoints.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/subscription-tracker/internal/api/middleware"
	"github.com/dvloznov/subscription-tracker/internal/jobs"
	"github.com/dvloznov/subscription-tracker/internal/logger"
	"github.com/rs/zerolog"
)

// DateLayout is the request format of every date parameter.
const DateLayout = "2006-01-02"

// ScanRequest is the body of POST /api/scans.
type ScanRequest struct {
	Source    string `json:"source"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
}

// toJob validates the request and converts it into a pending scan job.
func (req ScanRequest) toJob() (*jobs.ScanJob, error) {
	source := strings.TrimSpace(req.Source)
	switch {
	case source == jobs.SourceBigQuery, source == jobs.SourceDemo:
	case strings.HasPrefix(source, "gs://") && len(source) > len("gs://"):
	default:
		return nil, fmt.Errorf("source must be a gs:// URI, %q or %q", jobs.SourceBigQuery, jobs.SourceDemo)
	}

	job := &jobs.ScanJob{Source: source}

	var err error
	if job.StartDate, err = parseOptionalDate(req.StartDate); err != nil {
		return nil, fmt.Errorf("start_date: %w", err)
	}
	if job.EndDate, err = parseOptionalDate(req.EndDate); err != nil {
		return nil, fmt.Errorf("end_date: %w", err)
	}
	if job.StartDate != nil && job.EndDate != nil && job.StartDate.After(*job.EndDate) {
		return nil, errors.New("start_date must not be after end_date")
	}

	return job, nil
}

// requestLog prefers the request-scoped logger set by middleware.Logger.
func requestLog(r *http.Request, base zerolog.Logger) zerolog.Logger {
	if l, ok := r.Context().Value(logger.LoggerKey).(zerolog.Logger); ok {
		return l
	}
	return base
}

func parseOptionalDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("expected YYYY-MM-DD, got %q", s)
	}
	return &t, nil
}

// ScansHandler queues subscription scans.
type ScansHandler struct {
	publisher jobs.Publisher
	log       zerolog.Logger
}

// NewScansHandler creates a new scans handler.
func NewScansHandler(publisher jobs.Publisher, log zerolog.Logger) *ScansHandler {
	return &ScansHandler{
		publisher: publisher,
		log:       log,
	}
}

// CreateScan handles POST /api/scans
func (h *ScansHandler) CreateScan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := requestLog(r, h.log)

	var req ScanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	job, err := req.toJob()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.publisher.PublishScan(ctx, job); err != nil {
		log.Error().Err(err).Str("source", job.Source).Msg("Failed to publish scan job")
		middleware.WriteError(w, http.StatusServiceUnavailable, "Failed to queue scan")
		return
	}

	log.Info().Str("job_id", job.JobID).Str("source", job.Source).Msg("Scan queued")
	middleware.WriteJSON(w, http.StatusAccepted, job)
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	log := requestLog(r, h.log)
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if errors.Is(err, jobs.ErrJobNotFound) {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to get job")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	log := requestLog(r, h.log)
	ctx := r.Context()

	query := r.URL.Query()
	filter := jobs.JobFilter{
		Source: query.Get("source"),
		Status: jobs.JobStatus(query.Get("status")),
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
