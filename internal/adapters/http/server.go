// Package httpadapter exposes the operational HTTP surface: job submission,
// status, cancellation, dead-letter inspection, and a health probe.
package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/design-smith/AWSDataScanner/internal/domain"
	"github.com/design-smith/AWSDataScanner/internal/ports"
	jobsvc "github.com/design-smith/AWSDataScanner/internal/services/jobs"
)

type Server struct {
	jobs  *jobsvc.Service
	queue ports.TaskQueue
	log   *logrus.Logger
}

func New(jobs *jobsvc.Service, queue ports.TaskQueue, log *logrus.Logger) *Server {
	return &Server{jobs: jobs, queue: queue, log: log}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Post("/jobs", s.handleSubmitJob)
	r.Get("/jobs/{jobID}", s.handleGetJob)
	r.Delete("/jobs/{jobID}", s.handleCancelJob)
	r.Get("/deadletters", s.handleDeadLetters)
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitJobRequest struct {
	Name   string `json:"name"`
	Bucket string `json:"s3_bucket"`
	Prefix string `json:"s3_prefix"`
}

func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Bucket == "" {
		writeError(w, http.StatusBadRequest, "s3_bucket is required")
		return
	}
	job, err := s.jobs.Submit(r.Context(), req.Name, req.Bucket, req.Prefix)
	if err != nil {
		if errors.Is(err, jobsvc.ErrNoObjects) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.log.WithError(err).Error("job submission failed")
		writeError(w, http.StatusInternalServerError, "job submission failed")
		return
	}
	writeJSON(w, http.StatusAccepted, jobView(job))
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if _, err := uuid.Parse(jobID); err != nil {
		writeError(w, http.StatusBadRequest, "job id must be a UUID")
		return
	}
	job, err := s.jobs.Status(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobsvc.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.log.WithError(err).Error("job status failed")
		writeError(w, http.StatusInternalServerError, "job status failed")
		return
	}
	writeJSON(w, http.StatusOK, jobView(job))
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if _, err := uuid.Parse(jobID); err != nil {
		writeError(w, http.StatusBadRequest, "job id must be a UUID")
		return
	}
	err := s.jobs.Cancel(r.Context(), jobID)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, jobsvc.ErrJobNotFound):
		writeError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, jobsvc.ErrJobTerminal):
		writeError(w, http.StatusConflict, "job already finished")
	default:
		s.log.WithError(err).Error("job cancel failed")
		writeError(w, http.StatusInternalServerError, "job cancel failed")
	}
}

func (s *Server) handleDeadLetters(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.queue.DeadLetters(r.Context(), 10)
	if err != nil {
		s.log.WithError(err).Error("dead letter read failed")
		writeError(w, http.StatusInternalServerError, "dead letter read failed")
		return
	}
	if tasks == nil {
		tasks = []domain.ScanTask{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

type jobResponse struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Bucket           string     `json:"s3_bucket"`
	Prefix           string     `json:"s3_prefix"`
	Status           string     `json:"status"`
	TotalObjects     int        `json:"total_objects"`
	CompletedObjects int        `json:"completed_objects"`
	FailedObjects    int        `json:"failed_objects"`
	TotalFindings    int        `json:"total_findings"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

func jobView(job domain.Job) jobResponse {
	return jobResponse{
		ID:               job.ID,
		Name:             job.Name,
		Bucket:           job.Bucket,
		Prefix:           job.Prefix,
		Status:           string(job.Status),
		TotalObjects:     job.TotalObjects,
		CompletedObjects: job.CompletedObjects,
		FailedObjects:    job.FailedObjects,
		TotalFindings:    job.TotalFindings,
		CreatedAt:        job.CreatedAt,
		CompletedAt:      job.CompletedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
