package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/ChineseLsh/x-feed-digest/digest"
	"github.com/ChineseLsh/x-feed-digest/feed"
)

// submitJobRequest is the JSON body for POST /api/jobs
type submitJobRequest struct {
	Handles   []feed.HandleRecord `json:"handles"`
	BatchSize int                 `json:"batch_size"`
}

// jobResponse shapes a job for API consumers: batch results stay out of
// the payload, counts and per-batch progress go in.
type jobResponse struct {
	*digest.Job
	Counts digest.BatchCounts `json:"batch_counts"`
}

func toJobResponse(job *digest.Job) jobResponse {
	return jobResponse{Job: job, Counts: job.Counts()}
}

// handleJobs serves GET (list) and POST (submit) on /api/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listJobs(w, r)
	case http.MethodPost:
		s.submitJob(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) listJobs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	var status *digest.JobStatus
	if v := r.URL.Query().Get("status"); v != "" {
		if !digest.IsValidJobStatus(v) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid status: %s", v))
			return
		}
		st := digest.JobStatus(v)
		status = &st
	}

	jobs, err := s.executor.ListJobs(status, limit)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	responses := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		responses = append(responses, toJobResponse(job))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"jobs": responses})
}

// submitJob accepts either a JSON handle list or a multipart CSV upload
// under the "file" field.
func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var handles []feed.HandleRecord
	var batchSize int

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload: %v", err))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file field")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read upload: %v", err))
			return
		}
		handles, err = feed.ParseHandleCSV(data)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if v := r.FormValue("batch_size"); v != "" {
			batchSize, err = strconv.Atoi(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid batch_size")
				return
			}
		}
	} else {
		var req submitJobRequest
		if err := readJSON(w, r, &req); err != nil {
			return
		}
		handles = req.Handles
		batchSize = req.BatchSize
	}

	if len(handles) == 0 {
		writeError(w, http.StatusBadRequest, "no handles provided")
		return
	}

	job, err := s.executor.Submit(handles, batchSize)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toJobResponse(job))
}

// handleJob routes /api/jobs/{id} and its sub-resources:
//
//	GET  /api/jobs/{id}
//	GET  /api/jobs/{id}/summary
//	GET  /api/jobs/{id}/download
//	POST /api/jobs/{id}/aggregate
//	POST /api/jobs/{id}/batches/{index}/retry
//
// Job history is append-only; there is no delete.
func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	parts := extractPathParts(r.URL.Path, "/api/jobs/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "job id required")
		return
	}
	jobID := parts[0]

	if len(parts) == 1 {
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.getJob(w, jobID)
		return
	}

	switch parts[1] {
	case "summary":
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.getJobSummary(w, jobID)
	case "download":
		if !requireMethod(w, r, http.MethodGet) {
			return
		}
		s.downloadJobCSV(w, jobID)
	case "aggregate":
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		s.aggregateJob(w, jobID)
	case "batches":
		if len(parts) != 4 || parts[3] != "retry" {
			writeError(w, http.StatusNotFound, "unknown job resource")
			return
		}
		if !requireMethod(w, r, http.MethodPost) {
			return
		}
		index, err := strconv.Atoi(parts[2])
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid batch index")
			return
		}
		s.retryBatch(w, jobID, index)
	default:
		writeError(w, http.StatusNotFound, "unknown job resource")
	}
}

func (s *Server) getJob(w http.ResponseWriter, jobID string) {
	job, err := s.executor.GetJob(jobID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(job))
}

func (s *Server) getJobSummary(w http.ResponseWriter, jobID string) {
	job, err := s.executor.GetJob(jobID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if job.SummaryText == "" {
		writeError(w, http.StatusNotFound, "summary not available yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"job_id":  job.ID,
		"status":  string(job.Status),
		"summary": job.SummaryText,
	})
}

func (s *Server) downloadJobCSV(w http.ResponseWriter, jobID string) {
	merged, tweets, err := s.executor.MergedCSV(jobID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	s.logger.Infow("Serving job CSV download", "job_id", jobID, "tweets", tweets)
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="digest-%s.csv"`, jobID))
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, merged)
}

func (s *Server) aggregateJob(w http.ResponseWriter, jobID string) {
	job, err := s.executor.ForceAggregate(jobID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toJobResponse(job))
}

func (s *Server) retryBatch(w http.ResponseWriter, jobID string, index int) {
	job, err := s.executor.RetryBatch(jobID, index)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toJobResponse(job))
}
