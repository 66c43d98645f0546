package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ppiankov/promessa/internal/audit"
	"github.com/ppiankov/promessa/internal/jobs"
	"github.com/ppiankov/promessa/internal/model"
	"github.com/ppiankov/promessa/internal/store"
)

const maxBodyBytes = 64 << 10

type auditRequest struct {
	PoliticianID string `json:"politicianId"`
	PromiseText  string `json:"promiseText"`
	Category     string `json:"category"`
	Year         int    `json:"year"`
	Sphere       string `json:"sphere"`
}

type pendingResponse struct {
	Status      string `json:"status"`
	JobID       string `json:"jobId"`
	Fingerprint string `json:"fingerprint"`
}

type failedResponse struct {
	Error       string `json:"error"`
	JobID       string `json:"jobId,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	var body auditRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	req := audit.Request{
		PromiseText:  strings.TrimSpace(body.PromiseText),
		Category:     strings.TrimSpace(body.Category),
		PoliticianID: strings.TrimSpace(body.PoliticianID),
		Year:         body.Year,
		Sphere:       model.Sphere(strings.ToUpper(strings.TrimSpace(body.Sphere))),
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fp := req.Fingerprint()
	job := s.deps.Jobs.Submit(r.Context(), fp, func(ctx context.Context) (*model.AuditReport, error) {
		return s.deps.Auditor.Audit(ctx, req)
	})

	if !job.Status.Terminal() {
		ctx, cancel := context.WithTimeout(r.Context(), s.cfg.SyncWait)
		defer cancel()
		waited, err := s.deps.Jobs.Wait(ctx, fp)
		switch {
		case err == nil:
			job = waited
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			writeJSON(w, http.StatusAccepted, pendingResponse{Status: string(model.JobPending), JobID: job.ID, Fingerprint: fp})
			return
		default:
			s.logger.Warn("audit job lost while waiting", "fingerprint", fp, "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	if job.Status == model.JobCompleted {
		writeJSON(w, http.StatusOK, job.Result)
		return
	}
	writeJSON(w, failureStatus(job), failedResponse{Error: job.Error, JobID: job.ID, Fingerprint: fp})
}

// failureStatus maps a failed job to its HTTP status.
func failureStatus(job model.AuditJob) int {
	err := jobs.Err(job)
	switch {
	case errors.Is(err, model.ErrExtractionUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, model.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.deps.Jobs.Status(chi.URLParam(r, "fingerprint"))
	if errors.Is(err, model.ErrJobNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleScout(w http.ResponseWriter, r *http.Request) {
	subject := strings.TrimSpace(chi.URLParam(r, "subject"))
	if subject == "" {
		writeError(w, http.StatusBadRequest, "subject is required")
		return
	}

	items, err := s.deps.Scout.Search(r.Context(), subject)
	if err != nil {
		status := http.StatusInternalServerError
		if model.IsUpstream(err) {
			status = http.StatusServiceUnavailable
		}
		writeError(w, status, err.Error())
		return
	}
	if items == nil {
		items = []model.ScoutResult{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	politician := strings.TrimSpace(r.URL.Query().Get("politician"))
	if politician == "" {
		writeError(w, http.StatusBadRequest, "politician query parameter is required")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	reports, err := s.deps.Reports.ReportsByPolitician(r.Context(), politician, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reports == nil {
		reports = []*model.AuditReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.deps.Reports.ReportByFingerprint(r.Context(), chi.URLParam(r, "fingerprint"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
