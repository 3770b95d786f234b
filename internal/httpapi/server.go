// Package httpapi exposes the plugin surface: tenant registration, job
// submission and polling, the transform manifest, and a liveness probe.
package httpapi

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/getherald/herald/internal/jobs"
	"github.com/getherald/herald/internal/model"
	"github.com/getherald/herald/internal/runner"
	"github.com/getherald/herald/internal/secrets"
	"github.com/getherald/herald/internal/transform"
)

type Server struct {
	plugin     string
	runner     *runner.Runner
	registry   *jobs.Registry
	secrets    secrets.Store
	transforms *transform.Registry
}

func NewServer(plugin string, run *runner.Runner, registry *jobs.Registry, store secrets.Store, transforms *transform.Registry) *Server {
	return &Server{
		plugin:     plugin,
		runner:     run,
		registry:   registry,
		secrets:    store,
		transforms: transforms,
	}
}

func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger)

	router.Route("/api/v1", func(router chi.Router) {
		router.Post("/tenants", s.createTenant)
		router.Delete("/tenants/{tenantID}", s.deleteTenant)
		router.Post("/jobs", s.submitJob)
		router.Get("/jobs/{jobID}", s.getJob)
		router.Get("/manifest", s.manifest)
	})
	router.Get("/healthz", s.healthz)
	return router
}

type tenantRequest struct {
	TenantID string `json:"tenant_id"`
}

type tenantResponse struct {
	TenantID string `json:"tenant_id"`
	// Secret is hex encoded and returned only here, at issue time.
	Secret   string    `json:"secret"`
	IssuedAt time.Time `json:"issued_at"`
}

func (s *Server) createTenant(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, model.ErrInvalidInput, "request body is not valid JSON")
		return
	}
	if req.TenantID == "" {
		writeError(w, r, model.ErrInvalidInput, "tenant_id is required")
		return
	}

	record, err := s.secrets.Issue(r.Context(), req.TenantID)
	if err != nil {
		writeError(w, r, err, "issuing tenant secret failed")
		return
	}
	writeJSON(w, r, http.StatusCreated, tenantResponse{
		TenantID: record.TenantID,
		Secret:   hex.EncodeToString(record.Secret),
		IssuedAt: record.IssuedAt,
	})
}

func (s *Server) deleteTenant(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenantID")
	if err := s.secrets.Revoke(r.Context(), tenantID); err != nil {
		writeError(w, r, err, "revoking tenant failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type submitRequest struct {
	TenantID    string         `json:"tenant_id"`
	Transform   string         `json:"transform"`
	Entity      model.Entity   `json:"entity"`
	Config      map[string]any `json:"config,omitempty"`
	CallbackURL string         `json:"callback_url"`
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, model.ErrInvalidInput, "request body is not valid JSON")
		return
	}

	accepted, err := s.runner.Submit(r.Context(), model.TransformRequest{
		TenantID:    req.TenantID,
		Transform:   req.Transform,
		Entity:      req.Entity,
		Config:      req.Config,
		CallbackURL: req.CallbackURL,
	})
	if err != nil {
		writeError(w, r, err, "job submission rejected")
		return
	}
	writeJSON(w, r, http.StatusAccepted, accepted)
}

type jobResponse struct {
	JobID      string          `json:"job_id"`
	TenantID   string          `json:"tenant_id"`
	Transform  string          `json:"transform"`
	Status     model.JobStatus `json:"status"`
	Progress   int             `json:"progress"`
	Message    string          `json:"message,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.registry.Get(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, r, err, "job lookup failed")
		return
	}

	resp := jobResponse{
		JobID:     job.ID,
		TenantID:  job.TenantID,
		Transform: job.Transform,
		Status:    job.Status,
		Progress:  job.Progress,
		Message:   job.Message,
		CreatedAt: job.CreatedAt,
	}
	if !job.FinishedAt.IsZero() {
		resp.FinishedAt = &job.FinishedAt
	}
	writeJSON(w, r, http.StatusOK, resp)
}

type manifestTransform struct {
	Name             string   `json:"name"`
	Description      string   `json:"description"`
	Kinds            []string `json:"kinds"`
	EstimatedSeconds int      `json:"estimated_seconds"`
}

type manifestResponse struct {
	Name       string              `json:"name"`
	Transforms []manifestTransform `json:"transforms"`
}

func (s *Server) manifest(w http.ResponseWriter, r *http.Request) {
	resp := manifestResponse{
		Name:       s.plugin,
		Transforms: make([]manifestTransform, 0, len(s.transforms.All())),
	}
	for _, tr := range s.transforms.All() {
		resp.Transforms = append(resp.Transforms, manifestTransform{
			Name:             tr.Name(),
			Description:      tr.Description(),
			Kinds:            tr.Kinds(),
			EstimatedSeconds: tr.EstimatedSeconds(),
		})
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "encoding response", "error", err)
	}
}

// writeError maps the error chain to a status code and a stable error
// code. fallback describes the operation when the chain carries no
// sentinel.
func writeError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := http.StatusInternalServerError
	detail := model.ErrorDetail{Code: "INTERNAL", Message: fallback}

	switch {
	case errors.Is(err, model.ErrInvalidInput):
		status = http.StatusBadRequest
		detail = model.ErrorDetail{Code: "INVALID_INPUT", Message: err.Error()}
	case errors.Is(err, model.ErrUnknownTenant):
		status = http.StatusNotFound
		detail = model.ErrorDetail{Code: "UNKNOWN_TENANT", Message: err.Error()}
	case errors.Is(err, model.ErrUnknownJob):
		status = http.StatusNotFound
		detail = model.ErrorDetail{Code: "UNKNOWN_JOB", Message: err.Error()}
	case errors.Is(err, model.ErrJobFinished):
		status = http.StatusConflict
		detail = model.ErrorDetail{Code: "JOB_FINISHED", Message: err.Error()}
	default:
		slog.ErrorContext(r.Context(), "request failed", "error", err)
	}
	writeJSON(w, r, status, map[string]model.ErrorDetail{"error": detail})
}

// requestLogger emits one line per request with the final status and
// duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.InfoContext(r.Context(), "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
