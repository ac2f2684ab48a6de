// Package httpapi implements the HTTP+JSON surface over the Workflow
// Execution Engine and the file surface: block catalog, workflow lifecycle
// (create/execute, status, results, pause, resume, delete), file list/
// upload/download/preview, and a Prometheus scrape endpoint.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gurre/leadpipe/datastore"
	"github.com/gurre/leadpipe/engine"
	"github.com/gurre/leadpipe/metrics"
	"github.com/gurre/leadpipe/report"
)

// Server wires the engine, file store, metrics registry and optional
// report uploader behind a chi router. It holds no mutable state of its
// own beyond what Engine already serializes internally.
type Server struct {
	engine         *engine.Engine
	store          datastore.Store
	metrics        *metrics.Metrics
	reg            *prometheus.Registry
	reportUploader report.Uploader
	reportURI      string
}

// New constructs a Server. reg is the registry metrics were registered
// against; it is served verbatim at /metrics. reportUploader and reportURI
// are optional: when both are set, every workflow that reaches a terminal
// status (COMPLETED, FAILED, or PAUSED) has a report.Report uploaded to
// reportURI.
func New(eng *engine.Engine, store datastore.Store, m *metrics.Metrics, reg *prometheus.Registry, reportUploader report.Uploader, reportURI string) *Server {
	return &Server{engine: eng, store: store, metrics: m, reg: reg, reportUploader: reportUploader, reportURI: reportURI}
}

// Router builds the complete route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleHealth)
	r.Get("/blocks", s.handleBlockCatalog)

	r.Route("/workflows", func(r chi.Router) {
		r.Post("/execute", s.handleExecuteWorkflow)
		r.Get("/{workflowID}/status", s.handleWorkflowStatus)
		r.Get("/{workflowID}/results", s.handleWorkflowResults)
		r.Post("/{workflowID}/pause", s.handlePauseWorkflow)
		r.Post("/{workflowID}/resume", s.handleResumeWorkflow)
		r.Delete("/{workflowID}", s.handleDeleteWorkflow)
	})

	r.Route("/files", func(r chi.Router) {
		r.Get("/", s.handleListFiles)
		r.Post("/upload", s.handleUploadFile)
		r.Get("/{name}", s.handleDownloadFile)
		r.Get("/{name}/preview", s.handlePreviewFile)
	})

	r.Handle("/metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "Workflow Engine API"})
}

func (s *Server) handleBlockCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"blocks": engine.Catalog})
}
