package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/case-trend-etl/internal/domain"
)

// ReportStore serves the most recent analysis report.
type ReportStore interface {
	sharedobs.ReadinessChecker
	Latest() (*domain.Report, bool)
}

// Server exposes health, readiness, metrics, and report HTTP endpoints.
type Server struct {
	httpServer *http.Server
	store      ReportStore
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and the
// /v1 report routes.
func NewServer(addr string, store ReportStore, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		store:  store,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(store))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /v1/summaries", s.withReport(s.handleSummaries))
	mux.HandleFunc("GET /v1/summaries/{id}", s.withReport(s.handleSummary))
	mux.HandleFunc("GET /v1/ranking", s.withReport(s.handleRanking))
	mux.HandleFunc("GET /v1/state", s.withReport(s.handleState))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type reportHandler func(w http.ResponseWriter, r *http.Request, report *domain.Report)

func (s *Server) withReport(h reportHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := s.store.Latest()
		if !ok {
			writeError(w, http.StatusServiceUnavailable, "no report available yet")
			return
		}
		h(w, r, report)
	}
}

// summaryItem is the list view of one region.
type summaryItem struct {
	RegionID string            `json:"region_id"`
	Name     string            `json:"name"`
	Latest   *domain.Indicator `json:"latest_indicator"`
	Rate     *domain.Rate      `json:"latest_rate"`
}

type summaryList struct {
	RunID       string                 `json:"run_id"`
	GeneratedAt time.Time              `json:"generated_at"`
	Regions     []summaryItem          `json:"regions"`
	Failures    []domain.RegionFailure `json:"failures,omitempty"`
}

func (s *Server) handleSummaries(w http.ResponseWriter, _ *http.Request, report *domain.Report) {
	out := summaryList{
		RunID:       report.RunID,
		GeneratedAt: report.GeneratedAt,
		Regions:     make([]summaryItem, 0, len(report.Regions)),
		Failures:    report.Failures,
	}
	for _, rs := range report.Regions {
		item := summaryItem{RegionID: rs.RegionID, Name: rs.Name}
		if ind, ok := rs.LatestIndicator(); ok {
			item.Latest = &ind
		}
		if rate, ok := rs.LatestRate(); ok {
			item.Rate = &rate
		}
		out.Regions = append(out.Regions, item)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request, report *domain.Report) {
	id := r.PathValue("id")
	summary, ok := report.Region(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown region "+id)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleRanking(w http.ResponseWriter, _ *http.Request, report *domain.Report) {
	writeJSON(w, http.StatusOK, struct {
		RunID string `json:"run_id"`
		domain.Ranking
	}{report.RunID, report.Ranking})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request, report *domain.Report) {
	writeJSON(w, http.StatusOK, report.State)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have gone away
}
