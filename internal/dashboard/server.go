package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"log-triage/internal/store"
)

//go:embed templates/*
var templatesFS embed.FS

// AlertSource is the read side of the alert store
type AlertSource interface {
	ListAlerts(limit int, rule string) ([]store.AlertRecord, error)
	ListRuns(limit int) ([]store.Run, error)
	GetStats() (*store.Stats, error)
}

// Server represents the dashboard HTTP server
type Server struct {
	source    AlertSource
	templates *template.Template
	port      string
	logger    zerolog.Logger
}

// NewServer creates a new dashboard server
func NewServer(source AlertSource, port string, logger zerolog.Logger) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}

	return &Server{
		source:    source,
		templates: tmpl,
		port:      port,
		logger:    logger.With().Str("component", "dashboard").Logger(),
	}, nil
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Web UI
	mux.HandleFunc("/", s.handleDashboard)

	// API endpoints
	mux.HandleFunc("/api/v1/alerts", s.handleAPIAlerts)
	mux.HandleFunc("/api/v1/stats", s.handleAPIStats)
	mux.HandleFunc("/api/v1/runs", s.handleAPIRuns)

	return mux
}

// Start serves until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.port).Msg("dashboard listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// handleDashboard renders the main dashboard page
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	alerts, err := s.source.ListAlerts(100, "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	stats, err := s.source.GetStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := map[string]interface{}{
		"Alerts": alerts,
		"Stats":  stats,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		s.logger.Error().Err(err).Msg("failed to render dashboard")
	}
}

func limitParam(r *http.Request, def int) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 {
			return l
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// handleAPIAlerts returns alerts as JSON, optionally filtered by ?rule=
func (s *Server) handleAPIAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := s.source.ListAlerts(limitParam(r, 100), r.URL.Query().Get("rule"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, alerts)
}

// handleAPIStats returns statistics as JSON
func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.source.GetStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// handleAPIRuns returns recent analysis runs
func (s *Server) handleAPIRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.source.ListRuns(limitParam(r, 20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, runs)
}
