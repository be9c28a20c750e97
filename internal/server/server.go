// Package server exposes the dashboard: the HTML page, the rendered chart
// images, a small JSON API, and health endpoints.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/speedwagon-io/weatherdash/internal/archive"
	"github.com/speedwagon-io/weatherdash/internal/lib/logger/sl"
	"github.com/speedwagon-io/weatherdash/internal/poller"
)

//go:embed templates/*.html
var templatesFS embed.FS

// IntervalSetter is the poller-side half of the refresh selector.
type IntervalSetter interface {
	SetInterval(d time.Duration) error
}

// History is the archive read path, satisfied by *archive.SQLiteArchive.
type History interface {
	Recent(ctx context.Context, limit int) ([]archive.Snapshot, error)
}

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

type ComponentHealth struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status     Status            `json:"status"`
	Components []ComponentHealth `json:"components"`
	Timestamp  time.Time         `json:"timestamp"`
}

type HealthChecker interface {
	Name() string
	Check(ctx context.Context) (Status, string)
}

type Server struct {
	log       *slog.Logger
	address   string
	deviceURL string
	store     *poller.Store
	intervals IntervalSetter
	history   History // nil when the archive is disabled
	server    *http.Server
	tmpl      *template.Template
	checkers  []HealthChecker
	mu        sync.RWMutex
}

func NewServer(
	log *slog.Logger,
	address string,
	deviceURL string,
	store *poller.Store,
	intervals IntervalSetter,
	history History,
) (*Server, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	return &Server{
		log:       log,
		address:   address,
		deviceURL: deviceURL,
		store:     store,
		intervals: intervals,
		history:   history,
		tmpl:      tmpl,
		checkers:  make([]HealthChecker, 0),
	}, nil
}

func (s *Server) AddChecker(checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkers = append(s.checkers, checker)
}

func (s *Server) routes() *chi.Mux {
	r := chi.NewRouter()

	r.Get("/", s.handleDashboard)
	r.Get("/charts/{metric}.png", s.handleChart)
	r.Get("/api/frame", s.handleFrame)
	r.Get("/api/history", s.handleHistory)
	r.Post("/api/refresh", s.handleRefresh)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Get("/live", s.handleLive)

	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      s.routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.log.Info("starting dashboard server", slog.String("address", s.address))

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error("dashboard server error", sl.Err(err))
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	checkers := make([]HealthChecker, len(s.checkers))
	copy(checkers, s.checkers)
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:     StatusHealthy,
		Components: make([]ComponentHealth, 0, len(checkers)),
		Timestamp:  time.Now().UTC(),
	}

	for _, checker := range checkers {
		status, message := checker.Check(ctx)
		response.Components = append(response.Components, ComponentHealth{
			Name:    checker.Name(),
			Status:  status,
			Message: message,
		})

		if status == StatusUnhealthy {
			response.Status = StatusUnhealthy
		} else if status == StatusDegraded && response.Status == StatusHealthy {
			response.Status = StatusDegraded
		}
	}

	statusCode := http.StatusOK
	if response.Status == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// PollerHealthChecker degrades when the latest refresh attempt failed and
// no frame has ever been published.
type PollerHealthChecker struct {
	store *poller.Store
}

func NewPollerHealthChecker(store *poller.Store) *PollerHealthChecker {
	return &PollerHealthChecker{store: store}
}

func (c *PollerHealthChecker) Name() string {
	return "poller"
}

func (c *PollerHealthChecker) Check(ctx context.Context) (Status, string) {
	msg, _ := c.store.LastError()
	if msg == "" {
		return StatusHealthy, ""
	}
	if c.store.Frame() == nil {
		return StatusUnhealthy, msg
	}
	return StatusDegraded, msg
}

type ArchiveHealthChecker struct {
	countFunc func(ctx context.Context) (int64, error)
}

func NewArchiveHealthChecker(countFunc func(ctx context.Context) (int64, error)) *ArchiveHealthChecker {
	return &ArchiveHealthChecker{countFunc: countFunc}
}

func (c *ArchiveHealthChecker) Name() string {
	return "archive"
}

func (c *ArchiveHealthChecker) Check(ctx context.Context) (Status, string) {
	if _, err := c.countFunc(ctx); err != nil {
		return StatusUnhealthy, err.Error()
	}
	return StatusHealthy, ""
}
