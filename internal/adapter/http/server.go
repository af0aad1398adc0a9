package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/weather-station-api/internal/alerts"
	"github.com/couchcryptid/weather-station-api/internal/domain"
	"github.com/couchcryptid/weather-station-api/internal/ingest"
	"github.com/couchcryptid/weather-station-api/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxBodyBytes caps request bodies on the write endpoints.
const maxBodyBytes = 64 << 10

// Writer is the write path: device ingestion and admin edits. The
// Authorize methods let handlers reject a caller before reading its body.
type Writer interface {
	AuthorizeDevice(token string) error
	AuthorizeAdmin(token string) error
	Ingest(ctx context.Context, token, idemKey string, body []byte) (ingest.Result, error)
	Create(ctx context.Context, adminToken, idemKey string, body []byte) (ingest.Result, error)
	Update(ctx context.Context, adminToken, id string, body []byte) (int64, error)
	Delete(ctx context.Context, adminToken, id string) (int64, error)
}

// Reader answers the summary, listing and forecast queries.
type Reader interface {
	Today() domain.CivilDate
	DaySummary(ctx context.Context, date domain.CivilDate) (domain.DaySummary, error)
	HomeSummary(ctx context.Context) (domain.HomeSummary, error)
	ListReadings(ctx context.Context, filter domain.ReadingFilter) ([]domain.Reading, error)
	DayReadings(ctx context.Context, date domain.CivilDate) ([]domain.Reading, error)
	Forecast(ctx context.Context, date domain.CivilDate) ([]domain.ForecastHour, error)
	WeeklyForecast(ctx context.Context, days int) ([]domain.ForecastDay, error)
	ForecastComparison(ctx context.Context, date domain.CivilDate) ([]domain.CompareRow, error)
}

// AlertLister returns the filtered alert list.
type AlertLister interface {
	Alerts(ctx context.Context, q alerts.Query) ([]domain.AlertRecord, error)
}

// Deps are the services behind the API routes.
type Deps struct {
	Writer      Writer
	Reader      Reader
	Alerts      AlertLister
	Ready       sharedobs.ReadinessChecker
	Location    *time.Location
	StationName string
}

// Server exposes the station API plus health, readiness, and metrics routes.
type Server struct {
	httpServer *http.Server
	deps       Deps
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with every API route registered.
func NewServer(addr string, deps Deps, metrics *observability.Metrics, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:    deps,
		metrics: metrics,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(deps.Ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/ingest", s.handleIngest)
	mux.HandleFunc("GET /api/readings", s.handleListReadings)
	mux.HandleFunc("POST /api/readings", s.handleCreateReading)
	mux.HandleFunc("GET /api/readings/export", s.handleExportDay)
	mux.HandleFunc("PATCH /api/readings/{id}", s.handleUpdateReading)
	mux.HandleFunc("DELETE /api/readings/{id}", s.handleDeleteReading)
	mux.HandleFunc("GET /api/day-summary", s.handleDaySummary)
	mux.HandleFunc("GET /api/day-summary/report", s.handleDayReport)
	mux.HandleFunc("GET /api/home-summary", s.handleHomeSummary)
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/forecast", s.handleForecast)
	mux.HandleFunc("GET /api/forecast/weekly", s.handleWeeklyForecast)
	mux.HandleFunc("GET /api/forecast/compare", s.handleForecastCompare)

	s.httpServer.Handler = s.instrument(mux)
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
