// Package httpadapter serves the map API over HTTP.
package httpadapter

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/incident-map/internal/cluster"
	"github.com/couchcryptid/incident-map/internal/domain"
	"github.com/couchcryptid/incident-map/internal/session"
)

// MapSession is the session state the API reads and mutates.
type MapSession interface {
	sharedobs.ReadinessChecker
	Snapshot(ctx context.Context) (session.Snapshot, error)
	SetDateRange(ctx context.Context, r domain.DateRange) error
	ResetDates(ctx context.Context) error
	SetCategory(ctx context.Context, key string, enabled bool) error
	DrawRectangle(ctx context.Context, r domain.Rectangle) error
	DrawPolygon(ctx context.Context, vertices []domain.Geo) error
	ClearShape(ctx context.Context) error
	Export(ctx context.Context, includeAdmin bool) (domain.ExportFile, error)
	Geocode(ctx context.Context, address string) (session.GeocodeOutcome, error)
	Locate(ctx context.Context, pos domain.Geo) (session.GeocodeOutcome, error)
	Recenter(ctx context.Context) (session.View, error)
}

// ClusterSource groups the visible markers for a zoom level.
type ClusterSource interface {
	Clusters(zoom int) ([]cluster.Cluster, []domain.Marker)
}

// Options configures the API server.
type Options struct {
	Addr string
	// AdminToken unlocks contact details when sent in the X-Admin-Token
	// header. Empty disables admin access.
	AdminToken string
	// AccessLog receives one Apache combined-format line per request.
	// Nil disables access logging.
	AccessLog io.Writer
	Logger    *slog.Logger
}

// Server exposes the map API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	session    MapSession
	clusters   ClusterSource
	adminToken string
	logger     *slog.Logger
}

// NewServer creates the HTTP server and registers every route.
func NewServer(sess MapSession, clusters ClusterSource, opts Options) *Server {
	s := &Server{
		session:    sess,
		clusters:   clusters,
		adminToken: opts.AdminToken,
		logger:     opts.Logger,
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", sharedobs.LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/readyz", sharedobs.ReadinessHandler(sess)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", s.handleSession).Methods(http.MethodGet)
	api.HandleFunc("/markers", s.handleMarkers).Methods(http.MethodGet)
	api.HandleFunc("/filters/dates", s.handleSetDates).Methods(http.MethodPut)
	api.HandleFunc("/filters/dates/reset", s.handleResetDates).Methods(http.MethodPost)
	api.HandleFunc("/filters/categories/{key}", s.handleSetCategory).Methods(http.MethodPut)
	api.HandleFunc("/filters/shape", s.handleSetShape).Methods(http.MethodPut)
	api.HandleFunc("/filters/shape", s.handleClearShape).Methods(http.MethodDelete)
	api.HandleFunc("/geocode", s.handleGeocode).Methods(http.MethodPost)
	api.HandleFunc("/locate", s.handleLocate).Methods(http.MethodPost)
	api.HandleFunc("/view/recenter", s.handleRecenter).Methods(http.MethodPost)

	r.HandleFunc("/download_reports", s.handleDownload).Methods(http.MethodGet)

	var h http.Handler = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
		handlers.AllowedHeaders([]string{"Content-Type", adminTokenHeader}),
	)(r)
	if opts.AccessLog != nil {
		h = handlers.LoggingHandler(opts.AccessLog, h)
	}

	s.httpServer = &http.Server{
		Addr:         opts.Addr,
		Handler:      h,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
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
