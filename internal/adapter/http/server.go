package http

import (
	"context"
	"embed"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/county-factor-map/internal/domain"
	"github.com/couchcryptid/county-factor-map/internal/geometry"
	"github.com/couchcryptid/county-factor-map/internal/viewer"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed static
var staticFiles embed.FS

// MapService is the interactive map backend served over HTTP.
type MapService interface {
	CheckReadiness(ctx context.Context) error
	Factors() viewer.FactorList
	SelectFactor(ctx context.Context, code string) string
	Styles(factor string) ([]geometry.FeatureStyle, error)
	ActiveStyles() ([]geometry.FeatureStyle, error)
	GeoJSON() ([]byte, error)
	Detail(ctx context.Context, key domain.JoinKey) (domain.Detail, error)
	DetailAt(ctx context.Context, index int) (domain.Detail, bool, error)
	Locate(ctx context.Context, lat, lon float64) (domain.Detail, bool, error)
	Search(ctx context.Context, query string) (viewer.SearchResult, error)
	Summary() (domain.Summary, error)
	Export(w io.Writer) error
}

// PageConfig is handed to the browser page.
type PageConfig struct {
	TileURL       string `json:"tile_url"`
	SearchEnabled bool   `json:"search_enabled"`
}

// Server exposes the map page, the map API, and health, readiness, and
// metrics endpoints.
type Server struct {
	httpServer *http.Server
	svc        MapService
	page       PageConfig
	logger     *slog.Logger
}

// NewServer creates an HTTP server routing to svc.
func NewServer(addr string, svc MapService, page PageConfig, logger *slog.Logger) *Server {
	s := &Server{
		svc:    svc,
		page:   page,
		logger: logger,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(s.svc))
	r.Handle("/metrics", promhttp.Handler())

	assets, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err) // embedded directory is fixed at build time
	}
	r.Get("/", serveIndex(assets))
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(assets)))

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", s.handleConfig)
		r.Get("/factors", s.handleFactors)
		r.Get("/active-factor", s.handleGetActiveFactor)
		r.Put("/active-factor", s.handlePutActiveFactor)
		r.Get("/styles", s.handleStyles)
		r.Get("/geometry", s.handleGeometry)
		r.Get("/counties/{key}", s.handleCounty)
		r.Get("/counties/{key}/panel", s.handleCountyPanel)
		r.Get("/features/{index}", s.handleFeature)
		r.Get("/features/{index}/panel", s.handleFeaturePanel)
		r.Get("/locate", s.handleLocate)
		r.Get("/summary", s.handleSummary)
		r.Get("/export.xlsx", s.handleExport)
	})
	return r
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

func serveIndex(assets fs.FS) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.ServeFileFS(w, r, assets, "index.html")
	}
}

// requestLogger logs one line per request at debug level.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}
