package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"spendlens/internal/analysis"
	"spendlens/internal/costcontrol"
	"spendlens/internal/dataset"
	logger "spendlens/internal/log"
	"spendlens/internal/metrics"
	"spendlens/internal/middleware/ratelimit"
	"spendlens/internal/middleware/security"
	"spendlens/internal/middleware/trace"
	appweb "spendlens/web"
)

// LoadFunc produces a fresh analysis, typically by re-reading the dataset.
type LoadFunc func(ctx context.Context) (*analysis.Result, error)

// Pinger is a dependency /readyz checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configure the dashboard server. Only Addr is required.
type Options struct {
	Addr string
	// Load is called by Reload. Without it the server only shows results
	// handed to SetResult.
	Load LoadFunc
	// Costs backs /api/costs and /api/alerts.
	Costs *costcontrol.Manager
	// Storage is pinged by /readyz.
	Storage   Pinger
	RateLimit ratelimit.Config
	Logger    *logger.Logger
}

// Server serves the dashboard for the most recent analysis.
type Server struct {
	http.Server
	templates *template.Template
	load      LoadFunc
	costs     *costcontrol.Manager
	storage   Pinger
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	tracer    *trace.Middleware
	started   time.Time

	mu       sync.RWMutex
	result   *analysis.Result
	loadErr  error
	loadedAt time.Time

	reloadMu     sync.Mutex
	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates.
func NewServer(opts Options) *Server {
	l := opts.Logger
	if l == nil {
		l = logger.New(logger.DefaultConfig())
	}
	l = l.WithComponent(logger.ComponentHTTP)

	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		load:     opts.Load,
		costs:    opts.Costs,
		storage:  opts.Storage,
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(),
		started:  time.Now(),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP)

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", logger.FieldComponent, logger.ComponentHTTP, logger.FieldError, err)
	}
	s.templates = t

	app := http.NewServeMux()
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		app.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", logger.FieldComponent, logger.ComponentHTTP, logger.FieldError, err)
	}
	app.HandleFunc("GET /{$}", s.handleIndex)
	app.HandleFunc("GET /api/summary", s.withResult(s.handleSummary))
	app.HandleFunc("GET /api/categories", s.withResult(s.handleCategories))
	app.HandleFunc("GET /api/companies", s.withResult(s.handleCompanies))
	app.HandleFunc("GET /api/vendors", s.withResult(s.handleVendors))
	app.HandleFunc("GET /api/benchmarks", s.withResult(s.handleBenchmarks))
	app.HandleFunc("GET /api/recommendations", s.withResult(s.handleRecommendations))
	app.HandleFunc("GET /api/trends", s.withResult(s.handleTrends))
	app.HandleFunc("GET /api/costs", s.handleCosts)
	app.HandleFunc("GET /api/alerts", s.handleAlerts)
	app.HandleFunc("POST /api/reload", s.handleReload)

	// Probes and scrapes bypass the rate limit.
	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("GET /metrics", metrics.Handler())
	root.Handle("/", s.limiter.Middleware(s.detector.ExtractClientIP, nil)(s.detector.Middleware(app)))

	var h http.Handler = root
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = logger.Middleware(l, trace.RequestID)(h)
	h = s.tracer.Middleware(h)
	s.Handler = h

	return s
}

// SetResult replaces the served analysis.
func (s *Server) SetResult(res *analysis.Result) {
	s.mu.Lock()
	s.result = res
	s.loadErr = nil
	s.loadedAt = time.Now()
	s.mu.Unlock()
}

// Result returns the served analysis, or nil before the first load.
func (s *Server) Result() *analysis.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// ErrNoLoader is returned by Reload when the server was built without Options.Load.
var ErrNoLoader = errors.New("no loader configured")

// Reload runs the loader and swaps in its result. A failed reload keeps the
// previous result and is reported by /readyz. Concurrent reloads are serialized.
func (s *Server) Reload(ctx context.Context) error {
	if s.load == nil {
		return ErrNoLoader
	}
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	start := time.Now()
	res, err := s.load(ctx)
	if err != nil {
		s.mu.Lock()
		s.loadErr = err
		s.mu.Unlock()
		slog.ErrorContext(ctx, "Dashboard reload failed",
			logger.FieldComponent, logger.ComponentHTTP,
			logger.FieldError, err)
		return fmt.Errorf("reload analysis: %w", err)
	}
	s.SetResult(res)
	slog.InfoContext(ctx, "Dashboard reloaded",
		logger.FieldComponent, logger.ComponentHTTP,
		logger.FieldRunID, res.RunID,
		"invoices", res.InvoiceCount,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// Watch reloads whenever the dataset file changes. It blocks until ctx is done.
func (s *Server) Watch(ctx context.Context, datasetPath string) error {
	return dataset.Watch(ctx, datasetPath, dataset.DefaultDebounce, func() {
		slog.InfoContext(ctx, "Dataset changed, reloading",
			logger.FieldComponent, logger.ComponentDataset,
			"path", datasetPath)
		_ = s.Reload(ctx)
	})
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) state() (*analysis.Result, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, s.loadedAt, s.loadErr
}
