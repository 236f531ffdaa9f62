package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/justinas/alice"

	"billing/internal/cache"
	"billing/internal/core"
	"billing/internal/log"
	"billing/internal/middleware/ratelimit"
	"billing/internal/middleware/security"
	"billing/internal/middleware/trace"
	"billing/internal/services"
	appweb "billing/web"
)

const (
	defaultViewCacheSize = 128
	defaultViewCacheTTL  = 5 * time.Minute
	readinessTimeout     = 5 * time.Second
)

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server serves the invoice UI on top of an InvoiceService.
type Server struct {
	http.Server

	svc       *services.InvoiceService
	templates *template.Template
	logger    *log.Logger

	viewCache    *cache.LRUCache[[]core.Invoice]
	cacheManager *cache.Manager

	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	securityDetector *security.Detector
	readiness        []ReadinessCheck
	publisherHealthy func() bool

	startedAt       time.Time
	invoicesSaved   atomic.Int64
	invoicesDeleted atomic.Int64
	registrations   atomic.Int64

	shutdownOnce sync.Once
}

type serverOptions struct {
	logger          *log.Logger
	rateLimit       ratelimit.Config
	cacheSize       int
	cacheTTL        time.Duration
	readiness       []ReadinessCheck
	trustedProxies  []string
	publisherHealth func() bool
}

type Option func(*serverOptions)

func WithLogger(l *log.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithRateLimit caps POST requests per client per minute.
func WithRateLimit(perMinute int) Option {
	return func(o *serverOptions) { o.rateLimit.RequestsPerMinute = perMinute }
}

// WithViewCache sizes the cache of filtered and sorted table views.
func WithViewCache(size int, ttl time.Duration) Option {
	return func(o *serverOptions) {
		o.cacheSize = size
		o.cacheTTL = ttl
	}
}

// WithReadinessCheck adds a dependency probe to /readyz.
func WithReadinessCheck(name string, check func(ctx context.Context) error) Option {
	return func(o *serverOptions) {
		o.readiness = append(o.readiness, ReadinessCheck{Name: name, Check: check})
	}
}

// WithTrustedProxies lets forwarded headers from these CIDRs name the client.
func WithTrustedProxies(cidrs ...string) Option {
	return func(o *serverOptions) { o.trustedProxies = append(o.trustedProxies, cidrs...) }
}

// WithPublisherHealth reports the event publisher's connection state in /metrics.
// Publishing is best effort, so it never affects readiness.
func WithPublisherHealth(healthy func() bool) Option {
	return func(o *serverOptions) { o.publisherHealth = healthy }
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run http.Server. Call Shutdown to stop its background goroutines.
func NewServer(addr string, svc *services.InvoiceService, opts ...Option) *Server {
	o := serverOptions{
		logger:    log.NewDiscard(),
		rateLimit: ratelimit.DefaultConfig(),
		cacheSize: defaultViewCacheSize,
		cacheTTL:  defaultViewCacheTTL,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cacheTTL <= 0 {
		o.cacheTTL = defaultViewCacheTTL
	}

	logger := o.logger.WithComponent(log.ComponentHTTP)
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		svc:              svc,
		logger:           logger,
		viewCache:        cache.NewLRUCache[[]core.Invoice](o.cacheSize, o.cacheTTL),
		cacheManager:     cache.NewManager(o.logger),
		rateLimiter:      ratelimit.NewLimiter(o.rateLimit),
		securityDetector: security.NewDetector(o.logger),
		readiness:        o.readiness,
		publisherHealthy: o.publisherHealth,
		startedAt:        time.Now(),
	}
	for _, cidr := range o.trustedProxies {
		if err := s.securityDetector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	s.traceMiddleware = trace.NewMiddleware(o.logger.WithComponent(log.ComponentTrace), s.securityDetector.ExtractClientIP)

	s.cacheManager.Register(s.viewCache)
	s.cacheManager.StartCleanup(max(o.cacheTTL, time.Minute))

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		o.logger.WithComponent(log.ComponentTemplate).Error("Failed parsing templates", log.FieldError, err)
	} else {
		s.templates = t
	}

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /invoices/table", s.handleInvoiceTable)
	mux.HandleFunc("GET /invoices/new", s.handleNewInvoice)
	mux.HandleFunc("POST /invoices", s.handleCreateInvoice)
	mux.HandleFunc("GET /invoices/{id}/edit", s.handleEditInvoice)
	mux.HandleFunc("POST /invoices/{id}", s.handleUpdateInvoice)
	mux.HandleFunc("GET /invoices/{id}/delete", s.handleConfirmDelete)
	mux.HandleFunc("POST /invoices/{id}/delete", s.handleDeleteInvoice)
	mux.HandleFunc("GET /register", s.handleRegisterPage)
	mux.HandleFunc("POST /register", s.handleRegister)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	chain := alice.New(
		log.Middleware(o.logger),
		s.traceMiddleware.Handler,
		log.RequestIDMiddleware(trace.ExtractRequestID),
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Handler,
		s.securityDetector.Handler,
		s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited),
	)
	s.Handler = chain.Then(mux)

	return s
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatMoney":   core.FormatMoney,
		"formatUpdated": formatUpdated,
		"statusClass": func(st core.Status) string {
			return "status-" + string(st)
		},
	}
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	NewHTMXResponse().
		Status(http.StatusTooManyRequests).
		TriggerErrorNotification("Too many requests. Please try again later.").
		BodyString("Rate limit exceeded. Please try again later.").
		Write(w)
}

// viewCacheKey ties a cached view to the store revision it was computed from.
func viewCacheKey(revision uint64, state core.ViewState) string {
	return fmt.Sprintf("%d|%s", revision, state.Key())
}

// Shutdown gracefully shuts down the server and cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
