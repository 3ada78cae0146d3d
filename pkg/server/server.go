// Package server exposes the report projections over a read-only HTTP
// API. Every request resolves and loads its trace fresh; the only state
// shared between requests is the on-disk extraction cache, so concurrent
// reads are safe without locking.
package server

import (
	"context"
	stdliberrors "errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tracehound/tracehound/pkg/config"
	"github.com/tracehound/tracehound/pkg/errors"
	"github.com/tracehound/tracehound/pkg/logging"
)

// Config holds the projection server settings.
type Config struct {
	// Bind is the host:port to listen on. Defaults to the loopback bind.
	Bind string

	// AuthToken authenticates bearer requests when set.
	AuthToken string

	// RequireToken rejects unauthenticated requests. Mandatory for
	// non-loopback binds.
	RequireToken bool

	// PublicMetrics exposes /metrics without a token.
	PublicMetrics bool

	// RateLimitRPS caps request throughput across all clients.
	// Zero or negative disables limiting.
	RateLimitRPS   float64
	RateLimitBurst int

	// ResultsDir is searched by the trace listing endpoint.
	ResultsDir string

	// StaleAfter flags old archives in the listing.
	StaleAfter time.Duration

	Version string

	Logger *logging.Logger
	Access *logging.AccessLogger
}

// Server serves trace report projections over HTTP.
type Server struct {
	cfg        Config
	logger     *logging.Logger
	access     *logging.AccessLogger
	limiter    *rate.Limiter
	httpServer *http.Server
}

// NewServer creates a projection server from the given config.
func NewServer(cfg Config) *Server {
	if strings.TrimSpace(cfg.Bind) == "" {
		cfg.Bind = config.DefaultServerBind
	}
	if strings.TrimSpace(cfg.Version) == "" {
		cfg.Version = "dev"
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewConsoleLogger(os.Stderr)
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), burst)
	}

	return &Server{
		cfg:     cfg,
		logger:  logger,
		access:  cfg.Access,
		limiter: limiter,
	}
}

// Start binds the listener and serves until ctx is canceled or the
// listener fails. Shutdown is graceful with a five second drain.
func (s *Server) Start(ctx context.Context) error {
	if err := s.validateStartupConfig(); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", s.cfg.Bind)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServerBind, "failed to bind listener").
			WithContext("bind", s.cfg.Bind)
	}

	// H2C lets dashboards behind reverse proxies speak HTTP/2 cleartext.
	h2s := &http2.Server{}
	s.httpServer = &http.Server{
		Handler:           h2c.NewHandler(s.routes(), h2s),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	_ = s.logger.Info(logging.CategoryServer, "listening",
		fmt.Sprintf("serving trace reports on http://%s", listener.Addr()),
		map[string]any{"bind": listener.Addr().String(), "version": s.cfg.Version})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.httpServer.Serve(listener); err != nil && !stdliberrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.logger.Info(logging.CategoryServer, "shutdown", "draining connections", nil)
		return s.httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// validateStartupConfig refuses configurations that would expose the
// trace filesystem to the network unauthenticated.
func (s *Server) validateStartupConfig() error {
	if s.cfg.RequireToken && strings.TrimSpace(s.cfg.AuthToken) == "" {
		return errors.New(errors.ErrCodeServerBind, "require_token is set but no auth token is configured").
			WithRemediation("set server.auth_token in the config file or TRACEHOUND_AUTH_TOKEN in the environment")
	}
	if !config.IsLoopbackBindAddress(s.cfg.Bind) && !s.cfg.RequireToken {
		return errors.New(errors.ErrCodeServerBind,
			fmt.Sprintf("refusing to bind to %q without token auth", s.cfg.Bind)).
			WithContext("bind", s.cfg.Bind).
			WithRemediation("bind a loopback address, or pass --require-token with an auth token")
	}
	return nil
}

func (s *Server) routes() http.Handler {
	router := chi.NewRouter()
	router.Use(s.requestIDMiddleware)
	router.Use(s.securityHeadersMiddleware)
	router.Use(s.rateLimitMiddleware)
	router.Use(s.accessLogMiddleware)

	router.Get("/healthz", s.handleHealthz)
	router.Get("/metrics", s.handleMetrics)

	api := chi.NewRouter()
	api.Get("/traces", s.handleTraces)
	api.Get("/report/{view}", s.handleReport)
	api.Get("/diagnose", s.handleDiagnose)
	api.Get("/screenshot", s.handleScreenshot)
	api.Get("/resource", s.handleResource)
	router.Route("/api", func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Mount("/", api)
	})

	return router
}

// authorize validates the request's bearer token, if any. Requests
// without a token pass only when tokens are not required, or when the
// path is explicitly public.
func (s *Server) authorize(r *http.Request) bool {
	token := extractBearerToken(r)
	if token != "" {
		return s.cfg.AuthToken != "" && token == s.cfg.AuthToken
	}
	if s.cfg.RequireToken {
		return s.isUnauthenticatedEndpoint(r.URL.Path)
	}
	return true
}

// isUnauthenticatedEndpoint returns true for endpoints that don't require auth.
func (s *Server) isUnauthenticatedEndpoint(path string) bool {
	switch strings.TrimSpace(path) {
	case "/healthz":
		return true
	case "/metrics":
		return s.cfg.PublicMetrics
	default:
		return false
	}
}

func extractBearerToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		return strings.TrimSpace(authHeader[len("Bearer "):])
	}
	return ""
}
