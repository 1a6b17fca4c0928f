// Package server exposes the analyzer and the cipher over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"kasiski/internal/config"
	"kasiski/internal/health"
	"kasiski/internal/kasiski"
	"kasiski/internal/logging"
	"kasiski/internal/metrics"
	"kasiski/internal/ratelimit"
	"kasiski/internal/store"
)

const requestIDHeader = "X-Request-ID"

// Options configures a Server.
type Options struct {
	Config   config.ServerConfig
	Analyzer *kasiski.Analyzer
	// Store is optional; without it runs are not recorded.
	Store   *store.Store
	Logger  *logging.Logger
	// Metrics defaults to a fresh registry.
	Metrics *metrics.Analysis
	Version string
}

// Server is the HTTP analysis service.
type Server struct {
	cfg      config.ServerConfig
	engine   *gin.Engine
	analyzer atomic.Pointer[kasiski.Analyzer]
	store    *store.Store
	logger   *logging.Logger
	metrics  *metrics.Analysis
	checker  *health.Checker
	limiter  *ratelimit.Keyed
	version  string
}

// New builds the router. The analyzer can be swapped later with
// SetAnalyzer.
func New(opts Options) (*Server, error) {
	if opts.Analyzer == nil {
		return nil, errors.New("server: analyzer is required")
	}
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewAnalysis(nil)
	}

	s := &Server{
		cfg:     opts.Config,
		store:   opts.Store,
		logger:  opts.Logger.WithComponent("server"),
		metrics: opts.Metrics,
		checker: health.NewChecker(),
		version: opts.Version,
	}
	s.analyzer.Store(opts.Analyzer)
	s.registerChecks()

	if s.cfg.RateLimit > 0 {
		s.limiter = ratelimit.NewKeyed(s.cfg.RateLimit, s.cfg.RateBurst, 10*time.Minute)
	}

	corsConfig, err := s.corsConfig()
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(s.requestID())
	router.Use(cors.New(corsConfig))
	router.Use(s.limitBody())

	api := router.Group("/api/v1")
	{
		api.GET("/health", s.HealthCheck)
		api.GET("/metrics", gin.WrapH(s.metrics.Registry().HTTPHandler()))

		limited := api.Group("", s.rateLimit())
		limited.GET("/tables", s.Tables)
		limited.POST("/analyze", s.Analyze)
		limited.POST("/encode", s.Encode)
		limited.POST("/decode", s.Decode)

		history := limited.Group("/history")
		{
			history.GET("", s.History)
			history.GET("/:id", s.GetRun)
		}
	}

	s.engine = router
	return s, nil
}

func (s *Server) corsConfig() (cors.Config, error) {
	c := cors.DefaultConfig()
	if len(s.cfg.AllowOrigins) == 0 || slices.Contains(s.cfg.AllowOrigins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = s.cfg.AllowOrigins
	}
	c.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	c.AllowHeaders = []string{"Origin", "Content-Type", "Accept", requestIDHeader}
	c.ExposeHeaders = []string{requestIDHeader}
	if err := c.Validate(); err != nil {
		return c, fmt.Errorf("cors: %w", err)
	}
	return c, nil
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = s.logger.NewRequestID()
		}
		c.Header(requestIDHeader, id)
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), id))

		start := time.Now()
		c.Next()
		s.metrics.RequestsTotal.Inc()
		s.logger.WithRequestID(id).Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) limitBody() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.MaxBodyBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes)
		}
		c.Next()
	}
}

// rateLimit throttles each client address. It is a no-op when rate
// limiting is disabled.
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		ip := c.ClientIP()
		if !s.limiter.Allow(ip) {
			s.metrics.RateLimitedTotal.Inc()
			retry := s.limiter.RetryAfter(ip)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
				Error: ratelimit.ErrRateLimited.Error(),
			})
			return
		}
		c.Next()
	}
}

func (s *Server) registerChecks() {
	s.checker.RegisterFunc("analyzer", true, func(ctx context.Context) health.CheckResult {
		t := s.Analyzer().Table()
		if t.SelfCorrelation() <= 0 {
			return health.CheckResult{Status: health.StatusUnhealthy, Message: "empty frequency table " + t.Name}
		}
		return health.CheckResult{Status: health.StatusHealthy, Message: "table " + t.Name}
	})
	if s.store != nil {
		s.checker.RegisterFunc("history", false, health.PingCheck(s.store.Ping))
	}
}

// Metrics returns the service metrics.
func (s *Server) Metrics() *metrics.Analysis {
	return s.metrics
}

// Close releases background resources. ListenAndServe calls it on exit.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Close()
	}
}

// Analyzer returns the analyzer currently serving requests.
func (s *Server) Analyzer() *kasiski.Analyzer {
	return s.analyzer.Load()
}

// SetAnalyzer replaces the analyzer for subsequent requests.
func (s *Server) SetAnalyzer(a *kasiski.Analyzer) {
	if a != nil {
		s.analyzer.Store(a)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on the configured address until ctx is canceled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	defer s.Close()

	timeout := time.Duration(s.cfg.ReadTimeoutSec) * time.Second
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.engine,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
