package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"schedcal/internal/cache"
	appLog "schedcal/internal/log"
	"schedcal/internal/metrics"
	"schedcal/internal/model"
	"schedcal/internal/schedule"
)

// Aggregator is the part of schedule.Engine the handlers use.
type Aggregator interface {
	Aggregate(ctx context.Context, sets []schedule.OwnerSet, w model.Window) (model.AggregatedResult, error)
	ProposeFreeSlots(ctx context.Context, sets []schedule.OwnerSet, days []schedule.Day) (map[string][]model.FreeInterval, error)
}

// Directory resolves group membership. Unknown groups yield
// store.ErrGroupNotFound.
type Directory interface {
	GroupMembers(ctx context.Context, groupID int64) ([]int64, error)
}

// Options holds the optional collaborators of a Server.
type Options struct {
	// Cache stores rendered responses for CacheTTL. Nil or a zero TTL
	// disables caching.
	Cache    cache.Store
	CacheTTL time.Duration

	Metrics metrics.Sink

	// MetricsHandler, if set, is mounted at MetricsPath.
	MetricsHandler http.Handler
	MetricsPath    string

	// ServiceName labels request spans.
	ServiceName string
}

// Server provides the schedule HTTP API.
type Server struct {
	engine   Aggregator
	dir      Directory
	cache    cache.Store
	cacheTTL time.Duration
	metrics  metrics.Sink
	router   *gin.Engine
}

func NewServer(engine Aggregator, dir Directory, opts Options) *Server {
	s := &Server{
		engine:   engine,
		dir:      dir,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		metrics:  opts.Metrics,
	}
	if s.metrics == nil {
		s.metrics = metrics.NewNoopSink()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "schedcal"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(opts.ServiceName))
	r.Use(requestID())
	r.Use(s.observe())

	s.router = r
	s.registerRoutes(opts)
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes(opts Options) {
	s.router.GET("/health", s.handleHealth)

	api := s.router.Group("/api/groups/:group_id")
	api.GET("/calendar", s.handleCalendar)
	api.GET("/calendar.ics", s.handleCalendarICS)
	api.GET("/proposal", s.handleProposal)

	if opts.MetricsHandler != nil {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		s.router.GET(path, gin.WrapH(opts.MetricsHandler))
	}
}

// StartServer serves h on listen until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, listen string, h http.Handler) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		appLog.Info("shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}
