// =============================================================================
// Order Report Generator - HTTP Server
// =============================================================================
//
// The server exposes both tools over HTTP:
//   - the report generator: upload an export, list its dates, build reports
//   - the task tracker: CRUD on projects and tasks, summary, weekly report
//
// ROUTES:
//   GET    /healthz
//   GET    /metrics
//   GET    /api/platforms
//   POST   /api/uploads
//   GET    /api/uploads/:id/dates
//   POST   /api/uploads/:id/report
//   DELETE /api/uploads/:id
//   GET    /api/data
//   GET    /api/summary
//   GET    /api/weekly-report
//   POST   /api/projects
//   PUT    /api/projects/:id
//   DELETE /api/projects/:id
//   POST   /api/tasks/:id          (id is the project id)
//   PUT    /api/tasks/:id
//   DELETE /api/tasks/:id
//   POST   /api/weekly-log
//
// =============================================================================

package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ginjaninja78/order-report/internal/config"
	"github.com/ginjaninja78/order-report/internal/metrics"
	"github.com/ginjaninja78/order-report/internal/session"
	"github.com/ginjaninja78/order-report/internal/tracker"
)

// Server is the HTTP front of the report generator and the tracker.
type Server struct {
	router   *gin.Engine
	cfg      *config.MainConfig
	rules    map[string]*config.PlatformRule
	sessions session.Store
	tracker  *tracker.Store
	metrics  *metrics.Registry
	log      logrus.FieldLogger
	now      func() time.Time
}

// Deps are the collaborators of a Server.
type Deps struct {
	Config   *config.MainConfig
	Rules    map[string]*config.PlatformRule
	Sessions session.Store
	Tracker  *tracker.Store
	Metrics  *metrics.Registry
	Log      logrus.FieldLogger
}

// New creates a server and registers its routes.
func New(d Deps) *Server {
	if !d.Config.Server.DevMode {
		gin.SetMode(gin.ReleaseMode)
	}

	rules := config.DefaultPlatformRules()
	for id, r := range d.Rules {
		rules[id] = r
	}

	m := d.Metrics
	if m == nil {
		m = metrics.NewRegistry()
	}

	s := &Server{
		router:   gin.New(),
		cfg:      d.Config,
		rules:    rules,
		sessions: d.Sessions,
		tracker:  d.Tracker,
		metrics:  m,
		log:      d.Log,
		now:      time.Now,
	}
	s.router.MaxMultipartMemory = int64(d.Config.Server.MaxUploadMB) << 20
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.Use(gin.Recovery(), s.requestLogger())

	if s.cfg.Server.DevMode {
		// CORS for a front end served from another origin.
		s.router.Use(func(c *gin.Context) {
			c.Header("Access-Control-Allow-Origin", "*")
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type")
			if c.Request.Method == http.MethodOptions {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Next()
		})
	}

	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.router.Group("/api")
	{
		api.GET("/platforms", s.listPlatforms)

		api.POST("/uploads", s.createUpload)
		api.GET("/uploads/:id/dates", s.uploadDates)
		api.POST("/uploads/:id/report", s.buildReport)
		api.DELETE("/uploads/:id", s.deleteUpload)

		api.GET("/data", s.trackerData)
		api.GET("/summary", s.trackerSummary)
		api.GET("/weekly-report", s.weeklyReport)
		api.POST("/projects", s.createProject)
		api.PUT("/projects/:id", s.updateProject)
		api.DELETE("/projects/:id", s.deleteProject)
		api.POST("/tasks/:id", s.createTask)
		api.PUT("/tasks/:id", s.updateTask)
		api.DELETE("/tasks/:id", s.deleteTask)
		api.POST("/weekly-log", s.addLogEntry)
	}
}

// requestLogger logs each request and counts it by route and status.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		s.metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()

		entry := s.log.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"route":    route,
			"status":   status,
			"duration": time.Since(start).String(),
		})
		if status >= http.StatusInternalServerError {
			entry.Error("request failed")
		} else {
			entry.Debug("request")
		}
	}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Run serves until ctx is cancelled, then shuts down gracefully.
// Expired sessions are swept every sweepEvery while the server runs; zero
// leaves cleanup to the clients.
func (s *Server) Run(ctx context.Context, sweepEvery time.Duration) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go s.sweep(ctx, sweepEvery)

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("address", srv.Addr).Info("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.log.Info("shutting down server")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) sweep(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ExpireSessions()
		}
	}
}

// ExpireSessions removes sessions older than the configured TTL.
func (s *Server) ExpireSessions() int {
	n, err := s.sessions.Expire(s.now().Add(-s.cfg.Session.TTL))
	if err != nil {
		s.log.WithError(err).Warn("session sweep failed")
		return 0
	}
	if n > 0 {
		s.log.WithField("expired", n).Info("expired upload sessions")
	}
	s.updateSessionGauge()
	return n
}

func (s *Server) updateSessionGauge() {
	if n, err := s.sessions.Len(); err == nil {
		s.metrics.Sessions.Set(float64(n))
	}
}
