// Package web serves the public portfolio site, its JSON API, the beacon
// endpoints and the admin CMS.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lukasito25/portfolio/internal/analytics"
	"github.com/lukasito25/portfolio/internal/auth"
	"github.com/lukasito25/portfolio/internal/chat"
	"github.com/lukasito25/portfolio/internal/config"
	"github.com/lukasito25/portfolio/internal/contact"
	"github.com/lukasito25/portfolio/internal/content"
	"github.com/lukasito25/portfolio/internal/logging"
	"github.com/lukasito25/portfolio/internal/metrics"
	"github.com/lukasito25/portfolio/internal/ratelimit"
)

const (
	maxBodySize    = 2 << 20 // 2MB; post bodies are capped at 1MB by validation
	maxBeaconSize  = 8 << 10
	janitorEvery   = time.Hour
	repoStatsWait  = 2 * time.Second
	visitorCookie  = "pv_vid"
	visitorMaxAge  = 365 * 24 * 60 * 60
	blogPageSize   = 10
	adminPageSize  = 50
	defaultDays    = 30
	maxReportDays  = 365
	dashboardLeads = 5
)

// Pinger reports database health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the services the server wires into routes.
type Deps struct {
	Config    *config.Config
	Log       *zap.Logger
	Metrics   *metrics.Metrics
	DB        Pinger
	Content   *content.Service
	RepoStats *content.RepoStatsClient
	Auth      *auth.Service
	Analytics *analytics.Tracker
	Contact   *contact.Service
	Chat      *chat.Service
}

// Server is the portfolio web server
type Server struct {
	cfg       *config.Config
	log       *zap.Logger
	metrics   *metrics.Metrics
	db        Pinger
	content   *content.Service
	repoStats *content.RepoStatsClient
	auth      *auth.Service
	analytics *analytics.Tracker
	contact   *contact.Service
	chat      *chat.Service

	cookie        auth.Cookie
	loginLimiter  *ratelimit.Limiter
	contactLimit  *ratelimit.Limiter
	chatLimiter   *ratelimit.Limiter
	beaconLimiter *ratelimit.Limiter
	views         *views
	router        *gin.Engine
}

// NewServer creates a new web server
func NewServer(d Deps) (*Server, error) {
	if d.Config == nil || d.Content == nil || d.Auth == nil || d.Analytics == nil || d.Contact == nil || d.Chat == nil {
		return nil, errors.New("web: missing dependency")
	}
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}

	v, err := loadViews()
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(d.Config.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid trusted proxies: %w", err)
	}

	s := &Server{
		cfg:           d.Config,
		log:           d.Log,
		metrics:       d.Metrics,
		db:            d.DB,
		content:       d.Content,
		repoStats:     d.RepoStats,
		auth:          d.Auth,
		analytics:     d.Analytics,
		contact:       d.Contact,
		chat:          d.Chat,
		cookie:        auth.Cookie{Name: d.Config.Auth.CookieName, Secure: d.Config.Auth.SecureCookie},
		loginLimiter:  ratelimit.PerMinute(d.Config.Auth.LoginRatePerMinute),
		contactLimit:  ratelimit.PerHour(d.Config.Contact.RatePerHour),
		chatLimiter:   ratelimit.PerMinute(d.Config.Chat.RatePerMinute),
		beaconLimiter: ratelimit.PerMinute(120),
		views:         v,
		router:        router,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router
	r.Use(logging.Recovery(s.log), logging.Gin(s.log), s.metrics.Gin(), securityHeaders(s.cfg.IsProduction()), limitBody(maxBodySize))

	r.StaticFS("/static", staticFS())
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	r.NoRoute(s.handleNotFound)

	// Web routes
	r.GET("/", s.handleHome)
	r.GET("/about", s.handleAbout)
	r.GET("/skills", s.handleSkills)
	r.GET("/work", s.handleWork)
	r.GET("/work/:slug", s.handleProject)
	r.GET("/blog", s.handleBlog)
	r.GET("/blog/:slug", s.handlePost)
	r.GET("/contact", s.handleContactForm)
	r.POST("/contact", s.handleContactSubmit)

	// API routes
	api := r.Group("/api")
	{
		api.GET("/projects", s.handleAPIProjects)
		api.GET("/projects/:slug", s.handleAPIProject)
		api.GET("/projects/:slug/stats", s.handleAPIProjectStats)
		api.GET("/posts", s.handleAPIPosts)
		api.GET("/posts/:slug", s.handleAPIPost)
		api.GET("/tags", s.handleAPITags)
		api.POST("/contact", ratelimit.Middleware(s.contactLimit, ratelimit.ByClientIP), s.handleAPIContact)
		api.GET("/chat", s.handleAPIChatStatus)
		api.POST("/chat", ratelimit.Middleware(s.chatLimiter, ratelimit.ByClientIP), s.handleAPIChat)

		beacon := api.Group("/analytics", ratelimit.Middleware(s.beaconLimiter, ratelimit.ByClientIP))
		beacon.POST("/pageview", s.handleBeaconPageView)
		beacon.POST("/engagement", s.handleBeaconEngagement)
		beacon.POST("/event", s.handleBeaconEvent)
	}

	// Admin pages
	r.GET("/admin/login", s.handleLoginForm)
	r.POST("/admin/login", s.handleLogin)
	admin := r.Group("/admin", s.auth.RequireAdmin(s.cookie), s.auth.RequireCSRF())
	{
		admin.POST("/logout", s.handleLogout)
		admin.GET("", s.handleDashboard)
		admin.GET("/projects", s.handleAdminProjects)
		admin.GET("/projects/new", s.handleAdminProjectNew)
		admin.POST("/projects", s.handleAdminProjectCreate)
		admin.GET("/projects/:id/edit", s.handleAdminProjectEdit)
		admin.POST("/projects/:id", s.handleAdminProjectUpdate)
		admin.POST("/projects/:id/delete", s.handleAdminProjectDelete)
		admin.GET("/posts", s.handleAdminPosts)
		admin.GET("/posts/new", s.handleAdminPostNew)
		admin.POST("/posts", s.handleAdminPostCreate)
		admin.GET("/posts/:id/edit", s.handleAdminPostEdit)
		admin.POST("/posts/:id", s.handleAdminPostUpdate)
		admin.POST("/posts/:id/delete", s.handleAdminPostDelete)
		admin.GET("/messages", s.handleAdminMessages)
		admin.POST("/messages/:id/read", s.handleAdminMessageRead)
		admin.POST("/messages/:id/delete", s.handleAdminMessageDelete)
		admin.GET("/analytics", s.handleAdminAnalytics)
	}

	// Admin API
	adminAPI := r.Group("/api/admin", s.auth.RequireAdmin(s.cookie), s.auth.RequireCSRF())
	{
		adminAPI.GET("/projects", s.handleAdminAPIProjects)
		adminAPI.POST("/projects", s.handleAdminAPIProjectCreate)
		adminAPI.GET("/projects/:id", s.handleAdminAPIProject)
		adminAPI.PUT("/projects/:id", s.handleAdminAPIProjectUpdate)
		adminAPI.DELETE("/projects/:id", s.handleAdminAPIProjectDelete)
		adminAPI.GET("/posts", s.handleAdminAPIPosts)
		adminAPI.POST("/posts", s.handleAdminAPIPostCreate)
		adminAPI.GET("/posts/:id", s.handleAdminAPIPost)
		adminAPI.PUT("/posts/:id", s.handleAdminAPIPostUpdate)
		adminAPI.DELETE("/posts/:id", s.handleAdminAPIPostDelete)
		adminAPI.GET("/messages", s.handleAdminAPIMessages)
		adminAPI.GET("/analytics/summary", s.handleAdminAPISummary)
		adminAPI.GET("/analytics/leads", s.handleAdminAPILeads)
	}
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully. The
// janitor runs alongside.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go s.runJanitor(janitorCtx, janitorEvery)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down", zap.Duration("timeout", s.cfg.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func (s *Server) runJanitor(ctx context.Context, every time.Duration) {
	s.Janitor(ctx)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Janitor(ctx)
		}
	}
}

// Janitor purges expired sessions and analytics past retention, and drops
// idle rate-limit buckets.
func (s *Server) Janitor(ctx context.Context) {
	if n, err := s.auth.PurgeExpired(ctx); err != nil {
		s.log.Error("failed to purge sessions", zap.Error(err))
	} else if n > 0 {
		s.log.Info("expired sessions purged", zap.Int64("count", n))
	}
	if _, err := s.analytics.Purge(ctx, s.cfg.Analytics.RetentionDays); err != nil {
		s.log.Error("failed to purge analytics", zap.Error(err))
	}
	for _, l := range []*ratelimit.Limiter{s.loginLimiter, s.contactLimit, s.chatLimiter, s.beaconLimiter} {
		l.Sweep()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.log.Error("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
