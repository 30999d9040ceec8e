package server

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"arview/internal/ratelimit"
	"arview/internal/util"
	"arview/pkg/domain"
	"arview/services/api/internal/app"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	RedisAddr     string
	RedisPassword string

	// TokenName is the session cookie name.
	TokenName string
	// SecureCookies switches cookies to Secure + SameSite=None.
	SecureCookies bool

	CORSOrigins    []string
	TrustedProxies []string

	ScanRateLimitPerMinute     int
	LoginRateLimitPerMinute    int
	RegisterRateLimitPerMinute int
}

// Server exposes the HTTP API.
type Server struct {
	app           *app.App
	mux           *http.ServeMux
	tokenName     string
	secureCookies bool
	corsOrigins   []string
	trusted       *util.TrustedProxies

	scanLimiter     *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
	registerLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("app is required")
	}
	if cfg.TokenName == "" {
		cfg.TokenName = "user_token"
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	newLimiter := func(name string, limit, def int) (*ratelimit.FixedWindowLimiter, error) {
		if limit <= 0 {
			limit = def
		}
		l, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, ratelimit.DefaultPrefix+":"+name, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return l, nil
	}
	s := &Server{
		app:           cfg.App,
		mux:           http.NewServeMux(),
		tokenName:     cfg.TokenName,
		secureCookies: cfg.SecureCookies,
		corsOrigins:   cfg.CORSOrigins,
		trusted:       trusted,
	}
	if s.scanLimiter, err = newLimiter("scan", cfg.ScanRateLimitPerMinute, 120); err != nil {
		return nil, err
	}
	if s.loginLimiter, err = newLimiter("login", cfg.LoginRateLimitPerMinute, 10); err != nil {
		return nil, err
	}
	if s.registerLimiter, err = newLimiter("register", cfg.RegisterRateLimitPerMinute, 5); err != nil {
		return nil, err
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	var h http.Handler = s.mux
	h = util.WithCORS(s.corsOrigins, h)
	h = util.WithSecurityHeaders(h)
	h = util.WithRequestLog("api", h)
	return util.WithRequestID(h)
}

// Close releases limiter connections.
func (s *Server) Close() error {
	return errors.Join(s.scanLimiter.Close(), s.loginLimiter.Close(), s.registerLimiter.Close())
}

type route struct {
	pattern string
	handler http.Handler
}

func (s *Server) routeTable() []route {
	public := func(pattern string, h http.HandlerFunc) route { return route{pattern, h} }
	private := func(pattern string, h authHandler) route { return route{pattern, s.authenticated(h)} }
	return []route{
		public("GET /healthz", s.handleHealth),

		public("POST /auth/register", s.handleRegister),
		public("POST /auth/login", s.handleLogin),
		private("POST /auth/logout", s.handleLogout),
		private("GET /auth/me", s.handleMe),

		private("POST /items", s.handleCreateItem),
		private("GET /items", s.handleListItems),
		public("GET /items/slug/{slug}", s.handleItemBySlug),
		private("GET /items/{id}", s.handleGetItem),
		private("PATCH /items/{id}", s.handleUpdateItem),
		private("DELETE /items/{id}", s.handleDeleteItem),

		public("POST /analytics/scan", s.handleRecordScan),
		public("PATCH /analytics/scan/duration", s.handleUpdateDuration),
		private("GET /analytics/items/{id}", s.handleItemAnalytics),
		private("GET /analytics/overview", s.handleOverview),

		private("GET /qr/items/{id}", s.handleItemQR),
		private("GET /qr/items/{id}/preview", s.handleItemQRPreview),

		private("POST /upload/presigned-url", s.handlePresign),
		private("POST /upload/direct", s.handleDirectUpload),
		private("DELETE /upload/{key...}", s.handleDeleteUpload),
	}
}

func (s *Server) routes() {
	for _, rt := range s.routeTable() {
		s.mux.Handle(rt.pattern, rt.handler)
	}
}

// Routes lists the "METHOD /path" patterns the server registers.
func Routes() []string {
	var s Server
	table := s.routeTable()
	out := make([]string, 0, len(table))
	for _, rt := range table {
		out = append(out, rt.pattern)
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := s.sessionToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "AUTH_INVALID_TOKEN", "unauthorized")
			return
		}
		user, err := s.app.UserFromToken(r.Context(), token)
		if err != nil {
			s.audit(r, "api.authorize", "fail", "reason", err.Error())
			writeError(w, http.StatusUnauthorized, "AUTH_INVALID_TOKEN", "unauthorized")
			return
		}
		ctx := util.ContextWithLogger(r.Context(), util.LoggerFromContext(r.Context()).With("user_id", user.ID))
		next(w, r.WithContext(ctx), user)
	})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", s.clientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	logger := util.LoggerFromContext(r.Context())
	if outcome == "success" {
		logger.Info("security_event", logAttrs...)
		return
	}
	logger.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	d := limiter.Check(r.Context(), s.clientIP(r))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	if d.Allowed {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
	writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", msg)
	return false
}

func (s *Server) clientIP(r *http.Request) string {
	return util.ClientIP(r, s.trusted)
}

func logFromRequest(r *http.Request) *slog.Logger {
	return util.LoggerFromContext(r.Context())
}
