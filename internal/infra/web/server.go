package web

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"device-activation/internal/usecase"
)

type Server struct {
	activationUC usecase.ActivationUseCase
	adminUC      usecase.AdminUseCase
	configUC     usecase.ConfigUseCase
	auth         *AuthManager
	limiter      RateLimiter
	rateLimit    int
	rateWindow   time.Duration
	allowedIPs   []string
	log          *zerolog.Logger
}

func NewServer(
	activationUC usecase.ActivationUseCase,
	adminUC usecase.AdminUseCase,
	configUC usecase.ConfigUseCase,
	auth *AuthManager,
	limiter RateLimiter,
	rateLimit int,
	rateWindow time.Duration,
	allowedIPs []string,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		activationUC: activationUC,
		adminUC:      adminUC,
		configUC:     configUC,
		auth:         auth,
		limiter:      limiter,
		rateLimit:    rateLimit,
		rateWindow:   rateWindow,
		allowedIPs:   allowedIPs,
		log:          logger,
	}
}

// RegisterRoutes sets up the routing for the verification and admin APIs.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	base := []Middleware{Recover(s.log), TraceID(), RequestLog(s.log), Timeout(10 * time.Second)}

	// Device-facing endpoint: intentionally unauthenticated.
	mux.Handle("/api/verify", Chain(
		method(http.MethodPost, verifyHandler(s.activationUC, s.limiter, s.rateLimit, s.rateWindow)),
		base...,
	))

	// Admin surface: IP allowlist first, then (except login) a session check.
	admin := append(append([]Middleware{}, base...), IPAllowlist(s.allowedIPs, s.log))
	authed := append(append([]Middleware{}, admin...), RequireAdmin(s.auth))

	mux.Handle("/api/admin/login", Chain(method(http.MethodPost, loginHandler(s.adminUC, s.auth)), admin...))
	mux.Handle("/api/admin/logout", Chain(method(http.MethodPost, logoutHandler(s.auth)), authed...))
	mux.Handle("/api/admin/change-password", Chain(method(http.MethodPost, changePasswordHandler(s.adminUC, s.auth)), authed...))

	mux.Handle("/api/admin/codes/generate", Chain(method(http.MethodPost, codesGenerateHandler(s.activationUC)), authed...))
	mux.Handle("/api/admin/codes/list", Chain(method(http.MethodGet, codesListHandler(s.activationUC)), authed...))
	mux.Handle("/api/admin/codes/stats", Chain(method(http.MethodGet, codesStatsHandler(s.activationUC)), authed...))
	mux.Handle("/api/admin/codes/cleanup", Chain(codesCleanupHandler(s.activationUC), authed...))
	mux.Handle("/api/admin/codes/delete", Chain(method(http.MethodDelete, codesDeleteHandler(s.activationUC)), authed...))

	mux.Handle("/api/admin/system-config", Chain(systemConfigHandler(s.configUC), authed...))

	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

// method rejects requests whose verb does not match.
func method(verb string, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != verb {
			writeJSON(w, http.StatusMethodNotAllowed, errorResponse("method not allowed"))
			return
		}
		next(w, r)
	})
}
