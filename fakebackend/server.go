// Package fakebackend is an in-memory implementation of the library REST API, used by
// tests and for local development.
package fakebackend

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/bookclub-admin/internal/config"
	"github.com/jrsteele09/bookclub-admin/routes"
	"github.com/jrsteele09/bookclub-admin/server"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	// APIPrefix is where the REST API is mounted.
	APIPrefix = "/api"

	RefreshCookieName = "refreshToken"
)

// Server is the fake backend. Its zero value is not usable; create it with New.
type Server struct {
	env            string
	logger         zerolog.Logger
	now            func() time.Time
	allowedOrigins []string

	accounts *accountStore
	access   *accessTokens
	refresh  *refreshTokens
	resets   *resetTokens
	catalog  *catalog

	mu            sync.Mutex
	profileStatus int
	calls         map[string]int
}

type Option func(*Server)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithNow sets the clock used for token expiry, due dates and audit timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func WithAccessTokenExpiry(d time.Duration) Option {
	return func(s *Server) {
		s.access.expiry = d
	}
}

func WithRefreshTokenExpiry(d time.Duration) Option {
	return func(s *Server) {
		s.refresh.expiry = d
	}
}

// WithAllowedOrigins enables credentialed CORS for browser clients on these origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		s.allowedOrigins = append(s.allowedOrigins, origins...)
	}
}

// WithEnv sets the environment name used by the request logger.
func WithEnv(env string) Option {
	return func(s *Server) {
		s.env = env
	}
}

// WithConfig applies the backend settings from cfg.
func WithConfig(cfg config.BackendConfig) Option {
	return func(s *Server) {
		s.access.secret = []byte(cfg.GetTokenSecret())
		s.access.expiry = cfg.GetAccessTokenExpiry()
		s.refresh.expiry = cfg.GetRefreshTokenExpiry()
	}
}

// New creates an empty backend with defaults: 15 minute access tokens, 7 day refresh
// tokens.
func New(options ...Option) *Server {
	s := &Server{
		env:      "DEV",
		logger:   log.Logger,
		now:      time.Now,
		accounts: newAccountStore(),
		resets:   newResetTokens(),
		calls:    make(map[string]int),
	}
	clock := func() time.Time { return s.now() }
	s.access = &accessTokens{secret: []byte("fakebackend-secret"), expiry: 15 * time.Minute, now: clock}
	s.refresh = newRefreshTokens(7*24*time.Hour, clock)
	s.catalog = newCatalog(clock)

	for _, opt := range options {
		opt(s)
	}
	return s
}

// SeedLibrarian creates a librarian account directly, bypassing signup validation.
func (s *Server) SeedLibrarian(name, email, password string) error {
	_, err := s.accounts.create(name, email, password, s.now())
	if err != nil {
		return fmt.Errorf("[fakebackend.SeedLibrarian] %s: %w", name, err)
	}
	return nil
}

// Handler returns the HTTP handler with the API mounted under APIPrefix.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		server.RecoverMiddleware(s.logger),
		server.LoggingMiddleware(s.logger, s.env),
		server.CorsMiddleware(s.allowedOrigins),
	)
	r.Route(APIPrefix, func(r chi.Router) {
		r.Use(s.countCalls)

		r.Post(routes.APIAuthSignup, s.handleSignup)
		r.Post(routes.APIAuthLogin, s.handleLogin)
		r.Post(routes.APIAuthLogout, s.handleLogout)
		r.Post(routes.APIAuthRefreshToken, s.handleRefreshToken)
		r.Post(routes.APIAuthForgotPassword, s.handleForgotPassword)
		r.Post(routes.APIAuthResetPassword+"{token}", s.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(server.RequireAuth(s.verifyAccessToken))

			r.Get(routes.APIAuthMe, s.handleMe)
			r.Put(routes.APIAuthMe, s.handleUpdateMe)
			r.Put(routes.APIAuthChangePassword, s.handleChangePassword)

			r.Get(routes.APIBooks, s.handleListBooks)
			r.Post(routes.APIBooks, s.handleAddBook)
			r.Put(routes.APIBooks+"/{id}", s.handleEditBook)
			r.Delete(routes.APIBooks+"/{id}", s.handleRemoveBook)

			r.Get(routes.APIReaders, s.handleListReaders)
			r.Post(routes.APIReaders, s.handleAddReader)
			r.Put(routes.APIReaders+"/{id}", s.handleEditReader)
			r.Delete(routes.APIReaders+"/{id}", s.handleRemoveReader)

			r.Get(routes.APILending, s.handleListLending)
			r.Post(routes.APILending, s.handleLend)
			r.Get(routes.APILendingOver, s.handleOverdue)
			r.Get(routes.APILendingBook+"{id}", s.handleHistoryByBook)
			r.Get(routes.APILendingReader+"{id}", s.handleHistoryByReader)
			r.Put(routes.APILending+"/{id}/return", s.handleReturn)

			r.Get(routes.APIAuditLogs, s.handleAuditLogs)
			r.Post(routes.APISendOverdue, s.handleSendOverdue)
		})
	})
	return r
}

func (s *Server) verifyAccessToken(_ context.Context, token string) (string, error) {
	sub, err := s.access.verify(token)
	if err != nil {
		return "", err
	}
	if _, err := s.accounts.get(sub); err != nil {
		return "", err
	}
	return sub, nil
}

func (s *Server) countCalls(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + strings.TrimPrefix(r.URL.Path, APIPrefix)
		s.mu.Lock()
		s.calls[key]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// Calls returns how many times method path was requested; path is relative to
// APIPrefix, e.g. Calls("GET", "/auth/me").
func (s *Server) Calls(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method+" "+path]
}

// ResetCalls zeroes every call counter.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh tokens stay
// valid, so the next request can recover by refreshing.
func (s *Server) ExpireAccessTokens() {
	s.access.expireAll()
}

// RevokeRefreshTokens invalidates every refresh token, so the next refresh fails.
func (s *Server) RevokeRefreshTokens() {
	s.refresh.revokeAll()
}

// FailProfile makes GET /auth/me answer with status. Zero restores normal behaviour.
func (s *Server) FailProfile(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profileStatus = status
}

func (s *Server) profileFailure() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileStatus
}

// ResetTokenFor returns the most recent password-reset token issued for email.
func (s *Server) ResetTokenFor(email string) (string, bool) {
	id, ok := s.accounts.idByEmail(email)
	if !ok {
		return "", false
	}
	return s.resets.latestFor(id)
}

// Backdate moves a lending transaction's borrow and due dates back by d.
func (s *Server) Backdate(transactionID string, d time.Duration) error {
	if err := s.catalog.backdate(transactionID, d); err != nil {
		return fmt.Errorf("[fakebackend.Backdate] %s: %w", transactionID, err)
	}
	return nil
}
