// Package server is the HTTP backend-for-frontend of polizas. It owns the
// login session, keeps the backend bearer token server-side and exposes the
// dashboard lists, batch document processing and the policy wizard as JSON.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/polizas/auth"
	"github.com/hazyhaar/polizas/backend"
	"github.com/hazyhaar/polizas/docpipe"
	"github.com/hazyhaar/polizas/journal"
	"github.com/hazyhaar/polizas/session"
	"github.com/hazyhaar/polizas/shield"
	"github.com/hazyhaar/polizas/wizard"
)

// Backend is the subset of backend.API the HTTP layer calls directly.
type Backend interface {
	wizard.Backend
	Login(ctx context.Context, username, password string) (backend.LoginResult, error)
	ListClients(ctx context.Context, token, search string) ([]backend.Client, error)
	ListPolicies(ctx context.Context, token, clientID string) ([]backend.PolicySummary, error)
}

// Config wires a Server.
type Config struct {
	Backend       Backend
	Sessions      *session.Store
	Wizards       *wizard.Service
	Pipeline      *docpipe.Pipeline
	Journal       *journal.Logger
	Secret        []byte
	CookieDomain  string
	MaxUpload     int64
	MaxBatchFiles int
	LoginLimiter  *shield.RateLimiter
	Logger        *slog.Logger
	Now           func() time.Time
}

func (c *Config) defaults() {
	if c.MaxUpload <= 0 {
		c.MaxUpload = 10 << 20
	}
	if c.MaxBatchFiles <= 0 {
		c.MaxBatchFiles = 10
	}
	if c.Pipeline == nil {
		c.Pipeline = docpipe.New(docpipe.Config{MaxFileSize: c.MaxUpload, Logger: c.Logger})
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Server serves the JSON API.
type Server struct {
	cfg     Config
	handler http.Handler
}

// New builds the server and its router.
func New(cfg Config) *Server {
	cfg.defaults()
	s := &Server{cfg: cfg}
	s.handler = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(s.cfg.MaxUpload * int64(s.cfg.MaxBatchFiles)) {
		r.Use(mw)
	}
	r.Use(auth.Middleware(s.cfg.Secret, s.cfg.Sessions, s.cfg.CookieDomain))

	r.Get("/healthz", s.handleHealth)

	login := http.Handler(http.HandlerFunc(s.handleLogin))
	if s.cfg.LoginLimiter != nil {
		login = s.cfg.LoginLimiter.Middleware(login)
	}
	r.Method(http.MethodPost, "/api/auth/login", login)
	r.Post("/api/auth/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Use(s.requireSession)

		r.Get("/api/auth/me", s.handleMe)

		r.Get("/api/clientes", s.handleListClients)
		r.Get("/api/clientes/{id}", s.handleGetClient)
		r.Get("/api/companies", s.handleListCompanies)
		r.Get("/api/polizas", s.handleListPolicies)

		r.Post("/api/documents/process", s.handleProcessDocuments)

		r.Route("/api/wizards", func(r chi.Router) {
			r.Post("/", s.handleStartWizard)
			r.Get("/", s.handleListWizards)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetWizard)
				r.Delete("/", s.handleDiscardWizard)
				r.Post("/client", s.handleSelectClient)
				r.Post("/company", s.handleSelectCompany)
				r.Post("/upload", s.handleUpload)
				r.Post("/extract", s.handleExtract)
				r.Post("/retry", s.handleRetry)
				r.Patch("/form", s.handleUpdateForm)
				r.Get("/validation", s.handleValidation)
				r.Post("/submit", s.handleSubmit)
				r.Post("/back", s.handleBack)
				r.Post("/reset", s.handleReset)
				r.Get("/events", s.handleEvents)
			})
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "recurso no encontrado", Kind: "not_found"})
	})
	return r
}

// OnUnauthorized is the backend client's 401 hook: every session holding the
// rejected token is revoked and its wizards discarded.
func (s *Server) OnUnauthorized(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ids, err := s.cfg.Sessions.RevokeByToken(ctx, token)
	if err != nil {
		s.cfg.Logger.Error("server: revoke sessions on backend 401", "error", err)
		return
	}
	for _, id := range ids {
		n := s.cfg.Wizards.DropOwner(id)
		s.cfg.Logger.Info("server: session revoked by backend", "session_id", id, "wizards_dropped", n)
	}
}

// RunJanitor purges expired sessions and idle wizards every interval until
// ctx is done.
func (s *Server) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if n, err := s.cfg.Sessions.PurgeExpired(ctx); err != nil {
			s.cfg.Logger.Warn("server: purge sessions", "error", err)
		} else if n > 0 {
			s.cfg.Logger.Info("server: purged sessions", "count", n)
		}
		cutoff := s.cfg.Now().Add(-s.cfg.Sessions.TTL())
		if n := s.cfg.Wizards.Store().DropIdle(cutoff); n > 0 {
			s.cfg.Logger.Info("server: dropped idle wizards", "count", n)
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"wizards": s.cfg.Wizards.Store().Len(),
	})
}
