package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/hazyhaar/polizas/apperr"
	"github.com/hazyhaar/polizas/auth"
	"github.com/hazyhaar/polizas/backend"
	"github.com/hazyhaar/polizas/session"
	"github.com/hazyhaar/polizas/shield"
	"github.com/hazyhaar/polizas/wizard"
)

var validate = validator.New()

type sessionKey struct{}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=128"`
	Password string `json:"password" validate:"required,max=256"`
}

type loginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      backend.User `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		s.writeError(w, r, apperr.Wrap(apperr.KindValidation, "server.login", "ingrese usuario y contraseña", err))
		return
	}

	res, err := s.cfg.Backend.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.cfg.Sessions.Create(r.Context(), session.NewSession{
		UserID:       res.User.ID,
		Username:     res.User.Username,
		DisplayName:  res.User.DisplayName,
		Role:         res.User.Role,
		BackendToken: res.Token,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ttl := sess.ExpiresAt.Sub(sess.CreatedAt)
	token, err := auth.GenerateToken(s.cfg.Secret, &auth.SessionClaims{
		SessionID:   sess.ID,
		UserID:      sess.UserID,
		Username:    sess.Username,
		DisplayName: sess.DisplayName,
		Role:        sess.Role,
	}, ttl)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	secure := r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https"
	auth.SetTokenCookie(w, token, s.cfg.CookieDomain, ttl, secure)

	shield.GetLogger(r.Context()).Info("login", "user_id", sess.UserID, "session_id", sess.ID)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: sess.ExpiresAt, User: res.User})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c := auth.GetClaims(r.Context()); c != nil {
		if err := s.cfg.Sessions.Revoke(r.Context(), c.SessionID); err != nil {
			shield.GetLogger(r.Context()).Warn("logout: revoke session", "error", err)
		}
		s.cfg.Wizards.DropOwner(c.SessionID)
	}
	auth.ClearTokenCookie(w, s.cfg.CookieDomain)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	sess := currentSession(r.Context())
	writeJSON(w, http.StatusOK, sess)
}

// requireSession loads the live session named by the JWT.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := auth.GetClaims(r.Context())
		sess, err := s.cfg.Sessions.Get(r.Context(), c.SessionID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), sessionKey{}, sess)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func currentSession(ctx context.Context) *session.Session {
	sess, _ := ctx.Value(sessionKey{}).(*session.Session)
	return sess
}

func callerFrom(ctx context.Context) wizard.Caller {
	sess := currentSession(ctx)
	return wizard.Caller{Owner: sess.ID, UserID: sess.UserID, Token: sess.BackendToken}
}
