// Package shield provides the HTTP middleware stack every polizas API request
// passes through: panic recovery, request tracing with a per-request logger,
// security headers, body caps and login rate limiting.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultStack(cfg.MaxUploadBytes * int64(cfg.MaxBatchFiles)) {
//	    r.Use(mw)
//	}
//	r.With(limiter.Middleware).Post("/api/auth/login", h.login)
package shield

import (
	"context"
	"log/slog"
	"net/http"
)

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultStack returns the standard middleware stack for the API.
// Order: TraceID → Recover → HeadToGet → SecurityHeaders → MaxBody.
// TraceID runs first so that Recover can log with the request's trace id.
func DefaultStack(maxMultipart int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		TraceID,
		Recover,
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxBody(maxMultipart),
	}
}

// GetLogger retrieves the per-request logger from the context.
// Returns slog.Default() if no logger was set.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(LoggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
