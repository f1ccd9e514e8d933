package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/hazyhaar/polizas/kit"
)

type claimsKey struct{}

// SessionVerifier confirms that the session named by a valid JWT is still
// live server-side. A backend 401 revokes the session, which makes an
// otherwise unexpired JWT useless.
type SessionVerifier interface {
	Verify(ctx context.Context, sessionID string) error
}

// Middleware extracts a JWT from the session cookie or the Authorization
// Bearer header, in that order. The first one that is valid and whose session
// verifies wins: its claims are injected into the context along with the kit
// user, username, role and session values. A rejected cookie is cleared.
// Anything else is ignored; RequireAuth enforces.
func Middleware(secret []byte, verifier SessionVerifier, cookieDomain string) func(http.Handler) http.Handler {
	check := func(ctx context.Context, tokenStr string) (*SessionClaims, error) {
		claims, err := ValidateToken(secret, tokenStr)
		if err != nil {
			return nil, err
		}
		if verifier != nil {
			if err := verifier.Verify(ctx, claims.SessionID); err != nil {
				return nil, err
			}
		}
		return claims, nil
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var claims *SessionClaims
			if tokenStr := cookieToken(r); tokenStr != "" {
				c, err := check(r.Context(), tokenStr)
				if err != nil {
					ClearTokenCookie(w, cookieDomain)
				}
				claims = c
			}
			if tokenStr := bearerToken(r); claims == nil && tokenStr != "" {
				claims, _ = check(r.Context(), tokenStr)
			}
			if claims == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func cookieToken(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// WithClaims stores claims and mirrors them into the kit context values.
func WithClaims(ctx context.Context, claims *SessionClaims) context.Context {
	ctx = context.WithValue(ctx, claimsKey{}, claims)
	ctx = kit.WithUserID(ctx, claims.UserID)
	ctx = kit.WithUsername(ctx, claims.Username)
	ctx = kit.WithRole(ctx, claims.Role)
	ctx = kit.WithSessionID(ctx, claims.SessionID)
	return ctx
}

// GetClaims retrieves the SessionClaims from the context, or nil if absent.
func GetClaims(ctx context.Context) *SessionClaims {
	c, _ := ctx.Value(claimsKey{}).(*SessionClaims)
	return c
}

// RequireAuth answers unauthenticated requests with a JSON 401.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetClaims(r.Context()) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error": "sesión expirada, inicie sesión nuevamente",
				"kind":  "auth",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
