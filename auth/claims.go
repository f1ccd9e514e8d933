package auth

import "github.com/golang-jwt/jwt/v5"

// SessionClaims is the payload of the session JWT handed to the browser.
// The backend bearer token never leaves the server; the JWT only names the
// session row that holds it. RegisteredClaims.ID carries the session id too,
// so standard tooling sees it as the jti.
type SessionClaims struct {
	jwt.RegisteredClaims
	SessionID   string `json:"sid"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role,omitempty"`
}
