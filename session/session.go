// Package session persists login sessions. The session JWT only carries the
// session id; the backend bearer token stays server-side in this table.
package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/polizas/apperr"
	"github.com/hazyhaar/polizas/dbopen"
	"github.com/hazyhaar/polizas/idgen"
)

// Schema is the DDL for the sessions table.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    username      TEXT NOT NULL,
    display_name  TEXT NOT NULL DEFAULT '',
    role          TEXT NOT NULL DEFAULT '',
    backend_token TEXT NOT NULL,
    created_at    INTEGER NOT NULL,
    expires_at    INTEGER NOT NULL,
    revoked_at    INTEGER
);
CREATE INDEX IF NOT EXISTS idx_sessions_backend_token ON sessions(backend_token);
CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at);
`

// Expired is the message shown whenever a session can no longer be used.
const Expired = "sesión expirada, inicie sesión nuevamente"

// Session is one login.
type Session struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Username     string     `json:"username"`
	DisplayName  string     `json:"displayName,omitempty"`
	Role         string     `json:"role,omitempty"`
	BackendToken string     `json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	ExpiresAt    time.Time  `json:"expiresAt"`
	RevokedAt    *time.Time `json:"revokedAt,omitempty"`
}

// NewSession is the input of Create.
type NewSession struct {
	UserID       string
	Username     string
	DisplayName  string
	Role         string
	BackendToken string
}

// Store reads and writes sessions.
type Store struct {
	db    *sql.DB
	ttl   time.Duration
	newID idgen.Generator
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL sets the session lifetime. Default: 24h.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithIDGenerator sets the session id generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(s *Store) { s.newID = gen }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore returns a Store over db. The caller applies Schema.
func NewStore(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:    db,
		ttl:   24 * time.Hour,
		newID: idgen.Session,
		now:   time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration { return s.ttl }

// Create opens a session for a user who just logged in.
func (s *Store) Create(ctx context.Context, in NewSession) (*Session, error) {
	if in.BackendToken == "" {
		return nil, fmt.Errorf("session: create: backend token required")
	}
	now := s.now().UTC().Truncate(time.Second)
	sess := &Session{
		ID:           s.newID(),
		UserID:       in.UserID,
		Username:     in.Username,
		DisplayName:  in.DisplayName,
		Role:         in.Role,
		BackendToken: in.BackendToken,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.ttl),
	}
	_, err := dbopen.Exec(ctx, s.db, `
		INSERT INTO sessions (id, user_id, username, display_name, role, backend_token, created_at, expires_at)
		VALUES (?,?,?,?,?,?,?,?)`,
		sess.ID, sess.UserID, sess.Username, sess.DisplayName, sess.Role, sess.BackendToken,
		sess.CreatedAt.Unix(), sess.ExpiresAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("session: create: %w", err)
	}
	return sess, nil
}

// Get returns a live session. Unknown, expired and revoked sessions are all
// KindAuth errors.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	const op = "session.get"
	var (
		sess             Session
		created, expires int64
		revoked          sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, username, display_name, role, backend_token, created_at, expires_at, revoked_at
		FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.UserID, &sess.Username, &sess.DisplayName, &sess.Role,
			&sess.BackendToken, &created, &expires, &revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Wrap(apperr.KindAuth, op, Expired, errors.New("not found"))
	}
	if err != nil {
		return nil, fmt.Errorf("session: get: %w", err)
	}
	sess.CreatedAt = time.Unix(created, 0).UTC()
	sess.ExpiresAt = time.Unix(expires, 0).UTC()
	if revoked.Valid {
		t := time.Unix(revoked.Int64, 0).UTC()
		sess.RevokedAt = &t
		return nil, apperr.Wrap(apperr.KindAuth, op, Expired, errors.New("revoked"))
	}
	if !s.now().Before(sess.ExpiresAt) {
		return nil, apperr.Wrap(apperr.KindAuth, op, Expired, errors.New("expired"))
	}
	return &sess, nil
}

// Verify satisfies auth.SessionVerifier.
func (s *Store) Verify(ctx context.Context, id string) error {
	_, err := s.Get(ctx, id)
	return err
}

// Revoke ends one session. Revoking twice is not an error.
func (s *Store) Revoke(ctx context.Context, id string) error {
	_, err := dbopen.Exec(ctx, s.db,
		`UPDATE sessions SET revoked_at = ? WHERE id = ? AND revoked_at IS NULL`,
		s.now().Unix(), id)
	if err != nil {
		return fmt.Errorf("session: revoke: %w", err)
	}
	return nil
}

// RevokeByToken ends every session holding backendToken. It is called when
// the backend rejects the token, and returns the revoked session ids.
func (s *Store) RevokeByToken(ctx context.Context, backendToken string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM sessions WHERE backend_token = ? AND revoked_at IS NULL`, backendToken)
	if err != nil {
		return nil, fmt.Errorf("session: revoke by token: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("session: revoke by token: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("session: revoke by token: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	_, err = dbopen.Exec(ctx, s.db,
		`UPDATE sessions SET revoked_at = ? WHERE backend_token = ? AND revoked_at IS NULL`,
		s.now().Unix(), backendToken)
	if err != nil {
		return nil, fmt.Errorf("session: revoke by token: %w", err)
	}
	return ids, nil
}

// PurgeExpired deletes expired sessions and sessions revoked before the
// cutoff, and returns how many rows went away.
func (s *Store) PurgeExpired(ctx context.Context) (int64, error) {
	now := s.now().Unix()
	res, err := dbopen.Exec(ctx, s.db,
		`DELETE FROM sessions WHERE expires_at <= ? OR (revoked_at IS NOT NULL AND revoked_at <= ?)`,
		now, now)
	if err != nil {
		return 0, fmt.Errorf("session: purge: %w", err)
	}
	return res.RowsAffected()
}
