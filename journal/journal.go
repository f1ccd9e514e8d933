// Package journal records wizard transitions in SQLite so an operator's
// capture session can be reconstructed after the fact.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/polizas/dbopen"
	"github.com/hazyhaar/polizas/idgen"
	"github.com/hazyhaar/polizas/kit"
)

// Schema is the DDL for the wizard_events table.
const Schema = `
CREATE TABLE IF NOT EXISTS wizard_events (
    event_id   TEXT PRIMARY KEY,
    wizard_id  TEXT NOT NULL,
    session_id TEXT NOT NULL DEFAULT '',
    user_id    TEXT NOT NULL DEFAULT '',
    action     TEXT NOT NULL,
    step       TEXT NOT NULL DEFAULT '',
    detail     TEXT NOT NULL DEFAULT '',
    success    INTEGER NOT NULL,
    created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_wizard_events_wizard ON wizard_events(wizard_id, created_at);
CREATE INDEX IF NOT EXISTS idx_wizard_events_created ON wizard_events(created_at);
`

// Event is one wizard transition or attempt.
type Event struct {
	WizardID  string `json:"wizardId"`
	SessionID string `json:"sessionId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Action    string `json:"action"`
	Step      string `json:"step,omitempty"`
	Detail    string `json:"detail,omitempty"`
	Success   bool   `json:"success"`
}

// Entry is a stored Event.
type Entry struct {
	ID string `json:"id"`
	Event
	CreatedAt time.Time `json:"createdAt"`
}

// Logger writes wizard events.
type Logger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a Logger.
type Option func(*Logger)

// WithIDGenerator sets the event id generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(l *Logger) { l.newID = gen }
}

// WithLogger sets the slog logger used to report write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Logger) { l.logger = logger }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Logger) { l.now = now }
}

// New returns a Logger over db. The caller applies Schema.
func New(db *sql.DB, opts ...Option) *Logger {
	l := &Logger{
		db:     db,
		newID:  idgen.Prefixed("evt_", idgen.UUIDv7()),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Record stores ev. Wizard, session and user default to the ones carried
// by ctx.
// Failures are logged and never returned: a broken journal must not block
// the wizard.
func (l *Logger) Record(ctx context.Context, ev Event) {
	if l == nil {
		return
	}
	if ev.WizardID == "" {
		ev.WizardID = kit.GetWizardID(ctx)
	}
	if ev.SessionID == "" {
		ev.SessionID = kit.GetSessionID(ctx)
	}
	if ev.UserID == "" {
		ev.UserID = kit.GetUserID(ctx)
	}
	_, err := dbopen.Exec(context.WithoutCancel(ctx), l.db, `
		INSERT INTO wizard_events (event_id, wizard_id, session_id, user_id, action, step, detail, success, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		l.newID(), ev.WizardID, ev.SessionID, ev.UserID, ev.Action, ev.Step, ev.Detail, ev.Success,
		l.now().UnixMilli())
	if err != nil {
		l.logger.Error("journal: record failed", "error", err, "wizard_id", ev.WizardID, "action", ev.Action)
	}
}

// Recent returns up to limit events of a wizard, oldest first.
func (l *Logger) Recent(ctx context.Context, wizardID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_id, wizard_id, session_id, user_id, action, step, detail, success, created_at
		FROM (
			SELECT *, rowid AS rid FROM wizard_events WHERE wizard_id = ?
			ORDER BY created_at DESC, rid DESC LIMIT ?
		) ORDER BY created_at ASC, rid ASC`, wizardID, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: recent: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		var (
			e  Entry
			ms int64
		)
		if err := rows.Scan(&e.ID, &e.WizardID, &e.SessionID, &e.UserID, &e.Action, &e.Step,
			&e.Detail, &e.Success, &ms); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		e.CreatedAt = time.UnixMilli(ms).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

// Cleanup deletes events older than days. Zero or negative keeps everything.
func (l *Logger) Cleanup(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, nil
	}
	cutoff := l.now().Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	res, err := dbopen.Exec(ctx, l.db, `DELETE FROM wizard_events WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("journal: cleanup: %w", err)
	}
	return res.RowsAffected()
}

// RunRetention runs Cleanup once a day until ctx is done.
func (l *Logger) RunRetention(ctx context.Context, days int) {
	if days <= 0 {
		return
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		if n, err := l.Cleanup(ctx, days); err != nil {
			l.logger.Warn("journal: retention cleanup failed", "error", err)
		} else if n > 0 {
			l.logger.Info("journal: retention cleanup", "deleted", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
