package session

import (
	"context"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/polizas/apperr"
	"github.com/hazyhaar/polizas/dbopen"
	"github.com/hazyhaar/polizas/idgen"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func setup(t *testing.T) (*Store, *clock) {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewStore(db, WithTTL(time.Hour), WithClock(c.now), WithIDGenerator(idgen.Sequence("ses_"))), c
}

func create(t *testing.T, s *Store, token string) *Session {
	t.Helper()
	sess, err := s.Create(context.Background(), NewSession{
		UserID: "7", Username: "ana", DisplayName: "Ana", Role: "admin", BackendToken: token,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return sess
}

func TestCreateGet(t *testing.T) {
	s, _ := setup(t)
	sess := create(t, s, "tok-1")
	if sess.ID != "ses_1" {
		t.Fatalf("id = %q", sess.ID)
	}
	if got := sess.ExpiresAt.Sub(sess.CreatedAt); got != time.Hour {
		t.Fatalf("ttl = %v", got)
	}

	got, err := s.Get(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.BackendToken != "tok-1" || got.Username != "ana" || got.Role != "admin" {
		t.Fatalf("got %+v", got)
	}
	if !got.CreatedAt.Equal(sess.CreatedAt) {
		t.Fatalf("created_at = %v, want %v", got.CreatedAt, sess.CreatedAt)
	}
}

func TestCreate_RequiresToken(t *testing.T) {
	s, _ := setup(t)
	if _, err := s.Create(context.Background(), NewSession{UserID: "1"}); err == nil {
		t.Fatal("expected error without backend token")
	}
}

func TestGet_NotFound(t *testing.T) {
	s, _ := setup(t)
	_, err := s.Get(context.Background(), "nope")
	if !apperr.Is(err, apperr.KindAuth) {
		t.Fatalf("err = %v, want auth", err)
	}
	if apperr.UserMessage(err) != Expired {
		t.Fatalf("message = %q", apperr.UserMessage(err))
	}
}

func TestGet_Expired(t *testing.T) {
	s, c := setup(t)
	sess := create(t, s, "tok")
	c.t = c.t.Add(time.Hour)
	if err := s.Verify(context.Background(), sess.ID); !apperr.Is(err, apperr.KindAuth) {
		t.Fatalf("err = %v, want auth", err)
	}
}

func TestRevoke(t *testing.T) {
	s, _ := setup(t)
	sess := create(t, s, "tok")
	ctx := context.Background()
	if err := s.Revoke(ctx, sess.ID); err != nil {
		t.Fatal(err)
	}
	if err := s.Revoke(ctx, sess.ID); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if err := s.Verify(ctx, sess.ID); !apperr.Is(err, apperr.KindAuth) {
		t.Fatalf("err = %v, want auth", err)
	}
}

func TestRevokeByToken(t *testing.T) {
	s, _ := setup(t)
	ctx := context.Background()
	a := create(t, s, "shared")
	b := create(t, s, "shared")
	other := create(t, s, "other")

	ids, err := s.RevokeByToken(ctx, "shared")
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("revoked %v, want 2", ids)
	}
	for _, id := range []string{a.ID, b.ID} {
		if err := s.Verify(ctx, id); err == nil {
			t.Fatalf("session %s still valid", id)
		}
	}
	if err := s.Verify(ctx, other.ID); err != nil {
		t.Fatalf("unrelated session revoked: %v", err)
	}

	ids, err = s.RevokeByToken(ctx, "shared")
	if err != nil || len(ids) != 0 {
		t.Fatalf("second revoke = %v, %v", ids, err)
	}
}

func TestPurgeExpired(t *testing.T) {
	s, c := setup(t)
	ctx := context.Background()
	create(t, s, "a")
	revoked := create(t, s, "b")
	if err := s.Revoke(ctx, revoked.ID); err != nil {
		t.Fatal(err)
	}
	c.t = c.t.Add(30 * time.Minute)
	fresh := create(t, s, "c")
	c.t = c.t.Add(31 * time.Minute)

	n, err := s.PurgeExpired(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("purged %d, want 2", n)
	}
	if _, err := s.Get(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh session purged: %v", err)
	}
}
