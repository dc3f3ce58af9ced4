package redis

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"aexfy.org/internal/identity"
)

func newTestStore(t *testing.T) *SessionStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		_ = rdb.Close()
		mr.Close()
	})
	store, err := NewSessionStore(rdb, 0)
	if err != nil {
		t.Fatalf("NewSessionStore: %v", err)
	}
	return store
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Get(ctx, "u-1"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before Put, got %v", err)
	}

	rec := &identity.SessionRecord{IdentityID: "u-1", Token: "tok-1", RemoteAddr: "10.0.0.1"}
	if err := store.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, "u-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Token != "tok-1" || got.RemoteAddr != "10.0.0.1" {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Fatal("expected stamped UpdatedAt")
	}
}

func TestPutOverwritesPriorSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, token := range []string{"tok-1", "tok-2"} {
		if err := store.Put(ctx, &identity.SessionRecord{IdentityID: "u-1", Token: token}); err != nil {
			t.Fatalf("Put %s: %v", token, err)
		}
	}
	got, err := store.Get(ctx, "u-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Token != "tok-2" {
		t.Fatalf("newest login must win, got %q", got.Token)
	}
}

func TestClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, &identity.SessionRecord{IdentityID: "u-1", Token: "tok-1"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Clear(ctx, "u-1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := store.Clear(ctx, "u-1"); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second clear, got %v", err)
	}
}
