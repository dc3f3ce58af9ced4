// Package redis implements the session registry over Redis. It is the
// preferred backend in multi-instance deployments: every instance sees a
// login overwrite immediately, without waiting on the relational store.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"aexfy.org/internal/identity"
)

const sessionKeyPrefix = "aexfy:sess"

// SessionStore keeps one JSON-encoded record per identity. A TTL of zero
// keeps records until an explicit logout or overwrite.
type SessionStore struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ identity.SessionStore = (*SessionStore)(nil)

func NewSessionStore(rdb *redis.Client, ttl time.Duration) (*SessionStore, error) {
	if rdb == nil {
		return nil, errors.New("redis: client is required")
	}
	return &SessionStore{rdb: rdb, ttl: ttl}, nil
}

func key(identityID string) string {
	return sessionKeyPrefix + ":" + identityID
}

func (s *SessionStore) Get(ctx context.Context, identityID string) (*identity.SessionRecord, error) {
	raw, err := s.rdb.Get(ctx, key(identityID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, errors.Join(identity.ErrUnavailable, err)
	}
	var rec identity.SessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode session record: %w", err)
	}
	return &rec, nil
}

// Put overwrites the identity's record unconditionally. The overwrite is
// what makes the newest login the only valid session.
func (s *SessionStore) Put(ctx context.Context, rec *identity.SessionRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, key(rec.IdentityID), raw, s.ttl).Err(); err != nil {
		return errors.Join(identity.ErrUnavailable, err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context, identityID string) error {
	deleted, err := s.rdb.Del(ctx, key(identityID)).Result()
	if err != nil {
		return errors.Join(identity.ErrUnavailable, err)
	}
	if deleted == 0 {
		return identity.ErrNotFound
	}
	return nil
}
