package pg

import (
	"context"
	"database/sql"
	"errors"

	"aexfy.org/internal/identity"
)

// Session registry over Postgres, used when no Redis address is
// configured. One row per identity; the upsert is what makes a new login
// invalidate every earlier token for the same person.

// Sessions carries the session registry methods on their own receiver so
// their Get does not collide with the approval queue's Get on Store.
type Sessions struct {
	db *sql.DB
}

func (s *Store) Sessions() *Sessions { return &Sessions{db: s.db} }

func (s *Sessions) Get(ctx context.Context, identityID string) (*identity.SessionRecord, error) {
	var rec identity.SessionRecord
	err := s.db.QueryRowContext(ctx, `
		select identity_id, token, coalesce(remote_addr,''), coalesce(user_agent,''), updated_at
		from sessions where identity_id = $1
	`, identityID).Scan(&rec.IdentityID, &rec.Token, &rec.RemoteAddr, &rec.UserAgent, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *Sessions) Put(ctx context.Context, rec *identity.SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		insert into sessions (identity_id, token, remote_addr, user_agent, updated_at)
		values ($1, $2, $3, $4, now())
		on conflict (identity_id) do update
		set token = excluded.token,
		    remote_addr = excluded.remote_addr,
		    user_agent = excluded.user_agent,
		    updated_at = now()
	`, rec.IdentityID, rec.Token, nullIfEmpty(rec.RemoteAddr), nullIfEmpty(rec.UserAgent))
	return err
}

func (s *Sessions) Clear(ctx context.Context, identityID string) error {
	res, err := s.db.ExecContext(ctx, `delete from sessions where identity_id = $1`, identityID)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return identity.ErrNotFound
	}
	return nil
}
