package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"aexfy.org/internal/identity"
)

const identityColumns = `id, coalesce(auth_id,''), email, coalesce(rut,''), coalesce(nombres,''),
	coalesce(apellidos,''), roles, coalesce(zona,''), status, coalesce(password_hash,''),
	created_at, updated_at`

func (s *Store) Find(ctx context.Context, id string) (*identity.Identity, error) {
	row := s.db.QueryRowContext(ctx, `select `+identityColumns+` from staff where id = $1`, id)
	return scanIdentity(row)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*identity.Identity, error) {
	row := s.db.QueryRowContext(ctx, `select `+identityColumns+` from staff where lower(email) = lower($1)`, email)
	return scanIdentity(row)
}

// GetRoles reads the authoritative role list. Callers treat this as the
// source of truth over anything embedded in a token.
func (s *Store) GetRoles(ctx context.Context, id string) ([]string, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `select roles from staff where id = $1`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeRoles(raw)
}

func (s *Store) GetZone(ctx context.Context, id string) (string, error) {
	var zone sql.NullString
	err := s.db.QueryRowContext(ctx, `select zona from staff where id = $1`, id).Scan(&zone)
	if errors.Is(err, sql.ErrNoRows) {
		return "", identity.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return zone.String, nil
}

func scanIdentity(row *sql.Row) (*identity.Identity, error) {
	var (
		ident identity.Identity
		raw   []byte
	)
	err := row.Scan(&ident.ID, &ident.AuthID, &ident.Email, &ident.RUT, &ident.FirstNames,
		&ident.LastNames, &raw, &ident.Zone, &ident.Status, &ident.PasswordHash,
		&ident.CreatedAt, &ident.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, identity.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ident.Roles, err = decodeRoles(raw)
	if err != nil {
		return nil, err
	}
	return &ident, nil
}

func decodeRoles(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var roles []string
	if err := json.Unmarshal(raw, &roles); err != nil {
		return nil, fmt.Errorf("decode roles: %w", err)
	}
	return roles, nil
}
