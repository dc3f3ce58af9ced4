package identity

import "context"

// Store describes the identity/session collaborator consumed by the engine.
// All methods are synchronous network calls and must honor ctx deadlines.
type Store interface {
	// Find returns the identity snapshot by internal id.
	Find(ctx context.Context, id string) (*Identity, error)
	// FindByEmail is used by the login flow.
	FindByEmail(ctx context.Context, email string) (*Identity, error)
	// GetRoles returns the current roles for the identity from the source
	// of truth. Called on every protected request.
	GetRoles(ctx context.Context, id string) ([]string, error)
	// GetZone returns the zone code assigned to the identity, or "" when
	// none is assigned.
	GetZone(ctx context.Context, id string) (string, error)
}

// SessionStore persists the single active session record per identity.
type SessionStore interface {
	// Get returns the record for the identity, or ErrNotFound.
	Get(ctx context.Context, identityID string) (*SessionRecord, error)
	// Put writes the record, overwriting any previous one. The overwrite is
	// what invalidates older tokens.
	Put(ctx context.Context, rec *SessionRecord) error
	// Clear removes the record on logout.
	Clear(ctx context.Context, identityID string) error
}
