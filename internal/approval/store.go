package approval

import (
	"context"
	"time"
)

// Filter narrows request listings.
type Filter struct {
	Status string
	Kind   string
	Limit  int
	Offset int
}

// Store persists approval requests. Transition is the linearization point
// for the whole workflow: it must be implemented as a single conditional
// write on the pending status (compare-and-swap), because multiple process
// instances may decide concurrently and an in-process mutex cannot order
// them.
type Store interface {
	Create(ctx context.Context, req *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	List(ctx context.Context, filter Filter) ([]*Request, error)
	// Transition moves the request out of pending exactly once. It returns
	// identity.ErrAlreadyResolved when the request is no longer pending.
	Transition(ctx context.Context, id, toStatus, reviewerID, note string, decidedAt time.Time) error
}

// Directory is the persistence collaborator that owns the real staff and
// company records. CheckUniqueness returns a field->reason map; an empty
// map means no conflicts.
type Directory interface {
	CheckUniqueness(ctx context.Context, rut, email, phone string) (map[string]string, error)
	CreateStaff(ctx context.Context, authID string, p StaffPayload) (string, error)
	CreateCompany(ctx context.Context, ownerAuthID string, p CompanyPayload) (string, error)
}

// Provisioner issues credentials at the identity provider. The returned
// invite link, when present, is handed back to the caller so it can be
// shared manually.
type Provisioner interface {
	IssueInvite(ctx context.Context, email string, metadata map[string]any) (authID, inviteLink string, err error)
}
