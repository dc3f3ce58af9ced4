package identity

import "errors"

// Shared error taxonomy for the authorization engine. Handlers map these to
// responses; everything else is treated as an internal failure.
var (
	// ErrUnauthenticated: no valid credential on the request, redirect to login.
	ErrUnauthenticated = errors.New("identity: unauthenticated")

	// ErrForbidden: a role, zone or ownership check failed; nothing was mutated.
	ErrForbidden = errors.New("identity: forbidden")

	// ErrValidationConflict: uniqueness or payload validation failed.
	ErrValidationConflict = errors.New("identity: validation conflict")

	// ErrAlreadyResolved: the approval request left pending before this decision.
	ErrAlreadyResolved = errors.New("identity: request already resolved")

	// ErrUnavailable: a collaborator could not be reached on a write path.
	// Read-path failures degrade instead of surfacing this.
	ErrUnavailable = errors.New("identity: collaborator unavailable")

	ErrNotFound = errors.New("identity: not found")
)
