package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"aexfy.org/internal/audit"
	"aexfy.org/internal/identity"
	"aexfy.org/internal/obs"
	"aexfy.org/internal/rbac"
)

// Verdict is the typed outcome of verifying a protected request.
type Verdict int

const (
	// VerdictAllow: the actor snapshot is populated and the request proceeds.
	VerdictAllow Verdict = iota
	// VerdictRedirect: no usable credential, send the caller to login.
	VerdictRedirect
	// VerdictStale: the session token was superseded by a newer login.
	VerdictStale
)

func (v Verdict) String() string {
	switch v {
	case VerdictAllow:
		return "allow"
	case VerdictRedirect:
		return "redirect"
	case VerdictStale:
		return "stale"
	}
	return "unknown"
}

// Credential carries the raw request material the guard inspects.
type Credential struct {
	Token      string
	RemoteAddr string
	UserAgent  string
}

// Guard validates that an authenticated identity still holds the single
// active session, and refreshes its role/zone snapshot from the source of
// truth on every request.
//
// Failure policy: collaborator failures on the read path (roles, zone,
// session lookup) degrade to the previously known snapshot instead of
// blocking the operator; only a provable session-token mismatch forces a
// logout. This asymmetry is deliberate and load-bearing.
type Guard struct {
	tokens     *TokenManager
	identities identity.Store
	sessions   identity.SessionStore
	zones      *rbac.ZonePolicy
	recorder   audit.Recorder
	now        func() time.Time
}

// NewGuard wires the guard's collaborators. recorder may be nil.
func NewGuard(tokens *TokenManager, identities identity.Store, sessions identity.SessionStore, zones *rbac.ZonePolicy, recorder audit.Recorder) (*Guard, error) {
	if tokens == nil {
		return nil, errors.New("session: token manager is required")
	}
	if identities == nil || sessions == nil {
		return nil, errors.New("session: identity and session stores are required")
	}
	if zones == nil {
		return nil, errors.New("session: zone policy is required")
	}
	return &Guard{
		tokens:     tokens,
		identities: identities,
		sessions:   sessions,
		zones:      zones,
		recorder:   recorder,
		now:        time.Now,
	}, nil
}

// Verify drives the per-request state machine. It returns the populated
// actor snapshot on VerdictAllow; on any other verdict the actor is empty
// and the request must not proceed.
func (g *Guard) Verify(ctx context.Context, cred Credential) (identity.Actor, Verdict) {
	claims, err := g.tokens.Parse(cred.Token)
	if err != nil {
		obs.AuthDecision(VerdictRedirect.String())
		return identity.Actor{}, VerdictRedirect
	}

	actor := identity.Actor{
		ID:    claims.Subject,
		Email: claims.Email,
		Roles: claims.Roles,
		Zone:  claims.Zone,
		Token: claims.ID,
	}

	// Roles come from the source of truth on every request so revocations
	// take effect immediately. On failure keep the token snapshot.
	if roles, err := g.identities.GetRoles(ctx, actor.ID); err == nil {
		actor.Roles = roles
	} else {
		g.logDegraded("roles refresh failed", actor.ID, err)
	}

	if verdict := g.checkSingleSession(ctx, &actor, cred); verdict != VerdictAllow {
		obs.AuthDecision(verdict.String())
		return identity.Actor{}, verdict
	}

	g.refreshZone(ctx, &actor)

	obs.AuthDecision(VerdictAllow.String())
	return actor, VerdictAllow
}

// checkSingleSession enforces the at-most-one-session invariant. A stored
// record with a different token means a newer login superseded this one.
// A missing record means this is the first request after login against a
// store that lost the registration, so it is re-registered.
func (g *Guard) checkSingleSession(ctx context.Context, actor *identity.Actor, cred Credential) Verdict {
	rec, err := g.sessions.Get(ctx, actor.ID)
	switch {
	case err == nil:
		if rec.Token != actor.Token {
			obs.SessionEvicted()
			if g.recorder != nil {
				g.recorder.Record(ctx, audit.Event{
					ActorID:  actor.ID,
					Action:   audit.ActionSessionEvicted,
					Severity: audit.SeverityMedium,
					Metadata: map[string]any{"remote_addr": cred.RemoteAddr},
				})
			}
			// The other session's record stays untouched; only this
			// request's local state is discarded.
			return VerdictStale
		}
	case errors.Is(err, identity.ErrNotFound):
		if putErr := g.sessions.Put(ctx, &identity.SessionRecord{
			IdentityID: actor.ID,
			Token:      actor.Token,
			RemoteAddr: cred.RemoteAddr,
			UserAgent:  cred.UserAgent,
			UpdatedAt:  g.now().UTC(),
		}); putErr != nil {
			g.logDegraded("session registration failed", actor.ID, putErr)
		}
	default:
		// Session store unreachable: degrade rather than lock the
		// operator out. Only a provable mismatch forces logout.
		g.logDegraded("session lookup failed", actor.ID, err)
	}
	return VerdictAllow
}

// refreshZone keeps the actor's zone coherent with the zone policy: exempt
// roles always carry a cleared zone, restricted roles get the authoritative
// zone populated only when the snapshot lacks one.
func (g *Guard) refreshZone(ctx context.Context, actor *identity.Actor) {
	if !g.zones.RequiresZoneRestriction(actor.Roles) {
		actor.Zone = g.zones.ClearZoneIfExempt(actor.Roles, actor.Zone)
		return
	}
	if actor.Zone != "" {
		return
	}
	zone, err := g.identities.GetZone(ctx, actor.ID)
	if err != nil {
		g.logDegraded("zone refresh failed", actor.ID, err)
		return
	}
	actor.Zone = zone
}

// Login authenticates credentials, mints a bearer token and registers the
// session record, superseding any previous session for the identity.
// Unlike guard-time reads, the registration write must succeed.
func (g *Guard) Login(ctx context.Context, email, password, remoteAddr, userAgent string) (identity.Actor, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return identity.Actor{}, "", identity.ErrUnauthenticated
	}
	ident, err := g.identities.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return identity.Actor{}, "", identity.ErrUnauthenticated
		}
		return identity.Actor{}, "", err
	}
	if ident.Status != identity.StatusActive {
		return identity.Actor{}, "", identity.ErrUnauthenticated
	}
	if err := identity.VerifyPassword(ident.PasswordHash, password); err != nil {
		return identity.Actor{}, "", identity.ErrUnauthenticated
	}

	zone := g.zones.ClearZoneIfExempt(ident.Roles, ident.Zone)
	signed, sessionToken, err := g.tokens.Mint(ident.ID, ident.Email, ident.Roles, zone)
	if err != nil {
		return identity.Actor{}, "", err
	}
	if err := g.sessions.Put(ctx, &identity.SessionRecord{
		IdentityID: ident.ID,
		Token:      sessionToken,
		RemoteAddr: remoteAddr,
		UserAgent:  userAgent,
		UpdatedAt:  g.now().UTC(),
	}); err != nil {
		return identity.Actor{}, "", errors.Join(identity.ErrUnavailable, err)
	}

	actor := identity.Actor{
		ID:    ident.ID,
		Email: ident.Email,
		Roles: ident.Roles,
		Zone:  zone,
		Token: sessionToken,
	}
	if g.recorder != nil {
		g.recorder.Record(ctx, audit.Event{
			ActorID:    actor.ID,
			ActorEmail: actor.Email,
			Action:     audit.ActionLogin,
			Severity:   audit.SeverityLow,
			Metadata:   map[string]any{"remote_addr": remoteAddr},
		})
	}
	return actor, signed, nil
}

// Logout clears the stored session record so the token can never pass the
// single-session check again.
func (g *Guard) Logout(ctx context.Context, actor identity.Actor) error {
	if err := g.sessions.Clear(ctx, actor.ID); err != nil && !errors.Is(err, identity.ErrNotFound) {
		return errors.Join(identity.ErrUnavailable, err)
	}
	if g.recorder != nil {
		g.recorder.Record(ctx, audit.Event{
			ActorID:    actor.ID,
			ActorEmail: actor.Email,
			Action:     audit.ActionLogout,
			Severity:   audit.SeverityLow,
		})
	}
	return nil
}

func (g *Guard) logDegraded(msg, identityID string, err error) {
	obs.LogEvent(map[string]any{
		"level":       "warn",
		"msg":         msg,
		"identity_id": identityID,
		"error":       err.Error(),
		"degraded":    true,
	})
}
