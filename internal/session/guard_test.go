package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"aexfy.org/internal/audit"
	"aexfy.org/internal/identity"
	"aexfy.org/internal/rbac"
)

type fakeIdentityStore struct {
	identities map[string]*identity.Identity
	rolesErr   error
	zoneErr    error
}

func (f *fakeIdentityStore) Find(_ context.Context, id string) (*identity.Identity, error) {
	ident, ok := f.identities[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return ident, nil
}

func (f *fakeIdentityStore) FindByEmail(_ context.Context, email string) (*identity.Identity, error) {
	for _, ident := range f.identities {
		if ident.Email == email {
			return ident, nil
		}
	}
	return nil, identity.ErrNotFound
}

func (f *fakeIdentityStore) GetRoles(_ context.Context, id string) ([]string, error) {
	if f.rolesErr != nil {
		return nil, f.rolesErr
	}
	ident, ok := f.identities[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return ident.Roles, nil
}

func (f *fakeIdentityStore) GetZone(_ context.Context, id string) (string, error) {
	if f.zoneErr != nil {
		return "", f.zoneErr
	}
	ident, ok := f.identities[id]
	if !ok {
		return "", identity.ErrNotFound
	}
	return ident.Zone, nil
}

type fakeSessionStore struct {
	mu      sync.Mutex
	records map[string]*identity.SessionRecord
	getErr  error
	putErr  error
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{records: map[string]*identity.SessionRecord{}}
}

func (f *fakeSessionStore) Get(_ context.Context, identityID string) (*identity.SessionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	rec, ok := f.records[identityID]
	if !ok {
		return nil, identity.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeSessionStore) Put(_ context.Context, rec *identity.SessionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	cp := *rec
	f.records[rec.IdentityID] = &cp
	return nil
}

func (f *fakeSessionStore) Clear(_ context.Context, identityID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.records, identityID)
	return nil
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, audit.Event) {}

func newTestGuard(t *testing.T, ids *fakeIdentityStore, sess *fakeSessionStore) (*Guard, *TokenManager) {
	t.Helper()
	tokens, err := NewTokenManager("secreto-de-prueba")
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	guard, err := NewGuard(tokens, ids, sess, rbac.NewZonePolicy(), nopRecorder{})
	if err != nil {
		t.Fatalf("NewGuard: %v", err)
	}
	return guard, tokens
}

func supervisorStore() *fakeIdentityStore {
	hash, _ := identity.HashPassword("clave123")
	return &fakeIdentityStore{identities: map[string]*identity.Identity{
		"u-1": {
			ID:           "u-1",
			Email:        "ana@aexfy.cl",
			Roles:        []string{rbac.RoleSupervisor},
			Zone:         "NG",
			Status:       identity.StatusActive,
			PasswordHash: hash,
		},
	}}
}

func TestVerifyWithoutCredentialRedirects(t *testing.T) {
	guard, _ := newTestGuard(t, supervisorStore(), newFakeSessionStore())
	_, verdict := guard.Verify(context.Background(), Credential{})
	if verdict != VerdictRedirect {
		t.Fatalf("expected redirect, got %v", verdict)
	}
}

func TestVerifyRegistersFirstSession(t *testing.T) {
	ids := supervisorStore()
	sess := newFakeSessionStore()
	guard, tokens := newTestGuard(t, ids, sess)

	signed, sessionToken, _ := tokens.Mint("u-1", "ana@aexfy.cl", []string{rbac.RoleSupervisor}, "NG")
	actor, verdict := guard.Verify(context.Background(), Credential{Token: signed, RemoteAddr: "10.0.0.5"})
	if verdict != VerdictAllow {
		t.Fatalf("expected allow, got %v", verdict)
	}
	rec, err := sess.Get(context.Background(), "u-1")
	if err != nil || rec.Token != sessionToken {
		t.Fatalf("expected first-session registration, rec=%+v err=%v", rec, err)
	}
	if actor.Zone != "NG" {
		t.Fatalf("expected zone NG, got %q", actor.Zone)
	}
}

func TestSecondLoginInvalidatesFirstSession(t *testing.T) {
	ids := supervisorStore()
	sess := newFakeSessionStore()
	guard, _ := newTestGuard(t, ids, sess)
	ctx := context.Background()

	_, firstToken, err := guard.Login(ctx, "ana@aexfy.cl", "clave123", "10.0.0.1", "tab-1")
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	if _, _, err := guard.Login(ctx, "ana@aexfy.cl", "clave123", "10.0.0.2", "tab-2"); err != nil {
		t.Fatalf("second login: %v", err)
	}

	_, verdict := guard.Verify(ctx, Credential{Token: firstToken})
	if verdict != VerdictStale {
		t.Fatalf("request with superseded token should be stale, got %v", verdict)
	}
}

func TestVerifyRefreshesRolesFromSourceOfTruth(t *testing.T) {
	ids := supervisorStore()
	sess := newFakeSessionStore()
	guard, tokens := newTestGuard(t, ids, sess)

	// Token minted when the user was still a seller; the store now says
	// supervisor, and the fresh roles must win.
	signed, _, _ := tokens.Mint("u-1", "ana@aexfy.cl", []string{rbac.RoleSeller}, "NG")
	actor, verdict := guard.Verify(context.Background(), Credential{Token: signed})
	if verdict != VerdictAllow {
		t.Fatalf("expected allow, got %v", verdict)
	}
	if len(actor.Roles) != 1 || actor.Roles[0] != rbac.RoleSupervisor {
		t.Fatalf("expected refreshed roles, got %v", actor.Roles)
	}
}

func TestVerifyDegradesOnRolesFailure(t *testing.T) {
	ids := supervisorStore()
	ids.rolesErr = errors.New("backend down")
	sess := newFakeSessionStore()
	guard, tokens := newTestGuard(t, ids, sess)

	signed, _, _ := tokens.Mint("u-1", "ana@aexfy.cl", []string{rbac.RoleSupervisor}, "NG")
	actor, verdict := guard.Verify(context.Background(), Credential{Token: signed})
	if verdict != VerdictAllow {
		t.Fatalf("read failures must not block access, got %v", verdict)
	}
	if len(actor.Roles) != 1 || actor.Roles[0] != rbac.RoleSupervisor {
		t.Fatalf("expected token snapshot roles, got %v", actor.Roles)
	}
}

func TestVerifyDegradesOnSessionLookupFailure(t *testing.T) {
	ids := supervisorStore()
	sess := newFakeSessionStore()
	sess.getErr = errors.New("session store unreachable")
	guard, tokens := newTestGuard(t, ids, sess)

	signed, _, _ := tokens.Mint("u-1", "ana@aexfy.cl", []string{rbac.RoleSupervisor}, "NG")
	if _, verdict := guard.Verify(context.Background(), Credential{Token: signed}); verdict != VerdictAllow {
		t.Fatalf("expected fail-open on session lookup, got %v", verdict)
	}
}

func TestVerifyClearsZoneForExemptRoles(t *testing.T) {
	ids := supervisorStore()
	ids.identities["u-1"].Roles = []string{rbac.RoleManager}
	sess := newFakeSessionStore()
	guard, tokens := newTestGuard(t, ids, sess)

	signed, _, _ := tokens.Mint("u-1", "ana@aexfy.cl", []string{rbac.RoleManager}, "NG")
	actor, verdict := guard.Verify(context.Background(), Credential{Token: signed})
	if verdict != VerdictAllow || actor.Zone != "" {
		t.Fatalf("exempt role must carry a cleared zone, got %q (verdict %v)", actor.Zone, verdict)
	}
}

func TestVerifyPopulatesMissingZone(t *testing.T) {
	ids := supervisorStore()
	sess := newFakeSessionStore()
	guard, tokens := newTestGuard(t, ids, sess)

	signed, _, _ := tokens.Mint("u-1", "ana@aexfy.cl", []string{rbac.RoleSupervisor}, "")
	actor, verdict := guard.Verify(context.Background(), Credential{Token: signed})
	if verdict != VerdictAllow || actor.Zone != "NG" {
		t.Fatalf("expected authoritative zone NG, got %q (verdict %v)", actor.Zone, verdict)
	}
}

func TestVerifyNeverOverwritesPresentZone(t *testing.T) {
	ids := supervisorStore()
	ids.identities["u-1"].Zone = "CT"
	sess := newFakeSessionStore()
	guard, tokens := newTestGuard(t, ids, sess)

	// Zone set at login stays, even though the store now says CT.
	signed, _, _ := tokens.Mint("u-1", "ana@aexfy.cl", []string{rbac.RoleSupervisor}, "NG")
	actor, _ := guard.Verify(context.Background(), Credential{Token: signed})
	if actor.Zone != "NG" {
		t.Fatalf("present zone must not be overwritten, got %q", actor.Zone)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	guard, _ := newTestGuard(t, supervisorStore(), newFakeSessionStore())
	ctx := context.Background()

	if _, _, err := guard.Login(ctx, "ana@aexfy.cl", "incorrecta", "", ""); !errors.Is(err, identity.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if _, _, err := guard.Login(ctx, "nadie@aexfy.cl", "clave123", "", ""); !errors.Is(err, identity.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for unknown email, got %v", err)
	}
}

func TestLoginFailsClosedOnRegistrationWrite(t *testing.T) {
	sess := newFakeSessionStore()
	sess.putErr = errors.New("write timeout")
	guard, _ := newTestGuard(t, supervisorStore(), sess)

	if _, _, err := guard.Login(context.Background(), "ana@aexfy.cl", "clave123", "", ""); !errors.Is(err, identity.ErrUnavailable) {
		t.Fatalf("registration write failures must propagate, got %v", err)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	sess := newFakeSessionStore()
	guard, _ := newTestGuard(t, supervisorStore(), sess)
	ctx := context.Background()

	actor, _, err := guard.Login(ctx, "ana@aexfy.cl", "clave123", "", "")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := guard.Logout(ctx, actor); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := sess.Get(ctx, actor.ID); !errors.Is(err, identity.ErrNotFound) {
		t.Fatalf("expected cleared session, got %v", err)
	}
}
