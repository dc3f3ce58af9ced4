package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"aexfy.org/internal/approval"
	"aexfy.org/internal/audit"
	"aexfy.org/internal/identity"
	"aexfy.org/internal/obs"
	"aexfy.org/internal/rbac"
	"aexfy.org/internal/session"
)

// ReadyProbe is the readiness check (pings the database when present).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// CompanyStore is the slice of the directory the company handlers need.
type CompanyStore interface {
	GetCompany(ctx context.Context, id string) (*identity.Company, error)
	UpdateCompany(ctx context.Context, id string, upd identity.CompanyUpdate) (*identity.Company, error)
}

// AuditLog serves the audit browsing endpoint.
type AuditLog interface {
	ListAuditEvents(ctx context.Context, q audit.Query) ([]audit.Event, error)
}

// API is the HTTP layer over the session guard and the approval workflow.
type API struct {
	mux        *http.ServeMux
	guard      *session.Guard
	workflow   *approval.Workflow
	resolver   *rbac.Resolver
	zones      *rbac.ZonePolicy
	companies  CompanyStore
	auditLog   AuditLog
	readyProbe ReadyProbe
	version    string
}

func New(guard *session.Guard, workflow *approval.Workflow, resolver *rbac.Resolver, zones *rbac.ZonePolicy, companies CompanyStore, auditLog AuditLog, rp ReadyProbe, version string) *API {
	a := &API{
		mux:        http.NewServeMux(),
		guard:      guard,
		workflow:   workflow,
		resolver:   resolver,
		zones:      zones,
		companies:  companies,
		auditLog:   auditLog,
		readyProbe: rp,
		version:    version,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.Handle("/v1/auth/logout", a.withSession(http.HandlerFunc(a.handleLogout)))

	// staff
	a.mux.Handle("/v1/staff", a.withSession(a.withModule(rbac.ModuleStaff, http.HandlerFunc(a.handleStaffCollection))))

	// companies
	a.mux.Handle("/v1/empresas", a.withSession(a.withModule(rbac.ModuleCompanies, http.HandlerFunc(a.handleCompaniesCollection))))
	a.mux.Handle("/v1/empresas/", a.withSession(a.withModule(rbac.ModuleCompanies, http.HandlerFunc(a.handleCompanyResource))))

	// approval requests
	a.mux.Handle("/v1/solicitudes", a.withSession(a.withModule(rbac.ModuleRequests, http.HandlerFunc(a.handleRequestsCollection))))
	a.mux.Handle("/v1/solicitudes/", a.withSession(a.withModule(rbac.ModuleRequests, http.HandlerFunc(a.handleRequestResource))))

	// audit trail
	a.mux.Handle("/v1/auditoria", a.withSession(a.withModule(rbac.ModuleAudit, http.HandlerFunc(a.handleAuditList))))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.mux)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "aexfy-admin-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "aexfy-admin-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleDomainError maps the shared error taxonomy onto HTTP statuses.
// Uniqueness conflicts carry their per-field detail so forms can surface
// the exact reason.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var conflict *approval.ConflictError
	switch {
	case errors.As(err, &conflict):
		payload := map[string]any{
			"error":  "validation conflict",
			"fields": conflict.Fields,
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusConflict, payload)
	case errors.Is(err, identity.ErrValidationConflict), errors.Is(err, identity.ErrAlreadyResolved):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, identity.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, identity.ErrForbidden), errors.Is(err, rbac.ErrZoneNotAssigned):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, identity.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "resource not found")
	case errors.Is(err, identity.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "dependency unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
