package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aexfy.org/internal/approval"
	"aexfy.org/internal/audit"
	"aexfy.org/internal/identity"
	"aexfy.org/internal/rbac"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string    `json:"token"`
	Actor actorView `json:"actor"`
}

type actorView struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	Zone  string   `json:"zona,omitempty"`
}

type decisionRequest struct {
	Decision string `json:"decision"`
	Note     string `json:"note,omitempty"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	actor, signed, err := a.guard.Login(r.Context(), req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{
		Token: signed,
		Actor: actorView{ID: actor.ID, Email: actor.Email, Roles: actor.Roles, Zone: actor.Zone},
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	actor, _ := identity.ActorFromContext(r.Context())
	if err := a.guard.Logout(r.Context(), actor); err != nil {
		handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleStaffCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.submitStaff(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) submitStaff(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())

	var p approval.StaffPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(p.RUT) == "" || strings.TrimSpace(p.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "rut and email are required")
		return
	}
	if strings.TrimSpace(p.FirstNames) == "" || strings.TrimSpace(p.LastNames) == "" {
		writeError(w, r, http.StatusBadRequest, "nombres and apellidos are required")
		return
	}
	if strings.TrimSpace(p.Role) == "" {
		writeError(w, r, http.StatusBadRequest, "rol is required")
		return
	}

	res, err := a.workflow.SubmitStaff(r.Context(), actor, p)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSubmitResult(w, res)
}

func (a *API) handleCompaniesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.submitCompany(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost)
	}
}

func (a *API) submitCompany(w http.ResponseWriter, r *http.Request) {
	actor, _ := identity.ActorFromContext(r.Context())

	var p approval.CompanyPayload
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(p.RUT) == "" || strings.TrimSpace(p.LegalName) == "" {
		writeError(w, r, http.StatusBadRequest, "rut and razon_social are required")
		return
	}
	if strings.TrimSpace(p.OwnerRUT) == "" || strings.TrimSpace(p.OwnerEmail) == "" {
		writeError(w, r, http.StatusBadRequest, "owner_rut and owner_email are required")
		return
	}

	res, err := a.workflow.SubmitCompany(r.Context(), actor, p)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeSubmitResult(w, res)
}

func writeSubmitResult(w http.ResponseWriter, res approval.SubmitResult) {
	if res.Queued {
		writeJSON(w, http.StatusAccepted, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) handleCompanyResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/empresas/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getCompany(w, r, id)
	case http.MethodPatch:
		a.updateCompany(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) getCompany(w http.ResponseWriter, r *http.Request, id string) {
	actor, _ := identity.ActorFromContext(r.Context())
	company, err := a.companies.GetCompany(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := a.checkCompanyZone(actor, company); err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, company)
}

type companyUpdateRequest struct {
	TradeName *string `json:"nombre_fantasia,omitempty"`
	Business  *string `json:"giro,omitempty"`
	Region    *string `json:"region,omitempty"`
	City      *string `json:"ciudad,omitempty"`
	District  *string `json:"comuna,omitempty"`
	Address   *string `json:"direccion,omitempty"`
	Phone     *string `json:"telefono,omitempty"`
	Email     *string `json:"email,omitempty"`
	Plan      *string `json:"plan,omitempty"`
	Zone      *string `json:"zona,omitempty"`
}

func (a *API) updateCompany(w http.ResponseWriter, r *http.Request, id string) {
	actor, _ := identity.ActorFromContext(r.Context())
	if !a.resolver.CanEditCompanies(actor.Roles) {
		writeError(w, r, http.StatusForbidden, "company edits not permitted for these roles")
		return
	}

	var req companyUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	company, err := a.companies.GetCompany(r.Context(), id)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if err := a.checkCompanyZone(actor, company); err != nil {
		handleDomainError(w, r, err)
		return
	}
	// A zone-restricted editor cannot move a company out of their zone.
	if req.Zone != nil && a.zones.RequiresZoneRestriction(actor.Roles) && *req.Zone != actor.Zone {
		writeError(w, r, http.StatusForbidden, "cannot move company outside assigned zone")
		return
	}

	updated, err := a.companies.UpdateCompany(r.Context(), id, identity.CompanyUpdate{
		TradeName: req.TradeName,
		Business:  req.Business,
		Region:    req.Region,
		City:      req.City,
		District:  req.District,
		Address:   req.Address,
		Phone:     req.Phone,
		Email:     req.Email,
		Plan:      req.Plan,
		Zone:      req.Zone,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// checkCompanyZone refuses zone-restricted actors access to companies
// outside their zone. Companies without a zone are visible to everyone
// with module access.
func (a *API) checkCompanyZone(actor identity.Actor, company *identity.Company) error {
	if !a.zones.RequiresZoneRestriction(actor.Roles) {
		return nil
	}
	if actor.Zone == "" {
		return rbac.ErrZoneNotAssigned
	}
	if company.Zone != "" && company.Zone != actor.Zone {
		return fmt.Errorf("%w: company outside assigned zone", identity.ErrForbidden)
	}
	return nil
}

func (a *API) handleRequestsCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	actor, _ := identity.ActorFromContext(r.Context())

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parsePositiveInt(r.URL.Query().Get("offset"), 0, 0, 1<<30)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	requests, err := a.workflow.ListForActor(r.Context(), actor, approval.Filter{
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		Kind:   strings.TrimSpace(r.URL.Query().Get("tipo")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": requests,
		"as_of": time.Now().UTC(),
	})
}

func (a *API) handleRequestResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/solicitudes/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	if strings.HasSuffix(path, "/decision") {
		id := strings.TrimSuffix(strings.TrimSuffix(path, "/decision"), "/")
		if id == "" {
			writeError(w, r, http.StatusNotFound, "request not found")
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		a.decideRequest(w, r, id)
		return
	}

	if strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	actor, _ := identity.ActorFromContext(r.Context())
	req, err := a.workflow.GetForActor(r.Context(), actor, path)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (a *API) decideRequest(w http.ResponseWriter, r *http.Request, id string) {
	actor, _ := identity.ActorFromContext(r.Context())

	var req decisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Decision != approval.DecisionApprove && req.Decision != approval.DecisionReject {
		writeError(w, r, http.StatusBadRequest, "decision must be approve or reject")
		return
	}

	decided, err := a.workflow.Decide(r.Context(), actor, id, req.Decision, req.Note)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decided)
}

func (a *API) handleAuditList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	limit, err := parsePositiveInt(r.URL.Query().Get("limit"), 100, 1, 500)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parsePositiveInt(r.URL.Query().Get("offset"), 0, 0, 1<<30)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	since, err := parseTimeParam(r.URL.Query().Get("since"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "since must be RFC 3339")
		return
	}
	until, err := parseTimeParam(r.URL.Query().Get("until"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "until must be RFC 3339")
		return
	}

	events, err := a.auditLog.ListAuditEvents(r.Context(), audit.Query{
		Action:   strings.TrimSpace(r.URL.Query().Get("action")),
		Severity: strings.TrimSpace(r.URL.Query().Get("severity")),
		Search:   strings.TrimSpace(r.URL.Query().Get("busqueda")),
		Since:    since,
		Until:    until,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": events,
		"as_of": time.Now().UTC(),
	})
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("value must be an integer")
	}
	if val < min || val > max {
		return 0, fmt.Errorf("value must be between %d and %d", min, max)
	}
	return val, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
