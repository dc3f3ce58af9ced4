package approval

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"aexfy.org/internal/audit"
	"aexfy.org/internal/identity"
	"aexfy.org/internal/ids"
	"aexfy.org/internal/obs"
	"aexfy.org/internal/rbac"
)

// Role granted to company owners created through the company flow.
const roleClientOwner = "OwnerCliente"

// Workflow decides whether sensitive create operations execute immediately
// or are queued for review, and replays queued payloads once a reviewer
// approves them. All authorization is computed before any side-effecting
// call; once an invite has been issued, later failures are logged with full
// context instead of being silently lost.
type Workflow struct {
	resolver    *rbac.Resolver
	zones       *rbac.ZonePolicy
	store       Store
	directory   Directory
	provisioner Provisioner
	recorder    audit.Recorder
	now         func() time.Time
}

// NewWorkflow wires the workflow's collaborators. recorder may be nil.
func NewWorkflow(resolver *rbac.Resolver, zones *rbac.ZonePolicy, store Store, directory Directory, provisioner Provisioner, recorder audit.Recorder) (*Workflow, error) {
	if resolver == nil || zones == nil {
		return nil, errors.New("approval: resolver and zone policy are required")
	}
	if store == nil || directory == nil || provisioner == nil {
		return nil, errors.New("approval: store, directory and provisioner are required")
	}
	return &Workflow{
		resolver:    resolver,
		zones:       zones,
		store:       store,
		directory:   directory,
		provisioner: provisioner,
		recorder:    recorder,
		now:         time.Now,
	}, nil
}

// RequiresApproval reports whether the actor's submissions are queued.
func (w *Workflow) RequiresApproval(roles []string) bool {
	return w.resolver.RequiresApproval(roles)
}

// SubmitStaff runs the staff-creation flow for the actor: zone stamping,
// uniqueness validation, then either direct execution or queueing.
func (w *Workflow) SubmitStaff(ctx context.Context, actor identity.Actor, p StaffPayload) (SubmitResult, error) {
	zone, err := w.stampZone(actor, p.Zone)
	if err != nil {
		return SubmitResult{}, err
	}
	// The granted role decides whether the record carries a zone at all:
	// zone-exempt roles store none, whatever the form sent.
	p.Zone = w.zones.ClearZoneIfExempt([]string{p.Role}, zone)

	if err := w.checkUnique(ctx, p.RUT, p.Email, p.Phone); err != nil {
		return SubmitResult{}, err
	}

	if w.resolver.RequiresApproval(actor.Roles) {
		req, err := w.enqueue(ctx, actor, KindStaff, p)
		if err != nil {
			return SubmitResult{}, err
		}
		w.record(ctx, actor, audit.ActionStaffRequestCreated, "requests", req.ID, audit.SeverityMedium, map[string]any{
			"email": p.Email, "rol": p.Role, "zona": p.Zone,
		})
		return SubmitResult{Queued: true, RequestID: req.ID}, nil
	}

	// Direct execution still requires the actor to be able to grant the
	// requested role.
	if !w.resolver.CanAssignRole(actor.Roles, p.Role) {
		return SubmitResult{}, fmt.Errorf("%w: cannot assign role %s", identity.ErrForbidden, p.Role)
	}

	entityID, link, err := w.createStaff(ctx, p)
	if err != nil {
		return SubmitResult{}, err
	}
	w.record(ctx, actor, audit.ActionStaffCreated, "usuarios", entityID, audit.SeverityMedium, map[string]any{
		"email": p.Email, "rol": p.Role, "zona": p.Zone,
	})
	return SubmitResult{EntityID: entityID, InviteLink: link}, nil
}

// SubmitCompany runs the company-creation flow for the actor.
func (w *Workflow) SubmitCompany(ctx context.Context, actor identity.Actor, p CompanyPayload) (SubmitResult, error) {
	zone, err := w.stampZone(actor, p.Zone)
	if err != nil {
		return SubmitResult{}, err
	}
	p.Zone = zone

	if err := w.checkUnique(ctx, p.OwnerRUT, p.OwnerEmail, p.OwnerPhone); err != nil {
		return SubmitResult{}, err
	}

	if w.resolver.RequiresApproval(actor.Roles) {
		req, err := w.enqueue(ctx, actor, KindCompany, p)
		if err != nil {
			return SubmitResult{}, err
		}
		w.record(ctx, actor, audit.ActionCompanyRequestCreated, "requests", req.ID, audit.SeverityMedium, map[string]any{
			"rut": p.RUT, "owner_email": p.OwnerEmail,
		})
		return SubmitResult{Queued: true, RequestID: req.ID}, nil
	}

	entityID, link, err := w.createCompany(ctx, p)
	if err != nil {
		return SubmitResult{}, err
	}
	w.record(ctx, actor, audit.ActionCompanyCreated, "clientes", entityID, audit.SeverityMedium, map[string]any{
		"rut": p.RUT, "owner_email": p.OwnerEmail,
	})
	return SubmitResult{EntityID: entityID, InviteLink: link}, nil
}

// ListForActor returns requests the actor may see. Zone-restricted
// reviewers only see requests stamped with their enforced zone.
func (w *Workflow) ListForActor(ctx context.Context, actor identity.Actor, filter Filter) ([]*Request, error) {
	requests, err := w.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	if !w.zones.RequiresZoneRestriction(actor.Roles) {
		return requests, nil
	}
	if actor.Zone == "" {
		return nil, rbac.ErrZoneNotAssigned
	}
	visible := requests[:0]
	for _, req := range requests {
		if req.PayloadZone() == actor.Zone {
			visible = append(visible, req)
		}
	}
	return visible, nil
}

// GetForActor returns one request, refusing zone-restricted actors access
// to requests outside their zone.
func (w *Workflow) GetForActor(ctx context.Context, actor identity.Actor, id string) (*Request, error) {
	req, err := w.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if w.zones.RequiresZoneRestriction(actor.Roles) {
		if actor.Zone == "" {
			return nil, rbac.ErrZoneNotAssigned
		}
		if req.PayloadZone() != actor.Zone {
			return nil, fmt.Errorf("%w: request outside assigned zone", identity.ErrForbidden)
		}
	}
	return req, nil
}

// Decide processes a reviewer decision. The transition out of pending is a
// single conditional write executed before any side effect, so a request
// is decided at most once even under concurrent reviewers.
func (w *Workflow) Decide(ctx context.Context, reviewer identity.Actor, requestID, decision, note string) (*Request, error) {
	req, err := w.GetForActor(ctx, reviewer, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusPending {
		return nil, identity.ErrAlreadyResolved
	}

	switch decision {
	case DecisionReject:
		return w.reject(ctx, reviewer, req, note)
	case DecisionApprove:
		return w.approve(ctx, reviewer, req, note)
	default:
		return nil, fmt.Errorf("approval: unknown decision %q", decision)
	}
}

func (w *Workflow) reject(ctx context.Context, reviewer identity.Actor, req *Request, note string) (*Request, error) {
	decidedAt := w.now().UTC()
	if err := w.store.Transition(ctx, req.ID, StatusRejected, reviewer.ID, note, decidedAt); err != nil {
		return nil, err
	}
	req.Status = StatusRejected
	req.ReviewerID = reviewer.ID
	req.DecisionNote = note
	req.DecidedAt = &decidedAt

	obs.ApprovalDecision(req.Kind, StatusRejected)
	w.record(ctx, reviewer, audit.ActionRequestRejected, "requests", req.ID, audit.SeverityMedium, map[string]any{
		"decision_note": note, "request_type": req.Kind,
	})
	return req, nil
}

func (w *Workflow) approve(ctx context.Context, reviewer identity.Actor, req *Request, note string) (*Request, error) {
	// Re-validate against current state: the submitter's authority at
	// submission time is never trusted for the actual grant, and conflicts
	// may have appeared since.
	var staffP StaffPayload
	var companyP CompanyPayload
	switch req.Kind {
	case KindStaff:
		if err := json.Unmarshal(req.Payload, &staffP); err != nil {
			return nil, fmt.Errorf("decode staff payload: %w", err)
		}
		if !w.resolver.CanAssignRole(reviewer.Roles, staffP.Role) {
			return nil, fmt.Errorf("%w: cannot approve role %s", identity.ErrForbidden, staffP.Role)
		}
		if err := w.checkUnique(ctx, staffP.RUT, staffP.Email, staffP.Phone); err != nil {
			return nil, err
		}
	case KindCompany:
		if err := json.Unmarshal(req.Payload, &companyP); err != nil {
			return nil, fmt.Errorf("decode company payload: %w", err)
		}
		if err := w.checkUnique(ctx, companyP.OwnerRUT, companyP.OwnerEmail, companyP.OwnerPhone); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("approval: unknown request kind %q", req.Kind)
	}

	// Linearization point: only one reviewer wins this write.
	decidedAt := w.now().UTC()
	if err := w.store.Transition(ctx, req.ID, StatusApproved, reviewer.ID, note, decidedAt); err != nil {
		return nil, err
	}
	req.Status = StatusApproved
	req.ReviewerID = reviewer.ID
	req.DecisionNote = note
	req.DecidedAt = &decidedAt
	obs.ApprovalDecision(req.Kind, StatusApproved)

	// Replay the captured payload. Failures past this point cannot undo
	// the decision; they are logged with full context for reconciliation.
	var entityID, link string
	var replayErr error
	switch req.Kind {
	case KindStaff:
		entityID, link, replayErr = w.createStaff(ctx, staffP)
		if replayErr == nil {
			w.record(ctx, reviewer, audit.ActionStaffCreatedByApproval, "usuarios", entityID, audit.SeverityMedium, map[string]any{
				"email": staffP.Email, "rol": staffP.Role, "zona": staffP.Zone,
			})
		}
	case KindCompany:
		entityID, link, replayErr = w.createCompany(ctx, companyP)
	}
	if replayErr != nil {
		obs.LogEvent(map[string]any{
			"level":      "error",
			"msg":        "approval replay failed after transition",
			"request_id": req.ID,
			"kind":       req.Kind,
			"reviewer":   reviewer.ID,
			"error":      replayErr.Error(),
		})
		w.record(ctx, reviewer, audit.ActionRequestApproved, "requests", req.ID, audit.SeverityHigh, map[string]any{
			"request_type": req.Kind, "replay_error": replayErr.Error(),
		})
		return req, errors.Join(identity.ErrUnavailable, replayErr)
	}

	w.record(ctx, reviewer, audit.ActionRequestApproved, "requests", req.ID, audit.SeverityMedium, map[string]any{
		"decision_note": note, "request_type": req.Kind, "entity_id": entityID, "invite_link": link,
	})
	return req, nil
}

// stampZone resolves the zone a submission is recorded under: restricted
// actors always use their own zone (refused when unassigned), everyone
// else keeps the zone supplied in the payload.
func (w *Workflow) stampZone(actor identity.Actor, requested string) (string, error) {
	return w.zones.EnforceZone(actor.Roles, actor.Zone, requested)
}

func (w *Workflow) checkUnique(ctx context.Context, rut, email, phone string) error {
	conflicts, err := w.directory.CheckUniqueness(ctx, rut, email, phone)
	if err != nil {
		return errors.Join(identity.ErrUnavailable, err)
	}
	if len(conflicts) > 0 {
		return &ConflictError{Fields: conflicts}
	}
	return nil
}

func (w *Workflow) enqueue(ctx context.Context, actor identity.Actor, kind string, payload any) (*Request, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req := &Request{
		ID:             ids.New(),
		Kind:           kind,
		Status:         StatusPending,
		SubmittedBy:    actor.ID,
		SubmitterRoles: actor.Roles,
		Payload:        raw,
		CreatedAt:      w.now().UTC(),
	}
	if err := w.store.Create(ctx, req); err != nil {
		return nil, errors.Join(identity.ErrUnavailable, err)
	}
	return req, nil
}

func (w *Workflow) createStaff(ctx context.Context, p StaffPayload) (entityID, link string, err error) {
	authID, link, err := w.provisioner.IssueInvite(ctx, p.Email, map[string]any{
		"rut":       p.RUT,
		"full_name": p.FullName(),
		"role":      p.Role,
		"roles":     []string{p.Role},
		"zona":      p.Zone,
	})
	if err != nil {
		return "", "", fmt.Errorf("issue invite: %w", err)
	}
	entityID, err = w.directory.CreateStaff(ctx, authID, p)
	if err != nil {
		// The invite already went out; keep enough context to reconcile.
		return "", link, fmt.Errorf("create staff after invite %s: %w", authID, err)
	}
	return entityID, link, nil
}

func (w *Workflow) createCompany(ctx context.Context, p CompanyPayload) (entityID, link string, err error) {
	authID, link, err := w.provisioner.IssueInvite(ctx, p.OwnerEmail, map[string]any{
		"rut":          p.OwnerRUT,
		"full_name":    p.OwnerFullName(),
		"role":         roleClientOwner,
		"roles":        []string{roleClientOwner},
		"tipo_usuario": "propietario_cliente",
	})
	if err != nil {
		return "", "", fmt.Errorf("issue owner invite: %w", err)
	}
	entityID, err = w.directory.CreateCompany(ctx, authID, p)
	if err != nil {
		return "", link, fmt.Errorf("create company after invite %s: %w", authID, err)
	}
	return entityID, link, nil
}

func (w *Workflow) record(ctx context.Context, actor identity.Actor, action, entityKind, entityID, severity string, metadata map[string]any) {
	if w.recorder == nil {
		return
	}
	w.recorder.Record(ctx, audit.Event{
		ActorID:    actor.ID,
		ActorEmail: actor.Email,
		Action:     action,
		EntityKind: entityKind,
		EntityID:   entityID,
		Severity:   severity,
		Metadata:   metadata,
	})
}
