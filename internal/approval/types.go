package approval

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"aexfy.org/internal/identity"
)

// Request kinds.
const (
	KindStaff   = "staff"
	KindCompany = "company"
)

// Request statuses. The only legal transitions are pending->approved and
// pending->rejected, each exactly once.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Reviewer decisions.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// StaffPayload captures everything needed to replay a staff creation.
type StaffPayload struct {
	RUT            string `json:"rut"`
	Email          string `json:"email"`
	Phone          string `json:"telefono,omitempty"`
	EmergencyPhone string `json:"telefono_emergencia,omitempty"`
	FirstNames     string `json:"nombres"`
	LastNames      string `json:"apellidos"`
	Role           string `json:"rol"`
	Zone           string `json:"zona,omitempty"`
}

// FullName joins the name parts for invite metadata.
func (p StaffPayload) FullName() string {
	return strings.TrimSpace(p.FirstNames + " " + p.LastNames)
}

// CompanyPayload captures everything needed to replay a company creation,
// including the company owner who receives the credential invite.
type CompanyPayload struct {
	RUT       string `json:"rut"`
	LegalName string `json:"razon_social"`
	TradeName string `json:"nombre_fantasia,omitempty"`
	Business  string `json:"giro,omitempty"`
	Region    string `json:"region,omitempty"`
	City      string `json:"ciudad,omitempty"`
	District  string `json:"comuna,omitempty"`
	Address   string `json:"direccion,omitempty"`
	Phone     string `json:"telefono,omitempty"`
	Email     string `json:"email,omitempty"`
	Plan      string `json:"plan,omitempty"`
	Zone      string `json:"zona,omitempty"`

	OwnerRUT        string `json:"owner_rut"`
	OwnerEmail      string `json:"owner_email"`
	OwnerFirstNames string `json:"owner_nombres"`
	OwnerLastNames  string `json:"owner_apellidos"`
	OwnerPhone      string `json:"owner_telefono,omitempty"`
	SellerEmail     string `json:"seller_email,omitempty"`
}

// OwnerFullName joins the owner name parts for invite metadata.
func (p CompanyPayload) OwnerFullName() string {
	return strings.TrimSpace(p.OwnerFirstNames + " " + p.OwnerLastNames)
}

// Request is a queued sensitive action awaiting review. Terminal requests
// are retained forever for audit.
type Request struct {
	ID             string          `json:"id"`
	Kind           string          `json:"request_type"`
	Status         string          `json:"status"`
	SubmittedBy    string          `json:"submitted_by"`
	SubmitterRoles []string        `json:"submitter_roles,omitempty"`
	Payload        json.RawMessage `json:"payload"`
	ReviewerID     string          `json:"reviewer_id,omitempty"`
	DecisionNote   string          `json:"decision_note,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	DecidedAt      *time.Time      `json:"decided_at,omitempty"`
}

// PayloadZone extracts the zone stamped into the payload, for zone-scoped
// visibility filtering. Both payload kinds share the "zona" key.
func (r *Request) PayloadZone() string {
	var probe struct {
		Zone string `json:"zona"`
	}
	if err := json.Unmarshal(r.Payload, &probe); err != nil {
		return ""
	}
	return probe.Zone
}

// ConflictError reports per-field uniqueness conflicts. It matches
// identity.ErrValidationConflict so callers can branch on the taxonomy.
type ConflictError struct {
	Fields map[string]string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("validation conflict: %v", e.Fields)
}

// Unwrap makes errors.Is match the shared sentinel.
func (e *ConflictError) Unwrap() error { return identity.ErrValidationConflict }

// SubmitResult reports what a submission produced: either a directly
// created entity or a queued request.
type SubmitResult struct {
	Queued     bool   `json:"queued"`
	RequestID  string `json:"request_id,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	InviteLink string `json:"invite_link,omitempty"`
}
