package audit

import (
	"context"
	"errors"
	"time"
)

// Severity levels stored with every event.
const (
	SeverityLow    = "baja"
	SeverityMedium = "media"
	SeverityHigh   = "alta"
)

// Action kinds emitted by the engine. Approval and creation flows reuse the
// names the back office has always stored, so history stays queryable.
const (
	ActionStaffCreated           = "staff_creado"
	ActionStaffRequestCreated    = "staff_solicitud_creada"
	ActionStaffCreatedByApproval = "staff_creado_por_aprobacion"
	ActionCompanyCreated         = "empresa_creada"
	ActionCompanyRequestCreated  = "empresa_solicitud_creada"
	ActionRequestApproved        = "solicitud_aprobada"
	ActionRequestRejected        = "solicitud_rechazada"
	ActionSessionEvicted         = "sesion_expulsada"
	ActionLogin                  = "login"
	ActionLogout                 = "logout"
)

// Event is an append-only record of an authorization decision outcome or a
// workflow transition. Events are never mutated or deleted.
type Event struct {
	ID         string         `json:"id,omitempty"`
	ActorID    string         `json:"actor_id"`
	ActorEmail string         `json:"actor_email,omitempty"`
	Action     string         `json:"action"`
	EntityKind string         `json:"entity_kind,omitempty"`
	EntityID   string         `json:"entity_id,omitempty"`
	Severity   string         `json:"severity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Query narrows event listings. Zero values mean no constraint. Search is
// a free-text term matched against the action, the actor email and the
// entity id.
type Query struct {
	Action   string
	Severity string
	Search   string
	Since    time.Time
	Until    time.Time
	Limit    int
	Offset   int
}

// Sink persists events. Implementations must tolerate concurrent calls.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// Recorder is the fire-and-forget surface the engine reports to. Failures
// never propagate to the caller.
type Recorder interface {
	Record(ctx context.Context, event Event)
}

// MultiSink fans each event out to every sink. Every sink sees the event
// even when an earlier one fails; the errors are joined.
type MultiSink []Sink

func (m MultiSink) Record(ctx context.Context, event Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
