package pg

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"aexfy.org/internal/audit"
	"aexfy.org/internal/ids"
)

var _ audit.Sink = (*Store)(nil)

// Record appends one audit event. The trail is append-only; there is no
// update or delete path anywhere in this package.
func (s *Store) Record(ctx context.Context, ev audit.Event) error {
	if ev.ID == "" {
		ev.ID = ids.New()
	}
	meta := []byte("{}")
	if len(ev.Metadata) > 0 {
		raw, err := json.Marshal(ev.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		meta = raw
	}
	_, err := s.db.ExecContext(ctx, `
		insert into audit_events (id, actor_id, actor_email, action, entity_kind, entity_id, severity, metadata, occurred_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, ev.ID, nullIfEmpty(ev.ActorID), nullIfEmpty(ev.ActorEmail), ev.Action,
		nullIfEmpty(ev.EntityKind), nullIfEmpty(ev.EntityID), ev.Severity, meta, ev.OccurredAt)
	return err
}

// ListAuditEvents returns the newest matching events first.
func (s *Store) ListAuditEvents(ctx context.Context, filter audit.Query) ([]audit.Event, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, coalesce(actor_id,''), coalesce(actor_email,''), action,
			coalesce(entity_kind,''), coalesce(entity_id,''), severity, metadata, occurred_at
		from audit_events
		where ($1 = '' or action = $1)
		  and ($2 = '' or severity = $2)
		  and ($3 = '' or action ilike '%' || $3 || '%'
			or coalesce(actor_email,'') ilike '%' || $3 || '%'
			or coalesce(entity_id,'') ilike '%' || $3 || '%')
		  and ($4::timestamptz is null or occurred_at >= $4)
		  and ($5::timestamptz is null or occurred_at <= $5)
		order by occurred_at desc
		limit $6 offset $7
	`, filter.Action, filter.Severity, filter.Search,
		nullIfZeroTime(filter.Since), nullIfZeroTime(filter.Until), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			ev  audit.Event
			raw []byte
		)
		if err := rows.Scan(&ev.ID, &ev.ActorID, &ev.ActorEmail, &ev.Action,
			&ev.EntityKind, &ev.EntityID, &ev.Severity, &raw, &ev.OccurredAt); err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &ev.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func nullIfZeroTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
