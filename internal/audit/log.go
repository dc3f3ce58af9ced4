package audit

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"aexfy.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context so sinks can
// correlate events with request logs.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogSink writes events as structured JSON lines through the shared logger.
// It backs development setups and doubles as a secondary sink next to the
// database one.
type LogSink struct{}

// Record emits one JSON line per event.
func (LogSink) Record(ctx context.Context, event Event) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	entry := map[string]any{
		"ts":     event.OccurredAt.Format(time.RFC3339Nano),
		"type":   "audit",
		"action": event.Action,
		"actor":  event.ActorID,
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		entry["request_id"] = rid
	}
	if event.EntityKind != "" {
		entry["entity_kind"] = event.EntityKind
	}
	if event.EntityID != "" {
		entry["entity_id"] = event.EntityID
	}
	if event.Severity != "" {
		entry["severity"] = event.Severity
	}
	if len(event.Metadata) > 0 {
		entry["metadata"] = event.Metadata
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
