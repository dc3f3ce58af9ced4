package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"aexfy.org/internal/obs"
)

func TestLogSinkRecord(t *testing.T) {
	logger := obs.Logger()
	original := logger.Writer()
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(original)

	ctx := WithRequestID(context.Background(), "req-123")

	err := LogSink{}.Record(ctx, Event{
		ActorID:    "user-42",
		Action:     ActionStaffCreated,
		EntityKind: "usuarios",
		EntityID:   "u-7",
		Severity:   SeverityMedium,
		Metadata:   map[string]any{"rol": "Vendedor"},
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log not valid JSON: %v", err)
	}
	if entry["type"] != "audit" {
		t.Fatalf("unexpected type: %v", entry["type"])
	}
	if entry["action"] != ActionStaffCreated {
		t.Fatalf("unexpected action: %v", entry["action"])
	}
	if entry["request_id"] != "req-123" {
		t.Fatalf("unexpected request id: %v", entry["request_id"])
	}
	if entry["actor"] != "user-42" {
		t.Fatalf("unexpected actor: %v", entry["actor"])
	}
	meta, ok := entry["metadata"].(map[string]any)
	if !ok || meta["rol"] != "Vendedor" {
		t.Fatalf("metadata missing or incorrect: %v", entry["metadata"])
	}
}
