package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Record(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcherDeliversAndDrains(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, 16)

	for i := 0; i < 10; i++ {
		d.Record(context.Background(), Event{ActorID: "u1", Action: ActionLogin})
	}
	d.Close()

	if got := sink.len(); got != 10 {
		t.Fatalf("expected 10 events after drain, got %d", got)
	}
}

func TestDispatcherStampsTimestamp(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, 1)
	d.Record(context.Background(), Event{ActorID: "u1", Action: ActionLogout})
	d.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 1 || sink.events[0].OccurredAt.IsZero() {
		t.Fatalf("expected one event with timestamp, got %+v", sink.events)
	}
}

type failSink struct{}

func (failSink) Record(context.Context, Event) error { return errors.New("sink down") }

func TestMultiSinkDeliversToEverySink(t *testing.T) {
	first := &captureSink{}
	second := &captureSink{}
	m := MultiSink{first, failSink{}, second}

	err := m.Record(context.Background(), Event{ActorID: "u1", Action: ActionLogin})
	if err == nil {
		t.Fatal("expected the failing sink's error to surface")
	}
	if first.len() != 1 || second.len() != 1 {
		t.Fatalf("every sink must receive the event, got %d and %d", first.len(), second.len())
	}
}

type ridSink struct {
	mu   sync.Mutex
	rids []string
}

func (s *ridSink) Record(ctx context.Context, _ Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rids = append(s.rids, requestIDFromContext(ctx))
	return nil
}

func TestDispatcherCarriesRequestID(t *testing.T) {
	sink := &ridSink{}
	d := NewDispatcher(sink, 4)
	ctx := WithRequestID(context.Background(), "req-42")
	d.Record(ctx, Event{ActorID: "u1", Action: ActionLogin})
	d.Close()

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.rids) != 1 || sink.rids[0] != "req-42" {
		t.Fatalf("expected request id to survive the hop, got %v", sink.rids)
	}
}

type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Record(context.Context, Event) error {
	<-s.release
	return nil
}

func TestDispatcherDropsWhenBufferFull(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewDispatcher(sink, 1)

	// With the worker stalled in the sink and a single-slot buffer, three
	// rapid events cannot all be accepted.
	for i := 0; i < 3; i++ {
		d.Record(context.Background(), Event{ActorID: "u1", Action: ActionLogin})
	}
	if d.Dropped() == 0 {
		t.Fatal("expected at least one dropped event")
	}
	close(sink.release)
	d.Close()
}

func TestDispatcherRecordAfterCloseIsNoop(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(sink, 1)
	d.Close()
	d.Record(context.Background(), Event{ActorID: "u1", Action: ActionLogin})
	time.Sleep(10 * time.Millisecond)
	if got := sink.len(); got != 0 {
		t.Fatalf("expected no events after close, got %d", got)
	}
}
