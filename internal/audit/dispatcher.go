package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"aexfy.org/internal/obs"
)

// Dispatcher forwards events to a sink from a background goroutine so that
// audit writes never block request handling. When the buffer is full the
// event is dropped and counted rather than queued.
type Dispatcher struct {
	sink      Sink
	ch        chan queuedEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts the background worker. bufferSize <= 0 falls back
// to a single-slot buffer.
func NewDispatcher(sink Sink, bufferSize int) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if sink == nil {
		sink = noopSink{}
	}
	d := &Dispatcher{
		sink: sink,
		ch:   make(chan queuedEvent, bufferSize),
		done: make(chan struct{}),
	}
	d.wg.Add(1)
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for {
		select {
		case q := <-d.ch:
			d.record(q)
		case <-d.done:
			// drain whatever is buffered before exiting
			for {
				select {
				case q := <-d.ch:
					d.record(q)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) record(q queuedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = WithRequestID(ctx, q.requestID)
	if err := d.sink.Record(ctx, q.event); err != nil {
		obs.LogEvent(map[string]any{
			"level":  "warn",
			"msg":    "audit sink write failed",
			"action": q.event.Action,
			"error":  err.Error(),
		})
	}
}

// Record enqueues the event without blocking the caller. The request id, if
// present on ctx, travels with the event since the sink runs on a background
// context.
func (d *Dispatcher) Record(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	select {
	case d.ch <- queuedEvent{event: event, requestID: requestIDFromContext(ctx)}:
	case <-d.done:
	default:
		d.dropped.Add(1)
		obs.AuditDropped()
	}
}

// Close stops the worker after draining buffered events.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many events were discarded due to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

type queuedEvent struct {
	event     Event
	requestID string
}

type noopSink struct{}

func (noopSink) Record(context.Context, Event) error { return nil }
