package audit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goAuthz/internal/metrics"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, Event) {
	s.count.Add(1)
}

// gateSink blocks every Emit until gate is closed or fed, and signals the first
// entry on entered.
type gateSink struct {
	gate    chan struct{}
	entered chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{gate: make(chan struct{}), entered: make(chan struct{}, 1)}
}

func (s *gateSink) Emit(context.Context, Event) {
	select {
	case s.entered <- struct{}{}:
	default:
	}
	<-s.gate
}

func (s *gateSink) waitEntered(t *testing.T) {
	t.Helper()
	select {
	case <-s.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("relay goroutine never reached the sink")
	}
}

func newDispatcherUnderTest(cfg Config, sink Sink) (*Dispatcher, *metrics.Metrics, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	m := metrics.New(metrics.Config{Enabled: true})
	return NewDispatcher(cfg, sink, zap.New(core), m), m, logs
}

func TestDispatcherSyncModeReturnsNil(t *testing.T) {
	d := NewDispatcher(Config{Async: false}, &countingSink{}, nil, nil)
	if d != nil {
		t.Fatal("expected nil dispatcher when async is off")
	}
	d.Emit(context.Background(), Event{EventType: EventLogin})
	d.Close()
}

func TestDispatcherDeliversAndDrainsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := &countingSink{}
	d, m, _ := newDispatcherUnderTest(Config{Async: true, BufferSize: 16}, sink)
	for i := 0; i < 10; i++ {
		d.Emit(context.Background(), Event{EventType: EventLogin, UserID: "u1"})
	}
	d.Close()

	if got := sink.count.Load(); got != 10 {
		t.Fatalf("expected 10 delivered events, got %d", got)
	}
	if got := m.Value(metrics.AuditDropped); got != 0 {
		t.Fatalf("expected no drops, got %d", got)
	}
}

func TestDispatcherDropIfFullCountsAndWarnsOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	sink := newGateSink()
	d, m, logs := newDispatcherUnderTest(Config{Async: true, BufferSize: 1, DropIfFull: true}, sink)
	defer d.Close()
	defer close(sink.gate)

	d.Emit(context.Background(), Event{EventType: "e1"})
	sink.waitEntered(t)
	d.Emit(context.Background(), Event{EventType: "e2"})

	start := time.Now()
	d.Emit(context.Background(), Event{EventType: "e3", UserID: "u1"})
	d.Emit(context.Background(), Event{EventType: "e4", UserID: "u1"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking emit when DropIfFull is true")
	}

	if got := m.Value(metrics.AuditDropped); got != 2 {
		t.Fatalf("dropped = %d, want 2", got)
	}
	warns := logs.FilterMessage("audit events dropped")
	if warns.Len() != 1 {
		t.Fatalf("expected one warning for a saturated period, got %d", warns.Len())
	}
	if got := warns.All()[0].ContextMap()["reason"]; got != "queue_full" {
		t.Fatalf("reason = %v, want queue_full", got)
	}
}

func TestDispatcherLogsRecoveryAfterSaturation(t *testing.T) {
	sink := newGateSink()
	d, _, logs := newDispatcherUnderTest(Config{Async: true, BufferSize: 1, DropIfFull: true}, sink)
	defer d.Close()

	d.Emit(context.Background(), Event{EventType: "e1"})
	sink.waitEntered(t)
	d.Emit(context.Background(), Event{EventType: "e2"})
	d.Emit(context.Background(), Event{EventType: "e3"})
	close(sink.gate)

	deadline := time.Now().Add(2 * time.Second)
	for logs.FilterMessage("audit queue accepting events again").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("recovery was never logged")
		}
		d.Emit(context.Background(), Event{EventType: "e4"})
		time.Sleep(5 * time.Millisecond)
	}
}

func TestDispatcherBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	d, m, _ := newDispatcherUnderTest(Config{Async: true}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	sink.waitEntered(t)
	d.Emit(context.Background(), Event{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		d.Emit(context.Background(), Event{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected emit to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked emit to proceed after space is available")
	}
	if got := m.Value(metrics.AuditDropped); got != 0 {
		t.Fatalf("dropped = %d, want 0", got)
	}
}

func TestDispatcherBlockedEmitGivesUpWithContext(t *testing.T) {
	sink := newGateSink()
	d, m, logs := newDispatcherUnderTest(Config{Async: true, BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Emit(context.Background(), Event{EventType: "e1"})
	sink.waitEntered(t)
	d.Emit(context.Background(), Event{EventType: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	d.Emit(ctx, Event{EventType: "e3"})

	if got := m.Value(metrics.AuditDropped); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
	if got := logs.FilterMessage("audit events dropped").All()[0].ContextMap()["reason"]; got != "context_done" {
		t.Fatalf("reason = %v, want context_done", got)
	}
}

type requestIDKey struct{}

func TestDispatcherKeepsContextValuesPastCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	type seen struct {
		requestID any
		err       error
	}
	got := make(chan seen, 1)
	sink := SinkFunc(func(ctx context.Context, _ Event) {
		got <- seen{requestID: ctx.Value(requestIDKey{}), err: ctx.Err()}
	})

	gate := newGateSink()
	d, _, _ := newDispatcherUnderTest(Config{Async: true, BufferSize: 4}, MultiSink{gate, sink})

	d.Emit(context.Background(), Event{EventType: "warmup"})
	gate.waitEntered(t)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), requestIDKey{}, "req-1"))
	d.Emit(ctx, Event{EventType: EventLogin})
	cancel()

	close(gate.gate)
	<-got // warmup
	s := <-got
	d.Close()

	if s.requestID != "req-1" {
		t.Fatalf("request id = %v, want req-1", s.requestID)
	}
	if s.err != nil {
		t.Fatalf("sink saw cancelled context: %v", s.err)
	}
}

func TestDispatcherEmitAfterCloseIsCounted(t *testing.T) {
	d, m, _ := newDispatcherUnderTest(Config{Async: true, BufferSize: 4, DropIfFull: true}, &countingSink{})

	d.Emit(context.Background(), Event{EventType: "e1"})
	d.Close()
	d.Close()
	d.Emit(context.Background(), Event{EventType: "e2"})

	if got := m.Value(metrics.AuditDropped); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestJSONWriterSinkLogsWriteFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	sink := NewJSONWriterSink(failingWriter{}, zap.New(core))

	sink.Emit(context.Background(), Event{EventType: EventLogin, UserID: "u1"})

	entries := logs.FilterMessage("audit event write failed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one warning, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["user_id"]; got != "u1" {
		t.Fatalf("user_id = %v", got)
	}
}

func TestLoggerSinkUsesStoredFieldNames(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLoggerSink(zap.New(core))

	sink.Emit(context.Background(), Event{
		EventType: EventLogout,
		Success:   true,
		UserID:    "u1",
		SessionID: "s1",
		Metadata:  map[string]string{"reason": "logout"},
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	ev, ok := entries[0].ContextMap()["event"].(map[string]interface{})
	if !ok {
		t.Fatalf("event field has type %T", entries[0].ContextMap()["event"])
	}
	if ev["eventType"] != "logout" || ev["userId"] != "u1" || ev["sessionId"] != "s1" {
		t.Fatalf("unexpected event fields %v", ev)
	}
	if _, ok := ev["ipAddress"]; ok {
		t.Fatal("empty fields must be omitted")
	}
	md, ok := ev["metadata"].(map[string]interface{})
	if !ok || md["reason"] != "logout" {
		t.Fatalf("unexpected metadata %v", ev["metadata"])
	}
}

func TestChannelSinkDropsWhenFull(t *testing.T) {
	sink := NewChannelSink(1)
	sink.Emit(context.Background(), Event{EventType: EventLogin})
	sink.Emit(context.Background(), Event{EventType: EventLogout})

	if got := (<-sink.Events()).EventType; got != EventLogin {
		t.Fatalf("unexpected event %q", got)
	}
	if sink.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", sink.Dropped())
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	MultiSink{a, nil, b}.Emit(context.Background(), Event{EventType: EventLogout})

	if a.count.Load() != 1 || b.count.Load() != 1 {
		t.Fatalf("expected one event per sink, got %d and %d", a.count.Load(), b.count.Load())
	}
}
