package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Sink receives emitted events. Delivery is best-effort: Emit reports nothing to
// the caller and must not block indefinitely.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// SinkFunc adapts a function to [Sink].
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Emit(ctx context.Context, event Event) { f(ctx, event) }

// NoOpSink discards events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// MultiSink fans one event out to several sinks in order. Nil entries are skipped.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, event Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ctx, event)
		}
	}
}

// ChannelSink hands events to an in-process consumer through a buffered channel.
// Emit never blocks: an event arriving while the buffer is full is discarded and
// counted in Dropped.
type ChannelSink struct {
	events  chan Event
	dropped atomic.Uint64
}

// NewChannelSink creates a sink buffering up to size events (at least one).
func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 1
	}
	return &ChannelSink{events: make(chan Event, size)}
}

func (s *ChannelSink) Emit(_ context.Context, event Event) {
	select {
	case s.events <- event:
	default:
		s.dropped.Add(1)
	}
}

// Events is the receive side of the buffer.
func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// Dropped reports events discarded because the buffer was full.
func (s *ChannelSink) Dropped() uint64 {
	return s.dropped.Load()
}

// JSONWriterSink writes one JSON object per line. Encode and write failures are
// logged, never returned.
type JSONWriterSink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	logger *zap.Logger
}

// NewJSONWriterSink writes to w. logger may be nil.
func NewJSONWriterSink(w io.Writer, logger *zap.Logger) *JSONWriterSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONWriterSink{enc: json.NewEncoder(w), logger: logger}
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	s.mu.Lock()
	err := s.enc.Encode(event)
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("audit event write failed",
			zap.String("event_type", string(event.EventType)),
			zap.String("user_id", event.UserID),
			zap.Error(err),
		)
	}
}

// LoggerSink records each event as a structured log entry at Info.
type LoggerSink struct {
	logger *zap.Logger
}

// NewLoggerSink logs events through logger. A nil logger discards them.
func NewLoggerSink(logger *zap.Logger) LoggerSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return LoggerSink{logger: logger}
}

func (s LoggerSink) Emit(_ context.Context, event Event) {
	s.logger.Info("auth event", zap.Object("event", event))
}
