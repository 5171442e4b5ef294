package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sink.Emit(context.Background(), Event{
				EventType: EventLogin,
				Success:   true,
				UserID:    "u1",
				IPAddress: "127.0.0.1",
				Timestamp: time.Now().UTC(),
			})
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 8 {
		t.Fatalf("expected 8 lines, got %d", len(lines))
	}
	for _, line := range lines {
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("line %q is not one JSON object: %v", line, err)
		}
		if ev.EventType != EventLogin || ev.UserID != "u1" {
			t.Fatalf("unexpected event %+v", ev)
		}
	}
	if !strings.Contains(lines[0], `"eventType":"login"`) {
		t.Fatalf("expected camelCase field names in %q", lines[0])
	}
}

func TestSinkFuncAdapts(t *testing.T) {
	var got Event
	var s Sink = SinkFunc(func(_ context.Context, e Event) { got = e })
	s.Emit(context.Background(), Event{EventType: EventLogin, UserID: "u9"})

	if got.UserID != "u9" {
		t.Fatalf("unexpected event %+v", got)
	}
}
