package audit

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// EventType names an authentication event.
type EventType string

const (
	EventLogin  EventType = "login"
	EventLogout EventType = "logout"
)

// Event is an immutable authentication event.
type Event struct {
	EventType EventType         `json:"eventType"`
	Success   bool              `json:"success"`
	UserID    string            `json:"userId"`
	SessionID string            `json:"sessionId,omitempty"`
	IPAddress string            `json:"ipAddress,omitempty"`
	UserAgent string            `json:"userAgent,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// MarshalLogObject implements [zapcore.ObjectMarshaler] with the same field names
// as the stored JSON.
func (e Event) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("eventType", string(e.EventType))
	enc.AddBool("success", e.Success)
	enc.AddString("userId", e.UserID)
	if e.SessionID != "" {
		enc.AddString("sessionId", e.SessionID)
	}
	if e.IPAddress != "" {
		enc.AddString("ipAddress", e.IPAddress)
	}
	if e.UserAgent != "" {
		enc.AddString("userAgent", e.UserAgent)
	}
	if len(e.Metadata) > 0 {
		if err := enc.AddObject("metadata", metadata(e.Metadata)); err != nil {
			return err
		}
	}
	enc.AddTime("timestamp", e.Timestamp)
	return nil
}

type metadata map[string]string

func (m metadata) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	for k, v := range m {
		enc.AddString(k, v)
	}
	return nil
}
