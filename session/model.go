package session

import "time"

// Session is a server-side record binding a random opaque id to a user and device.
type Session struct {
	ID           string      `json:"id"`
	UserID       string      `json:"userId"`
	DeviceID     string      `json:"deviceId,omitempty"`
	DeviceInfo   *DeviceInfo `json:"deviceInfo,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastActiveAt time.Time   `json:"lastActiveAt"`
	ExpiresAt    time.Time   `json:"expiresAt"`
	IsActive     bool        `json:"isActive"`
}

// DeviceInfo describes the client a session was issued to.
type DeviceInfo struct {
	UserAgent string `json:"userAgent,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	Platform  string `json:"platform,omitempty"`
	Browser   string `json:"browser,omitempty"`
}

// Expired reports whether now is past ExpiresAt.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

func (d *DeviceInfo) clone() *DeviceInfo {
	if d == nil {
		return nil
	}
	out := *d
	return &out
}

// Stats summarizes stored session records.
type Stats struct {
	Total   int `json:"total"`
	Active  int `json:"active"`
	Expired int `json:"expired"`
	Users   int `json:"users"`
}
