package goAuthz

import (
	"errors"

	"github.com/MrEthical07/goAuthz/cache"
	"github.com/MrEthical07/goAuthz/rbac"
	"github.com/MrEthical07/goAuthz/session"
)

var (
	// ErrCacheUnavailable marks transient backend failures. Read paths degrade on it;
	// critical writes return it.
	ErrCacheUnavailable = cache.ErrUnavailable
	// ErrCacheCorrupt marks a stored value that could not be decoded.
	ErrCacheCorrupt = cache.ErrCorrupt

	// ErrSessionNotFound is returned for unknown, destroyed or expired sessions.
	ErrSessionNotFound = session.ErrSessionNotFound
	// ErrSessionExpired accompanies ErrSessionNotFound when expiry was detected on read.
	ErrSessionExpired = session.ErrSessionExpired
	// ErrSessionCreationFailed wraps failures writing a new session record.
	ErrSessionCreationFailed = session.ErrSessionCreationFailed

	// ErrConflict is a rejected precondition and must not be retried as-is.
	ErrConflict = rbac.ErrConflict
	// ErrNotFound is returned when a role or permission lookup resolves to nothing.
	ErrNotFound = rbac.ErrNotFound
	// ErrInvalidInput wraps validation failures.
	ErrInvalidInput = rbac.ErrInvalidInput

	// ErrBuilderUsed is returned when Build is called twice on one Builder.
	ErrBuilderUsed = errors.New("builder already used")
)

// IsTransient reports whether err is worth retrying against the backend.
func IsTransient(err error) bool {
	return errors.Is(err, cache.ErrUnavailable)
}
