package session

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no session exists for a token.
	ErrNotFound = errors.New("session not found")

	// ErrConflict is returned when creating a session whose token already exists.
	ErrConflict = errors.New("session token already exists")

	// ErrInactive is returned when an operation requires an active session.
	ErrInactive = errors.New("session is not active")
)

// Session is a caller-scoped identity bucket persisting usage history
// across multiple interactions.
type Session struct {
	ID           string                 `json:"id"`
	Token        string                 `json:"token"`
	CreatedAt    time.Time              `json:"created_at"`
	LastActivity time.Time              `json:"last_activity"`
	Metadata     map[string]interface{} `json:"metadata"`
	IsActive     bool                   `json:"is_active"`
}

// parseMetadata deserializes the stored metadata document. The content is
// opaque user data; the store never interprets it.
func parseMetadata(raw string) map[string]interface{} {
	metadata := map[string]interface{}{}
	if raw == "" {
		return metadata
	}
	// Corrupt metadata degrades to an empty document rather than failing reads
	_ = json.Unmarshal([]byte(raw), &metadata)
	return metadata
}
