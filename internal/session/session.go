package session

import (
	"time"

	"github.com/oklog/ulid/v2"
)

// Meta describes one persisted conversation session (sessions/index.json).
type Meta struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Status    string            `json:"status"` // "active", "archived"
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

type Index struct {
	Sessions map[string]Meta `json:"sessions"`
}

// NewID mints a session identifier.
func NewID() string {
	return ulid.Make().String()
}
