package session

import (
	"time"

	"github.com/wricardo/mcp-training/vehiclesim/sim/service"
	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

// SessionPersistence defines the interface for persisting sessions
type SessionPersistence interface {
	// Save persists a session to storage
	Save(session *service.Session) error

	// Load retrieves a session from storage by ID. The options are applied
	// to the rebuilt vehicle.
	Load(id string, opts ...vehicle.Option) (*service.Session, error)

	// Delete removes a session from storage
	Delete(id string) error

	// ListAll returns all persisted session IDs
	ListAll() ([]string, error)

	// Exists checks if a session exists in storage
	Exists(id string) bool
}

// PersistedSessionData represents the JSON structure for persisted sessions
type PersistedSessionData struct {
	ID             string               `json:"id"`
	Preset         *vehicle.Preset      `json:"preset"`
	CreatedAt      time.Time            `json:"created_at"`
	LastAccessedAt time.Time            `json:"last_accessed_at"`
	State          vehicle.State        `json:"state"`
	StateChecksum  string               `json:"state_checksum"` // xxh3 of the JSON-encoded state
	History        []service.StepRecord `json:"history"`
	Revision       uint64               `json:"revision"`
}
