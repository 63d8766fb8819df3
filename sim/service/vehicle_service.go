package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

var (
	ErrVehicleNotFound = errors.New("vehicle not found")
	ErrPresetNotFound  = errors.New("preset not found")
	ErrInvalidRequest  = errors.New("invalid request")
)

// VehicleService defines all vehicle-related operations
type VehicleService interface {
	// Vehicle Management
	CreateVehicle(ctx context.Context, req CreateVehicleRequest) (*VehicleInfo, error)
	GetVehicle(ctx context.Context, vehicleID string) (*VehicleInfo, error)
	ListVehicles(ctx context.Context) ([]*VehicleInfo, error)
	DeleteVehicle(ctx context.Context, vehicleID string) error

	// Controls
	ApplyThrottle(ctx context.Context, vehicleID string, throttle, dt float64) (*ControlResult, error)
	ApplyBrake(ctx context.Context, vehicleID string, brake, dt float64) (*ControlResult, error)
	ApplySteering(ctx context.Context, vehicleID string, input, dt float64) (*ControlResult, error)
	Reset(ctx context.Context, vehicleID string) (*vehicle.Snapshot, error)

	// Vehicle State
	GetState(ctx context.Context, vehicleID string) (*StateResponse, error)
	GetStepHistory(ctx context.Context, vehicleID string, opts HistoryOptions) (*HistoryResponse, error)

	// Presets and classes
	ListPresets(ctx context.Context) ([]*PresetInfo, error)
	LoadPreset(ctx context.Context, name string) (*vehicle.Preset, error)
	SavePreset(ctx context.Context, name string, preset *vehicle.Preset) error
	VehicleClasses(ctx context.Context) ([]*ClassInfo, error)
}

// SessionManager defines vehicle session storage operations
type SessionManager interface {
	Create(id string, preset *vehicle.Preset) (*Session, error)
	Get(id string) (*Session, error)
	GetOrCreate(id string, preset *vehicle.Preset) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
	Save(id string) error
}

// PresetManager handles vehicle preset loading
type PresetManager interface {
	LoadPreset(name string) (*vehicle.Preset, error)
	ListPresets() ([]*PresetInfo, error)
	GetDefault() *vehicle.Preset
	SavePreset(name string, preset *vehicle.Preset) error
}

// Session represents one simulated vehicle and its step history.
// History, LastAccessedAt and Revision are guarded by the session lock once
// the session is shared.
type Session struct {
	ID             string
	Vehicle        *vehicle.Vehicle
	Preset         *vehicle.Preset
	History        []StepRecord
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// Revision increases on every change made under the session lock
	Revision uint64

	// mu serializes control passes and guards History
	mu sync.Mutex
}

// SessionSnapshot is a consistent copy of a session's mutable parts
type SessionSnapshot struct {
	State          vehicle.State
	History        []StepRecord
	LastAccessedAt time.Time
	Revision       uint64
}

// Lock serializes a control pass with its history append
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the lock taken by Lock
func (s *Session) Unlock() { s.mu.Unlock() }

// Touch records an access at now
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TouchLocked(now)
}

// TouchLocked is Touch for callers already holding the session lock
func (s *Session) TouchLocked(now time.Time) {
	s.LastAccessedAt = now
	s.Revision++
}

// LastAccessed returns the time of the last recorded access
func (s *Session) LastAccessed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LastAccessedAt
}

// Capture copies the vehicle state, history, access time and revision in
// one critical section, so no control pass can land between them.
func (s *Session) Capture() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	history := make([]StepRecord, len(s.History))
	copy(history, s.History)
	return SessionSnapshot{
		State:          s.Vehicle.State(),
		History:        history,
		LastAccessedAt: s.LastAccessedAt,
		Revision:       s.Revision,
	}
}

// HistorySnapshot returns a copy of the step history
func (s *Session) HistorySnapshot() []StepRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepRecord, len(s.History))
	copy(out, s.History)
	return out
}

// StepCount returns the number of recorded control passes
func (s *Session) StepCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.History)
}
