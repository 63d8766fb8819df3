package session

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/vehiclesim/sim/service"
	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

var (
	ErrSessionNotFound      = fmt.Errorf("session: %w", service.ErrVehicleNotFound)
	ErrSessionAlreadyExists = errors.New("session already exists")
	ErrInvalidSessionID     = fmt.Errorf("%w: invalid session ID", service.ErrInvalidRequest)
)

// StepObserver receives every control pass of every managed vehicle
type StepObserver func(sessionID string, event vehicle.StepEvent)

// Manager handles vehicle session lifecycle
type Manager struct {
	sessions    map[string]*service.Session
	persistence SessionPersistence
	logger      logrus.FieldLogger
	mu          sync.RWMutex

	observer   StepObserver
	observerMu sync.RWMutex
}

// NewManager creates a new session manager
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*service.Session),
		logger:   logrus.StandardLogger().WithField("component", "session"),
	}
}

// NewManagerWithPersistence creates a new session manager with persistence
func NewManagerWithPersistence(persistence SessionPersistence) *Manager {
	m := NewManager()
	m.persistence = persistence
	return m
}

// SetLogger replaces the manager's logger. Vehicles created afterwards log
// their steps at debug level through it.
func (m *Manager) SetLogger(logger logrus.FieldLogger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger.WithField("component", "session")
}

// SetStepObserver registers a callback for the control passes of all
// vehicles, including ones created before the call.
func (m *Manager) SetStepObserver(fn StepObserver) {
	m.observerMu.Lock()
	defer m.observerMu.Unlock()
	m.observer = fn
}

func (m *Manager) notifyStep(sessionID string, ev vehicle.StepEvent) {
	m.observerMu.RLock()
	fn := m.observer
	m.observerMu.RUnlock()
	if fn != nil {
		fn(sessionID, ev)
	}
}

// vehicleOptions wires step logging and the step observer into a vehicle
func (m *Manager) vehicleOptions(id string) []vehicle.Option {
	return []vehicle.Option{
		vehicle.WithObserver(vehicle.LogObserver(m.logger.WithField("vehicle", id))),
		vehicle.WithObserver(vehicle.ObserverFunc(func(ev vehicle.StepEvent) {
			m.notifyStep(id, ev)
		})),
	}
}

// Create creates a new session with the given ID and preset
func (m *Manager) Create(id string, preset *vehicle.Preset) (*service.Session, error) {
	if strings.ContainsAny(id, `/\. `) {
		return nil, ErrInvalidSessionID
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id == "" {
		id = m.generateSessionID()
	} else if m.sessionExists(id) {
		return nil, ErrSessionAlreadyExists
	}

	v, err := vehicle.NewFromPreset(preset, m.vehicleOptions(id)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vehicle: %w", err)
	}

	now := time.Now()
	session := &service.Session{
		ID:             id,
		Vehicle:        v,
		Preset:         preset,
		CreatedAt:      now,
		LastAccessedAt: now,
	}

	m.sessions[strings.ToLower(id)] = session

	if m.persistence != nil {
		if err := m.persistence.Save(session); err != nil {
			// creation still succeeds; the next save retries
			m.logger.WithError(err).WithField("vehicle", id).Warn("failed to persist session")
		}
	}

	return session, nil
}

// Get retrieves a session by ID (case-insensitive)
func (m *Manager) Get(id string) (*service.Session, error) {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()

	if exists {
		return session, nil
	}

	if m.persistence != nil && m.persistence.Exists(id) {
		m.mu.Lock()
		defer m.mu.Unlock()

		// another caller may have loaded it meanwhile
		if session, exists := m.sessions[strings.ToLower(id)]; exists {
			return session, nil
		}

		session, err := m.persistence.Load(id, m.vehicleOptions(id)...)
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted session: %w", err)
		}
		m.sessions[strings.ToLower(id)] = session
		return session, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
}

// GetOrCreate gets an existing session or creates a new one
func (m *Manager) GetOrCreate(id string, preset *vehicle.Preset) (*service.Session, error) {
	session, err := m.Get(id)
	if err == nil {
		return session, nil
	}

	if errors.Is(err, ErrSessionNotFound) {
		return m.Create(id, preset)
	}

	return nil, err
}

// List returns all active sessions
func (m *Manager) List() []*service.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*service.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}

	return result
}

// Delete removes a session from memory and persistence
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lowerID := strings.ToLower(id)
	_, inMemory := m.sessions[lowerID]
	delete(m.sessions, lowerID)

	if m.persistence != nil && m.persistence.Exists(id) {
		if err := m.persistence.Delete(id); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
		return nil
	}

	if !inMemory {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	return nil
}

// DeleteFromMemory removes a session from memory only (not from persistence)
func (m *Manager) DeleteFromMemory(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lowerID := strings.ToLower(id)
	if _, exists := m.sessions[lowerID]; !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	delete(m.sessions, lowerID)
	return nil
}

// UpdateLastAccessed updates the last accessed time for a session and
// persists it
func (m *Manager) UpdateLastAccessed(id string) error {
	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	session.Touch(time.Now())

	if m.persistence != nil {
		if err := m.persistence.Save(session); err != nil {
			m.logger.WithError(err).WithField("vehicle", id).Warn("failed to persist session after access update")
		}
	}

	return nil
}

// Save saves a specific session to persistence
func (m *Manager) Save(id string) error {
	if m.persistence == nil {
		return nil
	}

	m.mu.RLock()
	session, exists := m.sessions[strings.ToLower(id)]
	m.mu.RUnlock()
	if !exists {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	return m.persistence.Save(session)
}

// CleanupExpiredSessions removes sessions that haven't been accessed in the
// given duration. Persisted copies are kept.
func (m *Manager) CleanupExpiredSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0

	for id, session := range m.sessions {
		if session.LastAccessed().Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}

	if removed > 0 {
		m.logger.WithField("removed", removed).Info("expired sessions evicted")
	}
	return removed
}

// Count returns the number of active sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// generateSessionID generates an unused random 4-character session ID.
// Caller must hold m.mu.
func (m *Manager) generateSessionID() string {
	for {
		bytes := make([]byte, 2)
		rand.Read(bytes)
		id := hex.EncodeToString(bytes)

		if !m.sessionExists(id) && (m.persistence == nil || !m.persistence.Exists(id)) {
			return id
		}
	}
}

// sessionExists checks if a session exists (case-insensitive). Caller must
// hold m.mu.
func (m *Manager) sessionExists(id string) bool {
	_, exists := m.sessions[strings.ToLower(id)]
	return exists
}

// LoadPersistedSessions loads all persisted sessions into memory
func (m *Manager) LoadPersistedSessions() error {
	if m.persistence == nil {
		return nil
	}

	sessionIDs, err := m.persistence.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list persisted sessions: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loadedCount := 0
	for _, id := range sessionIDs {
		if m.sessionExists(id) {
			continue
		}

		session, err := m.persistence.Load(id, m.vehicleOptions(id)...)
		if err != nil {
			m.logger.WithError(err).WithField("vehicle", id).Warn("failed to load persisted session")
			continue
		}

		m.sessions[strings.ToLower(id)] = session
		loadedCount++
	}

	if loadedCount > 0 {
		m.logger.WithField("count", loadedCount).Info("loaded persisted sessions")
	}

	return nil
}

// SaveAllSessions saves all in-memory sessions to persistence
func (m *Manager) SaveAllSessions() error {
	if m.persistence == nil {
		return nil
	}

	sessions := m.List()

	errorCount := 0
	for _, session := range sessions {
		if err := m.persistence.Save(session); err != nil {
			m.logger.WithError(err).WithField("vehicle", session.ID).Warn("failed to save session")
			errorCount++
		}
	}

	if errorCount > 0 {
		return fmt.Errorf("failed to save %d sessions", errorCount)
	}

	return nil
}
