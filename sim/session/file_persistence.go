package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"

	"github.com/wricardo/mcp-training/vehiclesim/sim/service"
	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

// ErrChecksumMismatch is returned when a persisted state does not match its
// recorded checksum
var ErrChecksumMismatch = errors.New("persisted state checksum mismatch")

// FilePersistence implements SessionPersistence using file system storage
type FilePersistence struct {
	sessionsDir string

	// writeMu guards written and the files themselves
	writeMu sync.Mutex
	written map[string]writtenRevision
}

// writtenRevision is the newest revision written for a session id
type writtenRevision struct {
	session  *service.Session
	revision uint64
}

// NewFilePersistence creates a new file-based session persistence layer
func NewFilePersistence(sessionsDir string) (*FilePersistence, error) {
	if err := os.MkdirAll(sessionsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}

	return &FilePersistence{
		sessionsDir: sessionsDir,
		written:     make(map[string]writtenRevision),
	}, nil
}

// stateChecksum hashes the JSON encoding of a vehicle state
func stateChecksum(state vehicle.State) (string, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%016x", xxh3.Hash(data)), nil
}

// Save persists a session to a JSON file. A save that reaches the file
// after a newer revision of the same session was written is dropped.
func (fp *FilePersistence) Save(session *service.Session) error {
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}

	snap := session.Capture()
	checksum, err := stateChecksum(snap.State)
	if err != nil {
		return fmt.Errorf("failed to checksum vehicle state: %w", err)
	}

	data := PersistedSessionData{
		ID:             session.ID,
		Preset:         session.Preset,
		CreatedAt:      session.CreatedAt,
		LastAccessedAt: snap.LastAccessedAt,
		State:          snap.State,
		StateChecksum:  checksum,
		History:        snap.History,
		Revision:       snap.Revision,
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session data: %w", err)
	}

	fp.writeMu.Lock()
	defer fp.writeMu.Unlock()

	key := strings.ToLower(session.ID)
	if prev, ok := fp.written[key]; ok && prev.session == session && snap.Revision < prev.revision {
		return nil
	}

	// write-then-rename so a crash never leaves a torn file behind
	filePath := fp.getFilePath(session.ID)
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, filePath); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	fp.written[key] = writtenRevision{session: session, revision: snap.Revision}

	return nil
}

// Load retrieves a session from a JSON file and rebuilds its vehicle
func (fp *FilePersistence) Load(id string, opts ...vehicle.Option) (*service.Session, error) {
	filePath := fp.getFilePath(id)

	jsonData, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var data PersistedSessionData
	if err := json.Unmarshal(jsonData, &data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session data: %w", err)
	}

	checksum, err := stateChecksum(data.State)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum vehicle state: %w", err)
	}
	if checksum != data.StateChecksum {
		return nil, fmt.Errorf("%w: session %s (stored %s, computed %s)", ErrChecksumMismatch, id, data.StateChecksum, checksum)
	}

	v, err := vehicle.NewFromPreset(data.Preset, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild vehicle: %w", err)
	}
	if err := v.SetState(data.State); err != nil {
		return nil, fmt.Errorf("failed to restore vehicle state: %w", err)
	}

	return &service.Session{
		ID:             data.ID,
		Vehicle:        v,
		Preset:         data.Preset,
		History:        data.History,
		CreatedAt:      data.CreatedAt,
		LastAccessedAt: data.LastAccessedAt,
		Revision:       data.Revision,
	}, nil
}

// Delete removes a session file
func (fp *FilePersistence) Delete(id string) error {
	fp.writeMu.Lock()
	defer fp.writeMu.Unlock()
	delete(fp.written, strings.ToLower(id))

	if !fp.Exists(id) {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}

	if err := os.Remove(fp.getFilePath(id)); err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}

	return nil
}

// ListAll returns all persisted session IDs
func (fp *FilePersistence) ListAll() ([]string, error) {
	entries, err := os.ReadDir(fp.sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var sessionIDs []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		name := entry.Name()
		if strings.HasSuffix(name, ".json") {
			sessionIDs = append(sessionIDs, strings.TrimSuffix(name, ".json"))
		}
	}

	return sessionIDs, nil
}

// Exists checks if a session file exists
func (fp *FilePersistence) Exists(id string) bool {
	_, err := os.Stat(fp.getFilePath(id))
	return err == nil
}

// getFilePath returns the full file path for a session ID
func (fp *FilePersistence) getFilePath(id string) string {
	return filepath.Join(fp.sessionsDir, fmt.Sprintf("%s.json", strings.ToLower(id)))
}
