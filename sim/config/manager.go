package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/vehiclesim/sim/service"
	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

// DefaultPresetName is the preset used when none is requested
const DefaultPresetName = "street"

var (
	ErrPresetNotFound = fmt.Errorf("config: %w", service.ErrPresetNotFound)
	ErrInvalidPreset  = fmt.Errorf("invalid preset: %w", service.ErrInvalidRequest)
)

// Manager handles vehicle preset loading and caching
type Manager struct {
	presetDir     string
	defaultPreset *vehicle.Preset
	presets       map[string]*vehicle.Preset
	mu            sync.RWMutex
}

// NewManager creates a new preset manager
func NewManager(presetDir string) (*Manager, error) {
	if _, err := os.Stat(presetDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("preset directory does not exist: %s", presetDir)
	}

	m := &Manager{
		presetDir: presetDir,
		presets:   make(map[string]*vehicle.Preset),
	}

	m.loadDefaultPreset()
	return m, nil
}

// LoadPreset loads a preset by name (the file name without .json)
func (m *Manager) LoadPreset(name string) (*vehicle.Preset, error) {
	name = strings.TrimSuffix(name, ".json")
	if name == "" || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: %q", ErrPresetNotFound, name)
	}

	m.mu.RLock()
	if preset, exists := m.presets[name]; exists {
		m.mu.RUnlock()
		return preset, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if preset, exists := m.presets[name]; exists {
		return preset, nil
	}

	preset, err := vehicle.LoadPreset(filepath.Join(m.presetDir, name+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %q", ErrPresetNotFound, name)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPreset, err)
	}

	m.presets[name] = preset
	return preset, nil
}

// ListPresets returns information about all valid presets, sorted by ID
func (m *Manager) ListPresets() ([]*service.PresetInfo, error) {
	entries, err := os.ReadDir(m.presetDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read preset directory: %w", err)
	}

	var presets []*service.PresetInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		preset, err := m.LoadPreset(id)
		if err != nil {
			// Skip invalid presets
			continue
		}

		cfg, err := vehicle.Resolve(preset.MassCategory, preset.TireType)
		if err != nil {
			continue
		}

		presets = append(presets, &service.PresetInfo{
			Filename:     entry.Name(),
			PresetID:     id,
			Name:         preset.Name,
			Description:  preset.Description,
			MassCategory: preset.MassCategory,
			TireType:     preset.TireType,
			MaxVelocity:  cfg.MaxVelocity,
		})
	}

	sort.Slice(presets, func(i, j int) bool { return presets[i].PresetID < presets[j].PresetID })
	return presets, nil
}

// GetDefault returns the default preset
func (m *Manager) GetDefault() *vehicle.Preset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultPreset
}

// SetDefault sets the default preset by name
func (m *Manager) SetDefault(name string) error {
	preset, err := m.LoadPreset(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultPreset = preset
	return nil
}

// RefreshCache drops all cached presets and reloads the default
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.presets = make(map[string]*vehicle.Preset)
	m.mu.Unlock()

	m.loadDefaultPreset()
}

// loadDefaultPreset picks street.json, then the first valid preset, then the
// built-in default
func (m *Manager) loadDefaultPreset() {
	preset, err := m.LoadPreset(DefaultPresetName)
	if err != nil {
		presets, listErr := m.ListPresets()
		if listErr != nil || len(presets) == 0 {
			preset = vehicle.DefaultPreset()
		} else if preset, err = m.LoadPreset(presets[0].PresetID); err != nil {
			preset = vehicle.DefaultPreset()
		}
	}

	m.mu.Lock()
	m.defaultPreset = preset
	m.mu.Unlock()
}

// SavePreset validates a preset and writes it to disk
func (m *Manager) SavePreset(name string, preset *vehicle.Preset) error {
	if err := vehicle.ValidatePreset(preset); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPreset, err)
	}

	name = strings.TrimSuffix(name, ".json")
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: bad preset name %q", ErrInvalidPreset, name)
	}

	data, err := json.MarshalIndent(preset, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preset: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.presetDir, name+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write preset file: %w", err)
	}

	m.mu.Lock()
	m.presets[name] = preset
	m.mu.Unlock()

	return nil
}
