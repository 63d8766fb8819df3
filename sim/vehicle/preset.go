package vehicle

import (
	"encoding/json"
	"fmt"
	"os"
)

// Preset is a named, file-backed description of how to build a vehicle
type Preset struct {
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	MassCategory MassCategory `json:"mass_category"`
	TireType     TireType     `json:"tire_type"`
	StartX       float64      `json:"start_x"`
	StartY       float64      `json:"start_y"`
}

// DefaultPreset returns the medium/slick car at the origin
func DefaultPreset() *Preset {
	return &Preset{
		Name:         "default",
		Description:  "Medium car on slick tires starting at the origin",
		MassCategory: Medium,
		TireType:     Slick,
	}
}

// ValidatePreset checks a preset for required fields and known enumerations.
// Mass category and tire type are normalized to their canonical spelling.
func ValidatePreset(p *Preset) error {
	if p == nil {
		return fmt.Errorf("preset validation: preset is nil")
	}
	if p.Name == "" {
		return fmt.Errorf("preset validation: name is required")
	}
	if p.Description == "" {
		return fmt.Errorf("preset validation: description is required")
	}

	mass, err := ParseMassCategory(string(p.MassCategory))
	if err != nil {
		return fmt.Errorf("preset validation: %w", err)
	}
	tire, err := ParseTireType(string(p.TireType))
	if err != nil {
		return fmt.Errorf("preset validation: %w", err)
	}
	p.MassCategory, p.TireType = mass, tire

	if !isFinite(p.StartX) || !isFinite(p.StartY) {
		return fmt.Errorf("preset validation: start position must be finite, got (%v, %v)", p.StartX, p.StartY)
	}
	return nil
}

// NewFromPreset builds a vehicle from a validated preset
func NewFromPreset(p *Preset, opts ...Option) (*Vehicle, error) {
	if err := ValidatePreset(p); err != nil {
		return nil, err
	}
	return New(p.MassCategory, p.TireType, p.StartX, p.StartY, opts...)
}

// LoadPreset reads and validates a preset JSON file
func LoadPreset(filename string) (*Preset, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var preset Preset
	if err := json.Unmarshal(data, &preset); err != nil {
		return nil, fmt.Errorf("failed to parse preset '%s': %w", filename, err)
	}

	if err := ValidatePreset(&preset); err != nil {
		return nil, err
	}

	return &preset, nil
}
