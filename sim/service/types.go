package service

import (
	"time"

	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

// CreateVehicleRequest describes a vehicle to create. When Preset is set the
// preset supplies mass, tires and start position; explicit fields override it.
type CreateVehicleRequest struct {
	ID           string               `json:"id,omitempty"`
	Preset       string               `json:"preset,omitempty"`
	MassCategory vehicle.MassCategory `json:"mass_category,omitempty"`
	TireType     vehicle.TireType     `json:"tire_type,omitempty"`
	StartX       *float64             `json:"start_x,omitempty"`
	StartY       *float64             `json:"start_y,omitempty"`
}

// Position is a point on the plane in meters
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// VehicleInfo provides information about a simulated vehicle
type VehicleInfo struct {
	ID             string                `json:"id"`
	Preset         string                `json:"preset"`
	Class          string                `json:"class"`
	Configuration  vehicle.Configuration `json:"configuration"`
	Start          Position              `json:"start"`
	Snapshot       vehicle.Snapshot      `json:"snapshot"`
	HeadingDegrees float64               `json:"heading_degrees"`
	StepCount      int                   `json:"step_count"`
	CreatedAt      time.Time             `json:"created_at"`
	LastAccessedAt time.Time             `json:"last_accessed_at"`
}

// StepRecord is a compact record of one control pass
type StepRecord struct {
	Seq            int                 `json:"seq"`
	Control        vehicle.ControlKind `json:"control"`
	Input          float64             `json:"input"`
	Dt             float64             `json:"dt"`
	Snapshot       vehicle.Snapshot    `json:"snapshot"`
	HeadingDegrees float64             `json:"heading_degrees"`
	Timestamp      time.Time           `json:"timestamp"`
}

// ControlResult contains the result of a control call
type ControlResult struct {
	VehicleID string           `json:"vehicle_id"`
	Snapshot  vehicle.Snapshot `json:"snapshot"`
	Step      StepRecord       `json:"step"`
	Warning   string           `json:"warning,omitempty"`
}

// StateResponse is the full state of a vehicle plus its boundary snapshot
type StateResponse struct {
	VehicleID          string                `json:"vehicle_id"`
	Configuration      vehicle.Configuration `json:"configuration"`
	State              vehicle.State         `json:"state"`
	Snapshot           vehicle.Snapshot      `json:"snapshot"`
	HeadingDegrees     float64               `json:"heading_degrees"`
	UndersteerGradient float64               `json:"understeer_gradient"`
}

// HistoryOptions configures step history retrieval
type HistoryOptions struct {
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Order string `json:"order"` // "asc" or "desc"
}

// HistoryResponse contains paginated step history
type HistoryResponse struct {
	Steps       []StepRecord `json:"steps"`
	TotalSteps  int          `json:"total_steps"`
	Page        int          `json:"page"`
	PageSize    int          `json:"page_size"`
	TotalPages  int          `json:"total_pages"`
	HasNext     bool         `json:"has_next"`
	HasPrevious bool         `json:"has_previous"`
}

// PresetInfo provides information about a vehicle preset
type PresetInfo struct {
	Filename     string               `json:"filename"`
	PresetID     string               `json:"preset_id"` // The identifier to use for vehicle creation
	Name         string               `json:"name"`
	Description  string               `json:"description"`
	MassCategory vehicle.MassCategory `json:"mass_category"`
	TireType     vehicle.TireType     `json:"tire_type"`
	MaxVelocity  float64              `json:"max_velocity"`
}

// ClassInfo describes one mass/tire combination
type ClassInfo struct {
	Class              string                `json:"class"`
	Configuration      vehicle.Configuration `json:"configuration"`
	UndersteerGradient float64               `json:"understeer_gradient"`
}
