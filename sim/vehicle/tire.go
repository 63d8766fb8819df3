package vehicle

import "math"

// TireModel tracks tire temperature and grip. Grip never drops below
// MinTireGrip and never exceeds BaseGrip; temperature never drops below
// AmbientTireTemperature.
type TireModel struct {
	Temperature float64 `json:"temperature"`
	Grip        float64 `json:"grip"`
	BaseGrip    float64 `json:"base_grip"`
}

// NewTireModel returns cold tires at full base grip
func NewTireModel(baseGrip float64) TireModel {
	return TireModel{
		Temperature: AmbientTireTemperature,
		Grip:        baseGrip,
		BaseGrip:    baseGrip,
	}
}

// Step runs one tire update: temperature, then grip, then stress.
// The ordering determines how grip recovers after sustained stress.
func (t *TireModel) Step(steeringAngle, velocity, maxVelocity, dt float64) {
	t.UpdateTemperature(steeringAngle, velocity, dt)
	t.RecomputeGrip(steeringAngle, velocity, maxVelocity, MaxSteeringAngle)
	t.ApplyStress(steeringAngle, velocity, dt)
}

// UpdateTemperature heats the tires with load and cools them toward ambient
func (t *TireModel) UpdateTemperature(steeringAngle, velocity, dt float64) {
	heating := (math.Abs(steeringAngle) + 0.1) * velocity * 0.05 * dt
	cooling := (t.Temperature - AmbientTireTemperature) * 0.1 * dt
	t.Temperature = math.Max(AmbientTireTemperature, t.Temperature+heating-cooling)
}

// RecomputeGrip derives grip from temperature, speed and steering load
func (t *TireModel) RecomputeGrip(steeringAngle, velocity, maxVelocity, maxSteeringAngle float64) {
	tempEffect := math.Max(0.5, 1-math.Abs(t.Temperature-OptimalTireTemperature)/100)
	speedEffect := math.Max(0.7, 1-(velocity/maxVelocity)*0.3)
	steerEffect := math.Max(0.7, 1-((math.Abs(steeringAngle)+0.1)/maxSteeringAngle)*0.3)

	t.Grip = math.Max(MinTireGrip, t.BaseGrip*tempEffect*speedEffect*steerEffect)
}

// ApplyStress wears grip down in proportion to steering load and speed
func (t *TireModel) ApplyStress(steeringAngle, velocity, dt float64) {
	stress := (math.Abs(steeringAngle) + 0.1) * velocity
	t.Grip = math.Max(MinTireGrip, t.Grip-stress*GripDecayRate*dt)
}
