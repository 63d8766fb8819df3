package vehicle

import "math"

// MassCategory selects the curb weight class of a vehicle
type MassCategory string

const (
	Light  MassCategory = "light"
	Medium MassCategory = "medium"
	Heavy  MassCategory = "heavy"
)

// TireType selects the tire compound of a vehicle
type TireType string

const (
	Rain  TireType = "rain"
	Slick TireType = "slick"
)

// Model constants
const (
	Wheelbase         = 2.5
	PoundsToKilograms = 0.453592
	FrontWeightShare  = 0.6
	RearWeightShare   = 0.4

	MaxThrottleAcceleration = 30.0
	MaxBrakeDeceleration    = 50.0

	RollingResistance = 12.0
	DragCoefficient   = 0.4257
	AirDensity        = 1.225
	FrontalArea       = 2.2

	MinTireGrip            = 0.5
	GripDecayRate          = 0.001
	AmbientTireTemperature = 20.0
	OptimalTireTemperature = 90.0

	// ZeroSteerSubstitute replaces a zero steering angle inside an
	// integration pass so the turning radius stays finite.
	ZeroSteerSubstitute = 0.01

	// RecommendedMaxDt is the largest step size (seconds) for which the
	// integrator stays well behaved. It is advisory only.
	RecommendedMaxDt = 0.1
)

// Angular limits, in radians
var (
	MaxSteeringAngle   = Radians(45)
	SteeringRate       = Radians(60)
	SteeringReturnRate = Radians(30)
)

// Configuration holds the physical constants of a vehicle. It is derived
// once from the mass category and tire type and never changes afterwards.
type Configuration struct {
	MassCategory            MassCategory `json:"mass_category"`
	TireType                TireType     `json:"tire_type"`
	Mass                    float64      `json:"mass"`
	BaseTireGrip            float64      `json:"base_tire_grip"`
	CorneringStiffnessFront float64      `json:"cornering_stiffness_front"`
	CorneringStiffnessRear  float64      `json:"cornering_stiffness_rear"`
	MaxVelocity             float64      `json:"max_velocity"`
	Wheelbase               float64      `json:"wheelbase"`
}

// State is the mutable state of one simulated vehicle
type State struct {
	PositionX     float64   `json:"position_x"`
	PositionY     float64   `json:"position_y"`
	Heading       float64   `json:"heading"`
	Velocity      float64   `json:"velocity"`
	Acceleration  float64   `json:"acceleration"`
	SteeringAngle float64   `json:"steering_angle"`
	Tires         TireModel `json:"tires"`
	Traction      float64   `json:"traction"`
}

// Snapshot is the state reported back to callers after every control pass
type Snapshot struct {
	PositionX            float64 `json:"position_x"`
	PositionY            float64 `json:"position_y"`
	Velocity             float64 `json:"velocity"`
	TireGrip             float64 `json:"tire_grip"`
	TireTemperature      float64 `json:"tire_temperature"`
	SteeringAngleDegrees float64 `json:"steering_angle_degrees"`
}

// Snapshot converts the state into its boundary representation
func (s State) Snapshot() Snapshot {
	return Snapshot{
		PositionX:            s.PositionX,
		PositionY:            s.PositionY,
		Velocity:             s.Velocity,
		TireGrip:             s.Tires.Grip,
		TireTemperature:      s.Tires.Temperature,
		SteeringAngleDegrees: Degrees(s.SteeringAngle),
	}
}

// HeadingDegrees returns the heading in degrees
func (s State) HeadingDegrees() float64 {
	return Degrees(s.Heading)
}

// Moving reports whether the vehicle has nonzero velocity
func (s State) Moving() bool {
	return s.Velocity > 0
}

// Radians converts degrees to radians
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Degrees converts radians to degrees
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
