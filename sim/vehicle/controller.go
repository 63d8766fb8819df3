package vehicle

import (
	"fmt"
	"math"
	"sync"

	"github.com/samber/lo"
)

// Vehicle is a caller-owned simulated vehicle. Each control method applies
// one control delta and then runs exactly one integration pass.
type Vehicle struct {
	mu       sync.Mutex
	config   Configuration
	state    State
	startX   float64
	startY   float64
	observer Observer
}

// Option configures a Vehicle at construction
type Option func(*Vehicle)

// WithObserver registers an observer for step events. It may be given more
// than once.
func WithObserver(o Observer) Option {
	return func(v *Vehicle) {
		if o == nil {
			return
		}
		switch existing := v.observer.(type) {
		case nil:
			v.observer = o
		case multiObserver:
			v.observer = append(existing, o)
		default:
			v.observer = multiObserver{existing, o}
		}
	}
}

// New creates a stationary vehicle at the given start position
func New(mass MassCategory, tire TireType, startX, startY float64, opts ...Option) (*Vehicle, error) {
	cfg, err := Resolve(mass, tire)
	if err != nil {
		return nil, err
	}
	if !isFinite(startX) || !isFinite(startY) {
		return nil, fmt.Errorf("%w: start position must be finite, got (%v, %v)", ErrInvalidConfiguration, startX, startY)
	}

	v := &Vehicle{
		config: cfg,
		startX: startX,
		startY: startY,
	}
	v.state = v.initialState()

	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

func (v *Vehicle) initialState() State {
	return State{
		PositionX: v.startX,
		PositionY: v.startY,
		Tires:     NewTireModel(v.config.BaseTireGrip),
		Traction:  1.0,
	}
}

// Configuration returns the vehicle's physical constants
func (v *Vehicle) Configuration() Configuration {
	return v.config
}

// StartPosition returns the position the vehicle was created at
func (v *Vehicle) StartPosition() (float64, float64) {
	return v.startX, v.startY
}

// State returns a copy of the full vehicle state
func (v *Vehicle) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Snapshot returns the current boundary snapshot without advancing time
func (v *Vehicle) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state.Snapshot()
}

// SetState replaces the vehicle state (used when restoring persisted
// vehicles). The state must satisfy every invariant of this configuration.
func (v *Vehicle) SetState(s State) error {
	if err := v.validateState(s); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = s
	return nil
}

// Reset returns the vehicle to its initial state at the start position
func (v *Vehicle) Reset() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = v.initialState()
	return v.state.Snapshot()
}

// ApplyThrottle accelerates by throttle ∈ [0,1] scaled by traction and the
// remaining speed headroom, then integrates dt seconds.
func (v *Vehicle) ApplyThrottle(throttle, dt float64) (Snapshot, error) {
	if err := validateRange("throttle", throttle, 0, 1); err != nil {
		return Snapshot{}, err
	}
	if err := validateDt(dt); err != nil {
		return Snapshot{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	s := &v.state
	s.Acceleration = math.Max(0, throttle*MaxThrottleAcceleration*s.Traction*(1-s.Velocity/v.config.MaxVelocity))
	s.Velocity = math.Min(v.config.MaxVelocity, s.Velocity+s.Acceleration*dt)

	return v.finishPass(ControlThrottle, throttle, dt), nil
}

// ApplyBrake decelerates by brake ∈ [0,1] scaled by traction, then
// integrates dt seconds. Braking never reverses the vehicle.
func (v *Vehicle) ApplyBrake(brake, dt float64) (Snapshot, error) {
	if err := validateRange("brake", brake, 0, 1); err != nil {
		return Snapshot{}, err
	}
	if err := validateDt(dt); err != nil {
		return Snapshot{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	s := &v.state
	s.Acceleration = -brake * MaxBrakeDeceleration * s.Traction
	s.Velocity += s.Acceleration * dt
	if s.Velocity <= 0 {
		s.Velocity = 0
		s.Acceleration = 0
	}

	return v.finishPass(ControlBrake, brake, dt), nil
}

// ApplySteering turns the wheel at input ∈ [-1,1] times the steering rate,
// clamped to ±MaxSteeringAngle, then integrates dt seconds.
func (v *Vehicle) ApplySteering(input, dt float64) (Snapshot, error) {
	if err := validateRange("steering input", input, -1, 1); err != nil {
		return Snapshot{}, err
	}
	if err := validateDt(dt); err != nil {
		return Snapshot{}, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	s := &v.state
	s.SteeringAngle = lo.Clamp(s.SteeringAngle+input*SteeringRate*dt, -MaxSteeringAngle, MaxSteeringAngle)

	return v.finishPass(ControlSteering, input, dt), nil
}

// finishPass runs the integration half of a control pass and notifies the
// observer. Caller must hold v.mu.
func (v *Vehicle) finishPass(kind ControlKind, input, dt float64) Snapshot {
	commanded := v.state.SteeringAngle
	res := integrate(&v.state, v.config, dt)

	if v.observer != nil {
		v.observer.OnStep(StepEvent{
			Control:                  kind,
			Input:                    input,
			Dt:                       dt,
			CommandedSteeringDegrees: Degrees(commanded),
			AdjustedSteeringDegrees:  Degrees(res.adjustedSteer),
			UndersteerGradient:       res.understeer,
			Stationary:               res.stationary,
			State:                    v.state,
		})
	}
	return v.state.Snapshot()
}

func (v *Vehicle) validateState(s State) error {
	values := map[string]float64{
		"position_x":       s.PositionX,
		"position_y":       s.PositionY,
		"heading":          s.Heading,
		"velocity":         s.Velocity,
		"acceleration":     s.Acceleration,
		"steering_angle":   s.SteeringAngle,
		"tire_temperature": s.Tires.Temperature,
		"tire_grip":        s.Tires.Grip,
		"traction":         s.Traction,
	}
	for name, value := range values {
		if !isFinite(value) {
			return fmt.Errorf("%w: %s must be finite, got %v", ErrInvalidState, name, value)
		}
	}

	switch {
	case s.Velocity < 0 || s.Velocity > v.config.MaxVelocity:
		return fmt.Errorf("%w: velocity %v outside [0, %v]", ErrInvalidState, s.Velocity, v.config.MaxVelocity)
	case math.Abs(s.SteeringAngle) > MaxSteeringAngle:
		return fmt.Errorf("%w: steering angle %v exceeds %v rad", ErrInvalidState, s.SteeringAngle, MaxSteeringAngle)
	case s.Heading < 0 || s.Heading >= 2*math.Pi:
		return fmt.Errorf("%w: heading %v outside [0, 2π)", ErrInvalidState, s.Heading)
	case s.Tires.Temperature < AmbientTireTemperature:
		return fmt.Errorf("%w: tire temperature %v below %v", ErrInvalidState, s.Tires.Temperature, AmbientTireTemperature)
	case s.Tires.BaseGrip != v.config.BaseTireGrip:
		return fmt.Errorf("%w: base grip %v does not match configuration %v", ErrInvalidState, s.Tires.BaseGrip, v.config.BaseTireGrip)
	case s.Tires.Grip < MinTireGrip:
		return fmt.Errorf("%w: tire grip %v below %v", ErrInvalidState, s.Tires.Grip, MinTireGrip)
	case s.Tires.Grip > v.config.BaseTireGrip:
		return fmt.Errorf("%w: tire grip %v above base grip %v", ErrInvalidState, s.Tires.Grip, v.config.BaseTireGrip)
	}
	return nil
}
