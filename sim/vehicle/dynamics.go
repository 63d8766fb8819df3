package vehicle

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/samber/lo"
)

// UndersteerGradient returns K for the configuration's fixed weight split and
// cornering stiffness. K > 0 reduces turn-in, K < 0 increases it.
func UndersteerGradient(cfg Configuration) float64 {
	frontWeight := cfg.Mass * FrontWeightShare
	rearWeight := cfg.Mass * RearWeightShare
	return (cfg.Wheelbase / cfg.Mass) * ((frontWeight / cfg.CorneringStiffnessFront) - (rearWeight / cfg.CorneringStiffnessRear))
}

// ResistiveDeceleration returns rolling resistance plus aerodynamic drag at
// the given speed, divided by mass.
func ResistiveDeceleration(cfg Configuration, velocity float64) float64 {
	drag := 0.5 * DragCoefficient * AirDensity * FrontalArea * velocity * velocity
	return (RollingResistance + drag) / cfg.Mass
}

// AdjustedSteeringAngle applies the understeer correction and the
// speed-dependent steering effectiveness to a commanded angle.
func AdjustedSteeringAngle(cfg Configuration, steeringAngle, velocity float64) float64 {
	k := UndersteerGradient(cfg)
	speedFactor := math.Max(0.5, 1-(velocity/cfg.MaxVelocity)*0.5)
	return steeringAngle * (1 + k) * 0.9 * speedFactor
}

// passResult describes what one integration pass did
type passResult struct {
	stationary      bool
	understeer      float64
	adjustedSteer   float64
	angularVelocity float64
}

// integrate advances state by dt. It must only run as the second half of a
// control pass.
func integrate(s *State, cfg Configuration, dt float64) passResult {
	res := passResult{understeer: UndersteerGradient(cfg)}

	s.Velocity = math.Max(0, s.Velocity-ResistiveDeceleration(cfg, s.Velocity)*dt)

	if s.Velocity == 0 {
		res.stationary = true
	} else {
		steer := s.SteeringAngle
		if steer == 0 {
			steer = ZeroSteerSubstitute
		}
		res.adjustedSteer = AdjustedSteeringAngle(cfg, steer, s.Velocity)

		if res.adjustedSteer != 0 {
			radius := cfg.Wheelbase / math.Tan(res.adjustedSteer)
			res.angularVelocity = s.Velocity / radius
		}
		s.Heading = wrapAngle(s.Heading + res.angularVelocity*dt)

		forward := mgl64.Vec2{math.Cos(s.Heading), math.Sin(s.Heading)}
		position := mgl64.Vec2{s.PositionX, s.PositionY}.Add(forward.Mul(s.Velocity * dt))
		s.PositionX, s.PositionY = position.X(), position.Y()

		s.Tires.Step(s.SteeringAngle, s.Velocity, cfg.MaxVelocity, dt)
		s.Traction = s.Tires.Grip
	}

	s.SteeringAngle = selfCenter(s.SteeringAngle, dt)
	return res
}

// selfCenter moves the steering angle toward zero without crossing it
func selfCenter(angle, dt float64) float64 {
	if angle == 0 {
		return 0
	}
	step := SteeringReturnRate * dt
	if angle > 0 {
		return angle - math.Min(step, angle)
	}
	return angle + math.Min(step, -angle)
}

// wrapAngle maps an angle into [0, 2π)
func wrapAngle(a float64) float64 {
	const fullTurn = 2 * math.Pi
	a = math.Mod(a, fullTurn)
	if a < 0 {
		a += fullTurn
	}
	// a tiny negative input rounds up to exactly 2π after the shift
	return lo.Ternary(a >= fullTurn, 0, a)
}
