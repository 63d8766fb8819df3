package vehicle

import (
	"github.com/sirupsen/logrus"
)

// ControlKind names the control applied in a pass
type ControlKind string

const (
	ControlThrottle ControlKind = "throttle"
	ControlBrake    ControlKind = "brake"
	ControlSteering ControlKind = "steering"
)

// StepEvent describes one completed control+integrate pass
type StepEvent struct {
	Control ControlKind `json:"control"`
	Input   float64     `json:"input"`
	Dt      float64     `json:"dt"`

	// CommandedSteeringDegrees is the steering angle after the control delta
	// and before self-centering.
	CommandedSteeringDegrees float64 `json:"commanded_steering_degrees"`
	AdjustedSteeringDegrees  float64 `json:"adjusted_steering_degrees"`
	UndersteerGradient       float64 `json:"understeer_gradient"`
	Stationary               bool    `json:"stationary"`

	State State `json:"state"`
}

// Observer receives an event after every successful control pass. It is
// called while the vehicle lock is held and must not call back into the
// vehicle.
type Observer interface {
	OnStep(event StepEvent)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(event StepEvent)

// OnStep calls f(event)
func (f ObserverFunc) OnStep(event StepEvent) {
	f(event)
}

// LogObserver logs every pass at debug level
func LogObserver(logger logrus.FieldLogger) Observer {
	return ObserverFunc(func(ev StepEvent) {
		logger.WithFields(logrus.Fields{
			"control":      ev.Control,
			"input":        ev.Input,
			"dt":           ev.Dt,
			"stationary":   ev.Stationary,
			"x":            ev.State.PositionX,
			"y":            ev.State.PositionY,
			"velocity":     ev.State.Velocity,
			"acceleration": ev.State.Acceleration,
			"heading_deg":  ev.State.HeadingDegrees(),
			"steering_deg": Degrees(ev.State.SteeringAngle),
			"tire_temp":    ev.State.Tires.Temperature,
			"tire_grip":    ev.State.Tires.Grip,
		}).Debug("vehicle step")
	})
}

// multiObserver fans an event out to several observers
type multiObserver []Observer

func (m multiObserver) OnStep(ev StepEvent) {
	for _, o := range m {
		o.OnStep(ev)
	}
}
