package vehicle

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustResolve(t *testing.T, mass MassCategory, tire TireType) Configuration {
	t.Helper()
	cfg, err := Resolve(mass, tire)
	require.NoError(t, err)
	return cfg
}

func TestUndersteerGradient(t *testing.T) {
	// With the fixed 60/40 split and 60/40 stiffness split the two terms cancel.
	for _, key := range Catalog().Keys() {
		cfg, _ := Catalog().Get(key)
		assert.InDelta(t, 0.0, UndersteerGradient(cfg), 1e-12, key)
	}

	cfg := mustResolve(t, Medium, Slick)
	cfg.CorneringStiffnessFront = 60000
	cfg.CorneringStiffnessRear = 80000
	assert.Greater(t, UndersteerGradient(cfg), 0.0, "softer front axle should understeer")

	cfg.CorneringStiffnessFront = 120000
	cfg.CorneringStiffnessRear = 40000
	assert.Less(t, UndersteerGradient(cfg), 0.0, "softer rear axle should oversteer")
}

func TestResistiveDeceleration(t *testing.T) {
	cfg := mustResolve(t, Medium, Slick)

	assert.InDelta(t, 12.0/cfg.Mass, ResistiveDeceleration(cfg, 0), 1e-12)

	drag := 0.5 * 0.4257 * 1.225 * 2.2 * 30 * 30
	assert.InDelta(t, (12.0+drag)/cfg.Mass, ResistiveDeceleration(cfg, 30), 1e-12)
}

func TestAdjustedSteeringAngle(t *testing.T) {
	cfg := mustResolve(t, Light, Slick)

	assert.InDelta(t, 0.2*0.9, AdjustedSteeringAngle(cfg, 0.2, 0), 1e-9)
	assert.InDelta(t, 0.2*0.9*0.75, AdjustedSteeringAngle(cfg, 0.2, 100), 1e-9)
	// effectiveness bottoms out at half
	assert.InDelta(t, 0.2*0.9*0.5, AdjustedSteeringAngle(cfg, 0.2, 200), 1e-9)
}

func TestIntegrate_Stationary(t *testing.T) {
	cfg := mustResolve(t, Heavy, Rain)
	s := State{
		PositionX:     3,
		PositionY:     4,
		Heading:       1,
		SteeringAngle: Radians(10),
		Tires:         TireModel{Temperature: 50, Grip: 0.6, BaseGrip: 0.7},
		Traction:      0.6,
	}

	res := integrate(&s, cfg, 0.1)

	assert.True(t, res.stationary)
	assert.Equal(t, 0.0, s.Velocity)
	assert.Equal(t, 3.0, s.PositionX)
	assert.Equal(t, 4.0, s.PositionY)
	assert.Equal(t, 1.0, s.Heading)
	assert.Equal(t, 50.0, s.Tires.Temperature, "tires hold while stationary")
	assert.Equal(t, 0.6, s.Tires.Grip)
	assert.InDelta(t, Radians(7), s.SteeringAngle, 1e-12, "steering still self-centers")
}

func TestIntegrate_ZeroSteerSubstitution(t *testing.T) {
	cfg := mustResolve(t, Medium, Slick)
	s := State{Velocity: 20, Tires: NewTireModel(cfg.BaseTireGrip), Traction: 1}

	res := integrate(&s, cfg, 0.1)

	assert.False(t, res.stationary)
	assert.Equal(t, 0.0, s.SteeringAngle, "substitute must not persist")
	assert.Greater(t, res.adjustedSteer, 0.0)
	assert.Greater(t, s.Heading, 0.0, "the substitute angle turns the car slightly")
	assert.Greater(t, s.PositionX, 0.0)
	assert.Equal(t, s.Tires.Grip, s.Traction)
}

func TestIntegrate_StraightLineGeometry(t *testing.T) {
	cfg := mustResolve(t, Medium, Slick)
	s := State{Velocity: 10, Heading: math.Pi / 2, SteeringAngle: Radians(5), Tires: NewTireModel(1), Traction: 1}

	integrate(&s, cfg, 0.05)

	v := s.Velocity
	assert.InDelta(t, v*math.Cos(s.Heading)*0.05, s.PositionX, 1e-12)
	assert.InDelta(t, v*math.Sin(s.Heading)*0.05, s.PositionY, 1e-12)
	assert.Greater(t, s.Heading, math.Pi/2, "positive steering turns counter-clockwise")
}

func TestSelfCenter(t *testing.T) {
	tests := []struct {
		name  string
		angle float64
		dt    float64
		want  float64
	}{
		{"zero stays zero", 0, 1, 0},
		{"positive partial return", Radians(40), 0.5, Radians(25)},
		{"negative partial return", Radians(-40), 0.5, Radians(-25)},
		{"positive no overshoot", Radians(10), 1, 0},
		{"negative no overshoot", Radians(-10), 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, selfCenter(tt.angle, tt.dt), 1e-12)
		})
	}
}

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0, 0},
		{1, 1},
		{2 * math.Pi, 0},
		{2*math.Pi + 0.5, 0.5},
		{-0.5, 2*math.Pi - 0.5},
		{-1e-18, 0},
		{7 * math.Pi, math.Pi},
	}

	for _, tt := range tests {
		got := wrapAngle(tt.in)
		assert.InDelta(t, tt.want, got, 1e-9, "wrapAngle(%v)", tt.in)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.Less(t, got, 2*math.Pi)
	}
}
