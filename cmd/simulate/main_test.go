package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

func TestParseScript(t *testing.T) {
	steps, err := parseScript([]string{"throttle=1*20", "steer=-0.5", "Steering=0.25*2", "brake=0.2"})
	require.NoError(t, err)

	assert.Equal(t, []scriptStep{
		{Control: vehicle.ControlThrottle, Input: 1, Repeat: 20},
		{Control: vehicle.ControlSteering, Input: -0.5, Repeat: 1},
		{Control: vehicle.ControlSteering, Input: 0.25, Repeat: 2},
		{Control: vehicle.ControlBrake, Input: 0.2, Repeat: 1},
	}, steps)
}

func TestParseScript_Errors(t *testing.T) {
	tests := []struct {
		name  string
		token string
	}{
		{"missing input", "throttle"},
		{"unknown control", "boost=1"},
		{"bad number", "brake=lots"},
		{"zero repeat", "brake=1*0"},
		{"bad repeat", "brake=1*x"},
		{"huge repeat", "brake=1*1000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseScript([]string{tt.token})
			assert.ErrorIs(t, err, errBadToken)
		})
	}
}

func TestRunScript_Text(t *testing.T) {
	v, err := vehicle.New(vehicle.Light, vehicle.Slick, 0, 0)
	require.NoError(t, err)

	var out bytes.Buffer
	err = runScript(v, []scriptStep{
		{Control: vehicle.ControlThrottle, Input: 1, Repeat: 3},
		{Control: vehicle.ControlBrake, Input: 1, Repeat: 2},
	}, 0.1, "text", &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 6, "header plus one line per pass")
	assert.Contains(t, lines[0], "velocity")
	assert.Contains(t, lines[1], "throttle")
	assert.Contains(t, lines[5], "brake")
}

func TestRunScript_JSON(t *testing.T) {
	v, err := vehicle.New(vehicle.Medium, vehicle.Rain, 5, 5)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, runScript(v, []scriptStep{{Control: vehicle.ControlThrottle, Input: 1, Repeat: 4}}, 0.05, "json", &out))

	dec := json.NewDecoder(&out)
	last := 0.0
	for i := 1; i <= 4; i++ {
		var line map[string]interface{}
		require.NoError(t, dec.Decode(&line))
		assert.EqualValues(t, i, line["seq"])
		assert.Equal(t, "throttle", line["control"])

		velocity := line["velocity"].(float64)
		assert.Greater(t, velocity, last, "velocity should rise under full throttle")
		last = velocity
	}
}

func TestRunScript_RejectedInput(t *testing.T) {
	v, err := vehicle.New(vehicle.Heavy, vehicle.Slick, 0, 0)
	require.NoError(t, err)

	var out bytes.Buffer
	err = runScript(v, []scriptStep{
		{Control: vehicle.ControlThrottle, Input: 1, Repeat: 2},
		{Control: vehicle.ControlSteering, Input: -2, Repeat: 1},
	}, 0.1, "json", &out)

	require.Error(t, err)
	assert.ErrorIs(t, err, vehicle.ErrInvalidInput)
	assert.Contains(t, err.Error(), "pass 3")
}

func TestApp_Classes(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, newApp(&out).Run(context.Background(), []string{"simulate", "classes"}))

	text := out.String()
	for _, class := range []string{"light/rain", "light/slick", "medium/rain", "medium/slick", "heavy/rain", "heavy/slick"} {
		assert.Contains(t, text, class)
	}
}

func TestApp_Run(t *testing.T) {
	var out bytes.Buffer
	err := newApp(&out).Run(context.Background(), []string{
		"simulate", "run", "--mass", "heavy", "--tire", "rain", "--dt", "0.05", "--format", "json",
		"throttle=1*10", "brake=1*200",
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 210)

	var final vehicle.Snapshot
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &final))
	assert.Zero(t, final.Velocity)
	assert.Greater(t, final.PositionX, 0.0)
}

func TestApp_RunErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"no script", []string{"simulate", "run"}},
		{"bad mass", []string{"simulate", "run", "--mass", "tank", "throttle=1"}},
		{"bad tire", []string{"simulate", "run", "--tire", "ice", "throttle=1"}},
		{"bad format", []string{"simulate", "run", "--format", "xml", "throttle=1"}},
		{"bad token", []string{"simulate", "run", "nitro=1"}},
		{"bad dt", []string{"simulate", "run", "--dt", "0", "throttle=1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, newApp(&out).Run(context.Background(), tt.args))
		})
	}
}
