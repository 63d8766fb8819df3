// Command analyze prints quick, human-readable handling figures for the
// vehicle presets in the project's presets directory (or the first
// argument). For each preset it reports the understeer gradient, the
// 0-100 km/h time, the stopping distance from 100 km/h, the top speed
// reached within a minute of full throttle, and the tightest turning
// radius at a few speeds. It flags presets that never reach 100 km/h.
package main

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/wricardo/mcp-training/vehiclesim/sim/config"
	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

const (
	analysisDt      = 0.05
	analysisHorizon = 60.0 // seconds of full throttle
	speed100kmh     = 100 / 3.6
	neutralBand     = 1e-4
)

// radiusSpeeds are the speeds (m/s) at which the turning radius is reported
var radiusSpeeds = []float64{10, 20, 40}

// Analysis holds the handling figures of one preset.
type Analysis struct {
	Preset     *vehicle.Preset
	Config     vehicle.Configuration
	Understeer float64

	// ZeroTo100 is zero when 100 km/h is never reached
	ZeroTo100        float64
	StoppingDistance float64
	StoppingTime     float64
	TopSpeed         float64

	// TurnRadius maps speed to the radius at full lock
	TurnRadius map[float64]float64
}

func main() {
	presetDir := "presets"
	if len(os.Args) > 1 {
		presetDir = os.Args[1]
	}

	presets, err := config.NewManager(presetDir)
	if err != nil {
		fmt.Printf("Error opening presets: %v\n", err)
		os.Exit(1)
	}

	infos, err := presets.ListPresets()
	if err != nil {
		fmt.Printf("Error listing presets: %v\n", err)
		os.Exit(1)
	}

	for _, info := range infos {
		fmt.Printf("\n=== Analyzing %s ===\n", info.Filename)
		preset, err := presets.LoadPreset(info.PresetID)
		if err != nil {
			fmt.Printf("Error loading preset: %v\n", err)
			continue
		}

		analysis, err := analyzePreset(preset)
		if err != nil {
			fmt.Printf("Error analyzing preset: %v\n", err)
			continue
		}
		printAnalysis(os.Stdout, analysis)
	}
}

// analyzePreset drives a vehicle built from preset through a full-throttle
// run and a full stop from 100 km/h.
func analyzePreset(preset *vehicle.Preset) (*Analysis, error) {
	v, err := vehicle.NewFromPreset(preset)
	if err != nil {
		return nil, err
	}
	cfg := v.Configuration()

	a := &Analysis{
		Preset:     preset,
		Config:     cfg,
		Understeer: vehicle.UndersteerGradient(cfg),
		TurnRadius: make(map[float64]float64, len(radiusSpeeds)),
	}

	var at100 *vehicle.State
	for t := analysisDt; t <= analysisHorizon+analysisDt/2; t += analysisDt {
		snap, err := v.ApplyThrottle(1, analysisDt)
		if err != nil {
			return nil, err
		}
		a.TopSpeed = math.Max(a.TopSpeed, snap.Velocity)
		if at100 == nil && snap.Velocity >= speed100kmh {
			a.ZeroTo100 = t
			s := v.State()
			at100 = &s
		}
	}

	if at100 != nil {
		if err := v.SetState(*at100); err != nil {
			return nil, err
		}
		startX, startY := at100.PositionX, at100.PositionY
		for v.State().Moving() {
			if _, err := v.ApplyBrake(1, analysisDt); err != nil {
				return nil, err
			}
			a.StoppingTime += analysisDt
		}
		end := v.State()
		a.StoppingDistance = math.Hypot(end.PositionX-startX, end.PositionY-startY)
	}

	for _, speed := range radiusSpeeds {
		a.TurnRadius[speed] = turningRadius(cfg, speed)
	}
	return a, nil
}

// turningRadius returns the radius of the path at full steering lock
func turningRadius(cfg vehicle.Configuration, speed float64) float64 {
	adjusted := vehicle.AdjustedSteeringAngle(cfg, vehicle.MaxSteeringAngle, speed)
	return cfg.Wheelbase / math.Tan(adjusted)
}

// balance classifies the understeer gradient
func balance(k float64) string {
	switch {
	case k > neutralBand:
		return "understeer"
	case k < -neutralBand:
		return "oversteer"
	default:
		return "neutral"
	}
}

func printAnalysis(w io.Writer, a *Analysis) {
	fmt.Fprintf(w, "Name: %s\n", a.Preset.Name)
	fmt.Fprintf(w, "Class: %s\n", vehicle.ClassName(a.Preset.MassCategory, a.Preset.TireType))
	fmt.Fprintf(w, "Mass: %.1f kg, base grip %.2f, max velocity %.0f m/s\n", a.Config.Mass, a.Config.BaseTireGrip, a.Config.MaxVelocity)
	fmt.Fprintf(w, "Understeer gradient: %.3g (%s)\n", a.Understeer, balance(a.Understeer))
	fmt.Fprintf(w, "Top speed after %.0fs: %.2f m/s\n", analysisHorizon, a.TopSpeed)

	if a.ZeroTo100 == 0 {
		fmt.Fprintf(w, "⚠️  WARNING: never reaches 100 km/h under full throttle\n")
	} else {
		fmt.Fprintf(w, "0-100 km/h: %.2f s\n", a.ZeroTo100)
		fmt.Fprintf(w, "100-0 km/h: %.2f m in %.2f s\n", a.StoppingDistance, a.StoppingTime)
	}

	for _, speed := range radiusSpeeds {
		fmt.Fprintf(w, "Turning radius at %.0f m/s: %.2f m\n", speed, a.TurnRadius[speed])
	}
}
