// Command validate checks the vehicle preset JSON files in a directory
// (../presets by default, or the first argument). For every file it checks:
//   - JSON structure, unknown keys and required fields
//   - Mass category and tire type against the configuration table
//   - A finite start position
//   - A sanity drive: full throttle, a held turn and a full stop, with the
//     vehicle state invariants checked after every step
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

// sanityDt is the step size of the sanity drive
const sanityDt = 0.05

// ValidationResult captures the outcome of validating a single file.
// If Valid is true, Errors contains informational messages; otherwise it
// accumulates the validation errors that were found.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...interface{}) {
	r.Errors = append(r.Errors, "✓ "+fmt.Sprintf(format, args...))
}

// validatePreset loads and validates a single preset JSON file
func validatePreset(filePath string) ValidationResult {
	result := ValidationResult{
		File:   filepath.Base(filePath),
		Valid:  true,
		Errors: []string{},
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	var preset vehicle.Preset
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&preset); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	if preset.Name == "" {
		result.fail("name is required")
	}
	if preset.Description == "" {
		result.fail("description is required")
	}
	if _, err := vehicle.ParseMassCategory(string(preset.MassCategory)); err != nil {
		result.fail("mass_category: %v", err)
	}
	if _, err := vehicle.ParseTireType(string(preset.TireType)); err != nil {
		result.fail("tire_type: %v", err)
	}
	if math.IsNaN(preset.StartX) || math.IsInf(preset.StartX, 0) || math.IsNaN(preset.StartY) || math.IsInf(preset.StartY, 0) {
		result.fail("start position must be finite, got (%v, %v)", preset.StartX, preset.StartY)
	}

	if !result.Valid {
		return result
	}

	// normalizes the enumerations in place
	if err := vehicle.ValidatePreset(&preset); err != nil {
		result.fail("%v", err)
		return result
	}

	stem := strings.TrimSuffix(result.File, filepath.Ext(result.File))
	if !strings.EqualFold(stem, preset.Name) {
		result.info("Note: name %q differs from file name %q", preset.Name, stem)
	}

	drive := sanityDrive(&preset)
	if !drive.Valid {
		result.Valid = false
	}
	result.Errors = append(result.Errors, drive.Errors...)

	if result.Valid {
		cfg, _ := vehicle.Resolve(preset.MassCategory, preset.TireType)
		result.info("Name: %s", preset.Name)
		result.info("Class: %s", vehicle.ClassName(preset.MassCategory, preset.TireType))
		result.info("Mass: %.1f kg, base grip %.2f", cfg.Mass, cfg.BaseTireGrip)
		result.info("Max velocity: %.0f m/s", cfg.MaxVelocity)
		result.info("Start: (%.2f, %.2f)", preset.StartX, preset.StartY)
	}

	return result
}

// sanityDrive builds a vehicle from the preset and drives a short script,
// checking the state invariants after every step
func sanityDrive(preset *vehicle.Preset) ValidationResult {
	result := ValidationResult{Valid: true, Errors: []string{}}

	v, err := vehicle.NewFromPreset(preset)
	if err != nil {
		result.fail("Failed to build vehicle: %v", err)
		return result
	}

	type step struct {
		name  string
		apply func(input, dt float64) (vehicle.Snapshot, error)
		input float64
		count int
	}
	script := []step{
		{"throttle", v.ApplyThrottle, 1, 60},
		{"steer left", v.ApplySteering, 0.5, 40},
		{"throttle", v.ApplyThrottle, 0.5, 20},
		{"steer right", v.ApplySteering, -1, 40},
		{"brake", v.ApplyBrake, 1, 200},
	}

	topSpeed := 0.0
	steps := 0
	for _, s := range script {
		for i := 0; i < s.count; i++ {
			snap, err := s.apply(s.input, sanityDt)
			if err != nil {
				result.fail("Sanity drive: %s step %d rejected: %v", s.name, i+1, err)
				return result
			}
			steps++
			topSpeed = math.Max(topSpeed, snap.Velocity)

			// SetState runs the same invariant checks as a persisted state
			if err := v.SetState(v.State()); err != nil {
				if errors.Is(err, vehicle.ErrInvalidState) {
					result.fail("Sanity drive: invariant broken after %s step %d: %v", s.name, i+1, err)
				} else {
					result.fail("Sanity drive: %v", err)
				}
				return result
			}
		}
	}

	final := v.Snapshot()
	if final.Velocity != 0 {
		result.fail("Sanity drive: vehicle did not stop under full brake, velocity %.3f", final.Velocity)
	}
	if topSpeed <= 0 {
		result.fail("Sanity drive: vehicle never moved under full throttle")
	}

	if result.Valid {
		result.info("Sanity drive: %d steps, top speed %.2f m/s, final grip %.4f, final tire temperature %.2f°C",
			steps, topSpeed, final.TireGrip, final.TireTemperature)
	}
	return result
}

// main scans the preset directory for *.json files and validates each one,
// printing a concise report and exiting with non-zero status if any are invalid.
func main() {
	presetDir := "../presets"
	if len(os.Args) > 1 {
		presetDir = os.Args[1]
	}

	files, err := filepath.Glob(filepath.Join(presetDir, "*.json"))
	if err != nil {
		fmt.Printf("Error finding preset files: %v\n", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Printf("No preset files found in %s\n", presetDir)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validatePreset(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Errors {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				if !strings.HasPrefix(err, "✓") {
					fmt.Println("  ❌ " + err)
				}
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All presets are valid!")
	} else {
		fmt.Println("❌ Some presets have errors")
		os.Exit(1)
	}
}
