// Command simulate drives a single vehicle offline, without the server.
//
//	simulate classes
//	simulate run --mass heavy --tire rain --dt 0.05 throttle=1*40 steer=0.5*10 brake=1*60
//
// Each script token is control=input, optionally followed by *count to
// repeat the pass. Controls are throttle, brake and steer (or steering).
// One line is printed per integration pass.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

// maxRepeat bounds the *count suffix of a script token
const maxRepeat = 100000

var errBadToken = errors.New("invalid script token")

// scriptStep is one parsed token of a control script
type scriptStep struct {
	Control vehicle.ControlKind
	Input   float64
	Repeat  int
}

// parseScript turns control=input[*count] tokens into steps
func parseScript(tokens []string) ([]scriptStep, error) {
	steps := make([]scriptStep, 0, len(tokens))
	for _, token := range tokens {
		name, value, ok := strings.Cut(token, "=")
		if !ok {
			return nil, fmt.Errorf("%w %q: want control=input", errBadToken, token)
		}

		var control vehicle.ControlKind
		switch strings.ToLower(name) {
		case "throttle":
			control = vehicle.ControlThrottle
		case "brake":
			control = vehicle.ControlBrake
		case "steer", "steering":
			control = vehicle.ControlSteering
		default:
			return nil, fmt.Errorf("%w %q: unknown control %q", errBadToken, token, name)
		}

		repeat := 1
		if in, count, found := strings.Cut(value, "*"); found {
			n, err := strconv.Atoi(count)
			if err != nil || n < 1 || n > maxRepeat {
				return nil, fmt.Errorf("%w %q: repeat must be between 1 and %d", errBadToken, token, maxRepeat)
			}
			value, repeat = in, n
		}

		input, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", errBadToken, token, err)
		}

		steps = append(steps, scriptStep{Control: control, Input: input, Repeat: repeat})
	}
	return steps, nil
}

// passLine is one printed integration pass
type passLine struct {
	Seq     int                 `json:"seq"`
	Control vehicle.ControlKind `json:"control"`
	Input   float64             `json:"input"`
	vehicle.Snapshot
	HeadingDegrees float64 `json:"heading_degrees"`
}

// runScript applies every step to v and writes one line per pass
func runScript(v *vehicle.Vehicle, steps []scriptStep, dt float64, format string, w io.Writer) error {
	enc := json.NewEncoder(w)
	if format == "text" {
		fmt.Fprintf(w, "%5s %-9s %7s %11s %11s %9s %7s %7s %8s\n",
			"seq", "control", "input", "x", "y", "velocity", "grip", "temp", "steer")
	}

	seq := 0
	for _, step := range steps {
		for i := 0; i < step.Repeat; i++ {
			var (
				snap vehicle.Snapshot
				err  error
			)
			switch step.Control {
			case vehicle.ControlThrottle:
				snap, err = v.ApplyThrottle(step.Input, dt)
			case vehicle.ControlBrake:
				snap, err = v.ApplyBrake(step.Input, dt)
			case vehicle.ControlSteering:
				snap, err = v.ApplySteering(step.Input, dt)
			}
			if err != nil {
				return fmt.Errorf("pass %d (%s=%v): %w", seq+1, step.Control, step.Input, err)
			}
			seq++

			line := passLine{
				Seq:            seq,
				Control:        step.Control,
				Input:          step.Input,
				Snapshot:       snap,
				HeadingDegrees: v.State().HeadingDegrees(),
			}
			if format == "json" {
				if err := enc.Encode(line); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintf(w, "%5d %-9s %7.3f %11.3f %11.3f %9.3f %7.4f %7.2f %8.2f\n",
				line.Seq, line.Control, line.Input, snap.PositionX, snap.PositionY,
				snap.Velocity, snap.TireGrip, snap.TireTemperature, snap.SteeringAngleDegrees)
		}
	}
	return nil
}

func printClasses(w io.Writer) {
	fmt.Fprintf(w, "%-14s %9s %5s %8s %8s %6s %12s\n", "class", "mass(kg)", "grip", "Cf", "Cr", "vmax", "understeer")
	catalog := vehicle.Catalog()
	for el := catalog.Front(); el != nil; el = el.Next() {
		cfg := el.Value
		fmt.Fprintf(w, "%-14s %9.1f %5.2f %8.0f %8.0f %6.0f %12.3g\n",
			el.Key, cfg.Mass, cfg.BaseTireGrip, cfg.CorneringStiffnessFront,
			cfg.CorneringStiffnessRear, cfg.MaxVelocity, vehicle.UndersteerGradient(cfg))
	}
}

// newApp builds the command tree, writing reports to w
func newApp(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:   "simulate",
		Usage:  "drive a simulated vehicle from the command line",
		Writer: w,
		Commands: []*cli.Command{
			{
				Name:  "classes",
				Usage: "print the mass/tire configuration table",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					printClasses(cmd.Root().Writer)
					return nil
				},
			},
			{
				Name:      "run",
				Usage:     "run a control script and print every pass",
				ArgsUsage: "control=input[*count] ...",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mass", Value: string(vehicle.Medium), Usage: "mass category: light, medium or heavy"},
					&cli.StringFlag{Name: "tire", Value: string(vehicle.Slick), Usage: "tire type: rain or slick"},
					&cli.FloatFlag{Name: "dt", Value: vehicle.RecommendedMaxDt, Usage: "seconds per pass"},
					&cli.FloatFlag{Name: "x", Usage: "start X position"},
					&cli.FloatFlag{Name: "y", Usage: "start Y position"},
					&cli.StringFlag{Name: "format", Value: "text", Usage: "output format: text or json"},
					&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log every integration step to stderr"},
				},
				Action: runAction,
			},
		},
	}
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	mass, err := vehicle.ParseMassCategory(cmd.String("mass"))
	if err != nil {
		return err
	}
	tire, err := vehicle.ParseTireType(cmd.String("tire"))
	if err != nil {
		return err
	}

	format := cmd.String("format")
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format %q", format)
	}

	dt := cmd.Float("dt")
	if dt > vehicle.RecommendedMaxDt {
		logrus.WithField("dt", dt).Warnf("dt above the recommended maximum of %v", vehicle.RecommendedMaxDt)
	}

	steps, err := parseScript(cmd.Args().Slice())
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		return errors.New("no control script given, e.g. throttle=1*20 steer=0.5*10")
	}

	var opts []vehicle.Option
	if cmd.Bool("verbose") {
		logger := logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetLevel(logrus.DebugLevel)
		opts = append(opts, vehicle.WithObserver(vehicle.LogObserver(logger)))
	}

	v, err := vehicle.New(mass, tire, cmd.Float("x"), cmd.Float("y"), opts...)
	if err != nil {
		return err
	}

	return runScript(v, steps, dt, format, cmd.Root().Writer)
}

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		logrus.Fatal(err)
	}
}
