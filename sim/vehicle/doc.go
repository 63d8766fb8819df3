// Package vehicle provides the planar vehicle dynamics core of the simulator.
//
// The vehicle package implements:
//   - A total configuration table over mass category and tire type
//   - A tire model tracking temperature and grip
//   - A single-track dynamics integrator with understeer correction
//   - The control surface: throttle, brake and steering passes
//
// Core Types:
//
// Vehicle is the handle owned by the caller. Every control operation applies
// one control delta and then runs exactly one integration pass, returning a
// Snapshot. Configuration holds the immutable physical constants resolved at
// construction, while State holds the kinematic, thermal and grip state.
//
// Usage:
//
//	car, err := vehicle.New(vehicle.Medium, vehicle.Slick, 0, 0)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	snap, err := car.ApplyThrottle(1.0, 0.05)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(snap.Velocity)
//
// Time Steps:
//
// The integrator accepts any positive dt, but numerical error grows with the
// step size. Steps up to RecommendedMaxDt (0.1 s) keep the model stable.
//
// Concurrency:
//
// A Vehicle serializes its own control passes with an internal mutex. Separate
// vehicles share no state and can be driven from different goroutines.
package vehicle
