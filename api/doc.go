// Package api provides the HTTP REST API of the vehicle simulator.
//
// Endpoints:
//
// Vehicles:
//   - POST /api/vehicles - Create a vehicle from a preset or explicit class
//   - GET /api/vehicles - List vehicles (sort=created|accessed, order, limit)
//   - GET /api/vehicles/{id} - Get one vehicle
//   - DELETE /api/vehicles/{id} - Delete a vehicle
//
// Controls:
//   - POST /api/vehicles/{id}/throttle - {"input": 0..1, "dt": seconds}
//   - POST /api/vehicles/{id}/brake - {"input": 0..1, "dt": seconds}
//   - POST /api/vehicles/{id}/steering - {"input": -1..1, "dt": seconds}
//   - POST /api/vehicles/{id}/reset - Return to the start position
//   - GET /api/vehicles/{id}/state - Full state plus configuration
//   - GET /api/vehicles/{id}/history - Paginated step history (page, limit, order)
//
// Presets:
//   - GET /api/presets, POST /api/presets, GET /api/presets/{name}
//   - GET /api/classes - The mass/tire configuration table
//
// Single-car routes (drive the vehicle with ID "default", created on demand):
//   - POST /api/apply_throttle {"throttle", "deltaTime"}
//   - POST /api/apply_brake {"brake", "deltaTime"}
//   - POST /api/update_steering {"steeringInput", "deltaTime"}
//
// Missing inputs default to 0 and deltaTime to 1.0. The response uses the
// camelCase keys positionX, positionY, velocity, tireGrip, tireTemperature
// and steeringAngle.
//
// Live updates are served on GET /ws?vehicle=<id>.
//
// Error Handling:
//
// Errors are returned as {"error": "message"}. Unknown vehicles and presets
// map to 404, invalid inputs and configurations to 400, duplicate vehicle IDs
// to 409.
package api
