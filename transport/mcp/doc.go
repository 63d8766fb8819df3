// Package mcp exposes the vehicle simulator to AI agents over the Model
// Context Protocol.
//
// The Client is a thin proxy: every tool call is translated into a REST
// request against the api package, so the MCP surface and the HTTP surface
// always agree.
//
// MCP Tools:
//   - create_vehicle, list_vehicles, get_vehicle, vehicle_state
//   - apply_throttle, apply_brake, apply_steering: advance one step
//   - reset_vehicle, step_history
//   - list_presets, vehicle_classes, simulator_instructions
//
// Transport Modes:
//   - Stdio: server.ServeStdio(client.GetMCPServer())
//   - HTTP: POST /mcp handled by the main server
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		logrus.Fatal(err)
//	}
package mcp
