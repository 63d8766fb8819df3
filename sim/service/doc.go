// Package service provides the business logic layer for the vehicle simulator.
//
// The service package implements:
//   - Multi-vehicle session management
//   - Preset loading and saving
//   - Control pass orchestration and step history
//   - Large-step advisories
//
// Core Interfaces:
//
// VehicleService is the main service interface providing high-level vehicle
// operations. SessionManager handles session creation, retrieval, and
// lifecycle. PresetManager loads and validates vehicle presets.
//
// Architecture:
//
// The service layer sits between the transport layer (HTTP/WebSocket/MCP) and
// the vehicle model. Each session owns one vehicle with independent state;
// control passes on one vehicle are serialized by the session lock while
// different vehicles advance concurrently.
//
// Usage:
//
//	sessionMgr := session.NewManager(logger)
//	presetMgr, _ := config.NewManager("presets")
//	vehicleService := service.NewVehicleService(sessionMgr, presetMgr, logger)
//
//	info, err := vehicleService.CreateVehicle(ctx, service.CreateVehicleRequest{Preset: "street"})
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	result, err := vehicleService.ApplyThrottle(ctx, info.ID, 1.0, 0.05)
//
// Errors:
//
// Lookups of unknown vehicles wrap ErrVehicleNotFound, unknown presets wrap
// ErrPresetNotFound, and malformed requests wrap ErrInvalidRequest. Control
// input errors come straight from the vehicle package (vehicle.ErrInvalidInput).
package service
