// Package session provides session management for the vehicle simulator.
//
// Each session owns one simulated vehicle together with the preset it was
// built from and its step history. The Manager keeps sessions in memory,
// looks them up case-insensitively, and optionally mirrors them to a
// SessionPersistence backend.
//
// Session Identifiers:
//
// Sessions created without an explicit ID get a random 4-character hex ID.
// Callers may also choose their own IDs (the HTTP server uses "default" for
// its single-car endpoints).
//
// Step Observation:
//
// Every vehicle created or restored by a Manager logs its control passes at
// debug level and forwards them to the callback registered with
// SetStepObserver. The websocket hub uses this to stream step events.
//
// Persistence:
//
// FilePersistence writes one JSON file per session containing the preset, the
// full vehicle state, the step history, and an xxh3 checksum of the state.
// Files whose state no longer matches the checksum are refused on load.
//
// Usage:
//
//	persistence, err := session.NewFilePersistence("sessions")
//	if err != nil {
//		log.Fatal(err)
//	}
//	manager := session.NewManagerWithPersistence(persistence)
//	manager.SetStepObserver(func(id string, ev vehicle.StepEvent) {
//		// ...
//	})
//
//	sess, err := manager.Create("", vehicle.DefaultPreset())
package session
