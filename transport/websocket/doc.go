// Package websocket streams vehicle updates to browser and tool clients.
//
// Architecture:
//
// A central Hub owns every connection. Registration, removal and fan-out all
// happen on the goroutine running Hub.Run, so the client map needs no lock.
// Each connection has a read pump (which only keeps pongs flowing) and a
// write pump.
//
// Message Protocol:
//
// Clients pick a vehicle with ?vehicle=<id> when connecting and then receive
// JSON messages for that vehicle only:
//   - {"event": "snapshot", "snapshot": {...}} after each control call
//   - {"event": "step", "step": {...}} for every integration pass
//   - {"event": "reset"} when the vehicle is reset
//
// Broadcasting never blocks the caller. When the queue is full the message
// is dropped and a warning is logged; a client whose own buffer is full is
// disconnected.
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	go hub.Run()
//	defer hub.Stop()
//
//	sessions.SetStepObserver(hub.BroadcastStep)
package websocket
