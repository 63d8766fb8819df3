package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/vehiclesim/sim/service"
	"github.com/wricardo/mcp-training/vehiclesim/sim/session"
	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
	"github.com/wricardo/mcp-training/vehiclesim/transport/websocket"
)

// LegacyVehicleID is the vehicle driven by the single-car legacy routes
const LegacyVehicleID = "default"

// Server represents the REST API server
type Server struct {
	service service.VehicleService
	hub     *websocket.Hub
	router  *mux.Router
	logger  logrus.FieldLogger
}

// NewServer creates a new API server. hub may be nil, in which case nothing
// is broadcast and /ws is not served.
func NewServer(vehicleService service.VehicleService, hub *websocket.Hub, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		service: vehicleService,
		hub:     hub,
		router:  mux.NewRouter(),
		logger:  logger.WithField("component", "api"),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Vehicle management
	api.HandleFunc("/vehicles", s.handleCreateVehicle).Methods("POST")
	api.HandleFunc("/vehicles", s.handleListVehicles).Methods("GET")
	api.HandleFunc("/vehicles/{id}", s.handleGetVehicle).Methods("GET")
	api.HandleFunc("/vehicles/{id}", s.handleDeleteVehicle).Methods("DELETE")

	// Controls and state
	api.HandleFunc("/vehicles/{id}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/vehicles/{id}/throttle", s.handleThrottle).Methods("POST")
	api.HandleFunc("/vehicles/{id}/brake", s.handleBrake).Methods("POST")
	api.HandleFunc("/vehicles/{id}/steering", s.handleSteering).Methods("POST")
	api.HandleFunc("/vehicles/{id}/reset", s.handleReset).Methods("POST")
	api.HandleFunc("/vehicles/{id}/history", s.handleGetHistory).Methods("GET")

	// Presets and classes
	api.HandleFunc("/presets", s.handleListPresets).Methods("GET")
	api.HandleFunc("/presets", s.handleCreatePreset).Methods("POST")
	api.HandleFunc("/presets/{name}", s.handleGetPreset).Methods("GET")
	api.HandleFunc("/classes", s.handleListClasses).Methods("GET")

	// Single-car routes kept for existing front ends
	api.HandleFunc("/apply_throttle", s.handleLegacyThrottle).Methods("POST")
	api.HandleFunc("/apply_brake", s.handleLegacyBrake).Methods("POST")
	api.HandleFunc("/update_steering", s.handleLegacySteering).Methods("POST")

	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps service errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrVehicleNotFound), errors.Is(err, service.ErrPresetNotFound):
		return http.StatusNotFound
	case errors.Is(err, session.ErrSessionAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, vehicle.ErrInvalidInput),
		errors.Is(err, vehicle.ErrInvalidConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.WithError(err).Error("request failed")
	}
	respondError(w, status, err.Error())
}

// Vehicle Handlers

func (s *Server) handleCreateVehicle(w http.ResponseWriter, r *http.Request) {
	var req service.CreateVehicleRequest

	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	info, err := s.service.CreateVehicle(r.Context(), req)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := s.service.ListVehicles(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	query := r.URL.Query()
	sortBy := query.Get("sort")    // "created", "accessed" (default)
	order := query.Get("order")    // "asc", "desc" (default: "desc")
	limitStr := query.Get("limit") // number of vehicles to return

	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	sort.Slice(vehicles, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = vehicles[i].CreatedAt, vehicles[j].CreatedAt
		} else {
			ti, tj = vehicles[i].LastAccessedAt, vehicles[j].LastAccessedAt
		}

		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	total := len(vehicles)
	limit := total
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < total {
			limit = l
		}
	}
	vehicles = vehicles[:limit]

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(vehicles),
		"total":    total,
		"vehicles": vehicles,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicleID := mux.Vars(r)["id"]

	info, err := s.service.GetVehicle(r.Context(), vehicleID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	vehicleID := mux.Vars(r)["id"]

	if err := s.service.DeleteVehicle(r.Context(), vehicleID); err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Vehicle %s deleted", vehicleID),
	})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	vehicleID := mux.Vars(r)["id"]

	state, err := s.service.GetState(r.Context(), vehicleID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, state)
}

// Control Handlers

// controlRequest is the body of the throttle, brake and steering routes
type controlRequest struct {
	Input *float64 `json:"input"`
	Dt    *float64 `json:"dt"`
}

type controlFunc func(ctx context.Context, vehicleID string, input, dt float64) (*service.ControlResult, error)

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request, kind vehicle.ControlKind, apply controlFunc) {
	vehicleID := mux.Vars(r)["id"]

	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Input == nil || req.Dt == nil {
		respondError(w, http.StatusBadRequest, "input and dt are required")
		return
	}

	result, err := apply(r.Context(), vehicleID, *req.Input, *req.Dt)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.broadcastSnapshot(vehicleID, result.Snapshot)
	s.logControl(vehicleID, kind, result)

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleThrottle(w http.ResponseWriter, r *http.Request) {
	s.handleControl(w, r, vehicle.ControlThrottle, s.service.ApplyThrottle)
}

func (s *Server) handleBrake(w http.ResponseWriter, r *http.Request) {
	s.handleControl(w, r, vehicle.ControlBrake, s.service.ApplyBrake)
}

func (s *Server) handleSteering(w http.ResponseWriter, r *http.Request) {
	s.handleControl(w, r, vehicle.ControlSteering, s.service.ApplySteering)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	vehicleID := mux.Vars(r)["id"]

	snapshot, err := s.service.Reset(r.Context(), vehicleID)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	if s.hub != nil {
		s.hub.BroadcastEvent(vehicleID, websocket.EventReset, snapshot)
	}
	s.broadcastSnapshot(vehicleID, *snapshot)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Vehicle reset successfully",
		"snapshot": snapshot,
	})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	vehicleID := mux.Vars(r)["id"]

	opts := service.HistoryOptions{
		Page:  1,
		Limit: 20,
		Order: "desc",
	}

	query := r.URL.Query()
	if pageStr := query.Get("page"); pageStr != "" {
		if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
			opts.Page = p
		}
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			opts.Limit = l
		}
	}

	if order := query.Get("order"); order == "asc" || order == "desc" {
		opts.Order = order
	}

	history, err := s.service.GetStepHistory(r.Context(), vehicleID, opts)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, history)
}

// Preset Handlers

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.service.ListPresets(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, presets)
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	preset, err := s.service.LoadPreset(r.Context(), name)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, preset)
}

func (s *Server) handleCreatePreset(w http.ResponseWriter, r *http.Request) {
	var preset vehicle.Preset

	if err := json.NewDecoder(r.Body).Decode(&preset); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if preset.Name == "" {
		respondError(w, http.StatusBadRequest, "Preset name is required")
		return
	}

	if err := s.service.SavePreset(r.Context(), preset.Name, &preset); err != nil {
		status := statusFor(err)
		respondError(w, status, fmt.Sprintf("Failed to save preset: %v", err))
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Preset saved successfully",
		"preset_id": preset.Name,
	})
}

func (s *Server) handleListClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := s.service.VehicleClasses(r.Context())
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, classes)
}

// Legacy Handlers

// legacySnapshot is the camelCase response of the single-car routes
type legacySnapshot struct {
	PositionX       float64 `json:"positionX"`
	PositionY       float64 `json:"positionY"`
	Velocity        float64 `json:"velocity"`
	TireGrip        float64 `json:"tireGrip"`
	TireTemperature float64 `json:"tireTemperature"`
	SteeringAngle   float64 `json:"steeringAngle"`
}

func newLegacySnapshot(snap vehicle.Snapshot) legacySnapshot {
	return legacySnapshot{
		PositionX:       snap.PositionX,
		PositionY:       snap.PositionY,
		Velocity:        snap.Velocity,
		TireGrip:        snap.TireGrip,
		TireTemperature: snap.TireTemperature,
		SteeringAngle:   snap.SteeringAngleDegrees,
	}
}

type legacyRequest struct {
	Throttle      *float64 `json:"throttle"`
	Brake         *float64 `json:"brake"`
	SteeringInput *float64 `json:"steeringInput"`
	DeltaTime     *float64 `json:"deltaTime"`
}

// ensureLegacyVehicle creates the default vehicle on first use
func (s *Server) ensureLegacyVehicle(ctx context.Context) error {
	_, err := s.service.GetVehicle(ctx, LegacyVehicleID)
	if err == nil || !errors.Is(err, service.ErrVehicleNotFound) {
		return err
	}

	_, err = s.service.CreateVehicle(ctx, service.CreateVehicleRequest{ID: LegacyVehicleID})
	if errors.Is(err, session.ErrSessionAlreadyExists) {
		// created concurrently
		return nil
	}
	return err
}

func (s *Server) handleLegacy(w http.ResponseWriter, r *http.Request, kind vehicle.ControlKind, pick func(legacyRequest) *float64, apply controlFunc) {
	var req legacyRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	if err := s.ensureLegacyVehicle(r.Context()); err != nil {
		s.respondServiceError(w, err)
		return
	}

	input := lo.FromPtrOr(pick(req), 0)
	dt := lo.FromPtrOr(req.DeltaTime, 1.0)

	result, err := apply(r.Context(), LegacyVehicleID, input, dt)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	s.broadcastSnapshot(LegacyVehicleID, result.Snapshot)
	s.logControl(LegacyVehicleID, kind, result)

	respondJSON(w, http.StatusOK, newLegacySnapshot(result.Snapshot))
}

func (s *Server) handleLegacyThrottle(w http.ResponseWriter, r *http.Request) {
	s.handleLegacy(w, r, vehicle.ControlThrottle, func(req legacyRequest) *float64 { return req.Throttle }, s.service.ApplyThrottle)
}

func (s *Server) handleLegacyBrake(w http.ResponseWriter, r *http.Request) {
	s.handleLegacy(w, r, vehicle.ControlBrake, func(req legacyRequest) *float64 { return req.Brake }, s.service.ApplyBrake)
}

func (s *Server) handleLegacySteering(w http.ResponseWriter, r *http.Request) {
	s.handleLegacy(w, r, vehicle.ControlSteering, func(req legacyRequest) *float64 { return req.SteeringInput }, s.service.ApplySteering)
}

func (s *Server) broadcastSnapshot(vehicleID string, snap vehicle.Snapshot) {
	if s.hub != nil {
		s.hub.BroadcastSnapshot(vehicleID, snap)
	}
}

// logControl writes a compact line per control call
func (s *Server) logControl(vehicleID string, kind vehicle.ControlKind, result *service.ControlResult) {
	entry := s.logger.WithFields(logrus.Fields{
		"vehicle":  vehicleID,
		"control":  kind,
		"input":    result.Step.Input,
		"dt":       result.Step.Dt,
		"x":        result.Snapshot.PositionX,
		"y":        result.Snapshot.PositionY,
		"velocity": result.Snapshot.Velocity,
		"steer":    result.Snapshot.SteeringAngleDegrees,
	})
	if result.Warning != "" {
		entry = entry.WithField("warning", result.Warning)
	}
	entry.Info("control applied")
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket not available", http.StatusServiceUnavailable)
		return
	}

	vehicleID := r.URL.Query().Get("vehicle")
	if vehicleID == "" {
		http.Error(w, "vehicle parameter required", http.StatusBadRequest)
		return
	}

	if _, err := s.service.GetVehicle(r.Context(), vehicleID); err != nil {
		http.Error(w, "Invalid vehicle", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, vehicleID)
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
