package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/wricardo/mcp-training/vehiclesim/api"
	"github.com/wricardo/mcp-training/vehiclesim/sim/config"
	"github.com/wricardo/mcp-training/vehiclesim/sim/service"
	"github.com/wricardo/mcp-training/vehiclesim/sim/session"
	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

func callTool(name string, args map[string]interface{}) mcp.CallToolRequest {
	var request mcp.CallToolRequest
	request.Params.Name = name
	request.Params.Arguments = args
	return request
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("Expected tool result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("Expected text content, got %T", result.Content[0])
	}
	return text.Text
}

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080/"
	client := NewClient(baseURL)

	if client == nil {
		t.Fatal("Expected client to be created")
	}

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash to be trimmed, got %s", client.baseURL)
	}

	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}

	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"id": "car-1", "step_count": 3})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response map[string]interface{}
	if err := client.apiCall(context.Background(), "GET", "/api/vehicles/car-1", nil, &response); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}

	if response["id"] != "car-1" {
		t.Errorf("Expected id car-1, got %v", response["id"])
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://invalid-url-that-does-not-exist:9999")

	if err := client.apiCall(context.Background(), "GET", "/api", nil, nil); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected string
	}{
		{"plain error", http.StatusInternalServerError, "Internal Server Error", "API error: 500"},
		{"json error", http.StatusNotFound, `{"error":"session: vehicle not found"}`, "session: vehicle not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewClient(server.URL)
			err := client.apiCall(context.Background(), "GET", "/api", nil, nil)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.expected) {
				t.Errorf("Expected %q in error message, got: %v", tt.expected, err)
			}
		})
	}
}

func TestClient_createVehicle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/vehicles" {
			t.Errorf("Expected POST /api/vehicles, got %s %s", r.Method, r.URL.Path)
		}

		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["id"] != "car-7" || body["mass_category"] != "heavy" || body["start_x"] != 12.5 {
			t.Errorf("Unexpected request body %v", body)
		}
		if _, ok := body["preset"]; ok {
			t.Error("Empty preset should not be forwarded")
		}

		json.NewEncoder(w).Encode(service.VehicleInfo{
			ID:     "car-7",
			Class:  "heavy/slick",
			Preset: "custom",
			Configuration: vehicle.Configuration{
				Mass:        1769.0,
				MaxVelocity: 160,
			},
			Snapshot: vehicle.Snapshot{PositionX: 12.5, TireGrip: 1, TireTemperature: 20},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleCreateVehicle(context.Background(), callTool("create_vehicle", map[string]interface{}{
		"vehicle_id":    "car-7",
		"mass_category": "heavy",
		"start_x":       12.5,
	}))
	if err != nil {
		t.Fatalf("handleCreateVehicle returned error: %v", err)
	}

	text := resultText(t, result)
	for _, want := range []string{"car-7", "heavy/slick", "(12.500, 0.000)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in result, got:\n%s", want, text)
		}
	}
}

func TestClient_controlValidation(t *testing.T) {
	client := NewClient("http://localhost:1")
	handler := client.handleControl("throttle", "throttle")

	result, err := handler(context.Background(), callTool("apply_throttle", map[string]interface{}{
		"vehicle_id": "car-1",
		"dt":         0.1,
	}))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !result.IsError || !strings.Contains(resultText(t, result), "throttle must be a number") {
		t.Error("Expected a tool error for missing throttle")
	}

	result, _ = handler(context.Background(), callTool("apply_throttle", map[string]interface{}{
		"vehicle_id": "car-1",
		"throttle":   0.5,
	}))
	if !result.IsError {
		t.Error("Expected a tool error for missing dt")
	}
}

func TestFormatControlResult(t *testing.T) {
	result := &service.ControlResult{
		VehicleID: "car-1",
		Snapshot:  vehicle.Snapshot{PositionX: 1.5, Velocity: 29.9, TireGrip: 1, TireTemperature: 20, SteeringAngleDegrees: 15},
		Step:      service.StepRecord{Seq: 4, Control: vehicle.ControlSteering, Input: 0.25, Dt: 0.2, HeadingDegrees: 3},
		Warning:   "dt 0.2 exceeds the recommended maximum of 0.1",
	}

	text := formatControlResult(result)
	for _, want := range []string{"Step 4: steering 0.250", "Velocity: 29.900", "Steering: 15.00°", "⚠️ dt 0.2"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in:\n%s", want, text)
		}
	}
}

func TestFormatHistory(t *testing.T) {
	history := &service.HistoryResponse{
		Steps: []service.StepRecord{
			{Seq: 2, Control: vehicle.ControlBrake, Input: 1, Dt: 0.1},
			{Seq: 1, Control: vehicle.ControlThrottle, Input: 1, Dt: 0.1},
		},
		TotalSteps: 2,
		Page:       1,
		TotalPages: 1,
	}

	text := formatHistory(history)
	if !strings.Contains(text, "Total: 2") || !strings.Contains(text, "2. brake") || !strings.Contains(text, "1. throttle") {
		t.Errorf("Unexpected history output:\n%s", text)
	}

	empty := formatHistory(&service.HistoryResponse{Page: 1})
	if !strings.Contains(empty, "(no steps)") {
		t.Errorf("Expected empty marker, got:\n%s", empty)
	}
}

func TestFormatSnapshot_Nil(t *testing.T) {
	if formatSnapshot(nil) != "No snapshot available" {
		t.Error("Expected placeholder for nil snapshot")
	}
}

func TestClient_handleInstructions(t *testing.T) {
	client := NewClient("http://localhost:8080")

	result, err := client.handleInstructions(context.Background(), callTool("simulator_instructions", nil))
	if err != nil {
		t.Fatalf("handleInstructions returned error: %v", err)
	}

	text := resultText(t, result)
	for _, want := range []string{"apply_throttle", "apply_brake", "apply_steering", "dt <= 0.1"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected instructions to mention %q", want)
		}
	}
}

// TestClient_Integration drives the tools against the real REST server
func TestClient_Integration(t *testing.T) {
	presets, err := config.NewManager("../../presets")
	if err != nil {
		t.Fatalf("Failed to load presets: %v", err)
	}
	logger, _ := test.NewNullLogger()
	sessions := session.NewManager()
	sessions.SetLogger(logger)
	svc := service.NewVehicleService(sessions, presets, logger)

	apiServer := httptest.NewServer(api.NewServer(svc, nil, logger))
	defer apiServer.Close()

	client := NewClient(apiServer.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, _ := client.handleCreateVehicle(ctx, callTool("create_vehicle", map[string]interface{}{
		"vehicle_id": "agent-car",
		"preset":     "wet",
	}))
	if result.IsError {
		t.Fatalf("create_vehicle failed: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "heavy/rain") {
		t.Errorf("Expected heavy/rain class, got:\n%s", resultText(t, result))
	}

	throttle := client.handleControl("throttle", "throttle")
	for i := 0; i < 5; i++ {
		result, _ = throttle(ctx, callTool("apply_throttle", map[string]interface{}{
			"vehicle_id": "agent-car", "throttle": 1.0, "dt": 0.1,
		}))
		if result.IsError {
			t.Fatalf("apply_throttle failed: %s", resultText(t, result))
		}
	}

	steer := client.handleControl("steering", "steering")
	result, _ = steer(ctx, callTool("apply_steering", map[string]interface{}{
		"vehicle_id": "agent-car", "steering": 3.0, "dt": 0.1,
	}))
	if !result.IsError {
		t.Error("Expected out-of-range steering to be rejected")
	}

	result, _ = client.handleStepHistory(ctx, callTool("step_history", map[string]interface{}{
		"vehicle_id": "agent-car", "limit": 2.0, "order": "asc",
	}))
	text := resultText(t, result)
	if !strings.Contains(text, "Total: 5") || !strings.Contains(text, "1. throttle") {
		t.Errorf("Unexpected history:\n%s", text)
	}

	result, _ = client.handleVehicleState(ctx, callTool("vehicle_state", map[string]interface{}{"vehicle_id": "agent-car"}))
	if !strings.Contains(resultText(t, result), "Understeer gradient") {
		t.Errorf("Unexpected state output:\n%s", resultText(t, result))
	}

	result, _ = client.handleReset(ctx, callTool("reset_vehicle", map[string]interface{}{"vehicle_id": "agent-car"}))
	if !strings.Contains(resultText(t, result), "Position: (0.000, 0.000) | Velocity: 0.000") {
		t.Errorf("Expected reset to origin, got:\n%s", resultText(t, result))
	}

	result, _ = client.handleListVehicles(ctx, callTool("list_vehicles", nil))
	if !strings.Contains(resultText(t, result), "agent-car") {
		t.Error("Expected agent-car in vehicle list")
	}

	result, _ = client.handleListPresets(ctx, callTool("list_presets", nil))
	if !strings.Contains(resultText(t, result), "street") {
		t.Error("Expected street preset in list")
	}

	result, _ = client.handleVehicleClasses(ctx, callTool("vehicle_classes", nil))
	if !strings.Contains(resultText(t, result), "light/slick") {
		t.Errorf("Expected class table, got:\n%s", resultText(t, result))
	}

	result, _ = client.handleGetVehicle(ctx, callTool("get_vehicle", map[string]interface{}{"vehicle_id": "nope"}))
	if !result.IsError {
		t.Error("Expected error for unknown vehicle")
	}
}
