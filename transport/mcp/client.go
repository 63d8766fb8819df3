package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/vehiclesim/sim/service"
	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Vehicle Dynamics Simulator",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Vehicle Dynamics Simulator - MCP Interface

This is a thin client that proxies all requests to the REST API server.

Each vehicle is a simulated car on a flat plane. Drive it with throttle,
brake and steering inputs; every control call advances the simulation by dt
seconds and returns position, velocity, tire grip, tire temperature and
steering angle.

AVAILABLE TOOLS:
- create_vehicle: Create a vehicle from a preset or a mass/tire class
- list_vehicles: List all vehicles
- get_vehicle: Get vehicle details
- vehicle_state: Full physical state of a vehicle
- apply_throttle / apply_brake / apply_steering: Drive one step
- reset_vehicle: Return the vehicle to its start position
- step_history: View past control steps
- list_presets: List vehicle presets
- vehicle_classes: The mass/tire configuration table
- simulator_instructions: Physics notes and driving tips

Keep dt at or below 0.1 seconds for stable results.`),
	)

	c.registerTools()
}

func vehicleIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Vehicle ID",
	}
}

func dtProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":             "number",
		"description":      "Time step in seconds (recommended <= 0.1)",
		"exclusiveMinimum": 0,
	}
}

func intentProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Brief explanation of what this input is meant to achieve",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Vehicle management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_vehicle",
		Description: "Create a new vehicle from a preset, or from an explicit mass category and tire type",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"vehicle_id": map[string]interface{}{
					"type":        "string",
					"description": "ID for the new vehicle (optional, generated when omitted)",
				},
				"preset": map[string]interface{}{
					"type":        "string",
					"description": "Preset ID to start from (optional)",
				},
				"mass_category": map[string]interface{}{
					"type":        "string",
					"enum":        []string{string(vehicle.Light), string(vehicle.Medium), string(vehicle.Heavy)},
					"description": "Mass category (optional, overrides the preset)",
				},
				"tire_type": map[string]interface{}{
					"type":        "string",
					"enum":        []string{string(vehicle.Slick), string(vehicle.Rain)},
					"description": "Tire type (optional, overrides the preset)",
				},
				"start_x": map[string]interface{}{
					"type":        "number",
					"description": "Start X position in meters (optional)",
				},
				"start_y": map[string]interface{}{
					"type":        "number",
					"description": "Start Y position in meters (optional)",
				},
			},
		},
	}, c.handleCreateVehicle)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_vehicles",
		Description: "List all simulated vehicles",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListVehicles)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_vehicle",
		Description: "Get details of a specific vehicle",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"vehicle_id": vehicleIDProperty(),
			},
			Required: []string{"vehicle_id"},
		},
	}, c.handleGetVehicle)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "vehicle_state",
		Description: "Get the full physical state of a vehicle, including heading, acceleration and traction",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"vehicle_id": vehicleIDProperty(),
			},
			Required: []string{"vehicle_id"},
		},
	}, c.handleVehicleState)

	// Controls
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "apply_throttle",
		Description: "Apply throttle for one time step and advance the simulation",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"vehicle_id": vehicleIDProperty(),
				"throttle": map[string]interface{}{
					"type":        "number",
					"minimum":     0,
					"maximum":     1,
					"description": "Throttle input between 0 and 1",
				},
				"dt":     dtProperty(),
				"intent": intentProperty(),
			},
			Required: []string{"vehicle_id", "throttle", "dt"},
		},
	}, c.handleControl("throttle", "throttle"))

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "apply_brake",
		Description: "Apply the brake for one time step and advance the simulation",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"vehicle_id": vehicleIDProperty(),
				"brake": map[string]interface{}{
					"type":        "number",
					"minimum":     0,
					"maximum":     1,
					"description": "Brake input between 0 and 1",
				},
				"dt":     dtProperty(),
				"intent": intentProperty(),
			},
			Required: []string{"vehicle_id", "brake", "dt"},
		},
	}, c.handleControl("brake", "brake"))

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "apply_steering",
		Description: "Turn the steering wheel for one time step and advance the simulation. Positive turns left.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"vehicle_id": vehicleIDProperty(),
				"steering": map[string]interface{}{
					"type":        "number",
					"minimum":     -1,
					"maximum":     1,
					"description": "Steering input between -1 and 1",
				},
				"dt":     dtProperty(),
				"intent": intentProperty(),
			},
			Required: []string{"vehicle_id", "steering", "dt"},
		},
	}, c.handleControl("steering", "steering"))

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "reset_vehicle",
		Description: "Reset a vehicle to its start position and initial state",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"vehicle_id": vehicleIDProperty(),
			},
			Required: []string{"vehicle_id"},
		},
	}, c.handleReset)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "step_history",
		Description: "Get the control step history of a vehicle",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"vehicle_id": vehicleIDProperty(),
				"page": map[string]interface{}{
					"type":        "integer",
					"description": "Page number",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Items per page",
				},
				"order": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"asc", "desc"},
					"description": "Oldest first (asc) or newest first (desc)",
				},
			},
			Required: []string{"vehicle_id"},
		},
	}, c.handleStepHistory)

	// Presets and classes
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_presets",
		Description: "List available vehicle presets",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListPresets)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "vehicle_classes",
		Description: "List the physical constants of every mass category and tire type combination",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleVehicleClasses)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "simulator_instructions",
		Description: "Get physics notes and driving tips for the simulator",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"]; ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// arguments returns the tool call arguments as a map
func arguments(request mcp.CallToolRequest) map[string]interface{} {
	if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
		return args
	}
	return map[string]interface{}{}
}

func vehiclePath(vehicleID string, suffix string) string {
	return "/api/vehicles/" + url.PathEscape(vehicleID) + suffix
}

// Tool handlers

func (c *Client) handleCreateVehicle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	body := map[string]interface{}{}
	if id, _ := args["vehicle_id"].(string); id != "" {
		body["id"] = id
	}
	for _, key := range []string{"preset", "mass_category", "tire_type"} {
		if v, _ := args[key].(string); v != "" {
			body[key] = v
		}
	}
	for _, key := range []string{"start_x", "start_y"} {
		if v, ok := args[key].(float64); ok {
			body[key] = v
		}
	}

	var info service.VehicleInfo
	if err := c.apiCall(ctx, "POST", "/api/vehicles", body, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText("Created vehicle\n\n" + formatVehicleInfo(&info)), nil
}

func (c *Client) handleListVehicles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Vehicles []service.VehicleInfo `json:"vehicles"`
	}

	if err := c.apiCall(ctx, "GET", "/api/vehicles", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Vehicles (%d):\n\n", response.Count)
	for _, v := range response.Vehicles {
		fmt.Fprintf(&b, "- %s (%s, preset %s) at (%.2f, %.2f), %.2f m/s, %d steps\n",
			v.ID, v.Class, v.Preset, v.Snapshot.PositionX, v.Snapshot.PositionY, v.Snapshot.Velocity, v.StepCount)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleGetVehicle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	vehicleID, _ := arguments(request)["vehicle_id"].(string)

	var info service.VehicleInfo
	if err := c.apiCall(ctx, "GET", vehiclePath(vehicleID, ""), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatVehicleInfo(&info)), nil
}

func (c *Client) handleVehicleState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	vehicleID, _ := arguments(request)["vehicle_id"].(string)

	var state service.StateResponse
	if err := c.apiCall(ctx, "GET", vehiclePath(vehicleID, "/state"), nil, &state); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatState(&state)), nil
}

// handleControl builds the handler of one control tool. arg names the tool
// argument holding the input, route the REST path suffix.
func (c *Client) handleControl(route, arg string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := arguments(request)
		vehicleID, _ := args["vehicle_id"].(string)

		input, ok := args[arg].(float64)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("%s must be a number", arg)), nil
		}
		dt, ok := args["dt"].(float64)
		if !ok {
			return mcp.NewToolResultError("dt must be a number"), nil
		}

		// intent only serves the caller's reasoning and is not forwarded
		var result service.ControlResult
		body := map[string]float64{"input": input, "dt": dt}
		if err := c.apiCall(ctx, "POST", vehiclePath(vehicleID, "/"+route), body, &result); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		return mcp.NewToolResultText(formatControlResult(&result)), nil
	}
}

func (c *Client) handleReset(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	vehicleID, _ := arguments(request)["vehicle_id"].(string)

	var response struct {
		Message  string            `json:"message"`
		Snapshot *vehicle.Snapshot `json:"snapshot"`
	}

	if err := c.apiCall(ctx, "POST", vehiclePath(vehicleID, "/reset"), nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("%s\n\n%s", response.Message, formatSnapshot(response.Snapshot))), nil
}

func (c *Client) handleStepHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	vehicleID, _ := args["vehicle_id"].(string)

	query := url.Values{}
	if page, ok := args["page"].(float64); ok {
		query.Set("page", fmt.Sprintf("%d", int(page)))
	}
	if limit, ok := args["limit"].(float64); ok {
		query.Set("limit", fmt.Sprintf("%d", int(limit)))
	}
	if order, _ := args["order"].(string); order != "" {
		query.Set("order", order)
	}

	path := vehiclePath(vehicleID, "/history")
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var history service.HistoryResponse
	if err := c.apiCall(ctx, "GET", path, nil, &history); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(&history)), nil
}

func (c *Client) handleListPresets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var presets []service.PresetInfo
	if err := c.apiCall(ctx, "GET", "/api/presets", nil, &presets); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	b.WriteString("Available Presets:\n\n")
	for _, p := range presets {
		fmt.Fprintf(&b, "• %s\n  %s\n  Class: %s/%s, Max velocity: %.0f m/s\n\n",
			p.PresetID, p.Description, p.MassCategory, p.TireType, p.MaxVelocity)
	}

	return mcp.NewToolResultText(b.String()), nil
}

func (c *Client) handleVehicleClasses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var classes []service.ClassInfo
	if err := c.apiCall(ctx, "GET", "/api/classes", nil, &classes); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatClasses(classes)), nil
}

func (c *Client) handleInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Vehicle Dynamics Simulator - Instructions

COORDINATES:
• Positions are in meters on a flat plane. Heading 0 points along +X.
• Positive steering turns left (counter-clockwise).

CONTROLS (each call advances the simulation by dt seconds):
• apply_throttle: input 0..1, accelerates up to 30 m/s² at full throttle
• apply_brake: input 0..1, decelerates up to 50 m/s² and never reverses
• apply_steering: input -1..1, turns the wheel at 60°/s up to ±45°
• Inputs outside these ranges are rejected and the vehicle is unchanged.

PHYSICS:
• Rolling resistance and aerodynamic drag slow the vehicle every step.
• Without steering input the wheel returns to center at 30°/s while moving.
• Tires warm up when cornering at speed and cool toward 20°C.
• Grip peaks around 90°C and wears down under cornering stress, never below 0.5.
• Rain tires start with less grip and cap top speed at 140 m/s.

CLASSES:
• light, medium, heavy mass categories with slick or rain tires
• Heavier cars have more cornering stiffness and lower top speed on slicks

DRIVING TIPS:
• Use dt <= 0.1 s. Larger steps still run but results become coarse.
• Interleave small throttle and steering steps for smooth arcs.
• Watch tire_grip: hard cornering at speed wears it down.
• Use reset_vehicle to return to the start position.`

	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatSnapshot(snap *vehicle.Snapshot) string {
	if snap == nil {
		return "No snapshot available"
	}
	return fmt.Sprintf("Position: (%.3f, %.3f) | Velocity: %.3f m/s | Steering: %.2f°\nTire grip: %.4f | Tire temperature: %.2f°C",
		snap.PositionX, snap.PositionY, snap.Velocity, snap.SteeringAngleDegrees,
		snap.TireGrip, snap.TireTemperature)
}

func formatVehicleInfo(info *service.VehicleInfo) string {
	return fmt.Sprintf("Vehicle: %s\nClass: %s (preset %s)\nMass: %.1f kg | Max velocity: %.0f m/s\nStart: (%.2f, %.2f) | Heading: %.2f° | Steps: %d\nCreated: %s\n\n%s",
		info.ID, info.Class, info.Preset,
		info.Configuration.Mass, info.Configuration.MaxVelocity,
		info.Start.X, info.Start.Y, info.HeadingDegrees, info.StepCount,
		info.CreatedAt.Format("2006-01-02 15:04:05"),
		formatSnapshot(&info.Snapshot))
}

func formatControlResult(result *service.ControlResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step %d: %s %.3f for %.3fs\n", result.Step.Seq, result.Step.Control, result.Step.Input, result.Step.Dt)
	b.WriteString(formatSnapshot(&result.Snapshot))
	fmt.Fprintf(&b, "\nHeading: %.2f°", result.Step.HeadingDegrees)
	if result.Warning != "" {
		fmt.Fprintf(&b, "\n⚠️ %s", result.Warning)
	}
	return b.String()
}

func formatState(state *service.StateResponse) string {
	s := state.State
	var b strings.Builder
	fmt.Fprintf(&b, "Vehicle: %s (%s)\n", state.VehicleID, vehicle.ClassName(state.Configuration.MassCategory, state.Configuration.TireType))
	fmt.Fprintf(&b, "Position: (%.3f, %.3f) | Heading: %.2f°\n", s.PositionX, s.PositionY, state.HeadingDegrees)
	fmt.Fprintf(&b, "Velocity: %.3f m/s | Acceleration: %.3f m/s²\n", s.Velocity, s.Acceleration)
	fmt.Fprintf(&b, "Steering: %.2f° | Traction: %.4f\n", vehicle.Degrees(s.SteeringAngle), s.Traction)
	fmt.Fprintf(&b, "Tires: grip %.4f (base %.2f), %.2f°C\n", s.Tires.Grip, s.Tires.BaseGrip, s.Tires.Temperature)
	fmt.Fprintf(&b, "Understeer gradient: %.6f", state.UndersteerGradient)
	return b.String()
}

func formatHistory(history *service.HistoryResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Step History (Page %d/%d) - Total: %d\n\n", history.Page, history.TotalPages, history.TotalSteps)

	for _, step := range history.Steps {
		fmt.Fprintf(&b, "%d. %s %.3f dt=%.3f -> (%.2f, %.2f) %.2f m/s, steer %.1f°\n",
			step.Seq, step.Control, step.Input, step.Dt,
			step.Snapshot.PositionX, step.Snapshot.PositionY, step.Snapshot.Velocity,
			step.Snapshot.SteeringAngleDegrees)
	}

	if len(history.Steps) == 0 {
		b.WriteString("(no steps)\n")
	}
	return b.String()
}

func formatClasses(classes []service.ClassInfo) string {
	var b strings.Builder
	b.WriteString("Vehicle Classes:\n\n")
	b.WriteString("class          mass(kg)  grip  Cf      Cr      vmax\n")
	for _, cl := range classes {
		cfg := cl.Configuration
		fmt.Fprintf(&b, "%-14s %8.1f  %4.2f  %6.0f  %6.0f  %4.0f\n",
			cl.Class, cfg.Mass, cfg.BaseTireGrip, cfg.CorneringStiffnessFront, cfg.CorneringStiffnessRear, cfg.MaxVelocity)
	}
	return b.String()
}
