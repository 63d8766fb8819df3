package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/wricardo/mcp-training/vehiclesim/api"
	"github.com/wricardo/mcp-training/vehiclesim/transport/mcp"
	"github.com/wricardo/mcp-training/vehiclesim/transport/websocket"
)

func TestConstants(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}

	expectedAppName := "Vehicle Dynamics Simulator"
	if AppName != expectedAppName {
		t.Errorf("Expected app name %s, got %s", expectedAppName, AppName)
	}
}

func TestFlagDefaults(t *testing.T) {
	if *port <= 0 || *port > 65535 {
		t.Errorf("Invalid default port: %d", *port)
	}

	if *host == "" {
		t.Error("Host should have a default value")
	}

	if *presetDir == "" {
		t.Error("Preset directory should have a default value")
	}

	if *sessionsDir == "" {
		t.Error("Sessions directory should have a default value")
	}
}

func TestEnvOr(t *testing.T) {
	t.Setenv("VEHICLESIM_TEST_DIR", "/tmp/presets")
	if got := envOr("VEHICLESIM_TEST_DIR", "presets"); got != "/tmp/presets" {
		t.Errorf("Expected env value, got %s", got)
	}

	t.Setenv("VEHICLESIM_TEST_DIR", "")
	if got := envOr("VEHICLESIM_TEST_DIR", "presets"); got != "presets" {
		t.Errorf("Expected fallback, got %s", got)
	}
}

func TestConfigureLogging(t *testing.T) {
	defer logrus.SetLevel(logrus.InfoLevel)
	defer logrus.SetReportCaller(false)

	configureLogging(true)
	if logrus.GetLevel() != logrus.DebugLevel {
		t.Errorf("Expected debug level, got %v", logrus.GetLevel())
	}

	configureLogging(false)
	if logrus.GetLevel() != logrus.InfoLevel {
		t.Errorf("Expected info level, got %v", logrus.GetLevel())
	}
}

func TestInitializeServices(t *testing.T) {
	sessionsDir := t.TempDir()

	svc, err := initializeServices("presets", sessionsDir, nil)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	if svc.vehicles == nil || svc.sessions == nil || svc.presets == nil || svc.persistence == nil {
		t.Fatal("Expected all services to be initialized")
	}

	if _, err := svc.sessions.Get(api.LegacyVehicleID); err != nil {
		t.Errorf("Expected default vehicle to exist: %v", err)
	}

	if !svc.persistence.Exists(api.LegacyVehicleID) {
		t.Error("Expected default vehicle to be persisted")
	}
}

func TestInitializeServices_InvalidPresetDir(t *testing.T) {
	_, err := initializeServices("/non/existent/path", t.TempDir(), nil)
	if err == nil {
		t.Error("Expected error for non-existent preset directory")
	}
}

func TestServe_StartupFailureReturnsError(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	hub := websocket.NewHub(logrus.StandardLogger())
	go hub.Run()
	defer hub.Stop()

	err := serve("server", "/non/existent/path", t.TempDir(), hub)
	if err == nil {
		t.Fatal("Expected an error for a non-existent preset directory")
	}
	if !strings.Contains(err.Error(), "failed to initialize services") {
		t.Errorf("Expected an initialization error, got %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.ErrorLevel || entry.Data["operation"] != "startup" {
		t.Errorf("Expected the startup failure to be reported, got %+v", entry)
	}
}

func TestServe_UnknownModeSavesSessions(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()
	sessionsDir := t.TempDir()

	err := serve("bogus", "presets", sessionsDir, nil)
	if err == nil || !strings.Contains(err.Error(), "unknown mode") {
		t.Fatalf("Expected an unknown mode error, got %v", err)
	}
	reported := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && entry.Data["operation"] == "startup" {
			reported = true
		}
	}
	if !reported {
		t.Error("Expected the unknown mode to be reported")
	}

	if _, err := os.Stat(filepath.Join(sessionsDir, strings.ToLower(api.LegacyVehicleID)+".json")); err != nil {
		t.Errorf("Expected sessions to be saved on the way out: %v", err)
	}
}

func TestInitializeServices_ReloadsPersistedSessions(t *testing.T) {
	sessionsDir := t.TempDir()

	first, err := initializeServices("presets", sessionsDir, nil)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}
	sess, err := first.sessions.Create("keeper", first.presets.GetDefault())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if _, err := sess.Vehicle.ApplyThrottle(1, 0.1); err != nil {
		t.Fatalf("Throttle failed: %v", err)
	}
	if err := first.sessions.SaveAllSessions(); err != nil {
		t.Fatalf("SaveAllSessions failed: %v", err)
	}

	second, err := initializeServices("presets", sessionsDir, nil)
	if err != nil {
		t.Fatalf("Failed to re-initialize services: %v", err)
	}
	reloaded, err := second.sessions.Get("keeper")
	if err != nil {
		t.Fatalf("Expected persisted session to reload: %v", err)
	}
	if reloaded.Vehicle.Snapshot().Velocity <= 0 {
		t.Error("Expected reloaded vehicle to keep its velocity")
	}
}

func TestSyncWithFilesystem(t *testing.T) {
	sessionsDir := t.TempDir()
	svc, err := initializeServices("presets", sessionsDir, nil)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	if _, err := svc.sessions.Create("orphan", svc.presets.GetDefault()); err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	if pruned := syncWithFilesystem(svc.sessions, svc.persistence); pruned != 0 {
		t.Errorf("Expected nothing to prune, got %d", pruned)
	}

	files, _ := filepath.Glob(filepath.Join(sessionsDir, "orphan*"))
	if len(files) == 0 {
		t.Fatal("Expected a session file for orphan")
	}
	for _, f := range files {
		os.Remove(f)
	}

	if pruned := syncWithFilesystem(svc.sessions, svc.persistence); pruned != 1 {
		t.Errorf("Expected 1 pruned session, got %d", pruned)
	}
	if svc.sessions.Count() != 1 {
		t.Errorf("Expected only the default vehicle to remain, got %d", svc.sessions.Count())
	}
}

func TestRouter_MCPEndpoint(t *testing.T) {
	hub := websocket.NewHub(logrus.StandardLogger())
	go hub.Run()
	defer hub.Stop()

	svc, err := initializeServices("presets", t.TempDir(), hub)
	if err != nil {
		t.Fatalf("Failed to initialize services: %v", err)
	}

	apiServer := api.NewServer(svc.vehicles, hub, logrus.StandardLogger())
	mcpClient := mcp.NewClient("http://127.0.0.1:1")
	router := newRouter(apiServer, mcpClient)

	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405 for GET /mcp, got %d", rec.Code)
	}

	body := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	req = httptest.NewRequest(http.MethodPost, "/mcp", bytes.NewReader(body))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "apply_throttle") {
		t.Errorf("Expected tools list to include apply_throttle, got %s", rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected health 200, got %d", rec.Code)
	}

	var health map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
}
