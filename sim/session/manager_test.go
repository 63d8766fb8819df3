package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/wricardo/mcp-training/vehiclesim/sim/service"
	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

func createTestPreset() *vehicle.Preset {
	return &vehicle.Preset{
		Name:         "test",
		Description:  "Test preset",
		MassCategory: vehicle.Medium,
		TireType:     vehicle.Slick,
		StartX:       1,
		StartY:       2,
	}
}

func TestManager_Create(t *testing.T) {
	manager := NewManager()
	preset := createTestPreset()

	t.Run("create with custom ID", func(t *testing.T) {
		session, err := manager.Create("test-session", preset)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if session.ID != "test-session" {
			t.Errorf("Expected session ID 'test-session', got '%s'", session.ID)
		}
		if session.Vehicle == nil {
			t.Fatal("Expected vehicle to be initialized")
		}
		x, y := session.Vehicle.StartPosition()
		if x != 1 || y != 2 {
			t.Errorf("Expected start (1,2), got (%v,%v)", x, y)
		}
	})

	t.Run("create with auto-generated ID", func(t *testing.T) {
		session, err := manager.Create("", preset)
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if len(session.ID) != 4 {
			t.Errorf("Expected 4-character ID, got '%s'", session.ID)
		}
	})

	t.Run("duplicate ID is rejected case-insensitively", func(t *testing.T) {
		_, err := manager.Create("TEST-SESSION", preset)
		if !errors.Is(err, ErrSessionAlreadyExists) {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})

	t.Run("path-like IDs are rejected", func(t *testing.T) {
		_, err := manager.Create("../escape", preset)
		if !errors.Is(err, ErrInvalidSessionID) {
			t.Errorf("Expected ErrInvalidSessionID, got %v", err)
		}
		if !errors.Is(err, service.ErrInvalidRequest) {
			t.Errorf("Expected error to wrap service.ErrInvalidRequest, got %v", err)
		}
	})

	t.Run("invalid preset", func(t *testing.T) {
		_, err := manager.Create("bad", &vehicle.Preset{Name: "bad", Description: "bad", MassCategory: "tank", TireType: vehicle.Rain})
		if !errors.Is(err, vehicle.ErrInvalidConfiguration) {
			t.Errorf("Expected ErrInvalidConfiguration, got %v", err)
		}
	})
}

func TestManager_Get(t *testing.T) {
	manager := NewManager()
	created, err := manager.Create("Alpha", createTestPreset())
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	for _, id := range []string{"Alpha", "alpha", "ALPHA"} {
		got, err := manager.Get(id)
		if err != nil {
			t.Fatalf("Get(%q) failed: %v", id, err)
		}
		if got != created {
			t.Errorf("Get(%q) returned a different session", id)
		}
	}

	_, err = manager.Get("missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
	if !errors.Is(err, service.ErrVehicleNotFound) {
		t.Errorf("Expected error to wrap service.ErrVehicleNotFound, got %v", err)
	}
}

func TestManager_GetOrCreate(t *testing.T) {
	manager := NewManager()

	first, err := manager.GetOrCreate("default", createTestPreset())
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	second, err := manager.GetOrCreate("default", createTestPreset())
	if err != nil {
		t.Fatalf("GetOrCreate failed: %v", err)
	}
	if first != second {
		t.Error("Expected GetOrCreate to return the existing session")
	}
	if manager.Count() != 1 {
		t.Errorf("Expected 1 session, got %d", manager.Count())
	}
}

func TestManager_Delete(t *testing.T) {
	manager := NewManager()
	manager.Create("gone", createTestPreset())

	if err := manager.Delete("GONE"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if manager.Count() != 0 {
		t.Errorf("Expected 0 sessions, got %d", manager.Count())
	}
	if err := manager.Delete("gone"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound on second delete, got %v", err)
	}
	if err := manager.DeleteFromMemory("gone"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound from DeleteFromMemory, got %v", err)
	}
}

func TestManager_UpdateLastAccessed(t *testing.T) {
	manager := NewManager()
	session, _ := manager.Create("touch", createTestPreset())
	before := session.LastAccessed()
	revision := session.Capture().Revision

	time.Sleep(5 * time.Millisecond)
	if err := manager.UpdateLastAccessed("touch"); err != nil {
		t.Fatalf("UpdateLastAccessed failed: %v", err)
	}
	if !session.LastAccessed().After(before) {
		t.Error("Expected LastAccessedAt to advance")
	}
	if got := session.Capture().Revision; got != revision+1 {
		t.Errorf("Expected revision %d, got %d", revision+1, got)
	}

	if err := manager.UpdateLastAccessed("nope"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}
}

func TestManager_CleanupExpiredSessions(t *testing.T) {
	manager := NewManager()
	stale, _ := manager.Create("stale", createTestPreset())
	manager.Create("fresh", createTestPreset())
	stale.LastAccessedAt = time.Now().Add(-2 * time.Hour)

	removed := manager.CleanupExpiredSessions(time.Hour)
	if removed != 1 {
		t.Errorf("Expected 1 removed session, got %d", removed)
	}
	if _, err := manager.Get("fresh"); err != nil {
		t.Errorf("Fresh session should survive cleanup: %v", err)
	}
	if _, err := manager.Get("stale"); err == nil {
		t.Error("Stale session should have been removed")
	}
}

func TestManager_StepObserver(t *testing.T) {
	manager := NewManager()
	session, _ := manager.Create("watched", createTestPreset())

	var mu sync.Mutex
	var seen []string
	manager.SetStepObserver(func(id string, ev vehicle.StepEvent) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, id+":"+string(ev.Control))
	})

	if _, err := session.Vehicle.ApplyThrottle(0.5, 0.1); err != nil {
		t.Fatalf("ApplyThrottle failed: %v", err)
	}
	if _, err := session.Vehicle.ApplySteering(0.5, 0.1); err != nil {
		t.Fatalf("ApplySteering failed: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	want := "watched:throttle,watched:steering"
	if got := strings.Join(seen, ","); got != want {
		t.Errorf("Expected events %q, got %q", want, got)
	}
}

func TestManager_LogsSteps(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	manager := NewManager()
	manager.SetLogger(logger)
	session, _ := manager.Create("logged", createTestPreset())

	if _, err := session.Vehicle.ApplyBrake(1, 0.1); err != nil {
		t.Fatalf("ApplyBrake failed: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil {
		t.Fatal("Expected a log entry for the step")
	}
	if entry.Message != "vehicle step" {
		t.Errorf("Expected 'vehicle step', got %q", entry.Message)
	}
	if entry.Data["vehicle"] != "logged" {
		t.Errorf("Expected vehicle field 'logged', got %v", entry.Data["vehicle"])
	}
}

func TestManager_ConcurrentAccess(t *testing.T) {
	manager := NewManager()
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session, err := manager.Create("", createTestPreset())
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			if _, err := manager.Get(session.ID); err != nil {
				t.Errorf("Get failed: %v", err)
			}
			manager.List()
		}()
	}
	wg.Wait()

	if manager.Count() != 20 {
		t.Errorf("Expected 20 sessions, got %d", manager.Count())
	}
}

func TestManager_ConcurrentControlsPersistLatestState(t *testing.T) {
	dir := t.TempDir()
	persistence, err := NewFilePersistence(dir)
	if err != nil {
		t.Fatalf("Failed to create file persistence: %v", err)
	}
	logger, _ := test.NewNullLogger()
	manager := NewManagerWithPersistence(persistence)
	manager.SetLogger(logger)
	svc := service.NewVehicleService(manager, nil, logger)
	ctx := context.Background()

	if _, err := manager.Create("busy", createTestPreset()); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, err := svc.ApplyThrottle(ctx, "busy", 0.8, 0.05); err != nil {
					t.Errorf("ApplyThrottle failed: %v", err)
					return
				}
				if _, err := svc.GetVehicle(ctx, "busy"); err != nil {
					t.Errorf("GetVehicle failed: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	live, err := manager.Get("busy")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := live.Capture()

	// a fresh store sees only what reached the disk
	reopened, err := NewFilePersistence(dir)
	if err != nil {
		t.Fatalf("Failed to reopen file persistence: %v", err)
	}
	loaded, err := reopened.Load("busy")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if loaded.Vehicle.State() != want.State {
		t.Errorf("Expected persisted state %+v, got %+v", want.State, loaded.Vehicle.State())
	}
	if len(loaded.History) != 80 {
		t.Fatalf("Expected 80 persisted steps, got %d", len(loaded.History))
	}
	if loaded.History[79].Seq != 80 {
		t.Errorf("Expected newest persisted step 80, got %d", loaded.History[79].Seq)
	}
	if loaded.Revision != want.Revision {
		t.Errorf("Expected persisted revision %d, got %d", want.Revision, loaded.Revision)
	}
	if !loaded.LastAccessedAt.Equal(want.LastAccessedAt) {
		t.Errorf("Expected persisted access time %v, got %v", want.LastAccessedAt, loaded.LastAccessedAt)
	}
}
