package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/vehiclesim/sim/vehicle"
)

// MaxHistory is the number of step records kept per vehicle
const MaxHistory = 5000

var timeNow = time.Now

// vehicleServiceImpl implements the VehicleService interface
type vehicleServiceImpl struct {
	sessions SessionManager
	presets  PresetManager
	logger   logrus.FieldLogger
}

// NewVehicleService creates a new vehicle service instance. A nil logger
// falls back to the logrus standard logger.
func NewVehicleService(sessions SessionManager, presets PresetManager, logger logrus.FieldLogger) VehicleService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &vehicleServiceImpl{
		sessions: sessions,
		presets:  presets,
		logger:   logger.WithField("component", "service"),
	}
}

// CreateVehicle creates a new vehicle session
func (s *vehicleServiceImpl) CreateVehicle(ctx context.Context, req CreateVehicleRequest) (*VehicleInfo, error) {
	preset, err := s.resolvePreset(req)
	if err != nil {
		return nil, err
	}

	sess, err := s.sessions.Create(req.ID, preset)
	if err != nil {
		return nil, fmt.Errorf("failed to create vehicle: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"vehicle": sess.ID,
		"preset":  preset.Name,
		"class":   vehicle.ClassName(preset.MassCategory, preset.TireType),
	}).Info("vehicle created")

	return s.info(sess), nil
}

// resolvePreset builds the preset for a create request: the named preset (or
// the default one) with any explicit fields applied on top.
func (s *vehicleServiceImpl) resolvePreset(req CreateVehicleRequest) (*vehicle.Preset, error) {
	var base *vehicle.Preset
	if req.Preset != "" {
		loaded, err := s.presets.LoadPreset(req.Preset)
		if err != nil {
			if errors.Is(err, ErrPresetNotFound) {
				available, listErr := s.presets.ListPresets()
				if listErr == nil && len(available) > 0 {
					ids := lo.Map(available, func(p *PresetInfo, _ int) string { return p.PresetID })
					return nil, fmt.Errorf("%w: '%s'. Available presets: %v", ErrPresetNotFound, req.Preset, ids)
				}
			}
			return nil, fmt.Errorf("failed to load preset %s: %w", req.Preset, err)
		}
		base = loaded
	} else {
		base = s.presets.GetDefault()
	}

	// copy so the cached preset is never modified
	preset := *base
	if req.Preset == "" && (req.MassCategory != "" || req.TireType != "") {
		preset.Name = "custom"
		preset.Description = "Vehicle created from explicit parameters"
	}
	if req.MassCategory != "" {
		preset.MassCategory = req.MassCategory
	}
	if req.TireType != "" {
		preset.TireType = req.TireType
	}
	if req.StartX != nil {
		preset.StartX = *req.StartX
	}
	if req.StartY != nil {
		preset.StartY = *req.StartY
	}

	if err := vehicle.ValidatePreset(&preset); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return &preset, nil
}

// GetVehicle retrieves vehicle information
func (s *vehicleServiceImpl) GetVehicle(ctx context.Context, vehicleID string) (*VehicleInfo, error) {
	sess, err := s.sessions.Get(vehicleID)
	if err != nil {
		return nil, err
	}

	s.sessions.UpdateLastAccessed(vehicleID)
	return s.info(sess), nil
}

// ListVehicles returns all active vehicles
func (s *vehicleServiceImpl) ListVehicles(ctx context.Context) ([]*VehicleInfo, error) {
	return lo.Map(s.sessions.List(), func(sess *Session, _ int) *VehicleInfo {
		return s.info(sess)
	}), nil
}

// DeleteVehicle removes a vehicle
func (s *vehicleServiceImpl) DeleteVehicle(ctx context.Context, vehicleID string) error {
	if err := s.sessions.Delete(vehicleID); err != nil {
		return err
	}
	s.logger.WithField("vehicle", vehicleID).Info("vehicle deleted")
	return nil
}

// ApplyThrottle applies a throttle pass to a vehicle
func (s *vehicleServiceImpl) ApplyThrottle(ctx context.Context, vehicleID string, throttle, dt float64) (*ControlResult, error) {
	return s.control(ctx, vehicleID, vehicle.ControlThrottle, throttle, dt, func(v *vehicle.Vehicle) (vehicle.Snapshot, error) {
		return v.ApplyThrottle(throttle, dt)
	})
}

// ApplyBrake applies a brake pass to a vehicle
func (s *vehicleServiceImpl) ApplyBrake(ctx context.Context, vehicleID string, brake, dt float64) (*ControlResult, error) {
	return s.control(ctx, vehicleID, vehicle.ControlBrake, brake, dt, func(v *vehicle.Vehicle) (vehicle.Snapshot, error) {
		return v.ApplyBrake(brake, dt)
	})
}

// ApplySteering applies a steering pass to a vehicle
func (s *vehicleServiceImpl) ApplySteering(ctx context.Context, vehicleID string, input, dt float64) (*ControlResult, error) {
	return s.control(ctx, vehicleID, vehicle.ControlSteering, input, dt, func(v *vehicle.Vehicle) (vehicle.Snapshot, error) {
		return v.ApplySteering(input, dt)
	})
}

// control runs one control pass under the session lock, records it and
// persists the session.
func (s *vehicleServiceImpl) control(ctx context.Context, vehicleID string, kind vehicle.ControlKind, input, dt float64,
	apply func(v *vehicle.Vehicle) (vehicle.Snapshot, error)) (*ControlResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sess, err := s.sessions.Get(vehicleID)
	if err != nil {
		return nil, err
	}

	sess.Lock()
	snap, err := apply(sess.Vehicle)
	if err != nil {
		sess.Unlock()
		return nil, err
	}

	seq := 1
	if n := len(sess.History); n > 0 {
		seq = sess.History[n-1].Seq + 1
	}
	record := StepRecord{
		Seq:            seq,
		Control:        kind,
		Input:          input,
		Dt:             dt,
		Snapshot:       snap,
		HeadingDegrees: sess.Vehicle.State().HeadingDegrees(),
		Timestamp:      timeNow(),
	}
	sess.History = append(sess.History, record)
	if len(sess.History) > MaxHistory {
		sess.History = sess.History[len(sess.History)-MaxHistory:]
	}
	sess.TouchLocked(record.Timestamp)
	sess.Unlock()

	s.persist(vehicleID)

	result := &ControlResult{
		VehicleID: sess.ID,
		Snapshot:  snap,
		Step:      record,
	}
	if dt > vehicle.RecommendedMaxDt {
		result.Warning = fmt.Sprintf("dt %.3gs exceeds the recommended maximum of %.3gs; integration accuracy degrades", dt, vehicle.RecommendedMaxDt)
		s.logger.WithFields(logrus.Fields{"vehicle": sess.ID, "dt": dt}).Warn("large integration step")
	}
	return result, nil
}

// Reset returns a vehicle to its start position and clears its history
func (s *vehicleServiceImpl) Reset(ctx context.Context, vehicleID string) (*vehicle.Snapshot, error) {
	sess, err := s.sessions.Get(vehicleID)
	if err != nil {
		return nil, err
	}

	sess.Lock()
	snap := sess.Vehicle.Reset()
	sess.History = nil
	sess.TouchLocked(timeNow())
	sess.Unlock()

	s.persist(vehicleID)
	s.logger.WithField("vehicle", vehicleID).Info("vehicle reset")
	return &snap, nil
}

// GetState returns the full state of a vehicle
func (s *vehicleServiceImpl) GetState(ctx context.Context, vehicleID string) (*StateResponse, error) {
	sess, err := s.sessions.Get(vehicleID)
	if err != nil {
		return nil, err
	}

	cfg := sess.Vehicle.Configuration()
	state := sess.Vehicle.State()
	return &StateResponse{
		VehicleID:          sess.ID,
		Configuration:      cfg,
		State:              state,
		Snapshot:           state.Snapshot(),
		HeadingDegrees:     state.HeadingDegrees(),
		UndersteerGradient: vehicle.UndersteerGradient(cfg),
	}, nil
}

// GetStepHistory returns paginated step history
func (s *vehicleServiceImpl) GetStepHistory(ctx context.Context, vehicleID string, opts HistoryOptions) (*HistoryResponse, error) {
	sess, err := s.sessions.Get(vehicleID)
	if err != nil {
		return nil, err
	}

	history := sess.HistorySnapshot()
	total := len(history)

	// Apply defaults
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order == "" {
		opts.Order = "desc"
	}

	totalPages := (total + opts.Limit - 1) / opts.Limit
	if totalPages == 0 {
		totalPages = 1
	}

	start := (opts.Page - 1) * opts.Limit
	end := start + opts.Limit
	if end > total {
		end = total
	}

	var steps []StepRecord
	if opts.Order == "desc" {
		// most recent first
		for i := total - 1 - start; i >= 0 && i >= total-end; i-- {
			steps = append(steps, history[i])
		}
	} else if start < total {
		steps = history[start:end]
	}

	if steps == nil {
		steps = []StepRecord{}
	}

	return &HistoryResponse{
		Steps:       steps,
		TotalSteps:  total,
		Page:        opts.Page,
		PageSize:    opts.Limit,
		TotalPages:  totalPages,
		HasNext:     opts.Page < totalPages,
		HasPrevious: opts.Page > 1,
	}, nil
}

// ListPresets returns all available presets
func (s *vehicleServiceImpl) ListPresets(ctx context.Context) ([]*PresetInfo, error) {
	return s.presets.ListPresets()
}

// LoadPreset loads a specific preset
func (s *vehicleServiceImpl) LoadPreset(ctx context.Context, name string) (*vehicle.Preset, error) {
	return s.presets.LoadPreset(name)
}

// SavePreset validates and saves a preset
func (s *vehicleServiceImpl) SavePreset(ctx context.Context, name string, preset *vehicle.Preset) error {
	if err := vehicle.ValidatePreset(preset); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	return s.presets.SavePreset(name, preset)
}

// VehicleClasses returns the resolved configuration of every class
func (s *vehicleServiceImpl) VehicleClasses(ctx context.Context) ([]*ClassInfo, error) {
	catalog := vehicle.Catalog()
	return lo.Map(catalog.Keys(), func(class string, _ int) *ClassInfo {
		cfg, _ := catalog.Get(class)
		return &ClassInfo{
			Class:              class,
			Configuration:      cfg,
			UndersteerGradient: vehicle.UndersteerGradient(cfg),
		}
	}), nil
}

func (s *vehicleServiceImpl) info(sess *Session) *VehicleInfo {
	cfg := sess.Vehicle.Configuration()
	state := sess.Vehicle.State()
	x, y := sess.Vehicle.StartPosition()

	presetName := ""
	if sess.Preset != nil {
		presetName = sess.Preset.Name
	}

	return &VehicleInfo{
		ID:             sess.ID,
		Preset:         presetName,
		Class:          vehicle.ClassName(cfg.MassCategory, cfg.TireType),
		Configuration:  cfg,
		Start:          Position{X: x, Y: y},
		Snapshot:       state.Snapshot(),
		HeadingDegrees: state.HeadingDegrees(),
		StepCount:      sess.StepCount(),
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessed(),
	}
}

// persist saves a session after a change made under its lock. The store
// snapshots the session itself, so a late save never carries older data
// than the one it replaces.
func (s *vehicleServiceImpl) persist(vehicleID string) {
	if err := s.sessions.Save(vehicleID); err != nil {
		s.logger.WithError(err).WithField("vehicle", vehicleID).Warn("failed to persist vehicle")
	}
}
