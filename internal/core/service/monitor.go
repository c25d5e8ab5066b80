package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vanpower2mqtt/internal/core/domain"
	"vanpower2mqtt/internal/core/port"

	"github.com/carlmjohnson/versioninfo"
	"go.uber.org/zap"
)

// Monitor runs the fixed-period supervision loop: it owns the serial line
// for telemetry between ticks, then snapshots all inputs, runs the
// arbitrator and applies whatever actions it decided. Single-threaded and
// cooperative; ticks never overlap and the context is only checked between
// phases.
type Monitor struct {
	telemetry port.TelemetrySource
	commander port.InverterCommander
	settings  port.ACSourceSettings
	store     port.PropertyStore
	logic     port.ArbitrationLogic
	interval  time.Duration
	logger    *zap.Logger

	mu     sync.Mutex
	status domain.StatusSnapshot
}

func NewMonitor(telemetry port.TelemetrySource, commander port.InverterCommander,
	settings port.ACSourceSettings, store port.PropertyStore,
	logic port.ArbitrationLogic, interval time.Duration, logger *zap.Logger) *Monitor {
	return &Monitor{
		telemetry: telemetry,
		commander: commander,
		settings:  settings,
		store:     store,
		logic:     logic,
		interval:  interval,
		logger:    logger.With(zap.String("component", "monitor")),
	}
}

// Run executes the supervision loop until ctx is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("watcher started, monitoring system", zap.Duration("interval", m.interval))
	for {
		if err := ctx.Err(); err != nil {
			m.logger.Info("watcher stopped")
			return err
		}
		m.pump()
		if err := m.Tick(); err != nil {
			m.logger.Error("tick failed", zap.Error(err))
		}
	}
}

// pump hands the line to the telemetry side until the next tick deadline.
// On a transport failure the rest of the interval is slept away so a dead
// line does not turn the loop hot.
func (m *Monitor) pump() {
	start := time.Now()
	if err := m.telemetry.Pump(m.interval); err != nil {
		m.logger.Warn("telemetry pump failed", zap.Error(err))
		if rest := m.interval - time.Since(start); rest > 0 {
			time.Sleep(rest)
		}
	}
}

// Tick runs one arbitration pass against the latest committed telemetry
// frame and the live property bus signals.
func (m *Monitor) Tick() error {
	inputs, err := m.gatherInputs()
	if err != nil {
		m.setStatus(inputs, domain.ArbitrationActions{}, err)
		return err
	}

	m.logger.Info("tick",
		zap.Float64("rpm", inputs.EngineRPM),
		zap.Bool("air_conditioner_on", inputs.AirConditionerOn),
		zap.Float64("soc", inputs.BatterySoC),
		zap.String("state", inputs.DeviceState.String()),
		zap.Float64("ac_out_current", inputs.ACOutputCurrent),
		zap.Float64("current_limit", inputs.Source.CurrentLimit),
		zap.String("ac_in_type", inputs.Source.ACInputType.String()))

	actions := m.logic.Decide(inputs)
	err = m.apply(actions)
	m.setStatus(inputs, actions, err)
	return err
}

func (m *Monitor) gatherInputs() (domain.ArbitrationInputs, error) {
	var in domain.ArbitrationInputs

	rpm, err := m.store.GetFloat(domain.PROP_VAN_RPM)
	if err != nil {
		return in, fmt.Errorf("engine rpm: %w", err)
	}
	acOn, err := m.store.GetBool(domain.PROP_VAN_AIR_CONDITIONER_ON)
	if err != nil {
		return in, fmt.Errorf("air conditioner state: %w", err)
	}
	soc, err := m.store.GetFloat(domain.PROP_BATTERY_SOC)
	if err != nil {
		return in, fmt.Errorf("battery soc: %w", err)
	}
	if err := m.settings.Refresh(); err != nil {
		return in, fmt.Errorf("ac source settings: %w", err)
	}

	in = domain.ArbitrationInputs{
		EngineRPM:        rpm,
		AirConditionerOn: acOn,
		BatterySoC:       soc,
		ACOutputCurrent:  m.telemetry.ACOutputCurrent(),
		DeviceState:      m.telemetry.DeviceState(),
		Source:           m.settings.Config(),
	}
	return in, nil
}

// apply issues the decided actions. A power-off is sent before the AC
// source is reconfigured, mirroring the order the hardware expects; a
// power-on follows the reconfiguration.
func (m *Monitor) apply(actions domain.ArbitrationActions) error {
	if actions.Power == domain.PowerOff {
		m.logger.Info("turning inverter off")
		if err := m.commander.PowerOff(); err != nil {
			return fmt.Errorf("power off: %w", err)
		}
	}
	if actions.SetCurrentLimit {
		if err := m.settings.SetCurrentLimit(actions.CurrentLimit); err != nil {
			return fmt.Errorf("set current limit: %w", err)
		}
	}
	if actions.SetACInputType {
		if err := m.settings.SetACInputType(actions.ACInputType); err != nil {
			return fmt.Errorf("set ac input type: %w", err)
		}
	}
	if actions.Power == domain.PowerOn {
		m.logger.Info("turning inverter on")
		if err := m.commander.PowerOn(); err != nil {
			return fmt.Errorf("power on: %w", err)
		}
	}
	return nil
}

func (m *Monitor) setStatus(inputs domain.ArbitrationInputs, actions domain.ArbitrationActions, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = domain.StatusSnapshot{
		Inputs:      inputs,
		LastActions: actions,
		LastTick:    time.Now(),
		Version:     versioninfo.Short(),
	}
	if err != nil {
		m.status.LastError = err.Error()
	}
}

// Status returns the last tick's view, for the HTTP endpoint.
func (m *Monitor) Status() domain.StatusSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Healthy reports whether the last tick is recent and succeeded.
func (m *Monitor) Healthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status.LastTick.IsZero() || m.status.LastError != "" {
		return false
	}
	return time.Since(m.status.LastTick) < 3*m.interval
}
