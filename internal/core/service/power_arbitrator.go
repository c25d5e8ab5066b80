package service

import (
	"vanpower2mqtt/internal/core/domain"
	"vanpower2mqtt/internal/core/port"
	"vanpower2mqtt/pkg/vedirect"

	"go.uber.org/zap"
)

// PowerArbitrator decides, once per tick, whether the inverter should carry
// the AC bus and how the MultiPlus AC input should be configured. Pure
// decision logic; all I/O happens in the caller.
//
// The LOW/HIGH current limit pinning is the only hysteresis: the limit is
// raised back to HIGH only once the system fully exits backup mode. There
// is no minimum dwell time between switches, so a toggling input can
// re-trigger actuation every tick; accepted, not a bug.
type PowerArbitrator struct {
	LowCurrentLimit  float64
	HighCurrentLimit float64
	// MinStateOfCharge is the battery floor below which backup runs even
	// with the engine off.
	// TODO: the pre-SoC watcher build skipped this override; confirm the 5%
	// floor is the intended production behavior before shipping.
	MinStateOfCharge float64
	Logger           *zap.Logger
}

func (p *PowerArbitrator) Decide(in domain.ArbitrationInputs) domain.ArbitrationActions {
	var actions domain.ArbitrationActions

	// Backup power is wanted while the engine runs without the air
	// conditioner loading the alternator, or whenever the battery is nearly
	// drained.
	needsBackup := (in.EngineRPM > 0 && !in.AirConditionerOn) || in.BatterySoC < p.MinStateOfCharge

	if needsBackup {
		if in.ACOutputCurrent > 0 {
			// Already carrying load: pin the MultiPlus input low so the
			// alternator is not overdrawn, and classify it as a generator.
			if in.Source.CurrentLimit > p.LowCurrentLimit {
				actions.SetCurrentLimit = true
				actions.CurrentLimit = p.LowCurrentLimit
			}
			if in.Source.ACInputType != domain.ACTypeGenerator {
				actions.SetACInputType = true
				actions.ACInputType = domain.ACTypeGenerator
			}
		} else {
			// Not carrying load yet: release the pin before the load arrives.
			if in.Source.CurrentLimit == p.LowCurrentLimit {
				actions.SetCurrentLimit = true
				actions.CurrentLimit = p.HighCurrentLimit
			}
			if in.Source.ACInputType != domain.ACTypeShore {
				actions.SetACInputType = true
				actions.ACInputType = domain.ACTypeShore
			}
		}
		if in.DeviceState != vedirect.StateInverting {
			actions.Power = domain.PowerOn
		}
	} else if in.DeviceState == vedirect.StateInverting {
		actions.Power = domain.PowerOff
		if in.Source.CurrentLimit == p.LowCurrentLimit {
			actions.SetCurrentLimit = true
			actions.CurrentLimit = p.HighCurrentLimit
		}
		// forced back to shore; the settings adapter still debounces
		actions.SetACInputType = true
		actions.ACInputType = domain.ACTypeShore
	}

	if p.Logger != nil && !actions.Empty() {
		p.Logger.Info("arbitration",
			zap.Bool("needs_backup", needsBackup),
			zap.Bool("set_current_limit", actions.SetCurrentLimit),
			zap.Float64("current_limit", actions.CurrentLimit),
			zap.Bool("set_ac_input_type", actions.SetACInputType),
			zap.String("ac_input_type", actions.ACInputType.String()),
			zap.String("power", actions.Power.String()))
	}
	return actions
}

// ensure interface compliance
var _ port.ArbitrationLogic = (*PowerArbitrator)(nil)
