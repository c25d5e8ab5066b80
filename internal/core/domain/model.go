package domain

import (
	"fmt"
	"time"

	"vanpower2mqtt/pkg/vedirect"
)

// Property bus keys consumed and produced by the watcher and the OBD
// bridge.
const (
	PROP_VAN_RPM                 = "van0/rpm"
	PROP_VAN_AIR_CONDITIONER_ON  = "van0/air_conditioner_on"
	PROP_VAN_ALTERNATOR_CURRENT  = "van0/alternator_current"
	PROP_VAN_FUEL_TANK_LEVEL     = "van0/fuel_tank_level"
	PROP_BATTERY_SOC             = "battery/soc"
	PROP_MULTIPLUS_CURRENT_LIMIT = "multiplus/ac_in_current_limit"
	PROP_MULTIPLUS_AC_TYPE       = "multiplus/ac_in_type"
)

// ACInputType classifies the power source feeding the MultiPlus AC input.
type ACInputType int

const (
	ACTypeDisabled  ACInputType = 0
	ACTypeGrid      ACInputType = 1
	ACTypeGenerator ACInputType = 2
	ACTypeShore     ACInputType = 3
)

func (t ACInputType) String() string {
	switch t {
	case ACTypeDisabled:
		return "DISABLED"
	case ACTypeGrid:
		return "GRID"
	case ACTypeGenerator:
		return "GENERATOR"
	case ACTypeShore:
		return "SHORE"
	}
	return fmt.Sprintf("ACInputType(%d)", int(t))
}

// ParseACInputType maps the property bus numeric value back to the enum.
func ParseACInputType(v int) (ACInputType, error) {
	t := ACInputType(v)
	switch t {
	case ACTypeDisabled, ACTypeGrid, ACTypeGenerator, ACTypeShore:
		return t, nil
	}
	return ACTypeDisabled, fmt.Errorf("invalid ac input type: %d", v)
}

// PowerSourceConfig is the MultiPlus AC input configuration, cached locally
// so that writes of an unchanged value can be suppressed.
type PowerSourceConfig struct {
	ACInputType  ACInputType `json:"ac_input_type"`
	CurrentLimit float64     `json:"current_limit"`
}

// PowerCommand is an on/off actuation decision for the inverter.
type PowerCommand int

const (
	PowerNone PowerCommand = iota
	PowerOn
	PowerOff
)

func (c PowerCommand) String() string {
	switch c {
	case PowerOn:
		return "on"
	case PowerOff:
		return "off"
	}
	return "none"
}

// ArbitrationInputs is everything the arbitrator consumes in one tick:
// live vehicle and battery signals, the inverter's own telemetry, and the
// cached AC source configuration.
type ArbitrationInputs struct {
	EngineRPM        float64              `json:"engine_rpm"`
	AirConditionerOn bool                 `json:"air_conditioner_on"`
	BatterySoC       float64              `json:"battery_soc"`
	ACOutputCurrent  float64              `json:"ac_output_current"`
	DeviceState      vedirect.DeviceState `json:"device_state"`
	Source           PowerSourceConfig    `json:"source"`
}

// ArbitrationActions is the set of desired actuation commands for one
// tick. The zero value means no action.
type ArbitrationActions struct {
	SetCurrentLimit bool         `json:"set_current_limit"`
	CurrentLimit    float64      `json:"current_limit,omitempty"`
	SetACInputType  bool         `json:"set_ac_input_type"`
	ACInputType     ACInputType  `json:"ac_input_type,omitempty"`
	Power           PowerCommand `json:"power"`
}

func (a ArbitrationActions) Empty() bool {
	return !a.SetCurrentLimit && !a.SetACInputType && a.Power == PowerNone
}

// StatusSnapshot is what the HTTP status endpoint reports. State is always
// re-derived live; this is only the last tick's view of it.
type StatusSnapshot struct {
	Inputs      ArbitrationInputs  `json:"inputs"`
	LastActions ArbitrationActions `json:"last_actions"`
	LastTick    time.Time          `json:"last_tick"`
	LastError   string             `json:"last_error,omitempty"`
	Version     string             `json:"version,omitempty"`
}
