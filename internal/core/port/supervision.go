package port

import (
	"time"

	"vanpower2mqtt/internal/core/domain"
	"vanpower2mqtt/pkg/vedirect"
)

// PropertyStore is the external property bus: a generic typed get/set
// key-value surface. Implementations pick the transport and caching.
type PropertyStore interface {
	GetFloat(key string) (float64, error)
	GetBool(key string) (bool, error)
	SetFloat(key string, value float64) error
	SetBool(key string, value bool) error
	SetInt(key string, value int) error
}

// TelemetrySource is the continuously maintained inverter telemetry view.
// Pump must be the only reader of the line while it runs.
type TelemetrySource interface {
	Pump(d time.Duration) error
	ACOutputCurrent() float64
	DCVoltage() float64
	DeviceState() vedirect.DeviceState
}

// InverterCommander issues exclusive command exchanges to the inverter.
type InverterCommander interface {
	PowerOn() error
	PowerOff() error
}

// ACSourceSettings is the debounced view of the MultiPlus AC input
// configuration on the property bus.
type ACSourceSettings interface {
	Refresh() error
	Config() domain.PowerSourceConfig
	SetCurrentLimit(amps float64) error
	SetACInputType(t domain.ACInputType) error
}

// ArbitrationLogic decides the actions for one tick. Pure: no I/O.
type ArbitrationLogic interface {
	Decide(inputs domain.ArbitrationInputs) domain.ArbitrationActions
}
