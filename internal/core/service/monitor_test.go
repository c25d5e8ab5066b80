package service

import (
	"testing"
	"time"

	"vanpower2mqtt/internal/adapter/propstore"
	"vanpower2mqtt/internal/adapter/vebus"
	"vanpower2mqtt/internal/core/domain"
	"vanpower2mqtt/pkg/vedirect"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTelemetry struct {
	current float64
	voltage float64
	state   vedirect.DeviceState
	pumps   int
}

func (f *fakeTelemetry) Pump(time.Duration) error          { f.pumps++; return nil }
func (f *fakeTelemetry) ACOutputCurrent() float64          { return f.current }
func (f *fakeTelemetry) DCVoltage() float64                { return f.voltage }
func (f *fakeTelemetry) DeviceState() vedirect.DeviceState { return f.state }

type fakeCommander struct {
	ons, offs int
	err       error
}

func (f *fakeCommander) PowerOn() error  { f.ons++; return f.err }
func (f *fakeCommander) PowerOff() error { f.offs++; return f.err }

type monitorFixture struct {
	monitor   *Monitor
	telemetry *fakeTelemetry
	commander *fakeCommander
	store     *propstore.MemoryStore
}

func newMonitorFixture(t *testing.T, rpm float64, acOn bool, soc float64,
	limit float64, acType domain.ACInputType) *monitorFixture {
	t.Helper()

	store := propstore.NewMemoryStore()
	require.NoError(t, store.SetFloat(domain.PROP_VAN_RPM, rpm))
	require.NoError(t, store.SetBool(domain.PROP_VAN_AIR_CONDITIONER_ON, acOn))
	require.NoError(t, store.SetFloat(domain.PROP_BATTERY_SOC, soc))
	require.NoError(t, store.SetFloat(domain.PROP_MULTIPLUS_CURRENT_LIMIT, limit))
	require.NoError(t, store.SetInt(domain.PROP_MULTIPLUS_AC_TYPE, int(acType)))

	telemetry := &fakeTelemetry{}
	commander := &fakeCommander{}
	logger := zap.NewNop()
	monitor := NewMonitor(telemetry, commander, vebus.NewMultiplus(store, logger), store,
		&PowerArbitrator{LowCurrentLimit: 7.8, HighCurrentLimit: 13.0, MinStateOfCharge: 5, Logger: logger},
		time.Second, logger)

	return &monitorFixture{monitor: monitor, telemetry: telemetry, commander: commander, store: store}
}

func TestTickAppliesBackupActions(t *testing.T) {
	f := newMonitorFixture(t, 850, false, 50, 13.0, domain.ACTypeShore)
	f.telemetry.current = 2
	f.telemetry.state = vedirect.StateOff

	require.NoError(t, f.monitor.Tick())

	limit, err := f.store.GetFloat(domain.PROP_MULTIPLUS_CURRENT_LIMIT)
	require.NoError(t, err)
	assert.InDelta(t, 7.8, limit, 1e-9)

	acType, err := f.store.GetFloat(domain.PROP_MULTIPLUS_AC_TYPE)
	require.NoError(t, err)
	assert.EqualValues(t, domain.ACTypeGenerator, acType)

	assert.Equal(t, 1, f.commander.ons)
	assert.Zero(t, f.commander.offs)
}

func TestTickIsQuietWhenNothingToDo(t *testing.T) {
	f := newMonitorFixture(t, 850, true, 50, 13.0, domain.ACTypeShore)
	f.telemetry.state = vedirect.StateOff

	writes := f.store.Writes()
	require.NoError(t, f.monitor.Tick())

	assert.Equal(t, writes, f.store.Writes(), "no property writes expected")
	assert.Zero(t, f.commander.ons)
	assert.Zero(t, f.commander.offs)
}

func TestTickTurnsInverterOffWhenBackupEnds(t *testing.T) {
	f := newMonitorFixture(t, 0, false, 75, 7.8, domain.ACTypeGenerator)
	f.telemetry.state = vedirect.StateInverting

	require.NoError(t, f.monitor.Tick())

	assert.Equal(t, 1, f.commander.offs)
	assert.Zero(t, f.commander.ons)

	limit, err := f.store.GetFloat(domain.PROP_MULTIPLUS_CURRENT_LIMIT)
	require.NoError(t, err)
	assert.InDelta(t, 13.0, limit, 1e-9)

	acType, err := f.store.GetFloat(domain.PROP_MULTIPLUS_AC_TYPE)
	require.NoError(t, err)
	assert.EqualValues(t, domain.ACTypeShore, acType)
}

func TestTickFailsWhenSignalsAreMissing(t *testing.T) {
	store := propstore.NewMemoryStore()
	logger := zap.NewNop()
	monitor := NewMonitor(&fakeTelemetry{}, &fakeCommander{}, vebus.NewMultiplus(store, logger), store,
		&PowerArbitrator{LowCurrentLimit: 7.8, HighCurrentLimit: 13.0, MinStateOfCharge: 5, Logger: logger},
		time.Second, logger)

	err := monitor.Tick()
	require.Error(t, err)
	assert.False(t, monitor.Healthy())
	assert.NotEmpty(t, monitor.Status().LastError)
}

func TestStatusReflectsLastTick(t *testing.T) {
	f := newMonitorFixture(t, 850, false, 50, 13.0, domain.ACTypeShore)
	f.telemetry.current = 2
	f.telemetry.voltage = 12.8
	f.telemetry.state = vedirect.StateOff

	require.NoError(t, f.monitor.Tick())

	s := f.monitor.Status()
	assert.InDelta(t, 850, s.Inputs.EngineRPM, 1e-9)
	assert.InDelta(t, 2, s.Inputs.ACOutputCurrent, 1e-9)
	assert.Equal(t, domain.PowerOn, s.LastActions.Power)
	assert.Empty(t, s.LastError)
	assert.True(t, f.monitor.Healthy())
}
