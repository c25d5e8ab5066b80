package vedirect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestChannel() (*CommandChannel, *TestTransport) {
	transport := &TestTransport{}
	return NewCommandChannel(transport, zap.NewNop()), transport
}

func TestExecuteExchange(t *testing.T) {
	c, transport := newTestChannel()

	// device answers a get of the device mode register with value 2,
	// preceded by interleaved telemetry that must be discarded
	transport.Input.WriteString("AC_OUT_I\t0\r\nV\t12800\r\n:7000200024A\n")

	req := Frame{Command: CommandGet, Register: RegisterDeviceMode}
	resp, err := c.Execute(req)
	require.NoError(t, err)

	assert.Equal(t, ":70002004C\n", transport.Output.String())
	assert.Equal(t, 1, transport.Discards)
	require.NoError(t, Check(resp, req))
	require.True(t, resp.HasValue)
	assert.EqualValues(t, 2, resp.Value)
}

func TestExecuteTimeoutIsTransportError(t *testing.T) {
	c, transport := newTestChannel()

	// no bytes at all: the read times out
	_, err := c.Execute(Frame{Command: CommandPing})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "read", terr.Op)
	assert.NotEmpty(t, transport.Output.String())
}

func TestExecuteReadFailureIsTransportError(t *testing.T) {
	c, transport := newTestChannel()
	transport.ReadErr = errors.New("device unplugged")

	_, err := c.Execute(Frame{Command: CommandPing})
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.ErrorIs(t, err, transport.ReadErr)
}

func TestExecuteGarbledResponseIsChecksumError(t *testing.T) {
	c, transport := newTestChannel()
	transport.Input.WriteString(":7000200024B\n")

	_, err := c.Execute(Frame{Command: CommandGet, Register: RegisterDeviceMode})
	var cerr *ChecksumError
	assert.ErrorAs(t, err, &cerr)
}

func TestPowerOnWritesDeviceModeAndChecksEcho(t *testing.T) {
	c, transport := newTestChannel()
	transport.Input.WriteString(":80002000249\n")

	require.NoError(t, c.PowerOn())
	assert.Equal(t, ":80002000249\n", transport.Output.String())
}

func TestPowerOffRejectsWrongEcho(t *testing.T) {
	c, transport := newTestChannel()
	// device echoes mode 2 instead of the requested 4
	transport.Input.WriteString(":80002000249\n")

	err := c.PowerOff()
	var perr *ProtocolViolation
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "value", perr.Field)
}

func TestSetSettingScalesToWireUnits(t *testing.T) {
	c, transport := newTestChannel()

	// 11.8 V -> 1180 counts, echoed back by the device
	echo := Frame{
		Command:  CommandSet,
		Register: RegisterAlarmLowVoltageSet,
		Value:    1180,
		HasValue: true,
	}
	transport.Input.WriteString(":" + echo.Text() + "\n")

	require.NoError(t, c.SetSetting(RegisterAlarmLowVoltageSet, 11.8))
	assert.Equal(t, ":"+echo.Text()+"\n", transport.Output.String())
}

func TestGetSettingScalesFromWireUnits(t *testing.T) {
	c, transport := newTestChannel()

	resp := Frame{
		Command:  CommandGet,
		Register: RegisterShutdownLowVoltage,
		Value:    1090,
		HasValue: true,
	}
	transport.Input.WriteString(":" + resp.Text() + "\n")

	v, err := c.GetSetting(RegisterShutdownLowVoltage)
	require.NoError(t, err)
	assert.InDelta(t, 10.9, v, 1e-9)
}

func TestGetSettingSurfacesDeviceFlag(t *testing.T) {
	c, transport := newTestChannel()

	resp := Frame{Command: CommandGet, Register: RegisterShutdownLowVoltage, Flag: FlagNotFound}
	transport.Input.WriteString(":" + resp.Text() + "\n")

	_, err := c.GetSetting(RegisterShutdownLowVoltage)
	var perr *ProtocolViolation
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "flag", perr.Field)
}
