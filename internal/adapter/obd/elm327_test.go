package obd

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePort scripts adapter replies keyed by command, so each Write loads
// the matching reply into the read buffer.
type fakePort struct {
	script  map[string]string
	written []string
	buf     bytes.Buffer
}

func (p *fakePort) Write(b []byte) (int, error) {
	cmd := string(bytes.TrimSuffix(b, []byte("\r")))
	p.written = append(p.written, cmd)
	if reply, ok := p.script[cmd]; ok {
		p.buf.WriteString(reply)
	}
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	if p.buf.Len() == 0 {
		return 0, fmt.Errorf("fake port: no data")
	}
	return p.buf.Read(b)
}

func (p *fakePort) ResetInputBuffer() error  { p.buf.Reset(); return nil }
func (p *fakePort) ResetOutputBuffer() error { return nil }
func (p *fakePort) Close() error             { return nil }

func newTestConn(t *testing.T, script map[string]string) (*Conn, *fakePort) {
	t.Helper()
	port := &fakePort{script: script}
	conn := NewConn(38400, zap.NewNop())
	conn.dial = func(string, int) (serialPort, error) { return port, nil }
	conn.sleep = func(time.Duration) {}
	require.NoError(t, conn.Connect("/dev/fake0"))
	return conn, port
}

func initScript() map[string]string {
	return map[string]string{
		"ATE0":  "ATE0\rOK\r",
		"ATL0":  "OK\r",
		"ATS0":  "OK\r",
		"ATH0":  "OK\r",
		"ATSP0": "OK\r",
		"ATI":   "ELM327 v1.5\r",
	}
}

func TestConnInit(t *testing.T) {
	conn, port := newTestConn(t, initScript())

	require.NoError(t, conn.Init())
	assert.Equal(t, []string{"ATZ", "ATE0", "ATL0", "ATS0", "ATH0", "ATSP0", "ATI"}, port.written)
}

func TestConnInitRejectsUnknownBanner(t *testing.T) {
	script := initScript()
	script["ATI"] = "STN1110\r"
	conn, _ := newTestConn(t, script)

	err := conn.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized device")
}

func TestConnInitRejectsBadSetupReply(t *testing.T) {
	script := initScript()
	script["ATS0"] = "?\r"
	conn, _ := newTestConn(t, script)

	require.Error(t, conn.Init())
}

func TestExecuteEchoMismatch(t *testing.T) {
	conn, _ := newTestConn(t, map[string]string{"ATE0": "ATD\rOK\r"})

	_, err := conn.Execute("ATE0", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "echo")
}

func TestRPM(t *testing.T) {
	conn, _ := newTestConn(t, map[string]string{"010C": "410C1AF8\r"})

	rpm, err := conn.RPM()
	require.NoError(t, err)
	assert.Equal(t, 1726, rpm)
}

func TestRPMNoData(t *testing.T) {
	conn, _ := newTestConn(t, map[string]string{"010C": "NO DATA\r"})

	rpm, err := conn.RPM()
	require.NoError(t, err)
	assert.Zero(t, rpm)
}

func TestAirConditionerOn(t *testing.T) {
	conn, _ := newTestConn(t, map[string]string{"22099B": "62099B01\r"})

	on, err := conn.AirConditionerOn()
	require.NoError(t, err)
	assert.True(t, on)
}

func TestAirConditionerOff(t *testing.T) {
	conn, _ := newTestConn(t, map[string]string{"22099B": "62099B00\r"})

	on, err := conn.AirConditionerOn()
	require.NoError(t, err)
	assert.False(t, on)
}

func TestAlternatorCurrent(t *testing.T) {
	conn, _ := newTestConn(t, map[string]string{"220551": "6205510483\r"})

	amps, err := conn.AlternatorCurrent()
	require.NoError(t, err)
	assert.InDelta(t, 11.55, amps, 0.001)
}

func TestFuelTankLevel(t *testing.T) {
	conn, _ := newTestConn(t, map[string]string{"012F": "412FFF\r"})

	level, ok, err := conn.FuelTankLevel()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 100, level)
}

func TestFuelTankLevelNoReply(t *testing.T) {
	conn, _ := newTestConn(t, map[string]string{"012F": "NO DATA\r"})

	_, ok, err := conn.FuelTankLevel()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDetectNoPorts(t *testing.T) {
	conn := NewConn(38400, zap.NewNop())

	require.Error(t, conn.Detect([]string{"/dev/nonexistent0", "/dev/nonexistent1"}))
	assert.False(t, conn.Connected())
}
