package vedirect

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDeviceModeFrames(t *testing.T) {
	// Known-good vectors captured from the device: the historical first-digit
	// drop must survive any refactor.
	on := Frame{Command: CommandSet, Register: RegisterDeviceMode, Value: DeviceModeOn, HasValue: true}
	off := Frame{Command: CommandSet, Register: RegisterDeviceMode, Value: DeviceModeOff, HasValue: true}

	assert.Equal(t, "80002000249", on.Text())
	assert.Equal(t, "80002000447", off.Text())
}

func TestEncodedFrameSumsToChecksumTarget(t *testing.T) {
	frames := []Frame{
		{Command: CommandPing},
		{Command: CommandGet, Register: RegisterShutdownLowVoltage},
		{Command: CommandSet, Register: RegisterAlarmLowVoltageSet, Value: 1180, HasValue: true},
		{Command: CommandSet, Register: RegisterDeviceMode, Value: 0xDEADBEEF, HasValue: true},
		{Command: CommandAsync, Register: RegisterDeviceMode, Value: 1<<63 + 7, HasValue: true},
	}
	for _, f := range frames {
		var sum byte
		for _, b := range f.Encode() {
			sum += b
		}
		assert.EqualValues(t, checksumTarget, sum, "frame %s", f.Text())
	}
}

func TestRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 2, 0xFF, 0x100, 0xFFFF, 0x10000, 0xFFFFFFFF, 0x100000000, 1<<64 - 1}

	for _, v := range values {
		in := Frame{Command: CommandSet, Register: RegisterShutdownLowVoltage, Value: v, HasValue: true}
		out, err := ParseText(in.Text())
		require.NoError(t, err, "value %d", v)
		assert.Equal(t, in, out, "value %d", v)
	}

	// no value at all
	in := Frame{Command: CommandGet, Register: RegisterDeviceMode}
	out, err := ParseText(in.Text())
	require.NoError(t, err)
	assert.False(t, out.HasValue)
	assert.Equal(t, in, out)
}

func TestValueUsesMinimalWidth(t *testing.T) {
	// 5 header+checksum bytes plus the minimal value encoding, no padding.
	for _, tc := range []struct {
		value uint64
		width int
	}{
		{0, 1},
		{0xFF, 1},
		{0x100, 2},
		{0xFFFF, 2},
		{0x10000, 4},
		{0xFFFFFFFF, 4},
		{0x100000000, 8},
	} {
		f := Frame{Command: CommandSet, Register: RegisterDeviceMode, Value: tc.value, HasValue: true}
		assert.Len(t, f.Encode(), 5+tc.width, "value %d", tc.value)
	}
}

func TestDecodeRejectsBadChecksum(t *testing.T) {
	raw := Frame{Command: CommandSet, Register: RegisterDeviceMode, Value: DeviceModeOn, HasValue: true}.Encode()
	raw[len(raw)-1]++

	_, err := DecodeFrame(raw)
	var cerr *ChecksumError
	require.ErrorAs(t, err, &cerr)
	assert.EqualValues(t, checksumTarget, cerr.Want)
}

func TestDecodeOddValueWidthLeavesValueUnset(t *testing.T) {
	// 3 value bytes is not a decodable width; the frame itself is still
	// accepted when its checksum holds.
	raw := []byte{byte(CommandGet), 0x00, 0x02, 0x00, 0x01, 0x02, 0x03}
	var sum byte
	for _, b := range raw {
		sum += b
	}
	raw = append(raw, checksumTarget-sum)

	f, err := DecodeFrame(raw)
	require.NoError(t, err)
	assert.False(t, f.HasValue)
	assert.Equal(t, CommandGet, f.Command)
	assert.Equal(t, RegisterDeviceMode, f.Register)
}

func TestDecodeShortFrame(t *testing.T) {
	_, err := DecodeFrame([]byte{0x07, 0x00, 0x02})
	var perr *ProtocolViolation
	assert.ErrorAs(t, err, &perr)
}

func TestParseTextRejectsNonHex(t *testing.T) {
	_, err := ParseText("7000ZZ004C")
	var perr *ProtocolViolation
	assert.ErrorAs(t, err, &perr)
}

func TestCheck(t *testing.T) {
	req := Frame{Command: CommandSet, Register: RegisterDeviceMode, Value: DeviceModeOn, HasValue: true}

	assert.NoError(t, Check(req, req))

	bad := req
	bad.Command = CommandGet
	assertViolation(t, Check(bad, req), "command")

	bad = req
	bad.Register = RegisterShutdownLowVoltage
	assertViolation(t, Check(bad, req), "register")

	bad = req
	bad.Value = DeviceModeOff
	assertViolation(t, Check(bad, req), "value")

	bad = req
	bad.HasValue = false
	assertViolation(t, Check(bad, req), "value")

	bad = req
	bad.Flag = FlagReadOnly
	assertViolation(t, Check(bad, req), "flag")
}

func assertViolation(t *testing.T, err error, field string) {
	t.Helper()
	var perr *ProtocolViolation
	require.True(t, errors.As(err, &perr), "expected a protocol violation, got %v", err)
	assert.Equal(t, field, perr.Field)
}
