package vedirect

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// DeviceState is the inverter run-mode broadcast in the CS telemetry tag.
type DeviceState int

const (
	StateUnknown   DeviceState = -1
	StateOff       DeviceState = 0
	StateLowPower  DeviceState = 1
	StateFault     DeviceState = 2
	StateInverting DeviceState = 9
)

func (s DeviceState) String() string {
	switch s {
	case StateOff:
		return "OFF"
	case StateLowPower:
		return "LOW_POWER"
	case StateFault:
		return "FAULT"
	case StateInverting:
		return "INVERTING"
	}
	return "UNKNOWN"
}

const (
	// telemetryTagCount is the number of tags a complete broadcast frame
	// carries. Frames with any other count never commit.
	telemetryTagCount = 12

	tagDCVoltage       = "V"
	tagACOutputCurrent = "AC_OUT_I"
	tagDeviceState     = "CS"
	tagChecksum        = "Checksum"
)

// TelemetryFrame is one complete, checksum-validated set of broadcast
// tag/value pairs. Tags keep their arrival order.
type TelemetryFrame struct {
	tags  map[string]string
	order []string
}

func newTelemetryFrame() *TelemetryFrame {
	return &TelemetryFrame{tags: make(map[string]string, telemetryTagCount)}
}

func (f *TelemetryFrame) set(key, value string) {
	if _, seen := f.tags[key]; !seen {
		f.order = append(f.order, key)
	}
	f.tags[key] = value
}

// Get returns the raw text value of a tag.
func (f *TelemetryFrame) Get(tag string) (string, bool) {
	v, ok := f.tags[tag]
	return v, ok
}

// Tags lists the frame's tag names in arrival order.
func (f *TelemetryFrame) Tags() []string {
	out := make([]string, len(f.order))
	copy(out, f.order)
	return out
}

func (f *TelemetryFrame) Len() int {
	return len(f.tags)
}

// FrameAssembler reconstructs telemetry frames from the continuous ASCII
// broadcast sharing the command line. Feed it raw bytes as they arrive; a
// frame is committed only when the tag count and the frame checksum both
// validate, so consumers never observe a partial frame. Corruption is
// handled by discarding the frame and resynchronizing at the next frame
// boundary.
type FrameAssembler struct {
	raw       []byte
	line      []byte
	working   *TelemetryFrame
	committed *TelemetryFrame
}

func NewFrameAssembler() *FrameAssembler {
	return &FrameAssembler{working: newTelemetryFrame()}
}

// Feed consumes a chunk of bytes from the wire. It never fails: malformed
// lines are dropped without disturbing the accumulated frame.
func (a *FrameAssembler) Feed(p []byte) {
	for _, b := range p {
		a.feedByte(b)
	}
}

func (a *FrameAssembler) feedByte(b byte) {
	a.raw = append(a.raw, b)
	if b != '\n' {
		a.line = append(a.line, b)
		return
	}
	line := strings.TrimSuffix(string(a.line), "\r")
	a.line = a.line[:0]
	key, value, ok := strings.Cut(line, "\t")
	if !ok || line == "" {
		return
	}
	if key == tagChecksum {
		a.finishFrame()
		return
	}
	a.working.set(key, value)
}

// finishFrame runs the commit check over every byte read since the
// accumulator was last empty, line terminators included, and resets the
// accumulator whether or not the frame was good.
func (a *FrameAssembler) finishFrame() {
	var sum byte
	for _, b := range a.raw {
		sum += b
	}
	if sum == 0 && a.working.Len() == telemetryTagCount {
		a.committed = a.working
	}
	a.working = newTelemetryFrame()
	a.raw = a.raw[:0]
}

// Frame returns the most recently committed frame, nil before the first
// valid frame has been seen.
func (a *FrameAssembler) Frame() *TelemetryFrame {
	return a.committed
}

// ACOutputCurrent returns the inverter's AC output current in amps, rounded
// to two decimals. Zero when no frame was committed yet or the tag is
// absent.
func (a *FrameAssembler) ACOutputCurrent() float64 {
	milliamps, ok := a.tagFloat(tagACOutputCurrent)
	if !ok {
		return 0
	}
	return math.Round(milliamps/10) / 100
}

// DCVoltage returns the battery-side voltage in volts, zero when
// unavailable.
func (a *FrameAssembler) DCVoltage() float64 {
	millivolts, ok := a.tagFloat(tagDCVoltage)
	if !ok {
		return 0
	}
	return millivolts / 1000
}

// DeviceState returns the broadcast run-mode, StateUnknown when no frame
// was committed yet or the tag is absent or unmapped.
func (a *FrameAssembler) DeviceState() DeviceState {
	if a.committed == nil {
		return StateUnknown
	}
	raw, ok := a.committed.Get(tagDeviceState)
	if !ok {
		return StateUnknown
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return StateUnknown
	}
	switch s := DeviceState(n); s {
	case StateOff, StateLowPower, StateFault, StateInverting:
		return s
	}
	return StateUnknown
}

func (a *FrameAssembler) tagFloat(tag string) (float64, bool) {
	if a.committed == nil {
		return 0, false
	}
	raw, ok := a.committed.Get(tag)
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// TelemetryReader owns the broadcast side of the line whenever no command
// exchange is running: it pulls bytes from the transport into an embedded
// assembler. Bytes it consumes are permanently lost to the command channel
// and vice versa; the caller must never run both at once.
type TelemetryReader struct {
	transport Transport
	*FrameAssembler
}

func NewTelemetryReader(transport Transport) *TelemetryReader {
	return &TelemetryReader{
		transport:      transport,
		FrameAssembler: NewFrameAssembler(),
	}
}

// Pump reads broadcast bytes until the deadline. Read timeouts are not
// errors here: no data just means the device is quiet.
func (r *TelemetryReader) Pump(d time.Duration) error {
	deadline := time.Now().Add(d)
	buf := make([]byte, 256)
	for time.Now().Before(deadline) {
		n, err := r.transport.Read(buf)
		if err != nil {
			return &TransportError{Op: "read", Err: err}
		}
		if n == 0 {
			continue
		}
		r.Feed(buf[:n])
	}
	return nil
}
