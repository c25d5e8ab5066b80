package vedirect

import (
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"
)

var errReadTimeout = errors.New("timed out waiting for data")

// maxScanBytes bounds how much interleaved broadcast traffic Execute will
// discard while waiting for the response marker.
const maxScanBytes = 1024

// CommandChannel serializes exclusive request/response exchanges over the
// shared line. While an exchange is in flight it owns every byte on the
// wire; interleaved telemetry bytes are discarded and lost to the frame
// assembler.
type CommandChannel struct {
	transport Transport
	logger    *zap.Logger
}

func NewCommandChannel(transport Transport, logger *zap.Logger) *CommandChannel {
	return &CommandChannel{
		transport: transport,
		logger:    logger.With(zap.String("component", "command_channel")),
	}
}

// Execute runs one exchange: buffered I/O is dropped, the request goes out
// as a ':'-framed hex line, everything up to the next ':' marker is
// discarded, and the line after it is decoded as the response. A timeout
// with no data is a transport error and is never retried here.
func (c *CommandChannel) Execute(req Frame) (Frame, error) {
	if err := c.transport.DiscardBuffers(); err != nil {
		return Frame{}, &TransportError{Op: "discard", Err: err}
	}
	line := ":" + req.Text() + "\n"
	n, err := c.transport.Write([]byte(line))
	if err != nil {
		return Frame{}, &TransportError{Op: "write", Err: err}
	}
	if n < len(line) {
		return Frame{}, &TransportError{Op: "write", Err: fmt.Errorf("short write: %d of %d bytes", n, len(line))}
	}
	if err := c.skipToMarker(); err != nil {
		return Frame{}, err
	}
	payload, err := c.readLine()
	if err != nil {
		return Frame{}, err
	}
	resp, err := ParseText(payload)
	if err != nil {
		return Frame{}, err
	}
	c.logger.Debug("exchange", zap.String("request", req.Text()), zap.String("response", payload))
	return resp, nil
}

func (c *CommandChannel) readByte() (byte, error) {
	var buf [1]byte
	n, err := c.transport.Read(buf[:])
	if err != nil {
		return 0, &TransportError{Op: "read", Err: err}
	}
	if n == 0 {
		return 0, &TransportError{Op: "read", Err: errReadTimeout}
	}
	return buf[0], nil
}

func (c *CommandChannel) skipToMarker() error {
	for scanned := 0; scanned < maxScanBytes; scanned++ {
		b, err := c.readByte()
		if err != nil {
			return err
		}
		if b == ':' {
			return nil
		}
	}
	return &TransportError{Op: "read", Err: fmt.Errorf("no response marker within %d bytes", maxScanBytes)}
}

func (c *CommandChannel) readLine() (string, error) {
	var line []byte
	for {
		b, err := c.readByte()
		if err != nil {
			return "", err
		}
		if b == '\n' {
			return string(line), nil
		}
		if b == '\r' {
			continue
		}
		line = append(line, b)
	}
}

// GetSetting reads a register and converts wire counts to engineering units
// through the fixed register table scale.
func (c *CommandChannel) GetSetting(reg Register) (float64, error) {
	req := Frame{Command: CommandGet, Register: reg}
	resp, err := c.Execute(req)
	if err != nil {
		return 0, err
	}
	if err := Check(resp, req); err != nil {
		return 0, err
	}
	if !resp.HasValue {
		return 0, &ProtocolViolation{Field: "value", Want: "a decodable value", Got: "none"}
	}
	return float64(resp.Value) / reg.Scale(), nil
}

// SetSetting writes an engineering-unit value, scaling it to wire counts,
// and validates the echoed confirmation.
func (c *CommandChannel) SetSetting(reg Register, value float64) error {
	req := Frame{
		Command:  CommandSet,
		Register: reg,
		Value:    uint64(math.Round(value * reg.Scale())),
		HasValue: true,
	}
	resp, err := c.Execute(req)
	if err != nil {
		return err
	}
	return Check(resp, req)
}

// Ping verifies the device still answers on the line.
func (c *CommandChannel) Ping() error {
	_, err := c.Execute(Frame{Command: CommandPing})
	return err
}

// ProductID asks the device for its product identifier.
func (c *CommandChannel) ProductID() (uint64, error) {
	resp, err := c.Execute(Frame{Command: CommandProductID})
	if err != nil {
		return 0, err
	}
	if !resp.HasValue {
		return 0, &ProtocolViolation{Field: "value", Want: "a product id", Got: "none"}
	}
	return resp.Value, nil
}

// PowerOn commands the inverter into its inverting mode.
func (c *CommandChannel) PowerOn() error {
	return c.setDeviceMode(DeviceModeOn)
}

// PowerOff shuts the AC output down.
func (c *CommandChannel) PowerOff() error {
	return c.setDeviceMode(DeviceModeOff)
}

func (c *CommandChannel) setDeviceMode(mode uint64) error {
	req := Frame{
		Command:  CommandSet,
		Register: RegisterDeviceMode,
		Value:    mode,
		HasValue: true,
	}
	resp, err := c.Execute(req)
	if err != nil {
		return err
	}
	return Check(resp, req)
}
