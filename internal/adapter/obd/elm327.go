// Package obd drives an ELM327-compatible OBD adapter and bridges the
// vehicle's signals onto the property bus.
package obd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	readTimeout  = 250 * time.Millisecond
	settleDelay  = 200 * time.Millisecond
	resetDelay   = 2 * time.Second
	maxReplySize = 256
)

// initCommand is one step of the ELM327 setup sequence. ATE0 still echoes
// itself back because echo is on while it runs.
type initCommand struct {
	cmd  string
	echo bool
}

var initSequence = []initCommand{
	{"ATE0", true},
	{"ATL0", false},
	{"ATS0", false},
	{"ATH0", false},
	{"ATSP0", false},
}

// serialPort is the slice of go.bug.st/serial.Port the adapter needs;
// narrowed so tests can script it.
type serialPort interface {
	io.Reader
	io.Writer
	ResetInputBuffer() error
	ResetOutputBuffer() error
	Close() error
}

// Conn is a connection to an ELM327 adapter on one of the vehicle's USB
// serial ports.
type Conn struct {
	logger *zap.Logger
	baud   int

	dial  func(name string, baud int) (serialPort, error)
	sleep func(time.Duration)

	port serialPort
	name string
}

func NewConn(baud int, logger *zap.Logger) *Conn {
	return &Conn{
		logger: logger.With(zap.String("component", "obd")),
		baud:   baud,
		dial:   dialSerial,
		sleep:  time.Sleep,
	}
}

func dialSerial(name string, baud int) (serialPort, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, err
	}
	return port, nil
}

// Connected reports whether a port is currently open.
func (c *Conn) Connected() bool {
	return c.port != nil
}

// Port returns the device path of the open port, empty when disconnected.
func (c *Conn) Port() string {
	return c.name
}

// Connect opens the given port without probing the adapter; Init does
// that.
func (c *Conn) Connect(name string) error {
	port, err := c.dial(name, c.baud)
	if err != nil {
		c.port = nil
		c.name = ""
		return err
	}
	c.port = port
	c.name = name
	return nil
}

func (c *Conn) Disconnect() {
	if c.port != nil {
		c.port.Close()
	}
	c.port = nil
	c.name = ""
}

func (c *Conn) discard() error {
	if err := c.port.ResetInputBuffer(); err != nil {
		return err
	}
	return c.port.ResetOutputBuffer()
}

// reset issues ATZ and waits out the adapter's reboot banner.
func (c *Conn) reset() error {
	if c.port == nil {
		return fmt.Errorf("obd: not connected")
	}
	if err := c.discard(); err != nil {
		return err
	}
	if _, err := c.port.Write([]byte("ATZ\r")); err != nil {
		return err
	}
	c.sleep(resetDelay)
	return c.discard()
}

// Init resets the adapter, runs the setup sequence and verifies the ATI
// banner identifies an ELM327.
func (c *Conn) Init() error {
	if err := c.reset(); err != nil {
		return err
	}
	for _, step := range initSequence {
		resp, err := c.Execute(step.cmd, step.echo)
		if err != nil {
			return err
		}
		if resp != "OK" {
			return fmt.Errorf("obd: invalid response to %s: %q", step.cmd, resp)
		}
		c.logger.Debug("init", zap.String("cmd", step.cmd), zap.String("resp", resp))
	}
	banner, err := c.Execute("ATI", false)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(banner, "ELM327") {
		return fmt.Errorf("obd: unrecognized device: %q", banner)
	}
	c.logger.Info("adapter initialized", zap.String("banner", banner))
	return nil
}

// Detect scans the candidate ports for a working adapter, leaving the
// connection on the first port that passes Init.
func (c *Conn) Detect(ports []string) error {
	c.logger.Info("scanning for adapter", zap.Strings("ports", ports))
	for _, name := range ports {
		if _, err := os.Stat(name); err != nil {
			c.logger.Debug("no device on port", zap.String("port", name))
			continue
		}
		if err := c.Connect(name); err != nil {
			c.logger.Warn("port failed", zap.String("port", name), zap.Error(err))
			continue
		}
		if err := c.Init(); err != nil {
			c.logger.Warn("port failed", zap.String("port", name), zap.Error(err))
			c.Disconnect()
			continue
		}
		c.logger.Info("adapter found", zap.String("port", name))
		return nil
	}
	return fmt.Errorf("obd: no adapter found on %v", ports)
}

// Execute sends one command and returns the adapter's reply line. When
// echo is set the adapter's echo of the command is consumed and verified
// first.
func (c *Conn) Execute(cmd string, echo bool) (string, error) {
	if c.port == nil {
		return "", fmt.Errorf("obd: not connected")
	}
	if err := c.discard(); err != nil {
		return "", err
	}
	if _, err := c.port.Write([]byte(cmd + "\r")); err != nil {
		return "", err
	}
	c.sleep(settleDelay)
	if echo {
		echoed, err := c.readReply()
		if err != nil {
			return "", err
		}
		if echoed != cmd {
			return "", fmt.Errorf("obd: expected echo of %q, got %q", cmd, echoed)
		}
	}
	return c.readReply()
}

// readReply reads up to the next CR, trimming prompt and whitespace.
func (c *Conn) readReply() (string, error) {
	var reply []byte
	for len(reply) < maxReplySize {
		var buf [1]byte
		n, err := c.port.Read(buf[:])
		if err != nil {
			return "", err
		}
		if n == 0 {
			return "", fmt.Errorf("obd: read timed out")
		}
		if buf[0] == '\r' {
			break
		}
		reply = append(reply, buf[0])
	}
	return strings.Trim(string(reply), "> \t\n"), nil
}

// splitHex cuts a spaceless adapter reply into byte-sized hex chunks.
func splitHex(resp string) []string {
	var out []string
	for i := 0; i < len(resp); i += 2 {
		end := i + 2
		if end > len(resp) {
			end = len(resp)
		}
		out = append(out, resp[i:end])
	}
	return out
}

func hexByte(s string) int {
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0
	}
	return int(v)
}

// RPM queries engine speed (mode 01 PID 0C). Zero when the ECU does not
// answer.
func (c *Conn) RPM() (int, error) {
	resp, err := c.Execute("010C", false)
	if err != nil {
		return 0, err
	}
	b := splitHex(resp)
	if len(b) == 4 && b[0] == "41" && b[1] == "0C" {
		return (hexByte(b[2])*256 + hexByte(b[3])) / 4, nil
	}
	return 0, nil
}

// AirConditionerOn queries the manufacturer-specific compressor state
// (mode 22 PID 099B).
func (c *Conn) AirConditionerOn() (bool, error) {
	resp, err := c.Execute("22099B", false)
	if err != nil {
		return false, err
	}
	b := splitHex(resp)
	if len(b) >= 4 && b[0] == "62" && b[1] == "09" && b[2] == "9B" {
		return hexByte(b[3]) != 0, nil
	}
	return false, nil
}

// AlternatorCurrent queries the manufacturer-specific alternator output
// current in amps (mode 22 PID 0551).
func (c *Conn) AlternatorCurrent() (float64, error) {
	resp, err := c.Execute("220551", false)
	if err != nil {
		return 0, err
	}
	b := splitHex(resp)
	if len(b) >= 5 && b[0] == "62" && b[1] == "05" && b[2] == "51" {
		return float64(hexByte(b[3])*256+hexByte(b[4])) / 100.0, nil
	}
	return 0, nil
}

// FuelTankLevel queries the tank level percent (mode 01 PID 2F). ok is
// false when the ECU gave no valid reply, which some ignitions-off states
// do.
func (c *Conn) FuelTankLevel() (level int, ok bool, err error) {
	resp, err := c.Execute("012F", false)
	if err != nil {
		return 0, false, err
	}
	b := splitHex(resp)
	if len(b) == 3 && b[0] == "41" && b[1] == "2F" {
		return hexByte(b[2]) * 100 / 255, true, nil
	}
	return 0, false, nil
}
