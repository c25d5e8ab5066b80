package vedirect

import (
	"io"
	"time"

	"go.bug.st/serial"
)

// Transport is the single half-duplex line shared by the telemetry
// broadcast and command exchanges. Whoever is reading owns every byte on
// the wire for that duration; there is no multiplexing below this level.
type Transport interface {
	io.Reader
	io.Writer
	// DiscardBuffers drops any pending input and output.
	DiscardBuffers() error
	Close() error
}

// SerialTransport drives a real serial port. Reads return (0, nil) when the
// configured timeout expires with no data; callers decide whether that is
// an error.
type SerialTransport struct {
	port serial.Port
}

// OpenSerial opens the dedicated line to the inverter, 8N1 at the given
// baud rate (the device talks 19200), with readTimeout bounding every
// blocking read.
func OpenSerial(device string, baud int, readTimeout time.Duration) (*SerialTransport, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, &TransportError{Op: "open", Err: err}
	}
	if err := port.SetReadTimeout(readTimeout); err != nil {
		port.Close()
		return nil, &TransportError{Op: "open", Err: err}
	}
	return &SerialTransport{port: port}, nil
}

func (t *SerialTransport) Read(p []byte) (int, error) {
	return t.port.Read(p)
}

func (t *SerialTransport) Write(p []byte) (int, error) {
	return t.port.Write(p)
}

func (t *SerialTransport) DiscardBuffers() error {
	if err := t.port.ResetInputBuffer(); err != nil {
		return err
	}
	return t.port.ResetOutputBuffer()
}

func (t *SerialTransport) Close() error {
	return t.port.Close()
}
