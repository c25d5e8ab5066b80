package vedirect

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Command identifies a HEX protocol request kind. Every command value fits
// in a single nibble; the wire convention drops the leading zero nibble of
// the command byte from the transmitted text.
type Command byte

const (
	CommandEnterBoot  Command = 0x0
	CommandPing       Command = 0x1
	CommandAppVersion Command = 0x3
	CommandProductID  Command = 0x4
	CommandRestart    Command = 0x6
	CommandGet        Command = 0x7
	CommandSet        Command = 0x8
	CommandAsync      Command = 0xA
)

func (c Command) String() string {
	switch c {
	case CommandEnterBoot:
		return "enter_boot"
	case CommandPing:
		return "ping"
	case CommandAppVersion:
		return "app_version"
	case CommandProductID:
		return "product_id"
	case CommandRestart:
		return "restart"
	case CommandGet:
		return "get"
	case CommandSet:
		return "set"
	case CommandAsync:
		return "async"
	}
	return fmt.Sprintf("command(0x%02X)", byte(c))
}

// Flag is the status byte carried by requests and responses.
type Flag byte

const (
	FlagOK             Flag = 0x00
	FlagNotFound       Flag = 0x01
	FlagReadOnly       Flag = 0x02
	FlagParameterError Flag = 0x04
	FlagUnknown        Flag = 0xFF
)

func (f Flag) String() string {
	switch f {
	case FlagOK:
		return "OK"
	case FlagNotFound:
		return "NOT_FOUND"
	case FlagReadOnly:
		return "READ_ONLY"
	case FlagParameterError:
		return "PARAMETER_ERROR"
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(f))
}

// checksumTarget is what all bytes of a valid frame, checksum included, sum
// to modulo 256.
const checksumTarget = 0x55

// Frame is one request or response of the register protocol. Requests and
// responses share the same shape; a response echoes the request's command
// and register.
type Frame struct {
	Command  Command
	Register Register
	Flag     Flag
	Value    uint64
	HasValue bool
}

// valueWidth picks the minimal decodable byte width for v. The protocol
// only round-trips widths of 1, 2, 4 and 8.
func valueWidth(v uint64) int {
	switch {
	case v < 1<<8:
		return 1
	case v < 1<<16:
		return 2
	case v < 1<<32:
		return 4
	}
	return 8
}

// Encode serializes the frame: command byte, register as two little-endian
// bytes, flag byte, the value's minimal little-endian encoding (absent when
// the frame carries no value), then the trailing checksum byte.
func (f Frame) Encode() []byte {
	buf := make([]byte, 0, 13)
	buf = append(buf, byte(f.Command))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(f.Register))
	buf = append(buf, byte(f.Flag))
	if f.HasValue {
		var le [8]byte
		binary.LittleEndian.PutUint64(le[:], f.Value)
		buf = append(buf, le[:valueWidth(f.Value)]...)
	}
	var sum byte
	for _, b := range buf {
		sum += b
	}
	buf = append(buf, checksumTarget-sum)
	return buf
}

// Text renders the transmitted representation: upper-case hex with the very
// first digit dropped. Command bytes carry a zero high nibble, so the drop
// is lossless; the firmware expects it bit-for-bit.
func (f Frame) Text() string {
	return strings.ToUpper(hex.EncodeToString(f.Encode()))[1:]
}

// DecodeFrame parses a raw byte frame, trailing checksum included.
// A trailing value region of 1, 2, 4 or 8 bytes decodes as a little-endian
// unsigned integer; any other length leaves the value unset.
func DecodeFrame(raw []byte) (Frame, error) {
	if len(raw) < 5 {
		return Frame{}, &ProtocolViolation{
			Field: "frame length",
			Want:  "at least 5 bytes",
			Got:   strconv.Itoa(len(raw)) + " bytes",
		}
	}
	var sum byte
	for _, b := range raw {
		sum += b
	}
	if sum != checksumTarget {
		return Frame{}, &ChecksumError{Want: checksumTarget, Got: sum}
	}
	f := Frame{
		Command:  Command(raw[0]),
		Register: Register(binary.LittleEndian.Uint16(raw[1:3])),
		Flag:     Flag(raw[3]),
	}
	value := raw[4 : len(raw)-1]
	switch len(value) {
	case 1:
		f.Value, f.HasValue = uint64(value[0]), true
	case 2:
		f.Value, f.HasValue = uint64(binary.LittleEndian.Uint16(value)), true
	case 4:
		f.Value, f.HasValue = uint64(binary.LittleEndian.Uint32(value)), true
	case 8:
		f.Value, f.HasValue = binary.LittleEndian.Uint64(value), true
	}
	return f, nil
}

// ParseText decodes the transmitted hex representation, re-inserting the
// dropped zero nibble.
func ParseText(s string) (Frame, error) {
	raw, err := hex.DecodeString("0" + s)
	if err != nil {
		return Frame{}, &ProtocolViolation{Field: "payload", Want: "hex digits", Got: strconv.Quote(s)}
	}
	return DecodeFrame(raw)
}

// Check validates a response against the request it is supposed to answer.
func Check(resp, req Frame) error {
	if resp.Command != req.Command {
		return &ProtocolViolation{Field: "command", Want: req.Command.String(), Got: resp.Command.String()}
	}
	if resp.Register != req.Register {
		return &ProtocolViolation{Field: "register", Want: req.Register.String(), Got: resp.Register.String()}
	}
	if req.HasValue && (!resp.HasValue || resp.Value != req.Value) {
		got := "no value"
		if resp.HasValue {
			got = strconv.FormatUint(resp.Value, 10)
		}
		return &ProtocolViolation{Field: "value", Want: strconv.FormatUint(req.Value, 10), Got: got}
	}
	if resp.Flag != FlagOK {
		return &ProtocolViolation{Field: "flag", Want: FlagOK.String(), Got: resp.Flag.String()}
	}
	return nil
}
