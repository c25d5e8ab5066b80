package vedirect

import "fmt"

// TransportError reports a failed open, read or write on the serial line,
// including read timeouts. The protocol engine never retries these; the
// caller owns reconnect policy.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("vedirect: transport %s failed", e.Op)
	}
	return fmt.Sprintf("vedirect: transport %s failed: %s", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ChecksumError reports a frame that failed its integrity check. The
// exchange it belongs to is lost; nothing is silently corrected.
type ChecksumError struct {
	Want byte
	Got  byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("vedirect: frame checksum mismatch: bytes sum to 0x%02X, want 0x%02X", e.Got, e.Want)
}

// ProtocolViolation reports a well-formed response that does not answer the
// outstanding request. Kept distinct from ChecksumError so callers can tell
// garbled bytes from a device that disagreed.
type ProtocolViolation struct {
	Field string
	Want  string
	Got   string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("vedirect: protocol violation on %s: want %s, got %s", e.Field, e.Want, e.Got)
}
