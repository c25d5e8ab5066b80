package vedirect

import "bytes"

// TestTransport is an in-memory Transport for tests: Input holds the bytes
// the device will send, Output captures everything written. A read with no
// input behaves like a timeout (0 bytes, nil error) unless ReadErr is set.
type TestTransport struct {
	Input    bytes.Buffer
	Output   bytes.Buffer
	Discards int
	ReadErr  error
	WriteErr error
}

func (t *TestTransport) Read(p []byte) (int, error) {
	if t.ReadErr != nil {
		return 0, t.ReadErr
	}
	if t.Input.Len() == 0 {
		return 0, nil
	}
	return t.Input.Read(p)
}

func (t *TestTransport) Write(p []byte) (int, error) {
	if t.WriteErr != nil {
		return 0, t.WriteErr
	}
	return t.Output.Write(p)
}

func (t *TestTransport) DiscardBuffers() error {
	t.Discards++
	return nil
}

func (t *TestTransport) Close() error {
	return nil
}

var _ Transport = (*TestTransport)(nil)
