// Package propstore provides property bus implementations: an MQTT-backed
// store for production and an in-memory store for tests and local runs.
package propstore

import (
	"fmt"
	"sync"

	"vanpower2mqtt/internal/core/port"
)

// MemoryStore is an in-process property store. It counts writes so tests
// can assert that debounced setters produced no traffic.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]any
	writes int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]any)}
}

func (s *MemoryStore) GetFloat(key string) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch v := s.values[key].(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case nil:
		return 0, fmt.Errorf("property %q not set", key)
	default:
		return 0, fmt.Errorf("property %q is not a number", key)
	}
}

func (s *MemoryStore) GetBool(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch v := s.values[key].(type) {
	case bool:
		return v, nil
	case float64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case nil:
		return false, fmt.Errorf("property %q not set", key)
	default:
		return false, fmt.Errorf("property %q is not a bool", key)
	}
}

func (s *MemoryStore) SetFloat(key string, value float64) error {
	s.set(key, value)
	return nil
}

func (s *MemoryStore) SetBool(key string, value bool) error {
	s.set(key, value)
	return nil
}

func (s *MemoryStore) SetInt(key string, value int) error {
	s.set(key, value)
	return nil
}

func (s *MemoryStore) set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.writes++
}

// Writes reports how many Set calls reached the store.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// ensure interface compliance
var _ port.PropertyStore = (*MemoryStore)(nil)
