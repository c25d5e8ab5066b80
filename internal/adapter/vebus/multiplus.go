// Package vebus adapts the MultiPlus charger/inverter attributes living on
// the property bus.
package vebus

import (
	"fmt"

	"vanpower2mqtt/internal/core/domain"
	"vanpower2mqtt/internal/core/port"

	"go.uber.org/zap"
)

// Multiplus exposes the MultiPlus AC input settings with a local cache so
// repeated writes of an unchanged value produce no bus traffic. The watcher
// process is the single writer of these attributes; nothing else may
// mutate them between a Refresh and the following Set.
type Multiplus struct {
	store  port.PropertyStore
	logger *zap.Logger

	config domain.PowerSourceConfig
	loaded bool
}

func NewMultiplus(store port.PropertyStore, logger *zap.Logger) *Multiplus {
	return &Multiplus{
		store:  store,
		logger: logger.With(zap.String("component", "multiplus")),
	}
}

// Refresh reloads the cached configuration from the property bus.
func (m *Multiplus) Refresh() error {
	limit, err := m.store.GetFloat(domain.PROP_MULTIPLUS_CURRENT_LIMIT)
	if err != nil {
		return fmt.Errorf("read current limit: %w", err)
	}
	rawType, err := m.store.GetFloat(domain.PROP_MULTIPLUS_AC_TYPE)
	if err != nil {
		return fmt.Errorf("read ac input type: %w", err)
	}
	acType, err := domain.ParseACInputType(int(rawType))
	if err != nil {
		return err
	}
	m.config = domain.PowerSourceConfig{ACInputType: acType, CurrentLimit: limit}
	m.loaded = true
	return nil
}

// Config returns the cached configuration; call Refresh first.
func (m *Multiplus) Config() domain.PowerSourceConfig {
	return m.config
}

// SetCurrentLimit writes the AC input current limit unless the cache
// already holds the same value.
func (m *Multiplus) SetCurrentLimit(amps float64) error {
	if m.loaded && m.config.CurrentLimit == amps {
		return nil
	}
	m.logger.Info("setting current limit", zap.Float64("amps", amps))
	if err := m.store.SetFloat(domain.PROP_MULTIPLUS_CURRENT_LIMIT, amps); err != nil {
		return fmt.Errorf("write current limit: %w", err)
	}
	m.config.CurrentLimit = amps
	return nil
}

// SetACInputType writes the AC input classification unless the cache
// already holds the same value.
func (m *Multiplus) SetACInputType(t domain.ACInputType) error {
	if m.loaded && m.config.ACInputType == t {
		return nil
	}
	m.logger.Info("setting ac input type", zap.String("type", t.String()))
	if err := m.store.SetInt(domain.PROP_MULTIPLUS_AC_TYPE, int(t)); err != nil {
		return fmt.Errorf("write ac input type: %w", err)
	}
	m.config.ACInputType = t
	return nil
}

// ensure interface compliance
var _ port.ACSourceSettings = (*Multiplus)(nil)
