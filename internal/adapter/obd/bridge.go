package obd

import (
	"context"

	"vanpower2mqtt/internal/core/domain"
	"vanpower2mqtt/internal/core/port"

	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/zap"
)

// Bridge is a scheduled job that polls the OBD adapter and publishes the
// vehicle's signals as properties.
type Bridge struct {
	conn   *Conn
	store  port.PropertyStore
	ports  []string
	logger *zap.Logger
}

var _ quartz.Job = (*Bridge)(nil)

func NewBridge(conn *Conn, store port.PropertyStore, ports []string, logger *zap.Logger) *Bridge {
	return &Bridge{
		conn:   conn,
		store:  store,
		ports:  ports,
		logger: logger.With(zap.String("component", "obd_bridge")),
	}
}

func (b *Bridge) Description() string {
	return "obd poll"
}

// Execute runs one poll cycle. When the adapter is gone it rescans the
// candidate ports instead, so a replugged dongle is picked up on the next
// cycle.
func (b *Bridge) Execute(ctx context.Context) error {
	if !b.conn.Connected() {
		if err := b.conn.Detect(b.ports); err != nil {
			b.logger.Warn("adapter not found", zap.Error(err))
			return nil
		}
	}
	if err := b.poll(); err != nil {
		b.logger.Warn("poll failed, dropping connection", zap.Error(err))
		b.conn.Disconnect()
	}
	return nil
}

func (b *Bridge) poll() error {
	rpm, err := b.conn.RPM()
	if err != nil {
		return err
	}
	acOn, err := b.conn.AirConditionerOn()
	if err != nil {
		return err
	}
	alternator, err := b.conn.AlternatorCurrent()
	if err != nil {
		return err
	}
	fuel, fuelOK, err := b.conn.FuelTankLevel()
	if err != nil {
		return err
	}

	b.logger.Debug("poll",
		zap.Int("rpm", rpm),
		zap.Bool("ac_on", acOn),
		zap.Float64("alternator_a", alternator),
		zap.Int("fuel_pct", fuel),
		zap.Bool("fuel_valid", fuelOK))

	if err := b.store.SetFloat(domain.PROP_VAN_RPM, float64(rpm)); err != nil {
		return err
	}
	if err := b.store.SetBool(domain.PROP_VAN_AIR_CONDITIONER_ON, acOn); err != nil {
		return err
	}
	if err := b.store.SetFloat(domain.PROP_VAN_ALTERNATOR_CURRENT, alternator); err != nil {
		return err
	}
	if fuelOK {
		if err := b.store.SetInt(domain.PROP_VAN_FUEL_TANK_LEVEL, fuel); err != nil {
			return err
		}
	}
	return nil
}
