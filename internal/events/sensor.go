package events

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"vanpower2mqtt/internal/core/domain"

	"github.com/carlmjohnson/versioninfo"
)

const (
	SENSOR_ID_BRIDGE_STATE            = "bridge"
	SENSOR_ID_VAN_RPM                 = "van_rpm"
	SENSOR_ID_VAN_AIR_CONDITIONER     = "van_air_conditioner"
	SENSOR_ID_VAN_ALTERNATOR_CURRENT  = "van_alternator_current"
	SENSOR_ID_VAN_FUEL_TANK_LEVEL     = "van_fuel_tank_level"
	SENSOR_ID_BATTERY_SOC             = "battery_soc"
	SENSOR_ID_MULTIPLUS_CURRENT_LIMIT = "multiplus_ac_in_current_limit"
	STATE_CLASS_MEASUREMENT           = "measurement"
	DEVICE_CLASS_BATTERY              = "battery"
	DEVICE_CLASS_CURRENT              = "current"
	DEVICE_CLASS_CONNECTIVITY         = "connectivity"
	ENTITY_CLASS_DIAGNOSTIC           = "diagnostic"
	SENSOR_TYPE_SENSOR                = "sensor"
	SENSOR_TYPE_BINARY                = "binary_sensor"
)

func BridgeDevice(baseTopic string) Device {
	return Device{
		Id:           fmt.Sprintf("vanpower_bridge_%s", md5HashShort(baseTopic)),
		Manufacturer: "berfenger",
		Model:        "Vanpower",
		Version:      versioninfo.Short(),
		Name:         fmt.Sprintf("Vanpower %s", md5HashShort(baseTopic)),
	}
}

func BridgeStateSensor(bridgeDevice Device) GenericSensor {
	return GenericSensor{
		Device:         bridgeDevice,
		Id:             SENSOR_ID_BRIDGE_STATE,
		SensorType:     SENSOR_TYPE_BINARY,
		Name:           "Bridge state",
		DeviceClass:    DEVICE_CLASS_CONNECTIVITY,
		EntityCategory: ENTITY_CLASS_DIAGNOSTIC,
		UniqueId:       fmt.Sprintf("%s_%s", bridgeDevice.Id, SENSOR_ID_BRIDGE_STATE),
	}
}

// VanSensors are the vehicle-side signals published by the OBD bridge.
func VanSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:      bridgeDevice,
		Id:          SENSOR_ID_VAN_RPM,
		SensorType:  SENSOR_TYPE_SENSOR,
		Name:        "Engine RPM",
		StateClass:  STATE_CLASS_MEASUREMENT,
		PropertyKey: domain.PROP_VAN_RPM,
		UniqueId:    fmt.Sprintf("%s_%s", bridgeDevice.Id, SENSOR_ID_VAN_RPM),
		Icon:        "mdi:engine",
	})

	sensors = append(sensors, GenericSensor{
		Device:      bridgeDevice,
		Id:          SENSOR_ID_VAN_AIR_CONDITIONER,
		SensorType:  SENSOR_TYPE_BINARY,
		Name:        "Air conditioner",
		PropertyKey: domain.PROP_VAN_AIR_CONDITIONER_ON,
		UniqueId:    fmt.Sprintf("%s_%s", bridgeDevice.Id, SENSOR_ID_VAN_AIR_CONDITIONER),
		Icon:        "mdi:air-conditioner",
	})

	sensors = append(sensors, GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_VAN_ALTERNATOR_CURRENT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Alternator current",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		PropertyKey:       domain.PROP_VAN_ALTERNATOR_CURRENT,
		UniqueId:          fmt.Sprintf("%s_%s", bridgeDevice.Id, SENSOR_ID_VAN_ALTERNATOR_CURRENT),
	})

	sensors = append(sensors, GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_VAN_FUEL_TANK_LEVEL,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Fuel tank level",
		StateClass:        STATE_CLASS_MEASUREMENT,
		UnitOfMeasurement: "%",
		PropertyKey:       domain.PROP_VAN_FUEL_TANK_LEVEL,
		UniqueId:          fmt.Sprintf("%s_%s", bridgeDevice.Id, SENSOR_ID_VAN_FUEL_TANK_LEVEL),
		Icon:              "mdi:gas-station",
	})

	return sensors
}

// SupervisorSensors are the battery and inverter signals consumed and
// maintained by the watcher.
func SupervisorSensors(bridgeDevice Device) []GenericSensor {

	var sensors []GenericSensor

	sensors = append(sensors, GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_BATTERY_SOC,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "Battery state of charge",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_BATTERY,
		UnitOfMeasurement: "%",
		PropertyKey:       domain.PROP_BATTERY_SOC,
		UniqueId:          fmt.Sprintf("%s_%s", bridgeDevice.Id, SENSOR_ID_BATTERY_SOC),
	})

	sensors = append(sensors, GenericSensor{
		Device:            bridgeDevice,
		Id:                SENSOR_ID_MULTIPLUS_CURRENT_LIMIT,
		SensorType:        SENSOR_TYPE_SENSOR,
		Name:              "AC input current limit",
		StateClass:        STATE_CLASS_MEASUREMENT,
		DeviceClass:       DEVICE_CLASS_CURRENT,
		UnitOfMeasurement: "A",
		PropertyKey:       domain.PROP_MULTIPLUS_CURRENT_LIMIT,
		UniqueId:          fmt.Sprintf("%s_%s", bridgeDevice.Id, SENSOR_ID_MULTIPLUS_CURRENT_LIMIT),
	})

	return sensors
}

func md5HashShort(s string) string {
	hasher := md5.New()
	hasher.Write([]byte(s))
	return hex.EncodeToString(hasher.Sum(nil))[0:8]
}
