package propstore

import (
	"encoding/json"
	"fmt"

	"vanpower2mqtt/internal/events"
)

type HADiscoveryConfig struct {
	Device            HADiscoveryDevice `json:"device"`
	StateTopic        string            `json:"state_topic"`
	StateClass        string            `json:"state_class,omitempty"`
	DeviceClass       string            `json:"device_class,omitempty"`
	UnitOfMeasurement string            `json:"unit_of_measurement,omitempty"`
	AvTopic           string            `json:"availability_topic,omitempty"`
	EntityCategory    string            `json:"entity_category,omitempty"`
	Name              string            `json:"name"`
	UniqueId          string            `json:"unique_id"`
	Platform          string            `json:"platform"`
	EnabledByDefault  *bool             `json:"enabled_by_default,omitempty"`
	PayloadOn         string            `json:"payload_on,omitempty"`
	PayloadOff        string            `json:"payload_off,omitempty"`
	Icon              string            `json:"icon,omitempty"`
}

type HADiscoveryDevice struct {
	Id           []string `json:"identifiers"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Version      string   `json:"sw_version,omitempty"`
	Model        string   `json:"model,omitempty"`
	Name         string   `json:"name,omitempty"`
	ViaDevice    string   `json:"via_device,omitempty"`
}

func HADiscoverySensorTopic(discoveryTopic string, sensor events.GenericSensor) string {
	return fmt.Sprintf("%s/%s/%s/%s/config", discoveryTopic, sensor.SensorType, sensor.Device.Id, sensor.Id)
}

// GenericSensorToHADiscoveryMessage maps a sensor definition to the
// discovery payload. State topics point at the retained property topics,
// except the bridge state sensor which tracks the availability topic.
func GenericSensorToHADiscoveryMessage(store *MQTTStore, clientPrefix string, sensor events.GenericSensor) HADiscoveryConfig {
	avTopic := bridgeStateTopic(store.cfg.BaseTopic, clientPrefix)
	var topic string
	if sensor.Id == events.SENSOR_ID_BRIDGE_STATE {
		topic = avTopic
	} else {
		topic = store.propertyTopic(sensor.PropertyKey)
	}
	disConfig := HADiscoveryConfig{
		Device:            device(sensor.Device),
		StateTopic:        topic,
		StateClass:        sensor.StateClass,
		DeviceClass:       sensor.DeviceClass,
		UnitOfMeasurement: sensor.UnitOfMeasurement,
		AvTopic:           avTopic,
		EntityCategory:    sensor.EntityCategory,
		Name:              sensor.Name,
		UniqueId:          sensor.UniqueId,
		Icon:              sensor.Icon,
		EnabledByDefault:  sensor.EnabledByDefault,
		Platform:          "mqtt",
	}
	if sensor.Id == events.SENSOR_ID_BRIDGE_STATE {
		disConfig.PayloadOn = MQTT_PAYLOAD_ONLINE
		disConfig.PayloadOff = MQTT_PAYLOAD_OFFLINE
	} else if sensor.SensorType == events.SENSOR_TYPE_BINARY {
		disConfig.PayloadOn = MQTT_PAYLOAD_TRUE
		disConfig.PayloadOff = MQTT_PAYLOAD_FALSE
	}
	return disConfig
}

// PublishHADiscovery announces the given sensors on the discovery topic,
// retained so Home Assistant keeps them across restarts.
func (s *MQTTStore) PublishHADiscovery(clientPrefix string, sensors []events.GenericSensor) error {
	for _, sensor := range sensors {
		payload, err := json.Marshal(GenericSensorToHADiscoveryMessage(s, clientPrefix, sensor))
		if err != nil {
			return err
		}
		topic := HADiscoverySensorTopic(s.cfg.HADiscoveryTopic, sensor)
		token := s.client.Publish(topic, 0, true, payload)
		if !token.WaitTimeout(mqttOpTimeout) {
			return fmt.Errorf("MQTT publish of %s timed out", topic)
		}
		if err := token.Error(); err != nil {
			return err
		}
	}
	return nil
}

func device(d events.Device) HADiscoveryDevice {
	return HADiscoveryDevice{
		Id:           []string{d.Id},
		Manufacturer: d.Manufacturer,
		Version:      d.Version,
		Model:        d.Model,
		Name:         d.Name,
		ViaDevice:    d.ViaDevice,
	}
}
