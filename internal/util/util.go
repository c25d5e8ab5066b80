package util

import (
	"vanpower2mqtt/internal/config"

	"go.uber.org/zap"
)

func LoadTestConfig() config.Config {
	return config.Config{
		LogLevel: zap.DebugLevel,
		InverterSerial: config.InverterSerialConfig{
			Device:             "/dev/null",
			BaudRate:           19200,
			ReadTimeoutMillis:  200,
			PollIntervalMillis: 1000,
		},
		OBD: config.OBDConfig{
			Ports:              []string{"/dev/null"},
			BaudRate:           115200,
			PollIntervalMillis: 10000,
		},
		MQTT: config.MQTTConfig{
			Host:             "localhost",
			Port:             1883,
			BaseTopic:        "vanpower",
			HADiscoveryTopic: "homeassistant",
		},
		Arbitration: config.ArbitrationConfig{
			LowCurrentLimit:  7.8,
			HighCurrentLimit: 13.0,
			MinStateOfCharge: 5,
		},
		Port: 8080,
	}
}
