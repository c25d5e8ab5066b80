package config

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap/zapcore"
)

type Config struct {
	LogLevel       zapcore.Level
	InverterSerial InverterSerialConfig `mapstructure:"inverter_serial"`
	OBD            OBDConfig            `mapstructure:"obd"`
	MQTT           MQTTConfig           `mapstructure:"mqtt"`

	Arbitration ArbitrationConfig `mapstructure:"arbitration"`
	Port        uint              `mapstructure:"port"`
	HttpLog     bool              `mapstructure:"http_log"`
}

type InverterSerialConfig struct {
	Device             string
	BaudRate           int    `mapstructure:"baud_rate"`
	ReadTimeoutMillis  uint32 `mapstructure:"read_timeout_millis"`
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
}

type OBDConfig struct {
	Ports              []string
	BaudRate           int    `mapstructure:"baud_rate"`
	PollIntervalMillis uint32 `mapstructure:"poll_interval_millis"`
}

type ArbitrationConfig struct {
	LowCurrentLimit  float64 `mapstructure:"low_current_limit"`
	HighCurrentLimit float64 `mapstructure:"high_current_limit"`
	MinStateOfCharge float64 `mapstructure:"min_state_of_charge"`
}

type MQTTConfig struct {
	Host              string
	Port              int
	Username          string
	Password          string
	BaseTopic         string `mapstructure:"base_topic"`
	HADiscoveryEnable bool   `mapstructure:"ha_discovery_enable"`
	HADiscoveryTopic  string `mapstructure:"ha_discovery_topic"`
}

func CheckMQTTTopic(baseTopic string) (string, error) {
	// check and fix base topic
	lowerBaseTopic := strings.ToLower(baseTopic)
	baseTopicRegexp := regexp.MustCompile("^[a-z0-9_]+$")
	matches := baseTopicRegexp.FindAllStringSubmatch(lowerBaseTopic, 1)
	if len(matches) <= 0 {
		return "", errors.New("invalid topic. can only contain letters, numbers and underscores")
	}
	return lowerBaseTopic, nil
}
