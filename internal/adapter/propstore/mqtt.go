package propstore

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"vanpower2mqtt/internal/config"
	"vanpower2mqtt/internal/core/port"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	MQTT_PAYLOAD_ONLINE  = "online"
	MQTT_PAYLOAD_OFFLINE = "offline"
	MQTT_PAYLOAD_TRUE    = "true"
	MQTT_PAYLOAD_FALSE   = "false"

	mqttOpTimeout = 5 * time.Second
)

var ErrPropertyUnavailable = errors.New("property not available")

// MQTTStore is a PropertyStore backed by retained MQTT messages. Reads
// are served from a cache fed by the property subscription, so a key is
// unavailable until the broker has replayed its retained value.
type MQTTStore struct {
	client mqtt.Client
	cfg    config.MQTTConfig
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[string]string
}

var _ port.PropertyStore = (*MQTTStore)(nil)

func OptsFromConfig(cfg *config.Config, clientPrefix string) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.MQTT.Host, cfg.MQTT.Port))
	opts.SetClientID(fmt.Sprintf("%s_%d", clientPrefix, rand.Intn(1000)))
	if cfg.MQTT.Username != "" && cfg.MQTT.Password != "" {
		opts.SetUsername(cfg.MQTT.Username)
		opts.SetPassword(cfg.MQTT.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(MQTT_PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.MQTT.BaseTopic, clientPrefix)
	opts.WillQos = 0

	return opts
}

func NewMQTTStore(cfg *config.Config, opts *mqtt.ClientOptions, clientPrefix string, logger *zap.Logger) *MQTTStore {
	store := &MQTTStore{
		cfg:    cfg.MQTT,
		logger: logger.With(zap.String("component", "mqtt_store")),
		cache:  make(map[string]string),
	}
	opts.OnConnect = func(client mqtt.Client) {
		store.onConnect(client, clientPrefix)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		store.logger.Warn("connection lost", zap.Error(err))
	}
	store.client = mqtt.NewClient(opts)
	return store
}

func (s *MQTTStore) Connect() error {
	token := s.client.Connect()
	if !token.WaitTimeout(mqttOpTimeout) {
		return errors.New("MQTT connect timed out")
	}
	return token.Error()
}

func (s *MQTTStore) Close() {
	s.client.Disconnect(uint(mqttOpTimeout.Milliseconds()))
}

func (s *MQTTStore) onConnect(client mqtt.Client, clientPrefix string) {
	token := client.Subscribe(s.propertyTopic("#"), 1, s.onMessage)
	if !token.WaitTimeout(mqttOpTimeout) || token.Error() != nil {
		s.logger.Error("property subscribe failed", zap.Error(token.Error()))
	}
	client.Publish(bridgeStateTopic(s.cfg.BaseTopic, clientPrefix), 0, true, MQTT_PAYLOAD_ONLINE)
	s.logger.Info("connected", zap.String("base_topic", s.cfg.BaseTopic))
}

func (s *MQTTStore) onMessage(_ mqtt.Client, msg mqtt.Message) {
	prefix := s.propertyTopic("")
	key := strings.TrimPrefix(msg.Topic(), prefix)
	if key == msg.Topic() {
		return
	}
	s.mu.Lock()
	s.cache[key] = string(msg.Payload())
	s.mu.Unlock()
	s.logger.Debug("property update", zap.String("key", key), zap.ByteString("value", msg.Payload()))
}

func (s *MQTTStore) get(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.cache[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrPropertyUnavailable, key)
	}
	return value, nil
}

func (s *MQTTStore) GetFloat(key string) (float64, error) {
	value, err := s.get(key)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(value, 64)
}

func (s *MQTTStore) GetBool(key string) (bool, error) {
	value, err := s.get(key)
	if err != nil {
		return false, err
	}
	switch value {
	case MQTT_PAYLOAD_TRUE, "1", "on":
		return true, nil
	case MQTT_PAYLOAD_FALSE, "0", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool payload for %s: %q", key, value)
}

func (s *MQTTStore) SetFloat(key string, value float64) error {
	return s.publish(key, strconv.FormatFloat(value, 'f', -1, 64))
}

func (s *MQTTStore) SetBool(key string, value bool) error {
	payload := MQTT_PAYLOAD_FALSE
	if value {
		payload = MQTT_PAYLOAD_TRUE
	}
	return s.publish(key, payload)
}

func (s *MQTTStore) SetInt(key string, value int) error {
	return s.publish(key, strconv.Itoa(value))
}

// publish writes the property retained and primes the local cache so a
// read-after-write does not wait for the broker echo.
func (s *MQTTStore) publish(key, payload string) error {
	token := s.client.Publish(s.propertyTopic(key), 1, true, payload)
	if !token.WaitTimeout(mqttOpTimeout) {
		return fmt.Errorf("MQTT publish of %s timed out", key)
	}
	if err := token.Error(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[key] = payload
	s.mu.Unlock()
	return nil
}

func (s *MQTTStore) propertyTopic(key string) string {
	return fmt.Sprintf("%s/property/%s", s.cfg.BaseTopic, key)
}

func bridgeStateTopic(baseTopic, clientPrefix string) string {
	return fmt.Sprintf("%s/%s/state", baseTopic, clientPrefix)
}
