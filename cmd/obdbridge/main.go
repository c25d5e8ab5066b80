package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vanpower2mqtt/internal/adapter/obd"
	"vanpower2mqtt/internal/adapter/propstore"
	"vanpower2mqtt/internal/config"
	"vanpower2mqtt/internal/events"

	_ "github.com/joho/godotenv/autoload"
	"github.com/lmittmann/tint"
	"github.com/reugn/go-quartz/quartz"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const clientPrefix = "obdbridge"

func main() {

	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		TimeFormat: time.DateTime,
	})))

	// load and print config
	cfg, err := initConfig()
	if err != nil {
		slog.Error("config errors", "error", err)
		return
	}
	safePrintConfig(*cfg)

	// zap logger
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)

	logger := zap.Must(zapCfg.Build())
	defer logger.Sync()

	// property bus
	store := propstore.NewMQTTStore(cfg, propstore.OptsFromConfig(cfg, clientPrefix), clientPrefix, logger)
	if err := store.Connect(); err != nil {
		logger.Fatal("could not connect to MQTT broker", zap.Error(err))
	}
	defer store.Close()

	if cfg.MQTT.HADiscoveryEnable {
		device := events.BridgeDevice(cfg.MQTT.BaseTopic)
		sensors := append(events.VanSensors(device), events.BridgeStateSensor(device))
		if err := store.PublishHADiscovery(clientPrefix, sensors); err != nil {
			logger.Warn("HA discovery publish failed", zap.Error(err))
		}
	}

	conn := obd.NewConn(cfg.OBD.BaudRate, logger)
	bridge := obd.NewBridge(conn, store, cfg.OBD.Ports, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := quartz.NewStdScheduler()
	sched.Start(ctx)

	jobDetail := quartz.NewJobDetail(bridge, quartz.NewJobKey("obd_poll"))
	trigger := quartz.NewSimpleTrigger(time.Duration(cfg.OBD.PollIntervalMillis) * time.Millisecond)
	if err := sched.ScheduleJob(jobDetail, trigger); err != nil {
		logger.Fatal("could not schedule poll job", zap.Error(err))
	}

	<-ctx.Done()
	log.Println("shutting down gracefully")

	sched.Stop()
	sched.Wait(context.Background())
	conn.Disconnect()
}

func initConfig() (*config.Config, error) {

	setConfigDefaults()

	viper.SetEnvPrefix("vanpower")
	viper.AutomaticEnv()

	// if defined, try to load config from yaml file
	if cfgFile := os.Getenv("CONFIG_FILE"); cfgFile != "" {
		if _, err := os.Stat(cfgFile); err == nil {
			slog.Info("Using config", "file", cfgFile)
			viper.SetConfigFile(cfgFile)

			err = viper.ReadInConfig()
			if err != nil {
				slog.Error("Error reading config file", "error", err)
			}
		}
	}

	var cfg config.Config

	err := viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	cfg.LogLevel = parseLogLevel(viper.GetString("log_level"))

	// check and fix base topic
	baseTopic, err := config.CheckMQTTTopic(cfg.MQTT.BaseTopic)
	if err != nil {
		return nil, errors.New("invalid base topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.BaseTopic = baseTopic

	// check and fix homeassistant discovery topic
	hadBaseTopic, err := config.CheckMQTTTopic(cfg.MQTT.HADiscoveryTopic)
	if err != nil {
		return nil, errors.New("invalid homeassistant discovery topic. can only contain letters, numbers and underscores")
	}
	cfg.MQTT.HADiscoveryTopic = hadBaseTopic

	// check bounds
	if len(cfg.OBD.Ports) == 0 {
		return nil, errors.New("config param obd.ports is required")
	}
	if cfg.OBD.PollIntervalMillis < 1000 {
		return nil, errors.New("config param obd.poll_interval_millis should be >= 1000")
	}

	return &cfg, nil
}

func parseLogLevel(level string) zapcore.Level {
	switch level {
	case "trace":
		return zap.DebugLevel
	case "debug":
		return zap.DebugLevel
	case "info":
		return zap.InfoLevel
	case "error":
		return zap.ErrorLevel
	case "warn":
		return zap.WarnLevel
	case "fatal":
		return zap.FatalLevel
	default:
		return zap.InfoLevel
	}
}

func setConfigDefaults() {
	viper.SetDefault("log_level", "info")
	viper.SetDefault("mqtt.ha_discovery_enable", false)
	viper.SetDefault("mqtt.base_topic", "vanpower")
	viper.SetDefault("mqtt.ha_discovery_topic", "homeassistant")
	viper.SetDefault("obd.ports", []string{"/dev/ttyUSB0", "/dev/ttyUSB1"})
	viper.SetDefault("obd.baud_rate", 115200)
	viper.SetDefault("obd.poll_interval_millis", 10000)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
