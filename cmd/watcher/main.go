package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vanpower2mqtt/internal/adapter/propstore"
	"vanpower2mqtt/internal/adapter/vebus"
	"vanpower2mqtt/internal/config"
	"vanpower2mqtt/internal/core/service"
	"vanpower2mqtt/internal/events"
	"vanpower2mqtt/internal/server"
	"vanpower2mqtt/pkg/vedirect"

	"github.com/lmittmann/tint"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const clientPrefix = "watcher"

func gracefulShutdown(apiServer *http.Server, cancelMonitor context.CancelFunc, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Listen for the interrupt signal.
	<-ctx.Done()

	log.Println("shutting down gracefully, press Ctrl+C again to force")

	cancelMonitor()

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown with error: %v", err)
	}

	log.Println("Server exiting")

	// Notify the main goroutine that the shutdown is complete
	done <- true
}

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

	// inverter serial line
	transport, err := vedirect.OpenSerial(cfg.InverterSerial.Device, cfg.InverterSerial.BaudRate,
		time.Duration(cfg.InverterSerial.ReadTimeoutMillis)*time.Millisecond)
	if err != nil {
		logger.Fatal("could not open inverter serial port", zap.Error(err))
	}
	defer transport.Close()

	telemetry := vedirect.NewTelemetryReader(transport)
	commander := vedirect.NewCommandChannel(transport, logger)

	// property bus
	store := propstore.NewMQTTStore(cfg, propstore.OptsFromConfig(cfg, clientPrefix), clientPrefix, logger)
	if err := store.Connect(); err != nil {
		logger.Fatal("could not connect to MQTT broker", zap.Error(err))
	}
	defer store.Close()

	if cfg.MQTT.HADiscoveryEnable {
		device := events.BridgeDevice(cfg.MQTT.BaseTopic)
		sensors := append(events.SupervisorSensors(device), events.BridgeStateSensor(device))
		if err := store.PublishHADiscovery(clientPrefix, sensors); err != nil {
			logger.Warn("HA discovery publish failed", zap.Error(err))
		}
	}

	arbitrator := &service.PowerArbitrator{
		LowCurrentLimit:  cfg.Arbitration.LowCurrentLimit,
		HighCurrentLimit: cfg.Arbitration.HighCurrentLimit,
		MinStateOfCharge: cfg.Arbitration.MinStateOfCharge,
		Logger:           logger,
	}

	monitor := service.NewMonitor(telemetry, commander, vebus.NewMultiplus(store, logger), store,
		arbitrator, time.Duration(cfg.InverterSerial.PollIntervalMillis)*time.Millisecond, logger)

	monitorCtx, cancelMonitor := context.WithCancel(context.Background())
	go func() {
		_ = monitor.Run(monitorCtx)
	}()

	server := server.NewServer(*cfg, monitor)
	// Create a done channel to signal when the shutdown is complete
	done := make(chan bool, 1)

	// Run graceful shutdown in a separate goroutine
	go gracefulShutdown(server, cancelMonitor, done)

	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		panic(fmt.Sprintf("http server error: %s", err))
	}

	// Wait for the graceful shutdown to complete
	<-done
	log.Println("Graceful shutdown complete.")
}

func initConfig() (*config.Config, error) {

	// alias PORT => VANPOWER_PORT
	if port := os.Getenv("PORT"); port != "" {
		os.Setenv("VANPOWER_PORT", port)
	}

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
	if cfg.InverterSerial.Device == "" {
		return nil, errors.New("config param inverter_serial.device is required")
	}
	if cfg.InverterSerial.PollIntervalMillis < 500 {
		return nil, errors.New("config param inverter_serial.poll_interval_millis should be >= 500")
	}
	if cfg.Arbitration.LowCurrentLimit <= 0 {
		return nil, errors.New("config param arbitration.low_current_limit should be > 0")
	}
	if cfg.Arbitration.HighCurrentLimit <= cfg.Arbitration.LowCurrentLimit {
		return nil, errors.New("config param arbitration.high_current_limit must be > arbitration.low_current_limit")
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
	viper.SetDefault("inverter_serial.baud_rate", 19200)
	viper.SetDefault("inverter_serial.read_timeout_millis", 200)
	viper.SetDefault("inverter_serial.poll_interval_millis", 1000)
	viper.SetDefault("arbitration.low_current_limit", 7.8)
	viper.SetDefault("arbitration.high_current_limit", 13.0)
	viper.SetDefault("arbitration.min_state_of_charge", 5)
	viper.SetDefault("port", 8080)
}

func safePrintConfig(cfg config.Config) {
	cfg.MQTT.Username = "*redacted*"
	cfg.MQTT.Password = "*redacted*"
	slog.Info("Using", "config", cfg)
}
