package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kden/esp32-sunlight-sensor-sub000/internal/buffer"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/channel"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/config"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/delivery"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/models"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/network"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/power"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/sensor"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/storage"
	"github.com/kden/esp32-sunlight-sensor-sub000/internal/timesync"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// batterySupply is the kernel power-supply name checked for battery
// presence.
const batterySupply = "BAT0"

func main() {
	configPath := flag.String("config", "configs/sensor.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		bootLogger := zerolog.New(os.Stderr)
		bootLogger.Fatal().Err(err).Msg("Failed to load config")
	}

	logger := newLogger(cfg.Logging)
	logger.Info().Str("version", version).Str("config", cfg.String()).Msg("Starting sensor unit")

	if err := run(cfg, logger); err != nil && err != context.Canceled {
		logger.Fatal().Err(err).Msg("Sensor unit exited with error")
	}
	logger.Info().Msg("Sensor unit stopped")
}

// newLogger builds the process logger from config.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.With().Timestamp().Logger().Level(level)
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	info := models.NewSensorInfo(cfg.Sensor.ID, cfg.Sensor.SetID, version)

	kv, err := storage.NewSQLiteKV(cfg.Storage.Path, logger.With().Str("component", "storage").Logger())
	if err != nil {
		return err
	}
	defer kv.Close()

	overflow := storage.NewOverflowStore(kv, cfg.Storage.MaxBatches,
		logger.With().Str("component", "overflow").Logger())
	if n, err := overflow.Count(); err == nil && n > 0 {
		logger.Info().Int("readings", n).Msg("Found stored readings from previous session")
	}

	battery := power.NewSysfsBattery(batterySupply)
	powerCtrl, err := power.NewController(battery, kv,
		cfg.Power.Timezone, cfg.Power.NightStartHour, cfg.Power.NightEndHour,
		cfg.Power.CheckInterval, logger.With().Str("component", "power").Logger())
	if err != nil {
		return err
	}
	wakeReason := powerCtrl.CheckWakeupReason(time.Now())
	logger.Info().Str("wake_reason", wakeReason.String()).Msg("Boot reason determined")

	clock := timesync.NewAuthority(
		timesync.NewNTPProvider(cfg.TimeSync.Server),
		cfg.TimeSync.MaxAttempts, cfg.TimeSync.RetryDelay,
		logger.With().Str("component", "timesync").Logger())

	link, err := network.NewManager(cfg.Server.URL,
		cfg.Server.ConnectAttempts, cfg.Server.ConnectDelay,
		logger.With().Str("component", "network").Logger())
	if err != nil {
		return err
	}

	ch := newChannel(cfg, logger)
	if closer, ok := ch.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	buf := buffer.New(cfg.BufferCapacity(), logger.With().Str("component", "buffer").Logger())

	engine := delivery.NewEngine(buf, overflow, clock, link, ch, info,
		delivery.Config{
			ChunkSize:      cfg.Delivery.ChunkSize,
			MaxLoad:        cfg.Storage.MaxBatches * cfg.BufferCapacity(),
			ResyncInterval: cfg.TimeSync.ResyncInterval,
			LowPower:       cfg.LowPower(),
		},
		delivery.RetryPolicy{
			MaxAttempts: cfg.Delivery.MaxAttempts,
			Delay:       cfg.Delivery.RetryDelay,
			Sleep:       time.Sleep,
		},
		logger.With().Str("component", "delivery").Logger())

	reporter := delivery.NewStatusReporter(ch, clock, info, wakeReason,
		logger.With().Str("component", "status").Logger())

	reportBoot(cfg, link, clock, reporter, battery, logger)

	// Producer task: periodic sampling into the shared buffer.
	light := sensor.NewSimulatedLight(0)
	reader := sensor.NewReader(light, buf, clock, cfg.Sensor.SampleInterval,
		logger.With().Str("component", "sensor").Logger())
	defer reader.Close()
	go func() {
		if err := reader.Start(ctx); err != nil && err != context.Canceled {
			logger.Error().Err(err).Msg("Sensor reader stopped")
		}
	}()

	// Sender task: one send cycle per interval, gated by the power
	// controller's sleep decision.
	return senderLoop(ctx, cfg, engine, powerCtrl, clock, logger)
}

// reportBoot sends the boot status and battery report once the link is
// up. Failures here are logged and otherwise ignored; telemetry never
// depends on status delivery.
func reportBoot(cfg *config.Config, link network.Connectivity, clock *timesync.Authority, reporter *delivery.StatusReporter, battery power.Battery, logger zerolog.Logger) {
	if !link.Connect() {
		logger.Warn().Msg("No network at boot, skipping boot status")
		return
	}
	if !clock.IsValid() {
		clock.Sync()
	}
	reporter.Report("online")
	reporter.ReportBattery(battery)
	if cfg.LowPower() {
		link.Disconnect()
	}
}

// senderLoop wakes on the send interval, asks the power controller
// whether to run, and either sleeps for the night check interval or
// runs a send cycle.
func senderLoop(ctx context.Context, cfg *config.Config, engine *delivery.Engine, powerCtrl *power.Controller, clock *timesync.Authority, logger zerolog.Logger) error {
	ticker := time.NewTicker(cfg.Delivery.SendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			now := clock.Now()

			if decision := powerCtrl.ShouldSleep(now); decision.Sleep {
				if err := powerCtrl.PlanWake(now.Add(decision.Duration)); err != nil {
					logger.Warn().Err(err).Msg("Failed to record planned wake")
				}
				logger.Info().Dur("duration", decision.Duration).Msg("Entering night sleep")
				if !sleepCtx(ctx, decision.Duration) {
					return ctx.Err()
				}
				continue
			}

			outcome := engine.RunSendCycle(now)
			logger.Info().Str("outcome", outcome.String()).Msg("Send cycle completed")
		}
	}
}

// sleepCtx sleeps for d unless the context ends first; reports whether
// the full sleep elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// newChannel selects the transport from the collector URL scheme.
func newChannel(cfg *config.Config, logger zerolog.Logger) channel.Channel {
	chLogger := logger.With().Str("component", "channel").Logger()
	if strings.HasPrefix(cfg.Server.URL, "ws://") || strings.HasPrefix(cfg.Server.URL, "wss://") {
		return channel.NewWSChannel(cfg.Server.URL, cfg.Server.AuthToken,
			cfg.Server.RequestTimeout, chLogger)
	}
	return channel.NewHTTPChannel(cfg.Server.URL, cfg.Server.AuthToken,
		cfg.Server.RequestTimeout, chLogger)
}
