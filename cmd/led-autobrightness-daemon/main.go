// Package main provides the entry point for the LED auto-brightness daemon.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lumenled/led-autobrightness-daemon/internal/config"
	"github.com/lumenled/led-autobrightness-daemon/internal/controller"
	"github.com/lumenled/led-autobrightness-daemon/internal/dbus"
	"github.com/lumenled/led-autobrightness-daemon/internal/host"
	"github.com/lumenled/led-autobrightness-daemon/internal/mqtt"
	"github.com/lumenled/led-autobrightness-daemon/internal/pipeline"
	"github.com/lumenled/led-autobrightness-daemon/internal/sensor"
	"github.com/lumenled/led-autobrightness-daemon/internal/settings"
	"github.com/lumenled/led-autobrightness-daemon/internal/udev"
)

var (
	verbose    bool
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "led-autobrightness-daemon",
		Short: "Daemon that adapts LED strip brightness to ambient light",
		Long: `led-autobrightness-daemon drives an addressable LED strip over a serial
link and continuously adapts its brightness to the ambient light level
reported by an I2C lux sensor.

It exposes a D-Bus control service for telemetry and runtime settings and
can optionally bridge state to an MQTT broker.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/led-autobrightness/config.yaml", "Path to the configuration file")
}

func setupLogging(cfg config.LogConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if verbose || cfg.Colors {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func run() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	setupLogging(cfg.Log)

	log.Info().Str("config", configPath).Msg("Starting led-autobrightness-daemon")

	store := settings.NewStore(cfg.Settings)
	if err := store.Load(); err != nil {
		log.Warn().Err(err).Str("path", cfg.Settings).Msg("Failed to load persisted settings, starting with defaults")
	}

	color, err := cfg.LED.BaseColor()
	if err != nil {
		return err
	}

	// The serial LED link. A missing device at startup is tolerated; the
	// udev monitor reattaches it once it appears.
	var sink *pipeline.SerialSink
	if cfg.LED.Device != "" {
		sink = pipeline.NewSerialSink(cfg.LED.Device, cfg.LED.Baud)
		if err := sink.Open(); err != nil {
			log.Warn().Err(err).Str("device", cfg.LED.Device).Msg("LED link unavailable, waiting for hot-plug")
		}
	} else {
		log.Warn().Msg("No LED device configured, frames will be dropped")
	}

	engine := pipeline.New(sinkOrNil(sink), cfg.LED.Count, color)

	var ls sensor.LightSensor
	if cfg.Sensor.Enabled {
		ls = sensor.NewBH1750(cfg.Sensor.Bus, cfg.Sensor.Address)
	} else {
		log.Info().Msg("Ambient light sensor disabled")
	}

	ctrl := controller.New(ls, engine, controller.WithLogger(log.Logger))

	// The control surfaces are created after the loop but referenced by the
	// notifier, so they are declared up front.
	var server *dbus.Server
	var bridge *mqtt.Bridge
	var loop *host.Loop

	loop = host.NewLoop(engine, store, host.WithNotifier(func(mode pipeline.RefreshMode) {
		if server != nil {
			server.EmitStateChanged(loop.Brightness())
		}
		if bridge != nil && mode == pipeline.RefreshState {
			bridge.PublishState()
		}
	}))
	loop.Register(ctrl)

	if err := loop.Initialize(); err != nil {
		return err
	}

	if cfg.DBus.Enabled {
		server = dbus.NewServer(loop)
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start D-Bus server")
		}
	}

	if cfg.MQTT.Enabled {
		bridge = mqtt.NewBridge(cfg.MQTT, loop)
		if err := bridge.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start MQTT bridge (telemetry disabled)")
			bridge = nil
		}
	}

	var monitor *udev.Monitor
	if sink != nil {
		monitor = udev.NewMonitor(cfg.LED.Device, createHotplugHandler(loop, engine, sink))
		monitor.SetRecoveryHandler(createRecoveryHandler(loop, engine, sink))
		if err := monitor.Start(); err != nil {
			log.Error().Err(err).Msg("Failed to start udev monitor (hot-plug detection disabled)")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info().Msg("Daemon running, press Ctrl+C to stop")
	loop.Run(ctx)

	// Cleanup
	log.Info().Msg("Shutting down...")
	if monitor != nil {
		if err := monitor.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop udev monitor")
		}
	}
	if bridge != nil {
		bridge.Stop()
	}
	if server != nil {
		if err := server.Stop(); err != nil {
			log.Error().Err(err).Msg("Failed to stop D-Bus server")
		}
	}
	if err := loop.SaveSettings(); err != nil {
		log.Error().Err(err).Msg("Failed to persist settings")
	}
	if ls != nil {
		if err := ls.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close light sensor")
		}
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close LED link")
		}
	}

	log.Info().Msg("Daemon stopped")
	return nil
}

// sinkOrNil converts a typed nil into a nil interface so the engine's nil
// check works.
func sinkOrNil(s *pipeline.SerialSink) pipeline.Sink {
	if s == nil {
		return nil
	}
	return s
}

// reopenWithRetry attempts to reopen the serial link with linear backoff.
func reopenWithRetry(sink *pipeline.SerialSink, maxRetries int) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			// Linear backoff: 500ms, 1000ms, 1500ms, ...
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			log.Debug().
				Int("attempt", attempt).
				Dur("backoff", backoff).
				Msg("Retrying LED link open")
			time.Sleep(backoff)
		}

		if err := sink.Reopen(); err != nil {
			lastErr = err
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Int("maxRetries", maxRetries+1).
				Msg("LED link open failed")
			continue
		}

		if attempt > 0 {
			log.Info().Int("attempts", attempt+1).Msg("LED link opened after retry")
		}
		return nil
	}
	return lastErr
}

// createHotplugHandler returns an event handler that reattaches or detaches
// the serial LED link as its tty device comes and goes.
func createHotplugHandler(loop *host.Loop, engine *pipeline.Engine, sink *pipeline.SerialSink) udev.EventHandler {
	return func(event udev.Event) {
		switch event.Type {
		case udev.EventAdd:
			// The USB serial adapter needs a moment to settle before the
			// port can be opened.
			time.Sleep(500 * time.Millisecond)
			if err := reopenWithRetry(sink, 3); err != nil {
				log.Error().Err(err).Msg("Failed to reopen LED link after hot-plug (all retries exhausted)")
				return
			}
			loop.Locked(func() {
				engine.AttachSink(sink)
			})
		case udev.EventRemove:
			loop.Locked(func() {
				engine.DetachSink()
			})
			if err := sink.Close(); err != nil {
				log.Debug().Err(err).Msg("Closing removed LED link")
			}
		}
	}
}

// createRecoveryHandler returns a handler for netlink buffer overflow
// recovery. It probes the serial link to recover from missed events.
func createRecoveryHandler(loop *host.Loop, engine *pipeline.Engine, sink *pipeline.SerialSink) udev.RecoveryHandler {
	return func() {
		log.Info().Msg("Probing LED link after netlink buffer overflow")
		if err := sink.Reopen(); err != nil {
			loop.Locked(func() {
				engine.DetachSink()
			})
			log.Warn().Err(err).Msg("LED link not reachable")
			return
		}
		loop.Locked(func() {
			engine.AttachSink(sink)
		})
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("Daemon failed")
		os.Exit(1)
	}
}
