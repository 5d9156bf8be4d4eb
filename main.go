package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/webuinode/cmd"
	"github.com/smazurov/webuinode/internal/api"
	"github.com/smazurov/webuinode/internal/config"
	"github.com/smazurov/webuinode/internal/events"
	"github.com/smazurov/webuinode/internal/logging"
	"github.com/smazurov/webuinode/internal/metrics"
	"github.com/smazurov/webuinode/internal/supervisor"
	"github.com/smazurov/webuinode/internal/systemd"
	"github.com/smazurov/webuinode/internal/updater"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Supervised service settings
	ServiceCommand   string `help:"Service command line" default:"open-webui serve" toml:"service.command" env:"SERVICE_COMMAND"`
	ServiceHost      string `help:"Host the service binds to" default:"127.0.0.1" toml:"service.host" env:"SERVICE_HOST"`
	ServicePort      int    `help:"Port the service binds to" default:"8080" toml:"service.port" env:"SERVICE_PORT"`
	ServiceLogPath   string `help:"Output mirror log file" default:"open-webui.log" toml:"service.log_path" env:"SERVICE_LOG_PATH"`
	ServiceAutostart bool   `help:"Start the service on launch" default:"true" toml:"service.autostart" env:"SERVICE_AUTOSTART"`
	ServiceBufferCap int    `help:"Retained output lines" default:"1000" toml:"service.buffer_cap" env:"SERVICE_BUFFER_CAP"`

	// Timing settings
	StopTimeout    string `help:"Graceful stop timeout" default:"10s" toml:"service.stop_timeout" env:"SERVICE_STOP_TIMEOUT"`
	SettleDelay    string `help:"Delay before the first health probe" default:"500ms" toml:"service.settle_delay" env:"SERVICE_SETTLE_DELAY"`
	HealthInterval string `help:"Delay between health probes" default:"1s" toml:"service.health_interval" env:"SERVICE_HEALTH_INTERVAL"`
	HealthTimeout  string `help:"Overall startup health deadline, 0 for none" default:"0s" toml:"service.health_timeout" env:"SERVICE_HEALTH_TIMEOUT"`
	RestartDelay   string `help:"Pause between stop and start on restart" default:"1s" toml:"service.restart_delay" env:"SERVICE_RESTART_DELAY"`

	// Update settings
	UpdateEnabled    bool   `help:"Enable self-update endpoints" default:"true" toml:"update.enabled" env:"UPDATE_ENABLED"`
	UpdateRepository string `help:"GitHub repository for updates" default:"smazurov/webuinode" toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease bool   `help:"Include prereleases" default:"false" toml:"update.prerelease" env:"UPDATE_PRERELEASE"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Logging settings
	LoggingLevel      string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat     string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSupervisor string `help:"Supervisor logging level" default:"info" toml:"logging.supervisor" env:"LOGGING_SUPERVISOR"`
	LoggingHealth     string `help:"Health monitor logging level" default:"info" toml:"logging.health" env:"LOGGING_HEALTH"`
	LoggingConsole    string `help:"Console renderer logging level" default:"info" toml:"logging.console" env:"LOGGING_CONSOLE"`
	LoggingAPI        string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingUpdater    string `help:"Updater logging level" default:"info" toml:"logging.updater" env:"LOGGING_UPDATER"`
}

func parseDurationOr(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		// Initialize logging system
		loggingConfig := logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"supervisor": opts.LoggingSupervisor,
				"health":     opts.LoggingHealth,
				"console":    opts.LoggingConsole,
				"api":        opts.LoggingAPI,
				"updater":    opts.LoggingUpdater,
			},
		}
		logging.Initialize(loggingConfig)

		logger := logging.GetLogger("main")

		// Create event bus for in-process event handling
		eventBus := events.New()

		// Forward every log entry to SSE subscribers
		logging.SetLogCallback(func(entry logging.LogEntry) {
			eventBus.Publish(events.LogEntryEvent{
				Timestamp:  entry.Timestamp.Format(time.RFC3339Nano),
				Level:      entry.Level,
				Module:     entry.Module,
				Message:    entry.Message,
				Attributes: entry.Attributes,
			})
		})

		// Prometheus collector feeds off the event bus
		collector := metrics.New(eventBus)

		// Supervisor for the service subprocess
		sup := supervisor.New(supervisor.Options{
			Command:        opts.ServiceCommand,
			Host:           opts.ServiceHost,
			Port:           opts.ServicePort,
			LogPath:        opts.ServiceLogPath,
			BufferCap:      opts.ServiceBufferCap,
			StopTimeout:    parseDurationOr(opts.StopTimeout, 10*time.Second),
			SettleDelay:    parseDurationOr(opts.SettleDelay, 500*time.Millisecond),
			HealthInterval: parseDurationOr(opts.HealthInterval, time.Second),
			HealthTimeout:  parseDurationOr(opts.HealthTimeout, 0),
			RestartDelay:   parseDurationOr(opts.RestartDelay, time.Second),
		}, logging.GetLogger("supervisor"))
		sup.SetEventBus(eventBus)

		// sd_notify readiness once the service first reaches running.
		// Transitions are delivered on whichever goroutine performed them,
		// so the once guard must be concurrency-safe.
		notifier := systemd.NewNotifier(logger)
		var readyOnce sync.Once
		sup.SubscribeState(func(_, newState supervisor.State) {
			if newState == supervisor.StateRunning {
				readyOnce.Do(notifier.Ready)
			}
			notifier.Status("service " + string(newState))
		})

		// Continuous health watch publishes on-change events
		healthCtx, healthCancel := context.WithCancel(context.Background())
		go sup.Monitor().Watch(healthCtx, func(healthy bool) {
			eventBus.Publish(events.HealthChangedEvent{
				Healthy:   healthy,
				Timestamp: time.Now().Format(time.RFC3339),
			})
		})

		// Self-update service
		var updateService updater.Service
		if opts.UpdateEnabled {
			svc, err := updater.NewService(&updater.Options{
				Repository: opts.UpdateRepository,
				Prerelease: opts.UpdatePrerelease,
			})
			if err != nil {
				logger.Warn("Failed to create update service", "error", err)
			} else {
				updateService = svc
			}
		}

		server := api.NewServer(&api.Options{
			AuthUsername:      opts.AuthUsername,
			AuthPassword:      opts.AuthPassword,
			Supervisor:        sup,
			EventBus:          eventBus,
			UpdateService:     updateService,
			PrometheusHandler: collector.Handler(),
		})

		// Reload logging levels when the config file changes
		var configWatcher *config.Watcher[logging.Config]
		if _, statErr := os.Stat(opts.Config); statErr == nil {
			configWatcher = config.NewConfigWatcher(opts.Config,
				func(path string) (logging.Config, error) {
					return config.LoadLoggingConfig(path), nil
				}, logger)
			configWatcher.OnReload(func(cfg logging.Config) {
				logging.Initialize(cfg)
			})
		}

		hooks.OnStart(func() {
			if configWatcher != nil {
				if startErr := configWatcher.Start(); startErr != nil {
					logger.Warn("Failed to start config watcher", "error", startErr)
				}
			}

			if opts.ServiceAutostart {
				if !sup.Start() {
					logger.Warn("Service autostart rejected",
						"state", string(sup.State()))
				}
			}

			logger.Info("Starting HTTP server", "port", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			notifier.Stopping()

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}

			healthCancel()

			// Stop the child last so API clients saw consistent state
			state := sup.State()
			if state == supervisor.StateStarting || state == supervisor.StateRunning {
				sup.Stop(sup.StopTimeout())
			}

			if configWatcher != nil {
				if stopErr := configWatcher.Stop(); stopErr != nil {
					logger.Warn("Error stopping config watcher", "error", stopErr)
				}
			}

			collector.Close()
		})
	})

	// Add foreground run command
	cli.Root().AddCommand(cmd.CreateRunCmd())

	// Run the CLI
	cli.Run()
}
