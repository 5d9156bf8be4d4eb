// Package cmd holds the CLI subcommands.
package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/webuinode/internal/console"
	"github.com/smazurov/webuinode/internal/events"
	"github.com/smazurov/webuinode/internal/logging"
	"github.com/smazurov/webuinode/internal/supervisor"
	"github.com/spf13/cobra"
)

// CreateRunCmd creates the run command: supervise the service in the
// foreground with a live console on stdout.
func CreateRunCmd() *cobra.Command {
	var command string
	var host string
	var port int
	var logPath string
	var stopTimeout time.Duration
	var logJSON bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the service in the foreground",
		Long: `Launches the supervised service, streams its output to stdout with ` +
			`throttled rendering, and shuts it down gracefully on SIGINT or SIGTERM.`,
		Run: func(_ *cobra.Command, _ []string) {
			loggingConfig := logging.Config{
				Level:  "warn", // keep the console for child output
				Format: "text",
			}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("run")

			bus := events.New()
			sup := supervisor.New(supervisor.Options{
				Command:     command,
				Host:        host,
				Port:        port,
				LogPath:     logPath,
				StopTimeout: stopTimeout,
			}, logger)
			sup.SetEventBus(bus)

			// Throttled console rendering of buffered output
			renderer := console.NewRenderer(func() []string {
				return sup.OutputLines(0)
			}, console.NewWriterSink(os.Stdout), console.DefaultInterval, logger)
			sup.SubscribeOutput(func(string) {
				renderer.MarkDirty()
			})

			stateCh := make(chan supervisor.State, 8)
			sup.SubscribeState(func(_, newState supervisor.State) {
				select {
				case stateCh <- newState:
				default:
				}
			})

			renderer.Activate()
			defer renderer.Deactivate()

			if !sup.Start() {
				logger.Error("Failed to start service")
				os.Exit(1)
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			for {
				select {
				case sig := <-sigCh:
					logger.Info("Signal received, stopping service", "signal", sig.String())
					sup.Stop(sup.StopTimeout())
					return
				case state := <-stateCh:
					if state == supervisor.StateError {
						// Drain one last render pass before exiting
						renderer.MarkDirty()
						time.Sleep(console.DefaultInterval)
						logger.Error("Service entered error state",
							"exit_code", sup.LastExitCode())
						if err := sup.LastError(); err != nil {
							logger.Error("Last error", "error", err)
						}
						os.Exit(1)
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&command, "command", "open-webui serve", "Service command line")
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host the service binds to")
	cmd.Flags().IntVar(&port, "port", 8080, "Port the service binds to")
	cmd.Flags().StringVar(&logPath, "log-path", "open-webui.log", "Output mirror log file")
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 10*time.Second, "Graceful stop timeout")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Log in JSON format")

	return cmd
}
