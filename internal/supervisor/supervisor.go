package supervisor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/smazurov/webuinode/internal/events"
	"github.com/smazurov/webuinode/internal/health"
	"github.com/smazurov/webuinode/internal/output"
)

// Options configures a Supervisor.
type Options struct {
	// Command is the base command line for the service; --host and --port
	// are appended at spawn time.
	Command string

	// Host and Port the service binds to; also the health probe target.
	Host string
	Port int

	// StopTimeout is how long Stop waits for graceful termination before
	// escalating to SIGKILL.
	StopTimeout time.Duration

	// SettleDelay is the pause before the first health probe.
	SettleDelay time.Duration

	// HealthInterval is the delay between health probe attempts.
	HealthInterval time.Duration

	// HealthTimeout bounds the overall wait for the service to become
	// healthy. Zero means wait indefinitely.
	HealthTimeout time.Duration

	// RestartDelay is the pause between the stop and start phases of Restart.
	RestartDelay time.Duration

	// BufferCap is the maximum number of retained output lines.
	BufferCap int

	// LogPath is the output mirror log file.
	LogPath string
}

func (o *Options) withDefaults() {
	if o.Command == "" {
		o.Command = "open-webui serve"
	}
	if o.Host == "" {
		o.Host = "127.0.0.1"
	}
	if o.Port == 0 {
		o.Port = 8080
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = 10 * time.Second
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = 500 * time.Millisecond
	}
	if o.HealthInterval <= 0 {
		o.HealthInterval = 1 * time.Second
	}
	if o.RestartDelay <= 0 {
		o.RestartDelay = 1 * time.Second
	}
	if o.BufferCap <= 0 {
		o.BufferCap = output.DefaultCap
	}
	if o.LogPath == "" {
		o.LogPath = "open-webui.log"
	}
}

// Supervisor manages the lifecycle of the service subprocess: spawning,
// health-based readiness, output capture, and graceful shutdown. All public
// methods are safe to call from any goroutine.
type Supervisor struct {
	opts   Options
	logger *slog.Logger
	bus    *events.Bus

	stateMu sync.Mutex
	state   State

	// Child process handle, guarded by procMu. spawn holds procMu across
	// launch and assignment so a concurrent Stop either observes the new
	// child or forces the spawn to abort before launching. Lock order:
	// stateMu may be taken while holding procMu, never the other way.
	procMu     sync.Mutex
	cmd        *exec.Cmd
	procDone   chan struct{} // closed once the child has been reaped
	readerDone chan struct{} // closed when the output reader ends

	diagMu       sync.Mutex
	lastExitCode int
	lastErr      error

	out     *output.Channel
	sink    *output.Sink
	monitor *health.Monitor

	subMu     sync.Mutex
	stateSubs []func(old, new State)

	killTimeout time.Duration // wait after SIGKILL before giving up
	joinTimeout time.Duration // wait for the output reader on stop
}

// New creates a supervisor in the stopped state.
func New(opts Options, logger *slog.Logger) *Supervisor {
	opts.withDefaults()

	sink := output.NewSink(opts.LogPath, logger)
	monitor := health.New(health.Config{
		Host:     opts.Host,
		Port:     opts.Port,
		Interval: opts.HealthInterval,
	}, logger)

	s := &Supervisor{
		opts:        opts,
		logger:      logger,
		state:       StateStopped,
		sink:        sink,
		out:         output.NewChannel(opts.BufferCap, sink, logger),
		monitor:     monitor,
		killTimeout: 5 * time.Second,
		joinTimeout: 2 * time.Second,
	}

	logger.Info("Supervisor initialized", "host", opts.Host, "port", opts.Port)
	return s
}

// SetEventBus wires the supervisor to an event bus. State transitions and
// output lines are published as events in addition to direct subscriptions.
func (s *Supervisor) SetEventBus(bus *events.Bus) {
	s.bus = bus
	s.out.Subscribe(func(line string) {
		bus.Publish(events.OutputLineEvent{
			Line:      line,
			Timestamp: time.Now().Format(time.RFC3339),
		})
	})
}

// Monitor returns the health monitor for the supervised endpoint.
func (s *Supervisor) Monitor() *health.Monitor {
	return s.monitor
}

// StopTimeout returns the configured graceful stop timeout.
func (s *Supervisor) StopTimeout() time.Duration {
	return s.opts.StopTimeout
}

// Start launches the service subprocess. It fails without a state change
// if the current state is not stopped or error. Spawning is synchronous
// but readiness is not: the state moves to starting and a background
// worker drives the transition to running or error.
func (s *Supervisor) Start() bool {
	s.stateMu.Lock()
	if s.state != StateStopped && s.state != StateError {
		st := s.state
		s.stateMu.Unlock()
		s.logger.Warn("Cannot start", "state", string(st))
		return false
	}
	old := s.state
	s.state = StateStarting
	s.stateMu.Unlock()
	s.notifyState(old, StateStarting)

	if err := s.sink.Open(); err != nil {
		s.logger.Error("Failed to open log file", "error", err)
		s.recordError(err)
		s.setState(StateError)
		return false
	}

	s.appendSeparator("STARTING")
	s.logger.Info("Starting service", "host", s.opts.Host, "port", s.opts.Port)

	if err := s.spawn(); err != nil {
		if errors.Is(err, errStartAborted) {
			// The concurrent Stop already wrote the STOPPED separator,
			// closed the sink, and settled the state.
			s.logger.Info("Start aborted by concurrent stop")
			return false
		}
		s.logger.Error("Failed to start service", "error", err)
		s.recordError(err)
		s.sink.Close()
		s.setState(StateError)
		return false
	}

	return true
}

// Stop terminates the service subprocess: SIGTERM, a bounded wait, then
// SIGKILL on expiry. It fails without a state change if the current state
// is stopped or stopping. The caller blocks up to timeout (zero means the
// configured StopTimeout).
func (s *Supervisor) Stop(timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = s.opts.StopTimeout
	}

	s.stateMu.Lock()
	if s.state == StateStopped || s.state == StateStopping {
		st := s.state
		s.stateMu.Unlock()
		s.logger.Warn("Cannot stop", "state", string(st))
		return false
	}
	old := s.state
	s.state = StateStopping
	s.stateMu.Unlock()
	s.notifyState(old, StateStopping)

	s.appendSeparator("STOPPING")

	// Snapshot the handles under procMu. A spawn in flight holds procMu
	// until the child is launched and assigned, so either we see it here
	// or the spawn aborts on its state check and no child exists.
	s.procMu.Lock()
	cmd := s.cmd
	procDone := s.procDone
	readerDone := s.readerDone
	s.procMu.Unlock()

	if cmd == nil {
		s.appendSeparator("STOPPED")
		s.sink.Close()
		s.setState(StateStopped)
		return true
	}

	s.logger.Info("Stopping service", "pid", cmd.Process.Pid)

	exited := false
	select {
	case <-procDone:
		exited = true
	default:
	}

	if !exited {
		s.logger.Debug("Sending SIGTERM")
		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
			s.logger.Warn("Failed to send SIGTERM", "error", err)
		}

		select {
		case <-procDone:
			s.logger.Info("Process terminated gracefully")
		case <-time.After(timeout):
			s.logger.Warn("Process did not terminate in time, forcing kill", "timeout", timeout)
			if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				s.logger.Error("Failed to kill process", "error", err)
			}
			select {
			case <-procDone:
				s.logger.Info("Process killed forcefully")
			case <-time.After(s.killTimeout):
				s.logger.Error("Process did not exit after kill signal")
				s.recordError(fmt.Errorf("process did not exit after kill"))
				s.sink.Close()
				s.setState(StateError)
				return false
			}
		}
	}

	// Join the output reader so the buffer holds everything the child wrote.
	select {
	case <-readerDone:
	case <-time.After(s.joinTimeout):
		s.logger.Warn("Timeout waiting for output reader")
	}

	s.procMu.Lock()
	s.cmd = nil
	s.procMu.Unlock()
	s.appendSeparator("STOPPED")
	s.sink.Close()
	s.setState(StateStopped)
	return true
}

// Restart stops the service if it is running and starts it again. The stop
// phase is skipped when the service is already stopped or in error.
func (s *Supervisor) Restart() bool {
	s.logger.Info("Restarting service")
	s.appendSeparator("RESTARTING")

	switch s.State() {
	case StateStarting, StateRunning, StateStopping:
		if !s.Stop(0) {
			s.logger.Error("Failed to stop service during restart")
			return false
		}
		// Brief pause for cleanup
		time.Sleep(s.opts.RestartDelay)
	case StateStopped, StateError:
		s.logger.Debug("Service not running, skipping stop phase")
	}

	if !s.Start() {
		s.logger.Error("Failed to start service during restart")
		return false
	}
	return true
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// OutputLines returns a snapshot of captured output. If max > 0, only the
// most recent max lines are returned.
func (s *Supervisor) OutputLines(max int) []string {
	return s.out.Snapshot(max)
}

// LastExitCode returns the exit code recorded at the most recent child exit.
func (s *Supervisor) LastExitCode() int {
	s.diagMu.Lock()
	defer s.diagMu.Unlock()
	return s.lastExitCode
}

// LastError returns the most recent start or stop failure, if any.
func (s *Supervisor) LastError() error {
	s.diagMu.Lock()
	defer s.diagMu.Unlock()
	return s.lastErr
}

// SubscribeState registers a callback invoked synchronously on every state
// transition, on whichever goroutine performed the transition. Delivery
// order equals registration order.
func (s *Supervisor) SubscribeState(fn func(old, new State)) {
	s.subMu.Lock()
	s.stateSubs = append(s.stateSubs, fn)
	s.subMu.Unlock()
}

// SubscribeOutput registers a callback invoked synchronously for each new
// output line, on the output reader goroutine.
func (s *Supervisor) SubscribeOutput(fn func(line string)) {
	s.out.Subscribe(fn)
}

// errStartAborted signals that a concurrent Stop claimed the lifecycle
// before the child was launched.
var errStartAborted = errors.New("start aborted before launch")

// spawn launches the child process and its workers. The caller has already
// moved the state to starting. procMu is held for the whole launch so Stop
// never runs against a half-assigned child.
func (s *Supervisor) spawn() error {
	s.procMu.Lock()
	defer s.procMu.Unlock()

	if s.cmd != nil {
		select {
		case <-s.procDone:
		default:
			return fmt.Errorf("process already running")
		}
	}

	// A Stop issued between our state change and this point has already
	// seen cmd == nil and finished; launching now would orphan the child.
	if st := s.State(); st != StateStarting {
		return errStartAborted
	}

	args, err := parseCommand(s.opts.Command)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return fmt.Errorf("empty command")
	}
	args = append(args, "--host", s.opts.Host, "--port", strconv.Itoa(s.opts.Port))

	cmd := exec.Command(args[0], args[1:]...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// The child decodes its own output as UTF-8; malformed bytes are
	// replaced on our side when read.
	cmd.Env = append(os.Environ(), "PYTHONIOENCODING=utf-8")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout // merge stderr into the stdout pipe

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start process: %w", err)
	}

	s.logger.Debug("Process started", "pid", cmd.Process.Pid, "command", s.opts.Command)

	s.cmd = cmd
	procDone := make(chan struct{})
	readerDone := make(chan struct{})
	s.procDone = procDone
	s.readerDone = readerDone

	go s.readOutput(stdout, readerDone)
	go func() {
		// Reap only after the reader has drained the pipe, per os/exec.
		<-readerDone
		waitErr := cmd.Wait()
		code := exitCodeFromError(waitErr)
		s.diagMu.Lock()
		s.lastExitCode = code
		s.diagMu.Unlock()
		s.logger.Debug("Process exited", "exit_code", code)
		close(procDone)
	}()
	go s.waitForHealth(procDone)

	return nil
}

// readOutput drains the child's merged output stream line by line until
// end-of-stream. Each line lands in the buffer, the log sink, and the
// subscribers, in that order. Stream end does not drive a state transition;
// that is the health-wait worker's or Stop's responsibility.
func (s *Supervisor) readOutput(r io.Reader, done chan struct{}) {
	defer close(done)
	s.logger.Debug("Output reader started")

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.ToValidUTF8(scanner.Text(), string(utf8.RuneError))
		s.out.Append(line)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("Error reading process output", "error", err)
	}

	s.logger.Debug("Output reader ended")
}

// waitForHealth polls the health endpoint until the service answers, the
// child exits, or the overall budget runs out. Every iteration re-checks
// the state first so a concurrent Stop is never blocked.
func (s *Supervisor) waitForHealth(procDone <-chan struct{}) {
	time.Sleep(s.opts.SettleDelay)

	var deadline time.Time
	if s.opts.HealthTimeout > 0 {
		deadline = time.Now().Add(s.opts.HealthTimeout)
	}
	started := time.Now()

	for {
		if st := s.State(); st != StateStarting {
			s.logger.Info("Health wait stopped due to state change", "state", string(st))
			return
		}

		select {
		case <-procDone:
			s.logger.Error("Process exited before becoming healthy", "exit_code", s.LastExitCode())
			s.recordError(fmt.Errorf("process exited with code %d before becoming healthy", s.LastExitCode()))
			s.transitionFrom(StateStarting, StateError)
			return
		default:
		}

		if s.monitor.Probe(context.Background()) {
			s.logger.Info("Service became available", "elapsed", time.Since(started).Round(100*time.Millisecond))
			s.transitionFrom(StateStarting, StateRunning)
			return
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			s.logger.Error("Service did not become healthy in time", "timeout", s.opts.HealthTimeout)
			s.recordError(fmt.Errorf("health check timed out after %s", s.opts.HealthTimeout))
			s.transitionFrom(StateStarting, StateError)
			return
		}

		time.Sleep(s.monitor.Interval())
	}
}

// setState transitions unconditionally and notifies subscribers.
func (s *Supervisor) setState(newState State) {
	s.stateMu.Lock()
	old := s.state
	s.state = newState
	s.stateMu.Unlock()
	s.notifyState(old, newState)
}

// transitionFrom transitions only if the current state matches from.
// Returns whether the transition happened.
func (s *Supervisor) transitionFrom(from, to State) bool {
	s.stateMu.Lock()
	if s.state != from {
		s.stateMu.Unlock()
		return false
	}
	s.state = to
	s.stateMu.Unlock()
	s.notifyState(from, to)
	return true
}

// notifyState delivers a transition to subscribers in registration order,
// outside the state lock. A panicking subscriber does not prevent delivery
// to the rest.
func (s *Supervisor) notifyState(old, newState State) {
	if old == newState {
		return
	}
	s.logger.Info("State transition", "from", string(old), "to", string(newState))

	s.subMu.Lock()
	subs := make([]func(State, State), len(s.stateSubs))
	copy(subs, s.stateSubs)
	s.subMu.Unlock()

	for _, fn := range subs {
		s.deliverState(fn, old, newState)
	}

	if s.bus != nil {
		s.bus.Publish(events.ProcessStateChangedEvent{
			OldState:  string(old),
			NewState:  string(newState),
			ExitCode:  s.LastExitCode(),
			Timestamp: time.Now().Format(time.RFC3339),
		})
	}
}

func (s *Supervisor) deliverState(fn func(State, State), old, newState State) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("State subscriber panicked", "panic", r)
		}
	}()
	fn(old, newState)
}

// appendSeparator writes a lifecycle separator block to the output buffer,
// the log sink, and the subscribers.
func (s *Supervisor) appendSeparator(action string) {
	for _, line := range output.SeparatorLines(action) {
		s.out.Append(line)
	}
}

func (s *Supervisor) recordError(err error) {
	s.diagMu.Lock()
	s.lastErr = err
	s.diagMu.Unlock()
}

// exitCodeFromError extracts exit code from process error.
// Returns 0 for nil error, the exit code for ExitError, or 1 for other errors.
func exitCodeFromError(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
