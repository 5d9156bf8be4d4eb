package supervisor

// State represents the current lifecycle phase of the supervised service.
type State string

// Service states.
const (
	StateStopped  State = "stopped"  // Not running
	StateStarting State = "starting" // Launched, waiting for health probe
	StateRunning  State = "running"  // Launched and healthy
	StateStopping State = "stopping" // Being terminated
	StateError    State = "error"    // Failed to start or crashed
)
