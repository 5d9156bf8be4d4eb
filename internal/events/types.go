package events

// Event type constants for kelindar/event.
const (
	TypeProcessStateChanged uint32 = iota + 1
	TypeOutputLine
	TypeHealthChanged
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// ProcessStateChangedEvent is published on every supervisor state transition.
type ProcessStateChangedEvent struct {
	OldState  string `json:"old_state" example:"starting" doc:"State before the transition"`
	NewState  string `json:"new_state" example:"running" doc:"State after the transition"`
	ExitCode  int    `json:"exit_code" example:"0" doc:"Last recorded child exit code"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Transition timestamp"`
}

// Type returns the event type identifier for ProcessStateChangedEvent.
func (e ProcessStateChangedEvent) Type() uint32 { return TypeProcessStateChanged }

// OutputLineEvent is published for each line of child process output.
type OutputLineEvent struct {
	Line      string `json:"line" doc:"Output line text"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Capture timestamp"`
}

// Type returns the event type identifier for OutputLineEvent.
func (e OutputLineEvent) Type() uint32 { return TypeOutputLine }

// HealthChangedEvent is published when the health probe result changes.
type HealthChangedEvent struct {
	Healthy   bool   `json:"healthy" example:"true" doc:"Whether the service answered the probe"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Probe timestamp"`
}

// Type returns the event type identifier for HealthChangedEvent.
func (e HealthChangedEvent) Type() uint32 { return TypeHealthChanged }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"api" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

// Type returns the event type identifier for LogEntryEvent.
func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
