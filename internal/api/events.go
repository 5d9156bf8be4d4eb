package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/webuinode/internal/events"
)

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time event stream for service state changes, output lines, and health transitions",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"state-changed":  events.ProcessStateChangedEvent{},
		"output-line":    events.OutputLineEvent{},
		"health-changed": events.HealthChangedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		// Create event channel for this connection
		eventCh := make(chan any, 100)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.ProcessStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.OutputLineEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.HealthChangedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		// Send initial state so clients don't have to wait for a transition
		state := string(s.supervisor.State())
		if err := send.Data(events.ProcessStateChangedEvent{
			OldState:  state,
			NewState:  state,
			ExitCode:  s.supervisor.LastExitCode(),
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		// Keep connection alive and forward events
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					// Connection failed, clean up and exit
					return
				}
			}
		}
	})
}
