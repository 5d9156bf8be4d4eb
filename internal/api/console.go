package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/webuinode/internal/console"
	"github.com/smazurov/webuinode/internal/events"
	"github.com/smazurov/webuinode/internal/logging"
)

// ConsoleFullEvent carries a complete console repaint.
type ConsoleFullEvent struct {
	Lines      []string `json:"lines" doc:"Full buffered output, oldest first"`
	AutoScroll bool     `json:"auto_scroll" doc:"Whether the client should scroll to the bottom"`
}

// ConsoleAppendEvent carries lines added since the previous render.
type ConsoleAppendEvent struct {
	Lines      []string `json:"lines" doc:"Newly appended output lines"`
	AutoScroll bool     `json:"auto_scroll" doc:"Whether the client should scroll to the bottom"`
}

// sseConsoleSink adapts an SSE sender to the console render sink.
type sseConsoleSink struct {
	send sse.Sender
}

func (s *sseConsoleSink) FullRender(lines []string, autoScroll bool) error {
	return s.send.Data(ConsoleFullEvent{Lines: lines, AutoScroll: autoScroll})
}

func (s *sseConsoleSink) AppendLines(lines []string, autoScroll bool) error {
	return s.send.Data(ConsoleAppendEvent{Lines: lines, AutoScroll: autoScroll})
}

// registerConsoleRoutes registers the throttled console streaming endpoint.
// Each connection gets its own renderer so slow clients repaint independently.
func (s *Server) registerConsoleRoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "console-stream",
		Method:      http.MethodGet,
		Path:        "/api/console/stream",
		Summary:     "Console Stream",
		Description: "Throttled console rendering stream. Sends a full repaint first, then incremental appends at most twice per second.",
		Tags:        []string{"console"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"full":   ConsoleFullEvent{},
		"append": ConsoleAppendEvent{},
	}, func(ctx context.Context, input *struct {
		AutoScroll bool `query:"auto_scroll" default:"true" doc:"Request bottom-scroll hints on renders"`
	}, send sse.Sender) {
		logger := logging.GetLogger("console")

		renderer := console.NewRenderer(func() []string {
			return s.supervisor.OutputLines(0)
		}, &sseConsoleSink{send: send}, console.DefaultInterval, logger)
		renderer.SetAutoScroll(input.AutoScroll)

		// New output marks the renderer dirty; the render worker coalesces
		// bursts into at most one pass per interval.
		eventCh := make(chan any, 100)
		unsubscribers := []func(){
			events.SubscribeToChannel[events.OutputLineEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ProcessStateChangedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		renderer.Activate()
		defer renderer.Deactivate()

		for {
			select {
			case <-ctx.Done():
				return
			case <-eventCh:
				renderer.MarkDirty()
			}
		}
	})
}
