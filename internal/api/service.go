package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/smazurov/webuinode/internal/api/models"
)

// registerServiceRoutes registers the supervised service lifecycle endpoints.
func (s *Server) registerServiceRoutes() {
	// Service status
	huma.Register(s.api, huma.Operation{
		OperationID: "get-service-status",
		Method:      http.MethodGet,
		Path:        "/api/service",
		Summary:     "Service Status",
		Description: "Get the current lifecycle state of the supervised service",
		Tags:        []string{"service"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ServiceStatusResponse, error) {
		data := models.ServiceStatusData{
			State:        string(s.supervisor.State()),
			LastExitCode: s.supervisor.LastExitCode(),
			HealthURL:    s.supervisor.Monitor().URL(),
			OutputLines:  len(s.supervisor.OutputLines(0)),
		}
		if err := s.supervisor.LastError(); err != nil {
			data.LastError = err.Error()
		}
		return &models.ServiceStatusResponse{Body: data}, nil
	})

	// Start the service
	huma.Register(s.api, huma.Operation{
		OperationID: "start-service",
		Method:      http.MethodPost,
		Path:        "/api/service/start",
		Summary:     "Start Service",
		Description: "Launch the supervised service. Fails if it is already starting, running, or stopping.",
		Tags:        []string{"service"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(_ context.Context, _ *struct{}) (*models.ServiceActionResponse, error) {
		if !s.supervisor.Start() {
			return nil, huma.Error409Conflict(
				"cannot start service in state " + string(s.supervisor.State()))
		}
		return &models.ServiceActionResponse{
			Body: models.ServiceActionData{
				Action:   "start",
				Accepted: true,
				State:    string(s.supervisor.State()),
			},
		}, nil
	})

	// Stop the service
	huma.Register(s.api, huma.Operation{
		OperationID: "stop-service",
		Method:      http.MethodPost,
		Path:        "/api/service/stop",
		Summary:     "Stop Service",
		Description: "Terminate the supervised service gracefully, escalating to SIGKILL on timeout.",
		Tags:        []string{"service"},
		Security:    withAuth(),
		Errors:      []int{401, 409},
	}, func(_ context.Context, _ *struct{}) (*models.ServiceActionResponse, error) {
		if !s.supervisor.Stop(s.supervisor.StopTimeout()) {
			return nil, huma.Error409Conflict(
				"cannot stop service in state " + string(s.supervisor.State()))
		}
		return &models.ServiceActionResponse{
			Body: models.ServiceActionData{
				Action:   "stop",
				Accepted: true,
				State:    string(s.supervisor.State()),
			},
		}, nil
	})

	// Restart the service
	huma.Register(s.api, huma.Operation{
		OperationID: "restart-service",
		Method:      http.MethodPost,
		Path:        "/api/service/restart",
		Summary:     "Restart Service",
		Description: "Stop the supervised service if needed, then start it again after a short delay.",
		Tags:        []string{"service"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, _ *struct{}) (*models.ServiceActionResponse, error) {
		// Restart blocks through the stop phase and the restart delay,
		// so it runs in the background.
		go func() {
			if !s.supervisor.Restart() {
				s.logger.Warn("Restart did not complete",
					"state", string(s.supervisor.State()))
			}
		}()
		return &models.ServiceActionResponse{
			Body: models.ServiceActionData{
				Action:   "restart",
				Accepted: true,
				State:    string(s.supervisor.State()),
			},
		}, nil
	})

	// Buffered output snapshot
	huma.Register(s.api, huma.Operation{
		OperationID: "get-service-output",
		Method:      http.MethodGet,
		Path:        "/api/service/output",
		Summary:     "Service Output",
		Description: "Get a snapshot of the buffered service output, oldest first",
		Tags:        []string{"service"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, func(_ context.Context, input *struct {
		MaxLines int `query:"max_lines" default:"0" minimum:"0" doc:"Maximum number of trailing lines to return, 0 for all"`
	}) (*models.ServiceOutputResponse, error) {
		lines := s.supervisor.OutputLines(input.MaxLines)
		return &models.ServiceOutputResponse{
			Body: models.ServiceOutputData{
				Lines: lines,
				Count: len(lines),
			},
		}, nil
	})
}
