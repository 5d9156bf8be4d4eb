package models

import "time"

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.0.0" doc:"Application version"`
	GitCommit string `json:"git_commit" example:"abc1234" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27T10:30:00Z" doc:"Build timestamp"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go compiler version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Target platform"`
}

type VersionResponse struct {
	Body VersionData
}

// ServiceStatusData describes the supervised service.
type ServiceStatusData struct {
	State        string `json:"state" example:"running" doc:"Current lifecycle state"`
	LastExitCode int    `json:"last_exit_code" example:"0" doc:"Exit code of the last terminated child"`
	LastError    string `json:"last_error,omitempty" doc:"Diagnostic from the last failed start or stop"`
	HealthURL    string `json:"health_url" example:"http://127.0.0.1:8080/health" doc:"Probed health endpoint"`
	OutputLines  int    `json:"output_lines" example:"250" doc:"Number of buffered output lines"`
}

type ServiceStatusResponse struct {
	Body ServiceStatusData
}

// ServiceActionData reports the outcome of a lifecycle request.
type ServiceActionData struct {
	Action   string `json:"action" example:"start" doc:"Requested action"`
	Accepted bool   `json:"accepted" example:"true" doc:"Whether the action was accepted"`
	State    string `json:"state" example:"starting" doc:"State after the action"`
}

type ServiceActionResponse struct {
	Body ServiceActionData
}

// ServiceOutputData carries a snapshot of buffered child output.
type ServiceOutputData struct {
	Lines []string `json:"lines" doc:"Buffered output lines, oldest first"`
	Count int      `json:"count" example:"100" doc:"Number of lines returned"`
}

type ServiceOutputResponse struct {
	Body ServiceOutputData
}

// Update models
type UpdateCheckData struct {
	CurrentVersion  string    `json:"current_version" example:"1.0.0" doc:"Currently running version"`
	LatestVersion   string    `json:"latest_version" example:"1.1.0" doc:"Latest available version"`
	ReleaseNotes    string    `json:"release_notes,omitempty" doc:"Release notes for the latest version"`
	ReleaseURL      string    `json:"release_url,omitempty" doc:"Link to the release page"`
	PublishedAt     time.Time `json:"published_at,omitempty" doc:"Release publication time"`
	AssetSize       int       `json:"asset_size,omitempty" doc:"Download size in bytes"`
	UpdateAvailable bool      `json:"update_available" example:"true" doc:"Whether a newer version exists"`
}

type UpdateCheckResponse struct {
	Body UpdateCheckData
}

type UpdateStatusData struct {
	State           string     `json:"state" example:"idle" doc:"Updater state"`
	CurrentVersion  string     `json:"current_version" example:"1.0.0" doc:"Currently running version"`
	TargetVersion   string     `json:"target_version,omitempty" doc:"Version being applied"`
	Error           string     `json:"error,omitempty" doc:"Last updater error"`
	LastChecked     *time.Time `json:"last_checked,omitempty" doc:"Time of the last update check"`
	BackupAvailable bool       `json:"backup_available" doc:"Whether a rollback backup exists"`
	BackupVersion   string     `json:"backup_version,omitempty" doc:"Version of the backup binary"`
}

type UpdateStatusResponse struct {
	Body UpdateStatusData
}

type UpdateApplyResponse struct {
	Body struct {
		Message string `json:"message" example:"Update applied, restarting..." doc:"Status message"`
	}
}

type UpdateRollbackResponse struct {
	Body struct {
		Message string `json:"message" example:"Rollback complete, restarting..." doc:"Status message"`
	}
}
