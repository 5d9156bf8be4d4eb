// Package systemd integrates with the service manager when running as a
// systemd unit with Type=notify.
package systemd

import (
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends readiness and status updates to systemd. All calls are
// no-ops when NOTIFY_SOCKET is not set.
type Notifier struct {
	logger *slog.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{logger: logger}
}

// Ready signals that the supervised service is up and healthy.
func (n *Notifier) Ready() {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		n.logger.Warn("Failed to notify systemd", "error", err)
		return
	}
	if sent {
		n.logger.Debug("Notified systemd: ready")
	}
}

// Status reports a free-form status line visible in systemctl status.
func (n *Notifier) Status(status string) {
	if _, err := daemon.SdNotify(false, "STATUS="+status); err != nil {
		n.logger.Warn("Failed to update systemd status", "error", err)
	}
}

// Stopping signals that shutdown has begun.
func (n *Notifier) Stopping() {
	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		n.logger.Warn("Failed to notify systemd", "error", err)
	}
}
