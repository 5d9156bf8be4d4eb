// Package updater provides self-update functionality for webuinode.
package updater

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/smazurov/webuinode/internal/version"
)

const (
	backupBinaryName   = "webuinode.previous"
	backupManifestName = "backup.json"
)

// backupManifest records which binary the backup was taken from, so a
// rollback can restore it to the same path even after the process moved.
type backupManifest struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	ExecPath  string    `json:"exec_path"`
}

type backupManager struct {
	mu       sync.RWMutex
	dir      string
	manifest *backupManifest
	logger   *slog.Logger
}

// backupDir resolves the cache directory for the previous binary,
// honoring XDG_CACHE_HOME.
func backupDir() (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, "webuinode", "backup"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".cache", "webuinode", "backup"), nil
}

func newBackupManager(logger *slog.Logger) (*backupManager, error) {
	dir, err := backupDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	mgr := &backupManager{
		dir:    dir,
		logger: logger,
	}
	mgr.loadManifest()

	return mgr, nil
}

// loadManifest picks up a backup left by a previous run. A manifest
// without its binary is treated as no backup.
func (m *backupManager) loadManifest() {
	data, readErr := os.ReadFile(filepath.Join(m.dir, backupManifestName))
	if readErr != nil {
		return
	}

	var manifest backupManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		m.logger.Warn("Failed to parse backup manifest", "error", err)
		return
	}

	binaryPath := filepath.Join(m.dir, backupBinaryName)
	if _, statErr := os.Stat(binaryPath); statErr != nil {
		m.logger.Warn("Backup binary missing", "path", binaryPath)
		return
	}

	m.mu.Lock()
	m.manifest = &manifest
	m.mu.Unlock()

	m.logger.Info("Found existing backup", "version", manifest.Version)
}

// copyBinary copies src to dst with executable permissions, truncating
// any previous content.
func copyBinary(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", src, err)
	}
	return nil
}

// createBackup snapshots the running binary before an update overwrites it.
func (m *backupManager) createBackup() error {
	execPath, err := selfupdate.ExecutablePath()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	binaryPath := filepath.Join(m.dir, backupBinaryName)
	if err := copyBinary(execPath, binaryPath); err != nil {
		return err
	}

	manifest := backupManifest{
		Version:   version.Version,
		CreatedAt: time.Now(),
		ExecPath:  execPath,
	}
	data, marshalErr := json.Marshal(manifest)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal backup manifest: %w", marshalErr)
	}
	if err := os.WriteFile(filepath.Join(m.dir, backupManifestName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write backup manifest: %w", err)
	}

	m.mu.Lock()
	m.manifest = &manifest
	m.mu.Unlock()

	m.logger.Info("Backup created", "version", manifest.Version, "path", binaryPath)
	return nil
}

// restore puts the backed-up binary back at its original path.
func (m *backupManager) restore() error {
	m.mu.RLock()
	manifest := m.manifest
	m.mu.RUnlock()

	if manifest == nil {
		return fmt.Errorf("no backup available")
	}

	if err := copyBinary(filepath.Join(m.dir, backupBinaryName), manifest.ExecPath); err != nil {
		return fmt.Errorf("failed to restore backup: %w", err)
	}

	m.logger.Info("Backup restored", "version", manifest.Version)
	return nil
}

func (m *backupManager) hasBackup() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.manifest != nil
}

func (m *backupManager) backupVersion() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.manifest == nil {
		return ""
	}
	return m.manifest.Version
}
