// Package backup moves a local install path aside before a destructive
// overwrite, so a failed download can be rolled back.
package backup

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	cp "github.com/otiai10/copy"
)

// DefaultRoot is the directory under the OS temp dir that holds backups.
// Backups are ephemeral and never survive a restart.
func DefaultRoot() string {
	return filepath.Join(os.TempDir(), "hacs_backup")
}

// Backup snapshots one local path (file or directory). The zero value is not
// usable; create instances with New.
type Backup struct {
	localPath  string
	root       string
	backupPath string
	logger     *slog.Logger
	created    bool
}

// New creates a Backup for localPath rooted at DefaultRoot.
func New(localPath string, logger *slog.Logger) *Backup {
	return NewWithRoot(localPath, DefaultRoot(), logger)
}

// NewWithRoot creates a Backup with an explicit backup root, used for
// persistent-directory snapshots that must not collide with install backups.
func NewWithRoot(localPath, root string, logger *slog.Logger) *Backup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backup{
		localPath:  localPath,
		root:       root,
		backupPath: filepath.Join(root, filepath.Base(localPath)),
		logger:     logger,
	}
}

// Created reports whether Create actually snapshotted anything.
func (b *Backup) Created() bool { return b.created }

// Create moves the local path into the backup root. A missing local path is
// not an error; Restore and Cleanup become no-ops.
func (b *Backup) Create() error {
	info, err := os.Stat(b.localPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspecting %s: %w", b.localPath, err)
	}

	// A stale backup from an interrupted run must not pollute this one.
	if err := os.RemoveAll(b.root); err != nil {
		return fmt.Errorf("clearing backup root %s: %w", b.root, err)
	}
	if err := os.MkdirAll(b.root, 0o755); err != nil {
		return fmt.Errorf("creating backup root %s: %w", b.root, err)
	}

	if info.IsDir() {
		if err := cp.Copy(b.localPath, b.backupPath); err != nil {
			return fmt.Errorf("copying %s to backup: %w", b.localPath, err)
		}
		if err := os.RemoveAll(b.localPath); err != nil {
			return fmt.Errorf("removing %s after backup: %w", b.localPath, err)
		}
	} else {
		if err := copyFile(b.localPath, b.backupPath); err != nil {
			return fmt.Errorf("copying %s to backup: %w", b.localPath, err)
		}
		if err := os.Remove(b.localPath); err != nil {
			return fmt.Errorf("removing %s after backup: %w", b.localPath, err)
		}
	}

	b.created = true
	b.logger.Debug("backup created", "local_path", b.localPath, "backup_path", b.backupPath)
	return nil
}

// Restore puts the backed up content back at the original path, replacing
// whatever is there now.
func (b *Backup) Restore() error {
	info, err := os.Stat(b.backupPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("inspecting backup %s: %w", b.backupPath, err)
	}

	if err := os.RemoveAll(b.localPath); err != nil {
		return fmt.Errorf("clearing %s before restore: %w", b.localPath, err)
	}

	if info.IsDir() {
		if err := cp.Copy(b.backupPath, b.localPath); err != nil {
			return fmt.Errorf("restoring %s: %w", b.localPath, err)
		}
	} else {
		if err := copyFile(b.backupPath, b.localPath); err != nil {
			return fmt.Errorf("restoring %s: %w", b.localPath, err)
		}
	}

	b.logger.Debug("backup restored", "local_path", b.localPath, "backup_path", b.backupPath)
	return nil
}

// Cleanup deletes the backup copy.
func (b *Backup) Cleanup() error {
	if _, err := os.Stat(b.root); os.IsNotExist(err) {
		return nil
	}
	if err := os.RemoveAll(b.root); err != nil {
		return fmt.Errorf("removing backup root %s: %w", b.root, err)
	}
	b.logger.Debug("backup dir cleared", "backup_root", b.root)
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
