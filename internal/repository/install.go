package repository

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hacs-community/hacs-agent/internal/backup"
	"github.com/hacs-community/hacs-agent/models"
)

// Install downloads and installs the repository. An empty version resolves
// via the normal precedence. Existing content is backed up first and
// restored when the download fails validation.
func (r *Repository) Install(ctx context.Context, version string) error {
	if _, err := r.Update(ctx, true); err != nil {
		return err
	}

	r.Validation.Reset()

	if !r.CanInstall() {
		return fmt.Errorf("%w: %s requires Home Assistant %s or newer", ErrIncompatible,
			r.Data.FullName, r.Manifest.Homeassistant)
	}

	if version == "" {
		version = r.VersionToInstall()
	}
	r.Ref = r.refFor(version)

	localPath := r.strategy.LocalPath(r)
	if localPath == "" {
		return fmt.Errorf("no local install path for %s", r.Data.FullName)
	}
	r.Content.LocalPath = localPath

	// Persistent directories survive reinstalls, stash them separately.
	var persistent *backup.Backup
	if r.Manifest.PersistentDirectory != "" {
		persistent = backup.NewWithRoot(
			filepath.Join(localPath, r.Manifest.PersistentDirectory),
			filepath.Join(os.TempDir(), "hacs_persistent_directory", r.Data.Name()),
			r.logger,
		)
		if err := persistent.Create(); err != nil {
			return fmt.Errorf("backup persistent directory of %s: %w", r.Data.FullName, err)
		}
	}

	var main *backup.Backup
	if r.Status.Installed && !r.Content.SingleFile {
		main = backup.New(localPath, r.logger)
		if err := main.Create(); err != nil {
			return fmt.Errorf("backup %s: %w", localPath, err)
		}
	}

	r.logger.Info("installing", "repository", r.String(), "version", version)

	if r.Manifest.ZipRelease && r.Manifest.Filename != "" && version != r.Data.DefaultBranch {
		r.downloadZip(ctx, version)
	} else {
		r.downloadContent(ctx, version)
	}

	if errs := r.Validation.Errors(); len(errs) > 0 {
		for _, e := range errs {
			r.logger.Error("download failed", "repository", r.String(), "error", e)
		}
		if main != nil && main.Created() {
			if err := main.Restore(); err != nil {
				r.logger.Error("could not restore backup", "repository", r.String(), "error", err)
			}
			main.Cleanup()
		}
		// The main backup was taken after the persistent content was moved
		// aside, so it has to come back regardless of the outcome.
		r.restorePersistent(persistent)
		return fmt.Errorf("installation of %s failed: %s", r.Data.FullName, strings.Join(errs, "; "))
	}

	if main != nil && main.Created() {
		main.Cleanup()
	}
	r.restorePersistent(persistent)

	r.Status.Installed = true
	r.Versions.InstalledCommit = r.Versions.AvailableCommit
	if version == r.Data.DefaultBranch {
		r.Versions.Installed = ""
	} else {
		r.Versions.Installed = version
	}
	r.Status.New = false
	r.Status.PendingRestart = r.strategy.RequiresRestart() &&
		!(r.Data.ConfigFlow && r.Status.FirstInstall)
	r.Status.FirstInstall = false

	r.logger.Info("installed", "repository", r.String(), "version", version)
	r.dispatch("install")
	return nil
}

func (r *Repository) restorePersistent(persistent *backup.Backup) {
	if persistent == nil || !persistent.Created() {
		return
	}
	if err := persistent.Restore(); err != nil {
		r.logger.Error("could not restore persistent directory", "repository", r.String(), "error", err)
	}
	persistent.Cleanup()
}

// Uninstall removes the installed content and clears the install state.
func (r *Repository) Uninstall(ctx context.Context) error {
	if err := r.removeLocal(); err != nil {
		return err
	}

	r.Status.Installed = false
	r.Status.PendingRestart = r.strategy.RequiresRestart()
	r.Status.FirstInstall = true
	r.Versions.Installed = ""
	r.Versions.InstalledCommit = ""

	r.logger.Info("uninstalled", "repository", r.String())
	r.dispatch("uninstall")
	return nil
}

// removeLocal deletes the installed files for this repository. Single file
// categories remove just their file so shared directories stay intact.
func (r *Repository) removeLocal() error {
	localPath := r.Content.LocalPath
	if localPath == "" {
		localPath = r.strategy.LocalPath(r)
	}
	if localPath == "" {
		return nil
	}

	if err := r.ensureWithinConfig(localPath); err != nil {
		return err
	}

	switch r.Data.Category {
	case models.CategoryPythonScript:
		if r.Data.FileName == "" {
			return nil
		}
		return removeIfExists(filepath.Join(localPath, r.Data.FileName))
	case models.CategoryTheme:
		name := r.Data.FileName
		if name == "" {
			name = r.Data.Name() + ".yaml"
		}
		return removeIfExists(filepath.Join(localPath, name))
	default:
		if _, err := os.Stat(localPath); os.IsNotExist(err) {
			return nil
		}
		return os.RemoveAll(localPath)
	}
}

// ensureWithinConfig guards against removing anything outside the configured
// config directory.
func (r *Repository) ensureWithinConfig(p string) error {
	if r.cfg == nil || r.cfg.Paths.Config == "" {
		return nil
	}
	root, err := filepath.Abs(r.cfg.Paths.Config)
	if err != nil {
		return err
	}
	target, err := filepath.Abs(p)
	if err != nil {
		return err
	}
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return fmt.Errorf("refusing to remove %s outside config directory %s", target, root)
	}
	return nil
}

func removeIfExists(p string) error {
	if _, err := os.Stat(p); os.IsNotExist(err) {
		return nil
	}
	return os.Remove(p)
}
