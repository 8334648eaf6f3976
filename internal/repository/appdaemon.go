package repository

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/hacs-community/hacs-agent/models"
)

type appDaemonStrategy struct{}

func (s *appDaemonStrategy) Category() models.Category { return models.CategoryAppDaemon }

func (s *appDaemonStrategy) RequiresRestart() bool { return false }

func (s *appDaemonStrategy) LocalPath(r *Repository) string {
	name := path.Base(r.Content.RemotePath)
	if r.Content.RemotePath == "" {
		name = r.Data.Name()
	}
	return filepath.Join(r.cfg.Paths.Config, "appdaemon", "apps", name)
}

func (s *appDaemonStrategy) Resolve(ctx context.Context, r *Repository) error {
	if !treeHasDir(r.Tree, "apps") {
		r.Validation.Append("Repository structure for %s is not compliant.", r.RefName())
		return fmt.Errorf("%w: %s has no apps directory", ErrNotCompliant, r.Data.FullName)
	}

	sub := firstDirectoryIn(r.Tree, "apps")
	if sub == "" {
		r.Validation.Append("Repository structure for %s is not compliant.", r.RefName())
		return fmt.Errorf("%w: %s has an empty apps directory", ErrNotCompliant, r.Data.FullName)
	}

	if len(treeFilesWithin(r.Tree, sub, ".py")) == 0 {
		r.Validation.Append("Repository has no python files.")
		return fmt.Errorf("%w: no python files in %s", ErrNotCompliant, r.Data.FullName)
	}

	r.Content.RemotePath = sub
	r.Content.SingleFile = false
	r.Content.Resolved = true
	return nil
}
