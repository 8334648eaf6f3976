package repository

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/hacs-community/hacs-agent/models"
)

type pythonScriptStrategy struct{}

func (s *pythonScriptStrategy) Category() models.Category { return models.CategoryPythonScript }

func (s *pythonScriptStrategy) RequiresRestart() bool { return false }

func (s *pythonScriptStrategy) LocalPath(r *Repository) string {
	return filepath.Join(r.cfg.Paths.Config, "python_scripts")
}

// A python_script repository ships exactly one script; only the matching .py
// file is installed.
func (s *pythonScriptStrategy) Resolve(ctx context.Context, r *Repository) error {
	root := "python_scripts"
	if r.Manifest.ContentInRoot {
		root = ""
	}

	files := filesUnderWithSuffix(r.Tree, root, ".py")
	if len(files) == 0 {
		r.Validation.Append("Repository has no python files.")
		return fmt.Errorf("%w: no python scripts in %s", ErrNotCompliant, r.Data.FullName)
	}

	r.Content.RemotePath = root
	r.Content.SingleFile = true
	r.Content.Resolved = true
	r.Data.FileName = path.Base(files[0])
	return nil
}
