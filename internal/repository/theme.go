package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hacs-community/hacs-agent/models"
)

type themeStrategy struct{}

func (s *themeStrategy) Category() models.Category { return models.CategoryTheme }

func (s *themeStrategy) RequiresRestart() bool { return false }

// Theme files are dropped directly into the themes directory so they load as
// themes/<name>.yaml.
func (s *themeStrategy) LocalPath(r *Repository) string {
	return filepath.Join(r.cfg.Paths.Config, "themes")
}

func (s *themeStrategy) Resolve(ctx context.Context, r *Repository) error {
	root := "themes"
	if r.Manifest.ContentInRoot {
		root = ""
	}

	files := filesUnderWithSuffix(r.Tree, root, ".yaml")
	if len(files) == 0 {
		r.Validation.Append("Repository has no YAML theme files.")
		return fmt.Errorf("%w: no theme files in %s", ErrNotCompliant, r.Data.FullName)
	}

	r.Content.RemotePath = root
	r.Content.SingleFile = false
	r.Content.Resolved = true
	if r.Data.FileName == "" {
		r.Data.FileName = strings.TrimPrefix(strings.TrimPrefix(files[0], root), "/")
	}
	return nil
}
