package repository

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/hacs-community/hacs-agent/models"
)

type netDaemonStrategy struct{}

func (s *netDaemonStrategy) Category() models.Category { return models.CategoryNetDaemon }

func (s *netDaemonStrategy) RequiresRestart() bool { return false }

func (s *netDaemonStrategy) LocalPath(r *Repository) string {
	name := path.Base(r.Content.RemotePath)
	if r.Content.RemotePath == "" {
		name = r.Data.Name()
	}
	return filepath.Join(r.cfg.Paths.Config, "netdaemon", "apps", name)
}

func (s *netDaemonStrategy) Resolve(ctx context.Context, r *Repository) error {
	if !treeHasDir(r.Tree, "apps") {
		r.Validation.Append("Repository structure for %s is not compliant.", r.RefName())
		return fmt.Errorf("%w: %s has no apps directory", ErrNotCompliant, r.Data.FullName)
	}

	sub := firstDirectoryIn(r.Tree, "apps")
	if sub == "" {
		r.Validation.Append("Repository structure for %s is not compliant.", r.RefName())
		return fmt.Errorf("%w: %s has an empty apps directory", ErrNotCompliant, r.Data.FullName)
	}

	if len(treeFilesWithin(r.Tree, sub, ".cs")) == 0 {
		r.Validation.Append("Repository has no C# files.")
		return fmt.Errorf("%w: no C# files in %s", ErrNotCompliant, r.Data.FullName)
	}

	r.Content.RemotePath = sub
	r.Content.SingleFile = false
	r.Content.Resolved = true
	return nil
}

// treeFilesWithin returns file paths anywhere under prefix matching the
// suffix, case insensitively.
func treeFilesWithin(tree []models.TreeFile, prefix, suffix string) []string {
	var out []string
	for _, f := range tree {
		if f.Dir {
			continue
		}
		if !strings.HasPrefix(f.Path, prefix+"/") && f.Path != prefix {
			continue
		}
		if strings.HasSuffix(strings.ToLower(f.Path), suffix) {
			out = append(out, f.Path)
		}
	}
	return out
}
