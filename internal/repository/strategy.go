package repository

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/hacs-community/hacs-agent/models"
)

// ContentStrategy encapsulates the category specific rules: where content
// lives in the upstream tree, where it lands locally, and what structure the
// repository must have to be installable.
type ContentStrategy interface {
	Category() models.Category
	// LocalPath returns the install destination under the configured
	// config directory.
	LocalPath(r *Repository) string
	// Resolve determines the remote content root and validates the
	// repository structure at the current ref.
	Resolve(ctx context.Context, r *Repository) error
	// RequiresRestart reports whether installing this category needs a
	// host restart to take effect.
	RequiresRestart() bool
}

func strategyFor(category models.Category) (ContentStrategy, error) {
	switch category {
	case models.CategoryIntegration:
		return &integrationStrategy{}, nil
	case models.CategoryPlugin:
		return &pluginStrategy{}, nil
	case models.CategoryTheme:
		return &themeStrategy{}, nil
	case models.CategoryPythonScript:
		return &pythonScriptStrategy{}, nil
	case models.CategoryAppDaemon:
		return &appDaemonStrategy{}, nil
	case models.CategoryNetDaemon:
		return &netDaemonStrategy{}, nil
	default:
		return nil, fmt.Errorf("unknown category %q", category)
	}
}

// firstDirectoryIn returns the first tree entry that is a directory directly
// under parent. An empty parent means the tree root.
func firstDirectoryIn(tree []models.TreeFile, parent string) string {
	for _, f := range tree {
		if f.Dir && f.Parent() == parent {
			return f.Path
		}
	}
	return ""
}

// filesUnderWithSuffix returns file paths directly under parent matching the
// suffix, case insensitively.
func filesUnderWithSuffix(tree []models.TreeFile, parent, suffix string) []string {
	var out []string
	for _, f := range tree {
		if f.Dir || f.Parent() != parent {
			continue
		}
		if strings.HasSuffix(strings.ToLower(f.Path), suffix) {
			out = append(out, f.Path)
		}
	}
	return out
}

func treeHasDir(tree []models.TreeFile, dir string) bool {
	for _, f := range tree {
		if f.Dir && f.Path == dir {
			return true
		}
	}
	return false
}

func treeHasFile(tree []models.TreeFile, p string) bool {
	for _, f := range tree {
		if !f.Dir && f.Path == p {
			return true
		}
	}
	return false
}

func joinRemote(parts ...string) string {
	return path.Join(parts...)
}
