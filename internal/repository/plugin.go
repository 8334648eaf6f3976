package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hacs-community/hacs-agent/models"
)

type pluginStrategy struct{}

func (s *pluginStrategy) Category() models.Category { return models.CategoryPlugin }

func (s *pluginStrategy) RequiresRestart() bool { return false }

func (s *pluginStrategy) LocalPath(r *Repository) string {
	return filepath.Join(r.cfg.Paths.Config, "www", "community", r.Data.Name())
}

// fileNameCandidates lists the javascript file names a plugin may ship under,
// derived from the repository name or overridden by the manifest.
func (s *pluginStrategy) fileNameCandidates(r *Repository) []string {
	if r.Manifest.Filename != "" {
		return []string{r.Manifest.Filename}
	}
	name := r.Data.Name()
	candidates := []string{name + ".js"}
	if stripped := strings.TrimPrefix(name, "lovelace-"); stripped != name {
		candidates = append(candidates, stripped+".js")
	}
	candidates = append(candidates, name+".umd.js", name+"-bundle.js")
	return candidates
}

// Resolve searches the candidate file names through the plugin locations in
// order: the dist directory, then release assets, then the repository root.
// The first location that yields a match wins.
func (s *pluginStrategy) Resolve(ctx context.Context, r *Repository) error {
	candidates := s.fileNameCandidates(r)

	locations := []string{"dist", "release", ""}
	if r.Manifest.ContentInRoot {
		locations = []string{""}
	}

	for _, location := range locations {
		if location == "release" {
			if !r.Releases.HasReleases {
				continue
			}
			for _, asset := range r.Releases.Objects[0].Assets {
				for _, name := range candidates {
					if asset.Name == name {
						r.Data.FileName = name
						r.Content.RemotePath = "release"
						r.Content.SingleFile = true
						r.Content.Resolved = true
						return nil
					}
				}
			}
			continue
		}

		for _, name := range candidates {
			if treeHasFile(r.Tree, joinRemote(location, name)) {
				r.Data.FileName = name
				r.Content.RemotePath = location
				r.Content.SingleFile = false
				r.Content.Resolved = true
				return nil
			}
		}
	}

	r.Validation.Append("No plugin file found, looked for %s.", strings.Join(candidates, ", "))
	return fmt.Errorf("%w: no plugin file in %s", ErrNotCompliant, r.Data.FullName)
}
