package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/hacs-community/hacs-agent/models"
)

type integrationStrategy struct{}

// integrationManifest is the subset of a component manifest.json the
// lifecycle cares about.
type integrationManifest struct {
	Domain     string   `json:"domain"`
	Name       string   `json:"name"`
	CodeOwners []string `json:"codeowners"`
	ConfigFlow bool     `json:"config_flow"`
}

func (s *integrationStrategy) Category() models.Category { return models.CategoryIntegration }

func (s *integrationStrategy) RequiresRestart() bool { return true }

func (s *integrationStrategy) LocalPath(r *Repository) string {
	domain := r.Data.Domain
	if domain == "" {
		domain = r.Data.Name()
	}
	return filepath.Join(r.cfg.Paths.Config, "custom_components", domain)
}

func (s *integrationStrategy) Resolve(ctx context.Context, r *Repository) error {
	if r.Manifest.ContentInRoot {
		r.Content.RemotePath = ""
	} else {
		if !treeHasDir(r.Tree, "custom_components") {
			r.Validation.Append("Repository structure for %s is not compliant.", r.RefName())
			return fmt.Errorf("%w: %s has no custom_components directory", ErrNotCompliant, r.Data.FullName)
		}
		sub := firstDirectoryIn(r.Tree, "custom_components")
		if sub == "" {
			r.Validation.Append("Repository structure for %s is not compliant.", r.RefName())
			return fmt.Errorf("%w: %s has an empty custom_components directory", ErrNotCompliant, r.Data.FullName)
		}
		r.Content.RemotePath = sub
	}
	r.Content.Resolved = true
	r.Content.SingleFile = false

	manifestPath := joinRemote(r.Content.RemotePath, "manifest.json")
	if !treeHasFile(r.Tree, manifestPath) {
		r.Validation.Append("Repository has no manifest.json file.")
		return fmt.Errorf("%w: %s has no manifest.json", ErrNotCompliant, r.Data.FullName)
	}

	data, err := r.gh.GetContents(ctx, r.Data.FullName, manifestPath, r.RefName())
	if err != nil {
		r.Validation.Append("Could not read manifest.json.")
		return err
	}

	var manifest integrationManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		r.Validation.Append("manifest.json is not valid JSON.")
		return fmt.Errorf("parse manifest.json of %s: %w", r.Data.FullName, err)
	}

	r.Data.Domain = manifest.Domain
	r.Data.ManifestName = manifest.Name
	r.Data.ConfigFlow = manifest.ConfigFlow
	r.Data.Authors = manifest.CodeOwners
	return nil
}
