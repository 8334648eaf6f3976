package models

import (
	"encoding/json"
	"fmt"
)

// ManifestFile is the per-repository metadata file HACS reads from the
// upstream tree to control content resolution.
const ManifestFile = "hacs.json"

// Manifest holds the contents of a repository's hacs.json file.
type Manifest struct {
	Name                string     `json:"name,omitempty"`
	ContentInRoot       bool       `json:"content_in_root,omitempty"`
	Filename            string     `json:"filename,omitempty"`
	ZipRelease          bool       `json:"zip_release,omitempty"`
	PersistentDirectory string     `json:"persistent_directory,omitempty"`
	HideDefaultBranch   bool       `json:"hide_default_branch,omitempty"`
	RenderReadme        bool       `json:"render_readme,omitempty"`
	Country             StringList `json:"country,omitempty"`

	// Homeassistant is the minimum host version required to install.
	Homeassistant string `json:"homeassistant,omitempty"`
	// Hacs is the minimum agent version required to install.
	Hacs string `json:"hacs,omitempty"`
}

// ParseManifest decodes a hacs.json payload.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("missing manifest data")
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ManifestFile, err)
	}
	return &m, nil
}

// StringList accepts either a single JSON string or a list of strings.
// Repositories in the wild use both forms for the "country" key.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = StringList{single}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = StringList(many)
	return nil
}
