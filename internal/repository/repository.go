// Package repository implements the lifecycle state machine for community
// repositories: validate, register, update, install and uninstall, with
// category specific content resolution delegated to strategy objects.
package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hacs-community/hacs-agent/internal/config"
	"github.com/hacs-community/hacs-agent/internal/github"
	"github.com/hacs-community/hacs-agent/models"
)

// Client is the GitHub capability surface the lifecycle needs. The concrete
// implementation lives in internal/github; tests use fakes.
type Client interface {
	GetRepository(ctx context.Context, fullName string) (*models.RepositoryInfo, error)
	GetTree(ctx context.Context, fullName, ref string) ([]models.TreeFile, error)
	GetReleases(ctx context.Context, fullName string, limit int) ([]models.Release, error)
	GetContents(ctx context.Context, fullName, path, ref string) ([]byte, error)
	GetBranchHead(ctx context.Context, fullName, branch string) (string, error)
	RenderMarkdown(ctx context.Context, text string) (string, error)
	DownloadFile(ctx context.Context, url string) ([]byte, error)
}

// Blocklist is consulted during validation; blacklisted repositories are
// rejected before any content work happens.
type Blocklist interface {
	Contains(fullName string) bool
}

// Events receives lifecycle notifications (registration, install, uninstall,
// update). May be nil.
type Events interface {
	Dispatch(eventType string, payload map[string]any)
}

// EventRepository is the message type fired on repository lifecycle changes.
const EventRepository = "hacs/repository"

// Releases holds the fetched release state for a repository.
type Releases struct {
	Objects       []models.Release
	PublishedTags []string
	HasReleases   bool
}

// Validation accumulates download/validation errors for one operation.
// Appends may happen from concurrent download workers.
type Validation struct {
	mu   sync.Mutex
	errs []string
}

// Append records an error message.
func (v *Validation) Append(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errs = append(v.errs, fmt.Sprintf(format, args...))
}

// Errors returns a copy of the accumulated errors.
func (v *Validation) Errors() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.errs...)
}

// Success reports whether no errors were recorded.
func (v *Validation) Success() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.errs) == 0
}

// Reset clears the accumulated errors.
func (v *Validation) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.errs = nil
}

// Repository is one registered community repository and its lifecycle state.
// Within an update cycle repositories are processed sequentially; the struct
// itself is not safe for concurrent mutation.
type Repository struct {
	gh        Client
	cfg       *config.Config
	logger    *slog.Logger
	blocklist Blocklist
	events    Events
	strategy  ContentStrategy

	Data       models.RepositoryData
	Status     models.Status
	Versions   models.Versions
	Releases   Releases
	Manifest   models.Manifest
	Content    models.Content
	Tree       []models.TreeFile
	Validation *Validation

	// Ref is the git reference content will be fetched from, either a
	// branch name or "tags/<version>".
	Ref string

	// AdditionalInfo is the rendered readme/info markdown; only refreshed
	// when the upstream pushed_at timestamp changes.
	AdditionalInfo string

	forceBranch bool
}

// New creates a Repository for full_name in the given category.
func New(gh Client, cfg *config.Config, fullName string, category models.Category, logger *slog.Logger) (*Repository, error) {
	strategy, err := strategyFor(category)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Repository{
		gh:         gh,
		cfg:        cfg,
		logger:     logger,
		strategy:   strategy,
		Validation: &Validation{},
	}
	r.Data.FullName = fullName
	r.Data.Category = category
	r.Status.New = true
	r.Status.Tracked = true
	r.Status.FirstInstall = true
	return r, nil
}

// String renders the log prefix, e.g. "<Integration owner/repo>".
func (r *Repository) String() string {
	return fmt.Sprintf("<%s %s>", r.Data.Category.Title(), r.Data.FullName)
}

// SetBlocklist wires the blacklist check used during validation.
func (r *Repository) SetBlocklist(b Blocklist) { r.blocklist = b }

// SetEvents wires the lifecycle event sink.
func (r *Repository) SetEvents(e Events) { r.events = e }

// Category returns the repository category.
func (r *Repository) Category() models.Category { return r.Data.Category }

// Validate runs the full validation pass: fetch live metadata, releases,
// manifest and tree, then category specific structure checks.
func (r *Repository) Validate(ctx context.Context) error {
	r.Validation.Reset()

	r.logger.Debug("checking repository", "repository", r.String())
	if err := r.commonUpdateData(ctx, false); err != nil {
		return err
	}

	if err := r.strategy.Resolve(ctx, r); err != nil {
		return err
	}
	r.Content.LocalPath = r.strategy.LocalPath(r)

	if errs := r.Validation.Errors(); len(errs) > 0 {
		return fmt.Errorf("validation of %s failed: %s", r.Data.FullName, strings.Join(errs, "; "))
	}
	return nil
}

// Register validates the repository and records it as tracked. A non-empty
// ref pins the repository to that tag or branch.
func (r *Repository) Register(ctx context.Context, ref string) error {
	if ref != "" {
		r.Status.SelectedTag = ref
		r.forceBranch = true
		r.Ref = r.refFor(ref)
	}

	if err := r.Validate(ctx); err != nil {
		return err
	}

	r.Content.LocalPath = r.strategy.LocalPath(r)
	r.Status.Tracked = true

	r.dispatch("registration")
	return nil
}

// Update re-fetches upstream state. It returns true when anything changed.
// When the upstream pushed_at timestamp is unchanged (and force is false)
// all downstream work, including info markdown rendering, is skipped.
func (r *Repository) Update(ctx context.Context, force bool) (bool, error) {
	r.logger.Debug("getting repository information", "repository", r.String())

	r.Validation.Reset()

	previousPush := r.Data.PushedAt
	if err := r.commonUpdateData(ctx, force); err != nil {
		return false, err
	}

	if !force && r.Data.PushedAt.Equal(previousPush) && !previousPush.IsZero() {
		r.logger.Debug("no remote changes, skipping", "repository", r.String())
		return false, nil
	}

	if err := r.strategy.Resolve(ctx, r); err != nil {
		return true, err
	}
	r.Content.LocalPath = r.strategy.LocalPath(r)

	r.updateAdditionalInfo(ctx)

	if r.Status.Installed {
		r.dispatch("update")
	}
	return true, nil
}

// commonUpdateData fetches metadata, releases, the ref, the tree and the
// hacs.json manifest. Validation errors are recorded and the first fatal
// problem is returned.
func (r *Repository) commonUpdateData(ctx context.Context, force bool) error {
	info, err := r.gh.GetRepository(ctx, r.Data.FullName)
	if err != nil {
		r.Validation.Append("Repository %s does not exist.", r.Data.FullName)
		return err
	}
	r.Data.ApplyInfo(info)

	if r.Data.Archived {
		r.Validation.Append("Repository is archived.")
		return fmt.Errorf("%w: %s", ErrArchived, r.Data.FullName)
	}

	if r.blocklist != nil && r.blocklist.Contains(strings.ToLower(r.Data.FullName)) {
		r.Validation.Append("Repository has been requested to be removed.")
		return fmt.Errorf("%w: %s", ErrBlacklisted, r.Data.FullName)
	}

	if err := r.fetchReleases(ctx); err != nil {
		return err
	}

	if branch := r.defaultBranch(); branch != "" {
		if head, err := r.gh.GetBranchHead(ctx, r.Data.FullName, branch); err == nil {
			r.Data.LastCommit = head
			r.Versions.AvailableCommit = head
		} else if errors.Is(err, github.ErrRateLimited) {
			return err
		}
	}

	if !r.forceBranch {
		r.Ref = r.refFor(r.VersionToInstall())
	}

	if r.Releases.HasReleases {
		for _, release := range r.Releases.Objects {
			if release.TagName == r.RefName() && len(release.Assets) > 0 {
				r.Data.Downloads = release.Assets[0].DownloadCount
			}
		}
	}

	if err := r.fetchTree(ctx, false); err != nil {
		return err
	}

	if r.treeContains(models.ManifestFile) {
		if data, err := r.gh.GetContents(ctx, r.Data.FullName, models.ManifestFile, r.RefName()); err == nil {
			if manifest, err := models.ParseManifest(data); err == nil {
				r.Manifest = *manifest
			}
		}
	}

	return nil
}

// fetchReleases populates the release state, honouring show_beta and the
// configured release limit.
func (r *Repository) fetchReleases(ctx context.Context) error {
	limit := 5
	if r.cfg != nil && r.cfg.Options.ReleaseLimit > 0 {
		limit = r.cfg.Options.ReleaseLimit
	}

	releases, err := r.gh.GetReleases(ctx, r.Data.FullName, limit)
	if err != nil {
		if errors.Is(err, github.ErrRateLimited) {
			return err
		}
		r.Releases = Releases{}
		return nil
	}

	filtered := releases[:0:0]
	for _, release := range releases {
		if release.Prerelease && !r.Status.ShowBeta {
			continue
		}
		filtered = append(filtered, release)
	}

	if len(filtered) == 0 {
		r.Releases = Releases{}
		return nil
	}

	tags := make([]string, 0, len(filtered))
	for _, release := range filtered {
		tags = append(tags, release.TagName)
	}

	r.Releases = Releases{
		Objects:       filtered,
		PublishedTags: tags,
		HasReleases:   true,
	}
	r.Versions.Available = filtered[0].TagName
	return nil
}

// fetchTree loads the recursive tree at the current ref. A deleted selected
// tag or branch falls back to the default branch once.
func (r *Repository) fetchTree(ctx context.Context, retried bool) error {
	tree, err := r.gh.GetTree(ctx, r.Data.FullName, r.RefName())
	if err != nil {
		if errors.Is(err, github.ErrNotFound) && !retried && r.Status.SelectedTag != "" {
			r.Status.SelectedTag = ""
			r.forceBranch = false
			r.Ref = r.refFor(r.VersionToInstall())
			r.logger.Warn("selected version has been removed, falling back to default",
				"repository", r.String(), "ref", r.Ref)
			return r.fetchTree(ctx, true)
		}
		r.Validation.Append("Could not fetch repository tree.")
		return err
	}
	if len(tree) == 0 {
		r.Validation.Append("Repository tree is empty.")
		return fmt.Errorf("%w: no files in tree of %s", ErrNotCompliant, r.Data.FullName)
	}
	r.Tree = tree
	return nil
}

// updateAdditionalInfo renders the repository's info/readme file. Only called
// when the repository actually changed upstream.
func (r *Repository) updateAdditionalInfo(ctx context.Context) {
	filename := r.infoFile()
	if filename == "" {
		r.AdditionalInfo = ""
		return
	}

	data, err := r.gh.GetContents(ctx, r.Data.FullName, filename, r.RefName())
	if err != nil {
		r.logger.Debug("could not fetch info file", "repository", r.String(), "file", filename, "error", err)
		return
	}

	rendered, err := r.gh.RenderMarkdown(ctx, string(data))
	if err != nil {
		r.logger.Debug("could not render info file", "repository", r.String(), "error", err)
		return
	}

	// Inline SVG can break the frontend panel.
	rendered = strings.ReplaceAll(rendered, "<svg", "<disabled")
	rendered = strings.ReplaceAll(rendered, "</svg", "</disabled")
	r.AdditionalInfo = rendered
}

func (r *Repository) infoFile() string {
	var candidates []string
	if r.Manifest.RenderReadme {
		candidates = []string{"readme", "readme.md", "README", "README.md", "README.MD"}
	} else {
		candidates = []string{"info", "info.md", "INFO", "INFO.md", "INFO.MD"}
	}
	for _, name := range candidates {
		if r.treeContains(name) {
			return name
		}
	}
	return ""
}

func (r *Repository) treeContains(path string) bool {
	for _, f := range r.Tree {
		if f.Path == path {
			return true
		}
	}
	return false
}

func (r *Repository) defaultBranch() string {
	if r.Data.DefaultBranch != "" {
		return r.Data.DefaultBranch
	}
	return ""
}

// LastFetched timestamps are derived from PushedAt; the repository has no
// separate fetched-at clock.
func (r *Repository) LastUpdated() time.Time { return r.Data.PushedAt }

func (r *Repository) dispatch(action string) {
	if r.events == nil {
		return
	}
	r.events.Dispatch(EventRepository, map[string]any{
		"action":        action,
		"repository":    r.Data.FullName,
		"repository_id": r.Data.ID,
	})
}
