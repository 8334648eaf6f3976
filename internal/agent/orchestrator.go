// Package agent coordinates the repository registry: startup, scheduled
// update cycles, default list discovery and the blacklist.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/hacs-community/hacs-agent/internal/config"
	"github.com/hacs-community/hacs-agent/internal/events"
	"github.com/hacs-community/hacs-agent/internal/github"
	"github.com/hacs-community/hacs-agent/internal/repository"
	"github.com/hacs-community/hacs-agent/internal/storage"
	"github.com/hacs-community/hacs-agent/models"
)

const (
	// defaultListsRepository holds the curated per-category lists and the
	// blacklist.
	defaultListsRepository = "hacs/default"

	installedCycle = "@every 30m"
	fullCycle      = "@every 500m"

	rateLimitRetryDelay = 15 * time.Minute
)

// Orchestrator owns the registry and runs the update cycles.
type Orchestrator struct {
	cfg    *config.Config
	gh     repository.Client
	store  storage.Store
	bus    *events.Bus
	logger *slog.Logger
	cron   *cron.Cron

	mu           sync.Mutex
	repositories map[string]*repository.Repository // lower full_name
	byID         map[int64]string
	blacklist    map[string]bool

	startupDone bool
}

// New creates an orchestrator. The bus may be nil.
func New(cfg *config.Config, gh repository.Client, store storage.Store, bus *events.Bus, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:          cfg,
		gh:           gh,
		store:        store,
		bus:          bus,
		logger:       logger,
		cron:         cron.New(),
		repositories: map[string]*repository.Repository{},
		byID:         map[int64]string{},
		blacklist:    map[string]bool{},
	}
}

// Contains reports whether a repository is blacklisted. Implements the
// blocklist consulted during validation.
func (o *Orchestrator) Contains(fullName string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.blacklist[strings.ToLower(fullName)]
}

// Startup restores persisted state, loads the default lists and runs the
// initial update cycle, then starts the periodic schedules. A rate limited
// startup is retried after a delay instead of failing.
func (o *Orchestrator) Startup(ctx context.Context) error {
	o.logger.Info("starting up", "storage", o.store.Driver())

	if err := o.Restore(ctx); err != nil {
		return err
	}

	if err := o.initialCycle(ctx); err != nil {
		if errors.Is(err, github.ErrRateLimited) {
			o.logger.Warn("GitHub rate limit hit during startup, retrying later",
				"delay", rateLimitRetryDelay)
			time.AfterFunc(rateLimitRetryDelay, func() {
				if err := o.Startup(context.Background()); err != nil {
					o.logger.Error("delayed startup failed", "error", err)
				}
			})
			return nil
		}
		return err
	}

	if !o.startupDone {
		if _, err := o.cron.AddFunc(installedCycle, func() {
			o.runCycle(context.Background(), true)
		}); err != nil {
			return fmt.Errorf("scheduling installed cycle: %w", err)
		}
		if _, err := o.cron.AddFunc(fullCycle, func() {
			o.runCycle(context.Background(), false)
		}); err != nil {
			return fmt.Errorf("scheduling full cycle: %w", err)
		}
		o.cron.Start()
		o.startupDone = true
	}

	o.dispatchStatus("startup")
	o.logger.Info("startup done", "repositories", len(o.List()))
	return nil
}

// Stop halts the schedules.
func (o *Orchestrator) Stop() {
	o.cron.Stop()
}

func (o *Orchestrator) initialCycle(ctx context.Context) error {
	if err := o.loadBlacklist(ctx); err != nil {
		if errors.Is(err, github.ErrRateLimited) {
			return err
		}
		o.logger.Warn("could not load blacklist", "error", err)
	}

	if err := o.loadDefaultLists(ctx); err != nil {
		if errors.Is(err, github.ErrRateLimited) {
			return err
		}
		o.logger.Warn("could not load default repositories", "error", err)
	}

	o.runCycleErr(ctx, false)
	return o.Save(ctx)
}

// runCycle updates repositories sequentially. With installedOnly, only
// installed repositories are refreshed.
func (o *Orchestrator) runCycle(ctx context.Context, installedOnly bool) {
	o.runCycleErr(ctx, installedOnly)
	if err := o.Save(ctx); err != nil {
		o.logger.Error("could not persist registry", "error", err)
	}
}

func (o *Orchestrator) runCycleErr(ctx context.Context, installedOnly bool) {
	repos := o.List()
	o.logger.Info("running update cycle", "installed_only", installedOnly, "repositories", len(repos))

	for _, r := range repos {
		if installedOnly && !r.Status.Installed {
			continue
		}
		// Blacklisted repositories are skipped outright, no API calls.
		if o.Contains(r.Data.FullName) {
			continue
		}

		if _, err := r.Update(ctx, false); err != nil {
			// One bad repository never aborts the cycle.
			o.logger.Error("update failed", "repository", r.String(), "error", err)
			if errors.Is(err, repository.ErrArchived) || errors.Is(err, repository.ErrNotCompliant) {
				o.addToBlacklist(r.Data.FullName)
			}
			if errors.Is(err, github.ErrRateLimited) {
				o.logger.Warn("rate limited, aborting cycle")
				return
			}
		}
	}

	o.dispatchStatus("cycle_done")
}

// Register creates, validates and tracks a new repository. A non-empty ref
// pins it to that tag or branch.
func (o *Orchestrator) Register(ctx context.Context, fullName string, category models.Category, ref string) (*repository.Repository, error) {
	key := strings.ToLower(fullName)

	if o.Contains(key) {
		return nil, fmt.Errorf("%w: %s", repository.ErrBlacklisted, fullName)
	}
	if existing := o.Get(fullName); existing != nil {
		return existing, nil
	}

	r, err := repository.New(o.gh, o.cfg, fullName, category, o.logger)
	if err != nil {
		return nil, err
	}
	r.SetBlocklist(o)
	if o.bus != nil {
		r.SetEvents(o.bus)
	}

	if err := r.Register(ctx, ref); err != nil {
		return nil, err
	}

	o.track(r)
	if err := o.Save(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// OrgLister is the optional client capability used by RegisterOrg.
type OrgLister interface {
	ListOrgRepositories(ctx context.Context, org string) ([]string, error)
}

// RegisterOrg tracks every repository of an organisation in the given
// category. Repositories that fail validation are skipped and reported.
func (o *Orchestrator) RegisterOrg(ctx context.Context, org string, category models.Category) (int, error) {
	lister, ok := o.gh.(OrgLister)
	if !ok {
		return 0, fmt.Errorf("client does not support organisation listing")
	}

	names, err := lister.ListOrgRepositories(ctx, org)
	if err != nil {
		return 0, err
	}

	registered := 0
	for _, name := range names {
		if _, err := o.Register(ctx, name, category, ""); err != nil {
			if errors.Is(err, github.ErrRateLimited) {
				return registered, err
			}
			o.logger.Warn("could not register repository", "repository", name, "error", err)
			continue
		}
		registered++
	}
	return registered, nil
}

// Install installs a tracked repository, registering it on the fly when
// needed.
func (o *Orchestrator) Install(ctx context.Context, fullName string, category models.Category, version string) (*repository.Repository, error) {
	r := o.Get(fullName)
	if r == nil {
		var err error
		r, err = o.Register(ctx, fullName, category, "")
		if err != nil {
			return nil, err
		}
	}

	if err := r.Install(ctx, version); err != nil {
		return r, err
	}
	return r, o.Save(ctx)
}

// Uninstall removes the installed content of a tracked repository.
func (o *Orchestrator) Uninstall(ctx context.Context, fullName string) error {
	r := o.Get(fullName)
	if r == nil {
		return fmt.Errorf("repository %s is not tracked", fullName)
	}
	if err := r.Uninstall(ctx); err != nil {
		return err
	}
	return o.Save(ctx)
}

// Remove uninstalls (when needed) and drops the repository from the
// registry.
func (o *Orchestrator) Remove(ctx context.Context, fullName string) error {
	r := o.Get(fullName)
	if r == nil {
		return fmt.Errorf("repository %s is not tracked", fullName)
	}
	if r.Status.Installed {
		if err := r.Uninstall(ctx); err != nil {
			return err
		}
	}

	key := strings.ToLower(fullName)
	o.mu.Lock()
	delete(o.repositories, key)
	delete(o.byID, r.Data.ID)
	o.mu.Unlock()

	return o.Save(ctx)
}

// Get returns a tracked repository by full name, or nil.
func (o *Orchestrator) Get(fullName string) *repository.Repository {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.repositories[strings.ToLower(fullName)]
}

// GetByID returns a tracked repository by its numeric GitHub id, or nil.
func (o *Orchestrator) GetByID(id int64) *repository.Repository {
	o.mu.Lock()
	defer o.mu.Unlock()
	if key, ok := o.byID[id]; ok {
		return o.repositories[key]
	}
	return nil
}

// List returns all tracked repositories sorted by full name.
func (o *Orchestrator) List() []*repository.Repository {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*repository.Repository, 0, len(o.repositories))
	for _, r := range o.repositories {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Data.FullName < out[j].Data.FullName
	})
	return out
}

func (o *Orchestrator) track(r *repository.Repository) {
	key := strings.ToLower(r.Data.FullName)
	o.mu.Lock()
	o.repositories[key] = r
	if r.Data.ID != 0 {
		o.byID[r.Data.ID] = key
	}
	o.mu.Unlock()
}

func (o *Orchestrator) addToBlacklist(fullName string) {
	key := strings.ToLower(fullName)
	o.mu.Lock()
	o.blacklist[key] = true
	o.mu.Unlock()
	o.logger.Warn("repository blacklisted", "repository", fullName)
}

// loadBlacklist fetches the curated blacklist and removes untracked entries
// from the registry. Installed repositories are kept but stay blocked from
// updates.
func (o *Orchestrator) loadBlacklist(ctx context.Context) error {
	names, err := o.fetchList(ctx, "blacklist")
	if err != nil {
		return err
	}

	for _, name := range names {
		key := strings.ToLower(name)
		o.mu.Lock()
		o.blacklist[key] = true
		r := o.repositories[key]
		o.mu.Unlock()

		if r != nil && !r.Status.Installed {
			o.mu.Lock()
			delete(o.repositories, key)
			delete(o.byID, r.Data.ID)
			o.mu.Unlock()
		}
	}
	return nil
}

// loadDefaultLists registers every repository from the curated per-category
// lists that is not yet tracked.
func (o *Orchestrator) loadDefaultLists(ctx context.Context) error {
	for _, category := range o.cfg.Categories() {
		names, err := o.fetchList(ctx, string(category))
		if err != nil {
			if errors.Is(err, github.ErrRateLimited) {
				return err
			}
			o.logger.Warn("could not fetch default list", "category", category, "error", err)
			continue
		}

		for _, name := range names {
			if o.Contains(name) || o.Get(name) != nil {
				continue
			}
			if _, err := o.Register(ctx, name, category, ""); err != nil {
				if errors.Is(err, github.ErrRateLimited) {
					return err
				}
				o.logger.Warn("could not register default repository",
					"repository", name, "error", err)
				o.addToBlacklist(name)
			}
		}
	}
	return nil
}

// fetchList reads one JSON list file from the default lists repository.
func (o *Orchestrator) fetchList(ctx context.Context, name string) ([]string, error) {
	data, err := o.gh.GetContents(ctx, defaultListsRepository, name, "master")
	if err != nil {
		return nil, err
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, fmt.Errorf("parsing default list %s: %w", name, err)
	}
	return names, nil
}

func (o *Orchestrator) dispatchStatus(stage string) {
	if o.bus == nil {
		return
	}
	o.bus.Dispatch(events.TypeStatus, map[string]any{"stage": stage})
}
