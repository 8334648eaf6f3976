package agent

import (
	"context"

	"github.com/hacs-community/hacs-agent/internal/repository"
	"github.com/hacs-community/hacs-agent/internal/storage"
)

// Restore rebuilds the in-memory registry from persisted records. Restored
// repositories carry their saved state until the next update cycle refreshes
// them.
func (o *Orchestrator) Restore(ctx context.Context) error {
	records, err := o.store.LoadRepositories(ctx)
	if err != nil {
		return err
	}

	for _, record := range records {
		r, err := repository.New(o.gh, o.cfg, record.FullName, record.Category, o.logger)
		if err != nil {
			o.logger.Warn("skipping persisted repository",
				"repository", record.FullName, "error", err)
			continue
		}
		r.SetBlocklist(o)
		if o.bus != nil {
			r.SetEvents(o.bus)
		}
		applyRecord(r, record)
		o.track(r)
	}

	o.logger.Info("registry restored", "repositories", len(records))
	return nil
}

// Save persists the full registry.
func (o *Orchestrator) Save(ctx context.Context) error {
	repos := o.List()
	records := make([]storage.RepositoryRecord, 0, len(repos))
	for _, r := range repos {
		records = append(records, toRecord(r))
	}
	return o.store.SaveRepositories(ctx, records)
}

func toRecord(r *repository.Repository) storage.RepositoryRecord {
	return storage.RepositoryRecord{
		ID:               r.Data.ID,
		FullName:         r.Data.FullName,
		Category:         r.Data.Category,
		Description:      r.Data.Description,
		DefaultBranch:    r.Data.DefaultBranch,
		Domain:           r.Data.Domain,
		FileName:         r.Data.FileName,
		Stars:            r.Data.Stars,
		Downloads:        r.Data.Downloads,
		PushedAt:         r.Data.PushedAt,
		LastCommit:       r.Data.LastCommit,
		Installed:        r.Status.Installed,
		New:              r.Status.New,
		Hidden:           r.Status.Hidden,
		SelectedTag:      r.Status.SelectedTag,
		ShowBeta:         r.Status.ShowBeta,
		FirstInstall:     r.Status.FirstInstall,
		VersionInstalled: r.Versions.Installed,
		InstalledCommit:  r.Versions.InstalledCommit,
		LastReleaseTag:   r.Versions.Available,
	}
}

func applyRecord(r *repository.Repository, record storage.RepositoryRecord) {
	r.Data.ID = record.ID
	r.Data.Description = record.Description
	r.Data.DefaultBranch = record.DefaultBranch
	r.Data.Domain = record.Domain
	r.Data.FileName = record.FileName
	r.Data.Stars = record.Stars
	r.Data.Downloads = record.Downloads
	r.Data.PushedAt = record.PushedAt
	r.Data.LastCommit = record.LastCommit
	r.Status.Installed = record.Installed
	r.Status.New = record.New
	r.Status.Hidden = record.Hidden
	r.Status.Tracked = true
	r.Status.SelectedTag = record.SelectedTag
	r.Status.ShowBeta = record.ShowBeta
	r.Status.FirstInstall = record.FirstInstall
	r.Versions.Installed = record.VersionInstalled
	r.Versions.InstalledCommit = record.InstalledCommit
	r.Versions.Available = record.LastReleaseTag
}
