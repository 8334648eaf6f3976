package repository

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	cp "github.com/otiai10/copy"
	"go.yaml.in/yaml/v3"
	"golang.org/x/sync/errgroup"

	"github.com/hacs-community/hacs-agent/internal/github"
	"github.com/hacs-community/hacs-agent/models"
)

const downloadWorkers = 10

// shouldTryReleases reports whether content should come from release assets
// rather than the repository tree.
func (r *Repository) shouldTryReleases() bool {
	if r.Manifest.ZipRelease && strings.HasSuffix(r.Manifest.Filename, ".zip") &&
		r.Ref != r.Data.DefaultBranch {
		return true
	}
	if r.Ref == r.Data.DefaultBranch {
		return false
	}
	if r.Data.Category != models.CategoryPlugin && r.Data.Category != models.CategoryTheme {
		return false
	}
	return r.Releases.HasReleases
}

// GatherFilesToDownload lists every file for the current ref and resolved
// content root.
func (r *Repository) GatherFilesToDownload() []models.FileInfo {
	if r.shouldTryReleases() {
		var out []models.FileInfo
		for _, release := range r.Releases.Objects {
			if release.TagName != r.RefName() {
				continue
			}
			for _, asset := range release.Assets {
				out = append(out, models.FileInfo{
					Name:        asset.Name,
					Path:        asset.Name,
					DownloadURL: asset.DownloadURL,
				})
			}
		}
		if len(out) > 0 {
			return out
		}
	}

	if r.Content.SingleFile && r.Data.FileName != "" {
		if r.Content.RemotePath == "release" {
			for _, release := range r.Releases.Objects {
				if release.TagName != r.RefName() {
					continue
				}
				for _, asset := range release.Assets {
					if asset.Name == r.Data.FileName {
						return []models.FileInfo{{
							Name:        asset.Name,
							Path:        asset.Name,
							DownloadURL: asset.DownloadURL,
						}}
					}
				}
			}
			return nil
		}
		p := joinRemote(r.Content.RemotePath, r.Data.FileName)
		if r.treeContains(p) {
			return []models.FileInfo{r.fileInfoFor(p)}
		}
		return nil
	}

	if r.Data.Category == models.CategoryPlugin {
		var out []models.FileInfo
		for _, f := range r.Tree {
			if f.Dir {
				continue
			}
			parent := f.Parent()
			if r.Content.RemotePath == "dist" {
				if parent != "dist" && !strings.HasPrefix(parent, "dist/") {
					continue
				}
			} else if parent != r.Content.RemotePath {
				continue
			}
			out = append(out, r.fileInfoFor(f.Path))
		}
		return out
	}

	if r.Data.Category == models.CategoryTheme && r.Manifest.ContentInRoot {
		var out []models.FileInfo
		for _, f := range r.Tree {
			if f.Dir || f.Parent() != "" {
				continue
			}
			if strings.HasSuffix(strings.ToLower(f.Path), ".yaml") {
				out = append(out, r.fileInfoFor(f.Path))
			}
		}
		return out
	}

	var out []models.FileInfo
	for _, f := range r.Tree {
		if f.Dir {
			continue
		}
		if r.Content.RemotePath != "" &&
			f.Path != r.Content.RemotePath &&
			!strings.HasPrefix(f.Path, r.Content.RemotePath+"/") {
			continue
		}
		out = append(out, r.fileInfoFor(f.Path))
	}
	return out
}

func (r *Repository) fileInfoFor(treePath string) models.FileInfo {
	return models.FileInfo{
		Name:        path.Base(treePath),
		Path:        treePath,
		DownloadURL: github.RawContentURL(r.Data.FullName, r.RefName(), treePath),
	}
}

// downloadContent fetches all resolved files concurrently. Repositories with
// a plain directory layout first try the zipball archive, falling back to
// per file downloads.
func (r *Repository) downloadContent(ctx context.Context, version string) {
	if !r.Manifest.ZipRelease && r.Manifest.Filename == "" &&
		r.Content.Resolved && r.Content.RemotePath != "" && !r.Content.SingleFile {
		if err := r.downloadRepositoryArchive(ctx, version); err == nil {
			return
		} else {
			r.logger.Debug("archive download failed, falling back to files",
				"repository", r.String(), "error", err)
		}
	}

	files := r.GatherFilesToDownload()

	if r.Manifest.Filename != "" && !r.Manifest.ZipRelease {
		filtered := files[:0:0]
		for _, f := range files {
			if f.Name == r.Manifest.Filename {
				filtered = append(filtered, f)
			}
		}
		files = filtered
	}

	if len(files) == 0 {
		r.Validation.Append("No content to download.")
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadWorkers)
	for _, f := range files {
		f := f
		g.Go(func() error {
			r.downloadOne(ctx, f)
			return nil
		})
	}
	g.Wait()
}

// downloadOne fetches a single file and writes it under the local path,
// stripping the remote content root unless content lives in the repository
// root.
func (r *Repository) downloadOne(ctx context.Context, f models.FileInfo) {
	data, err := r.gh.DownloadFile(ctx, f.DownloadURL)
	if err != nil {
		r.Validation.Append("Could not download %s.", f.Name)
		return
	}

	rel := f.Path
	if !r.Manifest.ContentInRoot && r.Content.RemotePath != "" && r.Content.RemotePath != "release" {
		rel = strings.TrimPrefix(strings.TrimPrefix(rel, r.Content.RemotePath), "/")
	}
	dest := filepath.Join(r.Content.LocalPath, filepath.FromSlash(rel))

	if r.Data.Category == models.CategoryTheme && strings.HasSuffix(strings.ToLower(f.Name), ".yaml") {
		var probe any
		if err := yaml.Unmarshal(data, &probe); err != nil {
			r.Validation.Append("%s is not valid YAML.", f.Name)
			return
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		r.Validation.Append("Could not create directory for %s.", f.Name)
		return
	}
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		r.Validation.Append("Could not write %s.", f.Name)
		return
	}

	if strings.HasSuffix(dest, ".js") || strings.HasSuffix(dest, ".css") {
		if err := writeGzip(dest, data); err != nil {
			r.logger.Debug("could not write gzip variant", "file", dest, "error", err)
		}
	}

	r.logger.Debug("downloaded", "repository", r.String(), "file", f.Path)
}

// writeGzip writes a pre-compressed sibling so the frontend can be served
// without on the fly compression.
func writeGzip(dest string, data []byte) error {
	out, err := os.Create(dest + ".gz")
	if err != nil {
		return err
	}
	defer out.Close()
	gz := gzip.NewWriter(out)
	if _, err := gz.Write(data); err != nil {
		gz.Close()
		return err
	}
	return gz.Close()
}

// downloadZip fetches the named zip release asset and unpacks it into the
// local path.
func (r *Repository) downloadZip(ctx context.Context, version string) {
	url := github.ReleaseAssetURL(r.Data.FullName, version, r.Manifest.Filename)
	data, err := r.gh.DownloadFile(ctx, url)
	if err != nil {
		r.Validation.Append("Could not download zip release %s.", r.Manifest.Filename)
		return
	}
	if err := extractZip(data, r.Content.LocalPath); err != nil {
		r.Validation.Append("Could not extract %s: %s.", r.Manifest.Filename, err)
	}
}

// extractZip unpacks archive bytes into dir, rejecting entries that escape
// the destination.
func extractZip(data []byte, dir string) error {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}
	for _, file := range reader.File {
		dest := filepath.Join(dir, filepath.FromSlash(file.Name))
		if !strings.HasPrefix(dest, filepath.Clean(dir)+string(filepath.Separator)) {
			return fmt.Errorf("illegal path %q in archive", file.Name)
		}
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		src, err := file.Open()
		if err != nil {
			return err
		}
		out, err := os.Create(dest)
		if err != nil {
			src.Close()
			return err
		}
		if _, err := io.Copy(out, src); err != nil {
			out.Close()
			src.Close()
			return err
		}
		out.Close()
		src.Close()
	}
	return nil
}

// downloadRepositoryArchive fetches the source zipball for a ref and unpacks
// the files below the remote content root. When the archive endpoint is
// unavailable it falls back to a shallow git clone.
func (r *Repository) downloadRepositoryArchive(ctx context.Context, version string) error {
	variant := "tags"
	if version == r.Data.DefaultBranch {
		variant = "heads"
	}

	data, err := r.gh.DownloadFile(ctx, github.ArchiveURL(r.Data.FullName, version, variant))
	if err != nil {
		// The git protocol is not subject to the REST rate limit.
		if errors.Is(err, github.ErrRateLimited) {
			return r.cloneContent(ctx, version)
		}
		return err
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return err
	}

	wrote := 0
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		// Archives wrap everything in a "<repo>-<ref>/" directory.
		_, inner, found := strings.Cut(file.Name, "/")
		if !found || inner == "" {
			continue
		}
		if r.Content.RemotePath != "" && !strings.HasPrefix(inner, r.Content.RemotePath+"/") {
			continue
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(inner, r.Content.RemotePath), "/")
		dest := filepath.Join(r.Content.LocalPath, filepath.FromSlash(rel))
		if !strings.HasPrefix(dest, filepath.Clean(r.Content.LocalPath)+string(filepath.Separator)) {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return err
		}
		src, err := file.Open()
		if err != nil {
			return err
		}
		content, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			return err
		}
		if err := os.WriteFile(dest, content, 0o644); err != nil {
			return err
		}
		if strings.HasSuffix(dest, ".js") || strings.HasSuffix(dest, ".css") {
			if err := writeGzip(dest, content); err != nil {
				r.logger.Debug("could not write gzip variant", "file", dest, "error", err)
			}
		}
		wrote++
	}

	if wrote == 0 {
		return fmt.Errorf("archive of %s@%s had no content under %q",
			r.Data.FullName, version, r.Content.RemotePath)
	}
	return nil
}

// cloneContent shallow clones the repository at the wanted ref and copies the
// content root into place.
func (r *Repository) cloneContent(ctx context.Context, version string) error {
	tmp, err := os.MkdirTemp("", "hacs_clone")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	_, err = gogit.PlainCloneContext(ctx, tmp, false, &gogit.CloneOptions{
		URL:           "https://github.com/" + r.Data.FullName,
		ReferenceName: cloneRef(version, r.Data.DefaultBranch),
		Depth:         1,
		SingleBranch:  true,
	})
	if err != nil {
		return fmt.Errorf("clone %s: %w", r.Data.FullName, err)
	}

	src := filepath.Join(tmp, filepath.FromSlash(r.Content.RemotePath))
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("clone of %s has no %q: %w", r.Data.FullName, r.Content.RemotePath, err)
	}
	return cp.Copy(src, r.Content.LocalPath)
}

func cloneRef(version, defaultBranch string) plumbing.ReferenceName {
	if version == defaultBranch {
		return plumbing.NewBranchReferenceName(version)
	}
	return plumbing.NewTagReferenceName(version)
}
