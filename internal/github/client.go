package github

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/hacs-community/hacs-agent/models"
)

// Client wraps the GitHub REST API with the surface the repository lifecycle
// needs: repository metadata, recursive trees, releases, file contents, raw
// downloads and markdown rendering. All calls go through the retry policy,
// and the last seen rate-limit state is tracked.
type Client struct {
	rest   *gogithub.Client
	http   *http.Client
	retry  RetryPolicy
	logger *slog.Logger

	mu            sync.Mutex
	rateRemaining int
}

// NewClient creates a Client for the given token. host allows GitHub
// Enterprise instances; leave empty for github.com.
func NewClient(token, host string, retry RetryPolicy, logger *slog.Logger) (*Client, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(context.Background(), ts)
	rest := gogithub.NewClient(tc)

	if host != "" && host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", host)
		upload := fmt.Sprintf("https://%s/api/uploads/", host)
		var err error
		rest, err = rest.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}

	return &Client{
		rest:          rest,
		http:          &http.Client{Timeout: 60 * time.Second},
		retry:         retry,
		logger:        logger,
		rateRemaining: -1,
	}, nil
}

// RateLimitRemaining returns the remaining request budget from the most
// recent API response, or -1 if no request has been made yet.
func (c *Client) RateLimitRemaining() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rateRemaining
}

// GetRepository fetches repository metadata for "owner/repo".
func (c *Client) GetRepository(ctx context.Context, fullName string) (*models.RepositoryInfo, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	var info *models.RepositoryInfo
	err = doWithRetry(ctx, c.retry, c.logger, "get_repository", func() error {
		repo, resp, err := c.rest.Repositories.Get(ctx, owner, name)
		c.track(resp)
		if err != nil {
			return c.mapError(err)
		}
		info = &models.RepositoryInfo{
			ID:            repo.GetID(),
			FullName:      repo.GetFullName(),
			Description:   repo.GetDescription(),
			DefaultBranch: repo.GetDefaultBranch(),
			Topics:        repo.Topics,
			Archived:      repo.GetArchived(),
			Stars:         repo.GetStargazersCount(),
			PushedAt:      repo.GetPushedAt().Time,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("getting repository %s: %w", fullName, err)
	}
	return info, nil
}

// GetTree returns the recursive git tree for the given ref (tag or branch).
func (c *Client) GetTree(ctx context.Context, fullName, ref string) ([]models.TreeFile, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	var files []models.TreeFile
	err = doWithRetry(ctx, c.retry, c.logger, "get_tree", func() error {
		tree, resp, err := c.rest.Git.GetTree(ctx, owner, name, ref, true)
		c.track(resp)
		if err != nil {
			return c.mapError(err)
		}
		files = make([]models.TreeFile, 0, len(tree.Entries))
		for _, entry := range tree.Entries {
			files = append(files, models.TreeFile{
				Path: entry.GetPath(),
				Dir:  entry.GetType() == "tree",
			})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("getting tree %s@%s: %w", fullName, ref, err)
	}
	return files, nil
}

// GetReleases returns up to limit published releases, newest first. Drafts
// are always excluded; prereleases are included and filtered by the caller.
func (c *Client) GetReleases(ctx context.Context, fullName string, limit int) ([]models.Release, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	var releases []models.Release
	err = doWithRetry(ctx, c.retry, c.logger, "get_releases", func() error {
		ghReleases, resp, err := c.rest.Repositories.ListReleases(ctx, owner, name,
			&gogithub.ListOptions{PerPage: limit})
		c.track(resp)
		if err != nil {
			return c.mapError(err)
		}
		releases = releases[:0]
		for _, rel := range ghReleases {
			if rel.GetDraft() {
				continue
			}
			release := models.Release{
				TagName:     rel.GetTagName(),
				Name:        rel.GetName(),
				Prerelease:  rel.GetPrerelease(),
				PublishedAt: rel.GetPublishedAt().Time,
			}
			for _, asset := range rel.Assets {
				release.Assets = append(release.Assets, models.ReleaseAsset{
					Name:          asset.GetName(),
					DownloadURL:   asset.GetBrowserDownloadURL(),
					DownloadCount: asset.GetDownloadCount(),
				})
			}
			releases = append(releases, release)
			if len(releases) == limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("getting releases for %s: %w", fullName, err)
	}
	return releases, nil
}

// GetContents returns the decoded content of a single file at the given ref.
func (c *Client) GetContents(ctx context.Context, fullName, path, ref string) ([]byte, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return nil, err
	}

	var content []byte
	err = doWithRetry(ctx, c.retry, c.logger, "get_contents", func() error {
		file, _, resp, err := c.rest.Repositories.GetContents(ctx, owner, name, path,
			&gogithub.RepositoryContentGetOptions{Ref: ref})
		c.track(resp)
		if err != nil {
			return c.mapError(err)
		}
		if file == nil {
			return fmt.Errorf("%w: %s is not a file", ErrNotFound, path)
		}
		decoded, err := file.GetContent()
		if err != nil {
			return fmt.Errorf("decoding %s: %w", path, err)
		}
		content = []byte(decoded)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("getting contents %s:%s@%s: %w", fullName, path, ref, err)
	}
	return content, nil
}

// GetBranchHead returns the commit SHA at the tip of a branch, shortened to
// the conventional 7 characters.
func (c *Client) GetBranchHead(ctx context.Context, fullName, branch string) (string, error) {
	owner, name, err := splitFullName(fullName)
	if err != nil {
		return "", err
	}

	var sha string
	err = doWithRetry(ctx, c.retry, c.logger, "get_branch", func() error {
		b, resp, err := c.rest.Repositories.GetBranch(ctx, owner, name, branch, 3)
		c.track(resp)
		if err != nil {
			return c.mapError(err)
		}
		sha = b.GetCommit().GetSHA()
		if len(sha) > 7 {
			sha = sha[:7]
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("getting branch head %s@%s: %w", fullName, branch, err)
	}
	return sha, nil
}

// ListOrgRepositories returns the full names of all public repositories of
// an organisation.
func (c *Client) ListOrgRepositories(ctx context.Context, org string) ([]string, error) {
	var names []string
	opts := &gogithub.RepositoryListByOrgOptions{
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}
	for {
		var page []*gogithub.Repository
		err := doWithRetry(ctx, c.retry, c.logger, "list_org_repos", func() error {
			repos, resp, err := c.rest.Repositories.ListByOrg(ctx, org, opts)
			c.track(resp)
			if err != nil {
				return c.mapError(err)
			}
			page = repos
			if resp != nil {
				opts.Page = resp.NextPage
			} else {
				opts.Page = 0
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("listing repositories of %s: %w", org, err)
		}
		for _, repo := range page {
			names = append(names, repo.GetFullName())
		}
		if opts.Page == 0 {
			break
		}
	}
	return names, nil
}

// RenderMarkdown renders markdown text via the GitHub markdown API.
func (c *Client) RenderMarkdown(ctx context.Context, text string) (string, error) {
	var rendered string
	err := doWithRetry(ctx, c.retry, c.logger, "render_markdown", func() error {
		out, resp, err := c.rest.Markdown.Render(ctx, text, nil)
		c.track(resp)
		if err != nil {
			return c.mapError(err)
		}
		rendered = out
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return rendered, nil
}

// DownloadFile fetches a raw URL (raw.githubusercontent.com or a release
// asset) and returns the body bytes.
func (c *Client) DownloadFile(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := doWithRetry(ctx, c.retry, c.logger, "download_file", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", url, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %s", ErrNotFound, url)
		case resp.StatusCode == http.StatusForbidden && resp.Header.Get("x-ratelimit-remaining") == "0":
			return fmt.Errorf("%w: %s", ErrRateLimited, url)
		default:
			return fmt.Errorf("got status %d downloading %s", resp.StatusCode, url)
		}

		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) track(resp *gogithub.Response) {
	if resp == nil {
		return
	}
	c.mu.Lock()
	c.rateRemaining = resp.Rate.Remaining
	c.mu.Unlock()
}

func (c *Client) mapError(err error) error {
	var rateErr *gogithub.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: resets at %s", ErrRateLimited, rateErr.Rate.Reset.Time)
	}
	var abuseErr *gogithub.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return fmt.Errorf("%w: secondary limit", ErrRateLimited)
	}
	var respErr *gogithub.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		if respErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, respErr.Message)
		}
	}
	return err
}

// RawContentURL builds a raw.githubusercontent.com URL for a file at a ref.
func RawContentURL(fullName, ref, path string) string {
	return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s", fullName, ref, path)
}

// ReleaseAssetURL builds the browser download URL for a release asset.
func ReleaseAssetURL(fullName, version, filename string) string {
	return fmt.Sprintf("https://github.com/%s/releases/download/%s/%s", fullName, version, filename)
}

// ArchiveURL builds the zipball URL for a tag or branch. variant is "tags"
// or "heads".
func ArchiveURL(fullName, version, variant string) string {
	return fmt.Sprintf("https://github.com/%s/archive/refs/%s/%s.zip", fullName, variant, version)
}

func splitFullName(fullName string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(fullName, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository name %q, expected owner/repo", fullName)
	}
	return owner, name, nil
}
