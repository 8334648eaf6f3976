package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/hacs-community/hacs-agent/internal/github"
	"github.com/hacs-community/hacs-agent/models"
)

// fakeClient implements Client from canned data and counts calls.
type fakeClient struct {
	mu sync.Mutex

	info     *models.RepositoryInfo
	tree     []models.TreeFile
	releases []models.Release
	contents map[string][]byte
	files    map[string][]byte
	head     string

	calls map[string]int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		contents: map[string][]byte{},
		files:    map[string][]byte{},
		head:     "abc1234",
		calls:    map[string]int{},
	}
}

func (f *fakeClient) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeClient) GetRepository(ctx context.Context, fullName string) (*models.RepositoryInfo, error) {
	f.count("GetRepository")
	if f.info == nil {
		return nil, github.ErrNotFound
	}
	info := *f.info
	return &info, nil
}

func (f *fakeClient) GetTree(ctx context.Context, fullName, ref string) ([]models.TreeFile, error) {
	f.count("GetTree")
	if f.tree == nil {
		return nil, github.ErrNotFound
	}
	return f.tree, nil
}

func (f *fakeClient) GetReleases(ctx context.Context, fullName string, limit int) ([]models.Release, error) {
	f.count("GetReleases")
	if len(f.releases) > limit {
		return f.releases[:limit], nil
	}
	return f.releases, nil
}

func (f *fakeClient) GetContents(ctx context.Context, fullName, path, ref string) ([]byte, error) {
	f.count("GetContents")
	if data, ok := f.contents[path]; ok {
		return data, nil
	}
	return nil, github.ErrNotFound
}

func (f *fakeClient) GetBranchHead(ctx context.Context, fullName, branch string) (string, error) {
	f.count("GetBranchHead")
	return f.head, nil
}

func (f *fakeClient) RenderMarkdown(ctx context.Context, text string) (string, error) {
	f.count("RenderMarkdown")
	return "<p>" + text + "</p>", nil
}

func (f *fakeClient) DownloadFile(ctx context.Context, url string) ([]byte, error) {
	f.count("DownloadFile")
	if data, ok := f.files[url]; ok {
		return data, nil
	}
	return nil, fmt.Errorf("%w: %s", github.ErrNotFound, url)
}

func dirEntry(p string) models.TreeFile  { return models.TreeFile{Path: p, Dir: true} }
func fileEntry(p string) models.TreeFile { return models.TreeFile{Path: p, Dir: false} }
