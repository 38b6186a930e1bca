// Package github locates changelog files in GitHub repositories through the
// raw content host.
package github

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/git-pkgs/pyintel/fetch"
	"github.com/git-pkgs/pyintel/internal/core"
)

const DefaultURL = "https://raw.githubusercontent.com"

// Filenames are tried in order on each branch.
var Filenames = []string{
	"CHANGELOG.md",
	"CHANGES.md",
	"HISTORY.md",
	"NEWS.md",
	"CHANGELOG.rst",
	"CHANGES.rst",
	"HISTORY.rst",
	"CHANGELOG",
	"CHANGES.txt",
	"docs/changelog.md",
}

// Branches are tried for each filename.
var Branches = []string{"main", "master"}

// ErrNoChangelog is returned when none of the candidate files exist.
var ErrNoChangelog = errors.New("no changelog file found")

// File is a fetched changelog document.
type File struct {
	Owner   string
	Repo    string
	Branch  string
	Path    string
	URL     string
	Content string
}

// Locator fetches raw changelog files.
type Locator struct {
	baseURL string
	client  *core.Client
	store   *core.Store
}

// New creates a Locator. Empty arguments fall back to defaults.
func New(baseURL string, client *core.Client, store *core.Store) *Locator {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if client == nil {
		client = core.DefaultClient()
	}
	if store == nil {
		store = core.NewStore(nil)
	}
	return &Locator{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		store:   store,
	}
}

var repoPattern = regexp.MustCompile(`(?i)github\.com[/:]([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+)`)

// ParseRepo extracts owner and repository from a GitHub URL.
func ParseRepo(url string) (owner, repo string, ok bool) {
	m := repoPattern.FindStringSubmatch(url)
	if m == nil {
		return "", "", false
	}
	owner, repo = m[1], strings.TrimSuffix(m[2], ".git")
	if owner == "sponsors" || owner == "orgs" || repo == "" {
		return "", "", false
	}
	return owner, repo, true
}

// RepoFromRecord returns the first GitHub repository referenced by a record.
func RepoFromRecord(record *core.PackageRecord) (owner, repo string, ok bool) {
	candidates := []string{record.Repository}
	for _, key := range []string{"Source", "Source Code", "Repository", "Code", "Changelog", "Changes", "Homepage"} {
		candidates = append(candidates, record.ProjectURLs[key])
	}
	candidates = append(candidates, record.Homepage)
	for _, url := range record.ProjectURLs {
		candidates = append(candidates, url)
	}

	for _, c := range candidates {
		if owner, repo, ok := ParseRepo(c); ok {
			return owner, repo, true
		}
	}
	return "", "", false
}

// Find returns the first changelog that exists in owner/repo. Missing files
// are skipped; any other failure stops the search.
func (l *Locator) Find(ctx context.Context, owner, repo string) (*File, error) {
	key := core.Key("changelog-file", owner+"/"+repo)
	return core.Cached(ctx, l.store, key, func(ctx context.Context) (*File, error) {
		return l.find(ctx, owner, repo)
	})
}

func (l *Locator) find(ctx context.Context, owner, repo string) (*File, error) {
	for _, name := range Filenames {
		for _, branch := range Branches {
			url := fmt.Sprintf("%s/%s/%s/%s/%s", l.baseURL, owner, repo, branch, name)
			body, err := l.client.GetBody(ctx, url)
			if errors.Is(err, fetch.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			return &File{
				Owner:   owner,
				Repo:    repo,
				Branch:  branch,
				Path:    name,
				URL:     fmt.Sprintf("https://github.com/%s/%s/blob/%s/%s", owner, repo, branch, name),
				Content: string(body),
			}, nil
		}
	}
	return nil, fmt.Errorf("%s/%s: %w", owner, repo, ErrNoChangelog)
}
