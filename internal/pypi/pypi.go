// Package pypi provides a client for the PyPI JSON API.
package pypi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/git-pkgs/pyintel/fetch"
	"github.com/git-pkgs/pyintel/internal/core"
)

const DefaultURL = "https://pypi.org"

// Registry fetches package records from a PyPI-compatible index.
type Registry struct {
	baseURL string
	client  *core.Client
	store   *core.Store
	urls    *core.PyPIURLs
	suggest func(name string) []string
}

// Option configures a Registry.
type Option func(*Registry)

// WithSuggester sets the function used to propose names when a package is not found.
func WithSuggester(fn func(name string) []string) Option {
	return func(r *Registry) {
		r.suggest = fn
	}
}

// New creates a Registry. Empty arguments fall back to defaults.
func New(baseURL string, client *core.Client, store *core.Store, opts ...Option) *Registry {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if client == nil {
		client = core.DefaultClient()
	}
	if store == nil {
		store = core.NewStore(nil)
	}
	r := &Registry{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		store:   store,
	}
	r.urls = &core.PyPIURLs{BaseURL: r.baseURL}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// URLs returns the link builder for this index.
func (r *Registry) URLs() core.URLBuilder {
	return r.urls
}

type packageResponse struct {
	Info     infoBlock                `json:"info"`
	URLs     []releaseFile            `json:"urls"`
	Releases map[string][]releaseFile `json:"releases"`
}

type infoBlock struct {
	Name              string            `json:"name"`
	Version           string            `json:"version"`
	Summary           string            `json:"summary"`
	Author            string            `json:"author"`
	AuthorEmail       string            `json:"author_email"`
	Maintainer        string            `json:"maintainer"`
	MaintainerEmail   string            `json:"maintainer_email"`
	HomePage          string            `json:"home_page"`
	License           string            `json:"license"`
	LicenseExpression string            `json:"license_expression"`
	Keywords          string            `json:"keywords"`
	Classifiers       []string          `json:"classifiers"`
	ProjectURLs       map[string]string `json:"project_urls"`
	RequiresDist      []string          `json:"requires_dist"`
	RequiresPython    string            `json:"requires_python"`
	Yanked            bool              `json:"yanked"`
	YankedReason      string            `json:"yanked_reason"`
}

type releaseFile struct {
	Filename          string `json:"filename"`
	URL               string `json:"url"`
	UploadTime        string `json:"upload_time"`
	UploadTimeISO8601 string `json:"upload_time_iso_8601"`
	Yanked            bool   `json:"yanked"`
	PackageType       string `json:"packagetype"`
	PythonVersion     string `json:"python_version"`
	RequiresPython    string `json:"requires_python"`
	Size              int64  `json:"size"`
}

// FetchPackageInfo returns the record for name, or for one version when
// version is non-empty. Failures are returned to the caller; a missing
// package yields *core.NotFoundError.
func (r *Registry) FetchPackageInfo(ctx context.Context, name, version string) (*core.PackageRecord, error) {
	return core.Cached(ctx, r.store, core.Key("info", name, version), func(ctx context.Context) (*core.PackageRecord, error) {
		return r.fetchPackageInfo(ctx, name, version)
	})
}

func (r *Registry) fetchPackageInfo(ctx context.Context, name, version string) (*core.PackageRecord, error) {
	url := fmt.Sprintf("%s/pypi/%s/json", r.baseURL, name)
	if version != "" {
		url = fmt.Sprintf("%s/pypi/%s/%s/json", r.baseURL, name, version)
	}

	var resp packageResponse
	if err := r.client.GetJSON(ctx, url, &resp); err != nil {
		if errors.Is(err, fetch.ErrNotFound) {
			nf := &core.NotFoundError{Name: name, Version: version}
			if r.suggest != nil {
				nf.Suggestions = r.suggest(name)
			}
			return nil, nf
		}
		return nil, err
	}

	if strings.TrimSpace(resp.Info.Name) == "" {
		return nil, &fetch.ValidationError{URL: url, Reason: "missing info.name"}
	}

	return r.toRecord(resp), nil
}

func (r *Registry) toRecord(resp packageResponse) *core.PackageRecord {
	info := resp.Info
	files := convertFiles(resp.URLs)

	releases := make(map[string][]core.ReleaseFile, len(resp.Releases))
	for v, fs := range resp.Releases {
		releases[v] = convertFiles(fs)
	}

	yanked := info.Yanked
	if !yanked && len(files) > 0 {
		yanked = true
		for _, f := range files {
			if !f.Yanked {
				yanked = false
				break
			}
		}
	}

	return &core.PackageRecord{
		Name:            info.Name,
		Version:         info.Version,
		Summary:         info.Summary,
		Author:          info.Author,
		AuthorEmail:     info.AuthorEmail,
		Maintainer:      info.Maintainer,
		MaintainerEmail: info.MaintainerEmail,
		License:         extractLicense(info),
		Homepage:        extractHomepage(info.ProjectURLs, info.HomePage),
		Repository:      extractRepoURL(info.ProjectURLs, info.HomePage),
		ProjectURLs:     info.ProjectURLs,
		Keywords:        parseKeywords(info.Keywords),
		Classifiers:     info.Classifiers,
		RequiresPython:  info.RequiresPython,
		RequiresDist:    info.RequiresDist,
		Yanked:          yanked,
		YankedReason:    info.YankedReason,
		Files:           files,
		Releases:        releases,
		Links:           core.BuildURLs(r.urls, info.Name, info.Version),
	}
}

func convertFiles(files []releaseFile) []core.ReleaseFile {
	out := make([]core.ReleaseFile, 0, len(files))
	for _, f := range files {
		out = append(out, core.ReleaseFile{
			Filename:       f.Filename,
			Size:           f.Size,
			UploadTime:     parseUploadTime(f),
			PackageType:    core.PackageType(f.PackageType),
			PythonVersion:  f.PythonVersion,
			RequiresPython: f.RequiresPython,
			URL:            f.URL,
			Yanked:         f.Yanked,
		})
	}
	return out
}

func parseUploadTime(f releaseFile) time.Time {
	if f.UploadTimeISO8601 != "" {
		if t, err := time.Parse(time.RFC3339Nano, f.UploadTimeISO8601); err == nil {
			return t.UTC()
		}
	}
	if f.UploadTime != "" {
		if t, err := time.Parse("2006-01-02T15:04:05", f.UploadTime); err == nil {
			return t
		}
	}
	return time.Time{}
}

func extractRepoURL(projectURLs map[string]string, homePage string) string {
	priorityKeys := []string{"Repository", "Source", "Source Code", "Code", "GitHub"}
	for _, key := range priorityKeys {
		if url, ok := projectURLs[key]; ok && isRepoURL(url) {
			return url
		}
	}

	for _, url := range projectURLs {
		if isRepoURL(url) && !strings.Contains(url, "github.com/sponsors") {
			return url
		}
	}

	if isRepoURL(homePage) {
		return homePage
	}

	return ""
}

func extractHomepage(projectURLs map[string]string, homePage string) string {
	if homePage != "" {
		return homePage
	}
	if url, ok := projectURLs["Homepage"]; ok {
		return url
	}
	if url, ok := projectURLs["Home"]; ok {
		return url
	}
	return ""
}

func isRepoURL(url string) bool {
	return strings.Contains(url, "github.com") ||
		strings.Contains(url, "gitlab.com") ||
		strings.Contains(url, "bitbucket.org") ||
		strings.Contains(url, "codeberg.org")
}

// extractLicense prefers the PEP 639 expression, then the free-text field
// (ignored when it is a pasted license body), then the trove classifier.
func extractLicense(info infoBlock) string {
	if info.LicenseExpression != "" {
		return info.LicenseExpression
	}
	if license := strings.TrimSpace(info.License); license != "" && len(license) <= 100 && !strings.Contains(license, "\n") {
		return license
	}

	for _, classifier := range info.Classifiers {
		if strings.HasPrefix(classifier, "License :: ") {
			parts := strings.Split(classifier, " :: ")
			if last := parts[len(parts)-1]; last != "OSI Approved" {
				return last
			}
		}
	}

	return ""
}

func parseKeywords(keywords string) []string {
	if keywords == "" {
		return nil
	}
	if strings.Contains(keywords, ",") {
		parts := strings.Split(keywords, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return strings.Fields(keywords)
}
