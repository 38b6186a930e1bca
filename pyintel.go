// Package pyintel gathers intelligence about Python packages: registry
// metadata, download statistics, known vulnerabilities, dependency trees,
// changelogs, health scores and license compatibility.
//
// Every upstream response goes through one shared in-memory cache, and every
// request goes through the resilient fetch layer (per-attempt timeout,
// retries with backoff, Retry-After on 429, per-host circuit breakers).
//
// Basic usage:
//
//	c := pyintel.New()
//
//	pkg, err := c.FetchPackageInfo(context.Background(), "requests", "")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(pkg.Name, pkg.Version)
//
//	score, err := c.HealthScore(context.Background(), "requests")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(score.Score, score.Rating)
//
// Download statistics and vulnerability lookups never fail: they degrade to
// zeroed stats and an empty list. Package lookups return errors, and a
// missing package yields *NotFoundError with name suggestions.
package pyintel

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/git-pkgs/pyintel/cache"
	"github.com/git-pkgs/pyintel/client"
	"github.com/git-pkgs/pyintel/fetch"
	"github.com/git-pkgs/pyintel/internal/changelog"
	"github.com/git-pkgs/pyintel/internal/core"
	"github.com/git-pkgs/pyintel/internal/deps"
	"github.com/git-pkgs/pyintel/internal/github"
	"github.com/git-pkgs/pyintel/internal/health"
	"github.com/git-pkgs/pyintel/internal/license"
	"github.com/git-pkgs/pyintel/internal/osv"
	"github.com/git-pkgs/pyintel/internal/pypi"
	"github.com/git-pkgs/pyintel/internal/pypistats"
	"github.com/git-pkgs/pyintel/internal/suggest"
	"golang.org/x/sync/errgroup"
)

// Re-export types from internal/core
type (
	PackageRecord          = core.PackageRecord
	ReleaseFile            = core.ReleaseFile
	PackageType            = core.PackageType
	DownloadStats          = core.DownloadStats
	DownloadCounts         = core.DownloadCounts
	DailyDownloads         = core.DailyDownloads
	Vulnerability          = core.Vulnerability
	DependencyNode         = core.DependencyNode
	Tree                   = core.Tree
	HealthScore            = core.HealthScore
	Breakdown              = core.Breakdown
	Rating                 = core.Rating
	ChangelogEntry         = core.ChangelogEntry
	Changelog              = core.Changelog
	ChangelogSource        = core.ChangelogSource
	LicenseCompatibility   = core.LicenseCompatibility
	Risk                   = core.Risk
	Target                 = core.Target
	NotFoundError          = core.NotFoundError
	PartialResolutionError = core.PartialResolutionError
)

// Re-export types from the scoring and registry packages
type (
	Overview      = health.Overview
	Compatibility = health.Compatibility
	Artifact      = pypi.Artifact
	LicenseID     = license.ID
	CacheStats    = cache.Stats
)

// Re-export constants
const (
	Wheel = core.Wheel
	Sdist = core.Sdist

	Excellent = core.Excellent
	Good      = core.Good
	Fair      = core.Fair
	Poor      = core.Poor

	SourceGitHub   = core.SourceGitHub
	SourcePyPI     = core.SourcePyPI
	SourceFallback = core.SourceFallback

	RiskLow      = core.RiskLow
	RiskMedium   = core.RiskMedium
	RiskHigh     = core.RiskHigh
	RiskCritical = core.RiskCritical

	UnknownLicense = license.Unknown
)

// Re-export errors
var (
	ErrNotFound       = fetch.ErrNotFound
	ErrRateLimited    = fetch.ErrRateLimited
	ErrUpstreamDown   = fetch.ErrUpstreamDown
	ErrTimeout        = fetch.ErrTimeout
	ErrInvalidPayload = fetch.ErrInvalidPayload
	ErrNoDownloadURL  = pypi.ErrNoDownloadURL
)

// Error types
type (
	HTTPError       = fetch.HTTPError
	RateLimitError  = fetch.RateLimitError
	TimeoutError    = fetch.TimeoutError
	NetworkError    = fetch.NetworkError
	ValidationError = fetch.ValidationError
)

// Endpoints overrides upstream base URLs. Empty fields use the defaults.
type Endpoints struct {
	PyPI   string
	Stats  string
	OSV    string
	GitHub string
}

// DefaultEndpoints returns the public upstream URLs.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		PyPI:   pypi.DefaultURL,
		Stats:  pypistats.DefaultURL,
		OSV:    osv.DefaultURL,
		GitHub: github.DefaultURL,
	}
}

// Client is the entry point to every lookup. It is safe for concurrent use.
type Client struct {
	store       *core.Store
	logger      *log.Logger
	now         func() time.Time
	concurrency int

	registry  *pypi.Registry
	stats     *pypistats.Client
	vulns     *osv.Client
	changelog *github.Locator
	resolver  *deps.Resolver
}

type config struct {
	cache       *cache.Cache
	http        *client.Client
	logger      *log.Logger
	endpoints   Endpoints
	concurrency int
	now         func() time.Time
}

// Option configures a Client.
type Option func(*config)

// WithCache shares an existing response cache.
func WithCache(c *cache.Cache) Option {
	return func(cfg *config) {
		cfg.cache = c
	}
}

// WithHTTPClient sets the HTTP client used for every upstream.
func WithHTTPClient(c *client.Client) Option {
	return func(cfg *config) {
		cfg.http = c
	}
}

// WithLogger sets the logger for retries, fallbacks and degraded responses.
func WithLogger(l *log.Logger) Option {
	return func(cfg *config) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithEndpoints overrides upstream base URLs.
func WithEndpoints(e Endpoints) Option {
	return func(cfg *config) {
		cfg.endpoints = e
	}
}

// WithConcurrency bounds parallel fetches in dependency resolution and bulk
// analysis.
func WithConcurrency(n int) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.concurrency = n
		}
	}
}

// WithClock sets the time source used for release recency.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) {
		if now != nil {
			cfg.now = now
		}
	}
}

// New creates a Client.
func New(opts ...Option) *Client {
	cfg := &config{
		logger:      log.New(io.Discard),
		concurrency: deps.DefaultConcurrency,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	httpClient := cfg.http
	if httpClient == nil {
		httpClient = client.NewClient(client.WithLogger(cfg.logger))
	}
	store := core.NewStore(cfg.cache)

	registry := pypi.New(cfg.endpoints.PyPI, httpClient, store, pypi.WithSuggester(func(name string) []string {
		return suggest.Suggest(name, suggest.DefaultMax)
	}))

	return &Client{
		store:       store,
		logger:      cfg.logger,
		now:         cfg.now,
		concurrency: cfg.concurrency,
		registry:    registry,
		stats:       pypistats.New(cfg.endpoints.Stats, httpClient, store, pypistats.WithLogger(cfg.logger)),
		vulns:       osv.New(cfg.endpoints.OSV, httpClient, store, osv.WithLogger(cfg.logger)),
		changelog:   github.New(cfg.endpoints.GitHub, httpClient, store),
		resolver: deps.New(registry,
			deps.WithConcurrency(cfg.concurrency),
			deps.WithLogger(cfg.logger),
		),
	}
}

// FetchPackageInfo returns the registry record for name, at version when
// non-empty or the latest release otherwise.
func (c *Client) FetchPackageInfo(ctx context.Context, name, version string) (*PackageRecord, error) {
	return c.registry.FetchPackageInfo(ctx, name, version)
}

// FetchDownloadStats returns recent download counts, zeroed on failure.
func (c *Client) FetchDownloadStats(ctx context.Context, name string) DownloadStats {
	return c.stats.FetchRecent(ctx, name)
}

// FetchDailyDownloads returns the last days of downloads, oldest first.
// days is clamped to 1..180; failures yield an empty series.
func (c *Client) FetchDailyDownloads(ctx context.Context, name string, days int) []DailyDownloads {
	return c.stats.FetchDaily(ctx, name, days)
}

// FetchVulnerabilities returns advisories affecting name (at version when
// non-empty). Failures yield an empty list.
func (c *Client) FetchVulnerabilities(ctx context.Context, name, version string) []Vulnerability {
	return c.vulns.FetchVulnerabilities(ctx, name, version)
}

// FetchDependencyTree resolves name's dependencies two levels deep. Only a
// failure to fetch name itself is returned; failed dependencies carry their
// error on the node.
func (c *Client) FetchDependencyTree(ctx context.Context, name, version string) (*Tree, error) {
	return c.resolver.Resolve(ctx, name, version)
}

// ResolveArtifact returns the preferred download for name at version.
func (c *Client) ResolveArtifact(ctx context.Context, name, version string) (*Artifact, error) {
	return c.registry.ResolveArtifact(ctx, name, version)
}

// FetchChangelog returns name's changelog. It reads a changelog file from the
// package's GitHub repository when one parses into entries, otherwise
// synthesizes entries from release uploads. It never fails: when nothing is
// available the result has source "fallback" and no entries.
func (c *Client) FetchChangelog(ctx context.Context, name string) *Changelog {
	record, err := c.registry.FetchPackageInfo(ctx, name, "")
	if err != nil {
		c.logger.Warn("changelog unavailable", "package", name, "err", err)
		return &Changelog{Package: name, Source: SourceFallback, Entries: []ChangelogEntry{}}
	}
	return c.changelogFor(ctx, record)
}

func (c *Client) changelogFor(ctx context.Context, record *PackageRecord) *Changelog {
	if owner, repo, ok := github.RepoFromRecord(record); ok {
		file, err := c.changelog.Find(ctx, owner, repo)
		switch {
		case err == nil:
			if entries := changelog.Parse(file.Content); len(entries) > 0 {
				return &Changelog{Package: record.Name, Source: SourceGitHub, URL: file.URL, Entries: entries}
			}
			c.logger.Debug("changelog file has no version sections", "package", record.Name, "url", file.URL)
		case errors.Is(err, github.ErrNoChangelog):
			c.logger.Debug("no changelog file in repository", "package", record.Name, "repo", owner+"/"+repo)
		default:
			c.logger.Warn("changelog lookup failed", "package", record.Name, "err", err)
		}
	}

	if entries := changelog.Synthesize(record); len(entries) > 0 {
		return &Changelog{Package: record.Name, Source: SourcePyPI, URL: record.Links["registry"], Entries: entries}
	}
	return &Changelog{Package: record.Name, Source: SourceFallback, Entries: []ChangelogEntry{}}
}

// HealthScore fetches name's latest record and recent downloads in parallel
// and scores them.
func (c *Client) HealthScore(ctx context.Context, name string) (*HealthScore, error) {
	var (
		record *PackageRecord
		stats  DownloadStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		record, err = c.registry.FetchPackageInfo(gctx, name, "")
		return err
	})
	g.Go(func() error {
		stats = c.stats.FetchRecent(gctx, name)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	score := c.Score(record, &stats)
	return &score, nil
}

// Score computes the health of an already fetched record.
func (c *Client) Score(record *PackageRecord, stats *DownloadStats) HealthScore {
	return health.Score(health.OverviewFrom(record, c.now()), health.CompatibilityFrom(record), stats)
}

// Analysis is everything known about one package release.
type Analysis struct {
	Package         *PackageRecord  `json:"package"`
	Downloads       DownloadStats   `json:"downloads"`
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	Changelog       *Changelog      `json:"changelog"`
	Dependencies    *Tree           `json:"dependencies,omitempty"`
	DependencyError string          `json:"dependencyError,omitempty"`
	Health          HealthScore     `json:"health"`
	License         LicenseID       `json:"license"`
}

// Analyze gathers every view of name in parallel. A failure to fetch the
// package fails the analysis and cancels the other lookups; every other
// source degrades.
func (c *Client) Analyze(ctx context.Context, name, version string) (*Analysis, error) {
	a := &Analysis{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		record, err := c.registry.FetchPackageInfo(gctx, name, version)
		if err != nil {
			return err
		}
		a.Package = record
		a.Changelog = c.changelogFor(gctx, record)
		return nil
	})
	g.Go(func() error {
		a.Downloads = c.stats.FetchRecent(gctx, name)
		return nil
	})
	g.Go(func() error {
		a.Vulnerabilities = c.vulns.FetchVulnerabilities(gctx, name, version)
		return nil
	})
	g.Go(func() error {
		tree, err := c.resolver.Resolve(gctx, name, version)
		if err != nil {
			if gctx.Err() != nil {
				return nil
			}
			a.DependencyError = err.Error()
			return nil
		}
		a.Dependencies = tree
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	a.Health = c.Score(a.Package, &a.Downloads)
	a.License = license.Detect(a.Package)
	return a, nil
}

// BulkAnalyze analyzes names with at most concurrency analyses in flight.
// Packages that fail are omitted from the result.
func (c *Client) BulkAnalyze(ctx context.Context, names []string, concurrency int) map[string]*Analysis {
	if concurrency <= 0 {
		concurrency = c.concurrency
	}
	return core.Bulk(ctx, names, concurrency, func(ctx context.Context, name string) (*Analysis, error) {
		return c.Analyze(ctx, name, "")
	})
}

// CheckLicense reports whether a dependency under pkgLicense can be used by a
// project under projectLicense. Both are free text.
func (c *Client) CheckLicense(projectLicense, pkgLicense string) LicenseCompatibility {
	return license.Check(projectLicense, pkgLicense)
}

// CheckPackageLicense detects name's license and checks it against
// projectLicense.
func (c *Client) CheckPackageLicense(ctx context.Context, projectLicense, name string) (LicenseCompatibility, error) {
	record, err := c.registry.FetchPackageInfo(ctx, name, "")
	if err != nil {
		return LicenseCompatibility{}, err
	}
	return license.Check(projectLicense, string(license.Detect(record))), nil
}

// Suggest returns well-known package names similar to name.
func (c *Client) Suggest(name string) []string {
	return suggest.Suggest(name, suggest.DefaultMax)
}

// ClearCache drops every cached response.
func (c *Client) ClearCache() {
	c.store.Cache().Clear()
}

// CacheStats reports the cache's size and capacity.
func (c *Client) CacheStats() CacheStats {
	return c.store.Cache().Stats()
}

// ParseTarget parses "name", "name==version", "name@version" or a pypi PURL.
func ParseTarget(arg string) (Target, error) {
	return core.ParseTarget(arg)
}

// CheckLicense is Client.CheckLicense without a client.
func CheckLicense(projectLicense, pkgLicense string) LicenseCompatibility {
	return license.Check(projectLicense, pkgLicense)
}

// NormalizeLicense maps a license declaration to a known identifier, or
// "Unknown".
func NormalizeLicense(text string) LicenseID {
	return license.Normalize(text)
}

// DetectLicense returns a record's license from its license field or, failing
// that, its trove classifiers.
func DetectLicense(record *PackageRecord) LicenseID {
	return license.Detect(record)
}

// Score is the pure health scorer.
func Score(overview Overview, compat Compatibility, stats *DownloadStats) HealthScore {
	return health.Score(overview, compat, stats)
}

// ParseChangelog splits changelog text into classified version entries.
func ParseChangelog(text string) []ChangelogEntry {
	return changelog.Parse(text)
}
