// Package core provides the shared data model and the helpers used by every
// upstream source.
package core

import "time"

// PackageRecord is the registry's metadata for one package version.
type PackageRecord struct {
	Name            string                   `json:"name"`
	Version         string                   `json:"version"`
	Summary         string                   `json:"summary"`
	Author          string                   `json:"author"`
	AuthorEmail     string                   `json:"author_email,omitempty"`
	Maintainer      string                   `json:"maintainer,omitempty"`
	MaintainerEmail string                   `json:"maintainer_email,omitempty"`
	License         string                   `json:"license"`
	Homepage        string                   `json:"homepage,omitempty"`
	Repository      string                   `json:"repository,omitempty"`
	ProjectURLs     map[string]string        `json:"project_urls,omitempty"`
	Keywords        []string                 `json:"keywords,omitempty"`
	Classifiers     []string                 `json:"classifiers,omitempty"`
	RequiresPython  string                   `json:"requires_python,omitempty"`
	RequiresDist    []string                 `json:"requires_dist,omitempty"`
	Yanked          bool                     `json:"yanked"`
	YankedReason    string                   `json:"yanked_reason,omitempty"`
	Files           []ReleaseFile            `json:"files"`
	Releases        map[string][]ReleaseFile `json:"releases,omitempty"`
	Links           map[string]string        `json:"links,omitempty"`
}

// PackageType distinguishes wheels from source distributions.
type PackageType string

const (
	Wheel PackageType = "bdist_wheel"
	Sdist PackageType = "sdist"
)

// ReleaseFile is one uploaded distribution file.
type ReleaseFile struct {
	Filename       string      `json:"filename"`
	Size           int64       `json:"size"`
	UploadTime     time.Time   `json:"upload_time"`
	PackageType    PackageType `json:"packagetype"`
	PythonVersion  string      `json:"python_version,omitempty"`
	RequiresPython string      `json:"requires_python,omitempty"`
	URL            string      `json:"url,omitempty"`
	Yanked         bool        `json:"yanked"`
}

// DownloadStats holds recent download counters.
type DownloadStats struct {
	Package string         `json:"package"`
	Type    string         `json:"type"`
	Data    DownloadCounts `json:"data"`
}

// DownloadCounts are the last-day/week/month totals.
type DownloadCounts struct {
	LastDay   int64 `json:"last_day"`
	LastWeek  int64 `json:"last_week"`
	LastMonth int64 `json:"last_month"`
}

// EmptyDownloadStats is the zero-filled value returned when stats are unavailable.
func EmptyDownloadStats(name string) DownloadStats {
	return DownloadStats{Package: name, Type: "recent_downloads"}
}

// DailyDownloads is one point of a daily download series.
type DailyDownloads struct {
	Date      string `json:"date"`
	Downloads int64  `json:"downloads"`
}

// Vulnerability is an advisory affecting a package.
type Vulnerability struct {
	ID            string    `json:"id"`
	Summary       string    `json:"summary"`
	Details       string    `json:"details,omitempty"`
	Aliases       []string  `json:"aliases,omitempty"`
	Severity      string    `json:"severity"`
	Published     time.Time `json:"published"`
	Modified      time.Time `json:"modified"`
	FixedVersions []string  `json:"fixed_versions,omitempty"`
	References    []string  `json:"references,omitempty"`
}

// DependencyNode is one package in a dependency tree. Version is nil when it
// was not resolved. Error is set, and Children left empty, when the node's own
// lookup failed.
type DependencyNode struct {
	Name       string           `json:"name"`
	Version    *string          `json:"version"`
	Specifier  string           `json:"specifier"`
	IsOptional bool             `json:"isOptional"`
	Extras     []string         `json:"extras"`
	Marker     string           `json:"marker,omitempty"`
	Children   []DependencyNode `json:"children"`
	Error      string           `json:"error,omitempty"`
}

// Tree is a depth-2 dependency forest rooted at one package.
type Tree struct {
	Name         string           `json:"name"`
	Version      string           `json:"version"`
	Dependencies []DependencyNode `json:"dependencies"`
}

// Errors returns the per-node failures recorded in the tree.
func (t *Tree) Errors() []*PartialResolutionError {
	var errs []*PartialResolutionError
	for _, dep := range t.Dependencies {
		if dep.Error != "" {
			errs = append(errs, &PartialResolutionError{Name: dep.Name, Reason: dep.Error})
		}
	}
	return errs
}

// Count returns the number of nodes in the tree, excluding the root.
func (t *Tree) Count() int {
	n := len(t.Dependencies)
	for _, dep := range t.Dependencies {
		n += len(dep.Children)
	}
	return n
}

// Rating is the categorical health rating.
type Rating string

const (
	Excellent Rating = "excellent"
	Good      Rating = "good"
	Fair      Rating = "fair"
	Poor      Rating = "poor"
)

// HealthScore is the derived 0..100 health assessment of a package.
type HealthScore struct {
	Score           int       `json:"score"`
	Rating          Rating    `json:"rating"`
	Breakdown       Breakdown `json:"breakdown"`
	Warnings        []string  `json:"warnings"`
	Recommendations []string  `json:"recommendations"`
}

// Breakdown holds the five sub-scores of a HealthScore.
type Breakdown struct {
	Recency       int `json:"recency"`
	Maintenance   int `json:"maintenance"`
	Compatibility int `json:"compatibility"`
	Popularity    int `json:"popularity"`
	Stability     int `json:"stability"`
}

// ChangelogEntry is one version section of a changelog.
type ChangelogEntry struct {
	Version    string   `json:"version"`
	Date       *string  `json:"date"`
	Changes    []string `json:"changes"`
	IsBreaking bool     `json:"isBreaking"`
	IsSecurity bool     `json:"isSecurity"`
	IsFeature  bool     `json:"isFeature"`
	IsFix      bool     `json:"isFix"`
}

// ChangelogSource records where a changelog came from.
type ChangelogSource string

const (
	SourceGitHub   ChangelogSource = "github"
	SourcePyPI     ChangelogSource = "pypi"
	SourceFallback ChangelogSource = "fallback"
)

// Changelog is a package's parsed release history.
type Changelog struct {
	Package string           `json:"package"`
	Source  ChangelogSource  `json:"source"`
	URL     string           `json:"url,omitempty"`
	Entries []ChangelogEntry `json:"entries"`
}

// Risk is the legal risk tier of a license pairing.
type Risk string

const (
	RiskLow      Risk = "low"
	RiskMedium   Risk = "medium"
	RiskHigh     Risk = "high"
	RiskCritical Risk = "critical"
)

// LicenseCompatibility is the verdict for a (project, dependency) license pair.
type LicenseCompatibility struct {
	IsCompatible             bool   `json:"isCompatible"`
	ProjectLicense           string `json:"projectLicense"`
	PackageLicense           string `json:"packageLicense"`
	Risk                     Risk   `json:"risk"`
	Explanation              string `json:"explanation"`
	RequiresSourceDisclosure bool   `json:"requiresSourceDisclosure"`
	RequiresSameLicense      bool   `json:"requiresSameLicense"`
}
