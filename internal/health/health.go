// Package health scores the overall health of a package from its registry
// metadata and download numbers.
package health

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/git-pkgs/pyintel/internal/core"
)

// Overview summarizes a release for scoring. DaysSinceRelease is -1 when the
// release date is unknown.
type Overview struct {
	Name             string `json:"name"`
	Version          string `json:"version"`
	DaysSinceRelease int    `json:"daysSinceRelease"`
	Maintainers      int    `json:"maintainers"`
	IsYanked         bool   `json:"isYanked"`
	License          string `json:"license"`
}

// Compatibility describes what a release ships and which Pythons it targets.
type Compatibility struct {
	PythonVersions []string `json:"pythonVersions"`
	RequiresPython string   `json:"requiresPython,omitempty"`
	HasWheels      bool     `json:"hasWheels"`
	IsSourceOnly   bool     `json:"isSourceOnly"`
}

var pythonClassifier = regexp.MustCompile(`^Programming Language :: Python :: (\d+\.\d+)$`)

// OverviewFrom derives an Overview from a record as of now.
func OverviewFrom(record *core.PackageRecord, now time.Time) Overview {
	o := Overview{
		Name:             record.Name,
		Version:          record.Version,
		DaysSinceRelease: -1,
		Maintainers:      countMaintainers(record),
		IsYanked:         record.Yanked,
		License:          record.License,
	}

	released, ok := core.ReleaseDate(record.Files)
	if !ok {
		released, ok = core.ReleaseDate(record.Releases[record.Version])
	}
	if ok {
		days := int(now.Sub(released).Hours() / 24)
		if days < 0 {
			days = 0
		}
		o.DaysSinceRelease = days
	}
	return o
}

func countMaintainers(record *core.PackageRecord) int {
	people := splitPeople(record.Author, record.Maintainer)
	if len(people) == 0 {
		people = splitPeople(record.AuthorEmail, record.MaintainerEmail)
	}
	return len(people)
}

// splitPeople returns the distinct names in comma separated fields. An
// address in angle brackets identifies the person when present.
func splitPeople(fields ...string) map[string]bool {
	people := make(map[string]bool)
	for _, field := range fields {
		for _, p := range strings.Split(field, ",") {
			p = strings.TrimSpace(p)
			if i := strings.Index(p, "<"); i >= 0 {
				if j := strings.Index(p[i:], ">"); j > 0 {
					p = p[i+1 : i+j]
				}
			}
			if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
				people[p] = true
			}
		}
	}
	return people
}

// CompatibilityFrom derives a Compatibility from a record's classifiers and
// release files.
func CompatibilityFrom(record *core.PackageRecord) Compatibility {
	c := Compatibility{
		PythonVersions: []string{},
		RequiresPython: record.RequiresPython,
	}
	for _, classifier := range record.Classifiers {
		if m := pythonClassifier.FindStringSubmatch(classifier); m != nil {
			c.PythonVersions = append(c.PythonVersions, m[1])
		}
	}

	files := record.Files
	if len(files) == 0 {
		files = record.Releases[record.Version]
	}
	for _, f := range files {
		if f.PackageType == core.Wheel || strings.HasSuffix(f.Filename, ".whl") {
			c.HasWheels = true
			break
		}
	}
	c.IsSourceOnly = len(files) > 0 && !c.HasWheels
	return c
}

// Score combines recency, maintenance, compatibility, popularity and
// stability into a 0..100 score. Nil stats count as zero downloads.
// The result depends only on its arguments.
func Score(overview Overview, compat Compatibility, stats *core.DownloadStats) core.HealthScore {
	h := core.HealthScore{
		Warnings:        []string{},
		Recommendations: []string{},
	}
	warn := func(format string, args ...any) {
		h.Warnings = append(h.Warnings, fmt.Sprintf(format, args...))
	}
	recommend := func(s string) {
		h.Recommendations = append(h.Recommendations, s)
	}

	switch d := overview.DaysSinceRelease; {
	case d < 0:
		h.Breakdown.Recency = 0
		warn("Release date unknown")
	case d <= 90:
		h.Breakdown.Recency = 25
	case d <= 180:
		h.Breakdown.Recency = 20
	case d <= 365:
		h.Breakdown.Recency = 15
	default:
		h.Breakdown.Recency = 5
		warn("No release in over a year (%d days)", d)
	}

	switch n := overview.Maintainers; {
	case n <= 0:
		h.Breakdown.Maintenance = 5
		warn("No maintainers listed")
	case n == 1:
		h.Breakdown.Maintenance = 15
		warn("Single maintainer (bus factor risk)")
	default:
		h.Breakdown.Maintenance = 20
	}

	switch {
	case compat.HasWheels && len(compat.PythonVersions) > 0:
		h.Breakdown.Compatibility = 25
	case compat.HasWheels:
		h.Breakdown.Compatibility = 20
		recommend("Verify supported Python versions; no version classifiers are declared")
	case compat.IsSourceOnly:
		h.Breakdown.Compatibility = 10
		warn("Source distribution only; installation requires a build step")
	default:
		h.Breakdown.Compatibility = 15
	}

	var monthly int64
	if stats != nil {
		monthly = stats.Data.LastMonth
	}
	switch {
	case monthly < 100:
		h.Breakdown.Popularity = 5
		warn("Very low adoption (%d downloads last month)", monthly)
	case monthly < 1000:
		h.Breakdown.Popularity = 10
	case monthly < 10000:
		h.Breakdown.Popularity = 15
	default:
		h.Breakdown.Popularity = 20
	}

	if overview.IsYanked {
		h.Breakdown.Stability = 0
		warn("Release %s has been yanked", overview.Version)
		recommend("Do not use this release; pin a version that has not been yanked")
	} else {
		h.Breakdown.Stability = 10
	}

	b := h.Breakdown
	h.Score = b.Recency + b.Maintenance + b.Compatibility + b.Popularity + b.Stability
	h.Rating = RatingFor(h.Score)
	return h
}

// RatingFor maps a score to its rating.
func RatingFor(score int) core.Rating {
	switch {
	case score >= 85:
		return core.Excellent
	case score >= 70:
		return core.Good
	case score >= 50:
		return core.Fair
	}
	return core.Poor
}
