package core

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

const defaultConcurrency = 5

var nameSeparators = regexp.MustCompile(`[-_.]+`)

// NormalizeName returns the PEP 503 normalized form of a project name.
func NormalizeName(name string) string {
	return nameSeparators.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// ReleaseDate returns the earliest upload time among files, or false when no
// file carries a timestamp.
func ReleaseDate(files []ReleaseFile) (time.Time, bool) {
	var earliest time.Time
	for _, f := range files {
		if f.UploadTime.IsZero() {
			continue
		}
		if earliest.IsZero() || f.UploadTime.Before(earliest) {
			earliest = f.UploadTime
		}
	}
	return earliest, !earliest.IsZero()
}

// Release is a version with its upload date.
type Release struct {
	Version  string
	Released time.Time
	Files    []ReleaseFile
}

// SortedReleases returns the non-empty releases of a record, newest first.
// Releases without timestamps sort last, ordered by version string.
func SortedReleases(record *PackageRecord) []Release {
	releases := make([]Release, 0, len(record.Releases))
	for version, files := range record.Releases {
		if len(files) == 0 {
			continue
		}
		released, _ := ReleaseDate(files)
		releases = append(releases, Release{Version: version, Released: released, Files: files})
	}

	sort.Slice(releases, func(i, j int) bool {
		a, b := releases[i], releases[j]
		if !a.Released.Equal(b.Released) {
			return a.Released.After(b.Released)
		}
		return a.Version > b.Version
	})
	return releases
}

// LatestRelease returns the newest release whose files are not all yanked.
// Returns nil if no such release exists.
func LatestRelease(record *PackageRecord) *Release {
	for _, r := range SortedReleases(record) {
		for _, f := range r.Files {
			if !f.Yanked {
				return &r
			}
		}
	}
	return nil
}

// Bulk runs fn for every name with at most concurrency calls in flight.
// Individual errors are silently ignored; those names are omitted from results.
func Bulk[T any](ctx context.Context, names []string, concurrency int, fn func(ctx context.Context, name string) (T, error)) map[string]T {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	results := make(map[string]T)
	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, name := range names {
		wg.Add(1)
		go func(n string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			v, err := fn(ctx, n)
			if err == nil {
				mu.Lock()
				results[n] = v
				mu.Unlock()
			}
		}(name)
	}

	wg.Wait()
	return results
}
