package pypi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/git-pkgs/pyintel/internal/core"
)

// ErrNoDownloadURL is returned when a release has no installable file.
var ErrNoDownloadURL = errors.New("no download URL available")

// Artifact is the distribution file pip would most likely install.
type Artifact struct {
	URL         string           `json:"url"`
	Filename    string           `json:"filename"`
	PackageType core.PackageType `json:"packagetype"`
	Size        int64            `json:"size"`
}

// ResolveArtifact returns the preferred download for name at version, or
// for the latest release when version is empty.
func (r *Registry) ResolveArtifact(ctx context.Context, name, version string) (*Artifact, error) {
	record, err := r.FetchPackageInfo(ctx, name, version)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", name, err)
	}

	files := record.Files
	if len(files) == 0 {
		files = record.Releases[record.Version]
	}
	a, err := SelectArtifact(files)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", record.Name, record.Version, err)
	}
	return a, nil
}

// SelectArtifact picks a universal wheel, then any wheel, then a source
// distribution. Yanked files and files without a URL are never chosen.
func SelectArtifact(files []core.ReleaseFile) (*Artifact, error) {
	best, bestRank := -1, 0
	for i, f := range files {
		if f.Yanked || f.URL == "" {
			continue
		}
		if rank := artifactRank(f); rank > bestRank {
			best, bestRank = i, rank
		}
	}
	if best < 0 {
		return nil, ErrNoDownloadURL
	}

	f := files[best]
	filename := f.Filename
	if filename == "" {
		filename = filenameFromURL(f.URL)
	}
	return &Artifact{URL: f.URL, Filename: filename, PackageType: f.PackageType, Size: f.Size}, nil
}

func artifactRank(f core.ReleaseFile) int {
	wheel := f.PackageType == core.Wheel || strings.HasSuffix(f.Filename, ".whl")
	switch {
	case wheel && strings.HasSuffix(f.Filename, "-none-any.whl"):
		return 3
	case wheel:
		return 2
	case f.PackageType == core.Sdist:
		return 1
	}
	return 0
}

func filenameFromURL(url string) string {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	if i := strings.LastIndex(url, "/"); i >= 0 {
		return url[i+1:]
	}
	return url
}
