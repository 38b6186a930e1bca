package client

import (
	"fmt"
	"regexp"
	"strings"
)

// URLBuilder constructs user-facing links for a package.
type URLBuilder interface {
	Registry(name, version string) string
	Documentation(name, version string) string
	PURL(name, version string) string
}

// PyPIURLs builds links for packages hosted on a PyPI-compatible index.
type PyPIURLs struct {
	BaseURL string
}

// Registry returns the project page on the index.
func (u *PyPIURLs) Registry(name, version string) string {
	base := strings.TrimSuffix(u.BaseURL, "/")
	if base == "" {
		base = "https://pypi.org"
	}
	if version != "" {
		return fmt.Sprintf("%s/project/%s/%s/", base, name, version)
	}
	return fmt.Sprintf("%s/project/%s/", base, name)
}

// Documentation guesses the Read the Docs location.
func (u *PyPIURLs) Documentation(name, version string) string {
	slug := normalize(name)
	if version != "" {
		return fmt.Sprintf("https://%s.readthedocs.io/en/%s/", slug, version)
	}
	return fmt.Sprintf("https://%s.readthedocs.io/", slug)
}

// PURL returns the package URL, e.g. pkg:pypi/requests@2.31.0.
func (u *PyPIURLs) PURL(name, version string) string {
	if version != "" {
		return fmt.Sprintf("pkg:pypi/%s@%s", normalize(name), version)
	}
	return fmt.Sprintf("pkg:pypi/%s", normalize(name))
}

// BuildURLs returns a map of all non-empty URLs for a package.
// Keys are "registry", "docs", and "purl".
func BuildURLs(urls URLBuilder, name, version string) map[string]string {
	result := make(map[string]string)
	if v := urls.Registry(name, version); v != "" {
		result["registry"] = v
	}
	if v := urls.Documentation(name, version); v != "" {
		result["docs"] = v
	}
	if v := urls.PURL(name, version); v != "" {
		result["purl"] = v
	}
	return result
}

var separatorRun = regexp.MustCompile(`[-_.]+`)

func normalize(name string) string {
	return separatorRun.ReplaceAllString(strings.ToLower(name), "-")
}
