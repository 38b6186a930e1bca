package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/git-pkgs/purl"
)

var validName = regexp.MustCompile(`^[A-Za-z0-9]([A-Za-z0-9._-]*[A-Za-z0-9])?$`)

// Target is a package name with an optional version.
type Target struct {
	Name    string
	Version string
}

// String renders the target as name or name==version.
func (t Target) String() string {
	if t.Version == "" {
		return t.Name
	}
	return t.Name + "==" + t.Version
}

// ParseTarget accepts "name", "name==version", "name@version" and
// "pkg:pypi/name@version".
func ParseTarget(arg string) (Target, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return Target{}, fmt.Errorf("empty package name")
	}

	if strings.HasPrefix(arg, "pkg:") {
		p, err := purl.Parse(arg)
		if err != nil {
			return Target{}, fmt.Errorf("parsing purl %q: %w", arg, err)
		}
		if p.Type != "pypi" {
			return Target{}, fmt.Errorf("unsupported purl type %q: only pypi packages are supported", p.Type)
		}
		return Target{Name: p.Name, Version: p.Version}, nil
	}

	name, version := arg, ""
	if i := strings.Index(arg, "=="); i >= 0 {
		name, version = arg[:i], arg[i+2:]
	} else if i := strings.LastIndex(arg, "@"); i > 0 {
		name, version = arg[:i], arg[i+1:]
	}

	name = strings.TrimSpace(name)
	version = strings.TrimSpace(version)
	if !validName.MatchString(name) {
		return Target{}, fmt.Errorf("invalid package name %q", name)
	}
	return Target{Name: name, Version: version}, nil
}
