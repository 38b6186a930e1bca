package pypi

import (
	"regexp"
	"strings"
)

// Requirement is a parsed PEP 508 dependency specifier.
type Requirement struct {
	Name      string
	Specifier string
	Extras    []string
	Marker    string
	Optional  bool // the marker references an extra
}

var (
	pep508NameRegex = regexp.MustCompile(`^([A-Za-z0-9][-A-Za-z0-9._]*[A-Za-z0-9]|[A-Za-z0-9])\s*(?:\[([^\]]*)\])?`)
	extraMarker     = regexp.MustCompile(`\bextra\s*(==|!=|in\b)`)
)

// ParseRequirement parses entries such as
// "requests[socks]>=2.0,<3; python_version >= '3.8'".
// An empty specifier is reported as "*".
func ParseRequirement(dep string) Requirement {
	parts := strings.SplitN(dep, ";", 2)
	nameAndVersion := strings.TrimSpace(parts[0])

	var req Requirement
	if len(parts) > 1 {
		req.Marker = strings.TrimSpace(parts[1])
		req.Optional = extraMarker.MatchString(req.Marker)
	}

	match := pep508NameRegex.FindStringSubmatch(nameAndVersion)
	if match != nil {
		req.Name = match[1]
		req.Extras = parseExtras(match[2])
		spec := strings.TrimSpace(nameAndVersion[len(match[0]):])
		spec = strings.TrimPrefix(spec, "(")
		spec = strings.TrimSuffix(spec, ")")
		req.Specifier = strings.TrimSpace(spec)
	} else {
		req.Name = nameAndVersion
	}

	if req.Specifier == "" {
		req.Specifier = "*"
	}
	return req
}

func parseExtras(s string) []string {
	if strings.TrimSpace(s) == "" {
		return []string{}
	}
	extras := []string{}
	for _, e := range strings.Split(s, ",") {
		if e = strings.TrimSpace(e); e != "" {
			extras = append(extras, e)
		}
	}
	return extras
}
