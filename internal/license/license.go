// Package license normalizes free-text license declarations and decides
// whether a dependency's license can be used under a project's license.
package license

import (
	"regexp"
	"strings"

	"github.com/git-pkgs/pyintel/internal/core"
	"github.com/github/go-spdx/v2/spdxexp"
)

// ID is a normalized license identifier.
type ID string

const (
	MIT       ID = "MIT"
	Apache2   ID = "Apache-2.0"
	BSD2      ID = "BSD-2-Clause"
	BSD3      ID = "BSD-3-Clause"
	ISC       ID = "ISC"
	PSF2      ID = "PSF-2.0"
	Unlicense ID = "Unlicense"
	MPL2      ID = "MPL-2.0"
	LGPL21    ID = "LGPL-2.1"
	LGPL3     ID = "LGPL-3.0"
	GPL2      ID = "GPL-2.0"
	GPL3      ID = "GPL-3.0"
	AGPL3     ID = "AGPL-3.0"
	Unknown   ID = "Unknown"
)

type kind int

const (
	permissive kind = iota
	weakCopyleft
	strongCopyleft
)

type rule struct {
	kind       kind
	compatible []ID
}

var permissiveSet = []ID{MIT, Apache2, BSD2, BSD3, ISC, PSF2, Unlicense}

func with(base []ID, more ...ID) []ID {
	out := make([]ID, 0, len(base)+len(more))
	out = append(out, base...)
	return append(out, more...)
}

// matrix lists, per project license, the dependency licenses it can use.
var matrix = map[ID]rule{
	MIT:       {permissive, with(permissiveSet, MPL2, LGPL21, LGPL3)},
	Apache2:   {permissive, with(permissiveSet, MPL2, LGPL21, LGPL3)},
	BSD2:      {permissive, with(permissiveSet, MPL2, LGPL21, LGPL3)},
	BSD3:      {permissive, with(permissiveSet, MPL2, LGPL21, LGPL3)},
	ISC:       {permissive, with(permissiveSet, MPL2, LGPL21, LGPL3)},
	PSF2:      {permissive, with(permissiveSet, MPL2, LGPL21, LGPL3)},
	Unlicense: {permissive, with(permissiveSet, MPL2, LGPL21, LGPL3)},
	MPL2:      {weakCopyleft, with(permissiveSet, MPL2, LGPL21, LGPL3)},
	LGPL21:    {weakCopyleft, with(permissiveSet, MPL2, LGPL21, LGPL3)},
	LGPL3:     {weakCopyleft, with(permissiveSet, MPL2, LGPL21, LGPL3)},
	// Apache-2.0 and LGPL-3.0 cannot be combined with GPL-2.0-only code.
	GPL2:  {strongCopyleft, []ID{MIT, BSD2, BSD3, ISC, PSF2, Unlicense, MPL2, LGPL21, GPL2}},
	GPL3:  {strongCopyleft, with(permissiveSet, MPL2, LGPL21, LGPL3, GPL2, GPL3)},
	AGPL3: {strongCopyleft, with(permissiveSet, MPL2, LGPL21, LGPL3, GPL2, GPL3, AGPL3)},
}

func kindOf(id ID) kind {
	return matrix[id].kind
}

// Check reports whether a dependency licensed under pkg may be used by a
// project licensed under project. Both arguments are free text and are
// normalized first.
func Check(project, pkg string) core.LicenseCompatibility {
	p, d := Normalize(project), Normalize(pkg)
	result := core.LicenseCompatibility{
		ProjectLicense: string(p),
		PackageLicense: string(d),
	}

	if p == Unknown || d == Unknown {
		result.IsCompatible = true
		result.Risk = core.RiskMedium
		result.Explanation = "License could not be determined; verify manually"
		return result
	}

	k := kindOf(d)
	result.RequiresSourceDisclosure = k != permissive
	result.RequiresSameLicense = k == strongCopyleft

	result.IsCompatible = d == p || contains(matrix[p].compatible, d)
	switch {
	case result.IsCompatible && k == permissive:
		result.Risk = core.RiskLow
		result.Explanation = string(d) + " is a permissive license compatible with " + string(p)
	case result.IsCompatible:
		result.Risk = core.RiskMedium
		result.Explanation = string(d) + " is compatible with " + string(p) + " but carries copyleft obligations for the dependency's source"
	case k == strongCopyleft:
		result.Risk = core.RiskCritical
		result.Explanation = string(d) + " requires the combined work to be distributed under " + string(d) + ", which conflicts with " + string(p)
	default:
		result.Risk = core.RiskHigh
		result.Explanation = string(d) + " is not compatible with " + string(p)
	}
	return result
}

func contains(ids []ID, id ID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// RequiresSourceDisclosure reports whether distributing code under id
// obliges publishing its source.
func RequiresSourceDisclosure(id ID) bool {
	_, ok := matrix[id]
	return ok && kindOf(id) != permissive
}

// RequiresSameLicense reports whether id forces derivative works to use it.
func RequiresSameLicense(id ID) bool {
	_, ok := matrix[id]
	return ok && kindOf(id) == strongCopyleft
}

var trovePrefix = regexp.MustCompile(`^License\s*::\s*(OSI Approved\s*::\s*)?`)

// Normalize maps a license declaration to an ID. It accepts SPDX
// expressions, trove classifiers, common aliases and license text.
func Normalize(text string) ID {
	s := strings.TrimSpace(text)
	if s == "" {
		return Unknown
	}
	s = strings.TrimSpace(trovePrefix.ReplaceAllString(s, ""))

	if id, ok := fromSPDX(s); ok {
		return id
	}
	if id, ok := aliases[strings.ToLower(s)]; ok {
		return id
	}
	return guess(strings.ToLower(s))
}

// fromSPDX returns the first license of an SPDX expression that maps to a
// known ID.
func fromSPDX(s string) (ID, bool) {
	if strings.ContainsAny(s, "\n,") || len(s) > 200 {
		return "", false
	}
	licenses, err := spdxexp.ExtractLicenses(s)
	if err != nil {
		return "", false
	}
	for _, l := range licenses {
		if id, ok := spdxIDs[canonicalSPDX(l)]; ok {
			return id, true
		}
	}
	return "", false
}

func canonicalSPDX(id string) string {
	id = strings.TrimSuffix(id, "+")
	id = strings.TrimSuffix(id, "-only")
	id = strings.TrimSuffix(id, "-or-later")
	return id
}

var spdxIDs = map[string]ID{
	"MIT":          MIT,
	"MIT-0":        MIT,
	"Apache-2.0":   Apache2,
	"BSD-2-Clause": BSD2,
	"BSD-3-Clause": BSD3,
	"0BSD":         BSD2,
	"ISC":          ISC,
	"PSF-2.0":      PSF2,
	"Python-2.0":   PSF2,
	"Unlicense":    Unlicense,
	"CC0-1.0":      Unlicense,
	"MPL-2.0":      MPL2,
	"LGPL-2.1":     LGPL21,
	"LGPL-3.0":     LGPL3,
	"GPL-2.0":      GPL2,
	"GPL-3.0":      GPL3,
	"AGPL-3.0":     AGPL3,
}

var aliases = map[string]ID{
	"mit":                                  MIT,
	"mit license":                          MIT,
	"the mit license":                      MIT,
	"expat":                                MIT,
	"apache":                               Apache2,
	"apache 2":                             Apache2,
	"apache 2.0":                           Apache2,
	"apache-2":                             Apache2,
	"apache license 2.0":                   Apache2,
	"apache license, version 2.0":          Apache2,
	"apache software license":              Apache2,
	"asl 2.0":                              Apache2,
	"bsd":                                  BSD3,
	"bsd license":                          BSD3,
	"new bsd":                              BSD3,
	"new bsd license":                      BSD3,
	"modified bsd":                         BSD3,
	"bsd-3":                                BSD3,
	"3-clause bsd":                         BSD3,
	"bsd 3-clause":                         BSD3,
	"simplified bsd":                       BSD2,
	"bsd-2":                                BSD2,
	"2-clause bsd":                         BSD2,
	"bsd 2-clause":                         BSD2,
	"isc":                                  ISC,
	"isc license":                          ISC,
	"isc license (iscl)":                   ISC,
	"iscl":                                 ISC,
	"psf":                                  PSF2,
	"psfl":                                 PSF2,
	"psf license":                          PSF2,
	"python software foundation license":   PSF2,
	"unlicense":                            Unlicense,
	"the unlicense":                        Unlicense,
	"the unlicense (unlicense)":            Unlicense,
	"public domain":                        Unlicense,
	"mpl":                                  MPL2,
	"mpl 2.0":                              MPL2,
	"mpl2":                                 MPL2,
	"mozilla public license 2.0 (mpl 2.0)": MPL2,
	"lgpl":                                 LGPL3,
	"lgplv2":                               LGPL21,
	"lgplv2+":                              LGPL21,
	"lgplv3":                               LGPL3,
	"lgplv3+":                              LGPL3,
	"gpl":                                  GPL3,
	"gplv2":                                GPL2,
	"gplv2+":                               GPL2,
	"gpl v2":                               GPL2,
	"gplv3":                                GPL3,
	"gplv3+":                               GPL3,
	"gpl v3":                               GPL3,
	"agpl":                                 AGPL3,
	"agplv3":                               AGPL3,
	"agplv3+":                              AGPL3,
}

var (
	mitWord      = regexp.MustCompile(`\bmit\b`)
	mplWord      = regexp.MustCompile(`\bmpl\b`)
	psfWord      = regexp.MustCompile(`\bpsfl?\b`)
	iscWord      = regexp.MustCompile(`\biscl?\b`)
	versionTwo   = regexp.MustCompile(`(v|version |-)2\b|2\.[01]\b|gplv2`)
	versionThree = regexp.MustCompile(`(v|version |-)3\b|3\.0\b|gplv3`)
	twoClauseBSD = regexp.MustCompile(`2-clause|simplified|freebsd`)
)

// guess applies keyword heuristics to lower-cased text. Order matters: the
// more specific GPL family members are tested first.
func guess(s string) ID {
	switch {
	case strings.Contains(s, "affero") || strings.Contains(s, "agpl"):
		return AGPL3
	case strings.Contains(s, "lesser general public") || strings.Contains(s, "library general public") || strings.Contains(s, "lgpl"):
		if versionThree.MatchString(s) {
			return LGPL3
		}
		return LGPL21
	case strings.Contains(s, "general public license") || strings.Contains(s, "gpl"):
		if versionThree.MatchString(s) {
			return GPL3
		}
		if versionTwo.MatchString(s) {
			return GPL2
		}
		return GPL3
	case strings.Contains(s, "mozilla") || mplWord.MatchString(s):
		return MPL2
	case strings.Contains(s, "apache"):
		return Apache2
	case mitWord.MatchString(s) || strings.Contains(s, "permission is hereby granted, free of charge"):
		return MIT
	case strings.Contains(s, "bsd") || strings.Contains(s, "redistribution and use in source and binary forms"):
		if twoClauseBSD.MatchString(s) {
			return BSD2
		}
		return BSD3
	case iscWord.MatchString(s):
		return ISC
	case strings.Contains(s, "python software foundation") || psfWord.MatchString(s):
		return PSF2
	case strings.Contains(s, "unlicense") || strings.Contains(s, "public domain"):
		return Unlicense
	}
	return Unknown
}

// Detect returns the license of a record, preferring its license field and
// falling back to trove classifiers.
func Detect(record *core.PackageRecord) ID {
	if id := Normalize(record.License); id != Unknown {
		return id
	}
	for _, c := range record.Classifiers {
		if !strings.HasPrefix(c, "License ::") {
			continue
		}
		if id := Normalize(c); id != Unknown {
			return id
		}
	}
	return Unknown
}
