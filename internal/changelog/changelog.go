// Package changelog parses free-form release notes into version entries and
// classifies each entry as breaking, security, feature or fix.
package changelog

import (
	"bufio"
	"regexp"
	"strings"
	"time"

	"github.com/git-pkgs/pyintel/internal/core"
)

const maxSyntheticEntries = 50

var (
	versionHeader = regexp.MustCompile(`(?i)^#{0,3}\s*(?:version\s*)?\[?v?(\d+\.\d+(?:\.\d+)?(?:[-.]?(?:a|b|rc|alpha|beta|dev|post)\.?\d*)?)\]?(.*)$`)
	underline     = regexp.MustCompile(`^(-{2,}|={2,}|~{2,})$`)

	isoDate   = regexp.MustCompile(`\b(\d{4})[-/](\d{2})[-/](\d{2})\b`)
	dateTrim  = " \t-–—:,()[]"
	dateForms = []string{
		"2 January 2006",
		"2 Jan 2006",
		"January 2, 2006",
		"January 2 2006",
		"Jan 2, 2006",
		"Jan 2 2006",
	}
)

// Classifier patterns. Breaking and security match anywhere; feature and
// fix only match a leading keyword.
var (
	breakingPattern = regexp.MustCompile(`(?i)\bbreaking\b|backwards?[- ]incompatible|\bdeprecat|removed support|drop(?:ped|s)? support|no longer support`)
	securityPattern = regexp.MustCompile(`(?i)security (?:fix|issue|update|patch|release)|\bcve-\d+|vulnerabilit|\bghsa-|\bxss\b|injection`)
	featurePattern  = regexp.MustCompile(`(?i)^(?:added|adds?|new|features?|implement(?:s|ed)?|introduc(?:e|es|ed)|support(?:s|ed)? for)\b`)
	fixPattern      = regexp.MustCompile(`(?i)^(?:fixed|fix(?:es)?|bug ?fix(?:es)?|resolved|resolves?|patch(?:ed)?|correct(?:s|ed)?)\b`)
	leadingMarkup   = regexp.MustCompile("^[\\s*_`\\[(]+")
)

// Parse reads changelog text line by line. A version header starts a new
// entry; lines beginning with "-" or "*" inside an entry become its changes;
// everything else is ignored. Entries keep document order.
func Parse(text string) []core.ChangelogEntry {
	entries := []core.ChangelogEntry{}
	var current *core.ChangelogEntry

	flush := func() {
		if current != nil {
			classify(current)
			entries = append(entries, *current)
			current = nil
		}
	}

	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || underline.MatchString(line) {
			continue
		}

		if m := versionHeader.FindStringSubmatch(line); m != nil {
			flush()
			current = &core.ChangelogEntry{
				Version: m[1],
				Date:    parseDate(m[2]),
				Changes: []string{},
			}
			continue
		}

		if current == nil {
			continue
		}
		if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
			if change := strings.TrimSpace(line[1:]); change != "" {
				current.Changes = append(current.Changes, change)
			}
		}
	}
	flush()

	return entries
}

// parseDate normalizes the text following a version number. Recognized dates
// become YYYY-MM-DD, other text is returned as is, and nothing yields nil.
func parseDate(rest string) *string {
	rest = strings.Trim(rest, dateTrim)
	if rest == "" {
		return nil
	}

	if m := isoDate.FindStringSubmatch(rest); m != nil {
		d := m[1] + "-" + m[2] + "-" + m[3]
		return &d
	}
	for _, layout := range dateForms {
		if t, err := time.Parse(layout, rest); err == nil {
			d := t.Format("2006-01-02")
			return &d
		}
	}
	return &rest
}

func classify(e *core.ChangelogEntry) {
	joined := strings.Join(e.Changes, " ")
	e.IsBreaking = breakingPattern.MatchString(joined)
	e.IsSecurity = securityPattern.MatchString(joined)
	e.IsFeature = featurePattern.MatchString(stripMarkup(joined))
	e.IsFix = fixPattern.MatchString(stripMarkup(joined))

	for _, change := range e.Changes {
		lead := stripMarkup(change)
		e.IsBreaking = e.IsBreaking || breakingPattern.MatchString(change)
		e.IsSecurity = e.IsSecurity || securityPattern.MatchString(change)
		e.IsFeature = e.IsFeature || featurePattern.MatchString(lead)
		e.IsFix = e.IsFix || fixPattern.MatchString(lead)
	}
}

func stripMarkup(s string) string {
	return leadingMarkup.ReplaceAllString(s, "")
}

// Synthesize builds a changelog from the registry's release uploads: one
// unclassified entry per release, newest first.
func Synthesize(record *core.PackageRecord) []core.ChangelogEntry {
	releases := core.SortedReleases(record)
	if len(releases) > maxSyntheticEntries {
		releases = releases[:maxSyntheticEntries]
	}

	entries := make([]core.ChangelogEntry, 0, len(releases))
	for _, r := range releases {
		var date *string
		if !r.Released.IsZero() {
			d := r.Released.Format("2006-01-02")
			date = &d
		}
		entries = append(entries, core.ChangelogEntry{
			Version: r.Version,
			Date:    date,
			Changes: []string{"Version " + r.Version + " released"},
		})
	}
	return entries
}
