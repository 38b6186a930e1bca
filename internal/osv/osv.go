// Package osv queries the OSV vulnerability database for PyPI advisories.
package osv

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/git-pkgs/pyintel/internal/core"
	"github.com/tidwall/gjson"
)

const (
	DefaultURL = "https://api.osv.dev"
	ecosystem  = "PyPI"
)

// Client queries /v1/query.
type Client struct {
	baseURL string
	client  *core.Client
	store   *core.Store
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used to report failed lookups.
func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a Client. Empty arguments fall back to defaults.
func New(baseURL string, client *core.Client, store *core.Store, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if client == nil {
		client = core.DefaultClient()
	}
	if store == nil {
		store = core.NewStore(nil)
	}
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		store:   store,
		logger:  log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type query struct {
	Package queryPackage `json:"package"`
	Version string       `json:"version,omitempty"`
}

type queryPackage struct {
	Name      string `json:"name"`
	Ecosystem string `json:"ecosystem"`
}

type queryResponse struct {
	Vulns []entry `json:"vulns"`
}

type entry struct {
	ID               string          `json:"id"`
	Summary          string          `json:"summary"`
	Details          string          `json:"details"`
	Aliases          []string        `json:"aliases"`
	Modified         string          `json:"modified"`
	Published        string          `json:"published"`
	Severity         []severity      `json:"severity"`
	Affected         []affected      `json:"affected"`
	References       []reference     `json:"references"`
	DatabaseSpecific json.RawMessage `json:"database_specific"`
}

type severity struct {
	Type  string `json:"type"`
	Score string `json:"score"`
}

type affected struct {
	Package struct {
		Name      string `json:"name"`
		Ecosystem string `json:"ecosystem"`
	} `json:"package"`
	Ranges []struct {
		Type   string `json:"type"`
		Events []struct {
			Introduced string `json:"introduced,omitempty"`
			Fixed      string `json:"fixed,omitempty"`
		} `json:"events"`
	} `json:"ranges"`
	DatabaseSpecific json.RawMessage `json:"database_specific"`
}

type reference struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// FetchVulnerabilities returns advisories affecting name, or one version of
// it when version is non-empty. Lookup failures yield an empty list.
func (c *Client) FetchVulnerabilities(ctx context.Context, name, version string) []core.Vulnerability {
	vulns, err := core.Cached(ctx, c.store, core.Key("vulns", name, version), func(ctx context.Context) ([]core.Vulnerability, error) {
		return c.fetch(ctx, name, version)
	})
	if err != nil {
		c.logger.Warn("vulnerability lookup failed", "package", name, "version", version, "err", err)
		return []core.Vulnerability{}
	}
	return vulns
}

func (c *Client) fetch(ctx context.Context, name, version string) ([]core.Vulnerability, error) {
	q := query{
		Package: queryPackage{Name: core.NormalizeName(name), Ecosystem: ecosystem},
		Version: version,
	}

	var resp queryResponse
	if err := c.client.PostJSON(ctx, c.baseURL+"/v1/query", q, &resp); err != nil {
		return nil, err
	}

	vulns := make([]core.Vulnerability, 0, len(resp.Vulns))
	for _, e := range resp.Vulns {
		vulns = append(vulns, convert(e, name))
	}
	return vulns, nil
}

func convert(e entry, name string) core.Vulnerability {
	v := core.Vulnerability{
		ID:            e.ID,
		Summary:       e.Summary,
		Details:       e.Details,
		Aliases:       e.Aliases,
		Severity:      severityOf(e),
		Published:     parseTime(e.Published),
		Modified:      parseTime(e.Modified),
		FixedVersions: fixedVersions(e.Affected, name),
	}
	if v.Summary == "" {
		v.Summary = firstLine(e.Details)
	}
	for _, ref := range e.References {
		if ref.URL != "" {
			v.References = append(v.References, ref.URL)
		}
	}
	return v
}

// severityOf reads database_specific.severity, then the first severity
// entry's type, else UNKNOWN.
func severityOf(e entry) string {
	if len(e.DatabaseSpecific) > 0 {
		if s := gjson.GetBytes(e.DatabaseSpecific, "severity").String(); s != "" {
			return strings.ToUpper(s)
		}
	}
	for _, a := range e.Affected {
		if len(a.DatabaseSpecific) == 0 {
			continue
		}
		if s := gjson.GetBytes(a.DatabaseSpecific, "severity").String(); s != "" {
			return strings.ToUpper(s)
		}
	}
	if len(e.Severity) > 0 && e.Severity[0].Type != "" {
		return e.Severity[0].Type
	}
	return "UNKNOWN"
}

func fixedVersions(affected []affected, name string) []string {
	normalized := core.NormalizeName(name)
	seen := make(map[string]bool)
	var fixed []string
	for _, a := range affected {
		if a.Package.Name != "" && core.NormalizeName(a.Package.Name) != normalized {
			continue
		}
		for _, r := range a.Ranges {
			for _, ev := range r.Events {
				if ev.Fixed != "" && !seen[ev.Fixed] {
					seen[ev.Fixed] = true
					fixed = append(fixed, ev.Fixed)
				}
			}
		}
	}
	return fixed
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
