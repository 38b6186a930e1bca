// Package pypistats provides a client for the pypistats.org download API.
//
// Download numbers are supplementary data: every failure degrades to a
// zero-filled value instead of an error.
package pypistats

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/git-pkgs/pyintel/fetch"
	"github.com/git-pkgs/pyintel/internal/core"
	"github.com/tidwall/gjson"
)

const (
	DefaultURL  = "https://pypistats.org/api"
	DefaultDays = 30
	MaxDays     = 180
)

// Client fetches download statistics.
type Client struct {
	baseURL string
	client  *core.Client
	store   *core.Store
	logger  *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger used to report degraded responses.
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

// FetchRecent returns last day/week/month download counts. On any failure,
// including a payload without a numeric data.last_day, it returns zeroes.
func (c *Client) FetchRecent(ctx context.Context, name string) core.DownloadStats {
	stats, err := core.Cached(ctx, c.store, core.Key("recent", name), func(ctx context.Context) (core.DownloadStats, error) {
		return c.fetchRecent(ctx, name)
	})
	if err != nil {
		c.logger.Warn("download stats unavailable", "package", name, "err", err)
		return core.EmptyDownloadStats(name)
	}
	return stats
}

func (c *Client) fetchRecent(ctx context.Context, name string) (core.DownloadStats, error) {
	endpoint := fmt.Sprintf("%s/packages/%s/recent", c.baseURL, url.PathEscape(core.NormalizeName(name)))

	body, err := c.client.GetBody(ctx, endpoint)
	if err != nil {
		return core.DownloadStats{}, err
	}
	if !gjson.ValidBytes(body) {
		return core.DownloadStats{}, &fetch.ValidationError{URL: endpoint, Reason: "response is not JSON"}
	}

	data := gjson.GetBytes(body, "data")
	lastDay := data.Get("last_day")
	if lastDay.Type != gjson.Number {
		return core.DownloadStats{}, &fetch.ValidationError{URL: endpoint, Reason: "missing numeric data.last_day"}
	}

	pkg := gjson.GetBytes(body, "package").String()
	if pkg == "" {
		pkg = name
	}
	return core.DownloadStats{
		Package: pkg,
		Type:    "recent_downloads",
		Data: core.DownloadCounts{
			LastDay:   lastDay.Int(),
			LastWeek:  data.Get("last_week").Int(),
			LastMonth: data.Get("last_month").Int(),
		},
	}, nil
}

// ClampDays bounds a requested day count to 1..180. Zero or negative means 30.
func ClampDays(days int) int {
	switch {
	case days <= 0:
		return DefaultDays
	case days > MaxDays:
		return MaxDays
	}
	return days
}

// FetchDaily returns up to days points of daily downloads including mirrors,
// oldest first. On failure it returns an empty series.
func (c *Client) FetchDaily(ctx context.Context, name string, days int) []core.DailyDownloads {
	days = ClampDays(days)
	series, err := core.Cached(ctx, c.store, core.Key("daily", name, strconv.Itoa(days)), func(ctx context.Context) ([]core.DailyDownloads, error) {
		return c.fetchDaily(ctx, name, days)
	})
	if err != nil {
		c.logger.Warn("daily download stats unavailable", "package", name, "days", days, "err", err)
		return []core.DailyDownloads{}
	}
	return series
}

func (c *Client) fetchDaily(ctx context.Context, name string, days int) ([]core.DailyDownloads, error) {
	endpoint := fmt.Sprintf("%s/packages/%s/overall?mirrors=true&period=day&days=%d",
		c.baseURL, url.PathEscape(core.NormalizeName(name)), days)

	body, err := c.client.GetBody(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, &fetch.ValidationError{URL: endpoint, Reason: "response is not JSON"}
	}

	data := gjson.GetBytes(body, "data")
	if !data.IsArray() {
		return nil, &fetch.ValidationError{URL: endpoint, Reason: "data is not an array"}
	}

	totals := make(map[string]int64)
	data.ForEach(func(_, row gjson.Result) bool {
		category := row.Get("category").String()
		if category != "" && category != "with_mirrors" {
			return true
		}
		date := row.Get("date").String()
		if date == "" {
			return true
		}
		totals[date] += row.Get("downloads").Int()
		return true
	})

	series := make([]core.DailyDownloads, 0, len(totals))
	for date, n := range totals {
		series = append(series, core.DailyDownloads{Date: date, Downloads: n})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Date < series[j].Date
	})
	if len(series) > days {
		series = series[len(series)-days:]
	}
	return series, nil
}
