package health

import (
	"testing"
	"time"

	"github.com/git-pkgs/pyintel/internal/core"
	"github.com/google/go-cmp/cmp"
)

var now = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func healthyInputs() (Overview, Compatibility, *core.DownloadStats) {
	return Overview{Name: "requests", Version: "2.31.0", DaysSinceRelease: 30, Maintainers: 3},
		Compatibility{PythonVersions: []string{"3.8", "3.12"}, HasWheels: true},
		&core.DownloadStats{Data: core.DownloadCounts{LastMonth: 5_000_000}}
}

func TestScoreHealthy(t *testing.T) {
	o, c, s := healthyInputs()
	got := Score(o, c, s)

	want := core.HealthScore{
		Score:           100,
		Rating:          core.Excellent,
		Breakdown:       core.Breakdown{Recency: 25, Maintenance: 20, Compatibility: 25, Popularity: 20, Stability: 10},
		Warnings:        []string{},
		Recommendations: []string{},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Score mismatch (-want +got):\n%s", diff)
	}
}

func TestScoreDeterministic(t *testing.T) {
	o, c, s := healthyInputs()
	o.Maintainers = 1
	o.DaysSinceRelease = 400
	if diff := cmp.Diff(Score(o, c, s), Score(o, c, s)); diff != "" {
		t.Errorf("Score not deterministic:\n%s", diff)
	}
}

func TestScoreYankedCostsExactlyTenPoints(t *testing.T) {
	o, c, s := healthyInputs()
	before := Score(o, c, s)

	o.IsYanked = true
	after := Score(o, c, s)

	if before.Score-after.Score != 10 {
		t.Errorf("yanked delta = %d, want 10", before.Score-after.Score)
	}
	if after.Breakdown.Stability != 0 {
		t.Errorf("stability = %d, want 0", after.Breakdown.Stability)
	}
	if diff := cmp.Diff([]string{"Release 2.31.0 has been yanked"}, after.Warnings); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
	if len(after.Recommendations) != 1 {
		t.Errorf("expected a recommendation against use, got %v", after.Recommendations)
	}
}

func TestScoreRecency(t *testing.T) {
	tests := []struct {
		days     int
		want     int
		warnings int
	}{
		{-1, 0, 1},
		{0, 25, 0},
		{90, 25, 0},
		{91, 20, 0},
		{180, 20, 0},
		{181, 15, 0},
		{365, 15, 0},
		{366, 5, 1},
	}

	for _, tt := range tests {
		o, c, s := healthyInputs()
		o.DaysSinceRelease = tt.days
		got := Score(o, c, s)
		if got.Breakdown.Recency != tt.want || len(got.Warnings) != tt.warnings {
			t.Errorf("days=%d: recency=%d warnings=%v, want %d with %d warnings",
				tt.days, got.Breakdown.Recency, got.Warnings, tt.want, tt.warnings)
		}
	}
}

func TestScoreMaintenance(t *testing.T) {
	tests := []struct {
		maintainers int
		want        int
		warning     string
	}{
		{0, 5, "No maintainers listed"},
		{1, 15, "Single maintainer (bus factor risk)"},
		{2, 20, ""},
	}

	for _, tt := range tests {
		o, c, s := healthyInputs()
		o.Maintainers = tt.maintainers
		got := Score(o, c, s)
		if got.Breakdown.Maintenance != tt.want {
			t.Errorf("maintainers=%d: score %d, want %d", tt.maintainers, got.Breakdown.Maintenance, tt.want)
		}
		if tt.warning == "" && len(got.Warnings) != 0 {
			t.Errorf("maintainers=%d: unexpected warnings %v", tt.maintainers, got.Warnings)
		}
		if tt.warning != "" && (len(got.Warnings) != 1 || got.Warnings[0] != tt.warning) {
			t.Errorf("maintainers=%d: warnings %v, want %q", tt.maintainers, got.Warnings, tt.warning)
		}
	}
}

func TestScoreCompatibility(t *testing.T) {
	tests := []struct {
		name            string
		compat          Compatibility
		want            int
		warnings        int
		recommendations int
	}{
		{"wheels with classifiers", Compatibility{HasWheels: true, PythonVersions: []string{"3.11"}}, 25, 0, 0},
		{"wheels without classifiers", Compatibility{HasWheels: true}, 20, 0, 1},
		{"source only", Compatibility{IsSourceOnly: true, PythonVersions: []string{"3.11"}}, 10, 1, 0},
		{"no files", Compatibility{}, 15, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, _, s := healthyInputs()
			got := Score(o, tt.compat, s)
			if got.Breakdown.Compatibility != tt.want {
				t.Errorf("compatibility = %d, want %d", got.Breakdown.Compatibility, tt.want)
			}
			if len(got.Warnings) != tt.warnings || len(got.Recommendations) != tt.recommendations {
				t.Errorf("warnings=%v recommendations=%v", got.Warnings, got.Recommendations)
			}
		})
	}
}

func TestScorePopularity(t *testing.T) {
	tests := []struct {
		monthly int64
		want    int
	}{
		{0, 5},
		{99, 5},
		{100, 10},
		{999, 10},
		{1000, 15},
		{9999, 15},
		{10000, 20},
	}

	for _, tt := range tests {
		o, c, _ := healthyInputs()
		got := Score(o, c, &core.DownloadStats{Data: core.DownloadCounts{LastMonth: tt.monthly}})
		if got.Breakdown.Popularity != tt.want {
			t.Errorf("monthly=%d: popularity=%d, want %d", tt.monthly, got.Breakdown.Popularity, tt.want)
		}
	}

	o, c, _ := healthyInputs()
	if got := Score(o, c, nil); got.Breakdown.Popularity != 5 {
		t.Errorf("nil stats: popularity=%d, want 5", got.Breakdown.Popularity)
	}
}

func TestWarningsAccumulate(t *testing.T) {
	got := Score(
		Overview{Version: "0.1", DaysSinceRelease: 1000, Maintainers: 1, IsYanked: true},
		Compatibility{IsSourceOnly: true},
		nil,
	)
	if len(got.Warnings) != 5 {
		t.Errorf("expected one warning per triggered sub-score, got %v", got.Warnings)
	}
	if got.Score != 5+15+10+5+0 || got.Rating != core.Poor {
		t.Errorf("score=%d rating=%s", got.Score, got.Rating)
	}
}

func TestRatingFor(t *testing.T) {
	tests := map[int]core.Rating{100: core.Excellent, 85: core.Excellent, 84: core.Good, 70: core.Good, 69: core.Fair, 50: core.Fair, 49: core.Poor, 0: core.Poor}
	for score, want := range tests {
		if got := RatingFor(score); got != want {
			t.Errorf("RatingFor(%d) = %s, want %s", score, got, want)
		}
	}
}

func TestOverviewFrom(t *testing.T) {
	record := &core.PackageRecord{
		Name:       "flask",
		Version:    "3.0.0",
		Author:     "Armin Ronacher",
		Maintainer: "Pallets, armin ronacher",
		License:    "BSD-3-Clause",
		Yanked:     true,
		Files:      []core.ReleaseFile{{UploadTime: now.AddDate(0, 0, -45)}},
	}

	got := OverviewFrom(record, now)
	want := Overview{Name: "flask", Version: "3.0.0", DaysSinceRelease: 45, Maintainers: 2, IsYanked: true, License: "BSD-3-Clause"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("OverviewFrom mismatch (-want +got):\n%s", diff)
	}
}

func TestOverviewFromEmails(t *testing.T) {
	record := &core.PackageRecord{
		Version:     "1.0",
		AuthorEmail: "Jane Doe <jane@example.com>, bob@example.com",
		Releases: map[string][]core.ReleaseFile{
			"1.0": {{UploadTime: now.AddDate(0, 0, -10)}},
		},
	}
	got := OverviewFrom(record, now)
	if got.Maintainers != 2 {
		t.Errorf("Maintainers = %d, want 2", got.Maintainers)
	}
	if got.DaysSinceRelease != 10 {
		t.Errorf("DaysSinceRelease = %d, want 10", got.DaysSinceRelease)
	}

	if got := OverviewFrom(&core.PackageRecord{}, now); got.DaysSinceRelease != -1 || got.Maintainers != 0 {
		t.Errorf("empty record overview = %+v", got)
	}
}

func TestCompatibilityFrom(t *testing.T) {
	record := &core.PackageRecord{
		RequiresPython: ">=3.8",
		Classifiers: []string{
			"Programming Language :: Python :: 3",
			"Programming Language :: Python :: 3.8",
			"Programming Language :: Python :: 3.12",
			"Programming Language :: Python :: 3 :: Only",
			"License :: OSI Approved :: MIT License",
		},
		Files: []core.ReleaseFile{
			{Filename: "pkg-1.0.tar.gz", PackageType: core.Sdist},
			{Filename: "pkg-1.0-py3-none-any.whl", PackageType: core.Wheel},
		},
	}

	got := CompatibilityFrom(record)
	want := Compatibility{PythonVersions: []string{"3.8", "3.12"}, RequiresPython: ">=3.8", HasWheels: true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("CompatibilityFrom mismatch (-want +got):\n%s", diff)
	}

	sdist := CompatibilityFrom(&core.PackageRecord{Files: []core.ReleaseFile{{Filename: "x.tar.gz", PackageType: core.Sdist}}})
	if !sdist.IsSourceOnly || sdist.HasWheels {
		t.Errorf("sdist-only compatibility = %+v", sdist)
	}

	empty := CompatibilityFrom(&core.PackageRecord{})
	if empty.IsSourceOnly || empty.HasWheels {
		t.Errorf("no-files compatibility = %+v", empty)
	}
}
