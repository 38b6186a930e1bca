package pypi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/git-pkgs/pyintel/fetch"
	"github.com/git-pkgs/pyintel/internal/core"
	"github.com/google/go-cmp/cmp"
)

func TestFetchPackageInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pypi/requests/json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			w.WriteHeader(404)
			return
		}

		resp := packageResponse{
			Info: infoBlock{
				Name:     "requests",
				Version:  "2.31.0",
				Summary:  "Python HTTP for Humans.",
				Author:   "Kenneth Reitz",
				License:  "Apache 2.0",
				HomePage: "https://requests.readthedocs.io",
				Keywords: "http,web,client",
				ProjectURLs: map[string]string{
					"Source":        "https://github.com/psf/requests",
					"Documentation": "https://requests.readthedocs.io",
				},
				RequiresDist: []string{"charset-normalizer<4,>=2", "idna<4,>=2.5"},
			},
			URLs: []releaseFile{
				{
					Filename:          "requests-2.31.0-py3-none-any.whl",
					PackageType:       "bdist_wheel",
					UploadTimeISO8601: "2023-05-22T15:12:42.313790Z",
					Size:              62574,
				},
			},
			Releases: map[string][]releaseFile{
				"2.31.0": {{Filename: "requests-2.31.0.tar.gz", PackageType: "sdist", UploadTime: "2023-05-22T15:12:44"}},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	reg := New(server.URL, core.DefaultClient(), nil)
	pkg, err := reg.FetchPackageInfo(context.Background(), "requests", "")
	if err != nil {
		t.Fatalf("FetchPackageInfo failed: %v", err)
	}

	if pkg.Name != "requests" || pkg.Version != "2.31.0" {
		t.Errorf("unexpected name/version: %q %q", pkg.Name, pkg.Version)
	}
	if pkg.Repository != "https://github.com/psf/requests" {
		t.Errorf("unexpected repository: %q", pkg.Repository)
	}
	if pkg.License != "Apache 2.0" {
		t.Errorf("unexpected license: %q", pkg.License)
	}
	if len(pkg.Keywords) != 3 {
		t.Errorf("expected 3 keywords, got %d", len(pkg.Keywords))
	}
	if len(pkg.RequiresDist) != 2 {
		t.Errorf("expected 2 requirements, got %d", len(pkg.RequiresDist))
	}
	if len(pkg.Files) != 1 || pkg.Files[0].PackageType != core.Wheel {
		t.Fatalf("unexpected files: %+v", pkg.Files)
	}
	want := time.Date(2023, 5, 22, 15, 12, 42, 313790000, time.UTC)
	if !pkg.Files[0].UploadTime.Equal(want) {
		t.Errorf("upload time = %v, want %v", pkg.Files[0].UploadTime, want)
	}
	if got := pkg.Releases["2.31.0"][0].UploadTime; !got.Equal(time.Date(2023, 5, 22, 15, 12, 44, 0, time.UTC)) {
		t.Errorf("release upload time = %v", got)
	}
	if pkg.Links["purl"] != "pkg:pypi/requests@2.31.0" {
		t.Errorf("purl link = %q", pkg.Links["purl"])
	}
	if pkg.Yanked {
		t.Error("expected not yanked")
	}
}

func TestFetchPackageInfoVersion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pypi/flask/2.0.0/json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"info":{"name":"Flask","version":"2.0.0","yanked":true,"yanked_reason":"broken"},"urls":[]}`))
	}))
	defer server.Close()

	reg := New(server.URL, core.DefaultClient(), nil)
	pkg, err := reg.FetchPackageInfo(context.Background(), "flask", "2.0.0")
	if err != nil {
		t.Fatalf("FetchPackageInfo failed: %v", err)
	}
	if !pkg.Yanked || pkg.YankedReason != "broken" {
		t.Errorf("expected yanked with reason, got %v %q", pkg.Yanked, pkg.YankedReason)
	}
}

func TestFetchPackageInfoYankedFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"info":{"name":"pkg","version":"1.0"},"urls":[{"filename":"pkg-1.0.tar.gz","yanked":true}]}`))
	}))
	defer server.Close()

	pkg, err := New(server.URL, core.DefaultClient(), nil).FetchPackageInfo(context.Background(), "pkg", "")
	if err != nil {
		t.Fatalf("FetchPackageInfo failed: %v", err)
	}
	if !pkg.Yanked {
		t.Error("expected record with only yanked files to be yanked")
	}
}

func TestFetchPackageInfoNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	reg := New(server.URL, core.DefaultClient(), nil, WithSuggester(func(name string) []string {
		return []string{"requests"}
	}))
	_, err := reg.FetchPackageInfo(context.Background(), "reqeusts", "")

	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected *core.NotFoundError, got %v", err)
	}
	if !errors.Is(err, fetch.ErrNotFound) {
		t.Error("expected errors.Is(err, fetch.ErrNotFound)")
	}
	if diff := cmp.Diff([]string{"requests"}, nf.Suggestions); diff != "" {
		t.Errorf("suggestions mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchPackageInfoMissingName(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"info":{},"releases":{}}`))
	}))
	defer server.Close()

	_, err := New(server.URL, core.DefaultClient(), nil).FetchPackageInfo(context.Background(), "x", "")
	if !errors.Is(err, fetch.ErrInvalidPayload) {
		t.Errorf("expected ErrInvalidPayload, got %v", err)
	}
}

func TestFetchPackageInfoCached(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"info":{"name":"Flask_Login","version":"0.6.3"}}`))
	}))
	defer server.Close()

	store := core.NewStore(nil)
	reg := New(server.URL, core.DefaultClient(), store)
	for _, name := range []string{"Flask_Login", "flask-login", "FLASK.LOGIN"} {
		if _, err := reg.FetchPackageInfo(context.Background(), name, ""); err != nil {
			t.Fatalf("FetchPackageInfo(%q) failed: %v", name, err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("upstream hits = %d, want 1", got)
	}
	if _, ok := store.Cache().Get("info:flask-login"); !ok {
		t.Error("expected record cached under info:flask-login")
	}
}

func TestExtractLicense(t *testing.T) {
	tests := []struct {
		name string
		info infoBlock
		want string
	}{
		{"expression wins", infoBlock{LicenseExpression: "MIT OR Apache-2.0", License: "MIT"}, "MIT OR Apache-2.0"},
		{"license field", infoBlock{License: "BSD"}, "BSD"},
		{"classifier", infoBlock{Classifiers: []string{"License :: OSI Approved :: MIT License"}}, "MIT License"},
		{"pasted body falls back to classifier", infoBlock{
			License:     "Copyright (c) 2020\nPermission is hereby granted...",
			Classifiers: []string{"License :: OSI Approved :: BSD License"},
		}, "BSD License"},
		{"nothing", infoBlock{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractLicense(tt.info); got != tt.want {
				t.Errorf("extractLicense = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseKeywords(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"http,web,client", 3},
		{"http web client", 3},
		{"", 0},
		{"single", 1},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseKeywords(tt.input)
			if len(got) != tt.expected {
				t.Errorf("expected %d keywords, got %d", tt.expected, len(got))
			}
		})
	}
}
