// Package cli implements the pyintel command-line interface.
//
// Every command takes one or more package targets ("requests",
// "requests==2.31.0", "requests@2.31.0" or "pkg:pypi/requests@2.31.0") and
// prints either styled text or, with --json, the raw result.
//
// # Commands
//
//   - info: registry metadata and the preferred download
//   - stats: recent and daily download counts
//   - vulns: known advisories
//   - deps: the two-level dependency tree
//   - health: the 0-100 health score
//   - changelog: classified release history
//   - license: compatibility of a package's license with a project license
//   - analyze: all of the above for several packages at once
//
// # Configuration
//
// Settings are read from $HOME/.pyintel.yaml (or --config), then from
// PYINTEL_* environment variables, then from flags.
package cli
