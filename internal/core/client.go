package core

import (
	"github.com/git-pkgs/pyintel/client"
)

// Type aliases so upstream sources only import core.
type (
	Client     = client.Client
	Option     = client.Option
	URLBuilder = client.URLBuilder
	PyPIURLs   = client.PyPIURLs
)

var (
	DefaultClient = client.DefaultClient
	NewClient     = client.NewClient
	BuildURLs     = client.BuildURLs
)
