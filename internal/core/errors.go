package core

import (
	"fmt"
	"strings"

	"github.com/git-pkgs/pyintel/fetch"
)

// NotFoundError is returned when the registry has no such package or version.
// Suggestions lists similarly named packages.
type NotFoundError struct {
	Name        string
	Version     string
	Suggestions []string
}

func (e *NotFoundError) Error() string {
	var msg string
	if e.Version != "" {
		msg = fmt.Sprintf("package %s version %s not found", e.Name, e.Version)
	} else {
		msg = fmt.Sprintf("package %s not found", e.Name)
	}
	if len(e.Suggestions) > 0 {
		msg += "; did you mean " + strings.Join(e.Suggestions, ", ") + "?"
	}
	return msg
}

func (e *NotFoundError) Unwrap() error {
	return fetch.ErrNotFound
}

// PartialResolutionError describes a dependency whose lookup failed without
// failing the tree.
type PartialResolutionError struct {
	Name   string
	Reason string
}

func (e *PartialResolutionError) Error() string {
	return fmt.Sprintf("resolving %s: %s", e.Name, e.Reason)
}
