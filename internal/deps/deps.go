// Package deps resolves a package's dependencies two levels deep.
package deps

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
	"github.com/git-pkgs/pyintel/internal/core"
	"github.com/git-pkgs/pyintel/internal/pypi"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultMaxDirect   = 20
	DefaultMaxChildren = 5
	DefaultConcurrency = 5
)

// Resolver builds depth-2 dependency trees.
type Resolver struct {
	source      core.PackageSource
	maxDirect   int
	maxChildren int
	concurrency int
	logger      *log.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithMaxDirect caps the number of direct dependencies resolved.
func WithMaxDirect(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxDirect = n
		}
	}
}

// WithMaxChildren caps the number of children listed per direct dependency.
func WithMaxChildren(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxChildren = n
		}
	}
}

// WithConcurrency sets how many direct dependencies are fetched at once.
func WithConcurrency(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// WithLogger sets the logger used to report failed lookups.
func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a Resolver that reads manifests from source.
func New(source core.PackageSource, opts ...Option) *Resolver {
	r := &Resolver{
		source:      source,
		maxDirect:   DefaultMaxDirect,
		maxChildren: DefaultMaxChildren,
		concurrency: DefaultConcurrency,
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve fetches name (at version, or latest when empty) and its direct
// dependencies with their own requirements. A failure to fetch the root is
// returned; a failure on a direct dependency is recorded on its node.
// Cancelling ctx stops fetches that have not started.
func (r *Resolver) Resolve(ctx context.Context, name, version string) (*core.Tree, error) {
	root, err := r.source.FetchPackageInfo(ctx, name, version)
	if err != nil {
		return nil, err
	}

	direct := Dedupe(Requirements(root.RequiresDist), true)
	if len(direct) > r.maxDirect {
		direct = direct[:r.maxDirect]
	}

	nodes := make([]core.DependencyNode, len(direct))
	for i, req := range direct {
		nodes[i] = nodeFor(req)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range nodes {
		g.Go(func() error {
			return r.expand(gctx, &nodes[i])
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &core.Tree{
		Name:         root.Name,
		Version:      root.Version,
		Dependencies: nodes,
	}, nil
}

// expand fills in a direct dependency's version and children. Only context
// cancellation is returned as an error.
func (r *Resolver) expand(ctx context.Context, node *core.DependencyNode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	record, err := r.source.FetchPackageInfo(ctx, node.Name, "")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		r.logger.Debug("dependency lookup failed", "package", node.Name, "err", err)
		node.Error = err.Error()
		return nil
	}

	v := record.Version
	node.Version = &v

	children := Dedupe(Requirements(record.RequiresDist), false)
	if len(children) > r.maxChildren {
		children = children[:r.maxChildren]
	}
	for _, req := range children {
		node.Children = append(node.Children, nodeFor(req))
	}
	return nil
}

// Requirements parses requires_dist entries in order.
func Requirements(entries []string) []pypi.Requirement {
	reqs := make([]pypi.Requirement, 0, len(entries))
	for _, e := range entries {
		req := pypi.ParseRequirement(e)
		if req.Name == "" {
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// Dedupe drops repeated names (compared after normalization), keeping the
// first occurrence and the original order. Optional requirements are dropped
// unless keepOptional is set.
func Dedupe(reqs []pypi.Requirement, keepOptional bool) []pypi.Requirement {
	seen := make(map[string]bool, len(reqs))
	out := make([]pypi.Requirement, 0, len(reqs))
	for _, req := range reqs {
		if req.Optional && !keepOptional {
			continue
		}
		key := core.NormalizeName(req.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, req)
	}
	return out
}

func nodeFor(req pypi.Requirement) core.DependencyNode {
	extras := req.Extras
	if extras == nil {
		extras = []string{}
	}
	return core.DependencyNode{
		Name:       req.Name,
		Specifier:  req.Specifier,
		IsOptional: req.Optional,
		Extras:     extras,
		Marker:     req.Marker,
		Children:   []core.DependencyNode{},
	}
}
