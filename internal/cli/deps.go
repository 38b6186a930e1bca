package cli

import (
	"strings"

	"github.com/git-pkgs/pyintel"
	"github.com/spf13/cobra"
)

func newDepsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deps <package>",
		Short: "Show the dependency tree two levels deep",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := pyintel.ParseTarget(args[0])
			if err != nil {
				return err
			}

			prog := newProgress(loggerFromContext(ctx))
			tree, err := a.client.FetchDependencyTree(ctx, t.Name, t.Version)
			if err != nil {
				return a.lookupFailed(err)
			}
			prog.done("Resolved dependencies of " + tree.Name)

			if a.out.json {
				return a.out.emit(tree)
			}

			p := a.out
			p.title("%s %s", tree.Name, tree.Version)
			printNodes(p, tree.Dependencies, "")
			if len(tree.Dependencies) == 0 {
				p.info("no dependencies")
			}
			for _, e := range tree.Errors() {
				p.warning("%s", e.Error())
			}
			return nil
		},
	}
}

func printNodes(p *printer, nodes []pyintel.DependencyNode, indent string) {
	for i, n := range nodes {
		branch, next := iconBranch, "│  "
		if i == len(nodes)-1 {
			branch, next = iconLast, "   "
		}
		p.line("%s%s %s", indent, styleDim.Render(branch), nodeLabel(n))
		printNodes(p, n.Children, indent+next)
	}
}

func nodeLabel(n pyintel.DependencyNode) string {
	var b strings.Builder
	b.WriteString(n.Name)
	if n.Version != nil {
		b.WriteString(" " + styleNumber.Render(*n.Version))
	}
	if n.Specifier != "" {
		b.WriteString(" " + styleDim.Render(n.Specifier))
	}
	if n.IsOptional {
		b.WriteString(" " + styleDim.Render("(optional: "+strings.Join(n.Extras, ", ")+")"))
	}
	if n.Error != "" {
		b.WriteString(" " + styleError.Render(iconError+" "+n.Error))
	}
	return b.String()
}
