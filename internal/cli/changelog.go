package cli

import (
	"github.com/git-pkgs/pyintel"
	"github.com/spf13/cobra"
)

func newChangelogCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "changelog <package>",
		Short: "Show classified release history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := pyintel.ParseTarget(args[0])
			if err != nil {
				return err
			}

			log := a.client.FetchChangelog(cmd.Context(), t.Name)
			if limit > 0 && len(log.Entries) > limit {
				log.Entries = log.Entries[:limit]
			}
			if a.out.json {
				return a.out.emit(log)
			}

			p := a.out
			p.title("%s changelog", log.Package)
			p.field("Source", string(log.Source))
			p.field("URL", link(log.URL))
			if len(log.Entries) == 0 {
				p.info("no changelog available")
				return nil
			}
			for _, e := range log.Entries {
				printEntry(p, e)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "show at most N versions (0 for all)")
	return cmd
}

func printEntry(p *printer, e pyintel.ChangelogEntry) {
	header := styleNumber.Render(e.Version)
	if e.Date != nil {
		header += " " + styleDim.Render(*e.Date)
	}
	if e.IsBreaking {
		header += " " + styleError.Render("[breaking]")
	}
	if e.IsSecurity {
		header += " " + styleError.Render("[security]")
	}
	if e.IsFeature {
		header += " " + styleSuccess.Render("[feature]")
	}
	if e.IsFix {
		header += " " + styleWarning.Render("[fix]")
	}
	p.line("")
	p.line("%s", header)
	for _, c := range e.Changes {
		p.line("  - %s", c)
	}
}
