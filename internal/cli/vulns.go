package cli

import (
	"strings"

	"github.com/git-pkgs/pyintel"
	"github.com/spf13/cobra"
)

func newVulnsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "vulns <package>",
		Short: "List known vulnerabilities",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := pyintel.ParseTarget(args[0])
			if err != nil {
				return err
			}

			vulns := a.client.FetchVulnerabilities(cmd.Context(), t.Name, t.Version)
			if a.out.json {
				return a.out.emit(vulns)
			}

			p := a.out
			if len(vulns) == 0 {
				p.success("No known vulnerabilities in %s", t)
				return nil
			}
			p.title("%d vulnerabilities in %s", len(vulns), t)
			for _, v := range vulns {
				severity := v.Severity
				if severity == "" {
					severity = "UNKNOWN"
				}
				p.line("  %s %s %s", severityStyle(v.Severity).Render(severity), v.ID, v.Summary)
				if len(v.Aliases) > 0 {
					p.line("    %s", styleDim.Render("aliases: "+strings.Join(v.Aliases, ", ")))
				}
				if len(v.FixedVersions) > 0 {
					p.line("    %s", styleSuccess.Render("fixed in: "+strings.Join(v.FixedVersions, ", ")))
				}
			}
			return nil
		},
	}
}
