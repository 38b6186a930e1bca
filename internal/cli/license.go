package cli

import (
	"errors"
	"fmt"

	"github.com/git-pkgs/pyintel"
	"github.com/spf13/cobra"
)

// errIncompatible is returned when any checked license conflicts with the
// project license.
var errIncompatible = errors.New("incompatible licenses found")

type licenseResult struct {
	Package string `json:"package,omitempty"`
	pyintel.LicenseCompatibility
}

func newLicenseCmd(a *app) *cobra.Command {
	var project, against string

	cmd := &cobra.Command{
		Use:   "license --project <license> [package...]",
		Short: "Check license compatibility against a project license",
		Example: `  pyintel license --project MIT requests numpy
  pyintel license --project Apache-2.0 --against GPL-3.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if against == "" && len(args) == 0 {
				return fmt.Errorf("give at least one package or --against")
			}

			var results []licenseResult
			if against != "" {
				results = append(results, licenseResult{LicenseCompatibility: a.client.CheckLicense(project, against)})
			}
			for _, arg := range args {
				t, err := pyintel.ParseTarget(arg)
				if err != nil {
					return err
				}
				c, err := a.client.CheckPackageLicense(cmd.Context(), project, t.Name)
				if err != nil {
					return a.lookupFailed(err)
				}
				results = append(results, licenseResult{Package: t.Name, LicenseCompatibility: c})
			}

			if a.out.json {
				if err := a.out.emit(results); err != nil {
					return err
				}
			} else {
				for _, r := range results {
					printLicense(a.out, r)
				}
			}

			for _, r := range results {
				if !r.IsCompatible {
					return errIncompatible
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "the project's license (SPDX id or free text)")
	cmd.Flags().StringVar(&against, "against", "", "check a license directly instead of a package's")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func printLicense(p *printer, r licenseResult) {
	subject := r.PackageLicense
	if r.Package != "" {
		subject = r.Package + " (" + r.PackageLicense + ")"
	}
	verdict := riskStyle(r.Risk).Render(string(r.Risk) + " risk")
	if r.IsCompatible {
		p.success("%s is compatible with %s, %s", subject, r.ProjectLicense, verdict)
	} else {
		p.failure("%s is not compatible with %s, %s", subject, r.ProjectLicense, verdict)
	}
	p.line("  %s", styleDim.Render(r.Explanation))
	if r.RequiresSourceDisclosure {
		p.line("  %s", styleWarning.Render("requires source disclosure"))
	}
	if r.RequiresSameLicense {
		p.line("  %s", styleWarning.Render("requires the same license for derivative works"))
	}
}
