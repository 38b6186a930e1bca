package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/git-pkgs/pyintel"
	"github.com/spf13/cobra"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <package>...",
		Short: "Analyze one or more packages in full",
		Long:  `Analyze gathers metadata, downloads, vulnerabilities, the dependency tree, the changelog, the health score and the license of each package. With one package a version may be given; with several the latest release of each is analyzed.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := loggerFromContext(ctx)

			targets := make([]pyintel.Target, 0, len(args))
			for _, arg := range args {
				t, err := pyintel.ParseTarget(arg)
				if err != nil {
					return err
				}
				targets = append(targets, t)
			}

			prog := newProgress(logger)
			if len(targets) == 1 {
				t := targets[0]
				analysis, err := a.client.Analyze(ctx, t.Name, t.Version)
				if err != nil {
					return a.lookupFailed(err)
				}
				prog.done("Analyzed " + t.String())
				if a.out.json {
					return a.out.emit(analysis)
				}
				printAnalysis(a.out, analysis)
				return nil
			}

			names := make([]string, len(targets))
			for i, t := range targets {
				if t.Version != "" {
					logger.Warn("version ignored when analyzing several packages", "package", t.String())
				}
				names[i] = t.Name
			}
			results := a.client.BulkAnalyze(ctx, names, 0)
			prog.done(fmt.Sprintf("Analyzed %d of %d packages", len(results), len(names)))

			if a.out.json {
				return a.out.emit(results)
			}
			printSummary(a.out, names, results)
			if missing := len(names) - len(results); missing > 0 {
				return fmt.Errorf("%d of %d packages could not be analyzed", missing, len(names))
			}
			return nil
		},
	}
}

func printAnalysis(p *printer, a *pyintel.Analysis) {
	pkg := a.Package
	p.title("%s %s", pkg.Name, pkg.Version)
	p.field("Summary", pkg.Summary)
	p.field("License", string(a.License))
	p.field("Downloads", count(a.Downloads.Data.LastMonth)+styleDim.Render(" last month"))
	p.field("Vulns", strconv.Itoa(len(a.Vulnerabilities)))
	if a.Dependencies != nil {
		p.field("Deps", fmt.Sprintf("%d direct, %d total", len(a.Dependencies.Dependencies), a.Dependencies.Count()))
	}
	if a.DependencyError != "" {
		p.field("Deps", styleError.Render(a.DependencyError))
	}
	if a.Changelog != nil {
		p.field("Changelog", fmt.Sprintf("%d entries from %s", len(a.Changelog.Entries), a.Changelog.Source))
	}
	p.line("")
	printHealth(p, pkg.Name, &a.Health)
	for _, v := range a.Vulnerabilities {
		p.line("  %s %s %s", severityStyle(v.Severity).Render(v.ID), styleDim.Render(v.Severity), v.Summary)
	}
}

// printSummary renders one table row per name, in the order given. Names
// that failed are marked.
func printSummary(p *printer, names []string, results map[string]*pyintel.Analysis) {
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		a, ok := results[name]
		if !ok {
			rows = append(rows, []string{name, "", "", "failed", "", "", ""})
			continue
		}
		rows = append(rows, []string{
			a.Package.Name,
			a.Package.Version,
			strconv.Itoa(a.Health.Score),
			string(a.Health.Rating),
			strconv.Itoa(len(a.Vulnerabilities)),
			humanize.Comma(a.Downloads.Data.LastMonth),
			string(a.License),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true).Padding(0, 1)
	cell := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Package", "Version", "Score", "Rating", "Vulns", "Downloads/mo", "License").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 3 && row < len(rows) {
				if rows[row][3] == "failed" {
					return cell.Foreground(colorRed)
				}
				return ratingStyle(pyintel.Rating(rows[row][3])).Padding(0, 1)
			}
			return cell
		})
	p.line("%s", t.Render())

	if names := vulnerable(results); len(names) > 0 {
		p.warning("known vulnerabilities in %s", strings.Join(names, ", "))
	}
}

func vulnerable(results map[string]*pyintel.Analysis) []string {
	var names []string
	for name, a := range results {
		if len(a.Vulnerabilities) > 0 {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
