package cli

import (
	"strings"

	"github.com/git-pkgs/pyintel"
	"github.com/spf13/cobra"
)

const barWidth = 40

func newStatsCmd(a *app) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "stats <package>",
		Short: "Show download counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := pyintel.ParseTarget(args[0])
			if err != nil {
				return err
			}

			stats := a.client.FetchDownloadStats(ctx, t.Name)
			var daily []pyintel.DailyDownloads
			if days > 0 {
				daily = a.client.FetchDailyDownloads(ctx, t.Name, days)
			}

			if a.out.json {
				return a.out.emit(struct {
					Recent pyintel.DownloadStats    `json:"recent"`
					Daily  []pyintel.DailyDownloads `json:"daily,omitempty"`
				}{stats, daily})
			}

			p := a.out
			p.title("%s downloads", t.Name)
			p.field("Last day", count(stats.Data.LastDay))
			p.field("Last week", count(stats.Data.LastWeek))
			p.field("Last month", count(stats.Data.LastMonth))
			if stats.Data.LastMonth == 0 {
				p.info("no download data available")
			}
			if len(daily) > 0 {
				p.line("")
				printDaily(p, daily)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "also show the last N days (1-180)")
	return cmd
}

func printDaily(p *printer, daily []pyintel.DailyDownloads) {
	var peak int64
	for _, d := range daily {
		peak = max(peak, d.Downloads)
	}
	for _, d := range daily {
		n := 0
		if peak > 0 {
			n = int(d.Downloads * barWidth / peak)
		}
		p.line("  %s %s %s", styleDim.Render(d.Date), styleNumber.Render(strings.Repeat("▇", n)), count(d.Downloads))
	}
}
