package cli

import (
	"fmt"

	"github.com/git-pkgs/pyintel"
	"github.com/spf13/cobra"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health <package>",
		Short: "Score a package's health from 0 to 100",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := pyintel.ParseTarget(args[0])
			if err != nil {
				return err
			}

			score, err := a.client.HealthScore(cmd.Context(), t.Name)
			if err != nil {
				return a.lookupFailed(err)
			}
			if a.out.json {
				return a.out.emit(score)
			}
			printHealth(a.out, t.Name, score)
			return nil
		},
	}
}

func printHealth(p *printer, name string, score *pyintel.HealthScore) {
	p.title("%s %s", name, ratingStyle(score.Rating).Render(fmt.Sprintf("%d/100 %s", score.Score, score.Rating)))
	b := score.Breakdown
	p.field("Recency", fmt.Sprintf("%d/25", b.Recency))
	p.field("Maintenance", fmt.Sprintf("%d/20", b.Maintenance))
	p.field("Compatibility", fmt.Sprintf("%d/25", b.Compatibility))
	p.field("Popularity", fmt.Sprintf("%d/20", b.Popularity))
	p.field("Stability", fmt.Sprintf("%d/10", b.Stability))
	for _, w := range score.Warnings {
		p.warning("%s", w)
	}
	for _, r := range score.Recommendations {
		p.info("%s", r)
	}
}
