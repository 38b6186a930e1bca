package cli

import (
	"errors"

	"github.com/git-pkgs/pyintel"
	"github.com/git-pkgs/pyintel/internal/core"
	"github.com/spf13/cobra"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info <package>",
		Short: "Show registry metadata and the preferred download",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			t, err := pyintel.ParseTarget(args[0])
			if err != nil {
				return err
			}

			record, err := a.client.FetchPackageInfo(ctx, t.Name, t.Version)
			if err != nil {
				return a.lookupFailed(err)
			}
			artifact, err := a.client.ResolveArtifact(ctx, t.Name, t.Version)
			if err != nil && !errors.Is(err, pyintel.ErrNoDownloadURL) {
				loggerFromContext(ctx).Warn("resolving download", "package", record.Name, "err", err)
			}

			if a.out.json {
				return a.out.emit(struct {
					Package  *pyintel.PackageRecord `json:"package"`
					Artifact *pyintel.Artifact      `json:"artifact,omitempty"`
				}{record, artifact})
			}

			p := a.out
			p.title("%s %s", record.Name, record.Version)
			p.field("Summary", record.Summary)
			p.field("Author", record.Author)
			p.field("Maintainer", record.Maintainer)
			p.field("License", licenseLabel(record))
			p.field("Python", record.RequiresPython)
			released, _ := core.ReleaseDate(record.Files)
			p.field("Released", ago(released))
			p.field("Homepage", link(record.Homepage))
			p.field("Repository", link(record.Repository))
			p.field("PyPI", link(record.Links["registry"]))
			if artifact != nil {
				p.field("Download", artifact.Filename+" "+styleDim.Render(size(artifact.Size)))
				p.field("", link(artifact.URL))
			}
			if record.Yanked {
				msg := "Release " + record.Version + " has been yanked"
				if record.YankedReason != "" {
					msg += ": " + record.YankedReason
				}
				p.warning("%s", msg)
			}
			return nil
		},
	}
}

// lookupFailed prints name suggestions for a missing package and returns err.
func (a *app) lookupFailed(err error) error {
	var nf *pyintel.NotFoundError
	if errors.As(err, &nf) && len(nf.Suggestions) > 0 && !a.out.json {
		a.out.failure("%s not found", nf.Name)
		for _, s := range nf.Suggestions {
			a.out.info("did you mean %s?", s)
		}
	}
	return err
}

func licenseLabel(record *pyintel.PackageRecord) string {
	id := pyintel.DetectLicense(record)
	if id == pyintel.UnknownLicense {
		return record.License
	}
	return string(id)
}
