package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/newspaper-digest/internal/app"
	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/extract"
	"github.com/spherical/newspaper-digest/internal/ingest"
	"github.com/spherical/newspaper-digest/internal/monitoring"
)

// newRecoverCmd creates the recover subcommand.
func newRecoverCmd() *cobra.Command {
	var (
		staleAfter  time.Duration
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Resume processing runs abandoned by a crashed worker",
		Long: `Recover finds newspapers whose processing heartbeat is older than
--stale-after and resumes them. Every page is attempted again and its
articles replaced. Newspapers that another worker claims first are
reported as skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := openApp(ctx, app.Options{Extraction: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if staleAfter == 0 {
				staleAfter = cfg.Recovery.StaleAfter
			}

			runner := monitoring.NewStaleRunner(logger, a.Repo, a.Controller, monitoring.StaleConfig{
				StaleAfter: staleAfter,
				Options: func(n *domain.Newspaper) ingest.ProcessOptions {
					bar := ui.MultiBar(Truncate(n.FileName, 24), int64(max(n.PageCount(), 1)))
					return ingest.ProcessOptions{
						Concurrency: concurrency,
						OnPage: func(extract.PageResult) {
							if bar != nil {
								bar.Increment()
							}
						},
					}
				},
			})

			res, err := runner.RunCheck(ctx)
			ui.Close()
			if err != nil {
				return err
			}

			if outputJSON {
				return ui.JSON(res)
			}
			if res.Found == 0 {
				ui.Info("No stale processing runs")
				return nil
			}
			for _, r := range res.Resumed {
				ui.Success("Resumed %s: %d articles, %d pages failed", r.NewspaperID, r.TotalArticles, r.PagesFailed)
			}
			for _, id := range res.Skipped {
				ui.Warning("Skipped %s: claimed by another worker", id)
			}
			for _, f := range res.Failed {
				ui.Error("Failed %s: %s", f.NewspaperID, f.Error)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&staleAfter, "stale-after", 0, "heartbeat age that marks a run abandoned (default: recovery.stale_after)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "pages extracted in parallel per newspaper")
	return cmd
}
