package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/newspaper-digest/internal/app"
	"github.com/spherical/newspaper-digest/internal/domain"
	"github.com/spherical/newspaper-digest/internal/extract"
	"github.com/spherical/newspaper-digest/internal/ingest"
)

// newUploadCmd creates the upload subcommand.
func newUploadCmd() *cobra.Command {
	var (
		owner string
		date  string
		split bool
	)

	cmd := &cobra.Command{
		Use:   "upload <file.pdf>",
		Short: "Upload a newspaper PDF for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ownerID, err := resolveOwner(owner)
			if err != nil {
				return err
			}

			var uploadDate time.Time
			if date != "" {
				if uploadDate, err = time.Parse(domain.UploadDateLayout, date); err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			a, err := openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Controller.Upload(ctx, ownerID, ingest.UploadRequest{
				FileName:   filepath.Base(args[0]),
				Data:       data,
				UploadDate: uploadDate,
			})
			if err != nil {
				return err
			}

			var splitRes *ingest.SplitResult
			if split {
				stop := ui.Spinner("Splitting pages")
				splitRes, err = a.Controller.Split(ctx, ownerID, n.ID)
				stop()
				if err != nil {
					return err
				}
			}

			if outputJSON {
				return ui.JSON(map[string]any{"newspaper": n, "split": splitRes})
			}
			ui.Success("Uploaded %s (%s)", n.FileName, FormatBytes(n.FileSize))
			ui.KeyValue("ID", n.ID)
			ui.KeyValue("Path", n.FilePath)
			if splitRes != nil {
				ui.Success("%s", splitRes.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owning user ID (default: $DIGEST_USER_ID)")
	cmd.Flags().StringVar(&date, "date", "", "newspaper date, YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&split, "split", false, "split the PDF into pages after upload")
	return cmd
}

// newListCmd creates the list subcommand.
func newListCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's newspapers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ownerID, err := resolveOwner(owner)
			if err != nil {
				return err
			}

			a, err := openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.Controller.List(ctx, ownerID)
			if err != nil {
				return err
			}
			if outputJSON {
				return ui.JSON(list)
			}
			if len(list) == 0 {
				ui.Info("No newspapers uploaded yet")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, n := range list {
				pages := "-"
				if n.TotalPages != nil {
					pages = strconv.Itoa(*n.TotalPages)
				}
				note := ""
				if n.ErrorMessage != nil {
					note = Truncate(*n.ErrorMessage, 40)
				}
				rows = append(rows, []string{
					n.ID.String(),
					n.UploadDate.Format(domain.UploadDateLayout),
					Truncate(n.FileName, 30),
					string(n.Status),
					pages,
					note,
				})
			}
			ui.Table([]string{"ID", "Date", "File", "Status", "Pages", "Error"}, rows)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "owning user ID (default: $DIGEST_USER_ID)")
	return cmd
}

// newSplitCmd creates the split subcommand.
func newSplitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "split <newspaper-id>",
		Short: "Split a newspaper PDF into single-page PDFs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID(args[0], "newspaper id")
			if err != nil {
				return err
			}

			a, err := openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			owner, err := ownerOf(ctx, a, id)
			if err != nil {
				return err
			}

			stop := ui.Spinner("Splitting pages")
			res, err := a.Controller.Split(ctx, owner, id)
			stop()
			if err != nil {
				return err
			}

			if outputJSON {
				return ui.JSON(map[string]any{
					"success":    true,
					"message":    res.Message,
					"totalPages": res.TotalPages,
				})
			}
			ui.Success("%s in %s", res.Message, FormatDuration(res.Duration))
			return nil
		},
	}
}

// newProcessCmd creates the process subcommand.
func newProcessCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "process <newspaper-id>",
		Short: "Extract articles from every page of a split newspaper",
		Long: `Process runs every page of the newspaper through the extraction
capability. Pages that fail are reported and skipped; the run still
completes. Re-running replaces each page's articles.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			id, err := parseID(args[0], "newspaper id")
			if err != nil {
				return err
			}

			a, err := openApp(ctx, app.Options{Extraction: true})
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.Repo.GetNewspaper(ctx, id)
			if err != nil {
				return fmt.Errorf("newspaper %s: %w", id, err)
			}

			bar := ui.NewPageBar(max(n.PageCount(), 1), Truncate(n.FileName, 24))
			res, err := a.Controller.Process(ctx, n.UserID, id, ingest.ProcessOptions{
				Concurrency: concurrency,
				OnPage:      func(extract.PageResult) { bar.Add() },
			})
			bar.Finish()

			if res != nil && outputJSON {
				if jerr := ui.JSON(res); jerr != nil {
					return jerr
				}
			}
			if err != nil {
				return err
			}
			if outputJSON {
				return nil
			}

			ui.Success("%s", res.Message)
			ui.KeyValue("Duration", FormatDuration(res.Duration))
			if res.DroppedArticles > 0 {
				ui.KeyValue("Dropped records", res.DroppedArticles)
			}
			for _, f := range res.Failures {
				ui.Warning("Page %d: %s", f.Page, f.Error)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "pages extracted in parallel (default: ingestion.page_concurrency)")
	return cmd
}

// newArticlesCmd creates the articles subcommand.
func newArticlesCmd() *cobra.Command {
	var (
		page    int
		owner   string
		gsPaper string
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "articles [newspaper-id]",
		Short: "List extracted articles",
		Long: `Articles lists the articles of one newspaper. Without a newspaper id it
searches all of a user's newspapers, optionally only articles tagged with
one GS paper:

  newspaper-digest-cli articles --owner <user-id> --gs-paper GS2`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if len(args) == 1 && (gsPaper != "" || limit != 0) {
				return fmt.Errorf("--gs-paper and --limit apply only when no newspaper id is given")
			}
			if len(args) == 0 && page != 0 {
				return fmt.Errorf("--page needs a newspaper id")
			}

			a, err := openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			var list []*domain.Article
			if len(args) == 1 {
				id, err := parseID(args[0], "newspaper id")
				if err != nil {
					return err
				}
				caller, err := ownerOf(ctx, a, id)
				if err != nil {
					return err
				}
				if list, err = a.Controller.Articles(ctx, caller, id, page); err != nil {
					return err
				}
			} else {
				caller, err := resolveOwner(owner)
				if err != nil {
					return err
				}
				if list, err = a.Controller.SearchArticles(ctx, caller, gsPaper, limit); err != nil {
					return err
				}
			}

			if outputJSON {
				if list == nil {
					list = []*domain.Article{}
				}
				return ui.JSON(list)
			}
			if len(list) == 0 {
				ui.Info("No articles extracted")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, art := range list {
				papers := make([]string, len(art.GSPapers))
				for i, p := range art.GSPapers {
					papers[i] = string(p)
				}
				flag := ""
				if art.IsImportant {
					flag = "★"
				}
				rows = append(rows, []string{
					strconv.Itoa(art.PageNumber),
					Truncate(art.Title, 60),
					strings.Join(papers, ","),
					flag,
				})
			}
			ui.Table([]string{"Page", "Title", "GS", "Imp"}, rows)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 0, "only list articles from this page")
	cmd.Flags().StringVar(&owner, "owner", "", "user whose newspapers to search (default: $DIGEST_USER_ID)")
	cmd.Flags().StringVar(&gsPaper, "gs-paper", "", "only articles tagged with this paper (GS1-GS4)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum articles to return when searching")
	return cmd
}

// newProgressCmd creates the progress subcommand.
func newProgressCmd() *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show a user's revision progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ownerID, err := resolveOwner(owner)
			if err != nil {
				return err
			}

			a, err := openApp(ctx, app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Controller.Progress(ctx, ownerID)
			if err != nil {
				return err
			}
			if outputJSON {
				return ui.JSON(stats)
			}

			ui.Section("Progress")
			ui.KeyValue("Newspapers", stats.TotalNewspapers)
			ui.KeyValue("Uploaded this month", stats.UploadedThisMonth)
			ui.KeyValue("Articles", stats.TotalArticles)
			ui.KeyValue("Important", stats.ImportantArticles)
			ui.KeyValue("Revised", stats.RevisedArticles)

			for _, group := range []struct {
				title  string
				topics []domain.TopicCount
			}{
				{"Top topics", stats.TopicsAllTime},
				{"Top topics this month", stats.TopicsThisMonth},
			} {
				if len(group.topics) == 0 {
					continue
				}
				ui.Section(group.title)
				rows := make([][]string, len(group.topics))
				for i, tc := range group.topics {
					rows[i] = []string{tc.Topic, strconv.Itoa(tc.Count)}
				}
				ui.Table([]string{"Topic", "Articles"}, rows)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "user ID (default: $DIGEST_USER_ID)")
	return cmd
}
