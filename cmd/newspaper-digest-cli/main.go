// Package main provides the newspaper-digest CLI entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spherical/newspaper-digest/internal/app"
	"github.com/spherical/newspaper-digest/internal/config"
	"github.com/spherical/newspaper-digest/internal/observability"
	"github.com/spherical/newspaper-digest/internal/storage"
)

const version = "0.1.0"

var (
	cfgFile    string
	outputJSON bool
	verbose    bool
	noColor    bool

	cfg    *config.Config
	logger *observability.Logger
	ui     *UI
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "newspaper-digest-cli",
	Short: "Split newspaper PDFs and extract UPSC-relevant articles",
	Long: `newspaper-digest-cli drives the newspaper ingestion pipeline from a shell.

Use this tool to:
- Upload a newspaper PDF for a user
- Split it into single-page PDFs
- Run page-by-page article extraction
- Resume runs abandoned by a crashed worker

All commands support --json for automation.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		level := cfg.Observability.LogLevel
		if verbose {
			level = "debug"
		} else if !outputJSON {
			// progress bars carry the detail; keep console logs to warnings
			level = "warn"
		}
		logFormat := "console"
		if outputJSON {
			logFormat = "json"
		}

		logger = observability.NewLogger(observability.LogConfig{
			Level:       level,
			Format:      logFormat,
			Output:      os.Stderr,
			ServiceName: "newspaper-digest-cli",
		})
		ui = NewUI(cmd.OutOrStdout(), outputJSON, noColor)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newUploadCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newSplitCmd())
	rootCmd.AddCommand(newProcessCmd())
	rootCmd.AddCommand(newRecoverCmd())
	rootCmd.AddCommand(newArticlesCmd())
	rootCmd.AddCommand(newProgressCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// openApp builds the application for one command.
func openApp(ctx context.Context, opts app.Options) (*app.App, error) {
	return app.New(ctx, cfg, logger, opts)
}

// ownerOf returns the owner of a newspaper. The CLI is an operator tool and
// acts on behalf of that owner.
func ownerOf(ctx context.Context, a *app.App, id uuid.UUID) (uuid.UUID, error) {
	n, err := a.Repo.GetNewspaper(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return uuid.Nil, fmt.Errorf("newspaper %s not found", id)
		}
		return uuid.Nil, err
	}
	return n.UserID, nil
}

// parseID parses a positional UUID argument.
func parseID(arg, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(arg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s %q: %w", what, arg, err)
	}
	return id, nil
}

// resolveOwner parses --owner, falling back to DIGEST_USER_ID.
func resolveOwner(flag string) (uuid.UUID, error) {
	if flag == "" {
		flag = os.Getenv("DIGEST_USER_ID")
	}
	if flag == "" {
		return uuid.Nil, fmt.Errorf("--owner or DIGEST_USER_ID is required")
	}
	return parseID(flag, "owner")
}

// newMigrateCmd creates the migrate subcommand.
func newMigrateCmd() *cobra.Command {
	var statusOnly bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			db, dialect, err := storage.Open(ctx, cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			m := storage.NewMigrator(db, dialect)
			var applied []string
			if !statusOnly {
				if applied, err = m.Up(ctx); err != nil {
					return err
				}
			}

			status, err := m.Status(ctx)
			if err != nil {
				return err
			}

			if outputJSON {
				return ui.JSON(map[string]any{
					"driver":  dialect,
					"ran":     applied,
					"applied": status.Applied,
					"pending": status.Pending,
				})
			}

			for _, v := range applied {
				ui.Success("Applied %s", v)
			}
			if status.UpToDate {
				ui.Success("Schema is up to date on %s (%d migrations)", dialect, len(status.Applied))
			} else {
				ui.Warning("%d pending migrations: %v", len(status.Pending), status.Pending)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&statusOnly, "status", false, "only report migration status")
	return cmd
}

// newVersionCmd creates the version subcommand.
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ui = NewUI(cmd.OutOrStdout(), outputJSON, noColor)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputJSON {
				return ui.JSON(map[string]string{
					"version": version,
					"go":      runtime.Version(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "newspaper-digest-cli v%s\n", version)
			return nil
		},
	}
}
