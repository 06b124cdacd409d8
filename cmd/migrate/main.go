package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/carestaff-backend/pkg/config"
	"github.com/angelmondragon/carestaff-backend/pkg/db"
	"github.com/angelmondragon/carestaff-backend/pkg/logger"
	"github.com/angelmondragon/carestaff-backend/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var dir string
	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the CareStaff goose migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dir, "dir", migrate.DefaultDir, "goose migrations directory")

	root.AddCommand(
		&cobra.Command{
			Use:   "create <name>",
			Short: "Scaffold an empty migration",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				path, err := migrate.Scaffold(dir, args[0], time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", path)
				return nil
			},
		},
		&cobra.Command{
			Use:   "validate",
			Short: "Check migration names and goose annotations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := migrate.ValidateDir(dir); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "migrations valid")
				return nil
			},
		},
		gooseCmd("up", "Apply pending migrations", cobra.NoArgs, &dir, func(ctx context.Context, m *migrate.Migrator, w io.Writer, _ []string) error {
			applied, err := m.Up(ctx)
			printSteps(w, applied)
			return err
		}),
		gooseCmd("down", "Roll back the latest migration", cobra.NoArgs, &dir, func(ctx context.Context, m *migrate.Migrator, w io.Writer, _ []string) error {
			rolled, err := m.Down(ctx)
			printSteps(w, rolled)
			return err
		}),
		gooseCmd("status", "Print applied and pending migrations", cobra.NoArgs, &dir, func(ctx context.Context, m *migrate.Migrator, w io.Writer, _ []string) error {
			rows, err := m.Status(ctx)
			if err != nil {
				return err
			}
			printStatus(w, rows)
			return nil
		}),
		gooseCmd("to <version>", "Migrate up or down to a YYYYMMDDHHMMSS version", cobra.ExactArgs(1), &dir, func(ctx context.Context, m *migrate.Migrator, w io.Writer, args []string) error {
			moved, err := m.To(ctx, args[0])
			printSteps(w, moved)
			return err
		}),
	)
	return root
}

type gooseFunc func(ctx context.Context, m *migrate.Migrator, w io.Writer, args []string) error

// gooseCmd wraps a command that needs a database connection.
func gooseCmd(use, short string, args cobra.PositionalArgs, dir *string, run gooseFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, argv []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logg := logger.New(logger.Options{
				ServiceName: "migrate",
				Output:      os.Stderr,
				Level:       logger.ParseLevel(cfg.App.LogLevel),
				WarnStack:   cfg.App.LogWarnStack,
			})
			ctx := logg.WithFields(cmd.Context(), map[string]any{
				"env": cfg.App.Env,
				"cmd": cmd.Name(),
				"dir": *dir,
			})

			dbClient, err := db.New(ctx, cfg.DB, logg)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer dbClient.Close()
			conn, err := dbClient.DB().DB()
			if err != nil {
				return fmt.Errorf("sql handle: %w", err)
			}
			m, err := migrate.FromDir(conn, *dir)
			if err != nil {
				return err
			}

			if err := run(ctx, m, cmd.OutOrStdout(), argv); err != nil {
				logg.Error(ctx, "migration command failed", err)
				return err
			}
			return nil
		},
	}
}

func printSteps(w io.Writer, steps []migrate.Step) {
	if len(steps) == 0 {
		fmt.Fprintln(w, "nothing to do")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Version", "File", "Took"})
	for _, s := range steps {
		tw.AppendRow(table.Row{s.Version, s.File, s.Duration.Round(time.Millisecond)})
	}
	tw.Render()
}

func printStatus(w io.Writer, rows []migrate.Status) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(table.Row{"Version", "File", "Applied at"})
	for _, r := range rows {
		applied := "pending"
		if r.Applied {
			applied = r.AppliedAt.UTC().Format(time.RFC3339)
		}
		tw.AppendRow(table.Row{r.Version, r.File, applied})
	}
	tw.Render()
}
