package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/carestaff-backend/internal/cron"
	"github.com/angelmondragon/carestaff-backend/internal/matching"
	"github.com/angelmondragon/carestaff-backend/internal/shifts"
	"github.com/angelmondragon/carestaff-backend/internal/timesheets"
	"github.com/angelmondragon/carestaff-backend/pkg/enums"
	"github.com/angelmondragon/carestaff-backend/pkg/outbox"
	"github.com/angelmondragon/carestaff-backend/pkg/visibility"
)

type timesheetEngine interface {
	Validate(ctx context.Context, req timesheets.ValidateRequest) (*timesheets.ValidateResponse, error)
	AutoApproveSubmitted(ctx context.Context, scope visibility.Scope) (*timesheets.BatchReport, error)
}

type matchEngine interface {
	Match(ctx context.Context, req matching.Request) (*matching.Response, error)
}

type shiftEngine interface {
	ScanNoShows(ctx context.Context, scope visibility.Scope) (*shifts.NoShowReport, error)
	ScanEscalations(ctx context.Context, scope visibility.Scope) (*shifts.EscalationReport, error)
	SendReminders(ctx context.Context, scope visibility.Scope) (*shifts.ReminderReport, error)
}

type jobRunner interface {
	RunNamed(ctx context.Context, name string) error
}

// app is what the commands operate on. It is filled by bootstrap on first use.
type app struct {
	Timesheets timesheetEngine
	Matcher    matchEngine
	Shifts     shiftEngine
	Jobs       jobRunner
	Tokens     tokenService
	Dead       deadLetterStore
	Schedule   []cron.Entry
	close      func()
}

type bootstrapFunc func(ctx context.Context) (*app, error)

type cli struct {
	bootstrap bootstrapFunc
	app       *app
	out       io.Writer
	asJSON    bool
	agency    string
}

func newRootCmd(bootstrap bootstrapFunc, out io.Writer) *cobra.Command {
	c := &cli{bootstrap: bootstrap, out: out}
	root := &cobra.Command{
		Use:           "opsctl",
		Short:         "CareStaff operator console",
		Long:          "opsctl runs the timesheet, matching and shift engines against the configured database.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.app != nil && c.app.close != nil {
				c.app.close()
			}
		},
	}
	root.SetOut(out)
	root.PersistentFlags().BoolVar(&c.asJSON, "json", false, "output JSON")
	root.PersistentFlags().StringVar(&c.agency, "agency", "", "limit the run to one agency id")

	root.AddCommand(c.validateCmd(), c.matchCmd(), c.scanCmd(), c.jobsCmd(), c.tokenCmd(), c.dlqCmd())
	return root
}

func (c *cli) load(ctx context.Context) (*app, error) {
	if c.app != nil {
		return c.app, nil
	}
	loaded, err := c.bootstrap(ctx)
	if err != nil {
		return nil, err
	}
	c.app = loaded
	return loaded, nil
}

func (c *cli) scope() (visibility.Scope, error) {
	if c.agency == "" {
		return visibility.Scope{Role: enums.ActorRoleSystem}, nil
	}
	id, err := uuid.Parse(c.agency)
	if err != nil {
		return visibility.Scope{}, fmt.Errorf("invalid --agency: %w", err)
	}
	return visibility.Scope{Role: enums.ActorRoleAgencyAdmin, AgencyID: &id}, nil
}

func (c *cli) print(v any, table func(io.Writer)) error {
	if c.asJSON {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	table(c.out)
	return nil
}

func (c *cli) validateCmd() *cobra.Command {
	var scheduled bool
	cmd := &cobra.Command{
		Use:   "validate <timesheet-id>",
		Short: "Score a timesheet and apply the decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid timesheet id: %w", err)
			}
			scope, err := c.scope()
			if err != nil {
				return err
			}
			a, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := a.Timesheets.Validate(cmd.Context(), timesheets.ValidateRequest{
				TimesheetID:   id,
				ManualTrigger: !scheduled,
				Actor:         &outbox.ActorRef{AgencyID: scope.AgencyID, Role: string(enums.ActorRoleSystem)},
				Scope:         scope,
			})
			if err != nil {
				return err
			}
			return c.print(resp, func(w io.Writer) { renderValidation(w, resp) })
		},
	}
	cmd.Flags().BoolVar(&scheduled, "scheduled", false, "honor the agency auto-approval switch like the hourly job")
	return cmd
}

func (c *cli) matchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "match <shift-id>",
		Short: "Rank staff for a shift",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid shift id: %w", err)
			}
			if limit < 1 || limit > 50 {
				return fmt.Errorf("--limit must be between 1 and 50")
			}
			scope, err := c.scope()
			if err != nil {
				return err
			}
			a, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			resp, err := a.Matcher.Match(cmd.Context(), matching.Request{ShiftID: id, Limit: limit, Scope: scope})
			if err != nil {
				return err
			}
			return c.print(resp, func(w io.Writer) { renderMatches(w, resp) })
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "number of matches to return")
	return cmd
}

func (c *cli) scanCmd() *cobra.Command {
	scan := &cobra.Command{Use: "scan", Short: "Run a shift or timesheet scan once, without the cron lock"}
	scan.AddCommand(
		c.scanSubCmd("no-show", "Remind and escalate staff who have not clocked in", func(ctx context.Context, a *app, scope visibility.Scope) (any, func(io.Writer), error) {
			report, err := a.Shifts.ScanNoShows(ctx, scope)
			if err != nil {
				return nil, nil, err
			}
			return report, func(w io.Writer) { renderNoShows(w, report) }, nil
		}),
		c.scanSubCmd("escalation", "Broadcast and escalate unfilled urgent shifts", func(ctx context.Context, a *app, scope visibility.Scope) (any, func(io.Writer), error) {
			report, err := a.Shifts.ScanEscalations(ctx, scope)
			if err != nil {
				return nil, nil, err
			}
			return report, func(w io.Writer) { renderEscalations(w, report) }, nil
		}),
		c.scanSubCmd("reminders", "Queue 24h and 2h shift reminders", func(ctx context.Context, a *app, scope visibility.Scope) (any, func(io.Writer), error) {
			report, err := a.Shifts.SendReminders(ctx, scope)
			if err != nil {
				return nil, nil, err
			}
			return report, func(w io.Writer) { renderReminders(w, report) }, nil
		}),
		c.scanSubCmd("auto-approval", "Validate every submitted timesheet", func(ctx context.Context, a *app, scope visibility.Scope) (any, func(io.Writer), error) {
			report, err := a.Timesheets.AutoApproveSubmitted(ctx, scope)
			if err != nil {
				return nil, nil, err
			}
			return report, func(w io.Writer) { renderBatch(w, report) }, nil
		}),
	)
	return scan
}

type scanFunc func(ctx context.Context, a *app, scope visibility.Scope) (any, func(io.Writer), error)

func (c *cli) scanSubCmd(use, short string, run scanFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := c.scope()
			if err != nil {
				return err
			}
			a, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			report, table, err := run(cmd.Context(), a, scope)
			if err != nil {
				return err
			}
			return c.print(report, table)
		},
	}
}

func (c *cli) jobsCmd() *cobra.Command {
	jobs := &cobra.Command{Use: "jobs", Short: "Inspect and trigger cron jobs"}
	jobs.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List scheduled jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			return c.print(scheduleView(a.Schedule), func(w io.Writer) { renderSchedule(w, a.Schedule) })
		},
	})
	jobs.AddCommand(&cobra.Command{
		Use:   "run <name>",
		Short: "Run one job now, honoring the cron lock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.load(cmd.Context())
			if err != nil {
				return err
			}
			if err := a.Jobs.RunNamed(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "job %s finished\n", args[0])
			return nil
		},
	})
	return jobs
}

type scheduledJob struct {
	Name string `json:"name"`
	Spec string `json:"spec"`
}

func scheduleView(entries []cron.Entry) []scheduledJob {
	out := make([]scheduledJob, 0, len(entries))
	for _, entry := range entries {
		out = append(out, scheduledJob{Name: entry.Job.Name(), Spec: entry.Spec})
	}
	return out
}
