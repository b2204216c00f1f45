package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/highspring/timesheets/pkg/calendar"
	"github.com/highspring/timesheets/pkg/report"
	"github.com/highspring/timesheets/pkg/timesheet"
	"github.com/highspring/timesheets/pkg/toast"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var errNoTimesheet = errors.New("no timesheet for this week, use 'create' or 'copy'")

func (a *Application) weekCommands() []*cobra.Command {
	move := func(use, short string, step func() calendar.Week) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				step()
				return a.showWeek(cmd.Context())
			},
		}
	}

	return []*cobra.Command{
		move("week", "Show the selected week", a.deps.Navigator.Week),
		move("next", "Go to the next week", a.deps.Navigator.Next),
		move("prev", "Go to the previous week", a.deps.Navigator.Prev),
		{
			Use:   "today",
			Short: "Go to the current week",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				a.deps.Navigator.Select(a.deps.TimesheetService.CurrentWeek(cmd.Context()))
				return a.showWeek(cmd.Context())
			},
		},
		{
			Use:   "goto <yyyy-mm-dd>",
			Short: "Go to the week containing a date",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				date, err := time.ParseInLocation(time.DateOnly, args[0], time.Local)
				if err != nil {
					return fmt.Errorf("invalid date %q, expected yyyy-mm-dd", args[0])
				}
				a.deps.Navigator.GoTo(date)
				return a.showWeek(cmd.Context())
			},
		},
		{
			Use:   "create",
			Short: "Create a timesheet for the selected week",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				created, err := a.deps.TimesheetService.CreateForWeek(cmd.Context(), a.deps.Navigator.Week())
				if err != nil {
					return err
				}
				a.deps.Navigator.Set(created)
				return a.showWeek(cmd.Context())
			},
		},
		{
			Use:   "copy",
			Short: "Copy the previous week's entries into the selected week",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				copied, err := a.deps.TimesheetService.CopyPreviousWeek(cmd.Context(), a.deps.Navigator.Week(), a.prompt.Confirm)
				if err != nil {
					return err
				}
				a.deps.Navigator.Set(copied)
				return a.showWeek(cmd.Context())
			},
		},
		{
			Use:   "submit",
			Short: "Submit the selected week for approval",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ts, err := a.currentTimesheet(cmd.Context())
				if err != nil {
					return err
				}
				if _, err := a.deps.TimesheetService.Submit(cmd.Context(), ts.Id, a.prompt.Confirm); err != nil {
					return err
				}
				return a.showWeek(cmd.Context())
			},
		},
		{
			Use:   "discard",
			Short: "Delete the selected week's draft timesheet",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				ts, err := a.currentTimesheet(cmd.Context())
				if err != nil {
					return err
				}
				if !a.prompt.Confirm(cmd.Context(), fmt.Sprintf("Delete the timesheet for %s?", a.deps.Navigator.Week().Label())) {
					return timesheet.ErrCancelled
				}
				return a.deps.TimesheetService.Delete(cmd.Context(), ts.Id)
			},
		},
		a.historyCommand(),
		{
			Use:   "dashboard",
			Short: "Show this week's and this month's hours",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				stats, err := a.deps.TimesheetService.Dashboard(cmd.Context(), a.cfg.Display.PageSize)
				if err != nil {
					return err
				}
				return renderDashboard(a.out, stats, a.format(cmd.Context()))
			},
		},
		a.exportWeekCommand(),
	}
}

func (a *Application) historyCommand() *cobra.Command {
	var page, limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List your timesheets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.deps.TimesheetService.List(cmd.Context(), page, limit)
			if err != nil {
				return err
			}
			return renderTimesheets(a.out, result.Items, result.Meta, a.format(cmd.Context()))
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().IntVar(&limit, "limit", a.cfg.Display.PageSize, "timesheets per page")
	return cmd
}

func (a *Application) exportWeekCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export-week [file]",
		Short: "Write the selected week as CSV, to a file or the screen",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ts, err := a.currentTimesheet(ctx)
			if err != nil {
				return err
			}
			policy := a.deps.SettingsService.Effective(ctx)
			renderer := report.NewCsvWeekRenderer(timesheet.ParseFormat(policy.TimeFormat), timesheet.Policy{
				StandardHoursPerDay: policy.StandardHours,
				OvertimeEnabled:     policy.EnableOvertime,
			})
			csv, err := renderer.RenderWeek(a.deps.Navigator.Week(), *ts)
			if err != nil {
				return err
			}
			if len(args) == 0 {
				_, err := fmt.Fprint(a.out, csv)
				return err
			}

			path := args[0]
			if !filepath.IsAbs(path) {
				path = filepath.Join(a.cfg.Export.Dir, path)
			}
			if err := os.WriteFile(path, []byte(csv), 0o644); err != nil {
				toast.Failure(a.deps.Notifier, err, "Export failed")
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			a.deps.Notifier.Notify(toast.LevelSuccess, "Week exported to "+path)
			return nil
		},
	}
}

func (a *Application) entryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entry",
		Short: "Edit the rows of the selected week",
		Long:  "Rows are numbered as shown by 'week'. Days are mon to sun.",
	}

	var billable bool
	add := &cobra.Command{
		Use:   "add <project-code> [description]",
		Short: "Add a row for a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ts, err := a.currentTimesheet(ctx)
			if err != nil {
				return err
			}
			p, err := a.deps.ProjectService.FindByCode(ctx, args[0])
			if err != nil {
				return err
			}
			_, err = a.deps.TimesheetService.AddEntry(ctx, ts.Id, timesheet.NewEntryRequest{
				ProjectId:   p.Id,
				Billable:    billable,
				Description: strings.Join(args[1:], " "),
			})
			if err != nil {
				return err
			}
			return a.showWeek(ctx)
		},
	}
	add.Flags().BoolVar(&billable, "billable", false, "mark the row billable")

	cmd.AddCommand(
		add,
		a.entryEdit("hours <row> <day> <value>", "Set the hours of a day, e.g. 7.5 or 7:30", 3,
			func(ctx context.Context, tsId int, entry timesheet.TimeEntry, args []string) error {
				day, err := calendar.ParseDay(args[1])
				if err != nil {
					return err
				}
				_, err = a.deps.TimesheetService.SetHours(ctx, tsId, entry.Id, day, args[2])
				return err
			}),
		a.entryEdit("note <row> <day> [text]", "Set or clear the note of a day", 2,
			func(ctx context.Context, tsId int, entry timesheet.TimeEntry, args []string) error {
				day, err := calendar.ParseDay(args[1])
				if err != nil {
					return err
				}
				_, err = a.deps.TimesheetService.SetNote(ctx, tsId, entry.Id, day, strings.Join(args[2:], " "))
				return err
			}),
		a.entryEdit("describe <row> [text]", "Set or clear the description of a row", 1,
			func(ctx context.Context, tsId int, entry timesheet.TimeEntry, args []string) error {
				_, err := a.deps.TimesheetService.SetDescription(ctx, tsId, entry.Id, strings.Join(args[1:], " "))
				return err
			}),
		a.entryEdit("billable <row> <yes|no>", "Mark a row billable or not", 2,
			func(ctx context.Context, tsId int, entry timesheet.TimeEntry, args []string) error {
				value, err := parseSwitch(args[1])
				if err != nil {
					return err
				}
				_, err = a.deps.TimesheetService.SetBillable(ctx, tsId, entry.Id, value)
				return err
			}),
		a.entryEdit("remove <row>", "Remove a row", 1,
			func(ctx context.Context, tsId int, entry timesheet.TimeEntry, args []string) error {
				return a.deps.TimesheetService.DeleteEntry(ctx, tsId, entry.Id)
			}),
	)
	return cmd
}

type entryEditFunc func(ctx context.Context, timesheetId int, entry timesheet.TimeEntry, args []string) error

// entryEdit builds a subcommand whose first argument is a row number of the
// selected week's grid.
func (a *Application) entryEdit(use, short string, minArgs int, edit entryEditFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MinimumNArgs(minArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			ts, err := a.currentTimesheet(ctx)
			if err != nil {
				return err
			}
			entry, err := entryAt(*ts, args[0])
			if err != nil {
				return err
			}
			if err := edit(ctx, ts.Id, entry, args); err != nil {
				return err
			}
			return a.showWeek(ctx)
		},
	}
}

func entryAt(ts timesheet.Timesheet, row string) (timesheet.TimeEntry, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(row, "#"))
	if err != nil || n < 1 || n > len(ts.TimeEntries) {
		return timesheet.TimeEntry{}, fmt.Errorf("no row %q, the week has %d row(s)", row, len(ts.TimeEntries))
	}
	return ts.TimeEntries[n-1], nil
}

func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "yes", "y", "on", "true":
		return true, nil
	case "no", "n", "off", "false":
		return false, nil
	}
	return false, fmt.Errorf("expected yes or no, got %q", value)
}

// currentTimesheet is the selected week's timesheet, or errNoTimesheet.
func (a *Application) currentTimesheet(ctx context.Context) (*timesheet.Timesheet, error) {
	ts, err := a.deps.Navigator.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if ts == nil {
		return nil, errNoTimesheet
	}
	return ts, nil
}

func (a *Application) showWeek(ctx context.Context) error {
	ts, err := a.deps.Navigator.Resolve(ctx)
	if err != nil {
		return err
	}
	current, err := a.deps.Session.CurrentUser(ctx)
	if err != nil {
		return err
	}
	return a.renderTimesheetWeek(ctx, a.deps.Navigator.Week(), ts,
		timesheet.AvailableActions(ts, current.Capabilities(), true))
}

func (a *Application) renderTimesheetWeek(ctx context.Context, week calendar.Week, ts *timesheet.Timesheet, actions []timesheet.Action) error {
	days, err := a.deps.CalendarService.AnnotatedWeek(ctx, week)
	if err != nil {
		log.Warnf("showing %s without holidays: %v", week, err)
		days = calendar.AnnotateWeek(week, nil)
	}
	policy := a.deps.SettingsService.Effective(ctx)
	view := weekView{
		Week:      week,
		Days:      days,
		Timesheet: ts,
		Overtime:  policy.EnableOvertime,
		Actions:   actions,
		Format:    timesheet.ParseFormat(policy.TimeFormat),
	}
	if ts != nil {
		view.Summary = a.deps.TimesheetService.Summary(ctx, *ts)
	}
	return renderWeek(a.out, view)
}

func (a *Application) format(ctx context.Context) timesheet.Format {
	return a.deps.HoursFormat(ctx, a.cfg.Display.TimeFormat)
}
