package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/highspring/timesheets/pkg/approval"
	"github.com/highspring/timesheets/pkg/report"
	"github.com/highspring/timesheets/pkg/timesheet"
	"github.com/spf13/cobra"
)

func (a *Application) approvalCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "approval",
		Aliases: []string{"approvals"},
		Short:   "Review timesheets submitted by your team",
	}

	var page, limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List timesheets awaiting approval",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pending, err := a.deps.ApprovalService.List(cmd.Context(), page, limit)
			if err != nil {
				return err
			}
			return renderTimesheets(a.out, pending.Items, pending.Meta, a.format(cmd.Context()))
		},
	}
	list.Flags().IntVar(&page, "page", approval.DefaultPage, "page number")
	list.Flags().IntVar(&limit, "limit", approval.DefaultLimit, "timesheets per page")

	cmd.AddCommand(
		list,
		&cobra.Command{
			Use:   "stats",
			Short: "Summarize the review queue",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				stats, err := a.deps.ApprovalService.Stats(cmd.Context())
				if err != nil {
					return err
				}
				renderApprovalStats(a.out, stats)
				return nil
			},
		},
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a submitted timesheet",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				id, err := parseId(args[0])
				if err != nil {
					return err
				}
				ts, err := a.deps.TimesheetService.Get(ctx, id)
				if err != nil {
					return err
				}
				week, err := ts.Week(a.deps.SettingsService.Effective(ctx).WeekStartDay())
				if err != nil {
					return err
				}
				current, err := a.deps.Session.CurrentUser(ctx)
				if err != nil {
					return err
				}
				if ts.User != nil {
					fmt.Fprintf(a.out, "%s\n", ts.User.Name)
				}
				owner := ts.UserId == current.UserId
				return a.renderTimesheetWeek(ctx, week, &ts, timesheet.AvailableActions(&ts, current.Capabilities(), owner))
			},
		},
		&cobra.Command{
			Use:   "approve <id>",
			Short: "Approve a submitted timesheet",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseId(args[0])
				if err != nil {
					return err
				}
				_, err = a.deps.ApprovalService.Approve(cmd.Context(), id)
				return err
			},
		},
		&cobra.Command{
			Use:   "reject <id> <reason>",
			Short: "Send a submitted timesheet back with a reason",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseId(args[0])
				if err != nil {
					return err
				}
				_, err = a.deps.ApprovalService.Reject(cmd.Context(), id, strings.Join(args[1:], " "))
				return err
			},
		},
	)
	return cmd
}

func (a *Application) notificationCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notification", "inbox"},
		Short:   "Show your latest notifications",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			unread, preview, err := a.deps.NotificationService.Unread(cmd.Context())
			if err != nil {
				return err
			}
			return renderNotifications(a.out, unread, preview)
		},
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "read <id>",
			Short: "Mark a notification as read",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseId(args[0])
				if err != nil {
					return err
				}
				return a.deps.NotificationService.MarkRead(cmd.Context(), id)
			},
		},
		&cobra.Command{
			Use:   "read-all",
			Short: "Mark every notification as read",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.deps.NotificationService.MarkAllRead(cmd.Context())
			},
		},
	)
	return cmd
}

func (a *Application) reportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Hours reports and exports",
	}

	var filters report.Filters
	var status string
	now := a.deps.Clock.Now()
	from, to := monthRange(now)
	addFilterFlags := func(c *cobra.Command) {
		c.Flags().StringVar(&filters.DateFrom, "from", from, "first day, yyyy-mm-dd")
		c.Flags().StringVar(&filters.DateTo, "to", to, "last day, yyyy-mm-dd")
		c.Flags().IntVar(&filters.UserId, "user", 0, "only this user id")
		c.Flags().IntVar(&filters.ProjectId, "project", 0, "only this project id")
		c.Flags().StringVar(&status, "status", "", "only DRAFT, SUBMITTED, APPROVED or REJECTED")
	}
	withStatus := func() report.Filters {
		f := filters
		f.Status = timesheet.Status(strings.ToUpper(status))
		return f
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show totals for a date range",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.deps.ReportService.Generate(cmd.Context(), withStatus())
			if err != nil {
				return err
			}
			return renderReport(a.out, data, a.format(cmd.Context()))
		},
	}
	addFilterFlags(show)

	var format string
	export := &cobra.Command{
		Use:   "export",
		Short: "Download a report as csv, excel or pdf",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.deps.ReportService.Export(cmd.Context(), withStatus(), report.Format(strings.ToLower(format)))
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved %s\n", path)
			return nil
		},
	}
	addFilterFlags(export)
	export.Flags().StringVar(&format, "format", string(report.FormatCSV), "csv, excel or pdf")

	var monthly report.MonthlyRequest
	month := &cobra.Command{
		Use:   "monthly",
		Short: "Download a monthly timesheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := a.deps.ReportService.ExportMonthly(cmd.Context(), monthly)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Saved %s\n", path)
			return nil
		},
	}
	month.Flags().IntVar(&monthly.UserId, "user", 0, "user id, yourself by default")
	month.Flags().IntVar(&monthly.Year, "year", now.Year(), "year")
	month.Flags().IntVar(&monthly.Month, "month", int(now.Month()), "month, 1 to 12")

	targets := &cobra.Command{
		Use:   "targets",
		Short: "List the users whose monthly timesheet you may download",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := a.deps.UserService.ExportTargets(cmd.Context())
			if err != nil {
				return err
			}
			return renderUsers(a.out, users)
		},
	}

	cmd.AddCommand(show, export, month, targets)
	return cmd
}

func parseId(value string) (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(value, "#"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", value)
	}
	return id, nil
}

// monthRange is the first and last day of the month containing t.
func monthRange(t time.Time) (string, string) {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first.Format(time.DateOnly), first.AddDate(0, 1, -1).Format(time.DateOnly)
}
