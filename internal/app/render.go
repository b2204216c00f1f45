package app

import (
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"text/tabwriter"

	"github.com/highspring/timesheets/internal/rest"
	"github.com/highspring/timesheets/pkg/approval"
	"github.com/highspring/timesheets/pkg/calendar"
	"github.com/highspring/timesheets/pkg/notification"
	"github.com/highspring/timesheets/pkg/project"
	"github.com/highspring/timesheets/pkg/report"
	"github.com/highspring/timesheets/pkg/settings"
	"github.com/highspring/timesheets/pkg/timesheet"
	"github.com/highspring/timesheets/pkg/toast"
	"github.com/highspring/timesheets/pkg/user"
)

// countingNotifier prints toasts and remembers how many were shown, so the
// prompt does not repeat an error the user has already seen.
type countingNotifier struct {
	*toast.WriterNotifier
	shown atomic.Int64
}

func newCountingNotifier(out io.Writer) *countingNotifier {
	return &countingNotifier{WriterNotifier: toast.NewWriterNotifier(out)}
}

func (n *countingNotifier) Notify(level toast.Level, message string) {
	n.shown.Add(1)
	n.WriterNotifier.Notify(level, message)
}

func (n *countingNotifier) Shown() int64 {
	return n.shown.Load()
}

func newTable(out io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
}

// weekView is everything shown for the selected week.
type weekView struct {
	Week      calendar.Week
	Days      [calendar.DaysInWeek]calendar.DayInfo
	Timesheet *timesheet.Timesheet
	Summary   timesheet.Summary
	Overtime  bool
	Actions   []timesheet.Action
	Format    timesheet.Format
}

func renderWeek(out io.Writer, v weekView) error {
	fmt.Fprintf(out, "%s  (%s)\n", v.Week.Label(), v.Week)
	if v.Timesheet == nil {
		fmt.Fprintln(out, "No timesheet for this week.")
		fmt.Fprintf(out, "Actions: %s\n", joinActions(v.Actions))
		return nil
	}
	ts := v.Timesheet
	fmt.Fprintf(out, "Status: %s\n", ts.Status.Label())
	if ts.Status == timesheet.StatusRejected && ts.RejectedReason != "" {
		fmt.Fprintf(out, "Rejected: %s\n", ts.RejectedReason)
	}

	days := v.Week.Ordered()
	var holidays []string
	tw := newTable(out)
	header := []string{"#", "Project", "Description"}
	for _, d := range days {
		info := v.Days[d]
		label := fmt.Sprintf("%s %s", d.Label(), info.Date.Format("02"))
		if info.Holiday {
			label += "*"
			holidays = append(holidays, fmt.Sprintf("%s %s", info.Date.Format("Jan 2"), info.HolidayName))
		}
		header = append(header, label)
	}
	header = append(header, "Total", "Billable")
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for i, e := range ts.TimeEntries {
		label := fmt.Sprintf("#%d", e.ProjectId)
		if e.Project != nil {
			label = e.Project.Label()
		}
		billable := "no"
		if e.Billable {
			billable = "yes"
		}
		row := []string{fmt.Sprint(i + 1), label, e.Description}
		row = append(row, hoursRow(days, e.Hours, v.Format)...)
		row = append(row, timesheet.FormatHours(e.Total(), v.Format), billable)
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	totals := append([]string{"", "Total", ""}, hoursRow(days, v.Summary.ByDay, v.Format)...)
	fmt.Fprintln(tw, strings.Join(append(totals, timesheet.FormatHours(v.Summary.Total, v.Format), ""), "\t"))
	if v.Overtime {
		overtime := append([]string{"", "Overtime", ""}, hoursRow(days, v.Summary.OvertimeByDay, v.Format)...)
		fmt.Fprintln(tw, strings.Join(append(overtime, timesheet.FormatHours(v.Summary.Overtime, v.Format), ""), "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, h := range holidays {
		fmt.Fprintf(out, "* %s\n", h)
	}
	fmt.Fprintf(out, "Total %s, billable %s (%d%%), non-billable %s\n",
		timesheet.FormatHours(v.Summary.Total, v.Format),
		timesheet.FormatHours(v.Summary.Billable, v.Format),
		v.Summary.BillablePercentage,
		timesheet.FormatHours(v.Summary.NonBillable, v.Format))
	if len(v.Actions) > 0 {
		fmt.Fprintf(out, "Actions: %s\n", joinActions(v.Actions))
	}
	return nil
}

func hoursRow(days [calendar.DaysInWeek]calendar.Day, hours [calendar.DaysInWeek]float64, format timesheet.Format) []string {
	row := make([]string, 0, len(days))
	for _, d := range days {
		row = append(row, timesheet.FormatHours(hours[d], format))
	}
	return row
}

func joinActions(actions []timesheet.Action) string {
	names := make([]string, 0, len(actions))
	for _, a := range actions {
		names = append(names, string(a))
	}
	return strings.Join(names, ", ")
}

func renderTimesheets(out io.Writer, items []timesheet.Timesheet, meta rest.PageMeta, format timesheet.Format) error {
	if len(items) == 0 {
		fmt.Fprintln(out, "No timesheets found.")
		return nil
	}
	tw := newTable(out)
	fmt.Fprintln(tw, "ID\tWeek\tEmployee\tStatus\tTotal\tBillable")
	for _, ts := range items {
		employee := ""
		if ts.User != nil {
			employee = ts.User.Name
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", ts.Id, dateOnly(ts.WeekStartDate), employee, ts.Status.Label(),
			timesheet.FormatHours(ts.TotalHours, format), timesheet.FormatHours(ts.BillableHours, format))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	renderPageMeta(out, meta)
	return nil
}

func renderPageMeta(out io.Writer, meta rest.PageMeta) {
	if meta.Limit <= 0 {
		return
	}
	pages := (meta.Total + meta.Limit - 1) / meta.Limit
	fmt.Fprintf(out, "Page %d of %d (%d total)\n", meta.Page, max(pages, 1), meta.Total)
}

func renderDashboard(out io.Writer, stats timesheet.DashboardStats, format timesheet.Format) error {
	fmt.Fprintf(out, "This week:   %s h\n", timesheet.FormatHours(stats.ThisWeekHours, format))
	fmt.Fprintf(out, "This month:  %s h (%d%% billable)\n", timesheet.FormatHours(stats.MonthHours, format), stats.MonthBillablePercentage)
	fmt.Fprintf(out, "Pending:     %d\n", stats.PendingCount)
	return renderTimesheets(out, stats.Recent, rest.PageMeta{}, format)
}

func renderApprovalStats(out io.Writer, stats approval.Stats) {
	fmt.Fprintf(out, "Pending approval:    %d\n", stats.PendingCount)
	fmt.Fprintf(out, "Approved this week:  %d\n", stats.ApprovedThisWeek)
	fmt.Fprintf(out, "Team hours:          %s\n", timesheet.FormatHours(stats.TeamHours, timesheet.FormatDecimal))
	fmt.Fprintf(out, "Team members:        %d\n", stats.TeamMembers)
}

func renderNotifications(out io.Writer, unread int, items []notification.Notification) error {
	fmt.Fprintf(out, "%d unread\n", unread)
	if len(items) == 0 {
		return nil
	}
	tw := newTable(out)
	for _, n := range items {
		marker := " "
		if !n.Read {
			marker = "•"
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", marker, n.Id, dateOnly(n.CreatedAt), n.Message)
	}
	return tw.Flush()
}

func renderReport(out io.Writer, data report.Data, format timesheet.Format) error {
	if err := renderTimesheets(out, data.Timesheets, rest.PageMeta{}, format); err != nil {
		return err
	}
	fmt.Fprintf(out, "Total hours:     %s\n", timesheet.FormatHours(data.TotalHours, format))
	fmt.Fprintf(out, "Billable hours:  %s\n", timesheet.FormatHours(data.BillableHours, format))
	fmt.Fprintf(out, "Utilization:     %.0f%%\n", data.UtilizationPct)
	fmt.Fprintf(out, "Revenue:         %.2f\n", data.Revenue)
	return nil
}

func renderUsers(out io.Writer, users []user.User) error {
	tw := newTable(out)
	fmt.Fprintln(tw, "ID\tName\tEmail\tRole\tDepartment\tManagers\tStatus")
	for _, u := range users {
		managers := make([]string, 0, len(u.Managers))
		for _, m := range u.Managers {
			managers = append(managers, m.Manager.Name)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", u.Id, u.Name, u.Email, u.Role, u.Department, strings.Join(managers, ", "), u.Status)
	}
	return tw.Flush()
}

func renderProjects(out io.Writer, projects []project.Project) error {
	tw := newTable(out)
	fmt.Fprintln(tw, "ID\tCode\tName\tClient\tBudget\tUsed\tStatus")
	for _, p := range projects {
		budget := "-"
		if p.BudgetHours > 0 {
			budget = fmt.Sprintf("%.0f h (%d%% used)", p.BudgetHours, p.BudgetUsage())
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.2f\t%s\n", p.Id, p.Code, p.Name, p.Client, budget, p.UsedHours, p.Status)
	}
	return tw.Flush()
}

func renderHolidays(out io.Writer, holidays []calendar.Holiday) error {
	if len(holidays) == 0 {
		fmt.Fprintln(out, "No holidays.")
		return nil
	}
	tw := newTable(out)
	fmt.Fprintln(tw, "ID\tDate\tName\tRecurring")
	for _, h := range holidays {
		recurring := ""
		if h.Recurring {
			recurring = "yearly"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", h.Id, dateOnly(h.Date), h.Name, recurring)
	}
	return tw.Flush()
}

func renderSettings(out io.Writer, s settings.OrgSettings) error {
	tw := newTable(out)
	rows := [][2]string{
		{"workWeekStart", s.WorkWeekStart},
		{"standardHours", fmt.Sprint(s.StandardHours)},
		{"timeFormat", s.TimeFormat},
		{"timeIncrement", fmt.Sprint(s.TimeIncrement)},
		{"maxHoursPerDay", fmt.Sprint(s.MaxHoursPerDay)},
		{"maxHoursPerWeek", fmt.Sprint(s.MaxHoursPerWeek)},
		{"requireApproval", fmt.Sprint(s.RequireApproval)},
		{"allowBackdated", fmt.Sprint(s.AllowBackdated)},
		{"enableOvertime", fmt.Sprint(s.EnableOvertime)},
		{"mandatoryDesc", fmt.Sprint(s.MandatoryDesc)},
		{"allowCopyWeek", fmt.Sprint(s.AllowCopyWeek)},
		{"dailyReminderTime", s.DailyReminderTime},
		{"weeklyDeadline", s.WeeklyDeadline},
	}
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\n", r[0], r[1])
	}
	return tw.Flush()
}

func dateOnly(value string) string {
	if len(value) > len("2006-01-02") {
		return value[:len("2006-01-02")]
	}
	return value
}
