package report

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/highspring/timesheets/pkg/calendar"
	"github.com/highspring/timesheets/pkg/timesheet"
	log "github.com/sirupsen/logrus"
)

// CsvWeekRenderer renders a timesheet as the week grid: one row per entry,
// one column per day in week order, followed by the totals rows.
type CsvWeekRenderer struct {
	format timesheet.Format
	policy timesheet.Policy
}

func NewCsvWeekRenderer(format timesheet.Format, policy timesheet.Policy) *CsvWeekRenderer {
	return &CsvWeekRenderer{format: format, policy: policy}
}

func (r *CsvWeekRenderer) RenderWeek(week calendar.Week, ts timesheet.Timesheet) (string, error) {
	days := week.Ordered()
	summary := timesheet.Summarize(ts.TimeEntries, r.policy)

	header := make([]string, 0, len(days)+3)
	header = append(header, "Project", "Description")
	for i, day := range days {
		header = append(header, fmt.Sprintf("%s %s", day.Label(), week.Start.AddDate(0, 0, i).Format("02/01")))
	}
	header = append(header, "SUM")

	data := make([][]string, 0, len(ts.TimeEntries)+4)
	data = append(data, header)
	for _, entry := range ts.TimeEntries {
		data = append(data, r.row(entryLabel(entry), entry.Description, days, entry.Hours, entry.Total()))
	}
	data = append(data,
		r.row("Total", "", days, summary.ByDay, summary.Total),
		r.row("Billable", "", days, summary.BillableByDay, summary.Billable),
	)
	if r.policy.OvertimeEnabled {
		data = append(data, r.row("Overtime", "", days, summary.OvertimeByDay, summary.Overtime))
	}

	var b bytes.Buffer
	writer := csv.NewWriter(&b)
	if err := writer.WriteAll(data); err != nil {
		log.Errorf("Error writing to csv: %v", err)
		return "", err
	}
	return b.String(), nil
}

func (r *CsvWeekRenderer) row(label, description string, days [calendar.DaysInWeek]calendar.Day, hours [calendar.DaysInWeek]float64, total float64) []string {
	row := make([]string, 0, len(days)+3)
	row = append(row, label, description)
	for _, day := range days {
		row = append(row, timesheet.FormatHours(hours[day], r.format))
	}
	return append(row, timesheet.FormatHours(total, r.format))
}

func entryLabel(entry timesheet.TimeEntry) string {
	if entry.Project != nil {
		return entry.Project.Label()
	}
	return fmt.Sprintf("#%d", entry.ProjectId)
}
