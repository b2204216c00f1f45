package report

import (
	"testing"
	"time"

	"github.com/highspring/timesheets/pkg/calendar"
	"github.com/highspring/timesheets/pkg/project"
	"github.com/highspring/timesheets/pkg/timesheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var acme = &project.Project{Id: 1, Code: "ACME", Name: "Acme portal"}

func weekEntry(projectId int, p *project.Project, billable bool, description string, hours ...float64) timesheet.TimeEntry {
	e := timesheet.TimeEntry{ProjectId: projectId, Project: p, Billable: billable, Description: description}
	copy(e.Hours[:], hours)
	return e
}

func TestCsvWeekRenderer_RenderWeek(t *testing.T) {
	ts := timesheet.Timesheet{TimeEntries: []timesheet.TimeEntry{
		weekEntry(1, acme, true, "Design", 9, 8, 0, 0, 4),
		weekEntry(7, nil, false, "", 0, 0.5, 0, 0, 0, 0, 1.25),
	}}

	tests := []struct {
		name     string
		week     calendar.Week
		renderer *CsvWeekRenderer
		want     string
	}{
		{
			name:     "monday week in decimal",
			week:     calendar.WeekOf(time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), time.Monday),
			renderer: NewCsvWeekRenderer(timesheet.FormatDecimal, timesheet.Policy{StandardHoursPerDay: 8}),
			want: "Project,Description,Mon 13/01,Tue 14/01,Wed 15/01,Thu 16/01,Fri 17/01,Sat 18/01,Sun 19/01,SUM\n" +
				"ACME Acme portal,Design,9.00,8.00,0.00,0.00,4.00,0.00,0.00,21.00\n" +
				"#7,,0.00,0.50,0.00,0.00,0.00,0.00,1.25,1.75\n" +
				"Total,,9.00,8.50,0.00,0.00,4.00,0.00,1.25,22.75\n" +
				"Billable,,9.00,8.00,0.00,0.00,4.00,0.00,0.00,21.00\n",
		},
		{
			name:     "sunday week in hhmm with overtime",
			week:     calendar.WeekOf(time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), time.Sunday),
			renderer: NewCsvWeekRenderer(timesheet.FormatHHMM, timesheet.Policy{StandardHoursPerDay: 8, OvertimeEnabled: true}),
			want: "Project,Description,Sun 12/01,Mon 13/01,Tue 14/01,Wed 15/01,Thu 16/01,Fri 17/01,Sat 18/01,SUM\n" +
				"ACME Acme portal,Design,00:00,09:00,08:00,00:00,00:00,04:00,00:00,21:00\n" +
				"#7,,01:15,00:00,00:30,00:00,00:00,00:00,00:00,01:45\n" +
				"Total,,01:15,09:00,08:30,00:00,00:00,04:00,00:00,22:45\n" +
				"Billable,,00:00,09:00,08:00,00:00,00:00,04:00,00:00,21:00\n" +
				"Overtime,,00:00,01:00,00:30,00:00,00:00,00:00,00:00,01:30\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.renderer.RenderWeek(tt.week, ts)

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
