package timesheet

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/highspring/timesheets/pkg/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeEntry_UnmarshalJSON(t *testing.T) {
	raw := `{"id":5,"timesheetId":2,"projectId":9,"billable":true,"description":"Design",
		"monHours":8,"tueHours":7.5,"wedHours":0,"thuHours":0,"friHours":4,"satHours":0,"sunHours":0,
		"monNote":"kickoff","totalHours":99,"project":{"id":9,"code":"ACME","name":"Acme","status":"ACTIVE"}}`

	var e TimeEntry
	require.NoError(t, json.Unmarshal([]byte(raw), &e))

	assert.Equal(t, 5, e.Id)
	assert.Equal(t, [calendar.DaysInWeek]float64{8, 7.5, 0, 0, 4, 0, 0}, e.Hours)
	assert.Equal(t, "kickoff", e.Notes[calendar.Monday])
	assert.Equal(t, 19.5, e.Total())
	require.NotNil(t, e.Project)
	assert.Equal(t, "ACME", e.Project.Code)
}

func TestTimeEntry_MarshalJSON(t *testing.T) {
	e := entry(1, true, 1, 2, 3)
	e.Notes[calendar.Sunday] = "on call"

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, 2.0, body["tueHours"])
	assert.Equal(t, "on call", body["sunNote"])
	assert.Equal(t, 6.0, body["totalHours"])
	assert.NotContains(t, body, "monNote")
}

func TestEntryPatch_MarshalJSON(t *testing.T) {
	billable := false
	patch := EntryPatch{Hours: map[calendar.Day]float64{calendar.Wednesday: 6.25}, Billable: &billable}

	data, err := json.Marshal(patch)

	require.NoError(t, err)
	assert.JSONEq(t, `{"wedHours":6.25,"billable":false}`, string(data))
}

func TestTimesheet_StartsOn(t *testing.T) {
	week := calendar.WeekOf(time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), time.Monday)

	assert.True(t, Timesheet{WeekStartDate: "2025-01-13"}.StartsOn(week))
	assert.True(t, Timesheet{WeekStartDate: "2025-01-13T00:00:00.000Z"}.StartsOn(week))
	assert.False(t, Timesheet{WeekStartDate: "2025-01-06"}.StartsOn(week))
}
