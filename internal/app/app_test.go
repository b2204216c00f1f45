package app

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/highspring/timesheets/internal/config"
	"github.com/highspring/timesheets/internal/test_utils"
	"github.com/highspring/timesheets/internal/utils"
	"github.com/highspring/timesheets/pkg/settings"
	"github.com/highspring/timesheets/pkg/timesheet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Wednesday of the week starting 2025-01-13.
var appNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local)

func setupAppTest(t *testing.T, input string) (*Application, *test_utils.Backend, *bytes.Buffer) {
	t.Helper()
	clock := utils.NewMockClock(appNow)
	backend := test_utils.NewBackend(t, clock)

	cfg := config.Defaults()
	cfg.Api.BaseUrl = backend.URL
	cfg.Export.Dir = t.TempDir()

	out := &bytes.Buffer{}
	application, err := newApplication(cfg, clock, strings.NewReader(input), out)
	require.NoError(t, err)
	application.prompt.readPassword = func() ([]byte, error) {
		line, err := application.prompt.readLine()
		return []byte(line), err
	}
	return application, backend, out
}

func script(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}

func TestApplication_EmployeeWeek(t *testing.T) {
	application, backend, out := setupAppTest(t, script(
		"login bob@highspring.test",
		test_utils.DefaultPassword,
		"create",
		`entry add ACME "Portal work" --billable`,
		"entry hours 1 mon 8",
		"entry hours 1 tue 7:30",
		"submit",
		"exit",
	))

	require.NoError(t, application.Run(context.Background()))

	output := out.String()
	assert.Contains(t, output, "Type 'login' to sign in")
	assert.Contains(t, output, "Signed in as Bob Employee (Employee).")
	assert.Contains(t, output, "bob@highspring.test 2025-W03> ")
	assert.Contains(t, output, "✓ Timesheet created")
	assert.Contains(t, output, "ACME Acme portal")
	assert.Contains(t, output, "Portal work")
	assert.Contains(t, output, "Total 15.50, billable 15.50 (100%), non-billable 0.00")
	assert.Contains(t, output, "✓ Timesheet submitted for approval")
	assert.Contains(t, output, "Status: Submitted")
	assert.True(t, strings.HasSuffix(output, "Bye!\n"))
	assert.NotContains(t, output, "error:")
	assert.Equal(t, 1, backend.TimesheetCount(test_utils.EmployeeId, "2025-01-13"))
}

func TestApplication_ManagerApproves(t *testing.T) {
	application, backend, out := setupAppTest(t, "")
	id := backend.SeedTimesheet(test_utils.EmployeeId, "2025-01-06", "SUBMITTED",
		test_utils.SeedEntry{ProjectId: test_utils.ActiveProjectId, Description: "Portal", Billable: true, Hours: []float64{8, 8, 8, 8, 8}})
	ctx := context.Background()

	_, err := application.deps.Session.Login(ctx, "mia@highspring.test", test_utils.DefaultPassword)
	require.NoError(t, err)

	application.Execute(ctx, []string{"approval", "list"})
	assert.Contains(t, out.String(), "Bob Employee")
	assert.Contains(t, out.String(), "Submitted")

	out.Reset()
	application.Execute(ctx, []string{"approval", "show", fmt.Sprint(id)})
	assert.Contains(t, out.String(), "Actions: approve, reject")

	out.Reset()
	application.Execute(ctx, []string{"approval", "approve", fmt.Sprint(id)})
	assert.Contains(t, out.String(), "✓ Timesheet approved")
	assert.Equal(t, "APPROVED", backend.TimesheetStatus(id))
}

func TestApplication_Errors(t *testing.T) {
	t.Run("signed out", func(t *testing.T) {
		application, _, out := setupAppTest(t, "")
		application.Execute(context.Background(), []string{"week"})
		assert.Equal(t, "error: not signed in, use 'login' first\n", out.String())
	})

	t.Run("unknown command", func(t *testing.T) {
		application, _, out := setupAppTest(t, "")
		application.Execute(context.Background(), []string{"frobnicate"})
		assert.Contains(t, out.String(), `error: unknown command "frobnicate"`)
	})

	t.Run("notified errors are not repeated", func(t *testing.T) {
		application, _, out := setupAppTest(t, script("wrong-password"))
		application.Execute(context.Background(), []string{"login", "bob@highspring.test"})
		assert.Contains(t, out.String(), "✗ Invalid email or password")
		assert.NotContains(t, out.String(), "error:")
		assert.False(t, application.deps.Session.Authenticated())
	})

	t.Run("declined confirmation", func(t *testing.T) {
		application, backend, out := setupAppTest(t, script("n"))
		ctx := context.Background()
		backend.SeedTimesheet(test_utils.EmployeeId, "2025-01-13", "DRAFT")
		_, err := application.deps.Session.Login(ctx, "bob@highspring.test", test_utils.DefaultPassword)
		require.NoError(t, err)

		application.Execute(ctx, []string{"discard"})
		assert.Contains(t, out.String(), "Delete the timesheet for Jan 13 - Jan 19, 2025? [y/N] ")
		assert.Contains(t, out.String(), "Cancelled.")
		assert.Equal(t, 1, backend.TimesheetCount(test_utils.EmployeeId, "2025-01-13"))
	})
}

func TestApplication_Navigation(t *testing.T) {
	application, _, out := setupAppTest(t, "")
	ctx := context.Background()
	_, err := application.deps.Session.Login(ctx, "bob@highspring.test", test_utils.DefaultPassword)
	require.NoError(t, err)

	application.Execute(ctx, []string{"next"})
	assert.Contains(t, out.String(), "Jan 20 - Jan 26, 2025")
	assert.Contains(t, out.String(), "No timesheet for this week.")
	assert.Contains(t, out.String(), "Actions: create, copy-previous-week")

	out.Reset()
	application.Execute(ctx, []string{"goto", "2024-12-31"})
	assert.Contains(t, out.String(), "Dec 30 - Jan 5, 2025")

	out.Reset()
	application.Execute(ctx, []string{"today"})
	assert.Equal(t, "2025-W03", application.deps.Navigator.Week().String())

	out.Reset()
	application.Execute(ctx, []string{"goto", "31/12/2024"})
	assert.Contains(t, out.String(), "error: invalid date")
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		line    string
		want    []string
		wantErr bool
	}{
		{line: "", want: nil},
		{line: "   ", want: nil},
		{line: "week", want: []string{"week"}},
		{line: "  entry  hours 1 mon 7:30 ", want: []string{"entry", "hours", "1", "mon", "7:30"}},
		{line: `approval reject 12 "Missing Friday notes"`, want: []string{"approval", "reject", "12", "Missing Friday notes"}},
		{line: `entry describe 1 'client call'`, want: []string{"entry", "describe", "1", "client call"}},
		{line: `entry describe 1 ""`, want: []string{"entry", "describe", "1", ""}},
		{line: `holiday add "2025-12-25`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := splitLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSettingsUpdate(t *testing.T) {
	req, err := settingsUpdate("standardHours", "7.5")
	require.NoError(t, err)
	require.NotNil(t, req.StandardHours)
	assert.Equal(t, 7.5, *req.StandardHours)

	req, err = settingsUpdate("enableOvertime", "yes")
	require.NoError(t, err)
	require.NotNil(t, req.EnableOvertime)
	assert.True(t, *req.EnableOvertime)

	req, err = settingsUpdate("WorkWeekStart", "Sunday")
	require.NoError(t, err)
	assert.Equal(t, settings.UpdateRequest{WorkWeekStart: req.WorkWeekStart}, req)
	assert.Equal(t, "sunday", *req.WorkWeekStart)

	_, err = settingsUpdate("timeIncrement", "quarter")
	assert.EqualError(t, err, "timeIncrement must be a whole number of minutes")

	_, err = settingsUpdate("colour", "blue")
	assert.EqualError(t, err, `unknown setting "colour"`)
}

func TestEntryAt(t *testing.T) {
	ts := timesheet.Timesheet{TimeEntries: []timesheet.TimeEntry{{Id: 7}, {Id: 9}}}

	entry, err := entryAt(ts, "2")
	require.NoError(t, err)
	assert.Equal(t, 9, entry.Id)

	entry, err = entryAt(ts, "#1")
	require.NoError(t, err)
	assert.Equal(t, 7, entry.Id)

	_, err = entryAt(ts, "3")
	assert.EqualError(t, err, `no row "3", the week has 2 row(s)`)
}

func TestRequestIdTransport(t *testing.T) {
	var seen []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(RequestIdHeader))
	}))
	defer server.Close()
	client := &http.Client{Transport: &RequestIdTransport{}}

	for range 2 {
		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)
	req.Header.Set(RequestIdHeader, "fixed")
	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, seen, 3)
	assert.Len(t, seen[0], 36)
	assert.NotEqual(t, seen[0], seen[1])
	assert.Equal(t, "fixed", seen[2])
}
