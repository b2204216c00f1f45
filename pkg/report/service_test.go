package report

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/highspring/timesheets/internal/test_utils"
	"github.com/highspring/timesheets/internal/validator"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/timesheet"
	"github.com/highspring/timesheets/pkg/toast"
	"github.com/highspring/timesheets/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	manager  = user.AuthUser{UserId: test_utils.ManagerId, Role: user.RoleManager, Name: "Mia Manager"}
	employee = user.AuthUser{UserId: test_utils.EmployeeId, Role: user.RoleEmployee, Name: "Bob Employee"}
	january  = Filters{DateFrom: "2025-01-01", DateTo: "2025-01-31"}
)

type serviceFixture struct {
	service   *Service
	backend   *test_utils.Backend
	notifier  *toast.Recorder
	exportDir string
	ctx       context.Context
}

func setupServiceTest(t *testing.T, as user.AuthUser) serviceFixture {
	t.Helper()
	backend := test_utils.NewBackend(t, nil)
	notifier := toast.NewRecorder()
	exportDir := filepath.Join(t.TempDir(), "exports")
	service := NewService(NewClient(backend.ClientFor(t, as.UserId)), cache.New(nil, 0), notifier, user.ContextProvider{}, exportDir)

	backend.SeedTimesheet(test_utils.EmployeeId, "2025-01-06", "APPROVED", test_utils.SeedEntry{
		ProjectId: test_utils.ActiveProjectId, Billable: true, Description: "Portal", Hours: []float64{8, 8, 8, 8, 8},
	})
	backend.SeedTimesheet(test_utils.EmployeeId, "2025-01-13", "DRAFT", test_utils.SeedEntry{
		ProjectId: test_utils.InternalProjectId, Hours: []float64{4, 6},
	})
	backend.SeedTimesheet(test_utils.EmployeeId, "2025-02-03", "DRAFT", test_utils.SeedEntry{
		ProjectId: test_utils.ActiveProjectId, Billable: true, Hours: []float64{8},
	})

	return serviceFixture{
		service:   service,
		backend:   backend,
		notifier:  notifier,
		exportDir: exportDir,
		ctx:       user.WithUser(context.Background(), as),
	}
}

func TestService_Generate(t *testing.T) {
	t.Run("aggregates the filtered timesheets", func(t *testing.T) {
		f := setupServiceTest(t, manager)

		data, err := f.service.Generate(f.ctx, january)

		require.NoError(t, err)
		assert.Len(t, data.Timesheets, 2)
		assert.Equal(t, 50.0, data.TotalHours)
		assert.Equal(t, 40.0, data.BillableHours)
		assert.Equal(t, 80.0, data.UtilizationPct)
		assert.Equal(t, 4000.0, data.Revenue)
	})

	t.Run("status filter", func(t *testing.T) {
		f := setupServiceTest(t, manager)
		filters := january
		filters.Status = timesheet.StatusApproved

		data, err := f.service.Generate(f.ctx, filters)

		require.NoError(t, err)
		require.Len(t, data.Timesheets, 1)
		assert.Equal(t, 40.0, data.TotalHours)
	})

	t.Run("serves repeated queries from the cache", func(t *testing.T) {
		f := setupServiceTest(t, manager)

		_, err := f.service.Generate(f.ctx, january)
		require.NoError(t, err)
		_, err = f.service.Generate(f.ctx, january)
		require.NoError(t, err)

		assert.Equal(t, 1, f.backend.Requests(http.MethodGet, "/reports"))
	})

	t.Run("missing date range", func(t *testing.T) {
		f := setupServiceTest(t, manager)

		_, err := f.service.Generate(f.ctx, Filters{DateFrom: "2025-01-01"})

		assert.ErrorIs(t, err, validator.ErrInvalid)
		assert.Zero(t, f.backend.Requests(http.MethodGet, "/reports"))
	})

	t.Run("employees cannot view reports", func(t *testing.T) {
		f := setupServiceTest(t, employee)

		_, err := f.service.Generate(f.ctx, january)

		assert.ErrorIs(t, err, user.ErrInsufficientRole)
	})
}

func TestService_Export(t *testing.T) {
	t.Run("csv", func(t *testing.T) {
		f := setupServiceTest(t, manager)

		path, err := f.service.Export(f.ctx, january, FormatCSV)

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(f.exportDir, "highspring-report.csv"), path)
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "Bob Employee,2025-01-06,APPROVED,40.00,40.00")
		assert.Equal(t, toast.Toast{Level: toast.LevelSuccess, Message: "Export downloaded"}, f.notifier.Last())
	})

	t.Run("excel is saved as xlsx", func(t *testing.T) {
		f := setupServiceTest(t, manager)

		path, err := f.service.Export(f.ctx, january, FormatExcel)

		require.NoError(t, err)
		assert.Equal(t, "highspring-report.xlsx", filepath.Base(path))
	})

	t.Run("server failure", func(t *testing.T) {
		f := setupServiceTest(t, manager)

		_, err := f.service.Export(f.ctx, january, Format("docx"))

		require.Error(t, err)
		assert.Equal(t, toast.Toast{Level: toast.LevelError, Message: "format must be csv, excel or pdf"}, f.notifier.Last())
	})
}

func TestService_ExportMonthly(t *testing.T) {
	t.Run("uses the server file name", func(t *testing.T) {
		f := setupServiceTest(t, manager)

		path, err := f.service.ExportMonthly(f.ctx, MonthlyRequest{UserId: test_utils.EmployeeId, Year: 2025, Month: 1})

		require.NoError(t, err)
		assert.Equal(t, "timesheet-bob-employee-2025-01.xlsx", filepath.Base(path))
		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "2025-01-06,ACME,Portal,40.00")
		assert.NotContains(t, string(content), "2025-02-03")
		assert.Equal(t, toast.Toast{Level: toast.LevelSuccess, Message: "Monthly timesheet downloaded"}, f.notifier.Last())
	})

	t.Run("employees default to themselves", func(t *testing.T) {
		f := setupServiceTest(t, employee)

		path, err := f.service.ExportMonthly(f.ctx, MonthlyRequest{Year: 2025, Month: 2})

		require.NoError(t, err)
		assert.Equal(t, "timesheet-bob-employee-2025-02.xlsx", filepath.Base(path))
	})

	t.Run("employees cannot export others", func(t *testing.T) {
		f := setupServiceTest(t, employee)

		_, err := f.service.ExportMonthly(f.ctx, MonthlyRequest{UserId: test_utils.OtherEmployeeId, Year: 2025, Month: 1})

		assert.ErrorIs(t, err, user.ErrInsufficientRole)
		assert.Zero(t, f.backend.Requests(http.MethodGet, "/reports/export-monthly"))
	})

	t.Run("invalid month", func(t *testing.T) {
		f := setupServiceTest(t, manager)

		_, err := f.service.ExportMonthly(f.ctx, MonthlyRequest{UserId: test_utils.EmployeeId, Year: 2025, Month: 13})

		assert.ErrorIs(t, err, validator.ErrInvalid)
	})

	t.Run("server refuses users outside the team", func(t *testing.T) {
		f := setupServiceTest(t, manager)

		_, err := f.service.ExportMonthly(f.ctx, MonthlyRequest{UserId: test_utils.AdminId, Year: 2025, Month: 1})

		require.Error(t, err)
		assert.Equal(t, toast.Toast{Level: toast.LevelError, Message: "Insufficient permissions"}, f.notifier.Last())
	})
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "highspring-report.pdf", FormatPDF.FileName())
	assert.Equal(t, "highspring-report.xlsx", FormatExcel.FileName())
	format, err := ParseFormat("xlsx")
	require.NoError(t, err)
	assert.Equal(t, FormatExcel, format)
	_, err = ParseFormat("docx")
	assert.Error(t, err)
	assert.Equal(t, "timesheet-2025-3.xlsx", MonthlyFileName(2025, 3))
}

func TestFilters_Query(t *testing.T) {
	q := Filters{DateFrom: "2025-01-01", DateTo: "2025-01-31", Status: timesheet.StatusSubmitted, ProjectId: 4}.Query()

	assert.Equal(t, "dateFrom=2025-01-01&dateTo=2025-01-31&projectId=4&status=SUBMITTED", q.Encode())
}
