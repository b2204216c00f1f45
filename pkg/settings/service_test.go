package settings

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/highspring/timesheets/internal/test_utils"
	"github.com/highspring/timesheets/internal/validator"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/toast"
	"github.com/highspring/timesheets/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	service  *Service
	backend  *test_utils.Backend
	notifier *toast.Recorder
	ctx      context.Context
}

func setupServiceTest(t *testing.T, as user.AuthUser) serviceFixture {
	t.Helper()
	backend := test_utils.NewBackend(t, nil)
	notifier := toast.NewRecorder()
	service := NewService(NewClient(backend.ClientFor(t, as.UserId)), cache.New(nil, 0), notifier, user.ContextProvider{})
	return serviceFixture{
		service:  service,
		backend:  backend,
		notifier: notifier,
		ctx:      user.WithUser(context.Background(), as),
	}
}

var admin = user.AuthUser{UserId: test_utils.AdminId, Role: user.RoleAdmin}

func ptr[T any](v T) *T {
	return &v
}

func TestService_Get(t *testing.T) {
	f := setupServiceTest(t, user.AuthUser{UserId: test_utils.EmployeeId, Role: user.RoleEmployee})
	f.backend.SetSetting("workWeekStart", "sunday")
	f.backend.SetSetting("enableOvertime", true)

	s, err := f.service.Get(f.ctx)
	require.NoError(t, err)
	_, err = f.service.Get(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, time.Sunday, s.WeekStartDay())
	assert.True(t, s.EnableOvertime)
	assert.Equal(t, 8.0, s.StandardHours)
	assert.Equal(t, 1, f.backend.Requests(http.MethodGet, "/settings"))
}

func TestService_Update(t *testing.T) {
	t.Run("admin merges changes", func(t *testing.T) {
		f := setupServiceTest(t, admin)
		_, err := f.service.Get(f.ctx)
		require.NoError(t, err)

		updated, err := f.service.Update(f.ctx, UpdateRequest{MaxHoursPerDay: ptr(10.0), TimeFormat: ptr("hhmm")})

		require.NoError(t, err)
		assert.Equal(t, 10.0, updated.DayLimit())
		assert.Equal(t, "hhmm", updated.TimeFormat)
		assert.True(t, updated.AllowCopyWeek)
		assert.Equal(t, toast.Toast{Level: toast.LevelSuccess, Message: "Settings saved"}, f.notifier.Last())

		reloaded, err := f.service.Get(f.ctx)
		require.NoError(t, err)
		assert.Equal(t, "hhmm", reloaded.TimeFormat)
		assert.Equal(t, 2, f.backend.Requests(http.MethodGet, "/settings"))
	})

	t.Run("out of range values", func(t *testing.T) {
		f := setupServiceTest(t, admin)

		_, err := f.service.Update(f.ctx, UpdateRequest{TimeIncrement: ptr(20), DailyReminderTime: ptr("25:00")})

		assert.ErrorIs(t, err, validator.ErrInvalid)
		assert.Zero(t, f.backend.Requests(http.MethodPut, "/settings"))
	})

	t.Run("managers cannot configure", func(t *testing.T) {
		f := setupServiceTest(t, user.AuthUser{UserId: test_utils.ManagerId, Role: user.RoleManager})

		_, err := f.service.Update(f.ctx, UpdateRequest{AllowCopyWeek: ptr(false)})

		assert.ErrorIs(t, err, user.ErrInsufficientRole)
		assert.Equal(t, toast.LevelWarning, f.notifier.Last().Level)
	})
}

func TestService_Effective(t *testing.T) {
	f := setupServiceTest(t, admin)
	f.backend.Server.Close()

	assert.Equal(t, Defaults(), f.service.Effective(f.ctx))
}

func TestOrgSettings_Limits(t *testing.T) {
	tests := []struct {
		name      string
		settings  OrgSettings
		dayLimit  float64
		weekLimit float64
		weekStart time.Weekday
	}{
		{"defaults", Defaults(), 24, 168, time.Monday},
		{"unbounded", OrgSettings{MaxHoursPerDay: 0, MaxHoursPerWeek: -1, WorkWeekStart: "sunday"}, 0, 0, time.Sunday},
		{"unknown start day", OrgSettings{MaxHoursPerDay: 10, MaxHoursPerWeek: 50, WorkWeekStart: "friday-ish"}, 10, 50, time.Monday},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.dayLimit, tt.settings.DayLimit())
			assert.Equal(t, tt.weekLimit, tt.settings.WeekLimit())
			assert.Equal(t, tt.weekStart, tt.settings.WeekStartDay())
		})
	}
}
