package notification

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/highspring/timesheets/internal/event_bus"
	"github.com/highspring/timesheets/internal/test_utils"
	"github.com/highspring/timesheets/internal/utils"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/toast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

type serviceFixture struct {
	service  *Service
	backend  *test_utils.Backend
	clock    *utils.MockClock
	bus      *event_bus.EventBus
	notifier *toast.Recorder
}

func setupServiceTest(t *testing.T) serviceFixture {
	t.Helper()
	backend := test_utils.NewBackend(t, nil)
	clock := utils.NewMockClock(time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC))
	bus := event_bus.NewEventBus()
	notifier := toast.NewRecorder()
	c := cache.New(clock, RefreshInterval)
	service := NewService(NewClient(backend.ClientFor(t, test_utils.ManagerId)), c, bus, notifier)
	return serviceFixture{service: service, backend: backend, clock: clock, bus: bus, notifier: notifier}
}

// submitAs makes userId submit a filled timesheet, which notifies their manager.
func (f serviceFixture) submitAs(t *testing.T, userId int, week string) {
	t.Helper()
	id := f.backend.SeedTimesheet(userId, week, "DRAFT", test_utils.SeedEntry{ProjectId: test_utils.ActiveProjectId, Hours: []float64{8}})
	require.NoError(t, f.backend.ClientFor(t, userId).Post(ctx, fmt.Sprintf("/timesheets/%d/submit", id), nil, nil))
}

func TestService_List(t *testing.T) {
	f := setupServiceTest(t)
	f.submitAs(t, test_utils.EmployeeId, "2025-01-06")

	count, preview, err := f.service.Unread(ctx)

	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, preview, 1)
	assert.Equal(t, "TIMESHEET_SUBMITTED", preview[0].Type)
	assert.Equal(t, "Bob Employee submitted a timesheet for 2025-01-06", preview[0].Message)
	assert.False(t, preview[0].Read)
}

func TestService_ReloadsAfterRefreshInterval(t *testing.T) {
	f := setupServiceTest(t)
	f.submitAs(t, test_utils.EmployeeId, "2025-01-06")
	first, err := f.service.List(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	f.submitAs(t, test_utils.OtherEmployeeId, "2025-01-06")
	cached, err := f.service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	f.clock.Advance(RefreshInterval + time.Second)
	reloaded, err := f.service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, reloaded, 2)
}

func TestService_MarkRead(t *testing.T) {
	f := setupServiceTest(t)
	f.submitAs(t, test_utils.EmployeeId, "2025-01-06")
	f.submitAs(t, test_utils.OtherEmployeeId, "2025-01-06")
	all, err := f.service.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	require.NoError(t, f.service.MarkRead(ctx, all[0].Id))
	count, _, err := f.service.Unread(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, f.service.MarkAllRead(ctx))
	count, _, err = f.service.Unread(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, toast.Toast{Level: toast.LevelInfo, Message: "All notifications marked as read"}, f.notifier.Last())
}

func TestService_MarkReadUnknown(t *testing.T) {
	f := setupServiceTest(t)

	err := f.service.MarkRead(ctx, 9999)

	require.Error(t, err)
	assert.Equal(t, toast.Toast{Level: toast.LevelError, Message: "Notification not found"}, f.notifier.Last())
}

func TestService_InvalidatedByReviews(t *testing.T) {
	f := setupServiceTest(t)
	_, err := f.service.List(ctx)
	require.NoError(t, err)
	f.submitAs(t, test_utils.EmployeeId, "2025-01-06")

	require.NoError(t, f.bus.Publish(event_bus.NewEvent(ctx, "timesheet.reviewed", event_bus.TimesheetReviewed{TimesheetId: 1})))

	all, err := f.service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUnreadCount(t *testing.T) {
	assert.Equal(t, 2, UnreadCount([]Notification{{Read: false}, {Read: true}, {Read: false}}))
	assert.Zero(t, UnreadCount(nil))
}
