package approval

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/highspring/timesheets/internal/event_bus"
	"github.com/highspring/timesheets/internal/rest"
	"github.com/highspring/timesheets/internal/test_utils"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/timesheet"
	"github.com/highspring/timesheets/pkg/toast"
	"github.com/highspring/timesheets/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type serviceFixture struct {
	service  *Service
	backend  *test_utils.Backend
	notifier *toast.Recorder
	reviews  *[]event_bus.TimesheetReviewed
	ctx      context.Context
}

var manager = user.AuthUser{UserId: test_utils.ManagerId, Role: user.RoleManager, Name: "Mia Manager"}

func setupServiceTest(t *testing.T, as user.AuthUser) serviceFixture {
	t.Helper()
	backend := test_utils.NewBackend(t, nil)
	bus := event_bus.NewEventBus()
	notifier := toast.NewRecorder()
	service := NewService(NewClient(backend.ClientFor(t, as.UserId)), cache.New(nil, 0), bus, notifier, user.ContextProvider{})

	reviews := &[]event_bus.TimesheetReviewed{}
	event_bus.SubscribeTyped(bus, "timesheet.reviewed", func(e event_bus.EventT[event_bus.TimesheetReviewed]) error {
		*reviews = append(*reviews, e.Data)
		return nil
	})
	return serviceFixture{
		service:  service,
		backend:  backend,
		notifier: notifier,
		reviews:  reviews,
		ctx:      user.WithUser(context.Background(), as),
	}
}

func submitted(f serviceFixture, userId int, week string) int {
	return f.backend.SeedTimesheet(userId, week, "SUBMITTED", test_utils.SeedEntry{
		ProjectId: test_utils.ActiveProjectId,
		Billable:  true,
		Hours:     []float64{8, 8, 8, 8, 8},
	})
}

func TestService_List(t *testing.T) {
	f := setupServiceTest(t, manager)
	pending := submitted(f, test_utils.EmployeeId, "2025-01-06")
	f.backend.SeedTimesheet(test_utils.OtherEmployeeId, "2025-01-06", "DRAFT")
	f.backend.SeedTimesheet(test_utils.EmployeeId, "2024-12-30", "APPROVED")
	// the manager's own submission is reviewed by their manager
	submitted(f, test_utils.ManagerId, "2025-01-06")

	page, err := f.service.List(f.ctx, 0, 0)

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, pending, page.Items[0].Id)
	assert.Equal(t, timesheet.StatusSubmitted, page.Items[0].Status)
	require.NotNil(t, page.Items[0].User)
	assert.Equal(t, "Bob Employee", page.Items[0].User.Name)
	assert.Equal(t, rest.PageMeta{Total: 1, Page: 1, Limit: 10}, page.Meta)
}

func TestService_Stats(t *testing.T) {
	f := setupServiceTest(t, manager)
	submitted(f, test_utils.EmployeeId, "2025-01-06")
	submitted(f, test_utils.OtherEmployeeId, "2025-01-06")

	stats, err := f.service.Stats(f.ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, stats.PendingCount)
	assert.Equal(t, 2, stats.TeamMembers)
}

func TestService_Approve(t *testing.T) {
	t.Run("approves and refreshes the queue", func(t *testing.T) {
		f := setupServiceTest(t, manager)
		id := submitted(f, test_utils.EmployeeId, "2025-01-06")
		before, err := f.service.List(f.ctx, 1, 10)
		require.NoError(t, err)
		require.Len(t, before.Items, 1)

		ts, err := f.service.Approve(f.ctx, id)

		require.NoError(t, err)
		assert.Equal(t, timesheet.StatusApproved, ts.Status)
		require.NotNil(t, ts.ApprovedById)
		assert.Equal(t, test_utils.ManagerId, *ts.ApprovedById)
		assert.Equal(t, "APPROVED", f.backend.TimesheetStatus(id))
		assert.Equal(t, toast.Toast{Level: toast.LevelSuccess, Message: "Timesheet approved"}, f.notifier.Last())
		assert.Equal(t, []event_bus.TimesheetReviewed{{TimesheetId: id, Status: "APPROVED"}}, *f.reviews)

		after, err := f.service.List(f.ctx, 1, 10)
		require.NoError(t, err)
		assert.Empty(t, after.Items)
	})

	t.Run("server rejection leaves the state unchanged", func(t *testing.T) {
		f := setupServiceTest(t, manager)
		id := f.backend.SeedTimesheet(test_utils.EmployeeId, "2025-01-06", "DRAFT")

		_, err := f.service.Approve(f.ctx, id)

		require.Error(t, err)
		assert.Equal(t, http.StatusBadRequest, rest.StatusCode(err))
		assert.Equal(t, "DRAFT", f.backend.TimesheetStatus(id))
		assert.Equal(t, toast.Toast{Level: toast.LevelError, Message: "Cannot review a DRAFT timesheet"}, f.notifier.Last())
		assert.Empty(t, *f.reviews)
	})

	t.Run("employees cannot approve", func(t *testing.T) {
		f := setupServiceTest(t, user.AuthUser{UserId: test_utils.OtherEmployeeId, Role: user.RoleEmployee})
		id := submitted(f, test_utils.EmployeeId, "2025-01-06")

		_, err := f.service.Approve(f.ctx, id)

		assert.ErrorIs(t, err, user.ErrInsufficientRole)
		assert.Zero(t, f.backend.Requests(http.MethodPost, fmt.Sprintf("/approvals/%d/approve", id)))
		assert.Equal(t, toast.LevelWarning, f.notifier.Last().Level)
	})
}

func TestService_Reject(t *testing.T) {
	t.Run("requires a reason", func(t *testing.T) {
		f := setupServiceTest(t, manager)
		id := submitted(f, test_utils.EmployeeId, "2025-01-06")

		_, err := f.service.Reject(f.ctx, id, "   ")

		assert.ErrorIs(t, err, ErrReasonRequired)
		assert.Zero(t, f.backend.Requests(http.MethodPost, fmt.Sprintf("/approvals/%d/reject", id)))
		assert.Equal(t, "SUBMITTED", f.backend.TimesheetStatus(id))
		assert.Equal(t, toast.LevelWarning, f.notifier.Last().Level)
	})

	t.Run("returns the timesheet to its owner", func(t *testing.T) {
		f := setupServiceTest(t, manager)
		id := submitted(f, test_utils.EmployeeId, "2025-01-06")

		ts, err := f.service.Reject(f.ctx, id, " Missing Friday notes ")

		require.NoError(t, err)
		assert.Equal(t, timesheet.StatusRejected, ts.Status)
		assert.Equal(t, "Missing Friday notes", ts.RejectedReason)
		assert.True(t, ts.Status.Editable())
		assert.Equal(t, toast.Toast{Level: toast.LevelInfo, Message: "Timesheet rejected"}, f.notifier.Last())
		assert.Equal(t, []event_bus.TimesheetReviewed{{TimesheetId: id, Status: "REJECTED", Reason: "Missing Friday notes"}}, *f.reviews)
	})
}
