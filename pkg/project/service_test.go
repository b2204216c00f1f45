package project

import (
	"context"
	"net/http"
	"testing"

	"github.com/highspring/timesheets/internal/event_bus"
	"github.com/highspring/timesheets/internal/rest"
	"github.com/highspring/timesheets/internal/test_utils"
	"github.com/highspring/timesheets/internal/validator"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/toast"
	"github.com/highspring/timesheets/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	admin    = user.AuthUser{UserId: test_utils.AdminId, Role: user.RoleAdmin}
	manager  = user.AuthUser{UserId: test_utils.ManagerId, Role: user.RoleManager}
	employee = user.AuthUser{UserId: test_utils.EmployeeId, Role: user.RoleEmployee}
)

type serviceFixture struct {
	service  *Service
	backend  *test_utils.Backend
	notifier *toast.Recorder
	changes  *[]event_bus.ProjectChanged
	ctx      context.Context
}

func setupServiceTest(t *testing.T, as user.AuthUser) serviceFixture {
	t.Helper()
	backend := test_utils.NewBackend(t, nil)
	bus := event_bus.NewEventBus()
	notifier := toast.NewRecorder()
	service := NewService(NewClient(backend.ClientFor(t, as.UserId)), cache.New(nil, 0), bus, notifier, user.ContextProvider{})

	changes := &[]event_bus.ProjectChanged{}
	event_bus.SubscribeTyped(bus, "project.changed", func(e event_bus.EventT[event_bus.ProjectChanged]) error {
		*changes = append(*changes, e.Data)
		return nil
	})
	return serviceFixture{
		service:  service,
		backend:  backend,
		notifier: notifier,
		changes:  changes,
		ctx:      user.WithUser(context.Background(), as),
	}
}

func ptr[T any](v T) *T {
	return &v
}

func TestService_List(t *testing.T) {
	f := setupServiceTest(t, employee)
	f.backend.SeedTimesheet(test_utils.EmployeeId, "2025-01-06", "DRAFT", test_utils.SeedEntry{
		ProjectId: test_utils.ActiveProjectId, Hours: []float64{8, 8, 8, 8, 8},
	})

	projects, err := f.service.List(f.ctx)

	require.NoError(t, err)
	require.Len(t, projects, 3)
	acme := projects[0]
	assert.Equal(t, "ACME Acme portal", acme.Label())
	assert.Equal(t, 40.0, acme.UsedHours)
	assert.Equal(t, 10, acme.BudgetUsage())
	require.Len(t, acme.Managers, 1)
	assert.Equal(t, "Mia Manager", acme.Managers[0].Manager.Name)
	assert.Equal(t, 0, projects[1].BudgetUsage())
}

func TestService_Selectable(t *testing.T) {
	f := setupServiceTest(t, employee)

	projects, err := f.service.Selectable(f.ctx)

	require.NoError(t, err)
	codes := make([]string, 0, len(projects))
	for _, p := range projects {
		codes = append(codes, p.Code)
	}
	assert.Equal(t, []string{"ACME", "INT"}, codes)
	assert.Equal(t, 1, f.backend.Requests(http.MethodGet, "/projects"))
}

func TestService_Lookup(t *testing.T) {
	f := setupServiceTest(t, employee)

	p, err := f.service.FindByCode(f.ctx, "int")
	require.NoError(t, err)
	assert.Equal(t, test_utils.InternalProjectId, p.Id)

	p, err = f.service.Get(f.ctx, test_utils.InactiveProjectId)
	require.NoError(t, err)
	assert.False(t, p.Selectable())

	_, err = f.service.FindByCode(f.ctx, "NOPE")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	_, err = f.service.Get(f.ctx, 999)
	assert.ErrorIs(t, err, ErrProjectNotFound)
	assert.Equal(t, 1, f.backend.Requests(http.MethodGet, "/projects"))
}

func TestService_Create(t *testing.T) {
	t.Run("manager creates a project", func(t *testing.T) {
		f := setupServiceTest(t, manager)
		_, err := f.service.List(f.ctx)
		require.NoError(t, err)

		created, err := f.service.Create(f.ctx, CreateRequest{Code: "NEW", Name: "New build", Client: "Initech", BudgetHours: 120})

		require.NoError(t, err)
		assert.Equal(t, StatusActive, created.Status)
		assert.Equal(t, []event_bus.ProjectChanged{{ProjectId: created.Id, Action: "created"}}, *f.changes)
		projects, err := f.service.List(f.ctx)
		require.NoError(t, err)
		assert.Len(t, projects, 4)
	})

	t.Run("duplicate code", func(t *testing.T) {
		f := setupServiceTest(t, manager)

		_, err := f.service.Create(f.ctx, CreateRequest{Code: "ACME", Name: "Again", Client: "Acme"})

		assert.True(t, rest.IsConflict(err))
		assert.Equal(t, toast.Toast{Level: toast.LevelError, Message: "Project code already in use"}, f.notifier.Last())
	})

	t.Run("missing client", func(t *testing.T) {
		f := setupServiceTest(t, manager)

		_, err := f.service.Create(f.ctx, CreateRequest{Code: "NEW", Name: "New build"})

		assert.ErrorIs(t, err, validator.ErrInvalid)
		assert.Zero(t, f.backend.Requests(http.MethodPost, "/projects"))
	})

	t.Run("employees cannot manage projects", func(t *testing.T) {
		f := setupServiceTest(t, employee)

		_, err := f.service.Create(f.ctx, CreateRequest{Code: "NEW", Name: "New build", Client: "Initech"})

		assert.ErrorIs(t, err, user.ErrInsufficientRole)
	})
}

func TestService_Update(t *testing.T) {
	f := setupServiceTest(t, manager)

	updated, err := f.service.Update(f.ctx, test_utils.InternalProjectId, UpdateRequest{Status: ptr(StatusInactive)})

	require.NoError(t, err)
	assert.Equal(t, StatusInactive, updated.Status)
	assert.Equal(t, "Internal", updated.Name)
	selectable, err := f.service.Selectable(f.ctx)
	require.NoError(t, err)
	assert.Len(t, selectable, 1)
	assert.Equal(t, toast.Toast{Level: toast.LevelSuccess, Message: "Project updated"}, f.notifier.Last())
}

func TestService_Delete(t *testing.T) {
	t.Run("unused project", func(t *testing.T) {
		f := setupServiceTest(t, admin)

		require.NoError(t, f.service.Delete(f.ctx, test_utils.InactiveProjectId))

		projects, err := f.service.List(f.ctx)
		require.NoError(t, err)
		assert.Len(t, projects, 2)
		assert.Equal(t, []event_bus.ProjectChanged{{ProjectId: test_utils.InactiveProjectId, Action: "deleted"}}, *f.changes)
	})

	t.Run("project with logged hours", func(t *testing.T) {
		f := setupServiceTest(t, admin)
		f.backend.SeedTimesheet(test_utils.EmployeeId, "2025-01-06", "DRAFT", test_utils.SeedEntry{
			ProjectId: test_utils.ActiveProjectId, Hours: []float64{1},
		})

		err := f.service.Delete(f.ctx, test_utils.ActiveProjectId)

		assert.True(t, rest.IsConflict(err))
		assert.Equal(t, toast.Toast{Level: toast.LevelError, Message: "Project has logged hours"}, f.notifier.Last())
		assert.Empty(t, *f.changes)
	})

	t.Run("server refuses managers", func(t *testing.T) {
		f := setupServiceTest(t, manager)

		err := f.service.Delete(f.ctx, test_utils.InactiveProjectId)

		assert.Equal(t, http.StatusForbidden, rest.StatusCode(err))
		assert.Equal(t, toast.Toast{Level: toast.LevelError, Message: "Insufficient permissions"}, f.notifier.Last())
	})
}
