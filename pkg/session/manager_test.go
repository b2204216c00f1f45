package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/highspring/timesheets/internal/event_bus"
	"github.com/highspring/timesheets/internal/rest"
	"github.com/highspring/timesheets/internal/test_utils"
	"github.com/highspring/timesheets/internal/utils"
	"github.com/highspring/timesheets/internal/validator"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/user"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

type sessionFixture struct {
	backend *test_utils.Backend
	clock   *utils.MockClock
	bus     *event_bus.EventBus
	auth    *HTTPAuthenticator
	manager *Manager
	api     *rest.Client
}

func setupSessionTest(t *testing.T) sessionFixture {
	t.Helper()
	clock := utils.NewMockClock(time.Date(2025, time.January, 15, 9, 0, 0, 0, time.UTC))
	backend := test_utils.NewBackend(t, clock)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	authApi, err := rest.NewClient(backend.URL, &http.Client{Jar: jar})
	require.NoError(t, err)

	bus := event_bus.NewEventBus()
	auth := NewHTTPAuthenticator(authApi)
	manager := NewManager(auth, bus, clock)
	api, err := rest.NewClient(backend.URL, NewClient(manager, nil))
	require.NoError(t, err)

	return sessionFixture{backend: backend, clock: clock, bus: bus, auth: auth, manager: manager, api: api}
}

func (f sessionFixture) login(t *testing.T) {
	t.Helper()
	_, err := f.manager.Login(ctx, "bob@highspring.test", test_utils.DefaultPassword)
	require.NoError(t, err)
}

func listProjects(api *rest.Client) error {
	var projects []map[string]any
	_, err := api.GetPage(ctx, "/projects", nil, &projects)
	return err
}

// concurrently runs n requests and returns their errors.
func concurrently(n int, request func() error) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := range n {
		go func() {
			defer wg.Done()
			errs[i] = request()
		}()
	}
	wg.Wait()
	return errs
}

func TestManager_Login(t *testing.T) {
	t.Run("stores identity and announces the session", func(t *testing.T) {
		f := setupSessionTest(t)
		var announced []event_bus.SessionAuthenticated
		event_bus.SubscribeTyped(f.bus, "session.authenticated", func(e event_bus.EventT[event_bus.SessionAuthenticated]) error {
			announced = append(announced, e.Data)
			return nil
		})

		u, err := f.manager.Login(ctx, "bob@highspring.test", test_utils.DefaultPassword)

		require.NoError(t, err)
		assert.Equal(t, test_utils.EmployeeId, u.UserId)
		assert.Equal(t, user.RoleEmployee, u.Role)
		assert.True(t, f.manager.Authenticated())
		current, err := f.manager.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Bob Employee", current.Name)
		assert.Equal(t, []event_bus.SessionAuthenticated{{UserId: test_utils.EmployeeId, Role: "EMPLOYEE"}}, announced)
		assert.NoError(t, listProjects(f.api))
	})

	t.Run("wrong password", func(t *testing.T) {
		f := setupSessionTest(t)

		_, err := f.manager.Login(ctx, "bob@highspring.test", "nope")

		require.Error(t, err)
		assert.True(t, rest.IsUnauthorized(err))
		assert.Equal(t, "Invalid email or password", rest.MessageOf(err, ""))
		assert.False(t, f.manager.Authenticated())
	})

	t.Run("invalid input is rejected before any request", func(t *testing.T) {
		f := setupSessionTest(t)

		_, err := f.manager.Login(ctx, "not-an-email", "")

		assert.ErrorIs(t, err, validator.ErrInvalid)
		assert.Zero(t, f.backend.Requests(http.MethodPost, "/auth/login"))
	})
}

func TestManager_Register(t *testing.T) {
	f := setupSessionTest(t)
	req := RegisterRequest{OrganisationName: "Initech", Name: "Peter", Email: "peter@initech.test", Password: "tps-report"}

	u, err := f.manager.Register(ctx, req)

	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, u.Role)
	assert.True(t, f.manager.Authenticated())

	_, err = f.manager.Register(ctx, req)
	assert.True(t, rest.IsConflict(err))

	_, err = f.manager.Register(ctx, RegisterRequest{OrganisationName: "X", Name: "Y", Email: "y@x.test", Password: "short"})
	assert.ErrorIs(t, err, validator.ErrInvalid)
}

func TestManager_Unauthenticated(t *testing.T) {
	f := setupSessionTest(t)

	err := listProjects(f.api)

	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.Zero(t, f.backend.Requests(http.MethodGet, "/projects"))
	_, err = f.manager.CurrentUser(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestTransport_RefreshesOnceForConcurrentUnauthorized(t *testing.T) {
	f := setupSessionTest(t)
	f.login(t)
	f.backend.RevokeAccessTokens()
	f.backend.SetRefreshDelay(100 * time.Millisecond)

	errs := concurrently(10, func() error { return listProjects(f.api) })

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, f.backend.RefreshCalls())
	assert.True(t, f.manager.Authenticated())
	// every request was answered, either on the first try or on its single retry
	assert.LessOrEqual(t, f.backend.Requests(http.MethodGet, "/projects"), 20)
	assert.GreaterOrEqual(t, f.backend.Requests(http.MethodGet, "/projects"), 10)
}

func TestTransport_RefreshFailure(t *testing.T) {
	f := setupSessionTest(t)
	f.login(t)
	c := cache.New(f.clock, 0)
	c.ClearOn(f.bus, "session.invalidated")
	c.Set(cache.K("timesheets", 12), "cached")
	var invalidations atomic.Int32
	event_bus.SubscribeTyped(f.bus, "session.invalidated", func(e event_bus.EventT[event_bus.SessionInvalidated]) error {
		invalidations.Add(1)
		assert.Equal(t, "refresh failed", e.Data.Reason)
		return nil
	})
	f.backend.RevokeAccessTokens()
	f.backend.SetFailRefresh(true)
	f.backend.SetRefreshDelay(50 * time.Millisecond)

	errs := concurrently(8, func() error { return listProjects(f.api) })

	for _, err := range errs {
		assert.ErrorIs(t, err, ErrSessionExpired)
	}
	assert.Equal(t, 1, f.backend.RefreshCalls())
	assert.Equal(t, int32(1), invalidations.Load())
	assert.False(t, f.manager.Authenticated())
	assert.Zero(t, c.Len())

	assert.ErrorIs(t, listProjects(f.api), ErrNotAuthenticated)
	assert.Equal(t, 1, f.backend.RefreshCalls())
}

func TestTransport_RetriesWithRequestBody(t *testing.T) {
	f := setupSessionTest(t)
	f.login(t)
	f.backend.RevokeAccessTokens()

	var created map[string]any
	err := f.api.Post(ctx, "/timesheets", map[string]string{"weekStartDate": "2025-01-13", "weekEndDate": "2025-01-19"}, &created)

	require.NoError(t, err)
	assert.Equal(t, "2025-01-13T00:00:00.000Z", created["weekStartDate"])
	assert.Equal(t, 1, f.backend.RefreshCalls())
	assert.Equal(t, 1, f.backend.TimesheetCount(test_utils.EmployeeId, "2025-01-13"))
}

func TestTransport_RefreshesExpiredTokenBeforeSending(t *testing.T) {
	f := setupSessionTest(t)
	f.backend.SetTokenTTL(time.Minute)
	f.login(t)
	f.clock.Advance(2 * time.Minute)

	require.NoError(t, listProjects(f.api))

	assert.Equal(t, 1, f.backend.RefreshCalls())
	assert.Equal(t, 1, f.backend.Requests(http.MethodGet, "/projects"))
}

func TestManager_Bootstrap(t *testing.T) {
	t.Run("restores from the refresh cookie", func(t *testing.T) {
		f := setupSessionTest(t)
		f.login(t)

		restarted := NewManager(f.auth, f.bus, f.clock)

		assert.True(t, restarted.Bootstrap(ctx))
		current, err := restarted.CurrentUser(ctx)
		require.NoError(t, err)
		assert.Equal(t, test_utils.EmployeeId, current.UserId)
	})

	t.Run("stays signed out without a cookie", func(t *testing.T) {
		f := setupSessionTest(t)

		assert.False(t, f.manager.Bootstrap(ctx))
		assert.False(t, f.manager.Authenticated())
	})
}

func TestManager_Logout(t *testing.T) {
	f := setupSessionTest(t)
	f.login(t)
	var reasons []string
	event_bus.SubscribeTyped(f.bus, "session.invalidated", func(e event_bus.EventT[event_bus.SessionInvalidated]) error {
		reasons = append(reasons, e.Data.Reason)
		return nil
	})

	require.NoError(t, f.manager.Logout(ctx))

	assert.False(t, f.manager.Authenticated())
	assert.Zero(t, f.backend.ActiveRefreshTokens())
	assert.Equal(t, []string{"logout"}, reasons)
	assert.False(t, f.manager.Bootstrap(ctx))
}

func TestManager_Token(t *testing.T) {
	f := setupSessionTest(t)

	_, err := f.manager.Token()
	assert.True(t, errors.Is(err, ErrNotAuthenticated))

	f.login(t)
	token, err := f.manager.Token()
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.Type())
	assert.WithinDuration(t, f.clock.Now().Add(15*time.Minute), token.Expiry, time.Second)
}
