package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/highspring/timesheets/internal/config"
	"github.com/highspring/timesheets/internal/event_bus"
	"github.com/highspring/timesheets/internal/rest"
	"github.com/highspring/timesheets/internal/utils"
	"github.com/highspring/timesheets/pkg/approval"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/calendar"
	"github.com/highspring/timesheets/pkg/notification"
	"github.com/highspring/timesheets/pkg/project"
	"github.com/highspring/timesheets/pkg/report"
	"github.com/highspring/timesheets/pkg/session"
	"github.com/highspring/timesheets/pkg/settings"
	"github.com/highspring/timesheets/pkg/timesheet"
	"github.com/highspring/timesheets/pkg/user"
	log "github.com/sirupsen/logrus"
)

// defaultWeekStart applies until the organization settings are loaded.
const defaultWeekStart = time.Monday

// Dependencies holds every service of a running client.
type Dependencies struct {
	Clock    utils.Clock
	Bus      *event_bus.EventBus
	Cache    *cache.Cache
	Notifier *countingNotifier
	Session  *session.Manager
	Api      *rest.Client

	SettingsService     *settings.Service
	ProjectService      *project.Service
	UserService         user.Service
	CalendarService     *calendar.Service
	TimesheetService    *timesheet.Service
	ApprovalService     *approval.Service
	NotificationService *notification.Service
	ReportService       *report.Service

	Navigator *timesheet.Navigator
}

// BuildDependencies wires the session, the REST clients and all services on one
// event bus. Toasts are written to out.
func BuildDependencies(cfg config.Application, clock utils.Clock, out io.Writer) (*Dependencies, error) {
	deps := &Dependencies{
		Clock:    clock,
		Bus:      event_bus.NewEventBus(),
		Cache:    cache.New(clock, 0),
		Notifier: newCountingNotifier(out),
	}

	base := &RequestIdTransport{}

	// auth endpoints keep the refresh cookie in the jar and bypass the refresh transport
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	authApi, err := rest.NewClient(cfg.Api.BaseUrl, &http.Client{Jar: jar, Transport: base, Timeout: cfg.Api.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create auth client: %w", err)
	}
	deps.Session = session.NewManager(session.NewHTTPAuthenticator(authApi), deps.Bus, clock)

	httpClient := session.NewClient(deps.Session, base)
	httpClient.Timeout = cfg.Api.Timeout
	deps.Api, err = rest.NewClient(cfg.Api.BaseUrl, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create api client: %w", err)
	}

	// nothing fetched under one identity may be served to the next
	deps.Cache.ClearOn(deps.Bus, "session.invalidated")
	deps.Cache.ClearOn(deps.Bus, "session.authenticated")
	notificationCache := cache.New(clock, notification.RefreshInterval)
	notificationCache.ClearOn(deps.Bus, "session.invalidated")
	notificationCache.ClearOn(deps.Bus, "session.authenticated")

	deps.SettingsService = settings.NewService(settings.NewClient(deps.Api), deps.Cache, deps.Notifier, deps.Session)
	deps.ProjectService = project.NewService(project.NewClient(deps.Api), deps.Cache, deps.Bus, deps.Notifier, deps.Session)
	deps.UserService = user.NewService(user.NewClient(deps.Api), deps.Cache, deps.Bus, deps.Notifier, deps.Session)
	deps.CalendarService = calendar.NewService(calendar.NewClient(deps.Api), deps.Cache, deps.Notifier, deps.Session)
	deps.TimesheetService = timesheet.NewService(
		timesheet.NewClient(deps.Api),
		deps.Cache,
		deps.Bus,
		deps.Notifier,
		deps.SettingsService,
		deps.ProjectService,
		clock,
	)
	deps.ApprovalService = approval.NewService(approval.NewClient(deps.Api), deps.Cache, deps.Bus, deps.Notifier, deps.Session)
	deps.NotificationService = notification.NewService(notification.NewClient(deps.Api), notificationCache, deps.Bus, deps.Notifier)
	deps.ReportService = report.NewService(report.NewClient(deps.Api), deps.Cache, deps.Notifier, deps.Session, cfg.Export.Dir)

	deps.Navigator = timesheet.NewNavigator(deps.TimesheetService, calendar.WeekOf(clock.Now(), defaultWeekStart))
	deps.subscribeNavigator()

	return deps, nil
}

// subscribeNavigator keeps the selected week's timesheet in step with mutations
// and moves to the current week once the organization's week start is known.
func (d *Dependencies) subscribeNavigator() {
	reset := func(event_bus.Event) error {
		d.Navigator.Reset()
		return nil
	}
	d.Bus.Subscribe("timesheet.changed", reset)
	d.Bus.Subscribe("timesheet.reviewed", reset)
	d.Bus.Subscribe("session.invalidated", reset)
	d.Bus.Subscribe("session.authenticated", func(e event_bus.Event) error {
		week := d.TimesheetService.CurrentWeek(e.Context())
		log.Debugf("selecting current week %s", week)
		d.Navigator.Select(week)
		return nil
	})
}

// HoursFormat is the display format of the organization, or the configured one
// while signed out.
func (d *Dependencies) HoursFormat(ctx context.Context, fallback string) timesheet.Format {
	if !d.Session.Authenticated() {
		return timesheet.ParseFormat(fallback)
	}
	return timesheet.ParseFormat(d.SettingsService.Effective(ctx).TimeFormat)
}
