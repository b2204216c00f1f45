package timesheet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/highspring/timesheets/internal/event_bus"
	"github.com/highspring/timesheets/internal/rest"
	"github.com/highspring/timesheets/internal/utils"
	"github.com/highspring/timesheets/internal/validator"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/calendar"
	"github.com/highspring/timesheets/pkg/project"
	"github.com/highspring/timesheets/pkg/settings"
	"github.com/highspring/timesheets/pkg/toast"
	log "github.com/sirupsen/logrus"
)

var (
	ErrHoursOutOfRange     = errors.New("hours out of range")
	ErrBackdated           = errors.New("timesheets for past weeks are not allowed")
	ErrCopyWeekDisabled    = errors.New("copying the previous week is disabled")
	ErrDescriptionRequired = errors.New("a description is required")
	ErrProjectInactive     = errors.New("project is not active")
	ErrEntryNotFound       = errors.New("entry not found")
)

// ResolvePageSize is the page size used when searching the user's timesheets for a week.
const ResolvePageSize = 50

var (
	timesheetsKey = cache.K("timesheets")
	approvalsKey  = cache.K("approvals")
	reportsKey    = cache.K("reports")
)

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(ctx context.Context, prompt string) bool

type SettingsReader interface {
	Effective(ctx context.Context) settings.OrgSettings
}

type ProjectReader interface {
	Get(ctx context.Context, id int) (project.Project, error)
}

type Service struct {
	client   Client
	cache    *cache.Cache
	bus      *event_bus.EventBus
	notifier toast.Notifier
	settings SettingsReader
	projects ProjectReader
	clock    utils.Clock
}

func NewService(
	client Client,
	c *cache.Cache,
	bus *event_bus.EventBus,
	notifier toast.Notifier,
	orgSettings SettingsReader,
	projects ProjectReader,
	clock utils.Clock,
) *Service {
	s := &Service{
		client:   client,
		cache:    c,
		bus:      bus,
		notifier: notifier,
		settings: orgSettings,
		projects: projects,
		clock:    clock,
	}
	c.InvalidateOn(bus, "timesheet.changed", timesheetsKey, approvalsKey, reportsKey)
	c.InvalidateOn(bus, "timesheet.reviewed", timesheetsKey, approvalsKey, reportsKey)
	return s
}

func (s *Service) List(ctx context.Context, page, limit int) (rest.Page[Timesheet], error) {
	return cache.Fetch(ctx, s.cache, cache.K("timesheets", "list", page, limit), func(ctx context.Context) (rest.Page[Timesheet], error) {
		return s.client.List(ctx, page, limit)
	})
}

func (s *Service) Get(ctx context.Context, id int) (Timesheet, error) {
	return cache.Fetch(ctx, s.cache, cache.K("timesheets", id), func(ctx context.Context) (Timesheet, error) {
		return s.client.Get(ctx, id)
	})
}

func (s *Service) Entries(ctx context.Context, id int) ([]TimeEntry, error) {
	return cache.Fetch(ctx, s.cache, cache.K("timesheets", id, "entries"), func(ctx context.Context) ([]TimeEntry, error) {
		return s.client.Entries(ctx, id)
	})
}

// ResolveWeek finds the current user's timesheet for week, or nil when none exists.
// The first timesheet whose start date begins with the week's start date wins.
func (s *Service) ResolveWeek(ctx context.Context, week calendar.Week) (*Timesheet, error) {
	for page := 1; ; page++ {
		result, err := s.List(ctx, page, ResolvePageSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list timesheets: %w", err)
		}
		for _, ts := range result.Items {
			if ts.StartsOn(week) {
				full, err := s.Get(ctx, ts.Id)
				if err != nil {
					return nil, fmt.Errorf("failed to get timesheet %d: %w", ts.Id, err)
				}
				return &full, nil
			}
		}
		if !result.Meta.HasNext() || len(result.Items) == 0 {
			return nil, nil
		}
	}
}

// CurrentWeek is the week containing today under the organization's week start.
func (s *Service) CurrentWeek(ctx context.Context) calendar.Week {
	return calendar.WeekOf(s.clock.Now(), s.settings.Effective(ctx).WeekStartDay())
}

func (s *Service) CreateForWeek(ctx context.Context, week calendar.Week) (Timesheet, error) {
	if !s.settings.Effective(ctx).AllowBackdated && week.Before(s.CurrentWeek(ctx)) {
		toast.Invalid(s.notifier, ErrBackdated)
		return Timesheet{}, ErrBackdated
	}
	req := CreateRequest{WeekStartDate: week.StartISO(), WeekEndDate: week.EndISO()}
	if err := validator.Struct(req); err != nil {
		toast.Invalid(s.notifier, err)
		return Timesheet{}, err
	}

	created, err := s.client.Create(ctx, req)
	if err != nil {
		toast.Failure(s.notifier, err, "Failed to create timesheet")
		return Timesheet{}, fmt.Errorf("failed to create timesheet for %s: %w", week, err)
	}
	s.changed(ctx, created.Id, "created")
	s.notifier.Notify(toast.LevelSuccess, "Timesheet created")
	return created, nil
}

func (s *Service) Delete(ctx context.Context, id int) error {
	if _, err := s.editable(ctx, id); err != nil {
		return err
	}
	if err := s.client.Delete(ctx, id); err != nil {
		toast.Failure(s.notifier, err, "Failed to delete timesheet")
		return fmt.Errorf("failed to delete timesheet %d: %w", id, err)
	}
	s.changed(ctx, id, "deleted")
	s.notifier.Notify(toast.LevelInfo, "Timesheet deleted")
	return nil
}

// Submit runs the submission checks and asks confirm when the total is unusually high.
// A declined confirmation returns ErrCancelled without contacting the server.
func (s *Service) Submit(ctx context.Context, id int, confirm ConfirmFunc) (Timesheet, error) {
	ts, err := s.Get(ctx, id)
	if err != nil {
		return Timesheet{}, fmt.Errorf("failed to get timesheet %d: %w", id, err)
	}
	check, err := CheckSubmit(ts)
	if err != nil {
		toast.Invalid(s.notifier, err)
		return Timesheet{}, err
	}
	if check.NeedsConfirmation && (confirm == nil || !confirm(ctx, check.Prompt())) {
		return Timesheet{}, ErrCancelled
	}

	submitted, err := s.client.Submit(ctx, id)
	if err != nil {
		toast.Failure(s.notifier, err, "Failed to submit timesheet")
		return Timesheet{}, fmt.Errorf("failed to submit timesheet %d: %w", id, err)
	}
	s.changed(ctx, id, "submitted")
	s.notifier.Notify(toast.LevelSuccess, "Timesheet submitted for approval")
	return submitted, nil
}

const overwritePrompt = "A draft timesheet already exists for this week. Copying will replace all its current entries " +
	"with the rows from your previous week. Hours will not be copied. Overwrite it?"

// CopyPreviousWeek copies the project rows of the week before into week. When the
// target already has a timesheet the server answers with a conflict; the copy is then
// repeated with force only if confirm agrees.
func (s *Service) CopyPreviousWeek(ctx context.Context, week calendar.Week, confirm ConfirmFunc) (Timesheet, error) {
	if !s.settings.Effective(ctx).AllowCopyWeek {
		toast.Invalid(s.notifier, ErrCopyWeekDisabled)
		return Timesheet{}, ErrCopyWeekDisabled
	}
	existing, err := s.ResolveWeek(ctx, week)
	if err != nil {
		toast.Failure(s.notifier, err, "Failed to load timesheets")
		return Timesheet{}, err
	}
	if !CanEdit(existing) {
		err := fmt.Errorf("%w: it is %s", ErrNotEditable, strings.ToLower(existing.Status.Label()))
		toast.Invalid(s.notifier, err)
		return Timesheet{}, err
	}
	req := CopyWeekRequest{TargetWeekStart: week.StartISO()}

	copied, err := s.client.CopyPreviousWeek(ctx, req)
	if rest.IsConflict(err) {
		log.Debugf("timesheet for %s already exists, asking to overwrite", week)
		if confirm == nil || !confirm(ctx, overwritePrompt) {
			return Timesheet{}, ErrCancelled
		}
		req.Force = true
		copied, err = s.client.CopyPreviousWeek(ctx, req)
	}
	if err != nil {
		toast.Failure(s.notifier, err, "No previous week to copy")
		return Timesheet{}, fmt.Errorf("failed to copy previous week into %s: %w", week, err)
	}
	s.changed(ctx, copied.Id, "copied")
	s.notifier.Notify(toast.LevelSuccess, "Previous week copied")
	return copied, nil
}

func (s *Service) AddEntry(ctx context.Context, timesheetId int, req NewEntryRequest) (TimeEntry, error) {
	if _, err := s.editable(ctx, timesheetId); err != nil {
		return TimeEntry{}, err
	}
	req.Description = strings.TrimSpace(req.Description)
	if s.settings.Effective(ctx).MandatoryDesc && req.Description == "" {
		toast.Invalid(s.notifier, ErrDescriptionRequired)
		return TimeEntry{}, ErrDescriptionRequired
	}
	if err := validator.Struct(req); err != nil {
		toast.Invalid(s.notifier, err)
		return TimeEntry{}, err
	}
	p, err := s.projects.Get(ctx, req.ProjectId)
	if err != nil {
		toast.Invalid(s.notifier, err)
		return TimeEntry{}, err
	}
	if !p.Selectable() {
		err := fmt.Errorf("%w: %s", ErrProjectInactive, p.Label())
		toast.Invalid(s.notifier, err)
		return TimeEntry{}, err
	}

	created, err := s.client.AddEntry(ctx, timesheetId, req)
	if err != nil {
		toast.Failure(s.notifier, err, "Failed to add entry")
		return TimeEntry{}, fmt.Errorf("failed to add entry to timesheet %d: %w", timesheetId, err)
	}
	s.changed(ctx, timesheetId, "entry-added")
	return created, nil
}

// SetHours parses input as typed into a grid cell and stores it for day. The value
// is rounded to the organization's time increment and checked against the day and
// week maxima before anything is sent.
func (s *Service) SetHours(ctx context.Context, timesheetId, entryId int, day calendar.Day, input string) (TimeEntry, error) {
	if !day.Valid() {
		return TimeEntry{}, calendar.ErrInvalidDay
	}
	ts, err := s.editable(ctx, timesheetId)
	if err != nil {
		return TimeEntry{}, err
	}
	current, ok := ts.Entry(entryId)
	if !ok {
		return TimeEntry{}, fmt.Errorf("%w: %d", ErrEntryNotFound, entryId)
	}

	policy := s.settings.Effective(ctx)
	hours := RoundToIncrement(ParseHours(input), policy.TimeIncrement)
	if err := checkLimits(ts, current, day, hours, policy); err != nil {
		toast.Invalid(s.notifier, err)
		return TimeEntry{}, err
	}
	return s.updateEntry(ctx, timesheetId, entryId, EntryPatch{Hours: map[calendar.Day]float64{day: hours}})
}

func checkLimits(ts Timesheet, current TimeEntry, day calendar.Day, hours float64, policy settings.OrgSettings) error {
	delta := hours - current.Hours[day]
	if limit := policy.DayLimit(); limit > 0 {
		if total := DayTotals(ts.TimeEntries)[day] + delta; total > limit {
			return fmt.Errorf("%w: %s would total %s hours, the maximum is %s",
				ErrHoursOutOfRange, day.Label(), FormatHours(total, FormatDecimal), FormatHours(limit, FormatDecimal))
		}
	}
	if limit := policy.WeekLimit(); limit > 0 {
		if total := TotalHours(ts.TimeEntries) + delta; total > limit {
			return fmt.Errorf("%w: the week would total %s hours, the maximum is %s",
				ErrHoursOutOfRange, FormatHours(total, FormatDecimal), FormatHours(limit, FormatDecimal))
		}
	}
	return nil
}

func (s *Service) SetNote(ctx context.Context, timesheetId, entryId int, day calendar.Day, note string) (TimeEntry, error) {
	if !day.Valid() {
		return TimeEntry{}, calendar.ErrInvalidDay
	}
	if _, err := s.editable(ctx, timesheetId); err != nil {
		return TimeEntry{}, err
	}
	return s.updateEntry(ctx, timesheetId, entryId, EntryPatch{Notes: map[calendar.Day]string{day: note}})
}

func (s *Service) SetDescription(ctx context.Context, timesheetId, entryId int, description string) (TimeEntry, error) {
	if _, err := s.editable(ctx, timesheetId); err != nil {
		return TimeEntry{}, err
	}
	description = strings.TrimSpace(description)
	if s.settings.Effective(ctx).MandatoryDesc && description == "" {
		toast.Invalid(s.notifier, ErrDescriptionRequired)
		return TimeEntry{}, ErrDescriptionRequired
	}
	return s.updateEntry(ctx, timesheetId, entryId, EntryPatch{Description: &description})
}

func (s *Service) SetBillable(ctx context.Context, timesheetId, entryId int, billable bool) (TimeEntry, error) {
	if _, err := s.editable(ctx, timesheetId); err != nil {
		return TimeEntry{}, err
	}
	return s.updateEntry(ctx, timesheetId, entryId, EntryPatch{Billable: &billable})
}

func (s *Service) DeleteEntry(ctx context.Context, timesheetId, entryId int) error {
	if _, err := s.editable(ctx, timesheetId); err != nil {
		return err
	}
	if err := s.client.DeleteEntry(ctx, timesheetId, entryId); err != nil {
		toast.Failure(s.notifier, err, "Failed to delete entry")
		return fmt.Errorf("failed to delete entry %d: %w", entryId, err)
	}
	s.changed(ctx, timesheetId, "entry-deleted")
	s.notifier.Notify(toast.LevelInfo, "Entry removed")
	return nil
}

// Summary aggregates ts under the organization's overtime policy.
func (s *Service) Summary(ctx context.Context, ts Timesheet) Summary {
	policy := s.settings.Effective(ctx)
	return Summarize(ts.TimeEntries, Policy{StandardHoursPerDay: policy.StandardHours, OvertimeEnabled: policy.EnableOvertime})
}

func (s *Service) updateEntry(ctx context.Context, timesheetId, entryId int, patch EntryPatch) (TimeEntry, error) {
	updated, err := s.client.UpdateEntry(ctx, timesheetId, entryId, patch)
	if err != nil {
		toast.Failure(s.notifier, err, "Failed to update entry")
		return TimeEntry{}, fmt.Errorf("failed to update entry %d: %w", entryId, err)
	}
	s.changed(ctx, timesheetId, "entry-updated")
	return updated, nil
}

func (s *Service) editable(ctx context.Context, id int) (Timesheet, error) {
	ts, err := s.Get(ctx, id)
	if err != nil {
		return Timesheet{}, fmt.Errorf("failed to get timesheet %d: %w", id, err)
	}
	if !CanEdit(&ts) {
		err := fmt.Errorf("%w: it is %s", ErrNotEditable, strings.ToLower(ts.Status.Label()))
		toast.Invalid(s.notifier, err)
		return Timesheet{}, err
	}
	return ts, nil
}

func (s *Service) changed(ctx context.Context, id int, action string) {
	s.cache.Invalidate(timesheetsKey)
	err := s.bus.Publish(event_bus.NewEvent(ctx, "timesheet.changed", event_bus.TimesheetChanged{TimesheetId: id, Action: action}))
	if err != nil {
		log.Errorf("failed to publish timesheet.changed: %v", err)
	}
}
