package calendar

import (
	"context"
	"fmt"

	"github.com/highspring/timesheets/internal/validator"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/toast"
	"github.com/highspring/timesheets/pkg/user"
)

var holidaysKey = cache.K("holidays")

type Service struct {
	client   Client
	cache    *cache.Cache
	notifier toast.Notifier
	identity user.Provider
}

func NewService(client Client, c *cache.Cache, notifier toast.Notifier, identity user.Provider) *Service {
	return &Service{client: client, cache: c, notifier: notifier, identity: identity}
}

func (s *Service) Holidays(ctx context.Context, year int) ([]Holiday, error) {
	return cache.Fetch(ctx, s.cache, cache.K("holidays", year), func(ctx context.Context) ([]Holiday, error) {
		return s.client.ListHolidays(ctx, year)
	})
}

// AnnotatedWeek fetches the holidays of every year the week touches and flags its days.
func (s *Service) AnnotatedWeek(ctx context.Context, week Week) ([DaysInWeek]DayInfo, error) {
	var all []Holiday
	for _, year := range week.Years() {
		holidays, err := s.Holidays(ctx, year)
		if err != nil {
			return [DaysInWeek]DayInfo{}, fmt.Errorf("failed to get holidays for %d: %w", year, err)
		}
		all = append(all, holidays...)
	}
	return AnnotateWeek(week, all), nil
}

func (s *Service) CreateHoliday(ctx context.Context, req CreateHolidayRequest) (Holiday, error) {
	if err := s.requireAdmin(ctx, "manage holidays"); err != nil {
		return Holiday{}, err
	}
	if err := validator.Struct(req); err != nil {
		toast.Invalid(s.notifier, err)
		return Holiday{}, err
	}
	created, err := s.client.CreateHoliday(ctx, req)
	if err != nil {
		toast.Failure(s.notifier, err, "Failed to add holiday")
		return Holiday{}, fmt.Errorf("failed to create holiday: %w", err)
	}
	s.cache.Invalidate(holidaysKey)
	s.notifier.Notify(toast.LevelSuccess, "Holiday added")
	return created, nil
}

func (s *Service) DeleteHoliday(ctx context.Context, id int) error {
	if err := s.requireAdmin(ctx, "manage holidays"); err != nil {
		return err
	}
	if err := s.client.DeleteHoliday(ctx, id); err != nil {
		toast.Failure(s.notifier, err, "Failed to delete holiday")
		return fmt.Errorf("failed to delete holiday %d: %w", id, err)
	}
	s.cache.Invalidate(holidaysKey)
	s.notifier.Notify(toast.LevelInfo, "Holiday removed")
	return nil
}

func (s *Service) requireAdmin(ctx context.Context, action string) error {
	current, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if err := user.Require(current.Capabilities().CanManageHolidays, action); err != nil {
		toast.Invalid(s.notifier, err)
		return err
	}
	return nil
}
