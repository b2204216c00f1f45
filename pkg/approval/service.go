package approval

import (
	"context"
	"fmt"
	"strings"

	"github.com/highspring/timesheets/internal/event_bus"
	"github.com/highspring/timesheets/internal/rest"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/timesheet"
	"github.com/highspring/timesheets/pkg/toast"
	"github.com/highspring/timesheets/pkg/user"
	log "github.com/sirupsen/logrus"
)

var approvalsKey = cache.K("approvals")

type Service struct {
	client   Client
	cache    *cache.Cache
	bus      *event_bus.EventBus
	notifier toast.Notifier
	identity user.Provider
}

func NewService(client Client, c *cache.Cache, bus *event_bus.EventBus, notifier toast.Notifier, identity user.Provider) *Service {
	return &Service{client: client, cache: c, bus: bus, notifier: notifier, identity: identity}
}

// List returns one page of timesheets awaiting review. Non-positive page or limit
// fall back to the first page of ten.
func (s *Service) List(ctx context.Context, page, limit int) (rest.Page[timesheet.Timesheet], error) {
	if page < 1 {
		page = DefaultPage
	}
	if limit < 1 {
		limit = DefaultLimit
	}
	return cache.Fetch(ctx, s.cache, cache.K("approvals", page, limit), func(ctx context.Context) (rest.Page[timesheet.Timesheet], error) {
		return s.client.List(ctx, page, limit)
	})
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return cache.Fetch(ctx, s.cache, cache.K("approvals", "stats"), s.client.Stats)
}

func (s *Service) Approve(ctx context.Context, id int) (timesheet.Timesheet, error) {
	if err := s.requireApprover(ctx); err != nil {
		return timesheet.Timesheet{}, err
	}

	ts, err := s.client.Approve(ctx, id)
	if err != nil {
		toast.Failure(s.notifier, err, "Failed to approve timesheet")
		return timesheet.Timesheet{}, fmt.Errorf("failed to approve timesheet %d: %w", id, err)
	}
	s.reviewed(ctx, ts, "")
	s.notifier.Notify(toast.LevelSuccess, "Timesheet approved")
	return ts, nil
}

// Reject sends a timesheet back to its owner. The reason is mandatory.
func (s *Service) Reject(ctx context.Context, id int, reason string) (timesheet.Timesheet, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		toast.Invalid(s.notifier, ErrReasonRequired)
		return timesheet.Timesheet{}, ErrReasonRequired
	}
	if err := s.requireApprover(ctx); err != nil {
		return timesheet.Timesheet{}, err
	}

	ts, err := s.client.Reject(ctx, id, RejectRequest{Reason: reason})
	if err != nil {
		toast.Failure(s.notifier, err, "Failed to reject timesheet")
		return timesheet.Timesheet{}, fmt.Errorf("failed to reject timesheet %d: %w", id, err)
	}
	s.reviewed(ctx, ts, reason)
	s.notifier.Notify(toast.LevelInfo, "Timesheet rejected")
	return ts, nil
}

func (s *Service) requireApprover(ctx context.Context) error {
	current, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if err := user.Require(current.Capabilities().CanApprove, "review timesheets"); err != nil {
		toast.Invalid(s.notifier, err)
		return err
	}
	return nil
}

func (s *Service) reviewed(ctx context.Context, ts timesheet.Timesheet, reason string) {
	s.cache.Invalidate(approvalsKey)
	event := event_bus.TimesheetReviewed{TimesheetId: ts.Id, Status: string(ts.Status), Reason: reason}
	if err := s.bus.Publish(event_bus.NewEvent(ctx, "timesheet.reviewed", event)); err != nil {
		log.Errorf("failed to publish timesheet.reviewed: %v", err)
	}
}
