package notification

import (
	"context"
	"fmt"

	"github.com/highspring/timesheets/internal/event_bus"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/toast"
)

var notificationsKey = cache.K("notifications")

type Service struct {
	client   Client
	cache    *cache.Cache
	notifier toast.Notifier
}

// NewService expects a cache whose entries expire after RefreshInterval, so the
// list is reloaded periodically. Reviews and submissions notify other users, so
// the list is also dropped whenever a timesheet changes hands.
func NewService(client Client, c *cache.Cache, bus *event_bus.EventBus, notifier toast.Notifier) *Service {
	c.InvalidateOn(bus, "timesheet.reviewed", notificationsKey)
	c.InvalidateOn(bus, "timesheet.changed", notificationsKey)
	return &Service{client: client, cache: c, notifier: notifier}
}

func (s *Service) List(ctx context.Context) ([]Notification, error) {
	return cache.Fetch(ctx, s.cache, notificationsKey, s.client.List)
}

// Unread returns the number of unread notifications and the newest PreviewSize of them.
func (s *Service) Unread(ctx context.Context) (int, []Notification, error) {
	all, err := s.List(ctx)
	if err != nil {
		return 0, nil, err
	}
	return UnreadCount(all), all[:min(len(all), PreviewSize)], nil
}

func (s *Service) MarkRead(ctx context.Context, id int) error {
	if err := s.client.MarkRead(ctx, id); err != nil {
		toast.Failure(s.notifier, err, "Failed to mark notification as read")
		return fmt.Errorf("failed to mark notification %d as read: %w", id, err)
	}
	s.cache.Invalidate(notificationsKey)
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context) error {
	if err := s.client.MarkAllRead(ctx); err != nil {
		toast.Failure(s.notifier, err, "Failed to mark notifications as read")
		return fmt.Errorf("failed to mark all notifications as read: %w", err)
	}
	s.cache.Invalidate(notificationsKey)
	s.notifier.Notify(toast.LevelInfo, "All notifications marked as read")
	return nil
}
