package settings

import (
	"context"
	"fmt"

	"github.com/highspring/timesheets/internal/validator"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/toast"
	"github.com/highspring/timesheets/pkg/user"
	log "github.com/sirupsen/logrus"
)

var settingsKey = cache.K("settings")

type Service struct {
	client   Client
	cache    *cache.Cache
	notifier toast.Notifier
	identity user.Provider
}

func NewService(client Client, c *cache.Cache, notifier toast.Notifier, identity user.Provider) *Service {
	return &Service{client: client, cache: c, notifier: notifier, identity: identity}
}

func (s *Service) Get(ctx context.Context) (OrgSettings, error) {
	return cache.Fetch(ctx, s.cache, settingsKey, s.client.Get)
}

// Effective returns the organization settings, or the defaults when they cannot be loaded.
func (s *Service) Effective(ctx context.Context) OrgSettings {
	current, err := s.Get(ctx)
	if err != nil {
		log.Warnf("using default settings: %v", err)
		return Defaults()
	}
	return current
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (OrgSettings, error) {
	current, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return OrgSettings{}, fmt.Errorf("failed to get current user: %w", err)
	}
	if err := user.Require(current.Capabilities().CanConfigure, "change settings"); err != nil {
		toast.Invalid(s.notifier, err)
		return OrgSettings{}, err
	}
	if err := validator.Struct(req); err != nil {
		toast.Invalid(s.notifier, err)
		return OrgSettings{}, err
	}

	updated, err := s.client.Update(ctx, req)
	if err != nil {
		toast.Failure(s.notifier, err, "Failed to save settings")
		return OrgSettings{}, fmt.Errorf("failed to update settings: %w", err)
	}
	s.cache.Invalidate(settingsKey)
	s.notifier.Notify(toast.LevelSuccess, "Settings saved")
	return updated, nil
}
