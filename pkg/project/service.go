package project

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/highspring/timesheets/internal/event_bus"
	"github.com/highspring/timesheets/internal/validator"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/toast"
	"github.com/highspring/timesheets/pkg/user"
	log "github.com/sirupsen/logrus"
)

var ErrProjectNotFound = errors.New("project not found")

var projectsKey = cache.K("projects")

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

func (s *Service) List(ctx context.Context) ([]Project, error) {
	return cache.Fetch(ctx, s.cache, projectsKey, s.client.List)
}

// Selectable lists the projects new entries may be logged against.
func (s *Service) Selectable(ctx context.Context) ([]Project, error) {
	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	selectable := make([]Project, 0, len(all))
	for _, p := range all {
		if p.Selectable() {
			selectable = append(selectable, p)
		}
	}
	return selectable, nil
}

func (s *Service) Get(ctx context.Context, id int) (Project, error) {
	all, err := s.List(ctx)
	if err != nil {
		return Project{}, err
	}
	for _, p := range all {
		if p.Id == id {
			return p, nil
		}
	}
	return Project{}, fmt.Errorf("%w: %d", ErrProjectNotFound, id)
}

// FindByCode matches a project code case-insensitively.
func (s *Service) FindByCode(ctx context.Context, code string) (Project, error) {
	all, err := s.List(ctx)
	if err != nil {
		return Project{}, err
	}
	for _, p := range all {
		if strings.EqualFold(p.Code, code) {
			return p, nil
		}
	}
	return Project{}, fmt.Errorf("%w: %s", ErrProjectNotFound, code)
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Project, error) {
	if err := s.requireManager(ctx); err != nil {
		return Project{}, err
	}
	if err := validator.Struct(req); err != nil {
		toast.Invalid(s.notifier, err)
		return Project{}, err
	}
	created, err := s.client.Create(ctx, req)
	if err != nil {
		toast.Failure(s.notifier, err, "Failed to create project")
		return Project{}, fmt.Errorf("failed to create project: %w", err)
	}
	s.changed(ctx, created.Id, "created")
	s.notifier.Notify(toast.LevelSuccess, "Project created")
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int, req UpdateRequest) (Project, error) {
	if err := s.requireManager(ctx); err != nil {
		return Project{}, err
	}
	if err := validator.Struct(req); err != nil {
		toast.Invalid(s.notifier, err)
		return Project{}, err
	}
	updated, err := s.client.Update(ctx, id, req)
	if err != nil {
		toast.Failure(s.notifier, err, "Failed to update project")
		return Project{}, fmt.Errorf("failed to update project %d: %w", id, err)
	}
	s.changed(ctx, id, "updated")
	s.notifier.Notify(toast.LevelSuccess, "Project updated")
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, id int) error {
	if err := s.requireManager(ctx); err != nil {
		return err
	}
	if err := s.client.Delete(ctx, id); err != nil {
		toast.Failure(s.notifier, err, "Failed to delete project")
		return fmt.Errorf("failed to delete project %d: %w", id, err)
	}
	s.changed(ctx, id, "deleted")
	s.notifier.Notify(toast.LevelSuccess, "Project deleted")
	return nil
}

func (s *Service) requireManager(ctx context.Context) error {
	current, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if err := user.Require(current.Capabilities().CanManageProjects, "manage projects"); err != nil {
		toast.Invalid(s.notifier, err)
		return err
	}
	return nil
}

func (s *Service) changed(ctx context.Context, id int, action string) {
	s.cache.Invalidate(projectsKey)
	err := s.bus.Publish(event_bus.NewEvent(ctx, "project.changed", event_bus.ProjectChanged{ProjectId: id, Action: action}))
	if err != nil {
		log.Errorf("failed to publish project.changed: %v", err)
	}
}
