package user

import (
	"context"
	"fmt"

	"github.com/highspring/timesheets/internal/event_bus"
	"github.com/highspring/timesheets/internal/validator"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/toast"
	log "github.com/sirupsen/logrus"
)

var (
	usersKey    = cache.K("users")
	teamKey     = cache.K("team")
	projectsKey = cache.K("projects")
)

type Service interface {
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, req CreateUserRequest) (User, error)
	Update(ctx context.Context, id int, req UpdateUserRequest) (User, error)
	Delete(ctx context.Context, id int) error
	MyReports(ctx context.Context) ([]User, error)
	MyManagers(ctx context.Context) ([]User, error)
	// ExportTargets lists users whose monthly timesheet the current user may download.
	ExportTargets(ctx context.Context) ([]User, error)
}

type ServiceImpl struct {
	client   Client
	cache    *cache.Cache
	bus      *event_bus.EventBus
	notifier toast.Notifier
	identity Provider
}

func NewService(client Client, c *cache.Cache, bus *event_bus.EventBus, notifier toast.Notifier, identity Provider) *ServiceImpl {
	s := &ServiceImpl{client: client, cache: c, bus: bus, notifier: notifier, identity: identity}
	// project manager lists embed users, so both go stale together
	c.InvalidateOn(bus, "user.changed", usersKey, teamKey, projectsKey)
	return s
}

func (s *ServiceImpl) List(ctx context.Context) ([]User, error) {
	return cache.Fetch(ctx, s.cache, usersKey, s.client.List)
}

func (s *ServiceImpl) MyReports(ctx context.Context) ([]User, error) {
	return cache.Fetch(ctx, s.cache, cache.K("team", "reports"), s.client.MyReports)
}

func (s *ServiceImpl) MyManagers(ctx context.Context) ([]User, error) {
	return cache.Fetch(ctx, s.cache, cache.K("team", "managers"), s.client.MyManagers)
}

func (s *ServiceImpl) ExportTargets(ctx context.Context) ([]User, error) {
	current, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	switch current.Role {
	case RoleAdmin:
		return s.List(ctx)
	case RoleManager:
		reports, err := s.MyReports(ctx)
		if err != nil {
			return nil, err
		}
		self := User{Id: current.UserId, Name: current.Name, Email: current.Email, Role: current.Role}
		return append([]User{self}, reports...), nil
	default:
		return []User{{Id: current.UserId, Name: current.Name, Email: current.Email, Role: current.Role}}, nil
	}
}

func (s *ServiceImpl) Create(ctx context.Context, req CreateUserRequest) (User, error) {
	caps, err := s.capabilities(ctx)
	if err != nil {
		return User{}, err
	}
	if err := Require(caps.CanManageUsers, "create users"); err != nil {
		toast.Invalid(s.notifier, err)
		return User{}, err
	}
	if req.Role != RoleEmployee || len(req.ManagerIds) > 0 {
		if err := Require(caps.CanAssignRoles, "assign roles or managers"); err != nil {
			toast.Invalid(s.notifier, err)
			return User{}, err
		}
	}
	if err := validator.Struct(req); err != nil {
		toast.Invalid(s.notifier, err)
		return User{}, err
	}

	created, err := s.client.Create(ctx, req)
	if err != nil {
		toast.Failure(s.notifier, err, "Failed to create user")
		return User{}, fmt.Errorf("failed to create user: %w", err)
	}
	s.publish(ctx, created.Id, "created")
	s.notifier.Notify(toast.LevelSuccess, "User created")
	return created, nil
}

func (s *ServiceImpl) Update(ctx context.Context, id int, req UpdateUserRequest) (User, error) {
	caps, err := s.capabilities(ctx)
	if err != nil {
		return User{}, err
	}
	if err := Require(caps.CanManageUsers, "update users"); err != nil {
		toast.Invalid(s.notifier, err)
		return User{}, err
	}
	if req.Role != nil || req.ManagerIds != nil {
		if err := Require(caps.CanAssignRoles, "assign roles or managers"); err != nil {
			toast.Invalid(s.notifier, err)
			return User{}, err
		}
	}
	if err := validator.Struct(req); err != nil {
		toast.Invalid(s.notifier, err)
		return User{}, err
	}

	updated, err := s.client.Update(ctx, id, req)
	if err != nil {
		toast.Failure(s.notifier, err, "Failed to update user")
		return User{}, fmt.Errorf("failed to update user %d: %w", id, err)
	}
	s.publish(ctx, id, "updated")
	s.notifier.Notify(toast.LevelSuccess, "User updated")
	return updated, nil
}

func (s *ServiceImpl) Delete(ctx context.Context, id int) error {
	caps, err := s.capabilities(ctx)
	if err != nil {
		return err
	}
	if err := Require(caps.CanAssignRoles, "delete users"); err != nil {
		toast.Invalid(s.notifier, err)
		return err
	}
	if err := s.client.Delete(ctx, id); err != nil {
		toast.Failure(s.notifier, err, "Failed to deactivate user")
		return fmt.Errorf("failed to delete user %d: %w", id, err)
	}
	s.publish(ctx, id, "deleted")
	s.notifier.Notify(toast.LevelInfo, "User deactivated")
	return nil
}

func (s *ServiceImpl) capabilities(ctx context.Context) (Capabilities, error) {
	current, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return Capabilities{}, fmt.Errorf("failed to get current user: %w", err)
	}
	return current.Capabilities(), nil
}

func (s *ServiceImpl) publish(ctx context.Context, id int, action string) {
	err := s.bus.Publish(event_bus.NewEvent(ctx, "user.changed", event_bus.UserChanged{UserId: id, Action: action}))
	if err != nil {
		log.Errorf("failed to publish user.changed: %v", err)
	}
}
