package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/highspring/timesheets/internal/rest"
	"github.com/highspring/timesheets/internal/validator"
	"github.com/highspring/timesheets/pkg/cache"
	"github.com/highspring/timesheets/pkg/toast"
	"github.com/highspring/timesheets/pkg/user"
	log "github.com/sirupsen/logrus"
)

type Service struct {
	client    Client
	cache     *cache.Cache
	notifier  toast.Notifier
	identity  user.Provider
	exportDir string
}

// NewService saves downloaded exports under exportDir.
func NewService(client Client, c *cache.Cache, notifier toast.Notifier, identity user.Provider, exportDir string) *Service {
	return &Service{client: client, cache: c, notifier: notifier, identity: identity, exportDir: exportDir}
}

func (s *Service) Generate(ctx context.Context, filters Filters) (Data, error) {
	if err := s.require(ctx, func(c user.Capabilities) bool { return c.CanViewReports }, "view reports"); err != nil {
		return Data{}, err
	}
	if err := validator.Struct(filters); err != nil {
		toast.Invalid(s.notifier, err)
		return Data{}, err
	}
	key := cache.K("reports", filters.Query().Encode())
	return cache.Fetch(ctx, s.cache, key, func(ctx context.Context) (Data, error) {
		return s.client.Generate(ctx, filters)
	})
}

// Export downloads the filtered report and returns the path it was saved to.
func (s *Service) Export(ctx context.Context, filters Filters, format Format) (string, error) {
	if err := s.require(ctx, func(c user.Capabilities) bool { return c.CanViewReports }, "export reports"); err != nil {
		return "", err
	}
	if err := validator.Struct(filters); err != nil {
		toast.Invalid(s.notifier, err)
		return "", err
	}

	file, err := s.client.Export(ctx, filters, format)
	if err == nil {
		var path string
		if path, err = s.save(file); err == nil {
			s.notifier.Notify(toast.LevelSuccess, "Export downloaded")
			return path, nil
		}
	}
	toast.Failure(s.notifier, err, "Export failed")
	return "", fmt.Errorf("failed to export report: %w", err)
}

// ExportMonthly downloads the monthly timesheet of req.UserId. Users without
// CanExportForOthers may only download their own.
func (s *Service) ExportMonthly(ctx context.Context, req MonthlyRequest) (string, error) {
	current, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get current user: %w", err)
	}
	if req.UserId == 0 {
		req.UserId = current.UserId
	}
	if req.UserId != current.UserId {
		if err := user.Require(current.Capabilities().CanExportForOthers, "export timesheets of other users"); err != nil {
			toast.Invalid(s.notifier, err)
			return "", err
		}
	}
	if err := validator.Struct(req); err != nil {
		toast.Invalid(s.notifier, err)
		return "", err
	}

	file, err := s.client.ExportMonthly(ctx, req)
	if err == nil {
		var path string
		if path, err = s.save(file); err == nil {
			s.notifier.Notify(toast.LevelSuccess, "Monthly timesheet downloaded")
			return path, nil
		}
	}
	toast.Failure(s.notifier, err, "Failed to download monthly timesheet")
	return "", fmt.Errorf("failed to export monthly timesheet: %w", err)
}

func (s *Service) save(file rest.File) (string, error) {
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(s.exportDir, filepath.Base(file.Name))
	if err := os.WriteFile(path, file.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.Infof("saved %d bytes to %s", len(file.Data), path)
	return path, nil
}

func (s *Service) require(ctx context.Context, capability func(user.Capabilities) bool, action string) error {
	current, err := s.identity.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}
	if err := user.Require(capability(current.Capabilities()), action); err != nil {
		toast.Invalid(s.notifier, err)
		return err
	}
	return nil
}
