package timesheet

import (
	"context"
	"fmt"
	"time"
)

type DashboardStats struct {
	ThisWeekHours           float64
	MonthHours              float64
	MonthBillablePercentage int
	PendingCount            int
	Recent                  []Timesheet
}

// Dashboard summarizes the first page of the user's timesheets. Month figures
// cover timesheets whose week starts in the current calendar month.
func (s *Service) Dashboard(ctx context.Context, limit int) (DashboardStats, error) {
	page, err := s.List(ctx, 1, limit)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("failed to list timesheets: %w", err)
	}

	now := s.clock.Now()
	week := s.CurrentWeek(ctx)
	stats := DashboardStats{Recent: page.Items}
	var monthBillable float64
	for _, ts := range page.Items {
		if ts.StartsOn(week) {
			stats.ThisWeekHours = ts.TotalHours
		}
		if inMonth(ts.WeekStartDate, now) {
			stats.MonthHours += ts.TotalHours
			monthBillable += ts.BillableHours
		}
		if ts.Status == StatusSubmitted {
			stats.PendingCount++
		}
	}
	stats.MonthBillablePercentage = BillablePercentage(monthBillable, stats.MonthHours)
	return stats, nil
}

func inMonth(isoDate string, now time.Time) bool {
	if len(isoDate) < len(time.DateOnly) {
		return false
	}
	d, err := time.ParseInLocation(time.DateOnly, isoDate[:len(time.DateOnly)], now.Location())
	if err != nil {
		return false
	}
	return d.Year() == now.Year() && d.Month() == now.Month()
}
