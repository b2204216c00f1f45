package timesheet

import (
	"math"

	"github.com/highspring/timesheets/pkg/calendar"
)

// Total is the sum of the entry's seven day values.
func (e TimeEntry) Total() float64 {
	var total float64
	for _, h := range e.Hours {
		total += h
	}
	return total
}

func DayTotals(entries []TimeEntry) [calendar.DaysInWeek]float64 {
	var totals [calendar.DaysInWeek]float64
	for _, e := range entries {
		for _, d := range calendar.Days {
			totals[d] += e.Hours[d]
		}
	}
	return totals
}

func BillableDayTotals(entries []TimeEntry) [calendar.DaysInWeek]float64 {
	var totals [calendar.DaysInWeek]float64
	for _, e := range entries {
		if !e.Billable {
			continue
		}
		for _, d := range calendar.Days {
			totals[d] += e.Hours[d]
		}
	}
	return totals
}

func TotalHours(entries []TimeEntry) float64 {
	var total float64
	for _, e := range entries {
		total += e.Total()
	}
	return total
}

func BillableHours(entries []TimeEntry) float64 {
	var total float64
	for _, e := range entries {
		if e.Billable {
			total += e.Total()
		}
	}
	return total
}

// Overtime is computed per day: the hours of each day above the standard day.
func Overtime(dayTotals [calendar.DaysInWeek]float64, standardHoursPerDay float64) [calendar.DaysInWeek]float64 {
	var overtime [calendar.DaysInWeek]float64
	for _, d := range calendar.Days {
		overtime[d] = math.Max(0, dayTotals[d]-standardHoursPerDay)
	}
	return overtime
}

// BillablePercentage is round(billable/total*100), 0 when nothing was logged.
func BillablePercentage(billable, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(billable / total * 100))
}

// Policy is the part of the organization settings aggregation depends on.
type Policy struct {
	StandardHoursPerDay float64
	OvertimeEnabled     bool
}

type Summary struct {
	ByDay              [calendar.DaysInWeek]float64
	BillableByDay      [calendar.DaysInWeek]float64
	OvertimeByDay      [calendar.DaysInWeek]float64
	Total              float64
	Billable           float64
	NonBillable        float64
	Overtime           float64
	Regular            float64
	BillablePercentage int
}

func Summarize(entries []TimeEntry, policy Policy) Summary {
	s := Summary{
		ByDay:         DayTotals(entries),
		BillableByDay: BillableDayTotals(entries),
		Total:         TotalHours(entries),
		Billable:      BillableHours(entries),
	}
	s.NonBillable = s.Total - s.Billable
	s.BillablePercentage = BillablePercentage(s.Billable, s.Total)
	if policy.OvertimeEnabled {
		s.OvertimeByDay = Overtime(s.ByDay, policy.StandardHoursPerDay)
		for _, o := range s.OvertimeByDay {
			s.Overtime += o
		}
	}
	s.Regular = s.Total - s.Overtime
	return s
}
