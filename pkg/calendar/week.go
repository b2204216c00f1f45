package calendar

import (
	"fmt"
	"strings"
	"time"
)

const isoDate = "2006-01-02"

// Week is a seven day span starting at midnight of its first day.
type Week struct {
	Start    time.Time
	StartDay time.Weekday
}

// WeekOf returns the week containing date for the given week start day.
// An out of range start day falls back to Monday.
func WeekOf(date time.Time, weekStartDay time.Weekday) Week {
	if weekStartDay < time.Sunday || weekStartDay > time.Saturday {
		weekStartDay = time.Monday
	}

	delta := (int(date.Weekday()) - int(weekStartDay) + 7) % 7
	y, m, d := date.AddDate(0, 0, -delta).Date()
	return Week{
		Start:    time.Date(y, m, d, 0, 0, 0, 0, date.Location()),
		StartDay: weekStartDay,
	}
}

// ParseWeek reads a "yyyy-MM-dd" date, optionally followed by a time part as
// servers often send it, and returns the week containing it.
func ParseWeek(value string, weekStartDay time.Weekday) (Week, error) {
	if len(value) < len(isoDate) {
		return Week{}, fmt.Errorf("invalid week date: %q", value)
	}
	date, err := time.ParseInLocation(isoDate, value[:len(isoDate)], time.Local)
	if err != nil {
		return Week{}, fmt.Errorf("invalid week date %q: %w", value, err)
	}
	return WeekOf(date, weekStartDay), nil
}

// ParseWeekday reads "monday", "Sunday" and similar.
func ParseWeekday(value string) (time.Weekday, error) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(wd.String(), strings.TrimSpace(value)) {
			return wd, nil
		}
	}
	return time.Monday, fmt.Errorf("invalid weekday: %q", value)
}

func (w Week) End() time.Time {
	return w.Start.AddDate(0, 0, DaysInWeek-1)
}

func (w Week) Next() Week {
	return Week{Start: w.Start.AddDate(0, 0, DaysInWeek), StartDay: w.StartDay}
}

func (w Week) Prev() Week {
	return Week{Start: w.Start.AddDate(0, 0, -DaysInWeek), StartDay: w.StartDay}
}

// DateOf returns the calendar date of a day column within this week.
func (w Week) DateOf(d Day) time.Time {
	offset := (int(d.Weekday()) - int(w.StartDay) + 7) % 7
	return w.Start.AddDate(0, 0, offset)
}

// Ordered returns the day columns in the order they occur in this week.
func (w Week) Ordered() [DaysInWeek]Day {
	var days [DaysInWeek]Day
	for i := range days {
		days[i] = DayOf(w.Start.AddDate(0, 0, i).Weekday())
	}
	return days
}

func (w Week) Contains(t time.Time) bool {
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, w.Start.Location())
	return !day.Before(w.Start) && !day.After(w.End())
}

func (w Week) StartISO() string {
	return w.Start.Format(isoDate)
}

func (w Week) EndISO() string {
	return w.End().Format(isoDate)
}

// Label renders the week as "Jan 13 - Jan 19, 2025".
func (w Week) Label() string {
	return w.Start.Format("Jan 2") + " - " + w.End().Format("Jan 2, 2006")
}

func (w Week) Equal(other Week) bool {
	return w.StartISO() == other.StartISO()
}

func (w Week) Before(other Week) bool {
	return w.Start.Before(other.Start)
}

func (w Week) After(other Week) bool {
	return w.Start.After(other.Start)
}

// String returns the ISO week of the week's first day, e.g. "2025-W03".
func (w Week) String() string {
	year, week := w.Start.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}
