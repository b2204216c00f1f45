package calendar

import (
	"time"
)

type Holiday struct {
	Id             int    `json:"id"`
	OrganisationId int    `json:"organisationId,omitempty"`
	Name           string `json:"name"`
	Date           string `json:"date"`
	Recurring      bool   `json:"recurring"`
}

type CreateHolidayRequest struct {
	Name      string `json:"name" validate:"required"`
	Date      string `json:"date" validate:"required,isodate"`
	Recurring bool   `json:"recurring"`
}

// Day returns the holiday's date at midnight in loc.
func (h Holiday) Day(loc *time.Location) (time.Time, bool) {
	if len(h.Date) < len(isoDate) {
		return time.Time{}, false
	}
	d, err := time.ParseInLocation(isoDate, h.Date[:len(isoDate)], loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// Matches reports whether the holiday falls on date. Recurring holidays match every year.
func (h Holiday) Matches(date time.Time) bool {
	d, ok := h.Day(date.Location())
	if !ok {
		return false
	}
	if h.Recurring {
		return d.Month() == date.Month() && d.Day() == date.Day()
	}
	return d.Year() == date.Year() && d.Month() == date.Month() && d.Day() == date.Day()
}

// DayInfo annotates one grid column. It never affects hour arithmetic.
type DayInfo struct {
	Day         Day
	Date        time.Time
	Weekend     bool
	Holiday     bool
	HolidayName string
}

func AnnotateWeek(week Week, holidays []Holiday) [DaysInWeek]DayInfo {
	var infos [DaysInWeek]DayInfo
	for _, d := range Days {
		date := week.DateOf(d)
		info := DayInfo{
			Day:     d,
			Date:    date,
			Weekend: d == Saturday || d == Sunday,
		}
		for _, h := range holidays {
			if h.Matches(date) {
				info.Holiday = true
				info.HolidayName = h.Name
				break
			}
		}
		infos[d] = info
	}
	return infos
}

// Years lists the calendar years the week touches, used to fetch holidays.
func (w Week) Years() []int {
	first, last := w.Start.Year(), w.End().Year()
	if first == last {
		return []int{first}
	}
	return []int{first, last}
}
