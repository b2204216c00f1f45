package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Day indexes the seven day columns of a timesheet, Monday first.
type Day int

const (
	Monday Day = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

const DaysInWeek = 7

var Days = [DaysInWeek]Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var ErrInvalidDay = fmt.Errorf("invalid day")

var dayKeys = [DaysInWeek]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

func (d Day) Valid() bool {
	return d >= Monday && d <= Sunday
}

// Key is the wire prefix of the day, e.g. "mon" as in "monHours".
func (d Day) Key() string {
	if !d.Valid() {
		return ""
	}
	return dayKeys[d]
}

// Label is the short column header, e.g. "Mon".
func (d Day) Label() string {
	k := d.Key()
	if k == "" {
		return ""
	}
	return strings.ToUpper(k[:1]) + k[1:]
}

func (d Day) String() string {
	return d.Label()
}

func (d Day) Weekday() time.Weekday {
	return time.Weekday((int(d) + 1) % 7)
}

func DayOf(w time.Weekday) Day {
	return Day((int(w) + 6) % 7)
}

// ParseDay accepts "mon", "Monday", "TUE" and similar.
func ParseDay(s string) (Day, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for i, k := range dayKeys {
			if strings.HasPrefix(s, k) {
				return Day(i), nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDay, s)
}
