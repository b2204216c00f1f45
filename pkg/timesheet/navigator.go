package timesheet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/highspring/timesheets/pkg/calendar"
	log "github.com/sirupsen/logrus"
)

// ErrStaleResolution is returned when the selected week changed while its timesheet was being looked up.
var ErrStaleResolution = errors.New("selected week changed during resolution")

type WeekResolver interface {
	ResolveWeek(ctx context.Context, week calendar.Week) (*Timesheet, error)
}

// Navigator holds the selected week and the timesheet resolved for it.
// Moving to another week forgets the timesheet of the previous one.
type Navigator struct {
	mu         sync.Mutex
	resolver   WeekResolver
	week       calendar.Week
	timesheet  *Timesheet
	resolved   bool
	generation uint64
}

func NewNavigator(resolver WeekResolver, week calendar.Week) *Navigator {
	return &Navigator{resolver: resolver, week: week}
}

func (n *Navigator) Week() calendar.Week {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.week
}

// Timesheet returns the timesheet of the selected week. ok is false until a
// resolution for the selected week completed; a nil timesheet with ok means none exists.
func (n *Navigator) Timesheet() (ts *Timesheet, ok bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.timesheet, n.resolved
}

func (n *Navigator) Next() calendar.Week {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.selectLocked(n.week.Next())
	return n.week
}

func (n *Navigator) Prev() calendar.Week {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.selectLocked(n.week.Prev())
	return n.week
}

// GoTo selects the week containing date.
func (n *Navigator) GoTo(date time.Time) calendar.Week {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.selectLocked(calendar.WeekOf(date, n.week.StartDay))
	return n.week
}

// Select switches to week, keeping the resolved timesheet when it is the same week.
func (n *Navigator) Select(week calendar.Week) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.week.Equal(week) && n.week.StartDay == week.StartDay {
		return
	}
	n.selectLocked(week)
}

func (n *Navigator) selectLocked(week calendar.Week) {
	n.week = week
	n.timesheet = nil
	n.resolved = false
	n.generation++
}

// Resolve looks up the timesheet of the selected week. A result that arrives
// after the selection moved on is dropped and ErrStaleResolution returned.
func (n *Navigator) Resolve(ctx context.Context) (*Timesheet, error) {
	n.mu.Lock()
	week, generation := n.week, n.generation
	n.mu.Unlock()

	ts, err := n.resolver.ResolveWeek(ctx, week)

	n.mu.Lock()
	defer n.mu.Unlock()
	if generation != n.generation {
		log.Debugf("dropping resolution of %s, selection is now %s", week, n.week)
		return nil, ErrStaleResolution
	}
	if err != nil {
		return nil, err
	}
	n.timesheet = ts
	n.resolved = true
	return ts, nil
}

// Set records ts as the selected week's timesheet, as after creating or copying it.
func (n *Navigator) Set(ts Timesheet) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !ts.StartsOn(n.week) {
		log.Warnf("timesheet %d starts %s, not in selected week %s", ts.Id, ts.WeekStartDate, n.week)
		return
	}
	n.timesheet = &ts
	n.resolved = true
}

// Reset forgets the resolved timesheet so the next Resolve fetches it again.
func (n *Navigator) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.timesheet = nil
	n.resolved = false
	n.generation++
}
