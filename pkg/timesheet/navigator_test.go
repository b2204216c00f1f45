package timesheet

import (
	"context"
	"testing"
	"time"

	"github.com/highspring/timesheets/pkg/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resolverFunc func(ctx context.Context, week calendar.Week) (*Timesheet, error)

func (f resolverFunc) ResolveWeek(ctx context.Context, week calendar.Week) (*Timesheet, error) {
	return f(ctx, week)
}

var navWeek = calendar.WeekOf(time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), time.Monday)

func TestNavigator_Moves(t *testing.T) {
	n := NewNavigator(resolverFunc(func(ctx context.Context, week calendar.Week) (*Timesheet, error) {
		return nil, nil
	}), navWeek)

	assert.Equal(t, "2025-01-20", n.Next().StartISO())
	assert.Equal(t, "2025-01-13", n.Prev().StartISO())
	assert.Equal(t, "2025-01-06", n.Prev().StartISO())
	assert.Equal(t, "2025-03-03", n.GoTo(time.Date(2025, time.March, 9, 0, 0, 0, 0, time.UTC)).StartISO())
}

func TestNavigator_Resolve(t *testing.T) {
	t.Run("keeps the resolved timesheet for the selected week", func(t *testing.T) {
		ts := &Timesheet{Id: 7, WeekStartDate: "2025-01-13"}
		n := NewNavigator(resolverFunc(func(ctx context.Context, week calendar.Week) (*Timesheet, error) {
			return ts, nil
		}), navWeek)

		_, ok := n.Timesheet()
		assert.False(t, ok)

		got, err := n.Resolve(context.Background())
		require.NoError(t, err)
		assert.Equal(t, ts, got)

		current, ok := n.Timesheet()
		assert.True(t, ok)
		assert.Equal(t, 7, current.Id)
	})

	t.Run("navigation forgets the previous week", func(t *testing.T) {
		n := NewNavigator(resolverFunc(func(ctx context.Context, week calendar.Week) (*Timesheet, error) {
			return &Timesheet{Id: 7, WeekStartDate: week.StartISO()}, nil
		}), navWeek)
		_, err := n.Resolve(context.Background())
		require.NoError(t, err)

		n.Next()

		current, ok := n.Timesheet()
		assert.False(t, ok)
		assert.Nil(t, current)
	})

	t.Run("drops a resolution that finishes after the user moved on", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		n := NewNavigator(resolverFunc(func(ctx context.Context, week calendar.Week) (*Timesheet, error) {
			close(started)
			<-release
			return &Timesheet{Id: 7, WeekStartDate: week.StartISO()}, nil
		}), navWeek)

		done := make(chan error, 1)
		go func() {
			_, err := n.Resolve(context.Background())
			done <- err
		}()
		<-started
		n.Next()
		close(release)

		assert.ErrorIs(t, <-done, ErrStaleResolution)
		current, ok := n.Timesheet()
		assert.False(t, ok)
		assert.Nil(t, current)
		assert.Equal(t, "2025-01-20", n.Week().StartISO())
	})

	t.Run("set ignores timesheets of other weeks", func(t *testing.T) {
		n := NewNavigator(resolverFunc(func(ctx context.Context, week calendar.Week) (*Timesheet, error) {
			return nil, nil
		}), navWeek)

		n.Set(Timesheet{Id: 1, WeekStartDate: "2025-01-06"})
		_, ok := n.Timesheet()
		assert.False(t, ok)

		n.Set(Timesheet{Id: 2, WeekStartDate: "2025-01-13T00:00:00Z"})
		current, ok := n.Timesheet()
		assert.True(t, ok)
		assert.Equal(t, 2, current.Id)
	})
}
