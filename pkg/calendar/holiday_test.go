package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAnnotateWeek(t *testing.T) {
	week := WeekOf(date(2025, 12, 24), time.Monday)
	holidays := []Holiday{
		{Id: 1, Name: "Christmas Day", Date: "2019-12-25", Recurring: true},
		{Id: 2, Name: "Boxing Day", Date: "2025-12-26T00:00:00.000Z"},
		{Id: 3, Name: "Last year only", Date: "2024-12-22"},
		{Id: 4, Name: "Broken", Date: "n/a"},
	}

	infos := AnnotateWeek(week, holidays)

	assert.False(t, infos[Monday].Holiday)
	assert.True(t, infos[Thursday].Holiday)
	assert.Equal(t, "Christmas Day", infos[Thursday].HolidayName)
	assert.True(t, infos[Friday].Holiday)
	assert.Equal(t, "Boxing Day", infos[Friday].HolidayName)
	assert.False(t, infos[Sunday].Holiday)
	assert.True(t, infos[Saturday].Weekend)
	assert.True(t, infos[Sunday].Weekend)
	assert.False(t, infos[Friday].Weekend)
	assert.Equal(t, date(2025, 12, 28), infos[Sunday].Date)
}

func TestWeek_Years(t *testing.T) {
	assert.Equal(t, []int{2025}, WeekOf(date(2025, 6, 4), time.Monday).Years())
	assert.Equal(t, []int{2025, 2026}, WeekOf(date(2025, 12, 31), time.Monday).Years())
}
