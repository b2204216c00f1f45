package validator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Name     string  `validate:"required"`
	Date     string  `validate:"isodate"`
	Reminder *string `validate:"omitempty,clocktime"`
	Start    string  `validate:"omitempty,weekday"`
	Hours    float64 `validate:"gte=0,lte=24"`
}

func TestStruct(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		reminder := "17:00"
		err := Struct(sample{Name: "x", Date: "2025-01-13", Reminder: &reminder, Start: "monday", Hours: 8})
		assert.NoError(t, err)
	})

	t.Run("collects every failure", func(t *testing.T) {
		reminder := "25:00"
		err := Struct(sample{Date: "13/01/2025", Reminder: &reminder, Start: "someday", Hours: 25})

		assert.True(t, errors.Is(err, ErrInvalid))
		assert.Contains(t, err.Error(), "Name is required")
		assert.Contains(t, err.Error(), "Date must be a date in YYYY-MM-DD format")
		assert.Contains(t, err.Error(), "Reminder must be a time in HH:MM format")
		assert.Contains(t, err.Error(), "Start failed weekday validation")
		assert.Contains(t, err.Error(), "Hours must be at most 24")
	})
}
