package settings

import (
	"time"

	"github.com/highspring/timesheets/pkg/calendar"
)

// OrgSettings is the organization wide policy. Only administrators change it.
type OrgSettings struct {
	Id                int     `json:"id,omitempty"`
	OrganisationId    int     `json:"organisationId,omitempty"`
	WorkWeekStart     string  `json:"workWeekStart"`
	StandardHours     float64 `json:"standardHours"`
	TimeFormat        string  `json:"timeFormat"`
	TimeIncrement     int     `json:"timeIncrement"`
	MaxHoursPerDay    float64 `json:"maxHoursPerDay"`
	MaxHoursPerWeek   float64 `json:"maxHoursPerWeek"`
	RequireApproval   bool    `json:"requireApproval"`
	AllowBackdated    bool    `json:"allowBackdated"`
	EnableOvertime    bool    `json:"enableOvertime"`
	MandatoryDesc     bool    `json:"mandatoryDesc"`
	AllowCopyWeek     bool    `json:"allowCopyWeek"`
	DailyReminderTime string  `json:"dailyReminderTime,omitempty"`
	WeeklyDeadline    string  `json:"weeklyDeadline,omitempty"`
	PayrollType       string  `json:"payrollType,omitempty"`
	PmType            string  `json:"pmType,omitempty"`
}

// Defaults apply until the organization settings are loaded.
func Defaults() OrgSettings {
	return OrgSettings{
		WorkWeekStart:   "monday",
		StandardHours:   8,
		TimeFormat:      "decimal",
		TimeIncrement:   15,
		MaxHoursPerDay:  24,
		MaxHoursPerWeek: 168,
		RequireApproval: true,
		AllowBackdated:  true,
		EnableOvertime:  false,
		MandatoryDesc:   false,
		AllowCopyWeek:   true,
	}
}

// WeekStartDay falls back to Monday for unknown values.
func (s OrgSettings) WeekStartDay() time.Weekday {
	wd, err := calendar.ParseWeekday(s.WorkWeekStart)
	if err != nil {
		return time.Monday
	}
	return wd
}

// DayLimit is the per day maximum, 0 meaning unbounded.
func (s OrgSettings) DayLimit() float64 {
	if s.MaxHoursPerDay <= 0 {
		return 0
	}
	return s.MaxHoursPerDay
}

// WeekLimit is the per week maximum, 0 meaning unbounded.
func (s OrgSettings) WeekLimit() float64 {
	if s.MaxHoursPerWeek <= 0 {
		return 0
	}
	return s.MaxHoursPerWeek
}

// UpdateRequest carries only the settings to change.
type UpdateRequest struct {
	WorkWeekStart     *string  `json:"workWeekStart,omitempty" validate:"omitempty,oneof=monday sunday"`
	StandardHours     *float64 `json:"standardHours,omitempty" validate:"omitempty,gt=0,lte=24"`
	TimeFormat        *string  `json:"timeFormat,omitempty" validate:"omitempty,oneof=decimal hhmm"`
	TimeIncrement     *int     `json:"timeIncrement,omitempty" validate:"omitempty,oneof=15 30 60"`
	MaxHoursPerDay    *float64 `json:"maxHoursPerDay,omitempty" validate:"omitempty,gt=0,lte=24"`
	MaxHoursPerWeek   *float64 `json:"maxHoursPerWeek,omitempty" validate:"omitempty,gt=0,lte=168"`
	RequireApproval   *bool    `json:"requireApproval,omitempty"`
	AllowBackdated    *bool    `json:"allowBackdated,omitempty"`
	EnableOvertime    *bool    `json:"enableOvertime,omitempty"`
	MandatoryDesc     *bool    `json:"mandatoryDesc,omitempty"`
	AllowCopyWeek     *bool    `json:"allowCopyWeek,omitempty"`
	DailyReminderTime *string  `json:"dailyReminderTime,omitempty" validate:"omitempty,clocktime"`
	WeeklyDeadline    *string  `json:"weeklyDeadline,omitempty" validate:"omitempty,weekday"`
	PayrollType       *string  `json:"payrollType,omitempty"`
	PmType            *string  `json:"pmType,omitempty"`
}
