package timesheet

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/highspring/timesheets/pkg/calendar"
	"github.com/highspring/timesheets/pkg/project"
	"github.com/highspring/timesheets/pkg/user"
)

// TimeEntry is one project row of a timesheet with a value per day column.
type TimeEntry struct {
	Id          int
	TimesheetId int
	ProjectId   int
	Project     *project.Project
	Description string
	Billable    bool
	Hours       [calendar.DaysInWeek]float64
	Notes       [calendar.DaysInWeek]string
}

type Timesheet struct {
	Id             int         `json:"id"`
	OrganisationId int         `json:"organisationId,omitempty"`
	UserId         int         `json:"userId"`
	WeekStartDate  string      `json:"weekStartDate"`
	WeekEndDate    string      `json:"weekEndDate"`
	Status         Status      `json:"status"`
	TotalHours     float64     `json:"totalHours"`
	BillableHours  float64     `json:"billableHours"`
	ApprovedById   *int        `json:"approvedById,omitempty"`
	ApprovedAt     *string     `json:"approvedAt,omitempty"`
	RejectedReason string      `json:"rejectedReason,omitempty"`
	User           *user.User  `json:"user,omitempty"`
	TimeEntries    []TimeEntry `json:"timeEntries,omitempty"`
}

// StartsOn reports whether the timesheet covers week. The server may append a
// time part to the date, so only the date prefix is compared.
func (t Timesheet) StartsOn(week calendar.Week) bool {
	return strings.HasPrefix(t.WeekStartDate, week.StartISO())
}

func (t Timesheet) Week(weekStartDay time.Weekday) (calendar.Week, error) {
	return calendar.ParseWeek(t.WeekStartDate, weekStartDay)
}

func (t Timesheet) Entry(id int) (TimeEntry, bool) {
	for _, e := range t.TimeEntries {
		if e.Id == id {
			return e, true
		}
	}
	return TimeEntry{}, false
}

type CreateRequest struct {
	WeekStartDate string `json:"weekStartDate" validate:"required,isodate"`
	WeekEndDate   string `json:"weekEndDate" validate:"required,isodate"`
}

type CopyWeekRequest struct {
	TargetWeekStart string `json:"targetWeekStart" validate:"required,isodate"`
	Force           bool   `json:"force"`
}

type NewEntryRequest struct {
	ProjectId   int    `json:"projectId" validate:"required,gt=0"`
	Billable    bool   `json:"billable"`
	Description string `json:"description,omitempty"`
}

// EntryPatch is a partial entry update. Only set fields are sent.
type EntryPatch struct {
	Hours       map[calendar.Day]float64
	Notes       map[calendar.Day]string
	Description *string
	Billable    *bool
	ProjectId   *int
}

func (p EntryPatch) MarshalJSON() ([]byte, error) {
	body := make(map[string]any, len(p.Hours)+len(p.Notes)+3)
	for d, h := range p.Hours {
		body[d.Key()+"Hours"] = h
	}
	for d, n := range p.Notes {
		body[d.Key()+"Note"] = n
	}
	if p.Description != nil {
		body["description"] = *p.Description
	}
	if p.Billable != nil {
		body["billable"] = *p.Billable
	}
	if p.ProjectId != nil {
		body["projectId"] = *p.ProjectId
	}
	return json.Marshal(body)
}

type entryWire struct {
	Id          int              `json:"id"`
	TimesheetId int              `json:"timesheetId"`
	ProjectId   int              `json:"projectId"`
	Project     *project.Project `json:"project,omitempty"`
	Description string           `json:"description,omitempty"`
	Billable    bool             `json:"billable"`
	MonHours    float64          `json:"monHours"`
	TueHours    float64          `json:"tueHours"`
	WedHours    float64          `json:"wedHours"`
	ThuHours    float64          `json:"thuHours"`
	FriHours    float64          `json:"friHours"`
	SatHours    float64          `json:"satHours"`
	SunHours    float64          `json:"sunHours"`
	MonNote     string           `json:"monNote,omitempty"`
	TueNote     string           `json:"tueNote,omitempty"`
	WedNote     string           `json:"wedNote,omitempty"`
	ThuNote     string           `json:"thuNote,omitempty"`
	FriNote     string           `json:"friNote,omitempty"`
	SatNote     string           `json:"satNote,omitempty"`
	SunNote     string           `json:"sunNote,omitempty"`
	TotalHours  float64          `json:"totalHours"`
}

func (w *entryWire) hours() [calendar.DaysInWeek]*float64 {
	return [calendar.DaysInWeek]*float64{&w.MonHours, &w.TueHours, &w.WedHours, &w.ThuHours, &w.FriHours, &w.SatHours, &w.SunHours}
}

func (w *entryWire) notes() [calendar.DaysInWeek]*string {
	return [calendar.DaysInWeek]*string{&w.MonNote, &w.TueNote, &w.WedNote, &w.ThuNote, &w.FriNote, &w.SatNote, &w.SunNote}
}

func (e TimeEntry) MarshalJSON() ([]byte, error) {
	w := entryWire{
		Id:          e.Id,
		TimesheetId: e.TimesheetId,
		ProjectId:   e.ProjectId,
		Project:     e.Project,
		Description: e.Description,
		Billable:    e.Billable,
		TotalHours:  e.Total(),
	}
	hours, notes := w.hours(), w.notes()
	for _, d := range calendar.Days {
		*hours[d] = e.Hours[d]
		*notes[d] = e.Notes[d]
	}
	return json.Marshal(w)
}

// UnmarshalJSON ignores the wire totalHours; Total always sums the day values.
func (e *TimeEntry) UnmarshalJSON(data []byte) error {
	var w entryWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*e = TimeEntry{
		Id:          w.Id,
		TimesheetId: w.TimesheetId,
		ProjectId:   w.ProjectId,
		Project:     w.Project,
		Description: w.Description,
		Billable:    w.Billable,
	}
	hours, notes := w.hours(), w.notes()
	for _, d := range calendar.Days {
		e.Hours[d] = *hours[d]
		e.Notes[d] = *notes[d]
	}
	return nil
}
