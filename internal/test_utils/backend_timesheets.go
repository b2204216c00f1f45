package test_utils

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/highspring/timesheets/internal/rest"
)

// SeedTimesheet stores a timesheet directly. Hours are given per entry as
// Monday to Sunday values. It returns the timesheet id.
func (b *Backend) SeedTimesheet(userId int, weekStart string, status string, entries ...SeedEntry) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	start, err := time.Parse(time.DateOnly, weekStart)
	if err != nil {
		panic(err)
	}
	ts := &backendTimesheet{Id: b.newId(), UserId: userId, WeekStart: start, Status: status}
	for _, e := range entries {
		entry := &backendEntry{Id: b.newId(), ProjectId: e.ProjectId, Description: e.Description, Billable: e.Billable}
		copy(entry.Hours[:], e.Hours)
		ts.Entries = append(ts.Entries, entry)
	}
	b.timesheets[ts.Id] = ts
	return ts.Id
}

type SeedEntry struct {
	ProjectId   int
	Description string
	Billable    bool
	Hours       []float64
}

// TimesheetStatus returns the stored status of a timesheet, empty when it does not exist.
func (b *Backend) TimesheetStatus(id int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ts, ok := b.timesheets[id]; ok {
		return ts.Status
	}
	return ""
}

// TimesheetCount counts userId's timesheets starting on weekStart.
func (b *Backend) TimesheetCount(userId int, weekStart string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, ts := range b.timesheets {
		if ts.UserId == userId && ts.WeekStart.Format(time.DateOnly) == weekStart {
			count++
		}
	}
	return count
}

func (b *Backend) findWeek(userId int, start time.Time) *backendTimesheet {
	for _, id := range sortedKeys(b.timesheets) {
		ts := b.timesheets[id]
		if ts.UserId == userId && ts.WeekStart.Equal(start) {
			return ts
		}
	}
	return nil
}

// loadTimesheet resolves the {id} path variable. Callers hold b.mu.
func (b *Backend) loadTimesheet(w http.ResponseWriter, r *http.Request, ownerOnly bool) (*backendTimesheet, bool) {
	ts, ok := b.timesheets[pathId(r, "id")]
	p := currentPrincipal(r)
	if !ok || !b.canView(p, ts.UserId) {
		rest.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Timesheet not found")
		return nil, false
	}
	if ownerOnly && ts.UserId != p.UserId {
		rest.WriteError(w, http.StatusForbidden, "FORBIDDEN", "Only the owner can change this timesheet")
		return nil, false
	}
	return ts, true
}

func (b *Backend) listTimesheets(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := currentPrincipal(r)
	var own []*backendTimesheet
	for _, ts := range b.timesheets {
		if ts.UserId == p.UserId {
			own = append(own, ts)
		}
	}
	sort.Slice(own, func(i, j int) bool {
		if own[i].WeekStart.Equal(own[j].WeekStart) {
			return own[i].Id < own[j].Id
		}
		return own[i].WeekStart.After(own[j].WeekStart)
	})
	page, meta := paginate(own, queryInt(r, "page", 1), queryInt(r, "limit", 10))
	items := make([]map[string]any, 0, len(page))
	for _, ts := range page {
		items = append(items, b.timesheetJSON(ts, false))
	}
	rest.WritePage(w, items, meta)
}

func (b *Backend) getTimesheet(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.loadTimesheet(w, r, false)
	if !ok {
		return
	}
	rest.WriteData(w, http.StatusOK, b.timesheetJSON(ts, true))
}

func (b *Backend) createTimesheet(w http.ResponseWriter, r *http.Request) {
	var body struct {
		WeekStartDate string `json:"weekStartDate"`
		WeekEndDate   string `json:"weekEndDate"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	start, err := time.Parse(time.DateOnly, body.WeekStartDate)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "weekStartDate must be a date")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := currentPrincipal(r)
	if b.findWeek(p.UserId, start) != nil {
		rest.WriteError(w, http.StatusConflict, "CONFLICT", "Timesheet already exists for this week")
		return
	}
	ts := &backendTimesheet{Id: b.newId(), UserId: p.UserId, WeekStart: start, Status: "DRAFT"}
	b.timesheets[ts.Id] = ts
	rest.WriteData(w, http.StatusCreated, b.timesheetJSON(ts, true))
}

func (b *Backend) deleteTimesheet(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.loadTimesheet(w, r, true)
	if !ok {
		return
	}
	if ts.Status != "DRAFT" {
		rest.WriteError(w, http.StatusBadRequest, "NOT_EDITABLE", "Only draft timesheets can be deleted")
		return
	}
	delete(b.timesheets, ts.Id)
	rest.WriteData(w, http.StatusOK, map[string]string{"message": "Timesheet deleted"})
}

func (b *Backend) submitTimesheet(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.loadTimesheet(w, r, true)
	if !ok {
		return
	}
	if !ts.editable() {
		rest.WriteError(w, http.StatusBadRequest, "INVALID_STATUS", fmt.Sprintf("Cannot submit a %s timesheet", ts.Status))
		return
	}
	if len(ts.Entries) == 0 {
		rest.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Cannot submit an empty timesheet")
		return
	}
	ts.Status = "SUBMITTED"
	ts.RejectedReason = ""
	owner := b.users[ts.UserId]
	for _, managerId := range owner.ManagerIds {
		b.notify(managerId, "TIMESHEET_SUBMITTED", fmt.Sprintf("%s submitted a timesheet for %s", owner.Name, ts.WeekStart.Format(time.DateOnly)))
	}
	rest.WriteData(w, http.StatusOK, b.timesheetJSON(ts, true))
}

func (b *Backend) copyPreviousWeek(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TargetWeekStart string `json:"targetWeekStart"`
		Force           bool   `json:"force"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	target, err := time.Parse(time.DateOnly, body.TargetWeekStart)
	if err != nil {
		rest.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "targetWeekStart must be a date")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := currentPrincipal(r)
	if allowed, _ := b.settings["allowCopyWeek"].(bool); !allowed {
		rest.WriteError(w, http.StatusForbidden, "FORBIDDEN", "Copying the previous week is disabled")
		return
	}
	previous := b.findWeek(p.UserId, target.AddDate(0, 0, -7))
	if previous == nil || len(previous.Entries) == 0 {
		rest.WriteError(w, http.StatusNotFound, "NOT_FOUND", "No timesheet found for the previous week")
		return
	}

	ts := b.findWeek(p.UserId, target)
	switch {
	case ts != nil && !body.Force:
		rest.WriteError(w, http.StatusConflict, "CONFLICT", "A timesheet already exists for this week")
		return
	case ts != nil && !ts.editable():
		rest.WriteError(w, http.StatusBadRequest, "NOT_EDITABLE", "Timesheet is not editable")
		return
	case ts == nil:
		ts = &backendTimesheet{Id: b.newId(), UserId: p.UserId, WeekStart: target, Status: "DRAFT"}
		b.timesheets[ts.Id] = ts
	}

	// rows only; hours are never copied
	ts.Entries = nil
	for _, e := range previous.Entries {
		ts.Entries = append(ts.Entries, &backendEntry{
			Id:          b.newId(),
			ProjectId:   e.ProjectId,
			Description: e.Description,
			Billable:    e.Billable,
		})
	}
	rest.WriteData(w, http.StatusCreated, b.timesheetJSON(ts, true))
}

func (b *Backend) listEntries(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.loadTimesheet(w, r, false)
	if !ok {
		return
	}
	entries := make([]map[string]any, 0, len(ts.Entries))
	for _, e := range ts.Entries {
		entries = append(entries, b.entryJSON(ts, e))
	}
	rest.WriteData(w, http.StatusOK, entries)
}

func (b *Backend) addEntry(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectId   int    `json:"projectId"`
		Billable    bool   `json:"billable"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.loadTimesheet(w, r, true)
	if !ok {
		return
	}
	if !ts.editable() {
		rest.WriteError(w, http.StatusBadRequest, "NOT_EDITABLE", "Timesheet is not editable")
		return
	}
	p, found := b.projects[body.ProjectId]
	if !found || p.Status != "ACTIVE" {
		rest.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Project is not available")
		return
	}
	e := &backendEntry{Id: b.newId(), ProjectId: body.ProjectId, Billable: body.Billable, Description: body.Description}
	ts.Entries = append(ts.Entries, e)
	rest.WriteData(w, http.StatusCreated, b.entryJSON(ts, e))
}

func (b *Backend) updateEntry(w http.ResponseWriter, r *http.Request) {
	var body map[string]json.RawMessage
	if !decodeBody(w, r, &body) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.loadTimesheet(w, r, true)
	if !ok {
		return
	}
	if !ts.editable() {
		rest.WriteError(w, http.StatusBadRequest, "NOT_EDITABLE", "Timesheet is not editable")
		return
	}
	_, e := ts.entry(pathId(r, "entryId"))
	if e == nil {
		rest.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Entry not found")
		return
	}

	updated := *e
	for i, key := range dayKeys {
		if raw, ok := body[key+"Hours"]; ok {
			if err := json.Unmarshal(raw, &updated.Hours[i]); err != nil || updated.Hours[i] < 0 || updated.Hours[i] > 24 {
				rest.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Hours must be between 0 and 24")
				return
			}
		}
		if raw, ok := body[key+"Note"]; ok {
			_ = json.Unmarshal(raw, &updated.Notes[i])
		}
	}
	if raw, ok := body["description"]; ok {
		_ = json.Unmarshal(raw, &updated.Description)
	}
	if raw, ok := body["billable"]; ok {
		_ = json.Unmarshal(raw, &updated.Billable)
	}
	if raw, ok := body["projectId"]; ok {
		_ = json.Unmarshal(raw, &updated.ProjectId)
	}
	*e = updated
	rest.WriteData(w, http.StatusOK, b.entryJSON(ts, e))
}

func (b *Backend) deleteEntry(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.loadTimesheet(w, r, true)
	if !ok {
		return
	}
	if !ts.editable() {
		rest.WriteError(w, http.StatusBadRequest, "NOT_EDITABLE", "Timesheet is not editable")
		return
	}
	i, e := ts.entry(pathId(r, "entryId"))
	if e == nil {
		rest.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Entry not found")
		return
	}
	ts.Entries = append(ts.Entries[:i], ts.Entries[i+1:]...)
	rest.WriteData(w, http.StatusOK, map[string]string{"message": "Entry deleted"})
}
