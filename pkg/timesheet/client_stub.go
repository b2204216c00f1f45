package timesheet

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/highspring/timesheets/internal/rest"
	"github.com/highspring/timesheets/pkg/calendar"
)

// StubClient is an in-memory Client for a single user.
type StubClient struct {
	mu         sync.RWMutex
	nextId     int
	data       map[int]Timesheet
	calls      map[string]int
	failures   map[string]error
	copyResult []TimeEntry
}

func NewStubClient() *StubClient {
	s := &StubClient{}
	s.Reset()
	return s
}

func (s *StubClient) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextId = 0
	s.data = map[int]Timesheet{}
	s.calls = map[string]int{}
	s.failures = map[string]error{}
	s.copyResult = nil
}

// Put stores ts as is, assigning an id when it has none.
func (s *StubClient) Put(ts Timesheet) Timesheet {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ts.Id == 0 {
		s.nextId++
		ts.Id = s.nextId
	} else if ts.Id > s.nextId {
		s.nextId = ts.Id
	}
	for i := range ts.TimeEntries {
		ts.TimeEntries[i].TimesheetId = ts.Id
		if ts.TimeEntries[i].Id == 0 {
			s.nextId++
			ts.TimeEntries[i].Id = s.nextId
		}
	}
	s.data[ts.Id] = withTotals(ts)
	return s.data[ts.Id]
}

// FailNext makes the next call of method return err.
func (s *StubClient) FailNext(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = err
}

// Calls returns how often method was called.
func (s *StubClient) Calls(method string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[method]
}

func (s *StubClient) call(method string) error {
	s.calls[method]++
	if err, ok := s.failures[method]; ok {
		delete(s.failures, method)
		return err
	}
	return nil
}

func (s *StubClient) List(ctx context.Context, page, limit int) (rest.Page[Timesheet], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("List"); err != nil {
		return rest.Page[Timesheet]{}, err
	}
	all := make([]Timesheet, 0, len(s.data))
	for _, ts := range s.data {
		all = append(all, ts)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].WeekStartDate > all[j].WeekStartDate })

	from := min((page-1)*limit, len(all))
	to := min(from+limit, len(all))
	items := make([]Timesheet, 0, to-from)
	for _, ts := range all[from:to] {
		ts.TimeEntries = nil
		items = append(items, ts)
	}
	return rest.Page[Timesheet]{Items: items, Meta: rest.PageMeta{Total: len(all), Page: page, Limit: limit}}, nil
}

func (s *StubClient) Get(ctx context.Context, id int) (Timesheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("Get"); err != nil {
		return Timesheet{}, err
	}
	ts, ok := s.data[id]
	if !ok {
		return Timesheet{}, notFound()
	}
	return clone(ts), nil
}

func (s *StubClient) Create(ctx context.Context, req CreateRequest) (Timesheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("Create"); err != nil {
		return Timesheet{}, err
	}
	if _, ok := s.findByStart(req.WeekStartDate); ok {
		return Timesheet{}, &rest.APIError{StatusCode: http.StatusConflict, Code: "CONFLICT", Message: "Timesheet already exists for this week"}
	}
	s.nextId++
	ts := Timesheet{Id: s.nextId, UserId: 1, WeekStartDate: req.WeekStartDate, WeekEndDate: req.WeekEndDate, Status: StatusDraft}
	s.data[ts.Id] = ts
	return ts, nil
}

func (s *StubClient) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("Delete"); err != nil {
		return err
	}
	if _, ok := s.data[id]; !ok {
		return notFound()
	}
	delete(s.data, id)
	return nil
}

func (s *StubClient) Submit(ctx context.Context, id int) (Timesheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("Submit"); err != nil {
		return Timesheet{}, err
	}
	ts, ok := s.data[id]
	if !ok {
		return Timesheet{}, notFound()
	}
	if !ts.Status.CanTransitionTo(StatusSubmitted) {
		return Timesheet{}, &rest.APIError{StatusCode: http.StatusBadRequest, Code: "INVALID_STATUS", Message: "Timesheet cannot be submitted"}
	}
	ts.Status = StatusSubmitted
	ts.RejectedReason = ""
	s.data[id] = ts
	return clone(ts), nil
}

// SetCopySource sets the rows the previous week holds for CopyPreviousWeek.
func (s *StubClient) SetCopySource(entries []TimeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.copyResult = entries
}

func (s *StubClient) CopyPreviousWeek(ctx context.Context, req CopyWeekRequest) (Timesheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("CopyPreviousWeek"); err != nil {
		return Timesheet{}, err
	}
	if len(s.copyResult) == 0 {
		return Timesheet{}, &rest.APIError{StatusCode: http.StatusNotFound, Code: "NOT_FOUND", Message: "No timesheet found for the previous week"}
	}
	existing, ok := s.findByStart(req.TargetWeekStart)
	if ok && !req.Force {
		return Timesheet{}, &rest.APIError{StatusCode: http.StatusConflict, Code: "CONFLICT", Message: "A timesheet already exists for this week"}
	}
	if !ok {
		s.nextId++
		start, _ := time.Parse(time.DateOnly, req.TargetWeekStart)
		existing = Timesheet{
			Id:            s.nextId,
			UserId:        1,
			WeekStartDate: req.TargetWeekStart,
			WeekEndDate:   start.AddDate(0, 0, calendar.DaysInWeek-1).Format(time.DateOnly),
			Status:        StatusDraft,
		}
	}
	existing.TimeEntries = nil
	for _, e := range s.copyResult {
		s.nextId++
		existing.TimeEntries = append(existing.TimeEntries, TimeEntry{
			Id:          s.nextId,
			TimesheetId: existing.Id,
			ProjectId:   e.ProjectId,
			Description: e.Description,
			Billable:    e.Billable,
		})
	}
	s.data[existing.Id] = withTotals(existing)
	return clone(s.data[existing.Id]), nil
}

func (s *StubClient) Entries(ctx context.Context, id int) ([]TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("Entries"); err != nil {
		return nil, err
	}
	ts, ok := s.data[id]
	if !ok {
		return nil, notFound()
	}
	return clone(ts).TimeEntries, nil
}

func (s *StubClient) AddEntry(ctx context.Context, id int, req NewEntryRequest) (TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("AddEntry"); err != nil {
		return TimeEntry{}, err
	}
	ts, ok := s.data[id]
	if !ok {
		return TimeEntry{}, notFound()
	}
	s.nextId++
	e := TimeEntry{Id: s.nextId, TimesheetId: id, ProjectId: req.ProjectId, Billable: req.Billable, Description: req.Description}
	ts.TimeEntries = append(ts.TimeEntries, e)
	s.data[id] = withTotals(ts)
	return e, nil
}

func (s *StubClient) UpdateEntry(ctx context.Context, id int, entryId int, patch EntryPatch) (TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("UpdateEntry"); err != nil {
		return TimeEntry{}, err
	}
	ts, ok := s.data[id]
	if !ok {
		return TimeEntry{}, notFound()
	}
	ts = clone(ts)
	for i, e := range ts.TimeEntries {
		if e.Id != entryId {
			continue
		}
		for d, h := range patch.Hours {
			e.Hours[d] = h
		}
		for d, n := range patch.Notes {
			e.Notes[d] = n
		}
		if patch.Description != nil {
			e.Description = *patch.Description
		}
		if patch.Billable != nil {
			e.Billable = *patch.Billable
		}
		if patch.ProjectId != nil {
			e.ProjectId = *patch.ProjectId
		}
		ts.TimeEntries[i] = e
		s.data[id] = withTotals(ts)
		return e, nil
	}
	return TimeEntry{}, notFound()
}

func (s *StubClient) DeleteEntry(ctx context.Context, id int, entryId int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.call("DeleteEntry"); err != nil {
		return err
	}
	ts, ok := s.data[id]
	if !ok {
		return notFound()
	}
	kept := make([]TimeEntry, 0, len(ts.TimeEntries))
	for _, e := range ts.TimeEntries {
		if e.Id != entryId {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(ts.TimeEntries) {
		return notFound()
	}
	ts.TimeEntries = kept
	s.data[id] = withTotals(ts)
	return nil
}

func (s *StubClient) findByStart(weekStart string) (Timesheet, bool) {
	for _, ts := range s.data {
		if ts.WeekStartDate == weekStart {
			return ts, true
		}
	}
	return Timesheet{}, false
}

func withTotals(ts Timesheet) Timesheet {
	ts.TotalHours = TotalHours(ts.TimeEntries)
	ts.BillableHours = BillableHours(ts.TimeEntries)
	return ts
}

func clone(ts Timesheet) Timesheet {
	if ts.TimeEntries != nil {
		ts.TimeEntries = append([]TimeEntry(nil), ts.TimeEntries...)
	}
	return ts
}

func notFound() error {
	return &rest.APIError{StatusCode: http.StatusNotFound, Code: "NOT_FOUND", Message: "Timesheet not found"}
}
