package timesheet

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/highspring/timesheets/pkg/user"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
)

// HighHoursThreshold is the weekly total above which submission needs explicit confirmation.
const HighHoursThreshold = 60.0

var (
	ErrNotEditable       = errors.New("timesheet can no longer be edited")
	ErrEmptyTimesheet    = errors.New("Cannot submit an empty timesheet. Add at least one project row.")
	ErrZeroHours         = errors.New("Cannot submit a timesheet with zero hours. Please log your time.")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrCancelled         = errors.New("cancelled")
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Editable reports whether entries may change in this state.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusRejected
}

// Label renders "Draft", "Submitted" and so on.
func (s Status) Label() string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(string(s))
	return strings.ToUpper(lower[:1]) + lower[1:]
}

var transitions = map[Status][]Status{
	StatusDraft:     {StatusSubmitted},
	StatusRejected:  {StatusSubmitted},
	StatusSubmitted: {StatusApproved, StatusRejected},
}

func (s Status) CanTransitionTo(to Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanEdit is true when no timesheet exists yet or the existing one is a draft or rejected.
func CanEdit(ts *Timesheet) bool {
	return ts == nil || ts.Status.Editable()
}

type SubmitCheck struct {
	TotalHours        float64
	NeedsConfirmation bool
}

func (c SubmitCheck) Prompt() string {
	return fmt.Sprintf("Total hours (%s) exceed %s. Are you sure you want to submit?",
		strconv.FormatFloat(c.TotalHours, 'f', -1, 64), strconv.FormatFloat(HighHoursThreshold, 'f', -1, 64))
}

// CheckSubmit runs the client side pre-checks of a submission. The total is
// recomputed from the entries rather than taken from the server.
func CheckSubmit(ts Timesheet) (SubmitCheck, error) {
	if !ts.Status.CanTransitionTo(StatusSubmitted) {
		return SubmitCheck{}, fmt.Errorf("%w: %s timesheet cannot be submitted", ErrInvalidTransition, ts.Status.Label())
	}
	if len(ts.TimeEntries) == 0 {
		return SubmitCheck{}, ErrEmptyTimesheet
	}
	total := TotalHours(ts.TimeEntries)
	if total <= 0 {
		return SubmitCheck{}, ErrZeroHours
	}
	return SubmitCheck{TotalHours: total, NeedsConfirmation: total > HighHoursThreshold}, nil
}

type Action string

const (
	ActionCreate           Action = "create"
	ActionCopyPreviousWeek Action = "copy-previous-week"
	ActionEdit             Action = "edit"
	ActionSubmit           Action = "submit"
	ActionApprove          Action = "approve"
	ActionReject           Action = "reject"
)

// AvailableActions lists what may be offered for ts. Owners act on their own
// timesheets; reviewers act on submitted ones.
func AvailableActions(ts *Timesheet, caps user.Capabilities, owner bool) []Action {
	var actions []Action
	if ts == nil {
		return []Action{ActionCreate, ActionCopyPreviousWeek}
	}
	if owner && ts.Status.Editable() {
		actions = append(actions, ActionEdit, ActionCopyPreviousWeek, ActionSubmit)
	}
	if caps.CanApprove && ts.Status == StatusSubmitted {
		actions = append(actions, ActionApprove, ActionReject)
	}
	return actions
}
