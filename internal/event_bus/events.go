package event_bus

// Published as "session.authenticated" after login, sign-up or a restored session.
type SessionAuthenticated struct {
	UserId int
	Role   string
}

// Published as "session.invalidated" when credentials are dropped.
type SessionInvalidated struct {
	Reason string
}

// Published as "timesheet.changed" after any timesheet or entry mutation.
type TimesheetChanged struct {
	TimesheetId int
	Action      string
}

// Published as "timesheet.reviewed" after a manager approved or rejected a timesheet.
type TimesheetReviewed struct {
	TimesheetId int
	Status      string
	Reason      string
}

// Published as "user.changed" after a user was created, updated or deleted.
type UserChanged struct {
	UserId int
	Action string
}

// Published as "project.changed".
type ProjectChanged struct {
	ProjectId int
	Action    string
}
