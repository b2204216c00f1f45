package test_utils

import (
	"slices"
	"time"
)

var dayKeys = [7]string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

type backendUser struct {
	Id             int
	OrganisationId int
	Name           string
	Email          string
	Password       string
	Role           string
	Department     string
	Status         string
	ManagerIds     []int
}

type backendProject struct {
	Id          int
	Code        string
	Name        string
	Client      string
	BudgetHours float64
	Status      string
	ManagerIds  []int
}

type backendEntry struct {
	Id          int
	ProjectId   int
	Description string
	Billable    bool
	Hours       [7]float64
	Notes       [7]string
}

func (e *backendEntry) total() float64 {
	var total float64
	for _, h := range e.Hours {
		total += h
	}
	return total
}

type backendTimesheet struct {
	Id             int
	UserId         int
	WeekStart      time.Time
	Status         string
	ApprovedById   int
	ApprovedAt     time.Time
	RejectedReason string
	Entries        []*backendEntry
}

func (t *backendTimesheet) totals() (total, billable float64) {
	for _, e := range t.Entries {
		total += e.total()
		if e.Billable {
			billable += e.total()
		}
	}
	return total, billable
}

func (t *backendTimesheet) editable() bool {
	return t.Status == "DRAFT" || t.Status == "REJECTED"
}

func (t *backendTimesheet) entry(id int) (int, *backendEntry) {
	for i, e := range t.Entries {
		if e.Id == id {
			return i, e
		}
	}
	return -1, nil
}

type backendHoliday struct {
	Id        int
	Name      string
	Date      string
	Recurring bool
}

type backendNotification struct {
	Id        int
	UserId    int
	Type      string
	Message   string
	Read      bool
	CreatedAt time.Time
}

// prisma style timestamps, as the production API sends dates
const wireTimestamp = "2006-01-02T15:04:05.000Z"

func (b *Backend) userJSON(u *backendUser) map[string]any {
	managers := make([]map[string]any, 0, len(u.ManagerIds))
	for _, id := range u.ManagerIds {
		if m, ok := b.users[id]; ok {
			managers = append(managers, map[string]any{"manager": map[string]any{"id": m.Id, "name": m.Name}})
		}
	}
	return map[string]any{
		"id":             u.Id,
		"organisationId": u.OrganisationId,
		"name":           u.Name,
		"email":          u.Email,
		"role":           u.Role,
		"department":     u.Department,
		"status":         u.Status,
		"managers":       managers,
	}
}

func (b *Backend) projectJSON(p *backendProject) map[string]any {
	managers := make([]map[string]any, 0, len(p.ManagerIds))
	for _, id := range p.ManagerIds {
		if m, ok := b.users[id]; ok {
			managers = append(managers, map[string]any{"manager": map[string]any{"id": m.Id, "name": m.Name}})
		}
	}
	return map[string]any{
		"id":             p.Id,
		"organisationId": 1,
		"code":           p.Code,
		"name":           p.Name,
		"client":         p.Client,
		"budgetHours":    p.BudgetHours,
		"usedHours":      b.usedHours(p.Id),
		"status":         p.Status,
		"managers":       managers,
	}
}

func (b *Backend) usedHours(projectId int) float64 {
	var used float64
	for _, ts := range b.timesheets {
		for _, e := range ts.Entries {
			if e.ProjectId == projectId {
				used += e.total()
			}
		}
	}
	return used
}

func (b *Backend) entryJSON(ts *backendTimesheet, e *backendEntry) map[string]any {
	out := map[string]any{
		"id":          e.Id,
		"timesheetId": ts.Id,
		"projectId":   e.ProjectId,
		"description": e.Description,
		"billable":    e.Billable,
		"totalHours":  e.total(),
	}
	for i, key := range dayKeys {
		out[key+"Hours"] = e.Hours[i]
		if e.Notes[i] != "" {
			out[key+"Note"] = e.Notes[i]
		}
	}
	if p, ok := b.projects[e.ProjectId]; ok {
		out["project"] = b.projectJSON(p)
	}
	return out
}

func (b *Backend) timesheetJSON(ts *backendTimesheet, withEntries bool) map[string]any {
	total, billable := ts.totals()
	out := map[string]any{
		"id":             ts.Id,
		"organisationId": 1,
		"userId":         ts.UserId,
		"weekStartDate":  ts.WeekStart.Format(wireTimestamp),
		"weekEndDate":    ts.WeekStart.AddDate(0, 0, 6).Format(wireTimestamp),
		"status":         ts.Status,
		"totalHours":     total,
		"billableHours":  billable,
	}
	if ts.ApprovedById != 0 {
		out["approvedById"] = ts.ApprovedById
		out["approvedAt"] = ts.ApprovedAt.UTC().Format(wireTimestamp)
	}
	if ts.RejectedReason != "" {
		out["rejectedReason"] = ts.RejectedReason
	}
	if u, ok := b.users[ts.UserId]; ok {
		out["user"] = b.userJSON(u)
	}
	if withEntries {
		entries := make([]map[string]any, 0, len(ts.Entries))
		for _, e := range ts.Entries {
			entries = append(entries, b.entryJSON(ts, e))
		}
		out["timeEntries"] = entries
	}
	return out
}

// manages reports whether managerId is a direct manager of userId.
func (b *Backend) manages(managerId, userId int) bool {
	u, ok := b.users[userId]
	return ok && slices.Contains(u.ManagerIds, managerId)
}

// canView reports whether the principal may read userId's timesheets.
func (b *Backend) canView(p principal, userId int) bool {
	return p.UserId == userId || p.Role == "ADMIN" || (p.Role == "MANAGER" && b.manages(p.UserId, userId))
}

func (b *Backend) notify(userId int, kind, message string) {
	id := b.newId()
	b.notifications[id] = &backendNotification{Id: id, UserId: userId, Type: kind, Message: message, CreatedAt: b.clock.Now()}
}
