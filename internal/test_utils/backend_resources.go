package test_utils

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/highspring/timesheets/internal/rest"
)

// hourly rate the reference backend bills for revenue figures
const reportRate = 100.0

// --- approvals ---

// reviewable lists the timesheets the principal may review, in id order. Callers hold b.mu.
func (b *Backend) reviewable(p principal) []*backendTimesheet {
	var out []*backendTimesheet
	for _, id := range sortedKeys(b.timesheets) {
		ts := b.timesheets[id]
		if ts.UserId == p.UserId {
			continue
		}
		if p.Role == "ADMIN" || b.manages(p.UserId, ts.UserId) {
			out = append(out, ts)
		}
	}
	return out
}

func (b *Backend) listApprovals(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "MANAGER", "ADMIN") {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	var pending []*backendTimesheet
	for _, ts := range b.reviewable(currentPrincipal(r)) {
		if ts.Status == "SUBMITTED" {
			pending = append(pending, ts)
		}
	}
	page, meta := paginate(pending, queryInt(r, "page", 1), queryInt(r, "limit", 10))
	items := make([]map[string]any, 0, len(page))
	for _, ts := range page {
		items = append(items, b.timesheetJSON(ts, true))
	}
	rest.WritePage(w, items, meta)
}

func (b *Backend) approvalStats(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "MANAGER", "ADMIN") {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := currentPrincipal(r)
	now := b.clock.Now().UTC()
	weekStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart = weekStart.AddDate(0, 0, -((int(weekStart.Weekday()) + 6) % 7))

	pending, approved := 0, 0
	var teamHours float64
	for _, ts := range b.reviewable(p) {
		switch {
		case ts.Status == "SUBMITTED":
			pending++
		case ts.Status == "APPROVED" && !ts.ApprovedAt.Before(weekStart):
			approved++
		}
		if ts.WeekStart.Equal(weekStart) {
			total, _ := ts.totals()
			teamHours += total
		}
	}
	members := 0
	for _, u := range b.users {
		if u.Id != p.UserId && (p.Role == "ADMIN" || b.manages(p.UserId, u.Id)) {
			members++
		}
	}
	rest.WriteData(w, http.StatusOK, map[string]any{
		"pendingCount":     pending,
		"approvedThisWeek": approved,
		"teamHours":        teamHours,
		"teamMembers":      members,
	})
}

// loadReviewable resolves a submitted timesheet the principal may review. Callers hold b.mu.
func (b *Backend) loadReviewable(w http.ResponseWriter, r *http.Request) (*backendTimesheet, bool) {
	p := currentPrincipal(r)
	ts, ok := b.timesheets[pathId(r, "id")]
	if !ok || !slices.Contains(b.reviewable(p), ts) {
		rest.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Timesheet not found")
		return nil, false
	}
	if ts.Status != "SUBMITTED" {
		rest.WriteError(w, http.StatusBadRequest, "INVALID_STATUS", fmt.Sprintf("Cannot review a %s timesheet", ts.Status))
		return nil, false
	}
	return ts, true
}

func (b *Backend) approve(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "MANAGER", "ADMIN") {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.loadReviewable(w, r)
	if !ok {
		return
	}
	ts.Status = "APPROVED"
	ts.ApprovedById = currentPrincipal(r).UserId
	ts.ApprovedAt = b.clock.Now()
	b.notify(ts.UserId, "TIMESHEET_APPROVED", fmt.Sprintf("Your timesheet for %s was approved", ts.WeekStart.Format(time.DateOnly)))
	rest.WriteData(w, http.StatusOK, b.timesheetJSON(ts, true))
}

func (b *Backend) reject(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "MANAGER", "ADMIN") {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Reason == "" {
		rest.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "A rejection reason is required")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ts, ok := b.loadReviewable(w, r)
	if !ok {
		return
	}
	ts.Status = "REJECTED"
	ts.RejectedReason = body.Reason
	b.notify(ts.UserId, "TIMESHEET_REJECTED", fmt.Sprintf("Your timesheet for %s was rejected: %s", ts.WeekStart.Format(time.DateOnly), body.Reason))
	rest.WriteData(w, http.StatusOK, b.timesheetJSON(ts, true))
}

// --- users and team ---

func (b *Backend) listUsers(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "MANAGER", "ADMIN") {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	orgId := currentPrincipal(r).OrgId
	var users []*backendUser
	for _, id := range sortedKeys(b.users) {
		if u := b.users[id]; u.OrganisationId == orgId {
			users = append(users, u)
		}
	}
	page, meta := paginate(users, queryInt(r, "page", 1), queryInt(r, "limit", 50))
	items := make([]map[string]any, 0, len(page))
	for _, u := range page {
		items = append(items, b.userJSON(u))
	}
	rest.WritePage(w, items, meta)
}

type userBody struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Password   *string `json:"password"`
	Role       *string `json:"role"`
	Department *string `json:"department"`
	Status     *string `json:"status"`
	ManagerIds []int   `json:"managerIds"`
}

func (body userBody) apply(u *backendUser) {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	set(&u.Name, body.Name)
	set(&u.Email, body.Email)
	set(&u.Password, body.Password)
	set(&u.Role, body.Role)
	set(&u.Department, body.Department)
	set(&u.Status, body.Status)
	if body.ManagerIds != nil {
		u.ManagerIds = body.ManagerIds
	}
}

func (b *Backend) createUser(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "ADMIN") {
		return
	}
	var body userBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Name == nil || body.Email == nil || body.Password == nil {
		rest.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name, email and password are required")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if u.Email == *body.Email {
			rest.WriteError(w, http.StatusConflict, "CONFLICT", "Email already in use")
			return
		}
	}
	u := &backendUser{Id: b.newId(), OrganisationId: currentPrincipal(r).OrgId, Role: "EMPLOYEE", Status: "ACTIVE"}
	body.apply(u)
	b.users[u.Id] = u
	rest.WriteData(w, http.StatusCreated, b.userJSON(u))
}

func (b *Backend) updateUser(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "ADMIN") {
		return
	}
	var body userBody
	if !decodeBody(w, r, &body) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[pathId(r, "id")]
	if !ok {
		rest.WriteError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}
	body.apply(u)
	rest.WriteData(w, http.StatusOK, b.userJSON(u))
}

// deleteUser deactivates the account; timesheets keep referencing it.
func (b *Backend) deleteUser(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "ADMIN") {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u, ok := b.users[pathId(r, "id")]
	if !ok {
		rest.WriteError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}
	u.Status = "INACTIVE"
	rest.WriteData(w, http.StatusOK, map[string]string{"message": "User deactivated"})
}

func (b *Backend) myReports(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	me := currentPrincipal(r).UserId
	items := []map[string]any{}
	for _, id := range sortedKeys(b.users) {
		if b.manages(me, id) {
			items = append(items, b.userJSON(b.users[id]))
		}
	}
	rest.WriteData(w, http.StatusOK, items)
}

func (b *Backend) myManagers(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	items := []map[string]any{}
	if u, ok := b.users[currentPrincipal(r).UserId]; ok {
		for _, id := range u.ManagerIds {
			if m, ok := b.users[id]; ok {
				items = append(items, b.userJSON(m))
			}
		}
	}
	rest.WriteData(w, http.StatusOK, items)
}

// --- projects ---

func (b *Backend) listProjects(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	projects := make([]*backendProject, 0, len(b.projects))
	for _, id := range sortedKeys(b.projects) {
		projects = append(projects, b.projects[id])
	}
	page, meta := paginate(projects, queryInt(r, "page", 1), queryInt(r, "limit", 50))
	items := make([]map[string]any, 0, len(page))
	for _, p := range page {
		items = append(items, b.projectJSON(p))
	}
	rest.WritePage(w, items, meta)
}

type projectBody struct {
	Code        *string  `json:"code"`
	Name        *string  `json:"name"`
	Client      *string  `json:"client"`
	BudgetHours *float64 `json:"budgetHours"`
	Status      *string  `json:"status"`
	ManagerIds  []int    `json:"managerIds"`
}

func (body projectBody) apply(p *backendProject) {
	if body.Code != nil {
		p.Code = *body.Code
	}
	if body.Name != nil {
		p.Name = *body.Name
	}
	if body.Client != nil {
		p.Client = *body.Client
	}
	if body.BudgetHours != nil {
		p.BudgetHours = *body.BudgetHours
	}
	if body.Status != nil {
		p.Status = *body.Status
	}
	if body.ManagerIds != nil {
		p.ManagerIds = body.ManagerIds
	}
}

func (b *Backend) createProject(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "MANAGER", "ADMIN") {
		return
	}
	var body projectBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Code == nil || body.Name == nil {
		rest.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Code and name are required")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.projects {
		if p.Code == *body.Code {
			rest.WriteError(w, http.StatusConflict, "CONFLICT", "Project code already in use")
			return
		}
	}
	p := &backendProject{Id: b.newId(), Status: "ACTIVE"}
	body.apply(p)
	b.projects[p.Id] = p
	rest.WriteData(w, http.StatusCreated, b.projectJSON(p))
}

func (b *Backend) updateProject(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "MANAGER", "ADMIN") {
		return
	}
	var body projectBody
	if !decodeBody(w, r, &body) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.projects[pathId(r, "id")]
	if !ok {
		rest.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Project not found")
		return
	}
	body.apply(p)
	rest.WriteData(w, http.StatusOK, b.projectJSON(p))
}

func (b *Backend) deleteProject(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "ADMIN") {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := pathId(r, "id")
	if _, ok := b.projects[id]; !ok {
		rest.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Project not found")
		return
	}
	if b.usedHours(id) > 0 {
		rest.WriteError(w, http.StatusConflict, "CONFLICT", "Project has logged hours")
		return
	}
	delete(b.projects, id)
	rest.WriteData(w, http.StatusOK, map[string]string{"message": "Project deleted"})
}

// --- holidays ---

func (b *Backend) listHolidays(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	year := r.URL.Query().Get("year")
	var holidays []*backendHoliday
	for _, id := range sortedKeys(b.holidays) {
		h := b.holidays[id]
		if year == "" || h.Recurring || h.Date[:4] == year {
			holidays = append(holidays, h)
		}
	}
	page, meta := paginate(holidays, queryInt(r, "page", 1), queryInt(r, "limit", 100))
	items := make([]map[string]any, 0, len(page))
	for _, h := range page {
		items = append(items, map[string]any{"id": h.Id, "organisationId": 1, "name": h.Name, "date": h.Date + "T00:00:00.000Z", "recurring": h.Recurring})
	}
	rest.WritePage(w, items, meta)
}

func (b *Backend) createHoliday(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "ADMIN") {
		return
	}
	var body struct {
		Name      string `json:"name"`
		Date      string `json:"date"`
		Recurring bool   `json:"recurring"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if _, err := time.Parse(time.DateOnly, body.Date); err != nil || body.Name == "" {
		rest.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Name and a yyyy-MM-dd date are required")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	h := &backendHoliday{Id: b.newId(), Name: body.Name, Date: body.Date, Recurring: body.Recurring}
	b.holidays[h.Id] = h
	rest.WriteData(w, http.StatusCreated, map[string]any{"id": h.Id, "organisationId": 1, "name": h.Name, "date": h.Date, "recurring": h.Recurring})
}

func (b *Backend) deleteHoliday(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "ADMIN") {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := pathId(r, "id")
	if _, ok := b.holidays[id]; !ok {
		rest.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Holiday not found")
		return
	}
	delete(b.holidays, id)
	rest.WriteData(w, http.StatusOK, map[string]string{"message": "Holiday deleted"})
}

// --- settings ---

func (b *Backend) getSettings(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	rest.WriteData(w, http.StatusOK, b.settings)
}

func (b *Backend) updateSettings(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "ADMIN") {
		return
	}
	var body map[string]any
	if !decodeBody(w, r, &body) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range body {
		if k == "id" || k == "organisationId" {
			continue
		}
		b.settings[k] = v
	}
	rest.WriteData(w, http.StatusOK, b.settings)
}

// --- notifications ---

func (b *Backend) listNotifications(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	me := currentPrincipal(r).UserId
	var own []*backendNotification
	ids := sortedKeys(b.notifications)
	slices.Reverse(ids)
	for _, id := range ids {
		if n := b.notifications[id]; n.UserId == me {
			own = append(own, n)
		}
	}
	page, meta := paginate(own, queryInt(r, "page", 1), queryInt(r, "limit", 20))
	items := make([]map[string]any, 0, len(page))
	for _, n := range page {
		items = append(items, map[string]any{
			"id":        n.Id,
			"userId":    n.UserId,
			"type":      n.Type,
			"message":   n.Message,
			"read":      n.Read,
			"createdAt": n.CreatedAt.UTC().Format(wireTimestamp),
		})
	}
	rest.WritePage(w, items, meta)
}

func (b *Backend) markRead(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.notifications[pathId(r, "id")]
	if !ok || n.UserId != currentPrincipal(r).UserId {
		rest.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Notification not found")
		return
	}
	n.Read = true
	rest.WriteData(w, http.StatusOK, map[string]string{"message": "Notification marked as read"})
}

func (b *Backend) markAllRead(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	me := currentPrincipal(r).UserId
	for _, n := range b.notifications {
		if n.UserId == me {
			n.Read = true
		}
	}
	rest.WriteData(w, http.StatusOK, map[string]string{"message": "All notifications marked as read"})
}

// --- reports ---

// reportScope filters timesheets by the report query parameters and the principal's reach.
// Callers hold b.mu.
func (b *Backend) reportScope(w http.ResponseWriter, r *http.Request) ([]*backendTimesheet, bool) {
	q := r.URL.Query()
	from, errFrom := time.Parse(time.DateOnly, q.Get("dateFrom"))
	to, errTo := time.Parse(time.DateOnly, q.Get("dateTo"))
	if errFrom != nil || errTo != nil {
		rest.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "dateFrom and dateTo are required")
		return nil, false
	}
	userId, _ := strconv.Atoi(q.Get("userId"))
	projectId, _ := strconv.Atoi(q.Get("projectId"))
	status := q.Get("status")

	p := currentPrincipal(r)
	var out []*backendTimesheet
	for _, id := range sortedKeys(b.timesheets) {
		ts := b.timesheets[id]
		if !b.canView(p, ts.UserId) || ts.WeekStart.Before(from) || ts.WeekStart.After(to) {
			continue
		}
		if (userId != 0 && ts.UserId != userId) || (status != "" && ts.Status != status) {
			continue
		}
		if projectId != 0 && !slices.ContainsFunc(ts.Entries, func(e *backendEntry) bool { return e.ProjectId == projectId }) {
			continue
		}
		out = append(out, ts)
	}
	return out, true
}

func (b *Backend) report(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "MANAGER", "ADMIN") {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	scope, ok := b.reportScope(w, r)
	if !ok {
		return
	}
	var total, billable float64
	items := make([]map[string]any, 0, len(scope))
	for _, ts := range scope {
		t, bh := ts.totals()
		total += t
		billable += bh
		items = append(items, b.timesheetJSON(ts, false))
	}
	utilization := 0.0
	if total > 0 {
		utilization = math.Round(billable / total * 100)
	}
	rest.WriteData(w, http.StatusOK, map[string]any{
		"timesheets":     items,
		"totalHours":     total,
		"billableHours":  billable,
		"utilizationPct": utilization,
		"revenue":        billable * reportRate,
	})
}

var exportContentTypes = map[string]string{
	"csv":   "text/csv",
	"excel": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"pdf":   "application/pdf",
}

func (b *Backend) exportReport(w http.ResponseWriter, r *http.Request) {
	if !requireRole(w, r, "MANAGER", "ADMIN") {
		return
	}
	format := r.URL.Query().Get("format")
	contentType, ok := exportContentTypes[format]
	if !ok {
		rest.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "format must be csv, excel or pdf")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	scope, ok := b.reportScope(w, r)
	if !ok {
		return
	}
	var buf bytes.Buffer
	out := csv.NewWriter(&buf)
	_ = out.Write([]string{"Employee", "Week", "Status", "Total", "Billable"})
	for _, ts := range scope {
		total, billable := ts.totals()
		_ = out.Write([]string{
			b.users[ts.UserId].Name,
			ts.WeekStart.Format(time.DateOnly),
			ts.Status,
			strconv.FormatFloat(total, 'f', 2, 64),
			strconv.FormatFloat(billable, 'f', 2, 64),
		})
	}
	out.Flush()
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (b *Backend) exportMonthly(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, errYear := strconv.Atoi(q.Get("year"))
	month, errMonth := strconv.Atoi(q.Get("month"))
	if errYear != nil || errMonth != nil || month < 1 || month > 12 {
		rest.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "year and month are required")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p := currentPrincipal(r)
	userId := queryInt(r, "userId", p.UserId)
	u, ok := b.users[userId]
	if !ok {
		rest.WriteError(w, http.StatusNotFound, "NOT_FOUND", "User not found")
		return
	}
	if !b.canView(p, userId) {
		rest.WriteError(w, http.StatusForbidden, "FORBIDDEN", forbiddenMessage)
		return
	}

	var buf bytes.Buffer
	out := csv.NewWriter(&buf)
	_ = out.Write([]string{"Week", "Project", "Description", "Hours"})
	for _, id := range sortedKeys(b.timesheets) {
		ts := b.timesheets[id]
		if ts.UserId != userId || ts.WeekStart.Year() != year || int(ts.WeekStart.Month()) != month {
			continue
		}
		for _, e := range ts.Entries {
			code := ""
			if project, ok := b.projects[e.ProjectId]; ok {
				code = project.Code
			}
			_ = out.Write([]string{ts.WeekStart.Format(time.DateOnly), code, e.Description, strconv.FormatFloat(e.total(), 'f', 2, 64)})
		}
	}
	out.Flush()
	filename := fmt.Sprintf("timesheet-%s-%d-%02d.xlsx", slug(u.Name), year, month)
	w.Header().Set("Content-Type", exportContentTypes["excel"])
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func slug(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z':
			out = append(out, r+('a'-'A'))
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
