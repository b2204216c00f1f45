package test_utils

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/highspring/timesheets/internal/rest"
	"github.com/highspring/timesheets/internal/utils"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	ApiPrefix         = "/api/v1"
	RefreshCookieName = "refreshToken"
	DefaultPassword   = "secret123"
)

// Seeded accounts. Bob and Carol report to Mia; Mia reports to Ada.
const (
	AdminId = iota + 1
	ManagerId
	EmployeeId
	OtherEmployeeId
)

// Seeded projects.
const (
	ActiveProjectId = iota + 1
	InternalProjectId
	InactiveProjectId
)

// Backend is an in-memory implementation of the timesheets REST API served over httptest.
// It signs real JWT access credentials and keeps refresh credentials in an HTTP only cookie.
type Backend struct {
	Server *httptest.Server
	URL    string

	mu            sync.Mutex
	clock         utils.Clock
	secret        []byte
	tokenTTL      time.Duration
	tokenGen      int
	refreshTokens map[string]int
	failRefresh   bool
	refreshDelay  time.Duration
	refreshCalls  atomic.Int32
	requests      map[string]int

	nextId        int
	users         map[int]*backendUser
	projects      map[int]*backendProject
	timesheets    map[int]*backendTimesheet
	holidays      map[int]*backendHoliday
	notifications map[int]*backendNotification
	settings      map[string]any
}

// NewBackend starts a seeded backend that is shut down when the test ends.
func NewBackend(t testing.TB, clock utils.Clock) *Backend {
	t.Helper()
	if clock == nil {
		clock = utils.SystemClock{}
	}
	b := &Backend{
		clock:         clock,
		secret:        []byte(uuid.NewString()),
		tokenTTL:      15 * time.Minute,
		refreshTokens: map[string]int{},
		requests:      map[string]int{},
	}
	b.seed()
	b.Server = httptest.NewServer(b.router())
	b.URL = b.Server.URL + ApiPrefix
	t.Cleanup(b.Server.Close)
	return b
}

func (b *Backend) seed() {
	b.nextId = 100
	b.users = map[int]*backendUser{
		AdminId:         {Id: AdminId, Name: "Ada Admin", Email: "ada@highspring.test", Role: "ADMIN", Department: "Operations"},
		ManagerId:       {Id: ManagerId, Name: "Mia Manager", Email: "mia@highspring.test", Role: "MANAGER", Department: "Delivery", ManagerIds: []int{AdminId}},
		EmployeeId:      {Id: EmployeeId, Name: "Bob Employee", Email: "bob@highspring.test", Role: "EMPLOYEE", Department: "Delivery", ManagerIds: []int{ManagerId}},
		OtherEmployeeId: {Id: OtherEmployeeId, Name: "Carol Employee", Email: "carol@highspring.test", Role: "EMPLOYEE", Department: "Delivery", ManagerIds: []int{ManagerId}},
	}
	for _, u := range b.users {
		u.OrganisationId = 1
		u.Password = DefaultPassword
		u.Status = "ACTIVE"
	}
	b.projects = map[int]*backendProject{
		ActiveProjectId:   {Id: ActiveProjectId, Code: "ACME", Name: "Acme portal", Client: "Acme", BudgetHours: 400, Status: "ACTIVE", ManagerIds: []int{ManagerId}},
		InternalProjectId: {Id: InternalProjectId, Code: "INT", Name: "Internal", Client: "Highspring", Status: "ACTIVE"},
		InactiveProjectId: {Id: InactiveProjectId, Code: "OLD", Name: "Legacy migration", Client: "Globex", BudgetHours: 100, Status: "INACTIVE"},
	}
	b.timesheets = map[int]*backendTimesheet{}
	b.holidays = map[int]*backendHoliday{}
	b.notifications = map[int]*backendNotification{}
	b.settings = map[string]any{
		"id":              1,
		"organisationId":  1,
		"workWeekStart":   "monday",
		"standardHours":   8.0,
		"timeFormat":      "decimal",
		"timeIncrement":   15,
		"maxHoursPerDay":  24.0,
		"maxHoursPerWeek": 168.0,
		"requireApproval": true,
		"allowBackdated":  true,
		"enableOvertime":  false,
		"mandatoryDesc":   false,
		"allowCopyWeek":   true,
	}
}

func (b *Backend) router() http.Handler {
	root := mux.NewRouter()
	r := root.PathPrefix(ApiPrefix).Subrouter()
	r.Use(b.countRequests)

	r.HandleFunc("/auth/login", b.login).Methods(http.MethodPost)
	r.HandleFunc("/auth/register", b.register).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", b.refresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", b.logout).Methods(http.MethodPost)

	api := r.NewRoute().Subrouter()
	api.Use(b.authenticate)

	api.HandleFunc("/timesheets", b.listTimesheets).Methods(http.MethodGet)
	api.HandleFunc("/timesheets", b.createTimesheet).Methods(http.MethodPost)
	api.HandleFunc("/timesheets/copy-previous-week", b.copyPreviousWeek).Methods(http.MethodPost)
	api.HandleFunc("/timesheets/{id:[0-9]+}", b.getTimesheet).Methods(http.MethodGet)
	api.HandleFunc("/timesheets/{id:[0-9]+}", b.deleteTimesheet).Methods(http.MethodDelete)
	api.HandleFunc("/timesheets/{id:[0-9]+}/submit", b.submitTimesheet).Methods(http.MethodPost)
	api.HandleFunc("/timesheets/{id:[0-9]+}/entries", b.listEntries).Methods(http.MethodGet)
	api.HandleFunc("/timesheets/{id:[0-9]+}/entries", b.addEntry).Methods(http.MethodPost)
	api.HandleFunc("/timesheets/{id:[0-9]+}/entries/{entryId:[0-9]+}", b.updateEntry).Methods(http.MethodPut)
	api.HandleFunc("/timesheets/{id:[0-9]+}/entries/{entryId:[0-9]+}", b.deleteEntry).Methods(http.MethodDelete)

	api.HandleFunc("/approvals", b.listApprovals).Methods(http.MethodGet)
	api.HandleFunc("/approvals/stats", b.approvalStats).Methods(http.MethodGet)
	api.HandleFunc("/approvals/{id:[0-9]+}/approve", b.approve).Methods(http.MethodPost)
	api.HandleFunc("/approvals/{id:[0-9]+}/reject", b.reject).Methods(http.MethodPost)

	api.HandleFunc("/users", b.listUsers).Methods(http.MethodGet)
	api.HandleFunc("/users", b.createUser).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}", b.updateUser).Methods(http.MethodPut)
	api.HandleFunc("/users/{id:[0-9]+}", b.deleteUser).Methods(http.MethodDelete)
	api.HandleFunc("/team/my-reports", b.myReports).Methods(http.MethodGet)
	api.HandleFunc("/team/my-managers", b.myManagers).Methods(http.MethodGet)

	api.HandleFunc("/projects", b.listProjects).Methods(http.MethodGet)
	api.HandleFunc("/projects", b.createProject).Methods(http.MethodPost)
	api.HandleFunc("/projects/{id:[0-9]+}", b.updateProject).Methods(http.MethodPut)
	api.HandleFunc("/projects/{id:[0-9]+}", b.deleteProject).Methods(http.MethodDelete)

	api.HandleFunc("/holidays", b.listHolidays).Methods(http.MethodGet)
	api.HandleFunc("/holidays", b.createHoliday).Methods(http.MethodPost)
	api.HandleFunc("/holidays/{id:[0-9]+}", b.deleteHoliday).Methods(http.MethodDelete)

	api.HandleFunc("/settings", b.getSettings).Methods(http.MethodGet)
	api.HandleFunc("/settings", b.updateSettings).Methods(http.MethodPut)

	api.HandleFunc("/notifications", b.listNotifications).Methods(http.MethodGet)
	api.HandleFunc("/notifications/read-all", b.markAllRead).Methods(http.MethodPut)
	api.HandleFunc("/notifications/{id:[0-9]+}/read", b.markRead).Methods(http.MethodPut)

	api.HandleFunc("/reports", b.report).Methods(http.MethodGet)
	api.HandleFunc("/reports/export", b.exportReport).Methods(http.MethodGet)
	api.HandleFunc("/reports/export-monthly", b.exportMonthly).Methods(http.MethodGet)

	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rest.WriteError(w, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})
	return root
}

// --- test controls ---

// RefreshCalls is the number of refresh requests received so far.
func (b *Backend) RefreshCalls() int {
	return int(b.refreshCalls.Load())
}

// Requests is the number of requests received for method and path, e.g. "GET /timesheets".
func (b *Backend) Requests(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[method+" "+path]
}

// RevokeAccessTokens makes every access credential issued so far fail with 401.
func (b *Backend) RevokeAccessTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokenGen++
}

// RevokeRefreshTokens makes every refresh cookie issued so far invalid.
func (b *Backend) RevokeRefreshTokens() {
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.refreshTokens)
}

// ActiveRefreshTokens is the number of refresh cookies the backend still accepts.
func (b *Backend) ActiveRefreshTokens() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.refreshTokens)
}

func (b *Backend) SetFailRefresh(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failRefresh = fail
}

// SetRefreshDelay holds every refresh response for d.
func (b *Backend) SetRefreshDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refreshDelay = d
}

func (b *Backend) SetTokenTTL(ttl time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokenTTL = ttl
}

// SetSetting overrides one organization setting, e.g. SetSetting("allowCopyWeek", false).
func (b *Backend) SetSetting(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.settings[key] = value
}

// IssueToken returns a valid access credential for userId without a login round trip.
func (b *Backend) IssueToken(userId int) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	token, err := b.signAccessToken(b.users[userId])
	if err != nil {
		panic(err)
	}
	return token
}

// ClientFor returns a REST client that authenticates as userId with a static credential.
func (b *Backend) ClientFor(t testing.TB, userId int) *rest.Client {
	t.Helper()
	source := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: b.IssueToken(userId), TokenType: "Bearer"})
	api, err := rest.NewClient(b.URL, oauth2.NewClient(context.Background(), source))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	return api
}

// --- middleware ---

type principalKey struct{}

type principal struct {
	UserId int
	OrgId  int
	Role   string
}

type accessClaims struct {
	OrgId int    `json:"orgId"`
	Role  string `json:"role"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Gen   int    `json:"gen"`
	jwt.RegisteredClaims
}

func (b *Backend) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests[r.Method+" "+strings.TrimPrefix(r.URL.Path, ApiPrefix)]++
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || raw == "" {
			rest.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing access token")
			return
		}
		claims := &accessClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
			return b.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(b.clock.Now))
		if err != nil {
			rest.WriteError(w, http.StatusUnauthorized, "TOKEN_INVALID", "Invalid or expired access token")
			return
		}
		b.mu.Lock()
		current := b.tokenGen
		b.mu.Unlock()
		if claims.Gen != current {
			rest.WriteError(w, http.StatusUnauthorized, "TOKEN_REVOKED", "Access token revoked")
			return
		}
		userId, err := strconv.Atoi(claims.Subject)
		if err != nil {
			rest.WriteError(w, http.StatusUnauthorized, "TOKEN_INVALID", "Invalid subject")
			return
		}
		p := principal{UserId: userId, OrgId: claims.OrgId, Role: claims.Role}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), principalKey{}, p)))
	})
}

func currentPrincipal(r *http.Request) principal {
	p, _ := r.Context().Value(principalKey{}).(principal)
	return p
}

// --- auth ---

type authUser struct {
	UserId int    `json:"userId"`
	OrgId  int    `json:"orgId"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type authResponse struct {
	AccessToken string   `json:"accessToken"`
	User        authUser `json:"user"`
}

func (b *Backend) signAccessToken(u *backendUser) (string, error) {
	now := b.clock.Now()
	claims := accessClaims{
		OrgId: u.OrganisationId,
		Role:  u.Role,
		Name:  u.Name,
		Email: u.Email,
		Gen:   b.tokenGen,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(u.Id),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.tokenTTL)),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(b.secret)
}

// startSession issues both credentials. Callers hold b.mu.
func (b *Backend) startSession(w http.ResponseWriter, u *backendUser) (authResponse, error) {
	token, err := b.signAccessToken(u)
	if err != nil {
		return authResponse{}, err
	}
	refresh := uuid.NewString()
	b.refreshTokens[refresh] = u.Id
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refresh,
		Path:     ApiPrefix + "/auth",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	return authResponse{
		AccessToken: token,
		User:        authUser{UserId: u.Id, OrgId: u.OrganisationId, Role: u.Role, Name: u.Name, Email: u.Email},
	}, nil
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if strings.EqualFold(u.Email, body.Email) && u.Password == body.Password && u.Status == "ACTIVE" {
			resp, err := b.startSession(w, u)
			if err != nil {
				rest.WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
				return
			}
			rest.WriteData(w, http.StatusOK, resp)
			return
		}
	}
	rest.WriteError(w, http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrganisationName string `json:"organisationName"`
		Name             string `json:"name"`
		Email            string `json:"email"`
		Password         string `json:"password"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	if body.OrganisationName == "" || body.Name == "" || body.Email == "" || len(body.Password) < 8 {
		rest.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", "Organisation, name, email and a password of at least 8 characters are required")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.users {
		if strings.EqualFold(u.Email, body.Email) {
			rest.WriteError(w, http.StatusConflict, "CONFLICT", "Email already registered")
			return
		}
	}
	orgId := b.newId()
	u := &backendUser{Id: b.newId(), OrganisationId: orgId, Name: body.Name, Email: body.Email, Password: body.Password, Role: "ADMIN", Status: "ACTIVE"}
	b.users[u.Id] = u
	resp, err := b.startSession(w, u)
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	rest.WriteData(w, http.StatusCreated, resp)
}

func (b *Backend) refresh(w http.ResponseWriter, r *http.Request) {
	b.refreshCalls.Add(1)
	b.mu.Lock()
	delay, fail := b.refreshDelay, b.failRefresh
	b.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if fail {
		rest.WriteError(w, http.StatusUnauthorized, "REFRESH_FAILED", "Refresh token expired")
		return
	}

	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil {
		rest.WriteError(w, http.StatusUnauthorized, "NO_REFRESH_TOKEN", "No refresh token")
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	userId, ok := b.refreshTokens[cookie.Value]
	if !ok {
		rest.WriteError(w, http.StatusUnauthorized, "REFRESH_INVALID", "Invalid refresh token")
		return
	}
	// refresh credentials rotate on use
	delete(b.refreshTokens, cookie.Value)
	resp, err := b.startSession(w, b.users[userId])
	if err != nil {
		rest.WriteError(w, http.StatusInternalServerError, "INTERNAL", err.Error())
		return
	}
	log.Debugf("backend: refreshed session of user %d", userId)
	rest.WriteData(w, http.StatusOK, resp)
}

func (b *Backend) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(RefreshCookieName); err == nil {
		b.mu.Lock()
		delete(b.refreshTokens, cookie.Value)
		b.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: RefreshCookieName, Value: "", Path: ApiPrefix + "/auth", MaxAge: -1, HttpOnly: true})
	rest.WriteData(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// --- helpers ---

func decodeBody(w http.ResponseWriter, r *http.Request, out any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		rest.WriteError(w, http.StatusBadRequest, "VALIDATION_ERROR", fmt.Sprintf("Invalid JSON body: %v", err))
		return false
	}
	return true
}

func pathId(r *http.Request, name string) int {
	id, _ := strconv.Atoi(mux.Vars(r)[name])
	return id
}

func queryInt(r *http.Request, name string, fallback int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

const forbiddenMessage = "Insufficient permissions"

func requireRole(w http.ResponseWriter, r *http.Request, roles ...string) bool {
	role := currentPrincipal(r).Role
	for _, allowed := range roles {
		if role == allowed {
			return true
		}
	}
	rest.WriteError(w, http.StatusForbidden, "FORBIDDEN", forbiddenMessage)
	return false
}

func paginate[T any](items []T, page, limit int) ([]T, rest.PageMeta) {
	from := min((page-1)*limit, len(items))
	to := min(from+limit, len(items))
	return items[from:to], rest.PageMeta{Total: len(items), Page: page, Limit: limit}
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// newId allocates an identifier. Callers hold b.mu.
func (b *Backend) newId() int {
	b.nextId++
	return b.nextId
}
