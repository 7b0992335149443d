package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"pmtrack/internal/audit"
	"pmtrack/internal/database"
	"pmtrack/internal/database/dbtest"
	"pmtrack/internal/handlers"
	"pmtrack/internal/models"
	"pmtrack/internal/projectcode"
	"pmtrack/internal/projects"
	"pmtrack/internal/server"
	"pmtrack/internal/telemetry"
)

const testPassword = "correct-horse-battery"

// week 7 of 2025
var testNow = time.Date(2025, time.February, 10, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	t      *testing.T
	db     *gorm.DB
	router http.Handler
	users  map[models.UserRole]models.User
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.New(t)
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	users := map[models.UserRole]models.User{}
	for _, role := range []models.UserRole{models.RoleAdmin, models.RoleManager, models.RoleMember, models.RoleViewer} {
		u := models.User{Username: string(role) + "@example.com", DisplayName: string(role), PasswordHash: string(hash), Role: role}
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("Failed to create user: %v", err)
		}
		users[role] = u
	}

	clock := projectcode.ClockFunc(func() time.Time { return testNow })
	metrics := telemetry.NewMetrics()
	projectStore := database.NewProjectStore(db)
	auditStore := database.NewAuditStore(db)
	auditLogger := audit.NewLogger(auditStore, zerolog.Nop(), audit.WithMetrics(metrics))

	svc := projects.NewService(projects.Deps{
		Store:   projectStore,
		Codes:   projectcode.NewGenerator(projectStore, clock),
		Audit:   auditLogger,
		Metrics: metrics,
		Clock:   clock,
		Log:     zerolog.Nop(),
	})
	h := handlers.New(handlers.Deps{
		DB:           db,
		Projects:     svc,
		ProjectStore: projectStore,
		AuditStore:   auditStore,
		Audit:        auditLogger,
		Log:          zerolog.Nop(),
	})
	router := server.NewRouter(server.Options{
		DB:            db,
		Handler:       h,
		Metrics:       metrics,
		Log:           zerolog.Nop(),
		SessionSecret: "0123456789abcdef0123456789abcdef",
	})

	return &testEnv{t: t, db: db, router: router, users: users}
}

func (e *testEnv) do(method, path string, body any, cookies []*http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatalf("Failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "handlers-test")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(role models.UserRole) []*http.Cookie {
	e.t.Helper()

	w := e.do(http.MethodPost, "/api/login", map[string]string{
		"username": e.users[role].Username,
		"password": testPassword,
	}, nil)
	if w.Code != http.StatusOK {
		e.t.Fatalf("Expected login status 200, got %d: %s", w.Code, w.Body.String())
	}
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		e.t.Fatal("Expected a session cookie after login")
	}
	return cookies
}

func (e *testEnv) auditRows(action audit.Action) []models.AuditLog {
	e.t.Helper()

	var rows []models.AuditLog
	if err := e.db.Where("action = ?", string(action)).Order("id asc").Find(&rows).Error; err != nil {
		e.t.Fatalf("Failed to read audit logs: %v", err)
	}
	return rows
}

func (e *testEnv) createProject(cookies []*http.Cookie, name, projectType string) models.Project {
	e.t.Helper()

	w := e.do(http.MethodPost, "/api/projects", map[string]any{"name": name, "type": projectType}, cookies)
	if w.Code != http.StatusCreated {
		e.t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var p models.Project
	decode(e.t, w, &p)
	return p
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dest); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
}

func TestLoginAndMe(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/me", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without session, got %d", w.Code)
	}

	w = env.do(http.MethodPost, "/api/login", map[string]string{
		"username": env.users[models.RoleManager].Username,
		"password": "wrong",
	}, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for bad password, got %d", w.Code)
	}

	cookies := env.login(models.RoleManager)
	w = env.do(http.MethodGet, "/api/me", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var me models.User
	decode(t, w, &me)
	if me.Username != env.users[models.RoleManager].Username {
		t.Errorf("Expected username %s, got %s", env.users[models.RoleManager].Username, me.Username)
	}
	if me.Role != models.RoleManager {
		t.Errorf("Expected role manager, got %s", me.Role)
	}
}

func TestCreateProjectAssignsCodes(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(models.RoleManager)

	first := env.createProject(cookies, "Billing portal", string(models.ProjectCustomerDriven))
	second := env.createProject(cookies, "Data lake", string(models.ProjectCustomerDriven))
	internal := env.createProject(cookies, "HR tooling", string(models.ProjectInternal))

	tests := []struct {
		got      string
		expected string
	}{
		{first.Code, "C2507-001"},
		{second.Code, "C2507-002"},
		{internal.Code, "I2507-001"},
	}
	for _, tt := range tests {
		if tt.got != tt.expected {
			t.Errorf("Expected code %s, got %s", tt.expected, tt.got)
		}
	}

	w := env.do(http.MethodGet, "/api/projects/next-code?type="+string(models.ProjectCustomerDriven), nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var preview map[string]string
	decode(t, w, &preview)
	if preview["code"] != "C2507-003" {
		t.Errorf("Expected preview C2507-003, got %s", preview["code"])
	}

	rows := env.auditRows(audit.ActionProjectCreate)
	if len(rows) != 3 {
		t.Fatalf("Expected 3 project_create events, got %d", len(rows))
	}
	if rows[0].EntityName == nil || *rows[0].EntityName != "C2507-001 Billing portal" {
		t.Errorf("Expected entity name %q, got %v", "C2507-001 Billing portal", rows[0].EntityName)
	}
	if rows[0].UserID != env.users[models.RoleManager].ID {
		t.Errorf("Expected actor %d, got %d", env.users[models.RoleManager].ID, rows[0].UserID)
	}
	if rows[0].UserAgent == nil || *rows[0].UserAgent != "handlers-test" {
		t.Errorf("Expected user agent handlers-test, got %v", rows[0].UserAgent)
	}
}

func TestCreateProjectRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(models.RoleManager)

	tests := []struct {
		name string
		body any
	}{
		{"missing type", map[string]any{"name": "Portal"}},
		{"short name", map[string]any{"name": "P", "type": string(models.ProjectInternal)}},
		{"unknown field", map[string]any{"name": "Portal", "type": string(models.ProjectInternal), "code": "C2507-999"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(http.MethodPost, "/api/projects", tt.body, cookies)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected status 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	if rows := env.auditRows(audit.ActionProjectCreate); len(rows) != 0 {
		t.Errorf("Expected no audit events for rejected input, got %d", len(rows))
	}
}

func TestRoleChecks(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		role     models.UserRole
		method   string
		path     string
		body     any
		expected int
	}{
		{"member cannot create project", models.RoleMember, http.MethodPost, "/api/projects", map[string]any{"name": "Portal", "type": string(models.ProjectInternal)}, http.StatusForbidden},
		{"viewer cannot preview codes", models.RoleViewer, http.MethodGet, "/api/projects/next-code?type=x", nil, http.StatusForbidden},
		{"viewer reads audit logs", models.RoleViewer, http.MethodGet, "/api/audit-logs", nil, http.StatusOK},
		{"member cannot read audit logs", models.RoleMember, http.MethodGet, "/api/audit-logs", nil, http.StatusForbidden},
		{"manager cannot list users", models.RoleManager, http.MethodGet, "/api/users", nil, http.StatusForbidden},
		{"admin lists users", models.RoleAdmin, http.MethodGet, "/api/users", nil, http.StatusOK},
		{"member lists projects", models.RoleMember, http.MethodGet, "/api/projects", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(tt.method, tt.path, tt.body, env.login(tt.role))
			if w.Code != tt.expected {
				t.Errorf("Expected status %d, got %d: %s", tt.expected, w.Code, w.Body.String())
			}
		})
	}
}

func TestProjectStatusAndHistory(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(models.RoleManager)
	p := env.createProject(cookies, "Billing portal", string(models.ProjectCustomerDriven))
	base := "/api/projects/" + itoa(p.ID)

	w := env.do(http.MethodPut, base, map[string]any{"client": "Acme"}, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	w = env.do(http.MethodPost, base+"/status", map[string]any{"status": "in_progress"}, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	w = env.do(http.MethodPost, base+"/status", map[string]any{"status": "in_progress"}, cookies)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unchanged status, got %d", w.Code)
	}

	w = env.do(http.MethodGet, base+"/history", nil, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var history struct {
		Logs []models.AuditLog `json:"logs"`
	}
	decode(t, w, &history)

	expected := []string{"project_create", "project_update", "project_status_change"}
	if len(history.Logs) != len(expected) {
		t.Fatalf("Expected %d history entries, got %d", len(expected), len(history.Logs))
	}
	for i, action := range expected {
		if history.Logs[i].Action != action {
			t.Errorf("Expected entry %d to be %s, got %s", i, action, history.Logs[i].Action)
		}
	}

	w = env.do(http.MethodDelete, base, nil, cookies)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected manager delete to be 403, got %d", w.Code)
	}
	w = env.do(http.MethodDelete, base, nil, env.login(models.RoleAdmin))
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}
	w = env.do(http.MethodGet, base, nil, cookies)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected deleted project to be 404, got %d", w.Code)
	}
}

func TestTaskLifecycleIsAudited(t *testing.T) {
	env := newTestEnv(t)
	manager := env.login(models.RoleManager)
	member := env.login(models.RoleMember)
	p := env.createProject(manager, "Billing portal", string(models.ProjectCustomerDriven))
	base := "/api/projects/" + itoa(p.ID) + "/tasks"

	w := env.do(http.MethodPost, base, map[string]any{"title": "Draft schema"}, member)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	var task models.Task
	decode(t, w, &task)

	w = env.do(http.MethodPut, base+"/"+itoa(task.ID), map[string]any{"status": "done"}, member)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	w = env.do(http.MethodDelete, base+"/"+itoa(task.ID), nil, member)
	if w.Code != http.StatusForbidden {
		t.Errorf("Expected member delete to be 403, got %d", w.Code)
	}
	w = env.do(http.MethodDelete, base+"/"+itoa(task.ID), nil, manager)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}

	for _, action := range []audit.Action{audit.ActionTaskCreate, audit.ActionTaskUpdate, audit.ActionTaskDelete} {
		rows := env.auditRows(action)
		if len(rows) != 1 {
			t.Errorf("Expected 1 %s event, got %d", action, len(rows))
			continue
		}
		if rows[0].EntityType != string(audit.EntityTask) {
			t.Errorf("Expected entity type task, got %s", rows[0].EntityType)
		}
	}
}

func TestStaffingFinanceAndReports(t *testing.T) {
	env := newTestEnv(t)
	manager := env.login(models.RoleManager)
	p := env.createProject(manager, "Billing portal", string(models.ProjectCustomerDriven))
	base := "/api/projects/" + itoa(p.ID)
	memberID := env.users[models.RoleMember].ID

	w := env.do(http.MethodPost, base+"/members", map[string]any{"user_id": memberID, "role": "developer", "allocation": 50}, manager)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	w = env.do(http.MethodPost, base+"/members", map[string]any{"user_id": memberID}, manager)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409 for duplicate member, got %d", w.Code)
	}

	finance := map[string]any{"period": "2025-02", "planned_revenue": "1200.50"}
	w = env.do(http.MethodPut, base+"/finance", finance, manager)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	// unchanged values: no second event
	w = env.do(http.MethodPut, base+"/finance", finance, manager)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	w = env.do(http.MethodPut, base+"/finance", map[string]any{"period": "Feb 2025"}, manager)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad period, got %d", w.Code)
	}

	w = env.do(http.MethodPost, base+"/cost-items", map[string]any{"category": "hardware", "amount": "300"}, manager)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	w = env.do(http.MethodPut, base+"/reports", map[string]any{"period": "2025-02", "goal": "Ship invoicing"}, env.login(models.RoleMember))
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	tests := []struct {
		action   audit.Action
		expected int
	}{
		{audit.ActionMemberAdd, 1},
		{audit.ActionFinanceUpdate, 1},
		{audit.ActionCostItemCreate, 1},
		{audit.ActionReportUpdate, 1},
	}
	for _, tt := range tests {
		if rows := env.auditRows(tt.action); len(rows) != tt.expected {
			t.Errorf("Expected %d %s events, got %d", tt.expected, tt.action, len(rows))
		}
	}

	rows := env.auditRows(audit.ActionFinanceUpdate)
	if len(rows) == 1 && (rows[0].EntityName == nil || *rows[0].EntityName != p.Code+" 2025-02") {
		t.Errorf("Expected entity name %q, got %v", p.Code+" 2025-02", rows[0].EntityName)
	}
}

func TestBulkUpdateWorkHours(t *testing.T) {
	env := newTestEnv(t)
	cookies := env.login(models.RoleManager)
	p1 := env.createProject(cookies, "Billing portal", string(models.ProjectCustomerDriven))
	p2 := env.createProject(cookies, "HR tooling", string(models.ProjectInternal))

	memberID := env.users[models.RoleMember].ID
	managerID := env.users[models.RoleManager].ID

	body := map[string]any{"entries": []map[string]any{
		{"project_id": p1.ID, "user_id": memberID, "work_date": "2025-02-10", "hours": 3},
		{"project_id": p1.ID, "user_id": managerID, "work_date": "2025-02-10", "hours": 5},
		{"project_id": p2.ID, "user_id": memberID, "work_date": "2025-02-11", "hours": 2},
	}}

	w := env.do(http.MethodPut, "/api/work-hours", body, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	rows := env.auditRows(audit.ActionWorkHourUpdate)
	if len(rows) != 2 {
		t.Fatalf("Expected one event per project (2), got %d", len(rows))
	}

	first := rows[0]
	if first.EntityID == nil || *first.EntityID != p1.ID {
		t.Errorf("Expected entity id %d, got %v", p1.ID, first.EntityID)
	}
	if first.EntityName == nil || *first.EntityName != p1.Code {
		t.Errorf("Expected entity name %s, got %v", p1.Code, first.EntityName)
	}
	details, err := audit.DecodeDetails(first)
	if err != nil {
		t.Fatalf("Failed to decode details: %v", err)
	}
	if details["total_hours"] != float64(8) {
		t.Errorf("Expected total_hours 8, got %v", details["total_hours"])
	}
	ids, _ := details["member_ids"].([]any)
	if len(ids) != 2 {
		t.Errorf("Expected 2 member ids, got %v", details["member_ids"])
	}

	// same keys again: upsert, not insert
	w = env.do(http.MethodPut, "/api/work-hours", body, cookies)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var count int64
	env.db.Model(&models.WorkHour{}).Count(&count)
	if count != 3 {
		t.Errorf("Expected 3 work hour rows after re-submit, got %d", count)
	}

	bad := map[string]any{"entries": []map[string]any{
		{"project_id": 9999, "user_id": memberID, "work_date": "2025-02-10", "hours": 1},
	}}
	w = env.do(http.MethodPut, "/api/work-hours", bad, cookies)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for unknown project, got %d", w.Code)
	}

	dup := map[string]any{"entries": []map[string]any{
		{"project_id": p1.ID, "user_id": memberID, "work_date": "2025-02-12", "hours": 8},
		{"project_id": p1.ID, "user_id": memberID, "work_date": "2025-02-12", "hours": 8},
	}}
	w = env.do(http.MethodPut, "/api/work-hours", dup, cookies)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for repeated project/user/date, got %d", w.Code)
	}
	env.db.Model(&models.WorkHour{}).Count(&count)
	if count != 3 {
		t.Errorf("Expected rejected batch to write nothing, got %d rows", count)
	}

	if rows := env.auditRows(audit.ActionWorkHourUpdate); len(rows) != 4 {
		t.Errorf("Expected 4 workhour events after rejected requests, got %d", len(rows))
	}
}

func TestChangeUserRole(t *testing.T) {
	env := newTestEnv(t)
	admin := env.login(models.RoleAdmin)

	w := env.do(http.MethodPut, "/api/users/"+itoa(env.users[models.RoleAdmin].ID)+"/role", map[string]string{"role": "viewer"}, admin)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for own role, got %d", w.Code)
	}

	w = env.do(http.MethodPut, "/api/users/"+itoa(env.users[models.RoleMember].ID)+"/role", map[string]string{"role": "manager"}, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	rows := env.auditRows(audit.ActionUserRoleChange)
	if len(rows) != 1 {
		t.Fatalf("Expected 1 user_role_change event, got %d", len(rows))
	}
	details, err := audit.DecodeDetails(rows[0])
	if err != nil {
		t.Fatalf("Failed to decode details: %v", err)
	}
	if details["from"] != "member" || details["to"] != "manager" {
		t.Errorf("Expected member -> manager, got %v -> %v", details["from"], details["to"])
	}
}

func TestListAuditLogsFilters(t *testing.T) {
	env := newTestEnv(t)
	manager := env.login(models.RoleManager)
	env.createProject(manager, "Billing portal", string(models.ProjectCustomerDriven))
	env.createProject(manager, "HR tooling", string(models.ProjectInternal))

	admin := env.login(models.RoleAdmin)
	w := env.do(http.MethodGet, "/api/audit-logs?action=project_create&limit=1", nil, admin)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp struct {
		Logs []models.AuditLog `json:"logs"`
	}
	decode(t, w, &resp)
	if len(resp.Logs) != 1 {
		t.Fatalf("Expected 1 log, got %d", len(resp.Logs))
	}
	if resp.Logs[0].EntityName == nil || *resp.Logs[0].EntityName != "I2507-001 HR tooling" {
		t.Errorf("Expected newest event first, got %v", resp.Logs[0].EntityName)
	}

	w = env.do(http.MethodGet, "/api/audit-logs?since=yesterday", nil, admin)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad since, got %d", w.Code)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
