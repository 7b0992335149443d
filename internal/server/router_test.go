package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"pmtrack/internal/audit"
	"pmtrack/internal/database"
	"pmtrack/internal/database/dbtest"
	"pmtrack/internal/handlers"
	"pmtrack/internal/projectcode"
	"pmtrack/internal/projects"
	"pmtrack/internal/telemetry"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.New(t)
	metrics := telemetry.NewMetrics()
	store := database.NewProjectStore(db)
	auditStore := database.NewAuditStore(db)
	logger := audit.NewLogger(auditStore, zerolog.Nop(), audit.WithMetrics(metrics))

	h := handlers.New(handlers.Deps{
		DB: db,
		Projects: projects.NewService(projects.Deps{
			Store:   store,
			Codes:   projectcode.NewGenerator(store, nil),
			Audit:   logger,
			Metrics: metrics,
			Log:     zerolog.Nop(),
		}),
		ProjectStore: store,
		AuditStore:   auditStore,
		Audit:        logger,
		Log:          zerolog.Nop(),
	})

	return Options{
		DB:             db,
		Handler:        h,
		Metrics:        metrics,
		Log:            zerolog.Nop(),
		SessionSecret:  "0123456789abcdef0123456789abcdef",
		AllowedOrigins: []string{"https://pm.example.com"},
		RateLimit:      2,
	}
}

func TestPublicAndProtectedRoutes(t *testing.T) {
	opts := testOptions(t)
	r := NewRouter(opts)

	tests := []struct {
		method   string
		path     string
		expected int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/me", http.StatusUnauthorized},
		{http.MethodGet, "/api/projects", http.StatusUnauthorized},
		{http.MethodPut, "/api/work-hours", http.StatusUnauthorized},
		{http.MethodGet, "/api/audit-logs", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			if w.Code != tt.expected {
				t.Errorf("Expected status %d, got %d", tt.expected, w.Code)
			}
		})
	}
}

func TestMetricsExposeAuditCounters(t *testing.T) {
	opts := testOptions(t)
	opts.Metrics.AuditEvents.WithLabelValues("project_create").Inc()
	r := NewRouter(opts)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(w.Body.String(), "pmtrack_audit_events_total") {
		t.Error("Expected pmtrack_audit_events_total in metrics output")
	}
}

func TestRequestIDHeader(t *testing.T) {
	r := NewRouter(testOptions(t))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("Expected a generated X-Request-ID header")
	}
}

func TestWrapCORSAndRateLimit(t *testing.T) {
	opts := testOptions(t)
	handler := Wrap(NewRouter(opts), opts)

	preflight := httptest.NewRequest(http.MethodOptions, "/api/projects", nil)
	preflight.Header.Set("Origin", "https://pm.example.com")
	preflight.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, preflight)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://pm.example.com" {
		t.Errorf("Expected allowed origin header, got %q", got)
	}

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("Expected third request to be rate limited, got %v", codes)
	}
}
