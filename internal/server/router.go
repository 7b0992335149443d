package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"pmtrack/internal/handlers"
	"pmtrack/internal/middleware"
	"pmtrack/internal/models"
	"pmtrack/internal/telemetry"
)

const sessionName = "pmtrack_session"

type Options struct {
	DB             *gorm.DB
	Handler        *handlers.Handler
	Metrics        *telemetry.Metrics
	Log            zerolog.Logger
	SessionSecret  string
	CookieSecure   bool
	AllowedOrigins []string
	RateLimit      int // requests per minute per client IP
}

func NewRouter(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), middleware.RequestLogger(opts.Log))

	store := cookie.NewStore([]byte(opts.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int((12 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(sessionName, store))
	r.Use(middleware.InjectUser(opts.DB))

	h := opts.Handler

	// health
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	r.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))

	api := r.Group("/api")

	// AUTH
	api.POST("/login", h.Login)

	auth := api.Group("", middleware.RequireAuth())

	auth.POST("/logout", h.Logout)
	auth.GET("/me", h.Me)

	admin := middleware.RequireRole(models.RoleAdmin)
	managers := middleware.RequireRole(models.RoleAdmin, models.RoleManager)
	staff := middleware.RequireRole(models.RoleAdmin, models.RoleManager, models.RoleMember)

	// PROJECTS
	auth.GET("/projects", h.ListProjects)
	auth.GET("/projects/next-code", managers, h.NextCode)
	auth.POST("/projects", managers, h.CreateProject)
	auth.GET("/projects/:id", h.GetProject)
	auth.PUT("/projects/:id", managers, h.UpdateProject)
	auth.POST("/projects/:id/status", managers, h.ChangeProjectStatus)
	auth.DELETE("/projects/:id", admin, h.DeleteProject)
	auth.GET("/projects/:id/history", h.ProjectHistory)

	// tasks
	auth.POST("/projects/:id/tasks", staff, h.CreateTask)
	auth.PUT("/projects/:id/tasks/:taskID", staff, h.UpdateTask)
	auth.DELETE("/projects/:id/tasks/:taskID", managers, h.DeleteTask)

	// staffing
	auth.POST("/projects/:id/members", managers, h.AddMember)
	auth.PUT("/projects/:id/members/:memberID", managers, h.UpdateMember)
	auth.DELETE("/projects/:id/members/:memberID", managers, h.RemoveMember)

	// money
	auth.PUT("/projects/:id/finance", managers, h.UpdateFinance)
	auth.POST("/projects/:id/cost-items", managers, h.CreateCostItem)
	auth.DELETE("/projects/:id/cost-items/:itemID", managers, h.DeleteCostItem)

	// reports
	auth.PUT("/projects/:id/reports", staff, h.UpdateReport)

	// WORK HOURS
	auth.PUT("/work-hours", managers, h.BulkUpdateWorkHours)

	// USERS / ROLES
	auth.GET("/users", admin, h.ListUsers)
	auth.PUT("/users/:id/role", admin, h.ChangeUserRole)
	auth.GET("/roles", h.ListRoles)
	auth.PUT("/roles/:name", admin, h.UpdateRole)

	// AUDIT
	auth.GET("/audit-logs", middleware.RequireRole(models.RoleAdmin, models.RoleViewer), h.ListAuditLogs)

	return r
}

// Wrap puts CORS and per-IP rate limiting in front of the gin engine.
func Wrap(next http.Handler, opts Options) http.Handler {
	allowed := opts.AllowedOrigins
	if len(allowed) == 0 {
		allowed = []string{"http://localhost:5173"}
	}
	limit := opts.RateLimit
	if limit <= 0 {
		limit = 300
	}

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   allowed,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	})

	return corsHandler(httprate.LimitByIP(limit, time.Minute)(next))
}
