// Package handlers serves the JSON API. Every successful mutation is
// followed by exactly one audit event (one per project for bulk updates).
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"pmtrack/internal/audit"
	"pmtrack/internal/database"
	"pmtrack/internal/middleware"
	"pmtrack/internal/models"
	"pmtrack/internal/projects"
)

const requestTimeout = 5 * time.Second

type AuditLogger interface {
	Log(ctx context.Context, ev audit.Event)
	LogBatch(ctx context.Context, events []audit.Event)
}

type Deps struct {
	DB           *gorm.DB
	Projects     *projects.Service
	ProjectStore *database.ProjectStore
	AuditStore   *database.AuditStore
	Audit        AuditLogger
	Log          zerolog.Logger
}

type Handler struct {
	db           *gorm.DB
	projects     *projects.Service
	projectStore *database.ProjectStore
	auditStore   *database.AuditStore
	audit        AuditLogger
	log          zerolog.Logger
}

func New(d Deps) *Handler {
	return &Handler{
		db:           d.DB,
		projects:     d.Projects,
		projectStore: d.ProjectStore,
		auditStore:   d.AuditStore,
		audit:        d.Audit,
		log:          d.Log.With().Str("component", "handlers").Logger(),
	}
}

func decodeJSON(c *gin.Context, dest any) error {
	if c.Request.Body == nil {
		return errors.New("request body required")
	}
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}

func respondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func withTimeout(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), requestTimeout)
}

func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func actorFrom(c *gin.Context) projects.Actor {
	user, _ := middleware.CurrentUser(c)
	return projects.Actor{ID: user.ID, Role: user.Role}
}

func requestMeta(c *gin.Context) *audit.RequestMeta {
	return &audit.RequestMeta{IP: c.ClientIP(), UserAgent: c.Request.UserAgent()}
}

// record hands one event to the audit logger. Call only after the write succeeded.
func (h *Handler) record(c *gin.Context, action audit.Action, entity audit.EntityType, id uint, name string, details map[string]any) {
	ev := audit.Event{
		ActorID:    actorFrom(c).ID,
		Action:     action,
		EntityType: entity,
		EntityID:   &id,
		Details:    details,
		Request:    requestMeta(c),
	}
	if name != "" {
		ev.EntityName = &name
	}
	h.audit.Log(c.Request.Context(), ev)
}

// fail maps domain and storage errors onto HTTP responses.
func (h *Handler) fail(c *gin.Context, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		respondError(c, http.StatusBadRequest, ve.Message)
	case errors.Is(err, projects.ErrProjectNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		respondError(c, http.StatusNotFound, "not found")
	case errors.Is(err, projects.ErrStatusChangeNotAllowed):
		respondError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, projects.ErrCodeConflict):
		respondError(c, http.StatusConflict, "another project took this code at the same moment, please retry")
	case database.IsDuplicateKey(err):
		respondError(c, http.StatusConflict, "already exists")
	case errors.Is(err, context.DeadlineExceeded):
		respondError(c, http.StatusGatewayTimeout, "request timed out")
	default:
		h.log.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("request failed")
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}

// loadProject fetches the live project named by the :id param or writes a 404.
func (h *Handler) loadProject(ctx context.Context, c *gin.Context) (*models.Project, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}
	p, err := h.projects.Get(ctx, id)
	if err != nil {
		h.fail(c, err)
		return nil, false
	}
	return p, true
}

func uintValue(v *uint) any {
	if v == nil {
		return nil
	}
	return *v
}
