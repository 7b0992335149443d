package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"pmtrack/internal/audit"
	"pmtrack/internal/database"
	"pmtrack/internal/models"
	"pmtrack/internal/projects"
)

//
// LIST / DETAIL
//

func (h *Handler) ListProjects(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.projectStore.List(ctx, database.ProjectFilter{
		Type:   c.Query("type"),
		Status: c.Query("status"),
		Query:  strings.TrimSpace(c.Query("q")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": list})
}

func (h *Handler) GetProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.projectStore.GetDetail(ctx, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

//
// CODES
//

// NextCode previews the code a new project of ?type= would get. Nothing is reserved.
func (h *Handler) NextCode(c *gin.Context) {
	label := strings.TrimSpace(c.Query("type"))
	if label == "" {
		respondError(c, http.StatusBadRequest, "type is required")
		return
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	code, err := h.projects.PreviewCode(ctx, label)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": label, "code": code})
}

//
// CREATE / UPDATE / DELETE
//

func (h *Handler) CreateProject(c *gin.Context) {
	var in projects.CreateInput
	if err := decodeJSON(c, &in); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.projects.Create(ctx, actorFrom(c), in, requestMeta(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handler) UpdateProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var in projects.UpdateInput
	if err := decodeJSON(c, &in); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.projects.Update(ctx, actorFrom(c), id, in, requestMeta(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

type statusRequest struct {
	Status models.ProjectStatus `json:"status"`
}

func (h *Handler) ChangeProjectStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req statusRequest
	if err := decodeJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	p, err := h.projects.ChangeStatus(ctx, actorFrom(c), id, req.Status, requestMeta(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) DeleteProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.projects.Delete(ctx, actorFrom(c), id, requestMeta(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

//
// HISTORY
//

func (h *Handler) ProjectHistory(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, ok := h.loadProject(ctx, c)
	if !ok {
		return
	}

	logs, err := h.auditStore.ForEntity(ctx, string(audit.EntityProject), p.ID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"project": p, "logs": logs})
}
