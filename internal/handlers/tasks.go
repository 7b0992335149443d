package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pmtrack/internal/audit"
	"pmtrack/internal/models"
)

type taskRequest struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Status      *models.TaskStatus `json:"status"`
	AssigneeID  *uint              `json:"assignee_id"`
	DueDate     *time.Time         `json:"due_date"`
}

func (r taskRequest) apply(t *models.Task) {
	if r.Title != nil {
		t.Title = strings.TrimSpace(*r.Title)
	}
	if r.Description != nil {
		t.Description = *r.Description
	}
	if r.Status != nil {
		t.Status = *r.Status
	}
	if r.AssigneeID != nil {
		t.AssigneeID = r.AssigneeID
	}
	if r.DueDate != nil {
		t.DueDate = r.DueDate
	}
}

func validateTask(t *models.Task) string {
	if t.Title == "" {
		return "title is required"
	}
	if !t.Status.Valid() {
		return "unknown task status"
	}
	return ""
}

func taskSnapshot(t *models.Task) map[string]any {
	return map[string]any{
		"title":       t.Title,
		"description": t.Description,
		"status":      string(t.Status),
		"assignee_id": uintValue(t.AssigneeID),
		"due_date":    audit.DateValue(t.DueDate),
	}
}

func (h *Handler) CreateTask(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, ok := h.loadProject(ctx, c)
	if !ok {
		return
	}

	var req taskRequest
	if err := decodeJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	task := models.Task{ProjectID: p.ID, Status: models.TaskTodo}
	req.apply(&task)
	if msg := validateTask(&task); msg != "" {
		respondError(c, http.StatusBadRequest, msg)
		return
	}

	if err := h.db.WithContext(ctx).Create(&task).Error; err != nil {
		h.fail(c, err)
		return
	}

	h.record(c, audit.ActionTaskCreate, audit.EntityTask, task.ID, task.Title, map[string]any{
		"project_id":   p.ID,
		"project_code": p.Code,
		"title":        task.Title,
		"status":       string(task.Status),
	})
	c.JSON(http.StatusCreated, task)
}

func (h *Handler) UpdateTask(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, ok := h.loadProject(ctx, c)
	if !ok {
		return
	}
	taskID, ok := parseID(c, "taskID")
	if !ok {
		return
	}

	var req taskRequest
	if err := decodeJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	var task models.Task
	if err := h.db.WithContext(ctx).Where("project_id = ?", p.ID).First(&task, taskID).Error; err != nil {
		h.fail(c, err)
		return
	}

	before := taskSnapshot(&task)
	req.apply(&task)
	if msg := validateTask(&task); msg != "" {
		respondError(c, http.StatusBadRequest, msg)
		return
	}
	changes := audit.Diff(before, taskSnapshot(&task))
	if len(changes) == 0 {
		c.JSON(http.StatusOK, task)
		return
	}

	if err := h.db.WithContext(ctx).Save(&task).Error; err != nil {
		h.fail(c, err)
		return
	}

	h.record(c, audit.ActionTaskUpdate, audit.EntityTask, task.ID, task.Title, map[string]any{
		"project_id":   p.ID,
		"project_code": p.Code,
		"changes":      changes,
	})
	c.JSON(http.StatusOK, task)
}

func (h *Handler) DeleteTask(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, ok := h.loadProject(ctx, c)
	if !ok {
		return
	}
	taskID, ok := parseID(c, "taskID")
	if !ok {
		return
	}

	var task models.Task
	if err := h.db.WithContext(ctx).Where("project_id = ?", p.ID).First(&task, taskID).Error; err != nil {
		h.fail(c, err)
		return
	}
	if err := h.db.WithContext(ctx).Delete(&task).Error; err != nil {
		h.fail(c, err)
		return
	}

	h.record(c, audit.ActionTaskDelete, audit.EntityTask, task.ID, task.Title, map[string]any{
		"project_id":   p.ID,
		"project_code": p.Code,
		"title":        task.Title,
	})
	c.Status(http.StatusNoContent)
}
