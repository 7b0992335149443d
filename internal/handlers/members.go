package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pmtrack/internal/audit"
	"pmtrack/internal/models"
)

type memberRequest struct {
	UserID     uint    `json:"user_id"`
	Role       *string `json:"role"`
	Allocation *int    `json:"allocation"`
}

func memberSnapshot(m *models.Member) map[string]any {
	return map[string]any{"role": m.Role, "allocation": m.Allocation}
}

func validAllocation(a int) bool {
	return a >= 0 && a <= 100
}

func (h *Handler) AddMember(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, ok := h.loadProject(ctx, c)
	if !ok {
		return
	}

	var req memberRequest
	if err := decodeJSON(c, &req); err != nil || req.UserID == 0 {
		respondError(c, http.StatusBadRequest, "user_id is required")
		return
	}

	var user models.User
	if err := h.db.WithContext(ctx).First(&user, req.UserID).Error; err != nil {
		h.fail(c, err)
		return
	}

	m := models.Member{ProjectID: p.ID, UserID: user.ID, Allocation: 100}
	if req.Role != nil {
		m.Role = strings.TrimSpace(*req.Role)
	}
	if req.Allocation != nil {
		m.Allocation = *req.Allocation
	}
	if !validAllocation(m.Allocation) {
		respondError(c, http.StatusBadRequest, "allocation must be between 0 and 100")
		return
	}

	if err := h.db.WithContext(ctx).Create(&m).Error; err != nil {
		h.fail(c, err)
		return
	}

	h.record(c, audit.ActionMemberAdd, audit.EntityMember, m.ID, user.Username, map[string]any{
		"project_id":   p.ID,
		"project_code": p.Code,
		"user_id":      user.ID,
		"role":         m.Role,
		"allocation":   m.Allocation,
	})
	c.JSON(http.StatusCreated, m)
}

func (h *Handler) UpdateMember(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, ok := h.loadProject(ctx, c)
	if !ok {
		return
	}
	memberID, ok := parseID(c, "memberID")
	if !ok {
		return
	}

	var req memberRequest
	if err := decodeJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	var m models.Member
	if err := h.db.WithContext(ctx).Where("project_id = ?", p.ID).First(&m, memberID).Error; err != nil {
		h.fail(c, err)
		return
	}

	before := memberSnapshot(&m)
	if req.Role != nil {
		m.Role = strings.TrimSpace(*req.Role)
	}
	if req.Allocation != nil {
		m.Allocation = *req.Allocation
	}
	if !validAllocation(m.Allocation) {
		respondError(c, http.StatusBadRequest, "allocation must be between 0 and 100")
		return
	}
	changes := audit.Diff(before, memberSnapshot(&m))
	if len(changes) == 0 {
		c.JSON(http.StatusOK, m)
		return
	}

	if err := h.db.WithContext(ctx).Save(&m).Error; err != nil {
		h.fail(c, err)
		return
	}

	h.record(c, audit.ActionMemberUpdate, audit.EntityMember, m.ID, "", map[string]any{
		"project_id":   p.ID,
		"project_code": p.Code,
		"user_id":      m.UserID,
		"changes":      changes,
	})
	c.JSON(http.StatusOK, m)
}

func (h *Handler) RemoveMember(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, ok := h.loadProject(ctx, c)
	if !ok {
		return
	}
	memberID, ok := parseID(c, "memberID")
	if !ok {
		return
	}

	var m models.Member
	if err := h.db.WithContext(ctx).Where("project_id = ?", p.ID).First(&m, memberID).Error; err != nil {
		h.fail(c, err)
		return
	}
	if err := h.db.WithContext(ctx).Delete(&m).Error; err != nil {
		h.fail(c, err)
		return
	}

	h.record(c, audit.ActionMemberRemove, audit.EntityMember, m.ID, "", map[string]any{
		"project_id":   p.ID,
		"project_code": p.Code,
		"user_id":      m.UserID,
	})
	c.Status(http.StatusNoContent)
}
