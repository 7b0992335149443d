package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pmtrack/internal/audit"
	"pmtrack/internal/models"
)

//
// USERS
//

func (h *Handler) ListUsers(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	var users []models.User
	if err := h.db.WithContext(ctx).Order("username asc").Find(&users).Error; err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

type userRoleRequest struct {
	Role models.UserRole `json:"role"`
}

func (h *Handler) ChangeUserRole(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req userRoleRequest
	if err := decodeJSON(c, &req); err != nil || !req.Role.Valid() {
		respondError(c, http.StatusBadRequest, "unknown role")
		return
	}
	if id == actorFrom(c).ID {
		respondError(c, http.StatusBadRequest, "you cannot change your own role")
		return
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	var user models.User
	if err := h.db.WithContext(ctx).First(&user, id).Error; err != nil {
		h.fail(c, err)
		return
	}
	if user.Role == req.Role {
		c.JSON(http.StatusOK, user)
		return
	}

	from := user.Role
	if err := h.db.WithContext(ctx).Model(&user).Update("role", req.Role).Error; err != nil {
		h.fail(c, err)
		return
	}
	user.Role = req.Role

	h.record(c, audit.ActionUserRoleChange, audit.EntityUser, user.ID, user.Username, map[string]any{
		"from": string(from),
		"to":   string(req.Role),
	})
	c.JSON(http.StatusOK, user)
}

//
// ROLES
//

func (h *Handler) ListRoles(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	var roles []models.Role
	if err := h.db.WithContext(ctx).Order("id asc").Find(&roles).Error; err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roles": roles})
}

type roleRequest struct {
	Description string `json:"description"`
}

func (h *Handler) UpdateRole(c *gin.Context) {
	name := models.UserRole(c.Param("name"))
	if !name.Valid() {
		respondError(c, http.StatusNotFound, "not found")
		return
	}
	var req roleRequest
	if err := decodeJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	var role models.Role
	if err := h.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		h.fail(c, err)
		return
	}

	desc := strings.TrimSpace(req.Description)
	changes := audit.Diff(map[string]any{"description": role.Description}, map[string]any{"description": desc})
	if len(changes) == 0 {
		c.JSON(http.StatusOK, role)
		return
	}

	if err := h.db.WithContext(ctx).Model(&role).Update("description", desc).Error; err != nil {
		h.fail(c, err)
		return
	}
	role.Description = desc

	h.record(c, audit.ActionRoleUpdate, audit.EntityRole, role.ID, string(role.Name), map[string]any{"changes": changes})
	c.JSON(http.StatusOK, role)
}
