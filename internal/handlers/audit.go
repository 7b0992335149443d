package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pmtrack/internal/database"
)

// ListAuditLogs filters by user_id, action, entity_type, entity_id and an
// RFC3339 since/until window. Newest first.
func (h *Handler) ListAuditLogs(c *gin.Context) {
	var f database.AuditFilter

	if v := c.Query("user_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid user_id")
			return
		}
		f.UserID = uint(id)
	}
	if v := c.Query("entity_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			respondError(c, http.StatusBadRequest, "invalid entity_id")
			return
		}
		f.EntityID = uint(id)
	}
	for _, tw := range []struct {
		key string
		dst *time.Time
	}{{"since", &f.Since}, {"until", &f.Until}} {
		if v := c.Query(tw.key); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				respondError(c, http.StatusBadRequest, "invalid "+tw.key)
				return
			}
			*tw.dst = t
		}
	}
	f.Action = c.Query("action")
	f.EntityType = c.Query("entity_type")
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))

	ctx, cancel := withTimeout(c)
	defer cancel()

	logs, err := h.auditStore.List(ctx, f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}
