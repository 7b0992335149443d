package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pmtrack/internal/database"
)

func (h *Handler) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

func (h *Handler) Readyz(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := database.Ping(ctx, h.db); err != nil {
		h.log.Warn().Err(err).Msg("readiness check failed")
		c.String(http.StatusServiceUnavailable, "database unavailable")
		return
	}
	c.String(http.StatusOK, "ready")
}
