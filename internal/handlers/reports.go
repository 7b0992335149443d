package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"pmtrack/internal/audit"
	"pmtrack/internal/models"
)

type reportRequest struct {
	Period   string  `json:"period"`
	Goal     *string `json:"goal"`
	Approach *string `json:"approach"`
	Resource *string `json:"resource"`
	Feedback *string `json:"feedback"`
}

func reportSnapshot(r *models.Report) map[string]any {
	return map[string]any{
		"goal":     r.Goal,
		"approach": r.Approach,
		"resource": r.Resource,
		"feedback": r.Feedback,
	}
}

// UpdateReport creates or edits the Goal/Approach/Resource/Feedback report of one period.
func (h *Handler) UpdateReport(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, ok := h.loadProject(ctx, c)
	if !ok {
		return
	}

	var req reportRequest
	if err := decodeJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validPeriod(req.Period) {
		respondError(c, http.StatusBadRequest, "period must be YYYY-MM")
		return
	}

	var r models.Report
	err := h.db.WithContext(ctx).Where("project_id = ? AND period = ?", p.ID, req.Period).First(&r).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		r = models.Report{ProjectID: p.ID, Period: req.Period}
	case err != nil:
		h.fail(c, err)
		return
	}

	before := reportSnapshot(&r)
	setString(&r.Goal, req.Goal)
	setString(&r.Approach, req.Approach)
	setString(&r.Resource, req.Resource)
	setString(&r.Feedback, req.Feedback)
	changes := audit.Diff(before, reportSnapshot(&r))
	if r.ID != 0 && len(changes) == 0 {
		c.JSON(http.StatusOK, r)
		return
	}

	r.AuthorID = actorFrom(c).ID
	if err := h.db.WithContext(ctx).Save(&r).Error; err != nil {
		h.fail(c, err)
		return
	}

	h.record(c, audit.ActionReportUpdate, audit.EntityReport, r.ID, p.Code+" "+r.Period, map[string]any{
		"project_id":   p.ID,
		"project_code": p.Code,
		"period":       r.Period,
		"changes":      changes,
	})
	c.JSON(http.StatusOK, r)
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
