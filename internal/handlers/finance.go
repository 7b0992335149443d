package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pmtrack/internal/audit"
	"pmtrack/internal/models"
)

const periodLayout = "2006-01"

func validPeriod(p string) bool {
	_, err := time.Parse(periodLayout, p)
	return err == nil
}

//
// FINANCE (one row per project and period)
//

type financeRequest struct {
	Period         string           `json:"period"`
	PlannedRevenue *decimal.Decimal `json:"planned_revenue"`
	PlannedExpense *decimal.Decimal `json:"planned_expense"`
	ActualRevenue  *decimal.Decimal `json:"actual_revenue"`
	ActualExpense  *decimal.Decimal `json:"actual_expense"`
}

func financeSnapshot(f *models.Finance) map[string]any {
	return map[string]any{
		"planned_revenue": f.PlannedRevenue.String(),
		"planned_expense": f.PlannedExpense.String(),
		"actual_revenue":  f.ActualRevenue.String(),
		"actual_expense":  f.ActualExpense.String(),
	}
}

func (h *Handler) UpdateFinance(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, ok := h.loadProject(ctx, c)
	if !ok {
		return
	}

	var req financeRequest
	if err := decodeJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validPeriod(req.Period) {
		respondError(c, http.StatusBadRequest, "period must be YYYY-MM")
		return
	}
	for _, d := range []*decimal.Decimal{req.PlannedRevenue, req.PlannedExpense, req.ActualRevenue, req.ActualExpense} {
		if d != nil && d.IsNegative() {
			respondError(c, http.StatusBadRequest, "amounts must not be negative")
			return
		}
	}

	var f models.Finance
	err := h.db.WithContext(ctx).Where("project_id = ? AND period = ?", p.ID, req.Period).First(&f).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		f = models.Finance{ProjectID: p.ID, Period: req.Period}
	case err != nil:
		h.fail(c, err)
		return
	}

	before := financeSnapshot(&f)
	for _, set := range []struct {
		dst *decimal.Decimal
		src *decimal.Decimal
	}{
		{&f.PlannedRevenue, req.PlannedRevenue},
		{&f.PlannedExpense, req.PlannedExpense},
		{&f.ActualRevenue, req.ActualRevenue},
		{&f.ActualExpense, req.ActualExpense},
	} {
		if set.src != nil {
			*set.dst = *set.src
		}
	}
	changes := audit.Diff(before, financeSnapshot(&f))
	if f.ID != 0 && len(changes) == 0 {
		c.JSON(http.StatusOK, f)
		return
	}

	if err := h.db.WithContext(ctx).Save(&f).Error; err != nil {
		h.fail(c, err)
		return
	}

	h.record(c, audit.ActionFinanceUpdate, audit.EntityFinance, f.ID, p.Code+" "+f.Period, map[string]any{
		"project_id":   p.ID,
		"project_code": p.Code,
		"period":       f.Period,
		"changes":      changes,
	})
	c.JSON(http.StatusOK, f)
}

//
// COST ITEMS
//

type costItemRequest struct {
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	IncurredOn  *time.Time      `json:"incurred_on"`
}

func (h *Handler) CreateCostItem(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, ok := h.loadProject(ctx, c)
	if !ok {
		return
	}

	var req costItemRequest
	if err := decodeJSON(c, &req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		respondError(c, http.StatusBadRequest, "category is required")
		return
	}
	if !req.Amount.IsPositive() {
		respondError(c, http.StatusBadRequest, "amount must be positive")
		return
	}

	item := models.CostItem{
		ProjectID:   p.ID,
		Category:    req.Category,
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		IncurredOn:  req.IncurredOn,
	}
	if err := h.db.WithContext(ctx).Create(&item).Error; err != nil {
		h.fail(c, err)
		return
	}

	h.record(c, audit.ActionCostItemCreate, audit.EntityCostItem, item.ID, item.Category, map[string]any{
		"project_id":   p.ID,
		"project_code": p.Code,
		"category":     item.Category,
		"amount":       item.Amount.String(),
		"incurred_on":  audit.DateValue(item.IncurredOn),
	})
	c.JSON(http.StatusCreated, item)
}

func (h *Handler) DeleteCostItem(c *gin.Context) {
	ctx, cancel := withTimeout(c)
	defer cancel()

	p, ok := h.loadProject(ctx, c)
	if !ok {
		return
	}
	itemID, ok := parseID(c, "itemID")
	if !ok {
		return
	}

	var item models.CostItem
	if err := h.db.WithContext(ctx).Where("project_id = ?", p.ID).First(&item, itemID).Error; err != nil {
		h.fail(c, err)
		return
	}
	if err := h.db.WithContext(ctx).Delete(&item).Error; err != nil {
		h.fail(c, err)
		return
	}

	h.record(c, audit.ActionCostItemDelete, audit.EntityCostItem, item.ID, item.Category, map[string]any{
		"project_id":   p.ID,
		"project_code": p.Code,
		"category":     item.Category,
		"amount":       item.Amount.String(),
	})
	c.Status(http.StatusNoContent)
}
