package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Finance holds planned and actual figures of one project for one period (YYYY-MM).
type Finance struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ProjectID      uint            `gorm:"uniqueIndex:idx_finance_project_period;not null" json:"project_id"`
	Period         string          `gorm:"size:7;uniqueIndex:idx_finance_project_period;not null" json:"period"`
	PlannedRevenue decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"planned_revenue"`
	PlannedExpense decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"planned_expense"`
	ActualRevenue  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"actual_revenue"`
	ActualExpense  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"actual_expense"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type CostItem struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ProjectID   uint            `gorm:"index;not null" json:"project_id"`
	Category    string          `gorm:"size:50;not null" json:"category"` // labor, vendor, travel ...
	Description string          `gorm:"size:255" json:"description"`
	Amount      decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	IncurredOn  *time.Time      `json:"incurred_on,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}
