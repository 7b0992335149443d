package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProjectType string
type ProjectStatus string

const (
	ProjectCustomerDriven ProjectType = "客戶需求導向"
	ProjectStrategyDriven ProjectType = "公司策略導向"
	ProjectInternal       ProjectType = "內部專案"

	StatusPlanning   ProjectStatus = "planning"
	StatusInProgress ProjectStatus = "in_progress"
	StatusCompleted  ProjectStatus = "completed"
	StatusOnHold     ProjectStatus = "on_hold"
	StatusCancelled  ProjectStatus = "cancelled"
)

// Valid reports whether s is one of the known project statuses.
func (s ProjectStatus) Valid() bool {
	switch s {
	case StatusPlanning, StatusInProgress, StatusCompleted, StatusOnHold, StatusCancelled:
		return true
	}
	return false
}

type Project struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Code is assigned once at creation and never changes. The unique index
	// also covers soft-deleted rows, so a deleted project keeps its code.
	Code string `gorm:"size:20;uniqueIndex;not null" json:"code"`

	Name     string        `gorm:"size:255;not null" json:"name"`
	Client   string        `gorm:"size:255" json:"client"`
	Type     ProjectType   `gorm:"type:varchar(50);not null" json:"type"`
	Status   ProjectStatus `gorm:"type:varchar(20);not null" json:"status"`
	Progress int           `gorm:"not null;default:0" json:"progress"` // 0..100

	Description string `gorm:"type:text" json:"description"`
	Goal        string `gorm:"type:text" json:"goal"`
	Approach    string `gorm:"type:text" json:"approach"`
	Resource    string `gorm:"type:text" json:"resource"`
	Feedback    string `gorm:"type:text" json:"feedback"`

	PlannedRevenue decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"planned_revenue"`
	PlannedExpense decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"planned_expense"`
	ActualRevenue  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"actual_revenue"`
	ActualExpense  decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"actual_expense"`

	PlannedStart *time.Time `json:"planned_start,omitempty"`
	PlannedEnd   *time.Time `json:"planned_end,omitempty"`
	ActualStart  *time.Time `json:"actual_start,omitempty"`
	ActualEnd    *time.Time `json:"actual_end,omitempty"`

	CreatedByID uint           `json:"created_by_id"`
	UpdatedByID uint           `json:"updated_by_id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	Tasks     []Task     `gorm:"constraint:OnDelete:CASCADE" json:"tasks,omitempty"`
	Members   []Member   `gorm:"constraint:OnDelete:CASCADE" json:"members,omitempty"`
	Finances  []Finance  `gorm:"constraint:OnDelete:CASCADE" json:"finances,omitempty"`
	CostItems []CostItem `gorm:"constraint:OnDelete:CASCADE" json:"cost_items,omitempty"`
	WorkHours []WorkHour `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Reports   []Report   `gorm:"constraint:OnDelete:CASCADE" json:"reports,omitempty"`
}
