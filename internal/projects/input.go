package projects

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"pmtrack/internal/audit"
	"pmtrack/internal/models"
)

type CreateInput struct {
	Name        string `json:"name"`
	Client      string `json:"client"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Goal        string `json:"goal"`
	Approach    string `json:"approach"`
	Resource    string `json:"resource"`
	Feedback    string `json:"feedback"`

	PlannedRevenue decimal.Decimal `json:"planned_revenue"`
	PlannedExpense decimal.Decimal `json:"planned_expense"`

	PlannedStart *time.Time `json:"planned_start"`
	PlannedEnd   *time.Time `json:"planned_end"`
}

// UpdateInput is a partial update; nil fields are left alone. Code and type
// are fixed at creation and cannot be changed here.
type UpdateInput struct {
	Name        *string `json:"name"`
	Client      *string `json:"client"`
	Description *string `json:"description"`
	Goal        *string `json:"goal"`
	Approach    *string `json:"approach"`
	Resource    *string `json:"resource"`
	Feedback    *string `json:"feedback"`
	Progress    *int    `json:"progress"`

	PlannedRevenue *decimal.Decimal `json:"planned_revenue"`
	PlannedExpense *decimal.Decimal `json:"planned_expense"`
	ActualRevenue  *decimal.Decimal `json:"actual_revenue"`
	ActualExpense  *decimal.Decimal `json:"actual_expense"`

	PlannedStart *time.Time `json:"planned_start"`
	PlannedEnd   *time.Time `json:"planned_end"`
	ActualStart  *time.Time `json:"actual_start"`
	ActualEnd    *time.Time `json:"actual_end"`
}

func (in UpdateInput) apply(p *models.Project) {
	setString(&p.Name, in.Name)
	setString(&p.Client, in.Client)
	setString(&p.Description, in.Description)
	setString(&p.Goal, in.Goal)
	setString(&p.Approach, in.Approach)
	setString(&p.Resource, in.Resource)
	setString(&p.Feedback, in.Feedback)
	if in.Progress != nil {
		p.Progress = *in.Progress
	}
	setDecimal(&p.PlannedRevenue, in.PlannedRevenue)
	setDecimal(&p.PlannedExpense, in.PlannedExpense)
	setDecimal(&p.ActualRevenue, in.ActualRevenue)
	setDecimal(&p.ActualExpense, in.ActualExpense)
	if in.PlannedStart != nil {
		p.PlannedStart = in.PlannedStart
	}
	if in.PlannedEnd != nil {
		p.PlannedEnd = in.PlannedEnd
	}
	if in.ActualStart != nil {
		p.ActualStart = in.ActualStart
	}
	if in.ActualEnd != nil {
		p.ActualEnd = in.ActualEnd
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setDecimal(dst *decimal.Decimal, v *decimal.Decimal) {
	if v != nil {
		*dst = *v
	}
}

func validate(p *models.Project) error {
	if utf8.RuneCountInString(strings.TrimSpace(p.Name)) < 2 {
		return models.NewValidationError("project name must be at least 2 characters")
	}
	if strings.TrimSpace(string(p.Type)) == "" {
		return models.NewValidationError("project type is required")
	}
	if p.Progress < 0 || p.Progress > 100 {
		return models.NewValidationError("progress must be between 0 and 100")
	}
	if p.PlannedStart != nil && p.PlannedEnd != nil && p.PlannedEnd.Before(*p.PlannedStart) {
		return models.NewValidationError("planned end must not be before planned start")
	}
	if p.ActualStart != nil && p.ActualEnd != nil && p.ActualEnd.Before(*p.ActualStart) {
		return models.NewValidationError("actual end must not be before actual start")
	}
	for _, d := range []decimal.Decimal{p.PlannedRevenue, p.PlannedExpense, p.ActualRevenue, p.ActualExpense} {
		if d.IsNegative() {
			return models.NewValidationError("amounts must not be negative")
		}
	}
	return nil
}

// snapshot flattens the auditable fields of p into JSON-friendly values.
func snapshot(p *models.Project) map[string]any {
	return map[string]any{
		"name":            p.Name,
		"client":          p.Client,
		"description":     p.Description,
		"goal":            p.Goal,
		"approach":        p.Approach,
		"resource":        p.Resource,
		"feedback":        p.Feedback,
		"status":          string(p.Status),
		"progress":        p.Progress,
		"planned_revenue": p.PlannedRevenue.String(),
		"planned_expense": p.PlannedExpense.String(),
		"actual_revenue":  p.ActualRevenue.String(),
		"actual_expense":  p.ActualExpense.String(),
		"planned_start":   audit.DateValue(p.PlannedStart),
		"planned_end":     audit.DateValue(p.PlannedEnd),
		"actual_start":    audit.DateValue(p.ActualStart),
		"actual_end":      audit.DateValue(p.ActualEnd),
	}
}
