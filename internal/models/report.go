package models

import "time"

// Report is the Goal/Approach/Resource/Feedback narrative of a project for one period.
type Report struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"uniqueIndex:idx_report_project_period;not null" json:"project_id"`
	Period    string    `gorm:"size:7;uniqueIndex:idx_report_project_period;not null" json:"period"`
	Goal      string    `gorm:"type:text" json:"goal"`
	Approach  string    `gorm:"type:text" json:"approach"`
	Resource  string    `gorm:"type:text" json:"resource"`
	Feedback  string    `gorm:"type:text" json:"feedback"`
	AuthorID  uint      `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
