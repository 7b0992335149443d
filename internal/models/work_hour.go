package models

import "time"

type WorkHour struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"uniqueIndex:idx_workhour_entry;not null" json:"project_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_workhour_entry;not null" json:"user_id"`
	WorkDate  time.Time `gorm:"type:date;uniqueIndex:idx_workhour_entry;not null" json:"work_date"`
	Hours     float64   `gorm:"not null" json:"hours"`
	Note      string    `gorm:"size:255" json:"note"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
