package models

import "time"

// Member staffs a user onto a project with a project-level role and an allocation
// percentage of their time.
type Member struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProjectID  uint      `gorm:"uniqueIndex:idx_member_project_user;not null" json:"project_id"`
	UserID     uint      `gorm:"uniqueIndex:idx_member_project_user;not null" json:"user_id"`
	Role       string    `gorm:"size:50" json:"role"`
	Allocation int       `gorm:"not null;default:100" json:"allocation"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
