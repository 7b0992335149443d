package models

import "time"

// Role describes what a UserRole is allowed to do. Users reference roles by name.
type Role struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        UserRole  `gorm:"type:varchar(20);uniqueIndex;not null" json:"name"`
	Description string    `gorm:"size:255" json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
