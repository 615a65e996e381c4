package models

import (
	"time"

	"gorm.io/gorm"
)

// User carries the identity fields the enrollment core needs. Account
// management (signup, login, profile) lives in a separate service; rows
// here are kept in sync by that service and are read-only to this one.
type User struct {
	gorm.Model
	Name      string     `gorm:"default:''"`
	Email     string     `gorm:"unique;not null"`
	Mobile    string     `gorm:"default:''"`
	Role      string     `gorm:"default:'USER'"` // USER, INSTRUCTOR, ADMIN
	LastLogin *time.Time `json:"last_login"`
	IsDeleted bool       `gorm:"default:false"`
}
