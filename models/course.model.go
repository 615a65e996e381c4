package models

import "gorm.io/gorm"

// Course represents a purchasable course
type Course struct {
	gorm.Model
	Title       string `json:"title"`
	Description string `json:"description"`
	Instructor  string `json:"instructor"`
	Price       int64  `json:"price" gorm:"default:0"`        // KRW, 0 means free
	Status      string `json:"status" gorm:"default:'DRAFT'"` // DRAFT, ACTIVE, INACTIVE
	IsDeleted   bool   `gorm:"default:false"`
}
