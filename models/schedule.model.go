package models

import (
	"time"

	"gorm.io/gorm"
)

// Course schedule lifecycle. Transitions are monotonic: SCHEDULED →
// ONGOING → COMPLETED, or any non-terminal → CANCELLED. A separate
// scheduler service advances the status as time passes; this service
// only reads it.
const (
	ScheduleStatusScheduled = "SCHEDULED"
	ScheduleStatusOngoing   = "ONGOING"
	ScheduleStatusCompleted = "COMPLETED"
	ScheduleStatusCancelled = "CANCELLED"
)

// CourseSchedule represents one cohort/run of a course
type CourseSchedule struct {
	gorm.Model
	CourseID  uint      `json:"course_id" gorm:"index;not null"`
	Course    Course    `json:"course"`
	StartDate time.Time `json:"start_date" gorm:"not null"`
	EndDate   time.Time `json:"end_date" gorm:"not null"`
	Status    string    `json:"status" gorm:"default:'SCHEDULED'"`
	IsDeleted bool      `gorm:"default:false"`
}

// CanPurchase reports whether new enrollments are accepted for this
// schedule. Callers must re-check inside the enrollment transaction;
// this is only the advisory half of the gate.
func (s *CourseSchedule) CanPurchase() (bool, string) {
	switch s.Status {
	case ScheduleStatusOngoing:
		return false, "이미 진행중인 강의" // already in progress
	case ScheduleStatusCompleted:
		return false, "이미 종료된 강의" // already finished
	case ScheduleStatusCancelled:
		return false, "취소된 강의" // cancelled run
	}
	return true, ""
}
