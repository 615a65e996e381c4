package models

import "gorm.io/gorm"

// Enrollment states. PENDING and PROCESSING belong to attempts whose
// payment has not settled yet; they may be superseded by a newer
// attempt for the same (user, course, schedule) triple. COMPLETED and
// CANCELLED are terminal. Rows are never deleted, so cancelled history
// stays queryable.
const (
	EnrollmentStatusPending    = "PENDING"
	EnrollmentStatusProcessing = "PROCESSING"
	EnrollmentStatusConfirmed  = "CONFIRMED"
	EnrollmentStatusCompleted  = "COMPLETED"
	EnrollmentStatusCancelled  = "CANCELLED"
)

// enrollmentTransitions is the allowed forward-only state table.
var enrollmentTransitions = map[string][]string{
	EnrollmentStatusPending:    {EnrollmentStatusProcessing, EnrollmentStatusConfirmed, EnrollmentStatusCancelled},
	EnrollmentStatusProcessing: {EnrollmentStatusConfirmed, EnrollmentStatusCancelled},
	EnrollmentStatusConfirmed:  {EnrollmentStatusCompleted, EnrollmentStatusCancelled},
	EnrollmentStatusCompleted:  {},
	EnrollmentStatusCancelled:  {},
}

// Enrollment is one user's claim on one seat in one schedule.
// Invariant: at most one CONFIRMED row per (user, course, schedule),
// enforced by a partial unique index plus row locks in the ledger.
type Enrollment struct {
	gorm.Model
	UserID     uint           `json:"user_id" gorm:"index;not null"`
	CourseID   uint           `json:"course_id" gorm:"index;not null"`
	ScheduleID uint           `json:"schedule_id" gorm:"index;not null"`
	Schedule   CourseSchedule `json:"schedule"`
	PaymentID  *uint          `json:"payment_id" gorm:"index"` // nil for free courses
	Payment    *Payment       `json:"payment,omitempty"`
	Status     string         `json:"status" gorm:"default:'PENDING'"`
}

// CanTransition reports whether an enrollment may move between the two
// statuses.
func (Enrollment) CanTransition(from, to string) bool {
	for _, s := range enrollmentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the enrollment can no longer change.
func (e *Enrollment) IsTerminal() bool {
	return e.Status == EnrollmentStatusCompleted || e.Status == EnrollmentStatusCancelled
}
