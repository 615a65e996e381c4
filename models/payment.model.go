package models

import (
	"time"

	"gorm.io/gorm"
)

// Payment states. FAILED, CANCELLED and REFUNDED are terminal; so is
// CONFIRMED except for the explicit refund path. Amount is immutable
// after creation.
const (
	PaymentStatusPending    = "PENDING"
	PaymentStatusProcessing = "PROCESSING"
	PaymentStatusConfirmed  = "CONFIRMED"
	PaymentStatusFailed     = "FAILED"
	PaymentStatusCancelled  = "CANCELLED"
	PaymentStatusRefunded   = "REFUNDED"
)

// paymentTransitions is the allowed forward-only state table.
// CANCELLED from PENDING/PROCESSING is the supersede path; REFUNDED is
// reachable only from CONFIRMED via an explicit cancellation.
var paymentTransitions = map[string][]string{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusProcessing: {PaymentStatusConfirmed, PaymentStatusFailed, PaymentStatusCancelled},
	PaymentStatusConfirmed:  {PaymentStatusRefunded},
	PaymentStatusFailed:     {},
	PaymentStatusCancelled:  {},
	PaymentStatusRefunded:   {},
}

// Payment is one monetary transaction backing at most one enrollment.
type Payment struct {
	gorm.Model
	UserID uint   `json:"user_id" gorm:"index;not null"`
	Amount int64  `json:"amount" gorm:"not null"` // KRW
	Status string `json:"status" gorm:"default:'PENDING'"`

	BillID     string `json:"bill_id" gorm:"size:20;index"` // gateway idempotency key
	BillURL    string `json:"bill_url"`
	FailReason string `json:"fail_reason"`

	// Approval metadata, populated only on confirmation
	ApprovedAt     *time.Time `json:"approved_at"`
	InstrumentType string     `json:"instrument_type"` // CARD, BANK, PHONE ...
	Issuer         string     `json:"issuer"`
	ApprovalNumber string     `json:"approval_number"`

	// Refund audit, recorded by the cancellation flow
	RefundRate   string     `json:"refund_rate"` // e.g. "2/3"
	RefundAmount int64      `json:"refund_amount"`
	RefundedAt   *time.Time `json:"refunded_at"`
}

// CanTransition reports whether a payment may move between the two
// statuses.
func (Payment) CanTransition(from, to string) bool {
	for _, s := range paymentTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the payment can no longer change.
// CONFIRMED counts as terminal for callback delivery: a duplicate
// webhook against it must be a no-op.
func (p *Payment) IsTerminal() bool {
	switch p.Status {
	case PaymentStatusConfirmed, PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}
