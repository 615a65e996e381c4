// Package ledger is the transactional core of enrollment and payment.
// It is the sole writer of Enrollment and Payment rows; every mutating
// operation for one (user, course, schedule) triple runs inside a row
// lock so concurrent purchase attempts are totally ordered.
package ledger

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"coursepay/gateway"
	"coursepay/models"
	"coursepay/refund"
)

// GatewayAPI is the slice of the gateway client the ledger drives.
type GatewayAPI interface {
	Submit(req *gateway.BillRequest) (string, error)
	RefundBill(billID string, amount int64) error
}

// Notifier receives best-effort events after a successful commit.
// Implementations must not block; failures are logged, never
// propagated into the transaction that produced the event.
type Notifier interface {
	EnrollmentConfirmed(userID, courseID, scheduleID, enrollmentID uint, amount int64)
	EnrollmentCancelled(userID, enrollmentID uint, refundAmount int64)
}

// Ledger owns the enrollment/payment state machines.
type Ledger struct {
	db       *gorm.DB
	gw       GatewayAPI
	gwConfig gateway.Config
	notifier Notifier
	now      func() time.Time
}

// New builds a ledger. The now func is injectable for tests; pass nil
// for time.Now.
func New(db *gorm.DB, gw GatewayAPI, gwConfig gateway.Config, notifier Notifier, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{db: db, gw: gw, gwConfig: gwConfig, notifier: notifier, now: now}
}

// lockForUpdate applies SELECT ... FOR UPDATE where the dialect
// supports it. The sqlite test database serializes writers on its own.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// EnrollmentResult is the synchronous answer to a purchase request.
type EnrollmentResult struct {
	Enrollment *models.Enrollment
	BillURL    string // empty on the free path
}

// RequestEnrollment turns a purchase intent into either a confirmed
// seat (free course) or a pending payment with a follow-up URL.
//
// Runs in two phases so the ledger's write lock is never held across
// the gateway call: (1) gate + supersede + create pending, commit;
// (2) gateway call; (3) short transaction recording the outcome.
func (l *Ledger) RequestEnrollment(userID, scheduleID uint, payerName, phone string) (*EnrollmentResult, error) {
	var (
		schedule   models.CourseSchedule
		enrollment models.Enrollment
		payment    *models.Payment
	)

	err := l.db.Transaction(func(tx *gorm.DB) error {
		// The schedule row is the lock anchor for every attempt on this
		// schedule. Locking only the triple's enrollment rows is not
		// enough: two concurrent first attempts have no rows to lock and
		// would both create live pending pairs.
		if err := lockForUpdate(tx).Preload("Course").
			Where("id = ? AND is_deleted = false", scheduleID).
			First(&schedule).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		// Re-validated here, inside the transaction, regardless of any
		// advisory check the caller already did.
		if ok, reason := schedule.CanPurchase(); !ok {
			return fmt.Errorf("%w: %s", ErrScheduleClosed, reason)
		}

		// Validate contact info before any write so input errors never
		// leave state behind. Free courses need no phone.
		if schedule.Course.Price > 0 {
			if _, err := gateway.NormalizePhone(phone); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidContactInfo, err)
			}
		}

		// Lock every enrollment row for this triple. Concurrent
		// attempts for the same triple queue up here.
		var existing []models.Enrollment
		if err := lockForUpdate(tx).
			Where("user_id = ? AND course_id = ? AND schedule_id = ?",
				userID, schedule.CourseID, scheduleID).
			Find(&existing).Error; err != nil {
			return err
		}

		for i := range existing {
			switch existing[i].Status {
			case models.EnrollmentStatusConfirmed, models.EnrollmentStatusCompleted:
				return ErrAlreadyEnrolled
			case models.EnrollmentStatusPending, models.EnrollmentStatusProcessing:
				// Supersede: a re-clicked purchase cancels the earlier
				// half-finished attempt instead of erroring on it.
				if err := l.supersede(tx, &existing[i]); err != nil {
					return err
				}
			}
		}

		if schedule.Course.Price == 0 {
			enrollment = models.Enrollment{
				UserID:     userID,
				CourseID:   schedule.CourseID,
				ScheduleID: scheduleID,
				Status:     models.EnrollmentStatusConfirmed,
			}
			return tx.Create(&enrollment).Error
		}

		payment = &models.Payment{
			UserID: userID,
			Amount: schedule.Course.Price,
			Status: models.PaymentStatusPending,
		}
		if err := tx.Create(payment).Error; err != nil {
			return err
		}

		enrollment = models.Enrollment{
			UserID:     userID,
			CourseID:   schedule.CourseID,
			ScheduleID: scheduleID,
			PaymentID:  &payment.ID,
			Status:     models.EnrollmentStatusPending,
		}
		return tx.Create(&enrollment).Error
	})
	if err != nil {
		return nil, err
	}

	// Free path: confirmed already, nothing owed to the gateway.
	if payment == nil {
		l.notifyConfirmed(&enrollment, 0)
		return &EnrollmentResult{Enrollment: &enrollment}, nil
	}

	// Phase 2: gateway call, outside any transaction. The bill id is
	// derived from the payment id, so a crash-and-retry of the same
	// payment reuses the gateway's idempotency key.
	billReq, err := gateway.BuildBillRequest(
		l.gwConfig, payment.ID, payment.Amount,
		schedule.Course.Title, payerName, phone, l.now(),
	)
	if err != nil {
		// Phone was validated in phase 1; reaching this means the
		// schedule's course data is broken. Fail the attempt cleanly.
		l.recordGatewayFailure(payment.ID, enrollment.ID, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrInvalidContactInfo, err)
	}

	billURL, submitErr := l.gw.Submit(billReq)

	// Phase 3: record the outcome in a short transaction.
	if submitErr != nil {
		l.recordGatewayFailure(payment.ID, enrollment.ID, submitErr.Error())
		if errors.Is(submitErr, gateway.ErrUnreachable) {
			return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, submitErr)
		}
		return nil, fmt.Errorf("%w: %v", ErrGatewayRejected, submitErr)
	}

	err = l.db.Transaction(func(tx *gorm.DB) error {
		return tx.Model(&models.Payment{}).
			Where("id = ? AND status = ?", payment.ID, models.PaymentStatusPending).
			Updates(map[string]interface{}{
				"status":   models.PaymentStatusProcessing,
				"bill_id":  billReq.BillID,
				"bill_url": billURL,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	payment.Status = models.PaymentStatusProcessing
	payment.BillID = billReq.BillID
	payment.BillURL = billURL
	enrollment.Payment = payment
	return &EnrollmentResult{Enrollment: &enrollment, BillURL: billURL}, nil
}

// supersede cancels a half-finished enrollment attempt and its backing
// payment inside the caller's transaction.
func (l *Ledger) supersede(tx *gorm.DB, e *models.Enrollment) error {
	if !e.CanTransition(e.Status, models.EnrollmentStatusCancelled) {
		return fmt.Errorf("enrollment %d: cannot supersede from %s", e.ID, e.Status)
	}
	if err := tx.Model(&models.Enrollment{}).
		Where("id = ?", e.ID).
		Update("status", models.EnrollmentStatusCancelled).Error; err != nil {
		return err
	}
	if e.PaymentID == nil {
		return nil
	}
	return tx.Model(&models.Payment{}).
		Where("id = ? AND status IN ?", *e.PaymentID,
			[]string{models.PaymentStatusPending, models.PaymentStatusProcessing}).
		Update("status", models.PaymentStatusCancelled).Error
}

// recordGatewayFailure fails the payment and cancels the enrollment
// after a rejected or unreachable gateway call, so the user can retry
// immediately.
func (l *Ledger) recordGatewayFailure(paymentID, enrollmentID uint, reason string) {
	err := l.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Payment{}).
			Where("id = ? AND status IN ?", paymentID,
				[]string{models.PaymentStatusPending, models.PaymentStatusProcessing}).
			Updates(map[string]interface{}{
				"status":      models.PaymentStatusFailed,
				"fail_reason": reason,
			}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Enrollment{}).
			Where("id = ?", enrollmentID).
			Update("status", models.EnrollmentStatusCancelled).Error
	})
	if err != nil {
		log.Printf("[LEDGER] failed to record gateway failure for payment %d: %v", paymentID, err)
	}
}

// ApprovalMeta is the approval detail the gateway reports on success.
type ApprovalMeta struct {
	ApprovedAt     time.Time
	InstrumentType string
	Issuer         string
	ApprovalNumber string
}

// CallbackResult tells the webhook boundary what happened.
type CallbackResult struct {
	Duplicate     bool
	PaymentStatus string
}

// HandleGatewayCallback applies the gateway's asynchronous outcome to
// the payment identified by billID. Safe under at-least-once delivery:
// a callback for an already-terminal payment returns the existing
// outcome without re-applying side effects.
func (l *Ledger) HandleGatewayCallback(billID string, success bool, meta ApprovalMeta) (*CallbackResult, error) {
	var (
		result     CallbackResult
		enrollment models.Enrollment
		amount     int64
	)

	err := l.db.Transaction(func(tx *gorm.DB) error {
		var payment models.Payment
		if err := lockForUpdate(tx).
			Where("bill_id = ?", billID).
			First(&payment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if payment.IsTerminal() {
			result = CallbackResult{Duplicate: true, PaymentStatus: payment.Status}
			return nil
		}

		if err := tx.Where("payment_id = ?", payment.ID).
			First(&enrollment).Error; err != nil {
			return err
		}
		amount = payment.Amount

		target := models.PaymentStatusConfirmed
		if !success {
			target = models.PaymentStatusFailed
		}
		if !payment.CanTransition(payment.Status, target) {
			return fmt.Errorf("payment %d: cannot move from %s to %s", payment.ID, payment.Status, target)
		}

		if !success {
			result = CallbackResult{PaymentStatus: models.PaymentStatusFailed}
			if err := tx.Model(&payment).Updates(map[string]interface{}{
				"status":      models.PaymentStatusFailed,
				"fail_reason": "결제 실패 통보", // failure reported by gateway
			}).Error; err != nil {
				return err
			}
			return tx.Model(&enrollment).
				Update("status", models.EnrollmentStatusCancelled).Error
		}

		approvedAt := meta.ApprovedAt
		if approvedAt.IsZero() {
			approvedAt = l.now()
		}
		result = CallbackResult{PaymentStatus: models.PaymentStatusConfirmed}
		if err := tx.Model(&payment).Updates(map[string]interface{}{
			"status":          models.PaymentStatusConfirmed,
			"approved_at":     approvedAt,
			"instrument_type": meta.InstrumentType,
			"issuer":          meta.Issuer,
			"approval_number": meta.ApprovalNumber,
		}).Error; err != nil {
			return err
		}
		return tx.Model(&enrollment).
			Update("status", models.EnrollmentStatusConfirmed).Error
	})
	if err != nil {
		return nil, err
	}

	if !result.Duplicate && result.PaymentStatus == models.PaymentStatusConfirmed {
		enrollment.Status = models.EnrollmentStatusConfirmed
		l.notifyConfirmed(&enrollment, amount)
	}
	return &result, nil
}

// CancelResult reports the refund computed during cancellation.
type CancelResult struct {
	Enrollment   *models.Enrollment
	RefundRate   string
	RefundAmount int64
	Reason       string
}

// Cancel ends an enrollment. Cancellation is always permitted for
// non-terminal enrollments; refund eligibility is a separate question
// answered by the refund calculator. Money movement back to the payer
// is delegated to the gateway's refund API, fire-and-forget.
func (l *Ledger) Cancel(enrollmentID, userID uint) (*CancelResult, error) {
	var (
		result   CancelResult
		billID   string
		doRefund bool
	)

	err := l.db.Transaction(func(tx *gorm.DB) error {
		var enrollment models.Enrollment
		if err := lockForUpdate(tx).Preload("Schedule").
			Where("id = ? AND user_id = ?", enrollmentID, userID).
			First(&enrollment).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if enrollment.IsTerminal() {
			return ErrAlreadyTerminal
		}

		// Free enrollment: no payment, no monetary effect.
		if enrollment.PaymentID == nil {
			if err := tx.Model(&enrollment).
				Update("status", models.EnrollmentStatusCancelled).Error; err != nil {
				return err
			}
			enrollment.Status = models.EnrollmentStatusCancelled
			quote := refund.Compute(0, enrollment.Schedule.StartDate, enrollment.Schedule.EndDate, l.now())
			result = CancelResult{Enrollment: &enrollment, RefundRate: quote.Rate(), Reason: quote.Reason}
			return nil
		}

		var payment models.Payment
		if err := lockForUpdate(tx).
			Where("id = ?", *enrollment.PaymentID).
			First(&payment).Error; err != nil {
			return err
		}

		switch payment.Status {
		case models.PaymentStatusPending, models.PaymentStatusProcessing:
			// Nothing has been charged yet; cancel the attempt outright.
			if !payment.CanTransition(payment.Status, models.PaymentStatusCancelled) {
				return fmt.Errorf("payment %d: cannot cancel from %s", payment.ID, payment.Status)
			}
			if err := tx.Model(&payment).
				Update("status", models.PaymentStatusCancelled).Error; err != nil {
				return err
			}
			result = CancelResult{RefundRate: "0", RefundAmount: 0, Reason: "미결제 취소"}

		case models.PaymentStatusConfirmed:
			quote := refund.Compute(payment.Amount,
				enrollment.Schedule.StartDate, enrollment.Schedule.EndDate, l.now())

			updates := map[string]interface{}{
				"refund_rate":   quote.Rate(),
				"refund_amount": quote.Amount,
			}
			if quote.Amount > 0 {
				if !payment.CanTransition(payment.Status, models.PaymentStatusRefunded) {
					return fmt.Errorf("payment %d: cannot refund from %s", payment.ID, payment.Status)
				}
				now := l.now()
				updates["status"] = models.PaymentStatusRefunded
				updates["refunded_at"] = now
				billID = payment.BillID
				doRefund = true
			}
			// Past the halfway point the payment stays CONFIRMED with a
			// recorded zero refund; the enrollment still ends.
			if err := tx.Model(&payment).Updates(updates).Error; err != nil {
				return err
			}
			result = CancelResult{RefundRate: quote.Rate(), RefundAmount: quote.Amount, Reason: quote.Reason}

		default:
			// FAILED / CANCELLED / REFUNDED payments belong to attempts
			// that never held a seat or were already unwound.
			return ErrAlreadyTerminal
		}

		if !enrollment.CanTransition(enrollment.Status, models.EnrollmentStatusCancelled) {
			return fmt.Errorf("enrollment %d: cannot cancel from %s", enrollment.ID, enrollment.Status)
		}
		if err := tx.Model(&enrollment).
			Update("status", models.EnrollmentStatusCancelled).Error; err != nil {
			return err
		}
		enrollment.Status = models.EnrollmentStatusCancelled
		result.Enrollment = &enrollment
		return nil
	})
	if err != nil {
		return nil, err
	}

	if doRefund {
		// Fire-and-forget: a failed gateway refund is reconciled
		// out-of-band, not by blocking the cancellation.
		go func(billID string, amount int64) {
			if err := l.gw.RefundBill(billID, amount); err != nil {
				log.Printf("[LEDGER] gateway refund for bill %s failed: %v", billID, err)
			}
		}(billID, result.RefundAmount)
	}
	if l.notifier != nil && result.Enrollment != nil {
		l.notifier.EnrollmentCancelled(userID, enrollmentID, result.RefundAmount)
	}
	return &result, nil
}

// PreviewCancel runs the refund calculator without mutating state, so
// the UI can show the quote before the user confirms.
func (l *Ledger) PreviewCancel(enrollmentID, userID uint) (*refund.Quote, error) {
	var enrollment models.Enrollment
	if err := l.db.Preload("Schedule").Preload("Payment").
		Where("id = ? AND user_id = ?", enrollmentID, userID).
		First(&enrollment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if enrollment.IsTerminal() {
		return nil, ErrAlreadyTerminal
	}

	var amount int64
	if enrollment.Payment != nil {
		switch enrollment.Payment.Status {
		case models.PaymentStatusPending, models.PaymentStatusProcessing:
			// Nothing charged yet; the tier calculator does not apply.
			return &refund.Quote{RateNum: 0, RateDen: 1, Reason: "미결제 취소"}, nil
		case models.PaymentStatusConfirmed:
			amount = enrollment.Payment.Amount
		}
	}
	quote := refund.Compute(amount,
		enrollment.Schedule.StartDate, enrollment.Schedule.EndDate, l.now())
	return &quote, nil
}

// ListEnrollments returns a user's enrollments, newest first.
func (l *Ledger) ListEnrollments(userID uint, page, limit int) ([]models.Enrollment, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	q := l.db.Model(&models.Enrollment{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var enrollments []models.Enrollment
	if err := q.Preload("Schedule.Course").Preload("Payment").
		Offset((page - 1) * limit).Limit(limit).
		Order("created_at desc").
		Find(&enrollments).Error; err != nil {
		return nil, 0, err
	}
	return enrollments, total, nil
}

// ExpireStalePending cancels payments that were created but never made
// it to the gateway (process crash between the two request phases).
// The reconciliation sweep calls this with a cutoff well past the
// gateway timeout.
func (l *Ledger) ExpireStalePending(cutoff time.Time) (int64, error) {
	var expired int64
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var stale []models.Payment
		if err := lockForUpdate(tx).
			Where("status = ? AND bill_id = '' AND created_at < ?",
				models.PaymentStatusPending, cutoff).
			Find(&stale).Error; err != nil {
			return err
		}

		for i := range stale {
			if err := tx.Model(&stale[i]).Updates(map[string]interface{}{
				"status":      models.PaymentStatusFailed,
				"fail_reason": "결제 요청 미완료", // never reached the gateway
			}).Error; err != nil {
				return err
			}
			if err := tx.Model(&models.Enrollment{}).
				Where("payment_id = ? AND status IN ?", stale[i].ID,
					[]string{models.EnrollmentStatusPending, models.EnrollmentStatusProcessing}).
				Update("status", models.EnrollmentStatusCancelled).Error; err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	return expired, err
}

func (l *Ledger) notifyConfirmed(e *models.Enrollment, amount int64) {
	if l.notifier == nil {
		return
	}
	l.notifier.EnrollmentConfirmed(e.UserID, e.CourseID, e.ScheduleID, e.ID, amount)
}
