package utils

import (
	"fmt"
	"log"

	"coursepay/config"
	"coursepay/database"
	"coursepay/models"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// notifyEvent is one queued notification. The ledger enqueues after a
// successful commit; the worker goroutine delivers. Delivery latency
// and failure never touch the transactional core.
type notifyEvent struct {
	kind         string // confirmed / cancelled
	userID       uint
	courseID     uint
	enrollmentID uint
	amount       int64
}

// Notifier implements ledger.Notifier over a buffered channel.
type Notifier struct {
	events chan notifyEvent
}

// NewNotifier starts the delivery worker and returns the dispatcher.
func NewNotifier() *Notifier {
	n := &Notifier{events: make(chan notifyEvent, 256)}
	go n.worker()
	return n
}

// EnrollmentConfirmed enqueues a confirmation notice. Drops the event
// with a log line if the queue is full rather than blocking the ledger.
func (n *Notifier) EnrollmentConfirmed(userID, courseID, scheduleID, enrollmentID uint, amount int64) {
	select {
	case n.events <- notifyEvent{kind: "confirmed", userID: userID, courseID: courseID, enrollmentID: enrollmentID, amount: amount}:
	default:
		log.Printf("[NOTIFY] queue full, dropping confirmation notice for enrollment %d", enrollmentID)
	}
}

// EnrollmentCancelled enqueues a cancellation notice.
func (n *Notifier) EnrollmentCancelled(userID, enrollmentID uint, refundAmount int64) {
	select {
	case n.events <- notifyEvent{kind: "cancelled", userID: userID, enrollmentID: enrollmentID, amount: refundAmount}:
	default:
		log.Printf("[NOTIFY] queue full, dropping cancellation notice for enrollment %d", enrollmentID)
	}
}

func (n *Notifier) worker() {
	for ev := range n.events {
		var user models.User
		if err := database.Database.Db.Where("id = ?", ev.userID).First(&user).Error; err != nil {
			log.Printf("[NOTIFY] user %d not found for enrollment %d: %v", ev.userID, ev.enrollmentID, err)
			continue
		}

		switch ev.kind {
		case "confirmed":
			var course models.Course
			courseTitle := "your course"
			if err := database.Database.Db.Where("id = ?", ev.courseID).First(&course).Error; err == nil {
				courseTitle = course.Title
			}
			sendEnrollmentConfirmedEmail(user.Email, user.Name, courseTitle, ev.amount)
		case "cancelled":
			sendEnrollmentCancelledEmail(user.Email, user.Name, ev.amount)
		}
	}
}

// sendMail delivers one message via SendGrid. Failures are logged only.
func sendMail(toEmail, toName, subject, htmlBody string) {
	if config.AppConfig.SendGridKey == "" {
		log.Printf("[NOTIFY] SendGrid key not configured, skipping email to %s", toEmail)
		return
	}

	from := mail.NewEmail("CoursePay", config.AppConfig.EmailSender)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, "", htmlBody)

	client := sendgrid.NewSendClient(config.AppConfig.SendGridKey)
	resp, err := client.Send(message)
	if err != nil {
		log.Printf("[NOTIFY] failed to send email to %s: %v", toEmail, err)
		return
	}
	if resp.StatusCode >= 300 {
		log.Printf("[NOTIFY] SendGrid returned %d for email to %s", resp.StatusCode, toEmail)
	}
}

func sendEnrollmentConfirmedEmail(email, name, courseTitle string, amount int64) {
	subject := "수강 신청 완료: " + courseTitle
	body := fmt.Sprintf(`
		<div style="max-width: 600px; margin: auto; font-family: Arial, sans-serif;">
			<h2>수강 신청이 완료되었습니다</h2>
			<p>%s님, <strong>%s</strong> 수강 신청이 확정되었습니다.</p>
			<p>결제 금액: <strong>%d원</strong></p>
			<p>마이페이지에서 수강 내역을 확인하실 수 있습니다.</p>
		</div>
	`, name, courseTitle, amount)
	sendMail(email, name, subject, body)
}

func sendEnrollmentCancelledEmail(email, name string, refundAmount int64) {
	subject := "수강 취소 완료"
	body := fmt.Sprintf(`
		<div style="max-width: 600px; margin: auto; font-family: Arial, sans-serif;">
			<h2>수강 취소가 완료되었습니다</h2>
			<p>%s님, 수강 취소가 처리되었습니다.</p>
			<p>환불 예정 금액: <strong>%d원</strong></p>
			<p>환불은 결제 수단에 따라 3~5 영업일이 걸릴 수 있습니다.</p>
		</div>
	`, name, refundAmount)
	sendMail(email, name, subject, body)
}
