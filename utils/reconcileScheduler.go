package utils

import (
	"log"
	"time"

	"coursepay/database"
	"coursepay/gateway"
	"coursepay/ledger"
	"coursepay/models"

	"github.com/robfig/cron/v3"
)

// stuckThreshold is how long a payment may sit in PROCESSING before
// the sweep asks the gateway what happened to it. Bills expire after
// 3 days, so anything older with no callback is worth re-querying.
const stuckThreshold = 30 * time.Minute

// InitializeReconcileScheduler sets up the payment reconciliation sweep.
// The core is driven by the webhook; this sweep only covers lost
// callbacks and the rare crash between the two request phases.
func InitializeReconcileScheduler(l *ledger.Ledger, gw *gateway.Client) {
	log.Println("[RECON-SCHEDULER] Initializing payment reconciliation scheduler...")

	c := cron.New()

	// Every 10 minutes, re-query stuck payments and expire stale ones
	c.AddFunc("*/10 * * * *", func() {
		ReconcileStuckPayments(l, gw)
		ExpireStalePayments(l)
	})

	c.Start()
	log.Println("[RECON-SCHEDULER] Payment reconciliation scheduler started - runs every 10 minutes")
}

// ReconcileStuckPayments re-queries the gateway for payments stuck in
// PROCESSING past the threshold and drives the same confirm/fail path
// the webhook would have.
func ReconcileStuckPayments(l *ledger.Ledger, gw *gateway.Client) {
	db := database.Database.Db
	cutoff := time.Now().Add(-stuckThreshold)

	var stuck []models.Payment
	if err := db.
		Where("status = ? AND bill_id <> '' AND updated_at < ?", models.PaymentStatusProcessing, cutoff).
		Find(&stuck).Error; err != nil {
		log.Printf("[RECON-SCHEDULER] Error fetching stuck payments: %v", err)
		return
	}

	if len(stuck) == 0 {
		return
	}
	log.Printf("[RECON-SCHEDULER] Found %d payments stuck in processing", len(stuck))

	for _, p := range stuck {
		status, err := gw.QueryBill(p.BillID)
		if err != nil {
			log.Printf("[RECON-SCHEDULER] Error querying bill %s: %v", p.BillID, err)
			continue
		}

		switch {
		case status.Paid:
			meta := ledger.ApprovalMeta{
				InstrumentType: status.PayType,
				Issuer:         status.Issuer,
				ApprovalNumber: status.ApproveNum,
			}
			if t, err := time.ParseInLocation("2006-01-02 15:04:05", status.ApproveDate, time.Local); err == nil {
				meta.ApprovedAt = t
			}
			if _, err := l.HandleGatewayCallback(p.BillID, true, meta); err != nil {
				log.Printf("[RECON-SCHEDULER] Error confirming bill %s: %v", p.BillID, err)
				continue
			}
			log.Printf("[RECON-SCHEDULER] Recovered confirmation for bill %s", p.BillID)

		case status.Failed:
			if _, err := l.HandleGatewayCallback(p.BillID, false, ledger.ApprovalMeta{}); err != nil {
				log.Printf("[RECON-SCHEDULER] Error failing bill %s: %v", p.BillID, err)
				continue
			}
			log.Printf("[RECON-SCHEDULER] Recovered failure for bill %s", p.BillID)

		default:
			// Still waiting for the user to pay; the bill has its own
			// expiry, nothing to do yet.
		}
	}
}

// ExpireStalePayments cancels payments that never made it to the
// gateway (crash between creating the pending row and submitting).
func ExpireStalePayments(l *ledger.Ledger) {
	expired, err := l.ExpireStalePending(time.Now().Add(-stuckThreshold))
	if err != nil {
		log.Printf("[RECON-SCHEDULER] Error expiring stale pending payments: %v", err)
		return
	}
	if expired > 0 {
		log.Printf("[RECON-SCHEDULER] Expired %d stale pending payments", expired)
	}
}
