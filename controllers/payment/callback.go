package controllers

import (
	"errors"
	"log"
	"time"

	"coursepay/config"
	"coursepay/database"
	"coursepay/gateway"
	"coursepay/ledger"
	"coursepay/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Ledger is injected at route setup.
var Ledger *ledger.Ledger

// outcomePaid is the gateway's success outcome code on the webhook.
const outcomePaid = "PAID"

// callbackRequest is the gateway's asynchronous confirmation payload.
type callbackRequest struct {
	BillID      string `json:"bill_id"`
	Outcome     string `json:"pay_state"` // PAID or FAILED
	Hash        string `json:"hash"`
	ApproveDate string `json:"approve_date"` // 2006-01-02 15:04:05
	PayType     string `json:"pay_type"`
	Issuer      string `json:"issuer"`
	IssuerRef   string `json:"issuer_ref"`
	ApproveNum  string `json:"approve_num"`
}

// recordEvent appends a gateway_events audit row. Best-effort: the
// audit trail must never decide the webhook's fate.
func recordEvent(billID, outcome string, signatureOK bool, result string, raw []byte) {
	event := models.GatewayEvent{
		ID:          uuid.NewString(),
		BillID:      billID,
		Outcome:     outcome,
		SignatureOK: signatureOK,
		Result:      result,
		Payload:     datatypes.JSON(raw),
		ReceivedAt:  time.Now(),
	}
	if err := database.Database.Db.Create(&event).Error; err != nil {
		log.Printf("[CALLBACK] failed to record gateway event for bill %s: %v", billID, err)
	}
}

// HandleCallback receives the gateway's at-least-once webhook. The
// signature is verified before any state mutation; duplicates answer
// 200 so the gateway stops retrying.
func HandleCallback(c *fiber.Ctx) error {
	var req callbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).SendString("INVALID")
	}
	raw := append([]byte(nil), c.Body()...)

	if req.BillID == "" || req.Outcome == "" {
		recordEvent(req.BillID, req.Outcome, false, "rejected", raw)
		return c.Status(fiber.StatusBadRequest).SendString("INVALID")
	}

	if !gateway.VerifyCallbackHash(config.AppConfig.GatewaySecretKey, req.BillID, req.Outcome, req.Hash) {
		log.Printf("[CALLBACK] signature mismatch for bill %s", req.BillID)
		recordEvent(req.BillID, req.Outcome, false, "rejected", raw)
		return c.Status(fiber.StatusForbidden).SendString("FORBIDDEN")
	}

	meta := ledger.ApprovalMeta{
		InstrumentType: req.PayType,
		Issuer:         req.Issuer,
		ApprovalNumber: req.ApproveNum,
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", req.ApproveDate, time.Local); err == nil {
		meta.ApprovedAt = t
	}

	result, err := Ledger.HandleGatewayCallback(req.BillID, req.Outcome == outcomePaid, meta)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			recordEvent(req.BillID, req.Outcome, true, "not_found", raw)
			return c.Status(fiber.StatusNotFound).SendString("NOT_FOUND")
		}
		log.Printf("[CALLBACK] failed to apply callback for bill %s: %v", req.BillID, err)
		recordEvent(req.BillID, req.Outcome, true, "error", raw)
		return c.Status(fiber.StatusInternalServerError).SendString("ERROR")
	}

	if result.Duplicate {
		recordEvent(req.BillID, req.Outcome, true, "duplicate", raw)
	} else {
		recordEvent(req.BillID, req.Outcome, true, "applied", raw)
	}
	return c.Status(fiber.StatusOK).SendString("OK")
}
