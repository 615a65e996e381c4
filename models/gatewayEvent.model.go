package models

import (
	"time"

	"gorm.io/datatypes"
)

// GatewayEvent is an append-only audit row for every webhook delivery
// the gateway sends, verified or not. Operators use it to see duplicate
// deliveries and rejected signatures; it is never read by the ledger.
type GatewayEvent struct {
	ID          string         `json:"id" gorm:"type:uuid;primaryKey"`
	BillID      string         `json:"bill_id" gorm:"size:20;index"`
	Outcome     string         `json:"outcome"`
	SignatureOK bool           `json:"signature_ok"`
	Result      string         `json:"result"` // applied / duplicate / rejected / not_found
	Payload     datatypes.JSON `json:"payload"`
	ReceivedAt  time.Time      `json:"received_at"`
}
