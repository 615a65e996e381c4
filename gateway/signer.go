// Package gateway implements the client half of the payment gateway
// protocol: deterministic bill request signing and the outbound HTTP
// calls. Nothing here touches the database.
package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPhone is returned when contact info cannot be normalized
// to a local 11-digit mobile number. The hash is computed over the
// normalized value, so a silently passed-through malformed number
// would fail gateway-side verification later with a much worse error.
var ErrInvalidPhone = errors.New("invalid mobile number")

// BillRequest is the signed payload for the gateway's bill-creation
// endpoint.
type BillRequest struct {
	ApiKey      string `json:"apikey"`
	MerchantID  string `json:"member_id"`
	BillID      string `json:"bill_id"`
	ProductName string `json:"product_name"`
	Message     string `json:"message"`
	PayerName   string `json:"payer_name"`
	Phone       string `json:"phone"` // normalized
	Price       int64  `json:"price"`
	Hash        string `json:"hash"`
	ExpireDate  string `json:"expire_date"`
	CallbackURL string `json:"callback_url"`
}

// Bills expire three days after creation.
const billTTL = 72 * time.Hour

// BillID derives the gateway bill identifier from the payment primary
// key. It is fixed-length (20 chars) and deterministic: retrying the
// same payment reuses the same bill id, which the gateway treats as
// its own idempotency key.
func BillID(paymentID uint) string {
	return fmt.Sprintf("CP%018d", paymentID)
}

// NormalizePhone reduces a user-supplied phone number to the 11-digit
// local mobile form the gateway hashes over. Accepts separators and a
// +82 country prefix; rejects everything that does not resolve to
// 01X-XXXX-XXXX.
func NormalizePhone(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "+82") {
		s = "0" + s[3:]
	}

	var digits strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r == '-' || r == ' ' || r == '.':
			// separator, skip
		default:
			return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
		}
	}

	n := digits.String()
	if len(n) != 11 || !strings.HasPrefix(n, "01") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return n, nil
}

// signBill computes the request hash the gateway recomputes on its
// side: HMAC-SHA256 over billID + price + normalized phone, keyed by
// the shared merchant secret, hex-encoded.
func signBill(secret, billID string, price int64, phone string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(billID))
	mac.Write([]byte(strconv.FormatInt(price, 10)))
	mac.Write([]byte(phone))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignCallbackHash mirrors the signature the gateway attaches to its
// webhook: HMAC-SHA256 over billID + outcome code with the same shared
// secret. Exposed for gateway simulators.
func SignCallbackHash(secret, billID, outcome string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(billID))
	mac.Write([]byte(outcome))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallbackHash checks the signature on an inbound webhook.
func VerifyCallbackHash(secret, billID, outcome, gotHash string) bool {
	want := SignCallbackHash(secret, billID, outcome)
	return hmac.Equal([]byte(want), []byte(gotHash))
}

// BuildBillRequest assembles and signs the bill-creation payload for a
// payment. Deterministic apart from the expiry, which is now + 3 days.
func BuildBillRequest(cfg Config, paymentID uint, amount int64, productName, payerName, rawPhone string, now time.Time) (*BillRequest, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}

	billID := BillID(paymentID)
	return &BillRequest{
		ApiKey:      cfg.ApiKey,
		MerchantID:  cfg.MerchantID,
		BillID:      billID,
		ProductName: productName,
		Message:     fmt.Sprintf("%s 수강 결제", productName),
		PayerName:   payerName,
		Phone:       phone,
		Price:       amount,
		Hash:        signBill(cfg.SecretKey, billID, amount, phone),
		ExpireDate:  now.Add(billTTL).Format("2006-01-02 15:04:05"),
		CallbackURL: cfg.CallbackURL,
	}, nil
}
