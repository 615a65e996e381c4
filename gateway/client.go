package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Error kinds the ledger records against a failed payment. An explicit
// gateway denial and an unreachable gateway produce different failure
// messages so operators can tell "our request was bad" from "their
// service was down".
var (
	ErrRejected    = errors.New("gateway rejected bill request")
	ErrUnreachable = errors.New("gateway unreachable")
)

// stateAccepted is the gateway's success code for both the synchronous
// bill response and the status query.
const stateAccepted = "0000"

// billResponse is the gateway's synchronous answer to a bill creation.
type billResponse struct {
	State        string `json:"state"`
	PaymentURL   string `json:"payment_url"`
	ShortURL     string `json:"s_url"`
	ErrorMessage string `json:"errorMessage"`
}

// billStatusResponse is the gateway's answer to a status query, used
// by the reconciliation sweep.
type billStatusResponse struct {
	State        string `json:"state"`
	PayState     string `json:"pay_state"` // PAID, FAILED, WAITING
	ApproveDate  string `json:"approve_date"`
	PayType      string `json:"pay_type"`
	Issuer       string `json:"issuer"`
	ApproveNum   string `json:"approve_num"`
	ErrorMessage string `json:"errorMessage"`
}

// BillStatus is the interpreted result of a status query.
type BillStatus struct {
	Paid        bool
	Failed      bool
	ApproveDate string
	PayType     string
	Issuer      string
	ApproveNum  string
	FailReason  string
}

// Config carries the merchant credentials, endpoints and the shared
// secret used for request and callback hashes.
type Config struct {
	BaseURL     string
	ApiKey      string
	MerchantID  string
	SecretKey   string
	CallbackURL string
	Timeout     time.Duration
}

// Client sends signed requests to the payment gateway. No retries: a
// retry is a user-visible re-purchase handled by the ledger's
// supersede logic, never a silent duplicate charge.
type Client struct {
	cfg  Config
	http *resty.Client
}

// NewClient builds a gateway client with a hard per-call timeout.
func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		http: resty.New().
			SetBaseURL(cfg.BaseURL).
			SetTimeout(cfg.Timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// Submit posts a signed bill-creation request and returns the
// follow-up payment URL the user is redirected to.
func (c *Client) Submit(req *BillRequest) (string, error) {
	resp, err := c.http.R().SetBody(req).Post("/bill")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode() >= 500 {
		return "", fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode())
	}

	var body billResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return "", fmt.Errorf("%w: invalid response: %v", ErrUnreachable, err)
	}

	if body.State != stateAccepted {
		msg := body.ErrorMessage
		if msg == "" {
			msg = "state " + body.State
		}
		return "", fmt.Errorf("%w: %s", ErrRejected, msg)
	}

	if body.PaymentURL != "" {
		return body.PaymentURL, nil
	}
	if body.ShortURL != "" {
		return body.ShortURL, nil
	}
	return "", fmt.Errorf("%w: accepted without payment url", ErrRejected)
}

// QueryBill asks the gateway for the current state of a bill. Used by
// the reconciliation sweep for payments stuck in PROCESSING.
func (c *Client) QueryBill(billID string) (*BillStatus, error) {
	resp, err := c.http.R().
		SetBody(map[string]string{
			"apikey":    c.cfg.ApiKey,
			"member_id": c.cfg.MerchantID,
			"bill_id":   billID,
		}).
		Post("/bill/status")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	if resp.StatusCode() >= 500 {
		return nil, fmt.Errorf("%w: status %d", ErrUnreachable, resp.StatusCode())
	}

	var body billStatusResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("%w: invalid response: %v", ErrUnreachable, err)
	}
	if body.State != stateAccepted {
		return nil, fmt.Errorf("%w: %s", ErrRejected, body.ErrorMessage)
	}

	return &BillStatus{
		Paid:        body.PayState == "PAID",
		Failed:      body.PayState == "FAILED",
		ApproveDate: body.ApproveDate,
		PayType:     body.PayType,
		Issuer:      body.Issuer,
		ApproveNum:  body.ApproveNum,
		FailReason:  body.ErrorMessage,
	}, nil
}

// RefundBill asks the gateway to move money back to the payer. The
// ledger calls this fire-and-forget after marking a payment refunded;
// a failure here is reconciled out-of-band, never by rolling back the
// cancellation.
func (c *Client) RefundBill(billID string, amount int64) error {
	resp, err := c.http.R().
		SetBody(map[string]interface{}{
			"apikey":    c.cfg.ApiKey,
			"member_id": c.cfg.MerchantID,
			"bill_id":   billID,
			"amount":    amount,
		}).
		Post("/bill/refund")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	var body billResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return fmt.Errorf("%w: invalid response: %v", ErrUnreachable, err)
	}
	if body.State != stateAccepted {
		return fmt.Errorf("%w: %s", ErrRejected, body.ErrorMessage)
	}
	return nil
}
