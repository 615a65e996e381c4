package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(serverURL string) *Client {
	cfg := testConfig
	cfg.BaseURL = serverURL
	cfg.Timeout = 2 * time.Second
	return NewClient(cfg)
}

func billRequestFixture(t *testing.T) *BillRequest {
	t.Helper()
	req, err := BuildBillRequest(testConfig, 7, 490000, "Go 백엔드 실전", "김철수", "01012345678", time.Now())
	if err != nil {
		t.Fatalf("BuildBillRequest failed: %v", err)
	}
	return req
}

func TestSubmit_Accepted(t *testing.T) {
	var received BillRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bill" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"state":       "0000",
			"payment_url": "https://pay.example.com/b/abc",
		})
	}))
	defer srv.Close()

	url, err := newTestClient(srv.URL).Submit(billRequestFixture(t))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if url != "https://pay.example.com/b/abc" {
		t.Errorf("url = %q", url)
	}
	if received.Hash == "" || received.BillID == "" {
		t.Error("signed fields were not sent to the gateway")
	}
}

func TestSubmit_ShortURLVariant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"state": "0000",
			"s_url": "https://p.ay/x1",
		})
	}))
	defer srv.Close()

	url, err := newTestClient(srv.URL).Submit(billRequestFixture(t))
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if url != "https://p.ay/x1" {
		t.Errorf("url = %q", url)
	}
}

func TestSubmit_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"state":        "1001",
			"errorMessage": "hash mismatch",
		})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Submit(billRequestFixture(t))
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
	// the failure message must carry the gateway's reason
	if !strings.Contains(err.Error(), "hash mismatch") {
		t.Errorf("error %q does not carry gateway message", err.Error())
	}
}

func TestSubmit_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Submit(billRequestFixture(t))
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
}

func TestSubmit_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	_, err := newTestClient(srv.URL).Submit(billRequestFixture(t))
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
}

func TestQueryBill_Paid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bill/status" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"state":        "0000",
			"pay_state":    "PAID",
			"approve_date": "2026-03-01 13:45:00",
			"pay_type":     "CARD",
			"issuer":       "국민카드",
			"approve_num":  "30012345",
		})
	}))
	defer srv.Close()

	status, err := newTestClient(srv.URL).QueryBill(BillID(7))
	if err != nil {
		t.Fatalf("QueryBill failed: %v", err)
	}
	if !status.Paid || status.Failed {
		t.Errorf("status = %+v, want paid", status)
	}
	if status.ApproveNum != "30012345" || status.Issuer != "국민카드" {
		t.Errorf("approval metadata not carried: %+v", status)
	}
}

func TestRefundBill(t *testing.T) {
	var gotBill string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		gotBill, _ = body["bill_id"].(string)
		json.NewEncoder(w).Encode(map[string]string{"state": "0000"})
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL).RefundBill(BillID(7), 490000); err != nil {
		t.Fatalf("RefundBill failed: %v", err)
	}
	if gotBill != BillID(7) {
		t.Errorf("refund sent for bill %q", gotBill)
	}
}
