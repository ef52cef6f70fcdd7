package client

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/apperr"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/config"
)

func sign(message, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func newTestClient(baseURL string) RazorpayClient {
	return NewRazorpayClient(&config.Razorpay{
		BaseApiURL:    baseURL,
		KeyID:         "rzp_test_key",
		KeySecret:     "key-secret",
		WebhookSecret: "webhook-secret",
	})
}

func TestVerifyPaymentSignature(t *testing.T) {
	c := newTestClient("http://unused")

	orderID := "order_rzp_1"
	paymentID := "pay_rzp_1"
	valid := sign(orderID+"|"+paymentID, "key-secret")

	if !c.VerifyPaymentSignature(orderID, paymentID, valid) {
		t.Error("Expected valid signature to verify")
	}
	if c.VerifyPaymentSignature(orderID, paymentID, valid+"00") {
		t.Error("Expected tampered signature to fail")
	}
	if c.VerifyPaymentSignature(orderID, "pay_rzp_2", valid) {
		t.Error("Expected signature over different payment to fail")
	}
	if c.VerifyPaymentSignature(orderID, paymentID, "") {
		t.Error("Expected empty signature to fail")
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	c := newTestClient("http://unused")

	body := []byte(`{"event":"payment.captured"}`)

	if !c.VerifyWebhookSignature(body, sign(string(body), "webhook-secret")) {
		t.Error("Expected valid webhook signature to verify")
	}
	if c.VerifyWebhookSignature(body, sign(string(body), "wrong-secret")) {
		t.Error("Expected signature with wrong secret to fail")
	}
	if c.VerifyWebhookSignature([]byte(`{}`), sign(string(body), "webhook-secret")) {
		t.Error("Expected signature over different body to fail")
	}
}

func TestCreateOrder(t *testing.T) {
	var gotIdempotencyKey string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/orders" {
			t.Errorf("Expected path /v1/orders, got %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != "key-secret" {
			t.Errorf("Expected basic auth with key credentials, got %s/%s", user, pass)
		}
		gotIdempotencyKey = r.Header.Get("X-Idempotency-Key")

		var payload map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload["currency"] != "INR" {
			t.Errorf("Expected currency INR, got %v", payload["currency"])
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":       "order_rzp_42",
			"amount":   99900,
			"currency": "INR",
			"receipt":  payload["receipt"],
			"status":   "created",
		})
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)

	order, err := c.CreateOrder(context.Background(), 99900, "INR", "local-order-1")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if order.ID != "order_rzp_42" {
		t.Errorf("Expected gateway order id order_rzp_42, got %s", order.ID)
	}
	if order.Amount != 99900 {
		t.Errorf("Expected amount 99900, got %d", order.Amount)
	}
	if gotIdempotencyKey != "local-order-1" {
		t.Errorf("Expected idempotency key local-order-1, got %q", gotIdempotencyKey)
	}
}

func TestCreateOrder_GatewayError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)

	_, err := c.CreateOrder(context.Background(), 99900, "INR", "local-order-1")
	if !apperr.Is(err, apperr.KindGateway) {
		t.Fatalf("Expected gateway error kind, got: %v", err)
	}
}

func TestRefund(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/pay_rzp_1/refund" {
			t.Errorf("Expected refund path for pay_rzp_1, got %s", r.URL.Path)
		}

		var payload map[string]int64
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if payload["amount"] != 500 {
			t.Errorf("Expected refund amount 500, got %d", payload["amount"])
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":         "rfnd_1",
			"payment_id": "pay_rzp_1",
			"amount":     500,
			"status":     "processed",
		})
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)

	refund, err := c.Refund(context.Background(), "pay_rzp_1", 500)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if refund.ID != "rfnd_1" || refund.Amount != 500 {
		t.Errorf("Expected refund rfnd_1 of 500, got %+v", refund)
	}
}

func TestRefund_Rejected(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"description":"refund amount exceeds captured amount"}}`))
	}))
	defer ts.Close()

	c := newTestClient(ts.URL)

	_, err := c.Refund(context.Background(), "pay_rzp_1", 999999)
	if !apperr.Is(err, apperr.KindGateway) {
		t.Fatalf("Expected gateway error kind, got: %v", err)
	}
}
