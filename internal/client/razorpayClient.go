package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/apperr"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/config"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/model"
)

type RazorpayClient interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*model.RazorpayOrder, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
	Refund(ctx context.Context, gatewayPaymentID string, amount int64) (*model.RazorpayRefund, error)
	KeyID() string
}

type razorpayClientImpl struct {
	httpClient    *http.Client
	baseApiURL    string
	keyID         string
	keySecret     string
	webhookSecret string
}

func NewRazorpayClient(cfg *config.Razorpay) RazorpayClient {
	return &razorpayClientImpl{
		httpClient: &http.Client{
			// Bounded so a hung gateway call cannot pin a request
			// forever; on timeout the payment stays PENDING and is
			// reconciled by the webhook.
			Timeout: 30 * time.Second,
		},
		baseApiURL:    cfg.BaseApiURL,
		keyID:         cfg.KeyID,
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
	}
}

func (c *razorpayClientImpl) KeyID() string {
	return c.keyID
}

func (c *razorpayClientImpl) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*model.RazorpayOrder, error) {
	payload := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v1/orders",
		bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")
	// receipt doubles as the idempotency key: retried submissions of
	// the same local order id map to one gateway order
	req.Header.Set("X-Idempotency-Key", receipt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGateway, "razorpay create order request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, apperr.Newf(apperr.KindGateway, "razorpay error %d: %s", resp.StatusCode, string(b))
	}

	var result model.RazorpayOrder
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperr.Wrap(apperr.KindGateway, "decode razorpay response", err)
	}

	return &result, nil
}

// VerifyPaymentSignature checks the HMAC-SHA256 the gateway computes over
// "<order_id>|<payment_id>" with the key secret. It fails closed: any
// mismatch or malformed input returns false, never an error, so nothing
// about the verification leaks through error paths.
func (c *razorpayClientImpl) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return verifyHMAC([]byte(orderID+"|"+paymentID), signature, c.keySecret)
}

func (c *razorpayClientImpl) VerifyWebhookSignature(body []byte, signature string) bool {
	return verifyHMAC(body, signature, c.webhookSecret)
}

func verifyHMAC(message []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *razorpayClientImpl) Refund(ctx context.Context, gatewayPaymentID string, amount int64) (*model.RazorpayRefund, error) {
	payload := map[string]interface{}{
		"amount": amount,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1/payments/%s/refund", c.baseApiURL, gatewayPaymentID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}

	req.SetBasicAuth(c.keyID, c.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGateway, "razorpay refund request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, apperr.Newf(apperr.KindGateway, "razorpay refund failed: status=%d body=%s", resp.StatusCode, string(b))
	}

	var result model.RazorpayRefund
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, apperr.Wrap(apperr.KindGateway, "decode razorpay refund response", err)
	}

	return &result, nil
}
