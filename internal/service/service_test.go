package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/apperr"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// single connection so the shared in-memory database survives and
	// concurrent test goroutines serialize like a real pool would
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&model.Order{},
		&model.Payment{},
		&model.Referral{},
		&model.WebhookEvent{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	return db
}

const (
	testValidSignature        = "valid-signature"
	testValidWebhookSignature = "valid-webhook-signature"
)

// fakeGateway stands in for the Razorpay client: signatures match fixed
// test values, orders and refunds get deterministic ids.
type fakeGateway struct {
	mu          sync.Mutex
	failCreate  bool
	failRefund  bool
	orderSeq    int
	refundSeq   int
	refundCalls int
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*model.RazorpayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.failCreate {
		return nil, apperr.New(apperr.KindGateway, "gateway unavailable")
	}

	g.orderSeq++
	return &model.RazorpayOrder{
		ID:       fmt.Sprintf("order_rzp_%d", g.orderSeq),
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return signature == testValidSignature
}

func (g *fakeGateway) VerifyWebhookSignature(body []byte, signature string) bool {
	return signature == testValidWebhookSignature
}

func (g *fakeGateway) Refund(ctx context.Context, gatewayPaymentID string, amount int64) (*model.RazorpayRefund, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.refundCalls++
	if g.failRefund {
		return nil, apperr.New(apperr.KindGateway, "refund rejected")
	}

	g.refundSeq++
	return &model.RazorpayRefund{
		ID:        fmt.Sprintf("rfnd_%d", g.refundSeq),
		PaymentID: gatewayPaymentID,
		Amount:    amount,
		Status:    "processed",
	}, nil
}

func (g *fakeGateway) KeyID() string {
	return "rzp_test_key"
}

type fakeNotifier struct {
	mu    sync.Mutex
	sends []string
}

func (n *fakeNotifier) Send(ctx context.Context, userID, subject, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sends = append(n.sends, userID)
	return nil
}

func testPolicy() ReferralPolicy {
	return ReferralPolicy{
		MinPurchaseAmount: 500,
		RewardRate:        decimal.NewFromFloat(0.10),
		RewardCap:         50000,
		CodeTTL:           30 * 24 * time.Hour,
	}
}

func testIdentity(userID string) model.Identity {
	return model.Identity{UserID: userID, Role: "student"}
}
