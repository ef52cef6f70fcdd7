package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Kalpla-elearning/kalpla-sub005/internal/apperr"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/client"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/dto"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/model"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/notify"
	"github.com/Kalpla-elearning/kalpla-sub005/internal/repository"
)

type PaymentService interface {
	Checkout(ctx context.Context, identity model.Identity, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	Confirm(ctx context.Context, req *dto.ConfirmPaymentRequest) (*model.Payment, error)
	UpdateStatus(ctx context.Context, paymentID string, newStatus model.PaymentStatus, gatewayMeta map[string]string) (*model.Payment, error)
	RefundPayment(ctx context.Context, identity model.Identity, paymentID string, req *dto.RefundRequest) (*model.Payment, error)
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) error
}

type paymentServiceImpl struct {
	db               *gorm.DB
	gateway          client.RazorpayClient
	orderRepo        repository.OrderRepository
	paymentRepo      repository.PaymentRepository
	webhookEventRepo repository.WebhookEventRepository
	referralService  ReferralService
	notifier         notify.Sender
}

func NewPaymentService(
	db *gorm.DB,
	gateway client.RazorpayClient,
	orderRepo repository.OrderRepository,
	paymentRepo repository.PaymentRepository,
	webhookEventRepo repository.WebhookEventRepository,
	referralService ReferralService,
	notifier notify.Sender,
) PaymentService {
	return &paymentServiceImpl{
		db:               db,
		gateway:          gateway,
		orderRepo:        orderRepo,
		paymentRepo:      paymentRepo,
		webhookEventRepo: webhookEventRepo,
		referralService:  referralService,
		notifier:         notifier,
	}
}

// Checkout obtains a gateway-side order and opens a PENDING payment
// attempt for the order's full amount. The gateway call happens before
// any local write: a gateway failure leaves the order exactly as it was.
func (s *paymentServiceImpl) Checkout(ctx context.Context, identity model.Identity, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	order, err := s.orderRepo.FindByID(ctx, req.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "order not found")
		}
		return nil, err
	}

	if order.UserID != identity.UserID {
		return nil, apperr.New(apperr.KindForbidden, "order belongs to another user")
	}

	switch order.Status {
	case model.OrderCreated, model.OrderPending, model.OrderFailed:
		// fresh order or retry after a failed attempt
	default:
		return nil, apperr.Newf(apperr.KindNotEligible, "order in status %s cannot be paid", order.Status)
	}

	gatewayOrder, err := s.gateway.CreateOrder(ctx, order.TotalAmount, order.Currency, order.ID)
	if err != nil {
		return nil, fmt.Errorf("gateway create order: %w", err)
	}

	payment := &model.Payment{
		ID:             uuid.NewString(),
		OrderID:        order.ID,
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
		Method:         req.Method,
		Status:         model.PaymentPending,
		GatewayOrderID: gatewayOrder.ID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.paymentRepo.Create(ctx, tx, payment); err != nil {
			return fmt.Errorf("store payment: %w", err)
		}

		// best effort: a concurrent attempt may already have moved the
		// order to PENDING, which is the state we want anyway
		_, err := s.orderRepo.TransitionStatus(ctx, tx, order.ID,
			[]model.OrderStatus{model.OrderCreated, model.OrderFailed}, model.OrderPending)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &dto.CheckoutResponse{
		PaymentID:      payment.ID,
		GatewayOrderID: gatewayOrder.ID,
		Amount:         payment.Amount,
		Currency:       payment.Currency,
		GatewayKeyID:   s.gateway.KeyID(),
	}, nil
}

// Confirm settles a payment from the client-side callback. The signature
// check fails closed: a mismatch surfaces as a plain validation error
// with no detail about which part of the verification failed.
func (s *paymentServiceImpl) Confirm(ctx context.Context, req *dto.ConfirmPaymentRequest) (*model.Payment, error) {
	if !s.gateway.VerifyPaymentSignature(req.GatewayOrderID, req.GatewayPaymentID, req.Signature) {
		return nil, apperr.New(apperr.KindValidation, "payment signature verification failed")
	}

	payment, err := s.paymentRepo.FindByGatewayOrderID(ctx, req.GatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "payment not found")
		}
		return nil, err
	}

	return s.capturePayment(ctx, payment, req.GatewayPaymentID, "")
}

// capturePayment is the single PENDING -> SUCCESS path, shared by the
// client confirmation and the gateway webhook. Whichever arrives second
// observes the already-captured payment and returns it unchanged.
func (s *paymentServiceImpl) capturePayment(ctx context.Context, payment *model.Payment, gatewayPaymentID, method string) (*model.Payment, error) {
	if payment.Status == model.PaymentSuccess {
		return payment, nil
	}
	if !payment.Status.CanTransition(model.PaymentSuccess) {
		return nil, apperr.Newf(apperr.KindInvalidTransition,
			"payment cannot move from %s to %s", payment.Status, model.PaymentSuccess)
	}

	updates := map[string]interface{}{
		"gateway_payment_id": gatewayPaymentID,
	}
	if method != "" {
		updates["method"] = method
	}

	var won bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		won, err = s.paymentRepo.TransitionStatus(ctx, tx, payment.ID,
			model.PaymentPending, model.PaymentSuccess, updates)
		if err != nil {
			return fmt.Errorf("mark payment success: %w", err)
		}
		if !won {
			return nil
		}

		_, err = s.orderRepo.TransitionStatus(ctx, tx, payment.OrderID,
			[]model.OrderStatus{model.OrderCreated, model.OrderPending}, model.OrderPaid)
		if err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.paymentRepo.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}

	if !won {
		if updated.Status == model.PaymentSuccess {
			// duplicate delivery lost the race, nothing to credit
			return updated, nil
		}
		return nil, apperr.Newf(apperr.KindInvalidTransition,
			"payment cannot move from %s to %s", updated.Status, model.PaymentSuccess)
	}

	s.afterCapture(ctx, updated)

	return updated, nil
}

// afterCapture runs the post-settlement side effects. The referral
// credit is part of the purchase's consistency story and runs inline;
// the notification is fire-and-forget and must never delay the response.
func (s *paymentServiceImpl) afterCapture(ctx context.Context, payment *model.Payment) {
	order, err := s.orderRepo.FindByID(ctx, payment.OrderID)
	if err != nil {
		log.Printf("load order %s after capture: %v", payment.OrderID, err)
		return
	}

	if _, err := s.referralService.CompleteForPurchase(ctx, order.UserID, order.TotalAmount); err != nil {
		log.Printf("complete referral for user %s: %v", order.UserID, err)
	}

	go func() {
		subject := fmt.Sprintf("Payment received for %s", order.ItemTitle)
		body := fmt.Sprintf("We received your payment of %d %s.", payment.Amount, payment.Currency)
		if err := s.notifier.Send(context.Background(), order.UserID, subject, body); err != nil {
			log.Printf("send payment notification: %v", err)
		}
	}()
}

func (s *paymentServiceImpl) UpdateStatus(ctx context.Context, paymentID string, newStatus model.PaymentStatus, gatewayMeta map[string]string) (*model.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "payment not found")
		}
		return nil, err
	}

	if !payment.Status.CanTransition(newStatus) {
		return nil, apperr.Newf(apperr.KindInvalidTransition,
			"payment cannot move from %s to %s", payment.Status, newStatus)
	}

	updates := map[string]interface{}{}
	if len(gatewayMeta) > 0 {
		meta, err := json.Marshal(gatewayMeta)
		if err != nil {
			return nil, fmt.Errorf("marshal gateway metadata: %w", err)
		}
		updates["metadata"] = string(meta)
	}

	won, err := s.paymentRepo.TransitionStatus(ctx, s.db, paymentID, payment.Status, newStatus, updates)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperr.Newf(apperr.KindInvalidTransition,
			"payment left status %s concurrently", payment.Status)
	}

	return s.paymentRepo.FindByID(ctx, paymentID)
}

// RefundPayment refunds a captured payment, fully by default. The
// gateway call precedes the local transition; if the gateway rejects the
// refund, no state changes.
func (s *paymentServiceImpl) RefundPayment(ctx context.Context, identity model.Identity, paymentID string, req *dto.RefundRequest) (*model.Payment, error) {
	payment, err := s.paymentRepo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.New(apperr.KindNotFound, "payment not found")
		}
		return nil, err
	}

	order, err := s.orderRepo.FindByID(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != identity.UserID && identity.Role != "admin" {
		return nil, apperr.New(apperr.KindForbidden, "payment belongs to another user")
	}

	if payment.Status != model.PaymentSuccess {
		return nil, apperr.Newf(apperr.KindNotEligible,
			"only successful payments can be refunded, current status %s", payment.Status)
	}

	amount := payment.Amount
	if req.Amount != nil {
		amount = *req.Amount
	}
	if amount <= 0 {
		return nil, apperr.New(apperr.KindValidation, "refund amount must be positive")
	}
	if amount > payment.Amount {
		return nil, apperr.Newf(apperr.KindAmountExceeded,
			"refund amount %d exceeds captured amount %d", amount, payment.Amount)
	}

	refund, err := s.gateway.Refund(ctx, payment.GatewayPaymentID, amount)
	if err != nil {
		return nil, fmt.Errorf("gateway refund: %w", err)
	}

	return s.applyRefund(ctx, payment, refund.ID, amount, req.Reason)
}

func (s *paymentServiceImpl) applyRefund(ctx context.Context, payment *model.Payment, refundID string, amount int64, reason string) (*model.Payment, error) {
	var won bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		won, err = s.paymentRepo.TransitionStatus(ctx, tx, payment.ID,
			model.PaymentSuccess, model.PaymentRefunded, map[string]interface{}{
				"refund_id":       refundID,
				"refunded_amount": amount,
				"refund_reason":   reason,
			})
		if err != nil {
			return fmt.Errorf("mark payment refunded: %w", err)
		}
		if !won {
			return nil
		}

		if amount == payment.Amount {
			_, err = s.orderRepo.TransitionStatus(ctx, tx, payment.OrderID,
				[]model.OrderStatus{model.OrderPaid}, model.OrderRefunded)
			if err != nil {
				return fmt.Errorf("mark order refunded: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.paymentRepo.FindByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}

	if !won {
		if updated.Status == model.PaymentRefunded {
			return updated, nil
		}
		return nil, apperr.Newf(apperr.KindInvalidTransition,
			"payment cannot move from %s to %s", updated.Status, model.PaymentRefunded)
	}

	return updated, nil
}

// HandleWebhook processes gateway event deliveries. Signature first,
// then the event-id dedupe table, then the same guarded transitions the
// synchronous paths use, so duplicate or out-of-order deliveries cannot
// double-apply.
func (s *paymentServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	signature := headers.Get("X-Razorpay-Signature")
	if !s.gateway.VerifyWebhookSignature(body, signature) {
		return apperr.New(apperr.KindValidation, "webhook signature verification failed")
	}

	eventID := headers.Get("X-Razorpay-Event-Id")
	if eventID != "" {
		seen, err := s.webhookEventRepo.Exists(ctx, eventID)
		if err != nil {
			return fmt.Errorf("check webhook event: %w", err)
		}
		if seen {
			return nil
		}
	}

	var event model.RazorpayWebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return apperr.Wrap(apperr.KindValidation, "decode webhook payload", err)
	}

	switch event.Event {
	case "payment.captured":
		if err := s.handlePaymentCaptured(ctx, &event); err != nil {
			return err
		}
	case "payment.failed":
		if err := s.handlePaymentFailed(ctx, &event); err != nil {
			return err
		}
	case "refund.processed":
		if err := s.handleRefundProcessed(ctx, &event); err != nil {
			return err
		}
	default:
		log.Printf("ignoring webhook event %q", event.Event)
	}

	if eventID != "" {
		if err := s.webhookEventRepo.MarkProcessed(ctx, eventID, event.Event); err != nil {
			return fmt.Errorf("mark webhook event processed: %w", err)
		}
	}

	return nil
}

func (s *paymentServiceImpl) handlePaymentCaptured(ctx context.Context, event *model.RazorpayWebhookEvent) error {
	entity := event.Payload.Payment.Entity
	if entity.OrderID == "" {
		return apperr.New(apperr.KindValidation, "webhook payload missing order id")
	}

	payment, err := s.paymentRepo.FindByGatewayOrderID(ctx, entity.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindNotFound, "no payment for gateway order")
		}
		return err
	}

	_, err = s.capturePayment(ctx, payment, entity.ID, entity.Method)
	if apperr.Is(err, apperr.KindInvalidTransition) {
		// late capture for a payment already failed locally; leave it
		// to reconciliation rather than fight the ledger
		log.Printf("late capture webhook for payment %s: %v", payment.ID, err)
		return nil
	}
	return err
}

func (s *paymentServiceImpl) handlePaymentFailed(ctx context.Context, event *model.RazorpayWebhookEvent) error {
	entity := event.Payload.Payment.Entity
	if entity.OrderID == "" {
		return apperr.New(apperr.KindValidation, "webhook payload missing order id")
	}

	payment, err := s.paymentRepo.FindByGatewayOrderID(ctx, entity.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindNotFound, "no payment for gateway order")
		}
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		won, err := s.paymentRepo.TransitionStatus(ctx, tx, payment.ID,
			model.PaymentPending, model.PaymentFailed, map[string]interface{}{
				"gateway_payment_id": entity.ID,
			})
		if err != nil {
			return fmt.Errorf("mark payment failed: %w", err)
		}
		if !won {
			// already settled one way or the other
			return nil
		}

		_, err = s.orderRepo.TransitionStatus(ctx, tx, payment.OrderID,
			[]model.OrderStatus{model.OrderCreated, model.OrderPending}, model.OrderFailed)
		return err
	})
}

func (s *paymentServiceImpl) handleRefundProcessed(ctx context.Context, event *model.RazorpayWebhookEvent) error {
	paymentEntity := event.Payload.Payment.Entity
	refundEntity := event.Payload.Refund.Entity
	if paymentEntity.OrderID == "" {
		return apperr.New(apperr.KindValidation, "webhook payload missing order id")
	}

	payment, err := s.paymentRepo.FindByGatewayOrderID(ctx, paymentEntity.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.New(apperr.KindNotFound, "no payment for gateway order")
		}
		return err
	}

	if payment.Status == model.PaymentRefunded {
		return nil
	}
	if payment.Status != model.PaymentSuccess {
		log.Printf("refund webhook for payment %s in status %s", payment.ID, payment.Status)
		return nil
	}

	amount := refundEntity.Amount
	if amount <= 0 || amount > payment.Amount {
		amount = payment.Amount
	}

	_, err = s.applyRefund(ctx, payment, refundEntity.ID, amount, "gateway initiated")
	return err
}
