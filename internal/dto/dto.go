package dto

import "github.com/Kalpla-elearning/kalpla-sub005/internal/model"

type CreateOrderRequest struct {
	ItemID       string `json:"item_id"`
	ItemTitle    string `json:"item_title"`
	ItemType     string `json:"item_type"`
	UnitPrice    int64  `json:"unit_price"`
	Quantity     int32  `json:"quantity"`
	Currency     string `json:"currency"`
	BillingName  string `json:"billing_name"`
	BillingEmail string `json:"billing_email"`
}

type Pagination struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
}

type OrderListResponse struct {
	Orders     []*model.Order `json:"orders"`
	Pagination Pagination     `json:"pagination"`
}

// OrderWithPayments is the explicit "order with its payments" read model;
// payments come newest first.
type OrderWithPayments struct {
	Order    *model.Order     `json:"order"`
	Payments []*model.Payment `json:"payments"`
}

type CheckoutRequest struct {
	OrderID string `json:"order_id"`
	Method  string `json:"method"`
}

type CheckoutResponse struct {
	PaymentID      string `json:"payment_id"`
	GatewayOrderID string `json:"gateway_order_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	GatewayKeyID   string `json:"gateway_key_id"`
}

type ConfirmPaymentRequest struct {
	GatewayOrderID   string `json:"razorpay_order_id"`
	GatewayPaymentID string `json:"razorpay_payment_id"`
	Signature        string `json:"razorpay_signature"`
}

type RefundRequest struct {
	// Amount defaults to the full captured amount when omitted.
	Amount *int64 `json:"amount"`
	Reason string `json:"reason"`
}

type CreateReferralRequest struct {
	ReferredUserID string `json:"referred_user_id"`
}

type ReferralValidationResponse struct {
	Valid      bool   `json:"valid"`
	ReferrerID string `json:"referrer_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}
