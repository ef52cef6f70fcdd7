package model

import "time"

type OrderStatus string

const (
	OrderCreated  OrderStatus = "CREATED"
	OrderPending  OrderStatus = "PENDING"
	OrderPaid     OrderStatus = "PAID"
	OrderFailed   OrderStatus = "FAILED"
	OrderRefunded OrderStatus = "REFUNDED"
)

type ItemType string

const (
	ItemCourse        ItemType = "COURSE"
	ItemDegreeProgram ItemType = "DEGREE"
	ItemMentorship    ItemType = "MENTORSHIP"
	ItemSubscription  ItemType = "SUBSCRIPTION"
)

// Order is a purchase intent. Rows are never deleted; only the status
// column moves, so the table doubles as the audit trail.
// All amounts are integer minor units (paise).
type Order struct {
	ID         string      `gorm:"primaryKey;size:64;not null" json:"id"`
	UserID     string      `gorm:"size:64;index;not null" json:"user_id"`
	ItemID     string      `gorm:"size:64;index;not null" json:"item_id"`
	ItemTitle  string      `gorm:"size:255" json:"item_title"`
	ItemType   ItemType    `gorm:"size:32;not null" json:"item_type"`
	UnitPrice  int64       `gorm:"not null" json:"unit_price"`
	Quantity   int32       `gorm:"not null" json:"quantity"`
	Currency   string      `gorm:"size:8;not null" json:"currency"`
	TotalAmount int64      `gorm:"not null" json:"total_amount"`
	Status     OrderStatus `gorm:"size:32;index;not null" json:"status"`

	BillingName  string `gorm:"size:255" json:"billing_name,omitempty"`
	BillingEmail string `gorm:"size:255" json:"billing_email,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentSuccess  PaymentStatus = "SUCCESS"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// CanTransition is the single definition of the payment lifecycle:
// PENDING -> SUCCESS | FAILED, SUCCESS -> REFUNDED. FAILED and REFUNDED
// are terminal. Repositories guard their conditional updates with the
// same prior status the service checked against this table.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	switch s {
	case PaymentPending:
		return to == PaymentSuccess || to == PaymentFailed
	case PaymentSuccess:
		return to == PaymentRefunded
	default:
		return false
	}
}

// Payment is one attempt to collect funds against an Order. An order may
// accumulate several attempts; each row correlates to the gateway via
// GatewayOrderID/GatewayPaymentID.
type Payment struct {
	ID       string        `gorm:"primaryKey;size:64;not null" json:"id"`
	OrderID  string        `gorm:"size:64;index;not null" json:"order_id"`
	Amount   int64         `gorm:"not null" json:"amount"`
	Currency string        `gorm:"size:8;not null" json:"currency"`
	Method   string        `gorm:"size:32" json:"method"`
	Status   PaymentStatus `gorm:"size:32;index;not null" json:"status"`

	GatewayOrderID   string `gorm:"size:128;uniqueIndex" json:"gateway_order_id"`
	GatewayPaymentID string `gorm:"size:128;index" json:"gateway_payment_id"`
	RefundID         string `gorm:"size:128" json:"refund_id,omitempty"`
	RefundedAmount   int64  `json:"refunded_amount,omitempty"`
	RefundReason     string `gorm:"size:255" json:"refund_reason,omitempty"`

	// Free-form gateway metadata, stored as JSON text.
	Metadata string `gorm:"type:text" json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "PENDING"
	ReferralCompleted ReferralStatus = "COMPLETED"
	ReferralInvalid   ReferralStatus = "INVALID"
)

// Referral tracks an introduction between two users. It transitions
// PENDING -> COMPLETED exactly once, on the referred user's first
// qualifying purchase, and never regresses.
type Referral struct {
	ID             string         `gorm:"primaryKey;size:64;not null" json:"id"`
	ReferrerID     string         `gorm:"size:64;index;not null" json:"referrer_id"`
	ReferredUserID string         `gorm:"size:64;index;not null" json:"referred_user_id"`
	Code           string         `gorm:"size:32;uniqueIndex;not null" json:"code"`
	Status         ReferralStatus `gorm:"size:32;index;not null" json:"status"`
	RewardAmount   int64          `json:"reward_amount"`
	PurchaseAmount int64          `json:"purchase_amount"`
	ExpiresAt      time.Time      `json:"expires_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WebhookEvent makes gateway webhook handling idempotent: duplicate
// deliveries of the same event id are dropped before any state change.
type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

// Identity is the authenticated caller, passed explicitly into every
// service call rather than read from ambient state.
type Identity struct {
	UserID string
	Role   string
}
