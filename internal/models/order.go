package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderStatus is the overall lifecycle state of an order
type OrderStatus string

const (
	OrderStatusCreated   OrderStatus = "created"
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusFailed    OrderStatus = "failed"
	OrderStatusRefunded  OrderStatus = "refunded"
)

// PaymentStatus mirrors the gateway view of the payment
type PaymentStatus string

const (
	PaymentStatusCreated   PaymentStatus = "created"
	PaymentStatusAttempted PaymentStatus = "attempted"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// FulfillmentStatus tracks delivery of the purchased items
type FulfillmentStatus string

const (
	FulfillmentStatusPending   FulfillmentStatus = "pending"
	FulfillmentStatusDelivered FulfillmentStatus = "delivered"
	FulfillmentStatusFailed    FulfillmentStatus = "failed"
	FulfillmentStatusSkipped   FulfillmentStatus = "skipped"
)

// Order is one purchase attempt.
//
// The referral snapshot (ReferralCode, ReferralPartnerID, DiscountAmount,
// DiscountPercent, CommissionPercent) is written once at checkout and never
// updated afterwards. Payment fields change only through the verified webhook.
type Order struct {
	Base
	GatewayOrderID   *string `gorm:"type:varchar(64);uniqueIndex" json:"-"`
	GatewayPaymentID *string `gorm:"type:varchar(64);uniqueIndex" json:"-"`

	BuyerID    string      `gorm:"type:varchar(64);index;not null" json:"buyer_id"`
	BuyerEmail string      `gorm:"type:varchar(255)" json:"buyer_email"`
	Items      []OrderItem `gorm:"foreignKey:OrderID" json:"items"`
	Subtotal   float64     `gorm:"type:decimal(20,2);not null" json:"subtotal"`
	Total      float64     `gorm:"type:decimal(20,2);not null" json:"total"`
	Currency   string      `gorm:"type:varchar(3);not null;default:'INR'" json:"currency"`

	ReferralCode      *string    `gorm:"type:varchar(32);index" json:"referral_code,omitempty"`
	ReferralPartnerID *uuid.UUID `gorm:"type:uuid;index" json:"referral_partner_id,omitempty"`
	DiscountAmount    float64    `gorm:"type:decimal(20,2);default:0" json:"discount_amount"`
	DiscountPercent   float64    `gorm:"type:decimal(5,2);default:0" json:"discount_percent"`
	CommissionPercent float64    `gorm:"type:decimal(5,2);default:0" json:"commission_percent"`
	CommissionSettled bool       `gorm:"not null;default:false;index" json:"commission_settled"`

	Status            OrderStatus       `gorm:"type:varchar(20);not null;default:'created';index" json:"status"`
	PaymentStatus     PaymentStatus     `gorm:"type:varchar(20);not null;default:'created'" json:"payment_status"`
	FulfillmentStatus FulfillmentStatus `gorm:"type:varchar(20);not null;default:'pending'" json:"fulfillment_status"`
	WebhookVerified   bool              `gorm:"not null;default:false" json:"webhook_verified"`

	PaidAt      *time.Time `json:"paid_at,omitempty"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	Notes       JSON       `gorm:"type:jsonb" json:"-"`
}

// HasReferral reports whether the order was placed with a referral code
func (o *Order) HasReferral() bool {
	return o.ReferralCode != nil && *o.ReferralCode != ""
}

// OrderItem is one line of an order with its price snapshot
type OrderItem struct {
	ID                      uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID                 uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`
	ProductID               uuid.UUID `gorm:"type:uuid;index;not null" json:"product_id"`
	Name                    string    `gorm:"type:varchar(255)" json:"name"`
	UnitPrice               float64   `gorm:"type:decimal(20,2);not null" json:"unit_price"`
	Quantity                int       `gorm:"not null" json:"quantity"`
	FulfillmentInstructions string    `gorm:"type:text" json:"fulfillment_instructions,omitempty"`
}

// BeforeCreate assigns the item id
func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// LineTotal is unit price times quantity, unrounded
func (i OrderItem) LineTotal() float64 {
	return i.UnitPrice * float64(i.Quantity)
}
