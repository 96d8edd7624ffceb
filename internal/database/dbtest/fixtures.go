package dbtest

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/revaspay/settlement/internal/models"
)

// Partner inserts an active partner with 10% discount and 10% commission
func Partner(t *testing.T, db *gorm.DB, mutate func(p *models.ReferralPartner)) *models.ReferralPartner {
	t.Helper()
	p := &models.ReferralPartner{
		UserID:            "user-" + uuid.NewString()[:8],
		DisplayName:       "Maya",
		Email:             "maya@example.com",
		ReferralCode:      "MAYA" + strings.ToUpper(uuid.NewString()[:4]),
		DiscountPercent:   10,
		CommissionPercent: 10,
		Status:            models.PartnerStatusActive,
	}
	if mutate != nil {
		mutate(p)
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create partner: %v", err)
	}
	return p
}

// PaidOrder inserts a paid, webhook-verified, unsettled order for total
// referred by partner. A nil partner gives an order without referral.
func PaidOrder(t *testing.T, db *gorm.DB, partner *models.ReferralPartner, total float64) *models.Order {
	t.Helper()
	now := time.Now().UTC()
	paymentID := "pay_" + uuid.NewString()[:12]
	order := &models.Order{
		GatewayPaymentID:  &paymentID,
		BuyerID:           "buyer-" + uuid.NewString()[:8],
		BuyerEmail:        "buyer@example.com",
		Subtotal:          total,
		Total:             total,
		Currency:          "INR",
		Status:            models.OrderStatusPaid,
		PaymentStatus:     models.PaymentStatusPaid,
		FulfillmentStatus: models.FulfillmentStatusPending,
		WebhookVerified:   true,
		PaidAt:            &now,
	}
	if partner != nil {
		code := partner.ReferralCode
		order.ReferralCode = &code
		order.ReferralPartnerID = &partner.ID
		order.CommissionPercent = partner.CommissionPercent
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	return order
}

// Product inserts an active catalog product
func Product(t *testing.T, db *gorm.DB, name string, price float64) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Price: price, Active: true}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}
