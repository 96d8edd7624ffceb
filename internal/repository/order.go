package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/revaspay/settlement/internal/models"
)

// OrderRepository persists orders and owns the guarded payment transitions
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error)
	ExistsByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (bool, error)
	AttachGatewayOrder(ctx context.Context, id uuid.UUID, gatewayOrderID string) error
	MarkPaid(ctx context.Context, id uuid.UUID, gatewayPaymentID string, paidAt time.Time) error
	MarkCommissionSettled(ctx context.Context, id uuid.UUID) error
	UpdateFulfillment(ctx context.Context, id uuid.UUID, fulfillment models.FulfillmentStatus, status models.OrderStatus, deliveredAt *time.Time) error
	MarkRefunded(ctx context.Context, id uuid.UUID) error
	ListUnsettled(ctx context.Context, limit int) ([]uuid.UUID, error)
}

type orderRepoImpl struct {
	db *gorm.DB
}

// terminalOrderStatuses never accept a payment or a settlement
var terminalOrderStatuses = []models.OrderStatus{models.OrderStatusRefunded, models.OrderStatusFailed}

func (r *orderRepoImpl) Create(ctx context.Context, order *models.Order) error {
	return translate(r.db.WithContext(ctx).Create(order).Error)
}

func (r *orderRepoImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Preload("Items").First(&order, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *orderRepoImpl) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("gateway_order_id = ?", gatewayOrderID).
		First(&order).Error
	if err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (r *orderRepoImpl) ExistsByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("gateway_payment_id = ?", gatewayPaymentID).
		Count(&count).Error
	if err != nil {
		return false, translate(err)
	}
	return count > 0, nil
}

// AttachGatewayOrder stores the gateway order id on a freshly created order
func (r *orderRepoImpl) AttachGatewayOrder(ctx context.Context, id uuid.UUID, gatewayOrderID string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND gateway_order_id IS NULL AND status = ?", id, models.OrderStatusCreated).
		Updates(map[string]interface{}{
			"gateway_order_id": gatewayOrderID,
			"status":           models.OrderStatusPending,
		})
	return guarded(res)
}

// MarkPaid claims the payment for the order. The guard requires that no
// payment was recorded yet and the order is not terminal, so of two racing
// deliveries exactly one sees a nil error.
func (r *orderRepoImpl) MarkPaid(ctx context.Context, id uuid.UUID, gatewayPaymentID string, paidAt time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND gateway_payment_id IS NULL AND status NOT IN ?", id, terminalOrderStatuses).
		Updates(map[string]interface{}{
			"gateway_payment_id": gatewayPaymentID,
			"payment_status":     models.PaymentStatusPaid,
			"status":             models.OrderStatusPaid,
			"fulfillment_status": models.FulfillmentStatusPending,
			"webhook_verified":   true,
			"paid_at":            paidAt,
		})
	return guarded(res)
}

// MarkCommissionSettled flips the settled flag. It only matches orders whose
// settlement preconditions still hold.
func (r *orderRepoImpl) MarkCommissionSettled(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND commission_settled = ? AND payment_status = ? AND webhook_verified = ? AND status NOT IN ?",
			id, false, models.PaymentStatusPaid, true, terminalOrderStatuses).
		Update("commission_settled", true)
	return guarded(res)
}

// UpdateFulfillment records the fulfillment outcome of a paid order
func (r *orderRepoImpl) UpdateFulfillment(ctx context.Context, id uuid.UUID, fulfillment models.FulfillmentStatus, status models.OrderStatus, deliveredAt *time.Time) error {
	updates := map[string]interface{}{
		"fulfillment_status": fulfillment,
		"status":             status,
	}
	if deliveredAt != nil {
		updates["delivered_at"] = *deliveredAt
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, models.OrderStatusPaid).
		Updates(updates)
	return guarded(res)
}

func (r *orderRepoImpl) MarkRefunded(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status <> ?", id, models.OrderStatusRefunded).
		Update("status", models.OrderStatusRefunded)
	return guarded(res)
}

// ListUnsettled returns paid, verified referral orders whose commission has
// not been settled yet, oldest first.
func (r *orderRepoImpl) ListUnsettled(ctx context.Context, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("commission_settled = ? AND payment_status = ? AND webhook_verified = ?", false, models.PaymentStatusPaid, true).
		Where("status NOT IN ?", terminalOrderStatuses).
		Where("referral_code IS NOT NULL AND referral_code <> ''").
		Order(clause.OrderByColumn{Column: clause.Column{Name: "paid_at"}}).
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, translate(err)
	}
	return ids, nil
}
