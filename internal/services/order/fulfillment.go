package order

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/models"
)

// MarkDelivered records a successful fulfillment of a paid order
func (s *Service) MarkDelivered(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	now := s.now()
	return s.updateFulfillment(ctx, orderID, models.FulfillmentStatusDelivered, models.OrderStatusDelivered, &now)
}

// MarkFulfillmentFailed moves a paid order to failed. An unsettled order is
// never settled afterwards; commission already credited stays with the partner.
func (s *Service) MarkFulfillmentFailed(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.updateFulfillment(ctx, orderID, models.FulfillmentStatusFailed, models.OrderStatusFailed, nil)
}

func (s *Service) updateFulfillment(ctx context.Context, orderID uuid.UUID, fulfillment models.FulfillmentStatus, status models.OrderStatus, deliveredAt *time.Time) (*models.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusPaid {
		return nil, ErrInvalidTransition
	}
	if err := s.store.Orders().UpdateFulfillment(ctx, orderID, fulfillment, status, deliveredAt); err != nil {
		return nil, err
	}
	s.log.Info("fulfillment updated",
		zap.String("order_id", orderID.String()),
		zap.String("fulfillment", string(fulfillment)),
	)
	return s.store.Orders().GetByID(ctx, orderID)
}

// MarkRefunded moves any order that is not refunded yet to refunded. A
// refunded order is never settled afterwards; commission already credited
// stays with the partner.
func (s *Service) MarkRefunded(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == models.OrderStatusRefunded {
		return nil, ErrInvalidTransition
	}
	if err := s.store.Orders().MarkRefunded(ctx, orderID); err != nil {
		return nil, err
	}
	s.log.Info("order refunded",
		zap.String("order_id", orderID.String()),
		zap.Bool("commission_settled", order.CommissionSettled),
	)
	return s.store.Orders().GetByID(ctx, orderID)
}
