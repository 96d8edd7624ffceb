package order

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/queue"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/services/gateway"
	"github.com/revaspay/settlement/internal/services/notification"
	"github.com/revaspay/settlement/internal/utils"
)

// Outcome is what a payment-captured event did
type Outcome string

const (
	OutcomeDuplicate     Outcome = "duplicate"
	OutcomeOrderNotFound Outcome = "order_not_found"
	OutcomePaid          Outcome = "paid"
)

// HandlePaymentCaptured applies a verified payment.captured event. Replays
// and concurrent deliveries of the same payment resolve to OutcomeDuplicate
// without side effects.
func (s *Service) HandlePaymentCaptured(ctx context.Context, evt *gateway.Event) (Outcome, error) {
	payment := evt.Payment()
	log := s.log.With(zap.String("payment_id", payment.ID), zap.String("gateway_order_id", payment.OrderID))

	seen, err := s.store.Orders().ExistsByGatewayPaymentID(ctx, payment.ID)
	if err != nil {
		return "", fmt.Errorf("failed to check payment id: %w", err)
	}
	if seen {
		log.Info("payment already recorded")
		return OutcomeDuplicate, nil
	}

	order, err := s.store.Orders().GetByGatewayOrderID(ctx, payment.OrderID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("payment captured for unknown order")
		return OutcomeOrderNotFound, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load order: %w", err)
	}

	if amount := payment.MajorAmount(); amount != order.Total {
		log.Warn("captured amount differs from order total",
			zap.String("order_id", order.ID.String()),
			zap.Float64("captured", amount),
			zap.Float64("total", order.Total),
		)
	}

	if buyer := payment.NoteString("buyerId"); buyer != "" && buyer != order.BuyerID {
		log.Warn("payment notes name a different buyer",
			zap.String("order_id", order.ID.String()),
			zap.String("note_buyer_id", buyer),
		)
	}

	paidAt := s.now()
	err = s.store.Orders().MarkPaid(ctx, order.ID, payment.ID, paidAt)
	if errors.Is(err, repository.ErrConflict) {
		// lost the guard or the payment id is bound to another order
		log.Info("payment claimed concurrently", zap.String("order_id", order.ID.String()))
		return OutcomeDuplicate, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to mark order paid: %w", err)
	}

	order.GatewayPaymentID = &payment.ID
	order.PaymentStatus = models.PaymentStatusPaid
	order.Status = models.OrderStatusPaid
	order.FulfillmentStatus = models.FulfillmentStatusPending
	order.WebhookVerified = true
	order.PaidAt = &paidAt
	log.Info("order paid", zap.String("order_id", order.ID.String()))

	s.afterPaid(ctx, order, payment)
	return OutcomePaid, nil
}

// afterPaid runs the side effects of a payment. None of them can fail the
// webhook.
func (s *Service) afterPaid(ctx context.Context, order *models.Order, payment gateway.PaymentEntity) {
	// settlement runs before any queue work
	s.settle(ctx, order)

	s.enqueueAnalytics(ctx, order)

	recipient := order.BuyerEmail
	if recipient == "" {
		recipient = payment.Email
	}
	s.notifier.Notify(ctx, notification.Notification{
		Kind:      notification.KindOrderPaid,
		Recipient: recipient,
		Data: map[string]string{
			"order_id": order.ID.String(),
			"total":    utils.FormatCurrency(order.Total, order.Currency),
		},
	})
}

func (s *Service) settle(ctx context.Context, order *models.Order) {
	if !order.HasReferral() {
		return
	}
	result, err := s.settler.Settle(ctx, order.ID)
	if err != nil {
		s.log.Error("settlement failed, sweep will retry",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		return
	}
	s.log.Info("settlement finished",
		zap.String("order_id", order.ID.String()),
		zap.String("reason", string(result.Reason)),
		zap.Float64("commission", result.Commission),
	)
}

func (s *Service) enqueueAnalytics(ctx context.Context, order *models.Order) {
	job, err := queue.NewJob(queue.JobTypeCatalogAnalytics, queue.CatalogAnalyticsPayload{OrderID: order.ID}, 3)
	if err != nil {
		s.log.Warn("failed to build analytics job", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), analyticsEnqueueTimeout)
	defer cancel()
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.log.Warn("failed to enqueue analytics",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}
}
