// Package ledger credits referral commission for paid orders and debits it
// for payouts.
//
// Settlement is idempotent per order. The partner increment and the order's
// commission_settled flag are written in one transaction with the flag as the
// last statement; the flag update is guarded on the order still being
// unsettled, so of two concurrent settlements only one can commit.
package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/services/notification"
	"github.com/revaspay/settlement/internal/utils"
)

// Reason explains the outcome of a settlement attempt
type Reason string

const (
	ReasonPreconditionsUnmet Reason = "preconditions_unmet"
	ReasonPartnerMissing     Reason = "partner_missing"
	ReasonCapReached         Reason = "cap_reached"
	ReasonCredited           Reason = "credited"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds pending commission
	ErrInsufficientBalance = fmt.Errorf("%w: insufficient pending commission", repository.ErrConflict)
	// ErrInvalidAmount is returned for non-positive debits
	ErrInvalidAmount = fmt.Errorf("%w: amount must be positive", repository.ErrValidation)
)

// Settlement is the result of Settle
type Settlement struct {
	OrderID    uuid.UUID  `json:"order_id"`
	PartnerID  *uuid.UUID `json:"partner_id,omitempty"`
	Credited   bool       `json:"credited"`
	Commission float64    `json:"commission"`
	Reason     Reason     `json:"reason"`
}

// Service is the commission ledger
type Service struct {
	store    repository.Store
	notifier notification.Notifier
	log      *zap.Logger
}

// NewService creates the ledger
func NewService(store repository.Store, notifier notification.Notifier, log *zap.Logger) *Service {
	return &Service{store: store, notifier: notifier, log: log.Named("ledger")}
}

// Eligible reports whether an order may be settled as of this snapshot
func Eligible(order *models.Order) bool {
	return order.HasReferral() &&
		!order.CommissionSettled &&
		order.PaymentStatus == models.PaymentStatusPaid &&
		order.WebhookVerified &&
		order.Status != models.OrderStatusRefunded &&
		order.Status != models.OrderStatusFailed
}

// Settle credits the referral partner of a paid order at most once.
// Repeated or concurrent calls for the same order are no-ops after the
// first commit.
func (s *Service) Settle(ctx context.Context, orderID uuid.UUID) (*Settlement, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", orderID, err)
	}

	result := &Settlement{OrderID: order.ID}
	if !Eligible(order) {
		result.Reason = ReasonPreconditionsUnmet
		return result, nil
	}

	partner, err := s.findPartner(ctx, order)
	if errors.Is(err, repository.ErrNotFound) {
		return s.settleWithoutPartner(ctx, order, result)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load referral partner: %w", err)
	}
	result.PartnerID = &partner.ID

	commission := utils.Percent(order.Total, order.CommissionPercent)
	revenue := utils.RoundMoney(order.Total)

	var credited bool
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		ok, err := tx.Partners().CreditCommission(ctx, partner.ID, revenue, commission)
		if err != nil {
			return fmt.Errorf("failed to credit partner: %w", err)
		}
		credited = ok
		return tx.Orders().MarkCommissionSettled(ctx, order.ID)
	})
	if errors.Is(err, repository.ErrGuardFailed) {
		s.log.Info("settlement lost to a concurrent settlement", zap.String("order_id", order.ID.String()))
		result.Reason = ReasonPreconditionsUnmet
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to settle order %s: %w", order.ID, err)
	}

	if !credited {
		s.log.Info("usage cap reached, order settled without credit",
			zap.String("order_id", order.ID.String()),
			zap.String("partner_id", partner.ID.String()),
		)
		result.Reason = ReasonCapReached
		return result, nil
	}

	result.Credited = true
	result.Commission = commission
	result.Reason = ReasonCredited
	s.log.Info("commission credited",
		zap.String("order_id", order.ID.String()),
		zap.String("partner_id", partner.ID.String()),
		zap.Float64("commission", commission),
	)
	s.notifier.Notify(ctx, notification.Notification{
		Kind:      notification.KindCommissionCredited,
		Recipient: partner.Email,
		Data: map[string]string{
			"code":       partner.ReferralCode,
			"commission": utils.FormatCurrency(commission, order.Currency),
			"order_id":   order.ID.String(),
		},
	})
	return result, nil
}

// settleWithoutPartner marks the order settled so it stops being retried
func (s *Service) settleWithoutPartner(ctx context.Context, order *models.Order, result *Settlement) (*Settlement, error) {
	err := s.store.Orders().MarkCommissionSettled(ctx, order.ID)
	if errors.Is(err, repository.ErrGuardFailed) {
		result.Reason = ReasonPreconditionsUnmet
		return result, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to settle order %s: %w", order.ID, err)
	}
	s.log.Warn("referral partner missing, order settled without credit",
		zap.String("order_id", order.ID.String()),
		zap.String("referral_code", *order.ReferralCode),
	)
	result.Reason = ReasonPartnerMissing
	return result, nil
}

func (s *Service) findPartner(ctx context.Context, order *models.Order) (*models.ReferralPartner, error) {
	if order.ReferralPartnerID != nil {
		return s.store.Partners().GetByID(ctx, *order.ReferralPartnerID)
	}
	return s.store.Partners().GetByCode(ctx, *order.ReferralCode)
}

// Debit moves amount out of the partner's pending commission
func (s *Service) Debit(ctx context.Context, partnerID uuid.UUID, amount float64) error {
	return DebitWith(ctx, s.store.Partners(), partnerID, amount)
}

// DebitWith runs the guarded debit against repo, which may be bound to a
// transaction
func DebitWith(ctx context.Context, repo repository.PartnerRepository, partnerID uuid.UUID, amount float64) error {
	amount = utils.RoundMoney(amount)
	if amount <= 0 {
		return ErrInvalidAmount
	}
	ok, err := repo.DebitPending(ctx, partnerID, amount)
	if err != nil {
		return fmt.Errorf("failed to debit partner %s: %w", partnerID, err)
	}
	if !ok {
		return ErrInsufficientBalance
	}
	return nil
}
