// Package order owns the buyer-facing order lifecycle: checkout, the
// payment-captured transition driven by the verified webhook, fulfillment
// updates and the status query.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/queue"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/services/fraud"
	"github.com/revaspay/settlement/internal/services/gateway"
	"github.com/revaspay/settlement/internal/services/ledger"
	"github.com/revaspay/settlement/internal/services/notification"
)

var (
	ErrEmptyCart           = fmt.Errorf("%w: order has no items", repository.ErrValidation)
	ErrInvalidQuantity     = fmt.Errorf("%w: quantity must be between 1 and %d", repository.ErrValidation, MaxQuantity)
	ErrProductUnavailable  = fmt.Errorf("%w: product not found or not for sale", repository.ErrValidation)
	ErrInvalidReferralCode = fmt.Errorf("%w: referral code is not valid", repository.ErrValidation)
	ErrReferralExpired     = fmt.Errorf("%w: referral code has expired", repository.ErrValidation)
	ErrReferralCapReached  = fmt.Errorf("%w: referral code usage limit reached", repository.ErrValidation)
	ErrSelfReferral        = fmt.Errorf("%w: you cannot use your own referral code", repository.ErrValidation)
	ErrNonPositiveTotal    = fmt.Errorf("%w: order total must be positive", repository.ErrValidation)
	ErrInvalidTransition   = fmt.Errorf("%w: order is not in a state that allows this action", repository.ErrValidation)
	ErrGatewayUnavailable  = errors.New("payment gateway unavailable")
)

// MaxQuantity bounds a single line
const MaxQuantity = 100

const analyticsEnqueueTimeout = 2 * time.Second

// Settler settles commission for a paid order
type Settler interface {
	Settle(ctx context.Context, orderID uuid.UUID) (*ledger.Settlement, error)
}

// FraudObserver receives referral code usage
type FraudObserver interface {
	ObserveAsync(u fraud.Usage)
	RecordSelfUse(ctx context.Context, u fraud.Usage)
}

// Service is the order state machine
type Service struct {
	store    repository.Store
	gateway  gateway.OrderCreator
	settler  Settler
	fraud    FraudObserver
	queue    queue.Enqueuer
	notifier notification.Notifier
	currency string
	log      *zap.Logger
	now      func() time.Time
}

// Config carries the order service's collaborators
type Config struct {
	Store    repository.Store
	Gateway  gateway.OrderCreator
	Settler  Settler
	Fraud    FraudObserver
	Queue    queue.Enqueuer
	Notifier notification.Notifier
	Currency string
	Logger   *zap.Logger
}

// NewService creates the order service
func NewService(cfg Config) *Service {
	currency := cfg.Currency
	if currency == "" {
		currency = "INR"
	}
	return &Service{
		store:    cfg.Store,
		gateway:  cfg.Gateway,
		settler:  cfg.Settler,
		fraud:    cfg.Fraud,
		queue:    cfg.Queue,
		notifier: cfg.Notifier,
		currency: currency,
		log:      cfg.Logger.Named("order"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// StatusItem is one line of the status view
type StatusItem struct {
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// StatusView is what a buyer may see about an order. It carries no gateway
// identifiers and no referral financials.
type StatusView struct {
	ID                uuid.UUID                `json:"id"`
	BuyerID           string                   `json:"buyer_id"`
	Items             []StatusItem             `json:"items"`
	Total             float64                  `json:"total"`
	Currency          string                   `json:"currency"`
	Status            models.OrderStatus       `json:"status"`
	PaymentStatus     models.PaymentStatus     `json:"payment_status"`
	FulfillmentStatus models.FulfillmentStatus `json:"fulfillment_status"`
	CreatedAt         time.Time                `json:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at"`
	PaidAt            *time.Time               `json:"paid_at,omitempty"`
	DeliveredAt       *time.Time               `json:"delivered_at,omitempty"`
}

// GetStatus returns the buyer-facing view of an order
func (s *Service) GetStatus(ctx context.Context, orderID uuid.UUID) (*StatusView, error) {
	order, err := s.store.Orders().GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	view := &StatusView{
		ID:                order.ID,
		BuyerID:           order.BuyerID,
		Items:             make([]StatusItem, 0, len(order.Items)),
		Total:             order.Total,
		Currency:          order.Currency,
		Status:            order.Status,
		PaymentStatus:     order.PaymentStatus,
		FulfillmentStatus: order.FulfillmentStatus,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
		PaidAt:            order.PaidAt,
		DeliveredAt:       order.DeliveredAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, StatusItem{Name: item.Name, UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}
	return view, nil
}
