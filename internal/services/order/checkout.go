package order

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/services/fraud"
	"github.com/revaspay/settlement/internal/services/gateway"
	"github.com/revaspay/settlement/internal/utils"
)

// CheckoutItem is one requested line
type CheckoutItem struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required"`
}

// CheckoutRequest starts a purchase
type CheckoutRequest struct {
	BuyerID      string
	BuyerEmail   string
	ReferralCode string
	ClientIP     string
	Items        []CheckoutItem
}

// CheckoutResult is returned to the buyer so the gateway widget can be opened
type CheckoutResult struct {
	Order          *models.Order `json:"order"`
	GatewayOrderID string        `json:"gateway_order_id"`
}

// Checkout prices the cart, applies a valid referral code and opens the
// matching gateway order
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	buyerID := strings.TrimSpace(req.BuyerID)
	if buyerID == "" {
		return nil, fmt.Errorf("%w: buyer id is required", repository.ErrValidation)
	}

	items, subtotal, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		BuyerID:           buyerID,
		BuyerEmail:        strings.ToLower(strings.TrimSpace(req.BuyerEmail)),
		Items:             items,
		Subtotal:          subtotal,
		Total:             subtotal,
		Currency:          s.currency,
		Status:            models.OrderStatusCreated,
		PaymentStatus:     models.PaymentStatusCreated,
		FulfillmentStatus: models.FulfillmentStatusPending,
	}

	if code := strings.ToUpper(strings.TrimSpace(req.ReferralCode)); code != "" {
		usage := fraud.Usage{Code: code, IP: req.ClientIP, Email: order.BuyerEmail, BuyerID: buyerID}
		// every attempt counts, including codes that are turned away below
		s.fraud.ObserveAsync(usage)
		partner, err := s.validateReferral(ctx, usage)
		if err != nil {
			return nil, err
		}
		discount := utils.Percent(subtotal, partner.DiscountPercent)
		order.ReferralCode = &partner.ReferralCode
		order.ReferralPartnerID = &partner.ID
		order.DiscountPercent = partner.DiscountPercent
		order.CommissionPercent = partner.CommissionPercent
		order.DiscountAmount = discount
		order.Total = utils.SubMoney(subtotal, discount)
	}

	if order.Total <= 0 {
		return nil, ErrNonPositiveTotal
	}

	if err := s.store.Orders().Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	gwOrder, err := s.gateway.CreateOrder(ctx, gateway.CreateOrderRequest{
		Amount:   order.Total,
		Currency: order.Currency,
		Receipt:  utils.GenerateReference("ORD"),
		Notes:    map[string]string{"order_id": order.ID.String()},
	})
	if err != nil {
		s.log.Error("gateway order creation failed", zap.String("order_id", order.ID.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if err := s.store.Orders().AttachGatewayOrder(ctx, order.ID, gwOrder.ID); err != nil {
		return nil, fmt.Errorf("failed to attach gateway order: %w", err)
	}
	order.GatewayOrderID = &gwOrder.ID
	order.Status = models.OrderStatusPending

	s.log.Info("order created",
		zap.String("order_id", order.ID.String()),
		zap.Float64("total", order.Total),
		zap.Bool("referral", order.HasReferral()),
	)
	return &CheckoutResult{Order: order, GatewayOrderID: gwOrder.ID}, nil
}

func (s *Service) priceItems(ctx context.Context, requested []CheckoutItem) ([]models.OrderItem, float64, error) {
	if len(requested) == 0 {
		return nil, 0, ErrEmptyCart
	}
	ids := make([]uuid.UUID, 0, len(requested))
	for _, item := range requested {
		if item.Quantity < 1 || item.Quantity > MaxQuantity {
			return nil, 0, ErrInvalidQuantity
		}
		ids = append(ids, item.ProductID)
	}

	products, err := s.store.Products().GetByIDs(ctx, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load products: %w", err)
	}

	items := make([]models.OrderItem, 0, len(requested))
	lineTotals := make([]float64, 0, len(requested))
	for _, req := range requested {
		product, ok := products[req.ProductID]
		if !ok || !product.Active {
			return nil, 0, ErrProductUnavailable
		}
		item := models.OrderItem{
			ProductID:               product.ID,
			Name:                    product.Name,
			UnitPrice:               product.Price,
			Quantity:                req.Quantity,
			FulfillmentInstructions: product.FulfillmentInstructions,
		}
		items = append(items, item)
		lineTotals = append(lineTotals, item.LineTotal())
	}
	return items, utils.SumMoney(lineTotals...), nil
}

// validateReferral checks the code as of now. The usage cap is re-checked by
// the guarded increment at settlement; this check only turns away codes that
// are already exhausted.
func (s *Service) validateReferral(ctx context.Context, usage fraud.Usage) (*models.ReferralPartner, error) {
	partner, err := s.store.Partners().GetByCode(ctx, usage.Code)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidReferralCode
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load referral code: %w", err)
	}

	switch {
	case partner.Status != models.PartnerStatusActive:
		return nil, ErrInvalidReferralCode
	case partner.Expired(s.now()):
		return nil, ErrReferralExpired
	case partner.CapReached():
		return nil, ErrReferralCapReached
	case partner.UserID == usage.BuyerID:
		s.fraud.RecordSelfUse(ctx, usage)
		s.log.Warn("self referral attempt", zap.String("code", partner.ReferralCode), zap.String("buyer_id", usage.BuyerID))
		return nil, ErrSelfReferral
	}
	return partner, nil
}
