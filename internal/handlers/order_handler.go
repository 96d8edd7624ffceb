package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/services/order"
)

// OrderHandler serves buyer-facing order endpoints
type OrderHandler struct {
	orders *order.Service
	log    *zap.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders *order.Service, log *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, log: log.Named("order_handler")}
}

type checkoutBody struct {
	BuyerID      string               `json:"buyer_id" binding:"required"`
	BuyerEmail   string               `json:"buyer_email" binding:"omitempty,email"`
	ReferralCode string               `json:"referral_code"`
	Items        []order.CheckoutItem `json:"items" binding:"required,min=1,dive"`
}

// Checkout handles POST /api/v1/orders
func (h *OrderHandler) Checkout(c *gin.Context) {
	var body checkoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}

	result, err := h.orders.Checkout(c.Request.Context(), order.CheckoutRequest{
		BuyerID:      body.BuyerID,
		BuyerEmail:   body.BuyerEmail,
		ReferralCode: body.ReferralCode,
		ClientIP:     c.ClientIP(),
		Items:        body.Items,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"order_id":         result.Order.ID,
		"gateway_order_id": result.GatewayOrderID,
		"subtotal":         result.Order.Subtotal,
		"discount_amount":  result.Order.DiscountAmount,
		"total":            result.Order.Total,
		"currency":         result.Order.Currency,
		"status":           result.Order.Status,
	})
}

// GetStatus handles GET /api/v1/orders/:id
func (h *OrderHandler) GetStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	view, err := h.orders.GetStatus(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
