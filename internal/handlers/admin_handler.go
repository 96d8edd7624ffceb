package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/services/fraud"
	"github.com/revaspay/settlement/internal/services/ledger"
	"github.com/revaspay/settlement/internal/services/order"
	"github.com/revaspay/settlement/internal/services/partner"
	"github.com/revaspay/settlement/internal/services/payout"
	"github.com/revaspay/settlement/internal/services/settings"
)

// AdminHandler serves operator endpoints. Payout request actions are keyed
// by partner: each partner has at most one open request.
type AdminHandler struct {
	partners *partner.Service
	payouts  *payout.Service
	orders   *order.Service
	ledger   *ledger.Service
	fraud    *fraud.Monitor
	settings *settings.Service
	log      *zap.Logger
}

// AdminServices groups the services behind the admin endpoints
type AdminServices struct {
	Partners *partner.Service
	Payouts  *payout.Service
	Orders   *order.Service
	Ledger   *ledger.Service
	Fraud    *fraud.Monitor
	Settings *settings.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(svc AdminServices, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		partners: svc.Partners,
		payouts:  svc.Payouts,
		orders:   svc.Orders,
		ledger:   svc.Ledger,
		fraud:    svc.Fraud,
		settings: svc.Settings,
		log:      log.Named("admin_handler"),
	}
}

// ListPartners handles GET /api/v1/admin/partners
func (h *AdminHandler) ListPartners(c *gin.Context) {
	page := pageQuery(c)
	partners, total, err := h.partners.List(c.Request.Context(), page)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, paged(partners, total, page))
}

// CreatePartner handles POST /api/v1/admin/partners
func (h *AdminHandler) CreatePartner(c *gin.Context) {
	var app partner.ApplicationApproval
	if err := c.ShouldBindJSON(&app); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.partners.CreateFromApplication(c.Request.Context(), app)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// GetPartner handles GET /api/v1/admin/partners/:id
func (h *AdminHandler) GetPartner(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ctx := c.Request.Context()
	p, err := h.partners.Get(ctx, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	var open *models.PayoutRequest
	if req, err := h.payouts.OpenForPartner(ctx, id); err == nil {
		open = req
	} else if !errors.Is(err, repository.ErrNotFound) {
		respondError(c, h.log, err)
		return
	}
	history, err := h.payouts.History(ctx, id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"partner": p, "open_payout_request": open, "payout_history": history})
}

type statusBody struct {
	Status models.PartnerStatus `json:"status" binding:"required"`
}

// SetPartnerStatus handles PUT /api/v1/admin/partners/:id/status
func (h *AdminHandler) SetPartnerStatus(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	p, err := h.partners.SetStatus(c.Request.Context(), id, body.Status)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// openRequest resolves the partner's open payout request
func (h *AdminHandler) openRequest(c *gin.Context) (*models.PayoutRequest, bool) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return nil, false
	}
	req, err := h.payouts.OpenForPartner(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return nil, false
	}
	return req, true
}

// ApprovePayout handles POST /api/v1/admin/partners/:id/payout-request/approve
func (h *AdminHandler) ApprovePayout(c *gin.Context) {
	req, ok := h.openRequest(c)
	if !ok {
		return
	}
	updated, err := h.payouts.Approve(c.Request.Context(), req.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type rejectBody struct {
	Reason string `json:"reason" binding:"required"`
}

// RejectPayout handles POST /api/v1/admin/partners/:id/payout-request/reject
func (h *AdminHandler) RejectPayout(c *gin.Context) {
	var body rejectBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "rejection reason is required")
		return
	}
	req, ok := h.openRequest(c)
	if !ok {
		return
	}
	updated, err := h.payouts.Reject(c.Request.Context(), req.ID, body.Reason)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type completeBody struct {
	TransactionRef string `json:"transaction_ref" binding:"required"`
}

// CompletePayout handles POST /api/v1/admin/partners/:id/payout-request/complete
func (h *AdminHandler) CompletePayout(c *gin.Context) {
	var body completeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "transaction reference is required")
		return
	}
	req, ok := h.openRequest(c)
	if !ok {
		return
	}
	updated, err := h.payouts.Complete(c.Request.Context(), req.ID, body.TransactionRef)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

type directPayoutBody struct {
	Amount         float64             `json:"amount" binding:"required,gt=0"`
	Method         models.PayoutMethod `json:"method" binding:"required"`
	TransactionRef string              `json:"transaction_ref" binding:"required"`
	Note           string              `json:"note"`
}

// DirectPayout handles POST /api/v1/admin/partners/:id/payouts
func (h *AdminHandler) DirectPayout(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var body directPayoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	history, err := h.payouts.DirectPayout(c.Request.Context(), payout.DirectPayoutRequest{
		PartnerID:      id,
		Amount:         body.Amount,
		Method:         body.Method,
		TransactionRef: body.TransactionRef,
		Note:           body.Note,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, history)
}

// ListPayouts handles GET /api/v1/admin/payouts?status=
func (h *AdminHandler) ListPayouts(c *gin.Context) {
	status := models.PayoutStatus(c.Query("status"))
	page := pageQuery(c)
	requests, total, err := h.payouts.ListByStatus(c.Request.Context(), status, page)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, paged(requests, total, page))
}

// SettleOrder handles POST /api/v1/admin/orders/:id/settle
func (h *AdminHandler) SettleOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	result, err := h.ledger.Settle(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type fulfillmentBody struct {
	Status models.FulfillmentStatus `json:"status" binding:"required,oneof=delivered failed"`
}

// UpdateFulfillment handles PUT /api/v1/admin/orders/:id/fulfillment
func (h *AdminHandler) UpdateFulfillment(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var body fulfillmentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "status must be delivered or failed")
		return
	}

	var (
		updated *models.Order
		err     error
	)
	if body.Status == models.FulfillmentStatusDelivered {
		updated, err = h.orders.MarkDelivered(c.Request.Context(), id)
	} else {
		updated, err = h.orders.MarkFulfillmentFailed(c.Request.Context(), id)
	}
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// RefundOrder handles POST /api/v1/admin/orders/:id/refund
func (h *AdminHandler) RefundOrder(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	updated, err := h.orders.MarkRefunded(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// ListFraud handles GET /api/v1/admin/fraud?type=
func (h *AdminHandler) ListFraud(c *gin.Context) {
	page := pageQuery(c)
	entries, total, err := h.fraud.Flags(c.Request.Context(), models.FraudLogType(c.Query("type")), page)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, paged(entries, total, page))
}

// GetPayoutThreshold handles GET /api/v1/admin/settings/payout-threshold
func (h *AdminHandler) GetPayoutThreshold(c *gin.Context) {
	threshold, err := h.settings.PayoutThreshold(c.Request.Context())
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payout_threshold": threshold})
}

type thresholdBody struct {
	PayoutThreshold *float64 `json:"payout_threshold" binding:"required"`
}

// SetPayoutThreshold handles PUT /api/v1/admin/settings/payout-threshold
func (h *AdminHandler) SetPayoutThreshold(c *gin.Context) {
	var body thresholdBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "payout_threshold is required")
		return
	}
	threshold, err := h.settings.SetPayoutThreshold(c.Request.Context(), *body.PayoutThreshold)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payout_threshold": threshold})
}
