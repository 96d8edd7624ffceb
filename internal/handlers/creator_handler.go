package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/middleware"
	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/services/partner"
	"github.com/revaspay/settlement/internal/services/payout"
	"github.com/revaspay/settlement/internal/services/settings"
)

// CreatorHandler serves the creator dashboard and payout requests
type CreatorHandler struct {
	partners *partner.Service
	payouts  *payout.Service
	settings settings.Provider
	log      *zap.Logger
}

// NewCreatorHandler creates a new creator handler
func NewCreatorHandler(partners *partner.Service, payouts *payout.Service, settingsProvider settings.Provider, log *zap.Logger) *CreatorHandler {
	return &CreatorHandler{
		partners: partners,
		payouts:  payouts,
		settings: settingsProvider,
		log:      log.Named("creator_handler"),
	}
}

// currentPartner resolves the partner of the authenticated creator
func (h *CreatorHandler) currentPartner(c *gin.Context) (*models.ReferralPartner, bool) {
	p, err := h.partners.GetByUserID(c.Request.Context(), middleware.UserID(c))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "no referral partner for this account"})
		return nil, false
	}
	if err != nil {
		respondError(c, h.log, err)
		return nil, false
	}
	return p, true
}

// Dashboard handles GET /api/v1/creator/partner
func (h *CreatorHandler) Dashboard(c *gin.Context) {
	p, ok := h.currentPartner(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	threshold, err := h.settings.PayoutThreshold(ctx)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	var open *models.PayoutRequest
	if req, err := h.payouts.OpenForPartner(ctx, p.ID); err == nil {
		open = req
	} else if !errors.Is(err, repository.ErrNotFound) {
		respondError(c, h.log, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"partner":             p,
		"payout_threshold":    threshold,
		"can_request_payout":  open == nil && p.Status == models.PartnerStatusActive && p.PendingCommission > 0 && p.PendingCommission >= threshold,
		"open_payout_request": open,
	})
}

// ListPayouts handles GET /api/v1/creator/payouts
func (h *CreatorHandler) ListPayouts(c *gin.Context) {
	p, ok := h.currentPartner(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	requests, err := h.payouts.ListForPartner(ctx, p.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	history, err := h.payouts.History(ctx, p.ID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests, "history": history})
}

type openPayoutBody struct {
	RealName string              `json:"real_name" binding:"required"`
	Method   models.PayoutMethod `json:"method" binding:"required"`
	Details  json.RawMessage     `json:"details" binding:"required"`
}

// OpenPayout handles POST /api/v1/creator/payouts
func (h *CreatorHandler) OpenPayout(c *gin.Context) {
	var body openPayoutBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	p, ok := h.currentPartner(c)
	if !ok {
		return
	}

	request, err := h.payouts.Open(c.Request.Context(), payout.OpenRequest{
		PartnerID: p.ID,
		RealName:  body.RealName,
		Method:    body.Method,
		Details:   body.Details,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, request)
}
