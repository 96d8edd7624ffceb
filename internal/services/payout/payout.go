// Package payout runs the creator payout request lifecycle:
// pending -> processing -> completed, with rejection from either open state.
//
// Opening a request is advisory: the open-request lookup and the threshold
// check may race. Completion re-checks the balance and the debit itself is
// guarded on pending_commission >= amount, which is the real boundary.
package payout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/services/ledger"
	"github.com/revaspay/settlement/internal/services/notification"
	"github.com/revaspay/settlement/internal/services/settings"
	"github.com/revaspay/settlement/internal/utils"
)

var (
	ErrPartnerInactive       = fmt.Errorf("%w: partner is not active", repository.ErrForbidden)
	ErrBelowThreshold        = fmt.Errorf("%w: pending commission is below the payout threshold", repository.ErrValidation)
	ErrOpenRequestExists     = fmt.Errorf("%w: a payout request is already open", repository.ErrConflict)
	ErrInvalidTransition     = fmt.Errorf("%w: payout request is not in a state that allows this action", repository.ErrValidation)
	ErrAmountExceedsBalance  = fmt.Errorf("%w: payout amount exceeds pending commission, reconcile before completing", repository.ErrConflict)
	ErrReasonRequired        = fmt.Errorf("%w: rejection reason is required", repository.ErrValidation)
	ErrTransactionRefMissing = fmt.Errorf("%w: transaction reference is required", repository.ErrValidation)
)

// OpenRequest is a creator's payout request
type OpenRequest struct {
	PartnerID uuid.UUID
	RealName  string
	Method    models.PayoutMethod
	Details   json.RawMessage
}

// DirectPayoutRequest is an admin-initiated payout outside the request flow
type DirectPayoutRequest struct {
	PartnerID      uuid.UUID
	Amount         float64
	Method         models.PayoutMethod
	TransactionRef string
	Note           string
}

// Service is the payout request state machine
type Service struct {
	store    repository.Store
	settings settings.Provider
	notifier notification.Notifier
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates the payout service
func NewService(store repository.Store, settingsProvider settings.Provider, notifier notification.Notifier, log *zap.Logger) *Service {
	return &Service{
		store:    store,
		settings: settingsProvider,
		notifier: notifier,
		log:      log.Named("payout"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Open creates a pending request for the partner's full pending balance
func (s *Service) Open(ctx context.Context, req OpenRequest) (*models.PayoutRequest, error) {
	realName := strings.TrimSpace(req.RealName)
	if realName == "" {
		return nil, fmt.Errorf("%w: real name is required", repository.ErrValidation)
	}
	details, err := ParseDetails(req.Method, req.Details)
	if err != nil {
		return nil, err
	}

	partner, err := s.store.Partners().GetByID(ctx, req.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load partner: %w", err)
	}
	if partner.Status != models.PartnerStatusActive {
		return nil, fmt.Errorf("%w (status %s)", ErrPartnerInactive, partner.Status)
	}

	threshold, err := s.settings.PayoutThreshold(ctx)
	if err != nil {
		return nil, err
	}
	pending := utils.RoundMoney(partner.PendingCommission)
	if pending <= 0 || pending < threshold {
		return nil, fmt.Errorf("%w (pending %.2f, threshold %.2f)", ErrBelowThreshold, pending, threshold)
	}

	if _, err := s.store.Payouts().FindOpenByPartner(ctx, partner.ID); err == nil {
		return nil, ErrOpenRequestExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check open payout requests: %w", err)
	}

	request := &models.PayoutRequest{
		PartnerID:   partner.ID,
		RealName:    realName,
		Amount:      pending,
		Method:      details.Method(),
		Details:     details.Fields(),
		Status:      models.PayoutStatusPending,
		RequestedAt: s.now(),
	}
	if err := s.store.Payouts().Create(ctx, request); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrOpenRequestExists
		}
		return nil, fmt.Errorf("failed to create payout request: %w", err)
	}

	s.log.Info("payout request opened",
		zap.String("request_id", request.ID.String()),
		zap.String("partner_id", partner.ID.String()),
		zap.Float64("amount", request.Amount),
		zap.String("method", string(request.Method)),
	)
	s.notify(ctx, partner, request, notification.KindPayoutRequested, nil)
	return request, nil
}

// Approve moves a pending request to processing
func (s *Service) Approve(ctx context.Context, requestID uuid.UUID) (*models.PayoutRequest, error) {
	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.PayoutStatusPending {
		return nil, fmt.Errorf("%w (status %s)", ErrInvalidTransition, request.Status)
	}

	err = s.store.Payouts().Transition(ctx, request.ID,
		[]models.PayoutStatus{models.PayoutStatusPending}, models.PayoutStatusProcessing, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to approve payout request: %w", err)
	}
	request.Status = models.PayoutStatusProcessing

	s.log.Info("payout request approved", zap.String("request_id", request.ID.String()))
	s.notifyPartner(ctx, request, notification.KindPayoutApproved, nil)
	return request, nil
}

// Reject closes an open request without touching the ledger
func (s *Service) Reject(ctx context.Context, requestID uuid.UUID, reason string) (*models.PayoutRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrReasonRequired
	}
	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !request.Status.IsOpen() {
		return nil, fmt.Errorf("%w (status %s)", ErrInvalidTransition, request.Status)
	}

	processedAt := s.now()
	err = s.store.Payouts().Transition(ctx, request.ID, models.OpenPayoutStatuses, models.PayoutStatusRejected,
		map[string]interface{}{
			"rejection_reason": reason,
			"processed_at":     processedAt,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to reject payout request: %w", err)
	}
	request.Status = models.PayoutStatusRejected
	request.RejectionReason = reason
	request.ProcessedAt = &processedAt

	s.log.Info("payout request rejected", zap.String("request_id", request.ID.String()), zap.String("reason", reason))
	s.notifyPartner(ctx, request, notification.KindPayoutRejected, map[string]string{"reason": reason})
	return request, nil
}

// Complete pays out an open request. The balance is re-checked against a
// fresh partner read, then the debit, the status change and the history
// record commit together or not at all.
func (s *Service) Complete(ctx context.Context, requestID uuid.UUID, transactionRef string) (*models.PayoutRequest, error) {
	transactionRef = strings.TrimSpace(transactionRef)
	if transactionRef == "" {
		return nil, ErrTransactionRefMissing
	}
	request, err := s.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !request.Status.IsOpen() {
		return nil, fmt.Errorf("%w (status %s)", ErrInvalidTransition, request.Status)
	}

	partner, err := s.store.Partners().GetByID(ctx, request.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load partner: %w", err)
	}
	if utils.RoundMoney(request.Amount) > utils.RoundMoney(partner.PendingCommission) {
		s.log.Warn("payout amount exceeds pending commission",
			zap.String("request_id", request.ID.String()),
			zap.Float64("amount", request.Amount),
			zap.Float64("pending", partner.PendingCommission),
		)
		return nil, ErrAmountExceedsBalance
	}

	processedAt := s.now()
	err = s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := ledger.DebitWith(ctx, tx.Partners(), request.PartnerID, request.Amount); err != nil {
			return err
		}
		err := tx.Payouts().Transition(ctx, request.ID, models.OpenPayoutStatuses, models.PayoutStatusCompleted,
			map[string]interface{}{
				"transaction_ref": transactionRef,
				"processed_at":    processedAt,
			})
		if err != nil {
			return err
		}
		requestID := request.ID
		return tx.Payouts().CreateHistory(ctx, &models.PayoutHistory{
			PartnerID:       request.PartnerID,
			PayoutRequestID: &requestID,
			Amount:          request.Amount,
			Method:          request.Method,
			TransactionRef:  transactionRef,
			CreatedAt:       processedAt,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to complete payout request: %w", err)
	}

	request.Status = models.PayoutStatusCompleted
	request.TransactionRef = transactionRef
	request.ProcessedAt = &processedAt

	s.log.Info("payout completed",
		zap.String("request_id", request.ID.String()),
		zap.String("partner_id", request.PartnerID.String()),
		zap.Float64("amount", request.Amount),
	)
	s.notify(ctx, partner, request, notification.KindPayoutCompleted, map[string]string{"transaction_ref": transactionRef})
	return request, nil
}

// DirectPayout debits a partner without a creator request. It refuses while
// a request is open so the two flows never pay the same balance.
func (s *Service) DirectPayout(ctx context.Context, req DirectPayoutRequest) (*models.PayoutHistory, error) {
	req.TransactionRef = strings.TrimSpace(req.TransactionRef)
	if req.TransactionRef == "" {
		return nil, ErrTransactionRefMissing
	}
	if !ValidMethod(req.Method) {
		return nil, fmt.Errorf("%w: unknown payout method %q", repository.ErrValidation, req.Method)
	}
	amount := utils.RoundMoney(req.Amount)
	if amount <= 0 {
		return nil, ledger.ErrInvalidAmount
	}

	if _, err := s.store.Partners().GetByID(ctx, req.PartnerID); err != nil {
		return nil, fmt.Errorf("failed to load partner: %w", err)
	}
	if _, err := s.store.Payouts().FindOpenByPartner(ctx, req.PartnerID); err == nil {
		return nil, ErrOpenRequestExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check open payout requests: %w", err)
	}

	history := &models.PayoutHistory{
		PartnerID:      req.PartnerID,
		Amount:         amount,
		Method:         req.Method,
		TransactionRef: req.TransactionRef,
		Note:           strings.TrimSpace(req.Note),
		CreatedAt:      s.now(),
	}
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := ledger.DebitWith(ctx, tx.Partners(), req.PartnerID, amount); err != nil {
			return err
		}
		return tx.Payouts().CreateHistory(ctx, history)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record direct payout: %w", err)
	}

	s.log.Info("direct payout recorded",
		zap.String("partner_id", req.PartnerID.String()),
		zap.Float64("amount", amount),
		zap.String("transaction_ref", req.TransactionRef),
	)
	return history, nil
}

// Get returns one request
func (s *Service) Get(ctx context.Context, requestID uuid.UUID) (*models.PayoutRequest, error) {
	request, err := s.store.Payouts().GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payout request: %w", err)
	}
	return request, nil
}

// OpenForPartner returns the partner's pending or processing request
func (s *Service) OpenForPartner(ctx context.Context, partnerID uuid.UUID) (*models.PayoutRequest, error) {
	request, err := s.store.Payouts().FindOpenByPartner(ctx, partnerID)
	if err != nil {
		return nil, fmt.Errorf("no open payout request: %w", err)
	}
	return request, nil
}

// ListForPartner returns every request of a partner, newest first
func (s *Service) ListForPartner(ctx context.Context, partnerID uuid.UUID) ([]models.PayoutRequest, error) {
	return s.store.Payouts().ListByPartner(ctx, partnerID)
}

// ListByStatus pages through requests, oldest first. An empty status lists all.
func (s *Service) ListByStatus(ctx context.Context, status models.PayoutStatus, page repository.Page) ([]models.PayoutRequest, int64, error) {
	return s.store.Payouts().ListByStatus(ctx, status, page)
}

// History returns the partner's completed payouts, newest first
func (s *Service) History(ctx context.Context, partnerID uuid.UUID) ([]models.PayoutHistory, error) {
	return s.store.Payouts().ListHistory(ctx, partnerID)
}

func (s *Service) notifyPartner(ctx context.Context, request *models.PayoutRequest, kind notification.Kind, extra map[string]string) {
	partner, err := s.store.Partners().GetByID(ctx, request.PartnerID)
	if err != nil {
		s.log.Warn("notification skipped, partner not loaded", zap.String("request_id", request.ID.String()), zap.Error(err))
		return
	}
	s.notify(ctx, partner, request, kind, extra)
}

func (s *Service) notify(ctx context.Context, partner *models.ReferralPartner, request *models.PayoutRequest, kind notification.Kind, extra map[string]string) {
	data := map[string]string{
		"amount":     utils.FormatCurrency(request.Amount, "INR"),
		"method":     string(request.Method),
		"request_id": request.ID.String(),
	}
	for k, v := range extra {
		data[k] = v
	}
	s.notifier.Notify(ctx, notification.Notification{Kind: kind, Recipient: partner.Email, Data: data})
}
