package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/revaspay/settlement/internal/models"
)

// PayoutRepository persists payout requests and the payout history
type PayoutRepository interface {
	Create(ctx context.Context, req *models.PayoutRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error)
	FindOpenByPartner(ctx context.Context, partnerID uuid.UUID) (*models.PayoutRequest, error)
	ListByPartner(ctx context.Context, partnerID uuid.UUID) ([]models.PayoutRequest, error)
	ListByStatus(ctx context.Context, status models.PayoutStatus, page Page) ([]models.PayoutRequest, int64, error)
	// Transition moves a request from one of the from statuses to to, writing
	// the extra columns in the same statement. ErrGuardFailed when the
	// request was no longer in any of the from statuses.
	Transition(ctx context.Context, id uuid.UUID, from []models.PayoutStatus, to models.PayoutStatus, fields map[string]interface{}) error
	CreateHistory(ctx context.Context, history *models.PayoutHistory) error
	ListHistory(ctx context.Context, partnerID uuid.UUID) ([]models.PayoutHistory, error)
}

type payoutRepoImpl struct {
	db *gorm.DB
}

func (r *payoutRepoImpl) Create(ctx context.Context, req *models.PayoutRequest) error {
	return translate(r.db.WithContext(ctx).Create(req).Error)
}

func (r *payoutRepoImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	var req models.PayoutRequest
	if err := r.db.WithContext(ctx).First(&req, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *payoutRepoImpl) FindOpenByPartner(ctx context.Context, partnerID uuid.UUID) (*models.PayoutRequest, error) {
	var req models.PayoutRequest
	err := r.db.WithContext(ctx).
		Where("partner_id = ? AND status IN ?", partnerID, models.OpenPayoutStatuses).
		Order("requested_at DESC").
		First(&req).Error
	if err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

func (r *payoutRepoImpl) ListByPartner(ctx context.Context, partnerID uuid.UUID) ([]models.PayoutRequest, error) {
	var reqs []models.PayoutRequest
	err := r.db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("requested_at DESC").
		Find(&reqs).Error
	if err != nil {
		return nil, translate(err)
	}
	return reqs, nil
}

func (r *payoutRepoImpl) ListByStatus(ctx context.Context, status models.PayoutStatus, page Page) ([]models.PayoutRequest, int64, error) {
	page = page.Normalize()
	query := r.db.WithContext(ctx).Model(&models.PayoutRequest{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var reqs []models.PayoutRequest
	if err := query.Order("requested_at ASC").Offset(page.Offset()).Limit(page.Size).Find(&reqs).Error; err != nil {
		return nil, 0, translate(err)
	}
	return reqs, total, nil
}

func (r *payoutRepoImpl) Transition(ctx context.Context, id uuid.UUID, from []models.PayoutStatus, to models.PayoutStatus, fields map[string]interface{}) error {
	if len(from) == 0 {
		return errors.New("transition needs at least one source status")
	}
	updates := map[string]interface{}{"status": to}
	for k, v := range fields {
		updates[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.PayoutRequest{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return guarded(res)
}

func (r *payoutRepoImpl) CreateHistory(ctx context.Context, history *models.PayoutHistory) error {
	return translate(r.db.WithContext(ctx).Create(history).Error)
}

func (r *payoutRepoImpl) ListHistory(ctx context.Context, partnerID uuid.UUID) ([]models.PayoutHistory, error) {
	var history []models.PayoutHistory
	err := r.db.WithContext(ctx).
		Where("partner_id = ?", partnerID).
		Order("created_at DESC").
		Find(&history).Error
	if err != nil {
		return nil, translate(err)
	}
	return history, nil
}
