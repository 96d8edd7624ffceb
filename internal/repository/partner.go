package repository

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/revaspay/settlement/internal/models"
)

// PartnerRepository persists referral partners and their ledger counters
type PartnerRepository interface {
	Create(ctx context.Context, partner *models.ReferralPartner) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReferralPartner, error)
	GetByCode(ctx context.Context, code string) (*models.ReferralPartner, error)
	GetByUserID(ctx context.Context, userID string) (*models.ReferralPartner, error)
	List(ctx context.Context, page Page) ([]models.ReferralPartner, int64, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.PartnerStatus) error
	// CreditCommission adds one use, the order revenue and the commission in
	// a single statement. It reports false when the usage cap refused it.
	CreditCommission(ctx context.Context, id uuid.UUID, revenue, commission float64) (bool, error)
	// DebitPending moves amount from pending commission to paid out. It
	// reports false when the pending balance is smaller than amount.
	DebitPending(ctx context.Context, id uuid.UUID, amount float64) (bool, error)
}

type partnerRepoImpl struct {
	db *gorm.DB
}

func (r *partnerRepoImpl) Create(ctx context.Context, partner *models.ReferralPartner) error {
	partner.ReferralCode = strings.ToUpper(partner.ReferralCode)
	return translate(r.db.WithContext(ctx).Create(partner).Error)
}

func (r *partnerRepoImpl) GetByID(ctx context.Context, id uuid.UUID) (*models.ReferralPartner, error) {
	var partner models.ReferralPartner
	if err := r.db.WithContext(ctx).First(&partner, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &partner, nil
}

func (r *partnerRepoImpl) GetByCode(ctx context.Context, code string) (*models.ReferralPartner, error) {
	var partner models.ReferralPartner
	err := r.db.WithContext(ctx).
		Where("referral_code = ?", strings.ToUpper(strings.TrimSpace(code))).
		First(&partner).Error
	if err != nil {
		return nil, translate(err)
	}
	return &partner, nil
}

func (r *partnerRepoImpl) GetByUserID(ctx context.Context, userID string) (*models.ReferralPartner, error) {
	var partner models.ReferralPartner
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&partner).Error; err != nil {
		return nil, translate(err)
	}
	return &partner, nil
}

func (r *partnerRepoImpl) List(ctx context.Context, page Page) ([]models.ReferralPartner, int64, error) {
	page = page.Normalize()
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.ReferralPartner{}).Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var partners []models.ReferralPartner
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Size).
		Find(&partners).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return partners, total, nil
}

func (r *partnerRepoImpl) SetStatus(ctx context.Context, id uuid.UUID, status models.PartnerStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.ReferralPartner{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *partnerRepoImpl) CreditCommission(ctx context.Context, id uuid.UUID, revenue, commission float64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReferralPartner{}).
		Where("id = ? AND (max_uses IS NULL OR total_uses < max_uses)", id).
		Updates(map[string]interface{}{
			"total_uses":              gorm.Expr("total_uses + 1"),
			"total_revenue_generated": gorm.Expr("total_revenue_generated + ?", revenue),
			"total_commission_earned": gorm.Expr("total_commission_earned + ?", commission),
			"pending_commission":      gorm.Expr("pending_commission + ?", commission),
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *partnerRepoImpl) DebitPending(ctx context.Context, id uuid.UUID, amount float64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.ReferralPartner{}).
		Where("id = ? AND pending_commission >= ?", id, amount).
		Updates(map[string]interface{}{
			"pending_commission": gorm.Expr("pending_commission - ?", amount),
			"total_paid_out":     gorm.Expr("total_paid_out + ?", amount),
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}
