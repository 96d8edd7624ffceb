package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/revaspay/settlement/internal/models"
)

// FraudRepository is the append-only fraud log
type FraudRepository interface {
	Create(ctx context.Context, entry *models.FraudLogEntry) error
	CountByIPSince(ctx context.Context, code, ip string, since time.Time) (int64, error)
	CountByEmail(ctx context.Context, code, email string) (int64, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	List(ctx context.Context, logType models.FraudLogType, page Page) ([]models.FraudLogEntry, int64, error)
}

type fraudRepoImpl struct {
	db *gorm.DB
}

func (r *fraudRepoImpl) Create(ctx context.Context, entry *models.FraudLogEntry) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error)
}

// CountByIPSince counts code_usage rows for the code from ip at or after since
func (r *fraudRepoImpl) CountByIPSince(ctx context.Context, code, ip string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FraudLogEntry{}).
		Where("referral_code = ? AND type = ? AND ip_address = ? AND created_at >= ?",
			code, models.FraudLogCodeUsage, ip, since).
		Count(&count).Error
	return count, translate(err)
}

// CountByEmail counts code_usage rows for the code and email over the retained log
func (r *fraudRepoImpl) CountByEmail(ctx context.Context, code, email string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.FraudLogEntry{}).
		Where("referral_code = ? AND type = ? AND email = ?", code, models.FraudLogCodeUsage, email).
		Count(&count).Error
	return count, translate(err)
}

func (r *fraudRepoImpl) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&models.FraudLogEntry{})
	return res.RowsAffected, translate(res.Error)
}

func (r *fraudRepoImpl) List(ctx context.Context, logType models.FraudLogType, page Page) ([]models.FraudLogEntry, int64, error) {
	page = page.Normalize()
	query := r.db.WithContext(ctx).Model(&models.FraudLogEntry{})
	if logType != "" {
		query = query.Where("type = ?", logType)
	} else {
		query = query.Where("type <> ?", models.FraudLogCodeUsage)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	var entries []models.FraudLogEntry
	if err := query.Order("created_at DESC").Offset(page.Offset()).Limit(page.Size).Find(&entries).Error; err != nil {
		return nil, 0, translate(err)
	}
	return entries, total, nil
}
