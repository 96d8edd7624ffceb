package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/revaspay/settlement/internal/models"
)

// WebhookEventRepository is the audit trail of verified deliveries
type WebhookEventRepository interface {
	// Record inserts the event and reports whether it was new
	Record(ctx context.Context, event *models.WebhookEvent) (bool, error)
}

type webhookEventRepoImpl struct {
	db *gorm.DB
}

func (r *webhookEventRepoImpl) Record(ctx context.Context, event *models.WebhookEvent) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(event)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}
