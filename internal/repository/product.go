package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/revaspay/settlement/internal/models"
)

// ProductRepository reads catalog prices and bumps sales analytics
type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	IncrementSales(ctx context.Context, id uuid.UUID, quantity int, revenue float64) error
}

type productRepoImpl struct {
	db *gorm.DB
}

func (r *productRepoImpl) Create(ctx context.Context, product *models.Product) error {
	return translate(r.db.WithContext(ctx).Create(product).Error)
}

func (r *productRepoImpl) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	var products []models.Product
	if len(ids) > 0 {
		if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&products).Error; err != nil {
			return nil, translate(err)
		}
	}
	byID := make(map[uuid.UUID]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return byID, nil
}

func (r *productRepoImpl) IncrementSales(ctx context.Context, id uuid.UUID, quantity int, revenue float64) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"sold_count": gorm.Expr("sold_count + ?", quantity),
			"revenue":    gorm.Expr("revenue + ?", revenue),
		})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
