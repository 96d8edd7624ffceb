package jobs

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/queue"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/utils"
)

// CatalogAnalyticsJob bumps product sales counters for a paid order
type CatalogAnalyticsJob struct {
	store repository.Store
	log   *zap.Logger
}

// NewCatalogAnalyticsJob creates a new catalog analytics job handler
func NewCatalogAnalyticsJob(store repository.Store, log *zap.Logger) *CatalogAnalyticsJob {
	return &CatalogAnalyticsJob{store: store, log: log.Named("catalog_analytics_job")}
}

// Process increments sold_count and revenue for every line of the order.
// All lines are applied in one transaction so a retry never double counts
// a partially applied order.
func (j *CatalogAnalyticsJob) Process(ctx context.Context, job queue.Job) (interface{}, error) {
	var payload queue.CatalogAnalyticsPayload
	if err := queue.JobPayload(job, &payload); err != nil {
		return nil, err
	}

	order, err := j.store.Orders().GetByID(ctx, payload.OrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order %s: %w", payload.OrderID, err)
	}

	err = j.store.Transaction(ctx, func(tx repository.Store) error {
		for _, item := range order.Items {
			err := tx.Products().IncrementSales(ctx, item.ProductID, item.Quantity, utils.RoundMoney(item.LineTotal()))
			if errors.Is(err, repository.ErrNotFound) {
				j.log.Warn("product removed from catalog, skipping", zap.String("product_id", item.ProductID.String()))
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record sales for order %s: %w", order.ID, err)
	}
	return map[string]int{"lines": len(order.Items)}, nil
}
