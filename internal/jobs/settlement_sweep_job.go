package jobs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/queue"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/services/ledger"
)

const defaultSweepLimit = 200

// Settler settles commission for a paid order
type Settler interface {
	Settle(ctx context.Context, orderID uuid.UUID) (*ledger.Settlement, error)
}

// SweepResult summarises one sweep run
type SweepResult struct {
	Scanned  int `json:"scanned"`
	Credited int `json:"credited"`
	Failed   int `json:"failed"`
}

// SettlementSweepJob retries settlement for paid referral orders whose
// inline settlement did not complete
type SettlementSweepJob struct {
	orders  repository.OrderRepository
	settler Settler
	log     *zap.Logger
}

// NewSettlementSweepJob creates a new settlement sweep job handler
func NewSettlementSweepJob(orders repository.OrderRepository, settler Settler, log *zap.Logger) *SettlementSweepJob {
	return &SettlementSweepJob{orders: orders, settler: settler, log: log.Named("settlement_sweep_job")}
}

// Process settles up to Limit unsettled orders, oldest first. Individual
// failures are logged and left for the next run.
func (j *SettlementSweepJob) Process(ctx context.Context, job queue.Job) (interface{}, error) {
	payload := queue.SettlementSweepPayload{Limit: defaultSweepLimit}
	if len(job.Payload) > 0 && string(job.Payload) != "null" {
		if err := queue.JobPayload(job, &payload); err != nil {
			return nil, err
		}
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultSweepLimit
	}

	ids, err := j.orders.ListUnsettled(ctx, payload.Limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unsettled orders: %w", err)
	}

	result := SweepResult{Scanned: len(ids)}
	for _, id := range ids {
		settlement, err := j.settler.Settle(ctx, id)
		if err != nil {
			result.Failed++
			j.log.Warn("sweep settlement failed", zap.String("order_id", id.String()), zap.Error(err))
			continue
		}
		if settlement.Credited {
			result.Credited++
		}
	}

	if result.Scanned > 0 {
		j.log.Info("settlement sweep finished",
			zap.Int("scanned", result.Scanned),
			zap.Int("credited", result.Credited),
			zap.Int("failed", result.Failed),
		)
	}
	return result, nil
}
