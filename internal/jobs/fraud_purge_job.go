package jobs

import (
	"context"

	"github.com/revaspay/settlement/internal/queue"
)

// Purger removes expired fraud log entries
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// FraudPurgeJob enforces the fraud log retention
type FraudPurgeJob struct {
	purger Purger
}

// NewFraudPurgeJob creates a new fraud purge job handler
func NewFraudPurgeJob(purger Purger) *FraudPurgeJob {
	return &FraudPurgeJob{purger: purger}
}

func (j *FraudPurgeJob) Process(ctx context.Context, _ queue.Job) (interface{}, error) {
	deleted, err := j.purger.Purge(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"deleted": deleted}, nil
}
