package jobs

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/queue"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/services/notification"
)

// Dependencies are the collaborators the job handlers need
type Dependencies struct {
	Store   repository.Store
	Sender  notification.Sender
	Settler Settler
	Purger  Purger
	Logger  *zap.Logger
}

// JobTypes lists every job type a processor should listen on
func JobTypes() []queue.JobType {
	return []queue.JobType{
		queue.JobTypeSendNotification,
		queue.JobTypeCatalogAnalytics,
		queue.JobTypeSettlementSweep,
		queue.JobTypeFraudLogPurge,
	}
}

// RegisterAllJobHandlers registers all job handlers with the queue
func RegisterAllJobHandlers(q queue.QueueInterface, deps Dependencies) {
	q.RegisterHandler(queue.JobTypeSendNotification, NewNotificationJob(deps.Sender, deps.Logger).Process)
	q.RegisterHandler(queue.JobTypeCatalogAnalytics, NewCatalogAnalyticsJob(deps.Store, deps.Logger).Process)
	q.RegisterHandler(queue.JobTypeSettlementSweep, NewSettlementSweepJob(deps.Store.Orders(), deps.Settler, deps.Logger).Process)
	q.RegisterHandler(queue.JobTypeFraudLogPurge, NewFraudPurgeJob(deps.Purger).Process)
}

// ScheduleRecurringJobs schedules the settlement sweep and the fraud log purge
func ScheduleRecurringJobs(s *queue.Scheduler, sweepEvery, purgeEvery time.Duration) error {
	if err := s.Every(sweepEvery, queue.JobTypeSettlementSweep, queue.SettlementSweepPayload{Limit: defaultSweepLimit}); err != nil {
		return fmt.Errorf("failed to schedule settlement sweep: %w", err)
	}
	if err := s.Every(purgeEvery, queue.JobTypeFraudLogPurge, struct{}{}); err != nil {
		return fmt.Errorf("failed to schedule fraud purge: %w", err)
	}
	return nil
}
