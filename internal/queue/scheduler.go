package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Scheduler enqueues recurring jobs on fixed intervals. The jobs themselves
// run on the processor like any other job.
type Scheduler struct {
	queue     Enqueuer
	scheduler *gocron.Scheduler
	log       *zap.Logger
}

// NewScheduler creates a scheduler in UTC
func NewScheduler(q Enqueuer, log *zap.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		queue:     q,
		scheduler: s,
		log:       log.Named("scheduler"),
	}
}

// Every enqueues a job of jobType with payload each interval
func (s *Scheduler) Every(interval time.Duration, jobType JobType, payload interface{}) error {
	if interval <= 0 {
		return fmt.Errorf("invalid interval %s for %s", interval, jobType)
	}
	_, err := s.scheduler.Every(interval).Do(func() {
		s.enqueue(jobType, payload)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", jobType, err)
	}
	return nil
}

func (s *Scheduler) enqueue(jobType JobType, payload interface{}) {
	job, err := NewJob(jobType, payload, 1)
	if err != nil {
		s.log.Error("failed to build recurring job", zap.String("type", string(jobType)), zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.log.Error("failed to enqueue recurring job", zap.String("type", string(jobType)), zap.Error(err))
		return
	}
	s.log.Debug("recurring job enqueued", zap.String("type", string(jobType)), zap.String("job_id", job.ID.String()))
}

// Start starts the scheduler without blocking
func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// Len is the number of scheduled jobs
func (s *Scheduler) Len() int {
	return s.scheduler.Len()
}
