package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobProcessor runs a pool of workers that pop jobs and dispatch them to the
// handler registered on the queue for the job's type
type JobProcessor struct {
	queue       QueueInterface
	queueNames  []string
	workerCount int
	log         *zap.Logger

	wg             sync.WaitGroup
	processingJobs sync.Map
	ctx            context.Context
	cancel         context.CancelFunc
}

// NewJobProcessor creates a processor listening on the given job types
func NewJobProcessor(q QueueInterface, workerCount int, log *zap.Logger, jobTypes ...JobType) *JobProcessor {
	if workerCount < 1 {
		workerCount = 1
	}
	names := make([]string, 0, len(jobTypes))
	for _, t := range jobTypes {
		names = append(names, string(t))
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &JobProcessor{
		queue:       q,
		queueNames:  names,
		workerCount: workerCount,
		log:         log.Named("job_processor"),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start starts the job processor
func (p *JobProcessor) Start() {
	p.log.Info("starting job processor", zap.Int("workers", p.workerCount), zap.Strings("queues", p.queueNames))
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop stops the workers and waits for in-flight jobs
func (p *JobProcessor) Stop() {
	p.cancel()
	p.wg.Wait()
	p.log.Info("job processor stopped")
}

func (p *JobProcessor) worker(id int) {
	defer p.wg.Done()

	if len(p.queueNames) == 0 {
		p.log.Warn("worker exiting: no queues registered", zap.Int("worker", id))
		return
	}

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		redisJob, err := p.queue.Dequeue(p.ctx, p.queueNames...)
		if err != nil {
			if p.ctx.Err() != nil {
				return
			}
			p.log.Error("failed to get job", zap.Int("worker", id), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if redisJob == nil {
			continue
		}

		p.processingJobs.Store(redisJob.ID, true)
		if err := p.ProcessJob(p.ctx, redisJob); err != nil {
			p.log.Warn("job failed",
				zap.Int("worker", id),
				zap.String("job_id", redisJob.ID),
				zap.String("queue", redisJob.Queue),
				zap.Error(err),
			)
		}
		p.processingJobs.Delete(redisJob.ID)
	}
}

// ProcessJob processes a single job
func (p *JobProcessor) ProcessJob(ctx context.Context, redisJob *RedisJob) error {
	if redisJob == nil {
		return fmt.Errorf("nil job")
	}
	job := redisJob.ConvertToJob()

	handler, ok := p.queue.Handler(job.Type)
	if !ok {
		err := fmt.Errorf("no handler registered for job type: %s", job.Type)
		if failErr := p.queue.Fail(ctx, redisJob.ID, err); failErr != nil {
			p.log.Error("failed to mark job failed", zap.String("job_id", redisJob.ID), zap.Error(failErr))
		}
		return err
	}

	if _, err := handler(ctx, *job); err != nil {
		if failErr := p.queue.Fail(ctx, redisJob.ID, err); failErr != nil {
			p.log.Error("failed to mark job failed", zap.String("job_id", redisJob.ID), zap.Error(failErr))
		}
		return fmt.Errorf("job processing failed: %w", err)
	}

	return p.queue.Complete(ctx, redisJob.ID)
}

// IsProcessing checks if a job is currently being processed
func (p *JobProcessor) IsProcessing(jobID string) bool {
	_, ok := p.processingJobs.Load(jobID)
	return ok
}
