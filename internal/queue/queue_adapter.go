package queue

import (
	"context"
	"time"
)

// QueueAdapter adapts RedisQueue to QueueInterface so producers can hand
// over a prepared Job
type QueueAdapter struct {
	redisQueue *RedisQueue
}

// NewQueueAdapter creates a new QueueAdapter
func NewQueueAdapter(redisQueue *RedisQueue) *QueueAdapter {
	return &QueueAdapter{redisQueue: redisQueue}
}

// RegisterHandler registers a handler for a job type
func (a *QueueAdapter) RegisterHandler(jobType JobType, handler JobHandler) {
	a.redisQueue.RegisterHandler(jobType, handler)
}

// Handler returns the handler registered for jobType
func (a *QueueAdapter) Handler(jobType JobType) (JobHandler, bool) {
	return a.redisQueue.Handler(jobType)
}

// Enqueue adds a job to the queue, keeping its id and retry budget
func (a *QueueAdapter) Enqueue(ctx context.Context, job *Job) error {
	opts := []EnqueueOption{WithJobID(job.ID.String())}
	if job.MaxRetries > 0 {
		opts = append(opts, WithMaxRetries(job.MaxRetries))
	}
	_, err := a.redisQueue.Enqueue(ctx, string(job.Type), job.Payload, opts...)
	return err
}

// Dequeue gets a job from the queue
func (a *QueueAdapter) Dequeue(ctx context.Context, queueNames ...string) (*RedisJob, error) {
	return a.redisQueue.Dequeue(ctx, queueNames...)
}

// Complete marks a job as complete
func (a *QueueAdapter) Complete(ctx context.Context, jobID string) error {
	return a.redisQueue.Complete(ctx, jobID)
}

// Fail marks a job as failed
func (a *QueueAdapter) Fail(ctx context.Context, jobID string, err error) error {
	return a.redisQueue.Fail(ctx, jobID, err)
}

// Retry retries a job
func (a *QueueAdapter) Retry(ctx context.Context, jobID string, delay time.Duration) error {
	return a.redisQueue.Retry(ctx, jobID, delay)
}
