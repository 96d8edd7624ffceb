package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultRetryCount = 3
	DefaultTTL        = 24 * time.Hour

	jobKeyPrefix     = "jobs:"
	delayedKeyPrefix = "delayed:"
)

// ErrJobNotFound is returned when the job hash expired or never existed
var ErrJobNotFound = errors.New("job not found")

// RedisJob is the wire form of a job stored in redis
type RedisJob struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	RunAt      time.Time       `json:"run_at"`
}

// ConvertToJob converts a RedisJob to a Job
func (r *RedisJob) ConvertToJob() *Job {
	id, _ := uuid.Parse(r.ID)
	return &Job{
		ID:         id,
		Type:       JobType(r.Queue),
		Payload:    r.Payload,
		Status:     r.Status,
		RetryCount: r.RetryCount,
		MaxRetries: r.MaxRetries,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		Error:      r.Error,
	}
}

// RedisQueue keeps pending jobs in one list per job type, delayed jobs in a
// sorted set scored by run time, and the latest state of every job in a hash
// that expires after DefaultTTL.
type RedisQueue struct {
	client *redis.Client
	log    *zap.Logger

	mu       sync.RWMutex
	handlers map[JobType]JobHandler
}

// NewRedisQueue creates a new Redis queue
func NewRedisQueue(client *redis.Client, log *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client:   client,
		log:      log.Named("queue"),
		handlers: make(map[JobType]JobHandler),
	}
}

// RegisterHandler registers a handler for a job type
func (q *RedisQueue) RegisterHandler(jobType JobType, handler JobHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Handler returns the handler registered for jobType
func (q *RedisQueue) Handler(jobType JobType) (JobHandler, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	h, ok := q.handlers[jobType]
	return h, ok
}

// QueueNames lists the queues that have a handler
func (q *RedisQueue) QueueNames() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	names := make([]string, 0, len(q.handlers))
	for jobType := range q.handlers {
		names = append(names, string(jobType))
	}
	return names
}

func (q *RedisQueue) newJob(queueName string, payload interface{}, runAt time.Time, opts []EnqueueOption) (*RedisJob, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	now := time.Now().UTC()
	job := &RedisJob{
		ID:         uuid.New().String(),
		Queue:      queueName,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: DefaultRetryCount,
		CreatedAt:  now,
		UpdatedAt:  now,
		RunAt:      runAt,
	}
	for _, opt := range opts {
		opt(job)
	}
	return job, nil
}

// Enqueue adds a job to the queue
func (q *RedisQueue) Enqueue(ctx context.Context, queueName string, payload interface{}, opts ...EnqueueOption) (string, error) {
	job, err := q.newJob(queueName, payload, time.Now().UTC(), opts)
	if err != nil {
		return "", err
	}
	if err := q.push(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// EnqueueIn adds a job to the queue with a delay
func (q *RedisQueue) EnqueueIn(ctx context.Context, queueName string, payload interface{}, delay time.Duration, opts ...EnqueueOption) (string, error) {
	job, err := q.newJob(queueName, payload, time.Now().UTC().Add(delay), opts)
	if err != nil {
		return "", err
	}
	if err := q.delay(ctx, job); err != nil {
		return "", err
	}
	return job.ID, nil
}

// Schedule adds a job to the queue to run at a specific time
func (q *RedisQueue) Schedule(ctx context.Context, queueName string, payload interface{}, runAt time.Time, opts ...EnqueueOption) (string, error) {
	now := time.Now()
	if runAt.Before(now) {
		return q.Enqueue(ctx, queueName, payload, opts...)
	}
	return q.EnqueueIn(ctx, queueName, payload, runAt.Sub(now), opts...)
}

func (q *RedisQueue) push(ctx context.Context, job *RedisJob) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.saveState(ctx, job.ID, jobBytes); err != nil {
		return err
	}
	if err := q.client.LPush(ctx, job.Queue, jobBytes).Err(); err != nil {
		return fmt.Errorf("failed to push job to queue: %w", err)
	}
	return nil
}

func (q *RedisQueue) delay(ctx context.Context, job *RedisJob) error {
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	if err := q.saveState(ctx, job.ID, jobBytes); err != nil {
		return err
	}
	err = q.client.ZAdd(ctx, delayedKeyPrefix+job.Queue, &redis.Z{
		Score:  float64(job.RunAt.Unix()),
		Member: jobBytes,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add job to delayed queue: %w", err)
	}
	return nil
}

func (q *RedisQueue) saveState(ctx context.Context, jobID string, jobBytes []byte) error {
	if err := q.client.HSet(ctx, jobKeyPrefix+jobID, "data", jobBytes).Err(); err != nil {
		return fmt.Errorf("failed to store job details: %w", err)
	}
	if err := q.client.Expire(ctx, jobKeyPrefix+jobID, DefaultTTL).Err(); err != nil {
		q.log.Warn("failed to set job ttl", zap.String("job_id", jobID), zap.Error(err))
	}
	return nil
}

// Get returns the last stored state of a job
func (q *RedisQueue) Get(ctx context.Context, jobID string) (*RedisJob, error) {
	data, err := q.client.HGet(ctx, jobKeyPrefix+jobID, "data").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job details: %w", err)
	}
	var job RedisJob
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

func (q *RedisQueue) update(ctx context.Context, jobID string, mutate func(*RedisJob)) (*RedisJob, []byte, error) {
	job, err := q.Get(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	mutate(job)
	job.UpdatedAt = time.Now().UTC()
	jobBytes, err := json.Marshal(job)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal updated job: %w", err)
	}
	if err := q.client.HSet(ctx, jobKeyPrefix+jobID, "data", jobBytes).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to update job status: %w", err)
	}
	return job, jobBytes, nil
}

// Dequeue waits up to a second for a job on any of the named queues. It
// returns nil, nil when nothing arrived.
func (q *RedisQueue) Dequeue(ctx context.Context, queueNames ...string) (*RedisJob, error) {
	if len(queueNames) == 0 {
		return nil, nil
	}
	for _, name := range queueNames {
		q.moveReadyDelayedJobs(ctx, name)
	}

	result, err := q.client.BRPop(ctx, time.Second, queueNames...).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop job from queue: %w", err)
	}
	if len(result) < 2 {
		return nil, fmt.Errorf("unexpected result format from BRPOP")
	}

	var job RedisJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}

	job.Status = JobStatusProcessing
	job.UpdatedAt = time.Now().UTC()
	if jobBytes, err := json.Marshal(job); err == nil {
		if err := q.client.HSet(ctx, jobKeyPrefix+job.ID, "data", jobBytes).Err(); err != nil {
			q.log.Warn("failed to update job status", zap.String("job_id", job.ID), zap.Error(err))
		}
	}
	return &job, nil
}

// moveReadyDelayedJobs moves delayed jobs that are due onto the main list.
// Only the caller whose ZREM removed the member pushes it, so concurrent
// workers never duplicate a job.
func (q *RedisQueue) moveReadyDelayedJobs(ctx context.Context, queueName string) {
	jobs, err := q.client.ZRangeByScore(ctx, delayedKeyPrefix+queueName, &redis.ZRangeBy{
		Min: "0",
		Max: strconv.FormatInt(time.Now().Unix(), 10),
	}).Result()
	if err != nil {
		q.log.Warn("failed to read delayed jobs", zap.String("queue", queueName), zap.Error(err))
		return
	}

	for _, jobStr := range jobs {
		removed, err := q.client.ZRem(ctx, delayedKeyPrefix+queueName, jobStr).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, queueName, jobStr).Err(); err != nil {
			q.log.Error("failed to move delayed job", zap.String("queue", queueName), zap.Error(err))
		}
	}
}

// Complete marks a job as completed
func (q *RedisQueue) Complete(ctx context.Context, jobID string) error {
	_, _, err := q.update(ctx, jobID, func(j *RedisJob) {
		j.Status = JobStatusCompleted
		j.Error = ""
	})
	return err
}

// Fail records the error and schedules a retry with backoff while the job
// has retries left. Exhausted jobs stay failed.
func (q *RedisQueue) Fail(ctx context.Context, jobID string, jobErr error) error {
	job, _, err := q.update(ctx, jobID, func(j *RedisJob) {
		j.Status = JobStatusFailed
		if jobErr != nil {
			j.Error = jobErr.Error()
		}
	})
	if err != nil {
		return err
	}
	if job.RetryCount < job.MaxRetries {
		return q.Retry(ctx, jobID, calculateBackoff(job.RetryCount))
	}
	q.log.Warn("job exhausted retries",
		zap.String("job_id", jobID),
		zap.String("queue", job.Queue),
		zap.Int("retries", job.RetryCount),
		zap.String("error", job.Error),
	)
	return nil
}

// Retry re-queues a job after delay
func (q *RedisQueue) Retry(ctx context.Context, jobID string, delay time.Duration) error {
	job, jobBytes, err := q.update(ctx, jobID, func(j *RedisJob) {
		j.Status = JobStatusPending
		j.RetryCount++
		j.RunAt = time.Now().UTC().Add(delay)
	})
	if err != nil {
		return err
	}
	err = q.client.ZAdd(ctx, delayedKeyPrefix+job.Queue, &redis.Z{
		Score:  float64(job.RunAt.Unix()),
		Member: jobBytes,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to add job to delayed queue: %w", err)
	}
	return nil
}

// Stats gets statistics for a queue
func (q *RedisQueue) Stats(ctx context.Context, queueName string) (*QueueStats, error) {
	waiting, err := q.client.LLen(ctx, queueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting count: %w", err)
	}
	delayed, err := q.client.ZCard(ctx, delayedKeyPrefix+queueName).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get delayed count: %w", err)
	}
	return &QueueStats{Queue: queueName, Waiting: int(waiting), Delayed: int(delayed)}, nil
}
