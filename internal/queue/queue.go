package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType defines the type of job. Each type is also the name of the redis
// list its jobs are pushed to.
type JobType string

const (
	JobTypeSendNotification JobType = "send_notification"
	JobTypeCatalogAnalytics JobType = "catalog_analytics"
	JobTypeSettlementSweep  JobType = "settlement_sweep"
	JobTypeFraudLogPurge    JobType = "fraud_log_purge"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job represents a background job
type Job struct {
	ID         uuid.UUID       `json:"id"`
	Type       JobType         `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Status     JobStatus       `json:"status"`
	RetryCount int             `json:"retry_count"`
	MaxRetries int             `json:"max_retries"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	Error      string          `json:"error,omitempty"`
}

// JobHandler is a function that processes a job
type JobHandler func(ctx context.Context, job Job) (interface{}, error)

// Enqueuer is the producer side of the queue
type Enqueuer interface {
	Enqueue(ctx context.Context, job *Job) error
}

// QueueInterface defines the interface for job queue operations
type QueueInterface interface {
	Enqueuer
	RegisterHandler(jobType JobType, handler JobHandler)
	Handler(jobType JobType) (JobHandler, bool)
	Dequeue(ctx context.Context, queueNames ...string) (*RedisJob, error)
	Complete(ctx context.Context, jobID string) error
	Fail(ctx context.Context, jobID string, err error) error
	Retry(ctx context.Context, jobID string, delay time.Duration) error
}

// NewJob marshals payload into a pending job of the given type
func NewJob(jobType JobType, payload interface{}, maxRetries int) (*Job, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job payload: %w", err)
	}
	now := time.Now().UTC()
	return &Job{
		ID:         uuid.New(),
		Type:       jobType,
		Payload:    payloadBytes,
		Status:     JobStatusPending,
		MaxRetries: maxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// JobPayload is a helper function to unmarshal job payload
func JobPayload(job Job, v interface{}) error {
	if err := json.Unmarshal(job.Payload, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s payload: %w", job.Type, err)
	}
	return nil
}
