package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testPayload struct {
	OrderID string `json:"order_id"`
}

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueue(client, zap.NewNop()), mr
}

func TestEnqueueDequeueComplete(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, string(JobTypeCatalogAnalytics), testPayload{OrderID: "o1"})
	require.NoError(t, err)

	stats, err := q.Stats(ctx, string(JobTypeCatalogAnalytics))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Waiting)

	job, err := q.Dequeue(ctx, string(JobTypeSendNotification), string(JobTypeCatalogAnalytics))
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, JobStatusProcessing, job.Status)

	var payload testPayload
	require.NoError(t, JobPayload(*job.ConvertToJob(), &payload))
	assert.Equal(t, "o1", payload.OrderID)

	require.NoError(t, q.Complete(ctx, id))
	stored, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, stored.Status)
}

func TestDequeueEmptyReturnsNil(t *testing.T) {
	q, _ := newTestQueue(t)
	job, err := q.Dequeue(context.Background(), string(JobTypeFraudLogPurge))
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestJobHashExpires(t *testing.T) {
	q, mr := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, string(JobTypeSendNotification), testPayload{OrderID: "o1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTTL, mr.TTL(jobKeyPrefix+id))

	mr.FastForward(DefaultTTL + time.Second)
	_, err = q.Get(ctx, id)
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestDelayedJobBecomesReady(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	_, err := q.EnqueueIn(ctx, string(JobTypeSettlementSweep), testPayload{}, time.Hour)
	require.NoError(t, err)

	job, err := q.Dequeue(ctx, string(JobTypeSettlementSweep))
	require.NoError(t, err)
	assert.Nil(t, job)

	id, err := q.Schedule(ctx, string(JobTypeSettlementSweep), testPayload{OrderID: "due"}, time.Now().Add(-time.Minute))
	require.NoError(t, err)
	job, err = q.Dequeue(ctx, string(JobTypeSettlementSweep))
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, id, job.ID)

	stats, err := q.Stats(ctx, string(JobTypeSettlementSweep))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Delayed)
}

func TestFailRetriesUntilExhausted(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	id, err := q.Enqueue(ctx, string(JobTypeSendNotification), testPayload{}, WithMaxRetries(1))
	require.NoError(t, err)

	require.NoError(t, q.Fail(ctx, id, errors.New("smtp down")))
	job, err := q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, job.Status)
	assert.Equal(t, 1, job.RetryCount)
	assert.Equal(t, "smtp down", job.Error)

	require.NoError(t, q.Fail(ctx, id, errors.New("smtp still down")))
	job, err = q.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, 1, job.RetryCount)
}

func TestAdapterKeepsJobID(t *testing.T) {
	q, _ := newTestQueue(t)
	adapter := NewQueueAdapter(q)
	ctx := context.Background()

	job, err := NewJob(JobTypeSendNotification, testPayload{OrderID: "o2"}, 5)
	require.NoError(t, err)
	require.NoError(t, adapter.Enqueue(ctx, job))

	popped, err := adapter.Dequeue(ctx, string(JobTypeSendNotification))
	require.NoError(t, err)
	require.NotNil(t, popped)
	assert.Equal(t, job.ID.String(), popped.ID)
	assert.Equal(t, 5, popped.MaxRetries)
	assert.JSONEq(t, `{"order_id":"o2"}`, string(popped.Payload))
}

func TestProcessJobDispatchesToRegisteredHandler(t *testing.T) {
	q, _ := newTestQueue(t)
	adapter := NewQueueAdapter(q)
	ctx := context.Background()

	var seen testPayload
	adapter.RegisterHandler(JobTypeCatalogAnalytics, func(ctx context.Context, job Job) (interface{}, error) {
		return nil, JobPayload(job, &seen)
	})
	adapter.RegisterHandler(JobTypeSendNotification, func(ctx context.Context, job Job) (interface{}, error) {
		return nil, errors.New("boom")
	})

	processor := NewJobProcessor(adapter, 1, zap.NewNop(), JobTypeCatalogAnalytics, JobTypeSendNotification)

	okID, err := q.Enqueue(ctx, string(JobTypeCatalogAnalytics), testPayload{OrderID: "o3"})
	require.NoError(t, err)
	job, err := q.Dequeue(ctx, string(JobTypeCatalogAnalytics))
	require.NoError(t, err)
	require.NoError(t, processor.ProcessJob(ctx, job))
	assert.Equal(t, "o3", seen.OrderID)
	stored, err := q.Get(ctx, okID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCompleted, stored.Status)

	badID, err := q.Enqueue(ctx, string(JobTypeSendNotification), testPayload{})
	require.NoError(t, err)
	job, err = q.Dequeue(ctx, string(JobTypeSendNotification))
	require.NoError(t, err)
	assert.Error(t, processor.ProcessJob(ctx, job))
	stored, err = q.Get(ctx, badID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusPending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
}

func TestProcessorRunsJobsEndToEnd(t *testing.T) {
	q, _ := newTestQueue(t)
	adapter := NewQueueAdapter(q)

	done := make(chan string, 1)
	adapter.RegisterHandler(JobTypeFraudLogPurge, func(ctx context.Context, job Job) (interface{}, error) {
		done <- job.ID.String()
		return nil, nil
	})

	processor := NewJobProcessor(adapter, 2, zap.NewNop(), JobTypeFraudLogPurge)
	processor.Start()
	defer processor.Stop()

	job, err := NewJob(JobTypeFraudLogPurge, struct{}{}, 1)
	require.NoError(t, err)
	require.NoError(t, adapter.Enqueue(context.Background(), job))

	select {
	case id := <-done:
		assert.Equal(t, job.ID.String(), id)
	case <-time.After(5 * time.Second):
		t.Fatal("job was not processed")
	}
}

func TestCalculateBackoffBounds(t *testing.T) {
	for retry := 0; retry < 12; retry++ {
		d := calculateBackoff(retry)
		assert.GreaterOrEqual(t, d, 4*time.Second)
		assert.LessOrEqual(t, d, 72*time.Minute)
	}
}

type recordingEnqueuer struct {
	jobs chan *Job
}

func (r *recordingEnqueuer) Enqueue(ctx context.Context, job *Job) error {
	r.jobs <- job
	return nil
}

func TestSchedulerEnqueuesOnInterval(t *testing.T) {
	rec := &recordingEnqueuer{jobs: make(chan *Job, 10)}
	s := NewScheduler(rec, zap.NewNop())
	require.NoError(t, s.Every(50*time.Millisecond, JobTypeFraudLogPurge, struct{}{}))
	assert.Error(t, s.Every(0, JobTypeSettlementSweep, struct{}{}))
	assert.Equal(t, 1, s.Len())

	s.Start()
	defer s.Stop()

	select {
	case job := <-rec.jobs:
		assert.Equal(t, JobTypeFraudLogPurge, job.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not enqueue")
	}
}
