package notification

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/config"
	"github.com/revaspay/settlement/internal/queue"
)

type MockEnqueuer struct {
	mock.Mock
}

func (m *MockEnqueuer) Enqueue(ctx context.Context, job *queue.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func TestQueueNotifierEnqueuesJob(t *testing.T) {
	q := new(MockEnqueuer)
	q.On("Enqueue", mock.Anything, mock.MatchedBy(func(job *queue.Job) bool {
		var n Notification
		if err := json.Unmarshal(job.Payload, &n); err != nil {
			return false
		}
		return job.Type == queue.JobTypeSendNotification && n.Kind == KindPayoutApproved && n.Recipient == "maya@example.com"
	})).Return(nil).Once()

	notifier := NewQueueNotifier(q, zap.NewNop())
	notifier.Notify(context.Background(), Notification{
		Kind:      KindPayoutApproved,
		Recipient: "maya@example.com",
		Data:      map[string]string{"amount": "₹450.00"},
	})
	notifier.Wait()
	q.AssertExpectations(t)
}

func TestQueueNotifierSwallowsErrors(t *testing.T) {
	q := new(MockEnqueuer)
	q.On("Enqueue", mock.Anything, mock.Anything).Return(errors.New("redis down"))

	notifier := NewQueueNotifier(q, zap.NewNop())
	assert.NotPanics(t, func() {
		notifier.Notify(context.Background(), Notification{Kind: KindOrderPaid, Recipient: "a@b.c"})
	})
	notifier.Wait()
	q.AssertNumberOfCalls(t, "Enqueue", 1)
}

func TestQueueNotifierSkipsEmptyRecipient(t *testing.T) {
	q := new(MockEnqueuer)
	notifier := NewQueueNotifier(q, zap.NewNop())
	notifier.Notify(context.Background(), Notification{Kind: KindOrderPaid})
	notifier.Wait()
	q.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestQueueNotifierSurvivesCancelledContext(t *testing.T) {
	q := new(MockEnqueuer)
	q.On("Enqueue", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything).Return(nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	notifier := NewQueueNotifier(q, zap.NewNop())
	notifier.Notify(ctx, Notification{Kind: KindOrderPaid, Recipient: "a@b.c"})
	notifier.Wait()
	q.AssertExpectations(t)
}

// blockingEnqueuer holds every Enqueue until release is closed
type blockingEnqueuer struct {
	release chan struct{}
	done    chan struct{}
}

func (b *blockingEnqueuer) Enqueue(ctx context.Context, _ *queue.Job) error {
	defer close(b.done)
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestQueueNotifierDoesNotWaitOnSlowQueue(t *testing.T) {
	q := &blockingEnqueuer{release: make(chan struct{}), done: make(chan struct{})}
	notifier := NewQueueNotifier(q, zap.NewNop())

	returned := make(chan struct{})
	go func() {
		notifier.Notify(context.Background(), Notification{Kind: KindCommissionCredited, Recipient: "maya@example.com"})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on the queue")
	}

	select {
	case <-q.done:
		t.Fatal("enqueue finished before the queue was released")
	default:
	}
	close(q.release)
	notifier.Wait()
	<-q.done
}

func TestRender(t *testing.T) {
	subject, body, err := Render(Notification{
		Kind: KindPayoutRejected,
		Data: map[string]string{"amount": "₹450.00", "reason": "name mismatch"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Payout request rejected", subject)
	assert.Contains(t, body, "₹450.00")
	assert.Contains(t, body, "name mismatch")

	for kind := range templates {
		_, _, err := Render(Notification{Kind: kind})
		assert.NoError(t, err, kind)
	}

	_, _, err = Render(Notification{Kind: "unknown"})
	assert.Error(t, err)
}

func TestSMTPSenderNotConfigured(t *testing.T) {
	sender := NewSMTPSender(config.SMTPConfig{})
	assert.False(t, sender.Configured())
	assert.ErrorIs(t, sender.Send(context.Background(), "a@b.c", "s", "b"), ErrSenderNotConfigured)
}
