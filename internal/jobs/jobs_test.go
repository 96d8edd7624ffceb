package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/database/dbtest"
	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/queue"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/services/ledger"
	"github.com/revaspay/settlement/internal/services/notification"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, to, subject, body string) error {
	return m.Called(ctx, to, subject, body).Error(0)
}

type fakePurger struct {
	deleted int64
	err     error
}

func (f *fakePurger) Purge(context.Context) (int64, error) {
	return f.deleted, f.err
}

func notificationJob(t *testing.T) queue.Job {
	job, err := queue.NewJob(queue.JobTypeSendNotification, notification.Notification{
		Kind:      notification.KindPayoutApproved,
		Recipient: "maya@example.com",
		Data:      map[string]string{"amount": "₹450.00"},
	}, 3)
	require.NoError(t, err)
	return *job
}

func TestNotificationJob(t *testing.T) {
	t.Run("sends rendered message", func(t *testing.T) {
		sender := new(MockSender)
		sender.On("Send", mock.Anything, "maya@example.com", mock.AnythingOfType("string"), mock.MatchedBy(func(body string) bool {
			return len(body) > 0
		})).Return(nil)

		_, err := NewNotificationJob(sender, zap.NewNop()).Process(context.Background(), notificationJob(t))
		require.NoError(t, err)
		sender.AssertExpectations(t)
	})

	t.Run("unconfigured sender completes", func(t *testing.T) {
		sender := new(MockSender)
		sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(notification.ErrSenderNotConfigured)

		_, err := NewNotificationJob(sender, zap.NewNop()).Process(context.Background(), notificationJob(t))
		assert.NoError(t, err)
	})

	t.Run("delivery failure is retried", func(t *testing.T) {
		sender := new(MockSender)
		sender.On("Send", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection refused"))

		_, err := NewNotificationJob(sender, zap.NewNop()).Process(context.Background(), notificationJob(t))
		assert.Error(t, err)
	})
}

func TestCatalogAnalyticsJob(t *testing.T) {
	db := dbtest.New(t)
	store := repository.NewStore(db)
	ctx := context.Background()
	course := dbtest.Product(t, db, "Course", 250)
	ebook := dbtest.Product(t, db, "Ebook", 19.99)

	order := &models.Order{
		BuyerID:  "buyer-1",
		Subtotal: 559.97,
		Total:    559.97,
		Currency: "INR",
		Items: []models.OrderItem{
			{ProductID: course.ID, Name: course.Name, UnitPrice: course.Price, Quantity: 2},
			{ProductID: ebook.ID, Name: ebook.Name, UnitPrice: ebook.Price, Quantity: 3},
		},
	}
	require.NoError(t, store.Orders().Create(ctx, order))

	job, err := queue.NewJob(queue.JobTypeCatalogAnalytics, queue.CatalogAnalyticsPayload{OrderID: order.ID}, 3)
	require.NoError(t, err)
	_, err = NewCatalogAnalyticsJob(store, zap.NewNop()).Process(ctx, *job)
	require.NoError(t, err)

	byID, err := store.Products().GetByIDs(ctx, []uuid.UUID{course.ID, ebook.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, byID[course.ID].SoldCount)
	assert.InDelta(t, 500.00, byID[course.ID].Revenue, 0.001)
	assert.Equal(t, 3, byID[ebook.ID].SoldCount)
	assert.InDelta(t, 59.97, byID[ebook.ID].Revenue, 0.001)
}

func TestSettlementSweepJob(t *testing.T) {
	db := dbtest.New(t)
	store := repository.NewStore(db)
	ctx := context.Background()
	partner := dbtest.Partner(t, db, nil)
	dbtest.PaidOrder(t, db, partner, 1000)
	dbtest.PaidOrder(t, db, partner, 200)
	dbtest.PaidOrder(t, db, nil, 300)

	sweep := NewSettlementSweepJob(store.Orders(), ledger.NewService(store, notification.NopNotifier{}, zap.NewNop()), zap.NewNop())
	job, err := queue.NewJob(queue.JobTypeSettlementSweep, queue.SettlementSweepPayload{}, 1)
	require.NoError(t, err)

	out, err := sweep.Process(ctx, *job)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Scanned: 2, Credited: 2}, out)

	p, err := store.Partners().GetByID(ctx, partner.ID)
	require.NoError(t, err)
	assert.InDelta(t, 120.00, p.PendingCommission, 0.001)

	out, err = sweep.Process(ctx, *job)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, out)
}

func TestFraudPurgeJob(t *testing.T) {
	out, err := NewFraudPurgeJob(&fakePurger{deleted: 4}).Process(context.Background(), queue.Job{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"deleted": 4}, out)

	_, err = NewFraudPurgeJob(&fakePurger{err: errors.New("db down")}).Process(context.Background(), queue.Job{})
	assert.Error(t, err)
}

func TestRegisterAndSchedule(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q := queue.NewQueueAdapter(queue.NewRedisQueue(client, zap.NewNop()))
	RegisterAllJobHandlers(q, Dependencies{
		Store:   repository.NewStore(dbtest.New(t)),
		Sender:  new(MockSender),
		Settler: ledger.NewService(nil, notification.NopNotifier{}, zap.NewNop()),
		Purger:  &fakePurger{},
		Logger:  zap.NewNop(),
	})
	for _, jobType := range JobTypes() {
		_, ok := q.Handler(jobType)
		assert.True(t, ok, jobType)
	}

	s := queue.NewScheduler(q, zap.NewNop())
	require.NoError(t, ScheduleRecurringJobs(s, 5*time.Minute, time.Hour))
	assert.Equal(t, 2, s.Len())
	assert.Error(t, ScheduleRecurringJobs(queue.NewScheduler(q, zap.NewNop()), 0, time.Hour))
}
