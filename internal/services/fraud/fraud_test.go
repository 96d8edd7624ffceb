package fraud

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/revaspay/settlement/internal/config"
	"github.com/revaspay/settlement/internal/database/dbtest"
	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/repository"
)

func newMonitor(t *testing.T) (*Monitor, repository.FraudRepository) {
	repo := repository.NewStore(dbtest.New(t)).Fraud()
	return NewMonitor(repo, config.FraudConfig{}, zap.NewNop()), repo
}

func countFlags(t *testing.T, m *Monitor, logType models.FraudLogType) int64 {
	_, total, err := m.Flags(context.Background(), logType, repository.Page{Number: 1, Size: 100})
	require.NoError(t, err)
	return total
}

func TestRapidRepeatFlagsFourthUseFromSameIP(t *testing.T) {
	m, _ := newMonitor(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		m.Observe(ctx, Usage{Code: "maya10", IP: "10.0.0.1"})
	}
	assert.EqualValues(t, 0, countFlags(t, m, models.FraudLogRapidRepeat))

	m.Observe(ctx, Usage{Code: "MAYA10", IP: "10.0.0.1"})
	assert.EqualValues(t, 1, countFlags(t, m, models.FraudLogRapidRepeat))

	m.Observe(ctx, Usage{Code: "MAYA10", IP: "10.0.0.2"})
	assert.EqualValues(t, 1, countFlags(t, m, models.FraudLogRapidRepeat))
}

func TestRapidRepeatIgnoresOldUsage(t *testing.T) {
	m, _ := newMonitor(t)
	ctx := context.Background()

	base := time.Now().UTC()
	m.now = func() time.Time { return base.Add(-time.Hour) }
	for i := 0; i < 3; i++ {
		m.Observe(ctx, Usage{Code: "MAYA10", IP: "10.0.0.1"})
	}
	m.now = func() time.Time { return base }
	m.Observe(ctx, Usage{Code: "MAYA10", IP: "10.0.0.1"})

	assert.EqualValues(t, 0, countFlags(t, m, models.FraudLogRapidRepeat))
}

func TestSuspiciousPatternHasNoWindow(t *testing.T) {
	m, _ := newMonitor(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i := 0; i < 4; i++ {
		offset := time.Duration(3-i) * 24 * time.Hour
		m.now = func() time.Time { return base.Add(-offset) }
		m.Observe(ctx, Usage{Code: "MAYA10", Email: "Buyer@Example.com", IP: "10.0.0.9"})
	}

	assert.EqualValues(t, 1, countFlags(t, m, models.FraudLogSuspiciousPattern))
	assert.EqualValues(t, 0, countFlags(t, m, models.FraudLogRapidRepeat))
	assert.EqualValues(t, 1, countFlags(t, m, ""))
}

func TestPurgeRemovesExpiredEntries(t *testing.T) {
	m, _ := newMonitor(t)
	ctx := context.Background()

	base := time.Now().UTC()
	m.now = func() time.Time { return base.Add(-91 * 24 * time.Hour) }
	m.RecordSelfUse(ctx, Usage{Code: "MAYA10", BuyerID: "u1"})
	m.now = func() time.Time { return base }
	m.RecordSelfUse(ctx, Usage{Code: "MAYA10", BuyerID: "u1"})

	n, err := m.Purge(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.EqualValues(t, 1, countFlags(t, m, models.FraudLogSelfUse))
}

type MockFraudRepository struct {
	mock.Mock
}

func (m *MockFraudRepository) Create(ctx context.Context, entry *models.FraudLogEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *MockFraudRepository) CountByIPSince(ctx context.Context, code, ip string, since time.Time) (int64, error) {
	args := m.Called(ctx, code, ip, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFraudRepository) CountByEmail(ctx context.Context, code, email string) (int64, error) {
	args := m.Called(ctx, code, email)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFraudRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockFraudRepository) List(ctx context.Context, logType models.FraudLogType, page repository.Page) ([]models.FraudLogEntry, int64, error) {
	args := m.Called(ctx, logType, page)
	return args.Get(0).([]models.FraudLogEntry), args.Get(1).(int64), args.Error(2)
}

func TestObserveSwallowsStoreErrors(t *testing.T) {
	repo := new(MockFraudRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("db down"))
	m := NewMonitor(repo, config.FraudConfig{}, zap.NewNop())

	assert.NotPanics(t, func() {
		m.Observe(context.Background(), Usage{Code: "MAYA10", IP: "1.1.1.1", Email: "a@b.c"})
	})
	repo.AssertNotCalled(t, "CountByIPSince", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestObserveAsyncCompletes(t *testing.T) {
	repo := new(MockFraudRepository)
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	repo.On("CountByIPSince", mock.Anything, "MAYA10", "1.1.1.1", mock.Anything).Return(int64(1), nil)
	repo.On("CountByEmail", mock.Anything, "MAYA10", "a@b.c").Return(int64(0), errors.New("timeout"))
	m := NewMonitor(repo, config.FraudConfig{}, zap.NewNop())

	m.ObserveAsync(Usage{Code: "maya10", IP: "1.1.1.1", Email: "A@B.C"})
	m.Wait()

	repo.AssertNumberOfCalls(t, "Create", 1)
	repo.AssertExpectations(t)
}
