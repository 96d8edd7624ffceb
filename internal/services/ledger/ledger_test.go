package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/revaspay/settlement/internal/database/dbtest"
	"github.com/revaspay/settlement/internal/models"
	"github.com/revaspay/settlement/internal/repository"
	"github.com/revaspay/settlement/internal/services/notification"
)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []notification.Notification
}

func (r *recordingNotifier) Notify(_ context.Context, n notification.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.notes)
}

func setup(t *testing.T) (*Service, *gorm.DB, repository.Store, *recordingNotifier) {
	db := dbtest.New(t)
	store := repository.NewStore(db)
	notifier := &recordingNotifier{}
	return NewService(store, notifier, zap.NewNop()), db, store, notifier
}

func TestSettleCreditsTenPercentOfThousand(t *testing.T) {
	svc, db, store, notifier := setup(t)
	ctx := context.Background()
	partner := dbtest.Partner(t, db, nil)
	order := dbtest.PaidOrder(t, db, partner, 1000.00)

	res, err := svc.Settle(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, res.Credited)
	assert.Equal(t, ReasonCredited, res.Reason)
	assert.Equal(t, 100.00, res.Commission)

	got, err := store.Partners().GetByID(ctx, partner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalUses)
	assert.InDelta(t, 1000.00, got.TotalRevenueGenerated, 0.001)
	assert.InDelta(t, 100.00, got.TotalCommissionEarned, 0.001)
	assert.InDelta(t, 100.00, got.PendingCommission, 0.001)

	settled, err := store.Orders().GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, settled.CommissionSettled)
	assert.Equal(t, 1, notifier.count())

	again, err := svc.Settle(ctx, order.ID)
	require.NoError(t, err)
	assert.False(t, again.Credited)
	assert.Equal(t, ReasonPreconditionsUnmet, again.Reason)

	got, err = store.Partners().GetByID(ctx, partner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalUses)
	assert.InDelta(t, 100.00, got.PendingCommission, 0.001)
}

func TestSettleConcurrentCallsCreditOnce(t *testing.T) {
	svc, db, store, _ := setup(t)
	ctx := context.Background()
	partner := dbtest.Partner(t, db, nil)
	order := dbtest.PaidOrder(t, db, partner, 1000.00)

	var wg sync.WaitGroup
	results := make(chan *Settlement, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Settle(ctx, order.ID)
			assert.NoError(t, err)
			results <- res
		}()
	}
	wg.Wait()
	close(results)

	credited := 0
	for res := range results {
		if res != nil && res.Credited {
			credited++
		}
	}
	assert.Equal(t, 1, credited)

	got, err := store.Partners().GetByID(ctx, partner.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalUses)
	assert.InDelta(t, 100.00, got.PendingCommission, 0.001)
}

func TestSettleHonoursUsageCapUnderConcurrency(t *testing.T) {
	svc, db, store, _ := setup(t)
	ctx := context.Background()
	maxUses := 3
	partner := dbtest.Partner(t, db, func(p *models.ReferralPartner) { p.MaxUses = &maxUses })

	var orders []uuid.UUID
	for i := 0; i < 10; i++ {
		orders = append(orders, dbtest.PaidOrder(t, db, partner, 200).ID)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	reasons := map[Reason]int{}
	for _, id := range orders {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			res, err := svc.Settle(ctx, id)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			reasons[res.Reason]++
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 3, reasons[ReasonCredited])
	assert.Equal(t, 7, reasons[ReasonCapReached])

	got, err := store.Partners().GetByID(ctx, partner.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalUses)
	assert.InDelta(t, 60.00, got.PendingCommission, 0.001)

	for _, id := range orders {
		o, err := store.Orders().GetByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, o.CommissionSettled, "order %s should be settled", id)
	}
}

func TestSettleSkipsIneligibleOrders(t *testing.T) {
	svc, db, store, _ := setup(t)
	ctx := context.Background()
	partner := dbtest.Partner(t, db, nil)

	plain := dbtest.PaidOrder(t, db, nil, 500)
	res, err := svc.Settle(ctx, plain.ID)
	require.NoError(t, err)
	assert.Equal(t, ReasonPreconditionsUnmet, res.Reason)

	unverified := dbtest.PaidOrder(t, db, partner, 500)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", unverified.ID).Update("webhook_verified", false).Error)
	res, err = svc.Settle(ctx, unverified.ID)
	require.NoError(t, err)
	assert.Equal(t, ReasonPreconditionsUnmet, res.Reason)

	refunded := dbtest.PaidOrder(t, db, partner, 500)
	require.NoError(t, store.Orders().MarkRefunded(ctx, refunded.ID))
	res, err = svc.Settle(ctx, refunded.ID)
	require.NoError(t, err)
	assert.Equal(t, ReasonPreconditionsUnmet, res.Reason)

	got, err := store.Partners().GetByID(ctx, partner.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.TotalUses)

	_, err = svc.Settle(ctx, uuid.New())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSettleWithMissingPartnerFlagsOrder(t *testing.T) {
	svc, db, store, _ := setup(t)
	ctx := context.Background()
	partner := dbtest.Partner(t, db, nil)
	order := dbtest.PaidOrder(t, db, partner, 300)
	require.NoError(t, db.Delete(&models.ReferralPartner{}, "id = ?", partner.ID).Error)

	res, err := svc.Settle(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, ReasonPartnerMissing, res.Reason)
	assert.False(t, res.Credited)

	o, err := store.Orders().GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, o.CommissionSettled)
}

func TestDebit(t *testing.T) {
	svc, db, store, _ := setup(t)
	ctx := context.Background()
	partner := dbtest.Partner(t, db, func(p *models.ReferralPartner) { p.PendingCommission = 450 })

	assert.ErrorIs(t, svc.Debit(ctx, partner.ID, 0), repository.ErrValidation)
	assert.ErrorIs(t, svc.Debit(ctx, partner.ID, 450.01), ErrInsufficientBalance)
	require.NoError(t, svc.Debit(ctx, partner.ID, 450))
	assert.ErrorIs(t, svc.Debit(ctx, partner.ID, 0.01), repository.ErrConflict)

	got, err := store.Partners().GetByID(ctx, partner.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0, got.PendingCommission, 0.001)
	assert.InDelta(t, 450, got.TotalPaidOut, 0.001)
}
