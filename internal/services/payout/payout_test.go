package payout

import (
	"context"
	"encoding/json"
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

type fixedThreshold float64

func (f fixedThreshold) PayoutThreshold(context.Context) (float64, error) { return float64(f), nil }

func setup(t *testing.T, threshold float64) (*Service, *gorm.DB, repository.Store) {
	db := dbtest.New(t)
	store := repository.NewStore(db)
	return NewService(store, fixedThreshold(threshold), notification.NopNotifier{}, zap.NewNop()), db, store
}

func upi(t *testing.T) json.RawMessage {
	raw, err := json.Marshal(map[string]string{"vpa": "maya@okbank"})
	require.NoError(t, err)
	return raw
}

func withPending(amount float64) func(p *models.ReferralPartner) {
	return func(p *models.ReferralPartner) { p.PendingCommission = amount }
}

func TestPayoutScenarioFourFifty(t *testing.T) {
	svc, db, store := setup(t, 450)
	ctx := context.Background()
	partner := dbtest.Partner(t, db, withPending(450))

	req, err := svc.Open(ctx, OpenRequest{PartnerID: partner.ID, RealName: "Maya Rao", Method: models.PayoutMethodUPI, Details: upi(t)})
	require.NoError(t, err)
	assert.Equal(t, 450.00, req.Amount)
	assert.Equal(t, models.PayoutStatusPending, req.Status)
	assert.Equal(t, "maya@okbank", req.Details["vpa"])

	req, err = svc.Approve(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusProcessing, req.Status)

	req, err = svc.Complete(ctx, req.ID, "UTR123456")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusCompleted, req.Status)

	got, err := store.Partners().GetByID(ctx, partner.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.00, got.PendingCommission, 0.001)
	assert.InDelta(t, 450.00, got.TotalPaidOut, 0.001)

	stored, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusCompleted, stored.Status)
	assert.Equal(t, "UTR123456", stored.TransactionRef)
	assert.NotNil(t, stored.ProcessedAt)

	history, err := svc.History(ctx, partner.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "UTR123456", history[0].TransactionRef)
	assert.InDelta(t, 450.00, history[0].Amount, 0.001)
	require.NotNil(t, history[0].PayoutRequestID)
	assert.Equal(t, req.ID, *history[0].PayoutRequestID)
}

func TestOpenRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("below threshold", func(t *testing.T) {
		svc, db, _ := setup(t, 500)
		partner := dbtest.Partner(t, db, withPending(499.99))
		_, err := svc.Open(ctx, OpenRequest{PartnerID: partner.ID, RealName: "Maya", Method: models.PayoutMethodUPI, Details: upi(t)})
		assert.ErrorIs(t, err, ErrBelowThreshold)
		assert.ErrorIs(t, err, repository.ErrValidation)
	})

	t.Run("zero balance with zero threshold", func(t *testing.T) {
		svc, db, _ := setup(t, 0)
		partner := dbtest.Partner(t, db, nil)
		_, err := svc.Open(ctx, OpenRequest{PartnerID: partner.ID, RealName: "Maya", Method: models.PayoutMethodUPI, Details: upi(t)})
		assert.ErrorIs(t, err, ErrBelowThreshold)
	})

	for _, status := range []models.PartnerStatus{models.PartnerStatusPaused, models.PartnerStatusBanned} {
		status := status
		t.Run(string(status), func(t *testing.T) {
			svc, db, _ := setup(t, 100)
			partner := dbtest.Partner(t, db, func(p *models.ReferralPartner) {
				p.PendingCommission = 1000
				p.Status = status
			})
			_, err := svc.Open(ctx, OpenRequest{PartnerID: partner.ID, RealName: "Maya", Method: models.PayoutMethodUPI, Details: upi(t)})
			assert.ErrorIs(t, err, ErrPartnerInactive)
			assert.ErrorIs(t, err, repository.ErrForbidden)
			assert.Contains(t, err.Error(), string(status))
		})
	}

	t.Run("second open request", func(t *testing.T) {
		svc, db, _ := setup(t, 100)
		partner := dbtest.Partner(t, db, withPending(800))
		_, err := svc.Open(ctx, OpenRequest{PartnerID: partner.ID, RealName: "Maya", Method: models.PayoutMethodUPI, Details: upi(t)})
		require.NoError(t, err)
		_, err = svc.Open(ctx, OpenRequest{PartnerID: partner.ID, RealName: "Maya", Method: models.PayoutMethodUPI, Details: upi(t)})
		assert.ErrorIs(t, err, ErrOpenRequestExists)
		assert.ErrorIs(t, err, repository.ErrConflict)
	})

	t.Run("missing real name", func(t *testing.T) {
		svc, db, _ := setup(t, 100)
		partner := dbtest.Partner(t, db, withPending(800))
		_, err := svc.Open(ctx, OpenRequest{PartnerID: partner.ID, RealName: "  ", Method: models.PayoutMethodUPI, Details: upi(t)})
		assert.ErrorIs(t, err, repository.ErrValidation)
	})

	t.Run("unknown partner", func(t *testing.T) {
		svc, _, _ := setup(t, 100)
		_, err := svc.Open(ctx, OpenRequest{PartnerID: uuid.New(), RealName: "Maya", Method: models.PayoutMethodUPI, Details: upi(t)})
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestConcurrentOpenLeavesOneRequest(t *testing.T) {
	svc, db, store := setup(t, 100)
	ctx := context.Background()
	partner := dbtest.Partner(t, db, withPending(800))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Open(ctx, OpenRequest{PartnerID: partner.ID, RealName: "Maya", Method: models.PayoutMethodUPI, Details: upi(t)})
		}()
	}
	wg.Wait()

	list, err := store.Payouts().ListByPartner(ctx, partner.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestCompleteFailsWhenBalanceShrank(t *testing.T) {
	svc, db, store := setup(t, 100)
	ctx := context.Background()
	partner := dbtest.Partner(t, db, withPending(450))

	req, err := svc.Open(ctx, OpenRequest{PartnerID: partner.ID, RealName: "Maya", Method: models.PayoutMethodUPI, Details: upi(t)})
	require.NoError(t, err)

	// manual adjustment after the request was opened
	require.NoError(t, db.Model(&models.ReferralPartner{}).Where("id = ?", partner.ID).Update("pending_commission", 300).Error)

	_, err = svc.Complete(ctx, req.ID, "UTR1")
	assert.ErrorIs(t, err, ErrAmountExceedsBalance)
	assert.ErrorIs(t, err, repository.ErrConflict)

	got, err := store.Partners().GetByID(ctx, partner.ID)
	require.NoError(t, err)
	assert.InDelta(t, 300, got.PendingCommission, 0.001)
	assert.InDelta(t, 0, got.TotalPaidOut, 0.001)

	stored, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusPending, stored.Status)

	history, err := svc.History(ctx, partner.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestConcurrentCompleteDebitsOnce(t *testing.T) {
	svc, db, store := setup(t, 100)
	ctx := context.Background()
	partner := dbtest.Partner(t, db, withPending(450))
	req, err := svc.Open(ctx, OpenRequest{PartnerID: partner.ID, RealName: "Maya", Method: models.PayoutMethodUPI, Details: upi(t)})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Complete(ctx, req.ID, "UTR-RACE")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		}
	}
	assert.Equal(t, 1, ok)

	got, err := store.Partners().GetByID(ctx, partner.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0, got.PendingCommission, 0.001)
	assert.InDelta(t, 450, got.TotalPaidOut, 0.001)

	history, err := svc.History(ctx, partner.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRejectAndTransitions(t *testing.T) {
	svc, db, store := setup(t, 100)
	ctx := context.Background()
	partner := dbtest.Partner(t, db, withPending(600))
	req, err := svc.Open(ctx, OpenRequest{PartnerID: partner.ID, RealName: "Maya", Method: models.PayoutMethodUPI, Details: upi(t)})
	require.NoError(t, err)

	_, err = svc.Reject(ctx, req.ID, "")
	assert.ErrorIs(t, err, ErrReasonRequired)
	_, err = svc.Complete(ctx, req.ID, " ")
	assert.ErrorIs(t, err, ErrTransactionRefMissing)

	_, err = svc.Approve(ctx, req.ID)
	require.NoError(t, err)
	_, err = svc.Approve(ctx, req.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	rejected, err := svc.Reject(ctx, req.ID, "name does not match account")
	require.NoError(t, err)
	assert.Equal(t, models.PayoutStatusRejected, rejected.Status)

	_, err = svc.Complete(ctx, req.ID, "UTR9")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = svc.Reject(ctx, req.ID, "again")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := store.Partners().GetByID(ctx, partner.ID)
	require.NoError(t, err)
	assert.InDelta(t, 600, got.PendingCommission, 0.001)

	_, err = svc.OpenForPartner(ctx, partner.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// a rejected request frees the slot for a new one
	_, err = svc.Open(ctx, OpenRequest{PartnerID: partner.ID, RealName: "Maya", Method: models.PayoutMethodUPI, Details: upi(t)})
	require.NoError(t, err)
}

func TestDirectPayout(t *testing.T) {
	svc, db, store := setup(t, 100)
	ctx := context.Background()
	partner := dbtest.Partner(t, db, withPending(300))

	history, err := svc.DirectPayout(ctx, DirectPayoutRequest{PartnerID: partner.ID, Amount: 120.5, Method: models.PayoutMethodBank, TransactionRef: "NEFT1", Note: "manual"})
	require.NoError(t, err)
	assert.Nil(t, history.PayoutRequestID)

	_, err = svc.DirectPayout(ctx, DirectPayoutRequest{PartnerID: partner.ID, Amount: 500, Method: models.PayoutMethodBank, TransactionRef: "NEFT2"})
	assert.ErrorIs(t, err, repository.ErrConflict)

	_, err = svc.DirectPayout(ctx, DirectPayoutRequest{PartnerID: partner.ID, Amount: 10, Method: "cash", TransactionRef: "X"})
	assert.ErrorIs(t, err, repository.ErrValidation)

	got, err := store.Partners().GetByID(ctx, partner.ID)
	require.NoError(t, err)
	assert.InDelta(t, 179.5, got.PendingCommission, 0.001)
	assert.InDelta(t, 120.5, got.TotalPaidOut, 0.001)

	_, err = svc.Open(ctx, OpenRequest{PartnerID: partner.ID, RealName: "Maya", Method: models.PayoutMethodUPI, Details: upi(t)})
	require.NoError(t, err)
	_, err = svc.DirectPayout(ctx, DirectPayoutRequest{PartnerID: partner.ID, Amount: 10, Method: models.PayoutMethodBank, TransactionRef: "NEFT3"})
	assert.ErrorIs(t, err, ErrOpenRequestExists)
}

func TestParseDetails(t *testing.T) {
	tests := []struct {
		name    string
		method  models.PayoutMethod
		raw     string
		wantErr bool
	}{
		{"bank ok", models.PayoutMethodBank, `{"account_holder":"Maya Rao","account_number":"123456789012","ifsc":"hdfc0001234"}`, false},
		{"bank short account", models.PayoutMethodBank, `{"account_holder":"Maya Rao","account_number":"12345","ifsc":"HDFC0001234"}`, true},
		{"bank letters in account", models.PayoutMethodBank, `{"account_holder":"Maya Rao","account_number":"12345678AB","ifsc":"HDFC0001234"}`, true},
		{"bank bad ifsc", models.PayoutMethodBank, `{"account_holder":"Maya Rao","account_number":"123456789","ifsc":"HDFC1001234"}`, true},
		{"bank missing holder", models.PayoutMethodBank, `{"account_number":"123456789","ifsc":"HDFC0001234"}`, true},
		{"upi ok", models.PayoutMethodUPI, `{"vpa":"maya.rao@okicici"}`, false},
		{"upi no handle", models.PayoutMethodUPI, `{"vpa":"maya.rao"}`, true},
		{"qr ok", models.PayoutMethodQR, `{"image_url":"https://cdn.example.com/qr/maya.png"}`, false},
		{"qr not http", models.PayoutMethodQR, `{"image_url":"ftp://example.com/qr.png"}`, true},
		{"unknown method", "cash", `{}`, true},
		{"empty details", models.PayoutMethodUPI, ``, true},
		{"wrong shape", models.PayoutMethodUPI, `["maya@okicici"]`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ParseDetails(tt.method, json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.ErrorIs(t, err, repository.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.method, d.Method())
		})
	}

	d, err := ParseDetails(models.PayoutMethodBank, json.RawMessage(`{"account_holder":" Maya ","account_number":"123456789","ifsc":"hdfc0001234"}`))
	require.NoError(t, err)
	assert.Equal(t, "HDFC0001234", d.Fields()["ifsc"])
	assert.Equal(t, "Maya", d.Fields()["account_holder"])
}
