package reservation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rifei/backend/app/models"
	"github.com/rifei/backend/internal/pkg/inventory"
	"github.com/rifei/backend/internal/pkg/notify"
	"github.com/rifei/backend/internal/pkg/payment"
	"github.com/rifei/backend/internal/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type sweepGateway struct {
	payments    map[string]*payment.PaymentInfo
	unavailable bool
}

func (g *sweepGateway) CreatePixPayment(ctx context.Context, req payment.ChargeRequest) (*payment.PixCharge, error) {
	return nil, fmt.Errorf("not used in sweep tests")
}

func (g *sweepGateway) CreatePreference(ctx context.Context, req payment.ChargeRequest) (*payment.PreferenceCharge, error) {
	return nil, fmt.Errorf("not used in sweep tests")
}

func (g *sweepGateway) GetPayment(ctx context.Context, paymentID string) (*payment.PaymentInfo, error) {
	if g.unavailable {
		return nil, fmt.Errorf("%w: connection refused", payment.ErrGatewayUnavailable)
	}
	info, ok := g.payments[paymentID]
	if !ok {
		return nil, payment.ErrPaymentNotFound
	}
	return info, nil
}

func expireIntent(t *testing.T, db *gorm.DB, intentID string) {
	t.Helper()
	require.NoError(t, db.Model(&models.PaymentIntent{}).
		Where("id = ?", intentID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)
}

func setupSweepTest(t *testing.T) (*gorm.DB, *inventory.Service, *sweepGateway, *notify.Recorder, *Manager) {
	db := testutil.NewTestDB(t)
	inv := inventory.NewServiceFromDB(db, nil)
	gateway := &sweepGateway{payments: map[string]*payment.PaymentInfo{}}
	recorder := &notify.Recorder{}
	reconciler := payment.NewReconciler(payment.NewRepository(db), gateway, inv, recorder, "")
	manager := NewManager(inv, reconciler, recorder, time.Minute)
	return db, inv, gateway, recorder, manager
}

func TestSweepReleasesExpiredReservation(t *testing.T) {
	db, inv, _, recorder, manager := setupSweepTest(t)
	raffle, _ := testutil.SeedRaffle(t, db, 10, 200)
	buyer := testutil.SeedUser(t, db, "Buyer")

	intent, err := inv.Claim(inventory.ClaimInput{RaffleID: raffle.ID, UserID: buyer.ID, Numbers: []int{1, 2}, HoldFor: time.Minute})
	require.NoError(t, err)
	expireIntent(t, db, intent.ID)

	require.NoError(t, manager.SweepOnce(context.Background()))

	fresh, err := inv.GetIntent(intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRejected, fresh.Status)

	parts, err := inv.Partitions(raffle.ID)
	require.NoError(t, err)
	assert.Empty(t, parts.Held)
	assert.Len(t, parts.Available, 10)

	assert.Len(t, recorder.ByKind(models.NotificationKindHoldExpired), 1)

	// A second sweep finds nothing left to do.
	require.NoError(t, manager.SweepOnce(context.Background()))
	assert.Len(t, recorder.ByKind(models.NotificationKindHoldExpired), 1)
}

func TestSweepKeepsFreshReservations(t *testing.T) {
	db, inv, _, recorder, manager := setupSweepTest(t)
	raffle, _ := testutil.SeedRaffle(t, db, 10, 200)
	buyer := testutil.SeedUser(t, db, "Buyer")

	_, err := inv.Claim(inventory.ClaimInput{RaffleID: raffle.ID, UserID: buyer.ID, Numbers: []int{3}, HoldFor: time.Hour})
	require.NoError(t, err)

	require.NoError(t, manager.SweepOnce(context.Background()))

	parts, err := inv.Partitions(raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, parts.Held)
	assert.Empty(t, recorder.Entries)
}

func TestSweepHonorsLastSecondPayment(t *testing.T) {
	db, inv, gateway, recorder, manager := setupSweepTest(t)
	raffle, _ := testutil.SeedRaffle(t, db, 10, 200)
	buyer := testutil.SeedUser(t, db, "Buyer")

	intent, err := inv.Claim(inventory.ClaimInput{RaffleID: raffle.ID, UserID: buyer.ID, Numbers: []int{4, 5}, HoldFor: time.Minute})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.PaymentIntent{}).
		Where("id = ?", intent.ID).
		Update("mp_payment_id", "888001").Error)
	expireIntent(t, db, intent.ID)

	gateway.payments["888001"] = &payment.PaymentInfo{
		ID:                "888001",
		Status:            "approved",
		TransactionCents:  intent.AmountCents,
		ExternalReference: intent.ID,
	}

	require.NoError(t, manager.SweepOnce(context.Background()))

	fresh, err := inv.GetIntent(intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, fresh.Status)

	parts, err := inv.Partitions(raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, parts.Sold)

	// The buyer got a confirmation, not an expiry notice.
	assert.Len(t, recorder.ByKind(models.NotificationKindPurchaseConfirmed), 1)
	assert.Empty(t, recorder.ByKind(models.NotificationKindHoldExpired))
}

func TestSweepKeepsPendingChargeHeld(t *testing.T) {
	db, inv, gateway, recorder, manager := setupSweepTest(t)
	raffle, _ := testutil.SeedRaffle(t, db, 10, 200)
	buyer := testutil.SeedUser(t, db, "Buyer")

	intent, err := inv.Claim(inventory.ClaimInput{RaffleID: raffle.ID, UserID: buyer.ID, Numbers: []int{7, 8}, HoldFor: time.Minute})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.PaymentIntent{}).
		Where("id = ?", intent.ID).
		Update("mp_payment_id", "888003").Error)
	expireIntent(t, db, intent.ID)

	gateway.payments["888003"] = &payment.PaymentInfo{
		ID:                "888003",
		Status:            "in_process",
		TransactionCents:  intent.AmountCents,
		ExternalReference: intent.ID,
	}

	// The charge is still settling, so the expired hold stays in place.
	require.NoError(t, manager.SweepOnce(context.Background()))

	fresh, err := inv.GetIntent(intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, fresh.Status)

	parts, err := inv.Partitions(raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8}, parts.Held)
	assert.Empty(t, recorder.Entries)

	// Once the gateway settles the charge, the next sweep sells the
	// numbers instead of releasing them.
	gateway.payments["888003"].Status = "approved"
	require.NoError(t, manager.SweepOnce(context.Background()))

	fresh, err = inv.GetIntent(intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusApproved, fresh.Status)

	parts, err = inv.Partitions(raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 8}, parts.Sold)
	assert.Len(t, recorder.ByKind(models.NotificationKindPurchaseConfirmed), 1)
	assert.Empty(t, recorder.ByKind(models.NotificationKindHoldExpired))
}

func TestSweepPostponesOnGatewayOutage(t *testing.T) {
	db, inv, gateway, recorder, manager := setupSweepTest(t)
	raffle, _ := testutil.SeedRaffle(t, db, 10, 200)
	buyer := testutil.SeedUser(t, db, "Buyer")

	intent, err := inv.Claim(inventory.ClaimInput{RaffleID: raffle.ID, UserID: buyer.ID, Numbers: []int{6}, HoldFor: time.Minute})
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.PaymentIntent{}).
		Where("id = ?", intent.ID).
		Update("mp_payment_id", "888002").Error)
	expireIntent(t, db, intent.ID)
	gateway.unavailable = true

	require.NoError(t, manager.SweepOnce(context.Background()))

	// Nothing released while the charge state is unknowable.
	fresh, err := inv.GetIntent(intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, fresh.Status)

	parts, err := inv.Partitions(raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{6}, parts.Held)
	assert.Empty(t, recorder.Entries)

	// Once the gateway is back and reports no such charge, the sweep
	// releases the numbers.
	gateway.unavailable = false
	require.NoError(t, manager.SweepOnce(context.Background()))

	fresh, err = inv.GetIntent(intent.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRejected, fresh.Status)
	assert.Len(t, recorder.ByKind(models.NotificationKindHoldExpired), 1)
}

func TestManagerStartStop(t *testing.T) {
	_, _, _, _, manager := setupSweepTest(t)

	assert.False(t, manager.IsRunning())
	manager.Start()
	assert.True(t, manager.IsRunning())

	// Starting twice is a no-op.
	manager.Start()
	assert.True(t, manager.IsRunning())

	manager.Stop()
	assert.False(t, manager.IsRunning())

	// Restart works after a full stop.
	manager.Start()
	assert.True(t, manager.IsRunning())
	manager.Stop()
}
