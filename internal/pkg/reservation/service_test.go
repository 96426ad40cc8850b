package reservation

import (
	"testing"
	"time"

	"github.com/rifei/backend/app/models"
	"github.com/rifei/backend/internal/pkg/inventory"
	"github.com/rifei/backend/internal/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReserveCreatesPendingHold(t *testing.T) {
	db := testutil.NewTestDB(t)
	raffle, _ := testutil.SeedRaffle(t, db, 10, 300)
	buyer := testutil.SeedUser(t, db, "Buyer")
	inv := inventory.NewServiceFromDB(db, nil)
	svc := NewService(inv, 15*time.Minute)

	intent, err := svc.Reserve(raffle.ID, buyer.ID, []int{1, 5, 9})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, intent.Status)
	assert.Equal(t, []int{1, 5, 9}, intent.Numbers())
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), intent.ExpiresAt, 5*time.Second)

	parts, err := inv.Partitions(raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 5, 9}, parts.Held)
}

func TestCancelReleasesOwnReservation(t *testing.T) {
	db := testutil.NewTestDB(t)
	raffle, _ := testutil.SeedRaffle(t, db, 10, 300)
	buyer := testutil.SeedUser(t, db, "Buyer")
	inv := inventory.NewServiceFromDB(db, nil)
	svc := NewService(inv, 15*time.Minute)

	intent, err := svc.Reserve(raffle.ID, buyer.ID, []int{2, 3})
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(intent.ID, buyer.ID))

	parts, err := inv.Partitions(raffle.ID)
	require.NoError(t, err)
	assert.Empty(t, parts.Held)
	assert.Len(t, parts.Available, 10)

	// Cancelling again reports the terminal state.
	assert.ErrorIs(t, svc.Cancel(intent.ID, buyer.ID), ErrAlreadyFinalized)
}

func TestCancelRejectsForeignReservation(t *testing.T) {
	db := testutil.NewTestDB(t)
	raffle, _ := testutil.SeedRaffle(t, db, 10, 300)
	owner := testutil.SeedUser(t, db, "Owner")
	stranger := testutil.SeedUser(t, db, "Stranger")
	inv := inventory.NewServiceFromDB(db, nil)
	svc := NewService(inv, 15*time.Minute)

	intent, err := svc.Reserve(raffle.ID, owner.ID, []int{4})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Cancel(intent.ID, stranger.ID), ErrNotIntentOwner)

	// The hold survives the failed cancel.
	parts, err := inv.Partitions(raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, parts.Held)
}

func TestCancelRefusesApprovedIntent(t *testing.T) {
	db := testutil.NewTestDB(t)
	raffle, _ := testutil.SeedRaffle(t, db, 10, 300)
	buyer := testutil.SeedUser(t, db, "Buyer")
	inv := inventory.NewServiceFromDB(db, nil)
	svc := NewService(inv, 15*time.Minute)

	intent, err := svc.Reserve(raffle.ID, buyer.ID, []int{6})
	require.NoError(t, err)
	_, err = inv.Finalize(intent.ID, inventory.OutcomeSold)
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Cancel(intent.ID, buyer.ID), ErrAlreadyFinalized)

	parts, err := inv.Partitions(raffle.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{6}, parts.Sold)
}
