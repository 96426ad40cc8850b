package notify

import (
	"testing"

	"github.com/rifei/backend/app/models"
	"github.com/rifei/backend/internal/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierPersistsNotification(t *testing.T) {
	db := testutil.NewTestDB(t)
	user := testutil.SeedUser(t, db, "Buyer")
	notifier := NewNotifier(db)

	notifier.Notify(user.ID, models.NotificationKindPurchaseConfirmed, "Pagamento aprovado", "Seus números foram confirmados.", 42)

	var stored []models.Notification
	require.NoError(t, db.Where("user_id = ?", user.ID).Find(&stored).Error)
	require.Len(t, stored, 1)
	assert.Equal(t, models.NotificationKindPurchaseConfirmed, stored[0].Kind)
	assert.Equal(t, uint(42), stored[0].RaffleID)
	assert.False(t, stored[0].IsRead)
}
