package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rifei/backend/app/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens an in-memory SQLite database with all tables migrated.
// A single connection is enforced so concurrent test goroutines serialize
// on the database the same way MySQL row locks would serialize them.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access underlying sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.User{},
		&models.Raffle{},
		&models.RaffleNumber{},
		&models.PaymentIntent{},
		&models.Notification{},
		&models.WebhookEvent{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}

// SeedRaffle creates an active raffle with its creator and all number rows.
func SeedRaffle(t *testing.T, db *gorm.DB, totalNumbers int, priceCents int64) (*models.Raffle, *models.User) {
	t.Helper()

	creator := &models.User{Name: "Creator", Email: uniqueEmail(t, "creator")}
	if err := db.Create(creator).Error; err != nil {
		t.Fatalf("failed to create raffle creator: %v", err)
	}

	raffle := &models.Raffle{
		Title:        "Test Raffle",
		Slug:         fmt.Sprintf("test-raffle-%d", seq.Add(1)),
		PriceCents:   priceCents,
		TotalNumbers: totalNumbers,
		Status:       models.RaffleStatusActive,
		EndDate:      time.Now().Add(72 * time.Hour),
		CreatorID:    creator.ID,
	}
	if err := db.Create(raffle).Error; err != nil {
		t.Fatalf("failed to create raffle: %v", err)
	}

	numbers := make([]models.RaffleNumber, 0, totalNumbers)
	for n := 1; n <= totalNumbers; n++ {
		numbers = append(numbers, models.RaffleNumber{
			RaffleID: raffle.ID,
			Number:   n,
			Status:   models.NumberStatusAvailable,
		})
	}
	if err := db.CreateInBatches(numbers, 500).Error; err != nil {
		t.Fatalf("failed to seed raffle numbers: %v", err)
	}

	return raffle, creator
}

// SeedUser creates a buyer.
func SeedUser(t *testing.T, db *gorm.DB, name string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: uniqueEmail(t, name)}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create user %s: %v", name, err)
	}
	return user
}

var seq atomic.Int64

func uniqueEmail(t *testing.T, prefix string) string {
	t.Helper()
	return fmt.Sprintf("%s-%d@test.local", prefix, seq.Add(1))
}
