package inventory

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rifei/backend/app/models"
	"gorm.io/gorm"
)

// Outcome is the terminal disposition of a claim.
type Outcome string

const (
	OutcomeSold     Outcome = "sold"
	OutcomeReleased Outcome = "released"
)

// PlatformFeePercent is the platform's cut recorded on every intent.
const PlatformFeePercent = 5

// ClaimInput describes one claim attempt. Numbers must already be
// validated (non-empty, no duplicates, positive).
type ClaimInput struct {
	RaffleID uint
	UserID   uint
	Numbers  []int
	HoldFor  time.Duration
}

// FinalizeResult reports what a Finalize call actually did. Applied is
// false when the intent had already reached a terminal state and the call
// was a no-op.
type FinalizeResult struct {
	Applied bool
	Intent  *models.PaymentIntent
	Numbers []int
}

// Partitions groups a raffle's numbers by current status for the
// selection UI.
type Partitions struct {
	Available []int
	Held      []int
	Sold      []int
}

// Repository provides the race-free storage operations of the ticket
// inventory. All multi-row mutations run in a single transaction and are
// validated by affected-row counts, never by read-then-write.
type Repository interface {
	Claim(in ClaimInput) (*models.PaymentIntent, error)
	Release(intentID string) error
	Finalize(intentID string, outcome Outcome) (*FinalizeResult, error)
	Partitions(raffleID uint) (*Partitions, error)
	GetIntent(intentID string) (*models.PaymentIntent, error)
	GetRaffle(raffleID uint) (*models.Raffle, error)
	SeedNumbers(raffleID uint) (int, error)
	ExpiredPendingIntents(now time.Time, limit int) ([]models.PaymentIntent, error)
	IntentsByUser(userID uint, limit int) ([]models.PaymentIntent, error)
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates an inventory repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Claim atomically flips every requested number from available to held and
// creates the PaymentIntent that owns the hold. If any number is not
// available the transaction rolls back and the error names the conflicting
// numbers; no partial claim is ever committed.
func (r *gormRepository) Claim(in ClaimInput) (*models.PaymentIntent, error) {
	var intent *models.PaymentIntent

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var raffle models.Raffle
		if err := tx.First(&raffle, in.RaffleID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRaffleNotSelling
			}
			return err
		}
		if !raffle.IsActive() {
			return ErrRaffleNotSelling
		}
		for _, n := range in.Numbers {
			if n < 1 || n > raffle.TotalNumbers {
				return fmt.Errorf("%w: number %d out of range 1..%d", ErrInvalidRequest, n, raffle.TotalNumbers)
			}
		}

		intentID := uuid.NewString()
		heldUntil := time.Now().Add(in.HoldFor)

		res := tx.Model(&models.RaffleNumber{}).
			Where("raffle_id = ? AND number IN ? AND status = ?", in.RaffleID, in.Numbers, models.NumberStatusAvailable).
			Updates(map[string]interface{}{
				"status":            models.NumberStatusHeld,
				"user_id":           in.UserID,
				"payment_intent_id": intentID,
				"held_until":        heldUntil,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(in.Numbers)) {
			// Some requested numbers were held or sold already. Collect
			// them for the caller, then roll the whole claim back.
			var conflicts []int
			if err := tx.Model(&models.RaffleNumber{}).
				Where("raffle_id = ? AND number IN ? AND (payment_intent_id IS NULL OR payment_intent_id <> ?)", in.RaffleID, in.Numbers, intentID).
				Order("number").
				Pluck("number", &conflicts).Error; err != nil {
				return err
			}
			return &NumbersUnavailableError{RaffleID: in.RaffleID, Numbers: conflicts}
		}

		amount := raffle.PriceCents * int64(len(in.Numbers))
		fee := amount * PlatformFeePercent / 100

		created := &models.PaymentIntent{
			ID:             intentID,
			UserID:         in.UserID,
			RaffleID:       in.RaffleID,
			UnitPriceCents: raffle.PriceCents,
			AmountCents:    amount,
			FeeCents:       fee,
			NetAmountCents: amount - fee,
			Status:         models.PaymentStatusPending,
			ExpiresAt:      heldUntil,
		}
		if err := created.SetNumbers(in.Numbers); err != nil {
			return err
		}
		if err := tx.Create(created).Error; err != nil {
			return err
		}

		intent = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return intent, nil
}

// Release returns every number still held by this intent to available and
// clears its hold fields. Numbers already sold or reclaimed by a newer
// intent are left untouched.
func (r *gormRepository) Release(intentID string) error {
	return r.db.Model(&models.RaffleNumber{}).
		Where("payment_intent_id = ? AND status = ?", intentID, models.NumberStatusHeld).
		Updates(map[string]interface{}{
			"status":            models.NumberStatusAvailable,
			"user_id":           nil,
			"payment_intent_id": nil,
			"held_until":        nil,
		}).Error
}

// Finalize applies the terminal transition for an intent exactly once. The
// guarded intent-row update is what serializes racing finalizers (expiry
// sweep vs webhook): the loser sees zero affected rows and no-ops.
func (r *gormRepository) Finalize(intentID string, outcome Outcome) (*FinalizeResult, error) {
	result := &FinalizeResult{}

	err := r.db.Transaction(func(tx *gorm.DB) error {
		var intent models.PaymentIntent
		if err := tx.First(&intent, "id = ?", intentID).Error; err != nil {
			return err
		}
		result.Intent = &intent
		result.Numbers = intent.Numbers()
		if intent.IsTerminal() {
			return nil
		}

		switch outcome {
		case OutcomeSold:
			now := time.Now()
			guard := tx.Model(&models.PaymentIntent{}).
				Where("id = ? AND status = ?", intentID, models.PaymentStatusPending).
				Updates(map[string]interface{}{
					"status":  models.PaymentStatusApproved,
					"paid_at": &now,
				})
			if guard.Error != nil {
				return guard.Error
			}
			if guard.RowsAffected == 0 {
				return nil
			}
			numbers := tx.Model(&models.RaffleNumber{}).
				Where("payment_intent_id = ? AND status = ?", intentID, models.NumberStatusHeld).
				Updates(map[string]interface{}{
					"status":     models.NumberStatusSold,
					"user_id":    intent.UserID,
					"held_until": nil,
				})
			if numbers.Error != nil {
				return numbers.Error
			}
			if numbers.RowsAffected > 0 {
				if err := tx.Model(&models.Raffle{}).
					Where("id = ?", intent.RaffleID).
					UpdateColumn("sold_count", gorm.Expr("sold_count + ?", numbers.RowsAffected)).Error; err != nil {
					return err
				}
			}
			intent.Status = models.PaymentStatusApproved
			intent.PaidAt = &now
			result.Applied = true
			return nil

		case OutcomeReleased:
			guard := tx.Model(&models.PaymentIntent{}).
				Where("id = ? AND status = ?", intentID, models.PaymentStatusPending).
				Update("status", models.PaymentStatusRejected)
			if guard.Error != nil {
				return guard.Error
			}
			if guard.RowsAffected == 0 {
				return nil
			}
			numbers := tx.Model(&models.RaffleNumber{}).
				Where("payment_intent_id = ? AND status = ?", intentID, models.NumberStatusHeld).
				Updates(map[string]interface{}{
					"status":            models.NumberStatusAvailable,
					"user_id":           nil,
					"payment_intent_id": nil,
					"held_until":        nil,
				})
			if numbers.Error != nil {
				return numbers.Error
			}
			intent.Status = models.PaymentStatusRejected
			result.Applied = true
			return nil

		default:
			return fmt.Errorf("unknown finalize outcome %q", outcome)
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *gormRepository) Partitions(raffleID uint) (*Partitions, error) {
	parts := &Partitions{
		Available: []int{},
		Held:      []int{},
		Sold:      []int{},
	}

	var rows []models.RaffleNumber
	if err := r.db.
		Select("number", "status").
		Where("raffle_id = ?", raffleID).
		Order("number").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		switch row.Status {
		case models.NumberStatusHeld:
			parts.Held = append(parts.Held, row.Number)
		case models.NumberStatusSold:
			parts.Sold = append(parts.Sold, row.Number)
		default:
			parts.Available = append(parts.Available, row.Number)
		}
	}
	return parts, nil
}

func (r *gormRepository) GetIntent(intentID string) (*models.PaymentIntent, error) {
	var intent models.PaymentIntent
	if err := r.db.First(&intent, "id = ?", intentID).Error; err != nil {
		return nil, err
	}
	return &intent, nil
}

func (r *gormRepository) GetRaffle(raffleID uint) (*models.Raffle, error) {
	var raffle models.Raffle
	if err := r.db.First(&raffle, raffleID).Error; err != nil {
		return nil, err
	}
	return &raffle, nil
}

// SeedNumbers bulk-creates the number rows for a raffle at publish time.
// Existing rows are kept, so re-publishing is harmless.
func (r *gormRepository) SeedNumbers(raffleID uint) (int, error) {
	var raffle models.Raffle
	if err := r.db.First(&raffle, raffleID).Error; err != nil {
		return 0, err
	}

	var existing int64
	if err := r.db.Model(&models.RaffleNumber{}).
		Where("raffle_id = ?", raffleID).
		Count(&existing).Error; err != nil {
		return 0, err
	}
	if existing >= int64(raffle.TotalNumbers) {
		return 0, nil
	}

	rows := make([]models.RaffleNumber, 0, raffle.TotalNumbers)
	for n := 1; n <= raffle.TotalNumbers; n++ {
		rows = append(rows, models.RaffleNumber{
			RaffleID: raffleID,
			Number:   n,
			Status:   models.NumberStatusAvailable,
		})
	}
	if existing > 0 {
		// Partial seed from an interrupted publish; skip rows that exist.
		var seeded []int
		if err := r.db.Model(&models.RaffleNumber{}).
			Where("raffle_id = ?", raffleID).
			Pluck("number", &seeded).Error; err != nil {
			return 0, err
		}
		have := make(map[int]struct{}, len(seeded))
		for _, n := range seeded {
			have[n] = struct{}{}
		}
		missing := rows[:0]
		for _, row := range rows {
			if _, ok := have[row.Number]; !ok {
				missing = append(missing, row)
			}
		}
		rows = missing
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := r.db.CreateInBatches(rows, 500).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ExpiredPendingIntents lists pending intents whose hold expiry has passed,
// oldest first, for the expiry sweep.
func (r *gormRepository) ExpiredPendingIntents(now time.Time, limit int) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	q := r.db.
		Where("status = ? AND expires_at < ?", models.PaymentStatusPending, now).
		Order("expires_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&intents).Error; err != nil {
		return nil, err
	}
	return intents, nil
}

func (r *gormRepository) IntentsByUser(userID uint, limit int) ([]models.PaymentIntent, error) {
	var intents []models.PaymentIntent
	q := r.db.
		Where("user_id = ?", userID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&intents).Error; err != nil {
		return nil, err
	}
	return intents, nil
}
