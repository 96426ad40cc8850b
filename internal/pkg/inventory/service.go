package inventory

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/rifei/backend/app/models"
	"github.com/rifei/backend/internal/pkg/events"
	"gorm.io/gorm"
)

// MaxNumbersPerClaim bounds a single selection; the original product caps
// the cart at 100 numbers.
const MaxNumbersPerClaim = 100

// Service is the authoritative entry point for ticket-number state. All
// status transitions go through it so every change is atomic, validated
// and announced on the event emitter.
type Service struct {
	repo    Repository
	emitter events.Emitter
}

// NewService creates an inventory service from an injected repository.
func NewService(repo Repository, emitter events.Emitter) *Service {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}
	return &Service{repo: repo, emitter: emitter}
}

// NewServiceFromDB creates an inventory service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, emitter events.Emitter) *Service {
	return NewService(NewRepository(db), emitter)
}

// Claim validates the selection and atomically holds every requested
// number, creating the owning PaymentIntent. Validation failures are
// rejected before any store write.
func (s *Service) Claim(in ClaimInput) (*models.PaymentIntent, error) {
	if err := validateSelection(in.Numbers); err != nil {
		return nil, err
	}
	if in.HoldFor <= 0 {
		return nil, fmt.Errorf("%w: hold duration must be positive", ErrInvalidRequest)
	}

	intent, err := s.repo.Claim(in)
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(events.NumberEvent{
		Type:     events.TypeNumberClaimed,
		RaffleID: in.RaffleID,
		Numbers:  intent.Numbers(),
		At:       time.Now(),
	})
	return intent, nil
}

// Release returns the intent's still-held numbers to available. Idempotent;
// numbers already sold or owned by a newer intent are untouched.
func (s *Service) Release(intentID string) error {
	intent, err := s.repo.GetIntent(intentID)
	if err != nil {
		return err
	}
	if err := s.repo.Release(intentID); err != nil {
		return err
	}
	s.emitter.Emit(events.NumberEvent{
		Type:     events.TypeNumberReleased,
		RaffleID: intent.RaffleID,
		Numbers:  intent.Numbers(),
		At:       time.Now(),
	})
	return nil
}

// Finalize applies the terminal outcome for an intent. Safe to call from
// racing paths (webhook vs expiry sweep): only the first caller for a given
// intent applies anything, later calls are no-ops.
func (s *Service) Finalize(intentID string, outcome Outcome) (*FinalizeResult, error) {
	result, err := s.repo.Finalize(intentID, outcome)
	if err != nil {
		return nil, err
	}
	if !result.Applied {
		log.Infof("[Inventory] Finalize(%s, %s) was a no-op, intent already %s", intentID, outcome, result.Intent.Status)
		return result, nil
	}

	eventType := events.TypeNumberReleased
	if outcome == OutcomeSold {
		eventType = events.TypeNumberSold
	}
	s.emitter.Emit(events.NumberEvent{
		Type:     eventType,
		RaffleID: result.Intent.RaffleID,
		Numbers:  result.Numbers,
		At:       time.Now(),
	})
	return result, nil
}

// Partitions returns the available/held/sold number lists for a raffle.
func (s *Service) Partitions(raffleID uint) (*Partitions, error) {
	return s.repo.Partitions(raffleID)
}

// GetIntent looks up one payment intent by id.
func (s *Service) GetIntent(intentID string) (*models.PaymentIntent, error) {
	return s.repo.GetIntent(intentID)
}

// GetRaffle looks up one raffle by id.
func (s *Service) GetRaffle(raffleID uint) (*models.Raffle, error) {
	return s.repo.GetRaffle(raffleID)
}

// IntentsByUser lists a buyer's checkout attempts, newest first.
func (s *Service) IntentsByUser(userID uint, limit int) ([]models.PaymentIntent, error) {
	return s.repo.IntentsByUser(userID, limit)
}

// PublishRaffle marks a draft raffle active and seeds its number rows.
func (s *Service) PublishRaffle(db *gorm.DB, raffleID uint) error {
	res := db.Model(&models.Raffle{}).
		Where("id = ? AND status = ?", raffleID, models.RaffleStatusDraft).
		Update("status", models.RaffleStatusActive)
	if res.Error != nil {
		return res.Error
	}
	created, err := s.repo.SeedNumbers(raffleID)
	if err != nil {
		return err
	}
	if created > 0 {
		log.Infof("[Inventory] Seeded %d numbers for raffle %d", created, raffleID)
	}
	return nil
}

// ExpiredPendingIntents exposes the sweep query to the reservation manager.
func (s *Service) ExpiredPendingIntents(now time.Time, limit int) ([]models.PaymentIntent, error) {
	return s.repo.ExpiredPendingIntents(now, limit)
}

func validateSelection(numbers []int) error {
	if len(numbers) == 0 {
		return fmt.Errorf("%w: no numbers selected", ErrInvalidRequest)
	}
	if len(numbers) > MaxNumbersPerClaim {
		return fmt.Errorf("%w: at most %d numbers per claim", ErrInvalidRequest, MaxNumbersPerClaim)
	}
	seen := make(map[int]struct{}, len(numbers))
	for _, n := range numbers {
		if n < 1 {
			return fmt.Errorf("%w: number %d is not positive", ErrInvalidRequest, n)
		}
		if _, ok := seen[n]; ok {
			return fmt.Errorf("%w: duplicate number %d", ErrInvalidRequest, n)
		}
		seen[n] = struct{}{}
	}
	return nil
}
