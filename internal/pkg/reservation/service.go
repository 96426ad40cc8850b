// Package reservation owns the lifecycle of a number hold: it is created
// by Reserve, ends early through Cancel or a rejected payment, and is
// otherwise collected by the expiry sweep once the hold window lapses.
package reservation

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/rifei/backend/app/models"
	"github.com/rifei/backend/internal/pkg/env"
	"github.com/rifei/backend/internal/pkg/inventory"
)

// DefaultHoldMinutes is how long a claim blocks its numbers before the
// sweep releases them.
const DefaultHoldMinutes = 15

// ErrNotIntentOwner is returned when a user tries to cancel someone
// else's reservation.
var ErrNotIntentOwner = errors.New("reservation belongs to another user")

// ErrAlreadyFinalized is returned when a cancel races a finished payment.
var ErrAlreadyFinalized = errors.New("reservation already finalized")

// Service creates and cancels reservations on top of the inventory.
type Service struct {
	inventory *inventory.Service
	holdFor   time.Duration
}

// NewService creates a reservation service. A zero holdFor falls back to
// the configured hold window.
func NewService(inv *inventory.Service, holdFor time.Duration) *Service {
	if holdFor <= 0 {
		holdFor = HoldDurationFromEnv()
	}
	return &Service{inventory: inv, holdFor: holdFor}
}

// HoldDurationFromEnv reads the hold window from RESERVATION_HOLD_MINUTES.
func HoldDurationFromEnv() time.Duration {
	minutes, err := strconv.Atoi(env.GetEnv("RESERVATION_HOLD_MINUTES", strconv.Itoa(DefaultHoldMinutes)))
	if err != nil || minutes <= 0 {
		minutes = DefaultHoldMinutes
	}
	return time.Duration(minutes) * time.Minute
}

// Reserve claims the requested numbers for the user and returns the
// pending intent carrying the hold deadline.
func (s *Service) Reserve(raffleID, userID uint, numbers []int) (*models.PaymentIntent, error) {
	intent, err := s.inventory.Claim(inventory.ClaimInput{
		RaffleID: raffleID,
		UserID:   userID,
		Numbers:  numbers,
		HoldFor:  s.holdFor,
	})
	if err != nil {
		return nil, err
	}
	log.Infof("[Reservation] User %d reserved %d numbers on raffle %d until %s (intent %s)",
		userID, len(numbers), raffleID, intent.ExpiresAt.Format(time.RFC3339), intent.ID)
	return intent, nil
}

// Cancel releases a pending reservation at the owner's request. The
// numbers go back to available immediately instead of waiting for the
// sweep.
func (s *Service) Cancel(intentID string, userID uint) error {
	intent, err := s.inventory.GetIntent(intentID)
	if err != nil {
		return err
	}
	if intent.UserID != userID {
		return ErrNotIntentOwner
	}
	if intent.IsTerminal() {
		return ErrAlreadyFinalized
	}

	result, err := s.inventory.Finalize(intentID, inventory.OutcomeReleased)
	if err != nil {
		return err
	}
	if !result.Applied {
		return ErrAlreadyFinalized
	}
	log.Infof("[Reservation] User %d cancelled intent %s", userID, intentID)
	return nil
}

// HoldDuration exposes the configured hold window.
func (s *Service) HoldDuration() time.Duration {
	return s.holdFor
}
