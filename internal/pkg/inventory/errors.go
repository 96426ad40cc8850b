package inventory

import (
	"errors"
	"fmt"
)

// ErrInvalidRequest covers malformed number selections: empty set,
// duplicates, out-of-range numbers. Rejected before any store access.
var ErrInvalidRequest = errors.New("invalid number selection")

// ErrRaffleNotSelling is returned when the raffle does not exist or is not
// in an active selling state.
var ErrRaffleNotSelling = errors.New("raffle is not selling numbers")

// NumbersUnavailableError reports a failed claim together with the exact
// numbers that were already held or sold, so the caller can refresh the
// grid and let the user reselect.
type NumbersUnavailableError struct {
	RaffleID uint
	Numbers  []int
}

func (e *NumbersUnavailableError) Error() string {
	return fmt.Sprintf("numbers unavailable on raffle %d: %v", e.RaffleID, e.Numbers)
}

// IsNumbersUnavailable extracts a NumbersUnavailableError if err carries one.
func IsNumbersUnavailable(err error) (*NumbersUnavailableError, bool) {
	var target *NumbersUnavailableError
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
