// Package notify persists in-app notifications for buyers and raffle
// creators. Delivery is best effort: a failed notification is logged and
// never rolls back the payment state change that triggered it.
package notify

import (
	"sync"

	"github.com/gofiber/fiber/v2/log"
	"github.com/rifei/backend/app/models"
	"gorm.io/gorm"
)

// Notifier records one notification for a user.
type Notifier interface {
	Notify(userID uint, kind, title, message string, raffleID uint)
}

type gormNotifier struct {
	db *gorm.DB
}

// NewNotifier creates a notifier that writes notification rows.
func NewNotifier(db *gorm.DB) Notifier {
	return &gormNotifier{db: db}
}

func (n *gormNotifier) Notify(userID uint, kind, title, message string, raffleID uint) {
	notification := models.Notification{
		UserID:   userID,
		Kind:     kind,
		Title:    title,
		Message:  message,
		RaffleID: raffleID,
	}
	if err := n.db.Create(&notification).Error; err != nil {
		log.Errorf("[Notify] Failed to create %s notification for user %d: %v", kind, userID, err)
	}
}

// Recorder captures notifications in memory for tests.
type Recorder struct {
	mu      sync.Mutex
	Entries []models.Notification
}

func (r *Recorder) Notify(userID uint, kind, title, message string, raffleID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Entries = append(r.Entries, models.Notification{
		UserID:   userID,
		Kind:     kind,
		Title:    title,
		Message:  message,
		RaffleID: raffleID,
	})
}

// ByKind returns the captured notifications of one kind.
func (r *Recorder) ByKind(kind string) []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.Entries {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}
