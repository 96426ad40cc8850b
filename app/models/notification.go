package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	NotificationKindPurchaseConfirmed = "purchase_confirmed"
	NotificationKindSaleOccurred      = "sale_occurred"
	NotificationKindPaymentRejected   = "payment_rejected"
	NotificationKindHoldExpired       = "hold_expired"
)

type Notification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Kind      string    `gorm:"type:varchar(50);index" json:"kind" validate:"oneof=purchase_confirmed sale_occurred payment_rejected hold_expired"`
	Title     string    `gorm:"type:varchar(200)" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	IsRead    bool      `gorm:"default:false" json:"is_read"`
	RaffleID  uint      `gorm:"index" json:"raffle_id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// MarkAsRead marks a notification as read.
func (n *Notification) MarkAsRead(db *gorm.DB) error {
	n.IsRead = true
	return db.Model(n).Update("is_read", true).Error
}
